// Package config holds the process wide configuration shared by both roles.
package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/VersBinarii/thesamo/internal/syncfile"
	"github.com/VersBinarii/thesamo/internal/tags"
	"github.com/VersBinarii/thesamo/internal/wireproto"
	"github.com/spf13/viper"
)

type Role string

const (
	RoleMaster Role = "master"
	RoleMinion Role = "minion"
)

const (
	DefaultPollInterval = 60 * time.Second
	DefaultBindAddress  = "0.0.0.0"
	DefaultBindPort     = 7400
	DefaultDialTimeout  = 5 * time.Second
	DefaultIOTimeout    = 30 * time.Second
	DefaultAcceptRate   = 20.0
	DefaultAcceptBurst  = 40
	EnvPrefix           = "THESAMO"
)

var (
	home, _           = os.UserHomeDir()
	DefaultConfigPath = filepath.Join(home, ".config", "thesamo", "thesamo.toml")

	ErrNoRole        = errors.New("set role = \"master\" or role = \"minion\" in the configuration file")
	ErrAmbiguousRole = errors.New("configuration marks the process as both master and minion")
	ErrNoFiles       = errors.New("no files configured")
)

type Config struct {
	// Role is "master" or "minion". The legacy boolean keys are honoured when it is empty.
	Role   string `mapstructure:"role"`
	Master bool   `mapstructure:"master"`
	Minion bool   `mapstructure:"minion"`

	OpenTag  string `mapstructure:"open_tag"`
	CloseTag string `mapstructure:"close_tag"`

	// PollingFreq is the legacy poll interval in seconds; PollInterval wins when set.
	PollingFreq  int           `mapstructure:"polling_freq"`
	PollInterval time.Duration `mapstructure:"poll_interval"`

	Encoding string `mapstructure:"encoding"`
	Watch    bool   `mapstructure:"watch"`
	StateDir string `mapstructure:"state_dir"`
	LogFile  string `mapstructure:"log_file"`

	Network Network     `mapstructure:"network"`
	Control Control     `mapstructure:"control"`
	Files   []FileEntry `mapstructure:"files"`

	Path string `mapstructure:"-"`
}

type Network struct {
	BindAddress   string        `mapstructure:"bind_address"`
	BindPort      int           `mapstructure:"bind_port"`
	DialTimeout   time.Duration `mapstructure:"dial_timeout"`
	IOTimeout     time.Duration `mapstructure:"io_timeout"`
	MaxPacketSize int64         `mapstructure:"max_packet_size"`
	AcceptRate    float64       `mapstructure:"accept_rate"`
	AcceptBurst   int           `mapstructure:"accept_burst"`
}

// Control configures the local HTTP control plane. An empty Addr disables it.
type Control struct {
	Addr  string `mapstructure:"addr"`
	Token string `mapstructure:"token"`
}

type FileEntry struct {
	Path          string `mapstructure:"path"`
	ID            string `mapstructure:"id"`
	MinionAddress string `mapstructure:"minion_address"`
	MinionPort    int    `mapstructure:"minion_port"`
}

// SetDefaults registers default values on v. Keys with defaults can also be
// overridden from the environment.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("role", "")
	v.SetDefault("open_tag", "")
	v.SetDefault("close_tag", "")
	v.SetDefault("encoding", wireproto.EncodingMsgPack.String())
	v.SetDefault("watch", false)
	v.SetDefault("state_dir", "")
	v.SetDefault("log_file", "")
	v.SetDefault("network.bind_address", DefaultBindAddress)
	v.SetDefault("network.bind_port", DefaultBindPort)
	v.SetDefault("network.dial_timeout", DefaultDialTimeout)
	v.SetDefault("network.io_timeout", DefaultIOTimeout)
	v.SetDefault("network.max_packet_size", wireproto.DefaultMaxPayload)
	v.SetDefault("network.accept_rate", DefaultAcceptRate)
	v.SetDefault("network.accept_burst", DefaultAcceptBurst)
	v.SetDefault("control.addr", "")
	v.SetDefault("control.token", "")
}

// Load decodes the configuration held by v.
func Load(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.Path = v.ConfigFileUsed()
	return &cfg, nil
}

// ResolvedRole returns the configured role.
func (c *Config) ResolvedRole() (Role, error) {
	if c.Role != "" {
		switch r := Role(strings.ToLower(strings.TrimSpace(c.Role))); r {
		case RoleMaster, RoleMinion:
			return r, nil
		default:
			return "", fmt.Errorf("unknown role %q", c.Role)
		}
	}

	switch {
	case c.Master && c.Minion:
		return "", ErrAmbiguousRole
	case c.Master:
		return RoleMaster, nil
	case c.Minion:
		return RoleMinion, nil
	default:
		return "", ErrNoRole
	}
}

// Validate checks the parts of the configuration both roles depend on.
// Whether the role fits the process being started is checked by that process.
func (c *Config) Validate() error {
	if _, err := c.ResolvedRole(); err != nil {
		return err
	}
	if _, err := tags.NewMarkerPair(c.OpenTag, c.CloseTag); err != nil {
		return fmt.Errorf("invalid tags: %w", err)
	}
	if _, err := wireproto.ParseEncoding(c.Encoding); err != nil {
		return err
	}
	if c.PollInterval < 0 || c.PollingFreq < 0 {
		return errors.New("poll interval cannot be negative")
	}
	if c.Network.BindPort < 0 || c.Network.BindPort > 65535 {
		return fmt.Errorf("invalid bind port %d", c.Network.BindPort)
	}
	if len(c.Files) == 0 {
		return ErrNoFiles
	}
	for i, f := range c.Files {
		if f.Path == "" {
			return fmt.Errorf("files[%d]: path cannot be empty", i)
		}
		if f.MinionPort < 0 || f.MinionPort > 65535 {
			return fmt.Errorf("files[%d]: invalid minion port %d", i, f.MinionPort)
		}
	}
	return nil
}

func (c *Config) Markers() tags.MarkerPair {
	return tags.MarkerPair{Open: c.OpenTag, Close: c.CloseTag}
}

func (c *Config) WireEncoding() wireproto.Encoding {
	enc, err := wireproto.ParseEncoding(c.Encoding)
	if err != nil {
		return wireproto.EncodingMsgPack
	}
	return enc
}

// Interval returns the master poll interval.
func (c *Config) Interval() time.Duration {
	if c.PollInterval > 0 {
		return c.PollInterval
	}
	if c.PollingFreq > 0 {
		return time.Duration(c.PollingFreq) * time.Second
	}
	return DefaultPollInterval
}

// BindAddr is the listen address of a minion.
func (c *Config) BindAddr() string {
	host := c.Network.BindAddress
	if host == "" {
		host = DefaultBindAddress
	}
	return net.JoinHostPort(host, strconv.Itoa(c.Network.BindPort))
}

// Destination is the minion address a master sends the given file to. Entries
// without their own address fall back to the network section.
func (c *Config) Destination(f FileEntry) string {
	host := f.MinionAddress
	if host == "" {
		host = c.Network.BindAddress
	}
	port := f.MinionPort
	if port == 0 {
		port = c.Network.BindPort
	}
	return net.JoinHostPort(host, strconv.Itoa(port))
}

// Entry converts a file entry for expansion by the syncfile package.
func (f FileEntry) Entry() syncfile.Entry {
	return syncfile.Entry{Path: f.Path, ID: f.ID}
}
