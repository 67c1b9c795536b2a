package master

import (
	"context"
	"net"
	"time"

	"github.com/VersBinarii/thesamo/internal/syncerr"
	"github.com/VersBinarii/thesamo/internal/syncmsg"
	"github.com/VersBinarii/thesamo/internal/wireproto"
)

// Dispatcher delivers one packet to one minion.
type Dispatcher interface {
	Dispatch(ctx context.Context, addr string, p *syncmsg.Packet) error
}

// TCPDispatcher opens a fresh connection per packet, writes the whole
// payload, and closes the connection.
type TCPDispatcher struct {
	Encoding     wireproto.Encoding
	DialTimeout  time.Duration
	WriteTimeout time.Duration
}

func (d *TCPDispatcher) Dispatch(ctx context.Context, addr string, p *syncmsg.Packet) error {
	dialer := net.Dialer{Timeout: d.DialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return syncerr.Transport("dial", addr, err)
	}
	defer conn.Close()

	if d.WriteTimeout > 0 {
		if err := conn.SetWriteDeadline(time.Now().Add(d.WriteTimeout)); err != nil {
			return syncerr.Transport("deadline", addr, err)
		}
	}

	if _, err := wireproto.WritePacket(conn, p, d.Encoding); err != nil {
		return syncerr.Transport("write", addr, err)
	}

	if err := conn.Close(); err != nil {
		return syncerr.Transport("close", addr, err)
	}
	return nil
}
