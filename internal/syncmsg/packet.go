// Package syncmsg defines the unit of data sent from a master to a minion.
package syncmsg

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var ErrMissingFileID = errors.New("packet has no file identifier")

// Packet carries the ordered block bodies of one file. The position of a block
// in Blocks is its identity; there is no per-block name on the wire.
type Packet struct {
	ID     string    `json:"id" msgpack:"id"`
	File   string    `json:"fid" msgpack:"fid"`
	Blocks []string  `json:"blk" msgpack:"blk"`
	SentAt time.Time `json:"sat" msgpack:"sat"`
}

// NewPacket builds a packet for the file identified by fileID.
func NewPacket(fileID string, blocks []string) *Packet {
	if blocks == nil {
		blocks = []string{}
	}
	return &Packet{
		ID:     uuid.NewString(),
		File:   fileID,
		Blocks: blocks,
		SentAt: time.Now().UTC(),
	}
}

func (p *Packet) Validate() error {
	if p.File == "" {
		return ErrMissingFileID
	}
	return nil
}

// Size is the number of body bytes carried by the packet.
func (p *Packet) Size() int {
	n := 0
	for _, b := range p.Blocks {
		n += len(b)
	}
	return n
}
