package wireproto

import (
	"errors"
	"fmt"
	"io"

	"github.com/VersBinarii/thesamo/internal/syncmsg"
)

// DefaultMaxPayload bounds the size of one inbound payload.
const DefaultMaxPayload = 4 << 20

var ErrPayloadTooLarge = errors.New("payload exceeds size limit")

// WritePacket encodes p and writes the whole payload to w.
func WritePacket(w io.Writer, p *syncmsg.Packet, enc Encoding) (int, error) {
	data, err := Marshal(p, enc)
	if err != nil {
		return 0, err
	}
	return w.Write(data)
}

// ReadPacket reads r until EOF and decodes the payload. At most limit bytes
// are accepted; a non-positive limit means DefaultMaxPayload.
func ReadPacket(r io.Reader, limit int64) (*syncmsg.Packet, Encoding, int, error) {
	if limit <= 0 {
		limit = DefaultMaxPayload
	}

	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, 0, len(data), fmt.Errorf("read payload: %w", err)
	}
	if int64(len(data)) > limit {
		return nil, 0, len(data), fmt.Errorf("%w (%d bytes)", ErrPayloadTooLarge, limit)
	}

	p, enc, err := Unmarshal(data)
	return p, enc, len(data), err
}
