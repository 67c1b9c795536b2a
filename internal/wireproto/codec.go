// Package wireproto encodes sync packets for the TCP transport.
//
// Every payload is wrapped in a 4 byte envelope: [magic0][magic1][version][encoding]
// followed by the encoded packet. A connection carries exactly one payload.
package wireproto

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/VersBinarii/thesamo/internal/syncmsg"
	"github.com/vmihailenco/msgpack/v5"
)

// Encoding indicates which encoding is used for the packet payload.
type Encoding uint8

const (
	EncodingMsgPack Encoding = iota
	EncodingJSON
)

func (e Encoding) String() string {
	switch e {
	case EncodingJSON:
		return "json"
	case EncodingMsgPack:
		return "msgpack"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(e))
	}
}

const (
	magic0     = byte('T')
	magic1     = byte('S')
	version    = byte(1)
	headerSize = 4
)

var (
	ErrShortPayload    = errors.New("payload shorter than envelope header")
	ErrBadMagic        = errors.New("payload missing TS envelope")
	ErrUnknownEncoding = errors.New("unknown encoding")
	ErrNotUTF8         = errors.New("block is not valid UTF-8")
)

// ParseEncoding maps a configuration value to an Encoding. Empty means msgpack.
func ParseEncoding(s string) (Encoding, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "msgpack":
		return EncodingMsgPack, nil
	case "json":
		return EncodingJSON, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownEncoding, s)
	}
}

// Marshal encodes a packet into an enveloped payload.
func Marshal(p *syncmsg.Packet, enc Encoding) ([]byte, error) {
	if p == nil {
		return nil, errors.New("nil packet")
	}

	var payload []byte
	var err error
	switch enc {
	case EncodingMsgPack:
		payload, err = msgpack.Marshal(p)
	case EncodingJSON:
		// JSON replaces invalid UTF-8 with U+FFFD.
		if err := checkUTF8(p); err != nil {
			return nil, err
		}
		payload, err = jsonMarshal(p)
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownEncoding, enc)
	}
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", enc, err)
	}

	buf := make([]byte, headerSize+len(payload))
	buf[0], buf[1], buf[2], buf[3] = magic0, magic1, version, byte(enc)
	copy(buf[headerSize:], payload)
	return buf, nil
}

func checkUTF8(p *syncmsg.Packet) error {
	if !utf8.ValidString(p.File) {
		return fmt.Errorf("%w: file id", ErrNotUTF8)
	}
	for i, b := range p.Blocks {
		if !utf8.ValidString(b) {
			return fmt.Errorf("%w: block %d of %s", ErrNotUTF8, i, p.File)
		}
	}
	return nil
}

// Unmarshal decodes an enveloped payload and validates the packet.
func Unmarshal(data []byte) (*syncmsg.Packet, Encoding, error) {
	if len(data) < headerSize {
		return nil, 0, ErrShortPayload
	}
	if data[0] != magic0 || data[1] != magic1 {
		return nil, 0, ErrBadMagic
	}
	if data[2] != version {
		return nil, 0, fmt.Errorf("unsupported envelope version: %d", data[2])
	}

	enc := Encoding(data[3])
	payload := data[headerSize:]

	var p syncmsg.Packet
	switch enc {
	case EncodingMsgPack:
		dec := msgpack.NewDecoder(bytes.NewReader(payload))
		dec.SetCustomStructTag("msgpack")
		if err := dec.Decode(&p); err != nil {
			return nil, enc, fmt.Errorf("decode msgpack: %w", err)
		}
	case EncodingJSON:
		if err := jsonUnmarshal(payload, &p); err != nil {
			return nil, enc, fmt.Errorf("decode json: %w", err)
		}
	default:
		return nil, enc, fmt.Errorf("%w: %d", ErrUnknownEncoding, enc)
	}

	if err := p.Validate(); err != nil {
		return nil, enc, err
	}
	return &p, enc, nil
}
