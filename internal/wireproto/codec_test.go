package wireproto

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/VersBinarii/thesamo/internal/syncmsg"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEncoding(t *testing.T) {
	enc, err := ParseEncoding("")
	require.NoError(t, err)
	assert.Equal(t, EncodingMsgPack, enc)

	enc, err = ParseEncoding(" JSON ")
	require.NoError(t, err)
	assert.Equal(t, EncodingJSON, enc)

	_, err = ParseEncoding("cbor")
	assert.ErrorIs(t, err, ErrUnknownEncoding)
}

func TestCodec_MsgPackRoundTrip(t *testing.T) {
	p := syncmsg.NewPacket("app.conf", []string{"\nlisten 80;\n", "", "αβγ"})

	data, err := Marshal(p, EncodingMsgPack)
	require.NoError(t, err)
	require.True(t, len(data) > headerSize)
	assert.Equal(t, byte('T'), data[0])
	assert.Equal(t, byte('S'), data[1])
	assert.Equal(t, byte(1), data[2])
	assert.Equal(t, byte(EncodingMsgPack), data[3])

	decoded, enc, err := Unmarshal(data)
	require.NoError(t, err)
	assert.Equal(t, EncodingMsgPack, enc)
	assert.Equal(t, p.ID, decoded.ID)
	assert.Equal(t, p.File, decoded.File)
	assert.Equal(t, p.Blocks, decoded.Blocks)
	assert.True(t, p.SentAt.Equal(decoded.SentAt))
}

func TestCodec_JSONRoundTrip(t *testing.T) {
	p := syncmsg.NewPacket("nginx.conf", []string{"a", "b"})

	data, err := Marshal(p, EncodingJSON)
	require.NoError(t, err)
	assert.Equal(t, byte(EncodingJSON), data[3])
	assert.Contains(t, string(data[headerSize:]), `"fid":"nginx.conf"`)

	decoded, enc, err := Unmarshal(data)
	require.NoError(t, err)
	assert.Equal(t, EncodingJSON, enc)
	assert.Equal(t, p.File, decoded.File)
	assert.Equal(t, p.Blocks, decoded.Blocks)
}

func TestCodec_Errors(t *testing.T) {
	_, _, err := Unmarshal([]byte{'T'})
	assert.ErrorIs(t, err, ErrShortPayload)

	_, _, err = Unmarshal([]byte{'X', 'Y', 1, 0, 0})
	assert.ErrorIs(t, err, ErrBadMagic)

	_, _, err = Unmarshal([]byte{'T', 'S', 9, 0})
	assert.Error(t, err)

	_, _, err = Unmarshal([]byte{'T', 'S', 1, 42, 0})
	assert.ErrorIs(t, err, ErrUnknownEncoding)

	_, _, err = Unmarshal([]byte{'T', 'S', 1, byte(EncodingJSON), '{'})
	assert.Error(t, err)

	_, err = Marshal(syncmsg.NewPacket("x", nil), Encoding(7))
	assert.ErrorIs(t, err, ErrUnknownEncoding)
}

func TestCodec_RejectsPacketWithoutFile(t *testing.T) {
	data, err := Marshal(&syncmsg.Packet{Blocks: []string{"x"}}, EncodingMsgPack)
	require.NoError(t, err)

	_, _, err = Unmarshal(data)
	assert.ErrorIs(t, err, syncmsg.ErrMissingFileID)
}

func TestStream_WriteRead(t *testing.T) {
	p := syncmsg.NewPacket("app.conf", []string{"one", "two"})

	var buf bytes.Buffer
	n, err := WritePacket(&buf, p, EncodingMsgPack)
	require.NoError(t, err)
	assert.Equal(t, buf.Len(), n)

	decoded, enc, read, err := ReadPacket(&buf, 0)
	require.NoError(t, err)
	assert.Equal(t, n, read)
	assert.Equal(t, EncodingMsgPack, enc)
	assert.Equal(t, p.Blocks, decoded.Blocks)
}

func TestStream_ReadLimit(t *testing.T) {
	p := syncmsg.NewPacket("big.conf", []string{strings.Repeat("x", 1024)})
	data, err := Marshal(p, EncodingMsgPack)
	require.NoError(t, err)

	_, _, _, err = ReadPacket(bytes.NewReader(data), 100)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrPayloadTooLarge))
}

func TestCodec_NonUTF8Blocks(t *testing.T) {
	p := syncmsg.NewPacket("app.conf", []string{"\ncomment=caf\xe9\n"})

	data, err := Marshal(p, EncodingMsgPack)
	require.NoError(t, err)
	decoded, _, err := Unmarshal(data)
	require.NoError(t, err)
	assert.Equal(t, p.Blocks, decoded.Blocks)

	_, err = Marshal(p, EncodingJSON)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotUTF8)

	var buf bytes.Buffer
	n, err := WritePacket(&buf, p, EncodingJSON)
	assert.ErrorIs(t, err, ErrNotUTF8)
	assert.Zero(t, n)
	assert.Zero(t, buf.Len())
}
