package codec_test

import (
	"testing"

	"github.com/downfa11-org/journal/pkg/codec"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type record struct {
	Term  uint64
	Key   string
	Value []byte
}

func TestBytesCodecCopies(t *testing.T) {
	c := codec.Bytes()
	src := []byte("payload")
	enc, err := c.Encode(src)
	require.NoError(t, err)

	dec, err := c.Decode(enc)
	require.NoError(t, err)
	assert.Equal(t, src, dec)

	enc[0] = 'X'
	assert.Equal(t, byte('p'), dec[0])
}

func TestStringCodec(t *testing.T) {
	c := codec.String()
	enc, err := c.Encode("hello")
	require.NoError(t, err)
	dec, err := c.Decode(enc)
	require.NoError(t, err)
	assert.Equal(t, "hello", dec)
}

func TestStructCodecs(t *testing.T) {
	in := record{Term: 3, Key: "k", Value: []byte{1, 2, 3}}
	for name, c := range map[string]codec.Codec[record]{
		"json":    codec.JSON[record](),
		"msgpack": codec.Msgpack[record](),
	} {
		t.Run(name, func(t *testing.T) {
			enc, err := c.Encode(in)
			require.NoError(t, err)
			out, err := c.Decode(enc)
			require.NoError(t, err)
			assert.Equal(t, in, out)
		})
	}
}

func TestMsgpackPointer(t *testing.T) {
	c := codec.Msgpack[*record]()
	enc, err := c.Encode(&record{Term: 9, Key: "p"})
	require.NoError(t, err)
	out, err := c.Decode(enc)
	require.NoError(t, err)
	require.NotNil(t, out)
	assert.Equal(t, uint64(9), out.Term)
	assert.Equal(t, "p", out.Key)
}

func TestDecodeGarbage(t *testing.T) {
	_, err := codec.JSON[record]().Decode([]byte("{not json"))
	assert.Error(t, err)
}
