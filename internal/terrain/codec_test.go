package terrain

import (
	"math"
	"testing"

	"github.com/rileyhilliard/hfwatch/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCodec(t *testing.T) {
	tests := []struct {
		format, compression string
		want                Codec
		wantErr             bool
	}{
		{"cbor", "none", Codec{FormatCBOR, CompressionNone}, false},
		{"", "", Codec{FormatCBOR, CompressionNone}, false},
		{"json", "zstd", Codec{FormatJSON, CompressionZstd}, false},
		{"xml", "none", Codec{}, true},
		{"cbor", "gzip", Codec{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.format+"/"+tt.compression, func(t *testing.T) {
			got, err := ParseCodec(tt.format, tt.compression)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	assert.Equal(t, "json+zstd", Codec{FormatJSON, CompressionZstd}.String())
	assert.Equal(t, "cbor", Codec{}.String())
}

// Non-finite samples must survive every format and compression unchanged.
func TestCodec_NonFinitePassThrough(t *testing.T) {
	in := &Snapshot{Size: 3, Heights: []float32{
		0.5, posInf, negInf,
		nan, -2.25, 1e6,
		0, 3, 7,
	}}

	codecs := []Codec{
		{FormatCBOR, CompressionNone},
		{FormatCBOR, CompressionZstd},
		{FormatJSON, CompressionNone},
		{FormatJSON, CompressionZstd},
	}

	for _, c := range codecs {
		t.Run(c.String(), func(t *testing.T) {
			data, err := c.Encode(in)
			require.NoError(t, err)

			out, err := c.Decode(data)
			require.NoError(t, err)
			require.Equal(t, 3, out.Size)
			require.Len(t, out.Heights, 9)

			assert.Equal(t, float32(0.5), out.Heights[0])
			assert.True(t, math.IsInf(float64(out.Heights[1]), 1))
			assert.True(t, math.IsInf(float64(out.Heights[2]), -1))
			assert.True(t, math.IsNaN(float64(out.Heights[3])))
			assert.Equal(t, float32(-2.25), out.Heights[4])
			assert.Equal(t, float32(1e6), out.Heights[5])
			assert.Equal(t, in.Stats(), out.Stats())
		})
	}
}

func TestDecode_JSONSpellings(t *testing.T) {
	payload := []byte(`{"size":2,"heightmap":[1.5,"Infinity",null,"-Infinity"]}`)

	s, err := Decode(payload, FormatJSON, CompressionNone)
	require.NoError(t, err)

	assert.Equal(t, float32(1.5), s.Heights[0])
	assert.True(t, math.IsInf(float64(s.Heights[1]), 1))
	assert.True(t, math.IsNaN(float64(s.Heights[2])), "null decodes as NaN")
	assert.True(t, math.IsInf(float64(s.Heights[3]), -1))
}

func TestDecode_Errors(t *testing.T) {
	tests := []struct {
		name  string
		data  []byte
		codec Codec
	}{
		{name: "garbage cbor", data: []byte{0xff, 0x00, 0x13}, codec: Codec{FormatCBOR, CompressionNone}},
		{name: "garbage json", data: []byte(`{"size":`), codec: Codec{FormatJSON, CompressionNone}},
		{name: "bad sample", data: []byte(`{"size":1,"heightmap":["tall"]}`), codec: Codec{FormatJSON, CompressionNone}},
		{name: "wrong shape", data: []byte(`{"size":2,"heightmap":[1,2,3]}`), codec: Codec{FormatJSON, CompressionNone}},
		{name: "negative size", data: []byte(`{"size":-1,"heightmap":[]}`), codec: Codec{FormatJSON, CompressionNone}},
		{name: "not zstd", data: []byte(`{"size":0,"heightmap":[]}`), codec: Codec{FormatJSON, CompressionZstd}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.codec.Decode(tt.data)
			require.Error(t, err)
			assert.True(t, errors.IsCode(err, errors.ErrDecode))
		})
	}
}

func TestDecode_EmptyGrid(t *testing.T) {
	data, err := Encode(&Snapshot{}, FormatCBOR, CompressionNone)
	require.NoError(t, err)

	s, err := Decode(data, FormatCBOR, CompressionNone)
	require.NoError(t, err)
	assert.True(t, s.Empty())
}

func TestEncode_NilSnapshot(t *testing.T) {
	data, err := Encode(nil, FormatJSON, CompressionNone)
	require.NoError(t, err)
	assert.JSONEq(t, `{"size":0,"heightmap":[]}`, string(data))
}
