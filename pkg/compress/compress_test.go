package compress

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoundTrip(t *testing.T) {
	payload := bytes.Repeat([]byte(`{"type":"node_complete","node_id":"llm_call-2"}`), 64)

	tests := []struct {
		name string
		ct   CompressType
	}{
		{name: "none", ct: CompressTypeNone},
		{name: "gzip", ct: CompressTypeGzip},
		{name: "zstd", ct: CompressTypeZstd},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			compressed, err := Compress(payload, tt.ct)
			require.NoError(t, err)
			if tt.ct != CompressTypeNone {
				assert.Less(t, len(compressed), len(payload))
			}
			out, err := Decompress(compressed, tt.ct)
			require.NoError(t, err)
			assert.Equal(t, payload, out)
		})
	}
}

func TestUnknownType(t *testing.T) {
	_, err := Compress([]byte("x"), CompressType(42))
	assert.Error(t, err)
	_, err = Decompress([]byte("x"), CompressType(42))
	assert.Error(t, err)
}

func TestDecompressCorruptGzip(t *testing.T) {
	_, err := Decompress([]byte("definitely not gzip"), CompressTypeGzip)
	assert.Error(t, err)
}
