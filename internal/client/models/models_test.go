package models

import (
	"bytes"
	"errors"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var idPattern = regexp.MustCompile(`^offline_\d+_[a-z0-9]{7}$`)

func TestGenerateID_Format(t *testing.T) {
	for i := 0; i < 100; i++ {
		id := GenerateID()
		require.Regexp(t, idPattern, id)
		require.True(t, IsLocalID(id))
	}
}

func TestGenerateID_ConsecutiveCallsDiffer(t *testing.T) {
	prev := GenerateID()
	for i := 0; i < 1000; i++ {
		next := GenerateID()
		require.NotEqual(t, prev, next)
		prev = next
	}
}

func TestIsLocalID(t *testing.T) {
	assert.False(t, IsLocalID("3f0b1c9e-server-id"))
	assert.False(t, IsLocalID(""))
}

func TestPercentage(t *testing.T) {
	tests := []struct {
		current, total, want int
	}{
		{3, 10, 30},
		{0, 0, 0},
		{5, 5, 100},
		{1, 3, 33},
		{2, 3, 67},
		{0, 4, 0},
		{4, -1, 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Percentage(tt.current, tt.total), "percentage(%d,%d)", tt.current, tt.total)
	}

	assert.Equal(t, 50, Progress{CurrentItem: 1, TotalItems: 2}.Percentage())
}

func TestDataURL_RoundTripIsLossless(t *testing.T) {
	payloads := [][]byte{
		{},
		[]byte("plain text"),
		{0x00, 0xFF, 0x10, 0x80, 0x7F},
		bytes.Repeat([]byte{0xDE, 0xAD, 0xBE, 0xEF}, 4096),
	}
	for _, p := range payloads {
		enc := EncodeDataURL("image/png", p)
		mime, dec, err := DecodeDataURL(enc)
		require.NoError(t, err)
		assert.Equal(t, "image/png", mime)
		assert.True(t, bytes.Equal(p, dec))
	}
}

func TestEncodeDataURL_DefaultsMime(t *testing.T) {
	assert.Equal(t, "data:application/octet-stream;base64,AQI=", EncodeDataURL("", []byte{1, 2}))
}

func TestDecodeDataURL_Invalid(t *testing.T) {
	for _, s := range []string{
		"",
		"image/png;base64,AAAA",
		"data:image/png;base64",
		"data:image/png,AAAA",
		"data:image/png;base64,***",
	} {
		_, _, err := DecodeDataURL(s)
		require.Error(t, err, s)
		assert.True(t, errors.Is(err, ErrInvalidDataURL), s)
	}
}

func TestRecordFields(t *testing.T) {
	r := &Record{Payload: []byte(`{"site":"B4","floor":2}`)}
	m, err := r.Fields()
	require.NoError(t, err)
	assert.Equal(t, "B4", m["site"])
	assert.Equal(t, float64(2), m["floor"])

	empty := &Record{}
	m, err = empty.Fields()
	require.NoError(t, err)
	assert.Empty(t, m)

	bad := &Record{Payload: []byte(`[1,2]`)}
	_, err = bad.Fields()
	require.Error(t, err)
}

func TestAssetIsImage(t *testing.T) {
	assert.True(t, (&Asset{MimeType: "image/jpeg"}).IsImage())
	assert.False(t, (&Asset{MimeType: "application/pdf"}).IsImage())
}
