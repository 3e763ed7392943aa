package fitting

import (
	"bytes"
	"image"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func encodePNG(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, w, h))))
	return buf.Bytes()
}

func TestImageDimensions(t *testing.T) {
	w, h, err := ImageDimensions(encodePNG(t, 32, 24))
	require.NoError(t, err)
	assert.Equal(t, 32, w)
	assert.Equal(t, 24, h)
}

func TestImageDimensions_NotAnImage(t *testing.T) {
	_, _, err := ImageDimensions([]byte("hello"))
	assert.Error(t, err)
}

func TestDetectMIMEType(t *testing.T) {
	assert.Equal(t, "image/png", DetectMIMEType(encodePNG(t, 2, 2)))
	assert.Equal(t, "", DetectMIMEType([]byte("plain text")))
}

func TestNewValidator_DomainTags(t *testing.T) {
	v := NewValidator()
	assert.NoError(t, v.Struct(ClothingAnalysis{Type: "jeans", BodyPartID: RegionLegs}))
	assert.Error(t, v.Struct(ClothingAnalysis{Type: "jeans", BodyPartID: "tail"}))
	assert.Error(t, v.Struct(ClothingAnalysis{BodyPartID: RegionLegs}))
}
