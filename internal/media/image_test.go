package media

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func encodePNG(t *testing.T, width, height int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for x := 0; x < width; x++ {
		img.Set(x, 0, color.RGBA{R: 200, A: 255})
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestInspect(t *testing.T) {
	info, err := Inspect(encodePNG(t, 40, 20))
	require.NoError(t, err)
	assert.Equal(t, 40, info.Width)
	assert.Equal(t, 20, info.Height)
	assert.Equal(t, "png", info.Format)

	_, err = Inspect([]byte("not an image"))
	assert.ErrorIs(t, err, ErrUndecodable)
}

func TestAspectRatio(t *testing.T) {
	assert.Equal(t, RatioLandscape, AspectRatio(1920, 1080))
	assert.Equal(t, RatioLandscape, AspectRatio(500, 500))
	assert.Equal(t, RatioPortrait, AspectRatio(1080, 1920))
}

func TestPrepareForUpload_Downsizes(t *testing.T) {
	out, err := PrepareForUpload(encodePNG(t, 2048, 1024))
	require.NoError(t, err)

	info, err := Inspect(out)
	require.NoError(t, err)
	assert.Equal(t, "jpeg", info.Format)
	assert.Equal(t, 1024, info.Width)
	assert.Equal(t, 512, info.Height)
}

func TestPrepareForUpload_KeepsSmall(t *testing.T) {
	out, err := PrepareForUpload(encodePNG(t, 64, 32))
	require.NoError(t, err)

	info, err := Inspect(out)
	require.NoError(t, err)
	assert.Equal(t, 64, info.Width)
	assert.Equal(t, 32, info.Height)
}

func TestDataURL(t *testing.T) {
	url := DataURL(encodePNG(t, 2, 2))
	assert.True(t, strings.HasPrefix(url, "data:image/png;base64,"))
}
