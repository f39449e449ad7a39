package tensor_test

import (
	"image"
	"testing"

	"github.com/book-expert/captcha-lab/internal/tensor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromGray_Normalizes(t *testing.T) {
	t.Parallel()

	img := image.NewGray(image.Rect(0, 0, 3, 2))
	img.Pix = []uint8{0, 255, 51, 255, 0, 102}

	tns := tensor.FromGray(img)

	assert.Equal(t, [4]int{1, 2, 3, 1}, tns.Shape())
	assert.InDelta(t, 0.0, tns.At(0, 0), 1e-12)
	assert.InDelta(t, 1.0, tns.At(0, 1), 1e-12)
	assert.InDelta(t, 0.2, tns.At(0, 2), 1e-12)
	assert.InDelta(t, 0.4, tns.At(1, 2), 1e-12)
}

func TestExpect(t *testing.T) {
	t.Parallel()

	tns := tensor.New(64, 128)

	require.NoError(t, tns.Expect(64, 128))
	require.ErrorIs(t, tns.Expect(50, 200), tensor.ErrShapeMismatch)
}
