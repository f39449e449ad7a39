package core_test

import (
	"testing"

	"github.com/book-expert/captcha-lab/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCaptchaType(t *testing.T) {
	t.Parallel()

	captchaType, err := core.ParseCaptchaType(" Audio ")
	require.NoError(t, err)
	assert.Equal(t, core.CaptchaAudio, captchaType)

	captchaType, err = core.ParseCaptchaType("image")
	require.NoError(t, err)
	assert.Equal(t, core.CaptchaImage, captchaType)

	_, err = core.ParseCaptchaType("video")
	require.ErrorIs(t, err, core.ErrUnknownCaptchaType)
}
