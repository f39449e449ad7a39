package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/book-expert/captcha-lab/internal/cli"
	"github.com/book-expert/captcha-lab/internal/config"
	"github.com/book-expert/captcha-lab/internal/core"
	"github.com/book-expert/captcha-lab/internal/imaging"
	"github.com/book-expert/captcha-lab/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFlags(t *testing.T) {
	t.Parallel()

	flags, err := parseFlags([]string{
		"--captcha-type", "audio", "--model-name", "m", "--captcha-dir", "d",
		"--output", "o.txt", "--symbols", "s.txt", "--threshold", "adaptive",
	})
	require.NoError(t, err)

	assert.Equal(t, appFlags{
		captchaType: "audio", modelName: "m", captchaDir: "d",
		output: "o.txt", symbols: "s.txt", threshold: "adaptive",
	}, flags)

	_, err = parseFlags([]string{"--bogus"})
	require.Error(t, err)
}

func TestResolve_MissingArguments(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		flags   appFlags
		message string
	}{
		{"no model", appFlags{}, msgMissingModel},
		{"no captcha dir", appFlags{modelName: "m"}, msgMissingCaptchaDir},
		{"no output", appFlags{modelName: "m", captchaDir: "d"}, msgMissingOutput},
		{"no symbols", appFlags{modelName: "m", captchaDir: "d", output: "o"}, msgMissingSymbols},
	}

	for _, testCase := range tests {
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			cfg := config.Default()

			_, err := resolve(testCase.flags, &cfg)

			var missing *cli.MissingArgError
			require.ErrorAs(t, err, &missing)
			assert.Equal(t, testCase.message, missing.Message)
		})
	}
}

func TestResolve_FlagsOverrideConfig(t *testing.T) {
	t.Parallel()

	cfg := config.Default()
	cfg.Classifier.ModelName = "from-config"
	cfg.Classifier.SymbolsPath = "config-symbols.txt"
	cfg.Classifier.CaptchaType = "audio"
	cfg.Classifier.RuntimeLibrary = "/opt/onnxruntime/libonnxruntime.so"

	resolved, err := resolve(appFlags{captchaDir: "d", output: "o"}, &cfg)
	require.NoError(t, err)
	assert.Equal(t, "from-config", resolved.options.ModelName)
	assert.Equal(t, "config-symbols.txt", resolved.options.SymbolsPath)
	assert.Equal(t, core.CaptchaAudio, resolved.options.CaptchaType)
	assert.Equal(t, imaging.ModeOtsu, resolved.options.Threshold)
	assert.Equal(t, "/opt/onnxruntime/libonnxruntime.so", resolved.options.RuntimeLibrary)

	resolved, err = resolve(appFlags{
		modelName: "from-flag", captchaDir: "d", output: "o",
		symbols: "flag-symbols.txt", captchaType: "image", threshold: "adaptive",
		runtimeLib: "libonnxruntime.so.1.20",
	}, &cfg)
	require.NoError(t, err)
	assert.Equal(t, "from-flag", resolved.options.ModelName)
	assert.Equal(t, "flag-symbols.txt", resolved.options.SymbolsPath)
	assert.Equal(t, core.CaptchaImage, resolved.options.CaptchaType)
	assert.Equal(t, imaging.ModeAdaptive, resolved.options.Threshold)
	assert.Equal(t, "libonnxruntime.so.1.20", resolved.options.RuntimeLibrary)
}

func TestResolve_InvalidChoices(t *testing.T) {
	t.Parallel()

	cfg := config.Default()
	base := appFlags{modelName: "m", captchaDir: "d", output: "o", symbols: "s"}

	withType := base
	withType.captchaType = "video"
	_, err := resolve(withType, &cfg)
	require.ErrorIs(t, err, core.ErrUnknownCaptchaType)

	withThreshold := base
	withThreshold.threshold = "median"
	_, err = resolve(withThreshold, &cfg)
	require.ErrorIs(t, err, imaging.ErrUnknownMode)
}

func writeConstantModel(t *testing.T, base string, height, width int, indexes []int, classes int) {
	t.Helper()

	arch := &model.Architecture{
		Name:   "constant",
		Input:  model.Shape{Height: height, Width: width, Channels: 1},
		Layers: []model.LayerSpec{{Type: model.LayerFlatten}},
	}

	var params []float64

	for _, index := range indexes {
		arch.Heads = append(arch.Heads, model.LayerSpec{
			Type: model.LayerDense, Units: classes, Activation: model.ActivationSoftmax,
		})

		params = append(params, make([]float64, height*width*classes)...)

		bias := make([]float64, classes)
		bias[index] = 4
		params = append(params, bias...)
	}

	m, err := model.New(arch)
	require.NoError(t, err)
	require.NoError(t, m.SetParams(params))
	require.NoError(t, m.Save(base))
}

func TestRun_ClassifiesDirectory(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	modelBase := filepath.Join(dir, "constant")
	writeConstantModel(t, modelBase, 8, 16, []int{1, 2}, 3)

	symbolsPath := filepath.Join(dir, "symbols.txt")
	require.NoError(t, os.WriteFile(symbolsPath, []byte("xyz\n"), 0o600))

	configPath := filepath.Join(dir, "captcha.toml")
	configBody := fmt.Sprintf("[classifier]\nsymbols_path = %q\n\n[paths]\nbase_logs_dir = %q\n", symbolsPath, dir)
	require.NoError(t, os.WriteFile(configPath, []byte(configBody), 0o600))

	captchas := filepath.Join(dir, "captchas")
	require.NoError(t, os.Mkdir(captchas, 0o750))

	for _, name := range []string{"b.png", "a.png"} {
		var encoded bytes.Buffer
		require.NoError(t, png.Encode(&encoded, stripes(16, 8)))
		require.NoError(t, os.WriteFile(filepath.Join(captchas, name), encoded.Bytes(), 0o600))
	}

	output := filepath.Join(dir, "labels.txt")

	var stdout bytes.Buffer

	err := run(context.Background(), []string{
		"--config", configPath, "--model-name", modelBase,
		"--captcha-dir", captchas, "--output", output,
	}, &stdout)
	require.NoError(t, err)

	labels, err := os.ReadFile(output)
	require.NoError(t, err)
	assert.Equal(t, "a.png, yz\nb.png, yz\n", string(labels))
	assert.Equal(t,
		"Classifying captchas with symbol set {xyz}\nClassified a.png\nClassified b.png\n",
		stdout.String())
}

func TestRun_ReportsMissingArgument(t *testing.T) {
	t.Parallel()

	err := run(context.Background(), []string{"--captcha-dir", t.TempDir()}, &bytes.Buffer{})

	var missing *cli.MissingArgError
	require.True(t, errors.As(err, &missing))
	assert.Equal(t, msgMissingModel, missing.Message)
}

func stripes(width, height int) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, width, height))
	for x := range width {
		img.SetGray(x, x%height, color.Gray{Y: 200})
	}

	return img
}
