package main

import (
	"bytes"
	"context"
	"fmt"
	"io/fs"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/book-expert/captcha-lab/internal/cli"
	"github.com/book-expert/captcha-lab/internal/config"
	"github.com/book-expert/captcha-lab/internal/synth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolve_MissingArguments(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		flags   appFlags
		message string
	}{
		{"no api", appFlags{}, msgMissingAPI},
		{"no key", appFlags{api: "azure"}, msgMissingAPIKey},
		{"no aws key id", appFlags{api: "aws", apiKey: "secret"}, msgMissingAPIKeyID},
		{"no output dir", appFlags{api: "gtts"}, msgMissingOutputDir},
		{"no length", appFlags{api: "gtts", outputDir: "out"}, msgMissingLength},
		{"no count", appFlags{api: "gtts", outputDir: "out", length: 4}, msgMissingCount},
		{"no symbols", appFlags{api: "gtts", outputDir: "out", length: 4, count: 2}, msgMissingSymbols},
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

func TestResolve_MergesConfig(t *testing.T) {
	t.Parallel()

	cfg := config.Default()
	cfg.TTS.API = "azure"
	cfg.TTS.APIKey = "config-key"
	cfg.TTS.Region = "northeurope"
	cfg.TTS.OutputDir = "config-out"
	cfg.TTS.Length = 5
	cfg.TTS.Count = 10
	cfg.TTS.SymbolsPath = "symbols.txt"

	resolved, err := resolve(appFlags{apiKey: "flag-key", count: 3, seed: 7}, &cfg)
	require.NoError(t, err)

	assert.Equal(t, "azure", resolved.provider.API)
	assert.Equal(t, "flag-key", resolved.provider.APIKey)
	assert.Equal(t, "northeurope", resolved.provider.Region)
	assert.Equal(t, 30*time.Second, resolved.provider.Timeout)
	assert.Equal(t, "config-out", resolved.generator.OutputDir)
	assert.Equal(t, 5, resolved.generator.Length)
	assert.Equal(t, 1, resolved.generator.Workers)
	assert.Equal(t, synth.PacingFor(synth.APIAzure), resolved.generator.Pacing)
	assert.Equal(t, 3, resolved.count)
	assert.Equal(t, uint64(7), resolved.seed)
}

func TestParseFlags(t *testing.T) {
	t.Parallel()

	flags, err := parseFlags([]string{
		"--api", "aws", "--api-key", "k", "--api-key-id", "id", "--output-dir", "out",
		"--length", "4", "--count", "9", "--scramble", "--symbols", "s.txt", "--workers", "2",
	})
	require.NoError(t, err)

	assert.Equal(t, appFlags{
		api: "aws", apiKey: "k", apiKeyID: "id", outputDir: "out",
		length: 4, count: 9, scramble: true, symbols: "s.txt", workers: 2,
	}, flags)
}

func TestRun_GeneratesWithGTTS(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("mp3:" + r.URL.Query().Get("q")))
	}))
	t.Cleanup(server.Close)

	dir := t.TempDir()
	symbolsPath := filepath.Join(dir, "symbols.txt")
	require.NoError(t, os.WriteFile(symbolsPath, []byte("ab12\n"), 0o600))

	configPath := filepath.Join(dir, "captcha.toml")
	configBody := fmt.Sprintf("[tts]\nendpoint = %q\n\n[paths]\nbase_logs_dir = %q\n", server.URL, dir)
	require.NoError(t, os.WriteFile(configPath, []byte(configBody), 0o600))

	outputDir := filepath.Join(dir, "samples")

	var stdout bytes.Buffer

	err := run(context.Background(), []string{
		"--config", configPath, "--api", "gtts", "--output-dir", outputDir,
		"--length", "3", "--count", "4", "--symbols", symbolsPath, "--seed", "42",
	}, &stdout)
	require.NoError(t, err)

	output := stdout.String()
	assert.True(t, strings.HasPrefix(output, "Creating output directory "+outputDir+"\n"))
	assert.True(t, strings.HasSuffix(output, "Generated 4 captchas, 0 failed\n"))

	var files []string

	walkErr := filepath.WalkDir(outputDir, func(path string, entry fs.DirEntry, err error) error {
		if err != nil || entry.IsDir() {
			return err
		}

		files = append(files, path)

		text := filepath.Base(filepath.Dir(path))
		assert.Len(t, text, 3)

		data, readErr := os.ReadFile(path)
		require.NoError(t, readErr)
		assert.Equal(t, "mp3:"+text, string(data))

		return nil
	})
	require.NoError(t, walkErr)
	assert.Len(t, files, 4)
}

func TestRun_UnknownAPI(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	symbolsPath := filepath.Join(dir, "symbols.txt")
	require.NoError(t, os.WriteFile(symbolsPath, []byte("ab"), 0o600))

	configPath := filepath.Join(dir, "captcha.toml")
	require.NoError(t, os.WriteFile(configPath, fmt.Appendf(nil, "[paths]\nbase_logs_dir = %q\n", dir), 0o600))

	err := run(context.Background(), []string{
		"--config", configPath, "--api", "watson", "--api-key", "k", "--output-dir", dir,
		"--length", "2", "--count", "1", "--symbols", symbolsPath,
	}, &bytes.Buffer{})
	require.ErrorIs(t, err, synth.ErrUnknownAPI)
}
