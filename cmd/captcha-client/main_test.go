package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/book-expert/captcha-lab/internal/cli"
	"github.com/book-expert/captcha-lab/internal/core"
	"github.com/book-expert/captcha-lab/internal/objectstore"
	"github.com/nats-io/nats-server/v2/test"
	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSubject = "captcha.test.submitted"

func TestParseFlags(t *testing.T) {
	t.Parallel()

	flags, err := parseFlags([]string{
		"--file", "c.png", "--captcha-type", "image", "--nats-url", "nats://x:4222", "--timeout", "3s",
	})
	require.NoError(t, err)
	assert.Equal(t, appFlags{
		file: "c.png", captchaType: "image", natsURL: "nats://x:4222", timeout: 3 * time.Second,
	}, flags)
}

func TestRun_MissingArguments(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		args    []string
		message string
	}{
		{"no file", []string{}, msgMissingFile},
		{"no nats url", []string{"--file", "c.png"}, msgMissingNATSURL},
	}

	for _, testCase := range tests {
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			err := run(context.Background(), testCase.args, &bytes.Buffer{})

			var missing *cli.MissingArgError
			require.ErrorAs(t, err, &missing)
			assert.Equal(t, testCase.message, missing.Message)
		})
	}
}

// startResponder runs a JetStream server and a fake classifier that replies
// with the uppercased stored content.
func startResponder(t *testing.T) string {
	t.Helper()

	opts := test.DefaultTestOptions
	opts.Port = -1
	opts.JetStream = true
	opts.StoreDir = t.TempDir()

	server := test.RunServer(&opts)

	natsConnection, err := nats.Connect(server.ClientURL())
	require.NoError(t, err)

	t.Cleanup(func() {
		natsConnection.Close()
		server.Shutdown()
	})

	jetStream, err := natsConnection.JetStream()
	require.NoError(t, err)

	store, err := objectstore.New(jetStream, "CAPTCHA_FILES")
	require.NoError(t, err)

	_, err = natsConnection.Subscribe(testSubject, func(msg *nats.Msg) {
		var event core.CaptchaSubmittedEvent
		if json.Unmarshal(msg.Data, &event) != nil || event.CaptchaType != core.CaptchaAudio {
			return
		}

		data, downloadErr := store.Download(context.Background(), event.CaptchaKey)
		if downloadErr != nil {
			return
		}

		reply, _ := json.Marshal(core.CaptchaClassifiedEvent{
			Header:     event.Header,
			CaptchaKey: event.CaptchaKey,
			Label:      strings.ToUpper(string(data)),
		})
		_ = msg.Respond(reply)
	})
	require.NoError(t, err)
	require.NoError(t, natsConnection.Flush())

	return server.ClientURL()
}

func TestRun_PrintsLabel(t *testing.T) {
	t.Parallel()

	natsURL := startResponder(t)
	dir := t.TempDir()

	captcha := filepath.Join(dir, "sample.mp3")
	require.NoError(t, os.WriteFile(captcha, []byte("x7k2p"), 0o600))

	configPath := filepath.Join(dir, "captcha.toml")
	configBody := fmt.Sprintf("[nats]\ncaptcha_submitted_subject = %q\n\n[paths]\nbase_logs_dir = %q\n",
		testSubject, dir)
	require.NoError(t, os.WriteFile(configPath, []byte(configBody), 0o600))

	var stdout bytes.Buffer

	err := run(context.Background(), []string{
		"--config", configPath, "--nats-url", natsURL, "--file", captcha,
		"--captcha-type", "audio", "--timeout", "5s",
	}, &stdout)
	require.NoError(t, err)
	assert.Equal(t, "sample.mp3, X7K2P\n", stdout.String())
}

func TestRun_NoResponderTimesOut(t *testing.T) {
	t.Parallel()

	natsURL := startResponder(t)
	dir := t.TempDir()

	captcha := filepath.Join(dir, "sample.png")
	require.NoError(t, os.WriteFile(captcha, []byte("png"), 0o600))

	configPath := filepath.Join(dir, "captcha.toml")
	configBody := fmt.Sprintf("[nats]\ncaptcha_submitted_subject = %q\n\n[paths]\nbase_logs_dir = %q\n",
		testSubject, dir)
	require.NoError(t, os.WriteFile(configPath, []byte(configBody), 0o600))

	// The responder ignores image captchas.
	err := run(context.Background(), []string{
		"--config", configPath, "--nats-url", natsURL, "--file", captcha, "--timeout", "500ms",
	}, &bytes.Buffer{})
	require.ErrorIs(t, err, context.DeadlineExceeded)
}
