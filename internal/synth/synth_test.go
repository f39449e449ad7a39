package synth_test

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/book-expert/captcha-lab/internal/synth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fakeMP3 = []byte{0xFF, 0xFB, 0x90, 0x44, 0x00}

func TestSpaceOut(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "a b 3", synth.SpaceOut("ab3"))
	assert.Equal(t, "x", synth.SpaceOut("x"))
	assert.Empty(t, synth.SpaceOut(""))
}

func TestPacingFor(t *testing.T) {
	t.Parallel()

	assert.Positive(t, synth.PacingFor("gc"))
	assert.Greater(t, synth.PacingFor("AZURE"), synth.PacingFor("gc"))
	assert.Zero(t, synth.PacingFor("aws"))
	assert.Zero(t, synth.PacingFor("gtts"))
}

func TestNew_Errors(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	_, err := synth.New(ctx, synth.Options{API: "polly"})
	require.ErrorIs(t, err, synth.ErrUnknownAPI)

	_, err = synth.New(ctx, synth.Options{API: "azure"})
	require.ErrorIs(t, err, synth.ErrMissingAPIKey)

	_, err = synth.New(ctx, synth.Options{API: "aws", APIKey: "secret"})
	require.ErrorIs(t, err, synth.ErrMissingAPIKeyID)

	_, err = synth.New(ctx, synth.Options{API: "gc"})
	require.ErrorIs(t, err, synth.ErrMissingAPIKey)

	gtts, err := synth.New(ctx, synth.Options{API: "GTTS"})
	require.NoError(t, err)
	assert.Equal(t, synth.APIGTTS, gtts.Name())
}

func TestAzure_Synthesize(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/cognitiveservices/v1", r.URL.Path)
		assert.Equal(t, "secret", r.Header.Get("Ocp-Apim-Subscription-Key"))
		assert.Equal(t, "audio-16khz-32kbitrate-mono-mp3", r.Header.Get("X-Microsoft-OutputFormat"))
		assert.Equal(t, "application/ssml+xml", r.Header.Get("Content-Type"))

		body, err := io.ReadAll(r.Body)
		assert.NoError(t, err)
		assert.Contains(t, string(body), ">a &lt; 7</voice>")
		assert.Contains(t, string(body), "voice name='Microsoft Server Speech Text to Speech Voice (en-US, ZiraRUS)'")

		w.Header().Set("Content-Type", "audio/mpeg")
		_, _ = w.Write(fakeMP3)
	}))
	defer server.Close()

	azure, err := synth.NewAzure(synth.Options{APIKey: "secret", Endpoint: server.URL + "/"})
	require.NoError(t, err)

	voices, err := azure.Voices(context.Background())
	require.NoError(t, err)
	require.Len(t, voices, 9)

	audio, err := azure.Synthesize(context.Background(), "a<7", voices[6])
	require.NoError(t, err)
	assert.Equal(t, fakeMP3, audio)
}

func TestAzure_ErrorStatus(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	}))
	defer server.Close()

	azure, err := synth.NewAzure(synth.Options{APIKey: "secret", Endpoint: server.URL})
	require.NoError(t, err)

	_, err = azure.Synthesize(context.Background(), "abc", "voice")
	require.ErrorIs(t, err, synth.ErrServiceNonOK)
	assert.Contains(t, err.Error(), "quota exceeded")

	_, err = azure.Synthesize(context.Background(), "", "voice")
	require.ErrorIs(t, err, synth.ErrEmptyText)
}

func TestGTTS_Synthesize(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/translate_tts", r.URL.Path)
		assert.Equal(t, "x7k", r.URL.Query().Get("q"))
		assert.Equal(t, "en", r.URL.Query().Get("tl"))

		_, _ = w.Write(fakeMP3)
	}))
	defer server.Close()

	gtts := synth.NewGTTS(synth.Options{Endpoint: server.URL})

	voices, err := gtts.Voices(context.Background())
	require.NoError(t, err)
	require.Equal(t, []string{"en"}, voices)

	audio, err := gtts.Synthesize(context.Background(), "x7k", voices[0])
	require.NoError(t, err)
	assert.Equal(t, fakeMP3, audio)
}

func TestGTTS_EmptyBody(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	defer server.Close()

	_, err := synth.NewGTTS(synth.Options{Endpoint: server.URL}).Synthesize(context.Background(), "abc", "en")
	require.ErrorIs(t, err, synth.ErrEmptyAudio)
}

func TestGoogleCloud_VoicesAndSynthesize(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")

		switch {
		case strings.HasSuffix(r.URL.Path, "/v1/voices"):
			_, _ = io.WriteString(w, `{"voices": [
				{"name": "en-GB-Wavenet-A", "languageCodes": ["en-GB"], "ssmlGender": "FEMALE"},
				{"name": "en-US-Wavenet-B", "languageCodes": ["en-US"], "ssmlGender": "MALE"},
				{"name": "de-DE-Wavenet-A", "languageCodes": ["de-DE"], "ssmlGender": "FEMALE"},
				{"name": "en-IN-Standard-A", "languageCodes": ["en-IN"], "ssmlGender": "FEMALE"}
			]}`)
		case strings.HasSuffix(r.URL.Path, "/v1/text:synthesize"):
			var request struct {
				Input struct {
					Text string `json:"text"`
				} `json:"input"`
				Voice struct {
					Name         string `json:"name"`
					LanguageCode string `json:"languageCode"`
				} `json:"voice"`
				AudioConfig struct {
					AudioEncoding string `json:"audioEncoding"`
				} `json:"audioConfig"`
			}

			assert.NoError(t, json.NewDecoder(r.Body).Decode(&request))
			assert.Equal(t, "q2z", request.Input.Text)
			assert.Equal(t, "en-GB-Wavenet-A", request.Voice.Name)
			assert.Equal(t, "en-GB", request.Voice.LanguageCode)
			assert.Equal(t, "MP3", request.AudioConfig.AudioEncoding)

			_ = json.NewEncoder(w).Encode(map[string]string{
				"audioContent": base64.StdEncoding.EncodeToString(fakeMP3),
			})
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	google, err := synth.NewGoogleCloud(context.Background(), synth.Options{
		Endpoint:   server.URL + "/",
		HTTPClient: server.Client(),
	})
	require.NoError(t, err)

	voices, err := google.Voices(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"en-GB-Wavenet-A", "en-IN-Standard-A"}, voices)

	audio, err := google.Synthesize(context.Background(), "q2z", voices[0])
	require.NoError(t, err)
	assert.Equal(t, fakeMP3, audio)
}

func TestPolly_Synthesize(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/speech", r.URL.Path)
		assert.Contains(t, r.Header.Get("Authorization"), "AKIDEXAMPLE")

		var request map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&request))
		assert.Equal(t, "a b 9", request["Text"])
		assert.Equal(t, "Joanna", request["VoiceId"])
		assert.Equal(t, "mp3", request["OutputFormat"])
		assert.Equal(t, "standard", request["Engine"])

		w.Header().Set("Content-Type", "audio/mpeg")
		_, _ = w.Write(fakeMP3)
	}))
	defer server.Close()

	polly, err := synth.NewPolly(synth.Options{
		APIKey:     "secret",
		APIKeyID:   "AKIDEXAMPLE",
		Endpoint:   server.URL,
		HTTPClient: server.Client(),
	})
	require.NoError(t, err)

	voices, err := polly.Voices(context.Background())
	require.NoError(t, err)
	assert.Contains(t, voices, "Joanna")

	audio, err := polly.Synthesize(context.Background(), "ab9", "Joanna")
	require.NoError(t, err)
	assert.Equal(t, fakeMP3, audio)
}
