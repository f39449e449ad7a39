package synth

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

const (
	gttsDefaultEndpoint = "https://translate.google.com"
	gttsPath            = "/translate_tts"
	gttsLanguage        = "en"
	gttsClient          = "tw-ob"
)

// GTTS uses the Google Translate speech endpoint with its single English voice.
type GTTS struct {
	httpClient *http.Client
	baseURL    string
}

// NewGTTS builds a client. No key is needed.
func NewGTTS(opts Options) *GTTS {
	baseURL := opts.Endpoint
	if baseURL == "" {
		baseURL = gttsDefaultEndpoint
	}

	return &GTTS{httpClient: httpClient(opts), baseURL: strings.TrimSuffix(baseURL, "/")}
}

// Name returns the provider name.
func (g *GTTS) Name() string {
	return APIGTTS
}

// Voices returns the only voice, the English language code.
func (g *GTTS) Voices(context.Context) ([]string, error) {
	return []string{gttsLanguage}, nil
}

// Synthesize renders text as MP3 at normal speed.
func (g *GTTS) Synthesize(ctx context.Context, text, voice string) ([]byte, error) {
	if text == "" {
		return nil, ErrEmptyText
	}

	query := url.Values{}
	query.Set("ie", "UTF-8")
	query.Set("q", text)
	query.Set("tl", voice)
	query.Set("client", gttsClient)
	query.Set("ttsspeed", "1")

	request, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+gttsPath+"?"+query.Encode(), http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	return doAudioRequest(g.httpClient, request)
}
