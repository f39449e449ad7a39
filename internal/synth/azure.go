package synth

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"strings"
)

const (
	azureDefaultRegion = "westeurope"
	azureEndpointFmt   = "https://%s.tts.speech.microsoft.com"
	azureSynthesisPath = "/cognitiveservices/v1"
	azureOutputFormat  = "audio-16khz-32kbitrate-mono-mp3"
	azureUserAgent     = "captcha-lab"
	azureSSMLFormat    = "<speak version='1.0' xml:lang='en-US'><voice name='%s'>%s</voice></speak>"

	headerContentType  = "Content-Type"
	headerSubscription = "Ocp-Apim-Subscription-Key"
	headerOutputFormat = "X-Microsoft-OutputFormat"
	headerUserAgent    = "User-Agent"
	contentTypeSSML    = "application/ssml+xml"
)

var azureVoices = []string{
	"Microsoft Server Speech Text to Speech Voice (en-AU, Catherine)",
	"Microsoft Server Speech Text to Speech Voice (en-AU, HayleyRUS)",
	"Microsoft Server Speech Text to Speech Voice (en-CA, Linda)",
	"Microsoft Server Speech Text to Speech Voice (en-CA, HeatherRUS)",
	"Microsoft Server Speech Text to Speech Voice (en-GB, Susan, Apollo)",
	"Microsoft Server Speech Text to Speech Voice (en-GB, HazelRUS)",
	"Microsoft Server Speech Text to Speech Voice (en-US, ZiraRUS)",
	"Microsoft Server Speech Text to Speech Voice (en-US, JessaRUS)",
	"Microsoft Server Speech Text to Speech Voice (en-US, Jessa24kRUS)",
}

// Azure synthesizes with the Azure Cognitive Services speech REST API.
type Azure struct {
	httpClient *http.Client
	baseURL    string
	key        string
}

// NewAzure builds a client for the configured region, westeurope by default.
func NewAzure(opts Options) (*Azure, error) {
	if opts.APIKey == "" {
		return nil, ErrMissingAPIKey
	}

	baseURL := opts.Endpoint
	if baseURL == "" {
		region := opts.Region
		if region == "" {
			region = azureDefaultRegion
		}

		baseURL = fmt.Sprintf(azureEndpointFmt, region)
	}

	return &Azure{
		httpClient: httpClient(opts),
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		key:        opts.APIKey,
	}, nil
}

// Name returns the provider name.
func (a *Azure) Name() string {
	return APIAzure
}

// Voices returns the fixed set of English female voices.
func (a *Azure) Voices(context.Context) ([]string, error) {
	return append([]string(nil), azureVoices...), nil
}

// Synthesize renders the spaced-out text as MP3 with the named voice.
func (a *Azure) Synthesize(ctx context.Context, text, voice string) ([]byte, error) {
	if text == "" {
		return nil, ErrEmptyText
	}

	body, err := ssml(SpaceOut(text), voice)
	if err != nil {
		return nil, err
	}

	request, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+azureSynthesisPath, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	request.Header.Set(headerContentType, contentTypeSSML)
	request.Header.Set(headerSubscription, a.key)
	request.Header.Set(headerOutputFormat, azureOutputFormat)
	request.Header.Set(headerUserAgent, azureUserAgent)

	return doAudioRequest(a.httpClient, request)
}

func ssml(text, voice string) ([]byte, error) {
	var escapedText, escapedVoice bytes.Buffer

	err := xml.EscapeText(&escapedText, []byte(text))
	if err != nil {
		return nil, fmt.Errorf("failed to escape text: %w", err)
	}

	err = xml.EscapeText(&escapedVoice, []byte(voice))
	if err != nil {
		return nil, fmt.Errorf("failed to escape voice: %w", err)
	}

	return fmt.Appendf(nil, azureSSMLFormat, escapedVoice.String(), escapedText.String()), nil
}

// doAudioRequest sends request and returns the non-empty body of a 200 response.
func doAudioRequest(client *http.Client, request *http.Request) ([]byte, error) {
	response, err := client.Do(request)
	if err != nil {
		return nil, fmt.Errorf("failed to send request to %s: %w", request.URL.Host, err)
	}
	defer response.Body.Close()

	if response.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(response.Body, 1024))

		return nil, fmt.Errorf(errFmtServiceStatus, ErrServiceNonOK, response.Status, strings.TrimSpace(string(detail)))
	}

	audio, err := io.ReadAll(response.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read audio data: %w", err)
	}

	if len(audio) == 0 {
		return nil, ErrEmptyAudio
	}

	return audio, nil
}
