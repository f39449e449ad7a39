package synth

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"strings"

	"google.golang.org/api/option"
	texttospeech "google.golang.org/api/texttospeech/v1"
)

const (
	googleGenderFemale = "FEMALE"
	googleEncodingMP3  = "MP3"
	googleEnglishLang  = "en-"
	googleDefaultLang  = "en-US"
)

// GoogleCloud synthesizes with the Google Cloud Text-to-Speech API using every
// female English voice.
type GoogleCloud struct {
	service *texttospeech.Service
}

// NewGoogleCloud builds a client. APIKey is treated as a service account file
// when such a file exists, otherwise as an API key.
func NewGoogleCloud(ctx context.Context, opts Options) (*GoogleCloud, error) {
	clientOptions := []option.ClientOption{}

	switch {
	case opts.HTTPClient != nil:
		clientOptions = append(clientOptions, option.WithHTTPClient(opts.HTTPClient))
	case opts.APIKey == "":
		return nil, ErrMissingAPIKey
	case isFile(opts.APIKey):
		clientOptions = append(clientOptions, option.WithCredentialsFile(opts.APIKey))
	default:
		clientOptions = append(clientOptions, option.WithAPIKey(opts.APIKey))
	}

	if opts.Endpoint != "" {
		clientOptions = append(clientOptions, option.WithEndpoint(opts.Endpoint))
	}

	service, err := texttospeech.NewService(ctx, clientOptions...)
	if err != nil {
		return nil, fmt.Errorf("failed to create google text-to-speech client: %w", err)
	}

	return &GoogleCloud{service: service}, nil
}

// Name returns the provider name.
func (g *GoogleCloud) Name() string {
	return APIGoogleCloud
}

// Voices lists the female voices that speak an en-* language.
func (g *GoogleCloud) Voices(ctx context.Context) ([]string, error) {
	response, err := g.service.Voices.List().Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to list voices: %w", err)
	}

	var voices []string

	for _, voice := range response.Voices {
		if voice.SsmlGender != googleGenderFemale {
			continue
		}

		for _, language := range voice.LanguageCodes {
			if strings.HasPrefix(language, googleEnglishLang) {
				voices = append(voices, voice.Name)

				break
			}
		}
	}

	if len(voices) == 0 {
		return nil, ErrNoVoices
	}

	return voices, nil
}

// Synthesize renders text as MP3 with the named voice.
func (g *GoogleCloud) Synthesize(ctx context.Context, text, voice string) ([]byte, error) {
	if text == "" {
		return nil, ErrEmptyText
	}

	request := &texttospeech.SynthesizeSpeechRequest{
		Input: &texttospeech.SynthesisInput{Text: text},
		Voice: &texttospeech.VoiceSelectionParams{
			Name:         voice,
			LanguageCode: voiceLanguage(voice),
			SsmlGender:   googleGenderFemale,
		},
		AudioConfig: &texttospeech.AudioConfig{
			AudioEncoding: googleEncodingMP3,
			SpeakingRate:  1,
		},
	}

	response, err := g.service.Text.Synthesize(request).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("google synthesis with voice %s failed: %w", voice, err)
	}

	audio, err := base64.StdEncoding.DecodeString(response.AudioContent)
	if err != nil {
		return nil, fmt.Errorf("failed to decode audio content: %w", err)
	}

	if len(audio) == 0 {
		return nil, ErrEmptyAudio
	}

	return audio, nil
}

// voiceLanguage extracts the language code from names like "en-GB-Wavenet-A".
func voiceLanguage(voice string) string {
	parts := strings.SplitN(voice, "-", 3)
	if len(parts) < 3 {
		return googleDefaultLang
	}

	return parts[0] + "-" + parts[1]
}

func isFile(path string) bool {
	info, err := os.Stat(path)

	return err == nil && info.Mode().IsRegular()
}
