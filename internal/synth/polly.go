package synth

import (
	"context"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/polly"
	"github.com/aws/aws-sdk-go-v2/service/polly/types"
)

const (
	pollyDefaultRegion = "eu-west-1"
	pollyMaxAttempts   = 1
)

var pollyVoices = []string{"Salli", "Joanna", "Kendra", "Kimberly", "Amy", "Emma", "Nicole", "Raveena", "Aditi"}

// Polly synthesizes with Amazon Polly's standard engine.
type Polly struct {
	client *polly.Client
}

// NewPolly builds a client from a static access key pair.
func NewPolly(opts Options) (*Polly, error) {
	if opts.APIKey == "" {
		return nil, ErrMissingAPIKey
	}

	if opts.APIKeyID == "" {
		return nil, ErrMissingAPIKeyID
	}

	region := opts.Region
	if region == "" {
		region = pollyDefaultRegion
	}

	pollyOptions := polly.Options{
		Region:           region,
		Credentials:      credentials.NewStaticCredentialsProvider(opts.APIKeyID, opts.APIKey, ""),
		HTTPClient:       httpClient(opts),
		RetryMaxAttempts: pollyMaxAttempts,
	}

	if opts.Endpoint != "" {
		pollyOptions.BaseEndpoint = aws.String(opts.Endpoint)
	}

	return &Polly{client: polly.New(pollyOptions)}, nil
}

// Name returns the provider name.
func (p *Polly) Name() string {
	return APIAWS
}

// Voices returns the fixed set of English female voices.
func (p *Polly) Voices(context.Context) ([]string, error) {
	return append([]string(nil), pollyVoices...), nil
}

// Synthesize renders the spaced-out text as MP3 with the named voice.
func (p *Polly) Synthesize(ctx context.Context, text, voice string) ([]byte, error) {
	if text == "" {
		return nil, ErrEmptyText
	}

	output, err := p.client.SynthesizeSpeech(ctx, &polly.SynthesizeSpeechInput{
		Engine:       types.EngineStandard,
		OutputFormat: types.OutputFormatMp3,
		Text:         aws.String(SpaceOut(text)),
		VoiceId:      types.VoiceId(voice),
	})
	if err != nil {
		return nil, fmt.Errorf("polly synthesis with voice %s failed: %w", voice, err)
	}
	defer output.AudioStream.Close()

	audio, err := io.ReadAll(output.AudioStream)
	if err != nil {
		return nil, fmt.Errorf("failed to read audio stream: %w", err)
	}

	if len(audio) == 0 {
		return nil, ErrEmptyAudio
	}

	return audio, nil
}
