// Command generate-audio synthesizes labelled audio CAPTCHAs through a
// text-to-speech provider, one MP3 per provider voice.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"math/rand/v2"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/book-expert/captcha-lab/internal/cli"
	"github.com/book-expert/captcha-lab/internal/config"
	"github.com/book-expert/captcha-lab/internal/symbols"
	"github.com/book-expert/captcha-lab/internal/synth"
)

// Flag names.
const (
	flagAPI       = "api"
	flagAPIKey    = "api-key"
	flagAPIKeyID  = "api-key-id"
	flagRegion    = "region"
	flagEndpoint  = "endpoint"
	flagOutputDir = "output-dir"
	flagLength    = "length"
	flagCount     = "count"
	flagScramble  = "scramble"
	flagSymbols   = "symbols"
	flagWorkers   = "workers"
	flagSeed      = "seed"
	flagConfig    = "config"
)

// Flag descriptions.
const (
	flagAPIDesc       = "Which API to use. Choose from (gc/azure/aws/gtts)"
	flagAPIKeyDesc    = "API_KEY or the path to the Key file"
	flagAPIKeyIDDesc  = "AWS access key id"
	flagRegionDesc    = "Azure or AWS region"
	flagEndpointDesc  = "Override the provider base URL"
	flagOutputDirDesc = "Where to store the generated audio samples"
	flagLengthDesc    = "Length of captchas in characters"
	flagCountDesc     = "How many captchas to generate"
	flagScrambleDesc  = "Whether to scramble file names"
	flagSymbolsDesc   = "File with the symbols to use in captchas"
	flagWorkersDesc   = "Number of captchas synthesized in parallel"
	flagSeedDesc      = "Random seed for the captcha texts (0 picks one)"
	flagConfigDesc    = "Path to a TOML configuration file"
)

// Messages for missing arguments.
const (
	msgMissingAPI       = "Please specify the cloud platform to use"
	msgMissingAPIKey    = "Please specify the API_KEY or the path to the Key file"
	msgMissingAPIKeyID  = "Please specify the AWS access key id"
	msgMissingOutputDir = "Please specify the samples output directory"
	msgMissingLength    = "Please specify the captcha length"
	msgMissingCount     = "Please specify the captcha count to generate"
	msgMissingSymbols   = "Please specify the captcha symbols file"
)

// Output and log messages.
const (
	logFileName       = "generate-audio.log"
	msgCreatingOutput = "Creating output directory %s\n"
	msgSummary        = "Generated %d captchas, %d failed\n"
	logFmtStarting    = "Generating %d captchas of length %d with %s (seed %d)"
)

// appFlags holds the parsed command-line flag values.
type appFlags struct {
	api       string
	apiKey    string
	apiKeyID  string
	region    string
	endpoint  string
	outputDir string
	length    int
	count     int
	scramble  bool
	symbols   string
	workers   int
	seed      uint64
	config    string
}

// settings are the flags merged over the configuration file.
type settings struct {
	provider    synth.Options
	generator   synth.GeneratorConfig
	count       int
	symbolsPath string
	seed        uint64
	logsDir     string
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx, os.Args[1:], os.Stdout)

	stop()
	cli.Exit(err)
}

func run(ctx context.Context, args []string, stdout io.Writer) error {
	flags, err := parseFlags(args)
	if err != nil {
		return err
	}

	cfg, err := config.LoadFile(flags.config)
	if err != nil {
		return err
	}

	resolved, err := resolve(flags, cfg)
	if err != nil {
		return err
	}

	alphabet, err := symbols.Load(resolved.symbolsPath)
	if err != nil {
		return err
	}

	log, err := cli.NewLogger(resolved.logsDir, logFileName)
	if err != nil {
		return err
	}
	defer cli.CloseLogger(log)

	synthesizer, err := synth.New(ctx, resolved.provider)
	if err != nil {
		log.Error("Failed to create %s client: %v", resolved.provider.API, err)

		return err
	}

	_, statErr := os.Stat(resolved.generator.OutputDir)
	if os.IsNotExist(statErr) {
		fmt.Fprintf(stdout, msgCreatingOutput, resolved.generator.OutputDir)
	}

	rng := rand.New(rand.NewPCG(resolved.seed, resolved.seed))

	generator, err := synth.NewGenerator(synthesizer, alphabet, resolved.generator, rng, log, stdout)
	if err != nil {
		return err
	}

	log.Info(logFmtStarting, resolved.count, resolved.generator.Length, synthesizer.Name(), resolved.seed)

	result, err := generator.Generate(ctx, resolved.count)
	if err != nil {
		log.Error("Generation failed: %v", err)

		return err
	}

	fmt.Fprintf(stdout, msgSummary, result.Succeeded, result.Failed)

	return nil
}

// parseFlags parses args into appFlags.
func parseFlags(args []string) (appFlags, error) {
	var flags appFlags

	flagSet := flag.NewFlagSet("generate-audio", flag.ContinueOnError)
	flagSet.StringVar(&flags.api, flagAPI, "", flagAPIDesc)
	flagSet.StringVar(&flags.apiKey, flagAPIKey, "", flagAPIKeyDesc)
	flagSet.StringVar(&flags.apiKeyID, flagAPIKeyID, "", flagAPIKeyIDDesc)
	flagSet.StringVar(&flags.region, flagRegion, "", flagRegionDesc)
	flagSet.StringVar(&flags.endpoint, flagEndpoint, "", flagEndpointDesc)
	flagSet.StringVar(&flags.outputDir, flagOutputDir, "", flagOutputDirDesc)
	flagSet.IntVar(&flags.length, flagLength, 0, flagLengthDesc)
	flagSet.IntVar(&flags.count, flagCount, 0, flagCountDesc)
	flagSet.BoolVar(&flags.scramble, flagScramble, false, flagScrambleDesc)
	flagSet.StringVar(&flags.symbols, flagSymbols, "", flagSymbolsDesc)
	flagSet.IntVar(&flags.workers, flagWorkers, 0, flagWorkersDesc)
	flagSet.Uint64Var(&flags.seed, flagSeed, 0, flagSeedDesc)
	flagSet.StringVar(&flags.config, flagConfig, "", flagConfigDesc)

	err := flagSet.Parse(args)
	if err != nil {
		return appFlags{}, fmt.Errorf("failed to parse flags: %w", err)
	}

	return flags, nil
}

// resolve merges flags over cfg and checks the required arguments in the
// order they are reported. Only gtts works without a key.
func resolve(flags appFlags, cfg *config.Config) (settings, error) {
	tts := cfg.TTS

	api := strings.ToLower(cli.StringOr(flags.api, tts.API))
	if api == "" {
		return settings{}, cli.MissingArg(msgMissingAPI)
	}

	apiKey := cli.StringOr(flags.apiKey, tts.APIKey)
	if apiKey == "" && api != synth.APIGTTS {
		return settings{}, cli.MissingArg(msgMissingAPIKey)
	}

	apiKeyID := cli.StringOr(flags.apiKeyID, tts.APIKeyID)
	if apiKeyID == "" && api == synth.APIAWS {
		return settings{}, cli.MissingArg(msgMissingAPIKeyID)
	}

	outputDir := cli.StringOr(flags.outputDir, tts.OutputDir)
	if outputDir == "" {
		return settings{}, cli.MissingArg(msgMissingOutputDir)
	}

	length := cli.IntOr(flags.length, tts.Length)
	if length <= 0 {
		return settings{}, cli.MissingArg(msgMissingLength)
	}

	count := cli.IntOr(flags.count, tts.Count)
	if count <= 0 {
		return settings{}, cli.MissingArg(msgMissingCount)
	}

	symbolsPath := cli.StringOr(flags.symbols, tts.SymbolsPath)
	if symbolsPath == "" {
		return settings{}, cli.MissingArg(msgMissingSymbols)
	}

	seed := flags.seed
	if seed == 0 {
		seed = rand.Uint64()
	}

	return settings{
		provider: synth.Options{
			API:      api,
			APIKey:   apiKey,
			APIKeyID: apiKeyID,
			Region:   cli.StringOr(flags.region, tts.Region),
			Endpoint: cli.StringOr(flags.endpoint, tts.Endpoint),
			Timeout:  time.Duration(tts.TimeoutSeconds) * time.Second,
		},
		generator: synth.GeneratorConfig{
			OutputDir: outputDir,
			Length:    length,
			Scramble:  flags.scramble || tts.Scramble,
			Workers:   cli.IntOr(flags.workers, tts.Workers),
			Pacing:    synth.PacingFor(api),
		},
		count:       count,
		symbolsPath: symbolsPath,
		seed:        seed,
		logsDir:     cfg.Paths.BaseLogsDir,
	}, nil
}
