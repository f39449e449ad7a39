// Command classify labels every CAPTCHA in a directory with a pre-trained model
// and writes "filename, label" lines to an output file.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/book-expert/captcha-lab/internal/classify"
	"github.com/book-expert/captcha-lab/internal/cli"
	"github.com/book-expert/captcha-lab/internal/config"
	"github.com/book-expert/captcha-lab/internal/core"
	"github.com/book-expert/captcha-lab/internal/imaging"
)

// Flag names.
const (
	flagCaptchaType = "captcha-type"
	flagModelName   = "model-name"
	flagCaptchaDir  = "captcha-dir"
	flagOutput      = "output"
	flagSymbols     = "symbols"
	flagThreshold   = "threshold"
	flagConfig      = "config"
	flagRuntimeLib  = "onnxruntime-lib"
)

// Flag descriptions.
const (
	flagCaptchaTypeDesc = "Kind of captchas to classify: image or audio"
	flagModelNameDesc   = "Model name to use for classification"
	flagCaptchaDirDesc  = "Where to read the captchas to break"
	flagOutputDesc      = "File where the classifications should be saved"
	flagSymbolsDesc     = "File with the symbols to use in captchas"
	flagThresholdDesc   = "Image binarization: otsu or adaptive"
	flagConfigDesc      = "Path to a TOML configuration file"
	flagRuntimeLibDesc  = "onnxruntime shared library used for .onnx models"
)

// Messages for missing arguments.
const (
	msgMissingModel      = "Please specify the CNN model to use"
	msgMissingCaptchaDir = "Please specify the directory with captchas to break"
	msgMissingOutput     = "Please specify the path to the output file"
	msgMissingSymbols    = "Please specify the captcha symbols file"
)

// Output and log messages.
const (
	logFileName        = "classify.log"
	msgSymbolSet       = "Classifying captchas with symbol set {%s}\n"
	logFmtStarting     = "Classifying %s captchas in %s with model %s"
	logFmtFinished     = "Classified %d captchas into %s"
	errFmtCreateOutput = "failed to create output file %s: %w"
	errFmtCloseOutput  = "failed to close output file %s: %w"
)

// appFlags holds the parsed command-line flag values.
type appFlags struct {
	captchaType string
	modelName   string
	captchaDir  string
	output      string
	symbols     string
	threshold   string
	config      string
	runtimeLib  string
}

// settings are the flags merged over the configuration file.
type settings struct {
	options    classify.Options
	captchaDir string
	output     string
	logsDir    string
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

	log, err := cli.NewLogger(resolved.logsDir, logFileName)
	if err != nil {
		return err
	}
	defer cli.CloseLogger(log)

	classifier, err := classify.NewFromOptions(resolved.options, log)
	if err != nil {
		log.Error("Failed to load classifier: %v", err)

		return err
	}

	defer func() {
		closeErr := classifier.Close()
		if closeErr != nil {
			log.Warn("Failed to release model: %v", closeErr)
		}
	}()

	fmt.Fprintf(stdout, msgSymbolSet, classifier.Alphabet())
	log.Info(logFmtStarting, classifier.CaptchaType(), resolved.captchaDir, resolved.options.ModelName)

	count, err := classifyInto(ctx, classifier, resolved, stdout)
	if err != nil {
		log.Error("Classification failed: %v", err)

		return err
	}

	log.Info(logFmtFinished, count, resolved.output)

	return nil
}

// classifyInto writes the labels of resolved.captchaDir to resolved.output.
func classifyInto(
	ctx context.Context,
	classifier *classify.Classifier,
	resolved settings,
	stdout io.Writer,
) (int, error) {
	out, err := os.Create(resolved.output)
	if err != nil {
		return 0, fmt.Errorf(errFmtCreateOutput, resolved.output, err)
	}

	count, classifyErr := classifier.ClassifyDir(ctx, resolved.captchaDir, out, stdout)

	closeErr := out.Close()
	if classifyErr != nil {
		return count, classifyErr
	}

	if closeErr != nil {
		return count, fmt.Errorf(errFmtCloseOutput, resolved.output, closeErr)
	}

	return count, nil
}

// parseFlags parses args into appFlags.
func parseFlags(args []string) (appFlags, error) {
	var flags appFlags

	flagSet := flag.NewFlagSet("classify", flag.ContinueOnError)
	flagSet.StringVar(&flags.captchaType, flagCaptchaType, "", flagCaptchaTypeDesc)
	flagSet.StringVar(&flags.modelName, flagModelName, "", flagModelNameDesc)
	flagSet.StringVar(&flags.captchaDir, flagCaptchaDir, "", flagCaptchaDirDesc)
	flagSet.StringVar(&flags.output, flagOutput, "", flagOutputDesc)
	flagSet.StringVar(&flags.symbols, flagSymbols, "", flagSymbolsDesc)
	flagSet.StringVar(&flags.threshold, flagThreshold, "", flagThresholdDesc)
	flagSet.StringVar(&flags.config, flagConfig, "", flagConfigDesc)
	flagSet.StringVar(&flags.runtimeLib, flagRuntimeLib, "", flagRuntimeLibDesc)

	err := flagSet.Parse(args)
	if err != nil {
		return appFlags{}, fmt.Errorf("failed to parse flags: %w", err)
	}

	return flags, nil
}

// resolve merges flags over cfg and checks the required arguments in the
// order they are reported.
func resolve(flags appFlags, cfg *config.Config) (settings, error) {
	modelName := cli.StringOr(flags.modelName, cfg.Classifier.ModelName)
	if modelName == "" {
		return settings{}, cli.MissingArg(msgMissingModel)
	}

	if flags.captchaDir == "" {
		return settings{}, cli.MissingArg(msgMissingCaptchaDir)
	}

	if flags.output == "" {
		return settings{}, cli.MissingArg(msgMissingOutput)
	}

	symbolsPath := cli.StringOr(flags.symbols, cfg.Classifier.SymbolsPath)
	if symbolsPath == "" {
		return settings{}, cli.MissingArg(msgMissingSymbols)
	}

	captchaType, err := core.ParseCaptchaType(cli.StringOr(flags.captchaType, cfg.Classifier.CaptchaType))
	if err != nil {
		return settings{}, err
	}

	threshold, err := imaging.ParseMode(cli.StringOr(flags.threshold, cfg.Classifier.Threshold))
	if err != nil {
		return settings{}, err
	}

	return settings{
		options: classify.Options{
			CaptchaType:    captchaType,
			ModelName:      modelName,
			SymbolsPath:    symbolsPath,
			Threshold:      threshold,
			Audio:          cfg.Audio.Settings(),
			RuntimeLibrary: cli.StringOr(flags.runtimeLib, cfg.Classifier.RuntimeLibrary),
		},
		captchaDir: flags.captchaDir,
		output:     flags.output,
		logsDir:    cfg.Paths.BaseLogsDir,
	}, nil
}
