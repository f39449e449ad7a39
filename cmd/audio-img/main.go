// Command audio-img renders a directory of audio CAPTCHAs as 128x64 mel
// spectrogram PNGs.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/book-expert/captcha-lab/internal/cli"
	"github.com/book-expert/captcha-lab/internal/config"
	"github.com/book-expert/captcha-lab/internal/convert"
	"github.com/book-expert/captcha-lab/internal/spectrogram"
)

// Flag names.
const (
	flagSrcDir  = "src-dir"
	flagDestDir = "dest-dir"
	flagWorkers = "n"
	flagConfig  = "config"
)

// Flag descriptions.
const (
	flagSrcDirDesc  = "Directory with the audio files to convert"
	flagDestDirDesc = "Directory where the spectrogram images are written"
	flagWorkersDesc = "Number of files converted in parallel"
	flagConfigDesc  = "Path to a TOML configuration file"
)

// Messages printed on invalid arguments.
const (
	msgMissingSrcDir  = "Please specify the directory with audio files to convert"
	msgMissingDestDir = "Please specify the directory where the images should be saved"
	msgSameDirectory  = "source and destination directory must be different!"
)

// Output and log messages.
const (
	logFileName    = "audio-img.log"
	msgSummary     = "Converted %d files, %d failed\n"
	logFmtStarting = "Converting %s into %s with %d workers"
)

// appFlags holds the parsed command-line flag values.
type appFlags struct {
	srcDir  string
	destDir string
	workers int
	config  string
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx, os.Args[1:], os.Stdout, os.Stderr)

	stop()
	cli.Exit(err)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	flags, err := parseFlags(args)
	if err != nil {
		return err
	}

	err = validate(flags)
	if err != nil {
		return err
	}

	cfg, err := config.LoadFile(flags.config)
	if err != nil {
		return err
	}

	generator, err := spectrogram.NewGenerator(cfg.Audio.Settings())
	if err != nil {
		return err
	}

	log, err := cli.NewLogger(cfg.Paths.BaseLogsDir, logFileName)
	if err != nil {
		return err
	}
	defer cli.CloseLogger(log)

	workers := cli.IntOr(flags.workers, cfg.Audio.Workers)
	log.Info(logFmtStarting, flags.srcDir, flags.destDir, workers)

	converter := convert.New(generator, workers, log, stderr)

	result, err := converter.ConvertDir(ctx, flags.srcDir, flags.destDir)
	if errors.Is(err, convert.ErrSameDirectory) {
		return cli.MissingArg(msgSameDirectory)
	}

	if err != nil {
		log.Error("Conversion failed: %v", err)

		return err
	}

	fmt.Fprintf(stdout, msgSummary, result.Succeeded, result.Failed)

	return nil
}

// parseFlags parses args into appFlags.
func parseFlags(args []string) (appFlags, error) {
	var flags appFlags

	flagSet := flag.NewFlagSet("audio-img", flag.ContinueOnError)
	flagSet.StringVar(&flags.srcDir, flagSrcDir, "", flagSrcDirDesc)
	flagSet.StringVar(&flags.destDir, flagDestDir, "", flagDestDirDesc)
	flagSet.IntVar(&flags.workers, flagWorkers, 0, flagWorkersDesc)
	flagSet.StringVar(&flags.config, flagConfig, "", flagConfigDesc)

	err := flagSet.Parse(args)
	if err != nil {
		return appFlags{}, fmt.Errorf("failed to parse flags: %w", err)
	}

	return flags, nil
}

func validate(flags appFlags) error {
	switch {
	case flags.srcDir == "":
		return cli.MissingArg(msgMissingSrcDir)
	case flags.destDir == "":
		return cli.MissingArg(msgMissingDestDir)
	default:
		return nil
	}
}
