// Command split-dataset copies a random sample of a training directory into a
// validation directory.
package main

import (
	"flag"
	"fmt"
	"io"
	"math/rand/v2"
	"os"

	"github.com/book-expert/captcha-lab/internal/cli"
	"github.com/book-expert/captcha-lab/internal/config"
	"github.com/book-expert/captcha-lab/internal/split"
)

// Flag names.
const (
	flagTrainingDir   = "training-data-dir"
	flagValidationDir = "validation-data-dir"
	flagPercentage    = "split-percentage"
	flagSeed          = "seed"
	flagConfig        = "config"
)

// Flag descriptions.
const (
	flagTrainingDirDesc   = "Where to read the training data to split"
	flagValidationDirDesc = "Where the validation dataset should be saved"
	flagPercentageDesc    = "Percentage of training dataset to be randomly sampled for validation"
	flagSeedDesc          = "Random seed (0 picks one)"
	flagConfigDesc        = "Path to a TOML configuration file"
)

// Messages for missing arguments.
const (
	msgMissingTrainingDir   = "Please specify the directory with training data to split"
	msgMissingValidationDir = "Please specify the directory where the validation dataset should be saved"
	msgMissingPercentage    = "Please specify the percentage of training data to use for validation"
)

// Output and log messages.
const (
	logFileName    = "split-dataset.log"
	msgSummary     = "Copied %d of %d files to %s\n"
	logFmtStarting = "Splitting %d%% of %s into %s (seed %d)"
	unsetPercent   = -1
)

// appFlags holds the parsed command-line flag values.
type appFlags struct {
	trainingDir   string
	validationDir string
	percentage    int
	seed          uint64
	config        string
}

func main() {
	cli.Exit(run(os.Args[1:], os.Stdout))
}

func run(args []string, stdout io.Writer) error {
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

	log, err := cli.NewLogger(cfg.Paths.BaseLogsDir, logFileName)
	if err != nil {
		return err
	}
	defer cli.CloseLogger(log)

	seed := flags.seed
	if seed == 0 {
		seed = rand.Uint64()
	}

	log.Info(logFmtStarting, flags.percentage, flags.trainingDir, flags.validationDir, seed)

	result, err := split.NewSeeded(seed, log).Split(flags.trainingDir, flags.validationDir, flags.percentage)
	if err != nil {
		log.Error("Split failed: %v", err)

		return err
	}

	fmt.Fprintf(stdout, msgSummary, result.Copied, result.Total, flags.validationDir)

	return nil
}

// parseFlags parses args into appFlags.
func parseFlags(args []string) (appFlags, error) {
	var flags appFlags

	flagSet := flag.NewFlagSet("split-dataset", flag.ContinueOnError)
	flagSet.StringVar(&flags.trainingDir, flagTrainingDir, "", flagTrainingDirDesc)
	flagSet.StringVar(&flags.validationDir, flagValidationDir, "", flagValidationDirDesc)
	flagSet.IntVar(&flags.percentage, flagPercentage, unsetPercent, flagPercentageDesc)
	flagSet.Uint64Var(&flags.seed, flagSeed, 0, flagSeedDesc)
	flagSet.StringVar(&flags.config, flagConfig, "", flagConfigDesc)

	err := flagSet.Parse(args)
	if err != nil {
		return appFlags{}, fmt.Errorf("failed to parse flags: %w", err)
	}

	return flags, nil
}

func validate(flags appFlags) error {
	switch {
	case flags.trainingDir == "":
		return cli.MissingArg(msgMissingTrainingDir)
	case flags.validationDir == "":
		return cli.MissingArg(msgMissingValidationDir)
	case flags.percentage == unsetPercent:
		return cli.MissingArg(msgMissingPercentage)
	default:
		return nil
	}
}
