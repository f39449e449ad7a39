// Package convert turns directories of audio CAPTCHAs into spectrogram PNGs.
package convert

import (
	"context"
	"errors"
	"fmt"
	"image/png"
	"io"
	"os"
	"path/filepath"

	"github.com/book-expert/captcha-lab/internal/fsutil"
	"github.com/book-expert/captcha-lab/internal/pool"
	"github.com/book-expert/captcha-lab/internal/spectrogram"
	"github.com/book-expert/logger"
)

// DefaultWorkers is the default number of files converted in parallel.
const DefaultWorkers = 4

const (
	imageExt       = ".png"
	imagePerms     = 0o600
	diagnosticFmt  = "processing %s: %v\n"
	logFmtFailed   = "processing %s: %v"
	logFmtWritten  = "Wrote %s"
	logFmtFinished = "Converted %d files, %d failed"
)

// ErrSameDirectory is returned when the source and destination directories match.
var ErrSameDirectory = errors.New("source and destination directory must be different")

// Job is one audio file and the image it becomes.
type Job struct {
	Source      string
	Destination string
}

// Converter renders audio files to spectrogram images on a worker pool.
type Converter struct {
	generator   *spectrogram.Generator
	workers     int
	log         *logger.Logger
	diagnostics io.Writer
}

// New returns a Converter. Per-file failures are logged and, when diagnostics
// is not nil, also written to it.
func New(generator *spectrogram.Generator, workers int, log *logger.Logger, diagnostics io.Writer) *Converter {
	if workers <= 0 {
		workers = DefaultWorkers
	}

	return &Converter{generator: generator, workers: workers, log: log, diagnostics: diagnostics}
}

// DestinationName maps an audio file name to its image file name.
func DestinationName(name string) string {
	return fsutil.ReplaceExt(name, imageExt)
}

// Plan lists the conversion jobs for every regular file in srcDir.
func Plan(srcDir, destDir string) ([]Job, error) {
	names, err := fsutil.ListFiles(srcDir)
	if err != nil {
		return nil, err
	}

	jobs := make([]Job, 0, len(names))
	for _, name := range names {
		jobs = append(jobs, Job{
			Source:      filepath.Join(srcDir, name),
			Destination: filepath.Join(destDir, DestinationName(name)),
		})
	}

	return jobs, nil
}

// ConvertDir converts every file in srcDir into destDir, creating destDir when
// needed. Files that fail are reported and skipped; only setup problems are
// returned as errors.
func (c *Converter) ConvertDir(ctx context.Context, srcDir, destDir string) (pool.Result, error) {
	same, err := sameDirectory(srcDir, destDir)
	if err != nil {
		return pool.Result{}, err
	}

	if same {
		return pool.Result{}, ErrSameDirectory
	}

	err = fsutil.EnsureDir(destDir)
	if err != nil {
		return pool.Result{}, err
	}

	jobs, err := Plan(srcDir, destDir)
	if err != nil {
		return pool.Result{}, err
	}

	result := pool.Run(ctx, c.workers, jobs, func(_ context.Context, job Job) error {
		convertErr := c.ConvertFile(job.Source, job.Destination)
		if convertErr != nil {
			c.report(job.Source, convertErr)

			return convertErr
		}

		c.log.Info(logFmtWritten, job.Destination)

		return nil
	})

	c.log.Info(logFmtFinished, result.Succeeded, result.Failed)

	return result, nil
}

// ConvertFile renders one audio file to a PNG at destination.
func (c *Converter) ConvertFile(source, destination string) error {
	data, err := os.ReadFile(source)
	if err != nil {
		return fmt.Errorf("failed to read audio: %w", err)
	}

	img, err := c.generator.Load(filepath.Base(source), data)
	if err != nil {
		return err
	}

	file, err := os.OpenFile(destination, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, imagePerms)
	if err != nil {
		return fmt.Errorf("failed to create image: %w", err)
	}

	encodeErr := png.Encode(file, img)
	closeErr := file.Close()

	if encodeErr != nil {
		return fmt.Errorf("failed to encode image: %w", encodeErr)
	}

	if closeErr != nil {
		return fmt.Errorf("failed to close image: %w", closeErr)
	}

	return nil
}

func (c *Converter) report(source string, err error) {
	c.log.Error(logFmtFailed, source, err)

	if c.diagnostics != nil {
		fmt.Fprintf(c.diagnostics, diagnosticFmt, source, err)
	}
}

func sameDirectory(a, b string) (bool, error) {
	absA, err := filepath.Abs(a)
	if err != nil {
		return false, fmt.Errorf("could not resolve %q: %w", a, err)
	}

	absB, err := filepath.Abs(b)
	if err != nil {
		return false, fmt.Errorf("could not resolve %q: %w", b, err)
	}

	return absA == absB, nil
}
