package synth

import (
	"crypto/sha1" //nolint:gosec // file-name scrambling, not security
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/book-expert/captcha-lab/internal/fsutil"
)

const (
	audioExt        = ".mp3"
	versionSep      = "_"
	audioFilePerms  = 0o600
	maxFileVersions = 1 << 16
)

// ErrTooManyVersions is returned when every versioned file name is taken.
var ErrTooManyVersions = errors.New("too many files for the same captcha text")

// ScrambleName returns the SHA-1 hex digest used to hide the label in file names.
func ScrambleName(text string) string {
	sum := sha1.Sum([]byte(text)) //nolint:gosec // file-name scrambling, not security

	return hex.EncodeToString(sum[:])
}

// BaseName returns the file name stem for a CAPTCHA text.
func BaseName(text string, scramble bool) string {
	if scramble {
		return ScrambleName(text)
	}

	return text
}

// CreateAudioFile creates <outputDir>/<text>/<stem>.mp3, or the first free
// <stem>_N.mp3 when it exists. Files are created exclusively, so concurrent
// callers never share a path.
func CreateAudioFile(outputDir, text string, scramble bool) (*os.File, error) {
	dir := filepath.Join(outputDir, text)

	err := fsutil.EnsureDir(dir)
	if err != nil {
		return nil, err
	}

	stem := BaseName(text, scramble)

	for version := 0; version < maxFileVersions; version++ {
		name := stem + audioExt
		if version > 0 {
			name = stem + versionSep + strconv.Itoa(version) + audioExt
		}

		file, openErr := os.OpenFile(filepath.Join(dir, name), os.O_CREATE|os.O_EXCL|os.O_WRONLY, audioFilePerms)
		if openErr == nil {
			return file, nil
		}

		if !errors.Is(openErr, os.ErrExist) {
			return nil, fmt.Errorf("failed to create audio file: %w", openErr)
		}
	}

	return nil, fmt.Errorf("%w: %s", ErrTooManyVersions, text)
}

// WriteAudioFile stores audio under the next free name for text and returns its path.
func WriteAudioFile(outputDir, text string, scramble bool, audio []byte) (string, error) {
	file, err := CreateAudioFile(outputDir, text, scramble)
	if err != nil {
		return "", err
	}

	_, writeErr := file.Write(audio)
	closeErr := file.Close()

	if writeErr != nil {
		return "", fmt.Errorf("failed to write %s: %w", file.Name(), writeErr)
	}

	if closeErr != nil {
		return "", fmt.Errorf("failed to close %s: %w", file.Name(), closeErr)
	}

	return file.Name(), nil
}
