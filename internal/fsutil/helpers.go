// Package fsutil provides file and path utility functions shared by the
// captcha-lab tools.
//
// It resolves model artifacts, lists dataset directories in a stable order and
// copies files between dataset splits.
package fsutil

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Environment variable names used for path resolution.
const (
	envCacheDir = "CACHE_DIR"
)

// Common application directory and path constants.
const (
	appName               = "captcha-lab"
	modelsDirName         = "models"
	tmpDir                = "/tmp"
	dotCache              = ".cache"
	defaultDirPermissions = 0o750
	defaultFilePerms      = 0o600
	dot                   = "."
)

// Error message and format string constants.
const (
	errModelNotFoundMsg               = "model not found"
	errFmtFailedToCreateDir           = "failed to create directory %s: %w"
	errFmtCouldNotResolveAbsolutePath = "could not resolve absolute path for %q: %w"
	errFmtErrorCheckingModelPath      = "error checking model path %q: %w"
	errFmtModelNotFound               = "%w: %s"
	errFmtReadDir                     = "failed to read directory %s: %w"
	errFmtStatLink                    = "failed to resolve symlink %s: %w"
)

// ErrModelNotFound is returned when a model artifact cannot be located.
var ErrModelNotFound = errors.New(errModelNotFoundMsg)

// GetCacheDir returns the application's cache directory, respecting an environment
// variable override and falling back to a standard user-based cache directory.
func GetCacheDir() string {
	if cacheDir := os.Getenv(envCacheDir); cacheDir != "" {
		return cacheDir
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(tmpDir, appName, dotCache)
	}

	return filepath.Join(homeDir, dotCache, appName)
}

// EnsureDir ensures a directory exists at the given path, creating it if it doesn't.
func EnsureDir(path string) error {
	_, statErr := os.Stat(path)
	if os.IsNotExist(statErr) {
		mkdirErr := os.MkdirAll(path, defaultDirPermissions)
		if mkdirErr != nil {
			return fmt.Errorf(errFmtFailedToCreateDir, path, mkdirErr)
		}
	}

	return nil
}

// resolveSinglePath checks if a file exists at a given path.
// If it doesn't exist, it returns found=false and no error.
// Any file system error other than "not found" is returned.
func resolveSinglePath(path string) (resolvedPath string, found bool, err error) {
	_, statErr := os.Stat(path)
	if statErr == nil {
		absPath, errAbs := filepath.Abs(path)
		if errAbs != nil {
			return "", false, fmt.Errorf(errFmtCouldNotResolveAbsolutePath, path, errAbs)
		}

		return absPath, true, nil
	} else if !os.IsNotExist(statErr) {
		return "", false, fmt.Errorf(errFmtErrorCheckingModelPath, path, statErr)
	}

	return "", false, nil
}

// ResolveModelPath finds the model whose architecture file is modelName+ext.
// It checks the name as given, a local "models" directory and the cache directory,
// in that order, and returns the absolute model path without the extension.
func ResolveModelPath(modelName, ext string) (string, error) {
	candidatePaths := []string{
		modelName,
		filepath.Join(modelsDirName, modelName),
		filepath.Join(GetCacheDir(), modelsDirName, modelName),
	}

	for _, path := range candidatePaths {
		resolvedPath, found, err := resolveSinglePath(path + ext)
		if err != nil {
			return "", err
		} else if found {
			return strings.TrimSuffix(resolvedPath, ext), nil
		}
	}

	return "", fmt.Errorf(errFmtModelNotFound, ErrModelNotFound, modelName)
}

// ListFiles returns the names of the regular files directly inside dir, sorted.
// Symlinks are followed and kept when they resolve to a regular file.
func ListFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf(errFmtReadDir, dir, err)
	}

	names := make([]string, 0, len(entries))

	for _, entry := range entries {
		regular, statErr := isRegularFile(dir, entry)
		if statErr != nil {
			return nil, statErr
		}

		if regular {
			names = append(names, entry.Name())
		}
	}

	sort.Strings(names)

	return names, nil
}

func isRegularFile(dir string, entry fs.DirEntry) (bool, error) {
	if entry.Type()&fs.ModeSymlink == 0 {
		return entry.Type().IsRegular(), nil
	}

	info, err := os.Stat(filepath.Join(dir, entry.Name()))
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}

	if err != nil {
		return false, fmt.Errorf(errFmtStatLink, entry.Name(), err)
	}

	return info.Mode().IsRegular(), nil
}

// CopyFile copies the contents of src into dst, truncating dst if it exists.
func CopyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", src, err)
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, defaultFilePerms)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", dst, err)
	}

	_, copyErr := io.Copy(out, in)
	closeErr := out.Close()

	if copyErr != nil {
		return fmt.Errorf("failed to copy %s to %s: %w", src, dst, copyErr)
	}

	if closeErr != nil {
		return fmt.Errorf("failed to close %s: %w", dst, closeErr)
	}

	return nil
}

// GetFileExtension returns the lower-cased file extension without the leading dot.
func GetFileExtension(filename string) string {
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(filename), dot))
}

// ReplaceExt swaps the extension of filename for ext (which includes the dot).
func ReplaceExt(filename, ext string) string {
	return strings.TrimSuffix(filename, filepath.Ext(filename)) + ext
}
