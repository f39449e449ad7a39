package fsutil_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/book-expert/captcha-lab/internal/fsutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupModelFile creates dir and an empty model architecture file in it.
func setupModelFile(t *testing.T, dir, fileName string) {
	t.Helper()

	require.NoError(t, os.MkdirAll(dir, 0o750))
	require.NoError(t, os.WriteFile(filepath.Join(dir, fileName), nil, 0o600))
}

func TestGetCacheDir_WithOverride(t *testing.T) {
	expectedPath := "/custom/cache/dir"
	t.Setenv("CACHE_DIR", expectedPath)

	assert.Equal(t, expectedPath, fsutil.GetCacheDir())
}

func TestGetCacheDir_OSDefault(t *testing.T) {
	t.Setenv("CACHE_DIR", "")

	homeDir, err := os.UserHomeDir()
	if err != nil {
		t.Skip("Skipping test: could not determine user home directory")
	}

	assert.Equal(t, filepath.Join(homeDir, ".cache", "captcha-lab"), fsutil.GetCacheDir())
}

func TestEnsureDir(t *testing.T) {
	t.Parallel()

	testPath := filepath.Join(t.TempDir(), "new", "dir")

	require.NoError(t, fsutil.EnsureDir(testPath))

	info, err := os.Stat(testPath)
	require.NoError(t, err)
	assert.True(t, info.IsDir())

	require.NoError(t, fsutil.EnsureDir(testPath), "existing directories are accepted")
}

func TestResolveModelPath_DirectPath(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	setupModelFile(t, dir, "audio-cnn.json")

	resolved, err := fsutil.ResolveModelPath(filepath.Join(dir, "audio-cnn"), ".json")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "audio-cnn"), resolved)
}

func TestResolveModelPath_CacheDir(t *testing.T) {
	cacheDir := t.TempDir()
	t.Setenv("CACHE_DIR", cacheDir)

	setupModelFile(t, filepath.Join(cacheDir, "models"), "cached-model-7f3a.json")

	resolved, err := fsutil.ResolveModelPath("cached-model-7f3a", ".json")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(cacheDir, "models", "cached-model-7f3a"), resolved)
}

func TestResolveModelPath_NotFound(t *testing.T) {
	t.Parallel()

	_, err := fsutil.ResolveModelPath(filepath.Join(t.TempDir(), "missing"), ".json")
	require.ErrorIs(t, err, fsutil.ErrModelNotFound)
}

func TestListFiles_SortedRegularFiles(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	for _, name := range []string{"c.png", "a.png", "b.mp3"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), nil, 0o600))
	}

	require.NoError(t, os.Mkdir(filepath.Join(dir, "nested"), 0o750))

	names, err := fsutil.ListFiles(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"a.png", "b.mp3", "c.png"}, names)

	_, err = fsutil.ListFiles(filepath.Join(dir, "missing"))
	require.Error(t, err)
}

func TestListFiles_FollowsSymlinks(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	target := filepath.Join(t.TempDir(), "stored.png")
	require.NoError(t, os.WriteFile(target, []byte("captcha"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "plain.png"), nil, 0o600))
	require.NoError(t, os.Symlink(target, filepath.Join(dir, "linked.png")))
	require.NoError(t, os.Symlink(filepath.Join(dir, "missing.png"), filepath.Join(dir, "dangling.png")))
	require.NoError(t, os.Symlink(t.TempDir(), filepath.Join(dir, "linked-dir")))

	names, err := fsutil.ListFiles(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"linked.png", "plain.png"}, names)
}

func TestCopyFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	src := filepath.Join(dir, "src.png")
	dst := filepath.Join(dir, "dst.png")

	require.NoError(t, os.WriteFile(src, []byte("captcha"), 0o600))
	require.NoError(t, os.WriteFile(dst, []byte("older and longer"), 0o600))
	require.NoError(t, fsutil.CopyFile(src, dst))

	data, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "captcha", string(data))

	require.Error(t, fsutil.CopyFile(filepath.Join(dir, "missing"), dst))
}

func TestExtensions(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "mp3", fsutil.GetFileExtension("abc12.MP3"))
	assert.Empty(t, fsutil.GetFileExtension("noext"))
	assert.Equal(t, "dir/abc12.png", fsutil.ReplaceExt("dir/abc12.mp3", ".png"))
	assert.Equal(t, "noext.png", fsutil.ReplaceExt("noext", ".png"))
}
