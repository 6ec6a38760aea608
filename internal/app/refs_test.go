// ABOUTME: Tests for playlist argument expansion
// ABOUTME: Covers plain files, beatmap folders and missing paths
package app

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func touch(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte("osu file format v14\n"), 0o644))
}

func TestExpandRefs(t *testing.T) {
	dir := t.TempDir()
	set := filepath.Join(dir, "set")
	require.NoError(t, os.Mkdir(set, 0o755))
	touch(t, filepath.Join(set, "b [Hard].osu"))
	touch(t, filepath.Join(set, "a [Easy].OSU"))
	touch(t, filepath.Join(set, "audio.mp3"))

	song := filepath.Join(dir, "song.mp3")
	touch(t, song)

	refs, err := ExpandRefs([]string{song, set})
	require.NoError(t, err)
	assert.Equal(t, []string{
		song,
		filepath.Join(set, "a [Easy].OSU"),
		filepath.Join(set, "b [Hard].osu"),
	}, refs)
}

func TestExpandRefsErrors(t *testing.T) {
	dir := t.TempDir()

	_, err := ExpandRefs([]string{filepath.Join(dir, "missing.osu")})
	assert.Error(t, err)

	_, err = ExpandRefs([]string{dir})
	assert.ErrorContains(t, err, "no .osu files")
}
