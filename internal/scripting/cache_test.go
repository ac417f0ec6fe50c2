package scripting

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func touchPast(t *testing.T, path string, age time.Duration) {
	t.Helper()
	when := time.Now().Add(-age)
	require.NoError(t, os.Chtimes(path, when, when))
}

func TestCacheUnitCompiles(t *testing.T) {
	base := t.TempDir()
	src := writeFile(t, base, "ai/zombie.lua", "local x = 1\n")
	c := NewCache(filepath.Join(t.TempDir(), "cache"), zap.NewNop())

	u, err := c.Unit(SourceEntry{Rel: "ai/zombie.lua", Path: src, Origin: OriginBase})
	require.NoError(t, err)
	assert.Equal(t, "ai/zombie.lua", u.Name)
	assert.NotNil(t, u.Proto)
	assert.NotEmpty(t, u.Staleness.Sum)
}

func TestCacheArtifactReuse(t *testing.T) {
	base := t.TempDir()
	src := writeFile(t, base, "ai/a.lua", "local x = 1\n")
	touchPast(t, src, time.Hour)
	cacheDir := filepath.Join(t.TempDir(), "cache")
	c := NewCache(cacheDir, zap.NewNop())
	entry := SourceEntry{Rel: "ai/a.lua", Path: src, Origin: OriginBase}

	_, err := c.Unit(entry)
	require.NoError(t, err)

	// Rewrite the artifact; a fresh-enough source must not clobber it.
	slot := filepath.Join(cacheDir, "ai", "a.lua")
	require.NoError(t, os.WriteFile(slot, []byte("local y = 2\n"), 0o644))

	u, err := c.Unit(entry)
	require.NoError(t, err)
	got, err := os.ReadFile(slot)
	require.NoError(t, err)
	assert.Equal(t, "local y = 2\n", string(got), "artifact newer than source is kept")
	assert.NotNil(t, u.Proto)
}

func TestCacheArtifactRefreshOnNewerSource(t *testing.T) {
	base := t.TempDir()
	src := writeFile(t, base, "ai/a.lua", "local x = 1\n")
	cacheDir := filepath.Join(t.TempDir(), "cache")
	c := NewCache(cacheDir, zap.NewNop())
	entry := SourceEntry{Rel: "ai/a.lua", Path: src, Origin: OriginBase}

	_, err := c.Unit(entry)
	require.NoError(t, err)

	slot := filepath.Join(cacheDir, "ai", "a.lua")
	touchPast(t, slot, time.Hour)
	require.NoError(t, os.WriteFile(src, []byte("local z = 3\n"), 0o644))

	_, err = c.Unit(entry)
	require.NoError(t, err)
	got, err := os.ReadFile(slot)
	require.NoError(t, err)
	assert.Equal(t, "local z = 3\n", string(got))
}

func TestCacheCompileError(t *testing.T) {
	base := t.TempDir()
	src := writeFile(t, base, "ai/bad.lua", "this is not lua ((\n")
	c := NewCache(filepath.Join(t.TempDir(), "cache"), zap.NewNop())

	_, err := c.Unit(SourceEntry{Rel: "ai/bad.lua", Path: src, Origin: OriginBase})
	assert.Error(t, err)
}

func TestCacheSyntheticRegeneration(t *testing.T) {
	cacheDir := filepath.Join(t.TempDir(), "cache")
	c := NewCache(cacheDir, zap.NewNop())

	gen := 0
	generate := func() ([]byte, error) {
		gen++
		return []byte(fmt.Sprintf("local g = %d\n", gen)), nil
	}

	dataMod := time.Now().Add(-time.Hour)
	_, err := c.Synthetic("items", dataMod, generate)
	require.NoError(t, err)
	assert.Equal(t, 1, gen)

	// Same data mtime: artifact reused, generator not called.
	_, err = c.Synthetic("items", dataMod, generate)
	require.NoError(t, err)
	assert.Equal(t, 1, gen)

	// Newer data: regenerated.
	_, err = c.Synthetic("items", time.Now().Add(time.Hour), generate)
	require.NoError(t, err)
	assert.Equal(t, 2, gen)
}

func TestStalenessKeyTracksContent(t *testing.T) {
	now := time.Now()
	a := stalenessKey(now, []byte("one"))
	b := stalenessKey(now, []byte("two"))
	assert.NotEqual(t, a.Sum, b.Sum)
	assert.Equal(t, a.ModTime, b.ModTime)
}
