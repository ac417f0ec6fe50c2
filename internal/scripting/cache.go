package scripting

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"time"

	lua "github.com/yuin/gopher-lua"
	"github.com/yuin/gopher-lua/parse"
	"go.uber.org/zap"
	"golang.org/x/crypto/blake2b"
)

// Cache maps source entries to compiled behavior units through a persisted
// artifact tree. The tree mirrors the source layout with roots stripped, so
// an override source and the base source it shadows share one slot — the
// last resolved source wins the slot.
type Cache struct {
	dir string
	log *zap.Logger
}

func NewCache(dir string, log *zap.Logger) *Cache {
	return &Cache{dir: dir, log: log}
}

// Unit returns the compiled unit for a resolved source, refreshing the
// cached artifact only when the source is newer than the artifact (or the
// artifact is absent). A compilation failure is an error for this unit
// only; callers log it and keep loading the rest.
func (c *Cache) Unit(entry SourceEntry) (*Unit, error) {
	srcInfo, err := os.Stat(entry.Path)
	if err != nil {
		return nil, fmt.Errorf("stat source %s: %w", entry.Path, err)
	}

	slot := filepath.Join(c.dir, filepath.FromSlash(entry.Rel))
	data, refreshed, err := c.refreshSlot(slot, entry.Path, srcInfo.ModTime())
	if err != nil {
		return nil, err
	}
	if refreshed {
		c.log.Debug("script artifact refreshed",
			zap.String("rel", entry.Rel), zap.String("origin", entry.Origin.String()))
	}

	proto, err := compileChunk(data, entry.Rel)
	if err != nil {
		return nil, fmt.Errorf("compile %s: %w", entry.Path, err)
	}

	return &Unit{
		Name:      entry.Rel,
		Proto:     proto,
		Source:    entry,
		Staleness: stalenessKey(srcInfo.ModTime(), data),
	}, nil
}

// Synthetic returns a compiled unit whose source is generated from
// structured data rather than read from a script file. Staleness is keyed
// off the data source's modification time; regeneration rewrites the
// synthetic source in the cache before compiling.
func (c *Cache) Synthetic(name string, dataModTime time.Time, generate func() ([]byte, error)) (*Unit, error) {
	rel := "generated/" + name + ".lua"
	slot := filepath.Join(c.dir, filepath.FromSlash(rel))

	var data []byte
	info, err := os.Stat(slot)
	if err != nil || dataModTime.After(info.ModTime()) {
		data, err = generate()
		if err != nil {
			return nil, fmt.Errorf("generate %s: %w", name, err)
		}
		if err := writeSlot(slot, data); err != nil {
			return nil, err
		}
		c.log.Debug("synthetic source regenerated", zap.String("unit", name))
	} else {
		data, err = os.ReadFile(slot)
		if err != nil {
			return nil, fmt.Errorf("read artifact %s: %w", slot, err)
		}
	}

	proto, err := compileChunk(data, rel)
	if err != nil {
		return nil, fmt.Errorf("compile synthetic %s: %w", name, err)
	}

	return &Unit{
		Name:      rel,
		Proto:     proto,
		Source:    SourceEntry{Rel: rel, Path: slot, Origin: OriginSynthetic},
		Staleness: stalenessKey(dataModTime, data),
	}, nil
}

// refreshSlot copies the source into the artifact slot when it is stale and
// returns the artifact bytes either way.
func (c *Cache) refreshSlot(slot, srcPath string, srcMod time.Time) ([]byte, bool, error) {
	if info, err := os.Stat(slot); err == nil && !srcMod.After(info.ModTime()) {
		data, err := os.ReadFile(slot)
		if err != nil {
			return nil, false, fmt.Errorf("read artifact %s: %w", slot, err)
		}
		return data, false, nil
	}
	data, err := os.ReadFile(srcPath)
	if err != nil {
		return nil, false, fmt.Errorf("read source %s: %w", srcPath, err)
	}
	if err := writeSlot(slot, data); err != nil {
		return nil, false, err
	}
	return data, true, nil
}

func writeSlot(slot string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(slot), 0o755); err != nil {
		return fmt.Errorf("create cache dir: %w", err)
	}
	if err := os.WriteFile(slot, data, 0o644); err != nil {
		return fmt.Errorf("write artifact %s: %w", slot, err)
	}
	return nil
}

func compileChunk(data []byte, name string) (*lua.FunctionProto, error) {
	chunk, err := parse.Parse(bytes.NewReader(data), name)
	if err != nil {
		return nil, err
	}
	return lua.Compile(chunk, name)
}

func stalenessKey(mod time.Time, data []byte) StalenessKey {
	sum := blake2b.Sum256(data)
	return StalenessKey{ModTime: mod, Sum: hex.EncodeToString(sum[:])}
}
