// Package scripting owns the behavior-script pipeline: resolving sources
// against the base and override roots, compiling them through the artifact
// cache, and publishing the resulting behavior units (AI definitions, item
// behaviors, NPC hooks, quests, shops, spawn definitions) in the registry.
// One Lua VM per registry generation; game-loop goroutine access only.
package scripting

import (
	"time"

	lua "github.com/yuin/gopher-lua"
)

// Origin records which root a resolved source came from.
type Origin int

const (
	OriginBase Origin = iota
	OriginOverride
	OriginSynthetic
)

func (o Origin) String() string {
	switch o {
	case OriginBase:
		return "base"
	case OriginOverride:
		return "override"
	case OriginSynthetic:
		return "synthetic"
	}
	return "unknown"
}

// SourceEntry is a resolved script reference: the logical relative path used
// as the cache key plus the concrete file chosen by override precedence.
// Transient; produced by the resolver, consumed by the cache.
type SourceEntry struct {
	Rel    string // slash-separated, root prefix stripped
	Path   string // concrete path on disk
	Origin Origin
}

// StalenessKey identifies the exact source content an artifact was built
// from: modification time plus a content hash.
type StalenessKey struct {
	ModTime time.Time
	Sum     string // hex blake2b-256 of the source bytes
}

// Unit is a compiled, invocable behavior unit. Immutable once published;
// reload replaces units, never mutates them.
type Unit struct {
	Name      string // logical key: relative path, or synthetic unit name
	Proto     *lua.FunctionProto
	Source    SourceEntry
	Staleness StalenessKey
}
