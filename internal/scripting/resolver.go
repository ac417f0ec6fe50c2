package scripting

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

// manifestExt marks a manifest entry as a nested manifest.
const manifestExt = ".list"

// Resolver turns manifest references into concrete source paths, applying
// override precedence: for each logical relative path, a file under the
// override root shadows the same path under the base root.
type Resolver struct {
	baseRoot     string
	overrideRoot string
	log          *zap.Logger
}

func NewResolver(baseRoot, overrideRoot string, log *zap.Logger) *Resolver {
	return &Resolver{baseRoot: baseRoot, overrideRoot: overrideRoot, log: log}
}

// Normalize canonicalizes a manifest entry: slash separators, no leading
// "./", and no root prefix. An entry that already names a path under either
// root resolves to the same logical key as its bare relative form, so it is
// never double-prefixed on re-join.
func (r *Resolver) Normalize(ref string) string {
	p := strings.TrimSpace(ref)
	p = filepath.ToSlash(p)
	p = path.Clean(p)
	p = strings.TrimPrefix(p, "./")
	for _, root := range []string{r.overrideRoot, r.baseRoot} {
		if root == "" {
			continue
		}
		prefix := filepath.ToSlash(root)
		if rest, ok := strings.CutPrefix(p, prefix+"/"); ok {
			p = rest
			break
		}
	}
	return strings.TrimPrefix(p, "/")
}

// Resolve maps a logical relative path to its concrete source, override
// root first. Reports false when neither root has the file.
func (r *Resolver) Resolve(ref string) (SourceEntry, bool) {
	rel := r.Normalize(ref)
	if rel == "" || rel == "." {
		return SourceEntry{}, false
	}
	if r.overrideRoot != "" {
		p := filepath.Join(r.overrideRoot, filepath.FromSlash(rel))
		if fi, err := os.Stat(p); err == nil && !fi.IsDir() {
			return SourceEntry{Rel: rel, Path: p, Origin: OriginOverride}, true
		}
	}
	p := filepath.Join(r.baseRoot, filepath.FromSlash(rel))
	if fi, err := os.Stat(p); err == nil && !fi.IsDir() {
		return SourceEntry{Rel: rel, Path: p, Origin: OriginBase}, true
	}
	return SourceEntry{}, false
}

// ResolveManifest reads the named manifest (itself subject to override
// precedence) and returns the deduplicated, ordered source list. Nested
// manifests (entries ending in ".list") are expanded in place. A missing
// entry is logged and skipped; a missing manifest is an error and the
// caller decides whether that is fatal.
func (r *Resolver) ResolveManifest(ref string) ([]SourceEntry, error) {
	seen := make(map[string]bool)
	visited := make(map[string]bool)
	var out []SourceEntry
	if err := r.expandManifest(ref, seen, visited, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *Resolver) expandManifest(ref string, seen, visited map[string]bool, out *[]SourceEntry) error {
	entry, ok := r.Resolve(ref)
	if !ok {
		return fmt.Errorf("manifest %s not found under %s or %s", r.Normalize(ref), r.overrideRoot, r.baseRoot)
	}
	if visited[entry.Rel] {
		return nil // cycle or repeated include
	}
	visited[entry.Rel] = true

	data, err := os.ReadFile(entry.Path)
	if err != nil {
		return fmt.Errorf("read manifest %s: %w", entry.Path, err)
	}

	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if strings.HasSuffix(line, manifestExt) {
			if err := r.expandManifest(line, seen, visited, out); err != nil {
				// A broken nested manifest skips its subtree, not the load.
				r.log.Warn("nested manifest unresolvable",
					zap.String("manifest", entry.Rel), zap.String("entry", line), zap.Error(err))
			}
			continue
		}
		src, ok := r.Resolve(line)
		if !ok {
			r.log.Warn("manifest entry unresolvable",
				zap.String("manifest", entry.Rel), zap.String("entry", line))
			continue
		}
		if seen[src.Rel] {
			continue
		}
		seen[src.Rel] = true
		*out = append(*out, src)
	}
	return nil
}
