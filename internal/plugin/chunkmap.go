package plugin

import (
	"context"
	"regexp"
	"sort"
	"strings"

	"github.com/nao1215/jsfinder/internal/model"
)

const chunkMapName = "chunkmap"

// chunkPattern matches a webpack-style chunk URL builder such as
//
//	return a.p+"static/js/"+({}[e]||e)+"."+{"0":"a1b2","1":"c3d4"}[e]+".chunk.js"
//
// Group 1 is the base path, group 2 the chunk map literal and group 3 the
// optional file suffix following the map lookup.
var chunkPattern = regexp.MustCompile(
	`(?s)return.{1,10}?"([\w./\-]*?js/?)"\s*\+[^;]*?(\{"?\w[^{}]*?"\})` +
		`(?:\[\w+\]\s*\+\s*"([\w.\-]*\.js)")?`,
)

// tokenPattern restricts chunk keys and hashes to plain file name characters.
var tokenPattern = regexp.MustCompile(`^[\w.~\-]+$`)

// ChunkMap rebuilds chunk file names from bundler runtime code.
//
// Design decision: The chunk map literal is parsed into an ordinary
// map[string]string and file names are built by concatenation. The text
// is never evaluated.
type ChunkMap struct{}

// NewChunkMap creates a ChunkMap plugin.
func NewChunkMap() *ChunkMap {
	return &ChunkMap{}
}

// Name returns the plugin name.
func (p *ChunkMap) Name() string {
	return chunkMapName
}

// Extract returns base + key + "." + hash + suffix for every entry of every
// chunk map found in the corpus. The suffix defaults to ".js".
func (p *ChunkMap) Extract(ctx context.Context, corpus []*model.Response) ([]string, error) {
	out := make([]string, 0)
	for _, r := range corpus {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		if r == nil || !strings.Contains(r.Text, "return") {
			continue
		}

		for _, m := range chunkPattern.FindAllStringSubmatch(r.Text, -1) {
			base, literal, suffix := m[1], m[2], m[3]
			if suffix == "" {
				suffix = ".js"
			}

			chunks := ParseChunkMap(literal)
			keys := make([]string, 0, len(chunks))
			for k := range chunks {
				keys = append(keys, k)
			}
			sort.Strings(keys)

			for _, k := range keys {
				out = append(out, base+k+"."+chunks[k]+suffix)
			}
		}
	}
	return out, nil
}

// ParseChunkMap parses a JavaScript object literal of chunk ids to hashes,
// e.g. {"0":"a1b2",1:'c3d4'}, into a map. Entries whose key or value is not
// a plain file name token are skipped.
func ParseChunkMap(literal string) map[string]string {
	body := strings.TrimSpace(literal)
	body = strings.TrimPrefix(body, "{")
	body = strings.TrimSuffix(body, "}")

	chunks := make(map[string]string)
	for _, pair := range strings.Split(body, ",") {
		key, value, ok := strings.Cut(pair, ":")
		if !ok {
			continue
		}
		key = unquote(key)
		value = unquote(value)
		if !tokenPattern.MatchString(key) || !tokenPattern.MatchString(value) {
			continue
		}
		chunks[key] = value
	}
	return chunks
}

// unquote trims whitespace and surrounding quotes.
func unquote(s string) string {
	s = strings.TrimSpace(s)
	return strings.Trim(s, `"'`)
}
