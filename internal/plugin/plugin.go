package plugin

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/nao1215/jsfinder/internal/model"
)

// ErrUnknownPlugin is returned by Lookup for names that are not registered.
var ErrUnknownPlugin = errors.New("unknown plugin")

// Plugin extracts raw script candidates from a response corpus.
//
// The corpus is a snapshot; implementations must treat it as read-only.
// A returned error means the plugin contributed nothing.
type Plugin interface {
	// Name returns the plugin's name for logging and reports.
	Name() string

	// Extract returns raw candidate paths found in corpus.
	Extract(ctx context.Context, corpus []*model.Response) ([]string, error)
}

// ExtractFunc is the signature of a plain extraction callback.
type ExtractFunc func(ctx context.Context, corpus []*model.Response) ([]string, error)

// funcPlugin adapts an ExtractFunc to the Plugin interface.
type funcPlugin struct {
	name string
	fn   ExtractFunc
}

// FromFunc wraps a callback as a Plugin with the given name.
func FromFunc(name string, fn ExtractFunc) Plugin {
	return &funcPlugin{name: name, fn: fn}
}

// Name returns the plugin name.
func (p *funcPlugin) Name() string {
	return p.name
}

// Extract calls the wrapped callback.
func (p *funcPlugin) Extract(ctx context.Context, corpus []*model.Response) ([]string, error) {
	return p.fn(ctx, corpus)
}

// registry maps plugin names to constructors.
var registry = map[string]func() Plugin{
	chunkMapName:  func() Plugin { return NewChunkMap() },
	scriptTagName: func() Plugin { return NewScriptTag() },
}

// Names returns the names of the built-in plugins in sorted order.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Lookup returns a new instance of the named built-in plugin.
func Lookup(name string) (Plugin, error) {
	ctor, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownPlugin, name)
	}
	return ctor(), nil
}

// Load returns instances of the named built-in plugins, skipping duplicates.
// It fails on the first unknown name.
func Load(names []string) ([]Plugin, error) {
	seen := make(map[string]bool, len(names))
	plugins := make([]Plugin, 0, len(names))
	for _, name := range names {
		if seen[name] {
			continue
		}
		seen[name] = true

		p, err := Lookup(name)
		if err != nil {
			return nil, err
		}
		plugins = append(plugins, p)
	}
	return plugins, nil
}
