// Package plugin provides second-pass script extractors.
//
// Plugins run once, after the crawler's organic expansion has settled, and
// see the whole response corpus at once. That lets them recover paths that
// never appear literally in any single file, such as bundler chunk names
// assembled at runtime from a base path and a chunk map.
//
// A plugin returns raw candidate paths. It never touches crawler state: the
// crawler resolves, scopes, fetches and expands its output exactly like
// organically discovered references.
//
// Built-in plugins:
//   - chunkmap: rebuilds webpack-style chunk file names
//   - scripttag: collects <script src> and script preload links from HTML
package plugin
