// Package crawler discovers script resources reachable from a set of seed
// responses, restricted to a single domain.
//
// # Architecture
//
// The package is built around the Finder type, which drives a two-phase
// expansion over a bounded pool of fetch workers:
//
//  1. Expand: every in-scope script reference found in the seeds is resolved,
//     fetched and scanned for further references until no work is in flight.
//  2. Plugin sweep: registered plugins run once over the full corpus. Their
//     output goes through the same resolve, fetch and expand path until the
//     second quiescence.
//
// # Components
//
//   - Resolve: joins a base URL and a discovered path into an absolute URL
//   - Extractor: finds script references in text and applies the domain scope
//   - Frontier: deduplicates candidates and records confirmed scripts
//   - Finder: schedules fetch-and-expand work and runs plugins
//
// # Scope
//
// Absolute http(s) references are followed only when their host equals the
// configured domain. Protocol-relative references ("//host/x.js") are always
// treated as foreign, even when the host would match.
//
// # Usage
//
//	client, _ := fetch.NewClient()
//	finder, err := crawler.NewFinder("example.com", client,
//		crawler.WithPlugins(plugin.NewChunkMap()),
//	)
//	result, err := finder.Run(ctx, seeds)
package crawler
