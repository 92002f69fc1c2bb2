// Package model defines the core data structures shared by jsfinder packages.
//
// This package contains the following main types:
//   - Response: A fetched resource with its decoded text and metadata
//   - Corpus: The growing, concurrency-safe collection of responses of one run
//   - Report: The result of one discovery run against a single domain
//
// Design decision: We keep the models in their own package so that the
// crawler, plugin, pipeline, report and database packages can share them
// without import cycles.
package model
