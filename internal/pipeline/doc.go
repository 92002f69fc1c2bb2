// Package pipeline provides a framework for executing discovery steps in sequence.
//
// A domain is processed in two stages: seeding (fetching the pages discovery
// starts from) and discovery (running the crawler.Finder over them). Each
// stage is implemented as a Step that receives the current report and can
// modify it.
//
// Design decision: We use a pipeline pattern instead of direct function calls
// because:
// 1. It allows easy addition/removal of steps without modifying core logic
// 2. It provides consistent error handling and logging across steps
// 3. It supports cancellation via context for long-running runs
//
// The pipeline supports both individual runs and batch processing of many
// domains with concurrency control using errgroup.
package pipeline
