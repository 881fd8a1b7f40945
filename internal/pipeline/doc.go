// Package pipeline runs each repository through its processing steps.
//
// A repository passes through two stages: fetching a working copy and
// scanning its content. Each stage is implemented as a Step that receives
// the repository's RepositoryResult and fills in its part.
//
// Design decision: We use a pipeline pattern instead of direct function calls
// because:
// 1. It provides consistent error handling and logging across steps
// 2. It supports cancellation via context between steps
// 3. Tests can replace a step without touching git or the filesystem
//
// The BatchProcessor runs pipelines for many repositories with a
// concurrency limit and hands the results to a single collector, which
// feeds the Aggregator in input order.
package pipeline
