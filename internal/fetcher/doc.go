// Package fetcher ensures a local working copy exists for each repository.
//
// Each identifier maps to a deterministic directory under the clone root
// (see LocalDirName). An existing working copy is reused; otherwise the
// repository is cloned with go-git. A failed clone never aborts the run:
// the caller records the failure and moves on.
//
// Design decision: Clones use go-git instead of shelling out to the git
// binary. The binary may be missing on scan hosts, and an in-process clone
// honors context cancellation and timeouts without killing child processes.
package fetcher
