// Package runner consumes the execution blocks a job produces. It listens
// for block-applied events, dispatches every chain head of the block to a
// worker pool and, as units complete, releases their self-sync successors.
// Once every unit of a block completed the runner requests the next block,
// which is what keeps a job advancing through its effective plan.
package runner
