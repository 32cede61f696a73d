// Package queue owns the durable offline job queue: the SQLite-backed job
// and media-ref store, the job model and its payload kinds, and the Manager
// that is the sole writer to the store.
//
// Jobs are client-identified, owner-scoped, and carry monotonic attempt
// bookkeeping so retry policy can be layered by callers. All writes are
// durable before the triggering call returns.
package queue
