// Package syncer drains the offline job queue against the remote submission
// API. It enforces the single-flight flush rule, records per-job failure
// bookkeeping instead of aborting cycles, and emits lifecycle events on the
// shared bus.
package syncer
