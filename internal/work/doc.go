// Package work projects queued jobs and remote attestations into one record
// shape and reconciles the two into a deduplicated, status-annotated view.
package work
