// Package events provides the injectable pub/sub bus that couples the job
// queue and sync engine to their consumers without direct dependencies.
package events
