// Package conflict detects divergence between local and remote views of the
// same logical work record, classifies it, and applies terminal resolution
// strategies through the queue manager.
package conflict
