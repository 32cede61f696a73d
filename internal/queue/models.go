package queue

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Kind discriminates the payload type carried by a job. New job kinds are
// added by extending this enum and the payload switch in DecodePayload.
type Kind string

const (
	// KindWork is a garden work attestation awaiting submission.
	KindWork Kind = "work"
)

var allKinds = []Kind{KindWork}

// ParseKind converts a string into a known Kind.
func ParseKind(value string) (Kind, bool) {
	normalized := Kind(strings.ToLower(strings.TrimSpace(value)))
	for _, kind := range allKinds {
		if kind == normalized {
			return kind, true
		}
	}
	return "", false
}

// Job is a locally queued, not-yet-confirmed unit of work persisted in SQLite.
//
// Attempts only ever grows; Synced=true means the job has a confirmed remote
// counterpart and is eligible for removal once a remote observation carries
// its ClientWorkID.
type Job struct {
	ID           string
	OwnerAddress string
	Kind         Kind
	Payload      json.RawMessage
	ClientWorkID string
	CreatedAt    time.Time
	UpdatedAt    time.Time
	Synced       bool
	Attempts     int
	LastError    string
	MetaJSON     string
}

// WorkPayload describes a unit of garden work captured on this device.
// Media attachments live in the media_refs table, not in the payload.
type WorkPayload struct {
	ActionUID      int64    `json:"action_uid"`
	GardenAddress  string   `json:"garden_address"`
	Title          string   `json:"title,omitempty"`
	Feedback       string   `json:"feedback,omitempty"`
	PlantCount     int      `json:"plant_count,omitempty"`
	PlantSelection []string `json:"plant_selection,omitempty"`
}

// MediaRef links a stored media blob to its owning job. A ref is exclusively
// owned by its job and is deleted with it.
type MediaRef struct {
	ID         string
	JobID      string
	BlobHandle string
	URL        string
	SizeBytes  int64
}

// Filter narrows List results. Zero values match everything.
type Filter struct {
	Owner  string
	Kind   Kind
	Synced *bool
}

// Stats aggregates queue counts for one owner. Failed counts unsynced jobs
// that recorded an error and reached the retry cap; Pending is every other
// unsynced job.
type Stats struct {
	Total   int
	Pending int
	Failed  int
	Synced  int
}

// WorkPayload decodes the payload of a work job.
func (j *Job) WorkPayload() (*WorkPayload, error) {
	if j.Kind != KindWork {
		return nil, fmt.Errorf("job %s has kind %q, not %q", j.ID, j.Kind, KindWork)
	}
	var payload WorkPayload
	if err := json.Unmarshal(j.Payload, &payload); err != nil {
		return nil, fmt.Errorf("decode work payload for job %s: %w", j.ID, err)
	}
	return &payload, nil
}

// Meta decodes the free-form metadata attached to a job.
func (j *Job) Meta() (map[string]string, error) {
	if strings.TrimSpace(j.MetaJSON) == "" {
		return nil, nil
	}
	meta := make(map[string]string)
	if err := json.Unmarshal([]byte(j.MetaJSON), &meta); err != nil {
		return nil, fmt.Errorf("decode meta for job %s: %w", j.ID, err)
	}
	return meta, nil
}

// EncodePayload marshals a payload value into the stored JSON form.
func EncodePayload(payload any) (json.RawMessage, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}
	return raw, nil
}

// NewJobID returns a fresh client-generated job identifier.
func NewJobID() string {
	return uuid.New().String()
}

// NewClientWorkID returns a fresh correlation id used to match a local job
// to its eventual remote record.
func NewClientWorkID() string {
	return uuid.New().String()
}

// SyncedFilter is a convenience for building a Filter on the synced flag.
func SyncedFilter(synced bool) *bool {
	return &synced
}
