package work

import (
	"context"
	"fmt"
	"time"

	"gardenlog/internal/queue"
)

// Status is the settlement state of a work record in the merged view.
type Status string

const (
	StatusPending  Status = "pending"
	StatusSyncing  Status = "syncing"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
	StatusFailed   Status = "failed"
)

// Source tells which side of the merge a record came from.
type Source string

const (
	SourceOnline  Source = "online"
	SourceOffline Source = "offline"
)

// MetadataClientWorkID is the remote metadata key carrying the client
// correlation id assigned at capture time.
const MetadataClientWorkID = "clientWorkId"

// Record is the common projection of a queued job (offline) or an on-chain
// attestation (online). It is derived, recomputed state and is never
// persisted.
type Record struct {
	ID            string
	Status        Status
	CreatedAt     time.Time
	OwnerAddress  string
	GardenAddress string
	ActionUID     int64
	ClientWorkID  string
	Media         []string
	Metadata      map[string]string
	Source        Source
}

// RemoteRecord is an attestation observed on the authoritative ledger.
type RemoteRecord struct {
	ID            string
	OwnerAddress  string
	GardenAddress string
	ActionUID     int64
	CreatedAt     time.Time
	Media         []string
	Metadata      map[string]string
}

// Approval is a remote approval or rejection of a work record.
type Approval struct {
	RecordID string
	Approved bool
}

// Remote is the read side of the attestation service boundary.
type Remote interface {
	FetchRemoteRecords(ctx context.Context, scopeID string) ([]RemoteRecord, error)
	FetchApprovals(ctx context.Context, scopeID string) ([]Approval, error)
}

// ClientWorkID extracts the correlation id from remote metadata, if present.
func (r RemoteRecord) ClientWorkID() string {
	return r.Metadata[MetadataClientWorkID]
}

// FromRemote projects a remote record into the common shape. Approval state
// is looked up by record id; records without one stay pending.
func FromRemote(remote RemoteRecord, approvals map[string]bool) Record {
	status := StatusPending
	if approved, ok := approvals[remote.ID]; ok {
		if approved {
			status = StatusApproved
		} else {
			status = StatusRejected
		}
	}
	return Record{
		ID:            remote.ID,
		Status:        status,
		CreatedAt:     remote.CreatedAt,
		OwnerAddress:  remote.OwnerAddress,
		GardenAddress: remote.GardenAddress,
		ActionUID:     remote.ActionUID,
		ClientWorkID:  remote.ClientWorkID(),
		Media:         remote.Media,
		Metadata:      remote.Metadata,
		Source:        SourceOnline,
	}
}

// FromJob projects a queued work job and its media refs into the common
// shape. A job that hit the retry cap with an error shows as failed; a
// synced job awaiting remote confirmation shows as syncing; everything else
// is pending.
func FromJob(job *queue.Job, media []queue.MediaRef, retryCap int) (Record, error) {
	payload, err := job.WorkPayload()
	if err != nil {
		return Record{}, fmt.Errorf("project job %s: %w", job.ID, err)
	}

	status := StatusPending
	switch {
	case job.Synced:
		status = StatusSyncing
	case job.LastError != "" && job.Attempts >= retryCap:
		status = StatusFailed
	}

	metadata := map[string]string{MetadataClientWorkID: job.ClientWorkID}
	if payload.Title != "" {
		metadata["title"] = payload.Title
	}
	if payload.Feedback != "" {
		metadata["feedback"] = payload.Feedback
	}
	if meta, err := job.Meta(); err == nil {
		for key, value := range meta {
			metadata[key] = value
		}
	}

	var mediaHandles []string
	for _, ref := range media {
		handle := ref.URL
		if handle == "" {
			handle = ref.BlobHandle
		}
		mediaHandles = append(mediaHandles, handle)
	}

	return Record{
		ID:            job.ID,
		Status:        status,
		CreatedAt:     job.CreatedAt,
		OwnerAddress:  job.OwnerAddress,
		GardenAddress: payload.GardenAddress,
		ActionUID:     payload.ActionUID,
		ClientWorkID:  job.ClientWorkID,
		Media:         mediaHandles,
		Metadata:      metadata,
		Source:        SourceOffline,
	}, nil
}

// ApprovalIndex builds the record-id lookup used for status computation.
func ApprovalIndex(approvals []Approval) map[string]bool {
	index := make(map[string]bool, len(approvals))
	for _, approval := range approvals {
		index[approval.RecordID] = approval.Approved
	}
	return index
}
