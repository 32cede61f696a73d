package conflict

import (
	"gardenlog/internal/work"
)

// Type names a divergence class between local and remote views of the same
// logical record.
type Type string

const (
	// TypeAlreadySubmitted means the remote ledger already carries this
	// record; the local copy is redundant.
	TypeAlreadySubmitted Type = "already_submitted"
	// TypeSchemaMismatch means the two sides disagree on identifying
	// structure (the action being attested).
	TypeSchemaMismatch Type = "schema_mismatch"
	// TypeGardenMismatch means the two sides attribute the work to
	// different gardens.
	TypeGardenMismatch Type = "garden_mismatch"
	// TypeDataConflict means descriptive fields diverge.
	TypeDataConflict Type = "data_conflict"
)

// Severity grades how much a finding should alarm the user.
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// Finding is one classified divergence.
type Finding struct {
	Type           Type
	Severity       Severity
	AutoResolvable bool
}

// Conflict is a detected divergence between the local and remote views of
// one logical record.
type Conflict struct {
	RecordID string
	Findings []Finding
	Local    work.Record
	Remote   work.Record
}

// AutoResolvable reports whether every finding can be reconciled without
// user input.
func (c *Conflict) AutoResolvable() bool {
	if c == nil || len(c.Findings) == 0 {
		return false
	}
	for _, finding := range c.Findings {
		if !finding.AutoResolvable {
			return false
		}
	}
	return true
}

// Has reports whether the conflict contains a finding of the given type.
func (c *Conflict) Has(conflictType Type) bool {
	if c == nil {
		return false
	}
	for _, finding := range c.Findings {
		if finding.Type == conflictType {
			return true
		}
	}
	return false
}

// Classify compares a local record with an observed remote record sharing
// its identity. The result always carries at least the already_submitted
// finding: a remote counterpart existing at all means the capture reached
// the ledger and the local copy needs resolution.
func Classify(local, remote work.Record) *Conflict {
	findings := []Finding{{
		Type:           TypeAlreadySubmitted,
		Severity:       SeverityLow,
		AutoResolvable: true,
	}}

	if local.GardenAddress != remote.GardenAddress {
		findings = append(findings, Finding{
			Type:           TypeGardenMismatch,
			Severity:       SeverityHigh,
			AutoResolvable: false,
		})
	}
	if local.ActionUID != remote.ActionUID {
		findings = append(findings, Finding{
			Type:           TypeSchemaMismatch,
			Severity:       SeverityMedium,
			AutoResolvable: false,
		})
	}
	if dataDiverges(local, remote) {
		findings = append(findings, Finding{
			Type:           TypeDataConflict,
			Severity:       SeverityMedium,
			AutoResolvable: true,
		})
	}

	return &Conflict{
		RecordID: local.ID,
		Findings: findings,
		Local:    local,
		Remote:   remote,
	}
}

// Detect pairs local records with remote records carrying the same
// ClientWorkID and classifies each pair. Local records without a remote
// counterpart are not in conflict and are skipped.
func Detect(offline, online []work.Record) []*Conflict {
	byClientWorkID := make(map[string]work.Record, len(online))
	for _, remote := range online {
		if remote.ClientWorkID != "" {
			byClientWorkID[remote.ClientWorkID] = remote
		}
	}

	var conflicts []*Conflict
	for _, local := range offline {
		if local.ClientWorkID == "" {
			continue
		}
		remote, ok := byClientWorkID[local.ClientWorkID]
		if !ok {
			continue
		}
		if c := Classify(local, remote); c != nil {
			conflicts = append(conflicts, c)
		}
	}
	return conflicts
}

func dataDiverges(local, remote work.Record) bool {
	for key, localValue := range local.Metadata {
		if key == work.MetadataClientWorkID {
			continue
		}
		if remoteValue, ok := remote.Metadata[key]; ok && remoteValue != localValue {
			return true
		}
	}
	return len(local.Media) != len(remote.Media)
}
