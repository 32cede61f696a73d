// Package merge provides the generic two-source reconciliation engine:
// independently cached online and offline queries combined into one derived
// view through an explicit loading/merging/settled state machine.
package merge
