package approval

import (
	"time"

	"github.com/google/uuid"
)

// Level is an approval tier. Records climb the tiers in order and never
// move back.
type Level string

const (
	LevelFacility Level = "facility"
	LevelHospital Level = "hospital"
	LevelDistrict Level = "district"
	LevelState    Level = "state"
)

var chain = []Level{LevelFacility, LevelHospital, LevelDistrict, LevelState}

func (l Level) Valid() bool {
	for _, c := range chain {
		if c == l {
			return true
		}
	}
	return false
}

// Next returns the tier after l. ok is false at the top of the chain.
func (l Level) Next() (next Level, ok bool) {
	for i, c := range chain {
		if c == l && i+1 < len(chain) {
			return chain[i+1], true
		}
	}
	return l, false
}

type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

func (s Status) Valid() bool {
	return s == StatusPending || s == StatusApproved || s == StatusRejected
}

// Terminal statuses accept no further action.
func (s Status) Terminal() bool {
	return s == StatusApproved || s == StatusRejected
}

type Action string

const (
	ActionApprove Action = "approve"
	ActionReject  Action = "reject"
)

// HistoryEntry records one decision on a record.
type HistoryEntry struct {
	Level   Level     `json:"level"`
	Action  Action    `json:"action"`
	Actor   string    `json:"actor"`
	Comment string    `json:"comment,omitempty"`
	At      time.Time `json:"at"`
}

// Record pairs one patient with one recommended scheme and tracks it
// through the approval chain. Patient, scheme, and facility names are copied
// at creation time.
type Record struct {
	ID              uuid.UUID      `json:"id"`
	PatientID       uuid.UUID      `json:"patientId"`
	PatientName     string         `json:"patientName"`
	SchemeID        uuid.UUID      `json:"schemeId"`
	SchemeName      string         `json:"schemeName"`
	Disease         string         `json:"disease"`
	FacilityName    string         `json:"facilityName"`
	Date            string         `json:"date"`
	CurrentLevel    Level          `json:"currentLevel"`
	Status          Status         `json:"status"`
	Notes           string         `json:"notes,omitempty"`
	RejectionReason string         `json:"rejectionReason,omitempty"`
	History         []HistoryEntry `json:"history"`
	CreatedAt       time.Time      `json:"createdAt"`
	UpdatedAt       time.Time      `json:"updatedAt"`
}

// SchemeRef is the slice of a scheme a record needs.
type SchemeRef struct {
	ID          uuid.UUID
	Name        string
	Description string
}

// NewRecords describes the records to open for a freshly registered
// patient, one per recommended scheme.
type NewRecords struct {
	PatientID    uuid.UUID
	PatientName  string
	Disease      string
	FacilityName string
	Schemes      []SchemeRef
}

const (
	DefaultDisease = "Not specified"
	dateLayout     = "2006-01-02"
)

func (r *Record) normalize() {
	if r.History == nil {
		r.History = []HistoryEntry{}
	}
}

// approve applies one approval step. At the top tier the record becomes
// approved and stays at that tier.
func (r *Record) approve(actor, comment string, at time.Time) {
	r.History = append(r.History, HistoryEntry{Level: r.CurrentLevel, Action: ActionApprove, Actor: actor, Comment: comment, At: at})
	if next, ok := r.CurrentLevel.Next(); ok {
		r.CurrentLevel = next
	} else {
		r.Status = StatusApproved
	}
	r.UpdatedAt = at
}

func (r *Record) reject(actor, reason string, at time.Time) {
	r.History = append(r.History, HistoryEntry{Level: r.CurrentLevel, Action: ActionReject, Actor: actor, Comment: reason, At: at})
	r.Status = StatusRejected
	r.RejectionReason = reason
	r.UpdatedAt = at
}
