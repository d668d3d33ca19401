package admin

import (
	"workshop-booking/internal/registration"
	"workshop-booking/internal/seats"
)

// DuplicateGroup is every registration row sharing one (user, workshop) pair.
type DuplicateGroup struct {
	UserID        string                      `json:"user_id"`
	WorkshopID    string                      `json:"workshop_id"`
	Registrations []registration.Registration `json:"registrations"`
}

// Report is the read-only diagnosis an operator reviews before repairing.
type Report struct {
	WorkshopID string                      `json:"workshop_id"`
	Duplicates []DuplicateGroup            `json:"duplicates"`
	Orphaned   []registration.Registration `json:"orphaned"`
	Stalled    []registration.Registration `json:"stalled"`
	Counts     Counts                      `json:"counts"`
}

type Counts struct {
	DuplicateGroups int `json:"duplicate_groups"`
	// DuplicateRows counts the rows a duplicate cleanup would delete.
	DuplicateRows int `json:"duplicate_rows"`
	Orphaned      int `json:"orphaned"`
	Stalled       int `json:"stalled"`
}

// RepairResult aggregates cleanup and recalculation into one verdict.
type RepairResult struct {
	WorkshopID string         `json:"workshop_id"`
	Success    bool           `json:"success"`
	Canceled   int            `json:"canceled"`
	Seats      seats.Snapshot `json:"seats"`
}

type DuplicateCleanup struct {
	Groups    int      `json:"groups"`
	Deleted   int      `json:"deleted"`
	Workshops []string `json:"workshops"`
}
