// Package model contains domain models passed between layers.
//
// Values here are read snapshots: the engine never mutates a Project or
// Vendor it was handed, and writes go back through the repository contracts.
package model

import "time"

// ProjectStatus is the lifecycle state of a client project.
type ProjectStatus string

// Project lifecycle states.
const (
	ProjectActive ProjectStatus = "active"
	ProjectPaused ProjectStatus = "paused"
	ProjectClosed ProjectStatus = "closed"
)

// Valid reports whether s is a known status.
func (s ProjectStatus) Valid() bool {
	switch s {
	case ProjectActive, ProjectPaused, ProjectClosed:
		return true
	}
	return false
}

// Client owns projects and receives new-match notifications.
type Client struct {
	ID           int64
	CompanyName  string `validate:"required"`
	ContactEmail string `validate:"required,email"`
}

// Project is an expansion project as seen by the matching engine.
type Project struct {
	ID               int64
	ClientID         int64         `validate:"required"`
	Country          string        `validate:"len=2"` // ISO-3166 alpha-2
	RequiredServices []string      // order irrelevant
	Status           ProjectStatus `validate:"oneof=active paused closed"`
	ClientName       string
	ClientEmail      string
}

// Vendor is a service vendor snapshot.
type Vendor struct {
	ID               int64
	Name             string `validate:"required"`
	ContactEmail     string `validate:"omitempty,email"`
	Active           bool
	Rating           int `validate:"gte=0,lte=5"`
	ResponseSLAHours int `validate:"gt=0"`
	Services         []string
	Countries        []string
}

// Candidate is a vendor eligible for a project together with the number of
// service tags it shares with the project.
type Candidate struct {
	VendorID         int64
	VendorName       string
	Rating           int
	ResponseSLAHours int
	ServicesOverlap  int
}

// Match is the persisted pairing of a project and a vendor.
// At most one Match exists per (ProjectID, VendorID).
type Match struct {
	ID        int64
	ProjectID int64
	VendorID  int64
	Score     float64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// VendorMatch is a match of an active vendor together with the vendor's
// committed response time, as read by the SLA sweep.
type VendorMatch struct {
	Match
	ResponseSLAHours int
}

// VendorHealth carries the vendor-level SLA breach flag.
type VendorHealth struct {
	VendorID      int64
	SLAExpired    bool
	LastCheckedAt time.Time
}

// ScoredVendor is a (vendor, score) pair reported to notification channels.
type ScoredVendor struct {
	VendorID        int64   `json:"vendor_id"`
	VendorName      string  `json:"vendor_name,omitempty"`
	Score           float64 `json:"score"`
	ServicesOverlap int     `json:"services_overlap"`
}

// SLABreach describes why a vendor was flagged.
type SLABreach struct {
	MatchID          int64     `json:"match_id"`
	ProjectID        int64     `json:"project_id"`
	ResponseSLAHours int       `json:"response_sla_hours"`
	HoursElapsed     float64   `json:"hours_elapsed"`
	DetectedAt       time.Time `json:"detected_at"`
}
