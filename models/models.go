package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type Role string

const (
	RoleCustomer   Role = "customer"
	RoleContractor Role = "contractor"
	RoleSupport    Role = "support"
	RoleAdmin      Role = "admin"
)

func ValidRole(r Role) bool {
	switch r {
	case RoleCustomer, RoleContractor, RoleSupport, RoleAdmin:
		return true
	default:
		return false
	}
}

// Principal is the acting user of a request, supplied by the auth layer.
type Principal struct {
	ID   uuid.UUID `json:"id"`
	Role Role      `json:"role"`
}

type AdStatus string

const (
	AdOpen      AdStatus = "open"
	AdAssigned  AdStatus = "assigned"
	AdDone      AdStatus = "done"
	AdCancelled AdStatus = "cancelled"
)

func ValidAdStatus(s AdStatus) bool {
	switch s {
	case AdOpen, AdAssigned, AdDone, AdCancelled:
		return true
	default:
		return false
	}
}

// Completion tracks the contractor-done / customer-confirmed handshake.
type Completion string

const (
	CompletionPending             Completion = "pending"
	CompletionContractorConfirmed Completion = "contractor_confirmed"
	CompletionBothConfirmed       Completion = "both_confirmed"
)

// Owned is implemented by records that belong to one principal.
type Owned interface {
	OwnerIdentity() uuid.UUID
}

// IsOwner reports whether p owns o.
func IsOwner(p Principal, o Owned) bool {
	if o == nil || p.ID == uuid.Nil {
		return false
	}
	return o.OwnerIdentity() == p.ID
}

// Advertisement entity
type Advertisement struct {
	ID                   uuid.UUID  `db:"id" json:"id"`
	Title                string     `db:"title" json:"title"`
	Description          string     `db:"description" json:"description"`
	Category             string     `db:"category" json:"category"`
	Status               AdStatus   `db:"status" json:"status"`
	OwnerID              uuid.UUID  `db:"owner_id" json:"ownerId"`
	AssignedContractorID *uuid.UUID `db:"assigned_contractor_id" json:"assignedContractorId,omitempty"`
	ExecutionTime        *time.Time `db:"execution_time" json:"executionTime,omitempty"`
	Location             *string    `db:"location" json:"location,omitempty"`
	Completion           Completion `db:"completion" json:"-"`
	CreatedAt            time.Time  `db:"created_at" json:"createdAt"`
	UpdatedAt            time.Time  `db:"updated_at" json:"-"`
}

func (a *Advertisement) OwnerIdentity() uuid.UUID { return a.OwnerID }

func (a *Advertisement) ContractorDone() bool {
	return a.Completion == CompletionContractorConfirmed || a.Completion == CompletionBothConfirmed
}

func (a *Advertisement) CustomerConfirmed() bool {
	return a.Completion == CompletionBothConfirmed
}

// IsAssignedTo reports whether contractorID is the assigned contractor.
func (a *Advertisement) IsAssignedTo(contractorID uuid.UUID) bool {
	return a.AssignedContractorID != nil && *a.AssignedContractorID == contractorID
}

func (a Advertisement) MarshalJSON() ([]byte, error) {
	type plain Advertisement
	return json.Marshal(struct {
		plain
		ContractorDone    bool `json:"contractorDone"`
		CustomerConfirmed bool `json:"customerConfirmed"`
	}{
		plain:             plain(a),
		ContractorDone:    a.ContractorDone(),
		CustomerConfirmed: a.CustomerConfirmed(),
	})
}

// NewAdvertisement holds the caller-settable fields on creation.
type NewAdvertisement struct {
	Title         string     `json:"title"`
	Description   string     `json:"description"`
	Category      string     `json:"category"`
	ExecutionTime *time.Time `json:"executionTime"`
	Location      *string    `json:"location"`
}

// AdvertisementUpdate is a partial update. A nil field is left unchanged;
// ClearExecutionTime unsets the execution time.
type AdvertisementUpdate struct {
	Title              *string
	Description        *string
	Category           *string
	ExecutionTime      *time.Time
	ClearExecutionTime bool
	Location           *string
}

// Fields lists the names of the fields present in the update.
func (u AdvertisementUpdate) Fields() []string {
	var fields []string
	if u.Title != nil {
		fields = append(fields, "title")
	}
	if u.Description != nil {
		fields = append(fields, "description")
	}
	if u.Category != nil {
		fields = append(fields, "category")
	}
	if u.ExecutionTime != nil || u.ClearExecutionTime {
		fields = append(fields, "executionTime")
	}
	if u.Location != nil {
		fields = append(fields, "location")
	}
	return fields
}

// Bid entity
type Bid struct {
	ID              uuid.UUID `db:"id" json:"id"`
	AdvertisementID uuid.UUID `db:"advertisement_id" json:"advertisementId"`
	ContractorID    uuid.UUID `db:"contractor_id" json:"contractorId"`
	CreatedAt       time.Time `db:"created_at" json:"createdAt"`
}

// Comment entity (rating)
type Comment struct {
	ID              uuid.UUID `db:"id" json:"id"`
	AdvertisementID uuid.UUID `db:"advertisement_id" json:"advertisementId"`
	AuthorID        uuid.UUID `db:"author_id" json:"authorId"`
	ContractorID    uuid.UUID `db:"contractor_id" json:"contractorId"`
	Score           int       `db:"score" json:"score"`
	Text            string    `db:"text" json:"text"`
	CreatedAt       time.Time `db:"created_at" json:"createdAt"`
}

func (c *Comment) OwnerIdentity() uuid.UUID { return c.AuthorID }

type NewComment struct {
	ContractorID uuid.UUID `json:"contractorId"`
	Score        int       `json:"score"`
	Text         string    `json:"text"`
}

// ContractorStats is the derived rating aggregate of one contractor.
type ContractorStats struct {
	ContractorID uuid.UUID `db:"contractor_id" json:"contractorId"`
	AvgScore     float64   `db:"avg_score" json:"avgScore"`
	RatingCount  int       `db:"rating_count" json:"ratingCount"`
}

type ContractorProfile struct {
	ContractorStats
	DoneCount int       `json:"doneAdsCount"`
	Comments  []Comment `json:"comments"`
}

type AdvertisementFilter struct {
	OwnerID              *uuid.UUID
	AssignedContractorID *uuid.UUID
	Status               *AdStatus
	// ExecutionDate matches execution times on the same UTC calendar day.
	ExecutionDate *time.Time
	Limit         int
	Offset        int
}

type CommentFilter struct {
	ContractorID *uuid.UUID
	MinScore     *int
	MaxScore     *int
	Limit        int
	Offset       int
}

type StatsSort string

const (
	SortByScore StatsSort = "score"
	SortByCount StatsSort = "comments"
)

type ContractorStatsFilter struct {
	MinScore *float64
	MinCount *int
	SortBy   StatsSort
	Limit    int
	Offset   int
}
