package domain

import (
	"fmt"
	"time"
)

// DateLayout is the storage and wire format for record dates
const DateLayout = "2006-01-02"

// Kind identifies a canonical entity dictionary
type Kind string

const (
	KindTechnician Kind = "technician"
	KindClient     Kind = "client"
	KindTaskType   Kind = "task_type"
	KindModality   Kind = "modality"
	KindGroup      Kind = "group"
)

// Kinds lists every entity kind in a stable order
var Kinds = []Kind{KindTechnician, KindClient, KindTaskType, KindModality, KindGroup}

// Weighted reports whether the kind carries a weight table
func (k Kind) Weighted() bool {
	return k == KindTaskType || k == KindClient || k == KindGroup
}

// ParseKind validates a kind name
func ParseKind(s string) (Kind, error) {
	for _, k := range Kinds {
		if string(k) == s {
			return k, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidKind, s)
}

// Entity is a canonical dictionary entry referenced by work records
type Entity struct {
	ID       string    `json:"id"`
	Kind     Kind      `json:"kind"`
	Name     string    `json:"name"`
	NormName string    `json:"norm_name"`
	GroupID  *string   `json:"group_id,omitempty"`
	Created  time.Time `json:"created_at"`
}

// WorkRecord is one line of logged work
type WorkRecord struct {
	ID           string    `json:"id"`
	Date         time.Time `json:"date"`
	TechnicianID string    `json:"technician_id"`
	ClientID     string    `json:"client_id"`
	TaskTypeID   string    `json:"task_type_id"`
	ModalityID   string    `json:"modality_id"`
	Description  string    `json:"description"`
	TicketNumber string    `json:"ticket_number"`
	Hours        float64   `json:"hours"`
	FreeText     string    `json:"free_text,omitempty"`
	MonthBucket  string    `json:"month_bucket"`
	OwnerUserID  *string   `json:"owner_user_id,omitempty"`
}

// UnownedRecord is a record without an owner together with its technician's name
type UnownedRecord struct {
	RecordID       string
	TechnicianName string
}

// MonthBucketOf returns the YYYY-MM bucket a date belongs to
func MonthBucketOf(t time.Time) string {
	return t.Format("2006-01")
}

// Weight is an admin-assigned importance for a task type, client or group
type Weight struct {
	Kind       Kind   `json:"kind"`
	EntityName string `json:"entity_name"`
	Weight     int    `json:"weight"`
}

// MaxWeight is the largest weight an admin can assign
const MaxWeight = 5

// User is an account records can be assigned to
type User struct {
	ID        string `json:"id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// Contact is a person at a client organization
type Contact struct {
	ID          string `json:"id"`
	ClientID    string `json:"client_id"`
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	NormName    string `json:"-"`
	RoleTitle   string `json:"role_title,omitempty"`
	WorkEmail   string `json:"work_email,omitempty"`
	WorkPhone   string `json:"work_phone,omitempty"`
	MobilePhone string `json:"mobile_phone,omitempty"`
	Notes       string `json:"notes,omitempty"`
}

// DateFilter narrows the records a report covers. Zero values mean unbounded.
type DateFilter struct {
	From        time.Time `json:"from,omitempty"`
	To          time.Time `json:"to,omitempty"`
	MonthBucket string    `json:"month_bucket,omitempty"`
}

// ScoredRecord is a work record joined with the weights of its dimensions
type ScoredRecord struct {
	RecordID       string
	ClientID       string
	ClientName     string
	TechnicianID   string
	TechnicianName string
	GroupID        string
	GroupName      string
	Hours          float64
	TypeWeight     int
	ClientWeight   int
	GroupWeight    int
}
