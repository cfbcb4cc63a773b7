package models

import "time"

// FormationType distinguishes remote from on-site programs.
type FormationType string

const (
	FormationOnline     FormationType = "ONLINE"
	FormationPresentiel FormationType = "PRESENTIEL"
)

// Formation is the top-level sellable program owned by a formateur.
type Formation struct {
	ID          string        `db:"id" json:"id"`
	Title       string        `db:"title" json:"title"`
	Description string        `db:"description" json:"description"`
	Price       float64       `db:"price" json:"price"`
	Type        FormationType `db:"type" json:"type"`
	Published   bool          `db:"published" json:"published"`
	FormateurID string        `db:"formateur_id" json:"formateur_id"`
	Location    *string       `db:"location" json:"location,omitempty"`
	StartDate   *time.Time    `db:"start_date" json:"start_date,omitempty"`
	EndDate     *time.Time    `db:"end_date" json:"end_date,omitempty"`
	CreatedAt   time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time     `db:"updated_at" json:"updated_at"`
}

// FormationDetail is a formation with its owner name and courses.
type FormationDetail struct {
	Formation
	FormateurName string   `db:"formateur_name" json:"formateur_name"`
	Courses       []Course `db:"-" json:"courses"`
}

// FormationFilter scopes formation listings.
type FormationFilter struct {
	FormateurID string
	Published   *bool
	Type        FormationType
	Search      string
	Page        int
	PageSize    int
	SortBy      string
	SortOrder   string
}

// FormationRequest is the create/update payload for a formation.
type FormationRequest struct {
	Title       string        `json:"title" validate:"required,min=3,max=200"`
	Description string        `json:"description" validate:"max=5000"`
	Price       float64       `json:"price" validate:"gte=0"`
	Type        FormationType `json:"type" validate:"required,oneof=ONLINE PRESENTIEL"`
	Location    *string       `json:"location" validate:"omitempty,max=255"`
	StartDate   *time.Time    `json:"start_date"`
	EndDate     *time.Time    `json:"end_date"`
}
