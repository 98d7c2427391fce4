package types

import "time"

// SourceType is where a webhook event originated.
type SourceType string

const (
	SourceUser  SourceType = "user"
	SourceGroup SourceType = "group"
	SourceRoom  SourceType = "room"
)

// MaxQueryTextLen bounds the stored query text, in runes.
const MaxQueryTextLen = 255

// QueryLog is one audit entry for a query-bearing webhook event.
type QueryLog struct {
	ID                 int64      `json:"id"`
	CreatedAt          time.Time  `json:"created_at"`
	SourceType         SourceType `json:"source_type"`
	UserID             string     `json:"user_id,omitempty"`
	GroupID            string     `json:"group_id,omitempty"`
	QueryText          string     `json:"query_text"`
	MatchedCount       *int       `json:"matched_count"`
	Allowed            bool       `json:"allowed"`
	ActorDisplayName   *string    `json:"actor_display_name,omitempty"`
	ContextDisplayName *string    `json:"context_display_name,omitempty"`
}

// Admin is an operator account. The hash never leaves the store layer in JSON.
type Admin struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Stats is the admin dashboard summary.
type Stats struct {
	Vehicles   int `json:"vehicles"`
	LineUsers  int `json:"line_users"`
	LineGroups int `json:"line_groups"`
	Admins     int `json:"admins"`
}
