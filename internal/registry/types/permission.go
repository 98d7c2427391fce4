package types

import "time"

type PermissionKind string

const (
	PermissionUser  PermissionKind = "user"
	PermissionGroup PermissionKind = "group"
)

// Permission allows a LINE user or group/room to query the registry.
type Permission struct {
	ID          int64          `json:"id"`
	Kind        PermissionKind `json:"kind"`
	ExternalID  string         `json:"external_id"`
	IsActive    bool           `json:"is_active"`
	DisplayName string         `json:"display_name,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// PermissionInput is the admin payload. Nil fields are left unchanged on update.
type PermissionInput struct {
	ExternalID  string  `json:"external_id"`
	IsActive    *bool   `json:"is_active,omitempty"`
	DisplayName *string `json:"display_name,omitempty"`
}
