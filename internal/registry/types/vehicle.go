package types

import (
	"strings"
	"time"
)

// Vehicle is one registry record. Optional text fields use "" for absent.
type Vehicle struct {
	ID           int64     `json:"id"`
	LicensePlate string    `json:"license_plate"`
	Brand        string    `json:"brand,omitempty"`
	Model        string    `json:"model,omitempty"`
	OwnerName    string    `json:"owner_name,omitempty"`
	ContactInfo  string    `json:"contact_info,omitempty"`
	Color        string    `json:"color,omitempty"`
	VIN          string    `json:"vin,omitempty"`
	RecordedDate *Date     `json:"recorded_date,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// VehicleInput is the admin-facing create/update payload. RecordedDate is a
// raw YYYY-MM-DD string so blank and malformed input can be told apart from
// "keep existing".
type VehicleInput struct {
	LicensePlate string `json:"license_plate"`
	Brand        string `json:"brand"`
	Model        string `json:"model"`
	OwnerName    string `json:"owner_name"`
	ContactInfo  string `json:"contact_info"`
	Color        string `json:"color"`
	VIN          string `json:"vin"`
	RecordedDate string `json:"recorded_date"`
}

// NormalizePlate lower-cases s and drops the separators people type
// inconsistently, so "ABC123" and "abc-123" compare equal.
func NormalizePlate(s string) string {
	return plateSeparators.Replace(strings.ToLower(strings.TrimSpace(s)))
}

var plateSeparators = strings.NewReplacer(" ", "", "-", "", ".", "")
