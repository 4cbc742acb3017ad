package registry

import "strings"

// Status is the user-assigned connectivity classification of a device.
type Status string

// Recognised device statuses. Only Online and Cloud-Connected contribute
// to exposure derivation; Local-only and Disconnected never do.
const (
	StatusDisconnected Status = "Disconnected"
	StatusLocalOnly    Status = "Local-only"
	StatusOnline       Status = "Online"
	StatusCloud        Status = "Cloud-Connected"
)

// Valid reports whether s is a recognised status value.
func (s Status) Valid() bool {
	switch s {
	case StatusDisconnected, StatusLocalOnly, StatusOnline, StatusCloud:
		return true
	}
	return false
}

// Sensitivity is the user-assigned privacy weighting of a device.
type Sensitivity string

// Recognised sensitivity values.
const (
	SensitivityHigh   Sensitivity = "high"
	SensitivityMedium Sensitivity = "medium"
	SensitivityLow    Sensitivity = "low"
)

// Valid reports whether s is a recognised sensitivity value.
func (s Sensitivity) Valid() bool {
	switch s {
	case SensitivityHigh, SensitivityMedium, SensitivityLow:
		return true
	}
	return false
}

// Record is the persisted per-device metadata, keyed by lowercase MAC.
// Records are created implicitly on first write and never deleted.
type Record struct {
	Category    string      `json:"category,omitempty"`
	Sensitivity Sensitivity `json:"sensitivity,omitempty"`
	Status      Status      `json:"status,omitempty"`
}

// EffectiveStatus returns the record status, defaulting to Online for
// legacy records that lack the field.
func (r Record) EffectiveStatus() Status {
	if r.Status == "" {
		return StatusOnline
	}
	return r.Status
}

// Attributes is a partial record for merge writes. Nil fields are left
// untouched on the stored record.
type Attributes struct {
	Category    *string      `json:"category,omitempty"`
	Sensitivity *Sensitivity `json:"sensitivity,omitempty"`
	Status      *Status      `json:"status,omitempty"`
}

// Client is the enriched view of a live network client merged with its
// registry record. Signal is nil when the enumeration source had no live
// association data.
type Client struct {
	MAC         string      `json:"mac"`
	IP          string      `json:"ip,omitempty"`
	Hostname    string      `json:"hostname"`
	Signal      *int        `json:"signal"`
	Category    string      `json:"category,omitempty"`
	Sensitivity Sensitivity `json:"sensitivity,omitempty"`
	Status      Status      `json:"status"`
}

// NormalizeMAC canonicalises a MAC address for use as a store key.
// Matching is case-insensitive throughout the system.
func NormalizeMAC(mac string) string {
	return strings.ToLower(strings.TrimSpace(mac))
}
