package dto

import "time"

// BindingResult is the outcome of binding content to the store.
type BindingResult struct {
	BindingID   string    `json:"binding_id"`
	Fingerprint string    `json:"fingerprint"`
	DisplayName string    `json:"display_name"`
	MediaType   string    `json:"media_type"`
	Size        int64     `json:"size"`
	IsDuplicate bool      `json:"is_duplicate"`
	CreatedAt   time.Time `json:"created_at"`
}

// BindingInfo is one logical file in a listing. Shared reports whether
// the content behind it is referenced by other bindings too.
type BindingInfo struct {
	BindingID   string    `json:"binding_id"`
	Fingerprint string    `json:"fingerprint"`
	DisplayName string    `json:"display_name"`
	MediaType   string    `json:"media_type"`
	Size        int64     `json:"size"`
	Shared      bool      `json:"shared"`
	CreatedAt   time.Time `json:"created_at"`
}

// SweepResult reports an orphan sweep run.
type SweepResult struct {
	Purged int `json:"purged"`
}
