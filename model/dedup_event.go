package model

import "time"

// DedupEvent records one binding that attached to a pre-existing
// ContentObject instead of causing a new physical write. Rows are
// append-only; they reference the binding and fingerprint by plain
// columns so the log survives unbinds.
type DedupEvent struct {
	ID uint64 `gorm:"primaryKey" json:"id"`

	Fingerprint string `gorm:"column:fingerprint;size:64;index;not null" json:"fingerprint"`
	BindingID   string `gorm:"column:binding_id;size:36;not null" json:"binding_id"`

	DisplayName string `gorm:"column:display_name;size:255;not null" json:"display_name"`
	MediaType   string `gorm:"column:media_type;size:100;index;not null" json:"media_type"`

	// SizeSaved is the byte size of the duplicate upload, i.e. the
	// storage that did not have to be written.
	SizeSaved int64 `gorm:"column:size_saved;not null" json:"size_saved"`

	DetectedAt time.Time `gorm:"column:detected_at;index;autoCreateTime" json:"detected_at"`
}

// TableName returns the database table name.
func (DedupEvent) TableName() string {
	return "dedup_event"
}
