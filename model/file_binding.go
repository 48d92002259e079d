package model

import "time"

// FileBinding is one logical upload pointing at a ContentObject. The
// Fingerprint column is a lookup reference, not ownership: the object's
// lifetime is governed by its reference count alone.
type FileBinding struct {
	ID string `gorm:"column:id;size:36;primaryKey" json:"id"`

	Fingerprint string         `gorm:"column:fingerprint;size:64;index;not null" json:"fingerprint"`
	Content     *ContentObject `gorm:"foreignKey:Fingerprint;references:Fingerprint" json:"content,omitempty"`

	DisplayName string `gorm:"column:display_name;size:255;not null" json:"display_name"`
	MediaType   string `gorm:"column:media_type;size:100;not null" json:"media_type"`

	CreatedAt time.Time `json:"created_at"`
}

// TableName returns the database table name.
func (FileBinding) TableName() string {
	return "file_binding"
}
