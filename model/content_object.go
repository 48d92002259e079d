package model

import "time"

// ContentObject is the canonical stored copy of one distinct byte stream.
// The fingerprint is the content hash and the only identity; the row owns
// the physical object named by BucketName/ObjectName.
type ContentObject struct {
	Fingerprint string `gorm:"column:fingerprint;size:64;primaryKey" json:"fingerprint"`

	BucketName string `gorm:"column:bucket_name;size:64;not null" json:"bucket_name,omitempty"`
	ObjectName string `gorm:"column:object_name;size:512;not null" json:"object_name,omitempty"`

	Size int64 `gorm:"column:size;not null" json:"size"`

	RefCount int `gorm:"column:reference_count;not null;default:0" json:"reference_count"`

	CreatedAt time.Time `json:"created_at"`
}

// TableName returns the database table name.
func (ContentObject) TableName() string {
	return "content_object"
}
