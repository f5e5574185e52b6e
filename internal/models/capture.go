// Package models provides data model definitions for FieldSync.
package models

// CaptureStatus represents the delivery state of a queued capture.
type CaptureStatus string

const (
	CaptureStatusPending   CaptureStatus = "pending"
	CaptureStatusUploading CaptureStatus = "uploading"
	CaptureStatusFailed    CaptureStatus = "failed"
)

// GeoPoint is the device location recorded with a capture.
type GeoPoint struct {
	Latitude  float64 `db:"latitude" json:"latitude"`
	Longitude float64 `db:"longitude" json:"longitude"`
	Accuracy  float64 `db:"accuracy" json:"accuracy"`
}

// PendingCapture represents one queued photo awaiting delivery.
// The row is the durable source of truth: it exists from enqueue until the
// upload protocol confirms success, and is never deleted on failure.
type PendingCapture struct {
	ID          int64         `db:"id" json:"id"`
	ProjectID   int64         `db:"project_id" json:"project_id"`
	MilestoneID *int64        `db:"milestone_id" json:"milestone_id,omitempty"`
	Payload     []byte        `db:"payload" json:"-"`
	MimeType    string        `db:"mime_type" json:"mime_type"`
	FileName    string        `db:"file_name" json:"file_name"`
	FileSize    int64         `db:"file_size" json:"file_size"`
	Location    *GeoPoint     `json:"location,omitempty"`
	Category    string        `db:"category" json:"category"`
	Note        string        `db:"note" json:"note"`
	Tags        []string      `db:"tags" json:"tags"`
	CapturedAt  int64         `db:"captured_at" json:"captured_at"`
	Status      CaptureStatus `db:"status" json:"status"`
	RetryCount  int           `db:"retry_count" json:"retry_count"`
	CreatedAt   int64         `db:"created_at" json:"created_at"`
}

// TableName returns the table name for PendingCapture.
func (PendingCapture) TableName() string {
	return "pending_captures"
}

// CachedProjectRef is a replaceable snapshot of a remote project identifier,
// used only to populate the offline project picker.
type CachedProjectRef struct {
	ID     int64  `db:"id" json:"id"`
	Name   string `db:"name" json:"name"`
	Code   string `db:"code" json:"code"`
	Status string `db:"status" json:"status"`
}

// TableName returns the table name for CachedProjectRef.
func (CachedProjectRef) TableName() string {
	return "project_cache"
}
