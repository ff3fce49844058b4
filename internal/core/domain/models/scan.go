package models

import "time"

// ScanFile is one scanned PDF offered by a scan source.
type ScanFile struct {
	// ID is unique within its source: a path for a folder, an entry id for a feed.
	ID        string    `json:"id" yaml:"id"`
	Name      string    `json:"name" yaml:"name"`
	Location  string    `json:"location" yaml:"location"`
	Size      int64     `json:"size" yaml:"size"`
	ScannedAt time.Time `json:"scanned_at" yaml:"scanned_at"`
	Station   string    `json:"station,omitempty" yaml:"station,omitempty"`
	MediaType string    `json:"media_type,omitempty" yaml:"media_type,omitempty"`
}

// UploadRecord is a ledger entry for a file that was sent to the API.
type UploadRecord struct {
	SHA256     string    `json:"sha256" yaml:"sha256"`
	FileName   string    `json:"file_name" yaml:"file_name"`
	Size       int64     `json:"size" yaml:"size"`
	BatchID    int64     `json:"batch_id" yaml:"batch_id"`
	UploadedAt time.Time `json:"uploaded_at" yaml:"uploaded_at"`
}
