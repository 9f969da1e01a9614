package models

import "gorm.io/datatypes"

// Scan event classifications assigned by the scan loop.
const (
	ScanClassRSVP    = "rsvp"
	ScanClassInvalid = "invalid"
	ScanClassForeign = "foreign"
)

// ScanEvent is the audit record for one accepted decode event: what the
// scanner read, how it was classified, and (for RSVP payloads) how the
// check-in resolved. Rows are pruned by the maintenance reporter; registrant
// records never are.
type ScanEvent struct {
	BaseModel

	Classification string         `gorm:"not null;index" json:"classification"`
	Token          string         `gorm:"size:64;index" json:"token,omitempty"`
	RawText        string         `json:"raw_text,omitempty"`
	Payload        datatypes.JSON `json:"payload,omitempty"`
	Outcome        string         `gorm:"index" json:"outcome,omitempty"`
}
