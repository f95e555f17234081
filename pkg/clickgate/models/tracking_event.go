package models

import (
	"time"
)

// Verdict is the access policy decision for a single hit
type Verdict string

const (
	VerdictAllow         Verdict = "allowed"
	VerdictBlockBot      Verdict = "blocked_bot"
	VerdictBlockGeo      Verdict = "blocked_geo"
	VerdictBlockRate     Verdict = "blocked_rate"
	VerdictBlockExpired  Verdict = "blocked_expired"
	VerdictBlockPassword Verdict = "blocked_password"
)

// Blocked reports whether the verdict is any of the Block* outcomes
func (v Verdict) Blocked() bool {
	return v != VerdictAllow
}

// TrackingEvent is one immutable record of a single inbound hit against a
// link. Events are created exclusively by the recorder and never updated;
// they go away only through the owning link's cascade or explicit deletion.
type TrackingEvent struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	LinkID    uint      `gorm:"not null;index" json:"link_id"`
	Timestamp time.Time `gorm:"index" json:"timestamp"`

	IPAddress string `gorm:"size:45" json:"ip_address"`
	UserAgent string `gorm:"type:text" json:"user_agent"`
	Referer   string `gorm:"type:text" json:"referer"`

	// Derived from the user agent at record time
	Browser        string `gorm:"size:50" json:"browser"`
	BrowserVersion string `gorm:"size:20" json:"browser_version"`
	OS             string `gorm:"size:50" json:"os"`
	OSVersion      string `gorm:"size:20" json:"os_version"`
	DeviceType     string `gorm:"size:20" json:"device_type"`
	IsBot          bool   `gorm:"default:false" json:"is_bot"`

	// Best-effort geo data; "Unknown" when the lookup failed or missed
	Country string `gorm:"size:100" json:"country"`
	Region  string `gorm:"size:100" json:"region"`
	City    string `gorm:"size:100" json:"city"`
	ISP     string `gorm:"size:150" json:"isp"`

	Verdict     Verdict `gorm:"type:varchar(20);index" json:"verdict"`
	BlockReason string  `gorm:"size:100" json:"block_reason,omitempty"`

	// Client-supplied correlation token (or generated when absent)
	VisitorID string `gorm:"size:64;index" json:"visitor_id,omitempty"`

	// Only populated when the link has capture enabled
	CapturedEmail    string `gorm:"size:255" json:"captured_email,omitempty"`
	CapturedPassword string `gorm:"size:255" json:"-"`
}

// TableName specifies the table name
func (TrackingEvent) TableName() string {
	return "tracking_events"
}
