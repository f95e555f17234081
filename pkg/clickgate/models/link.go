package models

import (
	"encoding/json"
	"strings"
	"time"

	"gorm.io/gorm"
)

// LinkStatus represents the lifecycle state of a tracking link
type LinkStatus string

const (
	LinkStatusActive    LinkStatus = "active"
	LinkStatusPaused    LinkStatus = "paused"
	LinkStatusSuspended LinkStatus = "suspended"
)

// Link represents a tracked short link owned by a user.
// The short code is assigned once at creation and never changes except via
// an explicit regenerate. Counters are only mutated by the event recorder.
type Link struct {
	ID         uint           `gorm:"primarykey" json:"id"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
	DeletedAt  gorm.DeletedAt `gorm:"index" json:"-"`
	UserID     uint           `gorm:"not null;index" json:"user_id"`
	CampaignID *uint          `gorm:"index" json:"campaign_id,omitempty"`

	ShortCode    string     `gorm:"size:16;uniqueIndex;not null" json:"short_code"`
	TargetURL    string     `gorm:"type:text;not null" json:"target_url"`
	Title        string     `json:"title"`
	CampaignName string     `json:"campaign_name"`
	Status       LinkStatus `gorm:"type:varchar(20);default:'active'" json:"status"`

	// Access rules
	BotBlockingEnabled  bool       `gorm:"default:true" json:"bot_blocking_enabled"`
	RateLimitingEnabled bool       `gorm:"default:false" json:"rate_limiting_enabled"`
	GeoTargetingEnabled bool       `gorm:"default:false" json:"geo_targeting_enabled"`
	CaptureEmail        bool       `gorm:"default:false" json:"capture_email"`
	CapturePassword     bool       `gorm:"default:false" json:"capture_password"`
	Password            string     `json:"-"`
	ExpiresAt           *time.Time `json:"expires_at,omitempty"`

	// Geo allow/block lists, stored as JSON arrays of location names
	AllowedCountries string `gorm:"type:text" json:"-"`
	BlockedCountries string `gorm:"type:text" json:"-"`
	AllowedRegions   string `gorm:"type:text" json:"-"`
	BlockedRegions   string `gorm:"type:text" json:"-"`
	AllowedCities    string `gorm:"type:text" json:"-"`
	BlockedCities    string `gorm:"type:text" json:"-"`

	// Aggregate counters, maintained transactionally with event inserts
	TotalClicks     uint `gorm:"default:0" json:"total_clicks"`
	RealVisitors    uint `gorm:"default:0" json:"real_visitors"`
	BlockedAttempts uint `gorm:"default:0" json:"blocked_attempts"`

	// Relationships
	User   User            `gorm:"foreignKey:UserID" json:"-"`
	Events []TrackingEvent `gorm:"foreignKey:LinkID;constraint:OnDelete:CASCADE" json:"-"`
}

// TableName specifies the table name
func (Link) TableName() string {
	return "links"
}

// LocationSet is a case-insensitive set of location names
type LocationSet map[string]struct{}

// Contains reports whether name is in the set. Empty names never match.
func (s LocationSet) Contains(name string) bool {
	if name == "" {
		return false
	}
	_, ok := s[strings.ToLower(name)]
	return ok
}

// Empty reports whether the set has no entries
func (s LocationSet) Empty() bool {
	return len(s) == 0
}

// RuleSet is the parsed, read-only view of a link's geo rules.
// It is built once per hit from the JSON columns so policy evaluation
// never touches raw storage encodings.
type RuleSet struct {
	AllowedCountries LocationSet
	BlockedCountries LocationSet
	AllowedRegions   LocationSet
	BlockedRegions   LocationSet
	AllowedCities    LocationSet
	BlockedCities    LocationSet
}

// HasAllowList reports whether any allow list has entries
func (r RuleSet) HasAllowList() bool {
	return !r.AllowedCountries.Empty() || !r.AllowedRegions.Empty() || !r.AllowedCities.Empty()
}

// Rules parses the link's JSON-encoded geo lists into a typed RuleSet.
// Malformed or empty columns yield empty sets rather than errors, since a
// broken rule must degrade to "no restriction" and never fail the hit.
func (l *Link) Rules() RuleSet {
	return RuleSet{
		AllowedCountries: parseLocationSet(l.AllowedCountries),
		BlockedCountries: parseLocationSet(l.BlockedCountries),
		AllowedRegions:   parseLocationSet(l.AllowedRegions),
		BlockedRegions:   parseLocationSet(l.BlockedRegions),
		AllowedCities:    parseLocationSet(l.AllowedCities),
		BlockedCities:    parseLocationSet(l.BlockedCities),
	}
}

// Expired reports whether the link has an expiry in the past relative to now
func (l *Link) Expired(now time.Time) bool {
	return l.ExpiresAt != nil && now.After(*l.ExpiresAt)
}

func parseLocationSet(raw string) LocationSet {
	set := LocationSet{}
	if raw == "" {
		return set
	}
	var names []string
	if err := json.Unmarshal([]byte(raw), &names); err != nil {
		return set
	}
	for _, name := range names {
		name = strings.TrimSpace(strings.ToLower(name))
		if name != "" {
			set[name] = struct{}{}
		}
	}
	return set
}

// EncodeLocationList serializes location names for storage in a rule column.
// An empty list encodes as the empty string so unset rules stay NULL-ish.
func EncodeLocationList(names []string) string {
	if len(names) == 0 {
		return ""
	}
	data, err := json.Marshal(names)
	if err != nil {
		return ""
	}
	return string(data)
}
