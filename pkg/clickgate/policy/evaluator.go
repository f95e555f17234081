// Package policy turns a link's configured rules plus the classified facts
// of an inbound hit into a single verdict. Rules evaluate in a fixed order
// and the first blocking rule governs the reported reason.
package policy

import (
	"context"
	"time"

	"github.com/clickgate/clickgate/pkg/clickgate/geo"
	"github.com/clickgate/clickgate/pkg/clickgate/models"
	"github.com/clickgate/clickgate/pkg/clickgate/useragent"
)

// RequestContext carries the per-hit request facts through the pipeline.
// It is built once at the HTTP boundary; nothing in the core reads ambient
// request state.
type RequestContext struct {
	IP        string
	UserAgent string
	Referer   string
	VisitorID string
	// Password supplied by the visitor for password-gated links
	Password string
	// Email captured from pixel query parameters, when the link allows it
	Email string
}

// BlockReasons reported alongside verdicts
const (
	ReasonLinkInactive     = "link_inactive"
	ReasonLinkExpired      = "link_expired"
	ReasonBotDetected      = "bot_detected"
	ReasonGeoBlocked       = "geo_blocked"
	ReasonRateLimited      = "rate_limited"
	ReasonPasswordRequired = "password_required"
)

// RateLimiter decides whether a hit identified by key is within limits.
// Implementations must fail open: a limiter backend outage should never
// block legitimate traffic.
type RateLimiter interface {
	Allow(ctx context.Context, key string) bool
}

// Evaluator applies a link's access rules to one hit
type Evaluator struct {
	limiter RateLimiter
	now     func() time.Time
}

// NewEvaluator creates an evaluator. A nil limiter disables rate
// verdicts even for links that enable rate limiting.
func NewEvaluator(limiter RateLimiter) *Evaluator {
	return &Evaluator{limiter: limiter, now: time.Now}
}

// Evaluate runs the rule sequence and returns the verdict with its reason.
// The order is a contract: status, expiry, bot, geo, rate, password. A
// suspended link hit by a bot must report "link_inactive", not "bot".
func (e *Evaluator) Evaluate(ctx context.Context, link *models.Link, ua useragent.Facts, loc geo.Location, req RequestContext) (models.Verdict, string) {
	if link.Status != models.LinkStatusActive {
		return models.VerdictBlockExpired, ReasonLinkInactive
	}

	if link.Expired(e.now()) {
		return models.VerdictBlockExpired, ReasonLinkExpired
	}

	if link.BotBlockingEnabled && ua.IsBot {
		return models.VerdictBlockBot, ReasonBotDetected
	}

	if link.GeoTargetingEnabled {
		if !geoPermitted(link.Rules(), loc) {
			return models.VerdictBlockGeo, ReasonGeoBlocked
		}
	}

	if link.RateLimitingEnabled && e.limiter != nil {
		if !e.limiter.Allow(ctx, rateKey(link, req)) {
			return models.VerdictBlockRate, ReasonRateLimited
		}
	}

	if link.Password != "" && req.Password != link.Password {
		return models.VerdictBlockPassword, ReasonPasswordRequired
	}

	return models.VerdictAllow, ""
}

// geoPermitted checks the location against the link's rule set. A non-empty
// allow list must match at some granularity and, when it does, wins outright:
// the block list is not consulted, so a location on both lists is allowed.
// With no allow list configured, any block-list match denies.
func geoPermitted(rules models.RuleSet, loc geo.Location) bool {
	if rules.HasAllowList() {
		return rules.AllowedCountries.Contains(loc.Country) ||
			rules.AllowedRegions.Contains(loc.Region) ||
			rules.AllowedCities.Contains(loc.City)
	}

	if rules.BlockedCountries.Contains(loc.Country) ||
		rules.BlockedRegions.Contains(loc.Region) ||
		rules.BlockedCities.Contains(loc.City) {
		return false
	}
	return true
}

// rateKey scopes rate limiting to one IP hitting one link
func rateKey(link *models.Link, req RequestContext) string {
	return link.ShortCode + ":" + req.IP
}
