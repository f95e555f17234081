package policy

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"

	"github.com/clickgate/clickgate/pkg/clickgate/geo"
	"github.com/clickgate/clickgate/pkg/clickgate/models"
	"github.com/clickgate/clickgate/pkg/clickgate/useragent"
)

// denyAll is a limiter stub that rejects every hit
type denyAll struct{}

func (denyAll) Allow(context.Context, string) bool { return false }

// allowAll is a limiter stub that accepts every hit
type allowAll struct{}

func (allowAll) Allow(context.Context, string) bool { return true }

func activeLink() *models.Link {
	return &models.Link{
		ShortCode: "abc12345",
		TargetURL: "https://example.com",
		Status:    models.LinkStatusActive,
	}
}

func humanFacts() useragent.Facts {
	return useragent.Facts{Browser: "Chrome", OS: "Windows", DeviceType: useragent.DeviceDesktop}
}

func botFacts() useragent.Facts {
	return useragent.Facts{Browser: useragent.Unknown, OS: useragent.Unknown, DeviceType: useragent.DeviceDesktop, IsBot: true}
}

func TestEvaluateAllow(t *testing.T) {
	e := NewEvaluator(nil)
	verdict, reason := e.Evaluate(context.Background(), activeLink(), humanFacts(), geo.Unknown(), RequestContext{IP: "203.0.113.1"})
	assert.Equal(t, models.VerdictAllow, verdict)
	assert.Empty(t, reason)
}

func TestEvaluateStatusPrecedesEverything(t *testing.T) {
	e := NewEvaluator(denyAll{})
	past := time.Now().Add(-time.Hour)

	// A suspended link hit by a bot from a blocked location while over the
	// rate limit must still report the inactive reason.
	link := activeLink()
	link.Status = models.LinkStatusSuspended
	link.BotBlockingEnabled = true
	link.RateLimitingEnabled = true
	link.GeoTargetingEnabled = true
	link.ExpiresAt = &past
	link.BlockedCountries = models.EncodeLocationList([]string{"Germany"})

	verdict, reason := e.Evaluate(context.Background(), link, botFacts(), geo.Location{Country: "Germany"}, RequestContext{IP: "203.0.113.1"})
	assert.Equal(t, models.VerdictBlockExpired, verdict)
	assert.Equal(t, ReasonLinkInactive, reason)

	link.Status = models.LinkStatusPaused
	verdict, reason = e.Evaluate(context.Background(), link, humanFacts(), geo.Unknown(), RequestContext{})
	assert.Equal(t, models.VerdictBlockExpired, verdict)
	assert.Equal(t, ReasonLinkInactive, reason)
}

func TestEvaluateExpiryPrecedesBot(t *testing.T) {
	e := NewEvaluator(nil)
	past := time.Now().Add(-time.Minute)

	link := activeLink()
	link.BotBlockingEnabled = true
	link.ExpiresAt = &past

	verdict, reason := e.Evaluate(context.Background(), link, botFacts(), geo.Unknown(), RequestContext{})
	assert.Equal(t, models.VerdictBlockExpired, verdict)
	assert.Equal(t, ReasonLinkExpired, reason)
}

func TestEvaluateBotBlocking(t *testing.T) {
	e := NewEvaluator(nil)

	link := activeLink()
	link.BotBlockingEnabled = true

	verdict, reason := e.Evaluate(context.Background(), link, botFacts(), geo.Unknown(), RequestContext{})
	assert.Equal(t, models.VerdictBlockBot, verdict)
	assert.Equal(t, ReasonBotDetected, reason)

	// Bot blocking disabled lets the bot through
	link.BotBlockingEnabled = false
	verdict, _ = e.Evaluate(context.Background(), link, botFacts(), geo.Unknown(), RequestContext{})
	assert.Equal(t, models.VerdictAllow, verdict)
}

func TestEvaluateGeoAllowList(t *testing.T) {
	e := NewEvaluator(nil)

	link := activeLink()
	link.GeoTargetingEnabled = true
	link.AllowedCountries = models.EncodeLocationList([]string{"Germany"})

	verdict, _ := e.Evaluate(context.Background(), link, humanFacts(), geo.Location{Country: "Germany"}, RequestContext{})
	assert.Equal(t, models.VerdictAllow, verdict)

	verdict, reason := e.Evaluate(context.Background(), link, humanFacts(), geo.Location{Country: "France"}, RequestContext{})
	assert.Equal(t, models.VerdictBlockGeo, verdict)
	assert.Equal(t, ReasonGeoBlocked, reason)

	// Unresolvable location cannot match a configured allow list
	verdict, _ = e.Evaluate(context.Background(), link, humanFacts(), geo.Unknown(), RequestContext{})
	assert.Equal(t, models.VerdictBlockGeo, verdict)
}

func TestEvaluateGeoAllowListGranularity(t *testing.T) {
	e := NewEvaluator(nil)

	link := activeLink()
	link.GeoTargetingEnabled = true
	link.AllowedCities = models.EncodeLocationList([]string{"Munich"})

	// A city-level match satisfies the allow list even though country lists are empty
	verdict, _ := e.Evaluate(context.Background(), link, humanFacts(), geo.Location{Country: "Germany", City: "Munich"}, RequestContext{})
	assert.Equal(t, models.VerdictAllow, verdict)
}

func TestEvaluateGeoBlockList(t *testing.T) {
	e := NewEvaluator(nil)

	link := activeLink()
	link.GeoTargetingEnabled = true
	link.BlockedCountries = models.EncodeLocationList([]string{"Germany"})

	verdict, _ := e.Evaluate(context.Background(), link, humanFacts(), geo.Location{Country: "Germany"}, RequestContext{})
	assert.Equal(t, models.VerdictBlockGeo, verdict)

	verdict, _ = e.Evaluate(context.Background(), link, humanFacts(), geo.Location{Country: "France"}, RequestContext{})
	assert.Equal(t, models.VerdictAllow, verdict)

	// Without an allow list, Unknown locations pass the block list
	verdict, _ = e.Evaluate(context.Background(), link, humanFacts(), geo.Unknown(), RequestContext{})
	assert.Equal(t, models.VerdictAllow, verdict)
}

func TestEvaluateGeoAllowWinsOverBlock(t *testing.T) {
	e := NewEvaluator(nil)

	// Documented tie-break: a location on both lists is allowed
	link := activeLink()
	link.GeoTargetingEnabled = true
	link.AllowedCountries = models.EncodeLocationList([]string{"Germany"})
	link.BlockedCountries = models.EncodeLocationList([]string{"Germany"})

	verdict, _ := e.Evaluate(context.Background(), link, humanFacts(), geo.Location{Country: "Germany"}, RequestContext{})
	assert.Equal(t, models.VerdictAllow, verdict)
}

func TestEvaluateRateLimit(t *testing.T) {
	link := activeLink()
	link.RateLimitingEnabled = true

	verdict, reason := NewEvaluator(denyAll{}).Evaluate(context.Background(), link, humanFacts(), geo.Unknown(), RequestContext{IP: "203.0.113.1"})
	assert.Equal(t, models.VerdictBlockRate, verdict)
	assert.Equal(t, ReasonRateLimited, reason)

	verdict, _ = NewEvaluator(allowAll{}).Evaluate(context.Background(), link, humanFacts(), geo.Unknown(), RequestContext{IP: "203.0.113.1"})
	assert.Equal(t, models.VerdictAllow, verdict)

	// Rate limiting disabled on the link skips the limiter entirely
	link.RateLimitingEnabled = false
	verdict, _ = NewEvaluator(denyAll{}).Evaluate(context.Background(), link, humanFacts(), geo.Unknown(), RequestContext{IP: "203.0.113.1"})
	assert.Equal(t, models.VerdictAllow, verdict)
}

func TestEvaluatePasswordGate(t *testing.T) {
	e := NewEvaluator(nil)

	link := activeLink()
	link.Password = "open-sesame"

	verdict, reason := e.Evaluate(context.Background(), link, humanFacts(), geo.Unknown(), RequestContext{})
	assert.Equal(t, models.VerdictBlockPassword, verdict)
	assert.Equal(t, ReasonPasswordRequired, reason)

	verdict, _ = e.Evaluate(context.Background(), link, humanFacts(), geo.Unknown(), RequestContext{Password: "wrong"})
	assert.Equal(t, models.VerdictBlockPassword, verdict)

	verdict, _ = e.Evaluate(context.Background(), link, humanFacts(), geo.Unknown(), RequestContext{Password: "open-sesame"})
	assert.Equal(t, models.VerdictAllow, verdict)
}

func TestMemoryLimiter(t *testing.T) {
	limiter := NewMemoryLimiter(3, time.Minute)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		assert.True(t, limiter.Allow(ctx, "abc:203.0.113.1"), "hit %d should be allowed", i+1)
	}
	assert.False(t, limiter.Allow(ctx, "abc:203.0.113.1"), "hit over budget should be denied")

	// Separate keys have separate budgets
	assert.True(t, limiter.Allow(ctx, "abc:203.0.113.2"))
}

// TestRedisLimiterFailsOpen points the limiter at an address nothing listens
// on: every INCR errors and the limiter must admit the hit rather than block
// traffic on a backend outage.
func TestRedisLimiterFailsOpen(t *testing.T) {
	rdb := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		ReadTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer rdb.Close()

	limiter := NewRedisLimiter(rdb, 1, time.Minute)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		assert.True(t, limiter.Allow(ctx, "abc:203.0.113.1"), "hit %d should fail open", i+1)
	}
}
