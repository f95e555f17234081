// Package engine orchestrates the decision pipeline for a single inbound
// hit: resolve the link by short code, classify the user agent, resolve geo
// facts, evaluate the access policy, record the event, and map the verdict
// to a response decision for the HTTP layer.
package engine

import (
	"context"
	"errors"
	"regexp"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/clickgate/clickgate/pkg/clickgate/geo"
	"github.com/clickgate/clickgate/pkg/clickgate/models"
	"github.com/clickgate/clickgate/pkg/clickgate/policy"
	"github.com/clickgate/clickgate/pkg/clickgate/recorder"
	"github.com/clickgate/clickgate/pkg/clickgate/useragent"
)

// Action is the response the HTTP layer should produce for a hit
type Action string

const (
	// ActionRedirect sends the visitor to the decision's target URL
	ActionRedirect Action = "redirect"
	// ActionBlocked serves the generic block page
	ActionBlocked Action = "blocked"
	// ActionNotFound means no link exists for the short code; no event
	// was recorded
	ActionNotFound Action = "not_found"
)

// Decision is the engine's final answer for one hit
type Decision struct {
	Action    Action
	TargetURL string
	Verdict   models.Verdict
	Reason    string
	// Link is set for any resolved hit, letting callers read per-link
	// response options (capture flags and the like) without a second query
	Link *models.Link
}

// Short codes are fixed-length alphanumeric; anything else cannot exist in
// storage and is treated as not found without a query.
var shortCodeRe = regexp.MustCompile(`^[a-zA-Z0-9]{1,16}$`)

// Engine runs the per-hit decision pipeline
type Engine struct {
	db         *gorm.DB
	classifier *useragent.Classifier
	resolver   geo.Resolver
	evaluator  *policy.Evaluator
	recorder   *recorder.Recorder
	logger     *zap.SugaredLogger
}

// New creates an engine. The resolver may be nil, in which case every hit
// gets Unknown geo facts. The logger may be nil.
func New(db *gorm.DB, classifier *useragent.Classifier, resolver geo.Resolver, evaluator *policy.Evaluator, rec *recorder.Recorder, logger *zap.SugaredLogger) *Engine {
	if resolver == nil {
		resolver = geo.NullResolver{}
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Engine{
		db:         db,
		classifier: classifier,
		resolver:   resolver,
		evaluator:  evaluator,
		recorder:   rec,
		logger:     logger,
	}
}

// HandleHit runs the full pipeline for one inbound hit. Every resolved hit
// is recorded, allowed or blocked; repeated identical hits are deliberately
// not deduplicated and each produces its own event. A recording failure is
// logged and the visitor still receives the verdict-mapped decision.
func (e *Engine) HandleHit(ctx context.Context, shortCode string, req policy.RequestContext) Decision {
	if !shortCodeRe.MatchString(shortCode) {
		return Decision{Action: ActionNotFound}
	}

	var link models.Link
	if err := e.db.WithContext(ctx).Where("short_code = ?", shortCode).First(&link).Error; err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			e.logger.Errorw("link lookup failed", "short_code", shortCode, "error", err)
		}
		return Decision{Action: ActionNotFound}
	}

	ua := e.classifier.Classify(req.UserAgent)

	loc, err := e.resolver.Resolve(ctx, req.IP)
	if err != nil {
		// Geo data is best-effort; a failed lookup degrades to Unknown
		loc = geo.Unknown()
	}

	verdict, reason := e.evaluator.Evaluate(ctx, &link, ua, loc, req)

	if _, err := e.recorder.Record(ctx, &link, verdict, reason, ua, loc, req); err != nil {
		// Availability over consistency: the visitor response proceeds
		// on the verdict even though the event write failed.
		e.logger.Errorw("event recording failed, serving response anyway",
			"short_code", shortCode, "verdict", verdict, "error", err)
	}

	if verdict == models.VerdictAllow {
		return Decision{
			Action:    ActionRedirect,
			TargetURL: link.TargetURL,
			Verdict:   verdict,
			Link:      &link,
		}
	}

	return Decision{
		Action:  ActionBlocked,
		Verdict: verdict,
		Reason:  reason,
		Link:    &link,
	}
}
