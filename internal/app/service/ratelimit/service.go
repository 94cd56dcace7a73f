package ratelimit

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/harborlight/donations/pkg/logctx"
)

// Decision is the outcome of one rate-limit check.
type Decision struct {
	Allowed bool
	RetryIn time.Duration
}

// Limit describes one dimension to check.
type Limit struct {
	// Event names the throttled operation, e.g. "checkout_session".
	Event string
	// Identifier must already be hashed; raw IPs/emails never reach storage.
	Identifier string
	Max        int64
	Window     time.Duration
	Cooldown   time.Duration
}

type Service struct {
	db  *gorm.DB
	log *zap.SugaredLogger
	now func() time.Time
}

func New(db *gorm.DB, log *zap.SugaredLogger) *Service {
	return &Service{db: db, log: log, now: time.Now}
}

type bucketState struct {
	Count         int64      `gorm:"column:count"`
	WindowStartAt time.Time  `gorm:"column:window_start_at"`
	PrevRequestAt *time.Time `gorm:"column:prev_request_at"`
}

// Check records one request and reports whether it is allowed. The counter
// update is a single atomic statement so concurrent requests cannot
// read-then-write past the limit.
func (s *Service) Check(ctx context.Context, l Limit) (Decision, error) {
	if l.Event == "" || l.Identifier == "" {
		return Decision{}, fmt.Errorf("ratelimit: event and identifier are required")
	}
	now := s.now().UTC()
	windowStartCutoff := now.Add(-l.Window)

	var state bucketState
	err := s.db.WithContext(ctx).Raw(`
		INSERT INTO rate_limit_bucket (event, identifier, count, window_start_at, prev_request_at, last_request_at, updated_at)
		VALUES (?, ?, 1, ?, NULL, ?, ?)
		ON CONFLICT (event, identifier) DO UPDATE SET
			count = CASE WHEN rate_limit_bucket.window_start_at <= ? THEN 1 ELSE rate_limit_bucket.count + 1 END,
			window_start_at = CASE WHEN rate_limit_bucket.window_start_at <= ? THEN ? ELSE rate_limit_bucket.window_start_at END,
			prev_request_at = rate_limit_bucket.last_request_at,
			last_request_at = ?,
			updated_at = ?
		RETURNING count, window_start_at, prev_request_at`,
		l.Event, l.Identifier, now, now, now,
		windowStartCutoff, windowStartCutoff, now, now, now,
	).Scan(&state).Error
	if err != nil {
		return Decision{}, fmt.Errorf("ratelimit: check failed: %w", err)
	}

	d := decide(state, l, now)
	if !d.Allowed {
		logctx.FromCtx(ctx, s.log).Infow("rate_limited",
			"event", l.Event, "count", state.Count, "retry_in_ms", d.RetryIn.Milliseconds())
	}
	return d, nil
}

// CheckAll evaluates several dimensions and rejects when any one is
// exceeded, reporting the longest retry hint.
func (s *Service) CheckAll(ctx context.Context, limits ...Limit) (Decision, error) {
	out := Decision{Allowed: true}
	for _, l := range limits {
		d, err := s.Check(ctx, l)
		if err != nil {
			return Decision{}, err
		}
		if !d.Allowed {
			out.Allowed = false
			if d.RetryIn > out.RetryIn {
				out.RetryIn = d.RetryIn
			}
		}
	}
	return out, nil
}

func decide(state bucketState, l Limit, now time.Time) Decision {
	if state.Count > l.Max {
		retry := l.Window - now.Sub(state.WindowStartAt)
		if retry < 0 {
			retry = 0
		}
		return Decision{Allowed: false, RetryIn: retry}
	}
	if l.Cooldown > 0 && state.Count > 1 && state.PrevRequestAt != nil {
		since := now.Sub(*state.PrevRequestAt)
		if since < l.Cooldown {
			return Decision{Allowed: false, RetryIn: l.Cooldown - since}
		}
	}
	return Decision{Allowed: true}
}

var Module = fx.Options(
	fx.Provide(New),
)
