package services

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"djbook/internal/core/domain"
	"djbook/internal/core/ports"
	"djbook/pkg/logger"
	"djbook/pkg/retry"
	"djbook/pkg/tracing"
	"djbook/pkg/validation"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// AbuseLedgerConfig tunes escalation and conflict handling.
type AbuseLedgerConfig struct {
	Policy domain.EscalationPolicy
	// Retry governs re-running the read-modify-write after a version
	// conflict. MaxAttempts below 1 is raised to 1.
	Retry retry.Config
}

func DefaultAbuseLedgerConfig() AbuseLedgerConfig {
	return AbuseLedgerConfig{
		Policy: domain.DefaultEscalationPolicy(),
		Retry:  retry.DefaultConfig(),
	}
}

type abuseLedger struct {
	users   ports.UserRepository
	locker  ports.UserLocker
	events  ports.EventPublisher
	metrics ports.Metrics
	policy  domain.EscalationPolicy
	retry   retry.Config
	log     *zap.SugaredLogger
}

// NewAbuseLedger returns the single writer of users' ban state. events and
// metrics may be nil.
func NewAbuseLedger(
	users ports.UserRepository,
	locker ports.UserLocker,
	events ports.EventPublisher,
	metrics ports.Metrics,
	cfg AbuseLedgerConfig,
	log *zap.SugaredLogger,
) ports.AbuseLedger {
	rc := cfg.Retry
	if rc.MaxAttempts < 1 {
		rc.MaxAttempts = 1
	}
	rc.RetryOn = []error{domain.ErrConcurrentUpdateConflict}

	if log == nil {
		log = zap.NewNop().Sugar()
	}

	return &abuseLedger{
		users:   users,
		locker:  locker,
		events:  events,
		metrics: metrics,
		policy:  cfg.Policy,
		retry:   rc,
		log:     log,
	}
}

// RecordViolation adds one strike to the user, records the observed IP and
// returns the resulting enforcement decision. Writes for one username are
// serialized by the locker and committed with compare-and-update, so
// concurrent reports never lose strikes.
func (l *abuseLedger) RecordViolation(ctx context.Context, v domain.Violation) (*domain.EnforcementOutcome, error) {
	v.Username = strings.TrimSpace(v.Username)
	v.ObservedIP = strings.TrimSpace(v.ObservedIP)
	if err := validation.ValidateIP(v.ObservedIP); err != nil {
		return nil, fmt.Errorf("record violation: %w", err)
	}
	v.ObservedIP = canonicalIP(v.ObservedIP)

	ctx, span := tracing.StartSpan(ctx, "ledger.record_violation")
	defer span.End()
	defer tracing.MeasureDuration(ctx, time.Now(), "record_violation")
	span.SetAttributes(tracing.UsernameKey.String(v.Username))

	unlock, err := l.locker.Lock(ctx, v.Username)
	if err != nil {
		tracing.RecordError(ctx, err)
		return nil, fmt.Errorf("lock ban record for %s: %w", v.Username, err)
	}
	defer unlock()

	var outcome *domain.EnforcementOutcome
	err = retry.Do(ctx, l.retry, func(attempt int) error {
		tracing.AddSpanAttributes(ctx, tracing.AttemptKey.Int(attempt))
		stored, err := l.users.GetByUsername(ctx, v.Username)
		if err != nil {
			return err
		}

		next := stored.Clone()
		outcome = ApplyViolation(next, v, l.policy)
		next.Version = stored.Version + 1

		err = l.users.UpdateBanRecord(ctx, next, stored.Version)
		if errors.Is(err, domain.ErrConcurrentUpdateConflict) {
			l.log.Warnw("ban record changed underneath, retrying",
				"username", v.Username,
				"attempt", attempt,
			)
			if l.metrics != nil {
				l.metrics.RecordBanUpdateConflict()
			}
		}
		return err
	})
	if err != nil {
		tracing.RecordError(ctx, err)
		return nil, fmt.Errorf("record violation for %s: %w", v.Username, err)
	}

	span.SetAttributes(
		tracing.DecisionKey.String(string(outcome.Decision)),
		attribute.Int("ledger.strikes", outcome.BanStrikeCount),
	)

	l.log.Infow("violation recorded",
		"username", v.Username,
		"ip", logger.MaskIP(v.ObservedIP),
		"reason", v.Reason,
		"decision", outcome.Decision,
		"strikes", outcome.BanStrikeCount,
		"muted", outcome.IsGloballyMuted,
	)

	if l.metrics != nil {
		l.metrics.RecordViolation(outcome.Decision)
	}
	if l.events != nil {
		if err := l.events.PublishViolation(ctx, outcome); err != nil {
			l.log.Warnw("failed to publish violation event", "username", v.Username, "error", err)
		}
	}

	return outcome, nil
}

// SharesIPHistory reports whether two users were ever seen on a common IP.
// The answer is advisory; it never triggers enforcement.
func (l *abuseLedger) SharesIPHistory(ctx context.Context, usernameA, usernameB string) (bool, error) {
	a, err := l.users.GetByUsername(ctx, usernameA)
	if err != nil {
		return false, fmt.Errorf("load %s: %w", usernameA, err)
	}
	b, err := l.users.GetByUsername(ctx, usernameB)
	if err != nil {
		return false, fmt.Errorf("load %s: %w", usernameB, err)
	}
	return SharesIPHistory(a, b), nil
}

func (l *abuseLedger) BanRecord(ctx context.Context, username string) (*domain.BanRecord, error) {
	u, err := l.users.GetByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	rec := u.BanRecord()
	return &rec, nil
}

// ApplyViolation mutates u in place for one violation and returns the
// outcome. It never clears a permanent ban or a mute; for a user who is
// already banned the decision is NoChange while the strike still counts.
func ApplyViolation(u *domain.User, v domain.Violation, policy domain.EscalationPolicy) *domain.EnforcementOutcome {
	if v.ObservedIP != "" {
		ip := canonicalIP(v.ObservedIP)
		if canonicalIP(u.LastIP()) != ip {
			u.IPHistory = append(u.IPHistory, ip)
		}
		u.CurrentIP = ip
	}

	u.BanStrikeCount++

	decision := domain.DecisionNoChange
	if !u.IsPermanentBan {
		decision = policy.Decide(u.BanStrikeCount)
		if decision == domain.DecisionPermanentBan {
			u.IsPermanentBan = true
		}
	}

	newlyMuted := false
	if v.GloballyDisruptive && !u.IsGloballyMuted {
		u.IsGloballyMuted = true
		newlyMuted = true
	}

	return &domain.EnforcementOutcome{
		Username:        u.Username,
		Decision:        decision,
		BanStrikeCount:  u.BanStrikeCount,
		IsPermanentBan:  u.IsPermanentBan,
		IsGloballyMuted: u.IsGloballyMuted,
		NewlyMuted:      newlyMuted,
	}
}

// SharesIPHistory reports whether the IP histories of a and b intersect.
// It is symmetric.
func SharesIPHistory(a, b *domain.User) bool {
	if a == nil || b == nil {
		return false
	}
	small, large := a.IPHistory, b.IPHistory
	if len(small) > len(large) {
		small, large = large, small
	}
	seen := make(map[string]struct{}, len(small))
	for _, ip := range small {
		seen[canonicalIP(ip)] = struct{}{}
	}
	for _, ip := range large {
		if _, ok := seen[canonicalIP(ip)]; ok {
			return true
		}
	}
	return false
}

// canonicalIP folds equivalent spellings of one address, such as an
// IPv4-mapped IPv6 form, onto net.IP's String form. Unparseable input is
// returned unchanged.
func canonicalIP(ip string) string {
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return ip
	}
	return parsed.String()
}
