// Package budget tracks token consumption against a per-session ceiling.
package budget

import (
	"fmt"
	"log/slog"
	"sync"

	"ctxopt/internal/adapter/analyzer"
	"ctxopt/internal/domain"
	"ctxopt/internal/logging"
)

const (
	DefaultMaxTokens         = 100000
	DefaultWarnThreshold     = 0.7
	DefaultCriticalThreshold = 0.9
)

// Level names reported in BudgetStatus.
const (
	LevelOK       = "ok"
	LevelWarning  = "warning"
	LevelCritical = "critical"
	LevelExceeded = "exceeded"
)

// Tracker admits or rejects content against a token ceiling. Only Admit,
// Charge and Reset change its state.
type Tracker struct {
	mu        sync.Mutex
	budget    domain.TokenBudget
	estimator analyzer.Estimator
	logger    *slog.Logger
}

func NewTracker(maxTokens int, warn, critical float64, est analyzer.Estimator, logger *slog.Logger) *Tracker {
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}
	if warn <= 0 || warn > 1 {
		warn = DefaultWarnThreshold
	}
	if critical <= 0 || critical > 1 || critical < warn {
		critical = DefaultCriticalThreshold
	}
	return &Tracker{
		budget: domain.TokenBudget{
			MaxTokens:         maxTokens,
			WarnThreshold:     warn,
			CriticalThreshold: critical,
		},
		estimator: est,
		logger:    logging.OrDiscard(logger).With("component", "budget"),
	}
}

// CheckBudget reports what usage would be if content were admitted,
// without admitting it.
func (t *Tracker) CheckBudget(content string) domain.BudgetCheck {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.check(t.estimator.Estimate(content))
}

// CheckTokens is CheckBudget for an already known token count.
func (t *Tracker) CheckTokens(n int) domain.BudgetCheck {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.check(n)
}

// EnforceBudget is CheckBudget plus a log line when the projected usage
// crosses the warning or critical threshold. With strict set, content that
// does not fit yields ErrBudgetExceeded; otherwise the overrun is only
// logged and the caller may proceed.
func (t *Tracker) EnforceBudget(content string, strict bool) (bool, error) {
	return t.EnforceTokens(t.estimator.Estimate(content), strict)
}

func (t *Tracker) EnforceTokens(n int, strict bool) (bool, error) {
	t.mu.Lock()
	c := t.check(n)
	b := t.budget
	t.mu.Unlock()

	return c.Allowed, t.report(c, b, n, strict)
}

// Admit is EnforceTokens and Charge under one lock, so concurrent callers
// cannot both pass the check against the same remaining budget. In strict
// mode a rejected request charges nothing.
func (t *Tracker) Admit(n int, strict bool) (domain.BudgetCheck, error) {
	t.mu.Lock()
	c := t.check(n)
	b := t.budget
	if (c.Allowed || !strict) && n > 0 {
		t.budget.UsedTokens += n
	}
	t.mu.Unlock()

	return c, t.report(c, b, n, strict)
}

// report logs a threshold crossing and turns a strict overrun into
// ErrBudgetExceeded. b is the budget as it was when c was computed.
func (t *Tracker) report(c domain.BudgetCheck, b domain.TokenBudget, n int, strict bool) error {
	switch {
	case !c.Allowed:
		t.logger.Warn(c.StatusMessage, "estimated", n, "max", b.MaxTokens, "strict", strict)
		if strict {
			return fmt.Errorf("budget: %d used + %d requested > %d: %w",
				b.UsedTokens, n, b.MaxTokens, domain.ErrBudgetExceeded)
		}
	case c.UsageRatio >= b.CriticalThreshold:
		t.logger.Warn(c.StatusMessage, "level", LevelCritical)
	case c.UsageRatio >= b.WarnThreshold:
		t.logger.Info(c.StatusMessage, "level", LevelWarning)
	}
	return nil
}

// Charge adds n tokens to the used total and returns the new total.
func (t *Tracker) Charge(n int) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	if n > 0 {
		t.budget.UsedTokens += n
	}
	return t.budget.UsedTokens
}

func (t *Tracker) Reset() {
	t.mu.Lock()
	t.budget.UsedTokens = 0
	t.mu.Unlock()
	t.logger.Debug("budget reset")
}

func (t *Tracker) Status() domain.BudgetStatus {
	t.mu.Lock()
	b := t.budget
	t.mu.Unlock()

	ratio := b.UsageRatio()
	return domain.BudgetStatus{
		TokenBudget: b,
		UsageRatio:  ratio,
		Remaining:   b.Remaining(),
		Level:       level(b, b.UsedTokens),
		Message:     message(b.UsedTokens, b.MaxTokens),
	}
}

func (t *Tracker) check(n int) domain.BudgetCheck {
	if n < 0 {
		n = 0
	}
	projected := t.budget.UsedTokens + n
	return domain.BudgetCheck{
		Allowed:         projected <= t.budget.MaxTokens,
		EstimatedTokens: n,
		UsageRatio:      float64(projected) / float64(t.budget.MaxTokens),
		StatusMessage:   message(projected, t.budget.MaxTokens),
	}
}

func level(b domain.TokenBudget, used int) string {
	ratio := float64(used) / float64(b.MaxTokens)
	switch {
	case used > b.MaxTokens:
		return LevelExceeded
	case ratio >= b.CriticalThreshold:
		return LevelCritical
	case ratio >= b.WarnThreshold:
		return LevelWarning
	default:
		return LevelOK
	}
}

func message(used, max int) string {
	return fmt.Sprintf("Token usage: %.1f%% (%d/%d)", float64(used)/float64(max)*100, used, max)
}
