package budget

import (
	"errors"
	"strings"
	"sync"
	"testing"

	"ctxopt/internal/adapter/analyzer"
	"ctxopt/internal/domain"
)

func newTestTracker(max int) *Tracker {
	return NewTracker(max, 0, 0, analyzer.NewEstimator(0), nil)
}

func TestCheckBudgetIsPure(t *testing.T) {
	tr := newTestTracker(100)

	for i := 0; i < 5; i++ {
		c := tr.CheckBudget(strings.Repeat("x", 40))
		if c.EstimatedTokens != 10 {
			t.Fatalf("expected 10 estimated tokens, got %d", c.EstimatedTokens)
		}
	}
	if used := tr.Status().UsedTokens; used != 0 {
		t.Errorf("CheckBudget changed usedTokens to %d", used)
	}
}

func TestBoundaryIsInclusive(t *testing.T) {
	tr := newTestTracker(100)
	tr.Charge(60)
	tr.Charge(40)

	c := tr.CheckBudget("")
	if !c.Allowed {
		t.Error("expected empty content to fit exactly at the ceiling")
	}
	if c.UsageRatio != 1.0 {
		t.Errorf("expected usage ratio 1.0, got %f", c.UsageRatio)
	}
	if tr.CheckBudget("x").Allowed {
		t.Error("expected one more token to exceed the budget")
	}
}

func TestEnforceBudgetStrict(t *testing.T) {
	tr := newTestTracker(10)
	tr.Charge(8)

	ok, err := tr.EnforceBudget(strings.Repeat("x", 12), true)
	if ok {
		t.Error("expected strict enforcement to reject")
	}
	if !errors.Is(err, domain.ErrBudgetExceeded) {
		t.Errorf("expected ErrBudgetExceeded, got %v", err)
	}

	ok, err = tr.EnforceBudget(strings.Repeat("x", 12), false)
	if err != nil {
		t.Errorf("advisory enforcement should not fail: %v", err)
	}
	if ok {
		t.Error("advisory enforcement still reports the overrun")
	}
	if tr.Status().UsedTokens != 8 {
		t.Error("EnforceBudget must not charge")
	}
}

func TestEnforceBudgetWithinLimit(t *testing.T) {
	tr := newTestTracker(100)
	tr.Charge(75)

	ok, err := tr.EnforceBudget("abcd", true)
	if !ok || err != nil {
		t.Errorf("expected admission, got ok=%v err=%v", ok, err)
	}
}

func TestAdmitChargesOnlyWhatFits(t *testing.T) {
	tr := newTestTracker(100)

	c, err := tr.Admit(70, true)
	if err != nil || !c.Allowed {
		t.Fatalf("expected 70 tokens to be admitted, got %+v, %v", c, err)
	}
	if _, err := tr.Admit(40, true); !errors.Is(err, domain.ErrBudgetExceeded) {
		t.Errorf("expected ErrBudgetExceeded, got %v", err)
	}
	if used := tr.Status().UsedTokens; used != 70 {
		t.Errorf("strict rejection must not charge, used = %d", used)
	}

	c, err = tr.Admit(40, false)
	if err != nil || c.Allowed {
		t.Errorf("expected lenient overrun to be reported without error, got %+v, %v", c, err)
	}
	if used := tr.Status().UsedTokens; used != 110 {
		t.Errorf("lenient admit must charge, used = %d", used)
	}
}

func TestAdmitConcurrentStrict(t *testing.T) {
	for round := 0; round < 50; round++ {
		tr := newTestTracker(100)

		var (
			wg       sync.WaitGroup
			mu       sync.Mutex
			rejected int
		)
		for i := 0; i < 2; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if _, err := tr.Admit(60, true); errors.Is(err, domain.ErrBudgetExceeded) {
					mu.Lock()
					rejected++
					mu.Unlock()
				}
			}()
		}
		wg.Wait()

		if used := tr.Status().UsedTokens; used != 60 {
			t.Fatalf("round %d: used = %d, want 60", round, used)
		}
		if rejected != 1 {
			t.Fatalf("round %d: %d rejections, want exactly 1", round, rejected)
		}
	}
}

func TestStatusLevels(t *testing.T) {
	tests := []struct {
		charge int
		level  string
	}{
		{0, LevelOK},
		{69, LevelOK},
		{70, LevelWarning},
		{90, LevelCritical},
		{100, LevelCritical},
		{101, LevelExceeded},
	}
	for _, tt := range tests {
		tr := newTestTracker(100)
		tr.Charge(tt.charge)
		if got := tr.Status().Level; got != tt.level {
			t.Errorf("charge %d: expected level %s, got %s", tt.charge, tt.level, got)
		}
	}
}

func TestStatusAndReset(t *testing.T) {
	tr := newTestTracker(4000)
	tr.Charge(3000)

	s := tr.Status()
	if s.Message != "Token usage: 75.0% (3000/4000)" {
		t.Errorf("unexpected message %q", s.Message)
	}
	if s.Remaining != 1000 {
		t.Errorf("expected 1000 remaining, got %d", s.Remaining)
	}
	if s.UsageRatio != 0.75 {
		t.Errorf("expected ratio 0.75, got %f", s.UsageRatio)
	}

	tr.Reset()
	if tr.Status().UsedTokens != 0 {
		t.Error("expected reset to zero usage")
	}
}

func TestDefaults(t *testing.T) {
	tr := NewTracker(0, 2, -1, analyzer.NewEstimator(0), nil)
	s := tr.Status()
	if s.MaxTokens != DefaultMaxTokens || s.WarnThreshold != DefaultWarnThreshold || s.CriticalThreshold != DefaultCriticalThreshold {
		t.Errorf("unexpected defaults: %+v", s.TokenBudget)
	}
}
