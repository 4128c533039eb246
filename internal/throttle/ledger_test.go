package throttle

import (
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ccruz0/crypto-2.0-sub010/internal/signal"
)

func candidate(t *testing.T, side signal.Side, price string, at time.Time) signal.Candidate {
	t.Helper()
	px, err := decimal.NewFromString(price)
	if err != nil {
		t.Fatalf("bad price fixture %q: %v", price, err)
	}
	return signal.Candidate{Symbol: "ABCUSD", Side: side, Price: px, Recommended: true, At: at}
}

func TestFirstCandidateAdmits(t *testing.T) {
	ledger := NewLedger()
	t0 := time.Now()

	dec := ledger.Evaluate(candidate(t, signal.Buy, "10.00", t0))
	if !dec.Admit {
		t.Fatalf("expected first candidate to admit, got %+v", dec)
	}
	rec, ok := ledger.Snapshot("ABCUSD", signal.Buy)
	if !ok {
		t.Fatalf("expected record after admit")
	}
	if !rec.LastSentAt.Equal(t0) {
		t.Fatalf("unexpected LastSentAt: %s", rec.LastSentAt)
	}
	if rec.BaselinePrice.String() != "10" {
		t.Fatalf("unexpected baseline: %s", rec.BaselinePrice)
	}
}

func TestCooldownDeniesInsideWindow(t *testing.T) {
	ledger := NewLedger()
	t0 := time.Now()

	ledger.Evaluate(candidate(t, signal.Buy, "10.00", t0))
	dec := ledger.Evaluate(candidate(t, signal.Buy, "10.25", t0.Add(30*time.Second)))
	if dec.Admit {
		t.Fatalf("expected deny inside window")
	}
	if !strings.Contains(dec.Reason, "cooldown not met") {
		t.Fatalf("unexpected reason: %s", dec.Reason)
	}
	rec, _ := ledger.Snapshot("ABCUSD", signal.Buy)
	if rec.BaselinePrice.String() != "10" {
		t.Fatalf("deny must not mutate record, baseline now %s", rec.BaselinePrice)
	}
	if !rec.LastSentAt.Equal(t0) {
		t.Fatalf("deny must not mutate LastSentAt")
	}
}

func TestAdmitAfterWindowElapsed(t *testing.T) {
	ledger := NewLedger()
	t0 := time.Now()

	ledger.Evaluate(candidate(t, signal.Buy, "10.00", t0))
	t1 := t0.Add(61 * time.Second)
	dec := ledger.Evaluate(candidate(t, signal.Buy, "10.50", t1))
	if !dec.Admit {
		t.Fatalf("expected admit after window, got %+v", dec)
	}
	rec, _ := ledger.Snapshot("ABCUSD", signal.Buy)
	if !rec.LastSentAt.Equal(t1) {
		t.Fatalf("expected LastSentAt to advance")
	}
	if rec.BaselinePrice.String() != "10.5" {
		t.Fatalf("expected baseline 10.5, got %s", rec.BaselinePrice)
	}
}

func TestSidesAreIndependent(t *testing.T) {
	ledger := NewLedger()
	t0 := time.Now()

	ledger.Evaluate(candidate(t, signal.Buy, "10.00", t0))
	dec := ledger.Evaluate(candidate(t, signal.Sell, "10.00", t0.Add(time.Second)))
	if !dec.Admit {
		t.Fatalf("SELL must not inherit BUY cooldown")
	}

	buyRec, _ := ledger.Snapshot("ABCUSD", signal.Buy)
	if !buyRec.LastSentAt.Equal(t0) {
		t.Fatalf("SELL admit mutated BUY record")
	}
}

func TestBypassAdmitsInsideWindowOnce(t *testing.T) {
	ledger := NewLedger()
	t0 := time.Now()

	ledger.Evaluate(candidate(t, signal.Sell, "10.00", t0))
	ledger.RequestBypass("ABCUSD", signal.Sell)

	dec := ledger.Evaluate(candidate(t, signal.Sell, "9.80", t0.Add(5*time.Second)))
	if !dec.Admit || !dec.Bypassed {
		t.Fatalf("expected bypassed admit, got %+v", dec)
	}
	rec, _ := ledger.Snapshot("ABCUSD", signal.Sell)
	if rec.PendingBypass {
		t.Fatalf("bypass flag must be consumed by the admit")
	}

	// One-shot: the next candidate is throttled normally.
	dec = ledger.Evaluate(candidate(t, signal.Sell, "9.70", t0.Add(10*time.Second)))
	if dec.Admit {
		t.Fatalf("expected normal cooldown after bypass consumed")
	}
}

func TestBypassDoesNotLeakAcrossSides(t *testing.T) {
	ledger := NewLedger()
	t0 := time.Now()
	ledger.Evaluate(candidate(t, signal.Buy, "10.00", t0))
	ledger.RequestBypass("ABCUSD", signal.Sell)

	dec := ledger.Evaluate(candidate(t, signal.Buy, "10.10", t0.Add(5*time.Second)))
	if dec.Admit {
		t.Fatalf("SELL bypass must not admit BUY inside window")
	}
}

func TestConcurrentFirstEvaluationAdmitsOnce(t *testing.T) {
	ledger := NewLedger()
	t0 := time.Now()

	const racers = 16
	var wg sync.WaitGroup
	admits := make(chan Decision, racers)
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			admits <- ledger.Evaluate(candidate(t, signal.Buy, "10.00", t0))
		}()
	}
	wg.Wait()
	close(admits)

	admitted := 0
	for dec := range admits {
		if dec.Admit {
			admitted++
		}
	}
	if admitted != 1 {
		t.Fatalf("expected exactly one admit under contention, got %d", admitted)
	}
}
