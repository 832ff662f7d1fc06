package receptionist

import (
	"sync"
	"testing"
	"time"
)

func newTestStore(ttl time.Duration, instructions string) (*SessionStore, *time.Time) {
	ss := NewSessionStore(ttl, instructions, nil)
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	ss.now = func() time.Time { return now }
	return ss, &now
}

func TestGetOrCreate_FreshSessionSeedsSystemTurn(t *testing.T) {
	ss, _ := newTestStore(30*time.Minute, "You answer for Apex Plumbing.")

	s := ss.GetOrCreate("+15550001111", "sms")
	turns := s.Turns()
	if len(turns) != 1 {
		t.Fatalf("expected 1 seeded turn, got %d", len(turns))
	}
	if turns[0].Role != "system" {
		t.Errorf("expected system role, got %q", turns[0].Role)
	}
	if turns[0].Content != "You answer for Apex Plumbing." {
		t.Errorf("unexpected system content: %q", turns[0].Content)
	}
}

func TestGetOrCreate_NoInstructionsNoSystemTurn(t *testing.T) {
	ss, _ := newTestStore(30*time.Minute, "")

	s := ss.GetOrCreate("+15550001111", "sms")
	if got := s.TurnCount(); got != 0 {
		t.Fatalf("expected empty history, got %d turns", got)
	}
}

func TestGetOrCreate_ReturnsSameSessionWithinTTL(t *testing.T) {
	ss, now := newTestStore(30*time.Minute, "hi")

	first := ss.GetOrCreate("+15550001111", "sms")
	first.AppendTurn(Turn{Role: "user", Content: "water heater leaking", Timestamp: *now})

	*now = now.Add(29 * time.Minute)
	second := ss.GetOrCreate("+15550001111", "sms")
	if first != second {
		t.Fatal("expected the same session within the TTL")
	}
	if second.TurnCount() != 2 {
		t.Errorf("history lost: got %d turns", second.TurnCount())
	}
}

func TestGetOrCreate_ExpiredSessionIsReplaced(t *testing.T) {
	ss, now := newTestStore(30*time.Minute, "hi")

	first := ss.GetOrCreate("+15550001111", "sms")
	first.AppendTurn(Turn{Role: "user", Content: "old conversation", Timestamp: *now})

	*now = now.Add(31 * time.Minute)
	second := ss.GetOrCreate("+15550001111", "sms")
	if first == second {
		t.Fatal("expected a fresh session after the TTL")
	}
	if second.TurnCount() != 1 {
		t.Errorf("fresh session should only have the system turn, got %d turns", second.TurnCount())
	}
}

func TestGetOrCreate_AccessRefreshesTTL(t *testing.T) {
	ss, now := newTestStore(30*time.Minute, "")

	first := ss.GetOrCreate("+15550001111", "sms")

	// Touch every 20 minutes; the session never goes idle past the TTL.
	for i := 0; i < 3; i++ {
		*now = now.Add(20 * time.Minute)
		if got := ss.GetOrCreate("+15550001111", "sms"); got != first {
			t.Fatalf("session replaced on access %d despite activity", i)
		}
	}
}

func TestGetOrCreate_ConcurrentSameKey(t *testing.T) {
	ss, _ := newTestStore(30*time.Minute, "")

	const n = 32
	results := make([]*Session, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = ss.GetOrCreate("+15550001111", "sms")
		}(i)
	}
	wg.Wait()

	for i := 1; i < n; i++ {
		if results[i] != results[0] {
			t.Fatal("concurrent GetOrCreate returned different sessions for one key")
		}
	}
	if ss.Count() != 1 {
		t.Errorf("expected 1 session, got %d", ss.Count())
	}
}

func TestSweep_EvictsOnlyIdleSessions(t *testing.T) {
	ss, now := newTestStore(30*time.Minute, "")

	ss.GetOrCreate("+15550001111", "sms")
	ss.GetOrCreate("+15550002222", "sms")

	*now = now.Add(20 * time.Minute)
	ss.Touch("+15550002222")

	*now = now.Add(15 * time.Minute)
	swept := ss.Sweep()
	if swept != 1 {
		t.Fatalf("expected 1 swept session, got %d", swept)
	}
	if ss.Count() != 1 {
		t.Errorf("expected 1 remaining session, got %d", ss.Count())
	}
}

func TestTruncateTurns_RollsBackHistory(t *testing.T) {
	s := &Session{leadDraft: map[string]string{}}
	s.AppendTurn(Turn{Role: "user", Content: "hello"})
	committed := s.TurnCount()
	s.AppendTurn(Turn{Role: "assistant", Content: "partial"})
	s.AppendTurn(Turn{Role: "tool", Content: "{}"})

	s.TruncateTurns(committed)
	turns := s.Turns()
	if len(turns) != 1 || turns[0].Content != "hello" {
		t.Fatalf("rollback failed, turns: %+v", turns)
	}
}

func TestMergeLeadDraft_LaterNonEmptyWins(t *testing.T) {
	s := &Session{leadDraft: map[string]string{}}
	s.MergeLeadDraft(map[string]string{"job_type": "plumbing", "customer_name": "Dana"})
	s.MergeLeadDraft(map[string]string{"job_type": "water heater replacement", "customer_name": ""})

	draft := s.LeadDraft()
	if draft["job_type"] != "water heater replacement" {
		t.Errorf("later value should win, got %q", draft["job_type"])
	}
	if draft["customer_name"] != "Dana" {
		t.Errorf("empty value should not clobber, got %q", draft["customer_name"])
	}
}
