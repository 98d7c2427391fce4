package service_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"unicode/utf8"

	"github.com/mzDeaThly/data-spf/internal/registry/service"
	"github.com/mzDeaThly/data-spf/internal/registry/store/memory"
	"github.com/mzDeaThly/data-spf/internal/registry/types"
)

func strPtr(s string) *string { return &s }

func TestAuditRecorder_TruncatesQueryTextByRunes(t *testing.T) {
	logs := memory.NewQueryLogStore()
	r := service.NewAuditRecorder(logs, nil)

	long := strings.Repeat("ก", types.MaxQueryTextLen+40)
	r.Record(context.Background(), service.AuditEntry{SourceType: types.SourceUser, QueryText: long, Allowed: true})

	got := logs.Events()[0].QueryText
	if n := utf8.RuneCountInString(got); n != types.MaxQueryTextLen {
		t.Errorf("expected %d runes, got %d", types.MaxQueryTextLen, n)
	}
	if !utf8.ValidString(got) {
		t.Error("truncation split a multi-byte rune")
	}
}

func TestAuditRecorder_DeniedNeverCarriesMatchedCount(t *testing.T) {
	logs := memory.NewQueryLogStore()
	r := service.NewAuditRecorder(logs, nil)

	n := 3
	r.Record(context.Background(), service.AuditEntry{QueryText: "x", Allowed: false, MatchedCount: &n})

	if logs.Events()[0].MatchedCount != nil {
		t.Error("expected matched_count nil on a denied entry")
	}
}

func TestAuditRecorder_HealsSchemaOnce(t *testing.T) {
	logs := memory.NewQueryLogStore()
	r := service.NewAuditRecorder(logs, nil)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.Record(ctx, service.AuditEntry{QueryText: "q", Allowed: true, ActorName: strPtr("A")})
		}()
	}
	wg.Wait()

	if n := logs.EnsureCalls(); n != 1 {
		t.Errorf("expected exactly one heal attempt, got %d", n)
	}
	events := logs.Events()
	if len(events) != 8 {
		t.Fatalf("expected 8 entries, got %d", len(events))
	}
	for _, ev := range events {
		if ev.ActorDisplayName == nil || *ev.ActorDisplayName != "A" {
			t.Errorf("expected actor name kept after heal, got %v", ev.ActorDisplayName)
		}
	}
}

func TestAuditRecorder_HealFailureRetriedLazilyAndNamesDropped(t *testing.T) {
	logs := memory.NewQueryLogStore()
	logs.SetFailures(errors.New("database is locked"), nil)
	r := service.NewAuditRecorder(logs, nil)
	ctx := context.Background()

	r.Record(ctx, service.AuditEntry{QueryText: "one", Allowed: true, ActorName: strPtr("A")})

	events := logs.Events()
	if len(events) != 1 {
		t.Fatalf("expected the entry written without names, got %d entries", len(events))
	}
	if events[0].ActorDisplayName != nil {
		t.Error("expected display name dropped while schema is unhealed")
	}

	logs.SetFailures(nil, nil)
	r.Record(ctx, service.AuditEntry{QueryText: "two", Allowed: true, ActorName: strPtr("A")})

	if n := logs.EnsureCalls(); n != 2 {
		t.Errorf("expected heal retried on next call, got %d attempts", n)
	}
	last := logs.Events()[1]
	if last.ActorDisplayName == nil {
		t.Error("expected display name once the schema healed")
	}
}

func TestAuditRecorder_WriteFailureIsSwallowed(t *testing.T) {
	logs := memory.NewQueryLogStore()
	logs.SetFailures(nil, errors.New("disk full"))
	r := service.NewAuditRecorder(logs, nil)

	// Must not panic or block.
	r.Record(context.Background(), service.AuditEntry{QueryText: "x", Allowed: true})

	if n := len(logs.Events()); n != 0 {
		t.Errorf("expected nothing stored, got %d", n)
	}
}
