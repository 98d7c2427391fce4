package service_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/mzDeaThly/data-spf/internal/line"
	"github.com/mzDeaThly/data-spf/internal/registry/service"
	"github.com/mzDeaThly/data-spf/internal/registry/store"
	"github.com/mzDeaThly/data-spf/internal/registry/store/memory"
	"github.com/mzDeaThly/data-spf/internal/registry/types"
)

// fixedNow is mid-morning in Bangkok so UTC and Asia/Bangkok agree on the date.
var fixedNow = time.Date(2026, 10, 14, 3, 0, 0, 0, time.UTC)

var today = types.DateOf(fixedNow)

func daysAgo(n int) *types.Date {
	d := today.AddDays(-n)
	return &d
}

// ── Fakes ────────────────────────────────────────────────────────────────────

type sentReply struct {
	Token    string
	Messages []line.ReplyMessage
}

type fakeReplier struct {
	mu      sync.Mutex
	replies []sentReply
	err     error
}

func (f *fakeReplier) Reply(_ context.Context, token string, msgs ...line.ReplyMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.replies = append(f.replies, sentReply{Token: token, Messages: msgs})
	return f.err
}

func (f *fakeReplier) Replies() []sentReply {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]sentReply, len(f.replies))
	copy(out, f.replies)
	return out
}

type fakeProfiles struct {
	mu    sync.Mutex
	names map[string]string
	err   error
	calls int
}

func (f *fakeProfiles) Profile(_ context.Context, src line.Source) (line.Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return line.Profile{}, f.err
	}
	return line.Profile{UserID: src.UserID, DisplayName: f.names[src.UserID]}, nil
}

func (f *fakeProfiles) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type failingVehicleStore struct {
	*memory.VehicleStore
	err error
}

func (s failingVehicleStore) SearchPlates(context.Context, string, int) ([]types.Vehicle, error) {
	return nil, s.err
}

// ── Harness ──────────────────────────────────────────────────────────────────

type harness struct {
	vehicles    *memory.VehicleStore
	permissions *memory.PermissionStore
	logs        *memory.QueryLogStore
	profiles    *fakeProfiles
	replier     *fakeReplier
	dispatcher  *service.Dispatcher
	maxAge      int
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		vehicles:    memory.NewVehicleStore(),
		permissions: memory.NewPermissionStore(),
		logs:        memory.NewQueryLogStore(),
		profiles:    &fakeProfiles{names: map[string]string{}},
		replier:     &fakeReplier{},
		maxAge:      35,
	}
	h.build(h.vehicles)
	return h
}

func (h *harness) build(vs store.VehicleStore) {
	search := service.NewRegistrySearch(vs, time.UTC, func() time.Time { return fixedNow })
	h.dispatcher = service.NewDispatcher(service.DispatcherDeps{
		Gate:       service.NewPermissionGate(h.permissions),
		Profiles:   service.NewProfileResolver(h.profiles, memory.NewProfileCache(), time.Hour, nil),
		Search:     search,
		Audit:      service.NewAuditRecorder(h.logs, nil),
		Replier:    h.replier,
		MaxAgeDays: func() int { return h.maxAge },
	})
}

func textEvent(src line.Source, text string) line.Event {
	return line.Event{
		Type:       line.EventTypeMessage,
		ReplyToken: "rt-" + text,
		Source:     src,
		Message:    &line.Message{Type: line.MessageTypeText, Text: text},
	}
}

func userSource(id string) line.Source {
	return line.Source{Type: line.SourceTypeUser, UserID: id}
}

func groupSource(userID, groupID string) line.Source {
	return line.Source{Type: line.SourceTypeGroup, UserID: userID, GroupID: groupID}
}

func replyText(t *testing.T, r sentReply) string {
	t.Helper()
	if len(r.Messages) != 1 {
		t.Fatalf("expected 1 message, got %d", len(r.Messages))
	}
	m, ok := r.Messages[0].(line.TextMessage)
	if !ok {
		t.Fatalf("expected text message, got %T", r.Messages[0])
	}
	return m.Text
}
