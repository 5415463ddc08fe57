package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/sarim-aliii/duet/internal/core"
	"github.com/sarim-aliii/duet/internal/domain"
)

// --- Fakes ---

type fakeStore struct {
	mu     sync.Mutex
	states map[domain.RoomID]*domain.RoomState
	down   bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{states: make(map[domain.RoomID]*domain.RoomState)}
}

func (s *fakeStore) Get(_ context.Context, id domain.RoomID) (*domain.RoomState, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.down {
		return nil, false
	}
	st, ok := s.states[id]
	if !ok {
		return nil, false
	}
	cp := *st
	return &cp, true
}

func (s *fakeStore) Put(_ context.Context, id domain.RoomID, state *domain.RoomState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.down {
		return
	}
	cp := *state
	s.states[id] = &cp
}

type fakeHistory struct {
	mu          sync.Mutex
	messages    []domain.ChatMessage
	journal     []domain.JournalEntry
	failJournal bool
}

func (h *fakeHistory) AppendMessage(_ context.Context, _ domain.RoomID, m domain.ChatMessage) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.messages = append(h.messages, m)
	return nil
}

func (h *fakeHistory) MessagesByRoom(_ context.Context, _ domain.RoomID, _ int) ([]domain.ChatMessage, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]domain.ChatMessage{}, h.messages...), nil
}

func (h *fakeHistory) AppendJournal(_ context.Context, e domain.JournalEntry) (domain.JournalEntry, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.failJournal {
		return domain.JournalEntry{}, errors.New("journal store down")
	}
	e.ID = fmt.Sprintf("j%d", len(h.journal)+1)
	h.journal = append(h.journal, e)
	return e, nil
}

func (h *fakeHistory) messageCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.messages)
}

func (h *fakeHistory) JournalByRoom(_ context.Context, _ domain.RoomID) ([]domain.JournalEntry, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]domain.JournalEntry{}, h.journal...), nil
}

type fakeAccounts struct {
	accounts map[domain.UserID]domain.Account
}

func (a *fakeAccounts) Lookup(_ context.Context, id domain.UserID) (domain.Account, error) {
	acct, ok := a.accounts[id]
	if !ok {
		return domain.Account{}, errors.New("no such account")
	}
	return acct, nil
}

type push struct {
	To    domain.UserID
	Title string
	Body  string
}

type fakeNotifier struct {
	mu     sync.Mutex
	pushes []push
}

func (n *fakeNotifier) Push(_ context.Context, to domain.UserID, title, body string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.pushes = append(n.pushes, push{To: to, Title: title, Body: body})
}

func (n *fakeNotifier) sent() []push {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]push{}, n.pushes...)
}

type fakeConn struct {
	mu     sync.Mutex
	frames [][]byte
}

func (c *fakeConn) TrySend(f core.Frame) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	cp := make([]byte, len(f))
	copy(cp, f)
	c.frames = append(c.frames, cp)
	return nil
}

func (c *fakeConn) Close() {}

// eventsOfType decodes every captured frame with the given type tag.
func (c *fakeConn) eventsOfType(t *testing.T, typ string) []map[string]any {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []map[string]any
	for _, f := range c.frames {
		var m map[string]any
		if err := json.Unmarshal(f, &m); err != nil {
			t.Fatalf("undecodable frame %q: %v", f, err)
		}
		if m["type"] == typ {
			out = append(out, m)
		}
	}
	return out
}

func (c *fakeConn) reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.frames = nil
}

// --- Harness ---

type harness struct {
	engine   *Engine
	store    *fakeStore
	history  *fakeHistory
	notifier *fakeNotifier
	clock    time.Time
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	accounts := &fakeAccounts{accounts: map[domain.UserID]domain.Account{
		"alice": {ID: "alice", Name: "Alice", Partner: "bob"},
		"bob":   {ID: "bob", Name: "Bob", Partner: "alice"},
		"carol": {ID: "carol", Name: "Carol"}, // unpaired
	}}
	h := &harness{
		store:    newFakeStore(),
		history:  &fakeHistory{},
		notifier: &fakeNotifier{},
		clock:    time.UnixMilli(1_700_000_000_000),
	}
	h.engine = NewEngine(Config{
		SyncInterval:   1500 * time.Millisecond,
		GracePeriod:    time.Minute,
		EmptyDebounce:  500 * time.Millisecond,
		FreeTrialLimit: 24 * time.Hour,
		MessageCap:     50,
	}, h.store, h.history, accounts, h.notifier)
	h.engine.now = func() time.Time { return h.clock }
	return h
}

func (h *harness) advance(d time.Duration) {
	h.clock = h.clock.Add(d)
}

func (h *harness) join(t *testing.T, sid core.SessionID, uid domain.UserID) *fakeConn {
	t.Helper()
	conn := &fakeConn{}
	if _, err := h.engine.Join(context.Background(), sid, uid, conn); err != nil {
		t.Fatalf("join %s: %v", uid, err)
	}
	return conn
}

func (h *harness) state(t *testing.T, id domain.RoomID) *domain.RoomState {
	t.Helper()
	st, ok := h.store.Get(context.Background(), id)
	if !ok {
		t.Fatalf("no state for room %s", id)
	}
	return st
}

func (h *harness) action(t *testing.T, sid core.SessionID, typ string, payload string) {
	t.Helper()
	raw := fmt.Sprintf(`{"type":%q,"payload":%s}`, typ, payload)
	h.engine.HandleAction(context.Background(), sid, []byte(raw))
}

const pairedRoom = domain.RoomID("alice_bob")

// --- Lifecycle ---

func TestJoinRejectsUnpaired(t *testing.T) {
	h := newHarness(t)
	conn := &fakeConn{}
	_, err := h.engine.Join(context.Background(), "s1", "carol", conn)
	if !errors.Is(err, ErrNotPaired) {
		t.Fatalf("expected ErrNotPaired, got %v", err)
	}
	if _, ok := h.store.Get(context.Background(), "carol"); ok {
		t.Error("unpaired join must not create state")
	}
}

func TestJoinRejectsUnknownIdentity(t *testing.T) {
	h := newHarness(t)
	if _, err := h.engine.Join(context.Background(), "s1", "mallory", &fakeConn{}); err == nil {
		t.Fatal("expected error for unknown identity")
	}
}

func TestJoinCreatesAndAnnounces(t *testing.T) {
	h := newHarness(t)
	a := h.join(t, "s-alice", "alice")

	joined := a.eventsOfType(t, "room-joined")
	if len(joined) != 1 {
		t.Fatalf("expected one room-joined, got %d", len(joined))
	}
	if joined[0]["roomId"] != "alice_bob" {
		t.Errorf("room id = %v, want alice_bob", joined[0]["roomId"])
	}
	if _, has := joined[0]["partnerConnectionId"]; has {
		t.Error("first join should not see a partner connection")
	}

	b := h.join(t, "s-bob", "bob")
	bJoined := b.eventsOfType(t, "room-joined")
	if bJoined[0]["partnerConnectionId"] != "s-alice" {
		t.Errorf("partnerConnectionId = %v, want s-alice", bJoined[0]["partnerConnectionId"])
	}
	if len(a.eventsOfType(t, "partner-online")) != 1 {
		t.Error("existing member should hear partner-online")
	}
}

func TestRoomIDIndependentOfJoinOrder(t *testing.T) {
	h := newHarness(t)
	id1, err := h.engine.Join(context.Background(), "s1", "bob", &fakeConn{})
	if err != nil {
		t.Fatal(err)
	}
	id2, err := h.engine.Join(context.Background(), "s2", "alice", &fakeConn{})
	if err != nil {
		t.Fatal(err)
	}
	if id1 != id2 || id1 != pairedRoom {
		t.Errorf("room ids differ: %s vs %s", id1, id2)
	}
}

func TestDisconnectNotifiesPartner(t *testing.T) {
	h := newHarness(t)
	a := h.join(t, "s-alice", "alice")
	h.join(t, "s-bob", "bob")
	a.reset()

	h.engine.ReportBuffering(context.Background(), "s-bob", true)
	h.engine.Disconnect("s-bob")

	if len(a.eventsOfType(t, "partner-offline")) != 1 {
		t.Error("remaining member should hear partner-offline")
	}
	// the leaver's stall must stop counting against the room
	events := a.eventsOfType(t, "partnerBuffering")
	last := events[len(events)-1]
	if last["isBuffering"] != false {
		t.Error("partner buffering flag should be cleared on disconnect")
	}
	if h.engine.reg.anyBuffering(pairedRoom, "") {
		t.Error("no live connection should be marked buffering")
	}
}

func TestStateSurvivesReconnect(t *testing.T) {
	h := newHarness(t)
	h.join(t, "s-alice", "alice")
	h.action(t, "s-alice", "SEND_MESSAGE", `{"content":"hi"}`)
	h.action(t, "s-alice", "UPDATE_PLAYBACK_TIME", `{"currentTime":42}`)
	h.engine.Disconnect("s-alice")

	conn := h.join(t, "s-alice-2", "alice")
	joined := conn.eventsOfType(t, "room-joined")
	state := joined[0]["state"].(map[string]any)
	msgs := state["messages"].([]any)
	if len(msgs) != 1 {
		t.Fatalf("expected 1 message after reconnect, got %d", len(msgs))
	}
	playback := state["playbackState"].(map[string]any)
	if playback["currentTime"].(float64) != 42 {
		t.Errorf("currentTime = %v, want 42", playback["currentTime"])
	}
}

func TestJoinDegradesWhenStoreDown(t *testing.T) {
	h := newHarness(t)
	h.store.down = true

	conn := h.join(t, "s-alice", "alice")

	joined := conn.eventsOfType(t, "room-joined")
	if len(joined) != 1 {
		t.Fatalf("join must succeed on a hydrated state, got %d events", len(joined))
	}
	state := joined[0]["state"].(map[string]any)
	if _, ok := state["playbackState"]; !ok {
		t.Error("hydrated state should still be complete")
	}
}

// --- Relay ---

func TestRelayForwardsToTarget(t *testing.T) {
	h := newHarness(t)
	h.join(t, "s-alice", "alice")
	b := h.join(t, "s-bob", "bob")
	b.reset()

	h.engine.RelaySignal("s-alice", []byte(`{"type":"signal","target":"s-bob","payload":{"sdp":"v=0","kind":"offer"}}`))

	events := b.eventsOfType(t, "signal")
	if len(events) != 1 {
		t.Fatalf("expected 1 relayed signal, got %d", len(events))
	}
	if events[0]["sender"] != "s-alice" {
		t.Errorf("sender = %v, want s-alice", events[0]["sender"])
	}
	payload := events[0]["payload"].(map[string]any)
	if payload["sdp"] != "v=0" {
		t.Errorf("payload not forwarded verbatim: %v", payload)
	}
}

func TestRelayIgnoresUnknownTarget(t *testing.T) {
	h := newHarness(t)
	a := h.join(t, "s-alice", "alice")
	a.reset()
	h.engine.RelaySignal("s-alice", []byte(`{"type":"signal","target":"nope","payload":{"x":1}}`))
	if len(a.eventsOfType(t, "signal")) != 0 {
		t.Error("nothing should bounce back to the sender")
	}
}
