package verify

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math/rand/v2"
	"sync"
	"testing"
	"time"

	"gate-tg-bot/internal/audit"
	"gate-tg-bot/internal/challenge"
)

const (
	sourceChat int64 = -1001
	targetChat int64 = -2002
)

type call struct {
	Method  string
	ChatID  int64
	UserID  int64
	Text    string
	Options []int
	Prompt  challenge.PromptHandle
	EventID string
}

// recordingActions captures every platform call. Methods listed in fail
// return errTransport.
type recordingActions struct {
	mu      sync.Mutex
	calls   []call
	nextMsg int
	fail    map[string]bool
}

var errTransport = errors.New("transport failure")

func newRecordingActions() *recordingActions {
	return &recordingActions{nextMsg: 100, fail: make(map[string]bool)}
}

func (a *recordingActions) failOn(method string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.fail[method] = true
}

func (a *recordingActions) add(c call) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls = append(a.calls, c)
	if a.fail[c.Method] {
		return errTransport
	}
	return nil
}

func (a *recordingActions) RestrictSending(_ context.Context, chatID, userID int64) error {
	return a.add(call{Method: "RestrictSending", ChatID: chatID, UserID: userID})
}

func (a *recordingActions) RestoreDefaultPermissions(_ context.Context, chatID, userID int64) error {
	return a.add(call{Method: "RestoreDefaultPermissions", ChatID: chatID, UserID: userID})
}

func (a *recordingActions) SendChallenge(_ context.Context, chatID, subjectID int64, text string, options []int) (challenge.PromptHandle, error) {
	a.mu.Lock()
	a.nextMsg++
	prompt := challenge.PromptHandle{ChatID: chatID, MessageID: a.nextMsg}
	a.mu.Unlock()

	opts := append([]int(nil), options...)
	if err := a.add(call{Method: "SendChallenge", ChatID: chatID, UserID: subjectID, Text: text, Options: opts, Prompt: prompt}); err != nil {
		return challenge.PromptHandle{}, err
	}
	return prompt, nil
}

func (a *recordingActions) EditMessage(_ context.Context, prompt challenge.PromptHandle, text string) error {
	return a.add(call{Method: "EditMessage", ChatID: prompt.ChatID, Prompt: prompt, Text: text})
}

func (a *recordingActions) CreateSingleUseInvitation(_ context.Context, chatID int64, _ time.Time) (string, error) {
	if err := a.add(call{Method: "CreateSingleUseInvitation", ChatID: chatID}); err != nil {
		return "", err
	}
	return "https://t.me/+invite", nil
}

func (a *recordingActions) SendDirectMessage(_ context.Context, userID int64, text string) error {
	return a.add(call{Method: "SendDirectMessage", UserID: userID, Text: text})
}

func (a *recordingActions) BanFromChat(_ context.Context, chatID, userID int64) error {
	return a.add(call{Method: "BanFromChat", ChatID: chatID, UserID: userID})
}

func (a *recordingActions) AcknowledgeEvent(_ context.Context, eventID, notice string) error {
	return a.add(call{Method: "AcknowledgeEvent", EventID: eventID, Text: notice})
}

func (a *recordingActions) snapshot() []call {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]call(nil), a.calls...)
}

func (a *recordingActions) methods() []string {
	var out []string
	for _, c := range a.snapshot() {
		out = append(out, c.Method)
	}
	return out
}

func (a *recordingActions) count(method string) int {
	n := 0
	for _, c := range a.snapshot() {
		if c.Method == method {
			n++
		}
	}
	return n
}

func (a *recordingActions) last(method string) (call, bool) {
	calls := a.snapshot()
	for i := len(calls) - 1; i >= 0; i-- {
		if calls[i].Method == method {
			return calls[i], true
		}
	}
	return call{}, false
}

func (a *recordingActions) reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls = nil
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type memoryRecorder struct {
	mu       sync.Mutex
	verdicts []audit.Verdict
}

func (r *memoryRecorder) Record(_ context.Context, v audit.Verdict) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.verdicts = append(r.verdicts, v)
	return nil
}

func (r *memoryRecorder) all() []audit.Verdict {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]audit.Verdict(nil), r.verdicts...)
}

type harness struct {
	engine   *Engine
	store    *challenge.Store
	actions  *recordingActions
	recorder *memoryRecorder
	clock    *fakeClock
	// mirror is seeded like the engine's generator so tests can predict the
	// challenge each join produces.
	mirror *challenge.Generator
}

func seededGenerator(t *testing.T, seed uint64) *challenge.Generator {
	t.Helper()
	gen, err := challenge.NewGenerator(challenge.DefaultParams(), rand.New(rand.NewPCG(seed, seed+1)))
	if err != nil {
		t.Fatalf("NewGenerator: %v", err)
	}
	return gen
}

func newHarness(t *testing.T, mutate func(*Config)) *harness {
	t.Helper()

	cfg := Config{
		SourceChatID:  sourceChat,
		TargetChatID:  targetChat,
		InviteTTL:     10 * time.Minute,
		SweepInterval: time.Second,
		BanOnSuccess:  true,
	}
	if mutate != nil {
		mutate(&cfg)
	}

	h := &harness{
		store:    challenge.NewStore(),
		actions:  newRecordingActions(),
		recorder: &memoryRecorder{},
		clock:    &fakeClock{now: time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)},
		mirror:   seededGenerator(t, 42),
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h.engine = NewEngine(cfg, h.store, seededGenerator(t, 42), h.actions, h.recorder, h.clock, logger)
	return h
}

// join feeds a join event and returns the challenge the engine issued.
func (h *harness) join(t *testing.T, userID int64, name string) challenge.Challenge {
	t.Helper()
	expected := h.mirror.New(userID, name, sourceChat, h.clock.Now())

	h.engine.HandleJoin(context.Background(), JoinEvent{
		ChatID: sourceChat,
		Member: Member{ID: userID, Name: name},
	})

	sent, ok := h.actions.last("SendChallenge")
	if !ok {
		t.Fatal("no challenge prompt sent")
	}
	expected.Prompt = sent.Prompt
	return expected
}

func (h *harness) answer(c challenge.Challenge, clicker int64, value int) {
	h.engine.HandleAnswer(context.Background(), AnswerEvent{
		EventID:   "cb",
		Prompt:    c.Prompt,
		ClickerID: clicker,
		SubjectID: c.Subject,
		Value:     value,
	})
}

func wrongValue(c challenge.Challenge) int {
	return c.Decoys[0]
}
