package coup

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"
)

var errUnavailable = errors.New("unavailable")

type memLedger struct {
	mu   sync.Mutex
	data map[string][]byte
	fail bool
	// failKey makes writes to that one key fail.
	failKey string
}

func newMemLedger() *memLedger {
	return &memLedger{data: map[string][]byte{}}
}

func (l *memLedger) Get(_ context.Context, key string) ([]byte, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.fail {
		return nil, false, errUnavailable
	}
	v, ok := l.data[key]
	return v, ok, nil
}

func (l *memLedger) Set(_ context.Context, key string, value []byte) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.fail || key == l.failKey {
		return errUnavailable
	}
	l.data[key] = append([]byte(nil), value...)
	return nil
}

func (l *memLedger) setFail(fail bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.fail = fail
}

func (l *memLedger) setFailKey(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.failKey = key
}

type sealed struct {
	owner string
	role  Role
}

// plainVault keeps roles in the clear. Good enough to drive the engine.
type plainVault struct {
	mu      sync.Mutex
	next    int
	entries map[Handle]sealed
	fail    bool
}

func newPlainVault() *plainVault {
	return &plainVault{entries: map[Handle]sealed{}}
}

func (v *plainVault) Seal(owner string, role Role) (Handle, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.fail {
		return "", errUnavailable
	}
	v.next++
	h := Handle(fmt.Sprintf("h%d", v.next))
	v.entries[h] = sealed{owner: owner, role: role}
	return h, nil
}

func (v *plainVault) open(owner string, h Handle) (Role, error) {
	if v.fail {
		return "", errUnavailable
	}
	e, ok := v.entries[h]
	if !ok {
		return "", fmt.Errorf("unknown handle %s", h)
	}
	if e.owner != owner {
		return "", fmt.Errorf("handle %s is not owned by %s", h, owner)
	}
	return e.role, nil
}

func (v *plainVault) UnsealAndCompare(owner string, h Handle, claimed Role) (bool, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	r, err := v.open(owner, h)
	return r == claimed, err
}

func (v *plainVault) Reveal(owner string, h Handle) (Role, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.open(owner, h)
}

func (v *plainVault) setFail(fail bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.fail = fail
}

type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) Append(_ string, payload any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, payload.(Event))
	return nil
}

func (r *recorder) types() []EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]EventType, len(r.events))
	for i, ev := range r.events {
		out[i] = ev.Type
	}
	return out
}

// script draws the given roles in order, then Contessa forever.
func script(roles ...Role) func() Role {
	var mu sync.Mutex
	return func() Role {
		mu.Lock()
		defer mu.Unlock()
		if len(roles) == 0 {
			return Contessa
		}
		r := roles[0]
		roles = roles[1:]
		return r
	}
}

func sequence(prefix string) func() string {
	var mu sync.Mutex
	n := 0
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return fmt.Sprintf("%s%d", prefix, n)
	}
}

var epoch = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

type fixture struct {
	engine  *Engine
	ledger  *memLedger
	vault   *plainVault
	journal *recorder
	clock   *clock
}

func testOptions(rules Rules, roles ...Role) (Options, *fixture) {
	f := &fixture{
		ledger:  newMemLedger(),
		vault:   newPlainVault(),
		journal: &recorder{},
		clock:   &clock{now: epoch},
	}
	return Options{
		Rules:   rules,
		Ledger:  f.ledger,
		Vault:   f.vault,
		Journal: f.journal,
		Logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		Now:     f.clock.Now,
		Draw:    script(roles...),
		NewID:   sequence("a"),
	}, f
}

// newTable opens a game, seats players in order and starts it. Each player
// draws two roles from roles in seating order.
func newTable(t *testing.T, rules Rules, players []string, roles ...Role) *fixture {
	t.Helper()
	opts, f := testOptions(rules, roles...)
	e, err := Open(context.Background(), "table", opts)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	f.engine = e
	for _, p := range players {
		if _, err := e.Join(context.Background(), p); err != nil {
			t.Fatalf("Join(%s) error = %v", p, err)
		}
	}
	if err := e.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	return f
}

// edit changes the committed game directly to set up a position.
func (f *fixture) edit(fn func(g *Game)) {
	f.engine.mu.Lock()
	defer f.engine.mu.Unlock()
	fn(f.engine.game)
}

func (f *fixture) player(t *testing.T, id string) *Player {
	t.Helper()
	p := f.engine.Snapshot().Player(id)
	if p == nil {
		t.Fatalf("player %s not found", id)
	}
	return p
}

func (f *fixture) current(t *testing.T) string {
	t.Helper()
	cur := f.engine.Snapshot().Current()
	if cur == nil {
		return ""
	}
	return cur.ID
}

func submit(t *testing.T, e *Engine, actor string, kind ActionKind, target string) Action {
	t.Helper()
	a, err := e.SubmitAction(context.Background(), ActionRequest{Actor: actor, Kind: kind, Target: target})
	if err != nil {
		t.Fatalf("SubmitAction(%s %s %s) error = %v", actor, kind, target, err)
	}
	return a
}

func wantCode(t *testing.T, err error, want Code) {
	t.Helper()
	var ce *Error
	if !errors.As(err, &ce) {
		t.Fatalf("error: expected code %s, actual %v", want, err)
	}
	if ce.Code != want {
		t.Fatalf("code: expected %s, actual %s (%v)", want, ce.Code, err)
	}
}

// checkInvariants asserts the properties every committed game must hold.
func checkInvariants(t *testing.T, g *Game) {
	t.Helper()
	inFlight := 0
	for i, a := range g.Actions {
		if !a.Status.Terminal() {
			inFlight++
			if i != len(g.Actions)-1 {
				t.Fatalf("action %s is %s but not the latest", a.ID, a.Status)
			}
		}
	}
	if inFlight > 1 {
		t.Fatalf("%d actions in flight", inFlight)
	}
	alive := 0
	for _, p := range g.Players {
		for _, s := range p.Slots {
			if s.IsSealed() && s.Handle == "" {
				t.Fatalf("player %s has a sealed slot without handle", p.ID)
			}
			if !s.IsSealed() && !s.Revealed.Valid() {
				t.Fatalf("player %s revealed %q", p.ID, s.Revealed)
			}
		}
		if p.Alive() {
			alive++
		}
	}
	switch g.Phase {
	case PhaseActive:
		if alive < 2 {
			t.Fatalf("active game with %d alive players", alive)
		}
		if cur := g.Current(); cur == nil || !cur.Alive() && g.InFlight() == nil && len(g.Losses) == 0 {
			t.Fatalf("turn index %d does not point at an alive player", g.TurnIndex)
		}
	case PhaseFinished:
		if alive != 1 || g.Winner == "" || !g.Player(g.Winner).Alive() {
			t.Fatalf("finished game: alive = %d, winner = %q", alive, g.Winner)
		}
	}
}
