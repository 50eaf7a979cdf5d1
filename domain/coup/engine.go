package coup

import (
	"context"
	"errors"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Ledger is durable key/value storage without transactions.
type Ledger interface {
	// Get returns the value stored under key and whether it exists.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	// Set stores value under key, replacing any previous value.
	Set(ctx context.Context, key string, value []byte) error
}

// Vault seals roles for their owner and answers questions about them.
type Vault interface {
	// Seal hides role for owner and returns a handle to it.
	Seal(owner string, role Role) (Handle, error)
	// UnsealAndCompare reports whether the sealed role equals claimed. A false
	// answer tells nothing else about the sealed role.
	UnsealAndCompare(owner string, h Handle, claimed Role) (bool, error)
	// Reveal opens the handle. Only the owner may do this.
	Reveal(owner string, h Handle) (Role, error)
}

// Options wires an Engine to its capabilities.
type Options struct {
	Rules   Rules
	Ledger  Ledger
	Vault   Vault
	Journal Journal
	Logger  *slog.Logger
	// Now, Draw and NewID default to the wall clock, a uniform role draw and uuids.
	Now   func() time.Time
	Draw  func() Role
	NewID func() string
}

// Engine is the single writer of one game.
type Engine struct {
	mu      sync.RWMutex
	id      string
	game    *Game
	rules   Rules
	ledger  Ledger
	vault   Vault
	journal Journal
	logger  *slog.Logger
	now     func() time.Time
	draw    func() Role
	newID   func() string
	// dirty is set when a commit failed after some writes may have landed.
	// The next commit then rewrites every record instead of a diff.
	dirty bool
}

// DrawRole picks a role uniformly at random, with replacement.
func DrawRole() Role {
	return Roles[rand.IntN(len(Roles))]
}

// Open loads the game stored in the ledger, or starts an empty lobby.
func Open(ctx context.Context, id string, opts Options) (*Engine, error) {
	if opts.Ledger == nil || opts.Vault == nil {
		return nil, errors.New("coup: ledger and vault are required")
	}
	if err := opts.Rules.Validate(); err != nil {
		return nil, err
	}
	e := &Engine{
		id:      id,
		rules:   opts.Rules,
		ledger:  opts.Ledger,
		vault:   opts.Vault,
		journal: opts.Journal,
		logger:  opts.Logger,
		now:     opts.Now,
		draw:    opts.Draw,
		newID:   opts.NewID,
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}
	if e.now == nil {
		e.now = time.Now
	}
	if e.draw == nil {
		e.draw = DrawRole
	}
	if e.newID == nil {
		e.newID = uuid.NewString
	}
	g, err := load(ctx, opts.Ledger, id)
	if err != nil {
		return nil, err
	}
	e.game = g
	e.logger = e.logger.With("game", id)
	return e, nil
}

// ID returns the game id.
func (e *Engine) ID() string { return e.id }

// Rules returns the rules the engine was opened with.
func (e *Engine) Rules() Rules { return e.rules }

func (e *Engine) begin() *tx {
	return &tx{
		game:  e.game.Clone(),
		rules: e.rules,
		vault: e.vault,
		draw:  e.draw,
		newID: e.newID,
		now:   e.now().UTC(),
	}
}

// mutateLocked runs fn on a copy of the game and commits the copy. The caller
// holds e.mu. Any error leaves the committed game untouched.
func (e *Engine) mutateLocked(ctx context.Context, fn func(t *tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	t := e.begin()
	if err := fn(t); err != nil {
		e.logRejected(err)
		return err
	}
	return e.commit(ctx, t)
}

func (e *Engine) mutate(ctx context.Context, fn func(t *tx) error) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.mutateLocked(ctx, fn)
}

func (e *Engine) commit(ctx context.Context, t *tx) error {
	writes, err := diff(e.game, t.game, e.dirty)
	if err != nil {
		return wrapError(CodeLedgerUnavailable, "encode records", err)
	}
	for i, w := range writes {
		if err := e.ledger.Set(ctx, w.key, w.value); err != nil {
			if i > 0 {
				e.dirty = true
			}
			e.logger.Warn("ledger write failed", "key", w.key, "written", i, "error", err)
			return wrapError(CodeLedgerUnavailable, "write "+w.key, err)
		}
	}
	e.dirty = false
	e.game = t.game
	for _, ev := range t.events {
		e.logger.Info("committed", "event", ev.Type, "action", ev.ActionID, "player", ev.Player, "status", ev.Status)
		if e.journal == nil {
			continue
		}
		if err := e.journal.Append(string(ev.Type), ev); err != nil {
			e.logger.Error("journal append failed", "event", ev.Type, "error", err)
		}
	}
	return nil
}

func (e *Engine) logRejected(err error) {
	var ce *Error
	if errors.As(err, &ce) && ce.Kind() == KindCapability {
		e.logger.Warn("capability failure", "code", ce.Code, "error", err)
		return
	}
	e.logger.Debug("request rejected", "error", err)
}

// Join seats a player in the lobby (or mid-game when the rules allow it).
func (e *Engine) Join(ctx context.Context, playerID string) (Player, error) {
	var out Player
	err := e.mutate(ctx, func(t *tx) error {
		p, err := t.join(playerID)
		if err == nil {
			out = *p
		}
		return err
	})
	return out, err
}

// Start moves the game from the lobby into play.
func (e *Engine) Start(ctx context.Context) error {
	return e.mutate(ctx, func(t *tx) error { return t.start() })
}

// SubmitAction records the current player's move. Uncontested actions resolve
// immediately; the others wait for passes, a challenge or a block.
func (e *Engine) SubmitAction(ctx context.Context, req ActionRequest) (Action, error) {
	var out Action
	err := e.mutate(ctx, func(t *tx) error {
		a, err := t.submitAction(req)
		if err == nil {
			out = *a.clone()
		}
		return err
	})
	return out, err
}

// SubmitChallenge disputes the open claim and settles it at once. If the Vault
// fails, the challenge stays recorded and Resolve retries the proof.
func (e *Engine) SubmitChallenge(ctx context.Context, challenger string) (Action, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	var id string
	err := e.mutateLocked(ctx, func(t *tx) error {
		a, err := t.challenge(challenger)
		if err == nil {
			id = a.ID
		}
		return err
	})
	if err != nil {
		return Action{}, err
	}
	err = e.mutateLocked(ctx, func(t *tx) error {
		return t.resolveChallenge(t.game.Action(id))
	})
	return *e.game.Action(id).clone(), err
}

// SubmitBlock claims role to stop the pending action.
func (e *Engine) SubmitBlock(ctx context.Context, blocker string, role Role) (Action, error) {
	var out Action
	err := e.mutate(ctx, func(t *tx) error {
		a, err := t.block(blocker, role)
		if err == nil {
			out = *a.clone()
		}
		return err
	})
	return out, err
}

// Pass declines to respond to the open claim.
func (e *Engine) Pass(ctx context.Context, player string) (Action, error) {
	var out Action
	err := e.mutate(ctx, func(t *tx) error {
		a, err := t.pass(player)
		if err == nil {
			out = *a.clone()
		}
		return err
	})
	return out, err
}

// Resolve closes the decision window: a pending action succeeds unopposed, a
// standing block wins, and a challenge whose proof failed earlier is retried.
func (e *Engine) Resolve(ctx context.Context, actionID string) (Action, error) {
	var out Action
	err := e.mutate(ctx, func(t *tx) error {
		a, err := t.resolve(actionID)
		if err == nil {
			out = *a.clone()
		}
		return err
	})
	return out, err
}

// ExpireDue resolves the open action if its decision window ended before now.
// It reports whether anything was resolved.
func (e *Engine) ExpireDue(ctx context.Context, now time.Time) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	a := e.game.InFlight()
	if a == nil || a.Deadline.IsZero() || now.Before(a.Deadline) {
		return false, nil
	}
	id := a.ID
	err := e.mutateLocked(ctx, func(t *tx) error {
		_, err := t.resolve(id)
		return err
	})
	return err == nil, err
}

// LoseInfluence pays one owed loss by revealing the chosen slot.
func (e *Engine) LoseInfluence(ctx context.Context, player string, slot int) (Role, error) {
	var role Role
	err := e.mutate(ctx, func(t *tx) error {
		r, err := t.loseInfluence(player, slot)
		role = r
		return err
	})
	return role, err
}

// Snapshot returns a deep copy of the committed game.
func (e *Engine) Snapshot() *Game {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.game.Clone()
}

// Actions returns a copy of the action log in submission order.
func (e *Engine) Actions() []Action {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]Action, len(e.game.Actions))
	for i, a := range e.game.Actions {
		out[i] = *a.clone()
	}
	return out
}

// HandSlot is the owner's view of one slot.
type HandSlot struct {
	Role   Role
	Sealed bool
}

// Hand opens the player's own sealed roles. It must only be shown to that player.
func (e *Engine) Hand(playerID string) ([2]HandSlot, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	var hand [2]HandSlot
	p := e.game.Player(playerID)
	if p == nil {
		return hand, withMetadata(CodeUnknownPlayer, "unknown player "+playerID, map[string]string{"player": playerID})
	}
	for i, s := range p.Slots {
		if !s.IsSealed() {
			hand[i] = HandSlot{Role: s.Revealed}
			continue
		}
		r, err := e.vault.Reveal(playerID, s.Handle)
		if err != nil {
			return hand, wrapError(CodeVaultUnavailable, "open hand", err)
		}
		hand[i] = HandSlot{Role: r, Sealed: true}
	}
	return hand, nil
}
