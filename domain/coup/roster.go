package coup

import (
	"fmt"
	"strings"
	"time"
)

// tx is one mutation in progress. It works on a private copy of the game;
// the engine swaps the copy in only after the ledger accepted it.
type tx struct {
	game   *Game
	rules  Rules
	vault  Vault
	draw   func() Role
	newID  func() string
	now    time.Time
	events []Event
}

func (t *tx) emit(ev Event) {
	ev.Game = t.game.ID
	ev.At = t.now
	t.events = append(t.events, ev)
}

func (t *tx) player(id string) (*Player, error) {
	p := t.game.Player(id)
	if p == nil {
		return nil, withMetadata(CodeUnknownPlayer, fmt.Sprintf("unknown player %q", id), map[string]string{"player": id})
	}
	return p, nil
}

func (t *tx) alivePlayer(id string) (*Player, error) {
	p, err := t.player(id)
	if err != nil {
		return nil, err
	}
	if !p.Alive() {
		return nil, withMetadata(CodePlayerNotAlive, fmt.Sprintf("player %s is eliminated", id), map[string]string{"player": id})
	}
	return p, nil
}

// join seats a new player with two freshly sealed roles and the starting purse.
func (t *tx) join(id string) (*Player, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, newError(CodeInvalidPlayerID, "player id is required")
	}
	if t.game.Player(id) != nil {
		return nil, withMetadata(CodeAlreadyJoined, fmt.Sprintf("player %s already joined", id), map[string]string{"player": id})
	}
	switch t.game.Phase {
	case PhaseLobby:
	case PhaseActive:
		if !t.rules.AllowLateJoin {
			return nil, newError(CodeWrongPhase, "game already started")
		}
	default:
		return nil, newError(CodeWrongPhase, fmt.Sprintf("cannot join a %s game", t.game.Phase))
	}
	if t.rules.MaxPlayers > 0 && len(t.game.Players) >= t.rules.MaxPlayers {
		return nil, newError(CodeGameFull, fmt.Sprintf("table holds at most %d players", t.rules.MaxPlayers))
	}

	p := &Player{ID: id}
	for i := range p.Slots {
		h, err := t.seal(id, t.draw())
		if err != nil {
			return nil, err
		}
		p.Slots[i] = SealedSlot(h)
	}
	t.game.Players = append(t.game.Players, p)
	if err := t.creditCoins(id, t.rules.StartingCoins); err != nil {
		return nil, err
	}
	t.emit(Event{Type: EventPlayerJoined, Player: id, Coins: p.Coins})
	return p, nil
}

func (t *tx) seal(owner string, role Role) (Handle, error) {
	h, err := t.vault.Seal(owner, role)
	if err != nil {
		return "", wrapError(CodeVaultUnavailable, "seal role", err)
	}
	return h, nil
}

// spendCoins debits n coins or fails without touching the balance.
func (t *tx) spendCoins(id string, n uint) error {
	p, err := t.player(id)
	if err != nil {
		return err
	}
	if p.Coins < n {
		return withMetadata(CodeInsufficientFunds, fmt.Sprintf("player %s has %d coins, needs %d", id, p.Coins, n),
			map[string]string{"player": id})
	}
	p.Coins -= n
	return nil
}

func (t *tx) creditCoins(id string, n uint) error {
	p, err := t.player(id)
	if err != nil {
		return err
	}
	p.Coins += n
	return nil
}

func (t *tx) sealedRoleCount(id string) (int, error) {
	p, err := t.player(id)
	if err != nil {
		return 0, err
	}
	return p.SealedCount(), nil
}

func (t *tx) isAlive(id string) (bool, error) {
	n, err := t.sealedRoleCount(id)
	return n > 0, err
}

// revealOne turns the chosen sealed slot face up.
func (t *tx) revealOne(id string, slot int) (Role, error) {
	p, err := t.player(id)
	if err != nil {
		return "", err
	}
	if !p.Alive() {
		return "", withMetadata(CodeNoSealedRoles, fmt.Sprintf("player %s has no sealed roles", id), map[string]string{"player": id})
	}
	if slot < 0 || slot >= len(p.Slots) || !p.Slots[slot].IsSealed() {
		return "", withMetadata(CodeInvalidSlot, fmt.Sprintf("slot %d of %s is not sealed", slot, id), map[string]string{"player": id})
	}
	role, err := t.vault.Reveal(id, p.Slots[slot].Handle)
	if err != nil {
		return "", wrapError(CodeVaultUnavailable, "reveal role", err)
	}
	p.Slots[slot] = RevealedSlot(role)
	t.emit(Event{Type: EventInfluenceLost, Player: id, Role: role})
	if !p.Alive() {
		t.emit(Event{Type: EventPlayerEliminated, Player: id})
	}
	return role, nil
}

// forceRevealSpecific finds a sealed slot holding role. Each slot is only
// compared against the claim, so a non-matching slot stays secret.
func (t *tx) forceRevealSpecific(id string, role Role) (int, error) {
	p, err := t.player(id)
	if err != nil {
		return -1, err
	}
	for i, s := range p.Slots {
		if !s.IsSealed() {
			continue
		}
		ok, err := t.vault.UnsealAndCompare(id, s.Handle, role)
		if err != nil {
			return -1, wrapError(CodeVaultUnavailable, "compare role", err)
		}
		if ok {
			return i, nil
		}
	}
	return -1, withMetadata(CodeRoleNotHeld, fmt.Sprintf("player %s does not hold %s", id, role),
		map[string]string{"player": id, "role": string(role)})
}

// reseal replaces a sealed slot with a freshly drawn role. The old handle is dropped.
func (t *tx) reseal(id string, slot int) error {
	p, err := t.player(id)
	if err != nil {
		return err
	}
	if slot < 0 || slot >= len(p.Slots) || !p.Slots[slot].IsSealed() {
		return withMetadata(CodeInvalidSlot, fmt.Sprintf("slot %d of %s is not sealed", slot, id), map[string]string{"player": id})
	}
	h, err := t.seal(id, t.draw())
	if err != nil {
		return err
	}
	p.Slots[slot] = SealedSlot(h)
	return nil
}
