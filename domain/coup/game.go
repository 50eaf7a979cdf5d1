package coup

import "fmt"

// ActionRequest is what the current player submits on their turn.
type ActionRequest struct {
	Actor  string
	Kind   ActionKind
	Target string
	// Swap lists the slots an Exchange replaces. Empty means every sealed slot.
	Swap []int
}

// start moves the lobby into play once enough players are seated.
func (t *tx) start() error {
	switch t.game.Phase {
	case PhaseLobby:
	case PhaseFinished:
		return ErrGameOver
	default:
		return newError(CodeWrongPhase, "game already started")
	}
	if len(t.game.Players) < t.rules.MinPlayers {
		return newError(CodeNotEnoughPlayers, fmt.Sprintf("need %d players, have %d", t.rules.MinPlayers, len(t.game.Players)))
	}
	t.game.Phase = PhaseActive
	t.game.TurnIndex = 0
	t.emit(Event{Type: EventGameStarted, Player: t.game.Players[0].ID})
	return nil
}

// submitAction validates the request in catalog order: phase, turn, target,
// funds. Role claims are not checked here; bluffing is legal until challenged.
func (t *tx) submitAction(req ActionRequest) (*Action, error) {
	switch t.game.Phase {
	case PhaseActive:
	case PhaseFinished:
		return nil, ErrGameOver
	default:
		return nil, newError(CodeWrongPhase, "game has not started")
	}
	spec, ok := Lookup(req.Kind)
	if !ok {
		return nil, withMetadata(CodeUnknownAction, fmt.Sprintf("unknown action %q", req.Kind), map[string]string{"action": string(req.Kind)})
	}
	if a := t.game.InFlight(); a != nil {
		return nil, withMetadata(CodeActionInFlight, fmt.Sprintf("action %s is still %s", a.ID, a.Status), map[string]string{"action": a.ID})
	}
	if len(t.game.Losses) > 0 {
		return nil, withMetadata(CodeLossOutstanding, fmt.Sprintf("player %s must lose influence first", t.game.Losses[0].Player),
			map[string]string{"player": t.game.Losses[0].Player})
	}

	actor, err := t.alivePlayer(req.Actor)
	if err != nil {
		return nil, err
	}
	if cur := t.game.Current(); cur == nil || cur.ID != actor.ID {
		return nil, withMetadata(CodeNotYourTurn, fmt.Sprintf("it is not %s's turn", actor.ID), map[string]string{"player": actor.ID})
	}

	if spec.RequiresTarget {
		if req.Target == "" {
			return nil, withMetadata(CodeMissingTarget, fmt.Sprintf("%s needs a target", req.Kind), map[string]string{"action": string(req.Kind)})
		}
		if req.Target == actor.ID {
			return nil, newError(CodeInvalidTarget, "cannot target yourself")
		}
		target, err := t.player(req.Target)
		if err != nil {
			return nil, err
		}
		if !target.Alive() {
			return nil, withMetadata(CodeInvalidTarget, fmt.Sprintf("target %s is eliminated", target.ID), map[string]string{"target": target.ID})
		}
	} else if req.Target != "" {
		return nil, withMetadata(CodeInvalidTarget, fmt.Sprintf("%s takes no target", req.Kind), map[string]string{"action": string(req.Kind)})
	}

	if actor.Coins < spec.Cost {
		return nil, withMetadata(CodeInsufficientFunds, fmt.Sprintf("%s costs %d, player %s has %d", req.Kind, spec.Cost, actor.ID, actor.Coins),
			map[string]string{"player": actor.ID})
	}
	if t.rules.MandatoryCoupAt > 0 && actor.Coins >= t.rules.MandatoryCoupAt && req.Kind != CoupAction {
		return nil, withMetadata(CodeMustCoup, fmt.Sprintf("player %s holds %d coins and must coup", actor.ID, actor.Coins),
			map[string]string{"player": actor.ID})
	}

	var swap []int
	if req.Kind == Exchange {
		seen := map[int]bool{}
		for _, slot := range req.Swap {
			if slot < 0 || slot >= len(actor.Slots) || !actor.Slots[slot].IsSealed() || seen[slot] {
				return nil, withMetadata(CodeInvalidSlot, fmt.Sprintf("cannot exchange slot %d", slot), map[string]string{"player": actor.ID})
			}
			seen[slot] = true
			swap = append(swap, slot)
		}
	}

	a := &Action{
		ID:        t.newID(),
		Actor:     actor.ID,
		Kind:      req.Kind,
		Target:    req.Target,
		Timestamp: t.now,
		Status:    StatusPending,
		Swap:      swap,
	}
	if spec.Upfront {
		if err := t.spendCoins(actor.ID, spec.Cost); err != nil {
			return nil, err
		}
		a.Paid = spec.Cost
	}
	t.game.Actions = append(t.game.Actions, a)
	t.emit(Event{Type: EventActionSubmitted, ActionID: a.ID, Kind: a.Kind, Player: a.Actor, Target: a.Target, Coins: a.Paid})

	if !spec.Contested() {
		return a, t.unopposed(a)
	}
	t.deadline()
	return a, nil
}

// loseInfluence pays one owed loss with the slot the player picked.
func (t *tx) loseInfluence(player string, slot int) (Role, error) {
	if t.game.Phase == PhaseFinished {
		return "", ErrGameOver
	}
	if _, err := t.player(player); err != nil {
		return "", err
	}
	if t.game.Owed(player) == 0 {
		return "", withMetadata(CodeNoLossOwed, fmt.Sprintf("player %s owes no influence", player), map[string]string{"player": player})
	}
	role, err := t.revealOne(player, slot)
	if err != nil {
		return "", err
	}
	for i, l := range t.game.Losses {
		if l.Player == player {
			t.game.Losses = append(t.game.Losses[:i:i], t.game.Losses[i+1:]...)
			break
		}
	}
	return role, t.settle()
}

// resolve closes the decision window of the action on the host's behalf.
func (t *tx) resolve(actionID string) (*Action, error) {
	if t.game.Phase == PhaseFinished {
		return nil, ErrGameOver
	}
	a := t.game.Action(actionID)
	if a == nil {
		return nil, withMetadata(CodeUnknownAction, fmt.Sprintf("unknown action %s", actionID), map[string]string{"action": actionID})
	}
	return a, t.closeWindow(a)
}

// settle pays losses that leave no choice: a player owing at least as much
// influence as they hold reveals everything. Then the game checks for a
// winner and moves the turn on.
func (t *tx) settle() error {
	keep := map[string]bool{}
	for _, l := range t.game.Losses {
		if _, seen := keep[l.Player]; seen {
			continue
		}
		p, err := t.player(l.Player)
		if err != nil {
			return err
		}
		sealed := p.SealedCount()
		if sealed > t.game.Owed(l.Player) {
			keep[l.Player] = true
			continue
		}
		keep[l.Player] = false
		for i := range p.Slots {
			if p.Slots[i].IsSealed() {
				if _, err := t.revealOne(p.ID, i); err != nil {
					return err
				}
			}
		}
	}
	var losses []Loss
	for _, l := range t.game.Losses {
		if keep[l.Player] {
			losses = append(losses, l)
		}
	}
	t.game.Losses = losses

	t.checkFinished()
	t.advanceTurn()
	return nil
}

func (t *tx) checkFinished() {
	if t.game.Phase != PhaseActive {
		return
	}
	alive := t.game.Alive()
	if len(alive) > 1 {
		return
	}
	t.game.Phase = PhaseFinished
	t.game.Losses = nil
	if len(alive) == 1 {
		t.game.Winner = alive[0].ID
	}
	t.emit(Event{Type: EventGameFinished, Player: t.game.Winner})
}

// advanceTurn passes the turn to the next alive player in join order once the
// current player's action is resolved and every loss is paid.
func (t *tx) advanceTurn() {
	g := t.game
	cur := g.Current()
	if cur == nil || g.InFlight() != nil || len(g.Losses) > 0 || len(g.Actions) == 0 {
		return
	}
	if g.Actions[len(g.Actions)-1].Actor != cur.ID {
		return
	}
	n := len(g.Players)
	for i := 1; i <= n; i++ {
		next := (g.TurnIndex + i) % n
		if g.Players[next].Alive() {
			g.TurnIndex = next
			t.emit(Event{Type: EventTurnAdvanced, Player: g.Players[next].ID})
			return
		}
	}
}
