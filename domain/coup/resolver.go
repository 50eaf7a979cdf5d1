package coup

import (
	"errors"
	"fmt"
)

func (t *tx) inFlight() (*Action, ActionSpec, error) {
	if t.game.Phase == PhaseFinished {
		return nil, ActionSpec{}, ErrGameOver
	}
	a := t.game.InFlight()
	if a == nil {
		return nil, ActionSpec{}, newError(CodeNoPendingAction, "no action awaiting responses")
	}
	return a, catalog[a.Kind], nil
}

func (t *tx) deadline() {
	a := t.game.InFlight()
	if a != nil && t.rules.DecisionWindow > 0 {
		a.Deadline = t.now.Add(t.rules.DecisionWindow)
	}
}

// responders returns who may still answer the open claim: every alive player
// except the one making the claim.
func (t *tx) responders(a *Action) []string {
	claimant := a.Actor
	if a.Status == StatusBlocked {
		claimant = a.Block.Player
	}
	var out []string
	for _, p := range t.game.Alive() {
		if p.ID != claimant {
			out = append(out, p.ID)
		}
	}
	return out
}

// challenge records a dispute of the open claim. Proof runs separately so the
// Challenged status survives a failed Vault call.
func (t *tx) challenge(challenger string) (*Action, error) {
	a, spec, err := t.inFlight()
	if err != nil {
		return nil, err
	}
	if _, err := t.alivePlayer(challenger); err != nil {
		return nil, err
	}
	var against ChallengeTarget
	switch a.Status {
	case StatusPending:
		if !spec.Challengeable() {
			return nil, withMetadata(CodeNotChallengeable, fmt.Sprintf("%s claims no role", a.Kind), map[string]string{"action": a.ID})
		}
		if challenger == a.Actor {
			return nil, newError(CodeNotEligible, "actor cannot challenge own action")
		}
		against = AgainstAction
	case StatusBlocked:
		if challenger == a.Block.Player {
			return nil, newError(CodeNotEligible, "blocker cannot challenge own block")
		}
		against = AgainstBlock
	default:
		return nil, withMetadata(CodeNotChallengeable, fmt.Sprintf("action %s is %s", a.ID, a.Status), map[string]string{"action": a.ID})
	}
	if err := a.advance(StatusChallenged); err != nil {
		return nil, err
	}
	a.Challenge = &Challenge{Player: challenger, Against: against}
	t.emit(Event{Type: EventActionChallenged, ActionID: a.ID, Kind: a.Kind, Player: challenger, Target: t.claimant(a)})
	return a, nil
}

func (t *tx) claimant(a *Action) string {
	if a.Challenge != nil && a.Challenge.Against == AgainstBlock {
		return a.Block.Player
	}
	return a.Actor
}

// block records a blocking claim against the pending action.
func (t *tx) block(blocker string, role Role) (*Action, error) {
	a, spec, err := t.inFlight()
	if err != nil {
		return nil, err
	}
	if a.Status != StatusPending {
		return nil, withMetadata(CodeNotBlockable, fmt.Sprintf("action %s is %s", a.ID, a.Status), map[string]string{"action": a.ID})
	}
	if !spec.CanBlock(role) {
		return nil, withMetadata(CodeNotBlockable, fmt.Sprintf("%s cannot block %s", role, a.Kind),
			map[string]string{"action": a.ID, "role": string(role)})
	}
	if _, err := t.alivePlayer(blocker); err != nil {
		return nil, err
	}
	if blocker == a.Actor {
		return nil, newError(CodeNotEligible, "actor cannot block own action")
	}
	if t.rules.TargetOnlyBlocks && spec.RequiresTarget && blocker != a.Target {
		return nil, newError(CodeNotEligible, "only the target may block")
	}
	if err := a.advance(StatusBlocked); err != nil {
		return nil, err
	}
	a.Block = &Block{Player: blocker, Role: role}
	a.Passes = nil
	t.deadline()
	t.emit(Event{Type: EventActionBlocked, ActionID: a.ID, Kind: a.Kind, Player: blocker, Role: role})
	return a, nil
}

// pass declines to respond. Once every responder passed the window closes.
func (t *tx) pass(player string) (*Action, error) {
	a, _, err := t.inFlight()
	if err != nil {
		return nil, err
	}
	if a.Status != StatusPending && a.Status != StatusBlocked {
		return nil, withMetadata(CodeNotEligible, fmt.Sprintf("action %s is %s", a.ID, a.Status), map[string]string{"action": a.ID})
	}
	if _, err := t.alivePlayer(player); err != nil {
		return nil, err
	}
	eligible := false
	responders := t.responders(a)
	for _, id := range responders {
		if id == player {
			eligible = true
		}
	}
	if !eligible {
		return nil, withMetadata(CodeNotEligible, fmt.Sprintf("player %s cannot respond to own claim", player), map[string]string{"player": player})
	}
	if a.passed(player) {
		return nil, withMetadata(CodeAlreadyResponded, fmt.Sprintf("player %s already passed", player), map[string]string{"player": player})
	}
	a.Passes = append(a.Passes, player)
	t.emit(Event{Type: EventPassed, ActionID: a.ID, Player: player})
	for _, id := range responders {
		if !a.passed(id) {
			return a, nil
		}
	}
	return a, t.closeWindow(a)
}

// closeWindow settles an action nobody (further) disputed.
func (t *tx) closeWindow(a *Action) error {
	switch a.Status {
	case StatusPending:
		return t.unopposed(a)
	case StatusBlocked:
		return t.finish(a, StatusResolvedFailure)
	case StatusChallenged:
		return t.resolveChallenge(a)
	default:
		return withMetadata(CodeInvalidTransition, fmt.Sprintf("action %s is already %s", a.ID, a.Status), map[string]string{"action": a.ID})
	}
}

func (t *tx) unopposed(a *Action) error {
	if err := t.apply(a); err != nil {
		return err
	}
	return t.finish(a, StatusResolvedSuccess)
}

// resolveChallenge asks the Vault whether the claimant holds the disputed role.
// A proven claimant shows the card, gets a fresh sealed role in its place and
// the challenger loses influence. A bluffing claimant loses influence instead.
func (t *tx) resolveChallenge(a *Action) error {
	if a.Status != StatusChallenged || a.Challenge == nil {
		return withMetadata(CodeInvalidTransition, fmt.Sprintf("action %s is not challenged", a.ID), map[string]string{"action": a.ID})
	}
	claimant := t.claimant(a)
	role := catalog[a.Kind].RequiresRole
	if a.Challenge.Against == AgainstBlock {
		role = a.Block.Role
	}

	slot, err := t.forceRevealSpecific(claimant, role)
	switch {
	case errors.Is(err, ErrRoleNotHeld):
		a.Challenge.Outcome = OutcomeRefuted
		t.emit(Event{Type: EventBluffExposed, ActionID: a.ID, Player: claimant, Role: role})
		t.owe(claimant, a.ID, "bluff exposed")
		if a.Challenge.Against == AgainstAction {
			return t.finish(a, StatusResolvedFailure)
		}
		return t.unopposed(a)
	case err != nil:
		return err
	}

	a.Challenge.Outcome = OutcomeProven
	t.emit(Event{Type: EventRoleProven, ActionID: a.ID, Player: claimant, Role: role})
	if err := t.reseal(claimant, slot); err != nil {
		return err
	}
	t.owe(a.Challenge.Player, a.ID, "failed challenge")
	if a.Challenge.Against == AgainstBlock {
		return t.finish(a, StatusResolvedFailure)
	}
	return t.unopposed(a)
}

// apply runs the catalog effect of a successful action.
func (t *tx) apply(a *Action) error {
	spec := catalog[a.Kind]
	if !spec.Upfront && spec.Cost > 0 {
		if err := t.spendCoins(a.Actor, spec.Cost); err != nil {
			return err
		}
		a.Paid = spec.Cost
	}
	if spec.Gain > 0 {
		if err := t.creditCoins(a.Actor, spec.Gain); err != nil {
			return err
		}
		t.emit(Event{Type: EventCoinsMoved, ActionID: a.ID, Player: a.Actor, Coins: spec.Gain})
	}

	switch a.Kind {
	case CoupAction, Assassinate:
		if alive, err := t.isAlive(a.Target); err != nil || !alive {
			return err
		}
		t.owe(a.Target, a.ID, string(a.Kind))
	case Steal:
		target, err := t.player(a.Target)
		if err != nil {
			return err
		}
		n := min(stealLimit, target.Coins)
		if err := t.spendCoins(a.Target, n); err != nil {
			return err
		}
		if err := t.creditCoins(a.Actor, n); err != nil {
			return err
		}
		t.emit(Event{Type: EventCoinsMoved, ActionID: a.ID, Player: a.Actor, Target: a.Target, Coins: n})
	case Exchange:
		actor, err := t.player(a.Actor)
		if err != nil {
			return err
		}
		swap := a.Swap
		if len(swap) == 0 {
			for i, s := range actor.Slots {
				if s.IsSealed() {
					swap = append(swap, i)
				}
			}
		}
		for _, slot := range swap {
			// A slot may have been lost to a failed challenge in the meantime.
			if !actor.Slots[slot].IsSealed() {
				continue
			}
			if err := t.reseal(a.Actor, slot); err != nil {
				return err
			}
		}
		t.emit(Event{Type: EventRolesExchanged, ActionID: a.ID, Player: a.Actor})
	}
	return nil
}

func (t *tx) owe(player, actionID, reason string) {
	t.game.Losses = append(t.game.Losses, Loss{Player: player, ActionID: actionID, Reason: reason})
}

// finish moves the action to its terminal status and lets the game react.
func (t *tx) finish(a *Action, status Status) error {
	if err := a.advance(status); err != nil {
		return err
	}
	t.emit(Event{Type: EventActionResolved, ActionID: a.ID, Kind: a.Kind, Player: a.Actor, Target: a.Target, Status: status})
	return t.settle()
}
