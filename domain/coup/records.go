package coup

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sort"
)

// Ledger keys owned by the engine.
const (
	keyPlayers = "game_players"
	keyActions = "game_actions"
	keyMeta    = "game_meta"
)

func playerKey(id string) string { return "player_" + id }
func actionKey(id string) string { return "action_" + id }

// metaRecord carries the game-level fields that have no key of their own.
type metaRecord struct {
	ID        string `json:"id"`
	Phase     Phase  `json:"phase"`
	TurnIndex int    `json:"turn_index"`
	Winner    string `json:"winner,omitempty"`
	Losses    []Loss `json:"losses,omitempty"`
}

type write struct {
	key   string
	value []byte
}

// diff lists the ledger writes that turn before into after. Records are
// compared by their encoding so unchanged players and actions are skipped.
// With full set every record is written, which overwrites whatever a failed
// commit left behind. game_meta is always written last and acts as the
// commit marker.
func diff(before, after *Game, full bool) ([]write, error) {
	var writes []write
	if full {
		before = &Game{ID: after.ID}
	}

	old := map[string][]byte{}
	for _, p := range before.Players {
		b, err := json.Marshal(p)
		if err != nil {
			return nil, err
		}
		old[playerKey(p.ID)] = b
	}
	for _, a := range before.Actions {
		b, err := json.Marshal(a)
		if err != nil {
			return nil, err
		}
		old[actionKey(a.ID)] = b
	}

	for _, p := range after.Players {
		b, err := json.Marshal(p)
		if err != nil {
			return nil, fmt.Errorf("encode player %s: %w", p.ID, err)
		}
		if !bytes.Equal(old[playerKey(p.ID)], b) {
			writes = append(writes, write{playerKey(p.ID), b})
		}
	}
	for _, a := range after.Actions {
		b, err := json.Marshal(a)
		if err != nil {
			return nil, fmt.Errorf("encode action %s: %w", a.ID, err)
		}
		if !bytes.Equal(old[actionKey(a.ID)], b) {
			writes = append(writes, write{actionKey(a.ID), b})
		}
	}
	sort.SliceStable(writes, func(i, j int) bool { return writes[i].key < writes[j].key })

	if full || len(after.Players) != len(before.Players) {
		b, err := json.Marshal(playerIDs(after))
		if err != nil {
			return nil, err
		}
		writes = append(writes, write{keyPlayers, b})
	}
	if full || len(after.Actions) != len(before.Actions) {
		b, err := json.Marshal(actionIDs(after))
		if err != nil {
			return nil, err
		}
		writes = append(writes, write{keyActions, b})
	}

	b, err := json.Marshal(metaRecord{
		ID:        after.ID,
		Phase:     after.Phase,
		TurnIndex: after.TurnIndex,
		Winner:    after.Winner,
		Losses:    after.Losses,
	})
	if err != nil {
		return nil, err
	}
	return append(writes, write{keyMeta, b}), nil
}

func playerIDs(g *Game) []string {
	ids := make([]string, len(g.Players))
	for i, p := range g.Players {
		ids[i] = p.ID
	}
	return ids
}

func actionIDs(g *Game) []string {
	ids := make([]string, len(g.Actions))
	for i, a := range g.Actions {
		ids[i] = a.ID
	}
	return ids
}

// load rebuilds a game from the ledger. A missing game_meta means a fresh lobby.
func load(ctx context.Context, l Ledger, id string) (*Game, error) {
	g := &Game{ID: id, Phase: PhaseLobby}

	var meta metaRecord
	found, err := getJSON(ctx, l, keyMeta, &meta)
	if err != nil || !found {
		return g, err
	}
	if meta.ID != id {
		return nil, newError(CodeCorruptLedgerRecord, fmt.Sprintf("ledger holds game %q, not %q", meta.ID, id))
	}
	g.Phase = meta.Phase
	g.TurnIndex = meta.TurnIndex
	g.Winner = meta.Winner
	g.Losses = meta.Losses

	var players, actions []string
	if _, err := getJSON(ctx, l, keyPlayers, &players); err != nil {
		return nil, err
	}
	if _, err := getJSON(ctx, l, keyActions, &actions); err != nil {
		return nil, err
	}
	for _, pid := range players {
		var p Player
		if err := mustGetJSON(ctx, l, playerKey(pid), &p); err != nil {
			return nil, err
		}
		g.Players = append(g.Players, &p)
	}
	for _, aid := range actions {
		var a Action
		if err := mustGetJSON(ctx, l, actionKey(aid), &a); err != nil {
			return nil, err
		}
		g.Actions = append(g.Actions, &a)
	}
	return g, nil
}

func getJSON(ctx context.Context, l Ledger, key string, v any) (bool, error) {
	b, ok, err := l.Get(ctx, key)
	if err != nil {
		return false, wrapError(CodeLedgerUnavailable, "read "+key, err)
	}
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(b, v); err != nil {
		return false, wrapError(CodeCorruptLedgerRecord, "decode "+key, err)
	}
	return true, nil
}

func mustGetJSON(ctx context.Context, l Ledger, key string, v any) error {
	found, err := getJSON(ctx, l, key, v)
	if err != nil {
		return err
	}
	if !found {
		return newError(CodeCorruptLedgerRecord, "missing "+key)
	}
	return nil
}
