package main

import (
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/pterm/pterm"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/luca-patrignani/mental-coup/domain/coup"
	"github.com/luca-patrignani/mental-coup/domain/vault"
)

var titleCaser = cases.Title(language.English)

// label turns an identifier such as foreign_aid into "Foreign Aid".
func label(s string) string {
	return titleCaser.String(strings.ReplaceAll(s, "_", " "))
}

func ptermLevel(l slog.Level) pterm.LogLevel {
	switch {
	case l < slog.LevelInfo:
		return pterm.LogLevelDebug
	case l < slog.LevelWarn:
		return pterm.LogLevelInfo
	case l < slog.LevelError:
		return pterm.LogLevelWarn
	default:
		return pterm.LogLevelError
	}
}

func describeAction(a coup.Action) string {
	s := label(string(a.Kind))
	if a.Target != "" {
		s = fmt.Sprintf("%s %s on %s", a.Actor, s, a.Target)
	} else {
		s = fmt.Sprintf("%s %s", a.Actor, s)
	}
	if a.Block != nil {
		s += fmt.Sprintf(", blocked by %s as %s", a.Block.Player, a.Block.Role)
	}
	if c := a.Challenge; c != nil {
		s += fmt.Sprintf(", %s challenged the %s", c.Player, c.Against)
		if c.Outcome != "" {
			s += " (" + string(c.Outcome) + ")"
		}
	}
	return s + ": " + label(string(a.Status))
}

func actionPanel(a coup.Action) pterm.Panel {
	pbox := pterm.DefaultBox.WithHorizontalPadding(4).WithTopPadding(1).WithBottomPadding(1)
	return pterm.Panel{Data: pbox.WithTitle(pterm.LightYellow("|LAST ACTION|")).WithTitleTopCenter().Sprint(describeAction(a))}
}

func winnerPanel(g *coup.Game) pterm.Panel {
	pbox := pterm.DefaultBox.WithHorizontalPadding(4).WithTopPadding(1).WithBottomPadding(1)
	info := pterm.Sprintfln("%s wins after %d actions", pterm.LightCyan(g.Winner), len(g.Actions))
	return pterm.Panel{Data: pbox.WithTitle(pterm.LightGreen("|GAME OVER|")).WithTitleTopCenter().Sprint(info)}
}

func printState(g *coup.Game, additionalPanel ...pterm.Panel) {
	var panels []pterm.Panel
	cur := g.Current()
	for _, p := range g.Players {
		panels = append(panels, pterm.Panel{Data: printPlayerInfo(p, cur != nil && cur.ID == p.ID, g.Owed(p.ID))})
	}
	dashboard := additionalPanel
	if n := len(g.Actions); n > 0 {
		dashboard = append([]pterm.Panel{actionPanel(*g.Actions[n-1])}, dashboard...)
	}
	rows := [][]pterm.Panel{panels}
	if len(dashboard) > 0 {
		rows = append(rows, dashboard)
	}
	pterm.DefaultPanel.WithPanels(rows).Render()
}

func printPlayerInfo(p *coup.Player, current bool, owed int) string {
	hpadding := 4
	if current {
		hpadding = 10
	}
	pbox := pterm.DefaultBox.WithHorizontalPadding(hpadding).WithTopPadding(1).WithBottomPadding(1)
	var status string
	switch {
	case !p.Alive():
		status = pterm.LightRed("Eliminated")
	case owed > 0:
		status = pterm.LightYellow(fmt.Sprintf("Owes %d influence", owed))
	default:
		status = pterm.LightGreen("Alive")
	}
	slots := make([]string, len(p.Slots))
	for i, s := range p.Slots {
		if s.IsSealed() {
			slots[i] = "??"
		} else {
			slots[i] = pterm.LightRed(string(s.Revealed))
		}
	}
	title := p.ID
	if current {
		title = pterm.LightCyan(p.ID)
	}
	return pbox.WithTitle(title).WithTitleTopLeft().Sprintf("%s\nCoins: %d\n%s\n", status, p.Coins, strings.Join(slots, " - "))
}

func printHand(player string, hand [2]coup.HandSlot) {
	var parts []string
	for i, s := range hand {
		state := "sealed"
		if !s.Sealed {
			state = "revealed"
		}
		parts = append(parts, fmt.Sprintf("%d: %s (%s)", i+1, s.Role, state))
	}
	pterm.DefaultBox.WithTitle(player + "'s roles").Println(strings.Join(parts, "\n"))
}

// hint suggests what to do after a rejected move.
func hint(err error) string {
	switch {
	case errors.Is(err, coup.ErrMissingTarget), errors.Is(err, coup.ErrInvalidTarget):
		return "Pick a living opponent as target."
	case errors.Is(err, coup.ErrInsufficientFunds):
		return "Not enough coins, choose a cheaper action."
	case errors.Is(err, coup.ErrMustCoup):
		return "With this many coins a coup is the only move."
	case errors.Is(err, coup.ErrInvalidSlot), errors.Is(err, coup.ErrNoSealedRoles):
		return "Choose one of your sealed roles."
	case errors.Is(err, coup.ErrAlreadyResponded), errors.Is(err, coup.ErrNotEligible):
		return "You cannot answer this claim."
	case errors.Is(err, coup.ErrUnknownPlayer), errors.Is(err, coup.ErrPlayerNotAlive):
		return "That player is not in the game."
	}
	return ""
}

func printError(err error) {
	pterm.Error.Println(err.Error())
	if h := hint(err); h != "" {
		pterm.Info.Println(h)
	}
}

// fingerprint shortens the player's public sealing key for display.
func fingerprint(roles *vault.Store, player string) string {
	pub, ok := roles.PublicKey(player)
	if !ok {
		return "none"
	}
	b, err := pub.MarshalBinary()
	if err != nil {
		return "invalid"
	}
	return hex.EncodeToString(b[:8])
}
