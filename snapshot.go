/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"
)

// Games cannot be started with fewer players than this.
const minPlayers = 3

type Player struct {
	ID    string `json:"player_id"`
	Name  string `json:"player_name"`
	Alive bool   `json:"is_alive"`
}

// Snapshot is one point-in-time read of a session, as seen by one player.
type Snapshot struct {
	Phase       Phase    `json:"phase"`
	RawPhase    string   `json:"raw_phase"`
	Players     []Player `json:"players"`
	Topic       string   `json:"topic,omitempty"`
	Voters      []string `json:"voters"`
	TopicsReady bool     `json:"topics_ready"`
	Category    string   `json:"category,omitempty"`
}

func (s *Snapshot) hasVoted(playerID string) bool {
	return slices.Contains(s.Voters, playerID)
}

// StartEligibility describes the creator's start button in the lobby.
type StartEligibility struct {
	Visible bool   `json:"visible"`
	Enabled bool   `json:"enabled"`
	Label   string `json:"label"`
}

func startEligibility(snap *Snapshot, creator bool) StartEligibility {
	if !creator {
		return StartEligibility{}
	}

	switch {
	case len(snap.Players) < minPlayers:
		return StartEligibility{
			Visible: true,
			Label:   fmt.Sprintf("Need %d more", minPlayers-len(snap.Players)),
		}
	case !snap.TopicsReady:
		return StartEligibility{
			Visible: true,
			Label:   "Generating topics...",
		}
	default:
		return StartEligibility{
			Visible: true,
			Enabled: true,
			Label:   "Start Game",
		}
	}
}

type BallotEntry struct {
	PlayerID string `json:"player_id"`
	Name     string `json:"player_name"`
	Voted    bool   `json:"voted"`
	Disabled bool   `json:"disabled"`
}

type Ballot struct {
	Candidates []BallotEntry `json:"candidates"`
	HasVoted   bool          `json:"has_voted"`
}

// buildBallot lists every living player as a candidate. Candidates who have
// already cast their own vote are marked, and the whole ballot locks once
// the local player has voted.
func buildBallot(snap *Snapshot, localPlayerID string) Ballot {
	hasVoted := snap.hasVoted(localPlayerID)

	ballot := Ballot{
		Candidates: make([]BallotEntry, 0, len(snap.Players)),
		HasVoted:   hasVoted,
	}

	for _, p := range snap.Players {
		if !p.Alive {
			continue
		}

		ballot.Candidates = append(ballot.Candidates, BallotEntry{
			PlayerID: p.ID,
			Name:     p.Name,
			Voted:    snap.hasVoted(p.ID),
			Disabled: hasVoted,
		})
	}

	return ballot
}

// flexString accepts either a JSON string or a list of strings, which is
// joined for display.
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*f = flexString(s)

		return nil
	}

	var list []string
	if err := json.Unmarshal(b, &list); err != nil {
		return fmt.Errorf("expected string or list of strings: %w", err)
	}
	*f = flexString(strings.Join(list, ", "))

	return nil
}

// GameResult is the result payload as the server sends it. Older servers
// report a single eliminated player, newer ones a list plus a tie flag.
type GameResult struct {
	Message          string     `json:"message"`
	Winners          flexString `json:"winners"`
	ImposterID       string     `json:"imposter_id"`
	VotedOutName     *string    `json:"voted_out_name"`
	VotedOutNames    []string   `json:"voted_out_names"`
	VotedOutID       *string    `json:"voted_out_id"`
	VotedOutIDs      []string   `json:"voted_out_ids"`
	IsTie            bool       `json:"is_tie"`
	IsImposterCaught bool       `json:"is_imposter_caught"`
}

func (r *GameResult) eliminatedNames() []string {
	return listOrSingle(r.VotedOutNames, r.VotedOutName)
}

func (r *GameResult) eliminatedIDs() []string {
	return listOrSingle(r.VotedOutIDs, r.VotedOutID)
}

func listOrSingle(list []string, single *string) []string {
	if list != nil {
		return list
	}
	if single != nil {
		return []string{*single}
	}

	return []string{}
}

type ResultRow struct {
	PlayerID   string `json:"player_id"`
	Name       string `json:"player_name"`
	Imposter   bool   `json:"imposter"`
	Alive      bool   `json:"alive"`
	Eliminated bool   `json:"eliminated"`
	TieMark    bool   `json:"tie_mark"`
}

// ResultSummary is a GameResult normalized for display.
type ResultSummary struct {
	Message         string      `json:"message"`
	Winners         string      `json:"winners"`
	ImposterID      string      `json:"imposter_id"`
	EliminatedNames []string    `json:"eliminated_names"`
	EliminatedIDs   []string    `json:"eliminated_ids"`
	Tie             bool        `json:"tie"`
	ImposterCaught  bool        `json:"imposter_caught"`
	Rows            []ResultRow `json:"rows"`
}

func summarizeResult(r *GameResult, players []Player) *ResultSummary {
	summary := &ResultSummary{
		Message:         r.Message,
		Winners:         string(r.Winners),
		ImposterID:      r.ImposterID,
		EliminatedNames: r.eliminatedNames(),
		EliminatedIDs:   r.eliminatedIDs(),
		Tie:             r.IsTie,
		ImposterCaught:  r.IsImposterCaught,
		Rows:            make([]ResultRow, 0, len(players)),
	}

	for _, p := range players {
		eliminated := slices.Contains(summary.EliminatedIDs, p.ID)

		summary.Rows = append(summary.Rows, ResultRow{
			PlayerID:   p.ID,
			Name:       p.Name,
			Imposter:   p.ID == r.ImposterID,
			Alive:      p.Alive,
			Eliminated: eliminated,
			TieMark:    eliminated && r.IsTie,
		})
	}

	return summary
}

type GameListing struct {
	SessionID   string `json:"session_id"`
	Category    string `json:"game_category"`
	PlayerCount int    `json:"player_count"`
	MaxPlayers  int    `json:"max_players"`
}
