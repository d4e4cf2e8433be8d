/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import "time"

// Screen is one of the top-level pages of the client.
type Screen string

const (
	ScreenHome   Screen = "home"
	ScreenLobby  Screen = "lobby"
	ScreenInPlay Screen = "in_play"
	ScreenResult Screen = "result"
)

// SessionInfo is what the view needs to know about the local player.
type SessionInfo struct {
	SessionID string `json:"session_id"`
	PlayerID  string `json:"player_id"`
	Creator   bool   `json:"creator"`
	Category  string `json:"category,omitempty"`
}

// View renders whatever the synchronizer decides. All calls happen on the
// synchronizer's loop, so implementations must not block.
type View interface {
	OnSession(info *SessionInfo)
	OnScreen(screen Screen)
	OnPhaseEnter(phase Phase, snap *Snapshot)
	OnLobbyUpdate(players []Player, start StartEligibility)
	OnBallot(ballot Ballot)
	OnResult(result *ResultSummary, players []Player)
	OnClock(elapsed time.Duration)
	OnGames(games []GameListing)
	OnNotice(message string)
	OnTransientError(message string)
}
