/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"encoding/json"
	"time"
)

// Phase is the server-declared stage of a round.
type Phase int

const (
	PhaseUnknown Phase = iota
	PhaseWaiting
	PhaseDiscussion
	PhaseVoting
	PhaseReveal
	PhaseResult
)

func parsePhase(s string) Phase {
	switch s {
	case "waiting":
		return PhaseWaiting
	case "discussion", "playing":
		return PhaseDiscussion
	case "voting":
		return PhaseVoting
	case "reveal":
		return PhaseReveal
	case "result":
		return PhaseResult
	default:
		return PhaseUnknown
	}
}

func (p Phase) String() string {
	switch p {
	case PhaseWaiting:
		return "waiting"
	case PhaseDiscussion:
		return "discussion"
	case PhaseVoting:
		return "voting"
	case PhaseReveal:
		return "reveal"
	case PhaseResult:
		return "result"
	default:
		return "unknown"
	}
}

func (p Phase) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.String())
}

const fallbackPollInterval = 4 * time.Second

// pollInterval maps a phase to how often the server is re-read while in it.
func pollInterval(p Phase) time.Duration {
	switch p {
	case PhaseWaiting, PhaseDiscussion, PhaseResult:
		return 5 * time.Second
	case PhaseVoting:
		return 2 * time.Second
	case PhaseReveal:
		return 3 * time.Second
	default:
		return fallbackPollInterval
	}
}
