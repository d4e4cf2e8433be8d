/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePhase(t *testing.T) {
	tests := []struct {
		raw  string
		want Phase
	}{
		{raw: "waiting", want: PhaseWaiting},
		{raw: "discussion", want: PhaseDiscussion},
		{raw: "playing", want: PhaseDiscussion},
		{raw: "voting", want: PhaseVoting},
		{raw: "reveal", want: PhaseReveal},
		{raw: "result", want: PhaseResult},
		{raw: "", want: PhaseUnknown},
		{raw: "Voting", want: PhaseUnknown},
		{raw: "intermission", want: PhaseUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			assert.Equal(t, tt.want, parsePhase(tt.raw))
		})
	}
}

func TestPollInterval(t *testing.T) {
	tests := []struct {
		phase Phase
		want  time.Duration
	}{
		{phase: PhaseWaiting, want: 5 * time.Second},
		{phase: PhaseDiscussion, want: 5 * time.Second},
		{phase: PhaseVoting, want: 2 * time.Second},
		{phase: PhaseReveal, want: 3 * time.Second},
		{phase: PhaseResult, want: 5 * time.Second},
		{phase: PhaseUnknown, want: 4 * time.Second},
		{phase: Phase(42), want: 4 * time.Second},
	}
	for _, tt := range tests {
		t.Run(tt.phase.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, pollInterval(tt.phase))
		})
	}
}

func TestPhaseMarshalJSON(t *testing.T) {
	b, err := json.Marshal(struct {
		Phase Phase `json:"phase"`
	}{Phase: parsePhase("playing")})
	require.NoError(t, err)

	assert.JSONEq(t, `{"phase":"discussion"}`, string(b))
}
