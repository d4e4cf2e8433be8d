/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// gameServer answers every request with body and records what it was sent.
type gameServer struct {
	status int
	body   string

	method  string
	path    string
	query   string
	payload map[string]any
	header  http.Header
}

func (g *gameServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	g.method = r.Method
	g.path = r.URL.Path
	g.query = r.URL.RawQuery
	g.header = r.Header.Clone()

	g.payload = nil
	if b, _ := io.ReadAll(r.Body); len(b) > 0 {
		_ = json.Unmarshal(b, &g.payload)
	}

	status := g.status
	if status == 0 {
		status = http.StatusOK
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	io.WriteString(w, g.body)
}

func newTestClient(t *testing.T, g *gameServer) *GameClient {
	srv := httptest.NewServer(g)
	t.Cleanup(srv.Close)

	return NewGameClient(srv.URL+"/api/", 5*time.Second)
}

func TestGameClient_Snapshot(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		want    *Snapshot
		wantErr bool
	}{
		{
			name: "legacy playing phase with defaults",
			body: `{"success":true,"current_phase":"playing","players":[{"player_id":"A","player_name":"Alice","is_alive":true}],"your_topic":"penguin"}`,
			want: &Snapshot{
				Phase:       PhaseDiscussion,
				RawPhase:    "playing",
				Players:     []Player{{ID: "A", Name: "Alice", Alive: true}},
				Topic:       "penguin",
				Voters:      []string{},
				TopicsReady: true,
			},
		},
		{
			name: "voting with voters",
			body: `{"success":true,"current_phase":"voting","players":[],"voters":["A"],"topics_ready":false,"game_category":"animals"}`,
			want: &Snapshot{
				Phase:       PhaseVoting,
				RawPhase:    "voting",
				Players:     []Player{},
				Voters:      []string{"A"},
				TopicsReady: false,
				Category:    "animals",
			},
		},
		{
			name: "unrecognized phase is kept raw",
			body: `{"success":true,"current_phase":"intermission","players":[]}`,
			want: &Snapshot{
				Phase:       PhaseUnknown,
				RawPhase:    "intermission",
				Players:     []Player{},
				Voters:      []string{},
				TopicsReady: true,
			},
		},
		{
			name:    "missing phase",
			body:    `{"success":true,"players":[]}`,
			wantErr: true,
		},
		{
			name:    "missing players",
			body:    `{"success":true,"current_phase":"waiting"}`,
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := &gameServer{body: tt.body}
			c := newTestClient(t, g)

			got, err := c.Snapshot(context.Background(), "S 1", "P1")

			assert.Equal(t, http.MethodGet, g.method)
			assert.Equal(t, "/api/game/S 1", g.path)
			assert.Equal(t, "player_id=P1", g.query)

			if tt.wantErr {
				var malformed *MalformedResponseError
				assert.ErrorAs(t, err, &malformed)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestGameClient_errors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		check   func(t *testing.T, err error)
		message string
	}{
		{
			name:   "application error",
			status: http.StatusBadRequest,
			body:   `{"success":false,"message":"Game is full"}`,
			check: func(t *testing.T, err error) {
				var appErr *ApplicationError
				require.ErrorAs(t, err, &appErr)
				assert.Equal(t, http.StatusBadRequest, appErr.Status)
			},
			message: "Game is full",
		},
		{
			name:   "application error without message",
			status: http.StatusOK,
			body:   `{"success":false}`,
			check: func(t *testing.T, err error) {
				var appErr *ApplicationError
				require.ErrorAs(t, err, &appErr)
			},
			message: "The game server rejected the request.",
		},
		{
			name:   "html error page",
			status: http.StatusBadGateway,
			body:   `<html><body>Bad Gateway</body></html>`,
			check: func(t *testing.T, err error) {
				var malformed *MalformedResponseError
				require.ErrorAs(t, err, &malformed)
			},
			message: "The game server sent an unexpected response.",
		},
		{
			name:   "missing success flag",
			status: http.StatusOK,
			body:   `{"message":"hello"}`,
			check: func(t *testing.T, err error) {
				var malformed *MalformedResponseError
				require.ErrorAs(t, err, &malformed)
			},
			message: "The game server sent an unexpected response.",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, &gameServer{status: tt.status, body: tt.body})

			err := c.StartGame(context.Background(), "S1", "P1")
			require.Error(t, err)

			tt.check(t, err)
			assert.Equal(t, tt.message, userMessage(err))
		})
	}
}

func TestNewAPIClient_headers(t *testing.T) {
	g := &gameServer{body: `{"success":true}`}
	srv := httptest.NewServer(g)
	t.Cleanup(srv.Close)

	c := newAPIClient(&Config{
		api:            srv.URL + "/api",
		requestTimeout: 5 * time.Second,
		apiHeaders:     map[string]string{"Authorization": "Bearer abc", "X-Table": "7"},
	})

	require.NoError(t, c.NewRound(context.Background(), "S1"))

	assert.Equal(t, "Bearer abc", g.header.Get("Authorization"))
	assert.Equal(t, "7", g.header.Get("X-Table"))
	assert.Equal(t, "application/json", g.header.Get("Accept"))
}

func TestGameClient_networkError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := NewGameClient(url, time.Second)

	_, err := c.AvailableGames(context.Background())

	var netErr *NetworkError
	require.ErrorAs(t, err, &netErr)
	assert.Equal(t, "list games", netErr.Op)
	assert.Contains(t, userMessage(err), "Could not reach the game server")
}

func TestGameClient_requests(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		call    func(c *GameClient) error
		method  string
		path    string
		payload map[string]any
	}{
		{
			name: "create game",
			body: `{"success":true,"session_id":"S1","player_id":"P1","game_category":"animals"}`,
			call: func(c *GameClient) error {
				resp, err := c.CreateGame(context.Background(), CreateGameRequest{PlayerName: "Alice", Category: "animals", MaxPlayers: 8})
				if err == nil && resp.SessionID != "S1" {
					return errors.New("unexpected session id " + resp.SessionID)
				}
				return err
			},
			method:  http.MethodPost,
			path:    "/api/game/create",
			payload: map[string]any{"player_name": "Alice", "game_category": "animals", "max_players": float64(8)},
		},
		{
			name: "join game",
			body: `{"success":true,"player_id":"P2"}`,
			call: func(c *GameClient) error {
				_, err := c.JoinGame(context.Background(), "S1", "Bob")
				return err
			},
			method:  http.MethodPost,
			path:    "/api/game/S1/join",
			payload: map[string]any{"player_name": "Bob"},
		},
		{
			name: "start game",
			body: `{"success":true}`,
			call: func(c *GameClient) error {
				return c.StartGame(context.Background(), "S1", "P1")
			},
			method:  http.MethodPost,
			path:    "/api/game/S1/start",
			payload: map[string]any{"player_id": "P1"},
		},
		{
			name: "vote",
			body: `{"success":true}`,
			call: func(c *GameClient) error {
				return c.Vote(context.Background(), "S1", "P1", "P2")
			},
			method:  http.MethodPost,
			path:    "/api/game/S1/vote",
			payload: map[string]any{"player_id": "P1", "voted_for_id": "P2"},
		},
		{
			name: "transition to voting",
			body: `{"success":true}`,
			call: func(c *GameClient) error {
				return c.TransitionToVoting(context.Background(), "S1")
			},
			method: http.MethodPost,
			path:   "/api/game/S1/transition-voting",
		},
		{
			name: "new round",
			body: `{"success":true}`,
			call: func(c *GameClient) error {
				return c.NewRound(context.Background(), "S1")
			},
			method: http.MethodPost,
			path:   "/api/game/S1/new-round",
		},
		{
			name: "list games",
			body: `{"success":true}`,
			call: func(c *GameClient) error {
				games, err := c.AvailableGames(context.Background())
				if err == nil && games == nil {
					return errors.New("expected an empty list")
				}
				return err
			},
			method: http.MethodGet,
			path:   "/api/games/available",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := &gameServer{body: tt.body}
			c := newTestClient(t, g)

			require.NoError(t, tt.call(c))

			assert.Equal(t, tt.method, g.method)
			assert.Equal(t, tt.path, g.path)
			assert.Equal(t, tt.payload, g.payload)
			assert.NotEmpty(t, g.header.Get("X-Request-ID"))
			assert.Equal(t, "imposter/"+releaseVersion, g.header.Get("User-Agent"))
		})
	}
}

func TestGameClient_Result(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		names   []string
		wantErr bool
	}{
		{
			name:  "single",
			body:  `{"success":true,"game_result":{"voted_out_name":"X","voted_out_id":"A","imposter_id":"A","winners":"Players"},"players":[{"player_id":"A","player_name":"X","is_alive":false}]}`,
			names: []string{"X"},
		},
		{
			name:  "tie",
			body:  `{"success":true,"game_result":{"voted_out_names":["X","Y"],"voted_out_ids":["A","B"],"is_tie":true,"winners":["Imposter"]}}`,
			names: []string{"X", "Y"},
		},
		{
			name:    "missing result",
			body:    `{"success":true,"players":[]}`,
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := &gameServer{body: tt.body}
			c := newTestClient(t, g)

			resp, err := c.Result(context.Background(), "S1")
			assert.Equal(t, "/api/game/S1/result", g.path)

			if tt.wantErr {
				var malformed *MalformedResponseError
				assert.ErrorAs(t, err, &malformed)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, resp.Players)
			assert.Equal(t, tt.names, resp.Result.eliminatedNames())
		})
	}
}
