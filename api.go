/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
)

// GameAPI is everything the synchronizer needs from the remote game server.
type GameAPI interface {
	CreateGame(ctx context.Context, req CreateGameRequest) (*CreateGameResponse, error)
	JoinGame(ctx context.Context, sessionID, playerName string) (*JoinGameResponse, error)
	Snapshot(ctx context.Context, sessionID, playerID string) (*Snapshot, error)
	StartGame(ctx context.Context, sessionID, playerID string) error
	Vote(ctx context.Context, sessionID, playerID, targetID string) error
	TransitionToVoting(ctx context.Context, sessionID string) error
	Result(ctx context.Context, sessionID string) (*ResultResponse, error)
	AvailableGames(ctx context.Context) ([]GameListing, error)
	NewRound(ctx context.Context, sessionID string) error
}

type CreateGameRequest struct {
	PlayerName string `json:"player_name"`
	Category   string `json:"game_category"`
	MaxPlayers int    `json:"max_players"`
}

// problem returns the first thing wrong with the request, worded for the
// player, or an empty string.
func (r CreateGameRequest) problem() string {
	switch {
	case strings.TrimSpace(r.PlayerName) == "":
		return "Please enter your name"
	case r.Category == "":
		return "Please select a category"
	case r.MaxPlayers < minPlayers:
		return fmt.Sprintf("Max players should be at least %d", minPlayers)
	}

	return ""
}

type CreateGameResponse struct {
	SessionID string `json:"session_id"`
	PlayerID  string `json:"player_id"`
	Category  string `json:"game_category"`
}

type JoinGameResponse struct {
	PlayerID string `json:"player_id"`
}

type ResultResponse struct {
	Result  *GameResult `json:"game_result"`
	Players []Player    `json:"players"`
}

// envelope is shared by every response of the game server.
type envelope struct {
	Success *bool  `json:"success"`
	Message string `json:"message"`
}

type snapshotResponse struct {
	CurrentPhase *string  `json:"current_phase"`
	Players      []Player `json:"players"`
	TopicsReady  *bool    `json:"topics_ready"`
	YourTopic    string   `json:"your_topic"`
	Voters       []string `json:"voters"`
	GameCategory string   `json:"game_category"`
}

// GameClient talks JSON over HTTP to the game server.
type GameClient struct {
	baseURL string
	client  *http.Client
	headers map[string]string
}

func NewGameClient(baseURL string, timeout time.Duration) *GameClient {
	return &GameClient{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client: &http.Client{
			Timeout: timeout,
		},
		headers: map[string]string{
			"Accept":     "application/json",
			"User-Agent": "imposter/" + releaseVersion,
		},
	}
}

func (c *GameClient) SetHeader(key, value string) {
	c.headers[key] = value
}

// do performs one request and decodes the envelope. When out is non-nil,
// the full body is also decoded into it.
func (c *GameClient) do(ctx context.Context, op, method, endpoint string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("%s: failed to encode request: %w", op, err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, body)
	if err != nil {
		return fmt.Errorf("%s: failed to create request: %w", op, err)
	}

	for key, value := range c.headers {
		req.Header.Set(key, value)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("X-Request-ID", uuid.NewString())

	resp, err := c.client.Do(req)
	if err != nil {
		return &NetworkError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return &NetworkError{Op: op, Err: fmt.Errorf("failed to read response body: %w", err)}
	}

	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return &MalformedResponseError{
			Op:     op,
			Reason: fmt.Sprintf("status %d, undecodable body", resp.StatusCode),
			Err:    err,
		}
	}

	if env.Success == nil {
		return &MalformedResponseError{Op: op, Reason: "missing success flag"}
	}

	if !*env.Success {
		return &ApplicationError{Op: op, Status: resp.StatusCode, Message: env.Message}
	}

	if out == nil {
		return nil
	}

	if err := json.Unmarshal(data, out); err != nil {
		return &MalformedResponseError{Op: op, Reason: "unexpected payload", Err: err}
	}

	return nil
}

func gamePath(sessionID string, rest ...string) string {
	p := "/game/" + url.PathEscape(sessionID)
	for _, r := range rest {
		p += "/" + r
	}

	return p
}

func (c *GameClient) CreateGame(ctx context.Context, req CreateGameRequest) (*CreateGameResponse, error) {
	var resp CreateGameResponse
	if err := c.do(ctx, "create game", http.MethodPost, "/game/create", req, &resp); err != nil {
		return nil, err
	}

	if resp.SessionID == "" || resp.PlayerID == "" {
		return nil, &MalformedResponseError{Op: "create game", Reason: "missing session_id or player_id"}
	}

	return &resp, nil
}

func (c *GameClient) JoinGame(ctx context.Context, sessionID, playerName string) (*JoinGameResponse, error) {
	in := map[string]string{"player_name": playerName}

	var resp JoinGameResponse
	if err := c.do(ctx, "join game", http.MethodPost, gamePath(sessionID, "join"), in, &resp); err != nil {
		return nil, err
	}

	if resp.PlayerID == "" {
		return nil, &MalformedResponseError{Op: "join game", Reason: "missing player_id"}
	}

	return &resp, nil
}

func (c *GameClient) Snapshot(ctx context.Context, sessionID, playerID string) (*Snapshot, error) {
	endpoint := gamePath(sessionID) + "?" + url.Values{"player_id": {playerID}}.Encode()

	var resp snapshotResponse
	if err := c.do(ctx, "fetch snapshot", http.MethodGet, endpoint, nil, &resp); err != nil {
		return nil, err
	}

	if resp.CurrentPhase == nil {
		return nil, &MalformedResponseError{Op: "fetch snapshot", Reason: "missing current_phase"}
	}
	if resp.Players == nil {
		return nil, &MalformedResponseError{Op: "fetch snapshot", Reason: "missing players"}
	}

	snap := &Snapshot{
		Phase:       parsePhase(*resp.CurrentPhase),
		RawPhase:    *resp.CurrentPhase,
		Players:     resp.Players,
		Topic:       resp.YourTopic,
		Voters:      resp.Voters,
		TopicsReady: resp.TopicsReady == nil || *resp.TopicsReady,
		Category:    resp.GameCategory,
	}
	if snap.Voters == nil {
		snap.Voters = []string{}
	}

	return snap, nil
}

func (c *GameClient) StartGame(ctx context.Context, sessionID, playerID string) error {
	in := map[string]string{"player_id": playerID}

	return c.do(ctx, "start game", http.MethodPost, gamePath(sessionID, "start"), in, nil)
}

func (c *GameClient) Vote(ctx context.Context, sessionID, playerID, targetID string) error {
	in := map[string]string{
		"voted_for_id": targetID,
		"player_id":    playerID,
	}

	return c.do(ctx, "submit vote", http.MethodPost, gamePath(sessionID, "vote"), in, nil)
}

func (c *GameClient) TransitionToVoting(ctx context.Context, sessionID string) error {
	return c.do(ctx, "transition to voting", http.MethodPost, gamePath(sessionID, "transition-voting"), nil, nil)
}

func (c *GameClient) Result(ctx context.Context, sessionID string) (*ResultResponse, error) {
	var resp ResultResponse
	if err := c.do(ctx, "fetch result", http.MethodGet, gamePath(sessionID, "result"), nil, &resp); err != nil {
		return nil, err
	}

	if resp.Result == nil {
		return nil, &MalformedResponseError{Op: "fetch result", Reason: "missing game_result"}
	}
	if resp.Players == nil {
		resp.Players = []Player{}
	}

	return &resp, nil
}

func (c *GameClient) AvailableGames(ctx context.Context) ([]GameListing, error) {
	var resp struct {
		Games []GameListing `json:"games"`
	}
	if err := c.do(ctx, "list games", http.MethodGet, "/games/available", nil, &resp); err != nil {
		return nil, err
	}

	if resp.Games == nil {
		return []GameListing{}, nil
	}

	return resp.Games, nil
}

func (c *GameClient) NewRound(ctx context.Context, sessionID string) error {
	return c.do(ctx, "start new round", http.MethodPost, gamePath(sessionID, "new-round"), nil, nil)
}
