// Imposter client bridge
//
// Every browser tab that opens the client gets a websocket and its own
// Syncer. The Syncer polls the remote game server and pushes whatever the
// tab should show back down the websocket; the tab sends player actions and
// visibility changes up.
//
// Features:
// - WebSocket per tab: /imposter/ws
// - Join links with the game code pre-filled: /imposter/join/:session
// - QR code for a join link: /imposter/qr/:session, backed by go-qrcode
// - Polling pauses while the tab is hidden and catches up when it returns
// - Tabs idle for longer than the configured timeout are disconnected

package main

import (
	"bytes"
	"context"
	_ "embed"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/julienschmidt/httprouter"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/skip2/go-qrcode"
)

// Messages coming from the browser
type ClientMessage struct {
	Type       string `json:"type"`                  // see readPump
	PlayerName string `json:"player_name,omitempty"` // create / join
	Category   string `json:"category,omitempty"`    // create
	MaxPlayers int    `json:"max_players,omitempty"` // create
	SessionID  string `json:"session_id,omitempty"`  // join
	TargetID   string `json:"target_id,omitempty"`   // vote
	Hidden     *bool  `json:"hidden,omitempty"`      // visibility
}

// Messages sent to the browser

type SessionMessage struct {
	Type    string       `json:"type"` // "session"
	Session *SessionInfo `json:"session"`
}

type ScreenMessage struct {
	Type   string `json:"type"` // "screen"
	Screen Screen `json:"screen"`
}

type PhaseMessage struct {
	Type    string   `json:"type"` // "phase"
	Phase   Phase    `json:"phase"`
	Topic   string   `json:"topic,omitempty"`
	Players []Player `json:"players"`
}

type LobbyMessage struct {
	Type    string           `json:"type"` // "lobby"
	Players []Player         `json:"players"`
	Start   StartEligibility `json:"start"`
}

type BallotMessage struct {
	Type   string `json:"type"` // "ballot"
	Ballot Ballot `json:"ballot"`
}

type ResultMessage struct {
	Type    string         `json:"type"` // "result"
	Result  *ResultSummary `json:"result"`
	Players []Player       `json:"players"`
}

type ClockMessage struct {
	Type    string `json:"type"` // "clock"
	Elapsed string `json:"elapsed"`
}

type GamesMessage struct {
	Type  string        `json:"type"` // "games"
	Games []GameListing `json:"games"`
}

// SimpleMessage is for notifications ("notice", "error")
type SimpleMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// wsView renders by queueing messages for the client's write pump.
type wsView struct {
	send chan any
	log  zerolog.Logger
}

func (v *wsView) push(msg any) {
	select {
	case v.send <- msg:
	default:
		v.log.Warn().Msg("send buffer full, dropping update")
	}
}

func (v *wsView) OnSession(info *SessionInfo) {
	v.push(SessionMessage{Type: "session", Session: info})
}

func (v *wsView) OnScreen(screen Screen) {
	v.push(ScreenMessage{Type: "screen", Screen: screen})
}

func (v *wsView) OnPhaseEnter(phase Phase, snap *Snapshot) {
	v.push(PhaseMessage{
		Type:    "phase",
		Phase:   phase,
		Topic:   snap.Topic,
		Players: snap.Players,
	})
}

func (v *wsView) OnLobbyUpdate(players []Player, start StartEligibility) {
	v.push(LobbyMessage{Type: "lobby", Players: players, Start: start})
}

func (v *wsView) OnBallot(ballot Ballot) {
	v.push(BallotMessage{Type: "ballot", Ballot: ballot})
}

func (v *wsView) OnResult(result *ResultSummary, players []Player) {
	v.push(ResultMessage{Type: "result", Result: result, Players: players})
}

func (v *wsView) OnClock(elapsed time.Duration) {
	v.push(ClockMessage{Type: "clock", Elapsed: formatClock(elapsed)})
}

func (v *wsView) OnGames(games []GameListing) {
	v.push(GamesMessage{Type: "games", Games: games})
}

func (v *wsView) OnNotice(message string) {
	v.push(SimpleMessage{Type: "notice", Message: message})
}

func (v *wsView) OnTransientError(message string) {
	v.push(SimpleMessage{Type: "error", Message: message})
}

type Client struct {
	id     string
	conn   *websocket.Conn
	send   chan any
	syncer *Syncer

	mu         sync.Mutex
	lastActive time.Time
}

func (c *Client) touch(now time.Time) {
	c.mu.Lock()
	c.lastActive = now
	c.mu.Unlock()
}

func (c *Client) idleSince() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.lastActive
}

// ClientManager tracks connected tabs so idle ones can be reaped.
type ClientManager struct {
	api         GameAPI
	clock       clockwork.Clock
	idleTimeout time.Duration

	mu      sync.Mutex
	clients map[string]*Client

	// closed once the reaper has exited, or straight away without one
	stopped chan struct{}
}

// newClientManager reaps idle clients until ctx is done. An idleTimeout of
// zero disables reaping.
func newClientManager(ctx context.Context, api GameAPI, clock clockwork.Clock, idleTimeout time.Duration) *ClientManager {
	cm := &ClientManager{
		api:         api,
		clock:       clock,
		idleTimeout: idleTimeout,
		clients:     make(map[string]*Client),
		stopped:     make(chan struct{}),
	}
	if idleTimeout > 0 {
		go cm.reaperLoop(ctx)
	} else {
		close(cm.stopped)
	}
	return cm
}

func (cm *ClientManager) add(c *Client) {
	cm.mu.Lock()
	cm.clients[c.id] = c
	cm.mu.Unlock()
}

func (cm *ClientManager) remove(c *Client) {
	cm.mu.Lock()
	delete(cm.clients, c.id)
	cm.mu.Unlock()
}

func (cm *ClientManager) count() int {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	return len(cm.clients)
}

// reapIdle closes the connection of every client that has been quiet
// since before cutoff. Closing the connection ends its read pump, which
// does the rest of the cleanup.
func (cm *ClientManager) reapIdle(cutoff time.Time) int {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	reaped := 0
	for id, c := range cm.clients {
		if !c.idleSince().Before(cutoff) {
			continue
		}

		log.Info().Str("conn", id).Msg("closing idle client")
		delete(cm.clients, id)
		_ = c.conn.Close()
		reaped++
	}

	return reaped
}

func (cm *ClientManager) reaperLoop(ctx context.Context) {
	ticker := cm.clock.NewTicker(cm.idleTimeout / 2)
	defer func() {
		ticker.Stop()
		close(cm.stopped)
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			cm.reapIdle(cm.clock.Now().Add(-cm.idleTimeout))
		}
	}
}

// checkOrigin allows same-host pages plus any origin passed via --cors-origin.
func checkOrigin(cfg *Config) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		if slices.Contains(cfg.corsOrigins, "*") || slices.Contains(cfg.corsOrigins, origin) {
			return true
		}

		u, err := url.Parse(origin)
		if err != nil {
			return false
		}

		return strings.EqualFold(u.Host, r.Host)
	}
}

func serveWS(cfg *Config, cm *ClientManager) httprouter.Handle {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     checkOrigin(cfg),
	}

	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Error().Err(err).Msg("websocket upgrade failed")
			return
		}

		id := uuid.NewString()
		logger := log.With().Str("conn", id).Logger()

		client := &Client{
			id:         id,
			conn:       conn,
			send:       make(chan any, 32),
			lastActive: cm.clock.Now(),
		}
		client.syncer = newSyncer(cm.api, &wsView{send: client.send, log: logger}, cm.clock, logger)

		cm.add(client)
		logger.Debug().Str("remote", realIP(r)).Msg("client connected")

		ctx, cancel := context.WithCancel(context.Background())
		go client.syncer.run(ctx)
		go client.writePump()

		client.readPump(cm)

		cancel()
		<-client.syncer.done
		close(client.send)
		cm.remove(client)

		logger.Debug().Msg("client disconnected")
	}
}

func (c *Client) readPump(cm *ClientManager) {
	defer c.conn.Close()

	for {
		var msg ClientMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			return
		}
		c.touch(cm.clock.Now())

		s := c.syncer

		switch msg.Type {
		case "create":
			req := CreateGameRequest{
				PlayerName: msg.PlayerName,
				Category:   msg.Category,
				MaxPlayers: msg.MaxPlayers,
			}
			s.Submit(func() { s.createGame(req) })
		case "join":
			s.Submit(func() { s.joinGame(msg.SessionID, msg.PlayerName) })
		case "start_game":
			s.Submit(s.startGame)
		case "vote":
			s.Submit(func() { s.vote(msg.TargetID) })
		case "transition_voting":
			s.Submit(s.transitionToVoting)
		case "new_round":
			s.Submit(s.newRound)
		case "leave":
			s.Submit(s.leave)
		case "list_games":
			s.Submit(s.listGames)
		case "refresh":
			s.Submit(s.refreshLobby)
		case "visibility":
			if msg.Hidden != nil && *msg.Hidden {
				s.Submit(s.pause)
			} else {
				s.Submit(s.resume)
			}
		case "ping":
		default:
			// ignore unknown types
		}
	}
}

func (c *Client) writePump() {
	defer c.conn.Close()

	for msg := range c.send {
		if err := c.conn.WriteJSON(msg); err != nil {
			return
		}
	}
}

// joinURL builds the link another player can open to join sessionID.
func joinURL(r *http.Request, prefix, path, sessionID string) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		scheme = proto
	}

	return scheme + "://" + r.Host + prefix + path + "/join/" + sessionID
}

// QR handler: generates a PNG QR code pointing at the join link for a session.
func qrHandler(cfg *Config, path string) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		sessionID := strings.TrimSpace(ps.ByName("session"))
		if sessionID == "" {
			http.Error(w, "missing session id", http.StatusBadRequest)
			return
		}

		const qrSize = 320 // mobile-friendly size
		png, err := qrcode.Encode(joinURL(r, cfg.prefix, path, sessionID), qrcode.Medium, qrSize)
		if err != nil {
			http.Error(w, "qr generation failed", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "image/png")
		securityHeaders(cfg, w)
		_, _ = w.Write(png)
	}
}

// ---- Static file paths ----

//go:embed imposter/index.html
var indexHTML []byte

//go:embed imposter/app.css
var imposterCSS []byte

//go:embed imposter/app.js
var imposterJS []byte

func staticHandler(cfg *Config, contentType string, data []byte) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		w.Header().Set("Content-Type", contentType)
		w.Header().Set("Cache-Control", "public, max-age=3600")
		w.Header().Set("Expires", time.Now().Add(time.Hour).UTC().Format(http.TimeFormat))
		securityHeaders(cfg, w)

		_, _ = w.Write(data)
	}
}

// registerImposter sets up routes so that:
//   - $path                  → HTML client
//   - $path/join/:session    → HTML client with the game code pre-filled
//   - $path/ws               → WebSocket for one tab
//   - $path/qr/:session      → PNG QR code for the join link
func registerImposter(cfg *Config, path string, mux *httprouter.Router, cm *ClientManager) {
	page := bytes.ReplaceAll(indexHTML, []byte("{{prefix}}"), []byte(cfg.prefix))
	index := staticHandler(cfg, "text/html; charset=utf-8", page)

	mux.GET(cfg.prefix+path, index)
	mux.GET(cfg.prefix+path+"/join/:session", index)

	mux.GET(cfg.prefix+"/assets/imposter/app.css", staticHandler(cfg, "text/css; charset=utf-8", imposterCSS))
	mux.GET(cfg.prefix+"/assets/imposter/app.js", staticHandler(cfg, "application/javascript; charset=utf-8", imposterJS))

	mux.GET(cfg.prefix+path+"/ws", serveWS(cfg, cm))

	mux.GET(cfg.prefix+path+"/qr/:session", qrHandler(cfg, path))
}
