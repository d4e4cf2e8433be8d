/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"context"
	"strings"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
)

// Syncer keeps one player's view of a game session in step with the server.
//
// All of its state is owned by the goroutine running run(). Network calls
// happen on other goroutines and hand their outcome back through events, so
// between two events nothing else touches the state.
type Syncer struct {
	api   GameAPI
	view  View
	clock clockwork.Clock
	log   zerolog.Logger

	ctx      context.Context
	events   chan func()
	done     chan struct{}
	dispatch func(func())

	session   sessionHolder
	poller    *Poller
	countdown *countdown

	// snapshot and result responses are ordered separately
	snapshots epochs
	results   epochs
}

// epochs orders the responses of one kind of request: issued is the newest
// handed out, applied the newest whose response has been acted on.
type epochs struct {
	issued  uint64
	applied uint64
}

func (e *epochs) next() uint64 {
	e.issued++

	return e.issued
}

func newSyncer(api GameAPI, view View, clock clockwork.Clock, logger zerolog.Logger) *Syncer {
	return &Syncer{
		api:       api,
		view:      view,
		clock:     clock,
		log:       logger,
		ctx:       context.Background(),
		events:    make(chan func(), 64),
		done:      make(chan struct{}),
		dispatch:  func(f func()) { go f() },
		poller:    newPoller(clock, logger),
		countdown: newCountdown(clock),
	}
}

func (s *Syncer) run(ctx context.Context) {
	s.ctx = ctx

	defer func() {
		s.poller.stop()
		s.countdown.stop()
		close(s.done)
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case fn := <-s.events:
			fn()
		case <-s.poller.C():
			s.onPollTick()
		case <-s.countdown.C():
			s.onCountdownTick()
		}
	}
}

// Submit queues fn to run on the loop. It is a no-op once the loop is gone.
func (s *Syncer) Submit(fn func()) {
	select {
	case s.events <- fn:
	case <-s.done:
	}
}

// async runs call away from the loop and applies its outcome back on it.
// Outcomes for a session that has since ended are dropped without a word.
func async[T any](s *Syncer, op string, call func(ctx context.Context) (T, error), apply func(T)) {
	generation := s.session.generation
	ctx := s.ctx

	s.dispatch(func() {
		v, err := call(ctx)

		s.Submit(func() {
			if generation != s.session.generation {
				s.log.Debug().Str("op", op).Msg("dropping response for a session that has ended")

				return
			}

			if err != nil {
				s.reportError(op, err)

				return
			}

			apply(v)
		})
	})
}

func (s *Syncer) reportError(op string, err error) {
	event := s.log.Warn().Err(err).Str("op", op)
	if sc := s.session.current; sc != nil {
		event = event.Str("session", sc.SessionID).Stringer("phase", sc.phase)
	}
	event.Msg("request failed")

	s.view.OnTransientError(userMessage(err))
}

// stale reports whether the response to epoch is older than one of the same
// kind already acted on, and otherwise records it as the newest.
func (s *Syncer) stale(e *epochs, kind string, epoch uint64) bool {
	if epoch < e.applied {
		s.log.Debug().
			Str("kind", kind).
			Uint64("epoch", epoch).
			Uint64("applied", e.applied).
			Msg("dropping out-of-order response")

		return true
	}

	e.applied = epoch

	return false
}

func (s *Syncer) fetchSnapshot(reason string) {
	sc := s.session.current
	if sc == nil {
		return
	}

	epoch := s.snapshots.next()
	sessionID, playerID := sc.SessionID, sc.PlayerID

	s.log.Debug().
		Str("reason", reason).
		Str("session", sessionID).
		Uint64("epoch", epoch).
		Msg("fetching snapshot")

	async(s, "fetch snapshot", func(ctx context.Context) (*Snapshot, error) {
		return s.api.Snapshot(ctx, sessionID, playerID)
	}, func(snap *Snapshot) {
		if s.stale(&s.snapshots, "snapshot", epoch) {
			return
		}

		s.handleSnapshot(snap)
	})
}

func (s *Syncer) refreshLobby() {
	s.fetchSnapshot("lobby")
}

func (s *Syncer) loadGame() {
	s.fetchSnapshot("game")
}

func (s *Syncer) onPollTick() {
	sc := s.session.current
	if sc == nil || s.poller.paused {
		return
	}

	if sc.phase == PhaseWaiting {
		s.refreshLobby()
	} else {
		s.loadGame()
	}
}

func (s *Syncer) startCountdown() {
	s.countdown.start()
	s.view.OnClock(0)
}

func (s *Syncer) onCountdownTick() {
	shown, expired := s.countdown.tick()
	s.view.OnClock(shown)

	if !expired {
		return
	}

	s.log.Info().Msg("discussion time is up, requesting voting")
	s.view.OnNotice("10 minutes elapsed! Starting voting phase...")
	s.transitionToVoting()
}

// handleSnapshot applies a freshly fetched snapshot against the phase
// remembered from the previous one.
func (s *Syncer) handleSnapshot(snap *Snapshot) {
	sc := s.session.current
	if sc == nil {
		return
	}

	prev := sc.phase
	if sc.Category == "" && snap.Category != "" {
		sc.Category = snap.Category
	}

	if prev == PhaseWaiting && snap.Phase != PhaseWaiting {
		s.log.Info().
			Str("session", sc.SessionID).
			Stringer("phase", snap.Phase).
			Msg("game started")

		sc.phase = snap.Phase
		s.view.OnScreen(ScreenInPlay)
		s.startCountdown()
		s.loadGame()
		s.poller.start(sc.phase)

		return
	}

	if prev == PhaseResult && snap.Phase != PhaseResult {
		s.countdown.stop()

		if snap.Phase == PhaseWaiting {
			s.log.Info().Str("session", sc.SessionID).Msg("returned to lobby")

			s.poller.restartIfIntervalChanged(prev, PhaseWaiting)
			sc.phase = PhaseWaiting
			s.view.OnScreen(ScreenLobby)
			s.refreshLobby()

			return
		}

		s.log.Info().
			Str("session", sc.SessionID).
			Stringer("phase", snap.Phase).
			Msg("new round started")

		s.view.OnScreen(ScreenInPlay)
		s.startCountdown()
	}

	s.poller.restartIfIntervalChanged(prev, snap.Phase)
	sc.phase = snap.Phase

	s.render(prev, snap)
}

func (s *Syncer) render(prev Phase, snap *Snapshot) {
	sc := s.session.current

	switch snap.Phase {
	case PhaseWaiting:
		if prev != PhaseWaiting {
			s.countdown.stop()
			s.view.OnScreen(ScreenLobby)
		}
		s.view.OnLobbyUpdate(snap.Players, startEligibility(snap, sc.Creator))
	case PhaseDiscussion, PhaseReveal:
		s.view.OnPhaseEnter(snap.Phase, snap)
	case PhaseVoting:
		s.view.OnPhaseEnter(snap.Phase, snap)
		s.view.OnBallot(buildBallot(snap, sc.PlayerID))
	case PhaseResult:
		s.fetchResult()
	default:
		s.log.Warn().
			Str("session", sc.SessionID).
			Str("raw_phase", snap.RawPhase).
			Msg("unrecognized phase")
	}
}

func (s *Syncer) fetchResult() {
	sc := s.session.current
	if sc == nil {
		return
	}

	epoch := s.results.next()
	sessionID := sc.SessionID

	async(s, "fetch result", func(ctx context.Context) (*ResultResponse, error) {
		return s.api.Result(ctx, sessionID)
	}, func(resp *ResultResponse) {
		if s.stale(&s.results, "result", epoch) || s.session.current.phase != PhaseResult {
			return
		}

		s.view.OnResult(summarizeResult(resp.Result, resp.Players), resp.Players)
		s.view.OnScreen(ScreenResult)
		s.countdown.stop()
	})
}

func (s *Syncer) beginSession(sessionID, playerID, category string, creator bool) {
	s.countdown.stop()
	s.poller.stop()

	sc := s.session.begin(sessionID, playerID, creator)
	sc.Category = category

	s.log.Info().
		Str("session", sessionID).
		Str("player", playerID).
		Bool("creator", creator).
		Msg("joined session")

	s.view.OnSession(&SessionInfo{
		SessionID: sc.SessionID,
		PlayerID:  sc.PlayerID,
		Creator:   sc.Creator,
		Category:  sc.Category,
	})
	s.view.OnScreen(ScreenLobby)

	s.refreshLobby()
	s.poller.start(sc.phase)
}

func (s *Syncer) createGame(req CreateGameRequest) {
	req.PlayerName = strings.TrimSpace(req.PlayerName)

	if problem := req.problem(); problem != "" {
		s.view.OnTransientError(problem)

		return
	}

	async(s, "create game", func(ctx context.Context) (*CreateGameResponse, error) {
		return s.api.CreateGame(ctx, req)
	}, func(resp *CreateGameResponse) {
		category := resp.Category
		if category == "" {
			category = req.Category
		}

		s.beginSession(resp.SessionID, resp.PlayerID, category, true)
		s.view.OnNotice("Code: " + resp.SessionID)
	})
}

func (s *Syncer) joinGame(sessionID, playerName string) {
	sessionID = strings.TrimSpace(sessionID)
	playerName = strings.TrimSpace(playerName)

	if sessionID == "" || playerName == "" {
		s.view.OnTransientError("Please enter name and game code")

		return
	}

	async(s, "join game", func(ctx context.Context) (*JoinGameResponse, error) {
		return s.api.JoinGame(ctx, sessionID, playerName)
	}, func(resp *JoinGameResponse) {
		s.beginSession(sessionID, resp.PlayerID, "", false)
		s.view.OnNotice("Joined!")
	})
}

// startGame checks that topics are ready before asking the server to start.
// The switch to the in-play screen happens once a snapshot confirms it.
func (s *Syncer) startGame() {
	sc := s.session.current
	if sc == nil {
		return
	}

	sessionID, playerID := sc.SessionID, sc.PlayerID

	async(s, "start game", func(ctx context.Context) (*Snapshot, error) {
		return s.api.Snapshot(ctx, sessionID, playerID)
	}, func(snap *Snapshot) {
		if !snap.TopicsReady {
			s.view.OnNotice("Topics are still being generated, please wait a moment...")

			return
		}

		async(s, "start game", func(ctx context.Context) (struct{}, error) {
			return struct{}{}, s.api.StartGame(ctx, sessionID, playerID)
		}, func(struct{}) {
			s.view.OnNotice("Game started!")
			s.loadGame()
		})
	})
}

func (s *Syncer) vote(targetID string) {
	sc := s.session.current
	if sc == nil || targetID == "" {
		return
	}

	sessionID, playerID := sc.SessionID, sc.PlayerID

	async(s, "submit vote", func(ctx context.Context) (struct{}, error) {
		return struct{}{}, s.api.Vote(ctx, sessionID, playerID, targetID)
	}, func(struct{}) {
		s.view.OnNotice("Vote submitted!")
		s.loadGame()
	})
}

func (s *Syncer) transitionToVoting() {
	sc := s.session.current
	if sc == nil {
		return
	}

	sessionID := sc.SessionID

	async(s, "transition to voting", func(ctx context.Context) (struct{}, error) {
		return struct{}{}, s.api.TransitionToVoting(ctx, sessionID)
	}, func(struct{}) {
		s.loadGame()
	})
}

// newRound asks the server for another round. The snapshot that follows
// decides whether that lands in the lobby or straight in discussion.
func (s *Syncer) newRound() {
	sc := s.session.current
	if sc == nil {
		return
	}

	if !sc.Creator {
		s.view.OnNotice("Only the creator can restart.")

		return
	}

	sessionID := sc.SessionID

	async(s, "start new round", func(ctx context.Context) (struct{}, error) {
		return struct{}{}, s.api.NewRound(ctx, sessionID)
	}, func(struct{}) {
		s.view.OnNotice("Starting a new round!")
		s.refreshLobby()
	})
}

func (s *Syncer) listGames() {
	async(s, "list games", func(ctx context.Context) ([]GameListing, error) {
		return s.api.AvailableGames(ctx)
	}, func(games []GameListing) {
		s.view.OnGames(games)
	})
}

func (s *Syncer) leave() {
	s.countdown.stop()
	s.poller.stop()

	if sc := s.session.current; sc != nil {
		s.log.Info().Str("session", sc.SessionID).Msg("left session")
	}
	s.session.end()

	s.view.OnSession(nil)
	s.view.OnScreen(ScreenHome)
}

func (s *Syncer) pause() {
	s.poller.pause()
}

// resume lifts a pause and immediately catches up on anything missed.
func (s *Syncer) resume() {
	if !s.poller.paused {
		return
	}
	s.poller.resume()

	sc := s.session.current
	if sc == nil {
		return
	}

	if sc.phase == PhaseWaiting {
		s.refreshLobby()
	} else {
		s.loadGame()
	}
}
