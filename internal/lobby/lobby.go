// Package lobby runs one actor goroutine per lobby. All reads and
// writes of a lobby's game state happen on that goroutine, so every
// dispatch is serialized and clients observe a single total order of
// mutations.
package lobby

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/JaceRockman/rulette-server/internal/engine"
	"github.com/JaceRockman/rulette-server/internal/store"
)

var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrValidation   = errors.New("invalid request")
)

const (
	MinPoints = 0
	MaxPoints = 99
)

type Msg interface{ isLobbyMsg() }

// Dispatch applies one reducer action on behalf of a player. Reply, if
// non-nil, receives nil on success or the rejection; rejections never
// mutate state and never broadcast.
type Dispatch struct {
	PlayerID string
	Action   engine.Action
	Reply    chan error
}

func (Dispatch) isLobbyMsg() {}

// EndGame computes the winner (max points, first in join order wins
// ties) and ends the game. Winner policy lives here, not in the
// reducer, so it can change without touching the transition function.
type EndGame struct {
	PlayerID string
	Reply    chan error
}

func (EndGame) isLobbyMsg() {}

// AssignToActive assigns a rule to whoever is currently the active
// player; only the actor goroutine knows who that is at apply time.
type AssignToActive struct {
	PlayerID string
	RuleID   string
	Reply    chan error
}

func (AssignToActive) isLobbyMsg() {}

// Join registers a client outbox and immediately sends the current
// snapshot so late joiners converge without waiting for a mutation.
type Join struct {
	PlayerID string
	Outbox   chan Event
}

func (Join) isLobbyMsg() {}

// Rejoin attaches a new connection to a player already in the lobby:
// a host seated out-of-band claiming its seat over the socket, or a
// reconnect superseding a stale one. Fails if the player is not
// present; on success the replaced outbox, if any, is closed.
type Rejoin struct {
	PlayerID string
	Outbox   chan Event
	Reply    chan error
}

func (Rejoin) isLobbyMsg() {}

// Leave is the disconnect signal; it triggers the removal cascade.
type Leave struct{ PlayerID string }

func (Leave) isLobbyMsg() {}

// Relay re-broadcasts a presentation-sync event verbatim to every
// client in the lobby without touching state.
type Relay struct {
	Name    string
	Payload json.RawMessage
}

func (Relay) isLobbyMsg() {}

type GetState struct{ Reply chan View }

func (GetState) isLobbyMsg() {}

type Shutdown struct{}

func (Shutdown) isLobbyMsg() {}

// Event is what client outboxes receive.
type Event interface{ isEvent() }

// Snapshot is a full-state push. Version increments on every mutation
// so clients can discard stale frames.
type Snapshot struct {
	Version int
	State   engine.State
}

func (Snapshot) isEvent() {}

// Named is a one-shot or relayed event with an opaque payload.
type Named struct {
	Name    string
	Payload json.RawMessage
}

func (Named) isEvent() {}

type View struct {
	Version    int
	NumClients int
	State      engine.State
}

type Options struct {
	Logger    *zap.Logger
	Snapshots store.SnapshotStore
	// IdleTimeout evicts a lobby no client ever attached to, such as
	// one created over REST and then abandoned. Zero means the default.
	IdleTimeout time.Duration
	// OnEmpty fires once when the last client leaves, after shutdown.
	OnEmpty func(lobbyID string)
}

const defaultIdleTimeout = 2 * time.Minute

type Lobby struct {
	id        string
	code      string
	inbox     chan Msg
	state     engine.State
	version   int
	clients   map[string]chan Event
	log       *zap.Logger
	snaps     store.SnapshotStore
	saveCh    chan engine.State
	saverDone chan struct{}
	idleAfter time.Duration
	onEmpty   func(string)
	ctx       context.Context
	cancel    context.CancelFunc
}

func New(parent context.Context, initial engine.State, opts Options) *Lobby {
	ctx, cancel := context.WithCancel(parent)
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Snapshots == nil {
		opts.Snapshots = store.Noop{}
	}
	if opts.IdleTimeout <= 0 {
		opts.IdleTimeout = defaultIdleTimeout
	}

	l := &Lobby{
		id:        initial.ID,
		code:      initial.Code,
		inbox:     make(chan Msg, 64),
		state:     initial,
		clients:   make(map[string]chan Event),
		log:       opts.Logger.With(zap.String("lobby", initial.ID), zap.String("code", initial.Code)),
		snaps:     opts.Snapshots,
		idleAfter: opts.IdleTimeout,
		onEmpty:   opts.OnEmpty,
		ctx:       ctx,
		cancel:    cancel,
	}
	if _, off := l.snaps.(store.Noop); !off {
		l.saveCh = make(chan engine.State, 1)
		l.saverDone = make(chan struct{})
		go l.saver()
	}

	go l.loop()
	return l
}

func (l *Lobby) ID() string   { return l.id }
func (l *Lobby) Code() string { return l.code }

// Inbox is the only way in; tests and the ws layer both use it.
func (l *Lobby) Inbox() chan<- Msg { return l.inbox }

func (l *Lobby) loop() {
	// A lobby nobody ever attaches to would otherwise live forever.
	idle := time.NewTimer(l.idleAfter)
	defer idle.Stop()

	for {
		select {
		case <-l.ctx.Done():
			l.shutdown()
			return

		case <-idle.C:
			if len(l.clients) == 0 {
				l.log.Info("no client attached in time, evicting")
				l.evict()
				return
			}

		case m := <-l.inbox:
			switch msg := m.(type) {
			case Join:
				l.attachClient(msg.PlayerID, msg.Outbox)

			case Rejoin:
				if _, ok := l.state.FindPlayer(msg.PlayerID); !ok {
					reply(msg.Reply, fmt.Errorf("%w: unknown player %q", ErrValidation, msg.PlayerID))
					break
				}
				l.attachClient(msg.PlayerID, msg.Outbox)
				reply(msg.Reply, nil)

			case Leave:
				delete(l.clients, msg.PlayerID)
				l.handleDisconnect(msg.PlayerID)
				if len(l.clients) == 0 {
					l.evict()
					return
				}

			case Dispatch:
				action := l.withDefaults(msg.Action)
				err := l.check(msg.PlayerID, action)
				if err == nil {
					l.apply(action)
					l.afterApply(action)
				} else {
					l.log.Debug("dispatch rejected",
						zap.String("player", msg.PlayerID),
						zap.String("action", string(msg.Action.Type)),
						zap.Error(err))
				}
				reply(msg.Reply, err)

			case EndGame:
				winner := computeWinner(l.state.Players)
				l.apply(engine.Action{Type: engine.ActEndGame, WinnerID: winner})
				reply(msg.Reply, nil)

			case AssignToActive:
				var err error
				if l.state.ActivePlayer == "" {
					err = fmt.Errorf("%w: no active player", ErrValidation)
				} else {
					err = l.check(msg.PlayerID, engine.Action{
						Type:     engine.ActAssignRule,
						PlaqueID: msg.RuleID,
						PlayerID: l.state.ActivePlayer,
					})
				}
				if err == nil {
					l.apply(engine.Action{
						Type:     engine.ActAssignRule,
						PlaqueID: msg.RuleID,
						PlayerID: l.state.ActivePlayer,
					})
				}
				reply(msg.Reply, err)

			case Relay:
				l.broadcast(Named{Name: msg.Name, Payload: msg.Payload})

			case GetState:
				msg.Reply <- View{
					Version:    l.version,
					NumClients: len(l.clients),
					State:      l.state,
				}

			case Shutdown:
				l.shutdown()
				return
			}
		}
	}
}

// attachClient registers an outbox under a player id and sends the
// current snapshot. A replaced outbox is closed so the old connection's
// writer stops.
func (l *Lobby) attachClient(playerID string, outbox chan Event) {
	if old, ok := l.clients[playerID]; ok && old != outbox {
		close(old)
	}
	l.clients[playerID] = outbox
	outbox <- Snapshot{Version: l.version, State: l.state}
}

// apply runs one reducer step, bumps the version, persists off-path,
// and broadcasts the new snapshot. Only loop calls it.
func (l *Lobby) apply(a engine.Action) {
	l.state = engine.Reduce(l.state, a)
	l.version++
	l.persist(l.state)
	l.broadcast(Snapshot{Version: l.version, State: l.state})
}

// handleDisconnect removes the player and renegotiates host and turn.
// Each step that applies is its own reducer action with its own
// broadcast, in this order: remove, re-host, advance turn.
func (l *Lobby) handleDisconnect(playerID string) {
	p, ok := l.state.FindPlayer(playerID)
	if !ok {
		return
	}
	wasActive := l.state.ActivePlayer == playerID

	l.apply(engine.Action{Type: engine.ActRemovePlayer, PlayerID: playerID})
	l.log.Info("player disconnected", zap.String("player", playerID))

	if p.IsHost && len(l.state.Players) > 0 {
		newHost := l.state.Players[0].ID
		l.apply(engine.Action{Type: engine.ActSetHost, PlayerID: newHost})
		l.log.Info("host reassigned", zap.String("player", newHost))
		// Promotion can land on the player whose turn it is; the
		// active player must stay a non-host.
		if l.state.ActivePlayer == newHost {
			l.apply(engine.Action{Type: engine.ActAdvanceToNextPlayer})
		}
	}
	if wasActive {
		l.apply(engine.Action{Type: engine.ActAdvanceToNextPlayer})
	}
}

// withDefaults fills caller-side fields the transport cannot know,
// like the fairness color for a fresh plaque. Ids are still the
// transport's job.
func (l *Lobby) withDefaults(a engine.Action) engine.Action {
	switch a.Type {
	case engine.ActAddRule:
		if a.Plaque.Color == "" {
			a.Plaque.Color = engine.NextPlaqueColor(len(l.state.Rules))
		}
	case engine.ActAddPrompt:
		if a.Plaque.Color == "" {
			a.Plaque.Color = engine.NextPlaqueColor(len(l.state.Prompts))
		}
	}
	return a
}

// afterApply handles follow-on effects of a successful mutation.
func (l *Lobby) afterApply(a engine.Action) {
	switch a.Type {
	case engine.ActStartGame:
		if l.state.IsGameStarted {
			l.broadcast(Named{Name: "game_started"})
		}
	case engine.ActMarkRulesCompleted, engine.ActMarkPromptsCompleted:
		// The wheel is derived once every non-host player has finished
		// authoring, and only once.
		if len(l.state.WheelSegments) == 0 && l.authoringDone() {
			l.apply(engine.Action{Type: engine.ActCreateWheelSegments})
		}
	}
}

func (l *Lobby) authoringDone() bool {
	nonHost := l.state.NonHostPlayers()
	if len(nonHost) == 0 {
		return false
	}
	for _, p := range nonHost {
		if !p.RulesCompleted || !p.PromptsCompleted {
			return false
		}
	}
	return true
}

// check gates actions the pure reducer will not: authorization and
// payload validation. A non-nil error means nothing was mutated.
func (l *Lobby) check(playerID string, a engine.Action) error {
	switch a.Type {
	case engine.ActAddPlayer:
		if l.state.IsGameStarted {
			return fmt.Errorf("%w: game already started", ErrValidation)
		}

	case engine.ActStartGame:
		if !l.isHost(playerID) {
			return fmt.Errorf("%w: only the host can start the game", ErrUnauthorized)
		}
		if len(l.state.NonHostPlayers()) == 0 {
			return fmt.Errorf("%w: need at least one player besides the host", ErrValidation)
		}

	case engine.ActUpdateGameSettings:
		if !l.isHost(playerID) {
			return fmt.Errorf("%w: only the host can change settings", ErrUnauthorized)
		}
		if l.state.IsGameStarted {
			return fmt.Errorf("%w: settings are locked once the game starts", ErrValidation)
		}
		if a.NumRules < 1 || a.NumPrompts < 1 {
			return fmt.Errorf("%w: rule and prompt counts must be positive", ErrValidation)
		}

	case engine.ActSetWheelSpinning:
		if a.Spinning && playerID != l.state.ActivePlayer {
			return fmt.Errorf("%w: only the active player can spin", ErrUnauthorized)
		}

	case engine.ActUpdatePoints:
		if _, ok := l.state.FindPlayer(a.PlayerID); !ok {
			return fmt.Errorf("%w: unknown player %q", ErrValidation, a.PlayerID)
		}
		if a.Points < MinPoints || a.Points > MaxPoints {
			return fmt.Errorf("%w: points must be between %d and %d", ErrValidation, MinPoints, MaxPoints)
		}

	case engine.ActAssignRule:
		if _, ok := l.state.FindPlayer(a.PlayerID); !ok {
			return fmt.Errorf("%w: unknown player %q", ErrValidation, a.PlayerID)
		}
		if !hasPlaque(l.state.Rules, a.PlaqueID) {
			return fmt.Errorf("%w: unknown rule %q", ErrValidation, a.PlaqueID)
		}
	}
	return nil
}

func (l *Lobby) isHost(playerID string) bool {
	p, ok := l.state.FindPlayer(playerID)
	return ok && p.IsHost
}

func hasPlaque(plaques []engine.Plaque, id string) bool {
	for _, p := range plaques {
		if p.ID == id {
			return true
		}
	}
	return false
}

// computeWinner returns the id of the player with the most points;
// the first player in join order wins ties.
func computeWinner(players []engine.Player) string {
	winner := ""
	best := -1
	for _, p := range players {
		if p.Points > best {
			winner = p.ID
			best = p.Points
		}
	}
	return winner
}

// persist hands the state to the write-behind worker. Only the newest
// snapshot matters, so a pending not-yet-saved one is replaced rather
// than queued behind.
func (l *Lobby) persist(s engine.State) {
	if l.saveCh == nil {
		return
	}
	for {
		select {
		case l.saveCh <- s:
			return
		default:
		}
		select {
		case <-l.saveCh:
		default:
		}
	}
}

// saver is the only writer to the snapshot store for this lobby, so
// saves can never land out of order.
func (l *Lobby) saver() {
	defer close(l.saverDone)
	for s := range l.saveCh {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err := l.snaps.Save(ctx, s)
		cancel()
		if err != nil {
			l.log.Warn("snapshot save failed", zap.Error(err))
		}
	}
}

func (l *Lobby) broadcast(ev Event) {
	for id, ch := range l.clients {
		select {
		case ch <- ev:
		default:
			// Client is slow/full - drop them.
			close(ch)
			delete(l.clients, id)
		}
	}
}

func (l *Lobby) evict() {
	l.log.Info("lobby empty, shutting down")
	l.shutdown()
	if l.onEmpty != nil {
		l.onEmpty(l.id)
	}
	// Let any in-flight save finish so the delete lands last.
	if l.saverDone != nil {
		<-l.saverDone
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := l.snaps.Delete(ctx, l.id); err != nil {
		l.log.Warn("snapshot delete failed", zap.Error(err))
	}
}

func (l *Lobby) shutdown() {
	for id, ch := range l.clients {
		close(ch)
		delete(l.clients, id)
	}
	if l.saveCh != nil {
		close(l.saveCh)
	}
	l.cancel()
}

func reply(ch chan error, err error) {
	if ch == nil {
		return
	}
	select {
	case ch <- err:
	default:
	}
}
