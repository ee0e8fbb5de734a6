package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/JaceRockman/rulette-server/internal/engine"
	"github.com/JaceRockman/rulette-server/internal/hub"
	"github.com/JaceRockman/rulette-server/internal/lobby"
	"github.com/JaceRockman/rulette-server/internal/protocol"
	"github.com/JaceRockman/rulette-server/internal/session"
)

const (
	writeTimeout    = 3 * time.Second
	dispatchTimeout = 5 * time.Second
)

// conn tracks one websocket's place in the world: which player it
// speaks for and which lobby that player is in.
type conn struct {
	id       string
	sock     *websocket.Conn
	hub      *hub.Hub
	sessions *session.Registry
	log      *zap.Logger

	playerID string
	lobby    *lobby.Lobby
	outbox   chan lobby.Event
}

func Handler(h *hub.Hub, sessions *session.Registry, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sock, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer sock.Close(websocket.StatusNormalClosure, "bye")

		c := &conn{
			id:       uuid.NewString(),
			sock:     sock,
			hub:      h,
			sessions: sessions,
			log:      log,
			outbox:   make(chan lobby.Event, 8),
		}
		c.run(r.Context())
	}
}

func (c *conn) run(ctx context.Context) {
	defer func() {
		// The registry resolves whether this socket still owns a
		// player; a reconnect may have taken the slot over already.
		if playerID, _, ok := c.sessions.UnbindConnection(c.id); ok && c.lobby != nil {
			c.lobby.Inbox() <- lobby.Leave{PlayerID: playerID}
		}
	}()

	writeCtx, writeCancel := context.WithCancel(ctx)
	defer writeCancel()
	go c.writer(writeCtx)

	for {
		_, data, err := c.sock.Read(ctx)
		if err != nil {
			switch websocket.CloseStatus(err) {
			case websocket.StatusNormalClosure, websocket.StatusGoingAway:
				return
			}
			return
		}

		var cm protocol.ClientMessage
		if err := json.Unmarshal(data, &cm); err != nil {
			c.write(ctx, protocol.Error("bad json"))
			continue
		}
		c.handle(ctx, cm, data)
	}
}

// writer drains the lobby outbox onto the socket until the lobby
// closes the channel or the connection dies.
func (c *conn) writer(ctx context.Context) {
	for ev := range c.outbox {
		var msg protocol.ServerMessage
		switch e := ev.(type) {
		case lobby.Snapshot:
			state := e.State
			msg = protocol.ServerMessage{
				Type:    protocol.EvtGameUpdated,
				Version: e.Version,
				Game:    &state,
			}
		case lobby.Named:
			msg = protocol.ServerMessage{Type: e.Name, Payload: e.Payload}
		default:
			continue
		}
		c.write(ctx, msg)
	}
}

func (c *conn) write(ctx context.Context, msg protocol.ServerMessage) {
	payload, err := json.Marshal(msg)
	if err != nil {
		c.log.Error("marshal server message", zap.Error(err))
		return
	}
	wctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	_ = c.sock.Write(wctx, websocket.MessageText, payload)
}

func (c *conn) handle(ctx context.Context, cm protocol.ClientMessage, raw json.RawMessage) {
	switch cm.Type {
	case protocol.EvtCreateLobby:
		c.createLobby(ctx, cm)
	case protocol.EvtJoinLobby:
		c.joinLobby(ctx, cm)
	default:
		if c.lobby == nil {
			c.write(ctx, protocol.Error("not in a lobby"))
			return
		}
		c.gameEvent(ctx, cm, raw)
	}
}

func (c *conn) createLobby(ctx context.Context, cm protocol.ClientMessage) {
	if c.lobby != nil {
		c.write(ctx, protocol.Error("already in a lobby"))
		return
	}
	if cm.PlayerName == "" {
		c.write(ctx, protocol.Error("player name required"))
		return
	}

	playerID := uuid.NewString()
	reply := make(chan *lobby.Lobby, 1)
	c.hub.Inbox() <- hub.CreateLobby{HostID: playerID, HostName: cm.PlayerName, Reply: reply}
	lb := <-reply
	if lb == nil {
		c.write(ctx, protocol.Error("failed to create lobby"))
		return
	}

	c.attach(lb, playerID)
	state := c.currentState()
	c.write(ctx, protocol.ServerMessage{Type: protocol.EvtLobbyCreated, PlayerID: playerID, Game: &state})
	lb.Inbox() <- lobby.Join{PlayerID: playerID, Outbox: c.outbox}
}

func (c *conn) joinLobby(ctx context.Context, cm protocol.ClientMessage) {
	if c.lobby != nil {
		c.write(ctx, protocol.Error("already in a lobby"))
		return
	}

	reply := make(chan *lobby.Lobby, 1)
	c.hub.Inbox() <- hub.GetByCode{Code: cm.Code, Reply: reply}
	lb := <-reply
	if lb == nil {
		c.write(ctx, protocol.Error("lobby not found"))
		return
	}

	// A playerId names a seat to claim instead of a player to add: a
	// host created over REST attaching its socket, or a reconnect
	// superseding a stale one.
	if cm.PlayerID != "" {
		errCh := make(chan error, 1)
		lb.Inbox() <- lobby.Rejoin{PlayerID: cm.PlayerID, Outbox: c.outbox, Reply: errCh}
		if err := c.await(errCh); err != nil {
			c.write(ctx, protocol.Error(err.Error()))
			return
		}
		c.attach(lb, cm.PlayerID)
		state := c.currentState()
		c.write(ctx, protocol.ServerMessage{Type: protocol.EvtJoinedLobby, PlayerID: cm.PlayerID, Game: &state})
		return
	}

	if cm.PlayerName == "" {
		c.write(ctx, protocol.Error("player name required"))
		return
	}

	// The started check runs inside the lobby goroutine, so a start
	// racing this join cannot let a player slip in.
	playerID := uuid.NewString()
	errCh := make(chan error, 1)
	lb.Inbox() <- lobby.Dispatch{
		Action: engine.Action{
			Type:   engine.ActAddPlayer,
			Player: engine.Player{ID: playerID, Name: cm.PlayerName},
		},
		Reply: errCh,
	}
	if err := c.await(errCh); err != nil {
		c.write(ctx, protocol.Error(err.Error()))
		return
	}

	c.attach(lb, playerID)
	state := c.currentState()
	c.write(ctx, protocol.ServerMessage{Type: protocol.EvtJoinedLobby, PlayerID: playerID, Game: &state})
	lb.Inbox() <- lobby.Join{PlayerID: playerID, Outbox: c.outbox}
}

func (c *conn) attach(lb *lobby.Lobby, playerID string) {
	c.lobby = lb
	c.playerID = playerID
	c.sessions.RegisterPlayer(playerID, lb.ID())
	c.sessions.BindConnection(c.id, playerID)
}

func (c *conn) currentState() engine.State {
	reply := make(chan lobby.View, 1)
	c.lobby.Inbox() <- lobby.GetState{Reply: reply}
	return (<-reply).State
}

// gameEvent maps an in-lobby client event onto a lobby message. Most
// events are 1:1 with a reducer action; a few are relays or composite
// dispatcher operations.
func (c *conn) gameEvent(ctx context.Context, cm protocol.ClientMessage, raw json.RawMessage) {
	errCh := make(chan error, 1)

	switch cm.Type {
	case protocol.EvtAddRule, protocol.EvtAddPrompt, protocol.EvtAddPlaque:
		kind := engine.KindRule
		if cm.Type == protocol.EvtAddPrompt || (cm.Type == protocol.EvtAddPlaque && cm.PlaqueKind == string(engine.KindPrompt)) {
			kind = engine.KindPrompt
		}
		actionType := engine.ActAddRule
		if kind == engine.KindPrompt {
			actionType = engine.ActAddPrompt
		}
		c.dispatch(errCh, engine.Action{
			Type: actionType,
			Plaque: engine.Plaque{
				ID:       uuid.NewString(),
				Text:     cm.Text,
				AuthorID: c.playerID,
				IsActive: true,
			},
		})

	case protocol.EvtUpdateRule:
		c.dispatch(errCh, engine.Action{Type: engine.ActUpdateRule, PlaqueID: cm.PlaqueID, Text: cm.Text, Active: cm.IsActive})

	case protocol.EvtUpdatePrompt:
		c.dispatch(errCh, engine.Action{Type: engine.ActUpdatePrompt, PlaqueID: cm.PlaqueID, Text: cm.Text, Active: cm.IsActive})

	case protocol.EvtUpdatePlaque:
		actionType := engine.ActUpdateRule
		if cm.PlaqueKind == string(engine.KindPrompt) {
			actionType = engine.ActUpdatePrompt
		}
		c.dispatch(errCh, engine.Action{Type: actionType, PlaqueID: cm.PlaqueID, Text: cm.Text, Active: cm.IsActive})

	case protocol.EvtStartGame:
		c.dispatch(errCh, engine.Action{Type: engine.ActStartGame})

	case protocol.EvtSpinWheel:
		c.dispatch(errCh, engine.Action{Type: engine.ActSetWheelSpinning, Spinning: true})

	case protocol.EvtAdvanceToNext:
		c.dispatch(errCh, engine.Action{Type: engine.ActAdvanceToNextPlayer})

	case protocol.EvtAssignRule:
		c.dispatch(errCh, engine.Action{Type: engine.ActAssignRule, PlaqueID: cm.RuleID, PlayerID: cm.PlayerID})

	case protocol.EvtAssignRuleToCurrent:
		c.lobby.Inbox() <- lobby.AssignToActive{PlayerID: c.playerID, RuleID: cm.RuleID, Reply: errCh}

	case protocol.EvtRemoveWheelLayer:
		c.dispatch(errCh, engine.Action{Type: engine.ActRemoveWheelLayer, SegmentID: cm.SegmentID})

	case protocol.EvtUpdatePoints:
		c.dispatch(errCh, engine.Action{Type: engine.ActUpdatePoints, PlayerID: cm.PlayerID, Points: cm.Points})

	case protocol.EvtUpdateGameSettings:
		c.dispatch(errCh, engine.Action{Type: engine.ActUpdateGameSettings, NumRules: cm.NumRules, NumPrompts: cm.NumPrompts})

	case protocol.EvtRulesCompleted:
		c.dispatch(errCh, engine.Action{Type: engine.ActMarkRulesCompleted, PlayerID: c.playerID})

	case protocol.EvtPromptsCompleted:
		c.dispatch(errCh, engine.Action{Type: engine.ActMarkPromptsCompleted, PlayerID: c.playerID})

	case protocol.EvtSyncWheelSpin, protocol.EvtNavigateToScreen, protocol.EvtEndGameContinue:
		c.lobby.Inbox() <- lobby.Relay{Name: cm.Type, Payload: raw}
		return

	case protocol.EvtEndGameEnd:
		c.lobby.Inbox() <- lobby.Relay{Name: cm.Type, Payload: raw}
		c.lobby.Inbox() <- lobby.EndGame{PlayerID: c.playerID, Reply: errCh}

	default:
		c.write(ctx, protocol.Error("unknown event"))
		return
	}

	if err := c.await(errCh); err != nil {
		c.write(ctx, protocol.Error(err.Error()))
	}
}

func (c *conn) dispatch(errCh chan error, a engine.Action) {
	c.lobby.Inbox() <- lobby.Dispatch{PlayerID: c.playerID, Action: a, Reply: errCh}
}

func (c *conn) await(errCh chan error) error {
	select {
	case err := <-errCh:
		return err
	case <-time.After(dispatchTimeout):
		return errors.New("lobby did not respond")
	}
}
