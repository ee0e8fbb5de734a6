// Package hub is the lobby directory. One actor goroutine owns both
// lookup maps, so a lobby is always reachable under its id and its
// join code or under neither, never just one.
package hub

import (
	"context"
	"crypto/rand"
	"math/big"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/JaceRockman/rulette-server/internal/engine"
	"github.com/JaceRockman/rulette-server/internal/lobby"
	"github.com/JaceRockman/rulette-server/internal/store"
)

type HubMsg interface{ isHubMsg() }

// CreateLobby creates a fresh lobby with the given player seated as
// host. The join code is generated and registered inside the actor
// loop, so a code can never be handed to two lobbies.
type CreateLobby struct {
	HostID   string
	HostName string
	Reply    chan *lobby.Lobby
}

type GetLobby struct {
	ID    string
	Reply chan *lobby.Lobby
}

type GetByCode struct {
	Code  string
	Reply chan *lobby.Lobby
}

type RemoveLobby struct{ ID string }

type ShutdownHub struct{}

func (CreateLobby) isHubMsg() {}
func (GetLobby) isHubMsg()    {}
func (GetByCode) isHubMsg()   {}
func (RemoveLobby) isHubMsg() {}
func (ShutdownHub) isHubMsg() {}

type Options struct {
	Logger    *zap.Logger
	Snapshots store.SnapshotStore
}

type Hub struct {
	inbox  chan HubMsg
	byID   map[string]*lobby.Lobby
	byCode map[string]*lobby.Lobby
	log    *zap.Logger
	snaps  store.SnapshotStore
	ctx    context.Context
	cancel context.CancelFunc
}

func NewHub(parent context.Context, opts Options) *Hub {
	ctx, cancel := context.WithCancel(parent)
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Snapshots == nil {
		opts.Snapshots = store.Noop{}
	}

	h := &Hub{
		inbox:  make(chan HubMsg, 64),
		byID:   make(map[string]*lobby.Lobby),
		byCode: make(map[string]*lobby.Lobby),
		log:    opts.Logger,
		snaps:  opts.Snapshots,
		ctx:    ctx,
		cancel: cancel,
	}
	go h.loop()
	return h
}

func (h *Hub) Inbox() chan<- HubMsg { return h.inbox }

func (h *Hub) loop() {
	for {
		select {
		case <-h.ctx.Done():
			return

		case m := <-h.inbox:
			switch msg := m.(type) {
			case CreateLobby:
				msg.Reply <- h.create(msg.HostID, msg.HostName)

			case GetLobby:
				msg.Reply <- h.byID[msg.ID] // May be nil

			case GetByCode:
				msg.Reply <- h.byCode[msg.Code] // May be nil

			case RemoveLobby:
				if lb := h.byID[msg.ID]; lb != nil {
					delete(h.byCode, lb.Code())
					delete(h.byID, msg.ID)
					h.log.Info("lobby removed", zap.String("lobby", msg.ID), zap.String("code", lb.Code()))
				}

			case ShutdownHub:
				for _, lb := range h.byID {
					lb.Inbox() <- lobby.Shutdown{}
				}
				clear(h.byID)
				clear(h.byCode)
				h.cancel()
			}
		}
	}
}

func (h *Hub) create(hostID, hostName string) *lobby.Lobby {
	code, err := h.uniqueCode()
	if err != nil {
		h.log.Error("code generation failed", zap.Error(err))
		return nil
	}

	state := engine.NewState(uuid.NewString(), code)
	state = engine.Reduce(state, engine.Action{
		Type:   engine.ActAddPlayer,
		Player: engine.Player{ID: hostID, Name: hostName, IsHost: true},
	})

	lb := lobby.New(h.ctx, state, lobby.Options{
		Logger:    h.log,
		Snapshots: h.snaps,
		OnEmpty: func(id string) {
			// Runs on the dying lobby goroutine; hand off so it never
			// blocks on a busy hub.
			go func() { h.inbox <- RemoveLobby{ID: id} }()
		},
	})
	h.byID[state.ID] = lb
	h.byCode[code] = lb
	h.log.Info("lobby created", zap.String("lobby", state.ID), zap.String("code", code))
	return lb
}

const codeCharset = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"

// CodeLength is the join code size shown to players.
const CodeLength = 4

// uniqueCode retries until the generated code is unused. Check and
// registration both happen on the hub goroutine, so there is no window
// for a duplicate.
func (h *Hub) uniqueCode() (string, error) {
	for {
		code, err := generateCode()
		if err != nil {
			return "", err
		}
		if h.byCode[code] == nil {
			return code, nil
		}
		h.log.Debug("join code collision, regenerating", zap.String("code", code))
	}
}

func generateCode() (string, error) {
	code := make([]byte, CodeLength)
	for i := range code {
		num, err := rand.Int(rand.Reader, big.NewInt(int64(len(codeCharset))))
		if err != nil {
			return "", err
		}
		code[i] = codeCharset[num.Int64()]
	}
	return string(code), nil
}
