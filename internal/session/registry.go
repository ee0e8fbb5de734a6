// Package session maps transport connections to players and players to
// lobbies. It is the only place that knows "this socket = this player".
package session

import "sync"

type Registry struct {
	mu          sync.RWMutex
	connPlayer  map[string]string // connection id -> player id
	playerConn  map[string]string // player id -> connection id
	playerLobby map[string]string // player id -> lobby id
}

func NewRegistry() *Registry {
	return &Registry{
		connPlayer:  make(map[string]string),
		playerConn:  make(map[string]string),
		playerLobby: make(map[string]string),
	}
}

// RegisterPlayer records which lobby a player belongs to. A player can
// exist here before any live connection is bound.
func (r *Registry) RegisterPlayer(playerID, lobbyID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.playerLobby[playerID] = lobbyID
}

// BindConnection associates a live connection with a player. Any
// previous binding for that player is replaced, which is how a
// reconnect with a fresh socket takes over the slot.
func (r *Registry) BindConnection(connID, playerID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if old, ok := r.playerConn[playerID]; ok {
		delete(r.connPlayer, old)
	}
	r.connPlayer[connID] = playerID
	r.playerConn[playerID] = connID
}

// UnbindConnection removes a connection's binding and reports which
// player and lobby it resolved to. Unknown connections are a no-op.
func (r *Registry) UnbindConnection(connID string) (playerID, lobbyID string, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	playerID, ok = r.connPlayer[connID]
	if !ok {
		return "", "", false
	}
	delete(r.connPlayer, connID)
	// A reconnect may have already rebound the player to a newer socket;
	// only drop the reverse entry if it still points at this connection.
	if r.playerConn[playerID] == connID {
		delete(r.playerConn, playerID)
	}
	lobbyID = r.playerLobby[playerID]
	delete(r.playerLobby, playerID)
	return playerID, lobbyID, true
}

// PlayerOf resolves a connection to its player.
func (r *Registry) PlayerOf(connID string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.connPlayer[connID]
	return id, ok
}

// LobbyOf resolves a player to its lobby.
func (r *Registry) LobbyOf(playerID string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.playerLobby[playerID]
	return id, ok
}
