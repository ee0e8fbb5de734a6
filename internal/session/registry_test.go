package session

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRegistry_BindAndResolve(t *testing.T) {
	r := NewRegistry()

	r.RegisterPlayer("p1", "lobby1")
	r.BindConnection("c1", "p1")

	player, ok := r.PlayerOf("c1")
	require.True(t, ok)
	require.Equal(t, "p1", player)

	lobby, ok := r.LobbyOf("p1")
	require.True(t, ok)
	require.Equal(t, "lobby1", lobby)
}

func TestRegistry_UnbindResolvesOwner(t *testing.T) {
	r := NewRegistry()
	r.RegisterPlayer("p1", "lobby1")
	r.BindConnection("c1", "p1")

	player, lobby, ok := r.UnbindConnection("c1")
	require.True(t, ok)
	require.Equal(t, "p1", player)
	require.Equal(t, "lobby1", lobby)

	_, ok = r.PlayerOf("c1")
	require.False(t, ok)
	_, ok = r.LobbyOf("p1")
	require.False(t, ok)
}

func TestRegistry_UnbindUnknownConnectionIsNoop(t *testing.T) {
	r := NewRegistry()
	_, _, ok := r.UnbindConnection("never-bound")
	require.False(t, ok)
}

func TestRegistry_ReconnectReplacesBinding(t *testing.T) {
	r := NewRegistry()
	r.RegisterPlayer("p1", "lobby1")
	r.BindConnection("c1", "p1")

	// Fresh socket for the same player takes over the slot.
	r.BindConnection("c2", "p1")

	_, ok := r.PlayerOf("c1")
	require.False(t, ok, "stale connection should no longer resolve")

	player, ok := r.PlayerOf("c2")
	require.True(t, ok)
	require.Equal(t, "p1", player)

	// The stale socket closing afterward must not tear down the player.
	_, _, ok = r.UnbindConnection("c1")
	require.False(t, ok)

	lobby, ok := r.LobbyOf("p1")
	require.True(t, ok)
	require.Equal(t, "lobby1", lobby)
}
