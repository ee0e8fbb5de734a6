package engine

import (
	"encoding/json"
	"testing"
)

func lobbyState(players ...Player) State {
	s := NewState("g1", "ABCD")
	s.Players = players
	return s
}

func countHosts(s State) int {
	n := 0
	for _, p := range s.Players {
		if p.IsHost {
			n++
		}
	}
	return n
}

func TestAddRemovePlayer(t *testing.T) {
	s := lobbyState()
	s = Reduce(s, Action{Type: ActAddPlayer, Player: Player{ID: "h", Name: "Hank", IsHost: true}})
	s = Reduce(s, Action{Type: ActAddPlayer, Player: Player{ID: "a", Name: "Ada"}})

	if len(s.Players) != 2 {
		t.Fatalf("want 2 players, got %d", len(s.Players))
	}
	if s.Players[0].ID != "h" || s.Players[1].ID != "a" {
		t.Fatalf("join order not preserved: %+v", s.Players)
	}

	s = Reduce(s, Action{Type: ActRemovePlayer, PlayerID: "h"})
	if len(s.Players) != 1 || s.Players[0].ID != "a" {
		t.Fatalf("expected only player a to remain, got %+v", s.Players)
	}
}

func TestSetHost_ExactlyOneHost(t *testing.T) {
	s := lobbyState(
		Player{ID: "h", IsHost: true},
		Player{ID: "a"},
		Player{ID: "b"},
	)

	s = Reduce(s, Action{Type: ActSetHost, PlayerID: "b"})
	if countHosts(s) != 1 {
		t.Fatalf("want exactly one host, got %d", countHosts(s))
	}
	if p, _ := s.Host(); p.ID != "b" {
		t.Fatalf("want host b, got %q", p.ID)
	}
}

func TestSingleHostInvariantUnderChurn(t *testing.T) {
	s := lobbyState(Player{ID: "h", IsHost: true})
	actions := []Action{
		{Type: ActAddPlayer, Player: Player{ID: "a"}},
		{Type: ActAddPlayer, Player: Player{ID: "b"}},
		{Type: ActRemovePlayer, PlayerID: "h"},
		{Type: ActSetHost, PlayerID: "a"},
		{Type: ActAddPlayer, Player: Player{ID: "c"}},
		{Type: ActRemovePlayer, PlayerID: "b"},
	}
	for i, a := range actions {
		s = Reduce(s, a)
		if len(s.Players) > 0 && a.Type == ActSetHost && countHosts(s) != 1 {
			t.Fatalf("after action %d: want one host, got %d", i, countHosts(s))
		}
	}
	if countHosts(s) != 1 {
		t.Fatalf("final state: want one host, got %d", countHosts(s))
	}
}

func TestStartGame(t *testing.T) {
	s := lobbyState(
		Player{ID: "h", IsHost: true},
		Player{ID: "a"},
		Player{ID: "b"},
	)
	s = Reduce(s, Action{Type: ActStartGame})

	if !s.IsGameStarted || s.RoundNumber != 1 {
		t.Fatalf("start: started=%v round=%d", s.IsGameStarted, s.RoundNumber)
	}
	if s.ActivePlayer != "a" {
		t.Fatalf("want first non-host active, got %q", s.ActivePlayer)
	}
}

func TestStartGame_NoNonHostPlayersIsNoop(t *testing.T) {
	s := lobbyState(Player{ID: "h", IsHost: true})
	next := Reduce(s, Action{Type: ActStartGame})
	if next.IsGameStarted || next.ActivePlayer != "" {
		t.Fatalf("expected no-op, got %+v", next)
	}
}

func TestAdvanceToNextPlayer(t *testing.T) {
	cases := []struct {
		name   string
		active string
		want   string
	}{
		{name: "middle of rotation", active: "b", want: "c"},
		{name: "wraps to first", active: "c", want: "a"},
		{name: "missing active falls back to first", active: "gone", want: "a"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := lobbyState(
				Player{ID: "h", IsHost: true},
				Player{ID: "a"},
				Player{ID: "b"},
				Player{ID: "c"},
			)
			s.ActivePlayer = tc.active
			s = Reduce(s, Action{Type: ActAdvanceToNextPlayer})
			if s.ActivePlayer != tc.want {
				t.Fatalf("got %q, want %q", s.ActivePlayer, tc.want)
			}
		})
	}
}

func TestAdvance_FullRotationReturnsToStart(t *testing.T) {
	s := lobbyState(
		Player{ID: "h", IsHost: true},
		Player{ID: "a"},
		Player{ID: "b"},
		Player{ID: "c"},
	)
	s.ActivePlayer = "b"
	for i := 0; i < 3; i++ {
		s = Reduce(s, Action{Type: ActAdvanceToNextPlayer})
	}
	if s.ActivePlayer != "b" {
		t.Fatalf("after full rotation want b, got %q", s.ActivePlayer)
	}
}

func TestAdvance_NoNonHostClearsActive(t *testing.T) {
	s := lobbyState(Player{ID: "h", IsHost: true})
	s.ActivePlayer = "gone"
	s = Reduce(s, Action{Type: ActAdvanceToNextPlayer})
	if s.ActivePlayer != "" {
		t.Fatalf("want cleared active player, got %q", s.ActivePlayer)
	}
}

func TestUpdateRule_ReplacesByID(t *testing.T) {
	s := lobbyState()
	s = Reduce(s, Action{Type: ActAddRule, Plaque: Plaque{ID: "r1", Text: "old", IsActive: true}})
	s = Reduce(s, Action{Type: ActUpdateRule, PlaqueID: "r1", Text: "new", Active: false})

	if s.Rules[0].Text != "new" || s.Rules[0].IsActive {
		t.Fatalf("update not applied: %+v", s.Rules[0])
	}

	before := s
	after := Reduce(s, Action{Type: ActUpdateRule, PlaqueID: "nope", Text: "x"})
	if len(after.Rules) != len(before.Rules) || after.Rules[0] != before.Rules[0] {
		t.Fatalf("update of unknown id must be a no-op")
	}
}

func TestAssignRule_Reassignment(t *testing.T) {
	s := lobbyState(Player{ID: "a"}, Player{ID: "b"})
	s = Reduce(s, Action{Type: ActAddRule, Plaque: Plaque{ID: "r1", Text: "hop on one leg"}})

	s = Reduce(s, Action{Type: ActAssignRule, PlaqueID: "r1", PlayerID: "a"})
	if s.Rules[0].AssignedTo != "a" {
		t.Fatalf("want assigned to a, got %q", s.Rules[0].AssignedTo)
	}

	// Swap/pass flows re-assign an already-assigned rule.
	s = Reduce(s, Action{Type: ActAssignRule, PlaqueID: "r1", PlayerID: "b"})
	if s.Rules[0].AssignedTo != "b" {
		t.Fatalf("want reassigned to b, got %q", s.Rules[0].AssignedTo)
	}
}

func TestMarkCompleted(t *testing.T) {
	s := lobbyState(Player{ID: "a"}, Player{ID: "b"})
	s = Reduce(s, Action{Type: ActMarkRulesCompleted, PlayerID: "a"})
	s = Reduce(s, Action{Type: ActMarkPromptsCompleted, PlayerID: "b"})

	if !s.Players[0].RulesCompleted || s.Players[0].PromptsCompleted {
		t.Fatalf("player a flags wrong: %+v", s.Players[0])
	}
	if s.Players[1].RulesCompleted || !s.Players[1].PromptsCompleted {
		t.Fatalf("player b flags wrong: %+v", s.Players[1])
	}
}

func TestUpdatePoints_SetsAbsoluteValue(t *testing.T) {
	s := lobbyState(Player{ID: "a", Points: 10})
	s = Reduce(s, Action{Type: ActUpdatePoints, PlayerID: "a", Points: 42})
	if s.Players[0].Points != 42 {
		t.Fatalf("want 42 points, got %d", s.Players[0].Points)
	}
}

func TestEndGame(t *testing.T) {
	s := lobbyState(Player{ID: "a"})
	s.IsWheelSpinning = true
	s = Reduce(s, Action{Type: ActEndGame, WinnerID: "a"})
	if !s.GameEnded || s.Winner != "a" || s.IsWheelSpinning {
		t.Fatalf("end game state wrong: %+v", s)
	}
}

func TestUnknownActionIsNoop(t *testing.T) {
	s := lobbyState(Player{ID: "h", IsHost: true}, Player{ID: "a"})
	s.ActivePlayer = "a"

	before, err := json.Marshal(s)
	if err != nil {
		t.Fatal(err)
	}
	next := Reduce(s, Action{Type: "SomeFutureAction", PlayerID: "a"})
	after, err := json.Marshal(next)
	if err != nil {
		t.Fatal(err)
	}
	if string(before) != string(after) {
		t.Fatalf("unknown action must not change state:\n%s\n%s", before, after)
	}
}

func TestReplayDeterminism(t *testing.T) {
	log := []Action{
		{Type: ActAddPlayer, Player: Player{ID: "h", Name: "Hank", IsHost: true}},
		{Type: ActAddPlayer, Player: Player{ID: "a", Name: "Ada"}},
		{Type: ActAddPlayer, Player: Player{ID: "b", Name: "Bea"}},
		{Type: ActAddRule, Plaque: Plaque{ID: "r1", Text: "speak in rhyme", AuthorID: "a", Color: NextPlaqueColor(0), IsActive: true}},
		{Type: ActAddPrompt, Plaque: Plaque{ID: "p1", Text: "do an impression", AuthorID: "b", Color: NextPlaqueColor(0), IsActive: true}},
		{Type: ActMarkRulesCompleted, PlayerID: "a"},
		{Type: ActCreateWheelSegments},
		{Type: ActStartGame},
		{Type: ActRemoveWheelLayer, SegmentID: "segment-0"},
		{Type: ActAdvanceToNextPlayer},
		{Type: ActUpdatePoints, PlayerID: "a", Points: 7},
		{Type: ActEndGame, WinnerID: "a"},
	}

	replay := func() []byte {
		s := NewState("g1", "ABCD")
		for _, a := range log {
			s = Reduce(s, a)
		}
		b, err := json.Marshal(s)
		if err != nil {
			t.Fatal(err)
		}
		return b
	}

	first, second := replay(), replay()
	if string(first) != string(second) {
		t.Fatalf("replay not deterministic:\n%s\n%s", first, second)
	}
}

func TestReduceDoesNotMutateInput(t *testing.T) {
	s := lobbyState(Player{ID: "h", IsHost: true}, Player{ID: "a"})
	s = Reduce(s, Action{Type: ActAddRule, Plaque: Plaque{ID: "r1", Text: "original"}})

	before, err := json.Marshal(s)
	if err != nil {
		t.Fatal(err)
	}

	_ = Reduce(s, Action{Type: ActSetHost, PlayerID: "a"})
	_ = Reduce(s, Action{Type: ActUpdateRule, PlaqueID: "r1", Text: "changed", Active: true})
	_ = Reduce(s, Action{Type: ActRemovePlayer, PlayerID: "h"})

	after, err := json.Marshal(s)
	if err != nil {
		t.Fatal(err)
	}
	if string(before) != string(after) {
		t.Fatalf("input state was mutated:\n%s\n%s", before, after)
	}
}
