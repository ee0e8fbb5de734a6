package engine

import "slices"

type ActionType string

const (
	ActAddPlayer            ActionType = "AddPlayer"
	ActRemovePlayer         ActionType = "RemovePlayer"
	ActSetHost              ActionType = "SetHost"
	ActAddRule              ActionType = "AddRule"
	ActAddPrompt            ActionType = "AddPrompt"
	ActUpdateRule           ActionType = "UpdateRule"
	ActUpdatePrompt         ActionType = "UpdatePrompt"
	ActMarkRulesCompleted   ActionType = "MarkRulesCompleted"
	ActMarkPromptsCompleted ActionType = "MarkPromptsCompleted"
	ActStartGame            ActionType = "StartGame"
	ActAdvanceToNextPlayer  ActionType = "AdvanceToNextPlayer"
	ActCreateWheelSegments  ActionType = "CreateWheelSegments"
	ActRemoveWheelLayer     ActionType = "RemoveWheelLayer"
	ActSetWheelSpinning     ActionType = "SetWheelSpinning"
	ActUpdatePoints         ActionType = "UpdatePoints"
	ActAssignRule           ActionType = "AssignRule"
	ActUpdateGameSettings   ActionType = "UpdateGameSettings"
	ActEndGame              ActionType = "EndGame"
)

// Action carries one state transition. Which fields are meaningful
// depends on Type; ids are always generated by the caller so Reduce
// stays deterministic.
type Action struct {
	Type       ActionType
	Player     Player // AddPlayer
	PlayerID   string // RemovePlayer, SetHost, Mark*, UpdatePoints, AssignRule target
	Plaque     Plaque // AddRule, AddPrompt
	PlaqueID   string // UpdateRule, UpdatePrompt, AssignRule
	Text       string // UpdateRule, UpdatePrompt
	Active     bool   // UpdateRule, UpdatePrompt
	SegmentID  string // RemoveWheelLayer
	Points     int    // UpdatePoints
	Spinning   bool   // SetWheelSpinning
	NumRules   int    // UpdateGameSettings
	NumPrompts int    // UpdateGameSettings
	WinnerID   string // EndGame
}

// Reduce maps (state, action) to the next state. It performs no I/O,
// generates no ids, and never mutates its input; every slice it touches
// is cloned first. Unrecognized action types return the state unchanged
// so the protocol can grow without crashing older lobbies.
//
// Reduce does not validate: authorization, point bounds, and target
// existence are the dispatcher's job.
func Reduce(s State, a Action) State {
	switch a.Type {
	case ActAddPlayer:
		s.Players = append(slices.Clone(s.Players), a.Player)
		return s

	case ActRemovePlayer:
		players := make([]Player, 0, len(s.Players))
		for _, p := range s.Players {
			if p.ID != a.PlayerID {
				players = append(players, p)
			}
		}
		s.Players = players
		return s

	case ActSetHost:
		// Single pass so no observer ever sees zero or two hosts.
		players := slices.Clone(s.Players)
		for i := range players {
			players[i].IsHost = players[i].ID == a.PlayerID
		}
		s.Players = players
		return s

	case ActAddRule:
		s.Rules = append(slices.Clone(s.Rules), a.Plaque)
		return s

	case ActAddPrompt:
		s.Prompts = append(slices.Clone(s.Prompts), a.Plaque)
		return s

	case ActUpdateRule:
		s.Rules = updatePlaque(s.Rules, a.PlaqueID, a.Text, a.Active)
		return s

	case ActUpdatePrompt:
		s.Prompts = updatePlaque(s.Prompts, a.PlaqueID, a.Text, a.Active)
		return s

	case ActMarkRulesCompleted:
		s.Players = setCompleted(s.Players, a.PlayerID, KindRule)
		return s

	case ActMarkPromptsCompleted:
		s.Players = setCompleted(s.Players, a.PlayerID, KindPrompt)
		return s

	case ActStartGame:
		nonHost := s.NonHostPlayers()
		if len(nonHost) == 0 {
			return s
		}
		s.IsGameStarted = true
		s.RoundNumber = 1
		s.ActivePlayer = nonHost[0].ID
		return s

	case ActAdvanceToNextPlayer:
		nonHost := s.NonHostPlayers()
		if len(nonHost) == 0 {
			s.ActivePlayer = ""
			return s
		}
		// Default to the first non-host when the current active player
		// is gone (removed mid-turn).
		next := nonHost[0].ID
		for i, p := range nonHost {
			if p.ID == s.ActivePlayer {
				next = nonHost[(i+1)%len(nonHost)].ID
				break
			}
		}
		s.ActivePlayer = next
		return s

	case ActCreateWheelSegments:
		s.WheelSegments = buildWheelSegments(s.Rules, s.Prompts)
		return s

	case ActRemoveWheelLayer:
		segs := slices.Clone(s.WheelSegments)
		for i := range segs {
			if segs[i].ID != a.SegmentID {
				continue
			}
			if segs[i].CurrentLayerIndex < len(segs[i].Layers)-1 {
				segs[i].CurrentLayerIndex++
			}
			// Peeling the landed segment resolves the spin.
			s.IsWheelSpinning = false
			break
		}
		s.WheelSegments = segs
		return s

	case ActSetWheelSpinning:
		s.IsWheelSpinning = a.Spinning
		return s

	case ActUpdatePoints:
		players := slices.Clone(s.Players)
		for i := range players {
			if players[i].ID == a.PlayerID {
				players[i].Points = a.Points
				break
			}
		}
		s.Players = players
		return s

	case ActAssignRule:
		rules := slices.Clone(s.Rules)
		for i := range rules {
			if rules[i].ID == a.PlaqueID {
				rules[i].AssignedTo = a.PlayerID
				break
			}
		}
		s.Rules = rules
		return s

	case ActUpdateGameSettings:
		s.NumRules = a.NumRules
		s.NumPrompts = a.NumPrompts
		return s

	case ActEndGame:
		s.GameEnded = true
		s.IsWheelSpinning = false
		s.Winner = a.WinnerID
		return s

	default:
		return s
	}
}

func updatePlaque(plaques []Plaque, id, text string, active bool) []Plaque {
	out := slices.Clone(plaques)
	for i := range out {
		if out[i].ID == id {
			out[i].Text = text
			out[i].IsActive = active
			break
		}
	}
	return out
}

func setCompleted(players []Player, id string, kind PlaqueKind) []Player {
	out := slices.Clone(players)
	for i := range out {
		if out[i].ID == id {
			if kind == KindRule {
				out[i].RulesCompleted = true
			} else {
				out[i].PromptsCompleted = true
			}
			break
		}
	}
	return out
}
