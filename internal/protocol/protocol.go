// Package protocol defines the JSON messages exchanged over the
// websocket, one event per frame.
package protocol

import (
	"encoding/json"

	"github.com/JaceRockman/rulette-server/internal/engine"
)

// Client -> server event names.
const (
	EvtCreateLobby         = "create_lobby"
	EvtJoinLobby           = "join_lobby"
	EvtAddRule             = "add_rule"
	EvtAddPrompt           = "add_prompt"
	EvtAddPlaque           = "add_plaque"
	EvtUpdateRule          = "update_rule"
	EvtUpdatePrompt        = "update_prompt"
	EvtUpdatePlaque        = "update_plaque"
	EvtStartGame           = "start_game"
	EvtSpinWheel           = "spin_wheel"
	EvtSyncWheelSpin       = "synchronized_wheel_spin"
	EvtAdvanceToNext       = "advance_to_next_player"
	EvtAssignRule          = "assign_rule"
	EvtAssignRuleToCurrent = "assign_rule_to_current_player"
	EvtRemoveWheelLayer    = "remove_wheel_layer"
	EvtUpdatePoints        = "update_points"
	EvtUpdateGameSettings  = "update_game_settings"
	EvtRulesCompleted      = "rules_completed"
	EvtPromptsCompleted    = "prompts_completed"
	EvtNavigateToScreen    = "navigate_to_screen"
	EvtEndGameContinue     = "end_game_continue"
	EvtEndGameEnd          = "end_game_end"
)

// Server -> client event names.
const (
	EvtLobbyCreated = "lobby_created"
	EvtJoinedLobby  = "joined_lobby"
	EvtGameUpdated  = "game_updated"
	EvtGameStarted  = "game_started"
	EvtError        = "error"
)

type ClientMessage struct {
	Type         string  `json:"type"`
	PlayerName   string  `json:"playerName,omitempty"`
	Code         string  `json:"code,omitempty"`
	Text         string  `json:"text,omitempty"`
	PlaqueKind   string  `json:"plaqueKind,omitempty"`
	PlaqueID     string  `json:"plaqueId,omitempty"`
	IsActive     bool    `json:"isActive,omitempty"`
	RuleID       string  `json:"ruleId,omitempty"`
	PlayerID     string  `json:"playerId,omitempty"`
	SegmentID    string  `json:"segmentId,omitempty"`
	Points       int     `json:"points"`
	NumRules     int     `json:"numRules,omitempty"`
	NumPrompts   int     `json:"numPrompts,omitempty"`
	FinalIndex   int     `json:"finalIndex,omitempty"`
	ScrollAmount float64 `json:"scrollAmount,omitempty"`
	Duration     int     `json:"duration,omitempty"`
	Screen       string  `json:"screen,omitempty"`
}

type ServerMessage struct {
	Type     string          `json:"type"`
	Version  int             `json:"version,omitempty"`
	PlayerID string          `json:"playerId,omitempty"`
	Game     *engine.State   `json:"game,omitempty"`
	Message  string          `json:"message,omitempty"`
	Payload  json.RawMessage `json:"payload,omitempty"`
}

func Error(message string) ServerMessage {
	return ServerMessage{Type: EvtError, Message: message}
}
