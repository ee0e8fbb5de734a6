package engine

// PlaqueKind distinguishes the two authored content types.
type PlaqueKind string

const (
	KindRule   PlaqueKind = "rule"
	KindPrompt PlaqueKind = "prompt"
)

type Player struct {
	ID               string `json:"id"`
	Name             string `json:"name"`
	Points           int    `json:"points"`
	IsHost           bool   `json:"isHost"`
	RulesCompleted   bool   `json:"rulesCompleted"`
	PromptsCompleted bool   `json:"promptsCompleted"`
}

// Plaque is one authored rule or prompt. AssignedTo is only
// meaningful for rules.
type Plaque struct {
	ID         string `json:"id"`
	Text       string `json:"text"`
	AuthorID   string `json:"authorId"`
	Color      string `json:"plaqueColor"`
	IsActive   bool   `json:"isActive"`
	AssignedTo string `json:"assignedTo,omitempty"`
}

// State is the single source of truth for one lobby. It is only ever
// produced by NewState and Reduce; nothing mutates it in place.
type State struct {
	ID              string         `json:"id"`
	Code            string         `json:"code"`
	Players         []Player       `json:"players"`
	Rules           []Plaque       `json:"rules"`
	Prompts         []Plaque       `json:"prompts"`
	WheelSegments   []WheelSegment `json:"wheelSegments"`
	ActivePlayer    string         `json:"activePlayer,omitempty"`
	IsGameStarted   bool           `json:"isGameStarted"`
	IsWheelSpinning bool           `json:"isWheelSpinning"`
	GameEnded       bool           `json:"gameEnded"`
	RoundNumber     int            `json:"roundNumber"`
	Winner          string         `json:"winner,omitempty"`
	NumRules        int            `json:"numRules"`
	NumPrompts      int            `json:"numPrompts"`
}

const (
	DefaultNumRules   = 2
	DefaultNumPrompts = 2
)

func NewState(id, code string) State {
	return State{
		ID:         id,
		Code:       code,
		Players:    []Player{},
		Rules:      []Plaque{},
		Prompts:    []Plaque{},
		NumRules:   DefaultNumRules,
		NumPrompts: DefaultNumPrompts,
	}
}

// NonHostPlayers returns the players eligible for the turn rotation,
// in join order.
func (s State) NonHostPlayers() []Player {
	out := []Player{}
	for _, p := range s.Players {
		if !p.IsHost {
			out = append(out, p)
		}
	}
	return out
}

// FindPlayer returns the player with the given id and whether it exists.
func (s State) FindPlayer(id string) (Player, bool) {
	for _, p := range s.Players {
		if p.ID == id {
			return p, true
		}
	}
	return Player{}, false
}

// Host returns the current host, if any.
func (s State) Host() (Player, bool) {
	for _, p := range s.Players {
		if p.IsHost {
			return p, true
		}
	}
	return Player{}, false
}

// PlaqueColors is the fixed palette authored plaques cycle through so
// colors stay evenly spread.
var PlaqueColors = []string{"red", "blue", "green", "yellow", "purple", "orange"}

// NextPlaqueColor picks the palette entry for the n-th plaque of a kind.
func NextPlaqueColor(n int) string {
	return PlaqueColors[n%len(PlaqueColors)]
}
