package engine

import "fmt"

type Modifier string

const (
	ModifierClone Modifier = "clone"
	ModifierFlip  Modifier = "flip"
	ModifierSwap  Modifier = "swap"
	ModifierUp    Modifier = "up"
	ModifierDown  Modifier = "down"
)

// Modifiers is the fixed modifier segment order on every wheel.
var Modifiers = []Modifier{
	ModifierClone,
	ModifierFlip,
	ModifierSwap,
	ModifierUp,
	ModifierDown,
}

type LayerKind string

const (
	LayerRule     LayerKind = "rule"
	LayerPrompt   LayerKind = "prompt"
	LayerModifier LayerKind = "modifier"
	LayerEnd      LayerKind = "end"
)

type WheelLayer struct {
	Kind     LayerKind `json:"kind"`
	PlaqueID string    `json:"plaqueId,omitempty"`
	Modifier Modifier  `json:"modifier,omitempty"`
}

// WheelSegment is one spin-outcome slot. Landing on it consumes the
// layer at CurrentLayerIndex; the index only ever moves forward.
type WheelSegment struct {
	ID                string       `json:"id"`
	Layers            []WheelLayer `json:"layers"`
	CurrentLayerIndex int          `json:"currentLayerIndex"`
}

// CurrentLayer returns the layer the segment would currently resolve to.
func (seg WheelSegment) CurrentLayer() WheelLayer {
	return seg.Layers[seg.CurrentLayerIndex]
}

// buildWheelSegments derives the wheel from the authored plaques. The
// derivation is deterministic: paired rule/prompt segments (cycling the
// shorter list when counts are uneven), then one segment per modifier,
// then a single terminal end segment. Segment ids are positional so a
// replayed action log rebuilds an identical wheel.
func buildWheelSegments(rules, prompts []Plaque) []WheelSegment {
	paired := len(rules)
	if len(prompts) > paired {
		paired = len(prompts)
	}

	segs := make([]WheelSegment, 0, paired+len(Modifiers)+1)
	for i := 0; i < paired; i++ {
		layers := []WheelLayer{}
		if len(rules) > 0 {
			layers = append(layers, WheelLayer{Kind: LayerRule, PlaqueID: rules[i%len(rules)].ID})
		}
		if len(prompts) > 0 {
			layers = append(layers, WheelLayer{Kind: LayerPrompt, PlaqueID: prompts[i%len(prompts)].ID})
		}
		segs = append(segs, WheelSegment{
			ID:     fmt.Sprintf("segment-%d", i),
			Layers: layers,
		})
	}

	for j, m := range Modifiers {
		segs = append(segs, WheelSegment{
			ID:     fmt.Sprintf("segment-%d", paired+j),
			Layers: []WheelLayer{{Kind: LayerModifier, Modifier: m}},
		})
	}

	segs = append(segs, WheelSegment{
		ID:     fmt.Sprintf("segment-%d", paired+len(Modifiers)),
		Layers: []WheelLayer{{Kind: LayerEnd}},
	})

	return segs
}
