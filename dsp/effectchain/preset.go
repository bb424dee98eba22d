package effectchain

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Preset errors.
var (
	ErrInvalidPreset = errors.New("effectchain: invalid preset")
	ErrDuplicateNode = errors.New("effectchain: duplicate node id")
)

// presetNode is one JSON rack slot.
type presetNode struct {
	ID       string `json:"id"`
	Type     string `json:"type"`
	Bypassed bool   `json:"bypassed"`
	Params   any    `json:"params"`
}

// presetState is the root JSON structure of a preset.
type presetState struct {
	Name  string       `json:"name"`
	Nodes []presetNode `json:"nodes"`
}

// Preset is a parsed rack: the nodes in signal order.
type Preset struct {
	Name  string
	Nodes []Params
}

// ParsePreset decodes a JSON preset. Nodes without an id or type are
// skipped; a repeated id is an error. Empty input yields an empty rack.
func ParsePreset(raw []byte) (*Preset, error) {
	if len(raw) == 0 {
		return &Preset{}, nil
	}

	var state presetState

	err := json.Unmarshal(raw, &state)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidPreset, err)
	}

	p := &Preset{Name: state.Name, Nodes: make([]Params, 0, len(state.Nodes))}
	seen := make(map[string]struct{}, len(state.Nodes))

	for _, n := range state.Nodes {
		if n.ID == "" || n.Type == "" {
			continue
		}

		if _, dup := seen[n.ID]; dup {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateNode, n.ID)
		}

		seen[n.ID] = struct{}{}

		num, str := parseNodeParams(n.Params)
		p.Nodes = append(p.Nodes, Params{
			ID:       n.ID,
			Type:     n.Type,
			Bypassed: n.Bypassed,
			Num:      num,
			Str:      str,
		})
	}

	return p, nil
}

// parseNodeParams splits a raw JSON params object into numeric and string
// parameters. Booleans become 0 or 1.
func parseNodeParams(raw any) (map[string]float64, map[string]string) {
	num := map[string]float64{}
	str := map[string]string{}

	params, ok := raw.(map[string]any)
	if !ok || params == nil {
		return num, str
	}

	for k, v := range params {
		switch t := v.(type) {
		case float64:
			num[k] = t
		case string:
			str[k] = t
		case bool:
			if t {
				num[k] = 1
			} else {
				num[k] = 0
			}
		}
	}

	return num, str
}
