// Package dialogue implements the scripted conversation graph behind the
// chat widget: nodes joined by choices, plus the pure transitions over it.
//
// A Scenario is immutable once built. Resolve, Dispatch and Restart are pure
// with respect to (scenario, cursor, choice); the caller owns the cursor.
package dialogue

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"
)

// RootID is the well-known entry node of every scenario.
const RootID NodeID = "start"

// Scenario is the full graph of dialogue nodes for one language.
type Scenario struct {
	Lang  string
	nodes map[NodeID]*Node
	ids   []NodeID // sorted, for stable iteration
}

var (
	// ErrNodeNotFound is returned when a referenced node doesn't exist.
	ErrNodeNotFound = errors.New("dialogue: node not found")
	// ErrChoiceNotFound is returned when a choice is not offered by the current node.
	ErrChoiceNotFound = errors.New("dialogue: choice not found")
	// ErrInvalidScenario is returned when a document fails validation.
	ErrInvalidScenario = errors.New("dialogue: invalid scenario")
	// ErrNoScenario is returned when an operation needs a loaded scenario.
	ErrNoScenario = errors.New("dialogue: no scenario loaded")
)

// NewScenario copies and validates the provided nodes.
func NewScenario(lang string, nodes []*Node) (*Scenario, error) {
	if len(nodes) == 0 {
		return nil, fmt.Errorf("%w: no nodes", ErrInvalidScenario)
	}

	s := &Scenario{
		Lang:  lang,
		nodes: make(map[NodeID]*Node, len(nodes)),
	}

	// Index all nodes
	for _, node := range nodes {
		if node == nil {
			return nil, fmt.Errorf("%w: nil node", ErrInvalidScenario)
		}
		if node.ID == "" {
			return nil, fmt.Errorf("%w: node with empty id", ErrInvalidScenario)
		}
		if _, dup := s.nodes[node.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate node %s", ErrInvalidScenario, node.ID)
		}
		s.nodes[node.ID] = node.clone()
		s.ids = append(s.ids, node.ID)
	}
	sort.Slice(s.ids, func(i, j int) bool { return s.ids[i] < s.ids[j] })

	if _, ok := s.nodes[RootID]; !ok {
		return nil, fmt.Errorf("%w: missing root node %q", ErrInvalidScenario, RootID)
	}
	for _, id := range s.ids {
		if err := validateNode(s.nodes[id]); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Parse decodes a scenario document: a JSON object keyed by node id.
// A node may omit its id, in which case the key is used.
func Parse(lang string, data []byte) (*Scenario, error) {
	var doc map[NodeID]*Node
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidScenario, err)
	}
	if len(doc) == 0 {
		return nil, fmt.Errorf("%w: empty document", ErrInvalidScenario)
	}

	nodes := make([]*Node, 0, len(doc))
	for key, node := range doc {
		if node == nil {
			return nil, fmt.Errorf("%w: node %s is null", ErrInvalidScenario, key)
		}
		if node.ID == "" {
			node.ID = key
		} else if node.ID != key {
			return nil, fmt.Errorf("%w: node keyed %s declares id %s", ErrInvalidScenario, key, node.ID)
		}
		nodes = append(nodes, node)
	}
	return NewScenario(lang, nodes)
}

// MarshalJSON encodes the scenario in the same shape Parse accepts.
func (s *Scenario) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.nodes)
}

// Node returns a node by ID, or nil if not found. The node must not be modified.
func (s *Scenario) Node(id NodeID) *Node {
	if s == nil {
		return nil
	}
	return s.nodes[id]
}

// Len returns the number of nodes.
func (s *Scenario) Len() int {
	if s == nil {
		return 0
	}
	return len(s.nodes)
}

// IDs returns all node ids in sorted order.
func (s *Scenario) IDs() []NodeID {
	if s == nil {
		return nil
	}
	return append([]NodeID(nil), s.ids...)
}

func validateNode(n *Node) error {
	if strings.TrimSpace(n.Text) == "" && n.ImageSrc == "" {
		return fmt.Errorf("%w: node %s has neither text nor image", ErrInvalidScenario, n.ID)
	}
	seen := make(map[string]struct{}, len(n.Choices))
	for i, c := range n.Choices {
		if c.ID == "" {
			return fmt.Errorf("%w: node %s choice #%d has empty id", ErrInvalidScenario, n.ID, i)
		}
		if _, dup := seen[c.ID]; dup {
			return fmt.Errorf("%w: node %s has duplicate choice %s", ErrInvalidScenario, n.ID, c.ID)
		}
		seen[c.ID] = struct{}{}

		if c.IsRedirect() {
			if err := validateRedirectURL(c.URL); err != nil {
				return fmt.Errorf("%w: node %s choice %s: %v", ErrInvalidScenario, n.ID, c.ID, err)
			}
			continue
		}
		if c.NextNodeID == "" {
			return fmt.Errorf("%w: node %s choice %s has no nextNodeId", ErrInvalidScenario, n.ID, c.ID)
		}
	}
	return nil
}

func validateRedirectURL(raw string) error {
	if raw == "" {
		return errors.New("redirect without url")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("bad url %q: %w", raw, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("url %q is not absolute http(s)", raw)
	}
	return nil
}
