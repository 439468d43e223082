package dialogue

// NodeID uniquely identifies a node within a scenario.
type NodeID string

// Speaker tags who is talking. Presentation only.
type Speaker string

const (
	SpeakerSystem Speaker = "System"
	SpeakerAgent  Speaker = "Agent"
	SpeakerUser   Speaker = "User"
)

// ActionRedirect marks a choice that opens an external URL instead of
// moving through the graph.
const ActionRedirect = "redirect"

// Choice is a user-selectable edge out of a node.
type Choice struct {
	ID         string `json:"id"`                   // Unique within the parent node
	Text       string `json:"text"`                 // Label shown to the user
	NextNodeID NodeID `json:"nextNodeId,omitempty"` // Target for standard transitions
	Action     string `json:"action,omitempty"`     // "redirect" or empty
	URL        string `json:"url,omitempty"`        // Required for redirects
}

// IsRedirect reports whether the choice carries the redirect marker.
func (c Choice) IsRedirect() bool {
	return c.Action == ActionRedirect
}

// Node is a single dialogue state.
type Node struct {
	ID           NodeID   `json:"id"`
	Speaker      Speaker  `json:"speaker,omitempty"`
	Text         string   `json:"text"`
	Choices      []Choice `json:"choices,omitempty"`
	ImageSrc     string   `json:"imageSrc,omitempty"`
	AnimationCue string   `json:"animationCue,omitempty"` // Cue forwarded to the 3D engine
	IsEnding     bool     `json:"isEnding,omitempty"`     // Gates the restart affordance
}

// Choice returns the choice with the given id.
func (n *Node) Choice(id string) (Choice, bool) {
	for _, c := range n.Choices {
		if c.ID == id {
			return c, true
		}
	}
	return Choice{}, false
}

func (n *Node) clone() *Node {
	c := *n
	c.Choices = append([]Choice(nil), n.Choices...)
	return &c
}
