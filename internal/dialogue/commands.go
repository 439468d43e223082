package dialogue

import "fmt"

// OutcomeKind describes what applying a choice should do.
type OutcomeKind int

const (
	// OutcomeTransition moves the cursor to Outcome.Next.
	OutcomeTransition OutcomeKind = iota
	// OutcomeRedirect opens Outcome.URL and leaves the cursor alone.
	OutcomeRedirect
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeTransition:
		return "transition"
	case OutcomeRedirect:
		return "redirect"
	default:
		return fmt.Sprintf("OutcomeKind(%d)", int(k))
	}
}

// Outcome is the result of dispatching a choice. It does not mutate anything.
type Outcome struct {
	Kind   OutcomeKind
	From   NodeID
	Choice Choice
	Next   NodeID // Transition only
	URL    string // Redirect only
}

// Resolve returns the node matching id.
func Resolve(s *Scenario, id NodeID) (*Node, error) {
	if s == nil {
		return nil, ErrNoScenario
	}
	node := s.Node(id)
	if node == nil {
		return nil, fmt.Errorf("%w: %s", ErrNodeNotFound, id)
	}
	return node, nil
}

// Dispatch works out what selecting choiceID on the cursor node means.
// A redirect with a URL never moves the cursor. Any other choice must point at
// an existing node; otherwise ErrNodeNotFound is returned.
func Dispatch(s *Scenario, cursor NodeID, choiceID string) (Outcome, error) {
	node, err := Resolve(s, cursor)
	if err != nil {
		return Outcome{}, err
	}

	choice, ok := node.Choice(choiceID)
	if !ok {
		return Outcome{}, fmt.Errorf("%w: %s on node %s", ErrChoiceNotFound, choiceID, cursor)
	}

	if choice.IsRedirect() && choice.URL != "" {
		return Outcome{
			Kind:   OutcomeRedirect,
			From:   cursor,
			Choice: choice,
			URL:    choice.URL,
		}, nil
	}

	if s.Node(choice.NextNodeID) == nil {
		return Outcome{}, fmt.Errorf("%w: %s (choice %s on node %s)", ErrNodeNotFound, choice.NextNodeID, choiceID, cursor)
	}

	return Outcome{
		Kind:   OutcomeTransition,
		From:   cursor,
		Choice: choice,
		Next:   choice.NextNodeID,
	}, nil
}

// Restart returns the root id after checking it resolves.
func Restart(s *Scenario) (NodeID, error) {
	if _, err := Resolve(s, RootID); err != nil {
		return "", err
	}
	return RootID, nil
}
