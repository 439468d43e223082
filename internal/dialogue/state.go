package dialogue

// State is the cursor into a scenario plus the path that led there.
type State struct {
	Current NodeID   `json:"current"`
	Path    []NodeID `json:"path"` // Visited nodes, root first
}

// NewState creates a cursor positioned at the root.
func NewState() *State {
	return &State{
		Current: RootID,
		Path:    []NodeID{RootID},
	}
}

// Advance moves the cursor to id.
func (s *State) Advance(id NodeID) {
	s.Current = id
	s.Path = append(s.Path, id)
}

// Reset puts the cursor back on the root and forgets the path.
func (s *State) Reset() {
	s.Current = RootID
	s.Path = []NodeID{RootID}
}

// Clone creates a deep copy of the state.
func (s *State) Clone() *State {
	return &State{
		Current: s.Current,
		Path:    append([]NodeID(nil), s.Path...),
	}
}
