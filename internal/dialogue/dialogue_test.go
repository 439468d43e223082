package dialogue

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testDoc = `{
	"start": {
		"speaker": "Agent",
		"text": "Hello",
		"animationCue": "wave",
		"choices": [
			{"id": "next", "text": "Go on", "nextNodeId": "n2"},
			{"id": "ghost", "text": "Into the void", "nextNodeId": "ghost"},
			{"id": "site", "text": "Visit", "action": "redirect", "url": "https://example.com"}
		]
	},
	"n2": {"id": "n2", "text": "Second", "choices": [{"id": "end", "text": "Finish", "nextNodeId": "bye"}]},
	"bye": {"text": "Bye", "isEnding": true},
	"island": {"text": "Nobody comes here"}
}`

func mustParse(t *testing.T) *Scenario {
	t.Helper()
	s, err := Parse("en", []byte(testDoc))
	require.NoError(t, err)
	return s
}

// TestParseFillsIDsFromKeys tests that nodes without an id take their key
func TestParseFillsIDsFromKeys(t *testing.T) {
	s := mustParse(t)

	assert.Equal(t, "en", s.Lang)
	assert.Equal(t, 4, s.Len())
	assert.Equal(t, []NodeID{"bye", "island", "n2", "start"}, s.IDs())

	bye := s.Node("bye")
	require.NotNil(t, bye)
	assert.Equal(t, NodeID("bye"), bye.ID)
	assert.True(t, bye.IsEnding)
	assert.Equal(t, SpeakerAgent, s.Node("start").Speaker)
	assert.Equal(t, "wave", s.Node("start").AnimationCue)
}

func TestParseRejectsMalformedDocuments(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"not json", `{"start":`},
		{"array", `[{"id":"start","text":"x"}]`},
		{"empty object", `{}`},
		{"null", `null`},
		{"null node", `{"start": null}`},
		{"missing root", `{"other": {"text": "x"}}`},
		{"id mismatch", `{"start": {"id": "other", "text": "x"}}`},
		{"no text or image", `{"start": {"text": "  "}}`},
		{"empty choice id", `{"start": {"text": "x", "choices": [{"text": "a", "nextNodeId": "start"}]}}`},
		{"duplicate choice", `{"start": {"text": "x", "choices": [{"id": "a", "nextNodeId": "start"}, {"id": "a", "nextNodeId": "start"}]}}`},
		{"missing target", `{"start": {"text": "x", "choices": [{"id": "a", "text": "a"}]}}`},
		{"redirect without url", `{"start": {"text": "x", "choices": [{"id": "a", "action": "redirect"}]}}`},
		{"redirect relative url", `{"start": {"text": "x", "choices": [{"id": "a", "action": "redirect", "url": "/portal"}]}}`},
		{"redirect javascript url", `{"start": {"text": "x", "choices": [{"id": "a", "action": "redirect", "url": "javascript:alert(1)"}]}}`},
		{"wrong field type", `{"start": {"text": 42}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse("en", []byte(tt.doc))
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidScenario)
		})
	}
}

func TestParseAcceptsImageOnlyNode(t *testing.T) {
	s, err := Parse("en", []byte(`{"start": {"imageSrc": "/a.png"}}`))
	require.NoError(t, err)
	assert.Equal(t, "/a.png", s.Node(RootID).ImageSrc)
}

func TestNewScenarioRejectsDuplicates(t *testing.T) {
	_, err := NewScenario("en", []*Node{
		{ID: "start", Text: "a"},
		{ID: "start", Text: "b"},
	})
	assert.ErrorIs(t, err, ErrInvalidScenario)

	_, err = NewScenario("en", nil)
	assert.ErrorIs(t, err, ErrInvalidScenario)
}

// TestScenarioIsIsolatedFromInput tests that later edits to the input don't leak in
func TestScenarioIsIsolatedFromInput(t *testing.T) {
	nodes := []*Node{{ID: "start", Text: "a", Choices: []Choice{{ID: "x", NextNodeID: "start"}}}}
	s, err := NewScenario("en", nodes)
	require.NoError(t, err)

	nodes[0].Text = "changed"
	nodes[0].Choices[0].NextNodeID = "elsewhere"

	assert.Equal(t, "a", s.Node(RootID).Text)
	assert.Equal(t, NodeID("start"), s.Node(RootID).Choices[0].NextNodeID)
}

func TestMarshalRoundTripKeepsShape(t *testing.T) {
	s := mustParse(t)
	data, err := json.Marshal(s)
	require.NoError(t, err)

	again, err := Parse("en", data)
	require.NoError(t, err)
	for _, id := range s.IDs() {
		if diff := cmp.Diff(s.Node(id), again.Node(id)); diff != "" {
			t.Errorf("node %s mismatch (-want +got):\n%s", id, diff)
		}
	}
}

func TestResolve(t *testing.T) {
	s := mustParse(t)

	node, err := Resolve(s, RootID)
	require.NoError(t, err)
	assert.Equal(t, RootID, node.ID)

	again, err := Resolve(s, RootID)
	require.NoError(t, err)
	assert.Same(t, node, again, "resolve should be referentially stable")

	_, err = Resolve(s, "ghost")
	assert.ErrorIs(t, err, ErrNodeNotFound)

	_, err = Resolve(nil, RootID)
	assert.ErrorIs(t, err, ErrNoScenario)
}

func TestDispatchTransition(t *testing.T) {
	s := mustParse(t)

	out, err := Dispatch(s, RootID, "next")
	require.NoError(t, err)
	assert.Equal(t, OutcomeTransition, out.Kind)
	assert.Equal(t, NodeID("n2"), out.Next)
	assert.Equal(t, RootID, out.From)
	assert.Equal(t, "next", out.Choice.ID)
}

func TestDispatchDeadLink(t *testing.T) {
	s := mustParse(t)

	_, err := Dispatch(s, RootID, "ghost")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNodeNotFound)
	assert.Contains(t, err.Error(), "ghost")
}

func TestDispatchRedirect(t *testing.T) {
	s := mustParse(t)

	out, err := Dispatch(s, RootID, "site")
	require.NoError(t, err)
	assert.Equal(t, OutcomeRedirect, out.Kind)
	assert.Equal(t, "https://example.com", out.URL)
	assert.Empty(t, out.Next)
}

func TestDispatchUnknownChoice(t *testing.T) {
	s := mustParse(t)

	_, err := Dispatch(s, RootID, "end")
	assert.ErrorIs(t, err, ErrChoiceNotFound)

	_, err = Dispatch(s, "ghost", "next")
	assert.ErrorIs(t, err, ErrNodeNotFound)
}

func TestRestart(t *testing.T) {
	s := mustParse(t)
	id, err := Restart(s)
	require.NoError(t, err)
	assert.Equal(t, RootID, id)

	_, err = Restart(nil)
	assert.True(t, errors.Is(err, ErrNoScenario))
}

func TestStateAdvanceAndReset(t *testing.T) {
	st := NewState()
	st.Advance("n2")
	st.Advance("bye")
	assert.Equal(t, NodeID("bye"), st.Current)
	assert.Equal(t, []NodeID{"start", "n2", "bye"}, st.Path)

	clone := st.Clone()
	st.Reset()
	assert.Equal(t, RootID, st.Current)
	assert.Equal(t, []NodeID{"start"}, st.Path)
	assert.Equal(t, NodeID("bye"), clone.Current, "clone must not follow reset")
	assert.Len(t, clone.Path, 3)
}

func TestLint(t *testing.T) {
	report := Lint(mustParse(t))

	want := &LintReport{
		Dangling:    []Link{{From: "start", Choice: "ghost", To: "ghost"}},
		Unreachable: []NodeID{"island"},
		Endings:     []NodeID{"bye"},
	}
	if diff := cmp.Diff(want, report); diff != "" {
		t.Errorf("lint mismatch (-want +got):\n%s", diff)
	}
	assert.False(t, report.Clean())
}

// TestSeedScenariosAreClean tests that the built-in conversations load and lint clean
func TestSeedScenariosAreClean(t *testing.T) {
	for _, lang := range SeedLanguages {
		t.Run(lang, func(t *testing.T) {
			s, err := NewScenario(lang, SeedNodes(lang))
			require.NoError(t, err)
			report := Lint(s)
			assert.True(t, report.Clean(), "dangling=%v unreachable=%v", report.Dangling, report.Unreachable)
			assert.NotEmpty(t, report.Endings)
		})
	}
	assert.Nil(t, SeedNodes("de"))
}
