package server

import (
	"encoding/json"

	"DialogueWidget/internal/dialogue"
	"DialogueWidget/internal/interpreter"
)

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type outboundMessage struct {
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
}

type choosePayload struct {
	ChoiceID string `json:"choice_id"`
}

type languagePayload struct {
	Lang string `json:"lang"`
}

type enginePayload struct {
	Container string `json:"container"`
}

// choiceDTO is a button the client can press. Redirect targets stay on the
// server; the client is told where to go with a navigate message.
type choiceDTO struct {
	ID       string `json:"id"`
	Text     string `json:"text"`
	Redirect bool   `json:"redirect,omitempty"`
}

type nodeDTO struct {
	ID           string      `json:"id"`
	Speaker      string      `json:"speaker,omitempty"`
	Text         string      `json:"text,omitempty"`
	ImageSrc     string      `json:"image_src,omitempty"`
	AnimationCue string      `json:"animation_cue,omitempty"`
	IsEnding     bool        `json:"is_ending,omitempty"`
	Choices      []choiceDTO `json:"choices,omitempty"`
}

type errorDTO struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// stateDTO is pushed whenever the session's snapshot version changes
type stateDTO struct {
	Version       uint64    `json:"version"`
	Phase         string    `json:"phase"`
	Lang          string    `json:"lang,omitempty"`
	ScenarioLang  string    `json:"scenario_lang,omitempty"` // Differs from lang after a fallback
	Node          *nodeDTO  `json:"node,omitempty"`
	Path          []string  `json:"path,omitempty"`
	Pending       bool      `json:"pending,omitempty"`
	PendingChoice string    `json:"pending_choice,omitempty"`
	Error         *errorDTO `json:"error,omitempty"`
	CanRestart    bool      `json:"can_restart"`
	CanRetry      bool      `json:"can_retry"`
}

type navigateDTO struct {
	URL    string `json:"url"`
	Target string `json:"target"`
	Rel    string `json:"rel"`
}

type animationDTO struct {
	Cue string `json:"cue"`
}

type healthDTO struct {
	Status    string   `json:"status"`
	Languages []string `json:"languages"`
	Sessions  int      `json:"sessions"`
}

func nodeToDTO(n *dialogue.Node) *nodeDTO {
	if n == nil {
		return nil
	}
	dto := &nodeDTO{
		ID:           string(n.ID),
		Speaker:      string(n.Speaker),
		Text:         n.Text,
		ImageSrc:     n.ImageSrc,
		AnimationCue: n.AnimationCue,
		IsEnding:     n.IsEnding,
	}
	for _, c := range n.Choices {
		dto.Choices = append(dto.Choices, choiceDTO{ID: c.ID, Text: c.Text, Redirect: c.IsRedirect()})
	}
	return dto
}

func stateFromSnapshot(s interpreter.Snapshot) stateDTO {
	dto := stateDTO{
		Version:       s.Version,
		Phase:         string(s.Phase),
		Lang:          s.Lang,
		ScenarioLang:  s.ScenarioLang,
		Node:          nodeToDTO(s.Node),
		Pending:       s.Pending,
		PendingChoice: s.PendingChoice,
		CanRestart:    s.CanRestart(),
		CanRetry:      s.CanRetry(),
	}
	for _, id := range s.Path {
		dto.Path = append(dto.Path, string(id))
	}
	if s.Phase == interpreter.PhaseError {
		dto.Error = &errorDTO{Kind: string(s.ErrorKind)}
		if s.Err != nil {
			dto.Error.Message = s.Err.Error()
		}
	}
	return dto
}
