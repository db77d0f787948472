// Package models defines the domain models shared by the migration service.
package models

import "strconv"

// Flow configurations move through this tool as decoded JSON documents
// (map[string]any) rather than rigid structs: the workflow configuration API
// attaches new step kinds and settings shapes without notice, and the
// transformer must round-trip every field it does not understand. The typed
// views below cover the parts the tool actually inspects.

// FlowDocument is a raw flow configuration as returned by the workflow
// configuration API.
type FlowDocument = map[string]any

// ChoiceLabelLimit is the hard cap, in characters, the target system
// enforces on choice labels. Longer labels fail validation on write, so the
// transformer pre-truncates to ChoiceLabelTruncateAt characters plus an
// ellipsis.
const (
	ChoiceLabelLimit      = 50
	ChoiceLabelTruncateAt = 47
	ChoiceLabelEllipsis   = "..."
)

// TranslationKeySuffix marks fields holding per-account-unique localization
// handles. Every such field must be regenerated before writing to a
// different account.
const TranslationKeySuffix = "_tkey"

// Step is the typed view of one node in a flow's execution graph.
type Step struct {
	ID       string         `json:"id"`
	Kind     string         `json:"kind"`
	Settings map[string]any `json:"settings,omitempty"`
}

// Transition is a directed edge between two steps.
type Transition struct {
	ID         string `json:"id"`
	FromStepID string `json:"from_step_id"`
	ToStepID   string `json:"to_step_id"`
}

// Entrypoint is the trigger surfacing a flow to end users.
type Entrypoint struct {
	Label     string `json:"label"`
	LabelTKey string `json:"label_tkey,omitempty"`
}

// FlowName returns the display name of a raw flow document, falling back to
// its id when unnamed.
func FlowName(flow FlowDocument) string {
	if name, ok := flow["name"].(string); ok && name != "" {
		return name
	}

	return FlowID(flow)
}

// FlowID returns the primary identifier of a raw flow document.
func FlowID(flow FlowDocument) string {
	switch id := flow["id"].(type) {
	case string:
		return id
	case float64:
		// Legacy flows carry numeric ids.
		return strconv.FormatInt(int64(id), 10)
	default:
		return ""
	}
}
