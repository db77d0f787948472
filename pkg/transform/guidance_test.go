package transform

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFlowToGuidanceContent(t *testing.T) {
	t.Parallel()

	flow := decodeFlow(t, `{
		"id": "FLOW1",
		"name": "Order status",
		"description": "Answers order status questions.",
		"steps": [
			{
				"id": "S1",
				"kind": "message",
				"label": "Greeting",
				"actions": [
					{"type": "send-message", "message": "Hi! I can check your order."},
					{"type": "add-comment", "comment": "Customer asked about shipping."}
				]
			}
		],
		"inputs": [{"label": "Where is my order?"}]
	}`)

	content := FlowToGuidanceContent(flow)

	assert.Contains(t, content, "# Order status")
	assert.Contains(t, content, "Answers order status questions.")
	assert.Contains(t, content, "Hi! I can check your order.")
	assert.Contains(t, content, "**Internal Note:** Customer asked about shipping.")
	assert.Contains(t, content, "**Greeting**")
	assert.Contains(t, content, "- Where is my order?")
	assert.Contains(t, content, "Migrated from Flow ID: FLOW1")
}

func TestFlowToGuidanceContent_MinimalFlow(t *testing.T) {
	t.Parallel()

	flow := decodeFlow(t, `{"id": "FLOW2", "name": "Empty"}`)

	content := FlowToGuidanceContent(flow)

	assert.Contains(t, content, "# Empty")
	assert.NotContains(t, content, "## Flow Content")
	assert.NotContains(t, content, "## Questions Answered")
}
