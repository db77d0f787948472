package transform

import (
	"fmt"
	"strings"
	"time"

	"github.com/borashehu-gorgias/flows-migrator/pkg/models"
)

// FlowToGuidanceContent flattens a flow configuration into guidance prose.
// It is the deterministic fallback used when the text-generation collaborator
// is unavailable: it concatenates step messages, internal notes, and input
// labels in document order.
func FlowToGuidanceContent(flow models.FlowDocument) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# %s\n\n", models.FlowName(flow))

	if description, ok := flow["description"].(string); ok && description != "" {
		b.WriteString(description)
		b.WriteString("\n\n")
	}

	if steps, ok := flow["steps"].([]any); ok && len(steps) > 0 {
		b.WriteString("## Flow Content\n\n")

		for _, raw := range steps {
			step, ok := raw.(map[string]any)
			if !ok {
				continue
			}

			writeStepContent(&b, step)
		}
	}

	if inputs, ok := flow["inputs"].([]any); ok && len(inputs) > 0 {
		b.WriteString("## Questions Answered\n\n")

		for _, raw := range inputs {
			input, ok := raw.(map[string]any)
			if !ok {
				continue
			}

			if label, ok := input["label"].(string); ok && label != "" {
				fmt.Fprintf(&b, "- %s\n", label)
			}
		}

		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "\n---\nMigrated from Flow ID: %s\nMigration Date: %s\n",
		models.FlowID(flow), time.Now().UTC().Format(time.RFC3339))

	return b.String()
}

func writeStepContent(b *strings.Builder, step map[string]any) {
	if actions, ok := step["actions"].([]any); ok {
		for _, raw := range actions {
			action, ok := raw.(map[string]any)
			if !ok {
				continue
			}

			kind, _ := action["type"].(string)

			switch kind {
			case "send-message":
				if message, ok := action["message"].(string); ok && message != "" {
					b.WriteString(message)
					b.WriteString("\n\n")
				}
			case "add-comment":
				if comment, ok := action["comment"].(string); ok && comment != "" {
					fmt.Fprintf(b, "**Internal Note:** %s\n\n", comment)
				}
			}
		}
	}

	if label, ok := step["label"].(string); ok && label != "" {
		fmt.Fprintf(b, "**%s**\n\n", label)
	}
}
