// Package transform rewrites flow configurations so they can be written into
// a different account: fresh identifiers throughout, per-account translation
// keys regenerated, source bookkeeping stripped, and referential integrity of
// the step graph preserved.
package transform

import (
	"encoding/json"
	"log/slog"
	"maps"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/borashehu-gorgias/flows-migrator/pkg/identifier"
	"github.com/borashehu-gorgias/flows-migrator/pkg/models"
)

// Transformer prepares source flow configurations for insertion into a
// target account. It is a pure transformation over the document shape; it
// never talks to the network.
type Transformer struct {
	logger *slog.Logger
	newID  func() string
}

func NewTransformer(logger *slog.Logger) *Transformer {
	return &Transformer{
		logger: logger,
		newID:  identifier.New,
	}
}

// PreparedFlow is the outcome of transforming one source flow.
type PreparedFlow struct {
	Payload   models.FlowDocument
	NewFlowID string
	// StepIDMap records the source-to-target step identifier mapping. It is
	// only valid for the duration of one migration; nothing persists it.
	StepIDMap map[string]string
}

// PrepareForImport builds a target-ready payload from a source flow. The
// returned document carries entirely fresh identifiers; the source flow is
// not modified.
func (t *Transformer) PrepareForImport(flow models.FlowDocument, targetAccountID int64) *PreparedFlow {
	newFlowID := t.newID()

	newInternalID := t.newID()
	for newInternalID == newFlowID {
		// Downstream consumers key off id and internal_id being distinct.
		newInternalID = t.newID()
	}

	// First pass: map every source step id before any rewriting happens, so
	// transition remapping never sees a partial mapping.
	stepIDMap := make(map[string]string)

	steps, _ := flow["steps"].([]any)
	for _, raw := range steps {
		step, ok := raw.(map[string]any)
		if !ok {
			continue
		}

		if id, ok := step["id"].(string); ok && id != "" {
			stepIDMap[id] = t.newID()
		}
	}

	newSteps := t.rewriteSteps(steps, stepIDMap)
	newTransitions := t.rewriteTransitions(flow, stepIDMap)
	newInitialStepID := t.remapStepRef(flow, "initial_step_id", stepIDMap)

	entrypoint, _ := flow["entrypoint"].(map[string]any)
	newEntrypoint := maps.Clone(entrypoint)

	if newEntrypoint == nil {
		newEntrypoint = map[string]any{"label": ""}
	}

	newEntrypoint["label_tkey"] = t.newID()

	payload := models.FlowDocument{
		"id":                  newFlowID,
		"internal_id":         newInternalID,
		"account_id":          targetAccountID,
		"name":                flowNameOrDefault(flow),
		"is_draft":            true,
		"steps":               newSteps,
		"transitions":         newTransitions,
		"initial_step_id":     newInitialStepID,
		"entrypoint":          newEntrypoint,
		"available_languages": defaultLanguages(flow),
		"triggers":            sliceOrEmpty(flow, "triggers"),
		"entrypoints":         sliceOrEmpty(flow, "entrypoints"),
		"apps":                sliceOrEmpty(flow, "apps"),
	}

	for _, key := range []string{"description", "short_description", "inputs", "values", "category"} {
		if v, ok := flow[key]; ok && v != nil {
			payload[key] = v
		}
	}

	cleaned := stripBookkeeping(t.regenerateTranslationKeys(payload)).(map[string]any)

	cleaned = t.rewriteDeepReferences(cleaned, stepIDMap)

	// stripBookkeeping removes account_id at every level; reinstate it once,
	// at the top, pointing at the target account.
	cleaned["account_id"] = targetAccountID

	return &PreparedFlow{
		Payload:   cleaned,
		NewFlowID: newFlowID,
		StepIDMap: stepIDMap,
	}
}

func (t *Transformer) rewriteSteps(steps []any, stepIDMap map[string]string) []any {
	newSteps := make([]any, 0, len(steps))

	for _, raw := range steps {
		step, ok := raw.(map[string]any)
		if !ok {
			newSteps = append(newSteps, raw)

			continue
		}

		newStep := maps.Clone(step)

		if id, ok := step["id"].(string); ok {
			newStep["id"] = stepIDMap[id]
		}

		if settings, ok := step["settings"].(map[string]any); ok {
			newStep["settings"] = truncateChoiceLabels(settings, t.logger)
		}

		newSteps = append(newSteps, newStep)
	}

	return newSteps
}

func (t *Transformer) rewriteTransitions(flow models.FlowDocument, stepIDMap map[string]string) []any {
	transitions, _ := flow["transitions"].([]any)
	newTransitions := make([]any, 0, len(transitions))

	for _, raw := range transitions {
		transition, ok := raw.(map[string]any)
		if !ok {
			newTransitions = append(newTransitions, raw)

			continue
		}

		newTransition := maps.Clone(transition)
		newTransition["id"] = t.newID()
		newTransition["from_step_id"] = t.remapID(flow, transition["from_step_id"], stepIDMap)
		newTransition["to_step_id"] = t.remapID(flow, transition["to_step_id"], stepIDMap)

		newTransitions = append(newTransitions, newTransition)
	}

	return newTransitions
}

func (t *Transformer) remapStepRef(flow models.FlowDocument, key string, stepIDMap map[string]string) any {
	return t.remapID(flow, flow[key], stepIDMap)
}

// remapID translates a step reference through the mapping. References to
// steps absent from the source flow pass through unchanged: some exported
// flows genuinely carry dangling references, and failing the whole migration
// over them helps nobody. The passthrough is surfaced loudly so data-quality
// problems stay visible.
func (t *Transformer) remapID(flow models.FlowDocument, ref any, stepIDMap map[string]string) any {
	id, ok := ref.(string)
	if !ok || id == "" {
		return ref
	}

	if mapped, ok := stepIDMap[id]; ok {
		return mapped
	}

	t.logger.Warn("step reference not found in flow, passing through unmapped",
		"flow_id", models.FlowID(flow),
		"step_id", id)

	return id
}

// TruncateChoiceLabel caps a choice label at the target system's limit,
// replacing the tail with an ellipsis. The limit counts characters, not
// bytes, so multi-byte labels are never split mid-rune. Labels at or under
// the limit come back untouched, so the operation is idempotent.
func TruncateChoiceLabel(label string) string {
	if utf8.RuneCountInString(label) <= models.ChoiceLabelLimit {
		return label
	}

	return string([]rune(label)[:models.ChoiceLabelTruncateAt]) + models.ChoiceLabelEllipsis
}

func truncateChoiceLabels(settings map[string]any, logger *slog.Logger) map[string]any {
	choices, ok := settings["choices"].([]any)
	if !ok {
		return settings
	}

	newSettings := maps.Clone(settings)
	newChoices := make([]any, 0, len(choices))

	for _, raw := range choices {
		choice, ok := raw.(map[string]any)
		if !ok {
			newChoices = append(newChoices, raw)

			continue
		}

		label, ok := choice["label"].(string)
		if !ok || utf8.RuneCountInString(label) <= models.ChoiceLabelLimit {
			newChoices = append(newChoices, choice)

			continue
		}

		logger.Debug("truncating over-length choice label",
			"length", utf8.RuneCountInString(label),
			"limit", models.ChoiceLabelLimit)

		newChoice := maps.Clone(choice)
		newChoice["label"] = TruncateChoiceLabel(label)
		newChoices = append(newChoices, newChoice)
	}

	newSettings["choices"] = newChoices

	return newSettings
}

// regenerateTranslationKeys walks the document and assigns a fresh value to
// every field named with the translation-key suffix, at any depth. Source
// translation keys are unique per account; reusing one causes a write
// failure on the target.
func (t *Transformer) regenerateTranslationKeys(value any) any {
	switch v := value.(type) {
	case map[string]any:
		out := make(map[string]any, len(v))

		for key, child := range v {
			if strings.HasSuffix(key, models.TranslationKeySuffix) {
				out[key] = t.newID()
			} else {
				out[key] = t.regenerateTranslationKeys(child)
			}
		}

		return out
	case []any:
		out := make([]any, len(v))

		for i, child := range v {
			out[i] = t.regenerateTranslationKeys(child)
		}

		return out
	default:
		return value
	}
}

var bookkeepingFields = []string{"created_at", "updated_at", "deleted_at", "account_id"}

// stripBookkeeping removes source-account bookkeeping fields from every
// nested object. The target system stamps its own.
func stripBookkeeping(value any) any {
	switch v := value.(type) {
	case map[string]any:
		out := make(map[string]any, len(v))

		for key, child := range v {
			if slices.Contains(bookkeepingFields, key) {
				continue
			}

			out[key] = stripBookkeeping(child)
		}

		return out
	case []any:
		out := make([]any, len(v))

		for i, child := range v {
			out[i] = stripBookkeeping(child)
		}

		return out
	default:
		return value
	}
}

// rewriteDeepReferences serializes the cleaned payload and replaces every
// occurrence of each old step id with its replacement. Step ids leak into
// free-form content the structural rewrite cannot reach: template
// interpolations, conditional expressions, HTTP request bodies. Matching is
// textual, so an old id appearing coincidentally inside unrelated content
// would be rewritten too; with 26 characters of identifier that is
// vanishingly unlikely but not impossible.
func (t *Transformer) rewriteDeepReferences(payload map[string]any, stepIDMap map[string]string) map[string]any {
	if len(stepIDMap) == 0 {
		return payload
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		// The payload came out of json.Unmarshal; it always marshals back.
		t.logger.Error("deep reference rewrite skipped, payload not serializable", "error", err)

		return payload
	}

	text := string(raw)
	for oldID, newID := range stepIDMap {
		text = strings.ReplaceAll(text, oldID, newID)
	}

	var rewritten map[string]any
	if err := json.Unmarshal([]byte(text), &rewritten); err != nil {
		t.logger.Error("deep reference rewrite produced invalid JSON, keeping structural rewrite only", "error", err)

		return payload
	}

	return rewritten
}

func flowNameOrDefault(flow models.FlowDocument) string {
	if name, ok := flow["name"].(string); ok && name != "" {
		return name
	}

	return "Imported Flow"
}

func defaultLanguages(flow models.FlowDocument) any {
	if langs, ok := flow["available_languages"].([]any); ok && len(langs) > 0 {
		return langs
	}

	return []any{"en-US"}
}

func sliceOrEmpty(flow models.FlowDocument, key string) any {
	if v, ok := flow[key].([]any); ok {
		return v
	}

	return []any{}
}

