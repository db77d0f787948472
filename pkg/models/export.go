package models

import "time"

// ExportVersion is the schema version stamped on every export document.
const ExportVersion = "1.0"

// ExportDocument is the durable artifact produced by a flow export and
// accepted back by import. Field names are part of the format and must not
// change between releases.
type ExportDocument struct {
	Version         string         `json:"version"`
	ExportedAt      time.Time      `json:"exportedAt"`
	SourceSubdomain string         `json:"sourceSubdomain"`
	FlowCount       int            `json:"flowCount"`
	Flows           []FlowDocument `json:"flows"`
}

// ImportResult records the outcome of importing a single flow. A failed item
// never aborts the batch; it is reported here instead.
type ImportResult struct {
	OriginalID     string `json:"originalId"`
	Name           string `json:"name"`
	Success        bool   `json:"success"`
	NewID          string `json:"newId,omitempty"`
	ShopRegistered bool   `json:"shopRegistered,omitempty"`
	Error          string `json:"error,omitempty"`
}

// BatchSummary aggregates a per-item ledger into the counts surfaced to the
// UI.
type BatchSummary struct {
	Total     int `json:"total"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
}

// Summarize builds a BatchSummary from an import ledger.
func Summarize(results []ImportResult) BatchSummary {
	summary := BatchSummary{Total: len(results)}

	for _, r := range results {
		if r.Success {
			summary.Succeeded++
		} else {
			summary.Failed++
		}
	}

	return summary
}
