package model

import "time"

// CellResult is what the sql execution collaborator reports for one cell.
type CellResult struct {
	CellID          string           `json:"cellId"`
	Data            []map[string]any `json:"data"`
	Columns         []string         `json:"columns"`
	ExecutedAt      time.Time        `json:"executedAt"`
	ExecutionTimeMs int64            `json:"executionTimeMs"`
	Error           string           `json:"error,omitempty"`
}

type Results map[string]CellResult

func (r Results) Error(cellID string) string {
	if r == nil {
		return ""
	}
	return r[cellID].Error
}

func (r Results) Evict(cellID string) {
	delete(r, cellID)
}

// Clone copies the map; row data is shared since results are never mutated in place.
func (r Results) Clone() Results {
	if r == nil {
		return nil
	}
	out := make(Results, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}
