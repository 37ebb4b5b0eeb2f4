// Package batch holds the shared result accumulator for bulk operations.
// Fetches, imports and syncs all process many records and are expected to
// succeed partially: per-item failures are collected here instead of
// aborting the batch.
package batch

import "fmt"

// ItemError records one failed item of a batch operation.
type ItemError struct {
	Item   string `json:"item"`
	Reason string `json:"reason"`
}

// Errors accumulates per-item failures across a batch operation.
type Errors []ItemError

// Add records a failure for the named item.
func (e *Errors) Add(item string, err error) {
	*e = append(*e, ItemError{Item: item, Reason: err.Error()})
}

// Addf records a failure with a formatted reason.
func (e *Errors) Addf(item string, format string, args ...any) {
	*e = append(*e, ItemError{Item: item, Reason: fmt.Sprintf(format, args...)})
}

// Summary renders the failure count plus at most limit individual messages,
// the shape surfaced to callers after a batch completes.
func (e Errors) Summary(limit int) []string {
	if len(e) == 0 {
		return nil
	}

	out := []string{fmt.Sprintf("%d items failed", len(e))}
	for i, item := range e {
		if i >= limit {
			out = append(out, fmt.Sprintf("... and %d more", len(e)-limit))
			break
		}
		out = append(out, fmt.Sprintf("%s: %s", item.Item, item.Reason))
	}
	return out
}
