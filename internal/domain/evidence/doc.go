// Package evidence holds the vocabulary shared by every evaluator: issues,
// per-domain risk reports, statuses and the inputs a scan is built from.
// It carries no scoring policy beyond the shared status thresholds.
package evidence
