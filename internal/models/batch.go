package models

// BatchResult aggregates a multi-package operation. A batch always
// completes; per-item failures land in Errors and Details.
type BatchResult struct {
	UpdatedCount int              `json:"updated_count"`
	SkippedCount int              `json:"skipped_count"`
	Errors       []BatchItemError `json:"errors"`
	Details      []string         `json:"details"`
}

type BatchItemError struct {
	ID      uint64 `json:"id"`
	Reason  string `json:"reason"`
	Message string `json:"message"`
}

func NewBatchResult(size int) *BatchResult {
	return &BatchResult{
		Errors:  make([]BatchItemError, 0),
		Details: make([]string, 0, size),
	}
}
