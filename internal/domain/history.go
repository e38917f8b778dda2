package domain

import (
	"errors"
	"time"
)

var ErrNotFound = errors.New("not found")

type HistoryKind string

const (
	HistoryKindSingle   HistoryKind = "single"
	HistoryKindSelected HistoryKind = "selected"
)

type HistoryEntry struct {
	ID        string      `json:"id"`
	UserID    string      `json:"userId"`
	Query     string      `json:"query"`
	Movie     MovieRecord `json:"movie"`
	Kind      HistoryKind `json:"kind"`
	Timestamp time.Time   `json:"timestamp"`
}

type CatalogDiagnostics struct {
	Name                string     `json:"name"`
	Enabled             bool       `json:"enabled"`
	BreakerState        string     `json:"breakerState"`
	ConsecutiveFailures int        `json:"consecutiveFailures"`
	LastError           string     `json:"lastError,omitempty"`
	LastSuccessAt       *time.Time `json:"lastSuccessAt,omitempty"`
	LastFailureAt       *time.Time `json:"lastFailureAt,omitempty"`
	LastLatencyMS       int64      `json:"lastLatencyMs,omitempty"`
	LastQuery           string     `json:"lastQuery,omitempty"`
	TotalRequests       int64      `json:"totalRequests,omitempty"`
	TotalFailures       int64      `json:"totalFailures,omitempty"`
	RateLimitedCount    int64      `json:"rateLimitedCount,omitempty"`
}
