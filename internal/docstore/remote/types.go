package remote

import (
	"time"

	"github.com/five82/songbook/internal/docstore"
)

// DocumentsResponse mirrors GET /api/collections/{c}/documents.
type DocumentsResponse struct {
	Version   uint64              `json:"version"`
	Documents []docstore.Document `json:"documents"`
}

// FieldsRequest is the body of POST and PUT requests.
type FieldsRequest struct {
	Fields map[string]string `json:"fields"`
}

// AddResponse mirrors POST /api/collections/{c}/documents.
type AddResponse struct {
	Key string `json:"key"`
}

// HealthResponse mirrors /api/health.
type HealthResponse struct {
	OK        bool   `json:"ok"`
	Backend   string `json:"backend"`
	StartedAt string `json:"startedAt"`
}

// ParsedStartedAt returns StartedAt as time.Time, or the zero time.
func (h HealthResponse) ParsedStartedAt() time.Time {
	return parseTime(h.StartedAt)
}

// ErrorResponse is the body of non-2xx responses.
type ErrorResponse struct {
	Error string `json:"error"`
}

func parseTime(value string) time.Time {
	if value == "" {
		return time.Time{}
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339} {
		if t, err := time.Parse(layout, value); err == nil {
			return t
		}
	}
	return time.Time{}
}
