package main

import (
	"github.com/himanishpuri/AyaScan/pkg/ayascan"
)

// MaxFrameBytes caps the size of an uploaded frame.
const MaxFrameBytes = 10 << 20

// AddResultRequest is the request body for POST /api/results
type AddResultRequest struct {
	Letter string `json:"letter"`
	Number string `json:"number"`
}

// SetQueryRequest is the request body for POST /api/session/query
type SetQueryRequest struct {
	Query string `json:"query"`
}

// ResultDTO represents a saved or confirmed reading in API responses
type ResultDTO struct {
	ID        int64  `json:"id,omitempty"`
	Letter    string `json:"letter"`
	Number    string `json:"number"`
	Timestamp int64  `json:"timestamp"`
}

func toResultDTO(r ayascan.Record) ResultDTO {
	return ResultDTO{ID: r.ID, Letter: r.Letter, Number: r.Number, Timestamp: r.Timestamp}
}

func toResultDTOs(records []ayascan.Record) []ResultDTO {
	out := make([]ResultDTO, len(records))
	for i, r := range records {
		out[i] = toResultDTO(r)
	}
	return out
}

// ListResultsResponse is the response for GET /api/results
type ListResultsResponse struct {
	Results []ResultDTO `json:"results"`
	Count   int         `json:"count"`
	Query   string      `json:"query,omitempty"`
}

// SessionResponse describes the live scanning session
type SessionResponse struct {
	Status    string      `json:"status"`
	Analyzing bool        `json:"analyzing"`
	Query     string      `json:"query"`
	Results   []ResultDTO `json:"results"`
	Count     int         `json:"count"`
}

// SaveLatestResponse is the response for POST /api/session/save
type SaveLatestResponse struct {
	Saved  bool       `json:"saved"`
	Result *ResultDTO `json:"result,omitempty"`
	Status string     `json:"status"`
}

// ToggleResponse is the response for POST /api/session/toggle
type ToggleResponse struct {
	Analyzing bool   `json:"analyzing"`
	Status    string `json:"status"`
}

// FrameResponse is the response for POST /api/frames
type FrameResponse struct {
	FrameID   string                `json:"frame_id"`
	Width     int                   `json:"width"`
	Height    int                   `json:"height"`
	Confirmed bool                  `json:"confirmed"`
	Reading   string                `json:"reading,omitempty"` // what this frame confirmed, e.g. "B-42"
	Latest    *ResultDTO            `json:"latest,omitempty"`
	Stats     ayascan.PipelineStats `json:"stats"`
}

// MetricsResponse provides server health and pipeline counters
type MetricsResponse struct {
	Status      string                `json:"status"`
	Database    string                `json:"database"`
	ResultCount int64                 `json:"result_count"`
	Analyzing   bool                  `json:"analyzing"`
	Camera      string                `json:"camera,omitempty"`
	Pipeline    ayascan.PipelineStats `json:"pipeline"`
}

// ErrorResponse is the standard error response format
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	Code    int    `json:"code,omitempty"`
}
