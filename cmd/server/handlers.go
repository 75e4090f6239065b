package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/himanishpuri/AyaScan/pkg/ayascan"
	"github.com/himanishpuri/AyaScan/pkg/ayascan/ocr"
	"github.com/himanishpuri/AyaScan/pkg/ayascan/storage"
	"github.com/himanishpuri/AyaScan/pkg/logger"
)

// Server encapsulates the HTTP server and its dependencies
type Server struct {
	service *ayascan.Service
	config  *ServerConfig
	log     ayascan.Logger
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Addr           string
	DBPath         string
	Camera         string
	AllowedOrigins []string
}

// NewServer creates a new server instance
func NewServer(service *ayascan.Service, config *ServerConfig) *Server {
	return &Server{
		service: service,
		config:  config,
		log:     logger.GetLogger().With("http"),
	}
}

// respondJSON writes a JSON response
func (s *Server) respondJSON(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(data); err != nil {
		s.log.Errorf("Failed to encode JSON response: %v", err)
	}
}

// respondError writes an error response
func (s *Server) respondError(w http.ResponseWriter, statusCode int, message string) {
	s.respondJSON(w, statusCode, ErrorResponse{
		Error:   http.StatusText(statusCode),
		Message: message,
		Code:    statusCode,
	})
}

func (s *Server) decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(io.LimitReader(r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		s.respondError(w, http.StatusBadRequest, fmt.Sprintf("Invalid JSON body: %v", err))
		return false
	}
	return true
}

// handleRoot handles GET /
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]any{
		"service": "AyaScan API",
		"version": Version,
		"endpoints": map[string]string{
			"health":      "GET /health",
			"metrics":     "GET /api/health/metrics",
			"results":     "GET /api/results?q=",
			"addResult":   "POST /api/results",
			"session":     "GET /api/session",
			"setQuery":    "POST /api/session/query",
			"saveLatest":  "POST /api/session/save",
			"loadHistory": "POST /api/session/history",
			"toggle":      "POST /api/session/toggle",
			"frame":       "POST /api/frames",
		},
	})
}

// handleHealth handles GET /health
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
		"time":   time.Now().Format(time.RFC3339),
	})
}

// handleMetrics handles GET /api/health/metrics
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	count, err := s.service.Count(r.Context())
	if err != nil {
		s.log.Errorf("Failed to count results: %v", err)
		s.respondError(w, http.StatusInternalServerError, "Failed to retrieve metrics")
		return
	}

	s.respondJSON(w, http.StatusOK, MetricsResponse{
		Status:      "healthy",
		Database:    redactLocation(s.config.DBPath),
		ResultCount: count,
		Analyzing:   s.service.Pipeline().Analyzing(),
		Camera:      s.config.Camera,
		Pipeline:    s.service.Pipeline().Stats(),
	})
}

// handleListResults handles GET /api/results
func (s *Server) handleListResults(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")

	results, err := s.service.Search(r.Context(), query)
	if err != nil {
		s.log.Errorf("Failed to search results for %q: %v", query, err)
		s.respondError(w, http.StatusInternalServerError, "Failed to retrieve results")
		return
	}

	s.respondJSON(w, http.StatusOK, ListResultsResponse{
		Results: toResultDTOs(results),
		Count:   len(results),
		Query:   query,
	})
}

// handleAddResult handles POST /api/results
func (s *Server) handleAddResult(w http.ResponseWriter, r *http.Request) {
	var req AddResultRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}

	letter, number, err := ayascan.NormalizeReading(req.Letter, req.Number)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	rec, err := s.service.Save(r.Context(), letter, number)
	if err != nil {
		s.log.Errorf("Failed to save result: %v", err)
		s.respondError(w, http.StatusInternalServerError, "Failed to save result")
		return
	}

	s.respondJSON(w, http.StatusCreated, toResultDTO(rec))
}

func (s *Server) sessionResponse() SessionResponse {
	session := s.service.Session()
	results := session.Filtered()
	return SessionResponse{
		Status:    session.Status(),
		Analyzing: s.service.Pipeline().Analyzing(),
		Query:     session.Query(),
		Results:   toResultDTOs(results),
		Count:     len(results),
	}
}

// handleGetSession handles GET /api/session
func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, s.sessionResponse())
}

// handleSetQuery handles POST /api/session/query
func (s *Server) handleSetQuery(w http.ResponseWriter, r *http.Request) {
	var req SetQueryRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	s.service.Session().SetQuery(req.Query)
	s.respondJSON(w, http.StatusOK, s.sessionResponse())
}

// handleSaveLatest handles POST /api/session/save
func (s *Server) handleSaveLatest(w http.ResponseWriter, r *http.Request) {
	session := s.service.Session()

	rec, saved, err := session.SaveLatest(r.Context())
	if err != nil {
		s.log.Errorf("Failed to save latest result: %v", err)
		s.respondError(w, http.StatusInternalServerError, session.Status())
		return
	}

	resp := SaveLatestResponse{Saved: saved, Status: session.Status()}
	if saved {
		dto := toResultDTO(rec)
		resp.Result = &dto
	}
	s.respondJSON(w, http.StatusOK, resp)
}

// handleLoadHistory handles POST /api/session/history
func (s *Server) handleLoadHistory(w http.ResponseWriter, r *http.Request) {
	if err := s.service.Session().LoadHistory(r.Context()); err != nil {
		s.log.Errorf("Failed to load history: %v", err)
		s.respondError(w, http.StatusInternalServerError, "Failed to load history")
		return
	}
	s.respondJSON(w, http.StatusOK, s.sessionResponse())
}

// handleToggle handles POST /api/session/toggle
func (s *Server) handleToggle(w http.ResponseWriter, r *http.Request) {
	session := s.service.Session()
	on := session.ToggleAnalyzing()
	s.log.Infof("Analysis toggled: analyzing=%v", on)
	s.respondJSON(w, http.StatusOK, ToggleResponse{Analyzing: on, Status: session.Status()})
}

// handleProcessFrame handles POST /api/frames
func (s *Server) handleProcessFrame(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, MaxFrameBytes)
	if err := r.ParseMultipartForm(MaxFrameBytes); err != nil {
		s.respondError(w, http.StatusBadRequest, fmt.Sprintf("Invalid multipart form: %v", err))
		return
	}

	file, _, err := r.FormFile("image")
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "Missing 'image' file field")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "Failed to read image")
		return
	}

	rotation := 0
	if v := r.FormValue("rotation"); v != "" {
		rotation, err = strconv.Atoi(v)
		if err != nil {
			s.respondError(w, http.StatusBadRequest, fmt.Sprintf("Invalid rotation %q", v))
			return
		}
	}

	width, height, err := ocr.Size(data)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "Unsupported image format")
		return
	}

	frame := ayascan.NewFrame(uuid.NewString(), data, width, height, rotation, nil)

	reading, confirmed, err := s.service.Analyze(r.Context(), frame)
	if err != nil {
		s.log.Warnf("Frame %s failed: %v", frame.ID, err)
		status := http.StatusInternalServerError
		if errors.Is(err, ayascan.ErrRecognition) {
			status = http.StatusBadGateway
		}
		s.respondError(w, status, err.Error())
		return
	}

	resp := FrameResponse{
		FrameID:   frame.ID,
		Width:     width,
		Height:    height,
		Confirmed: confirmed,
		Stats:     s.service.Pipeline().Stats(),
	}
	if confirmed {
		resp.Reading = reading.String()
	}
	if latest, ok := s.service.Session().Latest(); ok {
		dto := toResultDTO(latest)
		resp.Latest = &dto
	}
	s.respondJSON(w, http.StatusOK, resp)
}

// redactLocation hides credentials in a postgres:// URL.
func redactLocation(location string) string {
	if !storage.IsPostgresURL(location) {
		return location
	}
	u, err := url.Parse(location)
	if err != nil {
		return "postgres://"
	}
	return u.Redacted()
}
