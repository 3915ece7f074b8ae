package api

import (
	"encoding/json"
	"net/http"
	"time"

	"flag-events/internal/event"
	"flag-events/pkg/logger"
	"flag-events/pkg/validator"
)

// Ingestor is the slice of the batch processor the API needs.
type Ingestor interface {
	Process(ev event.UserEvent)
	Flush()
	Running() bool
}

type Server struct {
	ingestor Ingestor
	eventCtx event.Context
	val      *validator.ContextValidator
}

type ConversionRequest struct {
	Key          string                 `json:"key"`
	UserID       string                 `json:"user_id"`
	Attributes   map[string]interface{} `json:"attributes"`
	Tags         map[string]interface{} `json:"tags"`
	BotFiltering bool                   `json:"bot_filtering"`
}

type ImpressionRequest struct {
	ExperimentID string                 `json:"experiment_id"`
	VariationID  string                 `json:"variation_id"`
	UserID       string                 `json:"user_id"`
	Attributes   map[string]interface{} `json:"attributes"`
	BotFiltering bool                   `json:"bot_filtering"`
}

func NewServer(ing Ingestor, eventCtx event.Context) *Server {
	return &Server{
		ingestor: ing,
		eventCtx: eventCtx,
		val:      &validator.ContextValidator{},
	}
}

func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	// Wrap all handlers with request ID middleware
	mux.Handle("/v1/conversion", RequestIDMiddleware(http.HandlerFunc(s.handleConversion)))
	mux.Handle("/v1/impression", RequestIDMiddleware(http.HandlerFunc(s.handleImpression)))
	mux.Handle("/v1/flush", RequestIDMiddleware(http.HandlerFunc(s.handleFlush)))
	mux.Handle("/health", RequestIDMiddleware(http.HandlerFunc(s.handleHealth)))
}

func (s *Server) handleConversion(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	rid := GetRequestID(r.Context())
	log := logger.Get().With("request_id", rid)

	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		log.Warnw("request rejected", "method", r.Method, "path", r.URL.Path, "status", http.StatusMethodNotAllowed)
		return
	}

	var req ConversionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		log.Warnw("invalid JSON body", "error", err, "status", http.StatusBadRequest)
		return
	}
	if req.Key == "" || req.UserID == "" {
		http.Error(w, "key and user_id are required", http.StatusBadRequest)
		log.Warnw("conversion rejected, missing fields",
			"key", req.Key, "user_id", req.UserID, "status", http.StatusBadRequest)
		return
	}

	ev := event.NewConversion(s.eventCtx, req.Key, req.UserID, req.Attributes, req.Tags, req.BotFiltering)
	if err := s.val.Validate(ev); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		log.Warnw("conversion rejected", "error", err, "status", http.StatusBadRequest)
		return
	}

	s.ingestor.Process(ev)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	_ = json.NewEncoder(w).Encode(map[string]string{"event_id": ev.EventID()})

	log.Infow("conversion accepted",
		"event_id", ev.EventID(),
		"key", req.Key,
		"duration_ms", time.Since(start).Milliseconds(),
	)
}

func (s *Server) handleImpression(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	rid := GetRequestID(r.Context())
	log := logger.Get().With("request_id", rid)

	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		log.Warnw("request rejected", "method", r.Method, "path", r.URL.Path, "status", http.StatusMethodNotAllowed)
		return
	}

	var req ImpressionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		log.Warnw("invalid JSON body", "error", err, "status", http.StatusBadRequest)
		return
	}
	if req.ExperimentID == "" || req.VariationID == "" || req.UserID == "" {
		http.Error(w, "experiment_id, variation_id and user_id are required", http.StatusBadRequest)
		log.Warnw("impression rejected, missing fields",
			"experiment_id", req.ExperimentID,
			"variation_id", req.VariationID,
			"user_id", req.UserID,
			"status", http.StatusBadRequest,
		)
		return
	}

	ev := event.NewImpression(s.eventCtx, req.ExperimentID, req.VariationID, req.UserID, req.Attributes, req.BotFiltering)
	if err := s.val.Validate(ev); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		log.Warnw("impression rejected", "error", err, "status", http.StatusBadRequest)
		return
	}

	s.ingestor.Process(ev)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	_ = json.NewEncoder(w).Encode(map[string]string{"event_id": ev.EventID()})

	log.Infow("impression accepted",
		"event_id", ev.EventID(),
		"experiment_id", req.ExperimentID,
		"duration_ms", time.Since(start).Milliseconds(),
	)
}

func (s *Server) handleFlush(w http.ResponseWriter, r *http.Request) {
	rid := GetRequestID(r.Context())
	log := logger.Get().With("request_id", rid)

	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		log.Warnw("request rejected", "method", r.Method, "path", r.URL.Path, "status", http.StatusMethodNotAllowed)
		return
	}

	s.ingestor.Flush()
	w.WriteHeader(http.StatusAccepted)
	log.Infow("flush requested", "status", http.StatusAccepted)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	rid := GetRequestID(r.Context())
	log := logger.Get().With("request_id", rid)

	healthy := s.ingestor.Running()
	w.Header().Set("Content-Type", "application/json")
	if !healthy {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	_ = json.NewEncoder(w).Encode(map[string]bool{"healthy": healthy})

	log.Debugw("health check", "path", r.URL.Path, "remote_addr", r.RemoteAddr, "healthy", healthy)
}
