// Package http exposes the control API: topology and vessel inspection,
// transfer requests, and run-record queries.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"log/slog"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/openfluidics/syrinx/internal/logging"
	"github.com/openfluidics/syrinx/pkg/domain"
	"github.com/openfluidics/syrinx/pkg/session"
	"github.com/openfluidics/syrinx/pkg/topology"
)

// Transferer defines the slice of the core the API needs for liquid
// movement: plan and execute in one call.
type Transferer interface {
	Transfer(ctx context.Context, source, target string, volume float64) (domain.TransferOutcome, error)
}

// Server wires the control endpoints to the core.
type Server struct {
	graph      *topology.Graph
	transferer Transferer
	runs       *session.Manager
	logger     *slog.Logger
}

// Option configures the Server.
type Option func(*Server)

// WithLogger sets a structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) { s.logger = logger }
}

// NewHandler builds the routed HTTP handler for the control API.
func NewHandler(graph *topology.Graph, transferer Transferer, runs *session.Manager, opts ...Option) http.Handler {
	s := &Server{
		graph:      graph,
		transferer: transferer,
		runs:       runs,
		logger:     logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.health)
	r.Get("/topology", s.describeTopology)
	r.Get("/vessels", s.listVessels)
	r.Post("/transfers", s.createTransfer)
	r.Get("/runs", s.listRuns)
	r.Get("/runs/{id}", s.getRun)
	r.Handle("/metrics", promhttp.Handler())

	return r
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type topologyResponse struct {
	Vessels []string      `json:"vessels"`
	Devices []deviceView  `json:"devices"`
	Links   []domain.Link `json:"links"`
}

type deviceView struct {
	Name     string  `json:"name"`
	Kind     string  `json:"kind"`
	Bus      string  `json:"bus"`
	Address  int     `json:"address"`
	Capacity float64 `json:"capacity,omitempty"`
}

func (s *Server) describeTopology(w http.ResponseWriter, r *http.Request) {
	resp := topologyResponse{Links: s.graph.Links()}
	for _, v := range s.graph.Vessels() {
		resp.Vessels = append(resp.Vessels, v.Name)
	}
	for _, d := range s.graph.Devices() {
		resp.Devices = append(resp.Devices, deviceView{
			Name:     d.Name,
			Kind:     string(d.Kind),
			Bus:      d.Bus,
			Address:  d.Address,
			Capacity: d.Capacity,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) listVessels(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.graph.Vessels())
}

type transferRequest struct {
	Source string  `json:"source"`
	Target string  `json:"target"`
	Volume float64 `json:"volume"`
}

func (s *Server) createTransfer(w http.ResponseWriter, r *http.Request) {
	var body transferRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	outcome, err := s.transferer.Transfer(r.Context(), body.Source, body.Target, body.Volume)
	if err != nil {
		var verr *domain.ValidationError
		var noPath *domain.NoPathError
		var ambiguous *domain.AmbiguousPathError
		var partial *domain.PartialTransferError
		switch {
		case errors.As(err, &verr), errors.As(err, &noPath), errors.As(err, &ambiguous):
			writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": err.Error()})
		case errors.As(err, &partial):
			// The liquid partially moved; the outcome carries the ledger
			// truth and the client must reconcile, not retry blindly.
			writeJSON(w, http.StatusConflict, outcome)
		default:
			s.logger.Error("transfer failed", "source", body.Source, "target", body.Target, "err", err)
			writeJSON(w, http.StatusBadGateway, map[string]string{"error": err.Error()})
		}
		return
	}

	writeJSON(w, http.StatusOK, outcome)
}

func (s *Server) listRuns(w http.ResponseWriter, r *http.Request) {
	ids, err := s.runs.List(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string][]string{"runs": ids})
}

func (s *Server) getRun(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	rec, err := s.runs.Load(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrRunNotFound) {
			http.Error(w, "run not found", http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
