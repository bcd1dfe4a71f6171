// Package server exposes the operational HTTP surface: liveness and
// readiness probes, a status snapshot and Prometheus metrics.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/devrev/agentmesh/internal/coordinator"
	"github.com/devrev/agentmesh/internal/model"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// OpsServer serves the coordination core's operational endpoints.
type OpsServer struct {
	httpServer     *http.Server
	coordinator    *coordinator.Coordinator
	readyHealthMin float64
	logger         *zap.Logger
}

// NewOpsServer creates the ops server on the given port.
func NewOpsServer(port int, readyHealthMin float64, c *coordinator.Coordinator, logger *zap.Logger) *OpsServer {
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &OpsServer{
		coordinator:    c,
		readyHealthMin: readyHealthMin,
		logger:         logger,
	}

	router := mux.NewRouter()
	router.HandleFunc("/health/live", s.livenessHandler).Methods(http.MethodGet)
	router.HandleFunc("/health/ready", s.readinessHandler).Methods(http.MethodGet)
	router.HandleFunc("/status", s.statusHandler).Methods(http.MethodGet)
	router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      router,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Handler returns the ops route handler.
func (s *OpsServer) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start serves in the background.
func (s *OpsServer) Start() {
	s.logger.Info("Starting ops server", zap.String("addr", s.httpServer.Addr))
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("Ops server failed", zap.Error(err))
		}
	}()
}

// Stop gracefully shuts the server down.
func (s *OpsServer) Stop(ctx context.Context) error {
	s.logger.Info("Stopping ops server")
	return s.httpServer.Shutdown(ctx)
}

type healthResponse struct {
	Status    string  `json:"status"`
	Health    float64 `json:"health,omitempty"`
	Timestamp int64   `json:"timestamp"`
}

func (s *OpsServer) livenessHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{
		Status:    "alive",
		Timestamp: time.Now().Unix(),
	})
}

func (s *OpsServer) readinessHandler(w http.ResponseWriter, r *http.Request) {
	snap := s.coordinator.Snapshot()

	resp := healthResponse{
		Health:    snap.Health,
		Timestamp: time.Now().Unix(),
	}
	if snap.Health >= s.readyHealthMin {
		resp.Status = "ready"
		writeJSON(w, http.StatusOK, resp)
		return
	}
	resp.Status = "not_ready"
	writeJSON(w, http.StatusServiceUnavailable, resp)
}

type statusResponse struct {
	Health           float64                      `json:"health"`
	Components       map[string]string            `json:"components"`
	ActiveOperations int                          `json:"active_operations"`
	Metrics          model.StateMetrics           `json:"metrics"`
	Routing          map[string]routingModeStatus `json:"routing"`
	RecommendedMode  string                       `json:"recommended_mode"`
	Scheduler        schedulerStatus              `json:"scheduler"`
}

type routingModeStatus struct {
	Count            int    `json:"count"`
	AverageLatencyMS string `json:"average_latency"`
}

type schedulerStatus struct {
	Pending   int    `json:"pending"`
	Active    int    `json:"active"`
	Submitted uint64 `json:"submitted"`
	Rejected  uint64 `json:"rejected"`
	Completed uint64 `json:"completed"`
	Failed    uint64 `json:"failed"`
}

func (s *OpsServer) statusHandler(w http.ResponseWriter, r *http.Request) {
	snap := s.coordinator.Snapshot()
	routingStatus := s.coordinator.RoutingStatus()
	schedStats := s.coordinator.SchedulerStats()

	components := make(map[string]string, len(snap.Components))
	for id, comp := range snap.Components {
		components[string(id)] = string(comp.State)
	}

	modes := make(map[string]routingModeStatus, len(routingStatus.Modes))
	for mode, stats := range routingStatus.Modes {
		modes[string(mode)] = routingModeStatus{
			Count:            stats.Count,
			AverageLatencyMS: stats.AverageLatency.String(),
		}
	}

	writeJSON(w, http.StatusOK, statusResponse{
		Health:           snap.Health,
		Components:       components,
		ActiveOperations: len(snap.ActiveOperations),
		Metrics:          snap.Metrics,
		Routing:          modes,
		RecommendedMode:  string(routingStatus.Recommended),
		Scheduler: schedulerStatus{
			Pending:   schedStats.Pending,
			Active:    schedStats.Active,
			Submitted: schedStats.Submitted,
			Rejected:  schedStats.Rejected,
			Completed: schedStats.Completed,
			Failed:    schedStats.Failed,
		},
	})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
