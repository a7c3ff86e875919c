package watchloop

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// StatusServer provides an HTTP interface onto the watcher. It is the
// independent reader from the concurrency model: it queries the same store
// and sources as the loop, at any time, without coordinating with it.
type StatusServer struct {
	server  *http.Server
	watcher *Watcher
	logger  *zap.Logger
}

// DelegateStatus is the display state of one named trigger condition.
type DelegateStatus struct {
	Name  string `json:"name"`
	State string `json:"state"` // "Ready", "Waiting" or "Unknown"
}

// TriggerStatus is the display state of one trigger.
type TriggerStatus struct {
	Name      string           `json:"name"`
	Pair      string           `json:"pair"`
	Delegates []DelegateStatus `json:"delegates"`
}

// NewStatusServer creates a new StatusServer.
func NewStatusServer(watcher *Watcher, port int, logger *zap.Logger) *StatusServer {
	mux := http.NewServeMux()
	s := &StatusServer{
		server:  &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux},
		watcher: watcher,
		logger:  logger.Named("status-server"),
	}
	mux.HandleFunc("/status", s.statusHandler)
	mux.HandleFunc("/health", s.healthHandler)
	return s
}

// Start runs the HTTP server in a new goroutine.
func (s *StatusServer) Start() {
	s.logger.Info("Starting status server", zap.String("address", s.server.Addr))
	go func() {
		if err := s.server.ListenAndServe(); err != http.ErrServerClosed {
			s.logger.Error("Status server failed", zap.Error(err))
		}
	}()
}

// Stop gracefully shuts down the server.
func (s *StatusServer) Stop(ctx context.Context) error {
	s.logger.Info("Stopping status server...")
	return s.server.Shutdown(ctx)
}

func (s *StatusServer) statusHandler(w http.ResponseWriter, r *http.Request) {
	now := time.Now()
	statuses := make([]TriggerStatus, 0, len(s.watcher.triggers))

	for _, trigger := range s.watcher.Triggers() {
		status := TriggerStatus{
			Name: trigger.Name(),
			Pair: trigger.Pair().String(),
		}
		for _, delegate := range trigger.Delegates() {
			state := "Waiting"
			triggered, err := delegate.IsTriggered(r.Context(), now)
			if err != nil {
				state = "Unknown"
			} else if triggered {
				state = "Ready"
			}
			status.Delegates = append(status.Delegates, DelegateStatus{
				Name:  delegate.Name(),
				State: state,
			})
		}
		statuses = append(statuses, status)
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(statuses); err != nil {
		s.logger.Error("Failed to write status response", zap.Error(err))
		http.Error(w, "Failed to encode status", http.StatusInternalServerError)
	}
}

func (s *StatusServer) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprintln(w, "OK")
}
