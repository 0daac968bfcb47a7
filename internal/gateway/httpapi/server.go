// internal/gateway/httpapi/server.go
package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"notification-engine/internal/common/config"
	"notification-engine/internal/common/errors"
	"notification-engine/internal/common/logger"
	"notification-engine/internal/engine"
	"notification-engine/internal/models"
)

// Engine is the surface of the notification engine the API exposes.
type Engine interface {
	Submit(ctx context.Context, req engine.SubmitRequest) (string, error)
	UpdatePreferences(ctx context.Context, recipientID string, patch models.PreferencePatch) (models.Preference, error)
	Recent(ctx context.Context, recipientID string) ([]models.Notification, error)
	Get(ctx context.Context, notificationID string) (*models.Notification, error)
	Attempts(ctx context.Context, notificationID string) ([]models.DeliveryAttempt, error)
}

// Server is the HTTP gateway in front of the engine.
type Server struct {
	engine   Engine
	realtime http.Handler
	logger   logger.Logger
}

func NewServer(eng Engine, realtimeHandler http.Handler, log logger.Logger) *Server {
	return &Server{
		engine:   eng,
		realtime: realtimeHandler,
		logger:   log,
	}
}

// Router builds the API route table.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/healthz", s.handleHealth).Methods("GET")
	r.HandleFunc("/v1/notifications", s.handleSubmit).Methods("POST")
	r.HandleFunc("/v1/notifications/{id}", s.handleGetNotification).Methods("GET")
	r.HandleFunc("/v1/notifications/{id}/attempts", s.handleAttempts).Methods("GET")
	r.HandleFunc("/v1/recipients/{id}/preferences", s.handleUpdatePreferences).Methods("PATCH")
	r.HandleFunc("/v1/recipients/{id}/notifications", s.handleListNotifications).Methods("GET")
	if s.realtime != nil {
		r.Handle("/v1/ws", s.realtime)
	}
	return r
}

// Listen serves the API until ctx is canceled.
func (s *Server) Listen(ctx context.Context, cfg config.ServerConfig) error {
	srv := &http.Server{
		Addr:         cfg.ListenAddress,
		Handler:      s.Router(),
		ReadTimeout:  time.Duration(cfg.ReadTimeout) * time.Millisecond,
		WriteTimeout: time.Duration(cfg.WriteTimeout) * time.Millisecond,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	s.logger.Info("http gateway listening", map[string]interface{}{
		"address": cfg.ListenAddress,
	})
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	body, err := decodeAndValidate(r, submitSchema)
	if err != nil {
		s.writeError(w, errors.NewInvalidRequestError(err.Error()))
		return
	}

	var req engine.SubmitRequest
	if err := json.Unmarshal(body, &req); err != nil {
		s.writeError(w, errors.NewInvalidRequestError(err.Error()))
		return
	}

	id, err := s.engine.Submit(r.Context(), req)
	if err != nil {
		if id != "" {
			// A skipped or failed submission still has an audit record.
			s.writeError(w, err, map[string]interface{}{"notificationId": id})
			return
		}
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"notificationId": id})
}

func (s *Server) handleUpdatePreferences(w http.ResponseWriter, r *http.Request) {
	recipientID := mux.Vars(r)["id"]

	body, err := decodeAndValidate(r, preferencePatchSchema)
	if err != nil {
		s.writeError(w, errors.NewInvalidRequestError(err.Error()))
		return
	}

	var patch models.PreferencePatch
	if err := json.Unmarshal(body, &patch); err != nil {
		s.writeError(w, errors.NewInvalidRequestError(err.Error()))
		return
	}

	updated, err := s.engine.UpdatePreferences(r.Context(), recipientID, patch)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleListNotifications(w http.ResponseWriter, r *http.Request) {
	recipientID := mux.Vars(r)["id"]

	notifications, err := s.engine.Recent(r.Context(), recipientID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if notifications == nil {
		notifications = []models.Notification{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"notifications": notifications})
}

func (s *Server) handleGetNotification(w http.ResponseWriter, r *http.Request) {
	n, err := s.engine.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, n)
}

func (s *Server) handleAttempts(w http.ResponseWriter, r *http.Request) {
	attempts, err := s.engine.Attempts(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, err)
		return
	}
	if attempts == nil {
		attempts = []models.DeliveryAttempt{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"attempts": attempts})
}

// writeError maps engine errors onto HTTP statuses. Extra key/value maps are
// merged into the response body.
func (s *Server) writeError(w http.ResponseWriter, err error, extras ...map[string]interface{}) {
	status := http.StatusInternalServerError
	payload := map[string]interface{}{
		"error": err.Error(),
	}

	if code, ok := errors.CodeOf(err); ok {
		payload["code"] = code
		switch code {
		case errors.ErrCodeInvalidRequest:
			status = http.StatusBadRequest
		case errors.ErrCodeNoConsent, errors.ErrCodePreferenceNotFound:
			status = http.StatusUnprocessableEntity
		case errors.ErrCodeDispatchFailed:
			status = http.StatusBadGateway
		}
	}
	if isNotFound(err) {
		status = http.StatusNotFound
	}

	for _, extra := range extras {
		for k, v := range extra {
			payload[k] = v
		}
	}
	writeJSON(w, status, payload)
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
