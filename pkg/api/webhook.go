package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/isolink-io/isolink/pkg/linker"
	"github.com/isolink-io/isolink/pkg/store"
)

func (s *Server) handleWebhooks(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		http.Error(w, `{"error":"persistence_disabled"}`, http.StatusServiceUnavailable)
		return
	}
	switch r.Method {
	case http.MethodPost:
		s.createWebhook(w, r)
	case http.MethodGet:
		s.listWebhooks(w, r)
	case http.MethodDelete:
		s.deleteWebhook(w, r)
	default:
		http.Error(w, `{"error":"method_not_allowed"}`, http.StatusMethodNotAllowed)
	}
}

func (s *Server) createWebhook(w http.ResponseWriter, r *http.Request) {
	var req CreateWebhookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid_json"}`, http.StatusBadRequest)
		return
	}
	if req.URL == "" {
		http.Error(w, `{"error":"missing_url"}`, http.StatusBadRequest)
		return
	}
	u, err := url.Parse(req.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		http.Error(w, `{"error":"invalid_url"}`, http.StatusBadRequest)
		return
	}
	for _, t := range req.Types {
		if !validEventType(t) {
			http.Error(w, `{"error":"unknown_event_type"}`, http.StatusBadRequest)
			return
		}
	}

	secret, err := generateToken()
	if err != nil {
		s.logger.Error("secret generation failed", "error", err)
		http.Error(w, `{"error":"internal_server_error"}`, http.StatusInternalServerError)
		return
	}
	cfg := store.WebhookConfig{
		WebhookID: fmt.Sprintf("wh_%d", time.Now().UnixNano()),
		URL:       req.URL,
		Secret:    secret,
		Types:     req.Types,
		CreatedAt: time.Now().UTC(),
		Active:    true,
	}
	if err := s.store.CreateWebhook(r.Context(), cfg); err != nil {
		s.logger.Error("webhook create failed", "error", err, "trace_id", getTraceID(r.Context()))
		http.Error(w, `{"error":"webhook_create_failed"}`, http.StatusInternalServerError)
		return
	}

	// The secret is returned exactly once; listings redact it.
	writeJSON(w, http.StatusCreated, CreateWebhookResponse{
		WebhookID: cfg.WebhookID,
		Secret:    secret,
	})
}

func (s *Server) listWebhooks(w http.ResponseWriter, r *http.Request) {
	activeOnly := r.URL.Query().Get("active") == "true"
	hooks, err := s.store.ListWebhooks(r.Context(), activeOnly)
	if err != nil {
		s.logger.Error("webhook list failed", "error", err, "trace_id", getTraceID(r.Context()))
		http.Error(w, `{"error":"query_failed"}`, http.StatusInternalServerError)
		return
	}

	out := make([]WebhookInfo, 0, len(hooks))
	for _, h := range hooks {
		out = append(out, WebhookInfo{
			WebhookID: h.WebhookID,
			URL:       h.URL,
			Types:     h.Types,
			CreatedAt: h.CreatedAt.UTC().Format(time.RFC3339),
			Active:    h.Active,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) deleteWebhook(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("webhook_id")
	if id == "" {
		http.Error(w, `{"error":"missing_webhook_id"}`, http.StatusBadRequest)
		return
	}
	if err := s.store.DeleteWebhook(r.Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			http.Error(w, `{"error":"webhook_not_found"}`, http.StatusNotFound)
			return
		}
		s.logger.Error("webhook delete failed", "error", err, "trace_id", getTraceID(r.Context()))
		http.Error(w, `{"error":"webhook_delete_failed"}`, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted", "webhook_id": id})
}

func validEventType(t string) bool {
	switch t {
	case "*", string(linker.EventIndirectLink), string(linker.EventCanonicalMerge):
		return true
	}
	return false
}
