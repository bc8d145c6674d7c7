package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/galleta-assistant/galleta/agent/pkg/assistant"
	"github.com/galleta-assistant/galleta/agent/pkg/llm"
	"github.com/galleta-assistant/galleta/pkg/travel"
)

const (
	maxBodyBytes = 1 << 20

	// replyUnavailable is sent when the assistant fails after its own
	// fallbacks are exhausted.
	replyUnavailable = "Lo siento, no pude procesar tu mensaje en este momento. Intenta de nuevo más tarde."
)

var validRoles = map[string]bool{"": true, "usuario": true, "cliente": true, "empleado": true, "administrador": true}

// UserID accepts a JSON number or string.
type UserID string

func (u *UserID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*u = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*u = UserID(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("user_id must be a number or string")
	}
	if f, err := n.Float64(); err == nil && f == 0 {
		*u = ""
		return nil
	}
	*u = UserID(n.String())
	return nil
}

type ChatTurn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ChatRequest struct {
	Message  string     `json:"message"`
	UserRole string     `json:"user_role"`
	UserID   UserID     `json:"user_id"`
	UserName string     `json:"user_name"`
	History  []ChatTurn `json:"history"`
	ThreadID string     `json:"thread_id"`
}

type ChatResponse struct {
	Reply string `json:"reply"`
}

func (req *ChatRequest) toAssistant() (assistant.Request, error) {
	if strings.TrimSpace(req.Message) == "" {
		return assistant.Request{}, fmt.Errorf("message is required")
	}
	if !validRoles[req.UserRole] {
		return assistant.Request{}, fmt.Errorf("user_role must be one of usuario, cliente, empleado, administrador")
	}
	history := make([]llm.Message, 0, len(req.History))
	for i, turn := range req.History {
		switch llm.Role(turn.Role) {
		case llm.RoleUser, llm.RoleAssistant:
			history = append(history, llm.Message{Role: llm.Role(turn.Role), Content: turn.Content})
		case llm.RoleSystem:
			// Only the gate writes system prompts; a caller's turn is just text.
			history = append(history, llm.User(turn.Content))
		default:
			return assistant.Request{}, fmt.Errorf("history[%d].role must be user, assistant or system", i)
		}
	}
	return assistant.Request{
		Message:  req.Message,
		Role:     req.UserRole,
		UserID:   string(req.UserID),
		UserName: req.UserName,
		History:  history,
		ThreadID: req.ThreadID,
	}, nil
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte("ok\n")); err != nil {
		s.logger.Error("api: failed to write healthz response", "error", err)
	}
}

// handleAsk answers through the role-gated database pipeline.
func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	s.handleAssistant(w, r, s.assistant.Ask)
}

// handleChat answers as the chat persona with memory.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	s.handleAssistant(w, r, s.assistant.Chat)
}

type assistantFunc func(ctx context.Context, req assistant.Request) (*assistant.Response, error)

func (s *Server) handleAssistant(w http.ResponseWriter, r *http.Request, fn assistantFunc) {
	var req ChatRequest
	if err := s.decode(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	areq, err := req.toAssistant()
	if err != nil {
		s.writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	res, err := fn(r.Context(), areq)
	if err != nil {
		if errors.Is(err, assistant.ErrEmptyMessage) {
			s.writeError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		s.logger.Error("api: assistant failed", "path", r.URL.Path, "error", err)
		s.writeJSON(w, http.StatusBadGateway, ChatResponse{Reply: replyUnavailable})
		return
	}
	s.writeJSON(w, http.StatusOK, ChatResponse{Reply: res.Reply})
}

func (s *Server) handleGetTrips(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string][]travel.Trip{"viajes": s.trips()})
}

func (s *Server) handleListTrips(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.trips())
}

func (s *Server) trips() []travel.Trip {
	trips := s.catalog.Trips()
	if trips == nil {
		trips = []travel.Trip{}
	}
	return trips
}

func (s *Server) handleReloadCatalog(w http.ResponseWriter, r *http.Request) {
	total, err := s.catalog.Reload(r.Context())
	if err != nil {
		s.logger.Error("api: catalog reload failed", "error", err)
		s.writeError(w, http.StatusBadGateway, "failed to reload catalog")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"ok": true, "total": total})
}

func (s *Server) handleSetSource(w http.ResponseWriter, r *http.Request) {
	var spec travel.SourceSpec
	if err := s.decode(r, &spec); err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	used, err := s.catalog.SetSource(r.Context(), spec)
	switch {
	case errors.Is(err, travel.ErrNoSource):
		s.writeError(w, http.StatusUnprocessableEntity, "api_url or json_path is required")
		return
	case err != nil:
		s.logger.Error("api: set catalog source failed", "source", used, "error", err)
		s.writeError(w, http.StatusBadGateway, "failed to load catalog from "+used)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"ok": true, "used": used, "total": len(s.catalog.Trips())})
}

type setCatalogRequest struct {
	Items []map[string]any `json:"items"`
}

func (s *Server) handleSetCatalog(w http.ResponseWriter, r *http.Request) {
	var req setCatalogRequest
	if err := s.decode(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Items == nil {
		s.writeError(w, http.StatusUnprocessableEntity, "items is required")
		return
	}
	total := s.catalog.Set(req.Items)
	s.writeJSON(w, http.StatusOK, map[string]any{"ok": true, "total": total})
}

func (s *Server) decode(r *http.Request, v any) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return fmt.Errorf("failed to read body: %w", err)
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	return nil
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		s.logger.Error("api: failed to write response", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, detail string) {
	s.writeJSON(w, status, map[string]string{"detail": detail})
}
