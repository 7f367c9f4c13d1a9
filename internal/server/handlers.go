package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/hyperjump/taxlens/internal/dataset"
	"github.com/hyperjump/taxlens/internal/models"
	"github.com/hyperjump/taxlens/internal/session"
	"github.com/hyperjump/taxlens/internal/storage"
)

// SessionInfo describes a live session.
type SessionInfo struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	Focus     string    `json:"focus,omitempty"`
	FocusName string    `json:"focus_name,omitempty"`
	Turns     int       `json:"turns"`
	Exchanges int       `json:"exchanges"`
}

// HistoryResponse is the display transcript, newest first.
type HistoryResponse struct {
	History []session.Exchange `json:"history"`
}

// FocusRequest selects an organization; an empty EIN returns to the general context.
type FocusRequest struct {
	EIN string `json:"ein"`
}

// StatusResponse is returned by /api/v1/status.
type StatusResponse struct {
	Version  string           `json:"version,omitempty"`
	Sessions int              `json:"sessions"`
	Dataset  dataset.Overview `json:"dataset"`
	DataFile *DataFileInfo    `json:"data_file,omitempty"`
}

// Preview row limits for /api/v1/dataset/preview.
const (
	defaultPreviewRows = 5
	maxPreviewRows     = 100
)

// PreviewResponse is the head of the loaded table.
type PreviewResponse struct {
	Columns []string         `json:"columns"`
	Records []*models.Record `json:"records"`
	Total   int              `json:"total"`
}

// DataFileInfo describes the backing data file.
type DataFileInfo struct {
	Path      string    `json:"path"`
	SizeBytes int64     `json:"size_bytes"`
	Size      string    `json:"size"`
	Modified  time.Time `json:"modified"`
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	sess := s.sessions.Create()
	s.respondJSON(w, http.StatusCreated, sessionInfo(sess))
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	s.respondJSON(w, http.StatusOK, sessionInfo(sess))
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.sessions.Delete(id); err != nil {
		s.respondSessionError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	var q models.Question
	if err := json.NewDecoder(r.Body).Decode(&q); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := q.Validate(); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.logger.Debug("question request", zap.String("session", sess.ID), zap.Int("length", len(q.Text)))
	answer := s.analyzer.Analyze(r.Context(), sess, q.Text)
	s.respondJSON(w, http.StatusOK, answer)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	s.respondJSON(w, http.StatusOK, HistoryResponse{History: sess.Transcript()})
}

func (s *Server) handleClearHistory(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	sess.Clear()
	s.logger.Debug("history cleared", zap.String("session", sess.ID))
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
}

func (s *Server) handleSetFocus(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	var req FocusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.EIN == "" {
		sess.SetFocus("", "")
		s.respondJSON(w, http.StatusOK, models.Organization{})
		return
	}
	org, found := s.data.Organization(req.EIN)
	if !found {
		s.respondError(w, http.StatusNotFound, "organization not found")
		return
	}
	sess.SetFocus(org.EIN, org.BusinessName)
	s.logger.Debug("focus set", zap.String("session", sess.ID), zap.String("ein", org.EIN))
	s.respondJSON(w, http.StatusOK, org)
}

func (s *Server) handleDataset(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, s.data.Overview())
}

func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	limit := defaultPreviewRows
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			s.respondError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, maxPreviewRows)
	}
	head := s.data.Preview(limit)
	s.respondJSON(w, http.StatusOK, PreviewResponse{
		Columns: head.Columns,
		Records: head.Records,
		Total:   s.data.Overview().TotalRecords,
	})
}

func (s *Server) handleReload(w http.ResponseWriter, r *http.Request) {
	if err := s.data.Reload(r.Context()); err != nil {
		s.logger.Error("dataset reload failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, s.data.Overview())
}

func (s *Server) handleOrganizations(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"organizations": s.data.Organizations()})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	resp := StatusResponse{
		Version:  s.version,
		Sessions: s.sessions.Len(),
		Dataset:  s.data.Overview(),
	}
	if s.dataPath != "" {
		st, err := storage.StatFile(s.dataPath)
		if err != nil {
			s.logger.Warn("status: stat data file failed", zap.Error(err))
		} else if st != nil {
			resp.DataFile = &DataFileInfo{
				Path:      st.Path,
				SizeBytes: st.Size,
				Size:      humanize.Bytes(uint64(st.Size)),
				Modified:  st.Modified,
			}
		}
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) session(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	sess, err := s.sessions.Get(chi.URLParam(r, "id"))
	if err != nil {
		s.respondSessionError(w, err)
		return nil, false
	}
	return sess, true
}

func (s *Server) respondSessionError(w http.ResponseWriter, err error) {
	if errors.Is(err, session.ErrSessionNotFound) {
		s.respondError(w, http.StatusNotFound, err.Error())
		return
	}
	s.respondError(w, http.StatusInternalServerError, err.Error())
}

func sessionInfo(sess *session.Session) SessionInfo {
	return SessionInfo{
		ID:        sess.ID,
		CreatedAt: sess.CreatedAt,
		Focus:     sess.Focus(),
		FocusName: sess.FocusName(),
		Turns:     sess.Memory.Len(),
		Exchanges: len(sess.Transcript()),
	}
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
