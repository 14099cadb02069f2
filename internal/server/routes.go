package server

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/lazypower/hippocampus/internal/store"
	"github.com/lazypower/hippocampus/internal/transcript"
)

const (
	defaultListLimit = 20
	maxListLimit     = 500
	maxBodyBytes     = 64 << 20
)

func (s *Server) handleParams(w http.ResponseWriter, r *http.Request) {
	p := s.engine.Params()

	rates := make(map[string]float64, len(p.DecayRates))
	for t, v := range p.DecayRates {
		rates[string(t)] = v
	}
	floors := make(map[string]float64, len(p.RetentionFloor))
	for t, v := range p.RetentionFloor {
		floors[string(t)] = v
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"decay_rates":             rates,
		"retention_floor":         floors,
		"sparse_threshold":        p.SparseThreshold,
		"compress_threshold":      p.CompressThreshold,
		"max_sparse_index_tokens": p.MaxSparseIndexTokens,
	})
}

// handleCompact is the stateless form: nothing is read from or written to
// the store.
func (s *Server) handleCompact(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Messages        []transcript.Message `json:"messages"`
		PreviousSummary string               `json:"previous_summary"`
	}
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}

	writeJSON(w, http.StatusOK, s.engine.Compact(req.Messages, req.PreviousSummary))
}

func (s *Server) handleSessionCompact(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	if sessionID == "" {
		writeError(w, http.StatusBadRequest, "session id required")
		return
	}

	var req struct {
		Messages       []transcript.Message `json:"messages"`
		TranscriptPath string               `json:"transcript_path"`
		Project        string               `json:"project"`
		Trigger        string               `json:"trigger"`
	}
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}

	// The daemon never reads files named by a client.
	if req.TranscriptPath != "" {
		writeError(w, http.StatusBadRequest, "transcript_path is not accepted, send messages")
		return
	}
	msgs := req.Messages
	if req.Trigger == "" {
		req.Trigger = "api"
	}

	if _, err := s.db.InitSession(sessionID, req.Project); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	var previous string
	latest, err := s.db.LatestCompaction(sessionID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if latest != nil {
		previous = latest.Digest
	}

	digest := s.engine.Compact(msgs, previous)

	saved, err := s.db.SaveCompaction(store.Compaction{
		SessionID:    sessionID,
		Trigger:      req.Trigger,
		Digest:       digest.Text,
		Entries:      digest.Stats.Entries,
		Sparse:       digest.Stats.Sparse,
		Compressed:   digest.Stats.Compressed,
		Kept:         digest.Stats.Kept,
		Dropped:      digest.Stats.Dropped,
		TokensBefore: digest.Stats.TokensBefore,
		TokensAfter:  digest.Stats.TokensAfter,
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.logger.Info("compacted",
		"session", sessionID,
		"trigger", req.Trigger,
		"entries", digest.Stats.Entries,
		"tokens_before", digest.Stats.TokensBefore,
		"tokens_after", digest.Stats.TokensAfter,
		"chained", previous != "",
	)

	writeJSON(w, http.StatusOK, map[string]any{
		"compaction_id": saved.ID,
		"session_id":    sessionID,
		"digest":        digest.Text,
		"stats":         digest.Stats,
		"goals":         digest.Goals,
	})
}

func (s *Server) handleSessionSummary(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	c, err := s.db.LatestCompaction(sessionID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if c == nil {
		writeError(w, http.StatusNotFound, "no summary for session "+sessionID)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"session_id":    sessionID,
		"compaction_id": c.ID,
		"created_at":    time.UnixMilli(c.CreatedAt).UTC().Format(time.RFC3339),
		"digest":        c.Digest,
	})
}

type compactionJSON struct {
	ID           string `json:"id"`
	CreatedAt    string `json:"created_at"`
	Trigger      string `json:"trigger"`
	Entries      int    `json:"entries"`
	Sparse       int    `json:"sparse"`
	Compressed   int    `json:"compressed"`
	Kept         int    `json:"kept"`
	Dropped      int    `json:"dropped"`
	TokensBefore int    `json:"tokens_before"`
	TokensAfter  int    `json:"tokens_after"`
}

func (s *Server) handleListCompactions(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	list, err := s.db.ListCompactions(sessionID, listLimit(r))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	out := make([]compactionJSON, len(list))
	for i, c := range list {
		out[i] = compactionJSON{
			ID:           c.ID,
			CreatedAt:    time.UnixMilli(c.CreatedAt).UTC().Format(time.RFC3339),
			Trigger:      c.Trigger,
			Entries:      c.Entries,
			Sparse:       c.Sparse,
			Compressed:   c.Compressed,
			Kept:         c.Kept,
			Dropped:      c.Dropped,
			TokensBefore: c.TokensBefore,
			TokensAfter:  c.TokensAfter,
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"session_id":  sessionID,
		"count":       len(out),
		"compactions": out,
	})
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := s.db.GetRecentSessions(listLimit(r))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	type sessionJSON struct {
		SessionID       string `json:"session_id"`
		Project         string `json:"project,omitempty"`
		StartedAt       string `json:"started_at"`
		UpdatedAt       string `json:"updated_at"`
		CompactionCount int    `json:"compaction_count"`
	}

	out := make([]sessionJSON, len(sessions))
	for i, sess := range sessions {
		out[i] = sessionJSON{
			SessionID:       sess.SessionID,
			Project:         sess.Project,
			StartedAt:       time.UnixMilli(sess.StartedAt).UTC().Format(time.RFC3339),
			UpdatedAt:       time.UnixMilli(sess.UpdatedAt).UTC().Format(time.RFC3339),
			CompactionCount: sess.CompactionCount,
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"count":    len(out),
		"sessions": out,
	})
}

func listLimit(r *http.Request) int {
	limit := defaultListLimit
	if l := r.URL.Query().Get("limit"); l != "" {
		if n, err := strconv.Atoi(l); err == nil && n > 0 {
			limit = min(n, maxListLimit)
		}
	}
	return limit
}
