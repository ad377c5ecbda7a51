package routes

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"nftminter/storage/journal"
)

const maxEventPage = 500

func (s *server) getTransaction(w http.ResponseWriter, r *http.Request) {
	record, err := s.cfg.Journal.Transaction(chi.URLParam(r, "hash"))
	if errors.Is(err, journal.ErrNotFound) {
		writeError(w, http.StatusNotFound, "not_found", "transaction not journalled")
		return
	}
	if err != nil {
		s.logger.Error("journal read failed", "error", err)
		writeError(w, http.StatusInternalServerError, "journal", "journal unavailable")
		return
	}
	writeJSON(w, http.StatusOK, record)
}

func (s *server) listEvents(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	var after uint64
	if raw := query.Get("after"); raw != "" {
		parsed, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_cursor", "after must be a sequence number")
			return
		}
		after = parsed
	}
	limit := 100
	if raw := query.Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			writeError(w, http.StatusBadRequest, "invalid_limit", "limit must be positive")
			return
		}
		limit = min(parsed, maxEventPage)
	}
	entries, err := s.cfg.Journal.Entries(after, limit)
	if err != nil {
		s.logger.Error("journal read failed", "error", err)
		writeError(w, http.StatusInternalServerError, "journal", "journal unavailable")
		return
	}
	if entries == nil {
		entries = []journal.Entry{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": entries})
}
