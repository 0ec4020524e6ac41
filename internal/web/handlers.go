package web

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"pulsesync/internal/ics"
	appLog "pulsesync/internal/log"
	"pulsesync/internal/model"
	"pulsesync/internal/publish"
	"pulsesync/internal/timeedit"
)

// maxPublishBody bounds the publish request body.
const maxPublishBody = 4 << 20

// GET /api/schedule-source/schedule?url=<rawUrl>[&tz=<IANA>]
func (s *Server) handleSchedule(w http.ResponseWriter, r *http.Request) {
	schedule, ok := s.fetchSchedule(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, schedule)
}

// GET /api/schedule-source/schedule.ics?url=<rawUrl>[&tz=<IANA>]
func (s *Server) handleScheduleICS(w http.ResponseWriter, r *http.Request) {
	schedule, ok := s.fetchSchedule(w, r)
	if !ok {
		return
	}
	body, err := ics.Export(schedule, "TimeEdit")
	if err != nil {
		writeDomainError(w, err)
		return
	}
	w.Header().Set("Content-Type", ics.ContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="schedule.ics"`)
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, body)
}

// fetchSchedule reads the query, runs the fetch pipeline and writes an error
// envelope on failure.
func (s *Server) fetchSchedule(w http.ResponseWriter, r *http.Request) (*model.Schedule, bool) {
	q := r.URL.Query()
	rawURL := strings.TrimSpace(q.Get("url"))
	if rawURL == "" {
		writeError(w, http.StatusBadRequest, "INVALID_SOURCE_URL", "Query parameter 'url' is required",
			map[string]any{"param": "url"})
		return nil, false
	}

	loc := s.loc
	if tz := strings.TrimSpace(q.Get("tz")); tz != "" {
		l, err := time.LoadLocation(tz)
		if err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_TIMEZONE", "Unknown timezone: "+tz,
				map[string]any{"param": "tz", "timeeditUrl": rawURL})
			return nil, false
		}
		loc = l
	}

	schedule, err := s.deps.Schedules.FetchAndNormalize(r.Context(), rawURL, loc)
	if err != nil {
		var teErr *timeedit.Error
		if errors.As(err, &teErr) && writeSourceError(w, teErr, rawURL) {
			return nil, false
		}
		writeDomainError(w, err)
		return nil, false
	}
	return schedule, true
}

// POST /api/publish-target/publish
func (s *Server) handlePublish(w http.ResponseWriter, r *http.Request) {
	var req publish.Request
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxPublishBody))
	if err := dec.Decode(&req); err != nil {
		msg := "Request body must be a JSON publish request"
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			msg = "Request body is too large"
		}
		appLog.Warn("publish request rejected", "reason", err.Error())
		writeError(w, http.StatusBadRequest, "INVALID_PUBLISH_REQUEST", msg, nil)
		return
	}

	res, err := s.deps.Publisher.Publish(r.Context(), &req)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	status := http.StatusOK
	if res.Failed > 0 {
		status = http.StatusMultiStatus
	}
	writeJSON(w, status, res)
}

type identityResponse struct {
	ID        int64  `json:"id"`
	Login     string `json:"login"`
	ContextID string `json:"contextId"`
}

// GET /api/publish-target/identity
func (s *Server) handleIdentity(w http.ResponseWriter, r *http.Request) {
	id, err := s.deps.Identity.ResolveIdentity(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, identityResponse{ID: id.ID, Login: id.Login, ContextID: id.ContextID()})
}
