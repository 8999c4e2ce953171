package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Kerhoff/daycal/internal/layout"
	"github.com/Kerhoff/daycal/internal/models"
	"github.com/Kerhoff/daycal/internal/service"
	"github.com/Kerhoff/daycal/internal/settings"
)

const maxBodyBytes = 5 << 20

// SettingsStore reads and replaces the user settings.
type SettingsStore interface {
	Get() settings.Settings
	Update(s settings.Settings) (settings.Settings, error)
}

// Server provides the HTTP API.
type Server struct {
	svc      *service.Service
	settings SettingsStore
	logger   *logrus.Logger
	mux      *http.ServeMux
}

// NewServer creates a Server, registers all routes, and returns it.
func NewServer(svc *service.Service, settings SettingsStore, logger *logrus.Logger) *Server {
	s := &Server{svc: svc, settings: settings, logger: logger, mux: http.NewServeMux()}
	s.routes()
	return s
}

// Handler returns the http.Handler that can be passed to http.Server.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// ---------------------------------------------------------------------------
// Routes
// ---------------------------------------------------------------------------

func (s *Server) routes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)

	// API – Events
	s.mux.HandleFunc("GET /api/events", s.handleGetEvents)
	s.mux.HandleFunc("POST /api/events", s.handleCreateEvent)
	s.mux.HandleFunc("GET /api/events/{id}", s.handleGetEvent)
	s.mux.HandleFunc("PUT /api/events/{id}", s.handleUpdateEvent)
	s.mux.HandleFunc("DELETE /api/events/{id}", s.handleDeleteEvent)

	// API – Day view
	s.mux.HandleFunc("GET /api/day", s.handleGetDay)

	// API – Reminders
	s.mux.HandleFunc("GET /api/reminders", s.handleGetReminders)

	// API – Import / export
	s.mux.HandleFunc("POST /api/import", s.handleImport)
	s.mux.HandleFunc("GET /api/calendar.ics", s.handleExport)

	// API – Settings
	s.mux.HandleFunc("GET /api/settings", s.handleGetSettings)
	s.mux.HandleFunc("PUT /api/settings", s.handleUpdateSettings)
}

// ---------------------------------------------------------------------------
// JSON helpers
// ---------------------------------------------------------------------------

func (s *Server) respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			s.logger.WithError(err).Error("failed to encode JSON response")
		}
	}
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}

// respondServiceError maps service errors to status codes. Unexpected errors
// are logged and hidden behind a generic message.
func (s *Server) respondServiceError(w http.ResponseWriter, err error, action string) {
	switch {
	case errors.Is(err, service.ErrNotFound):
		s.respondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrInvalidInterval), errors.Is(err, service.ErrInvalidEvent):
		s.respondError(w, http.StatusBadRequest, err.Error())
	default:
		s.logger.WithError(err).Errorf("failed to %s", action)
		s.respondError(w, http.StatusInternalServerError, "failed to "+action)
	}
}

// decodeJSON reads the request body into dst and returns an error message on
// failure.  The caller should return immediately when ok == false.
func (s *Server) decodeJSON(w http.ResponseWriter, r *http.Request, dst any) (ok bool, errMsg string) {
	if r.Body == nil {
		return false, "request body is empty"
	}
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(dst); err != nil {
		return false, fmt.Sprintf("invalid JSON: %v", err)
	}
	return true, ""
}

// parseTimeParam reads an optional RFC 3339 query parameter.
func parseTimeParam(r *http.Request, name string) (*time.Time, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, fmt.Errorf("%s must be RFC 3339 format", name)
	}
	return &t, nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ---------------------------------------------------------------------------
// Events
// ---------------------------------------------------------------------------

type eventRequest struct {
	ID                      string `json:"id"`
	Title                   string `json:"title"`
	Description             string `json:"description"`
	Location                string `json:"location"`
	StartDate               string `json:"start_date"` // RFC 3339
	EndDate                 string `json:"end_date"`   // RFC 3339
	IsAllDay                bool   `json:"is_all_day"`
	Recurrence              string `json:"recurrence"`
	NotificationLeadMinutes *int   `json:"notification_lead_minutes"`
	Color                   string `json:"color"`
	CalendarID              string `json:"calendar_id"`
}

// toEvent converts the request. A missing lead time becomes defaultLead.
func (req *eventRequest) toEvent(defaultLead int) (*models.Event, error) {
	if req.StartDate == "" || req.EndDate == "" {
		return nil, errors.New("start_date and end_date are required")
	}
	start, err := time.Parse(time.RFC3339, req.StartDate)
	if err != nil {
		return nil, errors.New("start_date must be RFC 3339 format")
	}
	end, err := time.Parse(time.RFC3339, req.EndDate)
	if err != nil {
		return nil, errors.New("end_date must be RFC 3339 format")
	}

	lead := defaultLead
	if req.NotificationLeadMinutes != nil {
		lead = *req.NotificationLeadMinutes
	}
	if lead < 0 {
		return nil, errors.New("notification_lead_minutes must not be negative")
	}

	return &models.Event{
		ID:                      strings.TrimSpace(req.ID),
		Title:                   strings.TrimSpace(req.Title),
		Description:             strings.TrimSpace(req.Description),
		Location:                strings.TrimSpace(req.Location),
		StartDate:               start,
		EndDate:                 end,
		IsAllDay:                req.IsAllDay,
		Recurrence:              models.Recurrence(req.Recurrence),
		NotificationLeadMinutes: lead,
		Color:                   req.Color,
		CalendarID:              req.CalendarID,
	}, nil
}

func (s *Server) handleGetEvents(w http.ResponseWriter, r *http.Request) {
	from, err := parseTimeParam(r, "from")
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	to, err := parseTimeParam(r, "to")
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil {
			limit = v
		}
	}

	events, err := s.svc.ListEvents(r.Context(), from, to, limit)
	if err != nil {
		s.respondServiceError(w, err, "get events")
		return
	}
	if events == nil {
		events = []*models.Event{}
	}

	s.respondJSON(w, http.StatusOK, events)
}

func (s *Server) handleGetEvent(w http.ResponseWriter, r *http.Request) {
	ev, err := s.svc.GetEvent(r.Context(), r.PathValue("id"))
	if err != nil {
		s.respondServiceError(w, err, "get event")
		return
	}
	s.respondJSON(w, http.StatusOK, ev)
}

func (s *Server) handleCreateEvent(w http.ResponseWriter, r *http.Request) {
	var req eventRequest
	if ok, msg := s.decodeJSON(w, r, &req); !ok {
		s.respondError(w, http.StatusBadRequest, msg)
		return
	}

	ev, err := req.toEvent(s.svc.DefaultLeadMinutes())
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	m, err := s.svc.CreateEvent(r.Context(), ev)
	if err != nil {
		s.respondServiceError(w, err, "create event")
		return
	}

	s.respondJSON(w, http.StatusCreated, m)
}

func (s *Server) handleUpdateEvent(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	existing, err := s.svc.GetEvent(r.Context(), id)
	if err != nil {
		s.respondServiceError(w, err, "update event")
		return
	}

	var req eventRequest
	if ok, msg := s.decodeJSON(w, r, &req); !ok {
		s.respondError(w, http.StatusBadRequest, msg)
		return
	}

	ev, err := req.toEvent(existing.NotificationLeadMinutes)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	ev.ID = id

	m, err := s.svc.UpdateEvent(r.Context(), ev)
	if err != nil {
		s.respondServiceError(w, err, "update event")
		return
	}

	s.respondJSON(w, http.StatusOK, m)
}

func (s *Server) handleDeleteEvent(w http.ResponseWriter, r *http.Request) {
	m, err := s.svc.DeleteEvent(r.Context(), r.PathValue("id"))
	if err != nil {
		s.respondServiceError(w, err, "delete event")
		return
	}

	if m.Warning != "" {
		s.respondJSON(w, http.StatusOK, m)
		return
	}
	s.respondJSON(w, http.StatusNoContent, nil)
}

// ---------------------------------------------------------------------------
// Day view
// ---------------------------------------------------------------------------

type blockResponse struct {
	EventID      string          `json:"event_id"`
	SeriesID     string          `json:"series_id,omitempty"`
	Title        string          `json:"title"`
	Color        string          `json:"color"`
	IsAllDay     bool            `json:"is_all_day"`
	Start        time.Time       `json:"start"`
	End          time.Time       `json:"end"`
	Column       int             `json:"column"`
	TotalColumns int             `json:"total_columns"`
	Partial      bool            `json:"partial"`
	Position     layout.Position `json:"position"`
	Top          int             `json:"top"`
	Height       int             `json:"height"`
	Left         float64         `json:"left"`
	Width        float64         `json:"width"`
}

type dayResponse struct {
	Date     string          `json:"date"`
	Timezone string          `json:"timezone"`
	Blocks   []blockResponse `json:"blocks"`
}

func (s *Server) handleGetDay(w http.ResponseWriter, r *http.Request) {
	loc := s.svc.Location()
	day := time.Now().In(loc)
	if raw := r.URL.Query().Get("date"); raw != "" {
		d, err := time.ParseInLocation("2006-01-02", raw, loc)
		if err != nil {
			s.respondError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
			return
		}
		day = d
	}

	blocks, err := s.svc.DayLayout(r.Context(), day)
	if err != nil {
		s.respondServiceError(w, err, "compute day layout")
		return
	}

	resp := dayResponse{
		Date:     day.Format("2006-01-02"),
		Timezone: loc.String(),
		Blocks:   make([]blockResponse, 0, len(blocks)),
	}
	for _, b := range blocks {
		resp.Blocks = append(resp.Blocks, blockResponse{
			EventID:      b.Event.ID,
			SeriesID:     b.Event.SeriesID,
			Title:        b.Event.Title,
			Color:        b.Event.Color,
			IsAllDay:     b.Event.IsAllDay,
			Start:        b.Start,
			End:          b.End,
			Column:       b.Column,
			TotalColumns: b.TotalColumns,
			Partial:      b.Partial,
			Position:     b.Position,
			Top:          b.Top,
			Height:       b.Height,
			Left:         b.Left,
			Width:        b.Width,
		})
	}

	s.respondJSON(w, http.StatusOK, resp)
}

// ---------------------------------------------------------------------------
// Reminders
// ---------------------------------------------------------------------------

func (s *Server) handleGetReminders(w http.ResponseWriter, r *http.Request) {
	reminders, err := s.svc.Reminders(r.Context())
	if err != nil {
		s.respondServiceError(w, err, "get reminders")
		return
	}
	if reminders == nil {
		reminders = []*models.ScheduledReminder{}
	}

	s.respondJSON(w, http.StatusOK, reminders)
}

// ---------------------------------------------------------------------------
// Import / export
// ---------------------------------------------------------------------------

func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	if r.Body == nil {
		s.respondError(w, http.StatusBadRequest, "request body is empty")
		return
	}

	var (
		result *service.ImportResult
		err    error
	)
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		var reqs []eventRequest
		if ok, msg := s.decodeJSON(w, r, &reqs); !ok {
			s.respondError(w, http.StatusBadRequest, msg)
			return
		}
		events := make([]models.Event, 0, len(reqs))
		for i := range reqs {
			ev, err := reqs[i].toEvent(s.svc.DefaultLeadMinutes())
			if err != nil {
				s.respondError(w, http.StatusBadRequest, fmt.Sprintf("event %d: %v", i, err))
				return
			}
			events = append(events, *ev)
		}
		result, err = s.svc.ImportEvents(r.Context(), events)
	} else {
		result, err = s.svc.ImportICS(r.Context(), http.MaxBytesReader(w, r.Body, maxBodyBytes))
	}
	if err != nil {
		s.respondServiceError(w, err, "import events")
		return
	}

	s.respondJSON(w, http.StatusOK, result)
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	feed, err := s.svc.ExportICS(r.Context())
	if err != nil {
		s.respondServiceError(w, err, "export events")
		return
	}

	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="daycal.ics"`)
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte(feed)); err != nil {
		s.logger.WithError(err).Error("failed to write calendar feed")
	}
}

// ---------------------------------------------------------------------------
// Settings
// ---------------------------------------------------------------------------

func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, s.settings.Get())
}

func (s *Server) handleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	next := s.settings.Get()
	if ok, msg := s.decodeJSON(w, r, &next); !ok {
		s.respondError(w, http.StatusBadRequest, msg)
		return
	}
	if next.DefaultLeadMinutes < 0 {
		s.respondError(w, http.StatusBadRequest, "default_lead_minutes must not be negative")
		return
	}

	saved, err := s.settings.Update(next)
	if err != nil {
		s.logger.WithError(err).Error("failed to save settings")
		s.respondError(w, http.StatusInternalServerError, "failed to save settings")
		return
	}

	s.logger.WithFields(logrus.Fields{
		"default_lead_minutes": saved.DefaultLeadMinutes,
		"sound_profile":        saved.SoundProfile,
	}).Info("Settings updated")

	s.respondJSON(w, http.StatusOK, saved)
}
