package api

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/canchallena/panel/internal/availability"
	"github.com/canchallena/panel/internal/calendar"
	"github.com/canchallena/panel/internal/httpx"
	"github.com/canchallena/panel/internal/service"
)

const defaultDeadHours = 5

type courtGroupView struct {
	Type      string           `json:"tipo_cancha"`
	Courts    []string         `json:"canchas"`
	Opens     calendar.Clock   `json:"apertura"`
	Closes    calendar.Clock   `json:"cierre"`
	Interval  int              `json:"intervalo"`
	Durations []int            `json:"duraciones"`
	Times     []calendar.Clock `json:"horarios"`
}

type venueView struct {
	Name   string           `json:"centro"`
	Groups []courtGroupView `json:"tipos"`
}

func (s *Server) handleVenues(w http.ResponseWriter, r *http.Request) {
	venues := s.svc.Availability.Venues().Venues()
	out := make([]venueView, 0, len(venues))
	for _, v := range venues {
		vv := venueView{Name: v.Name}
		for i := range v.Groups {
			g := &v.Groups[i]
			vv.Groups = append(vv.Groups, courtGroupView{
				Type:      g.Type,
				Courts:    g.Courts,
				Opens:     g.Opens,
				Closes:    g.Closes,
				Interval:  g.Interval,
				Durations: g.Durations,
				Times:     g.Times(),
			})
		}
		out = append(out, vv)
	}
	httpx.WriteJSON(w, http.StatusOK, out)
}

func (s *Server) gridParams(r *http.Request) (string, string, calendar.Date, error) {
	q := r.URL.Query()
	venueName := strings.TrimSpace(q.Get("centro"))
	courtType := strings.TrimSpace(q.Get("tipo_cancha"))
	if venueName == "" {
		return "", "", calendar.Date{}, badParam("centro", "es obligatorio")
	}
	if courtType == "" {
		return "", "", calendar.Date{}, badParam("tipo_cancha", "es obligatorio")
	}
	date, err := queryDate(q, "fecha")
	if err != nil {
		return "", "", calendar.Date{}, err
	}
	if date.IsZero() {
		date = calendar.DateOf(s.now().In(s.loc))
	}
	return venueName, courtType, date, nil
}

func (s *Server) handleGrid(w http.ResponseWriter, r *http.Request) {
	venueName, courtType, date, err := s.gridParams(r)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	grid, err := s.svc.Availability.Grid(r.Context(), venueName, courtType, date)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, grid)
}

func (s *Server) handleFreeStarts(w http.ResponseWriter, r *http.Request) {
	venueName, courtType, date, err := s.gridParams(r)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	q := r.URL.Query()
	duration, err := queryInt(q, "duracion")
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	exclude, err := queryInt(q, "excluir")
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	starts, err := s.svc.Availability.FreeStarts(r.Context(), service.FreeStartsQuery{
		Venue:          venueName,
		CourtType:      courtType,
		Court:          q.Get("cancha"),
		Date:           date,
		Duration:       duration,
		ExcludeBooking: int64(exclude),
	})
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	if starts == nil {
		starts = []calendar.Clock{}
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"horarios": starts})
}

// handleOccupancy returns per-venue prime-time occupancy, or a single group's
// when centro and tipo_cancha are given.
func (s *Server) handleOccupancy(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	from, to, err := s.dateRange(q)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	venueName, courtType := q.Get("centro"), q.Get("tipo_cancha")
	if venueName != "" && courtType != "" {
		stats, err := s.svc.Availability.GroupOccupancy(r.Context(), venueName, courtType, from, to)
		if err != nil {
			s.writeServiceError(w, r, err)
			return
		}
		httpx.WriteJSON(w, http.StatusOK, stats)
		return
	}
	stats, err := s.svc.Availability.Occupancy(r.Context(), from, to, nil)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, stats)
}

func (s *Server) handleDeadHours(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	from, to, err := s.dateRange(q)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	n, err := queryInt(q, "n")
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	if n == 0 {
		n = defaultDeadHours
	}
	loads, err := s.svc.Availability.DeadHours(r.Context(), from, to, n, availability.Held)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, loads)
}

func (s *Server) handleBlock(w http.ResponseWriter, r *http.Request) {
	var in service.BlockInput
	if err := httpx.ReadJSON(r, &in); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	slot, err := s.svc.Bookings.Block(r.Context(), in)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, slot)
}

func (s *Server) handleUnblock(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(chi.URLParam(r, "id"))
	if err := s.svc.Bookings.Unblock(r.Context(), id); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	from, to, err := s.dateRange(r.URL.Query())
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	summary, err := s.svc.Dashboard.Summary(r.Context(), from, to)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, summary)
}
