package api

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/canchallena/panel/internal/calendar"
	"github.com/canchallena/panel/internal/model"
	"github.com/canchallena/panel/internal/repository"
	"github.com/canchallena/panel/internal/service"
)

func badParam(field, message string) error {
	return &service.ValidationError{Field: field, Message: message}
}

func queryDate(q url.Values, key string) (calendar.Date, error) {
	raw := strings.TrimSpace(q.Get(key))
	if raw == "" {
		return calendar.Date{}, nil
	}
	d, err := calendar.ParseDate(raw)
	if err != nil {
		return calendar.Date{}, badParam(key, "fecha inválida, usa AAAA-MM-DD")
	}
	return d, nil
}

func queryInt(q url.Values, key string) (int, error) {
	raw := strings.TrimSpace(q.Get(key))
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, badParam(key, "debe ser un número")
	}
	return n, nil
}

func queryBool(q url.Values, key string) (*bool, error) {
	raw := strings.TrimSpace(q.Get(key))
	if raw == "" {
		return nil, nil
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return nil, badParam(key, "debe ser true o false")
	}
	return &b, nil
}

func pathID(r *http.Request, key string) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, key), 10, 64)
	if err != nil || id <= 0 {
		return 0, badParam(key, "id inválido")
	}
	return id, nil
}

// dateRange reads desde/hasta. A missing bound defaults to today.
func (s *Server) dateRange(q url.Values) (calendar.Date, calendar.Date, error) {
	from, err := queryDate(q, "desde")
	if err != nil {
		return calendar.Date{}, calendar.Date{}, err
	}
	to, err := queryDate(q, "hasta")
	if err != nil {
		return calendar.Date{}, calendar.Date{}, err
	}
	today := calendar.DateOf(s.now().In(s.loc))
	if from.IsZero() {
		from = today
	}
	if to.IsZero() {
		to = from
	}
	return from, to, nil
}

func pageParams(q url.Values) (int, int, error) {
	page, err := queryInt(q, "page")
	if err != nil {
		return 0, 0, err
	}
	size, err := queryInt(q, "page_size")
	if err != nil {
		return 0, 0, err
	}
	return page, size, nil
}

// bookingFilter reads the list filters shared by the REST list and the
// bookings live view.
func bookingFilter(q url.Values) (repository.BookingFilter, error) {
	from, err := queryDate(q, "desde")
	if err != nil {
		return repository.BookingFilter{}, err
	}
	to, err := queryDate(q, "hasta")
	if err != nil {
		return repository.BookingFilter{}, err
	}
	f := repository.BookingFilter{
		Venue:   strings.TrimSpace(q.Get("centro")),
		From:    from,
		To:      to,
		Channel: model.Channel(strings.TrimSpace(q.Get("canal"))),
		Phone:   strings.TrimSpace(q.Get("telefono")),
	}
	if f.Channel != "" && !f.Channel.Valid() {
		return repository.BookingFilter{}, badParam("canal", "canal desconocido")
	}
	for _, raw := range strings.Split(q.Get("estado"), ",") {
		st := model.BookingStatus(strings.TrimSpace(raw))
		if st == "" {
			continue
		}
		if !st.Valid() {
			return repository.BookingFilter{}, badParam("estado", "estado desconocido")
		}
		f.Statuses = append(f.Statuses, st)
	}
	return f, nil
}
