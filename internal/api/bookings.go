package api

import (
	"net/http"

	"github.com/canchallena/panel/internal/httpx"
	"github.com/canchallena/panel/internal/model"
	"github.com/canchallena/panel/internal/service"
)

func (s *Server) handleBookingsList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f, err := bookingFilter(q)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	page, size, err := pageParams(q)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	out, err := s.svc.Bookings.List(r.Context(), f, page, size)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, out)
}

func (s *Server) handleBookingGet(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	b, err := s.svc.Bookings.Get(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, b)
}

func (s *Server) handleBookingCreate(w http.ResponseWriter, r *http.Request) {
	var in service.BookingInput
	if err := httpx.ReadJSON(r, &in); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	b, err := s.svc.Bookings.Place(r.Context(), in)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, b)
}

func (s *Server) handleBookingEdit(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	var in service.BookingInput
	if err := httpx.ReadJSON(r, &in); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	b, err := s.svc.Bookings.Edit(r.Context(), id, in)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, b)
}

func (s *Server) handleBookingCancel(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	if err := s.svc.Bookings.Cancel(r.Context(), id); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"success": true})
}

type statusRequest struct {
	Status model.BookingStatus `json:"estado"`
}

func (s *Server) handleBookingStatus(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	var req statusRequest
	if err := httpx.ReadJSON(r, &req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.svc.Bookings.SetStatus(r.Context(), id, req.Status); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"success": true})
}
