package api

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/canchallena/panel/internal/httpx"
	"github.com/canchallena/panel/internal/service"
)

const (
	msgUnavailable = "El horario seleccionado ya no está disponible"
	msgNotBlocked  = "El horario no está bloqueado"
	msgNotFound    = "No encontrado"
	msgInternal    = "Ocurrió un error, intenta nuevamente"
)

// writeServiceError maps a service error onto a status code. Conflicts carry
// a freshly loaded grid so the client can redraw without another request.
func (s *Server) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *service.ValidationError
	var cerr *service.ConflictError
	switch {
	case errors.As(err, &verr):
		httpx.WriteErrorWith(w, http.StatusBadRequest, verr.Message, map[string]any{"campo": verr.Field})

	case errors.As(err, &cerr):
		extra := map[string]any{"horas": cerr.Times}
		grid, gerr := s.svc.Availability.Grid(r.Context(), cerr.Venue, cerr.CourtType, cerr.Date)
		if gerr != nil {
			s.log.Warn("grid refresh after conflict failed", zap.Error(gerr))
		} else {
			extra["grilla"] = grid
		}
		httpx.WriteErrorWith(w, http.StatusConflict, msgUnavailable, extra)

	case errors.Is(err, service.ErrNotBlocked):
		httpx.WriteError(w, http.StatusConflict, msgNotBlocked)

	case errors.Is(err, service.ErrConflict):
		httpx.WriteError(w, http.StatusConflict, msgUnavailable)

	case errors.Is(err, service.ErrNotFound):
		httpx.WriteError(w, http.StatusNotFound, msgNotFound)

	default:
		s.log.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		httpx.WriteError(w, http.StatusInternalServerError, msgInternal)
	}
}

// publicMessage is the text shown to a live view client for err.
func publicMessage(err error) string {
	var verr *service.ValidationError
	switch {
	case errors.As(err, &verr):
		return verr.Error()
	case errors.Is(err, service.ErrNotBlocked):
		return msgNotBlocked
	case errors.Is(err, service.ErrConflict):
		return msgUnavailable
	case errors.Is(err, service.ErrNotFound):
		return msgNotFound
	default:
		return msgInternal
	}
}
