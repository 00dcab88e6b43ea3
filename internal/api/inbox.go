package api

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/canchallena/panel/internal/httpx"
	"github.com/canchallena/panel/internal/model"
	"github.com/canchallena/panel/internal/repository"
	"github.com/canchallena/panel/internal/service"
)

func alertQuery(q url.Values) (service.AlertQuery, error) {
	read, err := queryBool(q, "leida")
	if err != nil {
		return service.AlertQuery{}, err
	}
	date, err := queryDate(q, "fecha")
	if err != nil {
		return service.AlertQuery{}, err
	}
	return service.AlertQuery{Read: read, Type: strings.TrimSpace(q.Get("tipo")), Date: date}, nil
}

func (s *Server) handleAlertsList(w http.ResponseWriter, r *http.Request) {
	aq, err := alertQuery(r.URL.Query())
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	alerts, err := s.svc.Alerts.List(r.Context(), aq)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	unread, err := s.svc.Alerts.CountUnread(r.Context())
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"alertas": alerts, "no_leidas": unread})
}

type markReadRequest struct {
	IDs []int64 `json:"ids"`
}

func (s *Server) handleAlertsRead(w http.ResponseWriter, r *http.Request) {
	var req markReadRequest
	if err := httpx.ReadJSON(r, &req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	n, err := s.svc.Alerts.MarkRead(r.Context(), req.IDs)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"success": true, "actualizadas": n})
}

func (s *Server) handleAlertResolve(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	if err := s.svc.Alerts.Resolve(r.Context(), id); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (s *Server) handleClientsSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, size, err := pageParams(q)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	f := repository.ClientFilter{
		Query:   strings.TrimSpace(q.Get("q")),
		Channel: model.ClientChannel(strings.TrimSpace(q.Get("canal"))),
	}
	out, err := s.svc.Clients.Search(r.Context(), f, page, size)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, out)
}

func (s *Server) handleClientDetail(w http.ResponseWriter, r *http.Request) {
	detail, err := s.svc.Clients.Detail(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, detail)
}

func (s *Server) handleConversations(w http.ResponseWriter, r *http.Request) {
	convs, err := s.svc.Clients.Conversations(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, convs)
}

func (s *Server) handleThread(w http.ResponseWriter, r *http.Request) {
	msgs, err := s.svc.Clients.Thread(r.Context(), chi.URLParam(r, "senderID"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, msgs)
}
