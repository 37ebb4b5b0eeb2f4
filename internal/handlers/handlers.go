package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/sieteunoseis/vcenter-bridge/internal/service"
	"github.com/sieteunoseis/vcenter-bridge/internal/vcenter"
)

type Handler struct {
	svc *service.VCenterService
}

func New(svc *service.VCenterService) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(router chi.Router) {
	router.Route("/api/v1", func(r chi.Router) {
		r.Get("/servers", h.listServers)
		r.Get("/status", h.status)
		r.Get("/config/ui", h.uiConfig)

		r.Route("/servers/{server}", func(r chi.Router) {
			r.Post("/connect", h.connect)
			r.Post("/test", h.testConnection)
			r.Post("/refresh", h.refresh)
			r.Get("/inventory", h.inventory)
			r.Get("/compare", h.compare)
			r.Post("/import", h.importVMs)
			r.Post("/sync", h.sync)
			r.Post("/clusters", h.clusters)
			r.Post("/datacenters", h.datacenters)
		})
	})
}

type credentialsRequest struct {
	Username  string `json:"username"`
	Password  string `json:"password"`
	VerifyTLS *bool  `json:"verify_tls,omitempty"`
}

func (c credentialsRequest) credentials() service.Credentials {
	return service.Credentials{
		Username:  c.Username,
		Password:  c.Password,
		VerifyTLS: c.VerifyTLS,
	}
}

type importRequest struct {
	VMNames        []string `json:"vm_names"`
	Cluster        string   `json:"cluster,omitempty"`
	UpdateExisting bool     `json:"update_existing"`
}

type ServersReply struct {
	Servers []string `json:"servers"`
}

func (s ServersReply) Render(w http.ResponseWriter, r *http.Request) error {
	return nil
}

type InventoryReply struct {
	Server    string             `json:"server"`
	FetchedAt time.Time          `json:"fetched_at"`
	Count     int                `json:"count"`
	Records   []vcenter.VMRecord `json:"records"`
}

func (i InventoryReply) Render(w http.ResponseWriter, r *http.Request) error {
	return nil
}

type ErrorReply struct {
	Error string `json:"error"`
}

func (e ErrorReply) Render(w http.ResponseWriter, r *http.Request) error {
	return nil
}

func (h *Handler) listServers(w http.ResponseWriter, r *http.Request) {
	_ = render.Render(w, r, ServersReply{Servers: h.svc.Servers()})
}

func (h *Handler) status(w http.ResponseWriter, r *http.Request) {
	status, err := h.svc.Status(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	render.JSON(w, r, status)
}

func (h *Handler) uiConfig(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, h.svc.UIConfig())
}

func (h *Handler) connect(w http.ResponseWriter, r *http.Request) {
	creds, ok := decodeCredentials(w, r)
	if !ok {
		return
	}

	result, err := h.svc.Connect(r.Context(), chi.URLParam(r, "server"), creds)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	render.JSON(w, r, result)
}

func (h *Handler) testConnection(w http.ResponseWriter, r *http.Request) {
	creds, ok := decodeCredentials(w, r)
	if !ok {
		return
	}

	if err := h.svc.TestConnection(r.Context(), chi.URLParam(r, "server"), creds); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) refresh(w http.ResponseWriter, r *http.Request) {
	h.svc.Refresh(chi.URLParam(r, "server"))
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) inventory(w http.ResponseWriter, r *http.Request) {
	entry, err := h.svc.Inventory(chi.URLParam(r, "server"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	_ = render.Render(w, r, InventoryReply{
		Server:    entry.Server,
		FetchedAt: entry.FetchedAt,
		Count:     entry.Count,
		Records:   entry.Records,
	})
}

func (h *Handler) compare(w http.ResponseWriter, r *http.Request) {
	cmp, err := h.svc.Compare(r.Context(), chi.URLParam(r, "server"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	render.JSON(w, r, cmp)
}

func (h *Handler) importVMs(w http.ResponseWriter, r *http.Request) {
	var req importRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if len(req.VMNames) == 0 {
		http.Error(w, "must pass at least one vm name", http.StatusBadRequest)
		return
	}

	result, err := h.svc.Import(r.Context(), chi.URLParam(r, "server"), req.VMNames, req.Cluster, req.UpdateExisting)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	render.JSON(w, r, result)
}

func (h *Handler) sync(w http.ResponseWriter, r *http.Request) {
	result, err := h.svc.SyncDifferences(r.Context(), chi.URLParam(r, "server"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	render.JSON(w, r, result)
}

func (h *Handler) clusters(w http.ResponseWriter, r *http.Request) {
	creds, ok := decodeCredentials(w, r)
	if !ok {
		return
	}

	clusters, err := h.svc.ListClusters(r.Context(), chi.URLParam(r, "server"), creds)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	render.JSON(w, r, clusters)
}

func (h *Handler) datacenters(w http.ResponseWriter, r *http.Request) {
	creds, ok := decodeCredentials(w, r)
	if !ok {
		return
	}

	datacenters, err := h.svc.ListDatacenters(r.Context(), chi.URLParam(r, "server"), creds)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	render.JSON(w, r, datacenters)
}

func decodeCredentials(w http.ResponseWriter, r *http.Request) (service.Credentials, bool) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return service.Credentials{}, false
	}
	if req.Username == "" || req.Password == "" {
		http.Error(w, "must pass username and password", http.StatusBadRequest)
		return service.Credentials{}, false
	}
	return req.credentials(), true
}

// writeServiceError maps the service error taxonomy onto HTTP statuses:
// bad credentials are the caller's problem, transport failures are the
// upstream's.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.As(err, new(*service.ErrInvalidCredentials)):
		status = http.StatusUnauthorized
	case errors.As(err, new(*service.ErrUnknownServer)):
		status = http.StatusBadRequest
	case errors.As(err, new(*service.ErrInventoryNotCached)):
		status = http.StatusNotFound
	case errors.As(err, new(*service.ErrConnectionFailed)):
		status = http.StatusBadGateway
	}

	render.Status(r, status)
	_ = render.Render(w, r, ErrorReply{Error: err.Error()})
}
