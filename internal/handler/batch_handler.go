package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/unclebandit/outreach-backend/internal/model"
	"github.com/unclebandit/outreach-backend/internal/service"
)

// BatchHandler holds the dependencies for batch and lead HTTP handlers
type BatchHandler struct {
	Service *service.BatchService
	Log     *zap.Logger
}

func NewBatchHandler(svc *service.BatchService, log *zap.Logger) *BatchHandler {
	return &BatchHandler{Service: svc, Log: log}
}

func (h *BatchHandler) Mount(r chi.Router) {
	r.Post("/batches", h.CreateBatchHandler)
	r.Get("/batches", h.ListBatchesHandler)
	r.Get("/batches/{id}", h.GetBatchHandler)
	r.Patch("/batches/{id}/status", h.SetBatchStatusHandler)
	r.Delete("/batches/{id}", h.DeleteBatchHandler)

	r.Post("/batches/{id}/leads", h.AddLeadsHandler)
	r.Get("/batches/{id}/leads", h.ListLeadsHandler)
	r.Put("/leads/{id}", h.UpdateLeadHandler)
	r.Delete("/leads/{id}", h.DeleteLeadHandler)
}

func (h *BatchHandler) CreateBatchHandler(w http.ResponseWriter, r *http.Request) {
	var req service.CreateBatchRequest
	if err := DecodeJSON(r, &req); err != nil {
		WriteError(w, h.Log, err)
		return
	}
	batch, err := h.Service.CreateBatch(r.Context(), req)
	if err != nil {
		WriteError(w, h.Log, err)
		return
	}
	WriteJSON(w, http.StatusCreated, batch)
}

// ListBatchesHandler returns a paginated list of batches
func (h *BatchHandler) ListBatchesHandler(w http.ResponseWriter, r *http.Request) {
	page, pageSize := Page(r)
	batches, pagination, err := h.Service.ListBatches(r.Context(), page, pageSize, r.URL.Query().Get("status"))
	if err != nil {
		WriteError(w, h.Log, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{
		"data":       batches,
		"pagination": pagination,
	})
}

func (h *BatchHandler) GetBatchHandler(w http.ResponseWriter, r *http.Request) {
	id, err := ParseID(r, "id")
	if err != nil {
		WriteError(w, h.Log, err)
		return
	}
	batch, err := h.Service.GetBatch(r.Context(), id)
	if err != nil {
		WriteError(w, h.Log, err)
		return
	}
	WriteJSON(w, http.StatusOK, batch)
}

// SetBatchStatusHandler sets the given status, or toggles active/paused when
// the body has none.
func (h *BatchHandler) SetBatchStatusHandler(w http.ResponseWriter, r *http.Request) {
	id, err := ParseID(r, "id")
	if err != nil {
		WriteError(w, h.Log, err)
		return
	}
	var body struct {
		Status model.BatchStatus `json:"status"`
	}
	if err := DecodeJSON(r, &body); err != nil {
		WriteError(w, h.Log, err)
		return
	}
	batch, err := h.Service.SetBatchStatus(r.Context(), id, body.Status)
	if err != nil {
		WriteError(w, h.Log, err)
		return
	}
	WriteJSON(w, http.StatusOK, batch)
}

func (h *BatchHandler) DeleteBatchHandler(w http.ResponseWriter, r *http.Request) {
	id, err := ParseID(r, "id")
	if err != nil {
		WriteError(w, h.Log, err)
		return
	}
	if err := h.Service.DeleteBatch(r.Context(), id); err != nil {
		WriteError(w, h.Log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *BatchHandler) AddLeadsHandler(w http.ResponseWriter, r *http.Request) {
	id, err := ParseID(r, "id")
	if err != nil {
		WriteError(w, h.Log, err)
		return
	}
	var body struct {
		Leads []service.LeadInput `json:"leads"`
	}
	if err := DecodeJSON(r, &body); err != nil {
		WriteError(w, h.Log, err)
		return
	}
	res, err := h.Service.AddLeads(r.Context(), id, body.Leads)
	if err != nil {
		WriteError(w, h.Log, err)
		return
	}
	WriteJSON(w, http.StatusCreated, res)
}

func (h *BatchHandler) ListLeadsHandler(w http.ResponseWriter, r *http.Request) {
	id, err := ParseID(r, "id")
	if err != nil {
		WriteError(w, h.Log, err)
		return
	}
	leads, err := h.Service.ListLeads(r.Context(), id)
	if err != nil {
		WriteError(w, h.Log, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{"data": leads})
}

func (h *BatchHandler) UpdateLeadHandler(w http.ResponseWriter, r *http.Request) {
	id, err := ParseID(r, "id")
	if err != nil {
		WriteError(w, h.Log, err)
		return
	}
	var in service.LeadInput
	if err := DecodeJSON(r, &in); err != nil {
		WriteError(w, h.Log, err)
		return
	}
	lead, err := h.Service.UpdateLead(r.Context(), id, in)
	if err != nil {
		WriteError(w, h.Log, err)
		return
	}
	WriteJSON(w, http.StatusOK, lead)
}

func (h *BatchHandler) DeleteLeadHandler(w http.ResponseWriter, r *http.Request) {
	id, err := ParseID(r, "id")
	if err != nil {
		WriteError(w, h.Log, err)
		return
	}
	if err := h.Service.DeleteLead(r.Context(), id); err != nil {
		WriteError(w, h.Log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
