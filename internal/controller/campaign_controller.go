// internal/controller/campaign_controller.go
package controller

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	appErrors "github.com/unclebandit/outreach-backend/internal/errors"
	"github.com/unclebandit/outreach-backend/internal/handler"
	"github.com/unclebandit/outreach-backend/internal/model"
	"github.com/unclebandit/outreach-backend/internal/service"
)

type CampaignController struct {
	CampaignService *service.CampaignService
	Log             *zap.Logger
}

// Mount registers the campaign, draft and launch routes.
func (c *CampaignController) Mount(r chi.Router) {
	r.Post("/campaigns", c.CreateCampaign)
	r.Get("/campaigns", c.ListCampaigns)
	r.Get("/campaigns/{id}", c.GetCampaignDetails)
	r.Patch("/campaigns/{id}/status", c.SetCampaignStatus)

	r.Post("/campaigns/{id}/drafts", c.GenerateDrafts)
	r.Get("/campaigns/{id}/drafts", c.ListDrafts)
	r.Get("/campaigns/{id}/approvals", c.Approvals)
	r.Post("/campaigns/{id}/finalize", c.Finalize)
	r.Post("/campaigns/{id}/launch", c.Launch)
	r.Get("/campaigns/{id}/queue", c.QueueStatus)
	r.Get("/campaigns/{id}/jobs", c.ListJobs)

	r.Patch("/drafts/{id}", c.EditDraft)
	r.Post("/drafts/{id}/approve", c.ApproveDraft)
	r.Get("/drafts/{id}/preview", c.PreviewDraft)
}

func (c *CampaignController) fail(w http.ResponseWriter, err error) {
	handler.WriteError(w, c.Log, err)
}

func (c *CampaignController) CreateCampaign(w http.ResponseWriter, r *http.Request) {
	var body service.CreateCampaignRequest
	if err := handler.DecodeJSON(r, &body); err != nil {
		c.fail(w, err)
		return
	}
	campaign, err := c.CampaignService.CreateCampaign(r.Context(), body)
	if err != nil {
		c.fail(w, err)
		return
	}
	handler.WriteJSON(w, http.StatusCreated, campaign)
}

func (c *CampaignController) ListCampaigns(w http.ResponseWriter, r *http.Request) {
	page, pageSize := handler.Page(r)
	campaigns, pagination, err := c.CampaignService.ListCampaigns(r.Context(), page, pageSize, r.URL.Query().Get("status"))
	if err != nil {
		c.fail(w, err)
		return
	}
	handler.WriteJSON(w, http.StatusOK, map[string]any{
		"data":       campaigns,
		"pagination": pagination, // already contains total_count, total_pages, page, page_size
	})
}

func (c *CampaignController) GetCampaignDetails(w http.ResponseWriter, r *http.Request) {
	id, err := handler.ParseID(r, "id")
	if err != nil {
		c.fail(w, err)
		return
	}
	details, err := c.CampaignService.GetCampaignDetailsWithStats(r.Context(), id)
	if err != nil {
		c.fail(w, err)
		return
	}
	handler.WriteJSON(w, http.StatusOK, details)
}

func (c *CampaignController) SetCampaignStatus(w http.ResponseWriter, r *http.Request) {
	id, err := handler.ParseID(r, "id")
	if err != nil {
		c.fail(w, err)
		return
	}
	var body struct {
		Status model.CampaignStatus `json:"status"`
	}
	if err := handler.DecodeJSON(r, &body); err != nil {
		c.fail(w, err)
		return
	}
	campaign, err := c.CampaignService.SetCampaignStatus(r.Context(), id, body.Status)
	if err != nil {
		c.fail(w, err)
		return
	}
	handler.WriteJSON(w, http.StatusOK, campaign)
}

// GenerateDrafts replaces the campaign's drafts with a fresh generation.
func (c *CampaignController) GenerateDrafts(w http.ResponseWriter, r *http.Request) {
	id, err := handler.ParseID(r, "id")
	if err != nil {
		c.fail(w, err)
		return
	}
	var body service.GenerateRequest
	if err := handler.DecodeJSON(r, &body); err != nil {
		c.fail(w, err)
		return
	}
	body.CampaignID = id
	res, err := c.CampaignService.GenerateDrafts(r.Context(), body)
	if err != nil {
		c.fail(w, err)
		return
	}
	handler.WriteJSON(w, http.StatusCreated, res)
}

func (c *CampaignController) ListDrafts(w http.ResponseWriter, r *http.Request) {
	id, err := handler.ParseID(r, "id")
	if err != nil {
		c.fail(w, err)
		return
	}
	drafts, err := c.CampaignService.ListDrafts(r.Context(), id)
	if err != nil {
		c.fail(w, err)
		return
	}
	handler.WriteJSON(w, http.StatusOK, map[string]any{"data": drafts})
}

func (c *CampaignController) Approvals(w http.ResponseWriter, r *http.Request) {
	id, err := handler.ParseID(r, "id")
	if err != nil {
		c.fail(w, err)
		return
	}
	state, err := c.CampaignService.Approvals(r.Context(), id)
	if err != nil {
		c.fail(w, err)
		return
	}
	handler.WriteJSON(w, http.StatusOK, state)
}

func (c *CampaignController) EditDraft(w http.ResponseWriter, r *http.Request) {
	id, err := handler.ParseID(r, "id")
	if err != nil {
		c.fail(w, err)
		return
	}
	var body service.EditDraftRequest
	if err := handler.DecodeJSON(r, &body); err != nil {
		c.fail(w, err)
		return
	}
	draft, err := c.CampaignService.EditDraft(r.Context(), id, body)
	if err != nil {
		c.fail(w, err)
		return
	}
	handler.WriteJSON(w, http.StatusOK, draft)
}

func (c *CampaignController) ApproveDraft(w http.ResponseWriter, r *http.Request) {
	id, err := handler.ParseID(r, "id")
	if err != nil {
		c.fail(w, err)
		return
	}
	draft, err := c.CampaignService.ApproveDraft(r.Context(), id)
	if err != nil {
		c.fail(w, err)
		return
	}
	handler.WriteJSON(w, http.StatusOK, draft)
}

func (c *CampaignController) PreviewDraft(w http.ResponseWriter, r *http.Request) {
	id, err := handler.ParseID(r, "id")
	if err != nil {
		c.fail(w, err)
		return
	}
	leadID, err := strconv.ParseInt(r.URL.Query().Get("lead_id"), 10, 64)
	if err != nil || leadID <= 0 {
		c.fail(w, appErrors.NewValidationFailed("lead_id", "is required"))
		return
	}
	preview, err := c.CampaignService.PreviewDraft(r.Context(), id, leadID)
	if err != nil {
		c.fail(w, err)
		return
	}
	handler.WriteJSON(w, http.StatusOK, preview)
}

func (c *CampaignController) Finalize(w http.ResponseWriter, r *http.Request) {
	id, err := handler.ParseID(r, "id")
	if err != nil {
		c.fail(w, err)
		return
	}
	drafts, err := c.CampaignService.Finalize(r.Context(), id)
	if err != nil {
		c.fail(w, err)
		return
	}
	handler.WriteJSON(w, http.StatusOK, map[string]any{"data": drafts})
}

// Launch answers 200 both for a fresh launch and for a repeated one; the body
// says which.
func (c *CampaignController) Launch(w http.ResponseWriter, r *http.Request) {
	id, err := handler.ParseID(r, "id")
	if err != nil {
		c.fail(w, err)
		return
	}
	var body service.LaunchRequest
	if err := handler.DecodeJSON(r, &body); err != nil {
		c.fail(w, err)
		return
	}
	res, err := c.CampaignService.Launch(r.Context(), id, body)
	if err != nil {
		c.fail(w, err)
		return
	}
	handler.WriteJSON(w, http.StatusOK, res)
}

func (c *CampaignController) QueueStatus(w http.ResponseWriter, r *http.Request) {
	id, err := handler.ParseID(r, "id")
	if err != nil {
		c.fail(w, err)
		return
	}
	status, err := c.CampaignService.QueueStatus(r.Context(), id)
	if err != nil {
		c.fail(w, err)
		return
	}
	handler.WriteJSON(w, http.StatusOK, status)
}

func (c *CampaignController) ListJobs(w http.ResponseWriter, r *http.Request) {
	id, err := handler.ParseID(r, "id")
	if err != nil {
		c.fail(w, err)
		return
	}
	page, pageSize := handler.Page(r)
	jobs, err := c.CampaignService.ListJobs(r.Context(), id, r.URL.Query().Get("status"), page, pageSize)
	if err != nil {
		c.fail(w, err)
		return
	}
	handler.WriteJSON(w, http.StatusOK, map[string]any{"data": jobs})
}
