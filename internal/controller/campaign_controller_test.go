package controller_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unclebandit/outreach-backend/internal/controller"
	"github.com/unclebandit/outreach-backend/internal/db"
	"github.com/unclebandit/outreach-backend/internal/handler"
	"github.com/unclebandit/outreach-backend/internal/provider"
	"github.com/unclebandit/outreach-backend/internal/repository"
	"github.com/unclebandit/outreach-backend/internal/service"
)

type failingProvider struct{}

func (failingProvider) Name() string { return "failing" }

func (failingProvider) Generate(ctx context.Context, req provider.Request) ([]provider.RawDraft, error) {
	return nil, errors.New("connection refused")
}

type api struct {
	t   *testing.T
	srv *httptest.Server
	svc *service.CampaignService
}

func newAPI(t *testing.T) *api {
	t.Helper()
	ctx := context.Background()
	conn, dialect, err := db.Open(ctx, "sqlite", filepath.Join(t.TempDir(), "outreach.db"))
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	_, err = db.Migrate(ctx, conn, dialect)
	require.NoError(t, err)

	playbook, err := provider.NewPlaybook("")
	require.NoError(t, err)

	batchRepo := &repository.BatchRepository{DB: conn, Dialect: dialect}
	profileRepo := &repository.ProfileRepository{DB: conn, Dialect: dialect}
	svc := &service.CampaignService{
		CampaignRepo:    &repository.CampaignRepository{DB: conn, Dialect: dialect},
		BatchRepo:       batchRepo,
		DraftRepo:       &repository.DraftRepository{DB: conn, Dialect: dialect},
		JobRepo:         &repository.JobRepository{DB: conn, Dialect: dialect},
		ProfileRepo:     profileRepo,
		Provider:        playbook,
		DefaultCities:   []string{"Austin"},
		DefaultTimezone: "UTC",
		Now:             func() time.Time { return time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC) },
	}

	r := chi.NewRouter()
	(&controller.CampaignController{CampaignService: svc}).Mount(r)
	handler.NewBatchHandler(&service.BatchService{BatchRepo: batchRepo}, nil).Mount(r)
	(&handler.ProfileHandler{Repo: profileRepo}).Mount(r)

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return &api{t: t, srv: srv, svc: svc}
}

// do sends body as JSON and decodes the answer into out when given.
func (a *api) do(method, path string, body any, out any) int {
	a.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(a.t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, a.srv.URL+path, &buf)
	require.NoError(a.t, err)
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(a.t, err)
	defer resp.Body.Close()
	if out != nil && resp.StatusCode != http.StatusNoContent {
		require.NoError(a.t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

type idOnly struct {
	ID int64 `json:"id"`
}

func (a *api) seedCampaign() int64 {
	a.t.Helper()
	require.Equal(a.t, http.StatusOK, a.do("PUT", "/profiles/owner-1", map[string]string{
		"display_name": "Ada Agent", "company_name": "Acme Realty", "signature": "Ada Agent",
	}, nil))

	var batch idOnly
	require.Equal(a.t, http.StatusCreated, a.do("POST", "/batches", map[string]any{
		"owner_id": "owner-1", "name": "Spring buyers", "objective": "book showings", "persona": "buyer",
	}, &batch))

	var leads service.AddLeadsResult
	require.Equal(a.t, http.StatusCreated, a.do("POST", fmt.Sprintf("/batches/%d/leads", batch.ID), map[string]any{
		"leads": []map[string]string{{"email": "jane@example.com", "name": "Jane Doe"}, {"email": "bob@example.com"}},
	}, &leads))
	require.Len(a.t, leads.Added, 2)

	var campaign idOnly
	require.Equal(a.t, http.StatusCreated, a.do("POST", "/campaigns", map[string]any{
		"batch_id": batch.ID, "name": "Spring",
	}, &campaign))
	return campaign.ID
}

func TestCampaignFlowOverHTTP(t *testing.T) {
	a := newAPI(t)
	id := a.seedCampaign()

	var gen service.GenerateResult
	require.Equal(t, http.StatusCreated, a.do("POST", fmt.Sprintf("/campaigns/%d/drafts", id), nil, &gen))
	require.NotEmpty(t, gen.Drafts)
	assert.Equal(t, "playbook", gen.Provider)

	var launch service.LaunchResult
	var errBody map[string]string
	status := a.do("POST", fmt.Sprintf("/campaigns/%d/launch", id), map[string]string{"start_date": "2025-06-01T09:00:00Z"}, &errBody)
	assert.Equal(t, http.StatusBadRequest, status, "launch before approval")

	for _, d := range gen.Drafts {
		require.Equal(t, http.StatusOK, a.do("POST", fmt.Sprintf("/drafts/%d/approve", d.ID), nil, nil))
	}
	var approvals service.ApprovalState
	require.Equal(t, http.StatusOK, a.do("GET", fmt.Sprintf("/campaigns/%d/approvals", id), nil, &approvals))
	assert.True(t, approvals.AllApproved)

	var preview service.DraftPreview
	leadsPath := fmt.Sprintf("/drafts/%d/preview?lead_id=1", gen.Drafts[0].ID)
	require.Equal(t, http.StatusOK, a.do("GET", leadsPath, nil, &preview))
	assert.Contains(t, preview.Body, "Hi Jane,")

	require.Equal(t, http.StatusOK, a.do("POST", fmt.Sprintf("/campaigns/%d/launch", id),
		map[string]string{"start_date": "2025-06-01T09:00:00Z"}, &launch))
	assert.True(t, launch.Launched)
	assert.Equal(t, 2*len(gen.Drafts), launch.JobsScheduled)

	var again service.LaunchResult
	require.Equal(t, http.StatusOK, a.do("POST", fmt.Sprintf("/campaigns/%d/launch", id),
		map[string]string{"start_date": "2025-06-01T09:00:00Z"}, &again))
	assert.True(t, again.AlreadyLaunched)
	assert.False(t, again.Launched)

	var queue struct {
		TotalPending int `json:"total_pending"`
		Groups       []struct {
			PendingCount int `json:"pending_count"`
		} `json:"groups"`
	}
	require.Equal(t, http.StatusOK, a.do("GET", fmt.Sprintf("/campaigns/%d/queue", id), nil, &queue))
	assert.Equal(t, launch.JobsScheduled, queue.TotalPending)
	assert.Len(t, queue.Groups, len(gen.Drafts))

	var jobs struct {
		Data []json.RawMessage `json:"data"`
	}
	require.Equal(t, http.StatusOK, a.do("GET", fmt.Sprintf("/campaigns/%d/jobs?status=pending&page_size=100", id), nil, &jobs))
	assert.Len(t, jobs.Data, launch.JobsScheduled)

	assert.Equal(t, http.StatusConflict, a.do("POST", fmt.Sprintf("/campaigns/%d/drafts", id), nil, &errBody))
	assert.Contains(t, errBody["error"], "already launched")
}

func TestErrorStatusCodes(t *testing.T) {
	a := newAPI(t)
	id := a.seedCampaign()
	var errBody map[string]string

	assert.Equal(t, http.StatusNotFound, a.do("GET", "/campaigns/9999", nil, &errBody))
	assert.Equal(t, http.StatusBadRequest, a.do("GET", "/campaigns/abc", nil, &errBody))
	assert.Equal(t, http.StatusConflict, a.do("GET", fmt.Sprintf("/campaigns/%d/queue", id), nil, &errBody))
	assert.Equal(t, http.StatusConflict, a.do("GET", "/campaigns/9999/queue", nil, &errBody))
	assert.Equal(t, http.StatusBadRequest, a.do("POST", fmt.Sprintf("/campaigns/%d/drafts", id),
		map[string]string{"persona": "astronaut"}, &errBody))
	assert.Equal(t, http.StatusBadRequest, a.do("GET", "/drafts/1/preview", nil, &errBody))

	var gen service.GenerateResult
	require.Equal(t, http.StatusCreated, a.do("POST", fmt.Sprintf("/campaigns/%d/drafts", id), nil, &gen))
	draft := gen.Drafts[0].ID
	require.Equal(t, http.StatusOK, a.do("POST", fmt.Sprintf("/drafts/%d/approve", draft), nil, nil))
	assert.Equal(t, http.StatusConflict, a.do("PATCH", fmt.Sprintf("/drafts/%d", draft),
		map[string]string{"body": "changed"}, &errBody))
	assert.Contains(t, errBody["error"], "approved")

	a.svc.Provider = failingProvider{}
	assert.Equal(t, http.StatusBadGateway, a.do("POST", fmt.Sprintf("/campaigns/%d/drafts", id), nil, &errBody))
}

func TestListCampaignsHandler(t *testing.T) {
	a := newAPI(t)
	a.seedCampaign()

	var page struct {
		Data       []json.RawMessage `json:"data"`
		Pagination map[string]int    `json:"pagination"`
	}
	require.Equal(t, http.StatusOK, a.do("GET", "/campaigns?page=1&page_size=10&status=draft", nil, &page))
	assert.Len(t, page.Data, 1)
	assert.Equal(t, 1, page.Pagination["total_count"])
}
