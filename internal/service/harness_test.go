package service_test

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/unclebandit/outreach-backend/internal/db"
	"github.com/unclebandit/outreach-backend/internal/email"
	"github.com/unclebandit/outreach-backend/internal/model"
	"github.com/unclebandit/outreach-backend/internal/provider"
	"github.com/unclebandit/outreach-backend/internal/repository"
	"github.com/unclebandit/outreach-backend/internal/service"
)

var (
	testNow   = time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)
	testStart = "2025-06-01T09:00:00Z"
	startUTC  = time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
)

// fakeProvider answers every Generate with the same drafts.
type fakeProvider struct {
	mu     sync.Mutex
	drafts []provider.RawDraft
	err    error
	delay  time.Duration
	calls  int
	last   provider.Request
}

func (f *fakeProvider) Name() string { return "fake" }

func (f *fakeProvider) Generate(ctx context.Context, req provider.Request) ([]provider.RawDraft, error) {
	f.mu.Lock()
	f.calls++
	f.last = req
	drafts, err, delay := f.drafts, f.err, f.delay
	f.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return drafts, err
}

func cadence() []provider.RawDraft {
	return []provider.RawDraft{
		{CategoryID: "follow", Subject: "Still looking in {{city}}?", Body: "Checking in, {first_name}.", SendDay: 3, Order: 0},
		{CategoryID: "intro", Subject: "Hi {first_name}", Body: "Hi {first_name},\n\nI'm {agent_name} with {company_name}.", SendDay: 0, Order: 0},
	}
}

// recordingMailer keeps what it was asked to send.
type recordingMailer struct {
	mu   sync.Mutex
	sent []email.Message
	fail error
}

func (m *recordingMailer) Send(ctx context.Context, msg email.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return m.fail
	}
	m.sent = append(m.sent, msg)
	return nil
}

func (m *recordingMailer) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sent)
}

type harness struct {
	svc       *service.CampaignService
	batches   *repository.BatchRepository
	campaigns *repository.CampaignRepository
	drafts    *repository.DraftRepository
	jobs      *repository.JobRepository
	profiles  *repository.ProfileRepository
	provider  *fakeProvider
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	ctx := context.Background()
	conn, dialect, err := db.Open(ctx, "sqlite", filepath.Join(t.TempDir(), "outreach.db"))
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	_, err = db.Migrate(ctx, conn, dialect)
	require.NoError(t, err)

	h := &harness{
		batches:   &repository.BatchRepository{DB: conn, Dialect: dialect},
		campaigns: &repository.CampaignRepository{DB: conn, Dialect: dialect},
		drafts:    &repository.DraftRepository{DB: conn, Dialect: dialect},
		jobs:      &repository.JobRepository{DB: conn, Dialect: dialect},
		profiles:  &repository.ProfileRepository{DB: conn, Dialect: dialect},
		provider:  &fakeProvider{drafts: cadence()},
	}
	h.svc = h.newService()
	return h
}

// newService builds another service over the same store, with its own
// in-process locks.
func (h *harness) newService() *service.CampaignService {
	return &service.CampaignService{
		CampaignRepo:    h.campaigns,
		BatchRepo:       h.batches,
		DraftRepo:       h.drafts,
		JobRepo:         h.jobs,
		ProfileRepo:     h.profiles,
		Provider:        h.provider,
		DefaultCities:   []string{"Austin"},
		DefaultTimezone: "UTC",
		Now:             func() time.Time { return testNow },
	}
}

// seed creates a batch with the given lead emails, the owner's profile and a
// draft campaign over the batch.
func (h *harness) seed(t *testing.T, emails ...string) *model.Campaign {
	t.Helper()
	ctx := context.Background()

	require.NoError(t, h.profiles.UpsertProfile(ctx, &model.Profile{
		OwnerID:     "owner-1",
		DisplayName: "Ada Agent",
		CompanyName: "Acme Realty",
		Signature:   "Ada Agent\nAcme Realty",
	}))

	b := &model.Batch{OwnerID: "owner-1", Name: "Spring buyers", Objective: "book showings",
		Persona: model.PersonaBuyer, Tones: []string{"warm"}}
	require.NoError(t, h.batches.Create(ctx, b))
	for _, e := range emails {
		require.NoError(t, h.batches.AddLead(ctx, &model.Lead{BatchID: b.ID, Email: e, Name: "Jane Doe"}))
	}

	c, err := h.svc.CreateCampaign(ctx, service.CreateCampaignRequest{BatchID: b.ID, Name: "Spring"})
	require.NoError(t, err)
	return c
}

// ready seeds a campaign and takes it through generate and approve-all.
func (h *harness) ready(t *testing.T, emails ...string) *model.Campaign {
	t.Helper()
	ctx := context.Background()
	c := h.seed(t, emails...)
	res, err := h.svc.GenerateDrafts(ctx, service.GenerateRequest{CampaignID: c.ID})
	require.NoError(t, err)
	for _, d := range res.Drafts {
		_, err := h.svc.ApproveDraft(ctx, d.ID)
		require.NoError(t, err)
	}
	return c
}

func (h *harness) launch(t *testing.T, campaignID int64) *service.LaunchResult {
	t.Helper()
	res, err := h.svc.Launch(context.Background(), campaignID, service.LaunchRequest{StartDate: testStart})
	require.NoError(t, err)
	return res
}
