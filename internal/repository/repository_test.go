package repository_test

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unclebandit/outreach-backend/internal/db"
	appErrors "github.com/unclebandit/outreach-backend/internal/errors"
	"github.com/unclebandit/outreach-backend/internal/model"
	"github.com/unclebandit/outreach-backend/internal/repository"
)

type stores struct {
	conn      *sql.DB
	batches   *repository.BatchRepository
	campaigns *repository.CampaignRepository
	drafts    *repository.DraftRepository
	jobs      *repository.JobRepository
	profiles  *repository.ProfileRepository
}

func openStores(t *testing.T) stores {
	t.Helper()
	ctx := context.Background()
	conn, dialect, err := db.Open(ctx, "sqlite", filepath.Join(t.TempDir(), "outreach.db"))
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	_, err = db.Migrate(ctx, conn, dialect)
	require.NoError(t, err)

	return stores{
		conn:      conn,
		batches:   &repository.BatchRepository{DB: conn, Dialect: dialect},
		campaigns: &repository.CampaignRepository{DB: conn, Dialect: dialect},
		drafts:    &repository.DraftRepository{DB: conn, Dialect: dialect},
		jobs:      &repository.JobRepository{DB: conn, Dialect: dialect},
		profiles:  &repository.ProfileRepository{DB: conn, Dialect: dialect},
	}
}

func seedCampaign(t *testing.T, s stores, leads ...string) (*model.Batch, *model.Campaign, []model.Lead) {
	t.Helper()
	ctx := context.Background()
	b := &model.Batch{OwnerID: "owner-1", Name: "Spring buyers", Persona: model.PersonaBuyer, Tones: []string{"warm"}}
	require.NoError(t, s.batches.Create(ctx, b))

	var stored []model.Lead
	for _, email := range leads {
		l := &model.Lead{BatchID: b.ID, Email: email, Name: "Jane Doe"}
		require.NoError(t, s.batches.AddLead(ctx, l))
		stored = append(stored, *l)
	}

	c := &model.Campaign{BatchID: b.ID, OwnerID: b.OwnerID, Name: "Spring", Objective: "book showings",
		Persona: b.Persona, Tones: b.Tones, Cities: []string{"Austin"}, Timezone: "UTC"}
	require.NoError(t, s.campaigns.Create(ctx, c))
	return b, c, stored
}

func twoDrafts() []model.EmailDraft {
	return []model.EmailDraft{
		{CategoryID: "intro", Subject: "Hi {first_name}", Body: "Intro", SendDay: 0, Order: 0, MonthPhase: "month_1", MonthNumber: 1},
		{CategoryID: "follow", Subject: "Checking in", Body: "Follow", SendDay: 3, Order: 1, MonthPhase: "month_1", MonthNumber: 1},
	}
}

func TestBatchAndLeads(t *testing.T) {
	s := openStores(t)
	ctx := context.Background()

	b, _, leads := seedCampaign(t, s, " Jane@Example.com ", "bob@example.com")
	assert.Equal(t, "jane@example.com", leads[0].Email)

	got, err := s.batches.GetByID(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.LeadCount)
	assert.Equal(t, []string{"warm"}, got.Tones)
	assert.Equal(t, model.BatchDraft, got.Status)

	err = s.batches.AddLead(ctx, &model.Lead{BatchID: b.ID, Email: "JANE@example.com"})
	var dup *appErrors.ErrDuplicateLead
	require.True(t, errors.As(err, &dup), "got %v", err)

	require.NoError(t, s.batches.UpdateStatus(ctx, b.ID, model.BatchActive))
	list, total, err := s.batches.ListBatches(ctx, 0, 10, string(model.BatchActive))
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, list, 1)

	require.NoError(t, s.batches.DeleteLead(ctx, leads[1].ID))
	remaining, err := s.batches.ListLeads(ctx, b.ID)
	require.NoError(t, err)
	assert.Len(t, remaining, 1)

	require.NoError(t, s.batches.Delete(ctx, b.ID))
	_, err = s.batches.GetLead(ctx, leads[0].ID)
	assert.True(t, appErrors.IsNotFound(err))
}

func TestReplaceDraftsResetsApprovals(t *testing.T) {
	s := openStores(t)
	ctx := context.Background()
	_, c, _ := seedCampaign(t, s, "a@example.com")

	first, gen, err := s.drafts.ReplaceDrafts(ctx, c.ID, twoDrafts())
	require.NoError(t, err)
	assert.Equal(t, 1, gen)
	require.Len(t, first, 2)

	changed, err := s.drafts.ApproveDraft(ctx, first[0].ID, time.Now())
	require.NoError(t, err)
	assert.True(t, changed)
	changed, err = s.drafts.ApproveDraft(ctx, first[0].ID, time.Now())
	require.NoError(t, err)
	assert.False(t, changed, "second approval is a no-op")

	edited, err := s.drafts.UpdateDraftContent(ctx, first[0].ID, "x", "y")
	require.NoError(t, err)
	assert.False(t, edited, "approved drafts are locked")

	second, gen, err := s.drafts.ReplaceDrafts(ctx, c.ID, twoDrafts())
	require.NoError(t, err)
	assert.Equal(t, 2, gen)

	listed, err := s.drafts.ListDrafts(ctx, c.ID)
	require.NoError(t, err)
	require.Len(t, listed, 2)
	for _, d := range listed {
		assert.Equal(t, model.ApprovalPending, d.ApprovalStatus)
		assert.Equal(t, 2, d.Generation)
	}
	assert.Equal(t, second[0].ID, listed[0].ID)

	_, err = s.drafts.GetDraft(ctx, first[0].ID)
	assert.True(t, appErrors.IsNotFound(err))
}

func TestLaunchIsExactlyOnce(t *testing.T) {
	s := openStores(t)
	ctx := context.Background()
	_, c, leads := seedCampaign(t, s, "a@example.com", "b@example.com")

	drafts, _, err := s.drafts.ReplaceDrafts(ctx, c.ID, twoDrafts())
	require.NoError(t, err)

	start := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	plan := repository.LaunchPlan{CampaignID: c.ID, StartDate: start, LaunchedAt: start, Drafts: drafts}
	for _, d := range drafts {
		for _, l := range leads {
			plan.Jobs = append(plan.Jobs, model.ScheduledEmailJob{
				CampaignID: c.ID, DraftID: d.ID, LeadID: l.ID, Recipient: l.Email, RecipientName: l.Name,
				ScheduledFor: start.AddDate(0, 0, d.SendDay),
			})
		}
	}

	launched, err := s.jobs.Launch(ctx, plan)
	require.NoError(t, err)
	assert.True(t, launched)

	launched, err = s.jobs.Launch(ctx, plan)
	require.NoError(t, err)
	assert.False(t, launched)

	has, err := s.jobs.HasLaunched(ctx, c.ID)
	require.NoError(t, err)
	assert.True(t, has)

	jobs, err := s.jobs.ListJobs(ctx, c.ID, "", 0, 100)
	require.NoError(t, err)
	assert.Len(t, jobs, 4)

	got, err := s.campaigns.GetByID(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, model.CampaignActive, got.Status)
	assert.Equal(t, 4, got.Metrics.EmailsTotal)
	require.NotNil(t, got.LaunchedAt)

	_, _, err = s.drafts.ReplaceDrafts(ctx, c.ID, twoDrafts())
	var already *appErrors.ErrAlreadyLaunched
	assert.True(t, errors.As(err, &already), "got %v", err)

	groups, err := s.jobs.QueueGroups(ctx, c.ID)
	require.NoError(t, err)
	require.Len(t, groups, 2)
	assert.Equal(t, "intro", groups[0].CategoryID)
	assert.True(t, groups[0].ScheduledFor.Equal(start))
	assert.True(t, groups[1].ScheduledFor.Equal(start.AddDate(0, 0, 3)))
	assert.Equal(t, 2, groups[1].PendingCount)
	assert.Equal(t, 2, groups[1].TotalCount)
}

func TestClaimAndDeliver(t *testing.T) {
	s := openStores(t)
	ctx := context.Background()
	_, c, leads := seedCampaign(t, s, "a@example.com")
	drafts, _, err := s.drafts.ReplaceDrafts(ctx, c.ID, twoDrafts())
	require.NoError(t, err)

	now := time.Now().UTC()
	plan := repository.LaunchPlan{CampaignID: c.ID, StartDate: now, LaunchedAt: now, Drafts: drafts}
	for _, d := range drafts {
		plan.Jobs = append(plan.Jobs, model.ScheduledEmailJob{
			CampaignID: c.ID, DraftID: d.ID, LeadID: leads[0].ID, Recipient: leads[0].Email,
			ScheduledFor: now.Add(-time.Minute).AddDate(0, 0, d.SendDay),
		})
	}
	launched, err := s.jobs.Launch(ctx, plan)
	require.NoError(t, err)
	require.True(t, launched)

	ids, err := s.jobs.ClaimDue(ctx, now, 10)
	require.NoError(t, err)
	require.Len(t, ids, 1, "only the day-0 job is due")

	again, err := s.jobs.ClaimDue(ctx, now, 10)
	require.NoError(t, err)
	assert.Empty(t, again)

	env, err := s.jobs.GetEnvelope(ctx, ids[0])
	require.NoError(t, err)
	assert.Equal(t, "a@example.com", env.Recipient().Email)
	assert.Equal(t, "owner-1", env.OwnerID)
	assert.Equal(t, model.JobQueued, env.Job.Status)

	sent, err := s.jobs.MarkSent(ctx, ids[0], now)
	require.NoError(t, err)
	assert.True(t, sent)
	sent, err = s.jobs.MarkSent(ctx, ids[0], now)
	require.NoError(t, err)
	assert.False(t, sent)

	got, err := s.campaigns.GetByID(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.Metrics.EmailsSent)

	stats, err := s.campaigns.GetCampaignStats(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, stats["sent"])
	assert.Equal(t, 1, stats["pending"])

	_, err = s.jobs.GetEnvelope(ctx, 9999)
	assert.True(t, appErrors.IsNotFound(err))
}

func TestTransitionStatus(t *testing.T) {
	s := openStores(t)
	ctx := context.Background()
	_, c, _ := seedCampaign(t, s)

	ok, err := s.campaigns.TransitionStatus(ctx, c.ID, model.CampaignPaused, model.CampaignActive)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = s.campaigns.TransitionStatus(ctx, 404, model.CampaignPaused, model.CampaignActive)
	var nf *appErrors.ErrCampaignNotFound
	assert.True(t, errors.As(err, &nf))

	ok, err = s.campaigns.TransitionStatus(ctx, c.ID, model.CampaignCompleted, model.CampaignDraft)
	require.NoError(t, err)
	assert.True(t, ok)

	list, total, err := s.campaigns.ListCampaigns(ctx, 0, 10, string(model.CampaignCompleted))
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, list, 1)
	assert.Equal(t, []string{"Austin"}, list[0].Cities)
}

func TestProfileUpsert(t *testing.T) {
	s := openStores(t)
	ctx := context.Background()

	p, err := s.profiles.GetProfile(ctx, "owner-1")
	require.NoError(t, err)
	assert.Nil(t, p)

	require.NoError(t, s.profiles.UpsertProfile(ctx, &model.Profile{OwnerID: "owner-1", DisplayName: "Jane", Signature: "-- Jane"}))
	require.NoError(t, s.profiles.UpsertProfile(ctx, &model.Profile{OwnerID: "owner-1", DisplayName: "Jane", Signature: "-- Jane R."}))

	p, err = s.profiles.GetProfile(ctx, "owner-1")
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, "-- Jane R.", p.Signature)
}

func TestReleaseReturnsQueuedJobs(t *testing.T) {
	s := openStores(t)
	ctx := context.Background()
	_, c, leads := seedCampaign(t, s, "a@example.com", "b@example.com")
	drafts, _, err := s.drafts.ReplaceDrafts(ctx, c.ID, twoDrafts()[:1])
	require.NoError(t, err)

	now := time.Now().UTC()
	plan := repository.LaunchPlan{CampaignID: c.ID, StartDate: now, LaunchedAt: now, Drafts: drafts}
	for _, l := range leads {
		plan.Jobs = append(plan.Jobs, model.ScheduledEmailJob{
			CampaignID: c.ID, DraftID: drafts[0].ID, LeadID: l.ID, Recipient: l.Email,
			ScheduledFor: now.Add(-time.Minute),
		})
	}
	launched, err := s.jobs.Launch(ctx, plan)
	require.NoError(t, err)
	require.True(t, launched)

	ids, err := s.jobs.ClaimDue(ctx, now, 10)
	require.NoError(t, err)
	require.Len(t, ids, 2)

	sent, err := s.jobs.MarkSent(ctx, ids[0], now)
	require.NoError(t, err)
	require.True(t, sent)

	// only the still-queued job goes back
	n, err := s.jobs.Release(ctx, ids)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	again, err := s.jobs.ClaimDue(ctx, now, 10)
	require.NoError(t, err)
	assert.Equal(t, []int64{ids[1]}, again)

	n, err = s.jobs.Release(ctx, nil)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestLaunchRollsBackOnLateInsertFailure(t *testing.T) {
	s := openStores(t)
	ctx := context.Background()
	_, c, _ := seedCampaign(t, s)
	drafts, _, err := s.drafts.ReplaceDrafts(ctx, c.ID, twoDrafts()[:1])
	require.NoError(t, err)

	start := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	finalized := append([]model.EmailDraft(nil), drafts...)
	finalized[0].Body = "Intro\n\n<!-- signature -->\nAda"
	plan := repository.LaunchPlan{CampaignID: c.ID, StartDate: start, LaunchedAt: start, Drafts: finalized}
	for i := 1; i <= 600; i++ {
		plan.Jobs = append(plan.Jobs, model.ScheduledEmailJob{
			CampaignID: c.ID, DraftID: drafts[0].ID, LeadID: int64(i), Recipient: "lead@example.com",
			ScheduledFor: start,
		})
	}
	// past the first insert chunk, pointing at a draft that does not exist
	plan.Jobs = append(plan.Jobs, model.ScheduledEmailJob{
		CampaignID: c.ID, DraftID: drafts[0].ID + 1000, LeadID: 601, Recipient: "lead@example.com",
		ScheduledFor: start,
	})

	launched, err := s.jobs.Launch(ctx, plan)
	require.Error(t, err)
	assert.False(t, launched)

	has, err := s.jobs.HasLaunched(ctx, c.ID)
	require.NoError(t, err)
	assert.False(t, has)

	jobs, err := s.jobs.ListJobs(ctx, c.ID, "", 0, 1000)
	require.NoError(t, err)
	assert.Empty(t, jobs)

	got, err := s.campaigns.GetByID(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, model.CampaignDraft, got.Status)
	assert.Nil(t, got.LaunchedAt)

	stored, err := s.drafts.GetDraft(ctx, drafts[0].ID)
	require.NoError(t, err)
	assert.False(t, stored.Finalized)
	assert.Equal(t, "Intro", stored.Body)

	// the failed attempt does not hold the launch slot
	plan.Jobs = plan.Jobs[:600]
	launched, err = s.jobs.Launch(ctx, plan)
	require.NoError(t, err)
	assert.True(t, launched)
}
