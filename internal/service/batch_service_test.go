package service_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/unclebandit/outreach-backend/internal/errors"
	"github.com/unclebandit/outreach-backend/internal/model"
	"github.com/unclebandit/outreach-backend/internal/service"
)

func TestBatchLifecycle(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	svc := &service.BatchService{BatchRepo: h.batches}

	b, err := svc.CreateBatch(ctx, service.CreateBatchRequest{
		OwnerID: "owner-1", Name: " Spring buyers ", Persona: model.PersonaBuyer, Tones: []string{"warm"},
	})
	require.NoError(t, err)
	assert.Equal(t, "Spring buyers", b.Name)
	assert.Equal(t, model.BatchDraft, b.Status)

	res, err := svc.AddLeads(ctx, b.ID, []service.LeadInput{
		{Email: "Jane@Example.com", Name: "Jane Doe"},
		{Email: "not-an-email"},
		{Email: "jane@example.com"},
		{Email: "bob@example.com"},
	})
	require.NoError(t, err)
	require.Len(t, res.Added, 2)
	assert.Equal(t, "jane@example.com", res.Added[0].Email)
	require.Len(t, res.Rejected, 2)
	assert.Equal(t, "not-an-email", res.Rejected[0].Email)
	assert.Equal(t, "jane@example.com", res.Rejected[1].Email)

	got, err := svc.GetBatch(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.LeadCount)

	// empty status toggles
	got, err = svc.SetBatchStatus(ctx, b.ID, "")
	require.NoError(t, err)
	assert.Equal(t, model.BatchActive, got.Status)
	got, err = svc.SetBatchStatus(ctx, b.ID, "")
	require.NoError(t, err)
	assert.Equal(t, model.BatchPaused, got.Status)

	var validation *appErrors.ErrValidationFailed
	_, err = svc.SetBatchStatus(ctx, b.ID, "archived")
	assert.ErrorAs(t, err, &validation)

	batches, p, err := svc.ListBatches(ctx, 1, 10, "")
	require.NoError(t, err)
	assert.Len(t, batches, 1)
	assert.Equal(t, 1, p["total_count"])

	require.NoError(t, svc.DeleteBatch(ctx, b.ID))
	_, err = svc.GetBatch(ctx, b.ID)
	assert.True(t, appErrors.IsNotFound(err))
}

func TestCreateBatchValidation(t *testing.T) {
	h := newHarness(t)
	svc := &service.BatchService{BatchRepo: h.batches}
	ctx := context.Background()

	var validation *appErrors.ErrValidationFailed
	_, err := svc.CreateBatch(ctx, service.CreateBatchRequest{Persona: model.PersonaBuyer})
	assert.ErrorAs(t, err, &validation)
	_, err = svc.CreateBatch(ctx, service.CreateBatchRequest{Name: "x", Persona: "alien"})
	assert.ErrorAs(t, err, &validation)

	_, err = svc.AddLeads(ctx, 9999, []service.LeadInput{{Email: "a@example.com"}})
	assert.True(t, appErrors.IsNotFound(err))
}

func TestUpdateLeadKeepsUnsentFields(t *testing.T) {
	h := newHarness(t)
	svc := &service.BatchService{BatchRepo: h.batches}
	ctx := context.Background()

	b, err := svc.CreateBatch(ctx, service.CreateBatchRequest{OwnerID: "owner-1", Name: "Sellers", Persona: model.PersonaSeller})
	require.NoError(t, err)
	res, err := svc.AddLeads(ctx, b.ID, []service.LeadInput{
		{Email: "jane@example.com", Name: "Jane Doe", Phone: "555-0100", Address: "1 Main St"},
	})
	require.NoError(t, err)
	require.Len(t, res.Added, 1)

	updated, err := svc.UpdateLead(ctx, res.Added[0].ID, service.LeadInput{Phone: "555-0199"})
	require.NoError(t, err)
	assert.Equal(t, "555-0199", updated.Phone)

	stored, err := h.batches.GetLead(ctx, res.Added[0].ID)
	require.NoError(t, err)
	assert.Equal(t, "jane@example.com", stored.Email)
	assert.Equal(t, "Jane Doe", stored.Name)
	assert.Equal(t, "1 Main St", stored.Address)
	assert.Equal(t, "555-0199", stored.Phone)
}
