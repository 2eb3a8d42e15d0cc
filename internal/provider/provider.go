// Package provider holds the text-generation backends that author a
// campaign's email drafts.
package provider

import (
	"context"
	"errors"
	"fmt"

	"github.com/unclebandit/outreach-backend/internal/model"
)

var (
	// ErrMalformedPayload means the provider answered but the answer could
	// not be read as drafts. Retrying does not help.
	ErrMalformedPayload = errors.New("malformed provider payload")
	// ErrNotConfigured indicates a provider is missing its credentials
	ErrNotConfigured = errors.New("provider not configured")
)

// Request is what a provider needs to author one campaign cadence.
type Request struct {
	CampaignID  int64
	Objective   string
	Persona     model.Persona
	Tones       []string
	Cities      []string
	AgentName   string
	CompanyName string
}

// RawDraft is a draft as returned by a provider, before normalization.
type RawDraft struct {
	CategoryID  string `json:"category_id" yaml:"category_id"`
	Subject     string `json:"subject" yaml:"subject"`
	Body        string `json:"body" yaml:"body"`
	SendDay     int    `json:"send_day" yaml:"send_day"`
	Order       int    `json:"order" yaml:"order"`
	MonthPhase  string `json:"month_phase" yaml:"month_phase"`
	MonthNumber int    `json:"month_number" yaml:"month_number"`
}

type Provider interface {
	Name() string
	Generate(ctx context.Context, req Request) ([]RawDraft, error)
}

// StatusError is a non-2xx answer from an HTTP provider.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("provider returned status %d: %s", e.Code, e.Body)
}

// Temporary reports whether the same request may succeed later.
func (e *StatusError) Temporary() bool {
	return e.Code == 429 || e.Code >= 500
}

// Retryable decides whether a failed Generate call is worth another attempt.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if errors.Is(err, ErrMalformedPayload) || errors.Is(err, ErrNotConfigured) {
		return false
	}
	var status *StatusError
	if errors.As(err, &status) {
		return status.Temporary()
	}
	return true
}
