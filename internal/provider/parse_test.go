package provider

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDrafts(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    int
		wantErr bool
	}{
		{name: "array", raw: `[{"subject":"a","body":"b","send_day":0}]`, want: 1},
		{name: "drafts object", raw: `{"drafts":[{"subject":"a","body":"b"},{"subject":"c","body":"d","send_day":3}]}`, want: 2},
		{name: "emails object", raw: `{"emails":[{"subject":"a","body":"b"}]}`, want: 1},
		{name: "fenced", raw: "```json\n{\"drafts\":[{\"subject\":\"a\",\"body\":\"b\"}]}\n```", want: 1},
		{name: "empty", raw: "  ", wantErr: true},
		{name: "no drafts", raw: `{"drafts":[]}`, wantErr: true},
		{name: "not json", raw: `Sure! Here are your emails.`, wantErr: true},
		{name: "wrong type", raw: `{"drafts":"nope"}`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			drafts, err := ParseDrafts(tt.raw)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrMalformedPayload))
				return
			}
			require.NoError(t, err)
			assert.Len(t, drafts, tt.want)
		})
	}
}

func TestRetryable(t *testing.T) {
	assert.False(t, Retryable(nil))
	assert.False(t, Retryable(ErrMalformedPayload))
	assert.False(t, Retryable(&StatusError{Code: 400}))
	assert.True(t, Retryable(&StatusError{Code: 429}))
	assert.True(t, Retryable(&StatusError{Code: 503}))
	assert.True(t, Retryable(errors.New("connection reset")))
}
