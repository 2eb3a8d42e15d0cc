package provider

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ParseDrafts reads a provider answer. It accepts a bare JSON array or an
// object with a "drafts" (or "emails") array, optionally inside a markdown
// code fence.
func ParseDrafts(raw string) ([]RawDraft, error) {
	text := stripFence(strings.TrimSpace(raw))
	if text == "" {
		return nil, fmt.Errorf("%w: empty answer", ErrMalformedPayload)
	}

	var drafts []RawDraft
	if strings.HasPrefix(text, "[") {
		if err := json.Unmarshal([]byte(text), &drafts); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
		}
	} else {
		var envelope struct {
			Drafts []RawDraft `json:"drafts"`
			Emails []RawDraft `json:"emails"`
		}
		if err := json.Unmarshal([]byte(text), &envelope); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
		}
		drafts = envelope.Drafts
		if len(drafts) == 0 {
			drafts = envelope.Emails
		}
	}

	if len(drafts) == 0 {
		return nil, fmt.Errorf("%w: no drafts", ErrMalformedPayload)
	}
	return drafts, nil
}

func stripFence(text string) string {
	if !strings.HasPrefix(text, "```") {
		return text
	}
	text = strings.TrimPrefix(text, "```")
	if nl := strings.IndexByte(text, '\n'); nl >= 0 {
		text = text[nl+1:] // drop the language tag line
	}
	text = strings.TrimSuffix(strings.TrimSpace(text), "```")
	return strings.TrimSpace(text)
}
