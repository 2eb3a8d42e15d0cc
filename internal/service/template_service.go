// internal/service/template_service.go
package service

import (
	"regexp"

	"github.com/unclebandit/outreach-backend/internal/model"
)

// placeholderPattern matches {{key}} and {key}. The double form is tried
// first so "{{name}}" is one token, not "{" + "{name}" + "}".
var placeholderPattern = regexp.MustCompile(`\{\{([A-Za-z0-9_]+)\}\}|\{([A-Za-z0-9_]+)\}`)

// Substitute replaces every token whose key is in values. Unknown tokens are
// left as they are so a missing value stays visible. Replacement text is never
// scanned again.
func Substitute(text string, values map[string]string) string {
	if text == "" || len(values) == 0 {
		return text
	}
	return placeholderPattern.ReplaceAllStringFunc(text, func(token string) string {
		m := placeholderPattern.FindStringSubmatch(token)
		key := m[1]
		if key == "" {
			key = m[2]
		}
		if v, ok := values[key]; ok {
			return v
		}
		return token
	})
}

// SubstituteDraft applies Substitute to subject and body independently.
func SubstituteDraft(d model.EmailDraft, values map[string]string) model.EmailDraft {
	d.Subject = Substitute(d.Subject, values)
	d.Body = Substitute(d.Body, values)
	return d
}

// senderValues are the placeholders filled in at generation time.
func senderValues(agentName, companyName string) map[string]string {
	values := map[string]string{}
	if agentName != "" {
		values["agent_name"] = agentName
	}
	if companyName != "" {
		values["company_name"] = companyName
		values["agent_company"] = companyName
	}
	return values
}
