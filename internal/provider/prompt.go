package provider

import (
	"fmt"
	"strings"
)

const systemPrompt = `You write multi-touch email outreach sequences for real estate professionals.
Answer with JSON only, in the shape {"drafts": [{"category_id": "...", "subject": "...", "body": "...",
"send_day": 0, "order": 0, "month_phase": "...", "month_number": 1}]}.
send_day is the number of days after the campaign start the email goes out, starting at 0.
Use the placeholders {{agent_name}} and {{company_name}} for the sender and {first_name} for the
recipient instead of inventing names.`

// BuildPrompt renders the user prompt shared by the chat-style providers.
func BuildPrompt(req Request) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Objective: %s\n", req.Objective)
	fmt.Fprintf(&b, "Recipient persona: %s\n", strings.ReplaceAll(string(req.Persona), "_", " "))
	if len(req.Tones) > 0 {
		fmt.Fprintf(&b, "Tone: %s\n", strings.Join(req.Tones, ", "))
	}
	if len(req.Cities) > 0 {
		fmt.Fprintf(&b, "Target cities: %s\n", strings.Join(req.Cities, ", "))
	}
	if req.AgentName != "" {
		fmt.Fprintf(&b, "Sender: %s\n", req.AgentName)
	}
	if req.CompanyName != "" {
		fmt.Fprintf(&b, "Company: %s\n", req.CompanyName)
	}
	b.WriteString("Write a cadence of 6 to 12 emails spread over the first three months.")
	return b.String()
}
