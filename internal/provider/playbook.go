package provider

import (
	"context"
	_ "embed"
	"fmt"
	"os"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed playbook.yaml
var defaultPlaybook []byte

type playbookStep struct {
	RawDraft `yaml:",inline"`
	Personas []string `yaml:"personas"`
}

type playbookFile struct {
	Steps []playbookStep `yaml:"steps"`
}

// Playbook authors drafts from a fixed YAML cadence without calling a model.
type Playbook struct {
	steps []playbookStep
}

// NewPlaybook loads the cadence at path, or the built-in one when path is empty.
func NewPlaybook(path string) (*Playbook, error) {
	data := defaultPlaybook
	if path != "" {
		var err error
		if data, err = os.ReadFile(path); err != nil {
			return nil, fmt.Errorf("read playbook: %w", err)
		}
	}
	return ParsePlaybook(data)
}

func ParsePlaybook(data []byte) (*Playbook, error) {
	var f playbookFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse playbook: %w", err)
	}
	if len(f.Steps) == 0 {
		return nil, fmt.Errorf("playbook has no steps")
	}
	return &Playbook{steps: f.Steps}, nil
}

func (p *Playbook) Name() string { return "playbook" }

func (p *Playbook) Generate(ctx context.Context, req Request) ([]RawDraft, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	city := "your area"
	if len(req.Cities) > 0 {
		city = req.Cities[0]
	}
	tone := "friendly"
	if len(req.Tones) > 0 {
		tone = req.Tones[0]
	}
	r := strings.NewReplacer(
		"{{objective}}", req.Objective,
		"{{city}}", city,
		"{{cities}}", strings.Join(req.Cities, ", "),
		"{{tone}}", tone,
		"{{persona}}", strings.ReplaceAll(string(req.Persona), "_", " "),
	)

	var drafts []RawDraft
	for _, step := range p.steps {
		if len(step.Personas) > 0 && !slices.Contains(step.Personas, string(req.Persona)) {
			continue
		}
		d := step.RawDraft
		d.Order = len(drafts)
		d.Subject = r.Replace(d.Subject)
		d.Body = r.Replace(d.Body)
		drafts = append(drafts, d)
	}
	if len(drafts) == 0 {
		return nil, fmt.Errorf("%w: no playbook steps for persona %s", ErrMalformedPayload, req.Persona)
	}
	return drafts, nil
}

var _ Provider = (*Playbook)(nil)
