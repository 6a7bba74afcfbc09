package model

import (
	"context"
	"fmt"

	"github.com/viant/afs"
	"gopkg.in/yaml.v3"
)

// DecodePlan parses a YAML plan document.
func DecodePlan(data []byte) (*Plan, error) {
	plan := &Plan{}
	if err := yaml.Unmarshal(data, plan); err != nil {
		return nil, fmt.Errorf("failed to decode plan: %w", err)
	}
	if issues := plan.Validate(); len(issues) > 0 {
		return nil, fmt.Errorf("invalid plan: %v", issues[0])
	}
	return plan, nil
}

// LoadPlan reads and decodes a YAML plan document from the supplied URL
// (file path, s3://, gs://, mem:// – anything the afs service understands).
func LoadPlan(ctx context.Context, fs afs.Service, URL string) (*Plan, error) {
	data, err := fs.DownloadWithURL(ctx, URL)
	if err != nil {
		return nil, fmt.Errorf("failed to load plan %s: %w", URL, err)
	}
	return DecodePlan(data)
}
