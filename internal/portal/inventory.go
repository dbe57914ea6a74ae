package portal

import (
	"context"
	"fmt"
	"net/url"

	"github.com/mitchellh/mapstructure"
)

const (
	jobsPath   = "/api/jobs"
	statusPath = "/api/status"
)

// PortalStatus reports whether the portal is reachable and accepting
// applications.
type PortalStatus struct {
	Status   string         `json:"status"`
	JobCount int            `json:"job_count" mapstructure:"job_count"`
	Stats    map[string]any `json:"stats,omitempty"`
}

// Active reports whether applications can be submitted right now.
func (s *PortalStatus) Active() bool {
	return s != nil && s.Status == "active"
}

// Jobs fetches the complete job inventory. An empty inventory is a valid
// result, not an error.
func (c *Client) Jobs(ctx context.Context) ([]*Job, error) {
	q := url.Values{}
	// Set per_page max as possible. It should be faster.
	q.Add("per_page", perPage)

	items, err := c.GetItems(ctx, fmt.Sprintf("%s%s", c.APIURL, jobsPath), q)
	if err != nil {
		return nil, err
	}

	var jobs []*Job
	cfg := &mapstructure.DecoderConfig{
		Metadata: nil,
		Result:   &jobs,
		TagName:  "mapstructure",
	}
	decoder, err := mapstructure.NewDecoder(cfg)
	if err != nil {
		return nil, err
	}
	if err := decoder.Decode(items); err != nil {
		return nil, fmt.Errorf("decode job items: %w", err)
	}

	return jobs, nil
}

// Status probes portal health.
func (c *Client) Status(ctx context.Context) (*PortalStatus, error) {
	var status PortalStatus
	if err := c.getJSON(ctx, fmt.Sprintf("%s%s", c.APIURL, statusPath), nil, &status); err != nil {
		return nil, err
	}

	return &status, nil
}
