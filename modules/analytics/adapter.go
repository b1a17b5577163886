package analytics

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"
)

// StatsRequest is the request for the get-stats service.
type StatsRequest struct{}

// StatsPort reads aggregate counters.
type StatsPort interface {
	GetStats(ctx context.Context) (*Summary, error)
}

// StatsAdapter implements StatsPort using the service container.
type StatsAdapter struct {
	container mono.ServiceContainer
}

// NewStatsAdapter creates a new StatsAdapter.
func NewStatsAdapter(container mono.ServiceContainer) *StatsAdapter {
	return &StatsAdapter{container: container}
}

// GetStats returns the stats summary.
func (a *StatsAdapter) GetStats(ctx context.Context) (*Summary, error) {
	var resp Summary
	if err := helper.CallRequestReplyService(
		ctx,
		a.container,
		"get-stats",
		json.Marshal,
		json.Unmarshal,
		&StatsRequest{},
		&resp,
	); err != nil {
		return nil, fmt.Errorf("get-stats request failed: %w", err)
	}
	return &resp, nil
}
