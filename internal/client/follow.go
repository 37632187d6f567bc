package client

import (
	"context"
	"fmt"
	"time"

	"github.com/qlora-pipeline/controlplane/internal/domain/model"
)

const defaultFollowInterval = time.Second

// ResetMarker is printed in place of lines lost to buffer eviction.
func ResetMarker(dropped int) string {
	return fmt.Sprintf("--- %d earlier lines were discarded ---", dropped)
}

// FollowOptions configures Follow.
type FollowOptions struct {
	Since    int
	Interval time.Duration
	// Line receives every log line in order, plus a ResetMarker whenever continuity is lost.
	Line func(string)
}

// Follow tails a job's log with the offset protocol until the job is terminal and
// no new lines arrive. It returns the final job snapshot.
func (c *Client) Follow(ctx context.Context, id string, opts FollowOptions) (model.Job, error) {
	interval := opts.Interval
	if interval <= 0 {
		interval = defaultFollowInterval
	}
	emit := opts.Line
	if emit == nil {
		emit = func(string) {}
	}

	since := opts.Since
	settled := false
	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return model.Job{}, ctx.Err()
		case <-timer.C:
		}

		// Status first: every line written before the terminal transition is then
		// included in this page or the next one.
		j, err := c.GetJob(ctx, id)
		if err != nil {
			return model.Job{}, err
		}
		page, err := c.Logs(ctx, id, since)
		if err != nil {
			return model.Job{}, err
		}

		if page.Reset {
			emit(ResetMarker(page.Dropped))
		}
		for _, line := range page.Logs {
			emit(line)
		}
		since = page.NextOffset

		fresh := len(page.Logs) > 0 || page.Reset
		if j.Status().Terminal() && !fresh {
			if settled {
				return j, nil
			}
			// One more round picks up lines written right after the transition.
			settled = true
		} else {
			settled = false
		}
		timer.Reset(interval)
	}
}
