package main

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/desertthunder/spotkit/internal/repositories"
	"github.com/desertthunder/spotkit/internal/ui"
	"github.com/urfave/cli/v3"
)

func (r *Runner) rateLimitEvents() (*repositories.RateLimitEventRepository, error) {
	if r.events != nil {
		return r.events, nil
	}
	db, err := r.database()
	if err != nil {
		return nil, err
	}
	r.events = repositories.NewRateLimitEventRepository(db)
	return r.events, nil
}

// RateLimitsList shows the most recent 429 responses recorded by the pipeline.
func (r *Runner) RateLimitsList(ctx context.Context, cmd *cli.Command) error {
	events, err := r.rateLimitEvents()
	if err != nil {
		return err
	}
	list, err := events.List(ctx, cmd.Int("limit"))
	if err != nil {
		return err
	}
	window := cmd.Duration("since")
	count, err := events.Count(ctx, r.now().Add(-window))
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(map[string]any{"events": list, "count": count, "window": window.String()}, true)
	}

	r.writeln(ui.Styles.Title(fmt.Sprintf("%d rate limit responses in the last %s", count, window)))
	if len(list) == 0 {
		return nil
	}
	rows := make([][]string, 0, len(list))
	for _, ev := range list {
		wait := "default"
		if ev.HasRetryAfter {
			wait = ev.RetryAfter.String()
		}
		rows = append(rows, []string{
			ev.OccurredAt.Local().Format(time.DateTime),
			ev.Method,
			ui.Truncate(ev.Path, 50),
			strconv.Itoa(ev.Attempt),
			wait,
		})
	}
	return r.writeln(ui.Table([]string{"When", "Method", "Path", "Attempt", "Retry-After"}, rows))
}

// RateLimitsPrune deletes events older than --older-than.
func (r *Runner) RateLimitsPrune(ctx context.Context, cmd *cli.Command) error {
	events, err := r.rateLimitEvents()
	if err != nil {
		return err
	}
	n, err := events.Prune(ctx, r.now().Add(-cmd.Duration("older-than")))
	if err != nil {
		return err
	}
	if cmd.Bool("json") {
		return r.writeJSON(map[string]int64{"deleted": n}, false)
	}
	return r.writeln(ui.Styles.OK(fmt.Sprintf("Deleted %d events", n)))
}
