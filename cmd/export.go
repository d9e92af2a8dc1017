package main

import (
	"context"
	"fmt"

	"github.com/desertthunder/spotkit/internal/api"
	"github.com/desertthunder/spotkit/internal/shared"
	"github.com/desertthunder/spotkit/internal/tasks"
	"github.com/desertthunder/spotkit/internal/ui"
	"github.com/urfave/cli/v3"
)

// Export writes the selected playlists to disk with a worker pool, printing progress as playlists finish.
func (r *Runner) Export(ctx context.Context, cmd *cli.Command) error {
	client, err := r.pipeline(ctx)
	if err != nil {
		return err
	}

	ids := splitIDs(cmd.StringSlice("ids"))
	if cmd.Bool("all") {
		playlists, err := client.AllPlaylists(ctx, api.WalkOptions{})
		if err != nil {
			return r.requireLogin(err)
		}
		for _, p := range playlists {
			ids = append(ids, p.ID)
		}
	}
	if len(ids) == 0 {
		return fmt.Errorf("%w: pass --ids or --all", shared.ErrMissingArgument)
	}

	useJSON := cmd.Bool("json")
	prog := make(chan tasks.ProgressUpdate, 64)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for update := range prog {
			if useJSON || update.Phase == tasks.FetchItems {
				continue
			}
			r.writeln(update.Message)
		}
	}()

	result, err := tasks.NewExporter(client, r.logger).Export(ctx, prog, ids, tasks.ExportOpts{
		Format:        cmd.String("format"),
		OutputDir:     cmd.String("out"),
		NumWorkers:    cmd.Int("workers"),
		RateLimit:     cmd.Float("rate"),
		MaxExtraPages: cmd.Int("max-pages"),
	})
	close(prog)
	<-done
	if result == nil {
		return err
	}

	if useJSON {
		if jsonErr := r.writeJSON(result, true); jsonErr != nil {
			return jsonErr
		}
		return err
	}

	summary := fmt.Sprintf("Exported %d of %d playlists to %s", result.SuccessfulExports, result.TotalPlaylists, result.OutputDirectory)
	if result.FailedExports > 0 {
		r.writeln(ui.Styles.Warn(summary))
	} else {
		r.writeln(ui.Styles.OK(summary))
	}
	if result.ManifestPath != "" {
		r.writeln(ui.Styles.Help("Manifest: " + result.ManifestPath))
	}
	return err
}
