package tasks

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/desertthunder/spotkit/internal/api"
	"github.com/desertthunder/spotkit/internal/auth"
	"github.com/desertthunder/spotkit/internal/formatter"
	"github.com/desertthunder/spotkit/internal/shared"
	"golang.org/x/time/rate"
)

type exportJob struct {
	index      int
	playlistID string
}

// Export exports multiple playlists concurrently with rate limiting and progress tracking.
//
// Partial failures are recorded per playlist. When ctx is cancelled the remaining playlists are marked failed,
// the manifest is still written and the context error is returned alongside the result.
func (e *Exporter) Export(ctx context.Context, prog chan<- ProgressUpdate, ids []string, opts ExportOpts) (*ExportResult, error) {
	if e.client == nil {
		return nil, fmt.Errorf("%w: api client not initialized", shared.ErrServiceUnavailable)
	}
	if len(ids) == 0 {
		return nil, fmt.Errorf("%w: no playlist ids", shared.ErrMissingArgument)
	}
	if opts.Format == "" {
		opts.Format = formatter.FormatJSON
	}
	if !formatter.ValidFormat(opts.Format) {
		return nil, fmt.Errorf("%w: unknown export format %q", shared.ErrInvalidArgument, opts.Format)
	}

	if opts.OutputDir == "" {
		opts.OutputDir = fmt.Sprintf("spotify_export_%d", e.now().Unix())
	}
	if opts.NumWorkers <= 0 {
		opts.NumWorkers = DefaultWorkers
	}
	if opts.NumWorkers > MaxWorkers {
		opts.NumWorkers = MaxWorkers
	}
	if opts.RateLimit <= 0 {
		opts.RateLimit = DefaultRateLimit
	}

	if err := os.MkdirAll(opts.OutputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	result := &ExportResult{
		Format:          opts.Format,
		StartedAt:       e.now().UTC(),
		TotalPlaylists:  len(ids),
		OutputDirectory: opts.OutputDir,
		Results:         make([]PlaylistResult, 0, len(ids)),
	}

	limiter := rate.NewLimiter(rate.Limit(opts.RateLimit), 1)

	jobs := make(chan exportJob, len(ids))
	for i, id := range ids {
		jobs <- exportJob{index: i, playlistID: id}
	}
	close(jobs)

	type indexed struct {
		index int
		res   PlaylistResult
	}
	results := make(chan indexed, len(ids))

	sendProgress(prog, startingUpdate(len(ids), opts.NumWorkers))
	e.logger.Info("starting export", "playlists", len(ids), "workers", opts.NumWorkers, "format", opts.Format)

	var wg sync.WaitGroup
	for range opts.NumWorkers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range jobs {
				var res PlaylistResult
				if err := limiter.Wait(ctx); err != nil {
					res = failed(job.playlistID, "", fmt.Errorf("export cancelled: %w", ctx.Err()))
				} else {
					res = e.exportPlaylist(ctx, prog, job, len(ids), opts)
				}
				results <- indexed{index: job.index, res: res}
			}
		}()
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	ordered := make([]indexed, 0, len(ids))
	for r := range results {
		ordered = append(ordered, r)
		res := r.res
		if res.Success {
			result.SuccessfulExports++
			sendProgress(prog, exportCompletedUpdate(len(ordered), len(ids), res))
		} else {
			result.FailedExports++
			e.logger.Warn("playlist export failed", "playlist", res.PlaylistID, "err", res.Error)
			sendProgress(prog, exportFailedUpdate(len(ordered), len(ids), res))
		}
	}

	sort.Slice(ordered, func(i, j int) bool { return ordered[i].index < ordered[j].index })
	for _, r := range ordered {
		result.Results = append(result.Results, r.res)
	}
	result.FinishedAt = e.now().UTC()

	manifestPath := filepath.Join(opts.OutputDir, ManifestFile)
	if err := formatter.WriteManifest(result, manifestPath); err != nil {
		return result, fmt.Errorf("export completed but failed to write manifest: %w", err)
	}
	result.ManifestPath = manifestPath
	sendProgress(prog, manifestUpdate(manifestPath))
	e.logger.Info("export finished", "succeeded", result.SuccessfulExports, "failed", result.FailedExports)

	if err := ctx.Err(); err != nil {
		return result, err
	}
	return result, nil
}

// exportPlaylist fetches one playlist with all of its items and writes it in the requested format.
func (e *Exporter) exportPlaylist(ctx context.Context, prog chan<- ProgressUpdate, job exportJob, total int, opts ExportOpts) PlaylistResult {
	pl, err := e.client.Playlist(ctx, job.playlistID)
	if err != nil {
		return failed(job.playlistID, "", fmt.Errorf("failed to fetch playlist: %w", err))
	}

	sendProgress(prog, fetchItemsUpdate(job.index+1, total, pl.Name, len(pl.Tracks.Items)))

	walk := api.WalkOptions{
		MaxExtraPages: opts.MaxExtraPages,
		Scopes:        auth.NewScopes(auth.ScopePlaylistReadPrivate),
	}
	items, err := api.CollectItems[api.PlaylistItem](api.Pages(ctx, e.client, pl.Tracks, walk))
	if err != nil {
		return failed(job.playlistID, pl.Name, fmt.Errorf("failed to fetch tracks: %w", err))
	}

	export := formatter.NewPlaylistExport(summary(pl), items, e.now())
	files, err := formatter.Write(export, opts.Format, opts.OutputDir)
	if err != nil {
		return failed(job.playlistID, pl.Name, fmt.Errorf("%s export failed: %w", opts.Format, err))
	}

	e.logger.Debug("playlist exported", "playlist", pl.ID, "tracks", len(export.Tracks), "skipped", export.Skipped)
	return PlaylistResult{
		PlaylistID:   job.playlistID,
		PlaylistName: pl.Name,
		TrackCount:   len(export.Tracks),
		Skipped:      export.Skipped,
		Success:      true,
		Files:        files,
	}
}

func failed(id, name string, err error) PlaylistResult {
	if name == "" {
		name = fmt.Sprintf("Unknown (%s)", id)
	}
	return PlaylistResult{PlaylistID: id, PlaylistName: name, Error: err, ErrorMessage: err.Error()}
}

// summary drops the embedded item page from a full playlist.
func summary(pl api.Playlist) api.SimplePlaylist {
	return api.SimplePlaylist{
		ID:            pl.ID,
		Name:          pl.Name,
		Description:   pl.Description,
		Owner:         pl.Owner,
		Public:        pl.Public,
		Collaborative: pl.Collaborative,
		SnapshotID:    pl.SnapshotID,
		Tracks:        api.TrackCount{Total: pl.Tracks.Total},
		Images:        pl.Images,
		URI:           pl.URI,
	}
}
