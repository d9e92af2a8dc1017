package tasks

import (
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/spotkit/internal/api"
	"github.com/desertthunder/spotkit/internal/shared"
)

const (
	DefaultWorkers   = 5
	MaxWorkers       = 10
	DefaultRateLimit = 5.0 // playlists per second
	ManifestFile     = "export_manifest.json"
)

// ExportOpts contains configuration for bulk playlist exports.
type ExportOpts struct {
	Format        string  // Export format: json, csv, markdown, txt
	OutputDir     string  // Base output directory (default: spotify_export_{epoch})
	NumWorkers    int     // Concurrent workers (default: 5)
	RateLimit     float64 // Playlists started per second (default: 5)
	MaxExtraPages int     // Follow-up item pages per playlist; zero means no cap
}

// PlaylistResult is the outcome of exporting a single playlist.
type PlaylistResult struct {
	PlaylistID   string   `json:"playlist_id"`
	PlaylistName string   `json:"playlist_name"`
	TrackCount   int      `json:"track_count"`
	Skipped      int      `json:"skipped"`
	Success      bool     `json:"success"`
	Files        []string `json:"files,omitempty"`
	Error        error    `json:"-"`
	ErrorMessage string   `json:"error,omitempty"`
}

// ExportResult summarizes a bulk export. It is also the manifest written to the output directory.
type ExportResult struct {
	Format            string           `json:"format"`
	StartedAt         time.Time        `json:"started_at"`
	FinishedAt        time.Time        `json:"finished_at"`
	TotalPlaylists    int              `json:"total_playlists"`
	SuccessfulExports int              `json:"successful_exports"`
	FailedExports     int              `json:"failed_exports"`
	OutputDirectory   string           `json:"output_directory"`
	ManifestPath      string           `json:"-"`
	Results           []PlaylistResult `json:"results"`
}

// Exporter writes playlists fetched through an [api.Client] to disk.
type Exporter struct {
	client *api.Client
	logger *log.Logger
	now    func() time.Time
}

// NewExporter creates an Exporter. A nil logger discards output.
func NewExporter(client *api.Client, logger *log.Logger) *Exporter {
	return &Exporter{
		client: client,
		logger: shared.WithLogger(logger, "component", "export"),
		now:    time.Now,
	}
}

// sendProgress sends a progress update through the channel without blocking.
func sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
	}
}
