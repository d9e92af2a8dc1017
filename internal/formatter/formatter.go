// package formatter writes exported playlists to files in JSON, CSV, Markdown or plain text
package formatter

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/desertthunder/spotkit/internal/api"
	"github.com/desertthunder/spotkit/internal/shared"
)

// Supported export formats
const (
	FormatJSON     = "json"
	FormatCSV      = "csv"
	FormatMarkdown = "markdown"
	FormatText     = "txt"
)

// Formats lists the accepted values for the export format option.
var Formats = []string{FormatJSON, FormatCSV, FormatMarkdown, FormatText}

// PlaylistExport is a playlist with every track it contains.
type PlaylistExport struct {
	Playlist   api.SimplePlaylist `json:"playlist"`
	Tracks     []api.Track        `json:"tracks"`
	Skipped    int                `json:"skipped"` // local files and removed tracks
	ExportedAt time.Time          `json:"exported_at"`
}

// NewPlaylistExport collects the tracks of items, skipping entries without a track.
func NewPlaylistExport(playlist api.SimplePlaylist, items []api.PlaylistItem, now time.Time) *PlaylistExport {
	export := &PlaylistExport{Playlist: playlist, Tracks: make([]api.Track, 0, len(items)), ExportedAt: now.UTC()}
	for _, item := range items {
		if item.Track == nil || item.Track.ID == "" {
			export.Skipped++
			continue
		}
		export.Tracks = append(export.Tracks, *item.Track)
	}
	return export
}

// ValidFormat reports whether format is one of [Formats].
func ValidFormat(format string) bool {
	for _, f := range Formats {
		if f == format {
			return true
		}
	}
	return false
}

// ExportToCSV converts a PlaylistExport to CSV format with columns: ID, Title, Artist, Album, Duration, ISRC
func ExportToCSV(export *PlaylistExport) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := []string{"ID", "Title", "Artist", "Album", "Duration", "ISRC"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, track := range export.Tracks {
		record := []string{
			track.ID,
			track.Name,
			strings.Join(track.ArtistNames(), ", "),
			track.Album.Name,
			strconv.Itoa(int(track.Duration().Seconds())),
			track.ExternalIDs.ISRC,
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

// ExportToMarkdown converts a PlaylistExport to Markdown, linking the largest cover image when there is one
func ExportToMarkdown(export *PlaylistExport) []byte {
	var buf bytes.Buffer
	pl := export.Playlist

	fmt.Fprintf(&buf, "# %s\n\n", pl.Name)

	if len(pl.Images) > 0 {
		fmt.Fprintf(&buf, "![Cover](%s)\n\n", pl.Images[0].URL)
	}

	if pl.Description != "" {
		fmt.Fprintf(&buf, "**Description**: %s\n\n", pl.Description)
	}

	fmt.Fprintf(&buf, "**Owner**: %s\n", pl.Owner.DisplayName)
	fmt.Fprintf(&buf, "**Tracks**: %d\n", len(export.Tracks))
	fmt.Fprintf(&buf, "**Visibility**: %s\n\n", Visibility(pl.Public))

	buf.WriteString("## Tracks\n\n")
	for i, track := range export.Tracks {
		albumPart := ""
		if track.Album.Name != "" {
			albumPart = fmt.Sprintf(" (%s)", track.Album.Name)
		}
		fmt.Fprintf(&buf, "%d. %s - %s%s [%s]\n",
			i+1, strings.Join(track.ArtistNames(), ", "), track.Name, albumPart, FormatDuration(track.Duration()))
	}

	return buf.Bytes()
}

// ExportToText converts a PlaylistExport to plain text format
func ExportToText(export *PlaylistExport) []byte {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "Playlist: %s\n", export.Playlist.Name)
	if export.Playlist.Description != "" {
		fmt.Fprintf(&buf, "Description: %s\n", export.Playlist.Description)
	}
	fmt.Fprintf(&buf, "Tracks: %d\n\n", len(export.Tracks))

	for i, track := range export.Tracks {
		fmt.Fprintf(&buf, "%d. %s - %s\n", i+1, strings.Join(track.ArtistNames(), ", "), track.Name)
	}

	return buf.Bytes()
}

// ToMetadataJSON generates a JSON representation of playlist metadata (without tracks)
func ToMetadataJSON(playlist api.SimplePlaylist) ([]byte, error) {
	return shared.MarshalJSON(playlist, true)
}

// Write exports to dir in format and returns the files it created. Files are named after the playlist ID.
func Write(export *PlaylistExport, format, dir string) ([]string, error) {
	base := filepath.Join(dir, export.Playlist.ID)

	switch format {
	case FormatCSV:
		csvData, err := ExportToCSV(export)
		if err != nil {
			return nil, fmt.Errorf("failed to generate CSV: %w", err)
		}
		metadata, err := ToMetadataJSON(export.Playlist)
		if err != nil {
			return nil, fmt.Errorf("failed to generate metadata JSON: %w", err)
		}
		tracksFile, metadataFile := base+"_tracks.csv", base+"_metadata.json"
		if err := writeFile(tracksFile, csvData); err != nil {
			return nil, err
		}
		if err := writeFile(metadataFile, metadata); err != nil {
			return nil, err
		}
		return []string{tracksFile, metadataFile}, nil

	case FormatMarkdown:
		if err := os.MkdirAll(base, 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
		mdFile := filepath.Join(base, "README.md")
		if err := writeFile(mdFile, ExportToMarkdown(export)); err != nil {
			return nil, err
		}
		return []string{mdFile}, nil

	case FormatText:
		txtFile := base + "_tracks.txt"
		if err := writeFile(txtFile, ExportToText(export)); err != nil {
			return nil, err
		}
		return []string{txtFile}, nil

	case FormatJSON, "":
		data, err := shared.MarshalJSON(export, true)
		if err != nil {
			return nil, fmt.Errorf("JSON marshal failed: %w", err)
		}
		jsonFile := base + ".json"
		if err := writeFile(jsonFile, data); err != nil {
			return nil, err
		}
		return []string{jsonFile}, nil
	}

	return nil, fmt.Errorf("%w: unknown export format %q", shared.ErrInvalidArgument, format)
}

// WriteManifest writes v as indented JSON to path.
func WriteManifest(v any, path string) error {
	data, err := shared.MarshalJSON(v, true)
	if err != nil {
		return fmt.Errorf("failed to marshal manifest: %w", err)
	}
	return writeFile(path, data)
}

// Visibility renders the public flag of a playlist.
func Visibility(public bool) string {
	if public {
		return "Public"
	}
	return "Private"
}

// FormatDuration renders d as m:ss, or h:mm:ss past an hour.
func FormatDuration(d time.Duration) string {
	total := int(d.Round(time.Second).Seconds())
	h, m, s := total/3600, (total%3600)/60, total%60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}

func writeFile(path string, data []byte) error {
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", filepath.Base(path), err)
	}
	return nil
}
