// Package tasks runs long playlist operations on top of the authorized request pipeline with real-time
// progress reporting.
//
// # Bulk Export
//
// [Exporter.Export] writes a set of playlists to disk:
//
//  1. A worker pool (default 5, at most 10 workers) pulls playlist IDs from a job channel
//  2. Each worker waits on a shared [rate.Limiter] before fetching a playlist
//  3. The playlist and every follow-up page of its items go through [api.Client], so rate limits,
//     transient failures and token refreshes are handled per request
//  4. The collected tracks are written by the formatter package in the requested format
//  5. A manifest (export_manifest.json) summarizes every playlist's outcome
//
// A failed playlist is recorded in the result and the manifest. It does not stop the other workers.
//
// # Progress Reporting
//
// Progress updates are sent on an optional channel. Sends use select with default so a slow or absent reader
// never blocks an export.
package tasks
