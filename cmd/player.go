package main

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/desertthunder/spotkit/internal/api"
	"github.com/desertthunder/spotkit/internal/formatter"
	"github.com/desertthunder/spotkit/internal/ui"
	"github.com/urfave/cli/v3"
)

func (r *Runner) player(ctx context.Context) (*api.Player, error) {
	client, err := r.pipeline(ctx)
	if err != nil {
		return nil, err
	}
	return api.NewPlayer(client)
}

// playbackError adds the player's reason, such as NO_ACTIVE_DEVICE, to the output.
func (r *Runner) playbackError(err error) error {
	var rejected *api.PlaybackRejectedError
	if errors.As(err, &rejected) && rejected.Reason != "" {
		r.writeln(ui.Styles.Err(strings.ReplaceAll(strings.ToLower(rejected.Reason), "_", " ")))
	}
	return r.requireLogin(err)
}

func optionalString(cmd *cli.Command, name string) *string {
	if !cmd.IsSet(name) {
		return nil
	}
	return api.Ptr(cmd.String(name))
}

// PlayerStatus shows the current playback.
func (r *Runner) PlayerStatus(ctx context.Context, cmd *cli.Command) error {
	player, err := r.player(ctx)
	if err != nil {
		return err
	}
	state, err := player.State(ctx)
	if err != nil {
		return r.playbackError(err)
	}

	if cmd.Bool("json") {
		return r.writeJSON(state, true)
	}
	if state == nil {
		return r.writeln(ui.Styles.Warn("Nothing is playing"))
	}

	status := "Paused"
	if state.IsPlaying {
		status = "Playing"
	}
	pairs := []ui.Pair{
		{Key: "Status", Value: status},
		{Key: "Device", Value: fmt.Sprintf("%s (%s)", state.Device.Name, state.Device.Type)},
		{Key: "Shuffle", Value: strconv.FormatBool(state.ShuffleState)},
		{Key: "Repeat", Value: state.RepeatState},
	}
	if t := state.Item; t != nil {
		progress := ""
		if state.ProgressMS != nil {
			progress = formatter.FormatDuration(api.Track{DurationMS: *state.ProgressMS}.Duration()) + " / "
		}
		pairs = append(pairs,
			ui.Pair{Key: "Track", Value: t.Name},
			ui.Pair{Key: "Artists", Value: strings.Join(t.ArtistNames(), ", ")},
			ui.Pair{Key: "Position", Value: progress + formatter.FormatDuration(t.Duration())},
		)
	}
	return r.writeln(ui.KeyValues(pairs...))
}

// PlayerDevices lists the available playback devices.
func (r *Runner) PlayerDevices(ctx context.Context, cmd *cli.Command) error {
	player, err := r.player(ctx)
	if err != nil {
		return err
	}
	devices, err := player.Devices(ctx)
	if err != nil {
		return r.playbackError(err)
	}

	if cmd.Bool("json") {
		return r.writeJSON(devices, true)
	}
	if len(devices) == 0 {
		return r.writeln(ui.Styles.Warn("No devices available"))
	}

	rows := make([][]string, 0, len(devices))
	for _, d := range devices {
		id, volume, active := "-", "-", ""
		if d.ID != nil {
			id = *d.ID
		}
		if d.VolumePercent != nil {
			volume = strconv.Itoa(*d.VolumePercent) + "%"
		}
		if d.IsActive {
			active = "●"
		}
		rows = append(rows, []string{active, d.Name, d.Type, volume, id})
	}
	return r.writeln(ui.Table([]string{"", "Name", "Type", "Volume", "ID"}, rows))
}

// PlayerPlay starts or resumes playback.
func (r *Runner) PlayerPlay(ctx context.Context, cmd *cli.Command) error {
	player, err := r.player(ctx)
	if err != nil {
		return err
	}

	opts := api.PlayOptions{
		DeviceID:   optionalString(cmd, "device"),
		ContextURI: cmd.String("context"),
		URIs:       cmd.StringSlice("uri"),
	}
	if cmd.IsSet("position") {
		opts.PositionMS = api.Ptr(cmd.Int("position"))
	}
	if err := player.Play(ctx, opts); err != nil {
		return r.playbackError(err)
	}
	if cmd.Bool("json") {
		return r.writeJSON(map[string]bool{"playing": true}, false)
	}
	return r.writeln(ui.Styles.OK("Playback started"))
}

// PlayerPause pauses playback.
func (r *Runner) PlayerPause(ctx context.Context, cmd *cli.Command) error {
	player, err := r.player(ctx)
	if err != nil {
		return err
	}
	if err := player.Pause(ctx, optionalString(cmd, "device")); err != nil {
		return r.playbackError(err)
	}
	if cmd.Bool("json") {
		return r.writeJSON(map[string]bool{"playing": false}, false)
	}
	return r.writeln(ui.Styles.OK("Playback paused"))
}
