package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"stagecue/internal/ipc"
)

func newGoCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "go",
		Short: "Fire the selected cue (GO)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.GoLive()
				if err != nil {
					return err
				}
				if resp.Fired != nil {
					fmt.Fprintf(cmd.OutOrStdout(), "Live: %s [%s]\n", resp.Fired.Name, resp.Fired.Kind)
				} else {
					fmt.Fprintln(cmd.OutOrStdout(), "Cue fired")
				}
				return nil
			})
		},
	}
}

func newStopCommand(ctx *commandContext) *cobra.Command {
	var deckFlag string
	cmd := &cobra.Command{
		Use:   "stop",
		Short: "Stop playback (both decks, or one with --deck)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				if _, err := client.Stop(deckFlag); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Stopped")
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&deckFlag, "deck", "", "deck to stop (A or B)")
	return cmd
}

func newPanicCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:     "panic",
		Aliases: []string{"stopall"},
		Short:   "Emergency stop: kill every player and drop to blackout",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				if _, err := client.StopAll(); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "All playback stopped, output is blackout")
				return nil
			})
		},
	}
}

func newPauseCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "pause",
		Short: "Toggle pause on the running deck",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				if _, err := client.TogglePause(); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Pause toggled")
				return nil
			})
		},
	}
}

func newSeekCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "seek <seconds>",
		Short: "Seek the running deck to an absolute media offset",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			offset, err := strconv.ParseFloat(args[0], 64)
			if err != nil {
				return fmt.Errorf("invalid offset %q: %w", args[0], err)
			}
			return ctx.withClient(func(client *ipc.Client) error {
				if _, err := client.Seek(offset); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Seeked to %s\n", formatSeconds(offset))
				return nil
			})
		},
	}
}

func newVolumeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "vol <mute|half|full>",
		Short: "Apply a discrete volume step to the running deck",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			step := strings.ToLower(args[0])
			return ctx.withClient(func(client *ipc.Client) error {
				if _, err := client.Volume(step); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Volume: %s\n", step)
				return nil
			})
		},
	}
}

func newBlackoutCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "blackout <on|off>",
		Short: "Force operator blackout on or off",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var on bool
			switch strings.ToLower(args[0]) {
			case "on":
				on = true
			case "off":
				on = false
			default:
				return fmt.Errorf("expected on or off, got %q", args[0])
			}
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Blackout(on)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Output: %s\n", resp.Output)
				return nil
			})
		},
	}
}
