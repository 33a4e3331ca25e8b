package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"stagecue/internal/ipc"
)

func newSceneCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scene",
		Short: "List scenes or move the scene cursor",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Scenes()
				if err != nil {
					return err
				}
				renderScenes(cmd, resp.Scenes)
				return nil
			})
		},
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "select <index>",
		Short: "Select a scene by index (1-based)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			idx, err := parseIndex(args[0])
			if err != nil {
				return err
			}
			return ctx.withClient(func(client *ipc.Client) error {
				if _, err := client.SelectScene(idx); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Scene %s selected\n", args[0])
				return nil
			})
		},
	})
	return cmd
}

func newCueCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cue",
		Short: "Move the cue cursor",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "select <index>",
		Short: "Select a cue in the active scene by index (1-based)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			idx, err := parseIndex(args[0])
			if err != nil {
				return err
			}
			return ctx.withClient(func(client *ipc.Client) error {
				if _, err := client.SelectCue(idx); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Cue %s selected\n", args[0])
				return nil
			})
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "next",
		Short: "Advance the cue cursor",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				if _, err := client.NextCue(); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Cursor advanced")
				return nil
			})
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "prev",
		Short: "Move the cue cursor back",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				if _, err := client.PrevCue(); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Cursor moved back")
				return nil
			})
		},
	})
	return cmd
}

func renderScenes(cmd *cobra.Command, scenes []ipc.SceneStatus) {
	stdout := cmd.OutOrStdout()
	if len(scenes) == 0 {
		fmt.Fprintln(stdout, "No scenes loaded")
		return
	}
	var rows [][]string
	for i, scene := range scenes {
		marker := ""
		if scene.Selected {
			marker = "*"
		}
		rows = append(rows, []string{
			marker,
			strconv.Itoa(i + 1),
			scene.Name,
			strconv.Itoa(len(scene.Cues)),
			scene.Notes,
		})
	}
	fmt.Fprintln(stdout, renderTable(
		[]string{"", "#", "Scene", "Cues", "Notes"},
		rows,
		[]columnAlignment{alignLeft, alignRight, alignLeft, alignRight, alignLeft},
	))
}

// parseIndex converts a 1-based operator index to the engine's 0-based one.
func parseIndex(raw string) (int, error) {
	idx, err := strconv.Atoi(raw)
	if err != nil || idx < 1 {
		return 0, fmt.Errorf("invalid index %q: expected a positive number", raw)
	}
	return idx - 1, nil
}
