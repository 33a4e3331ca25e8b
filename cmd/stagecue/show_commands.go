package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"stagecue/internal/ipc"
)

func newShowCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Manage the show library",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List saved shows",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.ShowList()
				if err != nil {
					return err
				}
				if len(resp.Shows) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No saved shows")
					return nil
				}
				var rows [][]string
				for _, info := range resp.Shows {
					rows = append(rows, []string{
						info.Name,
						strconv.Itoa(info.Scenes),
						strconv.Itoa(info.Cues),
						info.UpdatedAt.Local().Format("2006-01-02 15:04"),
					})
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable(
					[]string{"Show", "Scenes", "Cues", "Updated"},
					rows,
					[]columnAlignment{alignLeft, alignRight, alignRight, alignLeft},
				))
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "save <name>",
		Short: "Save the current show",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				if _, err := client.ShowSave(args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Saved show %q\n", args[0])
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "load <name>",
		Short: "Load a saved show (playback must be stopped)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				if _, err := client.ShowLoad(args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Loaded show %q\n", args[0])
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "rm <name>",
		Short: "Delete a saved show",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.ShowDelete(args[0])
				if err != nil {
					return err
				}
				if resp.Deleted {
					fmt.Fprintf(cmd.OutOrStdout(), "Deleted show %q\n", args[0])
				} else {
					fmt.Fprintf(cmd.OutOrStdout(), "No show named %q\n", args[0])
				}
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "export <file>",
		Short: "Export the current show as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.ShowExport()
				if err != nil {
					return err
				}
				if err := os.WriteFile(args[0], resp.Snapshot, 0o644); err != nil {
					return fmt.Errorf("write snapshot: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Exported show to %s\n", args[0])
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "import <file>",
		Short: "Replace the current show with a JSON snapshot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read snapshot: %w", err)
			}
			return ctx.withClient(func(client *ipc.Client) error {
				if _, err := client.ShowImport(data); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Imported show from %s\n", args[0])
				return nil
			})
		},
	})

	return cmd
}
