package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"stagecue/internal/ipc"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show playback and deck status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Status()
				if err != nil {
					return err
				}
				renderStatus(cmd, resp)
				return nil
			})
		},
	}
}

func renderStatus(cmd *cobra.Command, resp *ipc.StatusResponse) {
	stdout := cmd.OutOrStdout()
	st := resp.Engine

	scene := st.SceneName
	if scene == "" {
		scene = "(no scene)"
	}
	fmt.Fprintf(stdout, "Scene:  %s (%d/%d)\n", scene, st.SceneIndex+1, st.SceneCount)
	fmt.Fprintf(stdout, "Output: %s", colorizeOutput(stdout, st.Output))
	if st.Forced {
		fmt.Fprint(stdout, " (forced)")
	}
	fmt.Fprintln(stdout)

	if st.Current != nil {
		fmt.Fprintf(stdout, "Cue:    %s [%s] (%d/%d)\n",
			st.Current.Name, st.Current.Kind, st.CueIndex+1, st.CueCount)
	} else {
		fmt.Fprintln(stdout, "Cue:    (none selected)")
	}
	if st.Next != nil {
		fmt.Fprintf(stdout, "Next:   %s [%s]\n", st.Next.Name, st.Next.Kind)
	}
	fmt.Fprintln(stdout)

	rows := make([][]string, 0, len(st.Decks))
	for _, deck := range st.Decks {
		cueName, position := "-", "-"
		if deck.Cue != nil {
			cueName = fmt.Sprintf("%s [%s]", deck.Cue.Name, deck.Cue.Kind)
		}
		if deck.HasPosition {
			position = formatSeconds(deck.Position)
			if deck.Cue != nil && deck.Cue.Duration > 0 {
				position += " / " + formatSeconds(deck.Cue.Duration)
			}
		}
		rows = append(rows, []string{deck.Name, deck.Status, cueName, position, deck.Volume})
	}
	fmt.Fprintln(stdout, renderTable(
		[]string{"Deck", "State", "Cue", "Position", "Volume"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignLeft},
	))

	if missing := missingDeps(resp.Dependencies); len(missing) > 0 {
		fmt.Fprintf(stdout, "\nMissing binaries: %s (playback will fail)\n", strings.Join(missing, ", "))
	}
}

func colorizeOutput(w io.Writer, output string) string {
	if !useColor(w) {
		return output
	}
	if output == "live" {
		return text.FgGreen.Sprint(output)
	}
	return text.FgHiBlack.Sprint(output)
}

func missingDeps(statuses []ipc.DependencyStatus) []string {
	var missing []string
	for _, dep := range statuses {
		if !dep.Optional && !dep.Available {
			missing = append(missing, dep.Name)
		}
	}
	return missing
}

func formatSeconds(seconds float64) string {
	total := int(seconds)
	return fmt.Sprintf("%d:%02d", total/60, total%60)
}
