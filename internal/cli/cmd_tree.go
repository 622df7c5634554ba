package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"siteplan/pkg/task"
	"siteplan/pkg/wbs"
)

func newTreeCmd(o *options) *cobra.Command {
	var (
		jsonOut bool
		showIDs bool
	)
	cmd := &cobra.Command{
		Use:   "tree <project>",
		Short: "Show the work breakdown tree of a project",
		Args:  cobra.ExactArgs(1),
		RunE: withEnv(o, func(cmd *cobra.Command, e *env, args []string) error {
			s, err := e.session(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if jsonOut {
				return writeJSON(out, s.Snapshot())
			}
			tree := s.Tree()
			if len(tree) == 0 {
				fmt.Fprintf(out, "No tasks in project %s\n", args[0])
				return nil
			}
			renderTree(out, tree, stylesFor(out, o.noColor), showIDs)
			for _, w := range s.Warnings() {
				fmt.Fprintf(cmd.ErrOrStderr(), "warning: %s\n", w)
			}
			return nil
		}),
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "output the snapshot as JSON")
	cmd.Flags().BoolVar(&showIDs, "ids", true, "show task ids")
	return cmd
}

func newProgressCmd(o *options) *cobra.Command {
	var jsonOut bool
	cmd := &cobra.Command{
		Use:   "progress <project>",
		Short: "Show weighted completion and status counts",
		Args:  cobra.ExactArgs(1),
		RunE: withEnv(o, func(cmd *cobra.Command, e *env, args []string) error {
			s, err := e.session(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			snap := s.Snapshot()
			out := cmd.OutOrStdout()
			if jsonOut {
				return writeJSON(out, map[string]any{
					"projectId":    snap.ProjectID,
					"completion":   snap.Completion,
					"statusCounts": snap.StatusCounts,
				})
			}
			st := stylesFor(out, o.noColor)
			fmt.Fprintf(out, "%s %s\n", progressBar(snap.Completion, 20), st.Percent.Render(fmt.Sprintf("%d%%", snap.Completion)))
			for _, status := range task.Statuses {
				fmt.Fprintf(out, "  %-12s %d\n", st.Status[status].Render(string(status)), snap.StatusCounts[status])
			}
			return nil
		}),
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "output as JSON")
	return cmd
}

func newMilestonesCmd(o *options) *cobra.Command {
	var jsonOut bool
	cmd := &cobra.Command{
		Use:   "milestones <project>",
		Short: "List milestones in tree order",
		Args:  cobra.ExactArgs(1),
		RunE: withEnv(o, func(cmd *cobra.Command, e *env, args []string) error {
			s, err := e.session(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			nodes := s.Milestones()
			out := cmd.OutOrStdout()
			if jsonOut {
				records := make([]task.Task, len(nodes))
				for i, n := range nodes {
					records[i] = n.Task
				}
				return writeJSON(out, records)
			}
			if len(nodes) == 0 {
				fmt.Fprintln(out, "No milestones")
				return nil
			}
			st := stylesFor(out, o.noColor)
			for _, n := range nodes {
				fmt.Fprintf(out, "%s %s %s %s\n",
					st.Milestone.Render("◆"),
					st.Name.Render(n.Name),
					st.Status[n.Status].Render("["+string(n.Status)+"]"),
					st.Percent.Render(fmt.Sprintf("%d%%", wbs.NodeCompletion(n))))
			}
			return nil
		}),
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "output as JSON")
	return cmd
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
