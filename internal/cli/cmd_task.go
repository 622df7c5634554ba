package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	wbserr "siteplan/internal/errors"
	"siteplan/pkg/task"
)

func newTaskCmd(o *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "task",
		Short: "Create, change and delete tasks",
	}
	cmd.AddCommand(newTaskAddCmd(o))
	cmd.AddCommand(newTaskUpdateCmd(o))
	cmd.AddCommand(newTaskDeleteCmd(o))
	cmd.AddCommand(newTaskMilestoneCmd(o))
	cmd.AddCommand(newTaskStatusCmd(o))
	return cmd
}

func newTaskAddCmd(o *options) *cobra.Command {
	var (
		parent    string
		status    string
		milestone bool
	)
	cmd := &cobra.Command{
		Use:   "add <project> <name>",
		Short: "Add a task, under --parent or at the root",
		Args:  cobra.ExactArgs(2),
		RunE: withEnv(o, func(cmd *cobra.Command, e *env, args []string) error {
			s, err := e.session(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			t, err := s.Create(cmd.Context(), parent, args[1], task.NormalizeStatus(status), milestone)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created %s %q (%d%% complete)\n", t.ID, t.Name, s.Completion())
			return nil
		}),
	}
	cmd.Flags().StringVar(&parent, "parent", "", "parent task id")
	cmd.Flags().StringVar(&status, "status", "", "initial status (default pending)")
	cmd.Flags().BoolVar(&milestone, "milestone", false, "mark as milestone")
	return cmd
}

func newTaskUpdateCmd(o *options) *cobra.Command {
	var (
		name      string
		status    string
		milestone bool
	)
	cmd := &cobra.Command{
		Use:   "update <project> <id>",
		Short: "Change name, status or milestone flag of a task",
		Long: `Change name, status or milestone flag of a task. Fields whose flag is not
given keep their current value. The parent of a task cannot be changed.`,
		Args: cobra.ExactArgs(2),
		RunE: withEnv(o, func(cmd *cobra.Command, e *env, args []string) error {
			s, err := e.session(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			id := args[1]
			current, ok := s.Node(id)
			if !ok {
				return wbserr.NotFound(id)
			}
			if cmd.Flags().Changed("name") {
				current.Name = name
			}
			if cmd.Flags().Changed("status") {
				current.Status = task.NormalizeStatus(status)
			}
			if cmd.Flags().Changed("milestone") {
				current.Milestone = milestone
			}
			t, err := s.Update(cmd.Context(), id, current.Name, current.Status, current.Milestone)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Updated %s %q [%s]\n", t.ID, t.Name, t.Status)
			return nil
		}),
	}
	cmd.Flags().StringVar(&name, "name", "", "new name")
	cmd.Flags().StringVar(&status, "status", "", "new status")
	cmd.Flags().BoolVar(&milestone, "milestone", false, "milestone flag")
	return cmd
}

func newTaskDeleteCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <project> <id>",
		Short: "Delete a task and its whole subtree",
		Args:  cobra.ExactArgs(2),
		RunE: withEnv(o, func(cmd *cobra.Command, e *env, args []string) error {
			s, err := e.session(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if err := s.Delete(cmd.Context(), args[1]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", args[1])
			return nil
		}),
	}
}

func newTaskMilestoneCmd(o *options) *cobra.Command {
	var name string
	cmd := &cobra.Command{
		Use:   "milestone <project> <id>",
		Short: "Toggle the milestone flag of a task",
		Args:  cobra.ExactArgs(2),
		RunE: withEnv(o, func(cmd *cobra.Command, e *env, args []string) error {
			s, err := e.session(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			t, err := s.ToggleMilestone(cmd.Context(), args[1], name)
			if err != nil {
				return err
			}
			state := "no longer a milestone"
			if t.Milestone {
				state = "now a milestone"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %q is %s\n", t.ID, t.Name, state)
			return nil
		}),
	}
	cmd.Flags().StringVar(&name, "name", "", "also rename the task")
	return cmd
}

func newTaskStatusCmd(o *options) *cobra.Command {
	var name string
	cmd := &cobra.Command{
		Use:   "status <project> <id> <status>",
		Short: "Set the status of a task",
		Long:  `Set the status of a task. Status is one of pending, in_progress, completed, delayed.`,
		Args:  cobra.ExactArgs(3),
		RunE: withEnv(o, func(cmd *cobra.Command, e *env, args []string) error {
			s, err := e.session(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			t, err := s.SetStatus(cmd.Context(), args[1], task.NormalizeStatus(args[2]), name)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %q is %s (%d%% complete)\n", t.ID, t.Name, t.Status, s.Completion())
			return nil
		}),
	}
	cmd.Flags().StringVar(&name, "name", "", "also rename the task")
	return cmd
}
