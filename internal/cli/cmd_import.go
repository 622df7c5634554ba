package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"siteplan/pkg/task"
	"siteplan/pkg/wbs"
)

// Document is the file layout read by import and written by export.
// Nesting replaces parent ids, so a document can be imported into any project.
type Document struct {
	Project    string `yaml:"project,omitempty" json:"project,omitempty"`
	Completion *int   `yaml:"completion,omitempty" json:"completion,omitempty"`
	Tasks      []Item `yaml:"tasks" json:"tasks"`
}

// Item is one task of a Document with its children.
type Item struct {
	ID        string      `yaml:"id,omitempty" json:"id,omitempty"`
	Name      string      `yaml:"name" json:"name"`
	Status    task.Status `yaml:"status,omitempty" json:"status,omitempty"`
	Milestone bool        `yaml:"milestone,omitempty" json:"milestone,omitempty"`
	Children  []Item      `yaml:"children,omitempty" json:"children,omitempty"`
}

func newImportCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "import <project> <file.yaml>",
		Short: "Bulk create tasks from a YAML document",
		Long: `Bulk create tasks from a YAML document. Nested entries are created level
by level, one batch per depth, so each batch only references parents that
already exist. Ids in the document are ignored. Entries with a blank name are
skipped together with their children.

Example document:

  tasks:
    - name: Foundation
      milestone: true
      children:
        - name: Excavation
          status: completed
        - name: Pouring`,
		Args: cobra.ExactArgs(2),
		RunE: withEnv(o, func(cmd *cobra.Command, e *env, args []string) error {
			data, err := os.ReadFile(args[1])
			if err != nil {
				return fmt.Errorf("read %s: %w", args[1], err)
			}
			var doc Document
			if err := yaml.Unmarshal(data, &doc); err != nil {
				return fmt.Errorf("parse %s: %w", args[1], err)
			}

			s, err := e.session(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			created, skipped, err := importItems(cmd.Context(), s, doc.Tasks)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Imported %d tasks into %s (%d%% complete)\n", created, args[0], s.Completion())
			if skipped > 0 {
				fmt.Fprintf(out, "Skipped %d entries without a name\n", skipped)
			}
			return nil
		}),
	}
}

// importItems creates items breadth-first. Batches already written stay in
// place when a later level fails.
func importItems(ctx context.Context, s *wbs.Session, items []Item) (created, skipped int, err error) {
	type queued struct {
		parentID string
		item     Item
	}
	level := make([]queued, len(items))
	for i, it := range items {
		level[i] = queued{item: it}
	}

	for depth := 0; len(level) > 0; depth++ {
		var (
			entries []wbs.Entry
			kept    []queued
		)
		for _, q := range level {
			if strings.TrimSpace(q.item.Name) == "" {
				skipped += countItems(q.item)
				continue
			}
			entries = append(entries, wbs.Entry{
				Name:      q.item.Name,
				Status:    task.NormalizeStatus(string(q.item.Status)),
				Milestone: q.item.Milestone,
				ParentID:  q.parentID,
			})
			kept = append(kept, q)
		}
		if len(entries) == 0 {
			break
		}

		tasks, err := s.BulkCreate(ctx, entries)
		if err != nil {
			return created, skipped, fmt.Errorf("import depth %d: %w", depth, err)
		}
		if len(tasks) != len(kept) {
			return created, skipped, fmt.Errorf("import depth %d: store created %d of %d tasks", depth, len(tasks), len(kept))
		}
		created += len(tasks)

		var next []queued
		for i, q := range kept {
			for _, c := range q.item.Children {
				next = append(next, queued{parentID: tasks[i].ID, item: c})
			}
		}
		level = next
	}
	return created, skipped, nil
}

func countItems(it Item) int {
	n := 1
	for _, c := range it.Children {
		n += countItems(c)
	}
	return n
}

func newExportCmd(o *options) *cobra.Command {
	var (
		jsonOut    bool
		outputFile string
	)
	cmd := &cobra.Command{
		Use:   "export <project>",
		Short: "Export the tree of a project as YAML or JSON",
		Long: `Export the tree of a project as a nested document. The YAML output can be
fed back to import, into the same or another project.`,
		Args: cobra.ExactArgs(1),
		RunE: withEnv(o, func(cmd *cobra.Command, e *env, args []string) error {
			s, err := e.session(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			snap := s.Snapshot()
			doc := toDocument(snap)

			var w io.Writer = cmd.OutOrStdout()
			if outputFile != "" {
				f, err := os.Create(outputFile)
				if err != nil {
					return fmt.Errorf("create %s: %w", outputFile, err)
				}
				defer f.Close()
				w = f
			}
			if jsonOut {
				return writeJSON(w, doc)
			}
			enc := yaml.NewEncoder(w)
			enc.SetIndent(2)
			if err := enc.Encode(doc); err != nil {
				return fmt.Errorf("encode yaml: %w", err)
			}
			return enc.Close()
		}),
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "output JSON instead of YAML")
	cmd.Flags().StringVarP(&outputFile, "output", "o", "", "write to file instead of stdout")
	return cmd
}

func toDocument(snap wbs.Snapshot) Document {
	completion := snap.Completion
	return Document{
		Project:    snap.ProjectID,
		Completion: &completion,
		Tasks:      toItems(snap.Tree),
	}
}

func toItems(nodes []*wbs.Node) []Item {
	items := make([]Item, len(nodes))
	for i, n := range nodes {
		items[i] = Item{
			ID:        n.ID,
			Name:      n.Name,
			Status:    n.Status,
			Milestone: n.Milestone,
			Children:  toItems(n.Children),
		}
	}
	return items
}
