package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"onepager/internal/app"
	"onepager/internal/domain"
	"onepager/internal/engine"
	"onepager/internal/workflow"
)

func projectCmd() *cobra.Command {
	prj := &cobra.Command{Use: "project", Short: "Manage projects"}
	prj.AddCommand(projectListCmd())
	prj.AddCommand(projectCreateCmd())
	prj.AddCommand(projectShowCmd())
	prj.AddCommand(projectUpdateCmd())
	prj.AddCommand(projectEditCmd())
	prj.AddCommand(projectDeleteCmd())
	prj.AddCommand(projectUseCmd())
	prj.AddCommand(projectImportCmd())
	prj.AddCommand(projectBackupCmd())
	return prj
}

// formFlag binds one form field to a CLI flag.
type formFlag struct {
	name  string
	usage string
	field func(*domain.FormPatch) **string
}

var formFlags = []formFlag{
	{"project-name", "project name", func(p *domain.FormPatch) **string { return &p.ProjectName }},
	{"problem-statement", "problem statement", func(p *domain.FormPatch) **string { return &p.ProblemStatement }},
	{"cost-of-doing-nothing", "cost of doing nothing", func(p *domain.FormPatch) **string { return &p.CostOfDoingNothing }},
	{"proposed-solution", "proposed solution", func(p *domain.FormPatch) **string { return &p.ProposedSolution }},
	{"key-goals", "key goals", func(p *domain.FormPatch) **string { return &p.KeyGoals }},
	{"in-scope", "in-scope items", func(p *domain.FormPatch) **string { return &p.ScopeInScope }},
	{"out-of-scope", "out-of-scope items", func(p *domain.FormPatch) **string { return &p.ScopeOutOfScope }},
	{"success-metrics", "success metrics", func(p *domain.FormPatch) **string { return &p.SuccessMetrics }},
	{"stakeholders", "key stakeholders", func(p *domain.FormPatch) **string { return &p.KeyStakeholders }},
	{"timeline", "timeline estimate", func(p *domain.FormPatch) **string { return &p.TimelineEstimate }},
	{"form-context", "additional context for the form", func(p *domain.FormPatch) **string { return &p.Context }},
}

func addFormFlags(fs *pflag.FlagSet) {
	for _, f := range formFlags {
		fs.String(f.name, "", f.usage)
	}
}

// formPatchFromFlags collects only the form flags the user set.
func formPatchFromFlags(fs *pflag.FlagSet) domain.FormPatch {
	var patch domain.FormPatch
	for _, f := range formFlags {
		if !fs.Changed(f.name) {
			continue
		}
		v, _ := fs.GetString(f.name)
		*f.field(&patch) = &v
	}
	return patch
}

func projectListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List projects",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnv(cmd.Context(), func(ctx context.Context, env *app.Env) error {
				items, err := env.Engine.ListProjects(ctx)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					if items == nil {
						items = []domain.Project{}
					}
					return printJSON(items)
				}
				tw := newTable()
				tw.AppendHeader(table.Row{"ID", "Title", "Phase", "Progress", "Updated"})
				for _, p := range items {
					tw.AppendRow(table.Row{p.ID, p.Title, phaseLabel(p.Phase), progressBar(p), p.UpdatedAt})
				}
				tw.Render()
				return nil
			})
		},
	}
	return cmd
}

func projectCreateCmd() *cobra.Command {
	var title, problems, projectContext, starter string
	var use bool
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create project",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnv(cmd.Context(), func(ctx context.Context, env *app.Env) error {
				p, err := env.Engine.CreateProject(ctx, engine.CreateOptions{
					Title:    title,
					Problems: problems,
					Context:  projectContext,
					Starter:  starter,
					Form:     formPatchFromFlags(cmd.Flags()),
					ActorID:  actorID(),
				})
				if err != nil {
					return err
				}
				if use {
					if err := app.UseProject(ctx, env.Workspace, p.ID, env.Engine.Repo); err != nil {
						return err
					}
				}
				return printProject(p)
			})
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "project title")
	cmd.Flags().StringVar(&problems, "problems", "", "problem statement")
	cmd.Flags().StringVar(&projectContext, "context", "", "project context")
	cmd.Flags().StringVar(&starter, "starter", "", "prefill the form from a starter (see 'onepager starters')")
	cmd.Flags().BoolVar(&use, "use", false, "make the new project the workspace default")
	addFormFlags(cmd.Flags())
	return cmd
}

func projectShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show [id]",
		Short: "Show a project",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withProject(cmd.Context(), args, func(ctx context.Context, env *app.Env, id string) error {
				p, err := env.Engine.GetProject(ctx, id)
				if err != nil {
					return err
				}
				return printProject(p)
			})
		},
	}
	return cmd
}

func projectUpdateCmd() *cobra.Command {
	var title, problems, projectContext string
	cmd := &cobra.Command{
		Use:   "update [id]",
		Short: "Update project fields and form answers",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withProject(cmd.Context(), args, func(ctx context.Context, env *app.Env, id string) error {
				opts := engine.UpdateOptions{ID: id, ActorID: actorID()}
				if cmd.Flags().Changed("title") {
					opts.Title = &title
				}
				if cmd.Flags().Changed("problems") {
					opts.Problems = &problems
				}
				if cmd.Flags().Changed("context") {
					opts.Context = &projectContext
				}
				p, err := env.Engine.GetProject(ctx, id)
				if err != nil {
					return err
				}
				if opts.Title != nil || opts.Problems != nil || opts.Context != nil {
					if p, err = env.Engine.UpdateProject(ctx, opts); err != nil {
						return err
					}
				}
				if patch := formPatchFromFlags(cmd.Flags()); !patch.Empty() {
					if p, err = env.Engine.UpdateForm(ctx, id, patch, actorID()); err != nil {
						return err
					}
				}
				return printProject(p)
			})
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "project title")
	cmd.Flags().StringVar(&problems, "problems", "", "problem statement")
	cmd.Flags().StringVar(&projectContext, "context", "", "project context")
	addFormFlags(cmd.Flags())
	return cmd
}

func projectEditCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "edit [id]",
		Short: "Edit the form interactively",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !stdinIsTerminal() {
				return fmt.Errorf("edit needs an interactive terminal; use 'onepager project update' with flags instead")
			}
			return withProject(cmd.Context(), args, func(ctx context.Context, env *app.Env, id string) error {
				p, err := env.Engine.GetProject(ctx, id)
				if err != nil {
					return err
				}
				form := p.FormData
				if err := formEditor(&form).RunWithContext(ctx); err != nil {
					return err
				}
				p, err = env.Engine.UpdateForm(ctx, id, diffForm(p.FormData, form), actorID())
				if err != nil {
					return err
				}
				return printProject(p)
			})
		},
	}
	return cmd
}

func formEditor(f *domain.FormData) *huh.Form {
	required := func(label string) func(string) error {
		return func(s string) error {
			if strings.TrimSpace(s) == "" {
				return fmt.Errorf("%s is required", label)
			}
			return nil
		}
	}
	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().Title("Project Name").Value(&f.ProjectName).Validate(required("project name")),
			huh.NewText().Title("Problem Statement").Value(&f.ProblemStatement).Validate(required("problem statement")),
			huh.NewText().Title("Cost of Doing Nothing").Value(&f.CostOfDoingNothing),
			huh.NewText().Title("Proposed Solution").Value(&f.ProposedSolution).Validate(required("proposed solution")),
		),
		huh.NewGroup(
			huh.NewText().Title("Key Goals").Value(&f.KeyGoals),
			huh.NewText().Title("In Scope").Value(&f.ScopeInScope),
			huh.NewText().Title("Out of Scope").Value(&f.ScopeOutOfScope),
			huh.NewText().Title("Success Metrics").Value(&f.SuccessMetrics),
		),
		huh.NewGroup(
			huh.NewText().Title("Key Stakeholders").Value(&f.KeyStakeholders),
			huh.NewInput().Title("Timeline Estimate").Value(&f.TimelineEstimate),
			huh.NewText().Title("Additional Context").Value(&f.Context),
		),
	).WithTheme(huh.ThemeCharm())
}

// diffForm returns a patch holding the fields that differ between before and after.
func diffForm(before, after domain.FormData) domain.FormPatch {
	var patch domain.FormPatch
	pick := func(dst **string, a, b string) {
		if a != b {
			v := b
			*dst = &v
		}
	}
	pick(&patch.ProjectName, before.ProjectName, after.ProjectName)
	pick(&patch.ProblemStatement, before.ProblemStatement, after.ProblemStatement)
	pick(&patch.CostOfDoingNothing, before.CostOfDoingNothing, after.CostOfDoingNothing)
	pick(&patch.ProposedSolution, before.ProposedSolution, after.ProposedSolution)
	pick(&patch.KeyGoals, before.KeyGoals, after.KeyGoals)
	pick(&patch.ScopeInScope, before.ScopeInScope, after.ScopeInScope)
	pick(&patch.ScopeOutOfScope, before.ScopeOutOfScope, after.ScopeOutOfScope)
	pick(&patch.SuccessMetrics, before.SuccessMetrics, after.SuccessMetrics)
	pick(&patch.KeyStakeholders, before.KeyStakeholders, after.KeyStakeholders)
	pick(&patch.TimelineEstimate, before.TimelineEstimate, after.TimelineEstimate)
	pick(&patch.Context, before.Context, after.Context)
	return patch
}

func projectDeleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete [id]",
		Short: "Delete a project",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withProject(cmd.Context(), args, func(ctx context.Context, env *app.Env, id string) error {
				if err := env.Engine.DeleteProject(ctx, id, actorID()); err != nil {
					return err
				}
				fmt.Printf("Deleted %s\n", id)
				return nil
			})
		},
	}
	return cmd
}

func projectUseCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "use <id>",
		Short: "Set current project for this workspace",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnv(cmd.Context(), func(ctx context.Context, env *app.Env) error {
				projectID := strings.TrimSpace(args[0])
				if err := app.UseProject(ctx, env.Workspace, projectID, env.Engine.Repo); err != nil {
					return err
				}
				fmt.Printf("Set %s=%s in %s/.env\n", app.DefaultProjectKey, projectID, env.Workspace)
				return nil
			})
		},
	}
	return cmd
}

func projectImportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import <file|->",
		Short: "Import projects from a backup file",
		Long:  "Accepts a backup object, a bare list of projects, or a single project. Older exports with list-shaped phases, name/description fields and epoch timestamps are understood.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := readInput(args[0])
			if err != nil {
				return err
			}
			backup, err := decodeBackup(data)
			if err != nil {
				return err
			}
			return withEnv(cmd.Context(), func(ctx context.Context, env *app.Env) error {
				res, err := env.Engine.Import(ctx, backup, actorID())
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(res)
				}
				fmt.Printf("Imported %d project(s), skipped %d existing\n", len(res.Imported), len(res.Skipped))
				return nil
			})
		},
	}
	return cmd
}

func decodeBackup(data []byte) (domain.ProjectBackup, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return domain.ProjectBackup{}, fmt.Errorf("import file is empty")
	}
	if trimmed[0] == '[' {
		var projects []domain.Project
		if err := json.Unmarshal(trimmed, &projects); err != nil {
			return domain.ProjectBackup{}, fmt.Errorf("decode project list: %w", err)
		}
		return domain.ProjectBackup{Projects: projects, ProjectCount: len(projects)}, nil
	}
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &probe); err != nil {
		return domain.ProjectBackup{}, fmt.Errorf("decode backup: %w", err)
	}
	if _, ok := probe["projects"]; ok {
		var backup domain.ProjectBackup
		if err := json.Unmarshal(trimmed, &backup); err != nil {
			return domain.ProjectBackup{}, fmt.Errorf("decode backup: %w", err)
		}
		return backup, nil
	}
	var p domain.Project
	if err := json.Unmarshal(trimmed, &p); err != nil {
		return domain.ProjectBackup{}, fmt.Errorf("decode project: %w", err)
	}
	return domain.ProjectBackup{Projects: []domain.Project{p}, ProjectCount: 1}, nil
}

func projectBackupCmd() *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Write every project to a JSON backup",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnv(cmd.Context(), func(ctx context.Context, env *app.Env) error {
				backup, err := env.Engine.Backup(ctx)
				if err != nil {
					return err
				}
				data, err := json.MarshalIndent(backup, "", "  ")
				if err != nil {
					return err
				}
				if out == "" || out == "-" {
					_, err = os.Stdout.Write(append(data, '\n'))
					return err
				}
				if err := os.WriteFile(out, data, 0o644); err != nil {
					return err
				}
				fmt.Fprintf(os.Stderr, "Wrote %d project(s) to %s\n", backup.ProjectCount, out)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "output file (default stdout)")
	return cmd
}

func printProject(p domain.Project) error {
	if viper.GetBool("json") {
		return printJSON(p)
	}
	fmt.Println(header(p.Title))
	tw := newTable()
	tw.AppendRows([]table.Row{
		{"ID", p.ID},
		{"Phase", phaseLabel(p.Phase)},
		{"Progress", fmt.Sprintf("%s %d%%", progressBar(p), workflow.Progress(&p))},
		{"Created", p.CreatedAt},
		{"Updated", p.UpdatedAt},
	})
	tw.AppendSeparator()
	f := p.FormData
	tw.AppendRows([]table.Row{
		{"Project Name", f.ProjectName},
		{"Problem Statement", f.ProblemStatement},
		{"Cost of Doing Nothing", f.CostOfDoingNothing},
		{"Proposed Solution", f.ProposedSolution},
		{"Key Goals", f.KeyGoals},
		{"In Scope", f.ScopeInScope},
		{"Out of Scope", f.ScopeOutOfScope},
		{"Success Metrics", f.SuccessMetrics},
		{"Stakeholders", f.KeyStakeholders},
		{"Timeline", f.TimelineEstimate},
		{"Context", f.Context},
	})
	tw.Render()
	return nil
}

func phaseLabel(n int) string {
	if meta, ok := workflow.PhaseMetadata(domain.NormalizePhase(n)); ok {
		return fmt.Sprintf("%d %s (%s)", meta.Number, meta.Name, meta.AI)
	}
	return "complete"
}

// readInput reads a file, or stdin when name is "-".
func readInput(name string) ([]byte, error) {
	if name == "-" {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(name)
}
