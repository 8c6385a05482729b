package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"onepager/internal/app"
	"onepager/internal/scoring"
	"onepager/internal/templates"
	"onepager/internal/workflow"
)

func scoreCmd() *cobra.Command {
	var prompt string
	cmd := &cobra.Command{
		Use:   "score [file|-]",
		Short: "Score a one-pager",
		Long: `Grades markdown against the 100 point one-pager rubric.
Without an argument the current project's final document is scored.
--prompt prints an LLM prompt instead: 'score' asks for an independent grade,
'critique' and 'rewrite' build on the local result.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			switch prompt {
			case "", "score", "critique", "rewrite":
			default:
				return fmt.Errorf("--prompt must be score, critique or rewrite")
			}
			return withEnv(cmd.Context(), func(ctx context.Context, env *app.Env) error {
				var text string
				if len(args) == 1 {
					data, err := readInput(args[0])
					if err != nil {
						return err
					}
					text = string(data)
				} else {
					id, err := app.ResolveProject(ctx, env.Workspace, viper.GetString("project"), env.Engine.Repo)
					if err != nil {
						return err
					}
					p, err := env.Engine.GetProject(ctx, id)
					if err != nil {
						return err
					}
					text = workflow.FinalMarkdown(&p)
				}
				res := env.Engine.ScoreText(text)
				if prompt != "" {
					out := scoring.ScoringPrompt(text)
					switch prompt {
					case "critique":
						out = scoring.CritiquePrompt(text, res)
					case "rewrite":
						out = scoring.RewritePrompt(text, res)
					}
					if viper.GetBool("json") {
						return printJSON(map[string]any{"kind": prompt, "prompt": out})
					}
					fmt.Println(out)
					return nil
				}
				if viper.GetBool("json") {
					return printJSON(res)
				}
				printScore(res)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&prompt, "prompt", "", "print an LLM prompt instead (score, critique, rewrite)")
	return cmd
}

func printScore(res scoring.Result) {
	tw := newTable()
	tw.AppendHeader(table.Row{"Dimension", "Score", "Strengths", "Issues"})
	dims := []struct {
		name string
		d    scoring.Dimension
	}{
		{"Problem Clarity", res.ProblemClarity},
		{"Solution Quality", res.Solution},
		{"Scope Discipline", res.Scope},
		{"Completeness", res.Completeness},
	}
	for _, row := range dims {
		tw.AppendRow(table.Row{
			row.name,
			fmt.Sprintf("%d/%d", row.d.Score, row.d.MaxScore),
			strings.Join(row.d.Strengths, "\n"),
			strings.Join(row.d.Issues, "\n"),
		})
	}
	tw.AppendFooter(table.Row{"Total", fmt.Sprintf("%d/100", res.Total), res.Label, ""})
	tw.Render()
	fmt.Println(paint(scoreStyle(res.Color), fmt.Sprintf("%d/100 %s", res.Total, res.Label)))
	for _, note := range res.Notes {
		fmt.Println(paint(styleDim, "note: "+note))
	}
}

func exportCmd() *cobra.Command {
	var out string
	var toStdout bool
	cmd := &cobra.Command{
		Use:   "export [id]",
		Short: "Export the final document as markdown",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withProject(cmd.Context(), args, func(ctx context.Context, env *app.Env, id string) error {
				exp, err := env.Engine.Export(ctx, id)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(exp)
				}
				if toStdout {
					fmt.Print(exp.Markdown)
					return nil
				}
				path := out
				if path == "" {
					path = filepath.Join(env.Workspace, exp.Filename)
				}
				if err := os.WriteFile(path, []byte(exp.Markdown), 0o644); err != nil {
					return err
				}
				fmt.Printf("Wrote %s\n", path)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "output path (default <workspace>/<name>-one-pager.md)")
	cmd.Flags().BoolVar(&toStdout, "stdout", false, "print the markdown instead of writing a file")
	return cmd
}

func startersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "starters",
		Short: "List form starters",
		Long:  "Starters prefill the form for common one-pager kinds. Use one with 'onepager project create --starter <id>'.",
		RunE: func(cmd *cobra.Command, args []string) error {
			list, err := templates.Starters()
			if err != nil {
				return err
			}
			if viper.GetBool("json") {
				return printJSON(list)
			}
			tw := newTable()
			tw.AppendHeader(table.Row{"ID", "Name", "Description"})
			for _, s := range list {
				tw.AppendRow(table.Row{s.ID, s.Icon + " " + s.Name, s.Description})
			}
			tw.Render()
			return nil
		},
	}
}
