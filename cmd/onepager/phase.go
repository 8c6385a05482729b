package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"onepager/internal/app"
	"onepager/internal/domain"
	"onepager/internal/scoring"
	"onepager/internal/workflow"
)

func phaseCmd() *cobra.Command {
	ph := &cobra.Command{
		Use:   "phase",
		Short: "Drive the three-phase workflow",
		Long: `Each phase is a round trip with an external AI:
  onepager phase prompt    # copy the prompt into the chat
  onepager phase respond   # paste the answer back (reads stdin)
  onepager phase advance   # validate and move on`,
	}
	ph.AddCommand(phaseListCmd())
	ph.AddCommand(phaseShowCmd())
	ph.AddCommand(phasePromptCmd())
	ph.AddCommand(phaseRespondCmd())
	ph.AddCommand(phaseValidateCmd())
	ph.AddCommand(phaseAdvanceCmd())
	ph.AddCommand(phaseBackCmd())
	return ph
}

func phaseListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the workflow phases",
		RunE: func(cmd *cobra.Command, args []string) error {
			phases := workflow.AllPhases()
			if viper.GetBool("json") {
				return printJSON(phases)
			}
			tw := newTable()
			tw.AppendHeader(table.Row{"#", "Name", "AI", "Description"})
			for _, m := range phases {
				tw.AppendRow(table.Row{m.Number, m.Icon + " " + m.Name, m.AI, m.Description})
			}
			tw.Render()
			return nil
		},
	}
}

func phaseShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show [id]",
		Short: "Show the active phase",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withProject(cmd.Context(), args, func(ctx context.Context, env *app.Env, id string) error {
				p, err := env.Engine.GetProject(ctx, id)
				if err != nil {
					return err
				}
				v := workflow.ValidatePhaseCompletion(&p)
				n := workflow.PhaseNumber(&p)
				rec := workflow.CurrentPhase(&p)
				if viper.GetBool("json") {
					meta, _ := workflow.PhaseMetadata(n)
					return printJSON(map[string]any{
						"phase":      n,
						"metadata":   meta,
						"record":     rec,
						"validation": v,
						"progress":   workflow.Progress(&p),
						"complete":   workflow.IsComplete(&p),
					})
				}
				fmt.Println(header(p.Title))
				fmt.Printf("%s  %d%%\n", progressBar(p), workflow.Progress(&p))
				if workflow.IsComplete(&p) {
					fmt.Println(paint(styleOK, "All phases complete. Run 'onepager export' to save the document."))
					return nil
				}
				meta, _ := workflow.PhaseMetadata(n)
				fmt.Printf("Phase %d: %s %s (%s)\n", meta.Number, meta.Icon, meta.Name, meta.AI)
				fmt.Println(paint(styleDim, meta.Description))
				fmt.Printf("Prompt:   %s\n", presence(rec.Prompt))
				fmt.Printf("Response: %s\n", presence(rec.Response))
				if v.Valid {
					fmt.Println(paint(styleOK, "Ready to advance"))
				} else {
					fmt.Println(paint(styleWarn, v.Error))
				}
				return nil
			})
		},
	}
	return cmd
}

func presence(s string) string {
	if strings.TrimSpace(s) == "" {
		return paint(styleDim, "(none)")
	}
	return fmt.Sprintf("%d chars", len(s))
}

func phasePromptCmd() *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "prompt [id]",
		Short: "Generate the prompt for the active phase",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withProject(cmd.Context(), args, func(ctx context.Context, env *app.Env, id string) error {
				_, prompt, err := env.Engine.GeneratePrompt(ctx, id, actorID())
				if err != nil {
					return err
				}
				meta, _ := workflow.PhaseMetadata(prompt.Phase)
				if viper.GetBool("json") {
					return printJSON(map[string]any{
						"phase":    prompt.Phase,
						"prompt":   prompt.Text,
						"dropped":  prompt.Dropped,
						"chat_url": meta.ChatURL,
					})
				}
				if out != "" {
					if err := os.WriteFile(out, []byte(prompt.Text), 0o644); err != nil {
						return err
					}
					fmt.Fprintf(os.Stderr, "Wrote phase %d prompt to %s\n", prompt.Phase, out)
				} else {
					fmt.Println(prompt.Text)
				}
				fmt.Fprintln(os.Stderr, paint(styleDim, fmt.Sprintf("Paste it into %s at %s, then run 'onepager phase respond'.", meta.AI, meta.ChatURL)))
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "write the prompt to a file instead of stdout")
	return cmd
}

func phaseRespondCmd() *cobra.Command {
	var file string
	var clean bool
	cmd := &cobra.Command{
		Use:   "respond [id]",
		Short: "Save the AI response for the active phase",
		Long:  "Reads the response from --file, or from stdin when --file is omitted or '-'.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if file == "" {
				file = "-"
				if stdinIsTerminal() {
					fmt.Fprintln(os.Stderr, "Paste the response, then press Ctrl-D:")
				}
			}
			data, err := readInput(file)
			if err != nil {
				return err
			}
			response := string(data)
			if clean {
				response = scoring.CleanAIResponse(response)
			}
			return withProject(cmd.Context(), args, func(ctx context.Context, env *app.Env, id string) error {
				p, err := env.Engine.SaveResponse(ctx, id, response, actorID())
				if err != nil {
					return err
				}
				v := workflow.ValidatePhaseCompletion(&p)
				if viper.GetBool("json") {
					return printJSON(map[string]any{"phase": p.Phase, "validation": v})
				}
				fmt.Printf("Saved phase %d response (%d chars)\n", p.Phase, len(response))
				if !v.Valid {
					fmt.Fprintln(os.Stderr, paint(styleWarn, v.Error))
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "read the response from a file")
	cmd.Flags().BoolVar(&clean, "clean", false, "strip chat preamble and code fences before saving")
	return cmd
}

func phaseValidateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate [id]",
		Short: "Check whether the active phase can advance",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withProject(cmd.Context(), args, func(ctx context.Context, env *app.Env, id string) error {
				v, err := env.Engine.Validate(ctx, id)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					if err := printJSON(v); err != nil {
						return err
					}
				} else if v.Valid {
					fmt.Println(paint(styleOK, "OK"))
				}
				if !v.Valid {
					return fmt.Errorf("%s", v.Error)
				}
				return nil
			})
		},
	}
	return cmd
}

func phaseAdvanceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "advance [id]",
		Short: "Complete the active phase and move to the next",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withProject(cmd.Context(), args, func(ctx context.Context, env *app.Env, id string) error {
				p, advanced, err := env.Engine.Advance(ctx, id, actorID())
				if err != nil {
					return err
				}
				if !advanced && !viper.GetBool("json") {
					fmt.Println(paint(styleOK, "Already complete. Run 'onepager export' to save the document."))
					return nil
				}
				return printPhaseMove(p, advanced)
			})
		},
	}
	return cmd
}

func phaseBackCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "back [id]",
		Short: "Return to the previous phase",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withProject(cmd.Context(), args, func(ctx context.Context, env *app.Env, id string) error {
				p, err := env.Engine.Back(ctx, id, actorID())
				if err != nil {
					return err
				}
				return printPhaseMove(p, true)
			})
		},
	}
	return cmd
}

func printPhaseMove(p domain.Project, moved bool) error {
	if viper.GetBool("json") {
		return printJSON(map[string]any{
			"moved":    moved,
			"phase":    p.Phase,
			"progress": workflow.Progress(&p),
			"complete": workflow.IsComplete(&p),
		})
	}
	fmt.Printf("%s  now at %s\n", progressBar(p), phaseLabel(p.Phase))
	return nil
}
