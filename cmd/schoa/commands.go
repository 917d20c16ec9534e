package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"schoa/internal/core"
	"schoa/pkg"
)

// printMarkdown writes md to w, rendered for the terminal unless --raw is
// set or rendering fails.
func printMarkdown(cmd *cobra.Command, w io.Writer, md string) error {
	raw, _ := cmd.Flags().GetBool("raw")
	if !raw {
		r, err := glamour.NewTermRenderer(
			glamour.WithAutoStyle(),
			glamour.WithWordWrap(80),
		)
		if err == nil {
			if out, err := r.Render(md); err == nil {
				_, err = io.WriteString(w, out)
				return err
			}
		}
	}
	_, err := fmt.Fprintln(w, md)
	return err
}

// patientTable formats patients as a markdown table.
func patientTable(patients []pkg.Patient) string {
	var b strings.Builder
	b.WriteString("| ID | Name | Age | Condition | Status | Last visit |\n")
	b.WriteString("|---|---|---|---|---|---|\n")
	for _, p := range patients {
		fmt.Fprintf(&b, "| %s | %s | %d | %s | %s | %s |\n",
			p.ID, p.Name, p.Age, p.Condition, p.AdmissionStatus, p.LastVisit)
	}
	return b.String()
}

func patientsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "patients",
		Short: "List patient records",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), os.Stderr)
			if err != nil {
				return err
			}
			patients, err := a.store.Patients(cmd.Context())
			if err != nil {
				return err
			}
			return printMarkdown(cmd, cmd.OutOrStdout(), patientTable(patients))
		},
	}
}

func summarizeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "summarize [patient-id]",
		Short: "Draft an After Visit Summary and H&P note",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			all, _ := cmd.Flags().GetBool("all")
			if all == (len(args) == 1) {
				return fmt.Errorf("give either a patient id or --all")
			}
			a, err := newApp(cmd.Context(), os.Stderr)
			if err != nil {
				return err
			}
			if !all {
				p, err := a.store.Patient(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				res := a.summarizer.SummarizePatient(cmd.Context(), p)
				return printMarkdown(cmd, cmd.OutOrStdout(), res.Value)
			}

			limit, _ := cmd.Flags().GetInt("concurrency")
			if limit < 1 {
				limit = a.cfg.LLMConcurrency
			}
			patients, err := a.store.Patients(cmd.Context())
			if err != nil {
				return err
			}
			summaries, err := summarizeAll(cmd.Context(), a.summarizer, patients, limit)
			if err != nil {
				return err
			}
			for i, p := range patients {
				md := fmt.Sprintf("# %s (%s)\n\n%s", p.Name, p.ID, summaries[i])
				if err := printMarkdown(cmd, cmd.OutOrStdout(), md); err != nil {
					return err
				}
			}
			return nil
		},
	}
	cmd.Flags().Bool("all", false, "Summarize every patient")
	cmd.Flags().Int("concurrency", 0, "Parallel model calls for --all (default LLM_CONCURRENCY)")
	return cmd
}

// summarizeAll runs one summary per patient with at most limit calls in
// flight.  Results keep the patient order.
func summarizeAll(ctx context.Context, s *core.Summarizer, patients []pkg.Patient, limit int) ([]string, error) {
	out := make([]string, len(patients))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i, p := range patients {
		g.Go(func() error {
			out[i] = s.SummarizePatient(gctx, p).Value
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func analyzeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "analyze",
		Short: "Generate the financial executive brief",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), os.Stderr)
			if err != nil {
				return err
			}
			records, err := a.store.Financials(cmd.Context())
			if err != nil {
				return err
			}
			res := a.analyst.Analyze(cmd.Context(), records)
			return printMarkdown(cmd, cmd.OutOrStdout(), res.Value)
		},
	}
}

func searchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "search <query>",
		Short: "Find patients with a natural-language query",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := strings.TrimSpace(strings.Join(args, " "))
			if query == "" {
				return fmt.Errorf("query must not be empty")
			}
			a, err := newApp(cmd.Context(), os.Stderr)
			if err != nil {
				return err
			}
			patients, err := a.store.Patients(cmd.Context())
			if err != nil {
				return err
			}
			res := a.search.Search(cmd.Context(), query, patients)
			matched := core.FilterPatients(patients, res.Value.MatchedIDs)

			md := "_" + res.Value.Explanation + "_\n\n"
			if len(matched) == 0 {
				md += "No matching patients found.\n"
			} else {
				md += patientTable(matched)
			}
			return printMarkdown(cmd, cmd.OutOrStdout(), md)
		},
	}
}
