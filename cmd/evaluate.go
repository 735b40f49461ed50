package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/proposal-eval/internal/evalerr"
	"github.com/sells-group/proposal-eval/internal/export"
	"github.com/sells-group/proposal-eval/internal/model"
	"github.com/sells-group/proposal-eval/internal/resilience"
)

var (
	evalProject   string
	evalProposals string
	evalForce     bool
	evalFormat    string
	evalOutput    string
	evalRetries   int
	evalSeed      string
)

var evaluateCmd = &cobra.Command{
	Use:   "evaluate",
	Short: "Evaluate the proposals of a project",
	Long: `Evaluate scores and ranks the evaluable proposals of a project, asks the
configured provider for the narrative and stores the merged result.

A batch that was already evaluated is answered from the store unless --force
is given.

Examples:
  # Evaluate every proposal of a project
  evaluate --project proj-1

  # Compare two proposals and export a spreadsheet
  evaluate --project proj-1 --proposals p1,p2 --format xlsx --output ranking.xlsx

  # Retry timeouts and transient provider errors up to 3 attempts
  evaluate --project proj-1 --retries 3`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if !export.Valid(evalFormat) {
			return eris.Errorf("evaluate: --format must be one of %s (got %q)", strings.Join(export.Formats(), ", "), evalFormat)
		}

		env, err := initEvaluator(ctx, "evaluate")
		if err != nil {
			return err
		}
		defer env.Close()

		if evalSeed != "" {
			if err := seedFile(ctx, env.Store, evalSeed); err != nil {
				return err
			}
		}

		req := model.EvaluationRequest{
			ProjectID:       evalProject,
			ProposalIDs:     splitAndTrim(evalProposals),
			ForceReevaluate: evalForce,
		}

		resp, err := runEvaluation(ctx, env.Evaluator, req, resilience.PolicyFrom(cfg.Retry, evalRetries))
		if err != nil {
			fmt.Fprintf(os.Stderr, "evaluation failed [%s]: %v\n", evalerr.CodeOf(err), err)
			return reportedError{err}
		}

		return writeOutput(resp, evalFormat, evalOutput)
	},
}

// evaluator is the part of the orchestrator the CLI and HTTP surface call.
type evaluator interface {
	Evaluate(ctx context.Context, req model.EvaluationRequest) (*model.EvaluationResponse, error)
}

// runEvaluation evaluates req, retrying retryable failures per policy.
func runEvaluation(ctx context.Context, ev evaluator, req model.EvaluationRequest, policy resilience.Policy) (*model.EvaluationResponse, error) {
	policy.OnRetry = resilience.RetryLogger("evaluation", zap.String("project_id", req.ProjectID))
	return resilience.Do(ctx, policy, func(ctx context.Context) (*model.EvaluationResponse, error) {
		return ev.Evaluate(ctx, req)
	})
}

func writeOutput(resp *model.EvaluationResponse, format, outputPath string) error {
	var w io.Writer = os.Stdout
	if outputPath != "" {
		f, err := os.Create(outputPath)
		if err != nil {
			return eris.Wrapf(err, "evaluate: create output file %s", outputPath)
		}
		defer f.Close() //nolint:errcheck
		w = f
	} else if format == export.FormatXLSX {
		return eris.New("evaluate: --format xlsx requires --output")
	}
	return export.Write(w, format, resp)
}

func splitAndTrim(s string) []string {
	parts := strings.Split(s, ",")
	var result []string
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}

func init() {
	f := evaluateCmd.Flags()
	f.StringVar(&evalProject, "project", "", "project ID (required)")
	f.StringVar(&evalProposals, "proposals", "", "comma-separated proposal IDs (default: all evaluable proposals)")
	f.BoolVar(&evalForce, "force", false, "re-evaluate even when stored results exist")
	f.StringVar(&evalFormat, "format", export.FormatTable, "output format: table, json, csv or xlsx")
	f.StringVar(&evalOutput, "output", "", "write output to this file instead of stdout")
	f.IntVar(&evalRetries, "retries", 0, "total attempts for retryable failures (default from config)")
	f.StringVar(&evalSeed, "seed", "", "load a JSON dataset into the store before evaluating")
	_ = evaluateCmd.MarkFlagRequired("project")
	rootCmd.AddCommand(evaluateCmd)
}
