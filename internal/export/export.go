// Package export renders an evaluation response for humans and
// spreadsheets.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/proposal-eval/internal/model"
)

// Output formats.
const (
	FormatTable = "table"
	FormatJSON  = "json"
	FormatCSV   = "csv"
	FormatXLSX  = "xlsx"
)

// Formats lists the supported output formats.
func Formats() []string {
	return []string{FormatTable, FormatJSON, FormatCSV, FormatXLSX}
}

// Valid reports whether format is supported.
func Valid(format string) bool {
	for _, f := range Formats() {
		if f == format {
			return true
		}
	}
	return false
}

var header = []string{
	"rank", "proposal_id", "vendor", "final_score", "recommendation",
	"data_completeness", "knockout", "knockout_reason",
}

// Write renders resp to w in the given format.
func Write(w io.Writer, format string, resp *model.EvaluationResponse) error {
	if resp == nil {
		return eris.New("export: nil response")
	}
	switch format {
	case FormatTable:
		return writeTable(w, resp)
	case FormatJSON:
		return writeJSON(w, resp)
	case FormatCSV:
		return writeCSV(w, resp)
	case FormatXLSX:
		return writeXLSX(w, resp)
	default:
		return eris.Errorf("export: unsupported format %q", format)
	}
}

func writeJSON(w io.Writer, resp *model.EvaluationResponse) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return eris.Wrap(enc.Encode(resp), "export: encode json")
}

func writeCSV(w io.Writer, resp *model.EvaluationResponse) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return eris.Wrap(err, "export: write CSV header")
	}
	for _, rp := range resp.RankedProposals {
		if err := cw.Write(row(rp)); err != nil {
			return eris.Wrap(err, "export: write CSV row")
		}
	}
	cw.Flush()
	return eris.Wrap(cw.Error(), "export: flush CSV")
}

func writeTable(w io.Writer, resp *model.EvaluationResponse) error {
	s := resp.BatchSummary
	_, _ = fmt.Fprintf(w, "Mode: %s  Proposals: %d  Project type: %s", s.EvaluationMode, s.TotalProposals, s.ProjectTypeDetected)
	if s.PriceBenchmarkUsed != nil {
		_, _ = fmt.Fprintf(w, "  Benchmark: %s", formatMoney(*s.PriceBenchmarkUsed))
	}
	_, _ = fmt.Fprintln(w)
	if s.MarketContext != "" {
		_, _ = fmt.Fprintf(w, "Market: %s\n", s.MarketContext)
	}
	_, _ = fmt.Fprintln(w)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "RANK\tPROPOSAL\tVENDOR\tSCORE\tRECOMMENDATION\tCOMPLETENESS\tKNOCKOUT")
	_, _ = fmt.Fprintln(tw, "----\t--------\t------\t-----\t--------------\t------------\t--------")
	for _, rp := range resp.RankedProposals {
		vendor := shorten(rp.VendorName, 30)
		knockout := ""
		if rp.Flags.KnockoutTriggered {
			knockout = "yes"
		}
		_, _ = fmt.Fprintf(tw, "%d\t%s\t%s\t%d\t%s\t%.0f%%\t%s\n",
			rp.Rank, rp.ProposalID, vendor, rp.FinalScore, rp.RecommendationLevel,
			rp.DataCompleteness*100, knockout)
	}
	return eris.Wrap(tw.Flush(), "export: flush table")
}

func writeXLSX(w io.Writer, resp *model.EvaluationResponse) error {
	f := xlsx.NewFile()

	ranking, err := f.AddSheet("Ranking")
	if err != nil {
		return eris.Wrap(err, "export: add ranking sheet")
	}
	addStrings(ranking.AddRow(), header)
	for _, rp := range resp.RankedProposals {
		r := ranking.AddRow()
		r.AddCell().SetInt(rp.Rank)
		r.AddCell().SetString(rp.ProposalID)
		r.AddCell().SetString(rp.VendorName)
		r.AddCell().SetInt(rp.FinalScore)
		r.AddCell().SetString(string(rp.RecommendationLevel))
		r.AddCell().SetFloat(rp.DataCompleteness)
		r.AddCell().SetBool(rp.Flags.KnockoutTriggered)
		r.AddCell().SetString(knockoutReason(rp))
	}

	analysis, err := f.AddSheet("Analysis")
	if err != nil {
		return eris.Wrap(err, "export: add analysis sheet")
	}
	addStrings(analysis.AddRow(), []string{
		"proposal_id", "requirements_alignment", "price_assessment", "timeline_assessment",
		"experience_assessment", "scope_quality", "strengths", "weaknesses",
		"red_flags", "green_flags", "comparative_notes",
	})
	for _, rp := range resp.RankedProposals {
		ia := rp.IndividualAnalysis
		addStrings(analysis.AddRow(), []string{
			rp.ProposalID, ia.RequirementsAlignment, deref(ia.PriceAssessment), ia.TimelineAssessment,
			ia.ExperienceAssessment, ia.ScopeQuality, strings.Join(ia.Strengths, "; "),
			strings.Join(ia.Weaknesses, "; "), strings.Join(rp.Flags.RedFlags, "; "),
			strings.Join(rp.Flags.GreenFlags, "; "), deref(rp.ComparativeNotes),
		})
	}

	summary, err := f.AddSheet("Summary")
	if err != nil {
		return eris.Wrap(err, "export: add summary sheet")
	}
	s := resp.BatchSummary
	benchmark := ""
	if s.PriceBenchmarkUsed != nil {
		benchmark = strconv.FormatFloat(*s.PriceBenchmarkUsed, 'f', 2, 64)
	}
	for _, kv := range [][]string{
		{"total_proposals", strconv.Itoa(s.TotalProposals)},
		{"evaluation_mode", string(s.EvaluationMode)},
		{"project_type", string(s.ProjectTypeDetected)},
		{"price_benchmark", benchmark},
		{"market_context", s.MarketContext},
	} {
		addStrings(summary.AddRow(), kv)
	}

	return eris.Wrap(f.Write(w), "export: write xlsx")
}

func row(rp model.RankedProposal) []string {
	return []string{
		strconv.Itoa(rp.Rank),
		rp.ProposalID,
		rp.VendorName,
		strconv.Itoa(rp.FinalScore),
		string(rp.RecommendationLevel),
		strconv.FormatFloat(rp.DataCompleteness, 'f', 2, 64),
		strconv.FormatBool(rp.Flags.KnockoutTriggered),
		knockoutReason(rp),
	}
}

func addStrings(r *xlsx.Row, values []string) {
	for _, v := range values {
		r.AddCell().SetString(v)
	}
}

func knockoutReason(rp model.RankedProposal) string {
	return deref(rp.Flags.KnockoutReason)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func formatMoney(amount float64) string {
	s := strconv.FormatFloat(amount, 'f', 0, 64)
	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")

	var b strings.Builder
	for i, c := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(c)
	}
	if neg {
		return "-" + b.String()
	}
	return b.String()
}

// shorten caps s at n runes, ending a cut string with "...".
func shorten(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
