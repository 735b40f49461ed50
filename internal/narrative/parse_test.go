package narrative

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/proposal-eval/internal/evalerr"
	"github.com/sells-group/proposal-eval/internal/model"
)

const singleJSON = `{
  "proposals": [{
    "proposalId": "p-a",
    "requirementsAlignment": "Covers every mandatory item.",
    "timelineAssessment": "30 days is reasonable.",
    "experienceAssessment": "CPA firm.",
    "scopeQuality": "Clear.",
    "strengths": ["Complete coverage", "  "],
    "weaknesses": [],
    "redFlags": [],
    "greenFlags": ["Fast"],
    "finalScore": 12,
    "rank": 7
  }]
}`

func TestParse_Single(t *testing.T) {
	res, err := Parse(model.ModeSingle, []string{"p-a"}, singleJSON)
	require.NoError(t, err)

	single, ok := res.(*SingleNarrative)
	require.True(t, ok)
	assert.Equal(t, model.ModeSingle, res.Mode())
	assert.Equal(t, "", res.Market())

	n, ok := single.For("p-a")
	require.True(t, ok)
	assert.Equal(t, "Covers every mandatory item.", n.RequirementsAlignment)
	assert.Equal(t, []string{"Complete coverage"}, n.Strengths)
	assert.Equal(t, []string{}, n.Weaknesses)
	assert.Nil(t, n.MissingRequirements)
	assert.Equal(t, "", n.FeeStructureAssessment)

	_, ok = single.For("p-b")
	assert.False(t, ok)
}

func TestParse_SingleBareObject(t *testing.T) {
	text := "```json\n{\"proposalId\": \"p-a\", \"scopeQuality\": \"Good\"}\n```"
	res, err := Parse(model.ModeSingle, []string{"p-a"}, text)
	require.NoError(t, err)
	n, ok := res.For("p-a")
	require.True(t, ok)
	assert.Equal(t, "Good", n.ScopeQuality)
}

func TestParse_Compare(t *testing.T) {
	text := `Here is the evaluation:
{
  "marketContext": " Two close bids. ",
  "proposals": [
    {"proposalId": "p-b", "priceAssessment": "Highest in batch.", "comparativeNotes": "Slower."},
    {"proposalId": "p-a", "priceAssessment": "Lowest in batch.", "knockoutReason": ""}
  ]
}
Thanks.`
	res, err := Parse(model.ModeCompare, []string{"p-a", "p-b"}, text)
	require.NoError(t, err)

	cmp, ok := res.(*CompareNarrative)
	require.True(t, ok)
	assert.Equal(t, "Two close bids.", cmp.Market())

	a, ok := cmp.For("p-a")
	require.True(t, ok)
	assert.Equal(t, "Lowest in batch.", a.PriceAssessment)
	b, ok := cmp.For("p-b")
	require.True(t, ok)
	assert.Equal(t, "Slower.", b.ComparativeNotes)
}

func TestParse_Malformed(t *testing.T) {
	tests := []struct {
		name string
		mode model.EvaluationMode
		ids  []string
		text string
	}{
		{"empty", model.ModeSingle, []string{"p-a"}, "   "},
		{"not json", model.ModeSingle, []string{"p-a"}, "I cannot evaluate this."},
		{"array root", model.ModeCompare, []string{"p-a", "p-b"}, `[{"proposalId":"p-a"}]`},
		{"no proposals", model.ModeCompare, []string{"p-a", "p-b"}, `{"proposals": []}`},
		{"missing id", model.ModeCompare, []string{"p-a", "p-b"}, `{"proposals": [{"proposalId":"p-a"}]}`},
		{"unknown id", model.ModeCompare, []string{"p-a", "p-b"}, `{"proposals": [{"proposalId":"p-a"},{"proposalId":"p-b"},{"proposalId":"p-z"}]}`},
		{"duplicate id", model.ModeCompare, []string{"p-a", "p-b"}, `{"proposals": [{"proposalId":"p-a"},{"proposalId":"p-a"},{"proposalId":"p-b"}]}`},
		{"blank id", model.ModeCompare, []string{"p-a", "p-b"}, `{"proposals": [{"proposalId":" "},{"proposalId":"p-b"}]}`},
		{"wrong list type", model.ModeSingle, []string{"p-a"}, `{"proposals": [{"proposalId":"p-a","strengths":"many"}]}`},
		{"single with price", model.ModeSingle, []string{"p-a"}, `{"proposals": [{"proposalId":"p-a","priceAssessment":"Cheap."}]}`},
		{"single with notes", model.ModeSingle, []string{"p-a"}, `{"proposals": [{"proposalId":"p-a","comparativeNotes":"Best."}]}`},
		{"single with market", model.ModeSingle, []string{"p-a"}, `{"marketContext":"Rates are high.","proposals": [{"proposalId":"p-a"}]}`},
		{"bare single with market", model.ModeSingle, []string{"p-a"}, `{"proposalId":"p-a","marketContext":"Rates are high."}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.mode, tt.ids, tt.text)
			require.Error(t, err)
			assert.True(t, evalerr.Is(err, evalerr.KindMalformedProviderOutput), err.Error())
			assert.Equal(t, evalerr.CodeAIResponseInvalid, evalerr.CodeOf(err))
		})
	}
}

func TestParse_SingleBlankCompareFieldsAccepted(t *testing.T) {
	text := `{"marketContext": null, "proposals": [{"proposalId":"p-a","priceAssessment":"","comparativeNotes":null}]}`
	_, err := Parse(model.ModeSingle, []string{"p-a"}, text)
	require.NoError(t, err)
}

func TestCleanJSON(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"```json\n{\"a\":1}\n```", `{"a":1}`},
		{"```\n{\"a\":1}\n```", `{"a":1}`},
		{"prefix {\"a\":{\"b\":2}} suffix", `{"a":{"b":2}}`},
		{`{"a":1}`, `{"a":1}`},
		{"no json", "no json"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, cleanJSON(tt.in))
	}
}
