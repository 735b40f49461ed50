package narrative

import (
	_ "embed"
	"strings"
	"sync"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/proposal-eval/internal/model"
)

//go:embed templates.yaml
var templatesYAML []byte

// Template is the instruction set for one evaluation mode.
type Template struct {
	System string `yaml:"system"`
}

// Templates holds the instruction set of each mode.
type Templates struct {
	Single  Template `yaml:"single"`
	Compare Template `yaml:"compare"`
}

var (
	loadOnce  sync.Once
	loaded    *Templates
	errLoaded error
)

// LoadTemplates parses the embedded templates once.
func LoadTemplates() (*Templates, error) {
	loadOnce.Do(func() {
		loaded, errLoaded = parseTemplates(templatesYAML)
	})
	return loaded, errLoaded
}

func parseTemplates(data []byte) (*Templates, error) {
	var t Templates
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, eris.Wrap(err, "narrative: parse templates")
	}
	if strings.TrimSpace(t.Single.System) == "" || strings.TrimSpace(t.Compare.System) == "" {
		return nil, eris.New("narrative: templates must define single and compare")
	}
	return &t, nil
}

// For returns the system prompt for mode.
func (t *Templates) For(mode model.EvaluationMode) string {
	if mode == model.ModeCompare {
		return t.Compare.System
	}
	return t.Single.System
}
