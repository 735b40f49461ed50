package model

// ProjectType classifies the size of a project for reporting.
type ProjectType string

const (
	ProjectTypeStandard   ProjectType = "STANDARD"
	ProjectTypeLargeScale ProjectType = "LARGE_SCALE"
)

// Project is the procurement project proposals are evaluated for.
type Project struct {
	ID           string  `json:"id"`
	Name         string  `json:"name"`
	DeclaredType string  `json:"declaredType"`
	Budget       float64 `json:"budget"`
	LargeScale   bool    `json:"largeScale"`
}

// DetectType returns LARGE_SCALE when the project is flagged as large-scale or
// its budget reaches threshold. A non-positive threshold disables the budget check.
func (p Project) DetectType(threshold float64) ProjectType {
	if p.LargeScale {
		return ProjectTypeLargeScale
	}
	if threshold > 0 && p.Budget >= threshold {
		return ProjectTypeLargeScale
	}
	return ProjectTypeStandard
}
