package domain

type Site struct {
	Name     string   `json:"name" yaml:"name"`
	Location string   `json:"location,omitempty" yaml:"location"`
	Phases   []string `json:"phases,omitempty" yaml:"phases"`
}

// HasPhase reports whether phase is configured; a site without phases
// accepts any phase.
func (s Site) HasPhase(phase string) bool {
	if len(s.Phases) == 0 {
		return true
	}
	for _, p := range s.Phases {
		if p == phase {
			return true
		}
	}
	return false
}

type CellType struct {
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description,omitempty" yaml:"description"`
}

type SiteCell struct {
	Site     string `json:"site" yaml:"site"`
	CellType string `json:"cellType" yaml:"cellType"`
	Cell     string `json:"cell" yaml:"cell"`
}

type TestCase struct {
	TestID      string    `json:"testId" yaml:"testId"`
	CellType    string    `json:"cellType" yaml:"cellType"`
	Scope       string    `json:"scope" yaml:"scope"`
	Cells       CellsMode `json:"cells" yaml:"cells"`
	Description string    `json:"description,omitempty" yaml:"description"`
}
