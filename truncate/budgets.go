package truncate

import "fmt"

// Budgets groups every limit applied to tool output.
type Budgets struct {
	// Model is the default budget for model-visible stdout/stderr.
	Model Budget `yaml:"model"`
	// ModelStrict applies to known high-noise commands (recursive ls/grep).
	ModelStrict Budget `yaml:"model_strict"`
	// ModelSearch applies to broad, non-recursive searches.
	ModelSearch Budget `yaml:"model_search"`
	// Display bounds each stream shown to the operator.
	Display Budget `yaml:"display"`

	DisplayDocLines     int `yaml:"display_doc_lines"`
	ModelMaxChars       int `yaml:"model_max_chars"`
	MaxDiffLinesPerFile int `yaml:"max_diff_lines_per_file"`
	MaxPatchSections    int `yaml:"max_patch_sections"`
}

// DefaultBudgets returns the stock limits.
func DefaultBudgets() Budgets {
	return Budgets{
		Model:               Budget{MaxLines: 120, MaxLineLength: 400},
		ModelStrict:         Budget{MaxLines: 40, MaxLineLength: 400},
		ModelSearch:         Budget{MaxLines: 80, MaxLineLength: 400},
		Display:             Budget{MaxLines: 25, MaxLineLength: 1000, Note: DisplayNote},
		DisplayDocLines:     25,
		ModelMaxChars:       25000,
		MaxDiffLinesPerFile: 300,
		MaxPatchSections:    12,
	}
}

// WithDefaults fills zero fields from DefaultBudgets.
func (b Budgets) WithDefaults() Budgets {
	d := DefaultBudgets()
	fill := func(dst *Budget, src Budget) {
		if dst.MaxLines == 0 {
			dst.MaxLines = src.MaxLines
		}
		if dst.MaxLineLength == 0 {
			dst.MaxLineLength = src.MaxLineLength
		}
		if dst.Note == "" {
			dst.Note = src.Note
		}
	}
	fill(&b.Model, d.Model)
	fill(&b.ModelStrict, d.ModelStrict)
	fill(&b.ModelSearch, d.ModelSearch)
	fill(&b.Display, d.Display)
	if b.DisplayDocLines == 0 {
		b.DisplayDocLines = d.DisplayDocLines
	}
	if b.ModelMaxChars == 0 {
		b.ModelMaxChars = d.ModelMaxChars
	}
	if b.MaxDiffLinesPerFile == 0 {
		b.MaxDiffLinesPerFile = d.MaxDiffLinesPerFile
	}
	if b.MaxPatchSections == 0 {
		b.MaxPatchSections = d.MaxPatchSections
	}
	return b
}

// Validate reports the first limit that is not positive.
func (b Budgets) Validate() error {
	lines := []struct {
		name string
		v    int
	}{
		{"model.max_lines", b.Model.MaxLines},
		{"model.max_line_length", b.Model.MaxLineLength},
		{"model_strict.max_lines", b.ModelStrict.MaxLines},
		{"model_strict.max_line_length", b.ModelStrict.MaxLineLength},
		{"model_search.max_lines", b.ModelSearch.MaxLines},
		{"model_search.max_line_length", b.ModelSearch.MaxLineLength},
		{"display.max_lines", b.Display.MaxLines},
		{"display.max_line_length", b.Display.MaxLineLength},
		{"display_doc_lines", b.DisplayDocLines},
		{"model_max_chars", b.ModelMaxChars},
		{"max_diff_lines_per_file", b.MaxDiffLinesPerFile},
		{"max_patch_sections", b.MaxPatchSections},
	}
	for _, l := range lines {
		if l.v <= 0 {
			return fmt.Errorf("budgets.%s must be positive, got %d", l.name, l.v)
		}
	}
	return nil
}
