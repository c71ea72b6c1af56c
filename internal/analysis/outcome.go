package analysis

// Outcome is the display decision for one generation.
type Outcome struct {
	Requested   []Key     `json:"requested"`
	Sections    []Section `json:"sections"`
	Warnings    []Section `json:"warnings,omitempty"`
	ValidCount  int       `json:"valid_count"`
	SuccessRate float64   `json:"success_rate"`
	Failed      bool      `json:"failed"`
	Banner      *Banner   `json:"banner,omitempty"`
}

// Valid returns the keys of the sections that will be displayed.
func (o Outcome) Valid() []Key {
	keys := make([]Key, 0, len(o.Sections))
	for _, s := range o.Sections {
		keys = append(keys, s.Key)
	}
	return keys
}

// WarningKeys returns the keys that were requested but did not validate.
func (o Outcome) WarningKeys() []Key {
	keys := make([]Key, 0, len(o.Warnings))
	for _, s := range o.Warnings {
		keys = append(keys, s.Key)
	}
	return keys
}

// Evaluate validates each requested section and applies the partial-success
// rule: if fewer than half of the requested sections are valid, nothing is
// shown and a single failure banner replaces the results. Otherwise the
// valid sections are shown and each invalid one becomes a warning.
// Sections the backend returned but were not requested are ignored.
func Evaluate(requested []Key, out *Output) Outcome {
	o := Outcome{Requested: requested, Sections: []Section{}}
	if len(requested) == 0 {
		o.Failed = true
		b := FailureBanner()
		o.Banner = &b
		return o
	}

	var invalid []Section
	for _, k := range requested {
		var raw []byte
		if out != nil {
			raw = out.Fields[k]
		}
		s := Inspect(k, raw)
		if s.Valid {
			o.Sections = append(o.Sections, s)
		} else {
			invalid = append(invalid, s)
		}
	}

	o.ValidCount = len(o.Sections)
	o.SuccessRate = float64(o.ValidCount) / float64(len(requested))

	// Integer comparison keeps the 50% boundary exact.
	if 2*o.ValidCount < len(requested) {
		o.Failed = true
		o.Sections = []Section{}
		b := FailureBanner()
		o.Banner = &b
		return o
	}

	for _, s := range invalid {
		s.Content = ""
		o.Warnings = append(o.Warnings, s)
	}
	return o
}
