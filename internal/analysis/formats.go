package analysis

import (
	"errors"
	"fmt"
	"strings"
)

// Key is an output key understood by the analysis backend.
type Key string

const (
	KeySummary            Key = "summary"
	KeyBPMN               Key = "bpmn"
	KeyProcessDescription Key = "process_description"
	KeySynthesiaScript    Key = "synthesia_script"
	KeySynthesiaMedia     Key = "synthesia_media"
)

// AllKeys lists every output key in display order.
var AllKeys = []Key{KeySummary, KeyBPMN, KeyProcessDescription, KeySynthesiaScript, KeySynthesiaMedia}

// Valid reports whether k is a known output key.
func (k Key) Valid() bool {
	for _, known := range AllKeys {
		if k == known {
			return true
		}
	}
	return false
}

var ErrNoFormat = errors.New("Please select at least one output format.")

// Formats is the set of output formats selected on the form.
type Formats struct {
	BPMN           bool `json:"bpmn"`
	ProcessDoc     bool `json:"processDoc"`
	TrainingScript bool `json:"trainingScript"`
}

// Any reports whether at least one format is selected.
func (f Formats) Any() bool {
	return f.BPMN || f.ProcessDoc || f.TrainingScript
}

// Validate returns ErrNoFormat when nothing is selected.
func (f Formats) Validate() error {
	if !f.Any() {
		return ErrNoFormat
	}
	return nil
}

// Keys maps the selection to backend output keys. The summary table is
// always requested first whenever any format is selected.
func (f Formats) Keys() []Key {
	if !f.Any() {
		return nil
	}
	keys := []Key{KeySummary}
	if f.BPMN {
		keys = append(keys, KeyBPMN)
	}
	if f.ProcessDoc {
		keys = append(keys, KeyProcessDescription)
	}
	if f.TrainingScript {
		keys = append(keys, KeySynthesiaScript, KeySynthesiaMedia)
	}
	return keys
}

// Names returns the selected format names in form order.
func (f Formats) Names() []string {
	var names []string
	if f.BPMN {
		names = append(names, "bpmn")
	}
	if f.ProcessDoc {
		names = append(names, "processDoc")
	}
	if f.TrainingScript {
		names = append(names, "trainingScript")
	}
	return names
}

// ParseFormatNames builds a selection from form values. Both the camelCase
// names used by the browser and snake_case variants are accepted.
func ParseFormatNames(names []string) (Formats, error) {
	var f Formats
	for _, raw := range names {
		for _, name := range strings.Split(raw, ",") {
			switch strings.TrimSpace(name) {
			case "":
			case "bpmn":
				f.BPMN = true
			case "processDoc", "process_doc", "process_description":
				f.ProcessDoc = true
			case "trainingScript", "training_script":
				f.TrainingScript = true
			default:
				return Formats{}, fmt.Errorf("unknown output format %q", name)
			}
		}
	}
	return f, nil
}

// FormatInfo describes a selectable format for the UI.
type FormatInfo struct {
	Name        string `json:"name"`
	Label       string `json:"label"`
	Description string `json:"description"`
	Keys        []Key  `json:"keys"`
}

// Catalog lists the selectable formats.
var Catalog = []FormatInfo{
	{
		Name:        "bpmn",
		Label:       "BPMN Diagram",
		Description: "Business Process Model and Notation XML for swimlane diagrams",
		Keys:        []Key{KeyBPMN},
	},
	{
		Name:        "processDoc",
		Label:       "Process Documentation",
		Description: "Step-by-step process description with personas and exceptions",
		Keys:        []Key{KeyProcessDescription},
	},
	{
		Name:        "trainingScript",
		Label:       "Training Script",
		Description: "Synthesia-ready narration script and media mapping",
		Keys:        []Key{KeySynthesiaScript, KeySynthesiaMedia},
	},
}
