package analysis

import (
	"bytes"
	"encoding/json"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"
)

// Output is the backend's output object, keyed by output key. Values are the
// raw JSON the backend sent (a string or a structured value).
type Output struct {
	Fields map[Key]json.RawMessage
}

// Has reports whether the backend returned anything for k.
func (o *Output) Has(k Key) bool {
	if o == nil {
		return false
	}
	raw, ok := o.Fields[k]
	return ok && !isNullJSON(raw)
}

// DecodeOutput accepts either an object keyed by output keys or a single
// markdown document with numbered "### N. TITLE" sections.
func DecodeOutput(raw json.RawMessage) (*Output, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return nil, errors.New("empty output")
	}
	switch raw[0] {
	case '"':
		var doc string
		if err := json.Unmarshal(raw, &doc); err != nil {
			return nil, fmt.Errorf("decode markdown output: %w", err)
		}
		return ParseMarkdown(doc), nil
	case '{':
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(raw, &fields); err != nil {
			return nil, fmt.Errorf("decode output object: %w", err)
		}
		out := &Output{Fields: make(map[Key]json.RawMessage, len(fields))}
		for name, v := range fields {
			if k := Key(name); k.Valid() {
				out.Fields[k] = v
			}
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unexpected output type starting with %q", raw[0])
	}
}

var (
	headingRe = regexp.MustCompile(`(?m)^#{3}\s*\d+\.\s+`)
	fenceRe   = regexp.MustCompile("(?s)```([A-Za-z]*)[ \t]*\r?\n(.*?)\r?\n?```")
)

// markdownTitles maps heading substrings to output keys.
var markdownTitles = []struct {
	needle string
	key    Key
}{
	{"SUMMARY TABLE", KeySummary},
	{"BPMN SWIMLANE DIAGRAM", KeyBPMN},
	{"PROCESS DESCRIPTION DOCUMENT", KeyProcessDescription},
	{"SYNTHESIA MEDIA MAPPING", KeySynthesiaMedia},
	{"SYNTHESIA SCRIPT", KeySynthesiaScript},
}

// ParseMarkdown splits a composite markdown document into sections. Text
// before the first heading and sections with unknown titles are dropped.
func ParseMarkdown(doc string) *Output {
	out := &Output{Fields: make(map[Key]json.RawMessage)}
	locs := headingRe.FindAllStringIndex(doc, -1)
	for i, loc := range locs {
		end := len(doc)
		if i+1 < len(locs) {
			end = locs[i+1][0]
		}
		body := doc[loc[1]:end]
		title, content, _ := strings.Cut(body, "\n")
		title = strings.ToUpper(strings.TrimSpace(title))
		for _, t := range markdownTitles {
			if strings.Contains(title, t.needle) {
				encoded, _ := json.Marshal(strings.TrimSpace(content))
				out.Fields[t.key] = encoded
				break
			}
		}
	}
	return out
}

// Section is one validated output section ready for display.
type Section struct {
	Key     Key    `json:"key"`
	Title   string `json:"title"`
	Format  string `json:"format"` // "json", "xml" or "text"
	Content string `json:"content"`
	Valid   bool   `json:"valid"`
	Reason  string `json:"reason,omitempty"`
}

var sectionTitles = map[Key]string{
	KeySummary:            "Summary Table",
	KeyBPMN:               "BPMN Swimlane Diagram",
	KeyProcessDescription: "Process Description Document",
	KeySynthesiaScript:    "Synthesia Script",
	KeySynthesiaMedia:     "Synthesia Media Mapping",
}

// Title returns the display title for k.
func (k Key) Title() string {
	if t, ok := sectionTitles[k]; ok {
		return t
	}
	return string(k)
}

// FileName is the artifact name used when the section is saved or downloaded.
func (s Section) FileName() string {
	switch s.Key {
	case KeySummary:
		return "Summary_Table.json"
	case KeyBPMN:
		return "Process_Diagram.xml"
	case KeyProcessDescription:
		if s.Format == "json" {
			return "Process_Documentation.json"
		}
		return "Process_Documentation.txt"
	case KeySynthesiaScript:
		return "Training_Script.txt"
	case KeySynthesiaMedia:
		return "Media_Mapping.txt"
	}
	return string(s.Key) + ".txt"
}

// ContentType is the MIME type of the artifact.
func (s Section) ContentType() string {
	switch s.Format {
	case "json":
		return "application/json"
	case "xml":
		return "application/xml"
	}
	return "text/plain; charset=utf-8"
}

// Inspect validates the raw value returned for k against that key's shape rule.
func Inspect(k Key, raw json.RawMessage) Section {
	s := Section{Key: k, Title: k.Title(), Format: "text"}
	if isNullJSON(raw) {
		s.Reason = "missing from response"
		return s
	}
	text, isString := valueText(raw)

	switch k {
	case KeySummary:
		s.Format = "json"
		pretty, ok := jsonContainer(text)
		if !ok {
			s.Content = text
			s.Reason = "expected a non-empty JSON array or object"
			return s
		}
		s.Content, s.Valid = pretty, true

	case KeyBPMN:
		s.Format = "xml"
		if !isString {
			s.Reason = "expected XML text"
			return s
		}
		x := strings.TrimSpace(text)
		if !strings.HasPrefix(x, "<") {
			if body, ok := fenced(x, "xml"); ok {
				x = strings.TrimSpace(body)
			}
		}
		s.Content = x
		if err := checkXML(x); err != nil {
			s.Reason = err.Error()
			return s
		}
		s.Valid = true

	case KeyProcessDescription:
		if pretty, ok := jsonContainer(text); ok {
			s.Format, s.Content, s.Valid = "json", pretty, true
			return s
		}
		if !isString {
			s.Reason = "expected a JSON document or narrative text"
			return s
		}
		s.Content = strings.TrimSpace(unfence(text))
		if IsPlaceholder(s.Content) {
			s.Reason = "placeholder content"
			return s
		}
		s.Valid = true

	case KeySynthesiaScript, KeySynthesiaMedia:
		if !isString {
			s.Reason = "expected plain text"
			return s
		}
		s.Content = cleanNarrative(text)
		if IsPlaceholder(s.Content) {
			s.Reason = "placeholder content"
			return s
		}
		s.Valid = true

	default:
		s.Reason = "unknown output key"
	}
	return s
}

// valueText unwraps a JSON string, or returns structured JSON verbatim.
func valueText(raw json.RawMessage) (string, bool) {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, true
	}
	return string(bytes.TrimSpace(raw)), false
}

// unfence returns the body of a leading fenced code block, or s unchanged.
func unfence(s string) string {
	t := strings.TrimSpace(s)
	if !strings.HasPrefix(t, "```") {
		return s
	}
	if m := fenceRe.FindStringSubmatch(t); m != nil {
		return m[2]
	}
	return s
}

// fenced returns the body of the first code block tagged lang anywhere in s.
// Without one, the first fenced block of any language is used.
func fenced(s, lang string) (string, bool) {
	matches := fenceRe.FindAllStringSubmatch(s, -1)
	if len(matches) == 0 {
		return "", false
	}
	for _, m := range matches {
		if strings.EqualFold(m[1], lang) {
			return m[2], true
		}
	}
	return matches[0][2], true
}

// jsonContainer parses s (optionally fenced) and reports whether it is a
// non-empty array or object, returning it indented for display.
func jsonContainer(s string) (string, bool) {
	t := strings.TrimSpace(s)
	if t != "" && t[0] != '[' && t[0] != '{' {
		if body, ok := fenced(t, "json"); ok {
			t = strings.TrimSpace(body)
		}
	}
	if t == "" || (t[0] != '[' && t[0] != '{') {
		return "", false
	}
	var v any
	if err := json.Unmarshal([]byte(t), &v); err != nil {
		return "", false
	}
	switch c := v.(type) {
	case []any:
		if len(c) == 0 {
			return "", false
		}
	case map[string]any:
		if len(c) == 0 {
			return "", false
		}
	default:
		return "", false
	}
	pretty, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", false
	}
	return string(pretty), true
}

// checkXML requires well-formed XML with at least one element.
func checkXML(s string) error {
	if IsPlaceholder(s) {
		return errors.New("placeholder content")
	}
	if !strings.HasPrefix(s, "<") {
		return errors.New("expected XML document")
	}
	dec := xml.NewDecoder(strings.NewReader(s))
	elements := 0
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("malformed XML: %v", err)
		}
		if _, ok := tok.(xml.StartElement); ok {
			elements++
		}
	}
	if elements == 0 {
		return errors.New("XML has no elements")
	}
	return nil
}

var narrativeCleaner = strings.NewReplacer("```plaintext\r\n", "", "```plaintext\n", "", "\n```", "", "#### ", "")

func cleanNarrative(s string) string {
	return strings.TrimSpace(narrativeCleaner.Replace(s))
}

var placeholders = map[string]bool{
	"":               true,
	"null":           true,
	"none":           true,
	"n/a":            true,
	"na":             true,
	"tbd":            true,
	"todo":           true,
	"placeholder":    true,
	"not available":  true,
	"not applicable": true,
	"...":            true,
	"[]":             true,
	"{}":             true,
	`""`:             true,
}

// IsPlaceholder reports whether s is blank or a stand-in value rather than
// generated content.
func IsPlaceholder(s string) bool {
	n := strings.ToLower(strings.TrimSpace(s))
	n = strings.TrimSuffix(strings.TrimPrefix(n, "<"), ">")
	if placeholders[n] {
		return true
	}
	return strings.HasPrefix(n, "generated ") && strings.HasSuffix(n, "...")
}
