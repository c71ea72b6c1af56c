package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/snarg/contentgen/internal/analysis"
	"github.com/snarg/contentgen/internal/transcript"
)

type analyzeOptions struct {
	text    string
	files   []string
	formats []string
	outDir  string
	asJSON  bool
}

func newAnalyzeCmd(a *app) *cobra.Command {
	opts := &analyzeOptions{}
	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Generate content from a transcript",
		Long: `Send a transcript to the analysis endpoint and validate the result.

The transcript is either --text (use "-" to read stdin) or one or more
--file arguments. Valid sections are written to --out when it is set.`,
		Example: `  contentgenctl analyze --file meeting.docx --format bpmn,processDoc --out ./out
  cat notes.txt | contentgenctl analyze --text - --format trainingScript`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAnalyze(cmd, a, opts)
		},
	}
	cmd.Flags().StringVar(&opts.text, "text", "", `Transcript text, or "-" for stdin`)
	cmd.Flags().StringSliceVarP(&opts.files, "file", "f", nil, "Transcript file (repeatable)")
	cmd.Flags().StringSliceVar(&opts.formats, "format", nil, "Output formats: bpmn, processDoc, trainingScript")
	cmd.Flags().StringVarP(&opts.outDir, "out", "o", "", "Directory to write valid sections to")
	cmd.Flags().BoolVar(&opts.asJSON, "json", false, "Print the validated outcome as JSON")
	return cmd
}

func runAnalyze(cmd *cobra.Command, a *app, opts *analyzeOptions) error {
	formats, err := analysis.ParseFormatNames(opts.formats)
	if err != nil {
		return err
	}
	if err := formats.Validate(); err != nil {
		return err
	}

	input, err := readInput(cmd.InOrStdin(), opts)
	if err != nil {
		return err
	}
	if err := input.Validate(); err != nil {
		return err
	}
	if err := transcript.CheckSize(input.Files, a.cfg.MaxUploadBytes()); err != nil {
		return err
	}

	keys := formats.Keys()
	output, err := a.analyzer.Analyze(cmd.Context(), analysis.Request{Input: input, Keys: keys})
	if err != nil {
		b := analysis.BannerFor(err)
		return fmt.Errorf("%s: %s", b.Title, b.Message)
	}
	outcome := analysis.Evaluate(keys, output)

	out := cmd.OutOrStdout()
	if opts.asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(outcome); err != nil {
			return err
		}
	} else {
		printOutcome(out, outcome)
	}

	if outcome.Failed {
		return errors.New(outcome.Banner.Message)
	}
	if opts.outDir != "" {
		return writeSections(out, opts.outDir, outcome.Sections)
	}
	return nil
}

// readInput builds the transcript the way the browser form does, so a bad
// --file batch is rejected before anything is sent.
func readInput(stdin io.Reader, opts *analyzeOptions) (transcript.Input, error) {
	if opts.text != "" && len(opts.files) > 0 {
		return transcript.Input{}, transcript.ErrMixedInput
	}

	var d transcript.Draft
	switch opts.text {
	case "":
	case "-":
		data, err := io.ReadAll(stdin)
		if err != nil {
			return transcript.Input{}, fmt.Errorf("read stdin: %w", err)
		}
		d.SetText(string(data))
	default:
		d.SetText(opts.text)
	}

	files := make([]transcript.File, 0, len(opts.files))
	for _, name := range opts.files {
		data, err := os.ReadFile(name)
		if err != nil {
			return transcript.Input{}, err
		}
		files = append(files, transcript.File{
			Name:        filepath.Base(name),
			ContentType: transcript.ContentTypeFor(name),
			Data:        data,
		})
	}
	if err := d.Attach(files...); err != nil {
		return transcript.Input{}, err
	}
	if d.Empty() {
		return transcript.Input{}, transcript.ErrEmptyTranscript
	}
	return d.Input(), nil
}

func printOutcome(w io.Writer, o analysis.Outcome) {
	fmt.Fprintf(w, "%d of %d sections valid (%.0f%%)\n", o.ValidCount, len(o.Requested), o.SuccessRate*100)
	if o.Failed {
		fmt.Fprintf(w, "%s: %s\n", o.Banner.Title, o.Banner.Message)
		return
	}
	for _, s := range o.Sections {
		fmt.Fprintf(w, "  ok    %-20s %s\n", s.Key, s.FileName())
	}
	for _, s := range o.Warnings {
		fmt.Fprintf(w, "  warn  %-20s %s\n", s.Key, s.Reason)
	}
}

func writeSections(w io.Writer, dir string, sections []analysis.Section) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	for _, s := range sections {
		path := filepath.Join(dir, s.FileName())
		if err := os.WriteFile(path, []byte(s.Content), 0o644); err != nil {
			return err
		}
		fmt.Fprintln(w, "wrote", path)
	}
	return nil
}
