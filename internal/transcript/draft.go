package transcript

// Draft is the editable transcript state behind the generation form.
// Typing text clears attached files and attaching files clears the text,
// so a Draft never holds both.
type Draft struct {
	text  string
	files []File
}

// SetText replaces the text and drops any attached files.
func (d *Draft) SetText(s string) {
	d.text = s
	d.files = nil
}

// Attach validates the batch and appends it, clearing any typed text.
// A rejected batch leaves the draft unchanged.
func (d *Draft) Attach(files ...File) error {
	if err := CheckFiles(files); err != nil {
		return err
	}
	if len(files) == 0 {
		return nil
	}
	d.files = append(d.files, files...)
	d.text = ""
	return nil
}

// Remove drops the attached file at index i. Out-of-range indexes are ignored.
func (d *Draft) Remove(i int) {
	if i < 0 || i >= len(d.files) {
		return
	}
	d.files = append(d.files[:i:i], d.files[i+1:]...)
}

// Clear resets the draft.
func (d *Draft) Clear() {
	d.text = ""
	d.files = nil
}

func (d *Draft) Text() string  { return d.text }
func (d *Draft) Files() []File { return d.files }

// Empty reports whether there is nothing to submit.
func (d *Draft) Empty() bool {
	return d.Input().Validate() == ErrEmptyTranscript
}

// Input returns the submission for the current state.
func (d *Draft) Input() Input {
	files := make([]File, len(d.files))
	copy(files, d.files)
	return Input{Text: d.text, Files: files}
}
