// Package transcript models the transcript a user submits for generation:
// either typed text or a set of attached files, never both.
package transcript

import (
	"errors"
	"fmt"
	"path"
	"strings"
)

var (
	ErrEmptyTranscript   = errors.New("Please enter transcript text or attach transcript files.")
	ErrMixedInput        = errors.New("transcript text and attached files are mutually exclusive")
	ErrUnsupportedFormat = errors.New("Unsupported file format. Please use txt, pdf, doc, or docx files.")
	ErrFileTooLarge      = errors.New("file too large")
)

// TextFileName is the part name used when typed text is uploaded as a file.
const TextFileName = "transcript.txt"

// allowedExtensions is the upload allow-list, lowercase without the dot.
var allowedExtensions = map[string]bool{
	"txt":  true,
	"pdf":  true,
	"doc":  true,
	"docx": true,
}

// File is an attached transcript file.
type File struct {
	Name        string
	ContentType string
	Data        []byte
}

// Size returns the file length in bytes.
func (f File) Size() int64 { return int64(len(f.Data)) }

// Extension returns the lowercase text after the last dot, or "" if there is none.
func Extension(name string) string {
	base := path.Base(strings.ReplaceAll(name, "\\", "/"))
	i := strings.LastIndex(base, ".")
	if i < 0 || i == len(base)-1 {
		return ""
	}
	return strings.ToLower(base[i+1:])
}

// SupportedExtension reports whether name has an allow-listed extension.
func SupportedExtension(name string) bool {
	return allowedExtensions[Extension(name)]
}

// CheckFiles rejects the whole batch if any file has an unsupported extension.
func CheckFiles(files []File) error {
	for _, f := range files {
		if !SupportedExtension(f.Name) {
			return fmt.Errorf("%w (%s)", ErrUnsupportedFormat, f.Name)
		}
	}
	return nil
}

// CheckSize rejects files larger than max bytes. max <= 0 disables the check.
func CheckSize(files []File, max int64) error {
	if max <= 0 {
		return nil
	}
	for _, f := range files {
		if f.Size() > max {
			return fmt.Errorf("%w: %s is %d bytes, limit is %d", ErrFileTooLarge, f.Name, f.Size(), max)
		}
	}
	return nil
}

// Input is a submitted transcript.
type Input struct {
	Text  string
	Files []File
}

// Source returns "files" or "text" depending on what the input carries.
func (in Input) Source() string {
	if len(in.Files) > 0 {
		return "files"
	}
	return "text"
}

// Validate checks that exactly one of text or files is present and that the
// files pass the extension allow-list.
func (in Input) Validate() error {
	hasText := strings.TrimSpace(in.Text) != ""
	switch {
	case hasText && len(in.Files) > 0:
		return ErrMixedInput
	case !hasText && len(in.Files) == 0:
		return ErrEmptyTranscript
	}
	return CheckFiles(in.Files)
}

// Part is one transcript_file entry of the upstream multipart request.
type Part struct {
	FileName    string
	ContentType string
	Data        []byte
}

// Parts returns the upload parts. Typed text becomes a single text/plain
// transcript.txt part.
func (in Input) Parts() []Part {
	if len(in.Files) == 0 {
		return []Part{{
			FileName:    TextFileName,
			ContentType: "text/plain",
			Data:        []byte(in.Text),
		}}
	}
	parts := make([]Part, 0, len(in.Files))
	for _, f := range in.Files {
		ct := f.ContentType
		if ct == "" {
			ct = ContentTypeFor(f.Name)
		}
		parts = append(parts, Part{FileName: path.Base(f.Name), ContentType: ct, Data: f.Data})
	}
	return parts
}

// ContentTypeFor returns the MIME type for an allow-listed extension.
func ContentTypeFor(name string) string {
	switch Extension(name) {
	case "txt":
		return "text/plain"
	case "pdf":
		return "application/pdf"
	case "doc":
		return "application/msword"
	case "docx":
		return "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	default:
		return "application/octet-stream"
	}
}
