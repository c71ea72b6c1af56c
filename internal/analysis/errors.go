package analysis

import (
	"errors"
	"fmt"
	"strings"
)

// APIError is a failed analysis call. Detail carries the server's error text
// (or a local description for transport and decode failures).
type APIError struct {
	Detail     string `json:"detail"`
	Status     int    `json:"status,omitempty"`
	StatusText string `json:"status_text,omitempty"`
	Network    bool   `json:"network,omitempty"`
}

func (e *APIError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("analysis API error (status %d): %s", e.Status, e.Detail)
	}
	return "analysis API error: " + e.Detail
}

// Category groups upstream errors into the banners the UI knows how to show.
type Category string

const (
	CategoryEncoding     Category = "encoding"
	CategoryFileTooLarge Category = "file_too_large"
	CategoryAuth         Category = "auth"
	CategoryServer       Category = "server"
	CategoryGeneric      Category = "generic"
)

// classifiers are checked in order; the first category with a matching
// substring wins.
var classifiers = []struct {
	category Category
	needles  []string
}{
	{CategoryEncoding, []string{"utf-8", "utf8", "codec", "decode", "encoding", "invalid start byte", "charset"}},
	{CategoryFileTooLarge, []string{"too large", "file size", "exceeds", "413", "payload"}},
	{CategoryAuth, []string{"unauthorized", "forbidden", "401", "403", "authenticat", "token"}},
	{CategoryServer, []string{"internal server error", "server error", "500", "502", "503", "504", "bad gateway", "service unavailable", "timeout"}},
}

// Classify maps error text to a Category by case-insensitive substring match.
func Classify(detail string) Category {
	d := strings.ToLower(detail)
	for _, c := range classifiers {
		for _, n := range c.needles {
			if strings.Contains(d, n) {
				return c.category
			}
		}
	}
	return CategoryGeneric
}

// Banner is the user-facing rendering of a failure.
type Banner struct {
	Category Category `json:"category"`
	Title    string   `json:"title"`
	Message  string   `json:"message"`
	Detail   string   `json:"detail,omitempty"`
}

var banners = map[Category]Banner{
	CategoryEncoding: {
		Title:   "File encoding not supported",
		Message: "The transcript could not be read. Save it as UTF-8 text or upload a PDF or Word document and try again.",
	},
	CategoryFileTooLarge: {
		Title:   "File too large",
		Message: "The transcript exceeds the maximum upload size. Split it into smaller files or trim it and try again.",
	},
	CategoryAuth: {
		Title:   "Not authorized",
		Message: "The content service rejected the request. Sign in again or contact an administrator.",
	},
	CategoryServer: {
		Title:   "Server error",
		Message: "The content service is having trouble right now. Please try again in a few minutes.",
	},
	CategoryGeneric: {
		Title:   "Generation failed",
		Message: "Something went wrong while generating content. Please try again.",
	},
}

// BannerFor classifies err and returns the banner to display.
func BannerFor(err error) Banner {
	detail := err.Error()
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		detail = apiErr.Detail
	}
	cat := Classify(detail)
	b := banners[cat]
	b.Category = cat
	b.Detail = detail
	return b
}

// FailureBanner is shown when too few sections validated to display results.
func FailureBanner() Banner {
	b := banners[CategoryGeneric]
	b.Category = CategoryGeneric
	b.Message = "The generated content did not pass validation. Please review the transcript and try again."
	return b
}
