package api

import (
	"io"
	"io/fs"
	"net/http"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

type pageInfo struct {
	Path        string `json:"path"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Order       int    `json:"order"`
}

var (
	cardTitleRe = regexp.MustCompile(`<meta\s+name="card-title"\s+content="([^"]*)"`)
	cardDescRe  = regexp.MustCompile(`<meta\s+name="card-description"\s+content="([^"]*)"`)
	cardOrderRe = regexp.MustCompile(`<meta\s+name="card-order"\s+content="(\d+)"`)
)

// headBytes is how much of each page is scanned; meta tags live in <head>.
const headBytes = 2048

// PagesHandler serves the header navigation: every top-level HTML page that
// declares a card-title meta tag, ordered by card-order then title. The FS
// is rescanned per request so edited pages show up without a restart.
func PagesHandler(webFS fs.FS) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		pages, err := scanPages(webFS)
		if err != nil {
			WriteErrorWithCode(w, http.StatusInternalServerError, ErrInternal, "failed to read web directory")
			return
		}
		WriteJSON(w, http.StatusOK, pages)
	}
}

func scanPages(webFS fs.FS) ([]pageInfo, error) {
	entries, err := fs.ReadDir(webFS, ".")
	if err != nil {
		return nil, err
	}

	pages := []pageInfo{}
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".html") {
			continue
		}
		head, err := readHead(webFS, name)
		if err != nil {
			continue
		}
		m := cardTitleRe.FindStringSubmatch(head)
		if m == nil {
			continue
		}
		p := pageInfo{Path: "/" + name, Title: m[1]}
		if name == "index.html" {
			p.Path = "/"
		}
		if m := cardDescRe.FindStringSubmatch(head); m != nil {
			p.Description = m[1]
		}
		if m := cardOrderRe.FindStringSubmatch(head); m != nil {
			p.Order, _ = strconv.Atoi(m[1])
		}
		pages = append(pages, p)
	}

	sort.SliceStable(pages, func(i, j int) bool {
		if pages[i].Order != pages[j].Order {
			return pages[i].Order < pages[j].Order
		}
		return pages[i].Title < pages[j].Title
	})
	return pages, nil
}

func readHead(fsys fs.FS, name string) (string, error) {
	f, err := fsys.Open(name)
	if err != nil {
		return "", err
	}
	defer f.Close()
	buf, err := io.ReadAll(io.LimitReader(f, headBytes))
	if err != nil {
		return "", err
	}
	return string(buf), nil
}
