package api

import (
	"net/http"

	"github.com/snarg/contentgen/internal/analysis"
)

// FormatsHandler serves GET /api/v1/formats: the selectable output formats
// and the section keys each expands to. The summary table is always added.
func FormatsHandler(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]any{
		"formats":     analysis.Catalog,
		"always_keys": []analysis.Key{analysis.KeySummary},
	})
}
