package research

import (
	"encoding/json"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/scoutline/vendorscout/internal/model"
)

// cleanJSON attempts to extract a JSON document from text that may contain
// markdown code fences or surrounding prose.
func cleanJSON(text string) string {
	text = strings.TrimSpace(text)

	// Strip markdown code fences.
	if strings.HasPrefix(text, "```json") {
		text = strings.TrimPrefix(text, "```json")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	} else if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	}

	// Find the first [ or { and the matching last ] or }. The model is asked
	// for a bare array but sometimes wraps it in an object or leads with prose.
	start := strings.IndexAny(text, "[{")
	end := strings.LastIndexAny(text, "]}")
	if start >= 0 && end > start {
		text = text[start : end+1]
	}

	return strings.TrimSpace(text)
}

// decodeVendors normalizes a model completion into vendor records. Two shapes
// are accepted: a bare JSON array of vendor objects, or an object with a
// "vendors" key holding that array. A JSON null or an empty array means the
// page had nothing to extract, which is distinct from a malformed completion.
func decodeVendors(text string) ([]model.Vendor, error) {
	cleaned := cleanJSON(text)

	var vendors []model.Vendor
	if err := json.Unmarshal([]byte(cleaned), &vendors); err == nil {
		return vendors, nil
	}

	var wrapped struct {
		Vendors []model.Vendor `json:"vendors"`
	}
	if err := json.Unmarshal([]byte(cleaned), &wrapped); err != nil {
		return nil, eris.Wrap(err, "extract: parse completion")
	}
	if wrapped.Vendors == nil {
		return nil, eris.New("extract: unexpected response shape")
	}
	return wrapped.Vendors, nil
}
