package render

import (
	"encoding/json"

	"github.com/dkoosis/verdict/pkg/report"
)

// JSON renders the report document itself, for automation.
type JSON struct{}

// NewJSON creates a JSON renderer.
func NewJSON() *JSON {
	return &JSON{}
}

// Render returns the report as indented JSON.
func (j *JSON) Render(r *report.Report) string {
	data, err := r.Marshal()
	if err != nil {
		errJSON, _ := json.Marshal(map[string]string{"error": err.Error()})
		return string(errJSON) + "\n"
	}
	return string(data)
}
