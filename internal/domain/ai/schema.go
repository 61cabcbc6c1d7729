package ai

import (
	"errors"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// analysisSchema describes the minimum shape downstream summaries read from.
// It is a soft check: violations are reported, never fatal.
const analysisSchema = `{
  "type": "object",
  "required": ["executive_summary"],
  "properties": {
    "executive_summary": {
      "type": "object",
      "properties": {
        "key_metrics": {
          "type": "object",
          "properties": {
            "overall_maturity_score": {"type": ["number", "null"], "minimum": 0, "maximum": 10}
          }
        },
        "recommendation": {"type": ["string", "null"]}
      }
    },
    "red_flags": {"type": "array"},
    "coverage_analysis": {"type": "object"}
  }
}`

var compiledAnalysisSchema = jsonschema.MustCompileString("analysis.json", analysisSchema)

// CheckAnalysisShape validates a decoded analysis and returns one message per violation.
func CheckAnalysisShape(data map[string]any) []string {
	var v any
	if data != nil {
		v = data
	}
	err := compiledAnalysisSchema.Validate(v)
	if err == nil {
		return nil
	}
	var ve *jsonschema.ValidationError
	if !errors.As(err, &ve) {
		return []string{err.Error()}
	}
	var out []string
	collectViolations(ve, &out)
	if len(out) == 0 {
		out = append(out, ve.Error())
	}
	return out
}

func collectViolations(ve *jsonschema.ValidationError, out *[]string) {
	if len(ve.Causes) == 0 {
		loc := ve.InstanceLocation
		if loc == "" {
			loc = "/"
		}
		*out = append(*out, fmt.Sprintf("%s: %s", loc, ve.Message))
		return
	}
	for _, c := range ve.Causes {
		collectViolations(c, out)
	}
}
