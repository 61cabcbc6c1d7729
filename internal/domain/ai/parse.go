package ai

import (
	"encoding/json"
	"regexp"
	"strings"
)

// Strategy tries to recover a JSON object from model output.
// It must not panic and reports false when it found nothing usable.
type Strategy func(text string) (map[string]any, bool)

var fencedBlock = regexp.MustCompile("```(?:json)?\\s*([\\s\\S]*?)\\s*```")

// Strategies is the recovery cascade in precedence order.
var Strategies = []Strategy{
	DecodeWhole,
	DecodeFenced,
	DecodeOuterBraces,
}

// ParseResponse runs Strategies in order and returns the first decoded object.
// A false result means "no result", never an error.
func ParseResponse(text string) (map[string]any, bool) {
	for _, s := range Strategies {
		if obj, ok := try(s, text); ok {
			return obj, true
		}
	}
	return nil, false
}

// try isolates one strategy so a panic inside it cannot stop the cascade.
func try(s Strategy, text string) (obj map[string]any, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			obj, ok = nil, false
		}
	}()
	return s(text)
}

// DecodeWhole decodes the entire text as a JSON object.
func DecodeWhole(text string) (map[string]any, bool) {
	return decodeObject(text)
}

// DecodeFenced decodes the content of the first ``` or ```json block.
func DecodeFenced(text string) (map[string]any, bool) {
	m := fencedBlock.FindStringSubmatch(text)
	if len(m) < 2 {
		return nil, false
	}
	return decodeObject(m[1])
}

// DecodeOuterBraces decodes the span from the first '{' to the last '}'.
func DecodeOuterBraces(text string) (map[string]any, bool) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return nil, false
	}
	return decodeObject(text[start : end+1])
}

func decodeObject(s string) (map[string]any, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, false
	}
	var obj map[string]any
	if err := json.Unmarshal([]byte(s), &obj); err != nil {
		return nil, false
	}
	// "null" decodes into a nil map without error
	if obj == nil {
		return nil, false
	}
	return obj, true
}
