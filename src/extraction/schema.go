package extraction

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

const traceSchemaURL = "debug_trace.schema.json"

const traceSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["chosenKeyword", "patternUsed", "contextSnippet", "vendorSource", "candidatesChecked", "topCandidates"],
  "properties": {
    "chosenKeyword": {"type": ["string", "null"]},
    "patternUsed": {"type": "string", "minLength": 1},
    "contextSnippet": {"type": ["string", "null"], "maxLength": 500},
    "vendorSource": {"enum": ["correspondent", "heuristic", "none"]},
    "candidatesChecked": {"type": "integer", "minimum": 0},
    "linesChecked": {"type": "integer", "minimum": 0},
    "topCandidates": {
      "type": "array",
      "maxItems": 5,
      "items": {
        "type": "object",
        "required": ["value", "score", "lineSnippet", "matchedKeywords"],
        "properties": {
          "value": {"type": "number"},
          "score": {"type": "integer"},
          "lineSnippet": {"type": "string", "maxLength": 120},
          "matchedKeywords": {
            "type": "object",
            "required": ["positive", "negative", "neutral"],
            "properties": {
              "positive": {"type": "array", "items": {"type": "string"}, "uniqueItems": true},
              "negative": {"type": "array", "items": {"type": "string"}, "uniqueItems": true},
              "neutral": {"type": "array", "items": {"type": "string"}, "uniqueItems": true}
            }
          }
        }
      }
    },
    "chosen": {
      "type": ["object", "null"],
      "required": ["rawText", "lineIndex", "line", "score", "isNegative"]
    }
  }
}`

// TraceValidator checks serialised debug traces against the published shape.
type TraceValidator struct {
	schema *jsonschema.Schema
}

func NewTraceValidator() (*TraceValidator, error) {
	c := jsonschema.NewCompiler()
	if err := c.AddResource(traceSchemaURL, strings.NewReader(traceSchema)); err != nil {
		return nil, fmt.Errorf("add trace schema: %w", err)
	}
	s, err := c.Compile(traceSchemaURL)
	if err != nil {
		return nil, fmt.Errorf("compile trace schema: %w", err)
	}
	return &TraceValidator{schema: s}, nil
}

// Validate reports whether raw is a well-formed debug trace.
func (v *TraceValidator) Validate(raw string) error {
	var doc interface{}
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return fmt.Errorf("decode trace: %w", err)
	}
	if err := v.schema.Validate(doc); err != nil {
		return fmt.Errorf("trace does not match schema: %w", err)
	}
	return nil
}
