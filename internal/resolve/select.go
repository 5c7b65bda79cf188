package resolve

import (
	"encoding/json"
	"fmt"

	"github.com/ohler55/ojg/jp"
)

// Select evaluates a JSONPath expression against JSON content and returns
// the matches encoded as a JSON array.
func Select(content []byte, expr string) (json.RawMessage, error) {
	x, err := jp.ParseString(expr)
	if err != nil {
		return nil, fmt.Errorf("invalid jsonpath '%s': %w", expr, err)
	}
	var root any
	if err := json.Unmarshal(content, &root); err != nil {
		return nil, fmt.Errorf("content is not JSON: %w", err)
	}
	results := x.Get(root)
	if results == nil {
		results = []any{}
	}
	out, err := json.Marshal(results)
	if err != nil {
		return nil, fmt.Errorf("encode selection: %w", err)
	}
	return out, nil
}
