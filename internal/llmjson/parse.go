// Package llmjson decodes the JSON a language model was asked to return.
// Models often wrap their answer in a markdown code fence or surround it
// with a sentence of prose, so decoding first isolates the JSON value.
package llmjson

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrNoJSON is returned when the output contains no JSON object or array.
var ErrNoJSON = errors.New("llmjson: no json value in model output")

// Clean strips a surrounding markdown code fence and trims the output down
// to the outermost JSON object or array.
func Clean(output string) string {
	s := strings.TrimSpace(output)
	if rest, ok := strings.CutPrefix(s, "```"); ok {
		// Drop the info string ("json") on the opening fence line.
		if i := strings.IndexByte(rest, '\n'); i >= 0 {
			rest = rest[i+1:]
		} else {
			rest = strings.TrimPrefix(rest, "json")
		}
		s = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(rest), "```"))
	}

	start := strings.IndexAny(s, "{[")
	if start < 0 {
		return ""
	}
	closer := byte('}')
	if s[start] == '[' {
		closer = ']'
	}
	end := strings.LastIndexByte(s, closer)
	if end < start {
		return ""
	}
	return s[start : end+1]
}

// Decode unmarshals the JSON object in output into out.
func Decode(output string, out any) error {
	s := Clean(output)
	if s == "" {
		return ErrNoJSON
	}
	if err := json.Unmarshal([]byte(s), out); err != nil {
		return fmt.Errorf("llmjson: decode: %w", err)
	}
	return nil
}

// DecodeList unmarshals output as a list of T. A single object is accepted
// and returned as a one-element list.
func DecodeList[T any](output string) ([]T, error) {
	s := Clean(output)
	if s == "" {
		return nil, ErrNoJSON
	}
	if s[0] == '{' {
		var one T
		if err := json.Unmarshal([]byte(s), &one); err != nil {
			return nil, fmt.Errorf("llmjson: decode object: %w", err)
		}
		return []T{one}, nil
	}
	var many []T
	if err := json.Unmarshal([]byte(s), &many); err != nil {
		return nil, fmt.Errorf("llmjson: decode list: %w", err)
	}
	return many, nil
}
