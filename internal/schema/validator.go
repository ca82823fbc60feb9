package schema

import (
	"encoding/json"
	"fmt"
	"strings"

	jsonpatch "github.com/evanphx/json-patch"

	"github.com/qvarnd-io/qvarnd/internal/docval"
)

// ValidationError reports the field path and reason a document failed to
// conform to a prototype (spec §9: Valid(document) | Error(path, reason)).
type ValidationError struct {
	Path   string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed at %q: %s", e.Path, e.Reason)
}

// Validate checks data against prototype: unknown keys are stripped (not
// rejected), wrong-typed values are rejected. Returns a new document
// (data's conforming subset) or the first ValidationError encountered.
func Validate(prototype, data docval.Doc) (docval.Doc, error) {
	cleaned, err := validateValue(prototype, data, "$")
	if err != nil {
		return nil, err
	}
	out, ok := cleaned.(map[string]any)
	if !ok {
		return nil, &ValidationError{Path: "$", Reason: "document must be an object"}
	}
	return out, nil
}

// StrippedFields reports the JSON-merge-patch diff between the submitted
// document and the conforming subset Validate returned: every key present
// in submitted but absent (or replaced with a zero value) in cleaned, i.e.
// the keys validation silently dropped. A diagnostic helper: Validate does
// not call it, and no write path rejects a document because of it.
func StrippedFields(submitted, cleaned docval.Doc) ([]string, error) {
	subBytes, err := json.Marshal(submitted)
	if err != nil {
		return nil, err
	}
	cleanBytes, err := json.Marshal(cleaned)
	if err != nil {
		return nil, err
	}
	patch, err := jsonpatch.CreateMergePatch(cleanBytes, subBytes)
	if err != nil {
		return nil, err
	}
	var asMap map[string]any
	if err := json.Unmarshal(patch, &asMap); err != nil {
		return nil, err
	}
	fields := make([]string, 0, len(asMap))
	for k := range asMap {
		fields = append(fields, k)
	}
	return fields, nil
}

func validateValue(proto, val any, path string) (any, error) {
	switch p := proto.(type) {
	case map[string]any:
		obj, ok := val.(map[string]any)
		if !ok {
			if val == nil {
				return map[string]any{}, nil
			}
			return nil, &ValidationError{Path: path, Reason: "expected object"}
		}
		out := map[string]any{}
		for k, cv := range obj {
			pv, declared := p[k]
			if !declared {
				continue // unknown key: stripped, not rejected
			}
			childPath := path + "." + k
			cleaned, err := validateValue(pv, cv, childPath)
			if err != nil {
				return nil, err
			}
			out[k] = cleaned
		}
		return out, nil
	case []any:
		arr, ok := val.([]any)
		if !ok {
			if val == nil {
				return []any{}, nil
			}
			return nil, &ValidationError{Path: path, Reason: "expected array"}
		}
		var elemProto any
		if len(p) > 0 {
			elemProto = p[0]
		}
		out := make([]any, 0, len(arr))
		for i, el := range arr {
			elPath := fmt.Sprintf("%s[%d]", path, i)
			if elemProto == nil {
				out = append(out, el)
				continue
			}
			cleaned, err := validateValue(elemProto, el, elPath)
			if err != nil {
				return nil, err
			}
			out = append(out, cleaned)
		}
		return out, nil
	default:
		return validateScalar(proto, val, path)
	}
}

func validateScalar(proto, val any, path string) (any, error) {
	if val == nil {
		return zeroValue(proto), nil
	}
	switch proto.(type) {
	case bool:
		b, ok := val.(bool)
		if !ok {
			return nil, &ValidationError{Path: path, Reason: "expected bool"}
		}
		return b, nil
	case string:
		s, ok := val.(string)
		if !ok {
			return nil, &ValidationError{Path: path, Reason: "expected string"}
		}
		return s, nil
	case float64, int, int64:
		n, ok := val.(float64)
		if !ok {
			return nil, &ValidationError{Path: path, Reason: "expected number"}
		}
		return n, nil
	default:
		return val, nil
	}
}

func zeroValue(proto any) any {
	switch proto.(type) {
	case bool:
		return false
	case string:
		return ""
	case float64, int, int64:
		return float64(0)
	case []any:
		return []any{}
	case map[string]any:
		return map[string]any{}
	default:
		return nil
	}
}

// FieldPath converts a dot/bracket validation path into a human string,
// preserved for error messages that show the field-level cause (spec §7).
func FieldPath(path string) string {
	return strings.TrimPrefix(path, "$.")
}
