package testutils

import (
	"encoding/json"
	"fmt"

	"github.com/yudai/gojsondiff"
	"github.com/yudai/gojsondiff/formatter"
)

type jsonOptions struct {
	ignoreExtraKeys bool
	ignoredFields   map[string]struct{}
}

// JSONOption adjusts AssertJSON
type JSONOption func(*jsonOptions)

// IgnoreExtraKeys drops object keys present only in the actual document
func IgnoreExtraKeys() JSONOption {
	return func(o *jsonOptions) { o.ignoreExtraKeys = true }
}

// IgnoreFields drops the named keys at every depth on both sides
func IgnoreFields(names ...string) JSONOption {
	return func(o *jsonOptions) {
		for _, n := range names {
			o.ignoredFields[n] = struct{}{}
		}
	}
}

// AssertJSON compares two JSON documents structurally and reports an ASCII
// diff on mismatch. It returns whether the documents matched.
func AssertJSON(t TestingT, expectedJSON, actualJSON string, opts ...JSONOption) bool {
	t.Helper()

	o := jsonOptions{ignoredFields: map[string]struct{}{}}
	for _, opt := range opts {
		opt(&o)
	}

	var expected, actual interface{}
	if err := json.Unmarshal([]byte(expectedJSON), &expected); err != nil {
		t.Errorf("invalid expected JSON: %v", err)
		return false
	}
	if err := json.Unmarshal([]byte(actualJSON), &actual); err != nil {
		t.Errorf("invalid actual JSON: %v\n%s", err, actualJSON)
		return false
	}

	// gojsondiff compares objects only
	expected = map[string]interface{}{"root": expected}
	actual = map[string]interface{}{"root": actual}

	if len(o.ignoredFields) > 0 {
		dropFields(expected, o.ignoredFields)
		dropFields(actual, o.ignoredFields)
	}
	if o.ignoreExtraKeys {
		pruneExtraKeys(actual, expected)
	}

	expectedBytes, _ := json.Marshal(expected)
	actualBytes, _ := json.Marshal(actual)
	diff, err := gojsondiff.New().Compare(expectedBytes, actualBytes)
	if err != nil {
		t.Errorf("JSON comparison failed: %v", err)
		return false
	}
	if !diff.Modified() {
		return true
	}

	f := formatter.NewAsciiFormatter(expected, formatter.AsciiFormatterConfig{ShowArrayIndex: true})
	text, _ := f.Format(diff)
	t.Errorf("JSON mismatch:\n%s", text)
	return false
}

// MustJSON marshals v or panics
func MustJSON(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		panic(fmt.Sprintf("marshal %T: %v", v, err))
	}
	return string(data)
}

func dropFields(v interface{}, names map[string]struct{}) {
	switch node := v.(type) {
	case map[string]interface{}:
		for k, child := range node {
			if _, drop := names[k]; drop {
				delete(node, k)
				continue
			}
			dropFields(child, names)
		}
	case []interface{}:
		for _, child := range node {
			dropFields(child, names)
		}
	}
}

// pruneExtraKeys removes keys from actual that expected does not mention.
// Arrays are walked pairwise by index.
func pruneExtraKeys(actual, expected interface{}) {
	switch act := actual.(type) {
	case map[string]interface{}:
		exp, ok := expected.(map[string]interface{})
		if !ok {
			return
		}
		for k, child := range act {
			expChild, known := exp[k]
			if !known {
				delete(act, k)
				continue
			}
			pruneExtraKeys(child, expChild)
		}
	case []interface{}:
		exp, ok := expected.([]interface{})
		if !ok {
			return
		}
		for i := range act {
			if i < len(exp) {
				pruneExtraKeys(act[i], exp[i])
			}
		}
	}
}
