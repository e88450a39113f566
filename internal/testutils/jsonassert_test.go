package testutils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAssertJSON(t *testing.T) {
	tests := []struct {
		name     string
		expected string
		actual   string
		opts     []JSONOption
		match    bool
	}{
		{"equal objects with different key order", `{"a":1,"b":[1,2]}`, `{"b":[1,2],"a":1}`, nil, true},
		{"root arrays", `[{"id":"x"}]`, `[{"id":"x"}]`, nil, true},
		{"value differs", `{"hr":72}`, `{"hr":73}`, nil, false},
		{"array order matters", `[1,2]`, `[2,1]`, nil, false},
		{"extra key", `{"id":"x"}`, `{"id":"x","rssi":-40}`, nil, false},
		{"extra key ignored", `[{"id":"x"}]`, `[{"id":"x","rssi":-40}]`, []JSONOption{IgnoreExtraKeys()}, true},
		{"missing key still fails", `{"id":"x","rssi":-40}`, `{"id":"x"}`, []JSONOption{IgnoreExtraKeys()}, false},
		{"ignored field", `{"id":"x","at":"t1"}`, `{"id":"x","at":"t2"}`, []JSONOption{IgnoreFields("at")}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &recordingT{}
			assert.Equal(t, tt.match, AssertJSON(rec, tt.expected, tt.actual, tt.opts...))
			assert.Equal(t, !tt.match, len(rec.failures) > 0)
		})
	}
}

func TestAssertJSONInvalidInput(t *testing.T) {
	rec := &recordingT{}
	assert.False(t, AssertJSON(rec, `{}`, `not json`))
	assert.Contains(t, rec.failures[0], "invalid actual JSON")
}

func TestMustJSON(t *testing.T) {
	assert.Equal(t, `{"id":"x"}`, MustJSON(map[string]string{"id": "x"}))
	assert.Panics(t, func() { MustJSON(make(chan int)) })
}
