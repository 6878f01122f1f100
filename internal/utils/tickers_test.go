package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseTickers(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []string
	}{
		{name: "empty string", input: "", expected: nil},
		{name: "whitespace only", input: "   ", expected: nil},
		{name: "only commas", input: ",,,", expected: nil},
		{name: "single", input: "AAPL", expected: []string{"AAPL"}},
		{name: "trims and upper-cases", input: " aapl , msft,jpm ", expected: []string{"AAPL", "MSFT", "JPM"}},
		{name: "drops empty entries", input: "AAPL,,MSFT,", expected: []string{"AAPL", "MSFT"}},
		{name: "dedupes preserving order", input: "MSFT,AAPL,msft", expected: []string{"MSFT", "AAPL"}},
		{name: "keeps class suffixes", input: "BRK-B,BF.B", expected: []string{"BRK-B", "BF.B"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ParseTickers(tt.input))
		})
	}
}
