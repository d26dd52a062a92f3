package geo

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolve(t *testing.T) {
	var r Resolver

	assert.Equal(t, "San Francisco", r.Resolve("SFO"))
	assert.Equal(t, "San Francisco", r.Resolve(" sfo "))
	assert.Equal(t, "New York", r.Resolve("NYC"))
	assert.Equal(t, "Timbuktu", r.Resolve("Timbuktu"))
	assert.Equal(t, "XYZ", r.Resolve("XYZ"))
	assert.Equal(t, "", r.Resolve(""))
}

func TestResolve_Extra(t *testing.T) {
	r := NewResolver(map[string]string{"cdg": "Paris"})

	assert.Equal(t, "Paris", r.Resolve("CDG"))
	assert.Equal(t, "Boston", r.Resolve("BOS"))
}

func TestExtractRoute(t *testing.T) {
	cases := []struct {
		in       string
		from, to string
		ok       bool
	}{
		{"flight from Boston to San Diego next week", "Boston", "San Diego", true},
		{"Fly from SFO to JFK on May 3", "SFO", "JFK", true},
		{"I need a ticket from New York to Salt Lake City in June, please", "New York", "Salt Lake City", true},
		{"find me a hotel in Denver", "", "", false},
		{"from to", "", "", false},
	}
	for _, tc := range cases {
		t.Run(tc.in, func(t *testing.T) {
			r, ok := ExtractRoute(tc.in)
			assert.Equal(t, tc.ok, ok)
			assert.Equal(t, tc.from, r.From)
			assert.Equal(t, tc.to, r.To)
		})
	}
}
