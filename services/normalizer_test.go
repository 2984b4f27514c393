package services

import (
	"reflect"
	"testing"

	"artist-census/utils"
)

func newTestLogger() *utils.Logger { return utils.NewNopLogger() }

func TestNormalizerExample(t *testing.T) {
	n := NewNormalizer(newTestLogger())

	// "" stands in for the null cells a name source may contain
	got := n.Normalize([]string{"Aphex Twin", "aphex twin", "", "", "[unknown]"})
	want := []string{"aphex twin"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Normalize: got %q, want %q", got, want)
	}
}

func TestNormalizerCases(t *testing.T) {
	n := NewNormalizer(newTestLogger())

	tests := []struct {
		raw  []string
		want []string
	}{
		{[]string{"  Boards of Canada  "}, []string{"boards of canada"}},
		{[]string{"   "}, []string{}},
		{[]string{"Autechre", "Aphex Twin", "AUTECHRE"}, []string{"autechre", "aphex twin"}},
		{[]string{"[data]", "foo]", "[bar"}, []string{}},
		{[]string{"Björk", "BJÖRK"}, []string{"björk"}},
		{nil, []string{}},
	}

	for _, tt := range tests {
		got := n.Normalize(tt.raw)
		if !reflect.DeepEqual(got, tt.want) {
			t.Errorf("Normalize(%q) = %q; want %q", tt.raw, got, tt.want)
		}
	}
}

func TestNormalizerIsFixedPoint(t *testing.T) {
	n := NewNormalizer(newTestLogger())
	raw := []string{"B", " a ", "b", "[x]", "", "C", "a", "  d  "}

	once := n.Normalize(raw)
	twice := n.Normalize(once)
	if !reflect.DeepEqual(once, twice) {
		t.Errorf("Normalize is not idempotent: %q then %q", once, twice)
	}
}
