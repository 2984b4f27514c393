package services

import (
	"reflect"
	"testing"
)

func TestFindGenres(t *testing.T) {
	keywords := []string{"hip hop", "rock", "singer-songwriter", "pop", "jazz"}

	tests := []struct {
		bio  string
		want []string
	}{
		{"A Hip-Hop collective from Leeds.", []string{"hip hop"}},
		{"Rock, pop and everything between", []string{"rock", "pop"}},
		{"Folk singer/songwriter with jazz leanings", []string{"singer-songwriter", "jazz"}},
		{"Pioneers of rockabilly and popular song", nil},
		{"", nil},
	}

	for _, tt := range tests {
		got := FindGenres(tt.bio, keywords)
		if !reflect.DeepEqual(got, tt.want) {
			t.Errorf("FindGenres(%q): got %q, want %q", tt.bio, got, tt.want)
		}
	}
}
