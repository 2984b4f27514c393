package services

import (
	"fmt"
	"reflect"
	"testing"
)

type setIndex map[string]struct{}

func (s setIndex) Known(name string) bool {
	_, ok := s[name]
	return ok
}

func names(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("artist %03d", i)
	}
	return out
}

func TestSamplerDeterministic(t *testing.T) {
	s := NewSampler(setIndex{}, newTestLogger())
	a := s.Next(names(200), 42, 20)
	b := s.Next(names(200), 42, 20)
	if !reflect.DeepEqual(a, b) {
		t.Errorf("same seed gave different batches:\n%q\n%q", a, b)
	}
	if len(a) != 20 {
		t.Errorf("batch size: got %d, want 20", len(a))
	}

	c := s.Next(names(200), 43, 20)
	if reflect.DeepEqual(a, c) {
		t.Error("different seeds should give different batches")
	}
}

func TestSamplerResumesDisjoint(t *testing.T) {
	known := setIndex{}
	s := NewSampler(known, newTestLogger())
	all := names(300)

	first := s.Next(all, 7, 50)
	for _, n := range first {
		known[n] = struct{}{}
	}
	second := s.Next(all, 7, 50)

	if len(second) != 50 {
		t.Fatalf("second batch size: got %d, want 50", len(second))
	}
	for _, n := range second {
		if _, dup := known[n]; dup {
			t.Errorf("name %q appears in both batches", n)
		}
	}
}

func TestSamplerPrefixStable(t *testing.T) {
	s := NewSampler(setIndex{}, newTestLogger())
	small := s.Next(names(100), 1, 10)
	large := s.Next(names(100), 1, 30)
	if !reflect.DeepEqual(small, large[:10]) {
		t.Errorf("a larger draw should extend the smaller one: %q vs %q", small, large[:10])
	}
}

func TestSamplerExhausted(t *testing.T) {
	all := names(5)
	known := setIndex{all[0]: {}, all[3]: {}}
	s := NewSampler(known, newTestLogger())

	got := s.Next(all, 42, 10)
	if len(got) != 3 {
		t.Errorf("exhausted batch: got %d names, want 3", len(got))
	}
	if s.Next(nil, 42, 10) != nil {
		t.Error("empty name set should give nil")
	}
}

func TestSamplerZeroDrawsAllUnseen(t *testing.T) {
	all := names(5)
	known := setIndex{all[1]: {}}
	s := NewSampler(known, newTestLogger())

	got := s.Next(all, 42, 0)
	if len(got) != 4 {
		t.Fatalf("n=0: got %d names, want 4", len(got))
	}
	for _, n := range got {
		if n == all[1] {
			t.Errorf("known name %q was drawn", n)
		}
	}
	if want := s.Next(all, 42, 4); !reflect.DeepEqual(got, want) {
		t.Errorf("n=0 should follow the seeded order: %q vs %q", got, want)
	}
}
