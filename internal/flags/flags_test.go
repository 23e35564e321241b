package flags

import (
	"errors"
	"testing"

	"subquestion-challenge-service/internal/domain"
)

func TestRegistryCompare(t *testing.T) {
	reg := NewRegistry()

	cases := []struct {
		name     string
		flag     domain.Flag
		provided string
		want     bool
	}{
		{"static exact", domain.Flag{Type: "static", Content: "flag{a}"}, "flag{a}", true},
		{"static case sensitive", domain.Flag{Type: "static", Content: "flag{a}"}, "FLAG{A}", false},
		{"static case insensitive", domain.Flag{Type: "static", Content: "flag{a}", Data: "case_insensitive"}, "FLAG{A}", true},
		{"regex full match", domain.Flag{Type: "regex", Content: `flag\{\d+\}`}, "flag{42}", true},
		{"regex is anchored", domain.Flag{Type: "regex", Content: `flag\{\d+\}`}, "xflag{42}", false},
		{"regex case insensitive", domain.Flag{Type: "regex", Content: `abc`, Data: "case_insensitive"}, "ABC", true},
		{"broken regex never matches", domain.Flag{Type: "regex", Content: `(`}, "(", false},
	}
	for _, tc := range cases {
		got, err := reg.Compare(tc.flag, tc.provided)
		if err != nil {
			t.Fatalf("%s: unexpected error %v", tc.name, err)
		}
		if got != tc.want {
			t.Fatalf("%s: got %v want %v", tc.name, got, tc.want)
		}
	}
}

func TestRegistryUnknownType(t *testing.T) {
	reg := NewRegistry()
	_, err := reg.Compare(domain.Flag{Type: "oracle"}, "x")
	if !errors.Is(err, domain.ErrUnknownFlagType) {
		t.Fatalf("expected unknown flag type, got %v", err)
	}

	reg.Register("oracle", ComparatorFunc(func(domain.Flag, string) (bool, error) { return true, nil }))
	ok, err := reg.Compare(domain.Flag{Type: "oracle"}, "x")
	if err != nil || !ok {
		t.Fatalf("expected registered comparator to match, got %v %v", ok, err)
	}
}
