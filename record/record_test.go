package record

import (
	"testing"
)

func names(records []Record) []string {
	out := make([]string, len(records))
	for i, r := range records {
		out[i] = r.Name
	}
	return out
}

func TestSortByteWise(t *testing.T) {
	in := []Record{
		{Name: "jump", Value: 1},
		{Name: "Zoom", Value: 2},
		{Name: "attack2", Value: 3},
		{Name: "attack", Value: 4},
		{Name: "éclair", Value: 5},
		{Name: "_under", Value: 6},
	}

	out := Sort(in)

	exp := []string{"Zoom", "_under", "attack", "attack2", "jump", "éclair"}
	got := names(out)
	for i := range exp {
		if got[i] != exp[i] {
			t.Fatalf("expected %v - got %v", exp, got)
		}
	}

	if in[0].Name != "jump" {
		t.Fatalf("expected input to stay untouched - got %v", names(in))
	}
}

func TestSortKeepsDuplicates(t *testing.T) {
	out := Sort([]Record{{Name: "b", Value: 1}, {Name: "a", Value: 2}, {Name: "b", Value: 3}})

	if len(out) != 3 {
		t.Fatalf("expected 3 records - got %d", len(out))
	}

	if out[1].Value != 1 || out[2].Value != 3 {
		t.Fatalf("expected duplicate names in input order - got %v", out)
	}
}

func TestSortEmpty(t *testing.T) {
	if out := Sort(nil); len(out) != 0 {
		t.Fatalf("expected empty result - got %v", out)
	}
}

func TestAbsolute(t *testing.T) {
	r := Record{Name: "attack", Value: 0x30}
	if got := r.Absolute(0x7f0000000000); got != 0x7f0000000030 {
		t.Fatalf("expected 0x7F0000000030 - got %s", got.ToString())
	}

	if r.String() != "attack = 0x30" {
		t.Fatalf("unexpected String() %q", r.String())
	}
}
