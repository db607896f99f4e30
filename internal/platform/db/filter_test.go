package db

import (
	"testing"
)

func TestFilter_Empty(t *testing.T) {
	var f Filter
	if f.Where() != "" {
		t.Errorf("expected empty where, got %q", f.Where())
	}
	suffix, args := f.Page(20, 0)
	if suffix != " LIMIT $1 OFFSET $2" {
		t.Errorf("unexpected page suffix %q", suffix)
	}
	if len(args) != 2 || args[0] != 20 || args[1] != 0 {
		t.Errorf("unexpected args %v", args)
	}
}

func TestFilter_Placeholders(t *testing.T) {
	var f Filter
	f.Add("patient_id = $%d", "p1")
	f.AddRaw("is_confidential = FALSE")
	f.Add("status = $%d", "scheduled")

	want := " WHERE patient_id = $1 AND is_confidential = FALSE AND status = $2"
	if f.Where() != want {
		t.Errorf("got %q, want %q", f.Where(), want)
	}

	suffix, args := f.Page(10, 30)
	if suffix != " LIMIT $3 OFFSET $4" {
		t.Errorf("unexpected page suffix %q", suffix)
	}
	if len(args) != 4 || len(f.Args()) != 2 {
		t.Errorf("page args must not alias filter args: %v / %v", args, f.Args())
	}
}
