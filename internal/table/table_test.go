package table

import (
	"strings"
	"testing"
)

func TestIsNA(t *testing.T) {
	tests := []struct {
		value string
		want  bool
	}{
		{"", true},
		{"  ", true},
		{"NA", true},
		{"NaN", true},
		{"nan", true},
		{"n/a", true},
		{"null", true},
		{"None", true},
		{"0", false},
		{"portland", false},
		{"nano", false},
	}
	for _, tt := range tests {
		if got := IsNA(tt.value); got != tt.want {
			t.Errorf("IsNA(%q) = %v, want %v", tt.value, got, tt.want)
		}
	}
}

func TestReadCSVAssignsSequentialKeys(t *testing.T) {
	in := "a,b\n1,x\n2,y\n3,z\n"
	tbl, err := ReadCSV(strings.NewReader(in))
	if err != nil {
		t.Fatalf("ReadCSV failed: %v", err)
	}
	if len(tbl.Rows) != 3 {
		t.Fatalf("Expected 3 rows, got %d", len(tbl.Rows))
	}
	for i, row := range tbl.Rows {
		if row.Key != i {
			t.Errorf("Row %d has key %d", i, row.Key)
		}
	}
	if tbl.Rows[1].Get("b") != "y" {
		t.Errorf("Expected cell y, got %q", tbl.Rows[1].Get("b"))
	}
}

func TestReadCSVEmptyInput(t *testing.T) {
	if _, err := ReadCSV(strings.NewReader("")); err == nil {
		t.Error("Expected error for empty input")
	}
}

func TestFilterPreservesKeys(t *testing.T) {
	tbl, err := ReadCSV(strings.NewReader("v\na\nb\nc\nd\n"))
	if err != nil {
		t.Fatalf("ReadCSV failed: %v", err)
	}
	filtered := tbl.Filter(func(r Row) bool { return r.Get("v") != "b" })
	keys := filtered.Keys()
	want := []int{0, 2, 3}
	if len(keys) != len(want) {
		t.Fatalf("Expected %d rows, got %d", len(want), len(keys))
	}
	for i := range want {
		if keys[i] != want[i] {
			t.Errorf("Key %d: got %d, want %d", i, keys[i], want[i])
		}
	}
	if len(tbl.Rows) != 4 {
		t.Error("Filter mutated its input")
	}
}

func TestCloneIsDeep(t *testing.T) {
	tbl, _ := ReadCSV(strings.NewReader("v\nx\n"))
	clone := tbl.Clone()
	clone.Rows[0].Cells["v"] = "changed"
	if tbl.Rows[0].Get("v") != "x" {
		t.Error("Clone shares cell storage with the original")
	}
}

func TestWriteCSVRoundTrip(t *testing.T) {
	in := "a,b\n1,x\n2,y\n"
	tbl, err := ReadCSV(strings.NewReader(in))
	if err != nil {
		t.Fatalf("ReadCSV failed: %v", err)
	}
	var out strings.Builder
	if err := tbl.WriteCSV(&out); err != nil {
		t.Fatalf("WriteCSV failed: %v", err)
	}
	if out.String() != in {
		t.Errorf("Round trip mismatch: got %q, want %q", out.String(), in)
	}
}

func TestDropColumn(t *testing.T) {
	tbl, _ := ReadCSV(strings.NewReader("a,b\n1,x\n"))
	tbl.DropColumn("a")
	if tbl.HasColumn("a") {
		t.Error("Column a still present after drop")
	}
	if _, ok := tbl.Rows[0].Cells["a"]; ok {
		t.Error("Cell for dropped column still present")
	}
}

func TestParseHelpers(t *testing.T) {
	if _, ok := ParseFloat("nan"); ok {
		t.Error("ParseFloat accepted a missing marker")
	}
	if f, ok := ParseFloat(" 2.5 "); !ok || f != 2.5 {
		t.Errorf("ParseFloat(\" 2.5 \") = %v, %v", f, ok)
	}
	if n, ok := ParseInt("2.0"); !ok || n != 2 {
		t.Errorf("ParseInt(\"2.0\") = %v, %v", n, ok)
	}
	if _, ok := ParseInt("two"); ok {
		t.Error("ParseInt accepted a non-number")
	}
}
