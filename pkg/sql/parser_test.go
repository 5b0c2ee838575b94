package sql

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"neurocost/pkg/common"
)

func TestCountJoins(t *testing.T) {
	tests := []struct {
		sql  string
		want int
	}{
		{"SELECT * FROM a", 0},
		{"select * from a join b on a.id = b.id", 1},
		{"SELECT a.x, b.y FROM a JOIN b ON a.id=b.id LEFT JOIN c ON c.id=b.id", 3},
		{"SELECT * FROM a, b, c", 2},
	}
	for _, tt := range tests {
		if got := CountJoins(tt.sql); got != tt.want {
			t.Errorf("CountJoins(%q) = %d, want %d", tt.sql, got, tt.want)
		}
	}
}

func TestParseFrom(t *testing.T) {
	tests := []struct {
		sql   string
		items []string
		err   bool
	}{
		{"SELECT * FROM users", []string{"users"}, false},
		{"SELECT * FROM a JOIN b ON a.id = b.id WHERE a.x > 1", []string{"a", "b ON a.id = b.id"}, false},
		{"select * from orders o join lineitem l on o.k = l.k;", []string{"orders o", "lineitem l on o.k = l.k"}, false},
		{"SELECT * FROM a JOIN b ON a.id=b.id\nGROUP BY a.id", []string{"a", "b ON a.id=b.id"}, false},
		{"SELECT 1", nil, true},
		{"SELECT * FROM ;", nil, true},
	}
	for _, tt := range tests {
		fc, err := ParseFrom(tt.sql)
		if tt.err {
			if err == nil {
				t.Errorf("ParseFrom(%q): expected error", tt.sql)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseFrom(%q): %v", tt.sql, err)
			continue
		}
		if strings.Join(fc.Items, "|") != strings.Join(tt.items, "|") {
			t.Errorf("ParseFrom(%q): items=%q, want %q", tt.sql, fc.Items, tt.items)
		}
	}
}

func TestRewriteVariant(t *testing.T) {
	src := "SELECT * FROM a JOIN b ON a.id = b.id JOIN c ON c.id = b.id WHERE a.x = 1;"
	cheap := common.CandidatePlan{Tag: common.TagCheap}
	got := RewriteVariant(src, "q1.sql", cheap, 2.5)

	wantHeader := "-- LCM suggested variant for q1.sql\n-- tag: cheap_variant\n-- chosen_pred_ms: 2.5\n\n"
	if !strings.HasPrefix(got, wantHeader) {
		t.Fatalf("header mismatch:\n%s", got)
	}
	body := strings.TrimPrefix(got, wantHeader)
	want := "SELECT * FROM c ON c.id = b.id JOIN b ON a.id = b.id JOIN a WHERE a.x = 1;"
	if body != want {
		t.Errorf("cheap body:\n got %q\nwant %q", body, want)
	}

	base := RewriteVariant(src, "q1.sql", common.CandidatePlan{Tag: common.TagBaseline}, 4)
	if !strings.HasSuffix(base, src) {
		t.Errorf("baseline variant should keep the join order:\n%s", base)
	}

	plain := "SELECT count(*) FROM t"
	if got := RewriteVariant(plain, "q2.sql", cheap, 1); !strings.HasSuffix(got, "\n\n"+plain) {
		t.Errorf("statement without joins should be unchanged, got %q", got)
	}
}

func TestWriteVariant(t *testing.T) {
	root := t.TempDir()
	queries := filepath.Join(root, "queries")
	if err := os.MkdirAll(filepath.Join(queries, "medium"), 0755); err != nil {
		t.Fatal(err)
	}
	src := "SELECT * FROM a JOIN b ON a.id = b.id"
	if err := os.WriteFile(filepath.Join(queries, "medium", "q7.sql"), []byte(src), 0644); err != nil {
		t.Fatal(err)
	}
	out := filepath.Join(root, "variants")
	plan := common.CandidatePlan{Tag: common.TagCheap, JoinCount: 1, EstimatedCost: 10, EstimatedRows: 5}

	p, err := WriteVariant(out, queries, "q7.sql", plan, 3)
	if err != nil {
		t.Fatalf("WriteVariant: %v", err)
	}
	if filepath.Base(p) != "q7.sql.lcm_variant.sql" {
		t.Errorf("unexpected file name %s", p)
	}
	data, _ := os.ReadFile(p)
	if !strings.Contains(string(data), "FROM b ON a.id = b.id JOIN a") {
		t.Errorf("variant not rewritten:\n%s", data)
	}

	p, err = WriteVariant(out, queries, "nested/q9.sql", plan, 3)
	if err != nil {
		t.Fatalf("WriteVariant missing source: %v", err)
	}
	if filepath.Base(p) != "nested_q9.sql.lcm_variant.sql" {
		t.Errorf("unexpected file name %s", p)
	}
	data, _ = os.ReadFile(p)
	if !strings.HasPrefix(string(data), "-- Original SQL for nested/q9.sql not found") ||
		!strings.Contains(string(data), `"tag": "cheap_variant"`) {
		t.Errorf("unexpected note:\n%s", data)
	}
}

func TestWriteNoChoice(t *testing.T) {
	root := t.TempDir()
	queries := filepath.Join(root, "queries")
	if err := os.MkdirAll(filepath.Join(queries, "large"), 0755); err != nil {
		t.Fatal(err)
	}
	src := "SELECT * FROM a JOIN b ON a.id = b.id"
	if err := os.WriteFile(filepath.Join(queries, "large", "q3.sql"), []byte(src), 0644); err != nil {
		t.Fatal(err)
	}
	out := filepath.Join(root, "variants")

	p, err := WriteNoChoice(out, queries, "q3.sql")
	if err != nil {
		t.Fatalf("WriteNoChoice: %v", err)
	}
	data, _ := os.ReadFile(p)
	if want := NoChoiceHeader("q3.sql") + src; string(data) != want {
		t.Errorf("got %q, want %q", data, want)
	}

	p, err = WriteNoChoice(out, queries, "q4.sql")
	if err != nil {
		t.Fatalf("WriteNoChoice missing source: %v", err)
	}
	data, _ = os.ReadFile(p)
	if !strings.HasPrefix(string(data), "-- Original SQL for q4.sql not found") ||
		!strings.HasSuffix(string(data), "\n{}\n") {
		t.Errorf("unexpected note:\n%s", data)
	}
}
