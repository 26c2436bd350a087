package jsonldb

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
)

// testRow is a simple row type for testing.
type testRow struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

func (r *testRow) Clone() *testRow {
	c := *r
	return &c
}

func (r *testRow) GetID() string {
	return r.ID
}

func (r *testRow) Validate() error {
	if r.ID == "" {
		return errors.New("id is required")
	}
	return nil
}

// setupTable creates a version 1 table in the test's temp directory.
func setupTable(t *testing.T) (*Table[*testRow], string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.jsonl")
	table, _, err := newTable[*testRow](path, 1)
	if err != nil {
		t.Fatalf("newTable failed: %v", err)
	}
	return table, path
}

func reload(t *testing.T, path string) *Table[*testRow] {
	t.Helper()
	table, upgraded, err := newTable[*testRow](path, 1)
	if err != nil {
		t.Fatalf("reload failed: %v", err)
	}
	if upgraded {
		t.Error("reload at the same version reported an upgrade")
	}
	return table
}

func ids(table *Table[*testRow]) []string {
	var out []string
	for r := range table.All() {
		out = append(out, r.ID)
	}
	return out
}

func TestTable(t *testing.T) {
	t.Run("create", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "sub", "test.jsonl")
		table, upgraded, err := newTable[*testRow](path, 1)
		if err != nil {
			t.Fatal(err)
		}
		if !upgraded {
			t.Error("new file did not report an upgrade")
		}
		if table.Len() != 0 || table.Version() != 1 {
			t.Errorf("Len() = %d, Version() = %d", table.Len(), table.Version())
		}
		data, err := os.ReadFile(path)
		if err != nil {
			t.Fatal(err)
		}
		if !strings.Contains(string(data), `"db_version":1`) {
			t.Errorf("header not written: %s", data)
		}
	})

	t.Run("invalid version", func(t *testing.T) {
		if _, _, err := newTable[*testRow](filepath.Join(t.TempDir(), "x.jsonl"), 0); err == nil {
			t.Error("version 0 accepted")
		}
	})

	t.Run("Append", func(t *testing.T) {
		table, path := setupTable(t)
		for _, id := range []string{"b", "a", "c"} {
			if err := table.Append(&testRow{ID: id, Name: strings.ToUpper(id)}); err != nil {
				t.Fatalf("Append(%s): %v", id, err)
			}
		}

		t.Run("duplicate", func(t *testing.T) {
			err := table.Append(&testRow{ID: "a", Name: "again"})
			if !errors.Is(err, ErrDuplicateKey) {
				t.Errorf("Append duplicate = %v, want ErrDuplicateKey", err)
			}
			if got := table.Get("a"); got.Name != "A" {
				t.Errorf("duplicate append modified row: %+v", got)
			}
		})

		t.Run("invalid", func(t *testing.T) {
			if err := table.Append(&testRow{}); err == nil {
				t.Error("Append accepted a row without id")
			}
		})

		t.Run("insertion order", func(t *testing.T) {
			if got, want := ids(table), []string{"b", "a", "c"}; !slices.Equal(got, want) {
				t.Errorf("All() = %v, want %v", got, want)
			}
		})

		t.Run("persistence", func(t *testing.T) {
			table2 := reload(t, path)
			if got, want := ids(table2), []string{"b", "a", "c"}; !slices.Equal(got, want) {
				t.Errorf("reloaded All() = %v, want %v", got, want)
			}
		})
	})

	t.Run("Get", func(t *testing.T) {
		table, _ := setupTable(t)
		_ = table.Append(&testRow{ID: "x", Name: "Original"})

		tests := []struct {
			name  string
			id    string
			found bool
		}{
			{"existing", "x", true},
			{"missing", "nope", false},
			{"empty", "", false},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				got := table.Get(tt.id)
				if (got != nil) != tt.found {
					t.Errorf("Get(%q) = %+v, found want %v", tt.id, got, tt.found)
				}
			})
		}

		t.Run("returns clone", func(t *testing.T) {
			got := table.Get("x")
			got.Name = "Modified"
			if table.Get("x").Name != "Original" {
				t.Error("Get() returned reference instead of clone")
			}
		})
	})

	t.Run("Update", func(t *testing.T) {
		table, path := setupTable(t)
		_ = table.Append(&testRow{ID: "1", Name: "Original"})
		_ = table.Append(&testRow{ID: "2", Name: "Two"})

		t.Run("existing", func(t *testing.T) {
			prev, err := table.Update(&testRow{ID: "1", Name: "Updated"})
			if err != nil {
				t.Fatal(err)
			}
			if prev == nil || prev.Name != "Original" {
				t.Errorf("Update() prev = %+v, want Name=Original", prev)
			}
			if got := table.Get("1"); got.Name != "Updated" {
				t.Errorf("Get() after Update = %+v", got)
			}
		})

		t.Run("missing inserts", func(t *testing.T) {
			prev, err := table.Update(&testRow{ID: "3", Name: "New"})
			if err != nil {
				t.Fatal(err)
			}
			if prev != nil {
				t.Errorf("Update() prev = %+v, want nil", prev)
			}
			if table.Len() != 3 {
				t.Errorf("Len() = %d, want 3", table.Len())
			}
		})

		t.Run("persistence", func(t *testing.T) {
			table2 := reload(t, path)
			if got, want := ids(table2), []string{"1", "2", "3"}; !slices.Equal(got, want) {
				t.Errorf("reloaded All() = %v, want %v", got, want)
			}
			if got := table2.Get("1"); got.Name != "Updated" {
				t.Errorf("reloaded row = %+v", got)
			}
		})

		t.Run("append after rewrite", func(t *testing.T) {
			if err := table.Append(&testRow{ID: "4"}); err != nil {
				t.Fatal(err)
			}
			if reload(t, path).Len() != 4 {
				t.Error("append after rewrite not persisted")
			}
		})
	})

	t.Run("Delete", func(t *testing.T) {
		table, path := setupTable(t)
		for _, id := range []string{"1", "2", "3"} {
			_ = table.Append(&testRow{ID: id})
		}

		deleted, err := table.Delete("2")
		if err != nil || !deleted {
			t.Fatalf("Delete(2) = %v, %v", deleted, err)
		}
		deleted, err = table.Delete("2")
		if err != nil || deleted {
			t.Errorf("second Delete(2) = %v, %v, want false, nil", deleted, err)
		}
		if table.Get("3") == nil {
			t.Error("index not rebuilt after delete")
		}
		if got, want := ids(reload(t, path)), []string{"1", "3"}; !slices.Equal(got, want) {
			t.Errorf("reloaded All() = %v, want %v", got, want)
		}
	})

	t.Run("Replace", func(t *testing.T) {
		table, path := setupTable(t)
		_ = table.Append(&testRow{ID: "old"})

		if err := table.Replace([]*testRow{{ID: "a"}, {ID: "a"}}); !errors.Is(err, ErrDuplicateKey) {
			t.Errorf("Replace with duplicates = %v, want ErrDuplicateKey", err)
		}
		if err := table.Replace([]*testRow{{ID: "a"}, {ID: "b"}}); err != nil {
			t.Fatal(err)
		}
		if got, want := ids(reload(t, path)), []string{"a", "b"}; !slices.Equal(got, want) {
			t.Errorf("reloaded All() = %v, want %v", got, want)
		}
	})

	t.Run("All early break", func(t *testing.T) {
		table, _ := setupTable(t)
		for _, id := range []string{"1", "2", "3"} {
			_ = table.Append(&testRow{ID: id})
		}
		n := 0
		for range table.All() {
			n++
			if n == 2 {
				break
			}
		}
		if n != 2 {
			t.Errorf("iterated %d rows, want 2", n)
		}
	})
}

func TestTableLoadErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"bad header", "not json\n"},
		{"header without version", `{"db_version":1}` + "\n"},
		{"bad row", `{"version":"1.0","db_version":1,"key":"id"}` + "\n{\n"},
		{"duplicate rows", `{"version":"1.0","db_version":1,"key":"id"}` + "\n" + `{"id":"a"}` + "\n" + `{"id":"a"}` + "\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "t.jsonl")
			if err := os.WriteFile(path, []byte(tt.content), 0o600); err != nil {
				t.Fatal(err)
			}
			if _, _, err := newTable[*testRow](path, 1); err == nil {
				t.Error("newTable succeeded on a corrupt file")
			}
		})
	}

	t.Run("empty file is new", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "t.jsonl")
		if err := os.WriteFile(path, nil, 0o600); err != nil {
			t.Fatal(err)
		}
		_, upgraded, err := newTable[*testRow](path, 1)
		if err != nil || !upgraded {
			t.Errorf("newTable on empty file = %v, upgraded %v", err, upgraded)
		}
	})
}

func TestTableVersions(t *testing.T) {
	ctx := context.Background()
	db, err := Open(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	v1, err := OpenTable[*testRow](ctx, db, "rows", 1)
	if err != nil {
		t.Fatal(err)
	}
	_ = v1.Append(&testRow{ID: "kept", Name: "Kept"})

	t.Run("upgrade keeps rows", func(t *testing.T) {
		v2, err := OpenTable[*testRow](ctx, db, "rows", 2)
		if err != nil {
			t.Fatal(err)
		}
		if v2.Version() != 2 {
			t.Errorf("Version() = %d, want 2", v2.Version())
		}
		if got := v2.Get("kept"); got == nil || got.Name != "Kept" {
			t.Errorf("row lost on upgrade: %+v", got)
		}
	})

	t.Run("downgrade fails", func(t *testing.T) {
		db2, err := Open(db.Dir())
		if err != nil {
			t.Fatal(err)
		}
		if _, err := OpenTable[*testRow](ctx, db2, "rows", 1); !errors.Is(err, ErrVersion) {
			t.Errorf("OpenTable at lower version = %v, want ErrVersion", err)
		}
	})
}
