package jsonldb

import (
	"testing"
	"time"
)

type schemaRow struct {
	ID      string    `json:"id" jsonschema:"description=Primary key"`
	Image   *string   `json:"image"`
	Price   float64   `json:"price"`
	Active  bool      `json:"active"`
	Tags    []string  `json:"tags,omitempty"`
	Created time.Time `json:"created"`
	hidden  string
}

func (r *schemaRow) Clone() *schemaRow { c := *r; return &c }
func (r *schemaRow) GetID() string     { return r.ID }
func (r *schemaRow) Validate() error   { return nil }

func TestColumnsFromType(t *testing.T) {
	cols, err := columnsFromType[*schemaRow]()
	if err != nil {
		t.Fatal(err)
	}
	byName := map[string]column{}
	for _, c := range cols {
		byName[c.Name] = c
	}
	tests := []struct {
		name     string
		typ      columnType
		required bool
		nullable bool
	}{
		{"id", columnTypeText, true, false},
		{"image", columnTypeText, true, true},
		{"price", columnTypeNumber, true, false},
		{"active", columnTypeBool, true, false},
		{"tags", columnTypeJSON, false, false},
		{"created", columnTypeDate, true, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, ok := byName[tt.name]
			if !ok {
				t.Fatalf("column %q missing from %+v", tt.name, cols)
			}
			if c.Type != tt.typ || c.Required != tt.required || c.Nullable != tt.nullable {
				t.Errorf("column = %+v, want type=%s required=%v nullable=%v", c, tt.typ, tt.required, tt.nullable)
			}
		})
	}
	if byName["id"].Description != "Primary key" {
		t.Errorf("description = %q", byName["id"].Description)
	}
	if _, ok := byName["hidden"]; ok {
		t.Error("unexported field reflected")
	}

	t.Run("non struct", func(t *testing.T) {
		if _, err := columnsFromType[string](); err == nil {
			t.Error("columnsFromType[string] succeeded")
		}
	})
}

func TestSchemaHeaderValidate(t *testing.T) {
	tests := []struct {
		name    string
		h       schemaHeader
		wantErr bool
	}{
		{"valid", schemaHeader{Version: formatVersion, DBVersion: 1, Columns: []column{{Name: "id", Type: columnTypeText}}}, false},
		{"no version", schemaHeader{DBVersion: 1}, true},
		{"zero db version", schemaHeader{Version: formatVersion}, true},
		{"unnamed column", schemaHeader{Version: formatVersion, DBVersion: 1, Columns: []column{{Type: columnTypeText}}}, true},
		{"untyped column", schemaHeader{Version: formatVersion, DBVersion: 1, Columns: []column{{Name: "id"}}}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.h.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
