// Builds the schema header stored on the first line of each table file.

package jsonldb

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/invopop/jsonschema"
)

// formatVersion is the version of the JSONL file layout, not of the collection.
const formatVersion = "1.0"

var (
	errFormatVersionRequired = errors.New("format version is required")
	errInvalidDBVersion      = errors.New("collection version must be at least 1")
)

type columnType string

const (
	columnTypeText   columnType = "text"
	columnTypeNumber columnType = "number"
	columnTypeBool   columnType = "bool"
	columnTypeDate   columnType = "date"
	columnTypeJSON   columnType = "json"
)

type column struct {
	Name        string     `json:"name"`
	Type        columnType `json:"type"`
	Required    bool       `json:"required,omitempty"`
	Nullable    bool       `json:"nullable,omitempty"`
	Description string     `json:"description,omitempty"`
}

// schemaHeader is the first line of a table file.
type schemaHeader struct {
	Version   string   `json:"version"`
	DBVersion int      `json:"db_version"`
	Key       string   `json:"key"`
	Columns   []column `json:"columns"`
}

// Validate checks that the header is well-formed.
func (h *schemaHeader) Validate() error {
	if h.Version == "" {
		return errFormatVersionRequired
	}
	if h.DBVersion < 1 {
		return errInvalidDBVersion
	}
	for i, col := range h.Columns {
		if col.Name == "" {
			return fmt.Errorf("column %d: name is required", i)
		}
		if col.Type == "" {
			return fmt.Errorf("column %d: type is required", i)
		}
	}
	return nil
}

func newSchemaHeader[T any](dbVersion int) (schemaHeader, error) {
	cols, err := columnsFromType[T]()
	if err != nil {
		return schemaHeader{}, err
	}
	return schemaHeader{Version: formatVersion, DBVersion: dbVersion, Key: "id", Columns: cols}, nil
}

// columnsFromType reflects the JSON Schema of T into column definitions.
//
// Descriptions come from `jsonschema:"description=..."` tags; required fields
// are the ones without omitempty.
func columnsFromType[T any]() ([]column, error) {
	t := reflect.TypeFor[T]()
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return nil, fmt.Errorf("row type must be a struct or pointer to struct, got %s", t.Kind())
	}

	r := jsonschema.Reflector{Anonymous: true, DoNotReference: true}
	schema := r.ReflectFromType(t)
	required := make(map[string]bool, len(schema.Required))
	for _, name := range schema.Required {
		required[name] = true
	}

	fields := make(map[string]reflect.StructField, t.NumField())
	for i := range t.NumField() {
		f := t.Field(i)
		if f.IsExported() {
			fields[jsonName(&f)] = f
		}
	}

	var cols []column
	for pair := schema.Properties.Oldest(); pair != nil; pair = pair.Next() {
		col := column{
			Name:        pair.Key,
			Type:        columnTypeText,
			Required:    required[pair.Key],
			Description: pair.Value.Description,
		}
		if f, ok := fields[pair.Key]; ok {
			col.Type = goTypeToColumnType(f.Type)
			col.Nullable = f.Type.Kind() == reflect.Pointer
		}
		cols = append(cols, col)
	}
	return cols, nil
}

func jsonName(f *reflect.StructField) string {
	tag := f.Tag.Get("json")
	name, _, _ := strings.Cut(tag, ",")
	if name == "" || name == "-" {
		return f.Name
	}
	return name
}

func goTypeToColumnType(t reflect.Type) columnType {
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t == reflect.TypeFor[time.Time]() {
		return columnTypeDate
	}
	switch t.Kind() { //nolint:exhaustive // Everything else is stored as text.
	case reflect.String:
		return columnTypeText
	case reflect.Bool:
		return columnTypeBool
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return columnTypeNumber
	case reflect.Struct, reflect.Slice, reflect.Array, reflect.Map:
		return columnTypeJSON
	default:
		return columnTypeText
	}
}
