// Package jsonldb is a small embedded object store built on JSONL files.
//
// # Overview
//
// A [Database] is a directory. Each collection inside it is a [Table], one
// JSONL file whose first line is a schema header and whose remaining lines are
// rows keyed by a string id. Tables keep every row in memory and are safe for
// concurrent use by multiple goroutines.
//
// # Versions
//
// [OpenTable] takes a collection version. The first open creates the file.
// Opening with a higher version than the one stored upgrades the header in
// place and keeps the rows. Opening with a lower version fails, because the
// file was written by a newer schema.
//
// # Writes
//
// [Table.Append] appends one line. Every other write holds the table lock for
// the whole read-modify-write and replaces the file through a temporary file
// and a rename, so a crash leaves either the old or the new content.
package jsonldb
