// Package schema declares the per-table extraction configuration: API
// paths, requested columns, filters, key classification, and list-valued
// column handling. Schemas are static data constructed before any
// extraction starts; the transformation pipeline and the orchestrator are
// driven entirely by them.
package schema

import "strings"

// Source identifies where a table's records come from. It is a tagged
// union with exactly two cases: DirectSource (a plain API path) and
// ChildSource (records reachable only through identifiers of a parent
// table). Call sites switch exhaustively on the concrete type.
type Source interface {
	isSource()
}

// DirectSource is an API path fetched directly, e.g. "tickets" or
// "tickets/categories".
type DirectSource struct {
	Path string
}

// ChildSource describes a per-parent nested collection: records are
// fetched from {Parent}/{parentID}/{Child} for every identifier taken
// from the Requirement table/column.
type ChildSource struct {
	Parent      string
	Child       string
	Requirement Requirement
}

// Requirement names the parent table and column that supply identifiers
// for a child table.
type Requirement struct {
	Table  string
	Column string
}

func (DirectSource) isSource() {}
func (ChildSource) isSource()  {}

// Filter is one API filter. A nil Value is a date-window placeholder
// resolved by the caller before the filter reaches the client.
type Filter struct {
	Field    string
	Operator string
	Value    *string
}

// TableSchema is the immutable declaration of one extractable table.
type TableSchema struct {
	Name   string
	Source Source

	// Columns is an ordered allow-list; empty means all columns.
	Columns []string

	Filters []Filter

	// Key classification. Primary and secondary keys feed the derived
	// row identifier, in that order; all three classes receive tenant
	// namespacing unless listed in NoPrefixColumns.
	PrimaryKeys   []string
	SecondaryKeys []string
	Keys          []string

	// ListColumns are exploded one row per element.
	ListColumns []string

	// ListOfObjectColumns are exploded one row per element with the
	// element's fields flattened under the column name.
	ListOfObjectColumns []string

	NoPrefixColumns []string
}

// HasDependency reports whether the table requires parent identifiers.
func (t *TableSchema) HasDependency() bool {
	_, ok := t.Source.(ChildSource)
	return ok
}

// APIPath returns the path requested from the API: the direct path, or
// the parent path for child tables.
func (t *TableSchema) APIPath() string {
	switch s := t.Source.(type) {
	case DirectSource:
		return s.Path
	case ChildSource:
		return s.Parent
	default:
		return ""
	}
}

// ChildPath returns the nested collection path for child tables, or ""
// for direct tables.
func (t *TableSchema) ChildPath() string {
	if s, ok := t.Source.(ChildSource); ok {
		return s.Child
	}
	return ""
}

// ParentTable returns the requirement table for child tables, or "".
func (t *TableSchema) ParentTable() string {
	if s, ok := t.Source.(ChildSource); ok {
		return s.Requirement.Table
	}
	return ""
}

// ParentColumn returns the requirement column for child tables, or "".
func (t *TableSchema) ParentColumn() string {
	if s, ok := t.Source.(ChildSource); ok {
		return s.Requirement.Column
	}
	return ""
}

// IsNoPrefix reports whether a key column, named in output form, is
// exempt from tenant prefixing.
func (t *TableSchema) IsNoPrefix(column string) bool {
	for _, c := range t.NoPrefixColumns {
		if NormalizeColumn(c) == column {
			return true
		}
	}
	return false
}

// NormalizeColumn rewrites dotted source column names to their flattened
// output form ("queue.name" -> "queue_name").
func NormalizeColumn(name string) string {
	return strings.ReplaceAll(name, ".", "_")
}
