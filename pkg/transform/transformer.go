// Package transform turns raw API records into flat, tenant-qualified
// output rows.
//
// Each record passes through a fixed pipeline: nested objects are
// flattened, columns are filtered against the table's allow-list, list
// columns are exploded into one row per element, embedded-object lists
// are exploded and flattened, HTML markup is stripped from text values,
// the tenant is stamped into a leading server column, key values are
// prefixed with the tenant, and a deterministic id is derived from the
// key values. One input record can therefore yield any number of output
// rows.
package transform

import (
	"crypto/md5"
	"encoding/hex"
	"regexp"
	"strings"

	"github.com/jsvoboda/daktela-extractor/pkg/models"
	"github.com/jsvoboda/daktela-extractor/pkg/schema"
)

// htmlTagPattern matches HTML tags for removal from text values.
var htmlTagPattern = regexp.MustCompile(`<.*?>`)

// ServerColumn holds the tenant name and leads every output row.
const ServerColumn = "server"

// IDColumn holds the derived row identifier.
const IDColumn = "id"

// Transformer applies the row pipeline for one table of one tenant.
type Transformer struct {
	tenant string
	schema *schema.TableSchema
}

// New creates a transformer for the given tenant and table.
func New(tenant string, tableSchema *schema.TableSchema) *Transformer {
	return &Transformer{tenant: tenant, schema: tableSchema}
}

// Transform runs one record through the full pipeline.
func (t *Transformer) Transform(record *models.Record) []*Row {
	row := flatten(record)
	row = t.filterColumns(row)

	rows := []*Row{row}
	for _, column := range t.schema.ListColumns {
		rows = explodeList(rows, schema.NormalizeColumn(column))
	}
	for _, column := range t.schema.ListOfObjectColumns {
		rows = explodeListOfObjects(rows, schema.NormalizeColumn(column))
	}

	for _, r := range rows {
		sanitizeText(r)
		t.stampAndIdentify(r)
	}
	return rows
}

// flatten turns a record into a single-level row. Nested object fields
// become "{parent}_{field}" columns; dots in names become underscores.
// Arrays are kept whole for the explosion steps.
func flatten(record *models.Record) *Row {
	row := NewRow()
	flattenInto(row, "", record)
	return row
}

func flattenInto(row *Row, prefix string, record *models.Record) {
	for _, key := range record.Keys() {
		value, _ := record.Get(key)
		column := schema.NormalizeColumn(key)
		if prefix != "" {
			column = prefix + "_" + column
		}
		if nested, ok := value.(*models.Record); ok {
			flattenInto(row, column, nested)
			continue
		}
		row.Set(column, value)
	}
}

// filterColumns keeps only allow-listed columns, in allow-list order.
// A row sharing no column with the allow-list passes through unchanged,
// as does any row when no allow-list is configured.
func (t *Transformer) filterColumns(row *Row) *Row {
	if len(t.schema.Columns) == 0 {
		return row
	}

	filtered := NewRow()
	for _, column := range t.schema.Columns {
		normalized := schema.NormalizeColumn(column)
		if value, ok := row.Get(normalized); ok {
			filtered.Set(normalized, value)
		}
	}
	if filtered.Len() == 0 {
		return row
	}
	return filtered
}

// explodeList replaces each row holding a list in the given column with
// one row per element. Rows without a list there pass through, and an
// empty list drops the column.
func explodeList(rows []*Row, column string) []*Row {
	var out []*Row
	for _, row := range rows {
		value, ok := row.Get(column)
		if !ok {
			out = append(out, row)
			continue
		}
		list, ok := value.([]interface{})
		if !ok {
			out = append(out, row)
			continue
		}
		if len(list) == 0 {
			row.Delete(column)
			out = append(out, row)
			continue
		}
		for _, element := range list {
			exploded := row.Clone()
			exploded.Set(column, element)
			out = append(out, exploded)
		}
	}
	return out
}

// explodeListOfObjects explodes a column holding a list of objects into
// one row per element, with the element's fields flattened under
// "{column}_{field}". The source column itself is always removed.
func explodeListOfObjects(rows []*Row, column string) []*Row {
	var out []*Row
	for _, row := range rows {
		value, ok := row.Get(column)
		if !ok {
			out = append(out, row)
			continue
		}
		row.Delete(column)

		list, ok := value.([]interface{})
		if !ok || len(list) == 0 {
			out = append(out, row)
			continue
		}
		for _, element := range list {
			exploded := row.Clone()
			if nested, ok := element.(*models.Record); ok {
				flattenInto(exploded, column, nested)
			} else {
				exploded.Set(column, element)
			}
			out = append(out, exploded)
		}
	}
	return out
}

// sanitizeText cleans every string value: markup is stripped,
// surrounding whitespace is trimmed, and a value left empty is dropped
// from the row, so "no data" stays distinguishable from an empty
// string.
func sanitizeText(row *Row) {
	for _, column := range append([]string(nil), row.Columns()...) {
		value, _ := row.Get(column)
		s, ok := value.(string)
		if !ok {
			continue
		}
		cleaned := strings.TrimSpace(htmlTagPattern.ReplaceAllString(s, ""))
		if cleaned == "" {
			row.Delete(column)
			continue
		}
		if cleaned != s {
			row.Set(column, cleaned)
		}
	}
}

// stampAndIdentify adds the server column, prefixes key values with the
// tenant, derives the id, and reorders the row to server, id, then the
// remaining columns in first-seen order.
func (t *Transformer) stampAndIdentify(row *Row) {
	for _, column := range t.keyColumns() {
		if t.schema.IsNoPrefix(column) {
			continue
		}
		value, ok := row.Get(column)
		if !ok {
			continue
		}
		if s := models.ValueString(value); s != "" {
			row.Set(column, t.tenant+"_"+s)
		}
	}

	row.Set(IDColumn, t.rowID(row))

	reordered := NewRow()
	reordered.Set(ServerColumn, t.tenant)
	id, _ := row.Get(IDColumn)
	reordered.Set(IDColumn, id)
	for _, column := range row.Columns() {
		if column == ServerColumn || column == IDColumn {
			continue
		}
		value, _ := row.Get(column)
		reordered.Set(column, value)
	}

	*row = *reordered
}

// rowID hashes the concatenated primary and secondary key values, in
// declaration order, with absent values contributing nothing. A row in
// which no key column is present at all gets an empty id instead of a
// hash of nothing, marking it unidentifiable.
func (t *Transformer) rowID(row *Row) string {
	idColumns := append(append([]string(nil), t.schema.PrimaryKeys...), t.schema.SecondaryKeys...)

	anyPresent := false
	var concatenated string
	for _, column := range idColumns {
		if value, ok := row.Get(schema.NormalizeColumn(column)); ok {
			anyPresent = true
			concatenated += models.ValueString(value)
		}
	}
	if !anyPresent {
		return ""
	}
	sum := md5.Sum([]byte(concatenated))
	return hex.EncodeToString(sum[:])
}

// keyColumns lists every column subject to tenant prefixing, in output
// form. A column named in more than one key class is listed once, so it
// is prefixed exactly once.
func (t *Transformer) keyColumns() []string {
	source := append(append([]string(nil), t.schema.PrimaryKeys...), t.schema.SecondaryKeys...)
	source = append(source, t.schema.Keys...)

	var columns []string
	seen := make(map[string]struct{}, len(source))
	for _, c := range source {
		normalized := schema.NormalizeColumn(c)
		if _, ok := seen[normalized]; ok {
			continue
		}
		seen[normalized] = struct{}{}
		columns = append(columns, normalized)
	}
	return columns
}
