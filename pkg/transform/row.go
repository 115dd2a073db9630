package transform

// Row is an ordered set of named cell values. Columns keep the order in
// which they were first set, which downstream CSV writing depends on.
type Row struct {
	columns []string
	values  map[string]interface{}
}

// NewRow creates an empty row.
func NewRow() *Row {
	return &Row{values: make(map[string]interface{})}
}

// Set assigns a value, appending the column on first use.
func (r *Row) Set(column string, value interface{}) {
	if _, ok := r.values[column]; !ok {
		r.columns = append(r.columns, column)
	}
	r.values[column] = value
}

// Get returns the value for a column, if present.
func (r *Row) Get(column string) (interface{}, bool) {
	v, ok := r.values[column]
	return v, ok
}

// Has reports whether a column is present.
func (r *Row) Has(column string) bool {
	_, ok := r.values[column]
	return ok
}

// Delete removes a column and its value.
func (r *Row) Delete(column string) {
	if _, ok := r.values[column]; !ok {
		return
	}
	delete(r.values, column)
	for i, c := range r.columns {
		if c == column {
			r.columns = append(r.columns[:i], r.columns[i+1:]...)
			break
		}
	}
}

// Columns returns the column names in order. The returned slice is
// shared; callers must not modify it.
func (r *Row) Columns() []string {
	return r.columns
}

// Len returns the number of columns.
func (r *Row) Len() int {
	return len(r.columns)
}

// Clone returns an independent copy.
func (r *Row) Clone() *Row {
	c := &Row{
		columns: make([]string, len(r.columns)),
		values:  make(map[string]interface{}, len(r.values)),
	}
	copy(c.columns, r.columns)
	for k, v := range r.values {
		c.values[k] = v
	}
	return c
}
