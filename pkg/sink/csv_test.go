package sink

import (
	"os"
	"path/filepath"
	"testing"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jsvoboda/daktela-extractor/pkg/testutil"
	"github.com/jsvoboda/daktela-extractor/pkg/transform"
)

func makeRow(pairs ...string) *transform.Row {
	row := transform.NewRow()
	for i := 0; i+1 < len(pairs); i += 2 {
		row.Set(pairs[i], pairs[i+1])
	}
	return row
}

func TestWriteTableWidensColumns(t *testing.T) {
	dir := t.TempDir()
	w := NewWriter(dir, testutil.TestLogger(t))

	rows := []*transform.Row{
		makeRow("server", "acme", "id", "1", "name", "a"),
		makeRow("server", "acme", "id", "2", "name", "b", "email", "b@example.com"),
	}

	written, err := w.WriteTable("acme", "contacts", rows, true)
	require.NoError(t, err)
	assert.True(t, written)

	csvData, err := os.ReadFile(filepath.Join(dir, "acme_contacts.csv"))
	require.NoError(t, err)
	// Headerless: the first row fills the late-appearing column with an
	// empty cell.
	assert.Equal(t, "acme,1,a,\nacme,2,b,b@example.com\n", string(csvData))

	manifestData, err := os.ReadFile(filepath.Join(dir, "acme_contacts.csv.manifest"))
	require.NoError(t, err)

	var manifest Manifest
	require.NoError(t, json.Unmarshal(manifestData, &manifest))
	assert.Equal(t, []string{"server", "id", "name", "email"}, manifest.Columns)
	assert.Equal(t, []string{"id"}, manifest.PrimaryKey)
	assert.True(t, manifest.Incremental)
}

func TestWriteTableSkipsEmptyTables(t *testing.T) {
	dir := t.TempDir()
	w := NewWriter(dir, testutil.TestLogger(t))

	written, err := w.WriteTable("acme", "contacts", nil, false)
	require.NoError(t, err)
	assert.False(t, written)

	_, err = os.Stat(filepath.Join(dir, "acme_contacts.csv"))
	assert.True(t, os.IsNotExist(err))
}

func TestReadColumnValues(t *testing.T) {
	dir := t.TempDir()
	w := NewWriter(dir, testutil.TestLogger(t))

	rows := []*transform.Row{
		makeRow("server", "acme", "id", "1", "name", "acme_act1"),
		makeRow("server", "acme", "id", "2", "name", ""),
		makeRow("server", "acme", "id", "3", "name", "acme_act3"),
	}
	_, err := w.WriteTable("acme", "activities", rows, false)
	require.NoError(t, err)

	values, err := w.ReadColumnValues("acme", "activities", "name")
	require.NoError(t, err)
	assert.Equal(t, []string{"acme_act1", "acme_act3"}, values)
}

func TestReadColumnValuesScrubsNulBytes(t *testing.T) {
	dir := t.TempDir()
	w := NewWriter(dir, testutil.TestLogger(t))

	csvPath := filepath.Join(dir, "acme_activities.csv")
	require.NoError(t, os.WriteFile(csvPath, []byte("acme,1,ac\x00me_act1\n"), 0o644))
	manifest := `{"columns": ["server", "id", "na` + "\x00" + `me"], "primary_key": ["id"], "incremental": false}`
	require.NoError(t, os.WriteFile(csvPath+".manifest", []byte(manifest), 0o644))

	values, err := w.ReadColumnValues("acme", "activities", "name")
	require.NoError(t, err)
	assert.Equal(t, []string{"acme_act1"}, values)
}

func TestReadColumnValuesToleratesMissingOutput(t *testing.T) {
	w := NewWriter(t.TempDir(), testutil.TestLogger(t))

	values, err := w.ReadColumnValues("acme", "activities", "name")
	require.NoError(t, err)
	assert.Nil(t, values)
}

func TestReadColumnValuesUnknownColumn(t *testing.T) {
	dir := t.TempDir()
	w := NewWriter(dir, testutil.TestLogger(t))

	_, err := w.WriteTable("acme", "activities",
		[]*transform.Row{makeRow("server", "acme", "id", "1")}, false)
	require.NoError(t, err)

	values, err := w.ReadColumnValues("acme", "activities", "name")
	require.NoError(t, err)
	assert.Nil(t, values)
}
