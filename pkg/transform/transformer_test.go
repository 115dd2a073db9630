package transform

import (
	"testing"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jsvoboda/daktela-extractor/pkg/models"
	"github.com/jsvoboda/daktela-extractor/pkg/schema"
)

func decodeRecord(t *testing.T, raw string) *models.Record {
	t.Helper()
	var rec models.Record
	require.NoError(t, json.Unmarshal([]byte(raw), &rec))
	return &rec
}

func ticketsSchema() *schema.TableSchema {
	return &schema.TableSchema{
		Name:        "tickets",
		Source:      schema.DirectSource{Path: "tickets"},
		Columns:     []string{"name", "title", "queue.name", "tags", "description"},
		PrimaryKeys: []string{"name"},
		Keys:        []string{"queue.name"},
		ListColumns: []string{"tags"},
	}
}

func TestTransformFullPipeline(t *testing.T) {
	tr := New("acme", ticketsSchema())
	record := decodeRecord(t, `{
		"name": "t1",
		"title": "Printer down",
		"queue": {"name": "q1", "internal": "x"},
		"tags": ["vip", "gold"],
		"description": "<p>Hello</p>",
		"unlisted": "dropped"
	}`)

	rows := tr.Transform(record)
	require.Len(t, rows, 2)

	for _, row := range rows {
		assert.Equal(t,
			[]string{"server", "id", "name", "title", "queue_name", "tags", "description"},
			row.Columns())

		server, _ := row.Get("server")
		assert.Equal(t, "acme", server)

		id, _ := row.Get("id")
		assert.Equal(t, "9d59664e3dfb04d4d21934aa02478fc4", id)

		name, _ := row.Get("name")
		assert.Equal(t, "acme_t1", name)

		queue, _ := row.Get("queue_name")
		assert.Equal(t, "acme_q1", queue)

		description, _ := row.Get("description")
		assert.Equal(t, "Hello", description)
	}

	first, _ := rows[0].Get("tags")
	second, _ := rows[1].Get("tags")
	assert.Equal(t, "vip", first)
	assert.Equal(t, "gold", second)
}

func TestFlattenNestedObjects(t *testing.T) {
	tr := New("acme", &schema.TableSchema{Name: "raw"})
	record := decodeRecord(t, `{
		"name": "r1",
		"queue": {"name": "q1", "group": {"title": "Sales"}},
		"user.name": "u1"
	}`)

	rows := tr.Transform(record)
	require.Len(t, rows, 1)

	queueName, ok := rows[0].Get("queue_name")
	require.True(t, ok)
	assert.Equal(t, "q1", queueName)

	groupTitle, ok := rows[0].Get("queue_group_title")
	require.True(t, ok)
	assert.Equal(t, "Sales", groupTitle)

	userName, ok := rows[0].Get("user_name")
	require.True(t, ok)
	assert.Equal(t, "u1", userName)
}

func TestFilterWithoutMatchesKeepsRow(t *testing.T) {
	ts := &schema.TableSchema{
		Name:    "tickets",
		Columns: []string{"nonexistent"},
	}
	tr := New("acme", ts)
	rows := tr.Transform(decodeRecord(t, `{"alpha": "a", "beta": "b"}`))

	require.Len(t, rows, 1)
	assert.True(t, rows[0].Has("alpha"))
	assert.True(t, rows[0].Has("beta"))
}

func TestListExplosionCrossProduct(t *testing.T) {
	ts := &schema.TableSchema{
		Name:        "multi",
		ListColumns: []string{"first", "second"},
	}
	tr := New("acme", ts)
	rows := tr.Transform(decodeRecord(t, `{
		"name": "m1",
		"first": ["a", "b"],
		"second": ["x", "y", "z"]
	}`))

	require.Len(t, rows, 6)

	var pairs []string
	for _, row := range rows {
		f, _ := row.Get("first")
		s, _ := row.Get("second")
		pairs = append(pairs, f.(string)+s.(string))
	}
	assert.Equal(t, []string{"ax", "ay", "az", "bx", "by", "bz"}, pairs)
}

func TestListExplosionPassesThroughScalars(t *testing.T) {
	ts := &schema.TableSchema{Name: "tickets", ListColumns: []string{"tags"}}
	tr := New("acme", ts)

	rows := tr.Transform(decodeRecord(t, `{"name": "t1", "tags": "plain"}`))
	require.Len(t, rows, 1)
	v, _ := rows[0].Get("tags")
	assert.Equal(t, "plain", v)
}

func TestListExplosionDropsEmptyList(t *testing.T) {
	ts := &schema.TableSchema{Name: "tickets", ListColumns: []string{"tags"}}
	tr := New("acme", ts)

	rows := tr.Transform(decodeRecord(t, `{"name": "t1", "tags": []}`))
	require.Len(t, rows, 1)
	assert.False(t, rows[0].Has("tags"))
}

func TestListOfObjectExplosion(t *testing.T) {
	ts := &schema.TableSchema{
		Name:                "users",
		ListOfObjectColumns: []string{"groups"},
	}
	tr := New("acme", ts)
	rows := tr.Transform(decodeRecord(t, `{
		"name": "u1",
		"groups": [{"name": "g1", "title": "Admins"}, {"name": "g2", "title": "Agents"}]
	}`))

	require.Len(t, rows, 2)
	for i, want := range []string{"g1", "g2"} {
		assert.False(t, rows[i].Has("groups"))
		got, ok := rows[i].Get("groups_name")
		require.True(t, ok)
		assert.Equal(t, want, got)
	}
}

func TestListOfObjectColumnAlwaysRemoved(t *testing.T) {
	ts := &schema.TableSchema{
		Name:                "users",
		ListOfObjectColumns: []string{"groups"},
	}
	tr := New("acme", ts)

	rows := tr.Transform(decodeRecord(t, `{"name": "u1", "groups": "scalar"}`))
	require.Len(t, rows, 1)
	assert.False(t, rows[0].Has("groups"))
}

func TestHTMLStrippedToEmptyRemovesColumn(t *testing.T) {
	tr := New("acme", &schema.TableSchema{Name: "notes"})

	rows := tr.Transform(decodeRecord(t, `{"name": "n1", "body": "<br><hr>"}`))
	require.Len(t, rows, 1)
	assert.False(t, rows[0].Has("body"))
}

func TestSanitizeCleansAllStringValues(t *testing.T) {
	tr := New("acme", &schema.TableSchema{Name: "notes"})

	rows := tr.Transform(decodeRecord(t, `{
		"blank": "",
		"spaces": "   ",
		"padded": "  x  ",
		"tagged": " <b>bold</b> "
	}`))
	require.Len(t, rows, 1)

	assert.False(t, rows[0].Has("blank"))
	assert.False(t, rows[0].Has("spaces"))

	padded, _ := rows[0].Get("padded")
	assert.Equal(t, "x", padded)

	tagged, _ := rows[0].Get("tagged")
	assert.Equal(t, "bold", tagged)
}

func TestKeyPrefixingSkipsEmptyAndExemptValues(t *testing.T) {
	ts := &schema.TableSchema{
		Name:            "activities",
		PrimaryKeys:     []string{"name"},
		Keys:            []string{"queue.name", "call.name"},
		NoPrefixColumns: []string{"call.name"},
	}
	tr := New("acme", ts)
	rows := tr.Transform(decodeRecord(t, `{
		"name": "t1",
		"queue": {"name": ""},
		"call": {"name": "c77"}
	}`))

	require.Len(t, rows, 1)

	name, _ := rows[0].Get("name")
	assert.Equal(t, "acme_t1", name)

	// An empty key value is normalized to absent and never prefixed.
	assert.False(t, rows[0].Has("queue_name"))

	call, _ := rows[0].Get("call_name")
	assert.Equal(t, "c77", call)
}

func TestKeyPrefixAppliedOncePerColumn(t *testing.T) {
	ts := &schema.TableSchema{
		Name:        "users_queues",
		PrimaryKeys: []string{"user.name", "queue.name"},
		Keys:        []string{"user.name", "queue.name"},
	}
	tr := New("acme", ts)

	rows := tr.Transform(decodeRecord(t, `{"user": {"name": "u1"}, "queue": {"name": "q1"}}`))
	require.Len(t, rows, 1)

	userName, _ := rows[0].Get("user_name")
	assert.Equal(t, "acme_u1", userName)
	queueName, _ := rows[0].Get("queue_name")
	assert.Equal(t, "acme_q1", queueName)
}

func TestRowIDDependsOnTenant(t *testing.T) {
	record := `{"name": "t1"}`
	ts := &schema.TableSchema{Name: "tickets", PrimaryKeys: []string{"name"}}

	acme := New("acme", ts).Transform(decodeRecord(t, record))
	other := New("other", ts).Transform(decodeRecord(t, record))

	acmeID, _ := acme[0].Get("id")
	otherID, _ := other[0].Get("id")
	assert.Equal(t, "9d59664e3dfb04d4d21934aa02478fc4", acmeID)
	assert.Equal(t, "f6d56afb18091faf09c0271c75733776", otherID)
}

func TestRowIDConcatenatesPrimaryAndSecondaryKeys(t *testing.T) {
	ts := &schema.TableSchema{
		Name:          "joined",
		PrimaryKeys:   []string{"name"},
		SecondaryKeys: []string{"user.name"},
	}
	tr := New("acme", ts)

	rows := tr.Transform(decodeRecord(t, `{"name": "t1", "user": {"name": "u9"}}`))
	id, _ := rows[0].Get("id")
	assert.Equal(t, "a2a231c444cace5bce2696527f7cb5a6", id)

	// An absent secondary key contributes nothing.
	rows = tr.Transform(decodeRecord(t, `{"name": "t1"}`))
	id, _ = rows[0].Get("id")
	assert.Equal(t, "9d59664e3dfb04d4d21934aa02478fc4", id)
}

func TestRowIDEmptyWhenNoKeyColumnPresent(t *testing.T) {
	ts := &schema.TableSchema{Name: "tickets", PrimaryKeys: []string{"name"}}
	tr := New("acme", ts)

	rows := tr.Transform(decodeRecord(t, `{"title": "x"}`))
	require.Len(t, rows, 1)

	id, ok := rows[0].Get("id")
	require.True(t, ok)
	assert.Equal(t, "", id)
}

func TestRowIDEmptyWithoutKeyColumns(t *testing.T) {
	tr := New("acme", &schema.TableSchema{Name: "keyless"})

	rows := tr.Transform(decodeRecord(t, `{"value": "x"}`))
	require.Len(t, rows, 1)

	id, ok := rows[0].Get("id")
	require.True(t, ok)
	assert.Equal(t, "", id)
	assert.Equal(t, []string{"server", "id", "value"}, rows[0].Columns())
}
