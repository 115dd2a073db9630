package models

import (
	"testing"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordPreservesDocumentOrder(t *testing.T) {
	var rec Record
	err := json.Unmarshal([]byte(`{"zebra":1,"alpha":2,"mango":3}`), &rec)
	require.NoError(t, err)

	assert.Equal(t, []string{"zebra", "alpha", "mango"}, rec.Keys())
}

func TestRecordDecodesNestedStructures(t *testing.T) {
	input := `{
		"name": "activities_0001",
		"queue": {"name": "q1", "title": "Support"},
		"tags": ["vip", "callback"],
		"members": [{"name": "u1"}, {"name": "u2"}],
		"missing": null,
		"active": true
	}`

	var rec Record
	require.NoError(t, json.Unmarshal([]byte(input), &rec))

	queue, ok := rec.Get("queue")
	require.True(t, ok)
	nested, ok := queue.(*Record)
	require.True(t, ok)
	name, _ := nested.Get("name")
	assert.Equal(t, "q1", name)

	tags, _ := rec.Get("tags")
	assert.Equal(t, []interface{}{"vip", "callback"}, tags)

	members, _ := rec.Get("members")
	list, ok := members.([]interface{})
	require.True(t, ok)
	require.Len(t, list, 2)
	_, ok = list[0].(*Record)
	assert.True(t, ok)

	missing, ok := rec.Get("missing")
	require.True(t, ok)
	assert.Nil(t, missing)

	active, _ := rec.Get("active")
	assert.Equal(t, true, active)
}

func TestRecordKeepsNumbersVerbatim(t *testing.T) {
	var rec Record
	require.NoError(t, json.Unmarshal([]byte(`{"id":90071992547409923,"score":1.50}`), &rec))

	id, _ := rec.Get("id")
	num, ok := id.(json.Number)
	require.True(t, ok)
	assert.Equal(t, "90071992547409923", num.String())

	score, _ := rec.Get("score")
	assert.Equal(t, json.Number("1.50"), score)
}

func TestRecordRejectsNonObject(t *testing.T) {
	var rec Record
	assert.Error(t, json.Unmarshal([]byte(`[1,2]`), &rec))
}

func TestRecordMarshalRoundTrip(t *testing.T) {
	rec := NewRecord()
	rec.Set("b", "two")
	rec.Set("a", json.Number("1"))

	data, err := json.Marshal(rec)
	require.NoError(t, err)
	assert.Equal(t, `{"b":"two","a":1}`, string(data))
}

func TestSetOverwritesWithoutReordering(t *testing.T) {
	rec := NewRecord()
	rec.Set("a", 1)
	rec.Set("b", 2)
	rec.Set("a", 3)

	assert.Equal(t, []string{"a", "b"}, rec.Keys())
	v, _ := rec.Get("a")
	assert.Equal(t, 3, v)
}

func TestValueString(t *testing.T) {
	tests := []struct {
		name  string
		value interface{}
		want  string
	}{
		{"nil", nil, ""},
		{"string", "hello", "hello"},
		{"number", json.Number("42"), "42"},
		{"bool", true, "true"},
		{"list", []interface{}{"a", "b"}, `["a","b"]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ValueString(tt.value))
		})
	}
}
