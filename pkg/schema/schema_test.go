package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSourceAccessors(t *testing.T) {
	direct := &TableSchema{
		Name:   "tickets",
		Source: DirectSource{Path: "tickets"},
	}
	assert.False(t, direct.HasDependency())
	assert.Equal(t, "tickets", direct.APIPath())
	assert.Empty(t, direct.ChildPath())
	assert.Empty(t, direct.ParentTable())

	child := &TableSchema{
		Name: "activities_call",
		Source: ChildSource{
			Parent:      "activities",
			Child:       "call",
			Requirement: Requirement{Table: "activities", Column: "name"},
		},
	}
	assert.True(t, child.HasDependency())
	assert.Equal(t, "activities", child.APIPath())
	assert.Equal(t, "call", child.ChildPath())
	assert.Equal(t, "activities", child.ParentTable())
	assert.Equal(t, "name", child.ParentColumn())
}

func TestNormalizeColumn(t *testing.T) {
	assert.Equal(t, "queue_name", NormalizeColumn("queue.name"))
	assert.Equal(t, "edited", NormalizeColumn("edited"))
}

func TestIsNoPrefix(t *testing.T) {
	ts := &TableSchema{NoPrefixColumns: []string{"call.name"}}
	assert.True(t, ts.IsNoPrefix("call_name"))
	assert.False(t, ts.IsNoPrefix("queue_name"))
}

func TestRegistryKnowsDefaultTables(t *testing.T) {
	registry := NewRegistry(nil)

	for _, name := range []string{
		"activities", "activities_statuses", "activities_call", "activities_email",
		"activities_chat", "activities_sms", "contacts", "tickets", "users", "queues",
	} {
		_, ok := registry.Lookup(name)
		assert.True(t, ok, "table %s should be registered", name)
	}

	_, ok := registry.Lookup("nonexistent")
	assert.False(t, ok)
}

func TestRegistryChildTablesRequireActivities(t *testing.T) {
	registry := NewRegistry(nil)

	for _, name := range []string{"activities_call", "activities_email", "activities_chat", "activities_sms"} {
		ts, ok := registry.Lookup(name)
		require.True(t, ok)
		assert.True(t, ts.HasDependency())
		assert.Equal(t, "activities", ts.ParentTable())
		assert.Equal(t, "name", ts.ParentColumn())
	}
}

func TestRegistryCustomTablesTakePrecedence(t *testing.T) {
	custom := map[string]*TableSchema{
		"tickets": {
			Name:        "tickets",
			Source:      DirectSource{Path: "ticketsV2"},
			PrimaryKeys: []string{"name"},
		},
		"crm_exports": {
			Name:   "crm_exports",
			Source: DirectSource{Path: "crmRecords"},
		},
	}
	registry := NewRegistry(custom)

	tickets, ok := registry.Lookup("tickets")
	require.True(t, ok)
	assert.Equal(t, "ticketsV2", tickets.APIPath())

	_, ok = registry.Lookup("crm_exports")
	assert.True(t, ok)
}

func TestRegistryDateWindowFilters(t *testing.T) {
	registry := NewRegistry(nil)

	activities, ok := registry.Lookup("activities")
	require.True(t, ok)
	require.Len(t, activities.Filters, 1)
	assert.Equal(t, "edited", activities.Filters[0].Field)
	assert.Equal(t, "gte", activities.Filters[0].Operator)
	assert.Nil(t, activities.Filters[0].Value)
}
