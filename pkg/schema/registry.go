package schema

// Registry resolves table names to schemas. Custom schemas supplied by
// the run configuration take precedence over the built-in defaults.
type Registry struct {
	custom map[string]*TableSchema
}

// NewRegistry creates a registry with optional custom table schemas.
func NewRegistry(custom map[string]*TableSchema) *Registry {
	return &Registry{custom: custom}
}

// Lookup resolves a table name. The second return value is false for
// unknown tables.
func (r *Registry) Lookup(name string) (*TableSchema, bool) {
	if r != nil && r.custom != nil {
		if t, ok := r.custom[name]; ok {
			return t, true
		}
	}
	t, ok := defaultTables[name]
	return t, ok
}

// editedSince is the standard incremental filter: records edited on or
// after the lower date-window bound. The nil value is resolved by the
// orchestrator at run time.
func editedSince() []Filter {
	return []Filter{{Field: "edited", Operator: "gte", Value: nil}}
}

func activityChild(child string) Source {
	return ChildSource{
		Parent:      "activities",
		Child:       child,
		Requirement: Requirement{Table: "activities", Column: "name"},
	}
}

var defaultTables = map[string]*TableSchema{
	"activities": {
		Name:   "activities",
		Source: DirectSource{Path: "activities"},
		Columns: []string{
			"name", "title", "description", "direction", "time", "time_open", "time_close",
			"stage", "action", "clid", "did", "queue.name", "queue.title", "user.name",
			"user.title", "contact.name", "contact.title", "account.name", "account.title",
			"ticket.name", "ticket.title", "campaign.name", "campaign.title", "call.name",
			"edited", "created",
		},
		Filters:     editedSince(),
		PrimaryKeys: []string{"name"},
		Keys: []string{
			"queue.name", "user.name", "contact.name", "account.name", "ticket.name",
			"campaign.name",
		},
	},
	"contacts": {
		Name:   "contacts",
		Source: DirectSource{Path: "contacts"},
		Columns: []string{
			"name", "title", "firstname", "lastname", "email", "phone", "mobile",
			"company", "position", "address", "city", "zip", "country", "description",
			"account.name", "account.title", "user.name", "user.title", "edited", "created",
		},
		Filters:     editedSince(),
		PrimaryKeys: []string{"name"},
		Keys:        []string{"account.name", "user.name"},
	},
	"tickets": {
		Name:   "tickets",
		Source: DirectSource{Path: "tickets"},
		Columns: []string{
			"name", "title", "description", "stage", "priority", "sla_deadtime",
			"sla_change", "category.name", "category.title", "contact.name", "contact.title",
			"account.name", "account.title", "user.name", "user.title", "queue.name",
			"queue.title", "tags", "edited", "created",
		},
		Filters:     editedSince(),
		PrimaryKeys: []string{"name"},
		Keys:        []string{"category.name", "contact.name", "account.name", "user.name", "queue.name"},
		ListColumns: []string{"tags"},
	},
	"users": {
		Name:   "users",
		Source: DirectSource{Path: "users"},
		Columns: []string{
			"name", "title", "firstname", "lastname", "email", "phone", "mobile",
			"extension", "alias", "role.name", "role.title", "groups", "skills",
			"edited", "created",
		},
		PrimaryKeys:         []string{"name"},
		Keys:                []string{"role.name"},
		ListOfObjectColumns: []string{"groups", "skills"},
	},
	"queues": {
		Name:   "queues",
		Source: DirectSource{Path: "queues"},
		Columns: []string{
			"name", "title", "description", "type", "strategy", "timeout", "wrapup_time",
			"max_waiting", "max_waiting_time", "edited", "created",
		},
		PrimaryKeys: []string{"name"},
	},
	"campaigns": {
		Name:   "campaigns",
		Source: DirectSource{Path: "campaigns"},
		Columns: []string{
			"name", "title", "description", "type", "status", "queue.name", "queue.title",
			"edited", "created",
		},
		PrimaryKeys: []string{"name"},
		Keys:        []string{"queue.name"},
	},
	"accounts": {
		Name:   "accounts",
		Source: DirectSource{Path: "accounts"},
		Columns: []string{
			"name", "title", "description", "type", "phone", "email", "website",
			"address", "city", "zip", "country", "user.name", "user.title",
			"edited", "created",
		},
		Filters:     editedSince(),
		PrimaryKeys: []string{"name"},
		Keys:        []string{"user.name"},
	},
	"calls": {
		Name:   "calls",
		Source: DirectSource{Path: "calls"},
		Columns: []string{
			"name", "clid", "did", "direction", "disposition", "duration", "billsec",
			"recording", "queue.name", "queue.title", "user.name", "user.title",
			"contact.name", "contact.title", "edited", "created",
		},
		Filters:     editedSince(),
		PrimaryKeys: []string{"name"},
		Keys:        []string{"queue.name", "user.name", "contact.name"},
	},
	"records": {
		Name:   "records",
		Source: DirectSource{Path: "records"},
		Columns: []string{
			"name", "title", "description", "status", "contact.name", "contact.title",
			"account.name", "account.title", "user.name", "user.title",
			"edited", "created",
		},
		Filters:     editedSince(),
		PrimaryKeys: []string{"name"},
		Keys:        []string{"contact.name", "account.name", "user.name"},
	},
	"statuses": {
		Name:   "statuses",
		Source: DirectSource{Path: "statuses"},
		Columns: []string{
			"name", "title", "type", "color", "default", "edited", "created",
		},
		PrimaryKeys: []string{"name"},
	},
	"categories": {
		Name:   "categories",
		Source: DirectSource{Path: "categories"},
		Columns: []string{
			"name", "title", "description", "type", "parent.name", "parent.title",
			"edited", "created",
		},
		PrimaryKeys: []string{"name"},
		Keys:        []string{"parent.name"},
	},
	"emails": {
		Name:   "emails",
		Source: DirectSource{Path: "emails"},
		Columns: []string{
			"name", "subject", "from", "to", "cc", "bcc", "body", "direction",
			"status", "queue.name", "queue.title", "user.name", "user.title",
			"contact.name", "contact.title", "ticket.name", "ticket.title",
			"edited", "created",
		},
		Filters:     editedSince(),
		PrimaryKeys: []string{"name"},
		Keys:        []string{"queue.name", "user.name", "contact.name", "ticket.name"},
	},
	"chats": {
		Name:   "chats",
		Source: DirectSource{Path: "chats"},
		Columns: []string{
			"name", "message", "direction", "status", "queue.name", "queue.title",
			"user.name", "user.title", "contact.name", "contact.title",
			"edited", "created",
		},
		Filters:     editedSince(),
		PrimaryKeys: []string{"name"},
		Keys:        []string{"queue.name", "user.name", "contact.name"},
	},
	"sms": {
		Name:   "sms",
		Source: DirectSource{Path: "sms"},
		Columns: []string{
			"name", "text", "from", "to", "direction", "status",
			"user.name", "user.title", "contact.name", "contact.title",
			"edited", "created",
		},
		Filters:     editedSince(),
		PrimaryKeys: []string{"name"},
		Keys:        []string{"user.name", "contact.name"},
	},
	"devices": {
		Name:   "devices",
		Source: DirectSource{Path: "devices"},
		Columns: []string{
			"name", "title", "type", "extension", "user.name", "user.title",
			"status", "edited", "created",
		},
		PrimaryKeys: []string{"name"},
		Keys:        []string{"user.name"},
	},
	"profiles": {
		Name:   "profiles",
		Source: DirectSource{Path: "profiles"},
		Columns: []string{
			"name", "title", "description", "permissions", "edited", "created",
		},
		PrimaryKeys:         []string{"name"},
		ListOfObjectColumns: []string{"permissions"},
	},
	"pauses": {
		Name:   "pauses",
		Source: DirectSource{Path: "pauses"},
		Columns: []string{
			"name", "title", "description", "type", "productive", "edited", "created",
		},
		PrimaryKeys: []string{"name"},
	},
	"skills": {
		Name:   "skills",
		Source: DirectSource{Path: "skills"},
		Columns: []string{
			"name", "title", "description", "edited", "created",
		},
		PrimaryKeys: []string{"name"},
	},
	"groups": {
		Name:   "groups",
		Source: DirectSource{Path: "groups"},
		Columns: []string{
			"name", "title", "description", "members", "edited", "created",
		},
		PrimaryKeys:         []string{"name"},
		ListOfObjectColumns: []string{"members"},
	},
	"fields": {
		Name:   "fields",
		Source: DirectSource{Path: "fields"},
		Columns: []string{
			"name", "title", "type", "entity", "required", "options", "edited", "created",
		},
		PrimaryKeys:         []string{"name"},
		ListOfObjectColumns: []string{"options"},
	},
	"forms": {
		Name:   "forms",
		Source: DirectSource{Path: "forms"},
		Columns: []string{
			"name", "title", "description", "type", "fields", "edited", "created",
		},
		PrimaryKeys:         []string{"name"},
		ListOfObjectColumns: []string{"fields"},
	},
	"templates": {
		Name:   "templates",
		Source: DirectSource{Path: "templates"},
		Columns: []string{
			"name", "title", "type", "subject", "body", "edited", "created",
		},
		PrimaryKeys: []string{"name"},
	},
	"schedules": {
		Name:   "schedules",
		Source: DirectSource{Path: "schedules"},
		Columns: []string{
			"name", "title", "description", "timezone", "rules", "edited", "created",
		},
		PrimaryKeys:         []string{"name"},
		ListOfObjectColumns: []string{"rules"},
	},
	"holidays": {
		Name:   "holidays",
		Source: DirectSource{Path: "holidays"},
		Columns: []string{
			"name", "title", "date", "recurring", "edited", "created",
		},
		PrimaryKeys: []string{"name"},
	},
	"recordings": {
		Name:   "recordings",
		Source: DirectSource{Path: "recordings"},
		Columns: []string{
			"name", "duration", "call.name", "user.name", "user.title",
			"url", "edited", "created",
		},
		Filters:     editedSince(),
		PrimaryKeys: []string{"name"},
		Keys:        []string{"call.name", "user.name"},
	},
	"files": {
		Name:   "files",
		Source: DirectSource{Path: "files"},
		Columns: []string{
			"name", "title", "filename", "size", "mime", "url",
			"ticket.name", "ticket.title", "edited", "created",
		},
		Filters:     editedSince(),
		PrimaryKeys: []string{"name"},
		Keys:        []string{"ticket.name"},
	},
	"notes": {
		Name:   "notes",
		Source: DirectSource{Path: "notes"},
		Columns: []string{
			"name", "text", "user.name", "user.title", "ticket.name", "ticket.title",
			"contact.name", "contact.title", "edited", "created",
		},
		Filters:     editedSince(),
		PrimaryKeys: []string{"name"},
		Keys:        []string{"user.name", "ticket.name", "contact.name"},
	},
	"activities_statuses": {
		Name:   "activities_statuses",
		Source: DirectSource{Path: "activities_statuses"},
		Columns: []string{
			"name", "title", "type", "category", "color", "icon", "edited", "created",
		},
		PrimaryKeys: []string{"name"},
	},
	"activities_call": {
		Name:   "activities_call",
		Source: activityChild("call"),
		Columns: []string{
			"name", "clid", "did", "direction", "disposition", "duration", "billsec",
			"recording", "edited", "created",
		},
		PrimaryKeys: []string{"name"},
	},
	"activities_email": {
		Name:   "activities_email",
		Source: activityChild("email"),
		Columns: []string{
			"name", "subject", "from", "to", "cc", "bcc", "body", "edited", "created",
		},
		PrimaryKeys: []string{"name"},
	},
	"activities_chat": {
		Name:   "activities_chat",
		Source: activityChild("chat"),
		Columns: []string{
			"name", "message", "channel", "edited", "created",
		},
		PrimaryKeys: []string{"name"},
	},
	"activities_sms": {
		Name:   "activities_sms",
		Source: activityChild("sms"),
		Columns: []string{
			"name", "text", "from", "to", "edited", "created",
		},
		PrimaryKeys: []string{"name"},
	},
	"tickets_categories": {
		Name:   "tickets_categories",
		Source: DirectSource{Path: "tickets/categories"},
		Columns: []string{
			"name", "title", "description", "parent.name", "parent.title", "edited", "created",
		},
		PrimaryKeys: []string{"name"},
		Keys:        []string{"parent.name"},
	},
	"contacts_custom_fields": {
		Name:   "contacts_custom_fields",
		Source: DirectSource{Path: "contacts/custom_fields"},
		Columns: []string{
			"name", "title", "type", "value", "edited", "created",
		},
		PrimaryKeys: []string{"name"},
	},
	"accounts_custom_fields": {
		Name:   "accounts_custom_fields",
		Source: DirectSource{Path: "accounts/custom_fields"},
		Columns: []string{
			"name", "title", "type", "value", "edited", "created",
		},
		PrimaryKeys: []string{"name"},
	},
	"users_queues": {
		Name:   "users_queues",
		Source: DirectSource{Path: "users/queues"},
		Columns: []string{
			"user.name", "queue.name", "queue.title", "priority", "edited", "created",
		},
		PrimaryKeys: []string{"user.name", "queue.name"},
		Keys:        []string{"user.name", "queue.name"},
	},
}
