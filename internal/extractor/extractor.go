// Package extractor orchestrates a full extraction run: it partitions
// the requested tables into independent and parent-dependent sets,
// extracts them in dependency order, feeds every record through the
// transformation pipeline, and writes the results.
package extractor

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/jsvoboda/daktela-extractor/pkg/config"
	"github.com/jsvoboda/daktela-extractor/pkg/errors"
	"github.com/jsvoboda/daktela-extractor/pkg/logger"
	"github.com/jsvoboda/daktela-extractor/pkg/metrics"
	"github.com/jsvoboda/daktela-extractor/pkg/models"
	"github.com/jsvoboda/daktela-extractor/pkg/schema"
	"github.com/jsvoboda/daktela-extractor/pkg/transform"
)

// specialTables are independent tables that other tables depend on.
// When requested they run after the plain independent tables, in this
// fixed order, so their identifiers are available to phase two.
var specialTables = []string{"activities", "activities_statuses"}

// Client is the API surface the runner needs. The concrete
// implementation lives in pkg/daktela.
type Client interface {
	Authenticate(ctx context.Context) error
	ExtractTable(ctx context.Context, path string, filters []schema.Filter, fields []string, limit int) ([]*models.Record, error)
	ExtractChildTable(ctx context.Context, parentTable string, parentIDs []string, childPath string, limit int) ([]*models.Record, error)
}

// Output persists finished tables and reads identifier columns back
// from earlier runs. The concrete implementation lives in pkg/sink.
type Output interface {
	WriteTable(tenant, table string, rows []*transform.Row, incremental bool) (bool, error)
	ReadColumnValues(tenant, table, column string) ([]string, error)
}

// Runner drives one extraction run.
type Runner struct {
	cfg      *config.Config
	client   Client
	output   Output
	registry *schema.Registry
	log      *zap.Logger

	tenant string
	from   time.Time
	to     time.Time

	// parentIDs indexes, per extracted table and column, every distinct
	// non-empty value in first-seen order.
	parentIDs  map[string]map[string][]string
	parentSeen map[string]map[string]map[string]struct{}

	// invalidParents holds derived ids of parent rows whose primary
	// key came back empty; such identifiers are excluded from child
	// table extraction.
	invalidParents map[string]struct{}
}

// New creates a runner. The table registry is the built-in one merged
// with any custom tables from the configuration.
func New(cfg *config.Config, client Client, output Output, log *zap.Logger) *Runner {
	if log == nil {
		log = logger.Get()
	}
	return &Runner{
		cfg:            cfg,
		client:         client,
		output:         output,
		registry:       schema.NewRegistry(customSchemas(cfg)),
		log:            log,
		parentIDs:      make(map[string]map[string][]string),
		parentSeen:     make(map[string]map[string]map[string]struct{}),
		invalidParents: make(map[string]struct{}),
	}
}

// Run executes the full extraction.
func (r *Runner) Run(ctx context.Context) error {
	start := time.Now()

	tenant, err := r.cfg.ServerName()
	if err != nil {
		return err
	}
	r.tenant = tenant
	ctx = context.WithValue(ctx, logger.TenantKey, tenant)

	if r.from, r.to, err = r.cfg.Window(); err != nil {
		return err
	}

	independent, dependent := r.partition()

	if err := r.client.Authenticate(ctx); err != nil {
		return err
	}

	for _, name := range independent {
		if err := r.extractTable(ctx, name); err != nil {
			return err
		}
	}
	for _, name := range specialTables {
		if containsString(dependent, name) {
			if err := r.extractTable(ctx, name); err != nil {
				return err
			}
		}
	}
	for _, name := range dependent {
		if containsString(specialTables, name) {
			continue
		}
		if err := r.extractChildTable(ctx, name); err != nil {
			return err
		}
	}

	logger.WithContext(ctx, r.log).Info("extraction finished",
		zap.Duration("elapsed", time.Since(start)))
	return nil
}

// partition splits the requested tables into independent tables and
// tables that need parent identifiers. Special tables count as the
// latter so they run after the plain independents. Unknown tables are
// logged and skipped.
func (r *Runner) partition() (independent, dependent []string) {
	for _, name := range r.cfg.TableList() {
		tableSchema, ok := r.registry.Lookup(name)
		if !ok {
			r.log.Warn("table is not configured, skipping",
				zap.String("table", name))
			metrics.TablesExtracted.WithLabelValues("skipped").Inc()
			continue
		}
		if tableSchema.HasDependency() || containsString(specialTables, name) {
			dependent = append(dependent, name)
		} else {
			independent = append(independent, name)
		}
	}
	return independent, dependent
}

func (r *Runner) extractTable(ctx context.Context, name string) error {
	tableSchema, ok := r.registry.Lookup(name)
	if !ok {
		return nil
	}
	ctx = context.WithValue(ctx, logger.TableKey, name)
	start := time.Now()

	records, err := r.client.ExtractTable(ctx,
		tableSchema.APIPath(),
		r.resolveFilters(tableSchema.Filters),
		tableSchema.Columns,
		r.cfg.PageSize)
	if err != nil {
		return err
	}

	if err := r.transformAndWrite(name, tableSchema, records); err != nil {
		return err
	}

	logger.WithContext(ctx, r.log).Info("table finished",
		zap.Duration("elapsed", time.Since(start)))
	return nil
}

func (r *Runner) extractChildTable(ctx context.Context, name string) error {
	tableSchema, ok := r.registry.Lookup(name)
	if !ok || !tableSchema.HasDependency() {
		return nil
	}
	ctx = context.WithValue(ctx, logger.TableKey, name)
	start := time.Now()

	parentIDs, err := r.lookupParentIDs(tableSchema.ParentTable(), tableSchema.ParentColumn())
	if err != nil {
		return err
	}

	valid := make([]string, 0, len(parentIDs))
	for _, id := range parentIDs {
		if _, bad := r.invalidParents[id]; !bad {
			valid = append(valid, id)
		}
	}
	if len(valid) == 0 {
		logger.WithContext(ctx, r.log).Warn("no valid parent identifiers, skipping table",
			zap.String("parent", tableSchema.ParentTable()))
		metrics.TablesExtracted.WithLabelValues("skipped").Inc()
		return nil
	}

	records, err := r.client.ExtractChildTable(ctx,
		tableSchema.APIPath(), valid, tableSchema.ChildPath(), r.cfg.PageSize)
	if err != nil {
		return err
	}

	if err := r.transformAndWrite(name, tableSchema, records); err != nil {
		return err
	}

	logger.WithContext(ctx, r.log).Info("table finished",
		zap.Duration("elapsed", time.Since(start)))
	return nil
}

// transformAndWrite runs records through the transformation pipeline,
// indexes their identifier columns, tracks invalid activities, and
// writes the result.
func (r *Runner) transformAndWrite(name string, tableSchema *schema.TableSchema, records []*models.Record) error {
	transformer := transform.New(r.tenant, tableSchema)

	var rows []*transform.Row
	for _, record := range records {
		rows = append(rows, transformer.Transform(record)...)
	}

	// Child tables are dependency leaves; only tables others can depend
	// on feed the identifier index.
	if !tableSchema.HasDependency() {
		for _, row := range rows {
			r.indexRow(name, row)
			if containsString(specialTables, name) {
				r.trackInvalidParent(tableSchema, row)
			}
		}
	}

	written, err := r.output.WriteTable(r.tenant, name, rows, r.cfg.Incremental)
	if err != nil {
		return errors.Wrapf(err, errors.ErrorTypeInternal, "failed to write table %s", name)
	}
	if !written {
		metrics.TablesExtracted.WithLabelValues("empty").Inc()
		return nil
	}

	metrics.TablesExtracted.WithLabelValues("written").Inc()
	metrics.RowsEmitted.WithLabelValues(name).Add(float64(len(rows)))
	return nil
}

// indexRow records every non-empty value of the row under its table and
// column, keeping first-seen order.
func (r *Runner) indexRow(table string, row *transform.Row) {
	for _, column := range row.Columns() {
		value, _ := row.Get(column)
		s := models.ValueString(value)
		if s == "" {
			continue
		}
		if r.parentIDs[table] == nil {
			r.parentIDs[table] = make(map[string][]string)
			r.parentSeen[table] = make(map[string]map[string]struct{})
		}
		if r.parentSeen[table][column] == nil {
			r.parentSeen[table][column] = make(map[string]struct{})
		}
		if _, ok := r.parentSeen[table][column][s]; ok {
			continue
		}
		r.parentSeen[table][column][s] = struct{}{}
		r.parentIDs[table][column] = append(r.parentIDs[table][column], s)
	}
}

// trackInvalidParent marks the derived id of a parent row whose primary
// key value is absent or empty. The row itself is still written; it is
// only disqualified from driving child extraction.
func (r *Runner) trackInvalidParent(tableSchema *schema.TableSchema, row *transform.Row) {
	primaryKey := "name"
	if len(tableSchema.PrimaryKeys) > 0 {
		primaryKey = tableSchema.PrimaryKeys[0]
	}
	column := schema.NormalizeColumn(primaryKey)

	if value, ok := row.Get(column); ok && models.ValueString(value) != "" {
		return
	}
	id, ok := row.Get(transform.IDColumn)
	if !ok {
		return
	}
	if s := models.ValueString(id); s != "" {
		r.invalidParents[s] = struct{}{}
	}
}

// lookupParentIDs returns the identifiers of a parent table's column,
// preferring the in-memory index from this run and falling back to the
// table written by a previous run.
func (r *Runner) lookupParentIDs(parentTable, parentColumn string) ([]string, error) {
	column := schema.NormalizeColumn(parentColumn)

	if byColumn, ok := r.parentIDs[parentTable]; ok {
		if ids, ok := byColumn[column]; ok {
			return ids, nil
		}
	}

	values, err := r.output.ReadColumnValues(r.tenant, parentTable, column)
	if err != nil {
		return nil, err
	}

	var ids []string
	seen := make(map[string]struct{}, len(values))
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		ids = append(ids, v)
	}
	return ids, nil
}

// resolveFilters fills date-window placeholders: a nil value resolves to
// the window start for "gte" filters and the window end for "lte"
// filters.
func (r *Runner) resolveFilters(filters []schema.Filter) []schema.Filter {
	resolved := make([]schema.Filter, len(filters))
	for i, f := range filters {
		if f.Value == nil {
			switch f.Operator {
			case "gte":
				v := r.from.Format(config.DateLayout)
				f.Value = &v
			case "lte":
				v := r.to.Format(config.DateLayout)
				f.Value = &v
			}
		}
		resolved[i] = f
	}
	return resolved
}

// customSchemas converts configured table overrides into registry
// schemas.
func customSchemas(cfg *config.Config) map[string]*schema.TableSchema {
	if len(cfg.CustomTables) == 0 {
		return nil
	}

	out := make(map[string]*schema.TableSchema, len(cfg.CustomTables))
	for name, override := range cfg.CustomTables {
		var source schema.Source
		if override.Parent != "" || override.RequirementTable != "" {
			source = schema.ChildSource{
				Parent: override.Parent,
				Child:  override.Child,
				Requirement: schema.Requirement{
					Table:  override.RequirementTable,
					Column: override.RequirementColumn,
				},
			}
		} else {
			path := override.Path
			if path == "" {
				path = name
			}
			source = schema.DirectSource{Path: path}
		}

		filters := make([]schema.Filter, len(override.Filters))
		for i, f := range override.Filters {
			filters[i] = schema.Filter{Field: f.Field, Operator: f.Operator, Value: f.Value}
		}

		out[name] = &schema.TableSchema{
			Name:                name,
			Source:              source,
			Columns:             override.Columns,
			Filters:             filters,
			PrimaryKeys:         override.PrimaryKeys,
			SecondaryKeys:       override.SecondaryKeys,
			Keys:                override.Keys,
			ListColumns:         override.ListColumns,
			ListOfObjectColumns: override.ListOfObjectColumns,
			NoPrefixColumns:     override.NoPrefixColumns,
		}
	}
	return out
}

func containsString(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}
