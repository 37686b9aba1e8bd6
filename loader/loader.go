// Package loader materializes query results into instances of managed
// types. Columns are matched to attributes by column name, the concrete
// subtype of each row is picked through the discriminator column of its
// hierarchy, and the resulting value vector is handed to the type's
// instantiator.
package loader

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/syssam/hydrate"
	"github.com/syssam/hydrate/dialect"
	"github.com/syssam/hydrate/dialect/sql"
	"github.com/syssam/hydrate/instantiator"
	"github.com/syssam/hydrate/metamodel"
	"github.com/syssam/hydrate/ordering"
)

// Loader reads rows into instances. It is safe for concurrent use.
type Loader struct {
	mm          *metamodel.Metamodel
	logger      *slog.Logger
	session     *hydrate.Session
	concurrency int
}

// Option configures a Loader.
type Option func(*config) error

type config struct {
	logger      *slog.Logger
	session     *hydrate.Session
	concurrency int
}

// WithLogger sets the logger. Defaults to slog.Default.
func WithLogger(l *slog.Logger) Option {
	return func(c *config) error {
		if l == nil {
			return hydrate.NewConfigError("", "WithLogger", nil, "logger must not be nil")
		}
		c.logger = l
		return nil
	}
}

// WithSession sets the session handed to instantiators.
func WithSession(s *hydrate.Session) Option {
	return func(c *config) error {
		c.session = s
		return nil
	}
}

// WithConcurrency limits the number of goroutines InstantiateAll uses.
func WithConcurrency(n int) Option {
	return func(c *config) error {
		if n < 1 {
			return hydrate.NewConfigError("", "WithConcurrency", n, "concurrency must be positive")
		}
		c.concurrency = n
		return nil
	}
}

// New returns a Loader over mm.
func New(mm *metamodel.Metamodel, opts ...Option) (*Loader, error) {
	if mm == nil {
		return nil, hydrate.NewConfigError("", "metamodel", nil, "metamodel must not be nil")
	}
	c := &config{logger: slog.Default(), concurrency: 8}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}
	return &Loader{
		mm:          mm,
		logger:      c.logger,
		session:     c.session,
		concurrency: c.concurrency,
	}, nil
}

// Load runs query on drv and scans every returned row as an instance of
// role or one of its subtypes.
func (l *Loader) Load(ctx context.Context, drv dialect.Querier, role, query string, args ...any) (_ []any, err error) {
	if args == nil {
		args = []any{}
	}
	rows := &sql.Rows{}
	if err := drv.Query(ctx, query, args, rows); err != nil {
		return nil, fmt.Errorf("loader: load %s: %w", role, err)
	}
	defer func() {
		err = errors.Join(err, rows.Close())
	}()
	return l.Scan(ctx, rows, role)
}

// Scan reads all remaining rows. It does not close rows.
func (l *Loader) Scan(ctx context.Context, rows sql.ColumnScanner, role string) ([]any, error) {
	base, ok := l.mm.Type(role)
	if !ok {
		return nil, hydrate.NewConfigError(role, "", nil, "unknown type")
	}
	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("loader: columns: %w", err)
	}
	p := newPlan(l.mm, base, columns)
	sess := l.sessionFor()
	var out []any
	for rows.Next() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		values := make([]any, len(columns))
		dest := make([]any, len(columns))
		for i := range values {
			dest[i] = &values[i]
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("loader: scan %s: %w", role, err)
		}
		t, err := p.concrete(values)
		if err != nil {
			return nil, err
		}
		v, err := p.instantiate(t, values, sess)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("loader: rows: %w", err)
	}
	sess.Logger().DebugContext(ctx, "rows loaded", "type", base.Name(), "count", len(out))
	return out, nil
}

// sessionFor returns the configured session, or a fresh one logging
// through the loader's logger.
func (l *Loader) sessionFor() *hydrate.Session {
	if l.session != nil {
		return l.session
	}
	return hydrate.NewSession(hydrate.WithSessionLogger(l.logger))
}

// InstantiateAll instantiates role once per vector, in parallel. The
// result keeps the order of vectors. The first failure cancels the rest.
func (l *Loader) InstantiateAll(ctx context.Context, role string, vectors [][]any) ([]any, error) {
	t, ok := l.mm.Type(role)
	if !ok {
		return nil, hydrate.NewConfigError(role, "", nil, "unknown type")
	}
	inst := t.Representation().Instantiator()
	sess := l.sessionFor()
	out := make([]any, len(vectors))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(l.concurrency)
	for i, values := range vectors {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			v, err := inst.Instantiate(values, sess)
			if err != nil {
				return fmt.Errorf("loader: vector %d: %w", i, err)
			}
			out[i] = v
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	sess.Logger().DebugContext(ctx, "vectors instantiated", "type", t.Name(), "count", len(out))
	return out, nil
}

// plan holds the per result set state: the discriminator column position
// and one column correspondence table per concrete type.
type plan struct {
	mm      *metamodel.Metamodel
	base    *metamodel.ManagedType
	columns []string
	disc    int
	tables  map[*metamodel.ManagedType]*ordering.Table
}

func newPlan(mm *metamodel.Metamodel, base *metamodel.ManagedType, columns []string) *plan {
	p := &plan{
		mm:      mm,
		base:    base,
		columns: columns,
		disc:    -1,
		tables:  make(map[*metamodel.ManagedType]*ordering.Table),
	}
	if base.Discriminator() != nil {
		m, _ := ordering.ResolveWithGaps(columns, []string{base.DiscriminatorColumn()})
		p.disc = m[0]
	}
	return p
}

// concrete returns the type of the row. Rows without a discriminator
// value are instances of the base type.
func (p *plan) concrete(values []any) (*metamodel.ManagedType, error) {
	if p.disc < 0 || values[p.disc] == nil {
		return p.base, nil
	}
	return p.mm.ResolveSubtype(p.base.Name(), text(values[p.disc]))
}

// instantiate builds the instance of t for a row. When the result set
// misses some attribute columns, layout based instantiators get an empty
// instance and only the present columns are injected, so a missing column
// never reads as a null one.
func (p *plan) instantiate(t *metamodel.ManagedType, values []any, s *hydrate.Session) (any, error) {
	table := p.table(t, s.Logger())
	inst := t.Representation().Instantiator()
	if !table.HasGaps() || !injectable(inst.Kind()) {
		return inst.Instantiate(table.Apply(values), s)
	}
	v, err := inst.Instantiate(nil, s)
	if err != nil {
		return nil, err
	}
	if err := t.Representation().Layout().InjectMapped(v, values, table.Mapping()); err != nil {
		return nil, err
	}
	return v, nil
}

// table returns the column correspondence of t, in attribute order.
func (p *plan) table(t *metamodel.ManagedType, logger *slog.Logger) *ordering.Table {
	table, ok := p.tables[t]
	if !ok {
		attrs := t.Attributes()
		names := make([]string, len(attrs))
		for i, a := range attrs {
			names[i] = a.Column()
		}
		table = ordering.NewTable(p.columns, names)
		p.tables[t] = table
		if table.HasGaps() {
			logger.Debug("result set misses attribute columns", "type", t.Name(), "columns", p.columns)
		}
	}
	return table
}

// injectable reports whether instances of kind are filled slot by slot
// through the representation layout after construction.
func injectable(kind instantiator.Kind) bool {
	switch kind {
	case instantiator.Standard, instantiator.Optimized, instantiator.Map, instantiator.Proxy:
		return true
	default:
		return false
	}
}

// text turns driver byte slices into strings so they compare equal to
// discriminator values declared in mappings.
func text(v any) any {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return v
}
