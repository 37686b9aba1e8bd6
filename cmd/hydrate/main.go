// hydrate checks mapping documents, loads rows through a mapping and
// generates the registration code of mapped Go types.
//
//	hydrate check [-watch] zoo.yaml
//	hydrate load -dialect sqlite -dsn zoo.db -type zoo.Animal [-format json] zoo.yaml 'SELECT * FROM animals'
//	hydrate gen -package zoogen -target ./zoogen zoo.yaml
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/syssam/hydrate/boot"
	"github.com/syssam/hydrate/compiler/gen"
	"github.com/syssam/hydrate/dialect/sql"
	"github.com/syssam/hydrate/loader"
	"github.com/syssam/hydrate/metamodel"
)

const usage = `usage: hydrate <command> [flags] <mapping.yaml> [args]

commands:
  check   build the metamodel of a mapping and print a summary
  load    run a query and print the loaded instances
  gen     generate the type registration code of a mapping
`

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "hydrate: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	if len(args) == 0 {
		fmt.Fprint(stderr, usage)
		return errors.New("missing command")
	}
	switch cmd, rest := args[0], args[1:]; cmd {
	case "check":
		return check(ctx, rest, stdout, stderr)
	case "load":
		return load(ctx, rest, stdout, stderr)
	case "gen":
		return generate(ctx, rest, stdout, stderr)
	case "help", "-h", "-help", "--help":
		fmt.Fprint(stdout, usage)
		return nil
	default:
		fmt.Fprint(stderr, usage)
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func newLogger(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

func check(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("check", flag.ContinueOnError)
	fs.SetOutput(stderr)
	watch := fs.Bool("watch", false, "re-check the mapping every time it changes")
	verbose := fs.Bool("v", false, "verbose logging")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errors.New("check: expected one mapping file")
	}
	logger := newLogger(stderr, *verbose)
	path := fs.Arg(0)
	if !*watch {
		m, err := boot.LoadFile(path)
		if err != nil {
			return err
		}
		return summarize(stdout, m, logger)
	}
	return boot.Watch(ctx, path, func(m *boot.Mapping, err error) {
		if err == nil {
			err = summarize(stdout, m, logger)
		}
		if err != nil {
			logger.Error("mapping rejected", "path", path, "error", err)
		}
	})
}

func summarize(w io.Writer, m *boot.Mapping, logger *slog.Logger) error {
	mm, err := dynamic(m, logger)
	if err != nil {
		return err
	}
	for _, t := range mm.Types() {
		line := fmt.Sprintf("%-30s %-11s attrs=%d", t.Name(), t.Kind(), len(t.Attributes()))
		if t.Super() != nil {
			line += " super=" + t.Super().Name()
		}
		if t.Discriminator() != nil {
			v, err := mm.DiscriminatorValue(t.Name())
			if err != nil {
				return err
			}
			line += fmt.Sprintf(" %s=%v", t.DiscriminatorColumn(), v)
		}
		fmt.Fprintln(w, line)
	}
	fmt.Fprintf(w, "%d types, %d entities, %d embeddables\n", len(mm.Types()), len(mm.Entities()), len(mm.Embeddables()))
	return nil
}

// dynamic builds the metamodel of m with every type in map mode, since the
// Go types of the mapping are not linked into the command.
func dynamic(m *boot.Mapping, logger *slog.Logger) (*metamodel.Metamodel, error) {
	for _, t := range m.Types {
		t.Mode = boot.ModeMap
		t.Instantiator = ""
		t.Proxy = false
	}
	population := metamodel.ParsePopulationSetting(m.Population)
	if population == metamodel.PopulationEnabled {
		logger.Debug("static index disabled for map-mode types", "population", population.String())
		population = metamodel.PopulationIgnoreUnsupported
	}
	return metamodel.New(m, metamodel.WithPopulation(population), metamodel.WithLogger(logger))
}

func load(ctx context.Context, args []string, stdout, stderr io.Writer) (err error) {
	fs := flag.NewFlagSet("load", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var (
		dialectName = fs.String("dialect", "sqlite", "database dialect: sqlite, mysql or postgres")
		dsn         = fs.String("dsn", "", "data source name")
		role        = fs.String("type", "", "managed type of the loaded rows")
		format      = fs.String("format", "json", "output format: json or msgpack")
		slow        = fs.Duration("slow", 200*time.Millisecond, "slow statement threshold")
		verbose     = fs.Bool("v", false, "verbose logging")
	)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() < 2 {
		return errors.New("load: expected a mapping file and a query")
	}
	if *dsn == "" || *role == "" {
		return errors.New("load: -dsn and -type are required")
	}
	f, err := loader.ParseFormat(*format)
	if err != nil {
		return err
	}
	logger := newLogger(stderr, *verbose)
	m, err := boot.LoadFile(fs.Arg(0))
	if err != nil {
		return err
	}
	mm, err := dynamic(m, logger)
	if err != nil {
		return err
	}
	drv, err := sql.Open(*dialectName, *dsn)
	if err != nil {
		return err
	}
	defer func() {
		err = errors.Join(err, drv.Close())
	}()
	stats := sql.NewStatsDriver(sql.NewLogDriver(drv, logger), sql.WithSlowThreshold(*slow), sql.WithStatsLogger(logger))
	l, err := loader.New(mm, loader.WithLogger(logger))
	if err != nil {
		return err
	}
	queryArgs := make([]any, 0, fs.NArg()-2)
	for _, a := range fs.Args()[2:] {
		queryArgs = append(queryArgs, a)
	}
	tx, err := stats.Tx(ctx)
	if err != nil {
		return fmt.Errorf("load: begin: %w", err)
	}
	objs, err := l.Load(ctx, tx, *role, fs.Arg(1), queryArgs...)
	if err != nil {
		return errors.Join(err, tx.Rollback())
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("load: commit: %w", err)
	}
	logger.Debug("load finished", "stats", stats.QueryStats().Stats().String())
	return l.Encode(stdout, f, objs)
}

func generate(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("gen", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var (
		pkg    = fs.String("package", "hydrategen", "name of the generated package")
		target = fs.String("target", "", "output directory (default: the package name)")
		header = fs.String("header", "", "header comment of the generated files")
		regVar = fs.String("var", "Registry", "name of the generated registry variable")
	)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errors.New("gen: expected one mapping file")
	}
	m, err := boot.LoadFile(fs.Arg(0))
	if err != nil {
		return err
	}
	if *target == "" {
		*target = *pkg
	}
	opts := []gen.Option{gen.WithPackage(*pkg), gen.WithTarget(*target), gen.WithRegistryVar(*regVar)}
	if *header != "" {
		opts = append(opts, gen.WithHeader(strings.TrimSpace(*header)))
	}
	cfg, err := gen.NewConfig(opts...)
	if err != nil {
		return err
	}
	if err := gen.Save(ctx, m, cfg); err != nil {
		return err
	}
	fmt.Fprintf(stdout, "generated %s\n", cfg.Target)
	return nil
}
