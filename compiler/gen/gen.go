// Package gen generates the registration code that binds mapped types to
// their Go types and allocation factories, so that metamodels built from
// the same mapping use optimized instantiators instead of reflection.
//
// One file declares the registry variable. Each Go package referenced by
// the mapping gets its own file with an init function:
//
//	var Registry = registry.New()
//
//	func init() {
//		Registry.MustRegisterType("zoo.Dog", reflect.TypeFor[model.Dog]())
//		Registry.MustRegisterFactory("zoo.Dog", func() any { return &model.Dog{} })
//	}
package gen

import (
	"context"
	"fmt"
	"go/token"
	"os"
	"path"
	"path/filepath"
	"runtime"
	"slices"
	"strings"

	"github.com/dave/jennifer/jen"
	"golang.org/x/sync/errgroup"

	"github.com/syssam/hydrate"
	"github.com/syssam/hydrate/boot"
)

const registryPkg = "github.com/syssam/hydrate/registry"

// File is a generated Go file.
type File struct {
	Name string
	*jen.File
}

// Generate renders the registration files for m. Types without a Go
// package and map-mode types are skipped.
func Generate(m *boot.Mapping, cfg *Config) ([]*File, error) {
	if m == nil || cfg == nil {
		return nil, hydrate.NewConfigError("", "mapping", nil, "mapping and config are required")
	}
	byPkg := make(map[string][]*boot.Type)
	var errs []error
	for _, t := range m.Types {
		if t == nil || t.GoPackage == "" || t.Mode == boot.ModeMap {
			continue
		}
		if ident := t.GoIdent(); !token.IsIdentifier(ident) || !token.IsExported(ident) {
			errs = append(errs, hydrate.NewConfigError(t.Name, "go_name", ident, "not an exported Go identifier"))
			continue
		}
		byPkg[t.GoPackage] = append(byPkg[t.GoPackage], t)
	}
	if err := hydrate.NewAggregateError(errs...); err != nil {
		return nil, err
	}
	files := []*File{registryFile(cfg)}
	pkgs := make([]string, 0, len(byPkg))
	for p := range byPkg {
		pkgs = append(pkgs, p)
	}
	slices.Sort(pkgs)
	names := make(map[string]int)
	for _, p := range pkgs {
		base := fileName(p)
		name := base
		if n := names[base]; n > 0 {
			name = fmt.Sprintf("%s_%d", base, n)
		}
		names[base]++
		files = append(files, &File{Name: "register_" + name + ".go", File: initFile(cfg, byPkg[p])})
	}
	return files, nil
}

// Save generates the files for m and writes them into cfg.Target.
func Save(ctx context.Context, m *boot.Mapping, cfg *Config) error {
	files, err := Generate(m, cfg)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(cfg.Target, 0o755); err != nil {
		return fmt.Errorf("gen: create target: %w", err)
	}
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for _, f := range files {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := f.Save(filepath.Join(cfg.Target, f.Name)); err != nil {
				return fmt.Errorf("gen: write %s: %w", f.Name, err)
			}
			return nil
		})
	}
	return g.Wait()
}

func newFile(cfg *Config) *jen.File {
	f := jen.NewFile(cfg.Package)
	if cfg.Header != "" {
		f.HeaderComment(cfg.Header)
	}
	return f
}

func registryFile(cfg *Config) *File {
	f := newFile(cfg)
	f.Commentf("%s holds the Go types and factories of the mapped types.", cfg.RegistryVar)
	f.Var().Id(cfg.RegistryVar).Op("=").Qual(registryPkg, "New").Call()
	return &File{Name: "registry.go", File: f}
}

func initFile(cfg *Config, types []*boot.Type) *jen.File {
	f := newFile(cfg)
	f.Func().Id("init").Params().BlockFunc(func(g *jen.Group) {
		for _, t := range types {
			typ := jen.Qual(t.GoPackage, t.GoIdent())
			g.Id(cfg.RegistryVar).Dot("MustRegisterType").Call(
				jen.Lit(t.Name),
				jen.Qual("reflect", "TypeFor").Index(typ.Clone()).Call(),
			)
			if !optimizable(t) {
				continue
			}
			g.Id(cfg.RegistryVar).Dot("MustRegisterFactory").Call(
				jen.Lit(t.Name),
				jen.Func().Params().Any().Block(
					jen.Return(jen.Op("&").Add(typ.Clone()).Values()),
				),
			)
		}
	})
	return f
}

// optimizable reports whether instances of t are allocated by a factory.
func optimizable(t *boot.Type) bool {
	switch {
	case t.Abstract, t.NotInstantiable, t.Instantiator != "", t.Proxy:
		return false
	default:
		return t.Mode == "" || t.Mode == boot.ModeNative
	}
}

func fileName(pkg string) string {
	return strings.ToLower(strings.NewReplacer("-", "_", ".", "_").Replace(path.Base(pkg)))
}
