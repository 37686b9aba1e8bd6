package gen

import (
	"go/token"

	"github.com/syssam/hydrate"
)

// Config holds the generator configuration.
type Config struct {
	// Package is the name of the generated package.
	Package string
	// Target is the directory generated files are written to.
	Target string
	// Header is the comment placed at the top of every generated file.
	Header string
	// RegistryVar is the name of the generated *registry.Registry variable.
	RegistryVar string
}

// Option configures code generation.
type Option func(*Config) error

// WithPackage sets the name of the generated package.
func WithPackage(name string) Option {
	return func(c *Config) error {
		if !token.IsIdentifier(name) {
			return hydrate.NewConfigError("", "Package", name, "package must be a Go identifier")
		}
		c.Package = name
		return nil
	}
}

// WithTarget sets the output directory.
func WithTarget(dir string) Option {
	return func(c *Config) error {
		if dir == "" {
			return hydrate.NewConfigError("", "Target", nil, "target directory cannot be empty")
		}
		c.Target = dir
		return nil
	}
}

// WithHeader sets the file header comment.
func WithHeader(header string) Option {
	return func(c *Config) error {
		c.Header = header
		return nil
	}
}

// WithRegistryVar sets the name of the exported registry variable.
func WithRegistryVar(name string) Option {
	return func(c *Config) error {
		if !token.IsIdentifier(name) || !token.IsExported(name) {
			return hydrate.NewConfigError("", "RegistryVar", name, "registry variable must be an exported Go identifier")
		}
		c.RegistryVar = name
		return nil
	}
}

// NewConfig returns a Config with defaults applied before opts.
func NewConfig(opts ...Option) (*Config, error) {
	c := &Config{
		Package:     "hydrategen",
		Target:      "hydrategen",
		Header:      "Code generated by hydrate. DO NOT EDIT.",
		RegistryVar: "Registry",
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}
	return c, nil
}
