// Package hydrate materializes domain-model instances from persisted
// attribute values and classifies existing objects against managed types.
//
// A metamodel is built once from boot descriptors (see package boot). For
// every managed type it selects a representation strategy: a native Go
// struct, a map pseudo-object tagged with the type's role name, a lazy proxy,
// a fixed-arity record constructor or a user supplied instantiator.
// Inheritance roots additionally carry a discriminator strategy that maps a
// stored marker value to the concrete subtype.
//
// # Packages
//
//   - boot: boot-time type and attribute descriptors, YAML mapping files
//   - metamodel: managed types, attributes and metamodel lookups
//   - representation: per-type strategy (instantiator, accessors, value layout)
//   - instantiator: the instantiator variants
//   - property: attribute access strategies and their resolution
//   - discriminator: discriminator value mapping
//   - ordering: attribute ordering correspondence tables
//   - loader: row to instance materialization on top of dialect/sql
//
// # Example
//
//	mapping, err := boot.LoadFile("mapping.yaml")
//	if err != nil {
//	    return err
//	}
//	mm, err := metamodel.New(mapping, metamodel.WithGoType("app.User", reflect.TypeOf(User{})))
//	if err != nil {
//	    return err
//	}
//	user, _ := mm.Type("app.User")
//	v, err := user.Representation().Instantiator().Instantiate([]any{1, "alice"}, hydrate.NewSession())
//
// This package holds the error taxonomy shared by all subpackages and the
// Session handed to instantiators.
package hydrate
