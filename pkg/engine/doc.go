// Package engine binds a form registry to a data source catalog and an
// entity store. It is the entry point runtimes use: Mount compiles (and
// memoizes) the validator and layout plan of a form, prefills it from the
// stored entity and opens an option session; Form.Submit validates and then
// patches in one step; Detail renders read-only views.
package engine
