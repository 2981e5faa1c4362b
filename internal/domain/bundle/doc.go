// Package bundle contains the bundle descriptor: the declarative record the
// bundler consumes to produce the RWB application bundle.
//
// A Descriptor is created once per release and never mutated while a workflow
// runs; steps receive clones.
package bundle
