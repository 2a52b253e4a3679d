// Package translate compiles a logical plan into an isomorphic physical
// plan.
//
// Translation is a pure function of the logical plan: no I/O, no network,
// no engine state. Nodes are visited in dependency order (inputs before
// consumers) and each logical node produces one or more physical nodes
// wired to the already-translated physical children, preserving input
// order. Failure is all-or-nothing: either the whole physical plan is
// returned or none of it.
package translate
