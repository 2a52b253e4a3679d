// Package physical defines the physical operator graph: the executable IR
// produced by translation and consumed by the job coordinator.
//
// The hierarchy mirrors package logical but carries no schema machinery;
// physical nodes are execution descriptions. Plans are normalized to a
// single leaf (the final sink) before launch: the engine either reuses an
// existing store leaf or appends exactly one synthetic store.
//
// Terminology follows the dataflow direction: the "leaf" of a plan is the
// operator no other operator consumes, the end of the pipeline.
package physical
