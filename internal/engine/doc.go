// Package engine drives plan compilation and distributed job submission.
//
// Engine is the abstract contract; ClusterEngine is the concrete engine
// bound to a storage backend and a job coordinator. Its lifecycle is
// UNINITIALIZED, CONNECTING, READY, CLOSED. Init resolves endpoints (a
// provisioning handshake when one is configured, explicit overrides with
// default-port fixup otherwise), connects to storage, and dials the
// coordinator unless the endpoint selects local in-process execution.
//
// Execute is synchronous. It normalizes the physical plan to a single
// store leaf, synthesizing one with a fresh key and a temporary location
// when the caller did not materialize explicitly, launches the plan as
// one job, and blocks until the job is terminal. The returned Job is
// immutable and already final.
package engine
