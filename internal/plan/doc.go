// Package plan provides the identity primitives shared by the logical and
// physical operator graphs: the OperatorKey that names every node, and the
// per-scope allocator that mints node ids.
//
// A scope is a session identifier; one is assigned per engine client. Ids
// within a scope are strictly increasing and never reused, so a key uniquely
// identifies a node for the lifetime of the process.
package plan
