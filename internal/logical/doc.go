// Package logical defines the logical operator graph: the IR the front end
// builds from a user's plan and the input to logical→physical translation.
//
// Operators form a DAG per named alias. Each operator knows its key, its
// ordered inputs, and how to infer its output schema. Schema inference is
// memoized: a successful computation is cached once, a failed one is never
// cached and the error is re-raised on every call.
//
// The operator set is closed over the Visitor interface: one Visit method
// per concrete variant. Adding a variant means adding one method to
// Visitor and implementing Accept on the new type; existing operators are
// untouched.
package logical
