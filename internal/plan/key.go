package plan

import "fmt"

// OperatorKey identifies an operator node within a scope.
//
// Keys are comparable and used as map keys throughout the compiler: the
// logical→physical key map, the physical operator table, and the
// materialized-result cache are all keyed by OperatorKey.
type OperatorKey struct {
	Scope string
	ID    int64
}

// NewOperatorKey creates a key for the given scope and id.
func NewOperatorKey(scope string, id int64) OperatorKey {
	return OperatorKey{Scope: scope, ID: id}
}

// String renders the key as "scope-id", matching the form operator names
// embed in plan dumps.
func (k OperatorKey) String() string {
	return fmt.Sprintf("%s-%d", k.Scope, k.ID)
}
