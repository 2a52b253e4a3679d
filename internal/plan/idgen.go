package plan

import "sync"

// IDGenerator allocates monotonically increasing node ids per scope.
//
// Within one scope, successive calls to Next return strictly increasing
// values and a value is never handed out twice. Scopes are independent:
// allocation in one scope does not advance another.
//
// Thread-safety: safe for concurrent use. Multiple engine instances in one
// process may allocate ids for the same scope concurrently (the sink
// injection path does this during Execute).
type IDGenerator struct {
	mu   sync.Mutex
	next map[string]int64
}

// NewIDGenerator creates an empty generator. The first id allocated in any
// scope is 1.
func NewIDGenerator() *IDGenerator {
	return &IDGenerator{next: make(map[string]int64)}
}

// NewIDGeneratorAt creates a generator whose next allocation in scope
// returns start. Used when rebuilding plans whose keys were minted
// elsewhere, so fresh ids never collide with existing nodes.
func NewIDGeneratorAt(scope string, start int64) *IDGenerator {
	g := NewIDGenerator()
	g.next[scope] = start - 1
	return g
}

// Next returns the next id for scope and advances the counter.
func (g *IDGenerator) Next(scope string) int64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.next[scope]++
	return g.next[scope]
}

// NextKey is a convenience that allocates an id and wraps it in a key.
func (g *IDGenerator) NextKey(scope string) OperatorKey {
	return NewOperatorKey(scope, g.Next(scope))
}

// Current returns the most recently allocated id for scope without
// advancing, or 0 if nothing has been allocated.
func (g *IDGenerator) Current(scope string) int64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.next[scope]
}
