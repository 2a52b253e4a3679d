package cli

import (
	"fmt"
	"os"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/token"
)

// Error codes for manifest loading.
const (
	ErrCodeNotFound    = "MANIFEST_NOT_FOUND"
	ErrCodeBuildFailed = "MANIFEST_BUILD_FAILED"
	ErrCodeBadShape    = "MANIFEST_BAD_SHAPE"
	ErrCodeBadGraph    = "MANIFEST_BAD_GRAPH"
)

// LoadError is a manifest loading failure, positioned when CUE can say
// where it happened.
type LoadError struct {
	Code    string
	Message string
	Pos     token.Pos
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Manifest is the data form of one plan: a named alias and its operator
// graph as a flat node list wired by local ids.
type Manifest struct {
	Alias string         `json:"alias"`
	Nodes []ManifestNode `json:"nodes"`
	Root  int            `json:"root"`
}

// ManifestNode is one operator declaration. Kind selects the variant;
// the reference fields (Input, Cond, Rel, Lhs, Rhs) name other nodes by
// their manifest-local id.
type ManifestNode struct {
	ID   int    `json:"id"`
	Kind string `json:"kind"`

	// load / store
	Location string          `json:"location,omitempty"`
	Format   string          `json:"format,omitempty"`
	Schema   []ManifestField `json:"schema,omitempty"`

	// filter / store
	Input int `json:"input,omitempty"`
	Cond  int `json:"cond,omitempty"`

	// column
	Rel   int    `json:"rel,omitempty"`
	Field string `json:"field,omitempty"`

	// const (exactly one of the three)
	Str  *string `json:"str,omitempty"`
	Int  *int64  `json:"int,omitempty"`
	Bool *bool   `json:"bool,omitempty"`

	// binary / bincond
	Op  string `json:"op,omitempty"`
	Lhs int    `json:"lhs,omitempty"`
	Rhs int    `json:"rhs,omitempty"`
}

// ManifestField is one declared schema field.
type ManifestField struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// LoadManifest reads and evaluates the CUE manifest at path. The manifest
// declares its plan under the top-level "plan" field.
func LoadManifest(path string) (*Manifest, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("read manifest: %v", err)}
	}

	ctx := cuecontext.New()
	value := ctx.CompileBytes(raw, cue.Filename(path))
	if err := value.Err(); err != nil {
		return nil, &LoadError{Code: ErrCodeBuildFailed, Message: fmt.Sprintf("evaluate manifest: %v", err)}
	}

	planVal := value.LookupPath(cue.ParsePath("plan"))
	if !planVal.Exists() {
		return nil, &LoadError{Code: ErrCodeBadShape, Message: "manifest has no top-level \"plan\" field", Pos: value.Pos()}
	}

	var m Manifest
	if err := planVal.Decode(&m); err != nil {
		return nil, &LoadError{Code: ErrCodeBadShape, Message: fmt.Sprintf("decode plan: %v", err), Pos: planVal.Pos()}
	}
	if m.Alias == "" {
		return nil, &LoadError{Code: ErrCodeBadShape, Message: "plan.alias is required", Pos: planVal.Pos()}
	}
	if len(m.Nodes) == 0 {
		return nil, &LoadError{Code: ErrCodeBadShape, Message: "plan.nodes is empty", Pos: planVal.Pos()}
	}
	return &m, nil
}
