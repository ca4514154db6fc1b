package compiler

import (
	"fmt"
	"os"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"

	"github.com/roach88/tppenforce/internal/ir"
)

// LoadFile compiles a single CUE file into a value.
func LoadFile(path string) (cue.Value, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return cue.Value{}, fmt.Errorf("read spec: %w", err)
	}
	ctx := cuecontext.New()
	v := ctx.CompileBytes(data, cue.Filename(path))
	if err := v.Err(); err != nil {
		return cue.Value{}, formatCUEError(err)
	}
	return v, nil
}

// LookupFunction compiles function.<name> from v.
func LookupFunction(v cue.Value, name string) (*ir.Function, error) {
	fnVal := v.LookupPath(cue.MakePath(cue.Str("function"), cue.Str(name)))
	if !fnVal.Exists() {
		return nil, &CompileError{
			Field:   "function",
			Message: fmt.Sprintf("function %q not found", name),
			Pos:     v.Pos(),
		}
	}
	return CompileFunction(fnVal)
}
