package ir

import (
	"errors"
	"slices"
)

// Verify checks the structural invariants of f and returns every violation
// found, joined with errors.Join. A nil result means f is well formed.
//
// Checked:
//   - every live node's operands are defined by live nodes or arguments,
//     and are defined before the node in document order
//   - re-inferred result types equal the recorded ones
//   - use lists agree exactly with operand lists
//   - the body ends with a single return node
func (f *Function) Verify() error {
	var errs []error

	defined := make([]bool, len(f.values))
	for _, a := range f.args {
		defined[a] = true
	}

	returns := 0
	for pos, n := range f.body {
		nd := f.nodes[n]
		if nd.erased {
			errs = append(errs, newError(ErrCodeInvalidIR, n, NoValue, "erased node in body"))
			continue
		}
		if nd.kind == KindReturn {
			returns++
			if pos != len(f.body)-1 {
				errs = append(errs, newError(ErrCodeInvalidIR, n, NoValue, "return is not the last node"))
			}
		}

		operandTypes := make([]Type, len(nd.operands))
		for i, v := range nd.operands {
			if !defined[v] {
				errs = append(errs, newError(ErrCodeInvalidIR, n, v, "operand %d used before definition", i))
			}
			if !slices.Contains(f.values[v].uses, Use{Node: n, Operand: i}) {
				errs = append(errs, newError(ErrCodeInvalidIR, n, v, "operand %d missing from use list", i))
			}
			operandTypes[i] = f.values[v].typ
		}

		resultTypes, err := InferResultTypes(nd.kind, operandTypes, nd.attrs)
		if err != nil {
			var irErr *Error
			if errors.As(err, &irErr) && irErr.Node == NoNode {
				irErr.Node = n
			}
			errs = append(errs, err)
		} else if len(resultTypes) != len(nd.results) {
			errs = append(errs, newError(ErrCodeInvalidIR, n, NoValue, "expected %d result(s), has %d", len(resultTypes), len(nd.results)))
		} else {
			for i, r := range nd.results {
				if !resultTypes[i].Equal(f.values[r].typ) {
					errs = append(errs, newError(ErrCodeTypeMismatch, n, r,
						"result %d recorded as %s, inferred %s", i, f.values[r].typ, resultTypes[i]))
				}
			}
		}
		for _, r := range nd.results {
			defined[r] = true
		}
	}

	for v, vd := range f.values {
		for _, u := range vd.uses {
			nd := f.nodes[u.Node]
			if nd.erased || u.Operand >= len(nd.operands) || nd.operands[u.Operand] != ValueID(v) {
				errs = append(errs, newError(ErrCodeInvalidIR, u.Node, ValueID(v), "stale use of operand %d", u.Operand))
			}
		}
	}

	if returns != 1 {
		errs = append(errs, invalid("function %q must end with exactly one return, found %d", f.Name, returns))
	}

	return errors.Join(errs...)
}

// DeadCodeEliminate erases live nodes whose results are all unused, until
// none remain. Return nodes are never erased. It returns the number of
// nodes erased.
func (f *Function) DeadCodeEliminate() int {
	erased := 0
	for {
		changed := false
		for i := len(f.body) - 1; i >= 0; i-- {
			n := f.body[i]
			nd := f.nodes[n]
			if nd.kind == KindReturn {
				continue
			}
			used := false
			for _, r := range nd.results {
				if len(f.values[r].uses) > 0 {
					used = true
					break
				}
			}
			if used {
				continue
			}
			if err := f.Erase(n); err == nil {
				erased++
				changed = true
			}
		}
		if !changed {
			return erased
		}
	}
}
