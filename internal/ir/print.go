package ir

import (
	"fmt"
	"strconv"
	"strings"
)

// Print renders f in its deterministic textual form.
//
// Arguments are named %arg0..%argN; node results are numbered %0..%N in
// document order, so two functions with the same live structure print
// identically regardless of arena layout. Erased nodes are not printed.
//
// Example:
//
//	func @gemm(%arg0: tensor<6x4xf32>, %arg1: tensor<4x16xf32>, %arg2: tensor<6x16xf32>) {
//	  %0 = contraction "tpp.matmul" ins(%arg0, %arg1) outs(%arg2) : tensor<6x16xf32>
//	  return %0 : tensor<6x16xf32>
//	}
func Print(f *Function) string {
	p := &printer{f: f, names: make(map[ValueID]string)}
	return p.print()
}

// String implements fmt.Stringer via Print.
func (f *Function) String() string {
	return Print(f)
}

type printer struct {
	f     *Function
	names map[ValueID]string
	next  int
	b     strings.Builder
}

func (p *printer) print() string {
	f := p.f
	fmt.Fprintf(&p.b, "func @%s(", f.Name)
	for i, a := range f.args {
		name := fmt.Sprintf("%%arg%d", i)
		p.names[a] = name
		if i > 0 {
			p.b.WriteString(", ")
		}
		fmt.Fprintf(&p.b, "%s: %s", name, f.values[a].typ)
	}
	p.b.WriteString(") {\n")
	for _, n := range f.body {
		p.b.WriteString("  ")
		p.node(n)
		p.b.WriteByte('\n')
	}
	p.b.WriteString("}\n")
	return p.b.String()
}

func (p *printer) name(v ValueID) string {
	if name, ok := p.names[v]; ok {
		return name
	}
	return fmt.Sprintf("%%<unknown:%d>", v)
}

func (p *printer) joinNames(vs []ValueID) string {
	parts := make([]string, len(vs))
	for i, v := range vs {
		parts[i] = p.name(v)
	}
	return strings.Join(parts, ", ")
}

func (p *printer) node(n NodeID) {
	f := p.f
	nd := f.nodes[n]
	if len(nd.results) > 0 {
		results := make([]string, len(nd.results))
		for i, r := range nd.results {
			name := "%" + strconv.Itoa(p.next)
			p.next++
			p.names[r] = name
			results[i] = name
		}
		p.b.WriteString(strings.Join(results, ", "))
		p.b.WriteString(" = ")
	}

	operandType := func(i int) Type { return f.values[nd.operands[i]].typ }
	resultType := func() Type { return f.values[nd.results[0]].typ }

	switch a := nd.attrs.(type) {
	case ConstantAttrs:
		fmt.Fprintf(&p.b, "constant %s : %s", a.Literal(), a.Type)

	case ContractionAttrs:
		fmt.Fprintf(&p.b, "contraction %q ins(%s, %s) outs(%s)",
			a.Tag, p.name(nd.operands[0]), p.name(nd.operands[1]), p.name(nd.operands[2]))
		if a.Combiner != "" && a.Combiner != CombinerAdd {
			fmt.Fprintf(&p.b, " combiner(%s)", a.Combiner)
		}
		fmt.Fprintf(&p.b, " : %s", resultType())

	case PadAttrs:
		fmt.Fprintf(&p.b, "pad %s, %s low%s high%s",
			p.name(nd.operands[0]), p.name(nd.operands[1]), formatInts(a.Low), formatInts(a.High))
		if a.NoFold {
			p.b.WriteString(" nofold")
		}
		fmt.Fprintf(&p.b, " : %s to %s", operandType(0), resultType())

	case ExtractAttrs:
		fmt.Fprintf(&p.b, "extract %s%s%s%s : %s to %s",
			p.name(nd.operands[0]), formatInts(a.Offsets), formatInts(a.Sizes), formatInts(a.Strides),
			operandType(0), resultType())

	case InsertAttrs:
		fmt.Fprintf(&p.b, "insert %s into %s%s%s%s : %s into %s",
			p.name(nd.operands[0]), p.name(nd.operands[1]),
			formatInts(a.Offsets), formatInts(a.Sizes), formatInts(a.Strides),
			operandType(0), resultType())

	case EmptyAttrs:
		fmt.Fprintf(&p.b, "empty : %s", a.Type)

	case FillAttrs:
		fmt.Fprintf(&p.b, "fill %s, %s : %s", p.name(nd.operands[0]), p.name(nd.operands[1]), resultType())

	case ReturnAttrs:
		p.b.WriteString("return")
		if len(nd.operands) > 0 {
			types := make([]string, len(nd.operands))
			for i := range nd.operands {
				types[i] = operandType(i).String()
			}
			fmt.Fprintf(&p.b, " %s : %s", p.joinNames(nd.operands), strings.Join(types, ", "))
		}
	}
}

// FormatScalar renders a constant literal in its shortest exact form.
func FormatScalar(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func formatInts(xs []int64) string {
	parts := make([]string, len(xs))
	for i, x := range xs {
		parts[i] = strconv.FormatInt(x, 10)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}
