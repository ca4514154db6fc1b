package ir

// Builder appends nodes to the end of a Function with typed helpers.
//
// Builder keeps the first error it encounters and turns every later call
// into a no-op returning NoValue, so a construction sequence can be checked
// once at the end:
//
//	b := ir.NewBuilder(f)
//	zero := b.Constant(ir.F32, 0)
//	padded := b.Pad(f.Arg(0), zero, []int64{0, 0}, []int64{0, 3})
//	b.Return(padded)
//	if err := b.Err(); err != nil { ... }
type Builder struct {
	f   *Function
	err error
}

// NewBuilder returns a Builder appending to f.
func NewBuilder(f *Function) *Builder {
	return &Builder{f: f}
}

// Err returns the first construction error, if any.
func (b *Builder) Err() error {
	return b.err
}

// Function returns the function being built.
func (b *Builder) Function() *Function {
	return b.f
}

func (b *Builder) add(kind Kind, operands []ValueID, attrs Attrs) ValueID {
	if b.err != nil {
		return NoValue
	}
	n, err := b.f.Append(kind, operands, attrs)
	if err != nil {
		b.err = err
		return NoValue
	}
	return b.f.Result(n)
}

// Constant appends a scalar constant.
func (b *Builder) Constant(elem ElementType, value float64) ValueID {
	return b.add(KindConstant, nil, NewConstant(elem, value))
}

// IntConstant appends an integer constant with an exact literal.
func (b *Builder) IntConstant(elem ElementType, value int64) ValueID {
	return b.add(KindConstant, nil, NewIntConstant(elem, value))
}

// Contraction appends a contraction over (A, B, C) with attrs.
func (b *Builder) Contraction(attrs ContractionAttrs, a, bv, c ValueID) ValueID {
	return b.add(KindContraction, []ValueID{a, bv, c}, attrs)
}

// Matmul appends a default GEMM contraction carrying tag.
func (b *Builder) Matmul(tag string, a, bv, c ValueID) ValueID {
	return b.Contraction(DefaultMatmulAttrs(tag), a, bv, c)
}

// Pad appends a pad of source with fill.
func (b *Builder) Pad(source, fill ValueID, low, high []int64) ValueID {
	return b.add(KindPad, []ValueID{source, fill}, PadAttrs{Low: low, High: high})
}

// PadNoFold appends a pad that the chain folding pattern must not touch.
func (b *Builder) PadNoFold(source, fill ValueID, low, high []int64) ValueID {
	return b.add(KindPad, []ValueID{source, fill}, PadAttrs{Low: low, High: high, NoFold: true})
}

// Extract appends an extract of source.
func (b *Builder) Extract(source ValueID, s SliceAttrs) ValueID {
	return b.add(KindExtract, []ValueID{source}, ExtractAttrs{s})
}

// Empty appends an allocation of t.
func (b *Builder) Empty(t Type) ValueID {
	return b.add(KindEmpty, nil, EmptyAttrs{Type: t})
}

// Fill appends a fill of dest with value.
func (b *Builder) Fill(value, dest ValueID) ValueID {
	return b.add(KindFill, []ValueID{value, dest}, FillAttrs{})
}

// Insert appends an insert of source into dest.
func (b *Builder) Insert(source, dest ValueID, s SliceAttrs) ValueID {
	return b.add(KindInsert, []ValueID{source, dest}, InsertAttrs{s})
}

// Return appends the terminator.
func (b *Builder) Return(values ...ValueID) {
	if b.err != nil {
		return
	}
	if _, err := b.f.Append(KindReturn, values, ReturnAttrs{}); err != nil {
		b.err = err
	}
}
