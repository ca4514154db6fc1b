package ir

import (
	"slices"
)

// NodeID is a stable handle to a node in a Function's arena.
type NodeID int

// ValueID is a stable handle to a value in a Function's arena.
type ValueID int

// Use records that operand Operand of node Node reads a value.
type Use struct {
	Node    NodeID
	Operand int
}

type valueData struct {
	typ   Type
	def   NodeID // NoNode for function arguments
	index int    // result index, or argument index when def == NoNode
	uses  []Use
}

type nodeData struct {
	kind     Kind
	operands []ValueID
	results  []ValueID
	attrs    Attrs
	erased   bool
}

// Function is a single-block function: arguments, a document-ordered body of
// nodes, and the node/value arenas backing them.
//
// Handles passed to accessor methods must have been produced by this
// Function; accessors do not re-validate them. Mutating methods validate
// their inputs and return *Error on misuse.
type Function struct {
	Name string

	args   []ValueID
	nodes  []nodeData
	values []valueData
	body   []NodeID
}

// NewFunction creates an empty function with one argument per type.
func NewFunction(name string, argTypes ...Type) *Function {
	f := &Function{Name: name}
	for i, t := range argTypes {
		id := ValueID(len(f.values))
		f.values = append(f.values, valueData{typ: cloneType(t), def: NoNode, index: i})
		f.args = append(f.args, id)
	}
	return f
}

// Args returns the function arguments in order.
func (f *Function) Args() []ValueID {
	return slices.Clone(f.args)
}

// Arg returns the i-th function argument.
func (f *Function) Arg(i int) ValueID {
	return f.args[i]
}

// Body returns the live nodes in document order.
func (f *Function) Body() []NodeID {
	return slices.Clone(f.body)
}

// Len returns the number of live nodes.
func (f *Function) Len() int {
	return len(f.body)
}

// NumNodes returns the size of the node arena, including erased nodes.
func (f *Function) NumNodes() int {
	return len(f.nodes)
}

// Kind returns the kind of node n.
func (f *Function) Kind(n NodeID) Kind {
	return f.nodes[n].kind
}

// Operands returns the operands of node n in order.
func (f *Function) Operands(n NodeID) []ValueID {
	return slices.Clone(f.nodes[n].operands)
}

// Operand returns operand i of node n.
func (f *Function) Operand(n NodeID, i int) ValueID {
	return f.nodes[n].operands[i]
}

// Results returns the results of node n in order.
func (f *Function) Results(n NodeID) []ValueID {
	return slices.Clone(f.nodes[n].results)
}

// Result returns the first result of node n, or NoValue if it has none.
func (f *Function) Result(n NodeID) ValueID {
	if len(f.nodes[n].results) == 0 {
		return NoValue
	}
	return f.nodes[n].results[0]
}

// Attrs returns a copy of the attribute bag of node n.
func (f *Function) Attrs(n NodeID) Attrs {
	return f.nodes[n].attrs.clone()
}

// IsErased reports whether node n has been erased.
func (f *Function) IsErased(n NodeID) bool {
	return f.nodes[n].erased
}

// Type returns the type of value v.
func (f *Function) Type(v ValueID) Type {
	return cloneType(f.values[v].typ)
}

// ShapeOf returns the static shape of v.
// Fails with TYPE_MISMATCH if v is not a shaped value.
func (f *Function) ShapeOf(v ValueID) ([]int64, error) {
	if !f.validValue(v) {
		return nil, newError(ErrCodeInvalidIR, NoNode, v, "unknown value")
	}
	t := f.values[v].typ
	if !t.Shaped {
		return nil, newError(ErrCodeTypeMismatch, f.values[v].def, v, "value of type %s is not shaped", t)
	}
	return slices.Clone(t.Shape), nil
}

// ElementTypeOf returns the element type of a shaped value v.
// Fails with TYPE_MISMATCH if v is not a shaped value.
func (f *Function) ElementTypeOf(v ValueID) (ElementType, error) {
	if !f.validValue(v) {
		return InvalidElement, newError(ErrCodeInvalidIR, NoNode, v, "unknown value")
	}
	t := f.values[v].typ
	if !t.Shaped {
		return InvalidElement, newError(ErrCodeTypeMismatch, f.values[v].def, v, "value of type %s is not shaped", t)
	}
	return t.Elem, nil
}

// Uses returns the uses of v in the order they were created.
func (f *Function) Uses(v ValueID) []Use {
	return slices.Clone(f.values[v].uses)
}

// HasUses reports whether any node reads v.
func (f *Function) HasUses(v ValueID) bool {
	return len(f.values[v].uses) > 0
}

// Users returns the distinct nodes reading v, in use order.
func (f *Function) Users(v ValueID) []NodeID {
	var users []NodeID
	for _, u := range f.values[v].uses {
		if !slices.Contains(users, u.Node) {
			users = append(users, u.Node)
		}
	}
	return users
}

// DefiningNode returns the node producing v. The boolean is false for
// function arguments.
func (f *Function) DefiningNode(v ValueID) (NodeID, bool) {
	def := f.values[v].def
	return def, def != NoNode
}

// IsArg reports whether v is a function argument.
func (f *Function) IsArg(v ValueID) bool {
	return f.values[v].def == NoNode
}

// Append creates a node at the end of the body.
func (f *Function) Append(kind Kind, operands []ValueID, attrs Attrs) (NodeID, error) {
	return f.insertAt(len(f.body), kind, operands, attrs)
}

// InsertBefore creates a node immediately before anchor and returns it.
//
// The result types are inferred from the operand types and attrs; creation
// never triggers re-matching, that is the rewrite driver's job.
func (f *Function) InsertBefore(anchor NodeID, kind Kind, operands []ValueID, attrs Attrs) (NodeID, error) {
	if !f.validNode(anchor) || f.nodes[anchor].erased {
		return NoNode, newError(ErrCodeInvalidIR, anchor, NoValue, "insertion anchor is not a live node")
	}
	return f.insertAt(slices.Index(f.body, anchor), kind, operands, attrs)
}

func (f *Function) insertAt(pos int, kind Kind, operands []ValueID, attrs Attrs) (NodeID, error) {
	if attrs == nil {
		switch kind {
		case KindFill:
			attrs = FillAttrs{}
		case KindReturn:
			attrs = ReturnAttrs{}
		default:
			return NoNode, newError(ErrCodeInvalidIR, NoNode, NoValue, "%s requires attributes", kind)
		}
	}

	operandTypes := make([]Type, len(operands))
	for i, v := range operands {
		if !f.validValue(v) {
			return NoNode, newError(ErrCodeInvalidIR, NoNode, v, "%s operand %d is not a value of this function", kind, i)
		}
		if def := f.values[v].def; def != NoNode && f.nodes[def].erased {
			return NoNode, newError(ErrCodeInvalidIR, def, v, "%s operand %d is produced by an erased node", kind, i)
		}
		operandTypes[i] = f.values[v].typ
	}

	resultTypes, err := InferResultTypes(kind, operandTypes, attrs)
	if err != nil {
		return NoNode, err
	}

	id := NodeID(len(f.nodes))
	nd := nodeData{
		kind:     kind,
		operands: slices.Clone(operands),
		attrs:    attrs.clone(),
	}
	for i, t := range resultTypes {
		v := ValueID(len(f.values))
		f.values = append(f.values, valueData{typ: t, def: id, index: i})
		nd.results = append(nd.results, v)
	}
	for i, v := range operands {
		f.values[v].uses = append(f.values[v].uses, Use{Node: id, Operand: i})
	}
	f.nodes = append(f.nodes, nd)
	f.body = slices.Insert(f.body, pos, id)
	return id, nil
}

// ReplaceAllUses rewires every use of old to read replacement instead.
// Afterwards old has zero uses. Document order is untouched.
func (f *Function) ReplaceAllUses(old, replacement ValueID) error {
	if !f.validValue(old) || !f.validValue(replacement) {
		return newError(ErrCodeInvalidIR, NoNode, old, "replace: unknown value")
	}
	if old == replacement {
		return nil
	}
	if !f.values[old].typ.Equal(f.values[replacement].typ) {
		return newError(ErrCodeTypeMismatch, f.values[old].def, old,
			"cannot replace %s with %s", f.values[old].typ, f.values[replacement].typ)
	}
	if def := f.values[replacement].def; def != NoNode {
		for _, u := range f.values[old].uses {
			if u.Node == def {
				return newError(ErrCodeInvalidIR, def, replacement, "replacement is defined by a user of the replaced value")
			}
		}
	}

	for _, u := range f.values[old].uses {
		f.nodes[u.Node].operands[u.Operand] = replacement
		f.values[replacement].uses = append(f.values[replacement].uses, u)
	}
	f.values[old].uses = nil
	return nil
}

// Erase removes node n from the body.
// Fails with USE_ERROR if any result of n still has uses.
func (f *Function) Erase(n NodeID) error {
	if !f.validNode(n) {
		return newError(ErrCodeInvalidIR, n, NoValue, "erase: unknown node")
	}
	nd := &f.nodes[n]
	if nd.erased {
		return newError(ErrCodeInvalidIR, n, NoValue, "erase: node already erased")
	}
	for _, r := range nd.results {
		if len(f.values[r].uses) > 0 {
			return newError(ErrCodeUseError, n, r, "cannot erase %s: result still has %d use(s)", nd.kind, len(f.values[r].uses))
		}
	}
	for i, v := range nd.operands {
		f.removeUse(v, Use{Node: n, Operand: i})
	}
	nd.erased = true
	if pos := slices.Index(f.body, n); pos >= 0 {
		f.body = slices.Delete(f.body, pos, pos+1)
	}
	return nil
}

func (f *Function) removeUse(v ValueID, use Use) {
	uses := f.values[v].uses
	if i := slices.Index(uses, use); i >= 0 {
		f.values[v].uses = slices.Delete(uses, i, i+1)
	}
}

// ReturnValues returns the operands of the last return node, or nil.
func (f *Function) ReturnValues() []ValueID {
	for i := len(f.body) - 1; i >= 0; i-- {
		if f.nodes[f.body[i]].kind == KindReturn {
			return f.Operands(f.body[i])
		}
	}
	return nil
}

// CountKind returns the number of live nodes of the given kind.
func (f *Function) CountKind(kind Kind) int {
	count := 0
	for _, n := range f.body {
		if f.nodes[n].kind == kind {
			count++
		}
	}
	return count
}

// NodesOfKind returns the live nodes of the given kind in document order.
func (f *Function) NodesOfKind(kind Kind) []NodeID {
	var out []NodeID
	for _, n := range f.body {
		if f.nodes[n].kind == kind {
			out = append(out, n)
		}
	}
	return out
}

// Clone returns a deep copy of f. Handles remain valid in the copy.
func (f *Function) Clone() *Function {
	c := &Function{
		Name:   f.Name,
		args:   slices.Clone(f.args),
		body:   slices.Clone(f.body),
		nodes:  make([]nodeData, len(f.nodes)),
		values: make([]valueData, len(f.values)),
	}
	for i, nd := range f.nodes {
		c.nodes[i] = nodeData{
			kind:     nd.kind,
			operands: slices.Clone(nd.operands),
			results:  slices.Clone(nd.results),
			attrs:    nd.attrs.clone(),
			erased:   nd.erased,
		}
	}
	for i, vd := range f.values {
		c.values[i] = valueData{
			typ:   cloneType(vd.typ),
			def:   vd.def,
			index: vd.index,
			uses:  slices.Clone(vd.uses),
		}
	}
	return c
}

// Restore replaces the contents of f with those of snapshot.
// snapshot must not be used afterwards.
func (f *Function) Restore(snapshot *Function) {
	*f = *snapshot
}

func (f *Function) validNode(n NodeID) bool {
	return n >= 0 && int(n) < len(f.nodes)
}

func (f *Function) validValue(v ValueID) bool {
	return v >= 0 && int(v) < len(f.values)
}
