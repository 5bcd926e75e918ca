// Package expr implements the condition and update expression languages
// (§6): a small recursive-descent grammar over #name/:value placeholders,
// comparisons, boolean connectives, attribute_exists/attribute_not_exists/
// begins_with, and SET/REMOVE/ADD/DELETE update clauses. Grounded on the
// lexer/parser/evaluator shape of the distilled system's expression engine.
package expr

import (
	"github.com/bobboyms/stonedb/pkg/errors"
	"github.com/bobboyms/stonedb/pkg/types"
)

// Node is a condition expression AST node.
type Node interface{ isNode() }

type (
	opEqual        struct{ left, right Node }
	opNotEqual     struct{ left, right Node }
	opLessThan     struct{ left, right Node }
	opLessEqual    struct{ left, right Node }
	opGreaterThan  struct{ left, right Node }
	opGreaterEqual struct{ left, right Node }

	opAnd struct{ left, right Node }
	opOr  struct{ left, right Node }
	opNot struct{ operand Node }

	opAttributeExists    struct{ path string }
	opAttributeNotExists struct{ path string }
	opBeginsWith         struct{ path, prefix Node }

	attributePath    struct{ path string }
	valuePlaceholder struct{ name string }
	literal          struct{ value types.Value }
)

func (opEqual) isNode()             {}
func (opNotEqual) isNode()          {}
func (opLessThan) isNode()          {}
func (opLessEqual) isNode()         {}
func (opGreaterThan) isNode()       {}
func (opGreaterEqual) isNode()      {}
func (opAnd) isNode()               {}
func (opOr) isNode()                {}
func (opNot) isNode()               {}
func (opAttributeExists) isNode()   {}
func (opAttributeNotExists) isNode(){}
func (opBeginsWith) isNode()        {}
func (attributePath) isNode()       {}
func (valuePlaceholder) isNode()    {}
func (literal) isNode()             {}

// Context supplies the #name/:value placeholder bindings a condition or
// update expression resolves against.
type Context struct {
	Values map[string]types.Value
	Names  map[string]string
}

// ParseCondition parses a condition expression string into a Node.
func ParseCondition(input string) (Node, error) {
	toks, err := lex(input)
	if err != nil {
		return nil, err
	}
	p := &parser{tokens: toks}
	expr, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if p.current().kind != tokEOF {
		return nil, errors.New(errors.InvalidExpression, "expr: unexpected trailing input at token %v", p.current())
	}
	return expr, nil
}

// Eval evaluates a parsed condition against item under ctx.
func Eval(n Node, item types.Item, ctx Context) (bool, error) {
	switch e := n.(type) {
	case opEqual:
		l, r, ok, err := resolvePair(e.left, e.right, item, ctx)
		if err != nil || !ok {
			return false, err
		}
		return l.Equal(r), nil
	case opNotEqual:
		l, r, ok, err := resolvePair(e.left, e.right, item, ctx)
		if err != nil || !ok {
			return false, err
		}
		return !l.Equal(r), nil
	case opLessThan, opLessEqual, opGreaterThan, opGreaterEqual:
		return evalOrdered(e, item, ctx)
	case opAnd:
		l, err := Eval(e.left, item, ctx)
		if err != nil {
			return false, err
		}
		if !l {
			return false, nil
		}
		return Eval(e.right, item, ctx)
	case opOr:
		l, err := Eval(e.left, item, ctx)
		if err != nil {
			return false, err
		}
		if l {
			return true, nil
		}
		return Eval(e.right, item, ctx)
	case opNot:
		v, err := Eval(e.operand, item, ctx)
		if err != nil {
			return false, err
		}
		return !v, nil
	case opAttributeExists:
		_, ok := item[resolveName(e.path, ctx)]
		return ok, nil
	case opAttributeNotExists:
		_, ok := item[resolveName(e.path, ctx)]
		return !ok, nil
	case opBeginsWith:
		pathVal, err := resolveValue(e.path, item, ctx)
		if err != nil {
			return false, err
		}
		prefixVal, err := resolveValue(e.prefix, item, ctx)
		if err != nil {
			return false, err
		}
		switch {
		case pathVal.Kind == types.KindS && prefixVal.Kind == types.KindS:
			return len(pathVal.S) >= len(prefixVal.S) && pathVal.S[:len(prefixVal.S)] == prefixVal.S, nil
		case pathVal.Kind == types.KindB && prefixVal.Kind == types.KindB:
			if len(prefixVal.B) > len(pathVal.B) {
				return false, nil
			}
			for i := range prefixVal.B {
				if pathVal.B[i] != prefixVal.B[i] {
					return false, nil
				}
			}
			return true, nil
		default:
			return false, errors.New(errors.InvalidExpression, "expr: begins_with requires S or B operands")
		}
	default:
		return false, errors.New(errors.InvalidExpression, "expr: cannot evaluate operand as a boolean expression")
	}
}

func evalOrdered(n Node, item types.Item, ctx Context) (bool, error) {
	var left, right Node
	switch e := n.(type) {
	case opLessThan:
		left, right = e.left, e.right
	case opLessEqual:
		left, right = e.left, e.right
	case opGreaterThan:
		left, right = e.left, e.right
	case opGreaterEqual:
		left, right = e.left, e.right
	}
	l, r, ok, err := resolvePair(left, right, item, ctx)
	if err != nil || !ok {
		return false, err
	}
	if l.Kind != r.Kind {
		return false, errors.New(errors.InvalidExpression, "expr: cannot compare %s against %s", l.Kind, r.Kind)
	}
	cmp := l.Compare(r)
	switch n.(type) {
	case opLessThan:
		return cmp < 0, nil
	case opLessEqual:
		return cmp <= 0, nil
	case opGreaterThan:
		return cmp > 0, nil
	case opGreaterEqual:
		return cmp >= 0, nil
	}
	return false, nil
}

// resolvePair resolves both operands of a comparison. ok is false when
// either operand names an attribute item does not have, so the comparison
// evaluates to false instead of failing.
func resolvePair(left, right Node, item types.Item, ctx Context) (types.Value, types.Value, bool, error) {
	for _, n := range []Node{left, right} {
		if p, isPath := n.(attributePath); isPath {
			if _, present := item[resolveName(p.path, ctx)]; !present {
				return types.Value{}, types.Value{}, false, nil
			}
		}
	}
	l, err := resolveValue(left, item, ctx)
	if err != nil {
		return types.Value{}, types.Value{}, false, err
	}
	r, err := resolveValue(right, item, ctx)
	if err != nil {
		return types.Value{}, types.Value{}, false, err
	}
	return l, r, true, nil
}

func resolveValue(n Node, item types.Item, ctx Context) (types.Value, error) {
	switch e := n.(type) {
	case attributePath:
		name := resolveName(e.path, ctx)
		v, ok := item[name]
		if !ok {
			return types.Value{}, errors.New(errors.InvalidExpression, "expr: attribute %q not found", name)
		}
		return v, nil
	case valuePlaceholder:
		v, ok := ctx.Values[e.name]
		if !ok {
			return types.Value{}, errors.New(errors.InvalidExpression, "expr: value placeholder %q not found", e.name)
		}
		return v, nil
	case literal:
		return e.value, nil
	default:
		return types.Value{}, errors.New(errors.InvalidExpression, "expr: cannot resolve operand to a value")
	}
}

func resolveName(path string, ctx Context) string {
	if len(path) > 0 && path[0] == '#' {
		if name, ok := ctx.Names[path]; ok {
			return name
		}
	}
	return path
}
