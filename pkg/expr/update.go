package expr

import (
	"github.com/bobboyms/stonedb/pkg/errors"
	"github.com/bobboyms/stonedb/pkg/types"
)

// UpdateExpression is a parsed SET/REMOVE/ADD/DELETE clause list (§6). No
// original-source grammar for update expressions survived distillation —
// this parser is built from the usage strings the API examples exercise
// ("SET age = :new_age", "SET score = score + :inc", "REMOVE temp",
// "SET active = :is_active REMOVE temp ADD score :bonus") combined with
// the condition expression lexer/parser idiom above, and follows the
// Dynamo-style semantics the surrounding spec describes: ADD increments a
// numeric attribute or unions a value into a set-like list, DELETE removes
// elements from a set-like list, SET assigns (optionally via + / - binary
// arithmetic or if_not_exists/list_append), REMOVE deletes an attribute.
type UpdateExpression struct {
	Sets    []setClause
	Removes []string
	Adds    []addClause
	Deletes []addClause
}

type setClause struct {
	path  string
	value setValue
}

// setValue is either a plain operand or a binary arithmetic expression
// (operand + operand / operand - operand) or a function call.
type setValue struct {
	operand Node
	op      byte // 0 for none, '+' or '-'
	rhs     Node
	fn      string // "if_not_exists" or "list_append", "" otherwise
	fnArgs  []Node
}

type addClause struct {
	path    string
	operand Node
}

// ParseUpdate parses an update expression string such as
// "SET age = :new_age, active = :is_active REMOVE temp ADD score :bonus".
func ParseUpdate(input string) (*UpdateExpression, error) {
	toks, err := lex(input)
	if err != nil {
		return nil, err
	}
	p := &parser{tokens: toks}
	u := &UpdateExpression{}
	for p.current().kind != tokEOF {
		switch p.current().kind {
		case tokSet:
			p.advance()
			if err := p.parseSetClauses(u); err != nil {
				return nil, err
			}
		case tokRemove:
			p.advance()
			if err := p.parseRemoveClauses(u); err != nil {
				return nil, err
			}
		case tokAdd:
			p.advance()
			if err := p.parseAddClauses(u, &u.Adds); err != nil {
				return nil, err
			}
		case tokDelete:
			p.advance()
			if err := p.parseAddClauses(u, &u.Deletes); err != nil {
				return nil, err
			}
		default:
			return nil, errors.New(errors.InvalidExpression, "expr: expected SET/REMOVE/ADD/DELETE, got %q", p.current().text)
		}
	}
	return u, nil
}

func (p *parser) parseSetClauses(u *UpdateExpression) error {
	for {
		pathNode, err := p.parseIdentOrPlaceholderPath()
		if err != nil {
			return err
		}
		if _, err := p.expect(tokEqual); err != nil {
			return err
		}
		sv, err := p.parseSetValue()
		if err != nil {
			return err
		}
		u.Sets = append(u.Sets, setClause{path: pathNode, value: sv})
		if p.current().kind != tokComma {
			return nil
		}
		p.advance()
	}
}

func (p *parser) parseSetValue() (setValue, error) {
	if p.current().kind == tokFunc {
		name := p.current().text
		if name == "if_not_exists" || name == "list_append" {
			p.advance()
			if _, err := p.expect(tokLParen); err != nil {
				return setValue{}, err
			}
			first, err := p.parseOperand()
			if err != nil {
				return setValue{}, err
			}
			if _, err := p.expect(tokComma); err != nil {
				return setValue{}, err
			}
			second, err := p.parseOperand()
			if err != nil {
				return setValue{}, err
			}
			if _, err := p.expect(tokRParen); err != nil {
				return setValue{}, err
			}
			return setValue{fn: name, fnArgs: []Node{first, second}}, nil
		}
	}

	left, err := p.parseOperand()
	if err != nil {
		return setValue{}, err
	}
	switch p.current().kind {
	case tokPlus:
		p.advance()
		right, err := p.parseOperand()
		if err != nil {
			return setValue{}, err
		}
		return setValue{operand: left, op: '+', rhs: right}, nil
	case tokMinus:
		p.advance()
		right, err := p.parseOperand()
		if err != nil {
			return setValue{}, err
		}
		return setValue{operand: left, op: '-', rhs: right}, nil
	default:
		return setValue{operand: left}, nil
	}
}

func (p *parser) parseRemoveClauses(u *UpdateExpression) error {
	for {
		path, err := p.parseIdentOrPlaceholderPath()
		if err != nil {
			return err
		}
		u.Removes = append(u.Removes, path)
		if p.current().kind != tokComma {
			return nil
		}
		p.advance()
	}
}

func (p *parser) parseAddClauses(u *UpdateExpression, dst *[]addClause) error {
	for {
		path, err := p.parseIdentOrPlaceholderPath()
		if err != nil {
			return err
		}
		operand, err := p.parseOperand()
		if err != nil {
			return err
		}
		*dst = append(*dst, addClause{path: path, operand: operand})
		if p.current().kind != tokComma {
			return nil
		}
		p.advance()
	}
}

// parseIdentOrPlaceholderPath parses a clause's left-hand attribute path,
// accepting either a bare identifier path or a #name placeholder.
func (p *parser) parseIdentOrPlaceholderPath() (string, error) {
	if p.current().kind == tokNamePlaceholder {
		return p.advance().text, nil
	}
	n, err := p.parseIdentPath()
	if err != nil {
		return "", err
	}
	return n.(attributePath).path, nil
}

// Apply executes the update expression against item, mutating a clone and
// returning it; item itself is left untouched.
func Apply(u *UpdateExpression, item types.Item, ctx Context) (types.Item, error) {
	out := item.Clone()
	if out == nil {
		out = types.Item{}
	}

	for _, s := range u.Sets {
		name := resolveName(s.path, ctx)
		v, err := evalSetValue(s.value, out, ctx)
		if err != nil {
			return nil, err
		}
		out[name] = v
	}

	for _, path := range u.Removes {
		delete(out, resolveName(path, ctx))
	}

	for _, a := range u.Adds {
		if err := applyAdd(out, a, ctx); err != nil {
			return nil, err
		}
	}

	for _, d := range u.Deletes {
		if err := applyDelete(out, d, ctx); err != nil {
			return nil, err
		}
	}

	return out, nil
}

func evalSetValue(sv setValue, item types.Item, ctx Context) (types.Value, error) {
	if sv.fn != "" {
		first, err := resolveSetOperand(sv.fnArgs[0], item, ctx)
		if err != nil {
			return types.Value{}, err
		}
		second, err := resolveSetOperand(sv.fnArgs[1], item, ctx)
		if err != nil {
			return types.Value{}, err
		}
		switch sv.fn {
		case "if_not_exists":
			if existing, ok := tryResolvePath(sv.fnArgs[0], item, ctx); ok {
				return existing, nil
			}
			return second, nil
		case "list_append":
			if first.Kind != types.KindL || second.Kind != types.KindL {
				return types.Value{}, errors.New(errors.InvalidExpression, "expr: list_append requires two L operands")
			}
			merged := make([]types.Value, 0, len(first.L)+len(second.L))
			merged = append(merged, first.L...)
			merged = append(merged, second.L...)
			return types.L(merged...), nil
		}
	}

	left, err := resolveSetOperand(sv.operand, item, ctx)
	if err != nil {
		return types.Value{}, err
	}
	if sv.op == 0 {
		return left, nil
	}
	right, err := resolveSetOperand(sv.rhs, item, ctx)
	if err != nil {
		return types.Value{}, err
	}
	if left.Kind != types.KindN || right.Kind != types.KindN {
		return types.Value{}, errors.New(errors.InvalidExpression, "expr: arithmetic SET requires N operands")
	}
	var result string
	if sv.op == '+' {
		result, err = types.AddDecimal(left.N, right.N)
	} else {
		result, err = types.SubDecimal(left.N, right.N)
	}
	if err != nil {
		return types.Value{}, errors.Wrap(errors.InvalidExpression, err, "expr: arithmetic SET failed")
	}
	return types.N(result), nil
}

func resolveSetOperand(n Node, item types.Item, ctx Context) (types.Value, error) {
	return resolveValue(n, item, ctx)
}

func tryResolvePath(n Node, item types.Item, ctx Context) (types.Value, bool) {
	path, ok := n.(attributePath)
	if !ok {
		return types.Value{}, false
	}
	v, ok := item[resolveName(path.path, ctx)]
	return v, ok
}

// applyAdd implements ADD: numeric increment when the target is N (or
// absent, treated as starting from 0), set-union when the target is a list
// used to model a set.
func applyAdd(item types.Item, a addClause, ctx Context) error {
	name := resolveName(a.path, ctx)
	operand, err := resolveValue(a.operand, item, ctx)
	if err != nil {
		return err
	}
	existing, ok := item[name]
	if !ok {
		item[name] = operand
		return nil
	}
	switch {
	case existing.Kind == types.KindN && operand.Kind == types.KindN:
		sum, err := types.AddDecimal(existing.N, operand.N)
		if err != nil {
			return errors.Wrap(errors.InvalidExpression, err, "expr: ADD failed")
		}
		item[name] = types.N(sum)
		return nil
	case existing.Kind == types.KindL && operand.Kind == types.KindL:
		item[name] = types.L(unionValues(existing.L, operand.L)...)
		return nil
	default:
		return errors.New(errors.InvalidExpression, "expr: ADD requires matching N or L operands")
	}
}

// applyDelete implements DELETE: removes elements present in operand from
// the target list-as-set attribute. A missing target is a no-op.
func applyDelete(item types.Item, d addClause, ctx Context) error {
	name := resolveName(d.path, ctx)
	operand, err := resolveValue(d.operand, item, ctx)
	if err != nil {
		return err
	}
	existing, ok := item[name]
	if !ok {
		return nil
	}
	if existing.Kind != types.KindL || operand.Kind != types.KindL {
		return errors.New(errors.InvalidExpression, "expr: DELETE requires L operands")
	}
	item[name] = types.L(subtractValues(existing.L, operand.L)...)
	return nil
}

func unionValues(a, b []types.Value) []types.Value {
	out := make([]types.Value, len(a))
	copy(out, a)
	for _, bv := range b {
		found := false
		for _, av := range out {
			if av.Equal(bv) {
				found = true
				break
			}
		}
		if !found {
			out = append(out, bv)
		}
	}
	return out
}

func subtractValues(a, b []types.Value) []types.Value {
	out := make([]types.Value, 0, len(a))
	for _, av := range a {
		remove := false
		for _, bv := range b {
			if av.Equal(bv) {
				remove = true
				break
			}
		}
		if !remove {
			out = append(out, av)
		}
	}
	return out
}
