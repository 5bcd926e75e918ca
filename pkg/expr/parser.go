package expr

import (
	"github.com/bobboyms/stonedb/pkg/errors"
	"github.com/bobboyms/stonedb/pkg/types"
)

type parser struct {
	tokens []token
	pos    int
}

func (p *parser) current() token {
	return p.tokens[p.pos]
}

func (p *parser) advance() token {
	t := p.tokens[p.pos]
	if p.pos < len(p.tokens)-1 {
		p.pos++
	}
	return t
}

func (p *parser) expect(k tokenKind) (token, error) {
	t := p.current()
	if t.kind != k {
		return token{}, errors.New(errors.InvalidExpression, "expr: unexpected token %q", t.text)
	}
	return p.advance(), nil
}

// parseOr = parseAnd (OR parseAnd)*
func (p *parser) parseOr() (Node, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.current().kind == tokOr {
		p.advance()
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = opOr{left: left, right: right}
	}
	return left, nil
}

// parseAnd = parseNot (AND parseNot)*
func (p *parser) parseAnd() (Node, error) {
	left, err := p.parseNot()
	if err != nil {
		return nil, err
	}
	for p.current().kind == tokAnd {
		p.advance()
		right, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		left = opAnd{left: left, right: right}
	}
	return left, nil
}

// parseNot = NOT parseNot | parseComparison
func (p *parser) parseNot() (Node, error) {
	if p.current().kind == tokNot {
		p.advance()
		operand, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		return opNot{operand: operand}, nil
	}
	return p.parseComparison()
}

// parseComparison = parsePrimary (comparisonOp parsePrimary)?
func (p *parser) parseComparison() (Node, error) {
	left, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	switch p.current().kind {
	case tokEqual:
		p.advance()
		right, err := p.parsePrimary()
		if err != nil {
			return nil, err
		}
		return opEqual{left: left, right: right}, nil
	case tokNotEqual:
		p.advance()
		right, err := p.parsePrimary()
		if err != nil {
			return nil, err
		}
		return opNotEqual{left: left, right: right}, nil
	case tokLess:
		p.advance()
		right, err := p.parsePrimary()
		if err != nil {
			return nil, err
		}
		return opLessThan{left: left, right: right}, nil
	case tokLessEqual:
		p.advance()
		right, err := p.parsePrimary()
		if err != nil {
			return nil, err
		}
		return opLessEqual{left: left, right: right}, nil
	case tokGreater:
		p.advance()
		right, err := p.parsePrimary()
		if err != nil {
			return nil, err
		}
		return opGreaterThan{left: left, right: right}, nil
	case tokGreaterEqual:
		p.advance()
		right, err := p.parsePrimary()
		if err != nil {
			return nil, err
		}
		return opGreaterEqual{left: left, right: right}, nil
	default:
		return left, nil
	}
}

// parsePrimary handles parenthesized sub-expressions, functions
// (attribute_exists/attribute_not_exists/begins_with), and operand atoms.
func (p *parser) parsePrimary() (Node, error) {
	t := p.current()
	switch t.kind {
	case tokLParen:
		p.advance()
		inner, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(tokRParen); err != nil {
			return nil, err
		}
		return inner, nil
	case tokFunc:
		return p.parseFuncCall()
	default:
		return p.parseOperand()
	}
}

func (p *parser) parseFuncCall() (Node, error) {
	name := p.advance().text
	if _, err := p.expect(tokLParen); err != nil {
		return nil, err
	}
	switch name {
	case "attribute_exists":
		path, err := p.parsePathString()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(tokRParen); err != nil {
			return nil, err
		}
		return opAttributeExists{path: path}, nil
	case "attribute_not_exists":
		path, err := p.parsePathString()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(tokRParen); err != nil {
			return nil, err
		}
		return opAttributeNotExists{path: path}, nil
	case "begins_with":
		pathNode, err := p.parseOperand()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(tokComma); err != nil {
			return nil, err
		}
		prefixNode, err := p.parseOperand()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(tokRParen); err != nil {
			return nil, err
		}
		return opBeginsWith{path: pathNode, prefix: prefixNode}, nil
	default:
		return nil, errors.New(errors.InvalidExpression, "expr: unsupported function %q in condition expression", name)
	}
}

// parsePathString parses a bare attribute path (used inside
// attribute_exists/attribute_not_exists, which take a path, not a value).
func (p *parser) parsePathString() (string, error) {
	n, err := p.parseOperand()
	if err != nil {
		return "", err
	}
	switch a := n.(type) {
	case attributePath:
		return a.path, nil
	default:
		return "", errors.New(errors.InvalidExpression, "expr: expected an attribute path")
	}
}

// parseOperand = #name | :value | identifier path | number | string literal
func (p *parser) parseOperand() (Node, error) {
	t := p.current()
	switch t.kind {
	case tokNamePlaceholder:
		p.advance()
		return attributePath{path: t.text}, nil
	case tokValuePlaceholder:
		p.advance()
		return valuePlaceholder{name: t.text}, nil
	case tokIdent:
		return p.parseIdentPath()
	case tokNumber:
		p.advance()
		return literal{value: types.N(t.text)}, nil
	case tokString:
		p.advance()
		return literal{value: types.S(t.text)}, nil
	default:
		return nil, errors.New(errors.InvalidExpression, "expr: unexpected token %q while parsing an operand", t.text)
	}
}

// parseIdentPath accumulates dotted/bracketed path segments into a single
// attribute path string, e.g. "items[0].name".
func (p *parser) parseIdentPath() (Node, error) {
	t, err := p.expect(tokIdent)
	if err != nil {
		return nil, err
	}
	path := t.text
	for {
		switch p.current().kind {
		case tokDot:
			p.advance()
			seg, err := p.expect(tokIdent)
			if err != nil {
				return nil, err
			}
			path += "." + seg.text
		case tokLBracket:
			p.advance()
			idx, err := p.expect(tokNumber)
			if err != nil {
				return nil, err
			}
			if _, err := p.expect(tokRBracket); err != nil {
				return nil, err
			}
			path += "[" + idx.text + "]"
		default:
			return attributePath{path: path}, nil
		}
	}
}
