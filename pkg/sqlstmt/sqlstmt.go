// Package sqlstmt implements the SQL-subset lexer/parser/translator (§4.7):
// SELECT/INSERT/UPDATE/DELETE over a single table or table.index reference,
// with a WHERE clause of ANDed equality/comparison predicates (including
// IN-list expansion); pkg/lsm's ExecuteSQL turns the parsed Statement into
// Query/Scan/Put/Delete calls.
// Grounded on the grammar original_source/kstone-core/src/partiql/
// {parser.rs,translator.rs} cover: four verbs, the dotted table.index FROM
// target, IN-expansion to multiple Query requests, the map-literal INSERT
// special case, and UPDATE's trailing REMOVE clause.
package sqlstmt

import (
	"strings"

	"github.com/bobboyms/stonedb/pkg/errors"
	"github.com/bobboyms/stonedb/pkg/types"
)

// Verb identifies which of the four supported statements was parsed.
type Verb int

const (
	Select Verb = iota
	Insert
	Update
	Delete
)

// Predicate is one WHERE clause comparison, ANDed with every other
// predicate in the same statement (no OR/parenthesization at the SQL
// layer). pkg/lsm evaluates these predicates itself; pkg/expr's condition
// language is not used for SQL filtering or for UPDATE's SET/REMOVE.
type Predicate struct {
	Attribute string
	Operator  string // "=", "!=", "<", "<=", ">", ">=", "IN"
	Value     types.Value
	Values    []types.Value // populated for IN
}

// Statement is the parsed, validated result of one SQL-subset string.
type Statement struct {
	Verb  Verb
	Table string
	Index string // non-empty for a "table.index" FROM/UPDATE target

	Columns []string // SELECT's projection; nil means "*"
	Item    types.Item // INSERT's map literal

	SetClauses    map[string]types.Value // UPDATE's SET assignments (literal values only)
	RemoveColumns []string                // UPDATE's trailing REMOVE columns

	Where []Predicate
}

// maxStatementLength is §4.7's guardrail: statements longer than this are
// rejected before lexing, never partially parsed.
const maxStatementLength = 8192

// Parse parses one SQL-subset statement.
func Parse(input string) (*Statement, error) {
	if len(input) > maxStatementLength {
		return nil, errors.New(errors.InvalidQuery, "sqlstmt: statement of %d bytes exceeds max %d", len(input), maxStatementLength)
	}
	toks, err := lex(input)
	if err != nil {
		return nil, err
	}
	p := &sqlParser{tokens: toks}
	return p.parseStatement()
}

type sqlTokenKind int

const (
	sqlEOF sqlTokenKind = iota
	sqlWord
	sqlString
	sqlNumber
	sqlComma
	sqlDot
	sqlLParen
	sqlRParen
	sqlEqual
	sqlNotEqual
	sqlLess
	sqlLessEqual
	sqlGreater
	sqlGreaterEqual
	sqlStar
	sqlColon
	sqlLBrace
	sqlRBrace
)

type sqlToken struct {
	kind sqlTokenKind
	text string
}

func lex(input string) ([]sqlToken, error) {
	var toks []sqlToken
	r := []rune(input)
	i, n := 0, len(r)
	for i < n {
		c := r[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			i++
		case c == ',':
			toks = append(toks, sqlToken{sqlComma, ","})
			i++
		case c == '.':
			toks = append(toks, sqlToken{sqlDot, "."})
			i++
		case c == '(':
			toks = append(toks, sqlToken{sqlLParen, "("})
			i++
		case c == ')':
			toks = append(toks, sqlToken{sqlRParen, ")"})
			i++
		case c == '{':
			toks = append(toks, sqlToken{sqlLBrace, "{"})
			i++
		case c == '}':
			toks = append(toks, sqlToken{sqlRBrace, "}"})
			i++
		case c == '*':
			toks = append(toks, sqlToken{sqlStar, "*"})
			i++
		case c == ':':
			toks = append(toks, sqlToken{sqlColon, ":"})
			i++
		case c == '=':
			toks = append(toks, sqlToken{sqlEqual, "="})
			i++
		case c == '!' && i+1 < n && r[i+1] == '=':
			toks = append(toks, sqlToken{sqlNotEqual, "!="})
			i += 2
		case c == '<':
			if i+1 < n && r[i+1] == '>' {
				toks = append(toks, sqlToken{sqlNotEqual, "<>"})
				i += 2
			} else if i+1 < n && r[i+1] == '=' {
				toks = append(toks, sqlToken{sqlLessEqual, "<="})
				i += 2
			} else {
				toks = append(toks, sqlToken{sqlLess, "<"})
				i++
			}
		case c == '>':
			if i+1 < n && r[i+1] == '=' {
				toks = append(toks, sqlToken{sqlGreaterEqual, ">="})
				i += 2
			} else {
				toks = append(toks, sqlToken{sqlGreater, ">"})
				i++
			}
		case c == '\'' || c == '"':
			quote := c
			j := i + 1
			for j < n && r[j] != quote {
				j++
			}
			if j >= n {
				return nil, errors.New(errors.InvalidQuery, "sqlstmt: unterminated string literal")
			}
			toks = append(toks, sqlToken{sqlString, string(r[i+1 : j])})
			i = j + 1
		case c >= '0' && c <= '9':
			j := i + 1
			for j < n && (r[j] >= '0' && r[j] <= '9' || r[j] == '.') {
				j++
			}
			toks = append(toks, sqlToken{sqlNumber, string(r[i:j])})
			i = j
		case isSQLIdentStart(c):
			j := i + 1
			for j < n && isSQLIdentRune(r[j]) {
				j++
			}
			toks = append(toks, sqlToken{sqlWord, string(r[i:j])})
			i = j
		default:
			return nil, errors.New(errors.InvalidQuery, "sqlstmt: unexpected character %q", c)
		}
	}
	toks = append(toks, sqlToken{sqlEOF, ""})
	return toks, nil
}

func isSQLIdentStart(c rune) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isSQLIdentRune(c rune) bool {
	return isSQLIdentStart(c) || (c >= '0' && c <= '9')
}

type sqlParser struct {
	tokens []sqlToken
	pos    int
}

func (p *sqlParser) current() sqlToken { return p.tokens[p.pos] }

func (p *sqlParser) advance() sqlToken {
	t := p.tokens[p.pos]
	if p.pos < len(p.tokens)-1 {
		p.pos++
	}
	return t
}

func (p *sqlParser) expectWord(upper string) error {
	t := p.current()
	if t.kind != sqlWord || !strings.EqualFold(t.text, upper) {
		return errors.New(errors.InvalidQuery, "sqlstmt: expected %q, got %q", upper, t.text)
	}
	p.advance()
	return nil
}

func (p *sqlParser) isWord(upper string) bool {
	t := p.current()
	return t.kind == sqlWord && strings.EqualFold(t.text, upper)
}

func (p *sqlParser) parseStatement() (*Statement, error) {
	switch {
	case p.isWord("SELECT"):
		return p.parseSelect()
	case p.isWord("INSERT"):
		return p.parseInsert()
	case p.isWord("UPDATE"):
		return p.parseUpdate()
	case p.isWord("DELETE"):
		return p.parseDelete()
	default:
		return nil, errors.New(errors.InvalidQuery, "sqlstmt: expected SELECT/INSERT/UPDATE/DELETE, got %q", p.current().text)
	}
}

// parseTableIndexTarget parses a "table" or "table.index" reference.
func (p *sqlParser) parseTableIndexTarget() (table, index string, err error) {
	t := p.current()
	if t.kind != sqlWord {
		return "", "", errors.New(errors.InvalidQuery, "sqlstmt: expected a table name, got %q", t.text)
	}
	table = t.text
	p.advance()
	if p.current().kind == sqlDot {
		p.advance()
		idx := p.current()
		if idx.kind != sqlWord {
			return "", "", errors.New(errors.InvalidQuery, "sqlstmt: expected an index name after '.'")
		}
		index = idx.text
		p.advance()
	}
	return table, index, nil
}

func (p *sqlParser) parseSelect() (*Statement, error) {
	p.advance() // SELECT
	stmt := &Statement{Verb: Select}

	if p.current().kind == sqlStar {
		p.advance()
	} else {
		for {
			t := p.current()
			if t.kind != sqlWord {
				return nil, errors.New(errors.InvalidQuery, "sqlstmt: expected a column name in SELECT list")
			}
			stmt.Columns = append(stmt.Columns, t.text)
			p.advance()
			if p.current().kind != sqlComma {
				break
			}
			p.advance()
		}
	}

	if err := p.expectWord("FROM"); err != nil {
		return nil, err
	}
	table, index, err := p.parseTableIndexTarget()
	if err != nil {
		return nil, err
	}
	stmt.Table, stmt.Index = table, index

	if p.isWord("WHERE") {
		p.advance()
		where, err := p.parseWhere()
		if err != nil {
			return nil, err
		}
		stmt.Where = where
	}
	return stmt, nil
}

func (p *sqlParser) parseInsert() (*Statement, error) {
	p.advance() // INSERT
	if err := p.expectWord("INTO"); err != nil {
		return nil, err
	}
	table, _, err := p.parseTableIndexTarget()
	if err != nil {
		return nil, err
	}
	if err := p.expectWord("VALUE"); err != nil {
		// original_source accepts the singular map-literal form
		// "INSERT INTO t VALUE {...}" rather than column/VALUES lists.
		return nil, err
	}
	item, err := p.parseMapLiteral()
	if err != nil {
		return nil, err
	}
	return &Statement{Verb: Insert, Table: table, Item: item}, nil
}

// parseMapLiteral parses the INSERT map-literal special case:
// {'attr': value, 'attr2': value2}.
func (p *sqlParser) parseMapLiteral() (types.Item, error) {
	if p.current().kind != sqlLBrace {
		return nil, errors.New(errors.InvalidQuery, "sqlstmt: expected a map literal '{...}' after VALUE")
	}
	p.advance()
	item := types.Item{}
	for {
		if p.current().kind == sqlRBrace {
			p.advance()
			break
		}
		key := p.current()
		if key.kind != sqlString && key.kind != sqlWord {
			return nil, errors.New(errors.InvalidQuery, "sqlstmt: expected an attribute name in map literal")
		}
		p.advance()
		if p.current().kind != sqlColon {
			return nil, errors.New(errors.InvalidQuery, "sqlstmt: expected ':' in map literal")
		}
		p.advance()
		val, err := p.parseLiteralValue()
		if err != nil {
			return nil, err
		}
		item[key.text] = val
		if p.current().kind == sqlComma {
			p.advance()
			continue
		}
	}
	return item, nil
}

func (p *sqlParser) parseLiteralValue() (types.Value, error) {
	t := p.current()
	switch t.kind {
	case sqlString:
		p.advance()
		return types.S(t.text), nil
	case sqlNumber:
		p.advance()
		return types.N(t.text), nil
	case sqlWord:
		if strings.EqualFold(t.text, "true") {
			p.advance()
			return types.Bool(true), nil
		}
		if strings.EqualFold(t.text, "false") {
			p.advance()
			return types.Bool(false), nil
		}
		if strings.EqualFold(t.text, "null") {
			p.advance()
			return types.Null(), nil
		}
		return types.Value{}, errors.New(errors.InvalidQuery, "sqlstmt: unexpected identifier %q in value position", t.text)
	default:
		return types.Value{}, errors.New(errors.InvalidQuery, "sqlstmt: expected a literal value, got %q", t.text)
	}
}

func (p *sqlParser) parseUpdate() (*Statement, error) {
	p.advance() // UPDATE
	table, index, err := p.parseTableIndexTarget()
	if err != nil {
		return nil, err
	}
	stmt := &Statement{Verb: Update, Table: table, Index: index, SetClauses: map[string]types.Value{}}

	if err := p.expectWord("SET"); err != nil {
		return nil, err
	}
	for {
		attr := p.current()
		if attr.kind != sqlWord {
			return nil, errors.New(errors.InvalidQuery, "sqlstmt: expected an attribute name after SET")
		}
		p.advance()
		if p.current().kind != sqlEqual {
			return nil, errors.New(errors.InvalidQuery, "sqlstmt: expected '=' in SET clause")
		}
		p.advance()
		val, err := p.parseLiteralValue()
		if err != nil {
			return nil, err
		}
		stmt.SetClauses[attr.text] = val
		if p.current().kind == sqlComma {
			p.advance()
			continue
		}
		break
	}

	if p.isWord("REMOVE") {
		p.advance()
		for {
			col := p.current()
			if col.kind != sqlWord {
				return nil, errors.New(errors.InvalidQuery, "sqlstmt: expected an attribute name after REMOVE")
			}
			stmt.RemoveColumns = append(stmt.RemoveColumns, col.text)
			p.advance()
			if p.current().kind != sqlComma {
				break
			}
			p.advance()
		}
	}

	if p.isWord("WHERE") {
		p.advance()
		where, err := p.parseWhere()
		if err != nil {
			return nil, err
		}
		stmt.Where = where
	}
	return stmt, nil
}

func (p *sqlParser) parseDelete() (*Statement, error) {
	p.advance() // DELETE
	if err := p.expectWord("FROM"); err != nil {
		return nil, err
	}
	table, index, err := p.parseTableIndexTarget()
	if err != nil {
		return nil, err
	}
	stmt := &Statement{Verb: Delete, Table: table, Index: index}
	if p.isWord("WHERE") {
		p.advance()
		where, err := p.parseWhere()
		if err != nil {
			return nil, err
		}
		stmt.Where = where
	}
	return stmt, nil
}

// parseWhere parses an ANDed sequence of predicates, including the
// IN-expansion form "attr IN (v1, v2, ...)".
func (p *sqlParser) parseWhere() ([]Predicate, error) {
	var preds []Predicate
	for {
		attr := p.current()
		if attr.kind != sqlWord {
			return nil, errors.New(errors.InvalidQuery, "sqlstmt: expected an attribute name in WHERE")
		}
		p.advance()

		if p.isWord("IN") {
			p.advance()
			if p.current().kind != sqlLParen {
				return nil, errors.New(errors.InvalidQuery, "sqlstmt: expected '(' after IN")
			}
			p.advance()
			var values []types.Value
			for {
				v, err := p.parseLiteralValue()
				if err != nil {
					return nil, err
				}
				values = append(values, v)
				if p.current().kind == sqlComma {
					p.advance()
					continue
				}
				break
			}
			if p.current().kind != sqlRParen {
				return nil, errors.New(errors.InvalidQuery, "sqlstmt: expected ')' to close IN list")
			}
			p.advance()
			preds = append(preds, Predicate{Attribute: attr.text, Operator: "IN", Values: values})
		} else {
			op, err := p.parseComparisonOperator()
			if err != nil {
				return nil, err
			}
			val, err := p.parseLiteralValue()
			if err != nil {
				return nil, err
			}
			preds = append(preds, Predicate{Attribute: attr.text, Operator: op, Value: val})
		}

		if p.isWord("AND") {
			p.advance()
			continue
		}
		break
	}
	return preds, nil
}

func (p *sqlParser) parseComparisonOperator() (string, error) {
	t := p.current()
	switch t.kind {
	case sqlEqual:
		p.advance()
		return "=", nil
	case sqlNotEqual:
		p.advance()
		return "!=", nil
	case sqlLess:
		p.advance()
		return "<", nil
	case sqlLessEqual:
		p.advance()
		return "<=", nil
	case sqlGreater:
		p.advance()
		return ">", nil
	case sqlGreaterEqual:
		p.advance()
		return ">=", nil
	default:
		return "", errors.New(errors.InvalidQuery, "sqlstmt: expected a comparison operator, got %q", t.text)
	}
}

// ExpandIN lowers every IN predicate in stmt.Where into a set of
// alternative WHERE clauses, one per combination of IN values — the
// supplemented "IN-list expansion to multi-Query" feature: the translator
// (pkg/lsm/sql.go) runs one Query/Scan per expansion and merges the results.
func ExpandIN(preds []Predicate) [][]Predicate {
	expansions := [][]Predicate{nil}
	for _, pr := range preds {
		if pr.Operator != "IN" {
			for i := range expansions {
				expansions[i] = append(expansions[i], pr)
			}
			continue
		}
		var next [][]Predicate
		for _, base := range expansions {
			for _, v := range pr.Values {
				branch := append(append([]Predicate(nil), base...), Predicate{Attribute: pr.Attribute, Operator: "=", Value: v})
				next = append(next, branch)
			}
		}
		expansions = next
	}
	return expansions
}
