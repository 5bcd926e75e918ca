package expr

import (
	"strconv"
	"strings"

	"github.com/bobboyms/stonedb/pkg/errors"
)

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokIdent         // bare attribute path segment, e.g. age, items
	tokNamePlaceholder
	tokValuePlaceholder
	tokNumber
	tokString
	tokLParen
	tokRParen
	tokLBracket
	tokRBracket
	tokDot
	tokComma
	tokEqual
	tokNotEqual
	tokLess
	tokLessEqual
	tokGreater
	tokGreaterEqual
	tokAnd
	tokOr
	tokNot
	tokPlus
	tokMinus
	tokSet
	tokRemove
	tokAdd
	tokDelete
	tokFunc // attribute_exists / attribute_not_exists / begins_with / if_not_exists / list_append
)

type token struct {
	kind tokenKind
	text string
}

func lex(input string) ([]token, error) {
	var toks []token
	r := []rune(input)
	i, n := 0, len(r)
	for i < n {
		c := r[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			i++
		case c == '(':
			toks = append(toks, token{tokLParen, "("})
			i++
		case c == ')':
			toks = append(toks, token{tokRParen, ")"})
			i++
		case c == '[':
			toks = append(toks, token{tokLBracket, "["})
			i++
		case c == ']':
			toks = append(toks, token{tokRBracket, "]"})
			i++
		case c == '.':
			toks = append(toks, token{tokDot, "."})
			i++
		case c == ',':
			toks = append(toks, token{tokComma, ","})
			i++
		case c == '=':
			toks = append(toks, token{tokEqual, "="})
			i++
		case c == '<':
			if i+1 < n && r[i+1] == '>' {
				toks = append(toks, token{tokNotEqual, "<>"})
				i += 2
			} else if i+1 < n && r[i+1] == '=' {
				toks = append(toks, token{tokLessEqual, "<="})
				i += 2
			} else {
				toks = append(toks, token{tokLess, "<"})
				i++
			}
		case c == '>':
			if i+1 < n && r[i+1] == '=' {
				toks = append(toks, token{tokGreaterEqual, ">="})
				i += 2
			} else {
				toks = append(toks, token{tokGreater, ">"})
				i++
			}
		case c == '#':
			j := i + 1
			for j < n && isIdentRune(r[j]) {
				j++
			}
			if j == i+1 {
				return nil, errors.New(errors.InvalidExpression, "expr: empty #name placeholder at offset %d", i)
			}
			toks = append(toks, token{tokNamePlaceholder, string(r[i:j])})
			i = j
		case c == ':':
			j := i + 1
			for j < n && isIdentRune(r[j]) {
				j++
			}
			if j == i+1 {
				return nil, errors.New(errors.InvalidExpression, "expr: empty :value placeholder at offset %d", i)
			}
			toks = append(toks, token{tokValuePlaceholder, string(r[i:j])})
			i = j
		case c == '\'' || c == '"':
			quote := c
			j := i + 1
			for j < n && r[j] != quote {
				j++
			}
			if j >= n {
				return nil, errors.New(errors.InvalidExpression, "expr: unterminated string literal at offset %d", i)
			}
			toks = append(toks, token{tokString, string(r[i+1 : j])})
			i = j + 1
		case c == '+':
			toks = append(toks, token{tokPlus, "+"})
			i++
		case c == '-':
			toks = append(toks, token{tokMinus, "-"})
			i++
		case c >= '0' && c <= '9':
			j := i + 1
			for j < n && (r[j] >= '0' && r[j] <= '9' || r[j] == '.') {
				j++
			}
			toks = append(toks, token{tokNumber, string(r[i:j])})
			i = j
		case isIdentStart(c):
			j := i + 1
			for j < n && isIdentRune(r[j]) {
				j++
			}
			word := string(r[i:j])
			toks = append(toks, keywordOrIdent(word))
			i = j
		default:
			return nil, errors.New(errors.InvalidExpression, "expr: unexpected character %q at offset %d", c, i)
		}
	}
	toks = append(toks, token{tokEOF, ""})
	return toks, nil
}

func isIdentStart(c rune) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentRune(c rune) bool {
	return isIdentStart(c) || (c >= '0' && c <= '9')
}

func keywordOrIdent(word string) token {
	switch strings.ToUpper(word) {
	case "AND":
		return token{tokAnd, word}
	case "OR":
		return token{tokOr, word}
	case "NOT":
		return token{tokNot, word}
	case "SET":
		return token{tokSet, word}
	case "REMOVE":
		return token{tokRemove, word}
	case "ADD":
		return token{tokAdd, word}
	case "DELETE":
		return token{tokDelete, word}
	case "ATTRIBUTE_EXISTS", "ATTRIBUTE_NOT_EXISTS", "BEGINS_WITH", "IF_NOT_EXISTS", "LIST_APPEND":
		return token{tokFunc, strings.ToLower(word)}
	default:
		return token{tokIdent, word}
	}
}

func parseIntLiteral(s string) (int, error) {
	return strconv.Atoi(s)
}
