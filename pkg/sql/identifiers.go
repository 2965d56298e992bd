package sql

import (
	"strings"
	"unicode"
)

// sqlKeywords are tokens that never count as table/column identifiers.
var sqlKeywords = map[string]struct{}{
	"select": {}, "from": {}, "where": {}, "group": {}, "by": {}, "order": {},
	"having": {}, "limit": {}, "offset": {}, "fetch": {}, "first": {}, "next": {},
	"join": {}, "inner": {}, "left": {}, "right": {}, "full": {}, "outer": {},
	"cross": {}, "lateral": {}, "on": {}, "using": {}, "as": {}, "and": {},
	"or": {}, "not": {}, "in": {}, "is": {}, "null": {}, "like": {}, "ilike": {},
	"similar": {}, "between": {}, "case": {}, "when": {}, "then": {}, "else": {},
	"end": {}, "distinct": {}, "union": {}, "intersect": {}, "except": {},
	"all": {}, "any": {}, "some": {}, "exists": {}, "with": {}, "recursive": {},
	"asc": {}, "desc": {}, "nulls": {}, "last": {}, "true": {}, "false": {},
	"over": {}, "partition": {}, "rows": {}, "range": {}, "preceding": {},
	"following": {}, "unbounded": {}, "current": {}, "row": {}, "filter": {},
	"within": {}, "escape": {}, "collate": {}, "interval": {}, "extract": {},
	"only": {}, "ties": {}, "values": {},
	// Type names that appear after CAST ... AS or ::
	"integer": {}, "int": {}, "bigint": {}, "smallint": {}, "numeric": {},
	"decimal": {}, "real": {}, "double": {}, "precision": {}, "text": {},
	"varchar": {}, "char": {}, "character": {}, "varying": {}, "boolean": {},
	"date": {}, "time": {}, "timestamp": {}, "timestamptz": {}, "zone": {},
	"uuid": {}, "json": {}, "jsonb": {}, "float": {},
}

// token is one lexical unit of a SQL statement.
type token struct {
	text       string // lowercased identifier text, empty for symbols
	symbol     rune   // non-zero for punctuation tokens
	isFuncCall bool   // identifier immediately followed by '('
	afterCast  bool   // identifier following '::' (a type, not a column)
}

// CheckIdentifiers verifies that every table/column identifier referenced in
// the statement appears in the allowed set (case-insensitive). Keywords,
// function names, aliases defined inside the statement, string literals, and
// numbers are ignored. Returns the unknown identifiers, empty when the
// statement is fully covered by the allowed set.
//
// This is the allow-list defense against hallucinated identifiers: anything
// the model invented that is not in the retrieved schema context surfaces
// here before execution.
func CheckIdentifiers(sqlQuery string, allowed []string) []string {
	allowedSet := make(map[string]struct{}, len(allowed))
	for _, name := range allowed {
		allowedSet[strings.ToLower(name)] = struct{}{}
	}

	tokens := tokenize(sqlQuery)
	aliases := collectAliases(tokens, allowedSet)

	var unknown []string
	seen := make(map[string]struct{})

	report := func(name string) {
		if _, dup := seen[name]; dup {
			return
		}
		seen[name] = struct{}{}
		unknown = append(unknown, name)
	}

	for i, tok := range tokens {
		if tok.text == "" || tok.isFuncCall || tok.afterCast {
			continue
		}
		if _, kw := sqlKeywords[tok.text]; kw {
			continue
		}
		if _, ok := aliases[tok.text]; ok {
			continue
		}
		// Qualified reference: the part before a dot must be a table or
		// alias; the part after is a column.
		if i > 0 && tokens[i-1].symbol == '.' {
			if _, ok := allowedSet[tok.text]; !ok {
				report(tok.text)
			}
			continue
		}
		if _, ok := allowedSet[tok.text]; !ok {
			report(tok.text)
		}
	}

	return unknown
}

// collectAliases finds names defined by the statement itself: output column
// aliases ("AS total"), table aliases ("FROM properties p"), and CTE names
// ("WITH ranked AS (...)").
func collectAliases(tokens []token, allowedSet map[string]struct{}) map[string]struct{} {
	aliases := make(map[string]struct{})

	for i, tok := range tokens {
		if tok.text == "" {
			continue
		}

		if i > 0 {
			prev := tokens[i-1]

			// "... AS name" defines name, unless it is a type after CAST.
			if prev.text == "as" && !tok.afterCast {
				if _, kw := sqlKeywords[tok.text]; !kw {
					aliases[tok.text] = struct{}{}
				}
				continue
			}

			// "WITH name AS" defines a CTE; also ", name AS" in a WITH list.
			if prev.text == "with" || prev.text == "recursive" {
				aliases[tok.text] = struct{}{}
				continue
			}

			// "FROM table alias" / "JOIN table alias": an identifier directly
			// following a known table name is an alias definition.
			if prev.text != "" && !prev.isFuncCall {
				if _, ok := allowedSet[prev.text]; ok {
					if _, kw := sqlKeywords[tok.text]; !kw {
						aliases[tok.text] = struct{}{}
					}
				}
			}
		}
	}

	// Second pass: "name AS (" marks CTE definitions anywhere in a WITH list.
	for i := 0; i+2 < len(tokens); i++ {
		if tokens[i].text != "" && tokens[i+1].text == "as" && tokens[i+2].symbol == '(' {
			if _, kw := sqlKeywords[tokens[i].text]; !kw {
				aliases[tokens[i].text] = struct{}{}
			}
		}
	}

	return aliases
}

// tokenize splits SQL into identifier and symbol tokens, dropping string
// literals, numbers, and comments.
func tokenize(sqlQuery string) []token {
	var tokens []token
	runes := []rune(sqlQuery)
	i := 0
	afterCast := false

	for i < len(runes) {
		c := runes[i]

		switch {
		case unicode.IsSpace(c):
			i++

		case c == '\'':
			// Skip string literal, handling '' escapes.
			i++
			for i < len(runes) {
				if runes[i] == '\'' {
					if i+1 < len(runes) && runes[i+1] == '\'' {
						i += 2
						continue
					}
					i++
					break
				}
				i++
			}

		case c == '"':
			// Quoted identifier: contents count as one identifier token.
			start := i + 1
			i++
			for i < len(runes) && runes[i] != '"' {
				i++
			}
			text := strings.ToLower(string(runes[start:i]))
			if i < len(runes) {
				i++
			}
			tokens = append(tokens, token{text: text, afterCast: afterCast})
			afterCast = false

		case c == '-' && i+1 < len(runes) && runes[i+1] == '-':
			// Line comment.
			for i < len(runes) && runes[i] != '\n' {
				i++
			}

		case c == ':' && i+1 < len(runes) && runes[i+1] == ':':
			// Postgres cast operator; the next identifier is a type name.
			afterCast = true
			i += 2

		case unicode.IsLetter(c) || c == '_':
			start := i
			for i < len(runes) && (unicode.IsLetter(runes[i]) || unicode.IsDigit(runes[i]) || runes[i] == '_') {
				i++
			}
			text := strings.ToLower(string(runes[start:i]))

			// Lookahead for '(' to mark function calls.
			j := i
			for j < len(runes) && unicode.IsSpace(runes[j]) {
				j++
			}
			isFunc := j < len(runes) && runes[j] == '('

			tokens = append(tokens, token{text: text, isFuncCall: isFunc, afterCast: afterCast})
			afterCast = false

		case unicode.IsDigit(c):
			for i < len(runes) && (unicode.IsDigit(runes[i]) || runes[i] == '.' || runes[i] == 'e' || runes[i] == 'E') {
				i++
			}

		default:
			tokens = append(tokens, token{symbol: c})
			i++
		}
	}

	return tokens
}
