package ddl

import (
	"fmt"
	"strings"

	"github.com/nickyhof/SchemaVC/core"
)

// DefaultSchema qualifies object names that carry no explicit schema
const DefaultSchema = "public"

// Statement is a parsed schema-altering statement
type Statement struct {
	ChangeKind core.ChangeKind
	Identity   core.ObjectIdentity
	Definition string // normalized statement text
}

// keywords are uppercased during normalization; everything else keeps its case
var keywords = map[string]bool{
	"CREATE": true, "ALTER": true, "DROP": true, "TABLE": true, "VIEW": true,
	"INDEX": true, "FUNCTION": true, "PROCEDURE": true, "TRIGGER": true,
	"SEQUENCE": true, "MATERIALIZED": true, "UNIQUE": true, "OR": true,
	"REPLACE": true, "IF": true, "NOT": true, "EXISTS": true, "ON": true,
	"ADD": true, "COLUMN": true, "RENAME": true, "TO": true, "SET": true,
	"PRIMARY": true, "KEY": true, "FOREIGN": true, "REFERENCES": true,
	"NULL": true, "DEFAULT": true, "CONSTRAINT": true, "CHECK": true,
	"INT": true, "INTEGER": true, "BIGINT": true, "SMALLINT": true,
	"VARCHAR": true, "TEXT": true, "CHAR": true, "BOOLEAN": true,
	"FLOAT": true, "DOUBLE": true, "DECIMAL": true, "NUMERIC": true,
	"DATE": true, "TIMESTAMP": true, "TIME": true, "JSON": true,
	"JSONB": true, "SERIAL": true, "UUID": true, "AS": true, "IS": true,
	"SELECT": true, "FROM": true, "WHERE": true, "RETURNS": true,
	"LANGUAGE": true, "BEFORE": true, "AFTER": true, "INSERT": true,
	"UPDATE": true, "DELETE": true, "FOR": true, "EACH": true, "ROW": true,
	"EXECUTE": true, "BEGIN": true, "END": true, "RETURN": true,
	"START": true, "WITH": true, "INCREMENT": true, "BY": true, "TYPE": true,
	"USING": true, "CASCADE": true, "RESTRICT": true, "AND": true,
	"GROUP": true, "ORDER": true, "JOIN": true, "INNER": true, "LEFT": true,
	"RIGHT": true, "OUTER": true, "DISTINCT": true, "TEMP": true,
	"TEMPORARY": true, "CONCURRENTLY": true, "ASC": true, "DESC": true,
}

// Normalize produces the canonical form of a DDL statement: comments
// stripped, whitespace collapsed to single spaces, keywords uppercased,
// trailing semicolons removed. Quoted identifiers, string literals and
// $$-quoted bodies are preserved byte-for-byte. Content-addressing hashes
// this form, so formatting-only edits map to the same blob.
func Normalize(sql string) string {
	lexer := NewLexer(sql)

	var tokens []Token
	for {
		token := lexer.NextToken()
		if token.Type == EOF {
			break
		}
		tokens = append(tokens, token)
	}

	// Drop trailing semicolons
	for len(tokens) > 0 && tokens[len(tokens)-1].Type == Symbol && tokens[len(tokens)-1].Value == ";" {
		tokens = tokens[:len(tokens)-1]
	}

	var sb strings.Builder
	for i, token := range tokens {
		value := token.Value
		if token.Type == Word && keywords[strings.ToUpper(value)] {
			value = strings.ToUpper(value)
		}

		if i > 0 && needsSpace(tokens[i-1], token) {
			sb.WriteByte(' ')
		}
		sb.WriteString(value)
	}

	return sb.String()
}

// needsSpace decides token separation in the normalized form
func needsSpace(prev, cur Token) bool {
	if cur.Type == Symbol {
		switch cur.Value {
		case ",", ")", ";":
			return false
		}
	}
	if prev.Type == Symbol && prev.Value == "(" {
		return false
	}
	// Call-style open paren binds to the preceding word: f(x), VARCHAR(255)
	if cur.Type == Symbol && cur.Value == "(" && (prev.Type == Word || prev.Type == QuotedIdentifier) {
		return false
	}
	return true
}

// SplitStatements cuts a script into individual statements at top-level
// semicolons. Semicolons inside string literals, quoted identifiers and
// $$-quoted bodies do not split.
func SplitStatements(script string) []string {
	lexer := NewLexer(script)

	var statements []string
	start := 0
	for {
		token := lexer.NextToken()
		if token.Type == EOF {
			if rest := strings.TrimSpace(script[start:]); rest != "" {
				statements = append(statements, rest)
			}
			return statements
		}
		if token.Type == Symbol && token.Value == ";" {
			if statement := strings.TrimSpace(script[start : lexer.position-1]); statement != "" {
				statements = append(statements, statement)
			}
			start = lexer.position
		}
	}
}

// ParseStatement extracts the change kind and object identity from a
// schema-altering statement. Only CREATE/ALTER/DROP of the supported
// object kinds are recognized.
func ParseStatement(sql string) (Statement, error) {
	lexer := NewLexer(sql)

	verb := lexer.NextToken()
	if verb.Type != Word {
		return Statement{}, fmt.Errorf("not a DDL statement: %q", sql)
	}

	var changeKind core.ChangeKind
	switch strings.ToUpper(verb.Value) {
	case "CREATE":
		changeKind = core.ChangeCreate
	case "ALTER":
		changeKind = core.ChangeAlter
	case "DROP":
		changeKind = core.ChangeDrop
	default:
		return Statement{}, fmt.Errorf("unsupported statement verb %q", verb.Value)
	}

	// Skip modifiers between the verb and the object kind
	token := lexer.NextToken()
	materialized := false
	for token.Type == Word {
		switch strings.ToUpper(token.Value) {
		case "OR", "REPLACE", "UNIQUE", "TEMP", "TEMPORARY", "CONCURRENTLY":
			token = lexer.NextToken()
			continue
		case "MATERIALIZED":
			materialized = true
			token = lexer.NextToken()
			continue
		}
		break
	}

	if token.Type != Word {
		return Statement{}, fmt.Errorf("missing object kind in %q", sql)
	}

	var kind core.ObjectKind
	switch strings.ToUpper(token.Value) {
	case "TABLE":
		kind = core.KindTable
	case "VIEW":
		kind = core.KindView
	case "INDEX":
		kind = core.KindIndex
	case "FUNCTION", "PROCEDURE":
		kind = core.KindFunction
	case "TRIGGER":
		kind = core.KindTrigger
	case "SEQUENCE":
		kind = core.KindSequence
	default:
		return Statement{}, fmt.Errorf("unsupported object kind %q", token.Value)
	}
	if materialized && kind != core.KindView {
		return Statement{}, fmt.Errorf("MATERIALIZED applies to views only, got %q", token.Value)
	}

	name, err := readObjectName(lexer)
	if err != nil {
		return Statement{}, fmt.Errorf("parsing %q: %w", sql, err)
	}

	return Statement{
		ChangeKind: changeKind,
		Identity:   core.ObjectIdentity{Kind: kind, Name: name},
		Definition: Normalize(sql),
	}, nil
}

// readObjectName reads the qualified object name following the kind,
// skipping IF [NOT] EXISTS and stopping at '(' (argument or column lists)
func readObjectName(lexer *Lexer) (string, error) {
	token := lexer.NextToken()

	if token.Type == Word && strings.ToUpper(token.Value) == "IF" {
		next := lexer.NextToken()
		if next.Type == Word && strings.ToUpper(next.Value) == "NOT" {
			next = lexer.NextToken()
		}
		if next.Type != Word || strings.ToUpper(next.Value) != "EXISTS" {
			return "", fmt.Errorf("malformed IF EXISTS clause")
		}
		token = lexer.NextToken()
	}

	var parts []string
	for {
		switch token.Type {
		case Word:
			// Unquoted names may already carry dots ("public.users")
			parts = append(parts, strings.Split(token.Value, ".")...)
		case QuotedIdentifier:
			parts = append(parts, strings.Trim(token.Value, `"`))
		default:
			if len(parts) == 0 {
				return "", fmt.Errorf("missing object name")
			}
			return qualify(parts), nil
		}

		token = lexer.NextToken()
		if token.Type == Symbol && token.Value == "." {
			token = lexer.NextToken()
			continue
		}
		return qualify(parts), nil
	}
}

func qualify(parts []string) string {
	// Trailing empty part from a dangling dot is a syntax artifact; drop it
	cleaned := parts[:0]
	for _, p := range parts {
		if p != "" {
			cleaned = append(cleaned, p)
		}
	}
	if len(cleaned) == 1 {
		return DefaultSchema + "." + cleaned[0]
	}
	return strings.Join(cleaned, ".")
}
