package query

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
)

var ErrNotReadOnly = errors.New("only read-only queries are allowed")

var readOnlyLeaders = map[string]bool{
	"SELECT":  true,
	"WITH":    true,
	"EXPLAIN": true,
	"VALUES":  true,
}

var mutatingKeywords = map[string]bool{
	"INSERT": true, "UPDATE": true, "DELETE": true, "MERGE": true, "UPSERT": true,
	"REPLACE": true, "CREATE": true, "ALTER": true, "DROP": true, "TRUNCATE": true,
	"GRANT": true, "REVOKE": true, "ATTACH": true, "DETACH": true, "COPY": true,
	"PRAGMA": true, "VACUUM": true, "INSTALL": true, "LOAD": true, "EXPORT": true,
	"IMPORT": true, "CALL": true, "SET": true, "CHECKPOINT": true, "REINDEX": true,
	"LOCK": true, "COMMENT": true, "INTO": true,
}

// scalarFunctions share a name with a mutating keyword and are allowed when
// called, e.g. replace(name, 'a', 'b').
var scalarFunctions = map[string]bool{
	"REPLACE": true,
}

// CheckReadOnly accepts a single SELECT, WITH, EXPLAIN or VALUES statement that
// contains no mutating keyword outside literals and comments.
func CheckReadOnly(sqlText string) error {
	tokens, err := scanTokens(sqlText)
	if err != nil {
		return err
	}
	for len(tokens) > 0 && tokens[len(tokens)-1].text == ";" {
		tokens = tokens[:len(tokens)-1]
	}

	leader := ""
	for _, tok := range tokens {
		if tok.word {
			leader = tok.text
			break
		}
	}
	if leader == "" {
		return fmt.Errorf("%w: empty statement", ErrNotReadOnly)
	}
	if !readOnlyLeaders[leader] {
		return fmt.Errorf("%w: statement starts with %s", ErrNotReadOnly, leader)
	}

	for i, tok := range tokens {
		if tok.text == ";" {
			return fmt.Errorf("%w: multiple statements", ErrNotReadOnly)
		}
		if !tok.word || !mutatingKeywords[tok.text] {
			continue
		}
		if scalarFunctions[tok.text] && i+1 < len(tokens) && tokens[i+1].text == "(" {
			continue
		}
		return fmt.Errorf("%w: %s is not permitted", ErrNotReadOnly, tok.text)
	}
	return nil
}

type token struct {
	text string
	word bool
}

// scanTokens yields upper-cased words and punctuation, dropping comments,
// string literals and quoted identifiers. A string literal whose end depends
// on whether backslash escapes apply is rejected: E-prefixed strings in PostgreSQL
// and DuckDB honor them, SQLite never does.
func scanTokens(sqlText string) ([]token, error) {
	runes := []rune(sqlText)
	tokens := make([]token, 0, len(runes)/4)
	for i := 0; i < len(runes); {
		r := runes[i]
		switch {
		case unicode.IsSpace(r):
			i++
		case r == '-' && i+1 < len(runes) && runes[i+1] == '-':
			for i < len(runes) && runes[i] != '\n' {
				i++
			}
		case r == '/' && i+1 < len(runes) && runes[i+1] == '*':
			end := indexFrom(runes, i+2, "*/")
			if end < 0 {
				return nil, fmt.Errorf("%w: unterminated comment", ErrNotReadOnly)
			}
			i = end + 2
		case r == '\'':
			end, err := skipString(runes, i)
			if err != nil {
				return nil, err
			}
			tokens = append(tokens, token{text: "?"})
			i = end
		case r == '"' || r == '`':
			end, err := skipQuoted(runes, i, r, false)
			if err != nil {
				return nil, err
			}
			tokens = append(tokens, token{text: "?"})
			i = end
		case r == '$' && dollarTag(runes, i) != "":
			tag := dollarTag(runes, i)
			end := indexFrom(runes, i+len([]rune(tag)), tag)
			if end < 0 {
				return nil, fmt.Errorf("%w: unterminated dollar-quoted text", ErrNotReadOnly)
			}
			tokens = append(tokens, token{text: "?"})
			i = end + len([]rune(tag))
		case isWordRune(r):
			start := i
			for i < len(runes) && (isWordRune(runes[i]) || runes[i] == '$') {
				i++
			}
			tokens = append(tokens, token{text: strings.ToUpper(string(runes[start:i])), word: true})
		default:
			tokens = append(tokens, token{text: string(r)})
			i++
		}
	}
	return tokens, nil
}

func skipString(runes []rune, start int) (int, error) {
	plain, plainErr := skipQuoted(runes, start, '\'', false)
	escaped, escapedErr := skipQuoted(runes, start, '\'', true)
	if plainErr != nil {
		return 0, plainErr
	}
	if escapedErr != nil || escaped != plain {
		return 0, fmt.Errorf("%w: ambiguous backslash escape in string literal", ErrNotReadOnly)
	}
	return plain, nil
}

func skipQuoted(runes []rune, start int, quote rune, backslash bool) (int, error) {
	for i := start + 1; i < len(runes); i++ {
		if backslash && runes[i] == '\\' {
			i++
			continue
		}
		if runes[i] != quote {
			continue
		}
		if i+1 < len(runes) && runes[i+1] == quote {
			i++
			continue
		}
		return i + 1, nil
	}
	return 0, fmt.Errorf("%w: unterminated quoted text", ErrNotReadOnly)
}

// dollarTag returns the opening delimiter of a dollar-quoted string at start,
// e.g. "$$" or "$body$", or "" when start is a parameter like $1.
func dollarTag(runes []rune, start int) string {
	for i := start + 1; i < len(runes); i++ {
		switch {
		case runes[i] == '$':
			return string(runes[start : i+1])
		case runes[i] == '_' || unicode.IsLetter(runes[i]):
		case unicode.IsDigit(runes[i]) && i > start+1:
		default:
			return ""
		}
	}
	return ""
}

func indexFrom(runes []rune, start int, needle string) int {
	n := []rune(needle)
	for i := start; i+len(n) <= len(runes); i++ {
		if string(runes[i:i+len(n)]) == needle {
			return i
		}
	}
	return -1
}

func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

// StripTrailingSemicolons removes terminators so the statement can be wrapped.
func StripTrailingSemicolons(sqlText string) string {
	trimmed := strings.TrimSpace(sqlText)
	for strings.HasSuffix(trimmed, ";") {
		trimmed = strings.TrimSpace(strings.TrimSuffix(trimmed, ";"))
	}
	return trimmed
}
