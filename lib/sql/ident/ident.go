// Package ident validates and escapes every user supplied name and string
// literal before it is written into SQL text.
package ident

import (
	"errors"
	"regexp"
	"strings"

	"github.com/queryplan/sqlplan/lib/sql/ast"
	"github.com/queryplan/sqlplan/lib/sql/sqlerr"
)

const Star = "*"

var (
	ErrMissingIdentifier = errors.New("missing identifier")
	ErrInvalidIdentifier = errors.New("invalid identifier")
)

var (
	bareRe    = regexp.MustCompile(`^(?:[a-zA-Z_][a-zA-Z0-9_$]*|\*)$`)
	literalRe = regexp.MustCompile(`^'.*'$`)

	literalEscaper = strings.NewReplacer(`\`, `\\`, `'`, `\'`)
)

// ValidateBare accepts unquoted names and the lone wildcard.
func ValidateBare(s string) error {
	if !bareRe.MatchString(s) {
		return invalid(s)
	}
	return nil
}

// ValidateQuoted accepts anything that cannot terminate a double-quoted name.
func ValidateQuoted(s string) error {
	if strings.Contains(s, `"`) {
		return invalid(s)
	}
	return nil
}

// EscapeString escapes backslashes and single quotes for use inside a
// single-quoted literal. strings.Replacer works in one pass, so backslashes
// it introduces are never escaped again.
func EscapeString(s string) string {
	return literalEscaper.Replace(s)
}

// Quote wraps s in single quotes after escaping it.
func Quote(s string) string {
	return "'" + EscapeString(s) + "'"
}

// CleanLiteral re-escapes the interior of an already single-quoted string.
// ok is false when s is not wrapped in single quotes.
func CleanLiteral(s string) (string, bool) {
	if len(s) < 2 || !literalRe.MatchString(s) {
		return "", false
	}
	return Quote(s[1 : len(s)-1]), true
}

// Resolve renders id as SQL. Bare names are upper-cased, quoted names are kept
// verbatim inside double quotes, and a From qualifier is prepended unless
// suppressQualifier is set.
func Resolve(id ast.Identifier, suppressQualifier bool) (string, error) {
	name, err := render(id)
	if err != nil {
		return "", err
	}
	if id.From == "" || suppressQualifier {
		return name, nil
	}
	if err := ValidateBare(id.From); err != nil {
		return "", err
	}
	return strings.ToUpper(id.From) + "." + name, nil
}

// Canonical returns the name as the warehouse stores it: upper case for bare
// names, verbatim for quoted ones, without surrounding quotes or qualifier.
func Canonical(id ast.Identifier) (string, error) {
	if id.Name == "" {
		return "", missing()
	}
	if id.Quoted {
		if err := ValidateQuoted(id.Name); err != nil {
			return "", err
		}
		return id.Name, nil
	}
	if err := ValidateBare(id.Name); err != nil {
		return "", err
	}
	return strings.ToUpper(id.Name), nil
}

// Alias validates and upper-cases an output alias.
func Alias(s string) (string, error) {
	if s == "" {
		return "", missing()
	}
	if err := ValidateBare(s); err != nil {
		return "", err
	}
	if s == Star {
		return "", invalid(s)
	}
	return strings.ToUpper(s), nil
}

func render(id ast.Identifier) (string, error) {
	name, err := Canonical(id)
	if err != nil {
		return "", err
	}
	if id.Quoted {
		return `"` + name + `"`, nil
	}
	return name, nil
}

func missing() error {
	err := sqlerr.Request("missing identifier")
	err.Err = ErrMissingIdentifier
	return err
}

func invalid(s string) error {
	err := sqlerr.Request("invalid identifier %q", s)
	err.Err = ErrInvalidIdentifier
	return err
}
