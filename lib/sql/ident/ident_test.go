package ident

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/queryplan/sqlplan/lib/sql/ast"
	"github.com/queryplan/sqlplan/lib/sql/sqlerr"
)

func TestValidateBare(t *testing.T) {
	valid := []string{"a", "_x", "Col_1", "a$b", "*", "ABC"}
	for _, s := range valid {
		if err := ValidateBare(s); err != nil {
			t.Fatalf("expected %q to be valid, got %v", s, err)
		}
	}
	invalidNames := []string{"", "1a", "a-b", "a b", "a;DROP", "**", "a*", `"a"`, "a.b"}
	for _, s := range invalidNames {
		if err := ValidateBare(s); err == nil {
			t.Fatalf("expected %q to be rejected", s)
		}
	}
}

func TestValidateQuoted(t *testing.T) {
	require.NoError(t, ValidateQuoted("Mixed Case; with spaces"))
	require.NoError(t, ValidateQuoted("it's"))
	require.Error(t, ValidateQuoted(`a"b`))
}

func TestEscapeString(t *testing.T) {
	cases := map[string]string{
		"plain":     "plain",
		"it's":      `it\'s`,
		`a\b`:       `a\\b`,
		`\'`:        `\\\'`,
		`'; DROP--`: `\'; DROP--`,
	}
	for in, want := range cases {
		if got := EscapeString(in); got != want {
			t.Fatalf("EscapeString(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestCleanLiteral(t *testing.T) {
	got, ok := CleanLiteral("'hello'")
	require.True(t, ok)
	require.Equal(t, "'hello'", got)

	got, ok = CleanLiteral("'it's'")
	require.True(t, ok)
	require.Equal(t, `'it\'s'`, got)

	got, ok = CleanLiteral("''")
	require.True(t, ok)
	require.Equal(t, "''", got)

	for _, s := range []string{"hello", "'", "'open", "close'", ""} {
		_, ok := CleanLiteral(s)
		require.False(t, ok, s)
	}
}

func TestResolve(t *testing.T) {
	tests := []struct {
		name     string
		id       ast.Identifier
		suppress bool
		want     string
	}{
		{name: "bare", id: ast.Ident("c1"), want: "C1"},
		{name: "star", id: ast.Ident("*"), want: "*"},
		{name: "quoted", id: ast.Identifier{Name: "MixedCase", Quoted: true}, want: `"MixedCase"`},
		{name: "qualified", id: ast.Identifier{Name: "c3", From: "t"}, want: "T.C3"},
		{name: "qualified quoted", id: ast.Identifier{Name: "c", Quoted: true, From: "t"}, want: `T."c"`},
		{name: "suppressed", id: ast.Identifier{Name: "c3", From: "t"}, suppress: true, want: "C3"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Resolve(tt.id, tt.suppress)
			require.NoError(t, err)
			require.Equal(t, tt.want, got)

			again, err := Resolve(tt.id, tt.suppress)
			require.NoError(t, err)
			require.Equal(t, got, again)
		})
	}
}

func TestResolveErrors(t *testing.T) {
	_, err := Resolve(ast.Identifier{}, false)
	require.ErrorIs(t, err, ErrMissingIdentifier)
	var re *sqlerr.RequestError
	require.True(t, errors.As(err, &re))
	require.Equal(t, 400, re.Code)

	_, err = Resolve(ast.Ident("c1; DROP TABLE x"), false)
	require.ErrorIs(t, err, ErrInvalidIdentifier)

	_, err = Resolve(ast.Identifier{Name: `a"b`, Quoted: true}, false)
	require.ErrorIs(t, err, ErrInvalidIdentifier)

	_, err = Resolve(ast.Identifier{Name: "c", From: "t-1"}, false)
	require.ErrorIs(t, err, ErrInvalidIdentifier)

	// a suppressed qualifier is never inspected
	_, err = Resolve(ast.Identifier{Name: "c", From: "t-1"}, true)
	require.NoError(t, err)
}

func TestAlias(t *testing.T) {
	got, err := Alias("col4")
	require.NoError(t, err)
	require.Equal(t, "COL4", got)

	_, err = Alias("*")
	require.ErrorIs(t, err, ErrInvalidIdentifier)
	_, err = Alias("a b")
	require.ErrorIs(t, err, ErrInvalidIdentifier)
}
