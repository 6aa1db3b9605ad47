package accessstore

import (
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/queryplan/sqlplan/lib/sql/sqlerr"
	"github.com/queryplan/sqlplan/lib/sql/token"
)

// Wildcard matches any name at its level of an allow map.
const Wildcard = "*"

// AllowedDbs maps db -> schema -> table -> allowed.
type AllowedDbs map[string]map[string]map[string]bool

type Config struct {
	ServiceRead AllowedDbs `json:"serviceRead"`
	CallerRead  AllowedDbs `json:"callerRead"`
}

// Policy is the read-only table allow list consulted during planning. A nil
// *Policy stands for a process that never loaded one.
type Policy struct {
	serviceRead AllowedDbs
	callerRead  AllowedDbs
	// lowerKeys lists entries holding lower-case letters. Bare names are
	// canonicalized upper-cased, so only quoted names can ever match them.
	lowerKeys []string
}

// Target is one resolved table reference. Names are compared exactly as the
// planner canonicalizes them; an omitted db or schema is "".
type Target struct {
	DB     string
	Schema string
	Table  string
	As     token.AccessMode
}

// New validates cfg. Keys are compared with the planner's canonical names:
// bare identifiers upper-cased, quoted identifiers verbatim.
func New(cfg Config) (*Policy, error) {
	var lower []string
	serviceRead, err := normalizeAllowedDbs(cfg.ServiceRead, "serviceRead", &lower)
	if err != nil {
		return nil, fmt.Errorf("normalize serviceRead: %w", err)
	}
	callerRead, err := normalizeAllowedDbs(cfg.CallerRead, "callerRead", &lower)
	if err != nil {
		return nil, fmt.Errorf("normalize callerRead: %w", err)
	}
	sort.Strings(lower)
	return &Policy{
		serviceRead: serviceRead,
		callerRead:  callerRead,
		lowerKeys:   lower,
	}, nil
}

// LowerCaseKeys returns the "mode/db/schema/table" paths of entries whose
// last key has lower-case letters.
func (p *Policy) LowerCaseKeys() []string {
	if p == nil || len(p.lowerKeys) == 0 {
		return nil
	}
	return append([]string(nil), p.lowerKeys...)
}

// Configured reports whether mode has an allow map at all.
func (p *Policy) Configured(mode token.AccessMode) bool {
	if p == nil {
		return false
	}
	return p.allowed(mode) != nil
}

func (p *Policy) allowed(mode token.AccessMode) AllowedDbs {
	switch mode {
	case token.CALLER:
		return p.callerRead
	case token.SERVICE, "":
		return p.serviceRead
	default:
		return nil
	}
}

// CanRead returns nil when t is allowed. Each level accepts either the exact
// name or the wildcard entry, and any reachable table map may grant access.
func (p *Policy) CanRead(t Target) error {
	if p == nil {
		return &sqlerr.ConfigError{
			Code:    http.StatusInternalServerError,
			Message: "table access policy checked before it was initialized",
		}
	}
	mode := t.As
	if mode == "" {
		mode = token.SERVICE
	}
	allowed := p.allowed(mode)
	if allowed == nil {
		return sqlerr.Access(sqlerr.StageMode, "access type %q is not allowed", mode)
	}

	schemas := lookup(allowed, t.DB)
	if len(schemas) == 0 {
		return sqlerr.Access(sqlerr.StageDB, "read access to database %q is not allowed", t.DB)
	}
	var tables []map[string]bool
	for _, s := range schemas {
		tables = append(tables, lookup(s, t.Schema)...)
	}
	if len(tables) == 0 {
		return sqlerr.Access(sqlerr.StageSchema, "read access to schema %q is not allowed", t.Schema)
	}
	for _, m := range tables {
		if m[t.Table] || m[Wildcard] {
			return nil
		}
	}
	return sqlerr.Access(sqlerr.StageTable, "read access to table %q is not allowed", t.Table)
}

func lookup[V any](m map[string]V, name string) []V {
	var out []V
	if v, ok := m[name]; ok {
		out = append(out, v)
	}
	if name != Wildcard {
		if v, ok := m[Wildcard]; ok {
			out = append(out, v)
		}
	}
	return out
}

func normalizeAllowedDbs(src AllowedDbs, mode string, lower *[]string) (AllowedDbs, error) {
	if src == nil {
		return nil, nil
	}
	note := func(key string, path ...string) {
		if key != strings.ToUpper(key) {
			*lower = append(*lower, strings.Join(append([]string{mode}, path...), "/"))
		}
	}
	dst := make(AllowedDbs, len(src))
	for db, schemas := range src {
		dbKey, err := normalizeKey(db, "database")
		if err != nil {
			return nil, err
		}
		if _, exists := dst[dbKey]; exists {
			return nil, fmt.Errorf("accessstore: duplicate database %q", dbKey)
		}
		note(dbKey, dbKey)
		dstSchemas := make(map[string]map[string]bool, len(schemas))
		for schema, tables := range schemas {
			schemaKey, err := normalizeKey(schema, "schema")
			if err != nil {
				return nil, err
			}
			if _, exists := dstSchemas[schemaKey]; exists {
				return nil, fmt.Errorf("accessstore: duplicate schema %q in database %q", schemaKey, dbKey)
			}
			note(schemaKey, dbKey, schemaKey)
			dstTables := make(map[string]bool, len(tables))
			for table, ok := range tables {
				tableKey, err := normalizeKey(table, "table")
				if err != nil {
					return nil, err
				}
				if _, exists := dstTables[tableKey]; exists {
					return nil, fmt.Errorf("accessstore: duplicate table %q in %s.%s", tableKey, dbKey, schemaKey)
				}
				note(tableKey, dbKey, schemaKey, tableKey)
				dstTables[tableKey] = ok
			}
			dstSchemas[schemaKey] = dstTables
		}
		dst[dbKey] = dstSchemas
	}
	return dst, nil
}

func normalizeKey(name, kind string) (string, error) {
	key := strings.TrimSpace(name)
	if key == "" {
		return "", fmt.Errorf("accessstore: %s name cannot be empty", kind)
	}
	return key, nil
}
