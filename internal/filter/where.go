package filter

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/samber/lo"

	"github.com/vburojevic/dbgl/internal/domain"
)

// Fields maps lower-case field names to their string values
type Fields map[string]string

// RecordFields exposes a persisted record to where clauses
func RecordFields(r domain.PersistedRecord) Fields {
	return Fields{
		"port":      strconv.Itoa(r.Port),
		"ip":        r.IP,
		"workspace": r.WorkspacePath,
		"saved_at":  strconv.FormatInt(r.SavedAt, 10),
	}
}

// SessionFields exposes a session, live or probed from the store, to where
// clauses
func SessionFields(s *domain.Session) Fields {
	return Fields{
		"id":          string(s.ID),
		"port":        strconv.Itoa(s.DebugPort),
		"ip":          s.DebugIP,
		"workspace":   s.WorkspacePath,
		"status":      string(s.Status),
		"external_id": s.ExternalSessionID,
		"created_at":  strconv.FormatInt(s.CreatedAt.UnixMilli(), 10),
	}
}

// WhereClause represents a parsed --where condition
type WhereClause struct {
	Field    string
	Operator string
	Value    string
	regex    *regexp.Regexp // compiled for ~ and !~
}

// ParseWhereClause parses a clause like "port=5678" or "workspace~proj".
// Supported operators: =, !=, ~, !~, >=, <=, ^, $
func ParseWhereClause(clause string) (*WhereClause, error) {
	// longest first to avoid partial matches
	operators := []string{"!~", ">=", "<=", "!=", "~", "=", "^", "$"}

	for _, op := range operators {
		idx := strings.Index(clause, op)
		if idx > 0 {
			field := strings.ToLower(strings.TrimSpace(clause[:idx]))
			value := strings.TrimSpace(clause[idx+len(op):])

			if field == "" || value == "" {
				return nil, fmt.Errorf("invalid where clause: %s", clause)
			}

			wc := &WhereClause{
				Field:    field,
				Operator: op,
				Value:    value,
			}

			if field == "status" && (op == "=" || op == "!=") {
				if _, ok := domain.ParseStatus(value); !ok {
					return nil, fmt.Errorf("unknown status in where clause '%s' (use pending, connected, disconnected, error)", clause)
				}
			}

			if op == "~" || op == "!~" {
				re, err := regexp.Compile(value)
				if err != nil {
					return nil, fmt.Errorf("invalid regex in where clause '%s': %w", clause, err)
				}
				wc.regex = re
			}

			return wc, nil
		}
	}

	return nil, fmt.Errorf("no valid operator found in where clause: %s (use =, !=, ~, !~, >=, <=, ^, $)", clause)
}

// Match checks if the fields satisfy this clause. Unknown fields compare
// as the empty string.
func (wc *WhereClause) Match(fields Fields) bool {
	fieldValue := fields[wc.Field]

	switch wc.Operator {
	case "=":
		return fieldValue == wc.Value
	case "!=":
		return fieldValue != wc.Value
	case "~":
		return wc.regex.MatchString(fieldValue)
	case "!~":
		return !wc.regex.MatchString(fieldValue)
	case "^":
		return strings.HasPrefix(fieldValue, wc.Value)
	case "$":
		return strings.HasSuffix(fieldValue, wc.Value)
	case ">=":
		return wc.compare(fieldValue, true)
	case "<=":
		return wc.compare(fieldValue, false)
	}

	return false
}

// compare handles >= and <= numerically, falling back to string order
func (wc *WhereClause) compare(fieldValue string, greaterOrEqual bool) bool {
	got, err1 := strconv.ParseInt(fieldValue, 10, 64)
	want, err2 := strconv.ParseInt(wc.Value, 10, 64)
	if err1 != nil || err2 != nil {
		if greaterOrEqual {
			return fieldValue >= wc.Value
		}
		return fieldValue <= wc.Value
	}
	if greaterOrEqual {
		return got >= want
	}
	return got <= want
}

// WhereFilter applies multiple where clauses (AND logic)
type WhereFilter struct {
	clauses []*WhereClause
}

// NewWhereFilter creates a filter from clause strings. A nil filter
// matches everything.
func NewWhereFilter(whereClauses []string) (*WhereFilter, error) {
	if len(whereClauses) == 0 {
		return nil, nil
	}

	filter := &WhereFilter{}
	for _, clause := range whereClauses {
		wc, err := ParseWhereClause(clause)
		if err != nil {
			return nil, err
		}
		filter.clauses = append(filter.clauses, wc)
	}

	return filter, nil
}

// Match returns true if the fields match ALL where clauses
func (f *WhereFilter) Match(fields Fields) bool {
	if f == nil {
		return true
	}
	return lo.EveryBy(f.clauses, func(c *WhereClause) bool { return c.Match(fields) })
}

// Uses reports whether any clause tests field
func (f *WhereFilter) Uses(field string) bool {
	if f == nil {
		return false
	}
	return lo.SomeBy(f.clauses, func(c *WhereClause) bool { return c.Field == field })
}

// Records keeps the records matching f
func (f *WhereFilter) Records(records []domain.PersistedRecord) []domain.PersistedRecord {
	return lo.Filter(records, func(r domain.PersistedRecord, _ int) bool { return f.Match(RecordFields(r)) })
}

// Sessions keeps the sessions matching f
func (f *WhereFilter) Sessions(sessions []*domain.Session) []*domain.Session {
	return lo.Filter(sessions, func(s *domain.Session, _ int) bool { return f.Match(SessionFields(s)) })
}
