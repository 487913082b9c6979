package querycfg

import (
	"fmt"
	"strings"

	"github.com/vk/privgraph/internal/graph"
	"github.com/vk/privgraph/internal/policy"
)

// PlaceholderStyle selects the bind-parameter syntax of the target driver.
type PlaceholderStyle int

const (
	// PlaceholderQuestion is "?" (mysql, sqlite).
	PlaceholderQuestion PlaceholderStyle = iota
	// PlaceholderDollar is "$1", "$2", ... (postgres).
	PlaceholderDollar
)

// SQLOperation is one parameterized statement ready for database/sql.
type SQLOperation struct {
	SQL  string
	Args []any
}

// SQLConfig compiles read and update statements for a relational node.
type SQLConfig struct {
	node  *graph.Node
	style PlaceholderStyle
}

// NewSQLConfig builds a compiler for one node.
func NewSQLConfig(node *graph.Node, style PlaceholderStyle) *SQLConfig {
	return &SQLConfig{node: node, style: style}
}

func (c *SQLConfig) placeholder(n int) string {
	if c.style == PlaceholderDollar {
		return fmt.Sprintf("$%d", n)
	}
	return "?"
}

// GenerateQuery compiles the read operation: every declared field projected,
// predicate clauses OR-joined, equality for single values and set membership
// for multiple. Returns ok=false when no predicate can be constructed.
func (c *SQLConfig) GenerateQuery(input map[string][]any) (*SQLOperation, bool) {
	filtered := FilterValues(c.node, input)
	if len(filtered) == 0 {
		return nil, false
	}

	var clauses []string
	var args []any
	for _, key := range sortedKeys(filtered) {
		values := filtered[key]
		if len(values) == 1 {
			clauses = append(clauses, fmt.Sprintf("%s = %s", key, c.placeholder(len(args)+1)))
			args = append(args, values[0])
			continue
		}
		marks := make([]string, len(values))
		for i, v := range values {
			marks[i] = c.placeholder(len(args) + 1)
			args = append(args, v)
		}
		clauses = append(clauses, fmt.Sprintf("%s IN (%s)", key, strings.Join(marks, ", ")))
	}

	sql := fmt.Sprintf("SELECT %s FROM %s WHERE %s",
		strings.Join(c.node.FieldNames(), ", "),
		c.node.Address.Collection,
		strings.Join(clauses, " OR "),
	)
	return &SQLOperation{SQL: sql, Args: args}, true
}

// GenerateUpdate compiles one masking statement for one retrieved row. Only
// fields whose data category the policy matches are rewritten; rows with no
// matched field, or with no primary key value to address them, yield no
// statement.
func (c *SQLConfig) GenerateUpdate(row Row, p policy.Policy) (*SQLOperation, bool) {
	targets := p.ErasureTargets(c.node.Collection.Fields)
	var sets []string
	var args []any
	for _, name := range c.node.FieldNames() {
		strategy, matched := targets[name]
		if !matched {
			continue
		}
		value, present := row[name]
		if !present {
			continue
		}
		sets = append(sets, fmt.Sprintf("%s = %s", name, c.placeholder(len(args)+1)))
		args = append(args, strategy.Mask(value))
	}
	if len(sets) == 0 {
		return nil, false
	}

	var wheres []string
	for _, f := range c.node.Collection.Fields {
		if !f.PrimaryKey {
			continue
		}
		value, present := row[f.Name]
		if !present {
			continue
		}
		wheres = append(wheres, fmt.Sprintf("%s = %s", f.Name, c.placeholder(len(args)+1)))
		args = append(args, value)
	}
	if len(wheres) == 0 {
		return nil, false
	}

	sql := fmt.Sprintf("UPDATE %s SET %s WHERE %s",
		c.node.Address.Collection,
		strings.Join(sets, ", "),
		strings.Join(wheres, " AND "),
	)
	return &SQLOperation{SQL: sql, Args: args}, true
}
