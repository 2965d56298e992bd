package sql

import (
	"regexp"
	"strings"
)

// StatementType represents the type of SQL statement.
type StatementType string

const (
	TypeSelect  StatementType = "SELECT"
	TypeInsert  StatementType = "INSERT"
	TypeUpdate  StatementType = "UPDATE"
	TypeDelete  StatementType = "DELETE"
	TypeCall    StatementType = "CALL"
	TypeDDL     StatementType = "DDL"     // CREATE, ALTER, DROP, TRUNCATE, GRANT, REVOKE
	TypeUnknown StatementType = "UNKNOWN" // Unrecognized or blocked statement types
)

// modifyingCTEPattern matches CTEs that contain data-modifying operations.
// Example: WITH deleted AS (DELETE FROM ...) SELECT * FROM deleted
var modifyingCTEPattern = regexp.MustCompile(`(?i)\bAS\s*\(\s*(INSERT|UPDATE|DELETE)\b`)

// DetectStatementType determines the type of SQL statement from its first
// keyword. WITH statements are SELECT-class unless a CTE modifies data.
func DetectStatementType(sql string) StatementType {
	normalized := strings.ToUpper(strings.TrimSpace(sql))

	switch {
	case strings.HasPrefix(normalized, "SELECT"):
		return TypeSelect

	case strings.HasPrefix(normalized, "WITH"):
		// WITH deleted AS (DELETE FROM ... RETURNING *) SELECT ... is a
		// write dressed as a read. Block it.
		if modifyingCTEPattern.MatchString(sql) {
			return TypeUnknown
		}
		return TypeSelect

	case strings.HasPrefix(normalized, "INSERT"):
		return TypeInsert

	case strings.HasPrefix(normalized, "UPDATE"):
		return TypeUpdate

	case strings.HasPrefix(normalized, "DELETE"):
		return TypeDelete

	case strings.HasPrefix(normalized, "CALL"):
		return TypeCall

	case strings.HasPrefix(normalized, "CREATE"),
		strings.HasPrefix(normalized, "ALTER"),
		strings.HasPrefix(normalized, "DROP"),
		strings.HasPrefix(normalized, "TRUNCATE"),
		strings.HasPrefix(normalized, "GRANT"),
		strings.HasPrefix(normalized, "REVOKE"):
		return TypeDDL

	case strings.HasPrefix(normalized, "BEGIN"),
		strings.HasPrefix(normalized, "COMMIT"),
		strings.HasPrefix(normalized, "ROLLBACK"),
		strings.HasPrefix(normalized, "SAVEPOINT"),
		strings.HasPrefix(normalized, "SET"),
		strings.HasPrefix(normalized, "COPY"):
		return TypeUnknown

	default:
		return TypeUnknown
	}
}

// TypeError reports a blocked statement type.
type TypeError struct {
	Type    StatementType
	Message string
}

func (e *TypeError) Error() string {
	return e.Message
}

// RequireSelect validates that the statement is a single SELECT-class
// statement. Generated queries are read-only by contract; everything else is
// a hard rejection regardless of how the model phrased it.
func RequireSelect(sql string) (StatementType, error) {
	sqlType := DetectStatementType(sql)
	if sqlType == TypeSelect {
		return sqlType, nil
	}

	switch sqlType {
	case TypeDDL:
		return sqlType, &TypeError{
			Type:    sqlType,
			Message: "DDL statements (CREATE, ALTER, DROP, TRUNCATE, GRANT) are not allowed",
		}
	case TypeInsert, TypeUpdate, TypeDelete, TypeCall:
		return sqlType, &TypeError{
			Type:    sqlType,
			Message: "data-modifying statements are not allowed; only SELECT queries are executed",
		}
	default:
		return sqlType, &TypeError{
			Type:    sqlType,
			Message: "unrecognized SQL statement type; only a single SELECT query is allowed",
		}
	}
}
