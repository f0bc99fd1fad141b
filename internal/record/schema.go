package record

import (
	"fmt"
	"strings"
)

// TableName is the only table model-generated queries may reference.
const TableName = "exercise_records"

// column describes one persisted column. The create-table statement and
// the schema description handed to the query model are both generated
// from this table so the persisted shape and the prompt cannot drift.
type column struct {
	name    string
	sqlType string
	doc     string
}

var columns = []column{
	{"id", "TEXT PRIMARY KEY", "opaque record identifier"},
	{"user_id", "TEXT NOT NULL", "owning user identifier"},
	{"exercise_name", "TEXT NOT NULL", "lowercase exercise name"},
	{"sets", "INTEGER NOT NULL", "number of sets, 0 for pure-duration work"},
	{"reps", "TEXT NOT NULL", "JSON array of rep counts, one per set"},
	{"weights", "TEXT NOT NULL", "JSON array of weights in kg, aligned with reps"},
	{"bodyweight", "INTEGER NOT NULL", "1 when the exercise was done at bodyweight"},
	{"duration_seconds", "INTEGER NOT NULL", "duration in seconds, 0 when not applicable"},
	{"notes", "TEXT NOT NULL", "free-text notes"},
	{"created_at", "TEXT NOT NULL", "insert timestamp, RFC 3339 UTC"},
}

// CreateTableSQL returns the migration statement for the record table.
func CreateTableSQL() string {
	var b strings.Builder
	fmt.Fprintf(&b, "CREATE TABLE IF NOT EXISTS %s (\n", TableName)
	for i, col := range columns {
		fmt.Fprintf(&b, "\t%s %s", col.name, col.sqlType)
		if i < len(columns)-1 {
			b.WriteByte(',')
		}
		b.WriteByte('\n')
	}
	b.WriteString(");")
	return b.String()
}

// SchemaDescription renders the table layout for the query synthesis
// prompt, including one example query scoped to the given user.
func SchemaDescription(userID string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "The database has a table named %q with the following columns:\n", TableName)
	for _, col := range columns {
		fmt.Fprintf(&b, "- %s (%s): %s\n", col.name, strings.Fields(col.sqlType)[0], col.doc)
	}
	fmt.Fprintf(&b, "\nExample query: SELECT exercise_name, sets, reps, weights FROM %s WHERE user_id = '%s';\n", TableName, userID)
	return b.String()
}

// ColumnNames returns the persisted column names in table order.
func ColumnNames() []string {
	names := make([]string, len(columns))
	for i, col := range columns {
		names[i] = col.name
	}
	return names
}
