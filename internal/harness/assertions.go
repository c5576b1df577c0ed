package harness

import (
	"context"
	"fmt"
	"reflect"
	"regexp"
	"sort"
	"strings"

	"github.com/NinoDS/jssat/internal/store"
)

// validIdentifier matches valid SQL identifiers (table/column names).
// Only allows alphanumeric and underscore, must start with letter or underscore.
var validIdentifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// storedTables are the report tables a stored assertion may query, mapped
// to the column holding the run identifier.
var storedTables = map[string]string{
	"runs":            "id",
	"specializations": "run_id",
	"blocks":          "run_id",
}

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nSpecializations:\n")
		for _, event := range e.Trace {
			fmt.Fprintf(&buf, "  [%d] %s %s -> %s\n", event.Seq, event.Function, event.Signature, event.Outcome)
		}
	}
	return buf.String()
}

// assertSpecialization checks that function was specialized, optionally
// for the given signature and with the given outcome.
func assertSpecialization(trace []TraceEvent, a Assertion) error {
	for _, event := range trace {
		if event.Function != a.Function {
			continue
		}
		if a.Signature != "" && event.Signature != a.Signature {
			continue
		}
		if a.Outcome != "" && event.Outcome != a.Outcome {
			continue
		}
		return nil
	}

	want := "specialization of " + a.Function
	if a.Signature != "" {
		want += " for " + a.Signature
	}
	if a.Outcome != "" {
		want += " with outcome " + a.Outcome
	}
	return &AssertionError{
		Type:     AssertSpecialization,
		Expected: want,
		Actual:   "not found in trace",
		Trace:    trace,
	}
}

// assertSpecializationOrder checks that the first specializations of the
// given functions were discovered in order. Other functions may appear in
// between.
func assertSpecializationOrder(trace []TraceEvent, a Assertion) error {
	first := make(map[string]int)
	for i, event := range trace {
		if _, seen := first[event.Function]; !seen {
			first[event.Function] = i + 1 // 1-indexed for readability
		}
	}

	for _, fn := range a.Functions {
		if first[fn] == 0 {
			return &AssertionError{
				Type:     AssertSpecializationOrder,
				Expected: fmt.Sprintf("all functions present: %v", a.Functions),
				Actual:   fmt.Sprintf("missing function: %s", fn),
				Trace:    trace,
			}
		}
	}

	for i := 1; i < len(a.Functions); i++ {
		prev, curr := a.Functions[i-1], a.Functions[i]
		if first[prev] >= first[curr] {
			return &AssertionError{
				Type:     AssertSpecializationOrder,
				Expected: fmt.Sprintf("functions in order: %v", a.Functions),
				Actual: fmt.Sprintf("%s (pos %d) should be before %s (pos %d)",
					prev, first[prev], curr, first[curr]),
				Trace: trace,
			}
		}
	}
	return nil
}

// assertSpecializationCount checks that function has exactly Count
// specializations.
func assertSpecializationCount(trace []TraceEvent, a Assertion) error {
	count := 0
	for _, event := range trace {
		if event.Function == a.Function {
			count++
		}
	}
	if count != a.Count {
		return &AssertionError{
			Type:     AssertSpecializationCount,
			Expected: fmt.Sprintf("%d specializations of %s", a.Count, a.Function),
			Actual:   fmt.Sprintf("%d specializations", count),
			Trace:    trace,
		}
	}
	return nil
}

func assertAssembledContains(run *store.Run, a Assertion) error {
	if run != nil && strings.Contains(run.Assembled, a.Text) {
		return nil
	}
	actual := "no assembled program"
	if run != nil && run.Assembled != "" {
		actual = "assembled program:\n" + run.Assembled
	}
	return &AssertionError{
		Type:     AssertAssembledContains,
		Expected: fmt.Sprintf("assembled program containing %q", a.Text),
		Actual:   actual,
	}
}

// assertStored checks that exactly one row of a report table, restricted
// to runID, matches Where and carries the Expect values.
//
// Table and column names are validated before they are interpolated; all
// values are bound as parameters.
func assertStored(ctx context.Context, st *store.Store, runID string, a Assertion) error {
	runColumn, ok := storedTables[a.Table]
	if !ok {
		return fmt.Errorf("stored assertion: unknown table %q", a.Table)
	}

	whereSQL, whereArgs, err := buildWhereClause(a.Where)
	if err != nil {
		return err
	}
	query := fmt.Sprintf("SELECT * FROM %s WHERE %s = ?", a.Table, runColumn)
	args := append([]any{runID}, whereArgs...)
	if whereSQL != "" {
		query += " AND " + whereSQL
	}

	rows, err := st.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return &AssertionError{
			Type:     AssertStored,
			Expected: fmt.Sprintf("query table %s", a.Table),
			Actual:   fmt.Sprintf("query error: %v", err),
		}
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return fmt.Errorf("get columns: %w", err)
	}

	if !rows.Next() {
		return &AssertionError{
			Type:     AssertStored,
			Expected: fmt.Sprintf("row in %s where %s", a.Table, formatWhereClause(a.Where)),
			Actual:   "row not found",
		}
	}

	values := make([]any, len(columns))
	ptrs := make([]any, len(columns))
	for i := range values {
		ptrs[i] = &values[i]
	}
	if err := rows.Scan(ptrs...); err != nil {
		return fmt.Errorf("scan row: %w", err)
	}

	if rows.Next() {
		return &AssertionError{
			Type:     AssertStored,
			Expected: fmt.Sprintf("exactly one row in %s where %s", a.Table, formatWhereClause(a.Where)),
			Actual:   "multiple rows matched (assertion is ambiguous)",
		}
	}

	row := make(map[string]any, len(columns))
	for i, col := range columns {
		row[col] = values[i]
	}

	for _, key := range sortedKeys(a.Expect) {
		actual, exists := row[key]
		if !exists {
			return &AssertionError{
				Type:     AssertStored,
				Expected: fmt.Sprintf("column %q to exist", key),
				Actual:   fmt.Sprintf("column %q not present in result columns: %v", key, columns),
			}
		}
		if !storedValuesEqual(a.Expect[key], actual) {
			return &AssertionError{
				Type:     AssertStored,
				Expected: fmt.Sprintf("column %q = %v (type %T)", key, a.Expect[key], a.Expect[key]),
				Actual:   fmt.Sprintf("column %q = %v (type %T)", key, normalize(actual), normalize(actual)),
			}
		}
	}
	return nil
}

// buildWhereClause constructs a parameterized WHERE fragment. Keys are
// sorted for deterministic query generation.
func buildWhereClause(where map[string]any) (string, []any, error) {
	if len(where) == 0 {
		return "", nil, nil
	}

	keys := sortedKeys(where)
	clauses := make([]string, 0, len(keys))
	args := make([]any, 0, len(keys))
	for _, key := range keys {
		if !validIdentifier.MatchString(key) {
			return "", nil, fmt.Errorf("invalid column name %q in where clause: must match pattern %s", key, validIdentifier.String())
		}
		clauses = append(clauses, fmt.Sprintf("%s = ?", key))
		args = append(args, toSQLValue(where[key]))
	}
	return strings.Join(clauses, " AND "), args, nil
}

// toSQLValue converts a YAML-decoded value to a SQL-compatible value.
func toSQLValue(v any) any {
	switch val := v.(type) {
	case string, int, int64, bool:
		return val
	default:
		return fmt.Sprintf("%v", val)
	}
}

// formatWhereClause creates a human-readable description of WHERE conditions.
func formatWhereClause(where map[string]any) string {
	if len(where) == 0 {
		return "(no conditions)"
	}
	keys := sortedKeys(where)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, where[k]))
	}
	return strings.Join(parts, " AND ")
}

// normalize turns driver TEXT values into strings.
func normalize(v any) any {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return v
}

// storedValuesEqual compares a YAML-decoded expected value with a column
// value. SQLite returns integers as int64 and stores booleans as 0/1.
func storedValuesEqual(expected, actual any) bool {
	actual = normalize(actual)
	if expected == nil || actual == nil {
		return expected == nil && actual == nil
	}

	switch exp := expected.(type) {
	case string:
		s, ok := actual.(string)
		return ok && exp == s
	case int:
		n, ok := actual.(int64)
		return ok && int64(exp) == n
	case int64:
		n, ok := actual.(int64)
		return ok && exp == n
	case bool:
		if b, ok := actual.(bool); ok {
			return exp == b
		}
		n, ok := actual.(int64)
		return ok && exp == (n != 0)
	}
	return reflect.DeepEqual(expected, actual)
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// AssertionContext provides database access for stored assertions.
type AssertionContext struct {
	Store *store.Store
	Ctx   context.Context
	RunID string
}

// EvaluateAssertions evaluates all assertions against the result.
// Returns a slice of error messages for failed assertions.
func EvaluateAssertions(result *Result, assertions []Assertion, actx *AssertionContext) []string {
	var errs []string

	for i, a := range assertions {
		var err error

		switch a.Type {
		case AssertSpecialization:
			err = assertSpecialization(result.Trace, a)
		case AssertSpecializationOrder:
			err = assertSpecializationOrder(result.Trace, a)
		case AssertSpecializationCount:
			err = assertSpecializationCount(result.Trace, a)
		case AssertAssembledContains:
			err = assertAssembledContains(result.Run, a)
		case AssertStored:
			if actx == nil || actx.Store == nil {
				err = fmt.Errorf("assertion[%d]: stored requires database context", i)
			} else {
				err = assertStored(actx.Ctx, actx.Store, actx.RunID, a)
			}
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, a.Type)
		}

		if err != nil {
			errs = append(errs, err.Error())
		}
	}
	return errs
}
