// Package stdlib holds native modules scripts can load by name.
package stdlib

import (
	"context"
	"fmt"
	"time"

	"arcanea/internal/database"
	"arcanea/internal/errors"
	"arcanea/internal/runtime"
)

// SQLModuleName is the name the sql module is loaded under.
const SQLModuleName = "sql"

// SQLModule exposes database connections to scripts.
type SQLModule struct {
	manager *database.Manager
}

func NewSQLModule(manager *database.Manager) *SQLModule {
	return &SQLModule{manager: manager}
}

// Manager exposes the connection manager, for shutdown.
func (m *SQLModule) Manager() *database.Manager {
	return m.manager
}

// Init registers the sql_* natives.
func (m *SQLModule) Init(_ context.Context, reg *runtime.Registry) error {
	reg.RegisterFunction("sql_open", m.open)
	reg.RegisterFunction("sql_exec", m.exec)
	reg.RegisterFunction("sql_query", m.query)
	reg.RegisterFunction("sql_query_one", m.queryOne)
	reg.RegisterFunction("sql_close", m.close)
	reg.RegisterFunction("sql_connections", m.connections)
	return nil
}

// Close releases every connection opened through the module.
func (m *SQLModule) Close() error {
	return m.manager.CloseAll()
}

// sql_open(type, dsn) returns a connection id.
// Example: sql_open("sqlite", ":memory:")
// Example: sql_open("postgres", "host=localhost user=test dbname=mydb sslmode=disable")
func (m *SQLModule) open(ctx context.Context, args []runtime.Value) (runtime.Value, error) {
	dbType, err := stringArg("sql_open", args, 0, "type")
	if err != nil {
		return nil, err
	}
	dsn, err := stringArg("sql_open", args, 1, "dsn")
	if err != nil {
		return nil, err
	}
	id, err := m.manager.Open(ctx, dbType, dsn)
	if err != nil {
		return nil, sqlError("sql_open", err)
	}
	return id, nil
}

// sql_exec(id, statement, params...) returns the number of rows affected.
func (m *SQLModule) exec(ctx context.Context, args []runtime.Value) (runtime.Value, error) {
	id, stmt, params, err := statementArgs("sql_exec", args)
	if err != nil {
		return nil, err
	}
	affected, err := m.manager.Execute(ctx, id, stmt, params...)
	if err != nil {
		return nil, sqlError("sql_exec", err)
	}
	return float64(affected), nil
}

// sql_query(id, query, params...) returns a list of row records.
func (m *SQLModule) query(ctx context.Context, args []runtime.Value) (runtime.Value, error) {
	id, query, params, err := statementArgs("sql_query", args)
	if err != nil {
		return nil, err
	}
	rows, err := m.manager.Query(ctx, id, query, params...)
	if err != nil {
		return nil, sqlError("sql_query", err)
	}
	list := make([]runtime.Value, len(rows))
	for i, row := range rows {
		list[i] = toRecord(row)
	}
	return list, nil
}

// sql_query_one(id, query, params...) returns the first row, or nil.
func (m *SQLModule) queryOne(ctx context.Context, args []runtime.Value) (runtime.Value, error) {
	id, query, params, err := statementArgs("sql_query_one", args)
	if err != nil {
		return nil, err
	}
	rows, err := m.manager.Query(ctx, id, query, params...)
	if err != nil {
		return nil, sqlError("sql_query_one", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return toRecord(rows[0]), nil
}

func (m *SQLModule) close(_ context.Context, args []runtime.Value) (runtime.Value, error) {
	id, err := stringArg("sql_close", args, 0, "connection id")
	if err != nil {
		return nil, err
	}
	if err := m.manager.Close(id); err != nil {
		return nil, sqlError("sql_close", err)
	}
	return true, nil
}

func (m *SQLModule) connections(context.Context, []runtime.Value) (runtime.Value, error) {
	ids := m.manager.List()
	list := make([]runtime.Value, len(ids))
	for i, id := range ids {
		list[i] = id
	}
	return list, nil
}

func statementArgs(fn string, args []runtime.Value) (string, string, []interface{}, error) {
	id, err := stringArg(fn, args, 0, "connection id")
	if err != nil {
		return "", "", nil, err
	}
	stmt, err := stringArg(fn, args, 1, "statement")
	if err != nil {
		return "", "", nil, err
	}
	params := make([]interface{}, 0, len(args)-2)
	for i, a := range args[2:] {
		switch v := a.(type) {
		case nil, string, bool, float64:
			params = append(params, v)
		default:
			if n, ok := runtime.ToNumber(v); ok {
				params = append(params, n)
				continue
			}
			return "", "", nil, errors.Newf(errors.RuntimeError,
				"%s: parameter %d has unsupported type %s", fn, i+1, runtime.TypeOf(a))
		}
	}
	return id, stmt, params, nil
}

func stringArg(fn string, args []runtime.Value, i int, what string) (string, error) {
	if i >= len(args) {
		return "", errors.Newf(errors.RuntimeError, "%s: missing %s", fn, what)
	}
	s, ok := args[i].(string)
	if !ok {
		return "", errors.Newf(errors.RuntimeError, "%s: %s must be a string, got %s", fn, what, runtime.TypeOf(args[i]))
	}
	return s, nil
}

func sqlError(fn string, err error) error {
	return errors.Newf(errors.RuntimeError, "%s: %v", fn, err).WithCause(err)
}

// toRecord converts a row into an anonymous record with script-level values.
func toRecord(row database.Row) *runtime.Record {
	fields := make(map[string]runtime.Value, len(row.Columns))
	for _, col := range row.Columns {
		fields[col] = fromSQL(row.Values[col])
	}
	return runtime.NewRecord(nil, row.Columns, fields)
}

func fromSQL(v interface{}) runtime.Value {
	switch val := v.(type) {
	case nil, string, bool, float64:
		return val
	case time.Time:
		return val.Format(time.RFC3339Nano)
	default:
		if n, ok := runtime.ToNumber(val); ok {
			return n
		}
		return fmt.Sprint(val)
	}
}
