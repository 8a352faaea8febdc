// Package sqlstore implements the Sql operation discriminant of spec §6:
// a node's config carries a literal SQL statement, each input packet binds
// one set of positional parameters against it. `query` streams one output
// packet per result row; `exec` streams a single rows-affected packet.
// Follows store/postgres/postgres.go's DBPool interface (Exec and Query,
// satisfied by both *pgxpool.Pool and pgxmock's mock pool) so
// this package's tests need no live database.
package sqlstore

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/wickrt/wick/graph"
	"github.com/wickrt/wick/operation"
	"github.com/wickrt/wick/packet"
	"github.com/wickrt/wick/wicklog"
)

// DBPool is the connection-pool surface sqlstore depends on, mirroring the
// teacher's store/postgres.DBPool so the same interface can be backed by a
// real *pgxpool.Pool in production or a *pgxmock.Pool in tests.
type DBPool interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// Handler implements registry.ComponentHandler for the "sqlstore"
// namespace.
type Handler struct {
	pool DBPool
	log  wicklog.Logger
}

// NewHandler builds the sqlstore namespace's component handler over an
// already-connected pool.
func NewHandler(pool DBPool, log wicklog.Logger) *Handler {
	return &Handler{pool: pool, log: log}
}

var sqlConfigSchema = map[string]any{
	"type":     "object",
	"required": []any{"sql"},
	"properties": map[string]any{
		"sql": map[string]any{"type": "string"},
	},
}

var signatures = map[string]graph.Signature{
	"query": {
		Inputs:       []graph.Port{{Name: "input", Type: "any"}},
		Outputs:      []graph.Port{{Name: "output", Type: "any"}},
		ConfigSchema: sqlConfigSchema,
	},
	"exec": {
		Inputs:       []graph.Port{{Name: "input", Type: "any"}},
		Outputs:      []graph.Port{{Name: "output", Type: "any"}},
		ConfigSchema: sqlConfigSchema,
	},
}

// Signature implements registry.ComponentHandler.
func (h *Handler) Signature(opName string) (graph.Signature, bool) {
	sig, ok := signatures[opName]
	return sig, ok
}

// Contract implements registry.ComponentHandler.
func (h *Handler) Contract(opName string) (operation.Contract, bool) {
	switch opName {
	case "query":
		return operation.Func(h.query), true
	case "exec":
		return operation.Func(h.exec), true
	default:
		return nil, false
	}
}

// bindParams decodes an input packet's payload into the positional
// argument list bound against the node's configured statement. Packets
// with no payload (or a JSON null) bind no parameters.
func bindParams(p packet.Packet) ([]any, error) {
	if !p.HasData() {
		return nil, nil
	}
	var args []any
	if err := json.Unmarshal(p.Payload().Bytes(), &args); err != nil {
		return nil, fmt.Errorf("sqlstore: decode bind params: %w", err)
	}
	return args, nil
}

func (h *Handler) query(ctx context.Context, inv operation.Invocation, config map[string]any, callback operation.Callback) (<-chan packet.Packet, error) {
	stmt, _ := config["sql"].(string)
	out := make(chan packet.Packet, 8)
	go func() {
		defer close(out)
		for p := range inv.Input {
			if p.IsDone() {
				select {
				case out <- packet.Done("output"):
				case <-ctx.Done():
					return
				}
				continue
			}
			if p.IsNoop() {
				continue
			}
			args, err := bindParams(p)
			if err != nil {
				select {
				case out <- packet.ErrPacket("output", err.Error()):
				case <-ctx.Done():
					return
				}
				continue
			}
			if err := h.streamRows(ctx, out, stmt, args); err != nil {
				select {
				case out <- packet.FatalErr("output", "sqlstore: query: "+err.Error()):
				case <-ctx.Done():
				}
				return
			}
		}
	}()
	return out, nil
}

// streamRows executes stmt and emits one data packet per row, each row
// encoded as a JSON object keyed by column name.
func (h *Handler) streamRows(ctx context.Context, out chan<- packet.Packet, stmt string, args []any) error {
	rows, err := h.pool.Query(ctx, stmt, args...)
	if err != nil {
		return err
	}
	defer rows.Close()

	fields := rows.FieldDescriptions()
	names := make([]string, len(fields))
	for i, f := range fields {
		names[i] = f.Name
	}

	for rows.Next() {
		vals, err := rows.Values()
		if err != nil {
			return err
		}
		row := make(map[string]any, len(names))
		for i, name := range names {
			if i < len(vals) {
				row[name] = vals[i]
			}
		}
		b, err := json.Marshal(row)
		if err != nil {
			return err
		}
		select {
		case out <- packet.Data("output", b):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return rows.Err()
}

func (h *Handler) exec(ctx context.Context, inv operation.Invocation, config map[string]any, callback operation.Callback) (<-chan packet.Packet, error) {
	stmt, _ := config["sql"].(string)
	out := make(chan packet.Packet, 4)
	go func() {
		defer close(out)
		for p := range inv.Input {
			if p.IsDone() {
				select {
				case out <- packet.Done("output"):
				case <-ctx.Done():
					return
				}
				continue
			}
			if p.IsNoop() {
				continue
			}
			args, err := bindParams(p)
			if err != nil {
				select {
				case out <- packet.ErrPacket("output", err.Error()):
				case <-ctx.Done():
					return
				}
				continue
			}
			tag, err := h.pool.Exec(ctx, stmt, args...)
			if err != nil {
				select {
				case out <- packet.FatalErr("output", "sqlstore: exec: "+err.Error()):
				case <-ctx.Done():
				}
				return
			}
			b, _ := json.Marshal(map[string]any{"rows_affected": tag.RowsAffected()})
			select {
			case out <- packet.Data("output", b):
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}
