package providers

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/lib/pq"

	settingsgateway "github.com/Favna/settings-gateway"
)

const postgresOperationTimeout = 5 * time.Second

// operationContext bounds a storage operation when the caller's context
// carries no deadline of its own.
func operationContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, postgresOperationTimeout)
}

// PostgresProvider persists every gateway in its own table of
// (id TEXT PRIMARY KEY, data JSONB) rows. The connection is opened lazily on
// first use so constructing a provider never touches the network.
type PostgresProvider struct {
	settingsgateway.BaseProvider

	dsn string

	initOnce sync.Once
	initErr  error
	db       *sql.DB

	// test seam
	openDB func(driver, dsn string) (*sql.DB, error)
}

func NewPostgresProvider(dsn string) (*PostgresProvider, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return nil, settingsgateway.ErrInvalidInput
	}
	return &PostgresProvider{
		dsn:    dsn,
		openDB: sql.Open,
	}, nil
}

func (p *PostgresProvider) ensureReady() error {
	p.initOnce.Do(func() {
		db, err := p.openDB("postgres", p.dsn)
		if err != nil {
			p.initErr = fmt.Errorf("open postgres: %w", err)
			return
		}
		p.db = db
	})
	return p.initErr
}

// quoteIdentifier quotes a table name for interpolation into DDL and DML,
// doubling embedded quotes.
func quoteIdentifier(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func (p *PostgresProvider) CreateTable(ctx context.Context, table string) error {
	if err := p.ensureReady(); err != nil {
		return err
	}
	ctx, cancel := operationContext(ctx)
	defer cancel()
	query := fmt.Sprintf(
		`CREATE TABLE IF NOT EXISTS %s (id TEXT PRIMARY KEY, data JSONB NOT NULL DEFAULT '{}'::jsonb)`,
		quoteIdentifier(table),
	)
	_, err := p.db.ExecContext(ctx, query)
	return err
}

func (p *PostgresProvider) DeleteTable(ctx context.Context, table string) error {
	if err := p.ensureReady(); err != nil {
		return err
	}
	ctx, cancel := operationContext(ctx)
	defer cancel()
	_, err := p.db.ExecContext(ctx, fmt.Sprintf(`DROP TABLE IF EXISTS %s`, quoteIdentifier(table)))
	return err
}

func (p *PostgresProvider) HasTable(ctx context.Context, table string) (bool, error) {
	if err := p.ensureReady(); err != nil {
		return false, err
	}
	ctx, cancel := operationContext(ctx)
	defer cancel()
	var exists bool
	err := p.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM information_schema.tables WHERE table_schema = current_schema() AND table_name = $1)`,
		table,
	).Scan(&exists)
	return exists, err
}

func (p *PostgresProvider) Create(ctx context.Context, table, id string, data map[string]any) error {
	if err := p.ensureReady(); err != nil {
		return err
	}
	ctx, cancel := operationContext(ctx)
	defer cancel()
	raw, err := json.Marshal(data)
	if err != nil {
		return err
	}
	query := fmt.Sprintf(`INSERT INTO %s (id, data) VALUES ($1, $2)`, quoteIdentifier(table))
	if _, err := p.db.ExecContext(ctx, query, id, raw); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
			return fmt.Errorf("%w: row %q in table %q", settingsgateway.ErrAlreadyExists, id, table)
		}
		return err
	}
	return nil
}

func (p *PostgresProvider) Delete(ctx context.Context, table, id string) error {
	if err := p.ensureReady(); err != nil {
		return err
	}
	ctx, cancel := operationContext(ctx)
	defer cancel()
	query := fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, quoteIdentifier(table))
	result, err := p.db.ExecContext(ctx, query, id)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("%w: row %q in table %q", settingsgateway.ErrNotFound, id, table)
	}
	return nil
}

func (p *PostgresProvider) Get(ctx context.Context, table, id string) (settingsgateway.Row, bool, error) {
	if err := p.ensureReady(); err != nil {
		return settingsgateway.Row{}, false, err
	}
	ctx, cancel := operationContext(ctx)
	defer cancel()
	query := fmt.Sprintf(`SELECT data FROM %s WHERE id = $1`, quoteIdentifier(table))
	var raw []byte
	err := p.db.QueryRowContext(ctx, query, id).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return settingsgateway.Row{}, false, nil
	}
	if err != nil {
		return settingsgateway.Row{}, false, err
	}
	data := map[string]any{}
	if err := json.Unmarshal(raw, &data); err != nil {
		return settingsgateway.Row{}, false, err
	}
	return settingsgateway.Row{ID: id, Data: data}, true, nil
}

func (p *PostgresProvider) GetAll(ctx context.Context, table string, ids []string) ([]settingsgateway.Row, error) {
	if err := p.ensureReady(); err != nil {
		return nil, err
	}
	ctx, cancel := operationContext(ctx)
	defer cancel()
	var (
		rows *sql.Rows
		err  error
	)
	if ids == nil {
		query := fmt.Sprintf(`SELECT id, data FROM %s ORDER BY id`, quoteIdentifier(table))
		rows, err = p.db.QueryContext(ctx, query)
	} else {
		query := fmt.Sprintf(`SELECT id, data FROM %s WHERE id = ANY($1) ORDER BY id`, quoteIdentifier(table))
		rows, err = p.db.QueryContext(ctx, query, pq.Array(ids))
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []settingsgateway.Row
	for rows.Next() {
		var (
			id  string
			raw []byte
		)
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, err
		}
		data := map[string]any{}
		if err := json.Unmarshal(raw, &data); err != nil {
			return nil, err
		}
		result = append(result, settingsgateway.Row{ID: id, Data: data})
	}
	return result, rows.Err()
}

func (p *PostgresProvider) GetKeys(ctx context.Context, table string) ([]string, error) {
	if err := p.ensureReady(); err != nil {
		return nil, err
	}
	ctx, cancel := operationContext(ctx)
	defer cancel()
	query := fmt.Sprintf(`SELECT id FROM %s ORDER BY id`, quoteIdentifier(table))
	rows, err := p.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		keys = append(keys, id)
	}
	return keys, rows.Err()
}

func (p *PostgresProvider) Has(ctx context.Context, table, id string) (bool, error) {
	if err := p.ensureReady(); err != nil {
		return false, err
	}
	ctx, cancel := operationContext(ctx)
	defer cancel()
	query := fmt.Sprintf(`SELECT EXISTS (SELECT 1 FROM %s WHERE id = $1)`, quoteIdentifier(table))
	var exists bool
	err := p.db.QueryRowContext(ctx, query, id).Scan(&exists)
	return exists, err
}

// Update merges the patch into the stored row inside a transaction, locking
// the row so concurrent merges serialize.
func (p *PostgresProvider) Update(ctx context.Context, table, id string, data map[string]any) error {
	if err := p.ensureReady(); err != nil {
		return err
	}
	ctx, cancel := operationContext(ctx)
	defer cancel()
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	selectQuery := fmt.Sprintf(`SELECT data FROM %s WHERE id = $1 FOR UPDATE`, quoteIdentifier(table))
	var raw []byte
	err = tx.QueryRowContext(ctx, selectQuery, id).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: row %q in table %q", settingsgateway.ErrNotFound, id, table)
	}
	if err != nil {
		return err
	}
	existing := map[string]any{}
	if err := json.Unmarshal(raw, &existing); err != nil {
		return err
	}
	mergeData(existing, data)
	merged, err := json.Marshal(existing)
	if err != nil {
		return err
	}
	updateQuery := fmt.Sprintf(`UPDATE %s SET data = $2 WHERE id = $1`, quoteIdentifier(table))
	if _, err := tx.ExecContext(ctx, updateQuery, id, merged); err != nil {
		return err
	}
	return tx.Commit()
}

func (p *PostgresProvider) Replace(ctx context.Context, table, id string, data map[string]any) error {
	if err := p.ensureReady(); err != nil {
		return err
	}
	ctx, cancel := operationContext(ctx)
	defer cancel()
	raw, err := json.Marshal(data)
	if err != nil {
		return err
	}
	query := fmt.Sprintf(`UPDATE %s SET data = $2 WHERE id = $1`, quoteIdentifier(table))
	result, err := p.db.ExecContext(ctx, query, id, raw)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("%w: row %q in table %q", settingsgateway.ErrNotFound, id, table)
	}
	return nil
}

func (p *PostgresProvider) Shutdown(ctx context.Context) error {
	if p == nil || p.db == nil {
		return nil
	}
	return p.db.Close()
}
