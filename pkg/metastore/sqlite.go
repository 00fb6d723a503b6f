package metastore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/leapstack-labs/leapgrid/pkg/adapters/sqlite"
	"github.com/leapstack-labs/leapgrid/pkg/core"
)

const columnFields = `id, model_id, title, column_name, uidt, dt, ord, pk, pv, system, meta, visible_roles, col_options`

// SQLStore implements Store on a SQLite database.
type SQLStore struct {
	client *sqlite.Client
	db     *sql.DB
	logger *slog.Logger
}

// OpenSQLStore opens (creating if needed) the metadata database at path and
// applies pending migrations. Use ":memory:" for a private in-memory store.
func OpenSQLStore(ctx context.Context, path string, logger *slog.Logger) (*SQLStore, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	client := sqlite.New(logger)
	if err := client.Connect(ctx, core.SourceConfig{Type: "sqlite", Path: path}); err != nil {
		return nil, fmt.Errorf("failed to open metadata store: %w", err)
	}

	s := &SQLStore{client: client, db: client.Conn(), logger: logger}
	if _, err := s.db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}
	if err := s.Migrate(ctx); err != nil {
		_ = client.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the database connection.
func (s *SQLStore) Close() error {
	return s.client.Close()
}

// GetSource implements core.MetaReader.
func (s *SQLStore) GetSource(ctx context.Context, id string) (*core.Source, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id, base_id, alias, config FROM sources WHERE id = ?`, id)
	src, err := scanSource(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("source %s: %w", id, core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get source: %w", err)
	}
	return src, nil
}

// GetModel implements core.MetaReader.
func (s *SQLStore) GetModel(ctx context.Context, id string) (*core.Model, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, base_id, source_id, table_name, title, type, deleted FROM models WHERE id = ?`, id)
	m, err := scanModel(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("model %s: %w", id, core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get model: %w", err)
	}
	return m, nil
}

// GetColumn implements core.MetaReader.
func (s *SQLStore) GetColumn(ctx context.Context, id string) (*core.Column, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+columnFields+` FROM model_columns WHERE id = ?`, id)
	col, err := scanColumn(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("column %s: %w", id, core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get column: %w", err)
	}
	return col, nil
}

// ListColumns implements core.MetaReader.
func (s *SQLStore) ListColumns(ctx context.Context, modelID string) ([]*core.Column, error) {
	if _, err := s.GetModel(ctx, modelID); err != nil {
		return nil, err
	}
	cols, err := s.queryColumns(ctx, s.db,
		`SELECT `+columnFields+` FROM model_columns WHERE model_id = ? ORDER BY ord, id`, modelID)
	if err != nil {
		return nil, err
	}
	if cols == nil {
		cols = []*core.Column{}
	}
	return cols, nil
}

// ListSources implements Store.
func (s *SQLStore) ListSources(ctx context.Context) ([]*core.Source, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, base_id, alias, config FROM sources ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list sources: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []*core.Source
	for rows.Next() {
		src, err := scanSource(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan source: %w", err)
		}
		out = append(out, src)
	}
	return out, rows.Err()
}

// ListModels implements Store.
func (s *SQLStore) ListModels(ctx context.Context) ([]*core.Model, error) {
	return s.queryModels(ctx, s.db,
		`SELECT id, base_id, source_id, table_name, title, type, deleted FROM models ORDER BY title, id`)
}

// InsertSource implements Store.
func (s *SQLStore) InsertSource(ctx context.Context, src *core.Source) error {
	cfg, err := json.Marshal(src.Config)
	if err != nil {
		return fmt.Errorf("failed to serialize source config: %w", err)
	}
	if src.ID == "" {
		src.ID = generateID()
	} else if err := s.checkFree(ctx, "sources", "source", src.ID); err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO sources (id, base_id, alias, config) VALUES (?, ?, ?, ?)`,
		src.ID, src.BaseID, src.Alias, string(cfg))
	if err != nil {
		return fmt.Errorf("failed to insert source: %w", err)
	}
	return nil
}

// InsertModel implements Store.
func (s *SQLStore) InsertModel(ctx context.Context, m *core.Model) error {
	if _, err := s.GetSource(ctx, m.SourceID); err != nil {
		return err
	}
	if m.ID == "" {
		m.ID = generateID()
	} else if err := s.checkFree(ctx, "models", "model", m.ID); err != nil {
		return err
	}
	if m.Type == "" {
		m.Type = core.ModelTypeTable
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO models (id, base_id, source_id, table_name, title, type, deleted) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		m.ID, m.BaseID, m.SourceID, m.TableName, m.Title, string(m.Type), m.Deleted)
	if err != nil {
		return fmt.Errorf("failed to insert model: %w", err)
	}
	return nil
}

// InsertColumn implements Store.
func (s *SQLStore) InsertColumn(ctx context.Context, col *core.Column) error {
	if _, err := s.GetModel(ctx, col.ModelID); err != nil {
		return err
	}
	if col.ID == "" {
		col.ID = generateID()
	} else if err := s.checkFree(ctx, "model_columns", "column", col.ID); err != nil {
		return err
	}
	meta, roles, opts, err := serializeColumn(col)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO model_columns (`+columnFields+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		col.ID, col.ModelID, col.Title, col.ColumnName, string(col.UIType), col.DataType, col.Order,
		col.PK, col.PV, col.System, meta, roles, opts)
	if err != nil {
		return fmt.Errorf("failed to insert column: %w", err)
	}
	return nil
}

// UpdateColumn replaces a column. The owning model cannot change.
func (s *SQLStore) UpdateColumn(ctx context.Context, col *core.Column) error {
	meta, roles, opts, err := serializeColumn(col)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE model_columns SET title = ?, column_name = ?, uidt = ?, dt = ?, ord = ?, pk = ?, pv = ?, system = ?,
			meta = ?, visible_roles = ?, col_options = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?`,
		col.Title, col.ColumnName, string(col.UIType), col.DataType, col.Order, col.PK, col.PV, col.System,
		meta, roles, opts, col.ID)
	if err != nil {
		return fmt.Errorf("failed to update column: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("column %s: %w", col.ID, core.ErrNotFound)
	}
	return nil
}

// DeleteColumn implements Store.
func (s *SQLStore) DeleteColumn(ctx context.Context, id string) (*Removed, error) {
	var removed *Removed
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		cols, err := s.queryColumns(ctx, tx, `SELECT `+columnFields+` FROM model_columns WHERE id = ?`, id)
		if err != nil {
			return err
		}
		if len(cols) == 0 {
			return fmt.Errorf("column %s: %w", id, core.ErrNotFound)
		}
		removed, err = s.removeColumns(ctx, tx, cols)
		return err
	})
	return removed, err
}

// DeleteModel implements Store.
func (s *SQLStore) DeleteModel(ctx context.Context, id string) (*Removed, error) {
	var removed *Removed
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		models, err := s.queryModels(ctx, tx,
			`SELECT id, base_id, source_id, table_name, title, type, deleted FROM models WHERE id = ?`, id)
		if err != nil {
			return err
		}
		if len(models) == 0 {
			return fmt.Errorf("model %s: %w", id, core.ErrNotFound)
		}
		cols, err := s.queryColumns(ctx, tx, `SELECT `+columnFields+` FROM model_columns WHERE model_id = ?`, id)
		if err != nil {
			return err
		}
		if removed, err = s.removeColumns(ctx, tx, cols); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM models WHERE id = ?`, id); err != nil {
			return fmt.Errorf("failed to delete model: %w", err)
		}
		removed.Models = models
		return nil
	})
	return removed, err
}

// DeleteSource implements Store.
func (s *SQLStore) DeleteSource(ctx context.Context, id string) (*Removed, error) {
	var removed *Removed
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		src, err := scanSource(tx.QueryRowContext(ctx, `SELECT id, base_id, alias, config FROM sources WHERE id = ?`, id))
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("source %s: %w", id, core.ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("failed to get source: %w", err)
		}
		models, err := s.queryModels(ctx, tx,
			`SELECT id, base_id, source_id, table_name, title, type, deleted FROM models WHERE source_id = ? ORDER BY title, id`, id)
		if err != nil {
			return err
		}
		cols, err := s.queryColumns(ctx, tx,
			`SELECT `+columnFields+` FROM model_columns WHERE model_id IN (SELECT id FROM models WHERE source_id = ?)`, id)
		if err != nil {
			return err
		}
		if removed, err = s.removeColumns(ctx, tx, cols); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM sources WHERE id = ?`, id); err != nil {
			return fmt.Errorf("failed to delete source: %w", err)
		}
		removed.Models = models
		removed.Sources = []*core.Source{src}
		return nil
	})
	return removed, err
}

// removeColumns deletes cols and the link columns depending on them.
func (s *SQLStore) removeColumns(ctx context.Context, tx *sql.Tx, cols []*core.Column) (*Removed, error) {
	links, err := s.queryColumns(ctx, tx,
		`SELECT `+columnFields+` FROM model_columns WHERE uidt IN (?, ?)`,
		string(core.UITypeLinkToAnother), string(core.UITypeLinks))
	if err != nil {
		return nil, err
	}
	all := append(cols, dependentLinks(links, columnIDs(cols))...)

	removed := &Removed{}
	seen := make(map[string]bool, len(all))
	for _, c := range all {
		if seen[c.ID] {
			continue
		}
		seen[c.ID] = true
		if _, err := tx.ExecContext(ctx, `DELETE FROM model_columns WHERE id = ?`, c.ID); err != nil {
			return nil, fmt.Errorf("failed to delete column %s: %w", c.ID, err)
		}
		removed.Columns = append(removed.Columns, c)
	}
	sortByID(removed.Columns)
	s.logger.Debug("deleted columns", slog.Int("count", len(removed.Columns)))
	return removed, nil
}

// checkFree returns ErrExists when table already holds id.
func (s *SQLStore) checkFree(ctx context.Context, table, kind, id string) error {
	var n int
	//nolint:gosec // table is one of the fixed schema tables
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM `+table+` WHERE id = ?`, id).Scan(&n); err != nil {
		return fmt.Errorf("failed to check %s id: %w", kind, err)
	}
	if n > 0 {
		return fmt.Errorf("%s %s: %w", kind, id, ErrExists)
	}
	return nil
}

func (s *SQLStore) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

type scanner interface {
	Scan(dest ...any) error
}

func (s *SQLStore) queryColumns(ctx context.Context, q querier, query string, args ...any) ([]*core.Column, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query columns: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var cols []*core.Column
	for rows.Next() {
		col, err := scanColumn(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan column: %w", err)
		}
		cols = append(cols, col)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating columns: %w", err)
	}
	return cols, nil
}

func (s *SQLStore) queryModels(ctx context.Context, q querier, query string, args ...any) ([]*core.Model, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query models: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var models []*core.Model
	for rows.Next() {
		m, err := scanModel(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan model: %w", err)
		}
		models = append(models, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating models: %w", err)
	}
	return models, nil
}

func scanSource(row scanner) (*core.Source, error) {
	src := &core.Source{}
	var cfg string
	if err := row.Scan(&src.ID, &src.BaseID, &src.Alias, &cfg); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(cfg), &src.Config); err != nil {
		return nil, fmt.Errorf("failed to deserialize source config: %w", err)
	}
	return src, nil
}

func scanModel(row scanner) (*core.Model, error) {
	m := &core.Model{}
	var typ string
	if err := row.Scan(&m.ID, &m.BaseID, &m.SourceID, &m.TableName, &m.Title, &typ, &m.Deleted); err != nil {
		return nil, err
	}
	m.Type = core.ModelType(typ)
	return m, nil
}

func scanColumn(row scanner) (*core.Column, error) {
	col := &core.Column{}
	var uidt, meta, roles, opts string
	err := row.Scan(&col.ID, &col.ModelID, &col.Title, &col.ColumnName, &uidt, &col.DataType, &col.Order,
		&col.PK, &col.PV, &col.System, &meta, &roles, &opts)
	if err != nil {
		return nil, err
	}
	col.UIType = core.UIType(uidt)
	if err := json.Unmarshal([]byte(meta), &col.Meta); err != nil {
		return nil, fmt.Errorf("failed to deserialize meta: %w", err)
	}
	if err := json.Unmarshal([]byte(roles), &col.VisibleRoles); err != nil {
		return nil, fmt.Errorf("failed to deserialize visible roles: %w", err)
	}
	if err := json.Unmarshal([]byte(opts), &col.Options); err != nil {
		return nil, fmt.Errorf("failed to deserialize column options: %w", err)
	}
	return col, nil
}

func serializeColumn(col *core.Column) (meta, roles, opts string, err error) {
	b, err := json.Marshal(col.Meta)
	if err != nil {
		return "", "", "", fmt.Errorf("failed to serialize meta: %w", err)
	}
	meta = string(b)
	if b, err = json.Marshal(col.VisibleRoles); err != nil {
		return "", "", "", fmt.Errorf("failed to serialize visible roles: %w", err)
	}
	roles = string(b)
	if b, err = json.Marshal(col.Options); err != nil {
		return "", "", "", fmt.Errorf("failed to serialize column options: %w", err)
	}
	opts = string(b)
	return meta, roles, opts, nil
}

var _ Store = (*SQLStore)(nil)
