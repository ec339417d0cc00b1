package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/custodia-labs/finrag/internal/adapters/driven/storage/vecstore"
	"github.com/custodia-labs/finrag/internal/core/domain"
	"github.com/custodia-labs/finrag/internal/core/ports/driven"
)

var _ driven.VectorStore = (*VectorStore)(nil)

// VectorStore implements driven.VectorStore for one collection.
type VectorStore struct {
	db    *sql.DB
	name  string
	owner *Store // closed by Close when the store was opened for this collection alone
}

// NewVectorStore opens the database in dataDir and binds a store to the
// named collection. Close releases the database.
func NewVectorStore(dataDir, collection string) (*VectorStore, error) {
	if collection == "" {
		collection = domain.DefaultCollection
	}
	store, err := NewStore(dataDir)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrStoreUnavailable, err)
	}
	vs := store.Collection(collection)
	vs.owner = store
	return vs, nil
}

// Add stores chunks with their embeddings. Existing ids are replaced.
func (s *VectorStore) Add(
	ctx context.Context,
	chunks []domain.Chunk,
	embeddings [][]float32,
	ids []string,
) ([]string, error) {
	dim, err := vecstore.ValidateAdd(chunks, embeddings, ids)
	if err != nil {
		return nil, err
	}
	ids = vecstore.ResolveIDs(len(chunks), ids)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: beginning transaction: %w", domain.ErrStore, err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	if _, err := tx.ExecContext(ctx,
		`INSERT OR IGNORE INTO collections (name) VALUES (?)`, s.name); err != nil {
		return nil, fmt.Errorf("%w: creating collection: %w", domain.ErrStore, err)
	}

	var established int
	if err := tx.QueryRowContext(ctx,
		`SELECT dimension FROM collections WHERE name = ?`, s.name).Scan(&established); err != nil {
		return nil, fmt.Errorf("%w: reading dimension: %w", domain.ErrStore, err)
	}
	if err := vecstore.CheckDimension(established, dim); err != nil {
		return nil, err
	}
	if established == 0 {
		if _, err := tx.ExecContext(ctx,
			`UPDATE collections SET dimension = ? WHERE name = ?`, dim, s.name); err != nil {
			return nil, fmt.Errorf("%w: setting dimension: %w", domain.ErrStore, err)
		}
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO records (collection, id, content, metadata, embedding)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(collection, id) DO UPDATE SET
			content = excluded.content,
			metadata = excluded.metadata,
			embedding = excluded.embedding,
			updated_at = CURRENT_TIMESTAMP
	`)
	if err != nil {
		return nil, fmt.Errorf("%w: preparing insert: %w", domain.ErrStore, err)
	}
	defer stmt.Close()

	for i, chunk := range chunks {
		md, err := marshalMetadata(chunk.Metadata)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", domain.ErrStore, err)
		}
		if _, err := stmt.ExecContext(ctx, s.name, ids[i], chunk.Content, md,
			float32SliceToBytes(embeddings[i])); err != nil {
			return nil, fmt.Errorf("%w: saving record %s: %w", domain.ErrStore, ids[i], err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("%w: committing: %w", domain.ErrStore, err)
	}
	return append([]string(nil), ids...), nil
}

// QueryByEmbedding filters in SQL and ranks the remaining rows by cosine distance.
func (s *VectorStore) QueryByEmbedding(
	ctx context.Context,
	vector []float32,
	n int,
	where domain.Where,
	whereDoc *domain.DocumentWhere,
) ([]domain.Hit, error) {
	if err := vecstore.ValidateQuery(vector, n); err != nil {
		return nil, err
	}

	dim, err := s.dimension(ctx)
	if err != nil {
		return nil, err
	}
	if dim == 0 {
		return []domain.Hit{}, nil
	}
	if err := vecstore.CheckDimension(dim, len(vector)); err != nil {
		return nil, err
	}

	query := `SELECT id, content, metadata, embedding FROM records WHERE collection = ?`
	args := []any{s.name}
	if where != nil {
		clause, whereArgs, err := whereSQL(where)
		if err != nil {
			return nil, err
		}
		query += " AND " + clause
		args = append(args, whereArgs...)
	}
	if whereDoc != nil {
		query += " AND instr(content, ?) > 0"
		args = append(args, whereDoc.Contains)
	}
	query += " ORDER BY rowid"

	records, err := s.queryRecords(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return vecstore.Nearest(records, vector, n), nil
}

// GetByIDs returns the records for ids that exist, in ids order.
func (s *VectorStore) GetByIDs(ctx context.Context, ids []string) ([]domain.Record, error) {
	if len(ids) == 0 {
		return nil, fmt.Errorf("%w: no ids given", domain.ErrStore)
	}

	query := `SELECT id, content, metadata, embedding FROM records
		WHERE collection = ? AND id IN (` + placeholders(len(ids)) + `)`
	records, err := s.queryRecords(ctx, query, idArgs(s.name, ids)...)
	if err != nil {
		return nil, err
	}

	byID := make(map[string]domain.Record, len(records))
	for _, rec := range records {
		byID[rec.ID] = rec
	}
	out := make([]domain.Record, 0, len(records))
	for _, id := range ids {
		if rec, ok := byID[id]; ok {
			out = append(out, rec)
			delete(byID, id)
		}
	}
	return out, nil
}

// GetAll returns every record in insertion order.
func (s *VectorStore) GetAll(ctx context.Context) ([]domain.Record, error) {
	return s.queryRecords(ctx,
		`SELECT id, content, metadata, embedding FROM records WHERE collection = ? ORDER BY rowid`, s.name)
}

// Count returns the number of records.
func (s *VectorStore) Count(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM records WHERE collection = ?`, s.name).Scan(&count); err != nil {
		return 0, fmt.Errorf("%w: counting records: %w", domain.ErrStore, err)
	}
	return count, nil
}

// Delete removes records by ids or by metadata predicate.
func (s *VectorStore) Delete(ctx context.Context, ids []string, where domain.Where) (int, error) {
	if err := vecstore.ValidateDelete(ids, where); err != nil {
		return 0, err
	}

	var (
		query string
		args  []any
	)
	if len(ids) > 0 {
		query = `DELETE FROM records WHERE collection = ? AND id IN (` + placeholders(len(ids)) + `)`
		args = idArgs(s.name, ids)
	} else {
		clause, whereArgs, err := whereSQL(where)
		if err != nil {
			return 0, err
		}
		query = `DELETE FROM records WHERE collection = ? AND ` + clause
		args = append([]any{s.name}, whereArgs...)
	}

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("%w: deleting records: %w", domain.ErrStore, err)
	}
	removed, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%w: %w", domain.ErrStore, err)
	}
	return int(removed), nil
}

// DeleteCollection removes the collection row and, by cascade, its records.
func (s *VectorStore) DeleteCollection(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM records WHERE collection = ?`, s.name); err != nil {
		return fmt.Errorf("%w: deleting records: %w", domain.ErrStore, err)
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM collections WHERE name = ?`, s.name); err != nil {
		return fmt.Errorf("%w: deleting collection: %w", domain.ErrStore, err)
	}
	return nil
}

// Reset deletes and recreates the collection.
func (s *VectorStore) Reset(ctx context.Context) error {
	if err := s.DeleteCollection(ctx); err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, `INSERT INTO collections (name) VALUES (?)`, s.name); err != nil {
		return fmt.Errorf("%w: recreating collection: %w", domain.ErrStore, err)
	}
	return nil
}

// Name returns the collection name.
func (s *VectorStore) Name() string {
	return s.name
}

// Close releases the database when this store opened it.
func (s *VectorStore) Close() error {
	if s.owner != nil {
		return s.owner.Close()
	}
	return nil
}

// dimension returns the established vector length, or 0 for a collection
// that does not exist or holds no vectors yet.
func (s *VectorStore) dimension(ctx context.Context) (int, error) {
	var dim int
	err := s.db.QueryRowContext(ctx,
		`SELECT dimension FROM collections WHERE name = ?`, s.name).Scan(&dim)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("%w: reading dimension: %w", domain.ErrStore, err)
	}
	return dim, nil
}

func (s *VectorStore) queryRecords(ctx context.Context, query string, args ...any) ([]domain.Record, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: querying records: %w", domain.ErrStore, err)
	}
	defer rows.Close()

	records := []domain.Record{}
	for rows.Next() {
		var (
			rec      domain.Record
			mdJSON   string
			embedded []byte
		)
		if err := rows.Scan(&rec.ID, &rec.Content, &mdJSON, &embedded); err != nil {
			return nil, fmt.Errorf("%w: scanning record: %w", domain.ErrStore, err)
		}
		if err := json.Unmarshal([]byte(mdJSON), &rec.Metadata); err != nil {
			return nil, fmt.Errorf("%w: unmarshalling metadata for %s: %w", domain.ErrStore, rec.ID, err)
		}
		rec.Embedding = bytesToFloat32Slice(embedded)
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterating records: %w", domain.ErrStore, err)
	}
	return records, nil
}

// whereSQL renders a metadata predicate as a SQL boolean expression over
// the metadata JSON column.
func whereSQL(w domain.Where) (string, []any, error) {
	switch v := w.(type) {
	case domain.Cond:
		op, ok := sqlOperators[v.Op]
		if !ok {
			return "", nil, fmt.Errorf("%w: unsupported operator %q", domain.ErrStore, v.Op)
		}
		if strings.ContainsAny(v.Field, `"\`) {
			return "", nil, fmt.Errorf("%w: invalid metadata field %q", domain.ErrStore, v.Field)
		}
		return "json_extract(metadata, ?) " + op + " ?", []any{`$."` + v.Field + `"`, sqlValue(v.Value)}, nil

	case domain.And:
		var (
			parts []string
			args  []any
		)
		for _, operand := range v.Operands {
			if operand == nil {
				continue
			}
			clause, opArgs, err := whereSQL(operand)
			if err != nil {
				return "", nil, err
			}
			parts = append(parts, "("+clause+")")
			args = append(args, opArgs...)
		}
		if len(parts) == 0 {
			return "1 = 1", nil, nil
		}
		return strings.Join(parts, " AND "), args, nil

	default:
		return "", nil, fmt.Errorf("%w: unsupported predicate %T", domain.ErrStore, w)
	}
}

var sqlOperators = map[domain.Operator]string{
	domain.OpEq:  "=",
	domain.OpGte: ">=",
	domain.OpLte: "<=",
}

// sqlValue maps booleans to the integers json_extract yields for JSON true/false.
func sqlValue(v any) any {
	if b, ok := v.(bool); ok {
		if b {
			return 1
		}
		return 0
	}
	return v
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func idArgs(collection string, ids []string) []any {
	args := make([]any, 0, len(ids)+1)
	args = append(args, collection)
	for _, id := range ids {
		args = append(args, id)
	}
	return args
}
