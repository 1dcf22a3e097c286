package store

import (
	"context"
	"database/sql"
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	_ "modernc.org/sqlite"

	"docrag/internal/domain"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS collections (
    name      TEXT PRIMARY KEY,
    version   INTEGER NOT NULL,
    model     TEXT NOT NULL DEFAULT '',
    dimension INTEGER NOT NULL DEFAULT 0
);
CREATE TABLE IF NOT EXISTS records (
    collection TEXT NOT NULL,
    id         TEXT NOT NULL,
    content    TEXT NOT NULL,
    embedding  BLOB NOT NULL,
    PRIMARY KEY (collection, id)
);
`

// SQLiteVectorStore keeps records in a SQLite database. Vectors are stored as
// little-endian float32 BLOBs and searched by brute force.
type SQLiteVectorStore struct {
	db         *sql.DB
	collection string
}

// NewSQLiteVectorStore opens the database file at path. ":memory:" is accepted.
func NewSQLiteVectorStore(ctx context.Context, path string, opts Options) (*SQLiteVectorStore, error) {
	dsn := path
	if path != ":memory:" {
		dsn = "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, sqliteErr("open", err)
	}
	// A single connection keeps ":memory:" databases shared and serializes writers.
	db.SetMaxOpenConns(1)

	s, err := newSQLiteVectorStore(ctx, db, opts)
	if err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func newSQLiteVectorStore(ctx context.Context, db *sql.DB, opts Options) (*SQLiteVectorStore, error) {
	if opts.Collection == "" {
		opts.Collection = "documents"
	}
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		return nil, sqliteErr("init schema", err)
	}

	s := &SQLiteVectorStore{db: db, collection: opts.Collection}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, sqliteErr("open", err)
	}
	defer func() { _ = tx.Rollback() }()

	var stored SchemaInfo
	err = tx.QueryRowContext(ctx,
		`SELECT version, model, dimension FROM collections WHERE name = ?`, s.collection,
	).Scan(&stored.Version, &stored.Model, &stored.Dimension)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, sqliteErr("open", err)
	}

	merged, err := reconcile(stored, opts)
	if err != nil {
		return nil, sqliteErr("open", err)
	}
	if err := upsertCollection(ctx, tx, s.collection, merged); err != nil {
		return nil, sqliteErr("open", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, sqliteErr("open", err)
	}

	return s, nil
}

func upsertCollection(ctx context.Context, tx *sql.Tx, name string, info SchemaInfo) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO collections(name, version, model, dimension) VALUES(?, ?, ?, ?)
		 ON CONFLICT(name) DO UPDATE SET version = excluded.version, model = excluded.model, dimension = excluded.dimension`,
		name, info.Version, info.Model, info.Dimension,
	)
	return err
}

// Put upserts one row inside a transaction that also re-checks the collection
// dimension, so concurrent processes cannot mix vector sizes.
func (s *SQLiteVectorStore) Put(ctx context.Context, id, text string, embedding []float32) error {
	if id == "" {
		return sqliteErr("put", domain.ErrEmptyID)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return sqliteErr("put", err)
	}
	defer func() { _ = tx.Rollback() }()

	var info SchemaInfo
	if err := tx.QueryRowContext(ctx,
		`SELECT version, model, dimension FROM collections WHERE name = ?`, s.collection,
	).Scan(&info.Version, &info.Model, &info.Dimension); err != nil {
		return sqliteErr("put", err)
	}
	if err := checkDimension(info.Dimension, len(embedding)); err != nil {
		return sqliteErr("put", err)
	}
	if info.Dimension == 0 {
		info.Dimension = len(embedding)
		if err := upsertCollection(ctx, tx, s.collection, info); err != nil {
			return sqliteErr("put", err)
		}
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO records(collection, id, content, embedding) VALUES(?, ?, ?, ?)
		 ON CONFLICT(collection, id) DO UPDATE SET content = excluded.content, embedding = excluded.embedding`,
		s.collection, id, text, EncodeEmbedding(embedding),
	); err != nil {
		return sqliteErr("put", err)
	}

	if err := tx.Commit(); err != nil {
		return sqliteErr("put", err)
	}
	return nil
}

func (s *SQLiteVectorStore) Query(ctx context.Context, embedding []float32, k int) (domain.QueryResult, error) {
	if k <= 0 {
		return domain.QueryResult{}, nil
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, content, embedding FROM records WHERE collection = ?`, s.collection)
	if err != nil {
		return nil, sqliteErr("query", err)
	}
	defer rows.Close()

	var candidates []Candidate
	for rows.Next() {
		var (
			c    Candidate
			blob []byte
		)
		if err := rows.Scan(&c.ID, &c.Text, &blob); err != nil {
			return nil, sqliteErr("query", err)
		}
		if c.Vector, err = DecodeEmbedding(blob); err != nil {
			return nil, sqliteErr("query", fmt.Errorf("record %q: %w", c.ID, err))
		}
		candidates = append(candidates, c)
	}
	if err := rows.Err(); err != nil {
		return nil, sqliteErr("query", err)
	}

	if len(candidates) == 0 {
		return domain.QueryResult{}, nil
	}
	if err := checkDimension(len(candidates[0].Vector), len(embedding)); err != nil {
		return nil, sqliteErr("query", err)
	}
	return RankNearest(embedding, candidates, k), nil
}

func (s *SQLiteVectorStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM records WHERE collection = ?`, s.collection,
	).Scan(&n); err != nil {
		return 0, sqliteErr("count", err)
	}
	return n, nil
}

func (s *SQLiteVectorStore) Exists(ctx context.Context, id string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM records WHERE collection = ? AND id = ?`, s.collection, id,
	).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, sqliteErr("exists", err)
	}
	return true, nil
}

// Get returns a stored record.
func (s *SQLiteVectorStore) Get(ctx context.Context, id string) (domain.Record, bool, error) {
	var (
		rec  = domain.Record{ID: id}
		blob []byte
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT content, embedding FROM records WHERE collection = ? AND id = ?`, s.collection, id,
	).Scan(&rec.Text, &blob)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Record{}, false, nil
	}
	if err != nil {
		return domain.Record{}, false, sqliteErr("get", err)
	}
	if rec.Embedding, err = DecodeEmbedding(blob); err != nil {
		return domain.Record{}, false, sqliteErr("get", fmt.Errorf("record %q: %w", id, err))
	}
	return rec, true, nil
}

func (s *SQLiteVectorStore) Info(ctx context.Context) (domain.CollectionInfo, error) {
	n, err := s.Count(ctx)
	if err != nil {
		return domain.CollectionInfo{}, err
	}
	var info SchemaInfo
	if err := s.db.QueryRowContext(ctx,
		`SELECT version, model, dimension FROM collections WHERE name = ?`, s.collection,
	).Scan(&info.Version, &info.Model, &info.Dimension); err != nil {
		return domain.CollectionInfo{}, sqliteErr("info", err)
	}
	return domain.CollectionInfo{
		Backend:   "sqlite",
		Name:      s.collection,
		Count:     n,
		Model:     info.Model,
		Dimension: info.Dimension,
	}, nil
}

func (s *SQLiteVectorStore) Close() error {
	return s.db.Close()
}

func sqliteErr(op string, err error) error {
	return &domain.StorageError{Backend: "sqlite", Op: op, Err: err}
}

// EncodeEmbedding encodes a vector as a sequence of little-endian IEEE 754
// float32 values. The length is derived from the BLOB size on decode.
func EncodeEmbedding(vec []float32) []byte {
	b := make([]byte, len(vec)*4)
	for i, v := range vec {
		binary.LittleEndian.PutUint32(b[i*4:], math.Float32bits(v))
	}
	return b
}

// DecodeEmbedding decodes a BLOB produced by EncodeEmbedding.
func DecodeEmbedding(b []byte) ([]float32, error) {
	if len(b)%4 != 0 {
		return nil, fmt.Errorf("invalid embedding blob length %d (not multiple of 4)", len(b))
	}
	vec := make([]float32, len(b)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return vec, nil
}
