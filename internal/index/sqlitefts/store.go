package sqlitefts

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"

	_ "modernc.org/sqlite"

	"sift/internal/index/lexical"
	"sift/internal/model"
)

// Store is the single-shard FTS5 lexical backend, the lighter alternative
// to the sharded bleve store. Mutations stage in memory; Commit applies
// them in one transaction so searches never observe partial writes.
type Store struct {
	db     *sql.DB
	hasFTS bool

	mu         sync.Mutex
	pendingAdd []model.Chunk
	pendingDel []string

	generation atomic.Uint64
}

func Open(dbPath string) (*Store, error) {
	if strings.TrimSpace(dbPath) == "" {
		return nil, fmt.Errorf("dbPath is required")
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}

	s := &Store{db: db}
	if err := s.init(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) HasFTS() bool { return s != nil && s.hasFTS }

func (s *Store) Add(chunks []model.Chunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range chunks {
		if strings.TrimSpace(c.ID) == "" {
			return fmt.Errorf("chunk id is required")
		}
		s.pendingAdd = append(s.pendingAdd, c)
	}
	return nil
}

func (s *Store) Remove(chunkIDs []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range chunkIDs {
		if id = strings.TrimSpace(id); id != "" {
			s.pendingDel = append(s.pendingDel, id)
		}
	}
	return nil
}

func (s *Store) Commit() error {
	s.mu.Lock()
	adds := s.pendingAdd
	dels := s.pendingDel
	s.pendingAdd = nil
	s.pendingDel = nil
	s.mu.Unlock()

	if len(adds) == 0 && len(dels) == 0 {
		return nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	for _, id := range dels {
		if _, err := tx.Exec(`DELETE FROM chunks WHERE chunk_id = ?`, id); err != nil {
			return err
		}
	}
	for _, c := range adds {
		_, err := tx.Exec(
			`INSERT INTO chunks (chunk_id, path, lang, sl, el, text)
			 VALUES (?, ?, ?, ?, ?, ?)
			 ON CONFLICT(chunk_id) DO UPDATE SET
			   path=excluded.path, lang=excluded.lang,
			   sl=excluded.sl, el=excluded.el, text=excluded.text`,
			c.ID, filepath.ToSlash(c.Path), c.Language, c.StartLine, c.EndLine, c.Text,
		)
		if err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	s.generation.Add(1)
	return nil
}

func (s *Store) Generation() uint64 {
	return s.generation.Load()
}

func (s *Store) Search(ctx context.Context, q lexical.Query) ([]lexical.Hit, error) {
	if len(q.Terms) == 0 {
		return nil, fmt.Errorf("at least one term is required")
	}
	limit := q.Limit
	if limit <= 0 {
		limit = 50
	}

	if s.hasFTS {
		return s.searchFTS(ctx, q, limit)
	}
	return s.searchLike(ctx, q, limit)
}

func (s *Store) searchFTS(ctx context.Context, q lexical.Query, limit int) ([]lexical.Hit, error) {
	match := ftsQuery(q.Terms)

	sqlText := `SELECT c.chunk_id, c.path, c.sl, c.el,
	                   -bm25(chunks_fts) AS score,
	                   snippet(chunks_fts, 0, '<<', '>>', '…', 12)
	            FROM chunks_fts
	            JOIN chunks c ON c.id = chunks_fts.rowid
	            WHERE chunks_fts MATCH ?`
	args := []any{match}
	if lang := strings.TrimSpace(q.Language); lang != "" {
		sqlText += ` AND c.lang = ?`
		args = append(args, lang)
	}
	if prefix := strings.TrimSpace(q.PathPrefix); prefix != "" {
		sqlText += ` AND c.path LIKE ?`
		args = append(args, prefix+"%")
	}
	sqlText += ` ORDER BY bm25(chunks_fts) LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, sqlText, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []lexical.Hit
	for rows.Next() {
		var h lexical.Hit
		if err := rows.Scan(&h.ChunkID, &h.Path, &h.StartLine, &h.EndLine, &h.Score, &h.Snippet); err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

// searchLike is the degraded path when the driver lacks FTS5: substring
// match, uniform scores.
func (s *Store) searchLike(ctx context.Context, q lexical.Query, limit int) ([]lexical.Hit, error) {
	sqlText := `SELECT chunk_id, path, sl, el FROM chunks WHERE text LIKE ?`
	args := []any{"%" + q.Terms[0] + "%"}
	if lang := strings.TrimSpace(q.Language); lang != "" {
		sqlText += ` AND lang = ?`
		args = append(args, lang)
	}
	sqlText += ` ORDER BY path, sl LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, sqlText, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []lexical.Hit
	for rows.Next() {
		var h lexical.Hit
		if err := rows.Scan(&h.ChunkID, &h.Path, &h.StartLine, &h.EndLine); err != nil {
			return nil, err
		}
		h.Score = 1
		out = append(out, h)
	}
	return out, rows.Err()
}

func ftsQuery(terms []string) string {
	quoted := make([]string, 0, len(terms))
	for _, t := range terms {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		quoted = append(quoted, `"`+strings.ReplaceAll(t, `"`, `""`)+`"`)
	}
	return strings.Join(quoted, " OR ")
}

func (s *Store) init() error {
	if _, err := s.db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		return err
	}
	_, _ = s.db.Exec("PRAGMA journal_mode = WAL")

	_, err := s.db.Exec(
		`CREATE TABLE IF NOT EXISTS chunks (
		   id INTEGER PRIMARY KEY,
		   chunk_id TEXT NOT NULL UNIQUE,
		   path TEXT NOT NULL,
		   lang TEXT NOT NULL DEFAULT '',
		   sl INTEGER NOT NULL,
		   el INTEGER NOT NULL,
		   text TEXT NOT NULL
		 )`)
	if err != nil {
		return err
	}
	if _, err := s.db.Exec(`CREATE INDEX IF NOT EXISTS idx_chunks_path ON chunks(path)`); err != nil {
		return err
	}

	s.hasFTS = true
	if err := s.tryCreateFTS(); err != nil {
		s.hasFTS = false
	}
	return nil
}

func (s *Store) tryCreateFTS() error {
	// FTS is optional: if the driver/build does not support fts5 we fall
	// back to LIKE at query time.
	stmts := []string{
		`CREATE VIRTUAL TABLE IF NOT EXISTS chunks_fts
		 USING fts5(
		   text,
		   chunk_id UNINDEXED,
		   content='chunks',
		   content_rowid='id'
		 )`,
		`CREATE TRIGGER IF NOT EXISTS chunks_ai AFTER INSERT ON chunks BEGIN
		   INSERT INTO chunks_fts(rowid, text, chunk_id)
		   VALUES (new.id, new.text, new.chunk_id);
		 END`,
		`CREATE TRIGGER IF NOT EXISTS chunks_ad AFTER DELETE ON chunks BEGIN
		   INSERT INTO chunks_fts(chunks_fts, rowid, text, chunk_id)
		   VALUES('delete', old.id, old.text, old.chunk_id);
		 END`,
		`CREATE TRIGGER IF NOT EXISTS chunks_au AFTER UPDATE ON chunks BEGIN
		   INSERT INTO chunks_fts(chunks_fts, rowid, text, chunk_id)
		   VALUES('delete', old.id, old.text, old.chunk_id);
		   INSERT INTO chunks_fts(rowid, text, chunk_id)
		   VALUES (new.id, new.text, new.chunk_id);
		 END`,
	}

	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}
