package retrieval

import (
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"slices"
	"strings"
	"time"
)

var _ VectorStore = (*SQLiteStore)(nil)

// SQLiteStore keeps embeddings in the scripture_vectors table created by the
// storage migrations. Vectors are little-endian float32 blobs next to their
// cached L2 norm; search is a full cosine scan, which is fine for a corpus of
// a few thousand passages.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

func (s *SQLiteStore) Replace(ctx context.Context, records []Record) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("replacing vectors: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM scripture_vectors`); err != nil {
		return fmt.Errorf("clearing vectors: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO scripture_vectors
		(id, source_id, page, text_chunk, embedding, norm, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing vector insert: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC()
	for _, r := range records {
		created := r.CreatedAt
		if created.IsZero() {
			created = now
		}
		_, err := stmt.ExecContext(ctx, r.ID, r.SourceID, r.Page, r.TextChunk,
			vectorBlob(r.Embedding), l2(r.Embedding), created.Format(time.RFC3339))
		if err != nil {
			return fmt.Errorf("storing vector %s: %w", r.ID, err)
		}
	}
	return tx.Commit()
}

// Search ranks every stored vector against the query, keeping only the best
// topK ids, then loads the text of those rows.
func (s *SQLiteStore) Search(ctx context.Context, vector []float32, topK int) ([]ScoredRecord, error) {
	qn := l2(vector)
	if topK <= 0 || qn == 0 {
		return nil, nil
	}

	best, err := s.rank(ctx, vector, qn, topK)
	if err != nil || len(best.items) == 0 {
		return nil, err
	}
	return s.load(ctx, best)
}

func (s *SQLiteStore) rank(ctx context.Context, q []float32, qn float32, k int) (*leaders, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, norm, embedding FROM scripture_vectors`)
	if err != nil {
		return nil, fmt.Errorf("scanning vectors: %w", err)
	}
	defer rows.Close()

	best := &leaders{k: k}
	var v []float32
	for rows.Next() {
		var (
			id   string
			vn   float32
			blob []byte
		)
		if err := rows.Scan(&id, &vn, &blob); err != nil {
			return nil, fmt.Errorf("reading vector row: %w", err)
		}
		if v, err = readVector(v, blob); err != nil {
			return nil, fmt.Errorf("vector %s: %w", id, err)
		}
		if vn == 0 {
			vn = l2(v)
		}
		best.offer(id, cosine(q, qn, v, vn))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("scanning vectors: %w", err)
	}
	return best, nil
}

func (s *SQLiteStore) load(ctx context.Context, best *leaders) ([]ScoredRecord, error) {
	args := make([]any, len(best.items))
	for i, it := range best.items {
		args[i] = it.id
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(args)), ",")

	rows, err := s.db.QueryContext(ctx, `SELECT id, source_id, page, text_chunk, created_at
		FROM scripture_vectors WHERE id IN (`+placeholders+`)`, args...)
	if err != nil {
		return nil, fmt.Errorf("loading matches: %w", err)
	}
	defer rows.Close()

	byID := make(map[string]Record, len(args))
	for rows.Next() {
		var (
			r       Record
			created string
		)
		if err := rows.Scan(&r.ID, &r.SourceID, &r.Page, &r.TextChunk, &created); err != nil {
			return nil, fmt.Errorf("reading match: %w", err)
		}
		if r.CreatedAt, err = time.Parse(time.RFC3339, created); err != nil {
			return nil, fmt.Errorf("match %s created_at: %w", r.ID, err)
		}
		byID[r.ID] = r
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("loading matches: %w", err)
	}

	out := make([]ScoredRecord, 0, len(best.items))
	for _, it := range best.items {
		if r, ok := byID[it.id]; ok {
			out = append(out, ScoredRecord{Record: r, Score: it.score})
		}
	}
	return out, nil
}

func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM scripture_vectors`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting vectors: %w", err)
	}
	return n, nil
}

type scored struct {
	id    string
	score float32
}

// leaders holds the k best scores seen so far, best first. k is small (the
// agent asks for one passage), so insertion into a sorted slice beats a heap.
type leaders struct {
	k     int
	items []scored
}

func (l *leaders) offer(id string, score float32) {
	if len(l.items) == l.k && score <= l.items[len(l.items)-1].score {
		return
	}
	i, _ := slices.BinarySearchFunc(l.items, score, func(it scored, s float32) int {
		switch {
		case it.score > s:
			return -1
		case it.score < s:
			return 1
		}
		return -1 // ties keep scan order
	})
	l.items = slices.Insert(l.items, i, scored{id: id, score: score})
	if len(l.items) > l.k {
		l.items = l.items[:l.k]
	}
}

func vectorBlob(v []float32) []byte {
	b := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(b[4*i:], math.Float32bits(f))
	}
	return b
}

// readVector decodes blob into dst, growing it only when needed so a scan
// reuses one buffer.
func readVector(dst []float32, blob []byte) ([]float32, error) {
	if len(blob)%4 != 0 {
		return nil, fmt.Errorf("blob of %d bytes is not a float32 vector", len(blob))
	}
	dst = slices.Grow(dst[:0], len(blob)/4)[:len(blob)/4]
	for i := range dst {
		dst[i] = math.Float32frombits(binary.LittleEndian.Uint32(blob[4*i:]))
	}
	return dst, nil
}

func l2(v []float32) float32 {
	var sum float64
	for _, f := range v {
		sum += float64(f) * float64(f)
	}
	return float32(math.Sqrt(sum))
}

// cosine is the similarity of a and b given their norms. Mismatched
// dimensions or a zero vector score 0.
func cosine(a []float32, an float32, b []float32, bn float32) float32 {
	if len(a) != len(b) || an == 0 || bn == 0 {
		return 0
	}
	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	return float32(dot / (float64(an) * float64(bn)))
}
