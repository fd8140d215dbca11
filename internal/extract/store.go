package extract

import "github.com/jmoiron/sqlx"

// Record is one row of extraction history.
type Record struct {
	RequestID   string  `db:"request_id"`
	Filename    string  `db:"filename"`
	Backend     string  `db:"backend"`
	Language    string  `db:"language"`
	Confidence  float64 `db:"confidence"`
	TextRegions int     `db:"text_regions"`
	Content     string  `db:"content"`
	Cached      bool    `db:"cached"`
	LatencyMS   int     `db:"latency_ms"`
}

// Store persists extraction history.
type Store struct {
	db *sqlx.DB
}

func (s *Store) Save(r Record) error {
	_, err := s.db.NamedExec(`
		INSERT INTO extractions
			(request_id, filename, backend, language, confidence, text_regions, content, cached, latency_ms)
		VALUES
			(:request_id, :filename, :backend, :language, :confidence, :text_regions, :content, :cached, :latency_ms)`,
		r)
	return err
}

// Recent returns the latest extraction rows, newest first.
func (s *Store) Recent(limit int) ([]RecordRow, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	var rows []RecordRow
	err := s.db.Select(&rows, `
		SELECT id, request_id, filename, backend, language, confidence, text_regions, cached, latency_ms, created_at
		FROM extractions ORDER BY id DESC LIMIT ?`, limit)
	return rows, err
}

// RecordRow is a history row as read back, without the content blob.
type RecordRow struct {
	ID          int64   `db:"id" json:"id"`
	RequestID   string  `db:"request_id" json:"request_id"`
	Filename    string  `db:"filename" json:"filename"`
	Backend     string  `db:"backend" json:"backend"`
	Language    string  `db:"language" json:"language"`
	Confidence  float64 `db:"confidence" json:"confidence"`
	TextRegions int     `db:"text_regions" json:"text_regions"`
	Cached      bool    `db:"cached" json:"cached"`
	LatencyMS   int     `db:"latency_ms" json:"latency_ms"`
	CreatedAt   string  `db:"created_at" json:"created_at"`
}
