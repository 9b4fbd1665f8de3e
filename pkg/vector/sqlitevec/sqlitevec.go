// Package sqlitevec provides a SQLite-backed vector driver using sqlite-vec.
package sqlitevec

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"strings"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	_ "github.com/mattn/go-sqlite3"

	"github.com/javajedis/legalconnect-ai/pkg/logger"
	"github.com/javajedis/legalconnect-ai/pkg/vector"
)

// Driver implements vector.Driver using SQLite with sqlite-vec.
type Driver struct {
	db     *sql.DB
	dims   uint
	logger *slog.Logger
}

// Config holds configuration for the SQLite vec driver.
type Config struct {
	// DBPath is the path to the SQLite database file.
	// Use ":memory:" for an in-memory database.
	DBPath string

	// Dimensions is the number of dimensions for the embedding vectors.
	// Required.
	Dimensions uint
}

// payloadRecord is the JSON shape stored in the payload column. The
// keys mirror the payload fields the Qdrant driver stores so the two
// backends stay interchangeable.
type payloadRecord struct {
	DocumentID   string            `json:"document_id"`
	ChunkID      string            `json:"chunk_id"`
	Text         string            `json:"text"`
	PageNumber   int               `json:"page_number"`
	DocumentName string            `json:"document_name"`
	SessionID    string            `json:"session_id,omitempty"`
	DocumentType string            `json:"document_type,omitempty"`
	Metadata     map[string]string `json:"metadata,omitempty"`
}

func toRecord(p vector.Payload) payloadRecord {
	return payloadRecord{
		DocumentID:   p.DocumentID,
		ChunkID:      p.ChunkID,
		Text:         p.Text,
		PageNumber:   p.PageNumber,
		DocumentName: p.DocumentName,
		SessionID:    p.SessionID,
		DocumentType: p.DocumentType,
		Metadata:     p.Metadata,
	}
}

func (r payloadRecord) payload() vector.Payload {
	return vector.Payload{
		DocumentID:   r.DocumentID,
		ChunkID:      r.ChunkID,
		Text:         r.Text,
		PageNumber:   r.PageNumber,
		DocumentName: r.DocumentName,
		SessionID:    r.SessionID,
		DocumentType: r.DocumentType,
		Metadata:     r.Metadata,
	}
}

// NewDriver creates a new SQLite vector driver backed by sqlite-vec.
func NewDriver(c Config, log *slog.Logger) (*Driver, error) {
	// enable connection to have sqlite-vec extension
	sqlite_vec.Auto()

	if c.DBPath == "" {
		return nil, fmt.Errorf("database path is required")
	}
	if c.Dimensions == 0 {
		return nil, fmt.Errorf("sqlite-vec embedding dimensions cannot be 0, must be configured")
	}
	if log == nil {
		log = logger.Nop()
	}

	db, err := sql.Open("sqlite3", c.DBPath)
	if err != nil {
		return nil, fmt.Errorf("%w: opening database: %v", vector.ErrConnection, err)
	}

	// Verify sqlite-vec is loaded
	var vecVersion string
	if err := db.QueryRow("SELECT vec_version()").Scan(&vecVersion); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: sqlite-vec not available: %v", vector.ErrConnection, err)
	}

	// vec0 virtual tables use integer rowids, so we keep a mapping from
	// string point IDs to rowids plus the JSON payload.
	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS vec_points (
			rowid INTEGER PRIMARY KEY AUTOINCREMENT,
			point_id TEXT NOT NULL UNIQUE,
			payload TEXT NOT NULL DEFAULT '{}'
		)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating points table: %w", err)
	}

	// Cosine distance keeps scores comparable with the Qdrant backend.
	createVec := fmt.Sprintf(
		`CREATE VIRTUAL TABLE IF NOT EXISTS vec_embeddings USING vec0(embedding float[%d] distance_metric=cosine)`,
		c.Dimensions,
	)
	if _, err := db.Exec(createVec); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating vec0 table: %w", err)
	}

	log.Info("sqlite-vec vector driver initialized",
		"db_path", c.DBPath,
		"dimensions", c.Dimensions,
		"vec_version", vecVersion,
	)

	return &Driver{
		db:     db,
		dims:   c.Dimensions,
		logger: log,
	}, nil
}

// serializeFloat32 converts a float32 slice to a little-endian byte slice
// suitable for sqlite-vec BLOB format.
func serializeFloat32(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// Upsert stores points, replacing any existing point with the same ID.
func (d *Driver) Upsert(ctx context.Context, points []vector.Point) error {
	if len(points) == 0 {
		return nil
	}

	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	for _, point := range points {
		if uint(len(point.Vector)) != d.dims {
			return fmt.Errorf("%w: point %s has %d dimensions, index has %d",
				vector.ErrDimensions, point.ID, len(point.Vector), d.dims)
		}

		payloadJSON, err := json.Marshal(toRecord(point.Payload))
		if err != nil {
			return fmt.Errorf("marshaling payload for point %s: %w", point.ID, err)
		}

		embBlob := serializeFloat32(point.Vector)

		var existingRowID int64
		err = tx.QueryRowContext(ctx,
			`SELECT rowid FROM vec_points WHERE point_id = ?`, point.ID,
		).Scan(&existingRowID)

		switch err {
		case nil:
			if _, err := tx.ExecContext(ctx,
				`UPDATE vec_points SET payload = ? WHERE rowid = ?`,
				string(payloadJSON), existingRowID,
			); err != nil {
				return fmt.Errorf("updating point %s: %w", point.ID, err)
			}

			// vec0 does not support UPDATE, so replace via DELETE + INSERT.
			if _, err := tx.ExecContext(ctx,
				`DELETE FROM vec_embeddings WHERE rowid = ?`, existingRowID,
			); err != nil {
				return fmt.Errorf("deleting old embedding for point %s: %w", point.ID, err)
			}

			if _, err := tx.ExecContext(ctx,
				`INSERT INTO vec_embeddings(rowid, embedding) VALUES (?, ?)`,
				existingRowID, embBlob,
			); err != nil {
				return fmt.Errorf("re-inserting embedding for point %s: %w", point.ID, err)
			}
		case sql.ErrNoRows:
			result, err := tx.ExecContext(ctx,
				`INSERT INTO vec_points(point_id, payload) VALUES (?, ?)`,
				point.ID, string(payloadJSON),
			)
			if err != nil {
				return fmt.Errorf("inserting point %s: %w", point.ID, err)
			}

			rowID, err := result.LastInsertId()
			if err != nil {
				return fmt.Errorf("getting rowid for point %s: %w", point.ID, err)
			}

			if _, err := tx.ExecContext(ctx,
				`INSERT INTO vec_embeddings(rowid, embedding) VALUES (?, ?)`,
				rowID, embBlob,
			); err != nil {
				return fmt.Errorf("inserting embedding for point %s: %w", point.ID, err)
			}
		default:
			return fmt.Errorf("checking for existing point %s: %w", point.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}

	d.logger.Debug("upserted points to sqlite-vec", "count", len(points))

	return nil
}

// Search finds the most similar points to the given embedding. Payload
// filters are applied after the KNN pass, so the scan over-fetches when
// a filter is present.
func (d *Driver) Search(ctx context.Context, embedding []float32, params vector.SearchParams) ([]vector.ScoredPoint, error) {
	topK := params.TopK
	if topK <= 0 {
		topK = 10
	}

	fetchK := topK
	if len(params.Filter) > 0 {
		fetchK = topK * 10
	}

	queryBlob := serializeFloat32(embedding)

	rows, err := d.db.QueryContext(ctx, `
		SELECT
			p.point_id,
			p.payload,
			ve.distance
		FROM vec_embeddings ve
		INNER JOIN vec_points p ON p.rowid = ve.rowid
		WHERE ve.embedding MATCH ?
			AND ve.k = ?
		ORDER BY ve.distance
	`, queryBlob, fetchK)
	if err != nil {
		return nil, fmt.Errorf("querying vectors: %w", err)
	}
	defer rows.Close()

	var results []vector.ScoredPoint
	for rows.Next() {
		var pointID, payloadJSON string
		var distance float64
		if err := rows.Scan(&pointID, &payloadJSON, &distance); err != nil {
			return nil, fmt.Errorf("scanning query result: %w", err)
		}

		var record payloadRecord
		if err := json.Unmarshal([]byte(payloadJSON), &record); err != nil {
			return nil, fmt.Errorf("unmarshaling payload for point %s: %w", pointID, err)
		}
		payload := record.payload()

		if !params.Filter.Matches(payload) {
			continue
		}

		// Cosine distance to similarity.
		score := float32(1.0 - distance)
		if params.ScoreThreshold > 0 && score < params.ScoreThreshold {
			continue
		}

		results = append(results, vector.ScoredPoint{
			ID:      pointID,
			Score:   score,
			Payload: payload,
		})
		if len(results) >= topK {
			break
		}
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating query results: %w", err)
	}

	d.logger.Debug("queried sqlite-vec", "results", len(results))

	return results, nil
}

// Delete removes points by their IDs.
func (d *Driver) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	placeholders := make([]string, len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		placeholders[i] = "?"
		args[i] = id
	}
	inClause := strings.Join(placeholders, ",")

	query := fmt.Sprintf(
		`SELECT rowid FROM vec_points WHERE point_id IN (%s)`, inClause,
	)
	rows, err := tx.QueryContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("querying rowids for deletion: %w", err)
	}

	var rowIDs []int64
	for rows.Next() {
		var rowID int64
		if err := rows.Scan(&rowID); err != nil {
			rows.Close()
			return fmt.Errorf("scanning rowid: %w", err)
		}
		rowIDs = append(rowIDs, rowID)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterating rowids: %w", err)
	}

	for _, rowID := range rowIDs {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM vec_embeddings WHERE rowid = ?`, rowID,
		); err != nil {
			return fmt.Errorf("deleting embedding rowid %d: %w", rowID, err)
		}
	}

	deleteQuery := fmt.Sprintf(
		`DELETE FROM vec_points WHERE point_id IN (%s)`, inClause,
	)
	if _, err := tx.ExecContext(ctx, deleteQuery, args...); err != nil {
		return fmt.Errorf("deleting points: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}

	d.logger.Debug("deleted points from sqlite-vec", "count", len(ids))

	return nil
}

// Stats reports the state of the backing index.
func (d *Driver) Stats(ctx context.Context) (vector.Stats, error) {
	var points uint64
	if err := d.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM vec_points`,
	).Scan(&points); err != nil {
		return vector.Stats{}, fmt.Errorf("counting points: %w", err)
	}

	return vector.Stats{
		Points:     points,
		Dimensions: d.dims,
		Status:     "ok",
	}, nil
}

// Close releases resources held by the driver.
func (d *Driver) Close() error {
	return d.db.Close()
}

var _ vector.Driver = (*Driver)(nil)
