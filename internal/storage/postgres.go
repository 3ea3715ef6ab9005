// internal/storage/postgres.go
// Package storage provides PostgreSQL implementation of the Store interface.
// This implementation is intended for production use with persistent data storage.
package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/CaseTrail/casetrail-audit-go/internal/model"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// postgres provides persistent storage for complaints and their proofs.
type postgres struct {
	db *pgxpool.Pool // Connection pool to PostgreSQL database
}

// NewPostgres creates a new PostgreSQL storage implementation.
// It establishes a connection pool to the database and initializes the schema.
// Parameters:
//   - dsn: Database connection string in PostgreSQL format
// Returns:
//   - Store: Implementation of the storage interface
//   - error: Any error that occurred during initialization
func NewPostgres(dsn string) (Store, error) {
	// Parse the database connection string
	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("invalid database DSN: %w", err)
	}

	// Connection pool settings
	config.MaxConns = 20
	config.MinConns = 5
	config.MaxConnLifetime = time.Hour
	config.MaxConnIdleTime = time.Minute * 30
	config.HealthCheckPeriod = time.Minute

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if err := initSchema(ctx, pool); err != nil {
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &postgres{db: pool}, nil
}

// initSchema initializes the database schema.
// It creates all required tables and indexes if they don't already exist.
// Timestamps are stored as TEXT because the registry treats them as opaque
// caller-supplied strings, not parsed instants.
func initSchema(ctx context.Context, db *pgxpool.Pool) error {
	schema := `
		-- Complaints table, one row per registered complaint
		CREATE TABLE IF NOT EXISTS complaints (
		    complaint_id TEXT PRIMARY KEY,           -- Caller-assigned unique id
		    user_id TEXT NOT NULL,                   -- Complainant identifier (opaque)
		    complaint_hash TEXT NOT NULL,            -- Fingerprint of the complaint text
		    filed_at TEXT NOT NULL,                  -- Registration timestamp, set once
		    status TEXT NOT NULL,                    -- Lifecycle state
		    last_status_update TEXT NOT NULL         -- Timestamp of latest accepted transition
		);

		-- Proofs table, append-only evidence per complaint
		CREATE TABLE IF NOT EXISTS proofs (
		    id TEXT PRIMARY KEY,                     -- ULID ordering key, assigned at attach time
		    complaint_id TEXT NOT NULL REFERENCES complaints(complaint_id),
		    hash TEXT NOT NULL,                      -- Evidence content fingerprint
		    kind TEXT NOT NULL,                      -- Evidence classification
		    submitted_at TEXT NOT NULL               -- Caller-supplied submission timestamp
		);

		-- ULIDs sort lexicographically in creation order, so ordering by id
		-- reproduces submission order exactly.
		CREATE INDEX IF NOT EXISTS idx_proofs_complaint_id ON proofs(complaint_id, id);
		CREATE INDEX IF NOT EXISTS idx_complaints_status ON complaints(status);
	`

	_, err := db.Exec(ctx, schema)
	return err
}

// Close closes the database connection pool
func (p *postgres) Close() {
	p.db.Close()
}

// CreateComplaint inserts a new complaint row
func (p *postgres) CreateComplaint(ctx context.Context, complaint model.ComplaintRecord) error {
	query := `INSERT INTO complaints (complaint_id, user_id, complaint_hash, filed_at, status, last_status_update)
	          VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := p.db.Exec(ctx, query,
		complaint.ComplaintID,
		complaint.UserID,
		complaint.ComplaintHash,
		complaint.FiledAt,
		string(complaint.Status),
		complaint.LastStatusUpdate)

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrConflict
		}
		return fmt.Errorf("failed to create complaint: %w", err)
	}
	return nil
}

// GetComplaint retrieves a complaint and its proofs in submission order
func (p *postgres) GetComplaint(ctx context.Context, complaintID string) (*model.ComplaintRecord, error) {
	query := `SELECT complaint_id, user_id, complaint_hash, filed_at, status, last_status_update
	          FROM complaints WHERE complaint_id = $1`

	var complaint model.ComplaintRecord
	var status string

	err := p.db.QueryRow(ctx, query, complaintID).Scan(
		&complaint.ComplaintID,
		&complaint.UserID,
		&complaint.ComplaintHash,
		&complaint.FiledAt,
		&status,
		&complaint.LastStatusUpdate,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get complaint: %w", err)
	}
	complaint.Status = model.Status(status)

	proofs, err := p.loadProofs(ctx, complaintID)
	if err != nil {
		return nil, err
	}
	complaint.Proofs = proofs

	return &complaint, nil
}

// loadProofs fetches the proof sequence for one complaint, ordered by the
// ULID key so submission order is preserved.
func (p *postgres) loadProofs(ctx context.Context, complaintID string) ([]model.ProofRecord, error) {
	query := `SELECT id, hash, kind, submitted_at FROM proofs WHERE complaint_id = $1 ORDER BY id ASC`

	rows, err := p.db.Query(ctx, query, complaintID)
	if err != nil {
		return nil, fmt.Errorf("failed to list proofs: %w", err)
	}
	defer rows.Close()

	proofs := []model.ProofRecord{}
	for rows.Next() {
		var proof model.ProofRecord
		if err := rows.Scan(&proof.ID, &proof.Hash, &proof.Kind, &proof.SubmittedAt); err != nil {
			return nil, fmt.Errorf("failed to scan proof: %w", err)
		}
		proofs = append(proofs, proof)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating proofs: %w", err)
	}

	return proofs, nil
}

// ListComplaints returns every complaint ordered by complaint id
func (p *postgres) ListComplaints(ctx context.Context) ([]model.ComplaintRecord, error) {
	query := `SELECT complaint_id, user_id, complaint_hash, filed_at, status, last_status_update
	          FROM complaints ORDER BY complaint_id ASC`

	rows, err := p.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list complaints: %w", err)
	}
	defer rows.Close()

	complaints := []model.ComplaintRecord{}
	for rows.Next() {
		var complaint model.ComplaintRecord
		var status string
		err := rows.Scan(
			&complaint.ComplaintID,
			&complaint.UserID,
			&complaint.ComplaintHash,
			&complaint.FiledAt,
			&status,
			&complaint.LastStatusUpdate,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan complaint: %w", err)
		}
		complaint.Status = model.Status(status)
		complaints = append(complaints, complaint)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating complaints: %w", err)
	}

	// Attach proofs after the complaint scan completes; pgx does not allow
	// overlapping queries on the same connection.
	for i := range complaints {
		proofs, err := p.loadProofs(ctx, complaints[i].ComplaintID)
		if err != nil {
			return nil, err
		}
		complaints[i].Proofs = proofs
	}

	return complaints, nil
}

// AppendProof inserts a proof row for an existing complaint
func (p *postgres) AppendProof(ctx context.Context, complaintID string, proof model.ProofRecord) error {
	// Existence check first so absent complaints surface as ErrNotFound
	// rather than a foreign key violation.
	var exists bool
	err := p.db.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM complaints WHERE complaint_id = $1)`, complaintID).Scan(&exists)
	if err != nil {
		return fmt.Errorf("failed to check complaint: %w", err)
	}
	if !exists {
		return ErrNotFound
	}

	query := `INSERT INTO proofs (id, complaint_id, hash, kind, submitted_at) VALUES ($1, $2, $3, $4, $5)`
	_, err = p.db.Exec(ctx, query, proof.ID, complaintID, proof.Hash, proof.Kind, proof.SubmittedAt)
	if err != nil {
		return fmt.Errorf("failed to append proof: %w", err)
	}
	return nil
}

// SetStatus overwrites the status and lastStatusUpdate of an existing complaint
func (p *postgres) SetStatus(ctx context.Context, complaintID string, status model.Status, timestamp string) error {
	query := `UPDATE complaints SET status = $1, last_status_update = $2 WHERE complaint_id = $3`

	result, err := p.db.Exec(ctx, query, string(status), timestamp, complaintID)
	if err != nil {
		return fmt.Errorf("failed to set status: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
