package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Skufu/medify/internal/prescription"
)

const schema = `
CREATE TABLE IF NOT EXISTS prescriptions (
	id          UUID PRIMARY KEY,
	patient_id  TEXT NOT NULL DEFAULT '',
	diagnosis   TEXT NOT NULL DEFAULT '',
	notes       TEXT NOT NULL DEFAULT '',
	items       JSONB NOT NULL DEFAULT '[]'::jsonb,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS prescriptions_patient_created_idx
	ON prescriptions (patient_id, created_at DESC);
`

const selectColumns = `SELECT id, patient_id, diagnosis, notes, items, created_at FROM prescriptions`

type Postgres struct {
	pool *pgxpool.Pool
}

// Connect opens a pool and verifies it with a ping.
func Connect(ctx context.Context, url string) (*Postgres, error) {
	cfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("parse db url: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}

	return &Postgres{pool: pool}, nil
}

// Migrate creates the schema. It is safe to run on every start.
func (s *Postgres) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

func (s *Postgres) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *Postgres) Close() {
	s.pool.Close()
}

func (s *Postgres) Save(ctx context.Context, p prescription.Prescription) error {
	if err := p.Validate(); err != nil {
		return err
	}

	items, err := json.Marshal(p.Items)
	if err != nil {
		return fmt.Errorf("encode items: %w", err)
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO prescriptions (id, patient_id, diagnosis, notes, items, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			patient_id = EXCLUDED.patient_id,
			diagnosis  = EXCLUDED.diagnosis,
			notes      = EXCLUDED.notes,
			items      = EXCLUDED.items`,
		p.ID, p.PatientID, p.Diagnosis, p.Notes, string(items), p.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("save prescription %s: %w", p.ID, err)
	}
	return nil
}

func (s *Postgres) Get(ctx context.Context, id uuid.UUID) (prescription.Prescription, error) {
	p, err := scanPrescription(s.pool.QueryRow(ctx, selectColumns+` WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return prescription.Prescription{}, ErrNotFound
	}
	if err != nil {
		return prescription.Prescription{}, fmt.Errorf("get prescription %s: %w", id, err)
	}
	return p, nil
}

func (s *Postgres) ListByPatient(ctx context.Context, patientID string) ([]prescription.Prescription, error) {
	rows, err := s.pool.Query(ctx, selectColumns+` WHERE patient_id = $1 ORDER BY created_at DESC, id`, patientID)
	if err != nil {
		return nil, fmt.Errorf("list prescriptions: %w", err)
	}
	defer rows.Close()

	out := []prescription.Prescription{}
	for rows.Next() {
		p, err := scanPrescription(rows)
		if err != nil {
			return nil, fmt.Errorf("scan prescription: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list prescriptions: %w", err)
	}
	return out, nil
}

func scanPrescription(row pgx.Row) (prescription.Prescription, error) {
	var (
		p     prescription.Prescription
		items []byte
	)
	if err := row.Scan(&p.ID, &p.PatientID, &p.Diagnosis, &p.Notes, &items, &p.CreatedAt); err != nil {
		return prescription.Prescription{}, err
	}
	if err := json.Unmarshal(items, &p.Items); err != nil {
		return prescription.Prescription{}, fmt.Errorf("decode items: %w", err)
	}
	if p.Items == nil {
		p.Items = []prescription.RxItem{}
	}
	p.CreatedAt = p.CreatedAt.UTC()
	return p, nil
}
