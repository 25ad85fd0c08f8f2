package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"filing_compliance_bot/internal/domain/subject"
)

// Custom errors specific to subject repository
var ErrSubjectNotFound = fmt.Errorf("regulatory subject not found")
var ErrDuplicateRegNumber = fmt.Errorf("subject with this registration number already exists")

type PostgresSubjectRepository struct {
	db *sql.DB
}

func NewPostgresSubjectRepository(db *sql.DB) *PostgresSubjectRepository {
	return &PostgresSubjectRepository{db: db}
}

func (r *PostgresSubjectRepository) Create(ctx context.Context, subj *subject.Subject) error {
	query := `INSERT INTO subjects (reg_number, sender_id, incorporation_date)
               VALUES ($1, $2, $3)
               RETURNING id, created_at, updated_at`
	err := r.db.QueryRowContext(ctx, query, subj.RegNumber, subj.SenderID, subj.IncorporationDate).
		Scan(&subj.ID, &subj.CreatedAt, &subj.UpdatedAt)
	if err != nil {
		if strings.Contains(err.Error(), "subjects_reg_number_key") {
			return ErrDuplicateRegNumber
		}
		return fmt.Errorf("error creating subject: %w", err)
	}
	return nil
}

func (r *PostgresSubjectRepository) GetByID(ctx context.Context, id int64) (*subject.Subject, error) {
	return r.getOne(ctx, `WHERE id = $1`, id)
}

func (r *PostgresSubjectRepository) GetByRegNumber(ctx context.Context, regNumber string) (*subject.Subject, error) {
	return r.getOne(ctx, `WHERE reg_number = $1`, regNumber)
}

func (r *PostgresSubjectRepository) GetBySenderID(ctx context.Context, senderID string) (*subject.Subject, error) {
	return r.getOne(ctx, `WHERE sender_id = $1`, senderID)
}

func (r *PostgresSubjectRepository) getOne(ctx context.Context, where string, arg any) (*subject.Subject, error) {
	query := `SELECT id, reg_number, sender_id, incorporation_date, created_at, updated_at FROM subjects ` + where
	subj := subject.Subject{}
	err := r.db.QueryRowContext(ctx, query, arg).Scan(
		&subj.ID, &subj.RegNumber, &subj.SenderID, &subj.IncorporationDate, &subj.CreatedAt, &subj.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrSubjectNotFound
		}
		return nil, fmt.Errorf("error getting subject: %w", err)
	}
	if err := r.loadHistory(ctx, &subj); err != nil {
		return nil, err
	}
	return &subj, nil
}

func (r *PostgresSubjectRepository) loadHistory(ctx context.Context, subj *subject.Subject) error {
	query := `SELECT id, subject_id, obligation, period, external_ref, filed_at
               FROM subject_filings WHERE subject_id = $1 ORDER BY filed_at`
	rows, err := r.db.QueryContext(ctx, query, subj.ID)
	if err != nil {
		return fmt.Errorf("error querying filing history: %w", err)
	}
	defer rows.Close()

	subj.History = subj.History[:0]
	for rows.Next() {
		rec := subject.FilingRecord{}
		if err := rows.Scan(&rec.ID, &rec.SubjectID, &rec.Obligation, &rec.Period, &rec.ExternalRef, &rec.FiledAt); err != nil {
			return fmt.Errorf("error scanning filing record: %w", err)
		}
		subj.History = append(subj.History, rec)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("error iterating filing history rows: %w", err)
	}
	return nil
}

func (r *PostgresSubjectRepository) Update(ctx context.Context, subj *subject.Subject) error {
	query := `UPDATE subjects
               SET sender_id = $1, incorporation_date = $2, updated_at = NOW()
               WHERE id = $3
               RETURNING updated_at`
	err := r.db.QueryRowContext(ctx, query, subj.SenderID, subj.IncorporationDate, subj.ID).Scan(&subj.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return ErrSubjectNotFound
		}
		return fmt.Errorf("error updating subject: %w", err)
	}
	return nil
}

func (r *PostgresSubjectRepository) ListAll(ctx context.Context) ([]*subject.Subject, error) {
	query := `SELECT id, reg_number, sender_id, incorporation_date, created_at, updated_at FROM subjects ORDER BY id`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("error querying subjects: %w", err)
	}
	defer rows.Close()

	subjects := make([]*subject.Subject, 0)
	for rows.Next() {
		subj := subject.Subject{}
		if err := rows.Scan(&subj.ID, &subj.RegNumber, &subj.SenderID, &subj.IncorporationDate, &subj.CreatedAt, &subj.UpdatedAt); err != nil {
			return nil, fmt.Errorf("error scanning subject row: %w", err)
		}
		subjects = append(subjects, &subj)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating subject rows: %w", err)
	}
	for _, subj := range subjects {
		if err := r.loadHistory(ctx, subj); err != nil {
			return nil, err
		}
	}
	return subjects, nil
}

// AppendFiling adds a completed filing to the subject's append-only history.
func (r *PostgresSubjectRepository) AppendFiling(ctx context.Context, rec *subject.FilingRecord) error {
	query := `INSERT INTO subject_filings (subject_id, obligation, period, external_ref, filed_at)
               VALUES ($1, $2, $3, $4, $5)
               RETURNING id`
	err := r.db.QueryRowContext(ctx, query, rec.SubjectID, rec.Obligation, rec.Period, rec.ExternalRef, rec.FiledAt).
		Scan(&rec.ID)
	if err != nil {
		return fmt.Errorf("error appending filing record: %w", err)
	}
	return nil
}
