package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/pavelanni/lsocheck/internal/model"
	"github.com/pavelanni/lsocheck/internal/questionnaire"

	_ "modernc.org/sqlite"
)

type Store struct {
	db *sql.DB
}

func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if dbPath == ":memory:" {
		// Each pooled connection would get its own empty in-memory database.
		db.SetMaxOpenConns(1)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// answerColumn maps a question ID to its nullable column in submissions.
type answerColumn struct {
	column string
	track  questionnaire.Track
	id     string
}

var answerColumns = []answerColumn{
	{"debt_type", questionnaire.TrackPrimary, questionnaire.QDebtType},
	{"debt_amount", questionnaire.TrackPrimary, questionnaire.QDebtAmount},
	{"multiple_creditors", questionnaire.TrackPrimary, questionnaire.QMultipleCreditors},
	{"previous_lso", questionnaire.TrackPrimary, questionnaire.QPreviousLSO},
	{"criminal_record", questionnaire.TrackPrimary, questionnaire.QCriminalRecord},
	{"tax_sanctions", questionnaire.TrackPrimary, questionnaire.QTaxSanctions},
	{"bankruptcy_history", questionnaire.TrackPrimary, questionnaire.QBankruptcyHistory},
	{"reckless", questionnaire.TrackPrimary, questionnaire.QReckless},
	{"honesty", questionnaire.TrackPrimary, questionnaire.QHonesty},
	{"housing", questionnaire.TrackAsset, questionnaire.QHousing},
	{"vehicles", questionnaire.TrackAsset, questionnaire.QVehicles},
	{"vehicle_payment", questionnaire.TrackAsset, questionnaire.QVehiclePayment},
	{"vehicle_value", questionnaire.TrackAsset, questionnaire.QVehicleValue},
}

func (s *Store) migrate() error {
	var cols strings.Builder
	for _, c := range answerColumns {
		cols.WriteString("\t\t" + c.column + " TEXT,\n")
	}
	schema := `
	CREATE TABLE IF NOT EXISTS submissions (
		id TEXT PRIMARY KEY,
		created_at DATETIME NOT NULL,
		stage TEXT NOT NULL,
		eligible INTEGER NOT NULL,
		reasons TEXT NOT NULL DEFAULT '[]',
		nombre TEXT,
		apellidos TEXT,
		email TEXT,
		telefono TEXT,
		mensaje TEXT,
` + cols.String() + `		extra TEXT NOT NULL DEFAULT '{}'
	);

	CREATE TABLE IF NOT EXISTS deliveries (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		submission_id TEXT NOT NULL,
		sink TEXT NOT NULL,
		status TEXT NOT NULL,
		attempts INTEGER NOT NULL DEFAULT 1,
		error TEXT NOT NULL DEFAULT '',
		at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS access_sessions (
		id TEXT PRIMARY KEY,
		created_at DATETIME NOT NULL,
		expires_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS metadata (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}

// InsertSubmission stores a submission. Unanswered questions and missing
// contact fields are stored as NULL; answers to questions outside the
// catalog go to the extra JSON column.
func (s *Store) InsertSubmission(ctx context.Context, sub model.Submission) error {
	reasons, err := json.Marshal(sub.Reasons)
	if err != nil {
		return fmt.Errorf("marshal reasons: %w", err)
	}

	known := make(map[string]bool, len(answerColumns))
	cols := []string{"id", "created_at", "stage", "eligible", "reasons", "nombre", "apellidos", "email", "telefono", "mensaje"}
	var c model.Contact
	if sub.Contact != nil {
		c = *sub.Contact
	}
	args := []any{sub.ID, sub.CreatedAt, sub.Stage, sub.Eligible, string(reasons),
		nullable(c.Nombre), nullable(c.Apellidos), nullable(c.Email), nullable(c.Telefono), nullable(c.Mensaje)}
	for _, ac := range answerColumns {
		known[string(ac.track)+"/"+ac.id] = true
		cols = append(cols, ac.column)
		args = append(args, nullable(trackAnswers(sub, ac.track).Get(ac.id)))
	}

	extra := map[string]questionnaire.Answers{}
	for _, track := range []questionnaire.Track{questionnaire.TrackPrimary, questionnaire.TrackAsset} {
		for id, v := range trackAnswers(sub, track) {
			if !known[string(track)+"/"+id] {
				if extra[string(track)] == nil {
					extra[string(track)] = questionnaire.Answers{}
				}
				extra[string(track)][id] = v
			}
		}
	}
	extraJSON, err := json.Marshal(extra)
	if err != nil {
		return fmt.Errorf("marshal extra answers: %w", err)
	}
	cols = append(cols, "extra")
	args = append(args, string(extraJSON))

	query := `INSERT INTO submissions (` + strings.Join(cols, ", ") + `) VALUES (?` + strings.Repeat(", ?", len(cols)-1) + `)`
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert submission %s: %w", sub.ID, err)
	}
	return nil
}

func trackAnswers(sub model.Submission, track questionnaire.Track) questionnaire.Answers {
	if track == questionnaire.TrackAsset {
		return sub.AssetAnswers
	}
	return sub.PrimaryAnswers
}

func selectSubmissionColumns() string {
	cols := []string{"id", "created_at", "stage", "eligible", "reasons", "nombre", "apellidos", "email", "telefono", "mensaje"}
	for _, ac := range answerColumns {
		cols = append(cols, ac.column)
	}
	cols = append(cols, "extra")
	return strings.Join(cols, ", ")
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSubmission(row rowScanner) (model.Submission, error) {
	var sub model.Submission
	var reasons, extra string
	var nombre, apellidos, email, tel, mensaje sql.NullString
	answers := make([]sql.NullString, len(answerColumns))
	dest := []any{&sub.ID, &sub.CreatedAt, &sub.Stage, &sub.Eligible, &reasons, &nombre, &apellidos, &email, &tel, &mensaje}
	for i := range answers {
		dest = append(dest, &answers[i])
	}
	dest = append(dest, &extra)
	if err := row.Scan(dest...); err != nil {
		return sub, err
	}

	if err := json.Unmarshal([]byte(reasons), &sub.Reasons); err != nil {
		return sub, fmt.Errorf("decode reasons: %w", err)
	}
	if nombre.Valid || apellidos.Valid || email.Valid || tel.Valid || mensaje.Valid {
		sub.Contact = &model.Contact{
			Nombre:    nombre.String,
			Apellidos: apellidos.String,
			Email:     email.String,
			Telefono:  tel.String,
			Mensaje:   mensaje.String,
		}
	}

	sub.PrimaryAnswers = questionnaire.Answers{}
	sub.AssetAnswers = questionnaire.Answers{}
	for i, ac := range answerColumns {
		if answers[i].Valid {
			trackAnswers(sub, ac.track)[ac.id] = answers[i].String
		}
	}
	var extraAnswers map[string]questionnaire.Answers
	if err := json.Unmarshal([]byte(extra), &extraAnswers); err != nil {
		return sub, fmt.Errorf("decode extra answers: %w", err)
	}
	for track, a := range extraAnswers {
		dst := trackAnswers(sub, questionnaire.Track(track))
		for id, v := range a {
			dst[id] = v
		}
	}
	return sub, nil
}

// GetSubmission returns a submission by ID.
func (s *Store) GetSubmission(id string) (model.Submission, error) {
	row := s.db.QueryRow(`SELECT `+selectSubmissionColumns()+` FROM submissions WHERE id = ?`, id)
	return scanSubmission(row)
}

// ListSubmissions returns all submissions, newest first.
func (s *Store) ListSubmissions() ([]model.Submission, error) {
	rows, err := s.db.Query(`SELECT ` + selectSubmissionColumns() + ` FROM submissions ORDER BY created_at DESC, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var subs []model.Submission
	for rows.Next() {
		sub, err := scanSubmission(rows)
		if err != nil {
			return nil, err
		}
		subs = append(subs, sub)
	}
	return subs, rows.Err()
}

// SubmissionCount returns the number of stored submissions.
func (s *Store) SubmissionCount() (int, error) {
	var count int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM submissions`).Scan(&count)
	return count, err
}

// RecordDelivery stores one sink's outcome for a submission.
func (s *Store) RecordDelivery(ctx context.Context, d model.Delivery) error {
	at := d.At
	if at.IsZero() {
		at = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO deliveries (submission_id, sink, status, attempts, error, at) VALUES (?, ?, ?, ?, ?, ?)`,
		d.SubmissionID, d.Sink, d.Status, d.Attempts, d.Error, at,
	)
	return err
}

// ListDeliveries returns the delivery history of a submission in insertion order.
func (s *Store) ListDeliveries(submissionID string) ([]model.Delivery, error) {
	rows, err := s.db.Query(
		`SELECT id, submission_id, sink, status, attempts, error, at FROM deliveries WHERE submission_id = ? ORDER BY id`,
		submissionID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ds []model.Delivery
	for rows.Next() {
		var d model.Delivery
		if err := rows.Scan(&d.ID, &d.SubmissionID, &d.Sink, &d.Status, &d.Attempts, &d.Error, &d.At); err != nil {
			return nil, err
		}
		ds = append(ds, d)
	}
	return ds, rows.Err()
}

// Name identifies the store as a submission sink.
func (s *Store) Name() string { return "store" }

// Send stores the submission.
func (s *Store) Send(ctx context.Context, sub model.Submission) error {
	return s.InsertSubmission(ctx, sub)
}
