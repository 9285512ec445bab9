package store

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/pavelanni/lsocheck/internal/model"
	"github.com/pavelanni/lsocheck/internal/questionnaire"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(":memory:")
	if err != nil {
		t.Fatalf("newTestStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func testSubmission(id string, at time.Time) model.Submission {
	return model.Submission{
		ID:        id,
		CreatedAt: at,
		Stage:     questionnaire.StageSecondaryComplete,
		Eligible:  true,
		Reasons:   []questionnaire.ReasonCode{},
		Contact: &model.Contact{
			Nombre:    "Lucía",
			Apellidos: "García Pérez",
			Email:     "lucia@example.com",
			Telefono:  "600123456",
		},
		PrimaryAnswers: questionnaire.Answers{
			questionnaire.QDebtType:          "personal",
			questionnaire.QMultipleCreditors: questionnaire.Yes,
		},
		AssetAnswers: questionnaire.Answers{
			questionnaire.QHousing:  questionnaire.No,
			questionnaire.QVehicles: questionnaire.No,
		},
	}
}

var submissionCmp = []cmp.Option{
	cmpopts.IgnoreFields(model.Submission{}, "CreatedAt"),
	cmpopts.EquateEmpty(),
}

func TestSubmissionRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	count, err := s.SubmissionCount()
	if err != nil {
		t.Fatalf("SubmissionCount: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected 0 submissions, got %d", count)
	}

	want := testSubmission("s1", time.Now().UTC())
	if err := s.InsertSubmission(ctx, want); err != nil {
		t.Fatalf("InsertSubmission: %v", err)
	}

	got, err := s.GetSubmission("s1")
	if err != nil {
		t.Fatalf("GetSubmission: %v", err)
	}
	if diff := cmp.Diff(want, got, submissionCmp...); diff != "" {
		t.Errorf("submission mismatch (-want +got):\n%s", diff)
	}

	// Duplicate IDs are rejected.
	if err := s.InsertSubmission(ctx, want); err == nil {
		t.Error("expected error on duplicate submission ID")
	}

	_, err = s.GetSubmission("missing")
	if err != sql.ErrNoRows {
		t.Errorf("expected ErrNoRows, got %v", err)
	}
}

func TestUnansweredQuestionsStoredAsNull(t *testing.T) {
	s := newTestStore(t)
	sub := testSubmission("s1", time.Now().UTC())
	sub.Contact = nil
	sub.AssetAnswers = nil
	if err := s.InsertSubmission(context.Background(), sub); err != nil {
		t.Fatalf("InsertSubmission: %v", err)
	}

	var housing, nombre sql.NullString
	err := s.db.QueryRow(`SELECT housing, nombre FROM submissions WHERE id = ?`, "s1").Scan(&housing, &nombre)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if housing.Valid || nombre.Valid {
		t.Errorf("expected NULL columns, got housing=%v nombre=%v", housing, nombre)
	}

	got, err := s.GetSubmission("s1")
	if err != nil {
		t.Fatalf("GetSubmission: %v", err)
	}
	if got.Contact != nil {
		t.Errorf("expected nil contact, got %+v", got.Contact)
	}
	if len(got.AssetAnswers) != 0 {
		t.Errorf("expected no asset answers, got %v", got.AssetAnswers)
	}
}

func TestUnknownAnswersKept(t *testing.T) {
	s := newTestStore(t)
	sub := testSubmission("s1", time.Now().UTC())
	sub.PrimaryAnswers["extraQuestion"] = "maybe"
	if err := s.InsertSubmission(context.Background(), sub); err != nil {
		t.Fatalf("InsertSubmission: %v", err)
	}
	got, err := s.GetSubmission("s1")
	if err != nil {
		t.Fatalf("GetSubmission: %v", err)
	}
	if got.PrimaryAnswers.Get("extraQuestion") != "maybe" {
		t.Errorf("extra answer lost: %v", got.PrimaryAnswers)
	}
}

func TestListSubmissionsNewestFirst(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	for i, id := range []string{"old", "mid", "new"} {
		if err := s.InsertSubmission(ctx, testSubmission(id, base.Add(time.Duration(i)*time.Hour))); err != nil {
			t.Fatalf("InsertSubmission(%s): %v", id, err)
		}
	}

	list, err := s.ListSubmissions()
	if err != nil {
		t.Fatalf("ListSubmissions: %v", err)
	}
	var ids []string
	for _, sub := range list {
		ids = append(ids, sub.ID)
	}
	if diff := cmp.Diff([]string{"new", "mid", "old"}, ids); diff != "" {
		t.Errorf("order mismatch (-want +got):\n%s", diff)
	}
}

func TestDeliveries(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	records := []model.Delivery{
		{SubmissionID: "s1", Sink: "store", Status: model.DeliveryOK, Attempts: 1},
		{SubmissionID: "s1", Sink: "webhook", Status: model.DeliveryFailed, Attempts: 3, Error: "status 502"},
		{SubmissionID: "s2", Sink: "store", Status: model.DeliveryOK, Attempts: 1},
	}
	for _, d := range records {
		if err := s.RecordDelivery(ctx, d); err != nil {
			t.Fatalf("RecordDelivery: %v", err)
		}
	}

	got, err := s.ListDeliveries("s1")
	if err != nil {
		t.Fatalf("ListDeliveries: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 deliveries, got %d", len(got))
	}
	if got[0].Sink != "store" || got[1].Sink != "webhook" {
		t.Errorf("unexpected order: %+v", got)
	}
	if got[1].Status != model.DeliveryFailed || got[1].Attempts != 3 || got[1].Error != "status 502" {
		t.Errorf("unexpected webhook delivery: %+v", got[1])
	}
	if got[0].At.IsZero() {
		t.Error("delivery time not set")
	}
}

func TestStoreAsSink(t *testing.T) {
	s := newTestStore(t)
	if s.Name() != "store" {
		t.Errorf("Name() = %q", s.Name())
	}
	if err := s.Send(context.Background(), testSubmission("s1", time.Now().UTC())); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if n, _ := s.SubmissionCount(); n != 1 {
		t.Errorf("expected 1 submission after Send, got %d", n)
	}
}

func TestMetadata(t *testing.T) {
	s := newTestStore(t)

	v, err := s.GetMetadata("nope")
	if err != nil || v != "" {
		t.Fatalf("GetMetadata(missing) = %q, %v", v, err)
	}
	if err := s.SetMetadata("k", "v1"); err != nil {
		t.Fatal(err)
	}
	if err := s.SetMetadata("k", "v2"); err != nil {
		t.Fatal(err)
	}
	if v, _ := s.GetMetadata("k"); v != "v2" {
		t.Errorf("GetMetadata(k) = %q, want v2", v)
	}
}

func TestCheckCatalogFingerprint(t *testing.T) {
	s := newTestStore(t)

	steps := []struct {
		fp          string
		wantChanged bool
	}{
		{"aaa", false}, // first run
		{"aaa", false},
		{"bbb", true},
		{"bbb", false},
	}
	for i, st := range steps {
		changed, err := s.CheckCatalogFingerprint(st.fp)
		if err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
		if changed != st.wantChanged {
			t.Errorf("step %d: changed = %v, want %v", i, changed, st.wantChanged)
		}
	}
	if fp, _ := s.CatalogFingerprint(); fp != "bbb" {
		t.Errorf("CatalogFingerprint() = %q, want bbb", fp)
	}
}

func TestAccessSessions(t *testing.T) {
	s := newTestStore(t)

	token, err := s.CreateAccessSession(time.Hour)
	if err != nil {
		t.Fatalf("CreateAccessSession: %v", err)
	}
	sess, err := s.GetAccessSession(token)
	if err != nil || sess == nil {
		t.Fatalf("GetAccessSession = %v, %v", sess, err)
	}

	if err := s.DeleteAccessSession(token); err != nil {
		t.Fatal(err)
	}
	if sess, _ := s.GetAccessSession(token); sess != nil {
		t.Error("expected nil session after delete")
	}

	expired, err := s.CreateAccessSession(-time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	if sess, _ := s.GetAccessSession(expired); sess != nil {
		t.Error("expected nil for expired session")
	}

	if _, err := s.CreateAccessSession(-time.Minute); err != nil {
		t.Fatal(err)
	}
	if err := s.CleanupExpiredAccessSessions(); err != nil {
		t.Fatal(err)
	}
	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM access_sessions`).Scan(&n); err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Errorf("expected 0 access sessions after cleanup, got %d", n)
	}
}

func TestExportAllSubmissions(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, err := s.CheckCatalogFingerprint("fp1"); err != nil {
		t.Fatal(err)
	}
	eligible := testSubmission("e1", time.Now().UTC())
	ineligible := testSubmission("i1", time.Now().UTC().Add(time.Second))
	ineligible.Eligible = false
	ineligible.Stage = questionnaire.StagePrimaryIneligible
	ineligible.Reasons = []questionnaire.ReasonCode{questionnaire.ReasonCriminalRecord}
	ineligible.AssetAnswers = nil
	for _, sub := range []model.Submission{eligible, ineligible} {
		if err := s.InsertSubmission(ctx, sub); err != nil {
			t.Fatal(err)
		}
	}
	if err := s.RecordDelivery(ctx, model.Delivery{SubmissionID: "e1", Sink: "webhook", Status: model.DeliveryOK, Attempts: 1}); err != nil {
		t.Fatal(err)
	}

	exp, err := s.ExportAllSubmissions()
	if err != nil {
		t.Fatalf("ExportAllSubmissions: %v", err)
	}
	if exp.Total != 2 || exp.Eligible != 1 {
		t.Errorf("Total=%d Eligible=%d, want 2 and 1", exp.Total, exp.Eligible)
	}
	if exp.CatalogFingerprint != "fp1" {
		t.Errorf("CatalogFingerprint = %q", exp.CatalogFingerprint)
	}
	for _, r := range exp.Results {
		switch r.ID {
		case "e1":
			if len(r.Deliveries) != 1 {
				t.Errorf("e1 deliveries = %d, want 1", len(r.Deliveries))
			}
		case "i1":
			if diff := cmp.Diff([]questionnaire.ReasonCode{questionnaire.ReasonCriminalRecord}, r.Reasons); diff != "" {
				t.Errorf("i1 reasons (-want +got):\n%s", diff)
			}
		default:
			t.Errorf("unexpected result %q", r.ID)
		}
	}
}
