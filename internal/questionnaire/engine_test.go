package questionnaire

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

// firstChoice answers the current question with its first choice value.
func firstChoice(t *testing.T, e *Engine) {
	t.Helper()
	q, err := e.CurrentQuestion()
	if err != nil {
		t.Fatalf("CurrentQuestion: %v", err)
	}
	if err := e.RecordAnswer(q.Choices[0].Value); err != nil {
		t.Fatalf("RecordAnswer: %v", err)
	}
}

// answerAndAdvance records value for the current question and advances.
func answerAndAdvance(t *testing.T, e *Engine, value string) {
	t.Helper()
	if err := e.RecordAnswer(value); err != nil {
		t.Fatalf("RecordAnswer(%q): %v", value, err)
	}
	if err := e.Advance(); err != nil {
		t.Fatalf("Advance after %q: %v", value, err)
	}
}

// completePrimary walks the primary track using answers, filling the
// non-rule questions with their first choice.
func completePrimary(t *testing.T, e *Engine, answers Answers) {
	t.Helper()
	for e.Stage() == StagePrimaryInProgress {
		q, err := e.CurrentQuestion()
		if err != nil {
			t.Fatalf("CurrentQuestion: %v", err)
		}
		v, ok := answers[q.ID]
		if !ok {
			v = q.Choices[0].Value
		}
		answerAndAdvance(t, e, v)
	}
}

func TestCatalogs(t *testing.T) {
	primary := PrimaryCatalog()
	if primary.Len() != 9 {
		t.Fatalf("primary catalog has %d questions, want 9", primary.Len())
	}
	asset := AssetCatalog()
	if asset.Len() != 4 {
		t.Fatalf("asset catalog has %d questions, want 4", asset.Len())
	}

	wantAsset := []string{QHousing, QVehicles, QVehiclePayment, QVehicleValue}
	for i, id := range wantAsset {
		q, err := asset.At(i)
		if err != nil {
			t.Fatalf("At(%d): %v", i, err)
		}
		if q.ID != id {
			t.Errorf("asset[%d].ID = %q, want %q", i, q.ID, id)
		}
	}

	for _, c := range []Catalog{primary, asset} {
		seen := map[string]bool{}
		for i := 0; i < c.Len(); i++ {
			q, _ := c.At(i)
			if seen[q.ID] {
				t.Errorf("%s: duplicate id %q", c.Name(), q.ID)
			}
			seen[q.ID] = true
			if len(q.Choices) == 0 {
				t.Errorf("%s: question %q has no choices", c.Name(), q.ID)
			}
		}
	}

	var oor *OutOfRangeError
	if _, err := primary.At(9); !errors.As(err, &oor) {
		t.Errorf("At(9) error = %v, want OutOfRangeError", err)
	}
	if _, err := primary.At(-1); !errors.As(err, &oor) {
		t.Errorf("At(-1) error = %v, want OutOfRangeError", err)
	}
	if primary.Fingerprint() == asset.Fingerprint() {
		t.Error("catalog fingerprints should differ")
	}
	if primary.Fingerprint() != PrimaryCatalog().Fingerprint() {
		t.Error("fingerprint should be stable")
	}
}

func TestCatalogAtReturnsCopy(t *testing.T) {
	c := PrimaryCatalog()
	q, err := c.At(0)
	if err != nil {
		t.Fatal(err)
	}
	want := q.Choices[0]
	q.Choices[0] = Choice{Label: "changed", Value: "changed"}

	again, _ := c.At(0)
	if again.Choices[0] != want {
		t.Errorf("catalog choice changed through a returned question: %+v", again.Choices[0])
	}

	e := New()
	snap := e.Snapshot()
	snap.Question.Choices[0].Value = "changed"
	if q, _ := e.CurrentQuestion(); q.Choices[0] != want {
		t.Errorf("catalog choice changed through a snapshot: %+v", q.Choices[0])
	}
}

func TestAdvanceRequiresAnswer(t *testing.T) {
	e := New()
	for e.Stage() == StagePrimaryInProgress {
		q, _ := e.CurrentQuestion()
		pos := e.Position()

		err := e.Advance()
		var verr *ValidationError
		if !errors.As(err, &verr) {
			t.Fatalf("question %q: Advance error = %v, want ValidationError", q.ID, err)
		}
		if verr.QuestionID != q.ID {
			t.Errorf("ValidationError.QuestionID = %q, want %q", verr.QuestionID, q.ID)
		}
		if e.Position() != pos {
			t.Fatalf("question %q: position moved from %d to %d", q.ID, pos, e.Position())
		}

		v := q.Choices[0].Value
		if q.ID == QMultipleCreditors || q.ID == QHonesty {
			v = Yes
		}
		if q.ID == QPreviousLSO {
			v = No
		}
		answerAndAdvance(t, e, v)
	}

	if e.Stage() != StageSecondaryInProgress {
		t.Fatalf("stage = %q, want %q", e.Stage(), StageSecondaryInProgress)
	}
	for e.Stage() == StageSecondaryInProgress {
		pos := e.Position()
		var verr *ValidationError
		if err := e.Advance(); !errors.As(err, &verr) {
			t.Fatalf("asset position %d: Advance error = %v, want ValidationError", pos, err)
		}
		if e.Position() != pos {
			t.Fatalf("asset position moved from %d to %d", pos, e.Position())
		}
		firstChoice(t, e)
		if err := e.Advance(); err != nil {
			t.Fatalf("Advance: %v", err)
		}
	}
}

func TestEmptyAnswerDoesNotSatisfyRequired(t *testing.T) {
	e := New()
	if err := e.RecordAnswer(""); err != nil {
		t.Fatalf("RecordAnswer: %v", err)
	}
	var verr *ValidationError
	if err := e.Advance(); !errors.As(err, &verr) {
		t.Errorf("Advance error = %v, want ValidationError", err)
	}
}

func TestOptionalQuestionAdvancesUnanswered(t *testing.T) {
	primary := NewCatalog("primary", []Question{
		{ID: "note", Kind: KindText},
		{ID: QMultipleCreditors, Kind: KindRadio, Choices: []Choice{{"yes", Yes}}, Required: true},
	})
	e := NewWithCatalogs(primary, NewCatalog("asset", nil), nil)
	if err := e.Advance(); err != nil {
		t.Fatalf("Advance on optional question: %v", err)
	}
	if e.Position() != 1 {
		t.Errorf("position = %d, want 1", e.Position())
	}
}

func TestRecordAnswerReadBack(t *testing.T) {
	e := New()
	for e.Stage() == StagePrimaryInProgress {
		q, _ := e.CurrentQuestion()
		for _, c := range q.Choices {
			if err := e.RecordAnswer(c.Value); err != nil {
				t.Fatalf("RecordAnswer: %v", err)
			}
			got, ok := e.Answer(q.ID)
			if !ok || got != c.Value {
				t.Errorf("Answer(%q) = %q, %v; want %q", q.ID, got, ok, c.Value)
			}
			if e.CurrentAnswer() != c.Value {
				t.Errorf("CurrentAnswer() = %q, want %q", e.CurrentAnswer(), c.Value)
			}
		}
		v, ok := eligibleAnswers()[q.ID]
		if !ok {
			v = q.Choices[0].Value
		}
		answerAndAdvance(t, e, v)
	}
}

func TestAnswerSetsAreSeparate(t *testing.T) {
	e := New()
	completePrimary(t, e, eligibleAnswers())
	if e.Track() != TrackAsset {
		t.Fatalf("track = %q, want asset", e.Track())
	}
	if _, ok := e.Answer(QMultipleCreditors); ok {
		t.Error("asset track should not see primary answers")
	}
	answerAndAdvance(t, e, Yes)

	if got := e.PrimaryAnswers().Get(QMultipleCreditors); got != Yes {
		t.Errorf("primary multipleCreditors = %q, want yes", got)
	}
	if _, ok := e.PrimaryAnswers()[QHousing]; ok {
		t.Error("asset answer leaked into primary answers")
	}
	if got := e.AssetAnswers().Get(QHousing); got != Yes {
		t.Errorf("asset housing = %q, want yes", got)
	}

	// Copies must not alias engine state.
	e.AssetAnswers()[QHousing] = No
	if got := e.AssetAnswers().Get(QHousing); got != Yes {
		t.Errorf("AssetAnswers returned an alias: housing = %q", got)
	}
}

func TestPrimaryIneligible(t *testing.T) {
	e := New()
	a := eligibleAnswers()
	a[QMultipleCreditors] = No
	completePrimary(t, e, a)

	if e.Stage() != StagePrimaryIneligible {
		t.Fatalf("stage = %q, want %q", e.Stage(), StagePrimaryIneligible)
	}
	if e.Position() != e.Total() {
		t.Errorf("position = %d, want exhausted %d", e.Position(), e.Total())
	}
	want := Verdict{Eligible: false, Reasons: []ReasonCode{ReasonMultipleCreditors}}
	if diff := cmp.Diff(want, e.Verdict()); diff != "" {
		t.Errorf("verdict mismatch (-want +got):\n%s", diff)
	}

	var oor *OutOfRangeError
	if _, err := e.CurrentQuestion(); !errors.As(err, &oor) {
		t.Errorf("CurrentQuestion error = %v, want OutOfRangeError", err)
	}
	if err := e.Advance(); !errors.As(err, &oor) {
		t.Errorf("Advance error = %v, want OutOfRangeError", err)
	}
	e.Retreat()
	if e.Stage() != StagePrimaryIneligible || e.Position() != e.Total() {
		t.Error("Retreat must not reopen a terminal stage")
	}
}

func TestEligibleSwitchesToAssetTrack(t *testing.T) {
	e := New()
	completePrimary(t, e, eligibleAnswers())

	if e.Stage() != StageSecondaryInProgress {
		t.Fatalf("stage = %q, want %q", e.Stage(), StageSecondaryInProgress)
	}
	if e.Position() != 0 {
		t.Errorf("position = %d, want 0", e.Position())
	}
	q, err := e.CurrentQuestion()
	if err != nil {
		t.Fatalf("CurrentQuestion: %v", err)
	}
	if q.ID != QHousing {
		t.Errorf("first asset question = %q, want housing", q.ID)
	}
	if e.Total() != 4 {
		t.Errorf("Total() = %d, want 4", e.Total())
	}
}

func TestAssetTraversalWithoutVehicle(t *testing.T) {
	e := New()
	completePrimary(t, e, eligibleAnswers())

	visited := []int{e.Position()}
	answerAndAdvance(t, e, No) // housing
	visited = append(visited, e.Position())
	if !e.IsLastStep() {
		t.Error("vehicles=unanswered should already look like the last step")
	}
	answerAndAdvance(t, e, No) // vehicles
	visited = append(visited, e.Position())

	end := AssetCatalog().Len()
	if diff := cmp.Diff([]int{0, 1, end}, visited); diff != "" {
		t.Errorf("visited positions mismatch (-want +got):\n%s", diff)
	}
	if e.Stage() != StageSecondaryComplete {
		t.Errorf("stage = %q, want %q", e.Stage(), StageSecondaryComplete)
	}
	if _, ok := e.AssetAnswers()[QVehiclePayment]; ok {
		t.Error("vehiclePayment must never be asked")
	}
}

func TestAssetTraversalWithVehicle(t *testing.T) {
	e := New()
	completePrimary(t, e, eligibleAnswers())

	visited := []int{e.Position()}
	for _, v := range []string{Yes, Yes, "financed", "3k-15k"} {
		answerAndAdvance(t, e, v)
		visited = append(visited, e.Position())
	}
	if diff := cmp.Diff([]int{0, 1, 2, 3, 4}, visited); diff != "" {
		t.Errorf("visited positions mismatch (-want +got):\n%s", diff)
	}
	if e.Stage() != StageSecondaryComplete {
		t.Errorf("stage = %q, want %q", e.Stage(), StageSecondaryComplete)
	}
}

func TestReachableAssetAnswers(t *testing.T) {
	e := New()
	completePrimary(t, e, eligibleAnswers())
	for _, v := range []string{Yes, Yes, "financed"} {
		answerAndAdvance(t, e, v)
	}
	if got := e.ReachableAssetAnswers(); len(got) != 3 {
		t.Fatalf("reachable answers mid-track = %v", got)
	}

	// Go back to the vehicles question and change it to no.
	e.Retreat()
	e.Retreat()
	if err := e.RecordAnswer(No); err != nil {
		t.Fatal(err)
	}
	if err := e.Advance(); err != nil {
		t.Fatal(err)
	}
	if e.Stage() != StageSecondaryComplete {
		t.Fatalf("stage = %q, want %q", e.Stage(), StageSecondaryComplete)
	}

	want := Answers{QHousing: Yes, QVehicles: No}
	if diff := cmp.Diff(want, e.ReachableAssetAnswers()); diff != "" {
		t.Errorf("reachable answers mismatch (-want +got):\n%s", diff)
	}
	if _, ok := e.AssetAnswers()[QVehiclePayment]; !ok {
		t.Error("engine should still hold the abandoned vehiclePayment answer")
	}
	for _, d := range e.Snapshot().Documents {
		if d == DocVehicleRegistration {
			t.Error("vehicle registration listed for a user without vehicles")
		}
	}
}

func TestRetreat(t *testing.T) {
	e := New()
	e.Retreat()
	if e.Position() != 0 {
		t.Fatalf("Retreat at 0 moved to %d", e.Position())
	}

	firstChoice(t, e)
	if err := e.Advance(); err != nil {
		t.Fatal(err)
	}
	firstChoice(t, e)
	if err := e.Advance(); err != nil {
		t.Fatal(err)
	}
	e.Retreat()
	if e.Position() != 1 {
		t.Errorf("position = %d, want 1", e.Position())
	}
	// Downstream answers stay as they were.
	if got, _ := e.Answer(QDebtAmount); got == "" {
		t.Error("retreat should keep recorded answers")
	}

	// Retreat never leaves the asset track.
	completePrimary(t, e, eligibleAnswers())
	e.Retreat()
	if e.Track() != TrackAsset || e.Position() != 0 {
		t.Errorf("after Retreat at asset 0: track %q position %d", e.Track(), e.Position())
	}
}

func TestResetTrack(t *testing.T) {
	e := New()
	completePrimary(t, e, eligibleAnswers())
	answerAndAdvance(t, e, Yes)

	e.ResetTrack()
	if e.Position() != 0 || len(e.AssetAnswers()) != 0 {
		t.Errorf("asset track not reset: position %d answers %v", e.Position(), e.AssetAnswers())
	}
	if len(e.PrimaryAnswers()) == 0 {
		t.Error("ResetTrack on asset track cleared primary answers")
	}
	if e.Stage() != StageSecondaryInProgress {
		t.Errorf("stage = %q, want %q", e.Stage(), StageSecondaryInProgress)
	}
}

func TestFullReset(t *testing.T) {
	e := New()
	completePrimary(t, e, eligibleAnswers())
	answerAndAdvance(t, e, No)
	answerAndAdvance(t, e, No)
	if e.Stage() != StageSecondaryComplete {
		t.Fatalf("stage = %q, want %q", e.Stage(), StageSecondaryComplete)
	}

	e.Reset()
	if e.Stage() != StagePrimaryInProgress {
		t.Errorf("stage = %q, want %q", e.Stage(), StagePrimaryInProgress)
	}
	if e.Track() != TrackPrimary || e.Position() != 0 {
		t.Errorf("track %q position %d, want primary 0", e.Track(), e.Position())
	}
	if diff := cmp.Diff(Answers{}, e.PrimaryAnswers()); diff != "" {
		t.Errorf("primary answers not empty: %s", diff)
	}
	if diff := cmp.Diff(Answers{}, e.AssetAnswers()); diff != "" {
		t.Errorf("asset answers not empty: %s", diff)
	}
}

func TestVerdictTracksAnswerChanges(t *testing.T) {
	e := New()
	completePrimary(t, e, eligibleAnswers())
	if !e.Verdict().Eligible {
		t.Fatal("expected eligible")
	}
	e.Reset()
	a := eligibleAnswers()
	a[QReckless] = Yes
	completePrimary(t, e, a)
	if e.Verdict().Eligible {
		t.Error("verdict should be recomputed after answers changed")
	}
}

func TestEmptyCatalog(t *testing.T) {
	e := NewWithCatalogs(NewCatalog("primary", nil), NewCatalog("asset", nil), nil)
	var oor *OutOfRangeError
	if _, err := e.CurrentQuestion(); !errors.As(err, &oor) {
		t.Errorf("CurrentQuestion error = %v, want OutOfRangeError", err)
	}
	if err := e.RecordAnswer("x"); !errors.As(err, &oor) {
		t.Errorf("RecordAnswer error = %v, want OutOfRangeError", err)
	}
	if e.Progress() != 0 {
		t.Errorf("Progress() = %d, want 0", e.Progress())
	}
}

func TestSnapshot(t *testing.T) {
	e := New()
	s := e.Snapshot()
	if s.Question == nil || s.Question.ID != QDebtType {
		t.Fatalf("snapshot question = %+v, want debtType", s.Question)
	}
	if s.Verdict != nil {
		t.Error("verdict should be hidden while the primary track is open")
	}
	if s.Progress != 0 || s.LastStep {
		t.Errorf("progress %d last %v, want 0 false", s.Progress, s.LastStep)
	}

	completePrimary(t, e, eligibleAnswers())
	answerAndAdvance(t, e, Yes)
	answerAndAdvance(t, e, No)
	s = e.Snapshot()
	if s.Stage != StageSecondaryComplete || s.Question != nil {
		t.Errorf("unexpected snapshot %+v", s)
	}
	if s.Verdict == nil || !s.Verdict.Eligible {
		t.Errorf("snapshot verdict = %+v, want eligible", s.Verdict)
	}
	want := []Document{DocID, DocPayslips, DocBankStatements, DocCreditorList, DocPropertyDeeds}
	if diff := cmp.Diff(want, s.Documents); diff != "" {
		t.Errorf("documents mismatch (-want +got):\n%s", diff)
	}
}
