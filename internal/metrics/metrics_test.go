package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/pavelanni/lsocheck/internal/questionnaire"
)

func TestQuestionnaireCompleted(t *testing.T) {
	eligibleBefore := testutil.ToFloat64(questionnairesCompleted.WithLabelValues(VerdictEligible))
	ineligibleBefore := testutil.ToFloat64(questionnairesCompleted.WithLabelValues(VerdictIneligible))
	taxBefore := testutil.ToFloat64(disqualifications.WithLabelValues(string(questionnaire.ReasonTaxSanctions)))

	QuestionnaireCompleted(questionnaire.Verdict{Eligible: true, Reasons: []questionnaire.ReasonCode{}})
	QuestionnaireCompleted(questionnaire.Verdict{Reasons: []questionnaire.ReasonCode{
		questionnaire.ReasonTaxSanctions,
		questionnaire.ReasonDishonesty,
	}})

	if got := testutil.ToFloat64(questionnairesCompleted.WithLabelValues(VerdictEligible)) - eligibleBefore; got != 1 {
		t.Errorf("eligible delta = %v, want 1", got)
	}
	if got := testutil.ToFloat64(questionnairesCompleted.WithLabelValues(VerdictIneligible)) - ineligibleBefore; got != 1 {
		t.Errorf("ineligible delta = %v, want 1", got)
	}
	if got := testutil.ToFloat64(disqualifications.WithLabelValues(string(questionnaire.ReasonTaxSanctions))) - taxBefore; got != 1 {
		t.Errorf("tax_sanctions delta = %v, want 1", got)
	}
}

func TestSubmissionDelivered(t *testing.T) {
	before := testutil.ToFloat64(submissions.WithLabelValues("webhook", "failed"))
	SubmissionDelivered("webhook", "failed", 150*time.Millisecond)
	if got := testutil.ToFloat64(submissions.WithLabelValues("webhook", "failed")) - before; got != 1 {
		t.Errorf("submissions delta = %v, want 1", got)
	}
}

func TestHandlerExposesMetrics(t *testing.T) {
	SetActiveSessions(3)
	SubmissionDelivered("store", "ok", time.Millisecond)

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body, _ := io.ReadAll(rec.Body)
	for _, want := range []string{
		"lsocheck_active_sessions 3",
		`lsocheck_submissions_total{sink="store",status="ok"}`,
		"go_goroutines",
	} {
		if !strings.Contains(string(body), want) {
			t.Errorf("metrics output missing %q", want)
		}
	}
}
