package questionnaire

// ReasonCode identifies a disqualification rule. Display text is looked up
// by code in the i18n bundle.
type ReasonCode string

const (
	ReasonMultipleCreditors  ReasonCode = "multiple_creditors"
	ReasonRecentPriorRelief  ReasonCode = "recent_prior_relief"
	ReasonCriminalRecord     ReasonCode = "criminal_record"
	ReasonTaxSanctions       ReasonCode = "tax_sanctions"
	ReasonCulpableInsolvency ReasonCode = "culpable_insolvency"
	ReasonRecklessDebt       ReasonCode = "reckless_debt"
	ReasonDishonesty         ReasonCode = "dishonesty"
)

// Verdict is the eligibility result derived from the primary answers.
type Verdict struct {
	Eligible bool         `json:"eligible"`
	Reasons  []ReasonCode `json:"reasons"`
}

// Rule disqualifies when Fires returns true.
type Rule struct {
	Code  ReasonCode
	Fires func(Answers) bool
}

// Rules is the fixed rule list in declaration order. Evaluate reports
// reasons in this order.
var Rules = []Rule{
	{ReasonMultipleCreditors, func(a Answers) bool { return a.Get(QMultipleCreditors) != Yes }},
	{ReasonRecentPriorRelief, func(a Answers) bool {
		v := a.Get(QPreviousLSO)
		return v == PriorReliefDischarge || v == PriorReliefPlan
	}},
	{ReasonCriminalRecord, answered(QCriminalRecord, Yes)},
	{ReasonTaxSanctions, answered(QTaxSanctions, Yes)},
	{ReasonCulpableInsolvency, answered(QBankruptcyHistory, Yes)},
	{ReasonRecklessDebt, answered(QReckless, Yes)},
	{ReasonDishonesty, answered(QHonesty, No)},
}

func answered(id, value string) func(Answers) bool {
	return func(a Answers) bool { return a.Get(id) == value }
}

// Evaluate applies every rule to the primary answers and collects all that
// fire. It is pure; equal inputs give equal verdicts.
func Evaluate(a Answers) Verdict {
	v := Verdict{Eligible: true, Reasons: []ReasonCode{}}
	for _, r := range Rules {
		if r.Fires(a) {
			v.Eligible = false
			v.Reasons = append(v.Reasons, r.Code)
		}
	}
	return v
}

// Document identifies an item of the checklist handed to eligible clients.
type Document string

const (
	DocID                  Document = "doc_id"
	DocPayslips            Document = "doc_payslips"
	DocBankStatements      Document = "doc_bank_statements"
	DocCreditorList        Document = "doc_creditor_list"
	DocPropertyDeeds       Document = "doc_property_deeds"
	DocVehicleRegistration Document = "doc_vehicle_registration"
)

// RequiredDocuments returns the documentation checklist for the asset
// answers. Deeds and vehicle papers are only listed for declared assets.
func RequiredDocuments(assets Answers) []Document {
	docs := []Document{DocID, DocPayslips, DocBankStatements, DocCreditorList}
	if assets.Get(QHousing) == Yes {
		docs = append(docs, DocPropertyDeeds)
	}
	if assets.Get(QVehicles) == Yes {
		docs = append(docs, DocVehicleRegistration)
	}
	return docs
}
