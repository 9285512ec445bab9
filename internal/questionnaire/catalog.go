package questionnaire

import (
	"crypto/sha256"
	"encoding/hex"
	"slices"
)

// Kind is the input style of a question.
type Kind string

const (
	// KindSelect is a single selection from a dropdown list.
	KindSelect Kind = "select"
	// KindRadio is a single exclusive choice.
	KindRadio Kind = "radio"
	// KindText is free text.
	KindText Kind = "text"
)

// Question IDs of the primary eligibility track.
const (
	QDebtType          = "debtType"
	QDebtAmount        = "debtAmount"
	QMultipleCreditors = "multipleCreditors"
	QPreviousLSO       = "previousLSO5Years"
	QCriminalRecord    = "criminalRecord"
	QTaxSanctions      = "taxSanctions"
	QBankruptcyHistory = "bankruptcyHistory"
	QReckless          = "reckless"
	QHonesty           = "honesty"
)

// Question IDs of the asset track.
const (
	QHousing        = "housing"
	QVehicles       = "vehicles"
	QVehiclePayment = "vehiclePayment"
	QVehicleValue   = "vehicleValue"
)

// Sentinel answer values tested by the eligibility rules and skip logic.
const (
	Yes = "yes"
	No  = "no"

	PriorReliefDischarge = "yes-5" // exoneration within the last 5 years
	PriorReliefPlan      = "yes-3" // payment plan within the last 3 years
)

// Choice is one selectable option of a question.
type Choice struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// Question is a single prompt in a track.
type Question struct {
	ID          string   `json:"id"`
	Prompt      string   `json:"prompt"`
	Description string   `json:"description,omitempty"`
	Kind        Kind     `json:"kind"`
	Choices     []Choice `json:"choices,omitempty"`
	Required    bool     `json:"required"`
}

// HasChoice reports whether value is one of the question's choice values.
// Free-text questions accept any value.
func (q Question) HasChoice(value string) bool {
	if q.Kind == KindText {
		return true
	}
	for _, c := range q.Choices {
		if c.Value == value {
			return true
		}
	}
	return false
}

// Catalog is a read-only ordered sequence of questions.
type Catalog struct {
	name      string
	questions []Question
}

// Name returns the track name of the catalog.
func (c Catalog) Name() string { return c.name }

// Len returns the number of questions.
func (c Catalog) Len() int { return len(c.questions) }

// At returns a copy of the question at index i.
func (c Catalog) At(i int) (Question, error) {
	if i < 0 || i >= len(c.questions) {
		return Question{}, &OutOfRangeError{Track: c.name, Index: i, Len: len(c.questions)}
	}
	q := c.questions[i]
	q.Choices = slices.Clone(q.Choices)
	return q, nil
}

// Fingerprint hashes question IDs and choice values. Stored submissions are
// keyed by these, so a changed fingerprint means the catalog drifted.
func (c Catalog) Fingerprint() string {
	h := sha256.New()
	for _, q := range c.questions {
		h.Write([]byte(q.ID))
		h.Write([]byte{0})
		for _, ch := range q.Choices {
			h.Write([]byte(ch.Value))
			h.Write([]byte{0})
		}
		h.Write([]byte{1})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// PrimaryCatalog returns the eligibility questions in traversal order.
func PrimaryCatalog() Catalog {
	return Catalog{name: string(TrackPrimary), questions: primaryQuestions}
}

// AssetCatalog returns the asset questions in traversal order.
func AssetCatalog() Catalog {
	return Catalog{name: string(TrackAsset), questions: assetQuestions}
}

var primaryQuestions = []Question{
	{
		ID:          QDebtType,
		Prompt:      "1. ¿Cuál es tu tipo de deuda principal?",
		Description: "Selecciona la categoría que mejor describe tu situación",
		Kind:        KindSelect,
		Choices: []Choice{
			{"Tarjetas de crédito/revolving", "tarjetas"},
			{"Préstamos bancarios", "prestamos"},
			{"Hipoteca", "hipoteca"},
			{"Deudas de negocio (autónomo)", "autonomo"},
			{"Deudas públicas (Hacienda, SS)", "publicas"},
			{"Mixto (varias tipos)", "mixto"},
		},
		Required: true,
	},
	{
		ID:          QDebtAmount,
		Prompt:      "2. ¿Cuál es tu deuda total aproximada?",
		Description: "Incluye todas tus deudas sin importar el tipo",
		Kind:        KindSelect,
		Choices: []Choice{
			{"Menos de 10.000 €", "menos-10k"},
			{"10.000 € - 30.000 €", "10k-30k"},
			{"30.000 € - 50.000 €", "30k-50k"},
			{"50.000 € - 100.000 €", "50k-100k"},
			{"Más de 100.000 €", "mas-100k"},
		},
		Required: true,
	},
	{
		ID:          QMultipleCreditors,
		Prompt:      "3. ¿Tienes deudas con dos o más acreedores?",
		Description: "Requisito esencial: mínimo 2 acreedores diferentes",
		Kind:        KindRadio,
		Choices: []Choice{
			{"Sí, tengo 2 o más acreedores", Yes},
			{"No, solo con un acreedor", No},
		},
		Required: true,
	},
	{
		ID:          QPreviousLSO,
		Prompt:      "4. ¿Te has acogido a la Segunda Oportunidad en los últimos 5 años con exoneración?",
		Description: "Si obtuviste exoneración de deudas, no puedes volver a solicitarlo en 5 años (o 3 si fue mediante plan de pagos)",
		Kind:        KindRadio,
		Choices: []Choice{
			{"Sí, me acogí hace menos de 5 años con exoneración", PriorReliefDischarge},
			{"Sí, me acogí hace menos de 3 años con plan de pagos", PriorReliefPlan},
			{"No, es mi primera vez", No},
		},
		Required: true,
	},
	{
		ID:          QCriminalRecord,
		Prompt:      "5.1 ¿Has sido condenado en los últimos 10 años por delitos patrimoniales o contra el orden socioeconómico?",
		Description: "Incluye: falsedad documental, fraude a Hacienda, incumplimiento de obligaciones laborales, etc.",
		Kind:        KindRadio,
		Choices: []Choice{
			{"No, no tengo antecedentes penales", No},
			{"Sí, he sido condenado", Yes},
		},
		Required: true,
	},
	{
		ID:          QTaxSanctions,
		Prompt:      "5.2 ¿Has sido sancionado en los últimos 10 años por infracciones tributarias muy graves, de seguridad social u orden social?",
		Description: "Sanciones por Hacienda, Seguridad Social u organismos laborales",
		Kind:        KindRadio,
		Choices: []Choice{
			{"No, no tengo sanciones graves", No},
			{"Sí, he sido sancionado", Yes},
		},
		Required: true,
	},
	{
		ID:          QBankruptcyHistory,
		Prompt:      "5.3 ¿Has sido declarado persona afectada por calificación culpable en otro concurso en los últimos 10 años?",
		Description: "Hace referencia a insolvencias anteriores declaradas con culpa",
		Kind:        KindRadio,
		Choices: []Choice{
			{"No, no tengo antecedentes de insolvencia", No},
			{"Sí, he tenido concurso culpable", Yes},
		},
		Required: true,
	},
	{
		ID:          QReckless,
		Prompt:      "5.4 ¿Tuviste comportamiento temerario o negligente al contraer tus deudas?",
		Description: "Por ejemplo: endeudamiento irresponsable, gastos excesivos sin ingresos para pagarlos, etc.",
		Kind:        KindRadio,
		Choices: []Choice{
			{"No, fui responsable al contraer mis deudas", No},
			{"Sí, cometí excesos en el endeudamiento", Yes},
		},
		Required: true,
	},
	{
		ID:          QHonesty,
		Prompt:      "5.5 & 5.6 ¿Has actuado con honestidad y transparencia?",
		Description: "Confirma que no has proporcionado información falsa ni ocultado bienes",
		Kind:        KindRadio,
		Choices: []Choice{
			{"Sí, actuaré con total transparencia", Yes},
			{"No, he ocultado información", No},
		},
		Required: true,
	},
}

var assetQuestions = []Question{
	{
		ID:          QHousing,
		Prompt:      "¿Tienes vivienda en propiedad?",
		Description: "Indica si posees una vivienda a tu nombre o en copropiedad",
		Kind:        KindRadio,
		Choices: []Choice{
			{"Sí, tengo vivienda en propiedad", Yes},
			{"No, no tengo vivienda propia", No},
		},
		Required: true,
	},
	{
		ID:          QVehicles,
		Prompt:      "¿Tienes vehículos a tu nombre?",
		Description: "Incluye coches, motos, o cualquier vehículo motorizado",
		Kind:        KindRadio,
		Choices: []Choice{
			{"Sí, tengo uno o más vehículos", Yes},
			{"No, no tengo vehículos", No},
		},
		Required: true,
	},
	{
		ID:          QVehiclePayment,
		Prompt:      "¿El vehículo está pagado o lo tienes financiado?",
		Description: "Si tienes vehículo, indica su situación financiera",
		Kind:        KindRadio,
		Choices: []Choice{
			{"Completamente pagado", "paid"},
			{"Financiado (con cuota mensual)", "financed"},
			{"Leasing o renting", "leasing"},
		},
		Required: true,
	},
	{
		ID:          QVehicleValue,
		Prompt:      "¿Cuál es el valor aproximado de tu vehículo?",
		Description: "Valor de mercado actual del vehículo",
		Kind:        KindSelect,
		Choices: []Choice{
			{"Menos de 3.000 €", "menos-3k"},
			{"3.000 € - 15.000 €", "3k-15k"},
			{"15.000 € - 30.000 €", "15k-30k"},
			{"Más de 30.000 €", "mas-30k"},
		},
		Required: true,
	},
}

// NewCatalog builds a catalog from questions. The slice is not copied.
func NewCatalog(name string, questions []Question) Catalog {
	return Catalog{name: name, questions: questions}
}
