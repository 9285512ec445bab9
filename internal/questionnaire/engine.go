package questionnaire

// Track names one of the two question sequences.
type Track string

const (
	TrackPrimary Track = "primary"
	TrackAsset   Track = "asset"
)

// Stage is the session lifecycle. It only moves forward, except through Reset.
type Stage string

const (
	StagePrimaryInProgress   Stage = "primary-in-progress"
	StagePrimaryIneligible   Stage = "primary-complete-ineligible"
	StageSecondaryInProgress Stage = "secondary-in-progress"
	StageSecondaryComplete   Stage = "secondary-complete"
)

// Terminal reports whether no further questions will be asked.
func (s Stage) Terminal() bool {
	return s == StagePrimaryIneligible || s == StageSecondaryComplete
}

// Engine walks one user through the primary track and, when eligible, the
// asset track. It is not safe for concurrent use.
type Engine struct {
	primary   Catalog
	asset     Catalog
	assetNext func(pos int, a Answers) int

	stage          Stage
	pos            int
	primaryAnswers Answers
	assetAnswers   Answers
}

// New returns an engine over the built-in catalogs.
func New() *Engine {
	return NewWithCatalogs(PrimaryCatalog(), AssetCatalog(), NextAssetPosition)
}

// NewWithCatalogs returns an engine over custom catalogs. assetNext is the
// asset-track transition function; nil means linear traversal.
func NewWithCatalogs(primary, asset Catalog, assetNext func(pos int, a Answers) int) *Engine {
	if assetNext == nil {
		n := asset.Len()
		assetNext = func(pos int, _ Answers) int { return NextPrimaryPosition(pos, n) }
	}
	e := &Engine{primary: primary, asset: asset, assetNext: assetNext}
	e.Reset()
	return e
}

// Stage returns the current lifecycle stage.
func (e *Engine) Stage() Stage { return e.stage }

// Track returns the active track.
func (e *Engine) Track() Track {
	if e.stage == StageSecondaryInProgress || e.stage == StageSecondaryComplete {
		return TrackAsset
	}
	return TrackPrimary
}

// Position returns the cursor into the active track. It equals Total once
// the track is exhausted.
func (e *Engine) Position() int { return e.pos }

// Total returns the number of questions in the active track.
func (e *Engine) Total() int { return e.catalog().Len() }

func (e *Engine) catalog() Catalog {
	if e.Track() == TrackAsset {
		return e.asset
	}
	return e.primary
}

func (e *Engine) answers() Answers {
	if e.Track() == TrackAsset {
		return e.assetAnswers
	}
	return e.primaryAnswers
}

// CurrentQuestion returns the question at the current position.
func (e *Engine) CurrentQuestion() (Question, error) {
	return e.catalog().At(e.pos)
}

// RecordAnswer stores value under the current question's ID in the active
// answer set.
func (e *Engine) RecordAnswer(value string) error {
	q, err := e.CurrentQuestion()
	if err != nil {
		return err
	}
	e.answers()[q.ID] = value
	return nil
}

// Answer returns the stored value for id in the active track.
func (e *Engine) Answer(id string) (string, bool) {
	v, ok := e.answers()[id]
	return v, ok
}

// CurrentAnswer returns the value stored for the current question, or "".
func (e *Engine) CurrentAnswer() string {
	q, err := e.CurrentQuestion()
	if err != nil {
		return ""
	}
	return e.answers().Get(q.ID)
}

// NextPosition returns where Advance would move from the current position,
// ignoring validation.
func (e *Engine) NextPosition() int {
	if e.Track() == TrackAsset {
		return e.assetNext(e.pos, e.assetAnswers)
	}
	return NextPrimaryPosition(e.pos, e.primary.Len())
}

// IsLastStep reports whether the next Advance exhausts the active track.
func (e *Engine) IsLastStep() bool {
	return !e.stage.Terminal() && e.NextPosition() >= e.Total()
}

// Advance validates the current answer and moves forward. Exhausting the
// primary track evaluates eligibility; exhausting the asset track completes
// the session.
func (e *Engine) Advance() error {
	q, err := e.CurrentQuestion()
	if err != nil {
		return err
	}
	if q.Required && !e.answers().Has(q.ID) {
		return &ValidationError{QuestionID: q.ID}
	}

	next := e.NextPosition()
	if next < e.Total() {
		e.pos = next
		return nil
	}

	e.pos = e.Total()
	switch e.stage {
	case StagePrimaryInProgress:
		if Evaluate(e.primaryAnswers).Eligible {
			e.stage = StageSecondaryInProgress
			e.pos = 0
		} else {
			e.stage = StagePrimaryIneligible
		}
	case StageSecondaryInProgress:
		e.stage = StageSecondaryComplete
	}
	return nil
}

// Retreat moves back one position, floored at 0. It never leaves the
// active track and does nothing once the session is terminal.
func (e *Engine) Retreat() {
	if e.stage.Terminal() {
		return
	}
	if e.pos > 0 {
		e.pos--
	}
}

// ResetTrack clears the active track's position and answers.
func (e *Engine) ResetTrack() {
	if e.stage.Terminal() {
		return
	}
	e.pos = 0
	if e.Track() == TrackAsset {
		e.assetAnswers = Answers{}
	} else {
		e.primaryAnswers = Answers{}
	}
}

// Reset returns the whole session to its initial state.
func (e *Engine) Reset() {
	e.stage = StagePrimaryInProgress
	e.pos = 0
	e.primaryAnswers = Answers{}
	e.assetAnswers = Answers{}
}

// Verdict evaluates the primary answers.
func (e *Engine) Verdict() Verdict {
	return Evaluate(e.primaryAnswers)
}

// PrimaryAnswers returns a copy of the primary answers.
func (e *Engine) PrimaryAnswers() Answers { return e.primaryAnswers.Clone() }

// AssetAnswers returns a copy of the asset answers.
func (e *Engine) AssetAnswers() Answers { return e.assetAnswers.Clone() }

// ReachableAssetAnswers returns the asset answers on the path the skip
// logic takes from the first asset question. Answers left behind after the
// user went back and changed an earlier choice are dropped.
func (e *Engine) ReachableAssetAnswers() Answers {
	out := Answers{}
	n := e.asset.Len()
	for pos, steps := 0, 0; pos >= 0 && pos < n && steps < n; steps++ {
		q, _ := e.asset.At(pos)
		v, ok := e.assetAnswers[q.ID]
		if !ok {
			break
		}
		out[q.ID] = v
		pos = e.assetNext(pos, e.assetAnswers)
	}
	return out
}

// Progress returns completion of the active track in percent. The asset
// track is an add-on and always reports 100.
func (e *Engine) Progress() int {
	if e.Track() == TrackAsset || e.stage.Terminal() {
		return 100
	}
	if e.primary.Len() == 0 {
		return 0
	}
	return e.pos * 100 / e.primary.Len()
}

// Snapshot is a read-only view of the engine for presentation layers.
type Snapshot struct {
	Stage     Stage      `json:"stage"`
	Track     Track      `json:"track"`
	Position  int        `json:"position"`
	Total     int        `json:"total"`
	Progress  int        `json:"progress"`
	LastStep  bool       `json:"last_step"`
	Question  *Question  `json:"question,omitempty"`
	Answer    string     `json:"answer,omitempty"`
	Verdict   *Verdict   `json:"verdict,omitempty"`
	Documents []Document `json:"documents,omitempty"`
}

// Snapshot captures the current state. The verdict is included once the
// primary track is done; documents once the asset track is done.
func (e *Engine) Snapshot() Snapshot {
	s := Snapshot{
		Stage:    e.stage,
		Track:    e.Track(),
		Position: e.pos,
		Total:    e.Total(),
		Progress: e.Progress(),
		LastStep: e.IsLastStep(),
	}
	if q, err := e.CurrentQuestion(); err == nil {
		s.Question = &q
		s.Answer = e.answers().Get(q.ID)
	}
	if e.stage != StagePrimaryInProgress {
		v := e.Verdict()
		s.Verdict = &v
	}
	if e.stage == StageSecondaryComplete {
		s.Documents = RequiredDocuments(e.ReachableAssetAnswers())
	}
	return s
}
