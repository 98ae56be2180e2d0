package domain

import (
	"time"
)

// PaperKind distinguishes clinical papers from situational-judgement papers.
type PaperKind string

const (
	PaperClinical PaperKind = "clinical"
	PaperSJT      PaperKind = "sjt"
)

// Valid reports whether k is a known paper kind.
func (k PaperKind) Valid() bool {
	return k == PaperClinical || k == PaperSJT
}

// QuestionType selects the input widget and the scoring rule.
type QuestionType string

const (
	TypeBestChoice QuestionType = "best_choice"
	TypeRanking    QuestionType = "ranking"
)

// Question styles. EMQ and SBA are cosmetic and both score as best choice.
const (
	StyleEMQ        = "EMQ"
	StyleSBA        = "SBA"
	StyleRanking    = "ranking"
	StyleBestChoice = "best_choice"
)

// OptionLabels is the ordered alphabet clinical options are labelled from.
var OptionLabels = []string{"A", "B", "C", "D", "E", "F", "G", "H"}

// NoSelection is how an unanswered clinical question is encoded on the wire.
const NoSelection = "NA"

// Option is one lettered clinical option.
type Option struct {
	Label string `json:"label" bson:"label" yaml:"label" validate:"required,oneof=A B C D E F G H"`
	Text  string `json:"text" bson:"text" yaml:"text" validate:"required"`
}

// Response is a tagged union: a single choice for best-choice questions, an
// ordered list for ranking questions. The zero value of either branch means
// "no selection".
type Response struct {
	Type    QuestionType `json:"type" bson:"type" yaml:"type"`
	Choice  string       `json:"choice,omitempty" bson:"choice,omitempty" yaml:"choice,omitempty"`
	Ranking []string     `json:"ranking,omitempty" bson:"ranking,omitempty" yaml:"ranking,omitempty"`
}

// BestChoice builds a best-choice response.
func BestChoice(choice string) Response {
	return Response{Type: TypeBestChoice, Choice: choice}
}

// Ranked builds a ranking response.
func Ranked(order ...string) Response {
	return Response{Type: TypeRanking, Ranking: order}
}

// Empty reports whether the response carries no selection.
func (r Response) Empty() bool {
	switch r.Type {
	case TypeRanking:
		return len(r.Ranking) == 0
	default:
		return r.Choice == ""
	}
}

// Equal compares two responses by their tagged value.
func (r Response) Equal(other Response) bool {
	if r.Type != other.Type {
		return false
	}
	if r.Type != TypeRanking {
		return r.Choice == other.Choice
	}
	if len(r.Ranking) != len(other.Ranking) {
		return false
	}
	for i := range r.Ranking {
		if r.Ranking[i] != other.Ranking[i] {
			return false
		}
	}
	return true
}

// Question belongs to exactly one paper. Clinical questions carry Options,
// SJT questions carry Choices; Answer is the key.
type Question struct {
	ID          ID       `json:"id" bson:"_id" yaml:"-"`
	Prompt      string   `json:"question" bson:"question" yaml:"question" validate:"required"`
	Style       string   `json:"style" bson:"style" yaml:"style" validate:"required,oneof=EMQ SBA ranking best_choice"`
	Options     []Option `json:"options,omitempty" bson:"options,omitempty" yaml:"options,omitempty" validate:"dive"`
	Choices     []string `json:"choices,omitempty" bson:"choices,omitempty" yaml:"choices,omitempty" validate:"dive,required"`
	Answer      Response `json:"answer" bson:"answer" yaml:"answer"`
	Explanation string   `json:"explanation,omitempty" bson:"explanation,omitempty" yaml:"explanation,omitempty"`
}

// Type derives the scoring type from the style.
func (q Question) Type() QuestionType {
	if q.Style == StyleRanking {
		return TypeRanking
	}
	return TypeBestChoice
}

// Accepts reports whether choice is one the question offers.
func (q Question) Accepts(choice string) bool {
	if len(q.Options) > 0 {
		for _, opt := range q.Options {
			if opt.Label == choice {
				return true
			}
		}
		return false
	}
	for _, c := range q.Choices {
		if c == choice {
			return true
		}
	}
	return false
}

// IsPermutation reports whether order ranks every choice exactly once.
func (q Question) IsPermutation(order []string) bool {
	if len(order) != len(q.Choices) {
		return false
	}
	seen := make(map[string]int, len(q.Choices))
	for _, c := range q.Choices {
		seen[c]++
	}
	for _, c := range order {
		if seen[c] == 0 {
			return false
		}
		seen[c]--
	}
	return true
}

// Public returns the question without its key and explanation.
func (q Question) Public() Question {
	q.Answer = Response{Type: q.Type()}
	q.Explanation = ""
	return q
}

// Paper is an ordered, immutable collection of questions with a time limit.
type Paper struct {
	ID          ID         `json:"id" bson:"_id" yaml:"-"`
	Kind        PaperKind  `json:"kind" bson:"kind" yaml:"kind" validate:"required,oneof=clinical sjt"`
	Title       string     `json:"title" bson:"title" yaml:"title" validate:"required"`
	Description string     `json:"paperDescription" bson:"paperDescription" yaml:"paperDescription" validate:"required"`
	Subject     string     `json:"subject,omitempty" bson:"subject,omitempty" yaml:"subject,omitempty"`
	TimeLimit   int        `json:"timeLimit" bson:"timeLimit" yaml:"timeLimit" validate:"gt=0"`
	Questions   []Question `json:"questions" bson:"questions" yaml:"questions" validate:"required,min=1,dive"`
	CreatedAt   time.Time  `json:"createdAt" bson:"createdAt" yaml:"-"`
}

// TimeLimitSeconds is the countdown a timed session starts from.
func (p Paper) TimeLimitSeconds() int {
	return p.TimeLimit * 60
}

// QuestionIndex maps question ids to their position.
func (p Paper) QuestionIndex() map[ID]int {
	idx := make(map[ID]int, len(p.Questions))
	for i, q := range p.Questions {
		idx[q.ID] = i
	}
	return idx
}

// Public strips keys and explanations so the paper can be sent before submission.
func (p Paper) Public() Paper {
	questions := make([]Question, len(p.Questions))
	for i, q := range p.Questions {
		questions[i] = q.Public()
	}
	p.Questions = questions
	return p
}

// AssignIDs fills missing paper and question ids.
func (p *Paper) AssignIDs() {
	if p.ID.IsZero() {
		p.ID = NewID()
	}
	for i := range p.Questions {
		if p.Questions[i].ID.IsZero() {
			p.Questions[i].ID = NewID()
		}
	}
}

// PaperSummary is the listing view of a paper.
type PaperSummary struct {
	ID            ID        `json:"id"`
	Kind          PaperKind `json:"kind"`
	Title         string    `json:"title"`
	Description   string    `json:"paperDescription"`
	Subject       string    `json:"subject,omitempty"`
	TimeLimit     int       `json:"timeLimit"`
	QuestionCount int       `json:"questionCount"`
	CreatedAt     time.Time `json:"createdAt"`
}

// Summary projects a paper to its listing view.
func (p Paper) Summary() PaperSummary {
	return PaperSummary{
		ID:            p.ID,
		Kind:          p.Kind,
		Title:         p.Title,
		Description:   p.Description,
		Subject:       p.Subject,
		TimeLimit:     p.TimeLimit,
		QuestionCount: len(p.Questions),
		CreatedAt:     p.CreatedAt,
	}
}

// PaperQuery filters the catalog listing.
type PaperQuery struct {
	Kind    PaperKind
	Search  string
	Subject string
	Sort    string // createdAt, title or timeLimit
	Asc     bool
	Page    int
	Limit   int
}

// QuestionResponse is one question's entry in an answer record.
type QuestionResponse struct {
	QuestionID ID       `json:"questionId" bson:"questionId"`
	Response   Response `json:"response" bson:"response"`
	IsCorrect  bool     `json:"isCorrect" bson:"isCorrect"`
	Marks      int      `json:"marks" bson:"marks"`
	MaxMarks   int      `json:"maxMarks" bson:"maxMarks"`
}

// AnswerRecord is the persisted outcome of one user's one attempt at one paper.
type AnswerRecord struct {
	ID              ID                 `json:"id" bson:"_id"`
	Kind            PaperKind          `json:"kind" bson:"kind"`
	UserID          ID                 `json:"user" bson:"user"`
	PaperID         ID                 `json:"paper" bson:"paper"`
	Answers         []QuestionResponse `json:"answers" bson:"answers"`
	Score           int                `json:"score" bson:"score"`
	MaxScore        int                `json:"maxScore" bson:"maxScore"`
	PercentageScore int                `json:"percentageScore" bson:"percentageScore"`
	TimeTaken       int                `json:"timeTaken" bson:"timeTaken"`
	CompletedAt     time.Time          `json:"completedAt" bson:"completedAt"`
	CreatedAt       time.Time          `json:"createdAt" bson:"createdAt"`
}

// Reply is owned by its parent comment and has no identity of its own.
type Reply struct {
	UserID    ID        `json:"userId" bson:"userId"`
	Text      string    `json:"text" bson:"text"`
	CreatedAt time.Time `json:"createdAt" bson:"createdAt"`
}

// Comment is a forum post with embedded replies.
type Comment struct {
	ID        ID        `json:"id" bson:"_id"`
	UserID    ID        `json:"userId" bson:"userId"`
	Text      string    `json:"text" bson:"text"`
	Replies   []Reply   `json:"replies" bson:"replies"`
	CreatedAt time.Time `json:"createdAt" bson:"createdAt"`
}
