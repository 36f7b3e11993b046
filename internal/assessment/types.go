package assessment

import (
	"time"

	"studydesk/internal/progress"
)

// QuestionType is the format of a generated question.
type QuestionType string

const (
	TypeMultipleChoice QuestionType = "multiple-choice"
	TypeTrueFalse      QuestionType = "true-false"
	TypeShortAnswer    QuestionType = "short-answer"
	TypeEssay          QuestionType = "essay"
)

// QuestionTypes lists the supported types in display order.
var QuestionTypes = []QuestionType{TypeMultipleChoice, TypeTrueFalse, TypeShortAnswer, TypeEssay}

// Difficulty of an assessment. DifficultyMixed only appears in a Spec;
// every generated question carries one of the other three.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
	DifficultyMixed  Difficulty = "mixed"
)

const (
	MinQuestions = 5
	MaxQuestions = 50

	maxInstructionsLen = 2000
)

// Spec configures one generation run.
type Spec struct {
	SourceID           string         `json:"source_id"`
	QuestionTypes      []QuestionType `json:"question_types"`
	Count              int            `json:"count"`
	Difficulty         Difficulty     `json:"difficulty"`
	CustomInstructions string         `json:"custom_instructions,omitempty"`
}

// Question is a generated question. Options and CorrectAnswer are empty for
// open-ended types.
type Question struct {
	ID            string       `json:"id"`
	Type          QuestionType `json:"type"`
	Prompt        string       `json:"prompt"`
	Options       []string     `json:"options,omitempty"`
	CorrectAnswer string       `json:"correct_answer,omitempty"`
	Difficulty    Difficulty   `json:"difficulty"`
}

func (q Question) clone() Question {
	if q.Options != nil {
		q.Options = append([]string(nil), q.Options...)
	}
	return q
}

// Source is a document questions can be generated from.
type Source struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Processed bool   `json:"processed"`
}

// Assessment is a snapshot of a generation run.
type Assessment struct {
	ID         string         `json:"id"`
	SourceID   string         `json:"source_id"`
	SourceName string         `json:"source_name"`
	Spec       Spec           `json:"spec"`
	Stage      progress.Stage `json:"stage"`
	Progress   int            `json:"progress"`
	Error      string         `json:"error,omitempty"`
	Questions  []Question     `json:"questions"`
	CreatedAt  time.Time      `json:"created_at"`
}

// Ready reports whether generation finished successfully.
func (a Assessment) Ready() bool {
	return a.Stage == progress.StageCompleted
}
