package assessment

import (
	"fmt"

	"github.com/google/uuid"
)

// bank holds question templates per type. Generated assessments cycle
// through them, so the same spec always yields the same prompts.
var bank = map[QuestionType][]Question{
	TypeMultipleChoice: {
		{
			Prompt: "What is the primary goal of machine learning?",
			Options: []string{
				"To replace human intelligence",
				"To enable computers to learn and improve from experience",
				"To create perfect algorithms",
				"To eliminate the need for data",
			},
			CorrectAnswer: "To enable computers to learn and improve from experience",
		},
		{
			Prompt: "Which data structure offers constant-time lookup by key on average?",
			Options: []string{
				"Linked list",
				"Binary search tree",
				"Hash table",
				"Stack",
			},
			CorrectAnswer: "Hash table",
		},
		{
			Prompt: "Which technique is used to reduce overfitting?",
			Options: []string{
				"Adding more layers",
				"Regularization",
				"Training for more epochs",
				"Removing the validation set",
			},
			CorrectAnswer: "Regularization",
		},
	},
	TypeTrueFalse: {
		{Prompt: "Supervised learning requires labeled training data.", Options: []string{"true", "false"}, CorrectAnswer: "true"},
		{Prompt: "A queue removes elements in last-in, first-out order.", Options: []string{"true", "false"}, CorrectAnswer: "false"},
		{Prompt: "Cross-validation helps estimate how a model generalizes.", Options: []string{"true", "false"}, CorrectAnswer: "true"},
	},
	TypeShortAnswer: {
		{Prompt: "Explain the difference between overfitting and underfitting in machine learning models."},
		{Prompt: "What is the purpose of a test set?"},
		{Prompt: "Describe when a balanced binary tree is preferable to a sorted array."},
	},
	TypeEssay: {
		{Prompt: "Discuss the trade-offs between model complexity and interpretability."},
		{Prompt: "Compare supervised and unsupervised learning, with one application of each."},
	},
}

var mixedRotation = []Difficulty{DifficultyEasy, DifficultyMedium, DifficultyHard}

// buildQuestions produces spec.Count questions, alternating between the
// requested types. The spec must already be normalized.
func buildQuestions(spec Spec) []Question {
	questions := make([]Question, 0, spec.Count)
	used := make(map[QuestionType]int, len(spec.QuestionTypes))
	for i := 0; i < spec.Count; i++ {
		qt := spec.QuestionTypes[i%len(spec.QuestionTypes)]
		templates := bank[qt]
		n := used[qt]
		used[qt]++
		q := templates[n%len(templates)].clone()
		if round := n / len(templates); round > 0 {
			q.Prompt = fmt.Sprintf("%s (variant %d)", q.Prompt, round+1)
		}
		q.ID = uuid.NewString()
		q.Type = qt
		q.Difficulty = spec.Difficulty
		if spec.Difficulty == DifficultyMixed {
			q.Difficulty = mixedRotation[i%len(mixedRotation)]
		}
		questions = append(questions, q)
	}
	return questions
}
