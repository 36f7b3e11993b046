package assessment

import (
	"fmt"
	"strings"
)

// normalize validates spec against the available sources and returns it with
// defaults applied and duplicate types dropped.
func normalize(spec Spec, sources SourceResolver) (Spec, Source, error) {
	spec.SourceID = strings.TrimSpace(spec.SourceID)
	if spec.SourceID == "" {
		return spec, Source{}, invalid("source_id", "select a document to generate questions from")
	}
	var src Source
	found := false
	if sources != nil {
		src, found = sources.Source(spec.SourceID)
	}
	if !found {
		return spec, Source{}, invalid("source_id", fmt.Sprintf("unknown document %q", spec.SourceID))
	}
	if !src.Processed {
		return spec, src, invalid("source_id", fmt.Sprintf("%s has not been processed yet", src.Name))
	}

	if len(spec.QuestionTypes) == 0 {
		return spec, src, invalid("question_types", "select at least one question type")
	}
	seen := make(map[QuestionType]struct{}, len(spec.QuestionTypes))
	types := make([]QuestionType, 0, len(spec.QuestionTypes))
	for _, qt := range spec.QuestionTypes {
		if _, ok := bank[qt]; !ok {
			return spec, src, invalid("question_types", fmt.Sprintf("unknown question type %q", qt))
		}
		if _, dup := seen[qt]; dup {
			continue
		}
		seen[qt] = struct{}{}
		types = append(types, qt)
	}
	spec.QuestionTypes = types

	if spec.Count < MinQuestions || spec.Count > MaxQuestions {
		return spec, src, invalid("count", fmt.Sprintf("must be between %d and %d, got %d", MinQuestions, MaxQuestions, spec.Count))
	}

	switch spec.Difficulty {
	case "":
		spec.Difficulty = DifficultyMedium
	case DifficultyEasy, DifficultyMedium, DifficultyHard, DifficultyMixed:
	default:
		return spec, src, invalid("difficulty", fmt.Sprintf("unknown difficulty %q", spec.Difficulty))
	}

	spec.CustomInstructions = strings.TrimSpace(spec.CustomInstructions)
	if len(spec.CustomInstructions) > maxInstructionsLen {
		return spec, src, invalid("custom_instructions", fmt.Sprintf("longer than %d characters", maxInstructionsLen))
	}
	return spec, src, nil
}
