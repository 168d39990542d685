package app

import (
	"sort"

	"github.com/GuilhermeSP01/Escola-da-Biblia/internal/domain"
)

// DefaultPassThreshold is the pass percentage used when none is configured.
const DefaultPassThreshold = 66.0

// gradeAnswers checks that answers cover every question of the lesson exactly
// once and marks each one against the key. Answers come back ordered by question number.
func gradeAnswers(lesson domain.Lesson, key domain.AnswerKey, answers []domain.AnswerSubmission) ([]domain.GradedAnswer, error) {
	total := len(lesson.Questions)
	if len(answers) != total {
		return nil, domain.ErrIncompleteSubmission
	}

	seen := make(map[int]struct{}, total)
	graded := make([]domain.GradedAnswer, 0, total)
	for _, a := range answers {
		if a.QuestionNumber < 1 || a.QuestionNumber > total || a.ChosenChoice == "" {
			return nil, domain.ErrIncompleteSubmission
		}
		if _, dup := seen[a.QuestionNumber]; dup {
			return nil, domain.ErrIncompleteSubmission
		}
		seen[a.QuestionNumber] = struct{}{}

		correct, ok := key.CorrectChoices[a.QuestionNumber]
		graded = append(graded, domain.GradedAnswer{
			QuestionNumber: a.QuestionNumber,
			ChosenChoice:   a.ChosenChoice,
			IsCorrect:      ok && domain.SameChoice(correct, a.ChosenChoice),
		})
	}

	sort.Slice(graded, func(i, j int) bool { return graded[i].QuestionNumber < graded[j].QuestionNumber })
	return graded, nil
}

// Summarize derives the grade of a submission. An empty submission scores 0 and fails.
func Summarize(submission domain.Submission, passThreshold float64) domain.GradeSummary {
	summary := domain.GradeSummary{TotalCount: len(submission.Answers)}
	for _, a := range submission.Answers {
		if a.IsCorrect {
			summary.CorrectCount++
		}
	}
	if summary.TotalCount > 0 {
		summary.Percentage = 100 * float64(summary.CorrectCount) / float64(summary.TotalCount)
		summary.Passed = summary.Percentage >= passThreshold
	}
	return summary
}
