package app_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GuilhermeSP01/Escola-da-Biblia/internal/app"
	"github.com/GuilhermeSP01/Escola-da-Biblia/internal/domain"
)

func TestCreateLessonRequiresCohort(t *testing.T) {
	f := newFixture(t)
	_, err := f.lessons.CreateLesson(context.Background(), app.CreateLessonInput{CohortID: "missing", Number: 1, Title: "Aula 1"})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestCreateLessonValidatesInput(t *testing.T) {
	f := newFixture(t)
	cohort := f.openCohort(t, "A")

	cases := map[string]app.CreateLessonInput{
		"missing title":  {CohortID: cohort.ID, Number: 1},
		"zero number":    {CohortID: cohort.ID, Title: "Aula"},
		"bad video url":  {CohortID: cohort.ID, Number: 1, Title: "Aula", VideoURL: "not a url"},
		"missing cohort": {Number: 1, Title: "Aula"},
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := f.lessons.CreateLesson(context.Background(), in)
			assert.ErrorIs(t, err, domain.ErrInvalidInput)
		})
	}
}

func TestListLessonsSeesMutationsThroughCatalog(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	cohort := f.openCohort(t, "A")
	second := f.seedLesson(t, cohort.ID, 2, "a")

	lessons, err := f.lessons.ListLessons(ctx, cohort.ID)
	require.NoError(t, err)
	require.Len(t, lessons, 1)

	first := f.seedLesson(t, cohort.ID, 1, "b", "c")
	lessons, err = f.lessons.ListLessons(ctx, cohort.ID)
	require.NoError(t, err)
	require.Len(t, lessons, 2)
	assert.Equal(t, first.ID, lessons[0].ID)
	assert.Equal(t, second.ID, lessons[1].ID)

	_, err = f.lessons.ReplaceQuestions(ctx, second.ID, []domain.Question{
		{Prompt: "Nova", Choices: []string{"x", "y"}},
		{Prompt: "Outra", Choices: []string{"x", "y"}},
	})
	require.NoError(t, err)
	lessons, err = f.lessons.ListLessons(ctx, cohort.ID)
	require.NoError(t, err)
	assert.Len(t, lessons[1].Questions, 2)
	assert.Equal(t, "Nova", lessons[1].Questions[0].Prompt)
}

func TestReplaceQuestionsRejectsEmptyChoices(t *testing.T) {
	f := newFixture(t)
	cohort := f.openCohort(t, "A")
	lesson := f.seedLesson(t, cohort.ID, 1, "a")

	_, err := f.lessons.ReplaceQuestions(context.Background(), lesson.ID, []domain.Question{{Prompt: "Sem opções"}})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = f.lessons.ReplaceQuestions(context.Background(), "missing", nil)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestUpsertAnswerKeyKeepsSingleKey(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	cohort := f.openCohort(t, "A")
	lesson := f.seedLesson(t, cohort.ID, 1, "a", "b")

	before, err := f.lessons.GetAnswerKey(ctx, lesson.ID)
	require.NoError(t, err)

	after, err := f.lessons.UpsertAnswerKey(ctx, lesson.ID, map[int]string{1: "c", 2: "c"})
	require.NoError(t, err)
	assert.Equal(t, before.ID, after.ID)
	assert.Equal(t, 1, f.store.AnswerKeyCount(lesson.ID))

	stored, err := f.lessons.GetAnswerKey(ctx, lesson.ID)
	require.NoError(t, err)
	assert.Equal(t, map[int]string{1: "c", 2: "c"}, stored.CorrectChoices)
}

func TestUpsertAnswerKeyValidation(t *testing.T) {
	f := newFixture(t)
	cohort := f.openCohort(t, "A")
	lesson := f.seedLesson(t, cohort.ID, 1, "a")

	_, err := f.lessons.UpsertAnswerKey(context.Background(), lesson.ID, map[int]string{0: "a"})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	_, err = f.lessons.UpsertAnswerKey(context.Background(), lesson.ID, map[int]string{1: ""})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	_, err = f.lessons.UpsertAnswerKey(context.Background(), "missing", map[int]string{1: "a"})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestGetAnswerKeyMissing(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	cohort := f.openCohort(t, "A")
	lesson, err := f.lessons.CreateLesson(ctx, app.CreateLessonInput{CohortID: cohort.ID, Number: 1, Title: "Aula"})
	require.NoError(t, err)

	_, err = f.lessons.GetAnswerKey(ctx, lesson.ID)
	assert.ErrorIs(t, err, domain.ErrAnswerKeyMissing)
}
