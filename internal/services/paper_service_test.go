package services

import (
	"context"
	"errors"
	"testing"

	"github.com/learnsphere/exam-service/internal/events"
	"github.com/learnsphere/exam-service/internal/models"
	"github.com/learnsphere/exam-service/internal/validator"
)

func newPaperFixture() (*fakeRepository, PaperService, *events.MockEventPublisher) {
	repo := newFakeRepository()
	publisher := events.NewMockEventPublisher(testLogger())
	service := NewPaperService(repo, nil, testLogger(), validator.New(), publisher)
	return repo, service, publisher
}

func TestGeneratePaperDrawsExactCounts(t *testing.T) {
	repo, service, publisher := newPaperFixture()
	scope := models.Scope{ClientID: "acme", UserID: "instructor-1"}
	exam := seedExam(repo, scope, "course-1", nil)

	for i := 0; i < 3; i++ {
		seedBankQuestion(repo, scope, "course-1", models.DifficultyEasy, 1)
		seedBankQuestion(repo, scope, "course-1", models.DifficultyMedium, 2)
	}
	seedBankQuestion(repo, scope, "course-1", models.DifficultyHard, 5)

	result, err := service.GeneratePaper(context.Background(), scope, exam.ID, &GeneratePaperRequest{
		EasyCount:   2,
		MediumCount: 2,
		HardCount:   1,
	})
	if err != nil {
		t.Fatalf("GeneratePaper failed: %v", err)
	}

	if result.QuestionCount != 5 {
		t.Errorf("expected 5 questions, got %d", result.QuestionCount)
	}
	if result.Drawn[models.DifficultyEasy] != 2 ||
		result.Drawn[models.DifficultyMedium] != 2 ||
		result.Drawn[models.DifficultyHard] != 1 {
		t.Errorf("unexpected draw counts: %v", result.Drawn)
	}
	if result.TotalPoints != 1+1+2+2+5 {
		t.Errorf("expected 11 total points, got %d", result.TotalPoints)
	}

	paper, err := service.GetPaper(context.Background(), scope, exam.ID)
	if err != nil {
		t.Fatalf("GetPaper failed: %v", err)
	}
	for i, row := range paper {
		if row.Sequence != i+1 {
			t.Errorf("expected sequence %d at position %d, got %d", i+1, i, row.Sequence)
		}
	}

	published := publisher.GetPublishedEvents()
	if len(published) != 1 {
		t.Fatalf("expected 1 event, got %d", len(published))
	}
	event := published[0]
	if event.Type != events.EventPaperGenerated {
		t.Errorf("expected event type %s, got %s", events.EventPaperGenerated, event.Type)
	}
	if event.Source != "exam-service" {
		t.Errorf("expected source exam-service, got %s", event.Source)
	}
	data := event.Data.(map[string]interface{})
	if data["exam_id"] != exam.ID {
		t.Errorf("expected exam_id %s in event data, got %v", exam.ID, data["exam_id"])
	}
}

func TestGeneratePaperInsufficientPoolFailsWhole(t *testing.T) {
	repo, service, publisher := newPaperFixture()
	scope := models.Scope{ClientID: "acme", UserID: "instructor-1"}
	exam := seedExam(repo, scope, "course-1", nil)

	seedBankQuestion(repo, scope, "course-1", models.DifficultyEasy, 1)
	seedBankQuestion(repo, scope, "course-1", models.DifficultyEasy, 1)
	seedBankQuestion(repo, scope, "course-1", models.DifficultyHard, 5)

	_, err := service.GeneratePaper(context.Background(), scope, exam.ID, &GeneratePaperRequest{
		EasyCount: 2,
		HardCount: 3,
	})

	var poolErr *InsufficientPoolError
	if !errors.As(err, &poolErr) {
		t.Fatalf("expected InsufficientPoolError, got %v", err)
	}
	if poolErr.Difficulty != models.DifficultyHard {
		t.Errorf("expected short bucket HARD, got %s", poolErr.Difficulty)
	}
	if poolErr.Requested != 3 || poolErr.Available != 1 {
		t.Errorf("expected requested=3 available=1, got requested=%d available=%d", poolErr.Requested, poolErr.Available)
	}

	count, err := service.Count(context.Background(), scope, exam.ID)
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if count != 0 {
		t.Errorf("expected untouched paper after failed generation, got %d rows", count)
	}
	if len(publisher.GetPublishedEvents()) != 0 {
		t.Error("no event should be published for a failed generation")
	}
}

func TestGeneratePaperExcludesExistingQuestions(t *testing.T) {
	repo, service, _ := newPaperFixture()
	scope := models.Scope{ClientID: "acme", UserID: "instructor-1"}
	exam := seedExam(repo, scope, "course-1", nil)

	onPaper1 := seedBankQuestion(repo, scope, "course-1", models.DifficultyEasy, 1)
	onPaper2 := seedBankQuestion(repo, scope, "course-1", models.DifficultyEasy, 1)
	remaining := seedBankQuestion(repo, scope, "course-1", models.DifficultyEasy, 1)
	seedPaperRow(repo, scope, exam.ID, onPaper1, 1)
	seedPaperRow(repo, scope, exam.ID, onPaper2, 2)

	result, err := service.GeneratePaper(context.Background(), scope, exam.ID, &GeneratePaperRequest{
		EasyCount: 1,
	})
	if err != nil {
		t.Fatalf("GeneratePaper failed: %v", err)
	}

	if result.QuestionCount != 3 {
		t.Errorf("expected 3 questions after append, got %d", result.QuestionCount)
	}
	if len(result.Questions) != 1 {
		t.Fatalf("expected 1 generated row, got %d", len(result.Questions))
	}
	row := result.Questions[0]
	if row.QuestionID != remaining.ID {
		t.Errorf("expected the unused bank entry %s, got %s", remaining.ID, row.QuestionID)
	}
	if row.Sequence != 3 {
		t.Errorf("expected appended sequence 3, got %d", row.Sequence)
	}
}

func TestGeneratePaperClearExisting(t *testing.T) {
	repo, service, _ := newPaperFixture()
	scope := models.Scope{ClientID: "acme", UserID: "instructor-1"}
	exam := seedExam(repo, scope, "course-1", nil)

	old := seedBankQuestion(repo, scope, "course-1", models.DifficultyHard, 5)
	seedPaperRow(repo, scope, exam.ID, old, 1)
	seedBankQuestion(repo, scope, "course-1", models.DifficultyEasy, 1)
	seedBankQuestion(repo, scope, "course-1", models.DifficultyEasy, 1)

	result, err := service.GeneratePaper(context.Background(), scope, exam.ID, &GeneratePaperRequest{
		EasyCount:     2,
		ClearExisting: true,
	})
	if err != nil {
		t.Fatalf("GeneratePaper failed: %v", err)
	}

	if result.QuestionCount != 2 {
		t.Errorf("expected 2 questions after clearing, got %d", result.QuestionCount)
	}
	paper, _ := service.GetPaper(context.Background(), scope, exam.ID)
	for _, row := range paper {
		if row.QuestionID == old.ID {
			t.Error("cleared question survived regeneration")
		}
	}
}

func TestGeneratePaperWholePoolDraw(t *testing.T) {
	repo, service, _ := newPaperFixture()
	scope := models.Scope{ClientID: "acme", UserID: "instructor-1"}
	exam := seedExam(repo, scope, "course-1", nil)

	seedBankQuestion(repo, scope, "course-1", models.DifficultyEasy, 1)
	seedBankQuestion(repo, scope, "course-1", models.DifficultyMedium, 2)
	seedBankQuestion(repo, scope, "course-1", models.DifficultyHard, 5)

	result, err := service.GeneratePaper(context.Background(), scope, exam.ID, &GeneratePaperRequest{
		NumberOfQuestions: 3,
	})
	if err != nil {
		t.Fatalf("GeneratePaper failed: %v", err)
	}

	if result.QuestionCount != 3 {
		t.Errorf("expected 3 questions, got %d", result.QuestionCount)
	}
	if result.Drawn[models.DifficultyEasy] != 1 ||
		result.Drawn[models.DifficultyMedium] != 1 ||
		result.Drawn[models.DifficultyHard] != 1 {
		t.Errorf("expected one draw per difficulty, got %v", result.Drawn)
	}

	_, err = service.GeneratePaper(context.Background(), scope, exam.ID, &GeneratePaperRequest{
		NumberOfQuestions: 2,
		ClearExisting:     true,
	})
	var poolErr *InsufficientPoolError
	if errors.As(err, &poolErr) {
		t.Fatalf("expected the whole pool to cover 2 questions, got %v", err)
	}
	if err != nil {
		t.Fatalf("GeneratePaper failed: %v", err)
	}
}

func TestGeneratePaperWholePoolInsufficient(t *testing.T) {
	repo, service, _ := newPaperFixture()
	scope := models.Scope{ClientID: "acme", UserID: "instructor-1"}
	exam := seedExam(repo, scope, "course-1", nil)

	seedBankQuestion(repo, scope, "course-1", models.DifficultyEasy, 1)

	_, err := service.GeneratePaper(context.Background(), scope, exam.ID, &GeneratePaperRequest{
		NumberOfQuestions: 2,
	})

	var poolErr *InsufficientPoolError
	if !errors.As(err, &poolErr) {
		t.Fatalf("expected InsufficientPoolError, got %v", err)
	}
	if poolErr.Difficulty != "" {
		t.Errorf("whole-pool shortfall should carry no difficulty, got %s", poolErr.Difficulty)
	}
	if poolErr.Requested != 2 || poolErr.Available != 1 {
		t.Errorf("expected requested=2 available=1, got requested=%d available=%d", poolErr.Requested, poolErr.Available)
	}
}

func TestGeneratePaperFiltersByQuestionType(t *testing.T) {
	repo, service, _ := newPaperFixture()
	scope := models.Scope{ClientID: "acme", UserID: "instructor-1"}
	exam := seedExam(repo, scope, "course-1", nil)

	seedBankQuestion(repo, scope, "course-1", models.DifficultyMedium, 2)
	mcq := seedMcqQuestion(repo, scope, "course-1", []models.Option{
		{ID: "a", Text: "Yes", IsCorrect: true},
		{ID: "b", Text: "No"},
	})

	result, err := service.GeneratePaper(context.Background(), scope, exam.ID, &GeneratePaperRequest{
		MediumCount:   1,
		QuestionTypes: []models.QuestionType{models.QuestionTypeMultipleChoice},
	})
	if err != nil {
		t.Fatalf("GeneratePaper failed: %v", err)
	}
	if len(result.Questions) != 1 || result.Questions[0].QuestionID != mcq.ID {
		t.Fatalf("expected only the multiple choice entry, got %+v", result.Questions)
	}

	// The short answer entry is the only MEDIUM left; the type filter
	// must keep it out of the pool.
	_, err = service.GeneratePaper(context.Background(), scope, exam.ID, &GeneratePaperRequest{
		MediumCount:   2,
		QuestionTypes: []models.QuestionType{models.QuestionTypeMultipleChoice},
		ClearExisting: true,
	})
	var poolErr *InsufficientPoolError
	if !errors.As(err, &poolErr) {
		t.Fatalf("expected InsufficientPoolError, got %v", err)
	}
	if poolErr.Available != 1 {
		t.Errorf("expected 1 available after type filter, got %d", poolErr.Available)
	}
}

func TestGeneratePaperRejectsMixedDrawModes(t *testing.T) {
	repo, service, _ := newPaperFixture()
	scope := models.Scope{ClientID: "acme", UserID: "instructor-1"}
	exam := seedExam(repo, scope, "course-1", nil)
	seedBankQuestion(repo, scope, "course-1", models.DifficultyEasy, 1)

	_, err := service.GeneratePaper(context.Background(), scope, exam.ID, &GeneratePaperRequest{
		EasyCount:         1,
		NumberOfQuestions: 1,
	})

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		t.Fatalf("expected validation errors, got %v", err)
	}
}

func TestGeneratePaperRandomizeOverride(t *testing.T) {
	repo, service, _ := newPaperFixture()
	scope := models.Scope{ClientID: "acme", UserID: "instructor-1"}
	exam := seedExam(repo, scope, "course-1", func(e *models.Exam) {
		e.RandomizeQuestions = true
	})

	q1 := seedBankQuestion(repo, scope, "course-1", models.DifficultyEasy, 1)
	q2 := seedBankQuestion(repo, scope, "course-1", models.DifficultyEasy, 1)
	q3 := seedBankQuestion(repo, scope, "course-1", models.DifficultyEasy, 1)

	off := false
	result, err := service.GeneratePaper(context.Background(), scope, exam.ID, &GeneratePaperRequest{
		EasyCount: 3,
		Randomize: &off,
	})
	if err != nil {
		t.Fatalf("GeneratePaper failed: %v", err)
	}

	// With randomization forced off the draw is creation order.
	want := []string{q1.ID, q2.ID, q3.ID}
	for i, row := range result.Questions {
		if row.QuestionID != want[i] {
			t.Errorf("position %d: expected %s, got %s", i, want[i], row.QuestionID)
		}
	}
	if repo.lastPoolCriteria == nil || repo.lastPoolCriteria.Randomize {
		t.Errorf("expected the request to override the exam's randomization, got %+v", repo.lastPoolCriteria)
	}
}

func TestGeneratePaperRejectsZeroCounts(t *testing.T) {
	repo, service, _ := newPaperFixture()
	scope := models.Scope{ClientID: "acme", UserID: "instructor-1"}
	exam := seedExam(repo, scope, "course-1", nil)

	_, err := service.GeneratePaper(context.Background(), scope, exam.ID, &GeneratePaperRequest{})

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		t.Fatalf("expected validation errors, got %v", err)
	}
}

func TestGeneratePaperNotOwner(t *testing.T) {
	repo, service, _ := newPaperFixture()
	owner := models.Scope{ClientID: "acme", UserID: "instructor-1"}
	other := models.Scope{ClientID: "acme", UserID: "instructor-2"}
	exam := seedExam(repo, owner, "course-1", nil)
	seedBankQuestion(repo, owner, "course-1", models.DifficultyEasy, 1)

	_, err := service.GeneratePaper(context.Background(), other, exam.ID, &GeneratePaperRequest{EasyCount: 1})

	if !IsPermissionError(err) {
		t.Fatalf("expected permission error, got %v", err)
	}
}

func TestAddQuestionsSkipsDuplicates(t *testing.T) {
	repo, service, _ := newPaperFixture()
	scope := models.Scope{ClientID: "acme", UserID: "instructor-1"}
	exam := seedExam(repo, scope, "course-1", nil)

	existing := seedBankQuestion(repo, scope, "course-1", models.DifficultyEasy, 1)
	fresh := seedBankQuestion(repo, scope, "course-1", models.DifficultyEasy, 1)
	seedPaperRow(repo, scope, exam.ID, existing, 1)

	added, err := service.AddQuestions(context.Background(), scope, exam.ID, &AddQuestionsRequest{
		QuestionIDs: []string{existing.ID, fresh.ID},
	})
	if err != nil {
		t.Fatalf("AddQuestions failed: %v", err)
	}

	if len(added) != 1 {
		t.Fatalf("expected 1 added row, got %d", len(added))
	}
	if added[0].QuestionID != fresh.ID {
		t.Errorf("expected %s to be added, got %s", fresh.ID, added[0].QuestionID)
	}
	if added[0].Sequence != 2 {
		t.Errorf("expected sequence 2, got %d", added[0].Sequence)
	}
}

func TestAddQuestionAlreadyOnPaperReturnsExistingRow(t *testing.T) {
	repo, service, _ := newPaperFixture()
	scope := models.Scope{ClientID: "acme", UserID: "instructor-1"}
	exam := seedExam(repo, scope, "course-1", nil)

	entry := seedBankQuestion(repo, scope, "course-1", models.DifficultyEasy, 1)
	seedPaperRow(repo, scope, exam.ID, entry, 1)

	row, err := service.AddQuestion(context.Background(), scope, exam.ID, entry.ID)
	if err != nil {
		t.Fatalf("AddQuestion failed: %v", err)
	}
	if row.Sequence != 1 {
		t.Errorf("expected the existing row at sequence 1, got %d", row.Sequence)
	}

	count, _ := service.Count(context.Background(), scope, exam.ID)
	if count != 1 {
		t.Errorf("expected paper to stay at 1 row, got %d", count)
	}
}

func TestAddQuestionsRejectsWrongCourse(t *testing.T) {
	repo, service, _ := newPaperFixture()
	scope := models.Scope{ClientID: "acme", UserID: "instructor-1"}
	exam := seedExam(repo, scope, "course-1", nil)
	foreign := seedBankQuestion(repo, scope, "course-2", models.DifficultyEasy, 1)

	_, err := service.AddQuestions(context.Background(), scope, exam.ID, &AddQuestionsRequest{
		QuestionIDs: []string{foreign.ID},
	})

	if !IsBusinessRuleError(err) {
		t.Fatalf("expected business rule error, got %v", err)
	}
}

func TestReorderAppliesNewSequences(t *testing.T) {
	repo, service, _ := newPaperFixture()
	scope := models.Scope{ClientID: "acme", UserID: "instructor-1"}
	exam := seedExam(repo, scope, "course-1", nil)

	q1 := seedBankQuestion(repo, scope, "course-1", models.DifficultyEasy, 1)
	q2 := seedBankQuestion(repo, scope, "course-1", models.DifficultyEasy, 1)
	q3 := seedBankQuestion(repo, scope, "course-1", models.DifficultyEasy, 1)
	seedPaperRow(repo, scope, exam.ID, q1, 1)
	seedPaperRow(repo, scope, exam.ID, q2, 2)
	seedPaperRow(repo, scope, exam.ID, q3, 3)

	err := service.Reorder(context.Background(), scope, exam.ID, &ReorderRequest{
		QuestionIDs: []string{q3.ID, q1.ID, q2.ID},
	})
	if err != nil {
		t.Fatalf("Reorder failed: %v", err)
	}

	paper, _ := service.GetPaper(context.Background(), scope, exam.ID)
	want := []string{q3.ID, q1.ID, q2.ID}
	for i, row := range paper {
		if row.QuestionID != want[i] {
			t.Errorf("position %d: expected %s, got %s", i, want[i], row.QuestionID)
		}
		if row.Sequence != i+1 {
			t.Errorf("position %d: expected sequence %d, got %d", i, i+1, row.Sequence)
		}
	}
}

func TestReorderRejectsBadPermutations(t *testing.T) {
	repo, service, _ := newPaperFixture()
	scope := models.Scope{ClientID: "acme", UserID: "instructor-1"}
	exam := seedExam(repo, scope, "course-1", nil)

	q1 := seedBankQuestion(repo, scope, "course-1", models.DifficultyEasy, 1)
	q2 := seedBankQuestion(repo, scope, "course-1", models.DifficultyEasy, 1)
	seedPaperRow(repo, scope, exam.ID, q1, 1)
	seedPaperRow(repo, scope, exam.ID, q2, 2)

	tests := []struct {
		name string
		ids  []string
	}{
		{name: "partial order", ids: []string{q1.ID}},
		{name: "unknown question", ids: []string{q1.ID, "missing-id"}},
		{name: "duplicate question", ids: []string{q1.ID, q1.ID}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := service.Reorder(context.Background(), scope, exam.ID, &ReorderRequest{QuestionIDs: tt.ids})
			if !IsBusinessRuleError(err) {
				t.Fatalf("expected business rule error, got %v", err)
			}
		})
	}
}

func TestRemoveQuestionCompactsSequences(t *testing.T) {
	repo, service, _ := newPaperFixture()
	scope := models.Scope{ClientID: "acme", UserID: "instructor-1"}
	exam := seedExam(repo, scope, "course-1", nil)

	q1 := seedBankQuestion(repo, scope, "course-1", models.DifficultyEasy, 1)
	q2 := seedBankQuestion(repo, scope, "course-1", models.DifficultyEasy, 1)
	q3 := seedBankQuestion(repo, scope, "course-1", models.DifficultyEasy, 1)
	seedPaperRow(repo, scope, exam.ID, q1, 1)
	seedPaperRow(repo, scope, exam.ID, q2, 2)
	seedPaperRow(repo, scope, exam.ID, q3, 3)

	if err := service.RemoveQuestion(context.Background(), scope, exam.ID, q2.ID); err != nil {
		t.Fatalf("RemoveQuestion failed: %v", err)
	}

	paper, _ := service.GetPaper(context.Background(), scope, exam.ID)
	if len(paper) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(paper))
	}
	if paper[0].QuestionID != q1.ID || paper[0].Sequence != 1 {
		t.Errorf("expected %s at sequence 1, got %s at %d", q1.ID, paper[0].QuestionID, paper[0].Sequence)
	}
	if paper[1].QuestionID != q3.ID || paper[1].Sequence != 2 {
		t.Errorf("expected %s at sequence 2, got %s at %d", q3.ID, paper[1].QuestionID, paper[1].Sequence)
	}
}

func TestRemoveQuestionNotOnPaper(t *testing.T) {
	repo, service, _ := newPaperFixture()
	scope := models.Scope{ClientID: "acme", UserID: "instructor-1"}
	exam := seedExam(repo, scope, "course-1", nil)

	err := service.RemoveQuestion(context.Background(), scope, exam.ID, "not-there")
	if !errors.Is(err, ErrQuestionNotFound) {
		t.Fatalf("expected ErrQuestionNotFound, got %v", err)
	}
}

func TestUpdatePointsOverridesTotal(t *testing.T) {
	repo, service, _ := newPaperFixture()
	scope := models.Scope{ClientID: "acme", UserID: "instructor-1"}
	exam := seedExam(repo, scope, "course-1", nil)

	q1 := seedBankQuestion(repo, scope, "course-1", models.DifficultyEasy, 2)
	q2 := seedBankQuestion(repo, scope, "course-1", models.DifficultyEasy, 2)
	seedPaperRow(repo, scope, exam.ID, q1, 1)
	seedPaperRow(repo, scope, exam.ID, q2, 2)

	row, err := service.UpdatePoints(context.Background(), scope, exam.ID, q1.ID, &UpdatePointsRequest{Points: 10})
	if err != nil {
		t.Fatalf("UpdatePoints failed: %v", err)
	}
	if row.PointsOverride == nil || *row.PointsOverride != 10 {
		t.Fatalf("expected override 10, got %v", row.PointsOverride)
	}

	total, err := service.TotalPoints(context.Background(), scope, exam.ID)
	if err != nil {
		t.Fatalf("TotalPoints failed: %v", err)
	}
	if total != 12 {
		t.Errorf("expected total 12 after override, got %d", total)
	}
}

func TestClearEmptiesPaper(t *testing.T) {
	repo, service, _ := newPaperFixture()
	scope := models.Scope{ClientID: "acme", UserID: "instructor-1"}
	exam := seedExam(repo, scope, "course-1", nil)

	entry := seedBankQuestion(repo, scope, "course-1", models.DifficultyEasy, 1)
	seedPaperRow(repo, scope, exam.ID, entry, 1)

	if err := service.Clear(context.Background(), scope, exam.ID); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}

	count, _ := service.Count(context.Background(), scope, exam.ID)
	if count != 0 {
		t.Errorf("expected empty paper, got %d rows", count)
	}
}
