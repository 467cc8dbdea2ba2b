package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/learnsphere/exam-service/internal/models"
	"github.com/learnsphere/exam-service/internal/repositories"
	"gorm.io/gorm"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, nil))
}

// fakeRepository is an in-memory Repository for the service tests. It
// mirrors the scoping and not-found semantics of the postgres layer:
// every read and write is tenant scoped, missing rows come back as
// gorm.ErrRecordNotFound, and guarded updates (answers, seal) match
// zero rows once a submission is sealed.
type fakeRepository struct {
	mu sync.Mutex

	exams         map[string]*models.Exam
	examQuestions []*models.ExamQuestion
	bank          map[string]*models.QuestionBankEntry
	bankOrder     []string
	submissions   map[string]*models.Submission
	procEvents    []*models.ProctoringEvent
	enrollments   []*models.Enrollment

	// Criteria of the most recent pool draw, for assertions.
	lastPoolCriteria *repositories.PoolCriteria
}

func newFakeRepository() *fakeRepository {
	return &fakeRepository{
		exams:       make(map[string]*models.Exam),
		bank:        make(map[string]*models.QuestionBankEntry),
		submissions: make(map[string]*models.Submission),
	}
}

func (f *fakeRepository) Exam() repositories.ExamRepository                 { return &fakeExamRepo{f} }
func (f *fakeRepository) ExamQuestion() repositories.ExamQuestionRepository { return &fakePaperRepo{f} }
func (f *fakeRepository) QuestionBank() repositories.QuestionBankRepository { return &fakeBankRepo{f} }
func (f *fakeRepository) Submission() repositories.SubmissionRepository     { return &fakeSubmissionRepo{f} }
func (f *fakeRepository) ProctoringEvent() repositories.ProctoringEventRepository {
	return &fakeProctoringRepo{f}
}
func (f *fakeRepository) Enrollment() repositories.EnrollmentRepository { return &fakeEnrollmentRepo{f} }

func (f *fakeRepository) WithTransaction(ctx context.Context, fn func(repositories.Repository) error) error {
	return fn(f)
}

func (f *fakeRepository) Ping(ctx context.Context) error { return nil }
func (f *fakeRepository) Close() error                   { return nil }

// paperRows returns the stored paper rows of an exam in sequence order.
// Callers must hold the lock.
func (f *fakeRepository) paperRows(clientID, examID string) []*models.ExamQuestion {
	var rows []*models.ExamQuestion
	for _, q := range f.examQuestions {
		if q.ClientID == clientID && q.ExamID == examID {
			rows = append(rows, q)
		}
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Sequence < rows[j].Sequence })
	return rows
}

// hydratedPaper copies the paper rows with the bank entry attached, the
// way the real layer preloads Question.
func (f *fakeRepository) hydratedPaper(clientID, examID string) []models.ExamQuestion {
	rows := f.paperRows(clientID, examID)
	out := make([]models.ExamQuestion, len(rows))
	for i, row := range rows {
		cp := *row
		if entry, ok := f.bank[row.QuestionID]; ok {
			cp.Question = *entry
		}
		out[i] = cp
	}
	return out
}

// ===== EXAMS =====

type fakeExamRepo struct{ f *fakeRepository }

func (r *fakeExamRepo) Create(ctx context.Context, tx *gorm.DB, exam *models.Exam) error {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	if exam.ID == "" {
		exam.ID = uuid.NewString()
	}
	exam.CreatedAt = time.Now().UTC()
	cp := *exam
	r.f.exams[exam.ID] = &cp
	return nil
}

func (r *fakeExamRepo) GetByID(ctx context.Context, tx *gorm.DB, scope models.Scope, id string) (*models.Exam, error) {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	exam, ok := r.f.exams[id]
	if !ok || exam.ClientID != scope.ClientID {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *exam
	return &cp, nil
}

func (r *fakeExamRepo) GetByIDWithQuestions(ctx context.Context, tx *gorm.DB, scope models.Scope, id string) (*models.Exam, error) {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	exam, ok := r.f.exams[id]
	if !ok || exam.ClientID != scope.ClientID {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *exam
	cp.Questions = r.f.hydratedPaper(scope.ClientID, id)
	return &cp, nil
}

func (r *fakeExamRepo) Update(ctx context.Context, tx *gorm.DB, exam *models.Exam) error {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	if _, ok := r.f.exams[exam.ID]; !ok {
		return gorm.ErrRecordNotFound
	}
	cp := *exam
	cp.Questions = nil
	r.f.exams[exam.ID] = &cp
	return nil
}

func (r *fakeExamRepo) Delete(ctx context.Context, tx *gorm.DB, scope models.Scope, id string) error {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	exam, ok := r.f.exams[id]
	if !ok || exam.ClientID != scope.ClientID {
		return gorm.ErrRecordNotFound
	}
	delete(r.f.exams, id)
	return nil
}

func (r *fakeExamRepo) List(ctx context.Context, tx *gorm.DB, scope models.Scope, filters repositories.ExamFilters) ([]*models.Exam, int64, error) {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	var out []*models.Exam
	for _, exam := range r.f.exams {
		if exam.ClientID != scope.ClientID {
			continue
		}
		if filters.CourseID != nil && exam.CourseID != *filters.CourseID {
			continue
		}
		if filters.CreatedBy != nil && exam.CreatedBy != *filters.CreatedBy {
			continue
		}
		cp := *exam
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, int64(len(out)), nil
}

func (r *fakeExamRepo) GetByCourse(ctx context.Context, tx *gorm.DB, scope models.Scope, courseID string, filters repositories.ExamFilters) ([]*models.Exam, int64, error) {
	filters.CourseID = &courseID
	return r.List(ctx, tx, scope, filters)
}

func (r *fakeExamRepo) GetExamStats(ctx context.Context, tx *gorm.DB, scope models.Scope, id string) (*repositories.ExamStats, error) {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	stats := &repositories.ExamStats{}
	var scoreSum float64
	var scored, passed int
	for _, sub := range r.f.submissions {
		if sub.ClientID != scope.ClientID || sub.ExamID != id {
			continue
		}
		stats.TotalSubmissions++
		if sub.CompletedAt != nil {
			stats.CompletedSubmissions++
		}
		if sub.Percentage != nil {
			scoreSum += *sub.Percentage
			scored++
			if sub.IsPassed != nil && *sub.IsPassed {
				passed++
			}
		}
	}
	if scored > 0 {
		stats.AverageScore = scoreSum / float64(scored)
		stats.PassRate = float64(passed) / float64(scored) * 100
	}
	rows := r.f.paperRows(scope.ClientID, id)
	stats.QuestionCount = len(rows)
	for _, row := range rows {
		if row.PointsOverride != nil {
			stats.TotalPoints += *row.PointsOverride
		} else if entry, ok := r.f.bank[row.QuestionID]; ok {
			stats.TotalPoints += entry.Points
		}
	}
	return stats, nil
}

// ===== EXAM PAPER =====

type fakePaperRepo struct{ f *fakeRepository }

func (r *fakePaperRepo) Create(ctx context.Context, tx *gorm.DB, question *models.ExamQuestion) error {
	return r.CreateBatch(ctx, tx, []*models.ExamQuestion{question})
}

func (r *fakePaperRepo) CreateBatch(ctx context.Context, tx *gorm.DB, questions []*models.ExamQuestion) error {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	for _, q := range questions {
		if q.ID == "" {
			q.ID = uuid.NewString()
		}
		cp := *q
		cp.Question = models.QuestionBankEntry{}
		r.f.examQuestions = append(r.f.examQuestions, &cp)
	}
	return nil
}

func (r *fakePaperRepo) Update(ctx context.Context, tx *gorm.DB, question *models.ExamQuestion) error {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	for i, q := range r.f.examQuestions {
		if q.ID == question.ID {
			cp := *question
			cp.Question = models.QuestionBankEntry{}
			r.f.examQuestions[i] = &cp
			return nil
		}
	}
	return gorm.ErrRecordNotFound
}

func (r *fakePaperRepo) Delete(ctx context.Context, tx *gorm.DB, scope models.Scope, examID, questionID string) error {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	for i, q := range r.f.examQuestions {
		if q.ClientID == scope.ClientID && q.ExamID == examID && q.QuestionID == questionID {
			r.f.examQuestions = append(r.f.examQuestions[:i], r.f.examQuestions[i+1:]...)
			return nil
		}
	}
	return gorm.ErrRecordNotFound
}

func (r *fakePaperRepo) DeleteByExam(ctx context.Context, tx *gorm.DB, scope models.Scope, examID string) error {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	kept := r.f.examQuestions[:0]
	for _, q := range r.f.examQuestions {
		if q.ClientID == scope.ClientID && q.ExamID == examID {
			continue
		}
		kept = append(kept, q)
	}
	r.f.examQuestions = kept
	return nil
}

func (r *fakePaperRepo) GetByExam(ctx context.Context, tx *gorm.DB, scope models.Scope, examID string) ([]*models.ExamQuestion, error) {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	rows := r.f.hydratedPaper(scope.ClientID, examID)
	out := make([]*models.ExamQuestion, len(rows))
	for i := range rows {
		out[i] = &rows[i]
	}
	return out, nil
}

func (r *fakePaperRepo) GetByExamAndQuestion(ctx context.Context, tx *gorm.DB, scope models.Scope, examID, questionID string) (*models.ExamQuestion, error) {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	for _, q := range r.f.examQuestions {
		if q.ClientID == scope.ClientID && q.ExamID == examID && q.QuestionID == questionID {
			cp := *q
			if entry, ok := r.f.bank[q.QuestionID]; ok {
				cp.Question = *entry
			}
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakePaperRepo) GetQuestionIDs(ctx context.Context, tx *gorm.DB, scope models.Scope, examID string) ([]string, error) {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	rows := r.f.paperRows(scope.ClientID, examID)
	ids := make([]string, len(rows))
	for i, row := range rows {
		ids[i] = row.QuestionID
	}
	return ids, nil
}

func (r *fakePaperRepo) Count(ctx context.Context, tx *gorm.DB, scope models.Scope, examID string) (int, error) {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	return len(r.f.paperRows(scope.ClientID, examID)), nil
}

func (r *fakePaperRepo) MaxSequence(ctx context.Context, tx *gorm.DB, scope models.Scope, examID string) (int, error) {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	max := 0
	for _, q := range r.f.paperRows(scope.ClientID, examID) {
		if q.Sequence > max {
			max = q.Sequence
		}
	}
	return max, nil
}

func (r *fakePaperRepo) Resequence(ctx context.Context, tx *gorm.DB, scope models.Scope, examID string, orders []repositories.SequenceAssignment) error {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	for _, order := range orders {
		found := false
		for _, q := range r.f.examQuestions {
			if q.ClientID == scope.ClientID && q.ExamID == examID && q.QuestionID == order.QuestionID {
				q.Sequence = order.Sequence
				found = true
				break
			}
		}
		if !found {
			return gorm.ErrRecordNotFound
		}
	}
	return nil
}

func (r *fakePaperRepo) CompactSequences(ctx context.Context, tx *gorm.DB, scope models.Scope, examID string) error {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	for i, q := range r.f.paperRows(scope.ClientID, examID) {
		q.Sequence = i + 1
	}
	return nil
}

func (r *fakePaperRepo) UpdatePoints(ctx context.Context, tx *gorm.DB, scope models.Scope, examID, questionID string, points *int) error {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	for _, q := range r.f.examQuestions {
		if q.ClientID == scope.ClientID && q.ExamID == examID && q.QuestionID == questionID {
			q.PointsOverride = points
			return nil
		}
	}
	return gorm.ErrRecordNotFound
}

func (r *fakePaperRepo) TotalPoints(ctx context.Context, tx *gorm.DB, scope models.Scope, examID string) (int, error) {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	total := 0
	for _, q := range r.f.paperRows(scope.ClientID, examID) {
		if q.PointsOverride != nil {
			total += *q.PointsOverride
			continue
		}
		if entry, ok := r.f.bank[q.QuestionID]; ok {
			total += entry.Points
		}
	}
	return total, nil
}

// ===== QUESTION BANK =====

type fakeBankRepo struct{ f *fakeRepository }

func (r *fakeBankRepo) Create(ctx context.Context, tx *gorm.DB, entry *models.QuestionBankEntry) error {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	entry.CreatedAt = time.Now().UTC()
	cp := *entry
	r.f.bank[entry.ID] = &cp
	r.f.bankOrder = append(r.f.bankOrder, entry.ID)
	return nil
}

func (r *fakeBankRepo) GetByID(ctx context.Context, tx *gorm.DB, scope models.Scope, id string) (*models.QuestionBankEntry, error) {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	entry, ok := r.f.bank[id]
	if !ok || entry.ClientID != scope.ClientID {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *entry
	return &cp, nil
}

func (r *fakeBankRepo) Update(ctx context.Context, tx *gorm.DB, entry *models.QuestionBankEntry) error {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	if _, ok := r.f.bank[entry.ID]; !ok {
		return gorm.ErrRecordNotFound
	}
	cp := *entry
	r.f.bank[entry.ID] = &cp
	return nil
}

func (r *fakeBankRepo) Delete(ctx context.Context, tx *gorm.DB, scope models.Scope, id string) error {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	entry, ok := r.f.bank[id]
	if !ok || entry.ClientID != scope.ClientID {
		return gorm.ErrRecordNotFound
	}
	delete(r.f.bank, id)
	return nil
}

func (r *fakeBankRepo) GetByIDs(ctx context.Context, tx *gorm.DB, scope models.Scope, ids []string) ([]*models.QuestionBankEntry, error) {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	var out []*models.QuestionBankEntry
	for _, id := range ids {
		if entry, ok := r.f.bank[id]; ok && entry.ClientID == scope.ClientID {
			cp := *entry
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *fakeBankRepo) List(ctx context.Context, tx *gorm.DB, scope models.Scope, filters repositories.QuestionBankFilters) ([]*models.QuestionBankEntry, int64, error) {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	var out []*models.QuestionBankEntry
	for _, id := range r.f.bankOrder {
		entry, ok := r.f.bank[id]
		if !ok || entry.ClientID != scope.ClientID {
			continue
		}
		if filters.CourseID != nil && entry.CourseID != *filters.CourseID {
			continue
		}
		if filters.Type != nil && entry.Type != *filters.Type {
			continue
		}
		if filters.Difficulty != nil && entry.Difficulty != *filters.Difficulty {
			continue
		}
		if filters.ActiveOnly && !entry.IsActive {
			continue
		}
		cp := *entry
		out = append(out, &cp)
	}
	return out, int64(len(out)), nil
}

func (r *fakeBankRepo) Search(ctx context.Context, tx *gorm.DB, scope models.Scope, query string, filters repositories.QuestionBankFilters) ([]*models.QuestionBankEntry, int64, error) {
	filters.Search = query
	return r.List(ctx, tx, scope, filters)
}

func (r *fakeBankRepo) poolMatches(entry *models.QuestionBankEntry, scope models.Scope, criteria repositories.PoolCriteria) bool {
	if entry.ClientID != scope.ClientID || entry.CourseID != criteria.CourseID || !entry.IsActive {
		return false
	}
	if criteria.Difficulty != "" && entry.Difficulty != criteria.Difficulty {
		return false
	}
	if len(criteria.QuestionTypes) > 0 {
		match := false
		for _, qt := range criteria.QuestionTypes {
			if entry.Type == qt {
				match = true
			}
		}
		if !match {
			return false
		}
	}
	for _, excluded := range criteria.ExcludeIDs {
		if entry.ID == excluded {
			return false
		}
	}
	if len(criteria.ModuleIDs) > 0 {
		var entryModules []string
		if len(entry.ModuleIDs) > 0 {
			if err := json.Unmarshal(entry.ModuleIDs, &entryModules); err != nil {
				return false
			}
		}
		overlap := false
		for _, want := range criteria.ModuleIDs {
			for _, have := range entryModules {
				if want == have {
					overlap = true
				}
			}
		}
		if !overlap {
			return false
		}
	}
	return true
}

func (r *fakeBankRepo) CountPool(ctx context.Context, tx *gorm.DB, scope models.Scope, criteria repositories.PoolCriteria) (int64, error) {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	var count int64
	for _, id := range r.f.bankOrder {
		if entry, ok := r.f.bank[id]; ok && r.poolMatches(entry, scope, criteria) {
			count++
		}
	}
	return count, nil
}

func (r *fakeBankRepo) DrawPool(ctx context.Context, tx *gorm.DB, scope models.Scope, criteria repositories.PoolCriteria) ([]*models.QuestionBankEntry, error) {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	c := criteria
	r.f.lastPoolCriteria = &c
	var out []*models.QuestionBankEntry
	for _, id := range r.f.bankOrder {
		entry, ok := r.f.bank[id]
		if !ok || !r.poolMatches(entry, scope, criteria) {
			continue
		}
		cp := *entry
		out = append(out, &cp)
		if criteria.Count > 0 && len(out) == criteria.Count {
			break
		}
	}
	return out, nil
}

func (r *fakeBankRepo) GetPoolStats(ctx context.Context, tx *gorm.DB, scope models.Scope, courseID string) (*repositories.PoolStats, error) {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	stats := &repositories.PoolStats{
		EntriesByType: make(map[models.QuestionType]int),
		EntriesByDiff: make(map[models.DifficultyLevel]int),
	}
	for _, entry := range r.f.bank {
		if entry.ClientID != scope.ClientID || entry.CourseID != courseID {
			continue
		}
		stats.TotalEntries++
		stats.EntriesByType[entry.Type]++
		stats.EntriesByDiff[entry.Difficulty]++
		if entry.IsActive {
			stats.ActiveEntries++
		} else {
			stats.InactiveEntries++
		}
	}
	return stats, nil
}

func (r *fakeBankRepo) IsUsedInExams(ctx context.Context, tx *gorm.DB, scope models.Scope, id string) (bool, error) {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	for _, q := range r.f.examQuestions {
		if q.ClientID == scope.ClientID && q.QuestionID == id {
			return true, nil
		}
	}
	return false, nil
}

// ===== SUBMISSIONS =====

type fakeSubmissionRepo struct{ f *fakeRepository }

func (r *fakeSubmissionRepo) Create(ctx context.Context, tx *gorm.DB, submission *models.Submission) error {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	for _, sub := range r.f.submissions {
		if sub.ClientID == submission.ClientID && sub.ExamID == submission.ExamID &&
			sub.StudentID == submission.StudentID && sub.CompletedAt == nil {
			return fmt.Errorf("duplicate key value violates unique constraint \"idx_submissions_open\" (SQLSTATE 23505)")
		}
	}
	if submission.ID == "" {
		submission.ID = uuid.NewString()
	}
	submission.CreatedAt = time.Now().UTC()
	cp := *submission
	cp.Exam = models.Exam{}
	r.f.submissions[submission.ID] = &cp
	return nil
}

func (r *fakeSubmissionRepo) GetByID(ctx context.Context, tx *gorm.DB, scope models.Scope, id string) (*models.Submission, error) {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	sub, ok := r.f.submissions[id]
	if !ok || sub.ClientID != scope.ClientID {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *sub
	return &cp, nil
}

func (r *fakeSubmissionRepo) GetByIDWithExam(ctx context.Context, tx *gorm.DB, scope models.Scope, id string) (*models.Submission, error) {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	sub, ok := r.f.submissions[id]
	if !ok || sub.ClientID != scope.ClientID {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *sub
	if exam, ok := r.f.exams[sub.ExamID]; ok {
		cp.Exam = *exam
	}
	return &cp, nil
}

func (r *fakeSubmissionRepo) Update(ctx context.Context, tx *gorm.DB, submission *models.Submission) error {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	if _, ok := r.f.submissions[submission.ID]; !ok {
		return gorm.ErrRecordNotFound
	}
	cp := *submission
	cp.Exam = models.Exam{}
	r.f.submissions[submission.ID] = &cp
	return nil
}

func (r *fakeSubmissionRepo) GetOpen(ctx context.Context, tx *gorm.DB, scope models.Scope, examID, studentID string) (*models.Submission, error) {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	for _, sub := range r.f.submissions {
		if sub.ClientID == scope.ClientID && sub.ExamID == examID &&
			sub.StudentID == studentID && sub.CompletedAt == nil {
			cp := *sub
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeSubmissionRepo) GetOpenForUpdate(ctx context.Context, tx *gorm.DB, scope models.Scope, examID, studentID string) (*models.Submission, error) {
	return r.GetOpen(ctx, tx, scope, examID, studentID)
}

func (r *fakeSubmissionRepo) CountByStudent(ctx context.Context, tx *gorm.DB, scope models.Scope, examID, studentID string) (int64, error) {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	var count int64
	for _, sub := range r.f.submissions {
		if sub.ClientID == scope.ClientID && sub.ExamID == examID && sub.StudentID == studentID {
			count++
		}
	}
	return count, nil
}

func (r *fakeSubmissionRepo) List(ctx context.Context, tx *gorm.DB, scope models.Scope, filters repositories.SubmissionFilters) ([]*models.Submission, int64, error) {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	var out []*models.Submission
	for _, sub := range r.f.submissions {
		if sub.ClientID != scope.ClientID {
			continue
		}
		if filters.ExamID != nil && sub.ExamID != *filters.ExamID {
			continue
		}
		if filters.StudentID != nil && sub.StudentID != *filters.StudentID {
			continue
		}
		if filters.OpenOnly && sub.CompletedAt != nil {
			continue
		}
		cp := *sub
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.Before(out[j].StartedAt) })
	return out, int64(len(out)), nil
}

func (r *fakeSubmissionRepo) GetByExam(ctx context.Context, tx *gorm.DB, scope models.Scope, examID string, filters repositories.SubmissionFilters) ([]*models.Submission, int64, error) {
	filters.ExamID = &examID
	return r.List(ctx, tx, scope, filters)
}

func (r *fakeSubmissionRepo) GetByStudent(ctx context.Context, tx *gorm.DB, scope models.Scope, studentID string, filters repositories.SubmissionFilters) ([]*models.Submission, int64, error) {
	filters.StudentID = &studentID
	return r.List(ctx, tx, scope, filters)
}

func (r *fakeSubmissionRepo) UpdateAnswers(ctx context.Context, tx *gorm.DB, scope models.Scope, id string, answers []byte, timeRemaining *int) error {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	sub, ok := r.f.submissions[id]
	if !ok || sub.ClientID != scope.ClientID || sub.CompletedAt != nil {
		return gorm.ErrRecordNotFound
	}
	sub.Answers = answers
	if timeRemaining != nil {
		sub.TimeRemainingSeconds = timeRemaining
	}
	return nil
}

func (r *fakeSubmissionRepo) Seal(ctx context.Context, tx *gorm.DB, scope models.Scope, id string, completedAt time.Time) error {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	sub, ok := r.f.submissions[id]
	if !ok || sub.ClientID != scope.ClientID || sub.CompletedAt != nil {
		return gorm.ErrRecordNotFound
	}
	at := completedAt
	sub.CompletedAt = &at
	sub.SubmittedAt = &at
	return nil
}

func (r *fakeSubmissionRepo) UpdateGrade(ctx context.Context, tx *gorm.DB, scope models.Scope, id string, updates map[string]interface{}) error {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	sub, ok := r.f.submissions[id]
	if !ok || sub.ClientID != scope.ClientID {
		return gorm.ErrRecordNotFound
	}
	for column, value := range updates {
		switch column {
		case "score":
			v := value.(float64)
			sub.Score = &v
		case "max_score":
			v := value.(float64)
			sub.MaxScore = &v
		case "percentage":
			v := value.(float64)
			sub.Percentage = &v
		case "is_passed":
			v := value.(bool)
			sub.IsPassed = &v
		case "graded_at":
			v := value.(time.Time)
			sub.GradedAt = &v
		case "graded_by":
			v := value.(string)
			sub.GradedBy = &v
		case "feedback":
			v := value.(string)
			sub.Feedback = &v
		case "ai_review_feedback":
			v := value.(string)
			sub.AiReviewFeedback = &v
		case "status":
			sub.Status = value.(models.ReviewStatus)
		default:
			return fmt.Errorf("unexpected grade column %q", column)
		}
	}
	return nil
}

func (r *fakeSubmissionRepo) IncrementCounter(ctx context.Context, tx *gorm.DB, scope models.Scope, id string, column string, delta int) error {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	sub, ok := r.f.submissions[id]
	if !ok || sub.ClientID != scope.ClientID {
		return gorm.ErrRecordNotFound
	}
	switch column {
	case "tab_switch_count":
		sub.TabSwitchCount += delta
	case "copy_attempt_count":
		sub.CopyAttemptCount += delta
	default:
		return fmt.Errorf("counter column %q is not incrementable", column)
	}
	return nil
}

func (r *fakeSubmissionRepo) SetIdentityVerified(ctx context.Context, tx *gorm.DB, scope models.Scope, id string, verified bool) error {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	sub, ok := r.f.submissions[id]
	if !ok || sub.ClientID != scope.ClientID {
		return gorm.ErrRecordNotFound
	}
	sub.IdentityVerified = verified
	return nil
}

func (r *fakeSubmissionRepo) UpdateProctoringStatus(ctx context.Context, tx *gorm.DB, scope models.Scope, id string, status models.ProctoringStatus) error {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	sub, ok := r.f.submissions[id]
	if !ok || sub.ClientID != scope.ClientID {
		return gorm.ErrRecordNotFound
	}
	sub.ProctoringStatus = status
	return nil
}

// ===== PROCTORING EVENTS =====

type fakeProctoringRepo struct{ f *fakeRepository }

func (r *fakeProctoringRepo) Create(ctx context.Context, tx *gorm.DB, event *models.ProctoringEvent) error {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	event.CreatedAt = time.Now().UTC()
	cp := *event
	r.f.procEvents = append(r.f.procEvents, &cp)
	return nil
}

func (r *fakeProctoringRepo) GetBySubmission(ctx context.Context, tx *gorm.DB, scope models.Scope, submissionID string, filters repositories.ProctoringEventFilters) ([]*models.ProctoringEvent, int64, error) {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	var all []*models.ProctoringEvent
	for _, e := range r.f.procEvents {
		if e.ClientID == scope.ClientID && e.SubmissionID == submissionID {
			cp := *e
			all = append(all, &cp)
		}
	}
	total := int64(len(all))
	if filters.Limit > 0 && len(all) > filters.Limit {
		all = all[:filters.Limit]
	}
	return all, total, nil
}

func (r *fakeProctoringRepo) CountBySeverity(ctx context.Context, tx *gorm.DB, scope models.Scope, submissionID string) (map[models.Severity]int64, error) {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	counts := make(map[models.Severity]int64)
	for _, e := range r.f.procEvents {
		if e.ClientID == scope.ClientID && e.SubmissionID == submissionID {
			counts[e.Severity]++
		}
	}
	return counts, nil
}

func (r *fakeProctoringRepo) CountByType(ctx context.Context, tx *gorm.DB, scope models.Scope, submissionID string, eventType models.ProctorEventType) (int64, error) {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	var count int64
	for _, e := range r.f.procEvents {
		if e.ClientID == scope.ClientID && e.SubmissionID == submissionID && e.Type == eventType {
			count++
		}
	}
	return count, nil
}

// ===== ENROLLMENTS =====

type fakeEnrollmentRepo struct{ f *fakeRepository }

func (r *fakeEnrollmentRepo) Create(ctx context.Context, tx *gorm.DB, enrollment *models.Enrollment) error {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	if enrollment.ID == "" {
		enrollment.ID = uuid.NewString()
	}
	cp := *enrollment
	r.f.enrollments = append(r.f.enrollments, &cp)
	return nil
}

func (r *fakeEnrollmentRepo) GetByCourseAndStudent(ctx context.Context, tx *gorm.DB, scope models.Scope, courseID, studentID string) (*models.Enrollment, error) {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	for _, e := range r.f.enrollments {
		if e.ClientID == scope.ClientID && e.CourseID == courseID && e.StudentID == studentID {
			cp := *e
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeEnrollmentRepo) IsActivelyEnrolled(ctx context.Context, tx *gorm.DB, scope models.Scope, courseID, studentID string) (bool, error) {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	for _, e := range r.f.enrollments {
		if e.ClientID == scope.ClientID && e.CourseID == courseID &&
			e.StudentID == studentID && e.Status == models.EnrollmentActive {
			return true, nil
		}
	}
	return false, nil
}

// ===== SEED HELPERS =====

func seedExam(f *fakeRepository, scope models.Scope, courseID string, mutate func(*models.Exam)) *models.Exam {
	exam := &models.Exam{
		ClientID:         scope.ClientID,
		CourseID:         courseID,
		Title:            "Midterm",
		TimeLimitSeconds: 3600,
		TimingMode:       models.TimingFlexibleStart,
		ReviewMethod:     models.ReviewMethodAI,
		PassingScore:     50,
		CreatedBy:        scope.UserID,
	}
	if mutate != nil {
		mutate(exam)
	}
	if err := f.Exam().Create(context.Background(), nil, exam); err != nil {
		panic(err)
	}
	return exam
}

func seedBankQuestion(f *fakeRepository, scope models.Scope, courseID string, difficulty models.DifficultyLevel, points int) *models.QuestionBankEntry {
	entry := &models.QuestionBankEntry{
		ClientID:   scope.ClientID,
		CourseID:   courseID,
		Type:       models.QuestionTypeShortAnswer,
		Text:       "Explain the concept.",
		Points:     points,
		Difficulty: difficulty,
		IsActive:   true,
		CreatedBy:  scope.UserID,
	}
	if err := f.QuestionBank().Create(context.Background(), nil, entry); err != nil {
		panic(err)
	}
	return entry
}

func seedMcqQuestion(f *fakeRepository, scope models.Scope, courseID string, options []models.Option) *models.QuestionBankEntry {
	raw, err := json.Marshal(options)
	if err != nil {
		panic(err)
	}
	entry := &models.QuestionBankEntry{
		ClientID:   scope.ClientID,
		CourseID:   courseID,
		Type:       models.QuestionTypeMultipleChoice,
		Text:       "Pick one.",
		Points:     2,
		Difficulty: models.DifficultyMedium,
		Options:    raw,
		IsActive:   true,
		CreatedBy:  scope.UserID,
	}
	if err := f.QuestionBank().Create(context.Background(), nil, entry); err != nil {
		panic(err)
	}
	return entry
}

func seedPaperRow(f *fakeRepository, scope models.Scope, examID string, entry *models.QuestionBankEntry, sequence int) *models.ExamQuestion {
	row := &models.ExamQuestion{
		ClientID:   scope.ClientID,
		ExamID:     examID,
		QuestionID: entry.ID,
		Sequence:   sequence,
	}
	if err := f.ExamQuestion().Create(context.Background(), nil, row); err != nil {
		panic(err)
	}
	return row
}

func seedEnrollment(f *fakeRepository, scope models.Scope, courseID, studentID string) {
	err := f.Enrollment().Create(context.Background(), nil, &models.Enrollment{
		ClientID:   scope.ClientID,
		CourseID:   courseID,
		StudentID:  studentID,
		Status:     models.EnrollmentActive,
		EnrolledAt: time.Now().UTC(),
	})
	if err != nil {
		panic(err)
	}
}
