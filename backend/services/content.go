package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"gorm.io/gorm"

	"learnpath/backend/models"
)

// ContentService serves the read side of courses, lessons and tests.
type ContentService struct {
	DB *gorm.DB
}

func NewContentService(db *gorm.DB) *ContentService {
	return &ContentService{DB: db}
}

// TestFilter selects tests by owner. Exactly one field is expected.
type TestFilter struct {
	CourseID *uint
	LessonID *uint
}

// QuestionRef is the learner-safe view of a question: no content, no key.
type QuestionRef struct {
	ID    uint `json:"id"`
	Order int  `json:"order"`
}

type TestData struct {
	ID           uint          `json:"id"`
	Title        string        `json:"title"`
	Type         string        `json:"type"`
	AttemptLimit int           `json:"attempt_limit"`
	TimeLimit    int           `json:"time_limit"`
	Questions    []QuestionRef `json:"questions"`
}

// AttemptSummary aggregates one learner's attempts on a test.
type AttemptSummary struct {
	UserID        uint      `json:"user_id"`
	Name          string    `json:"name"`
	Email         string    `json:"email"`
	Role          string    `json:"role"`
	AttemptCount  int       `json:"attempt_count"`
	MaxScore      *float64  `json:"max_score"`
	Passed        bool      `json:"passed"`
	LastAttemptAt time.Time `json:"last_attempt_at"`
}

func (s *ContentService) GetCourses(ctx context.Context) ([]models.Course, error) {
	courses := []models.Course{}
	if err := s.DB.WithContext(ctx).Where("published = ?", true).Order("id").Find(&courses).Error; err != nil {
		return nil, fmt.Errorf("load courses: %w", err)
	}
	return courses, nil
}

// GetLessonsByCourseID lists the previewable lessons of a published course in order.
func (s *ContentService) GetLessonsByCourseID(ctx context.Context, courseID uint) ([]models.Lesson, error) {
	db := s.DB.WithContext(ctx)

	var course models.Course
	if err := db.Where("id = ? AND published = ?", courseID, true).First(&course).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCourseNotFound
		}
		return nil, fmt.Errorf("load course: %w", err)
	}

	lessons := []models.Lesson{}
	if err := db.Where("course_id = ? AND is_previewable = ?", courseID, true).
		Order("sequence_order").Find(&lessons).Error; err != nil {
		return nil, fmt.Errorf("load lessons: %w", err)
	}
	return lessons, nil
}

// GetLessonByID returns a previewable lesson with its published tests.
// Callers gate it with AccessGate.CanAccessLesson first.
func (s *ContentService) GetLessonByID(ctx context.Context, lessonID uint) (*models.Lesson, error) {
	db := s.DB.WithContext(ctx)
	lesson, err := visibleLesson(db, lessonID)
	if err != nil {
		return nil, err
	}
	if err := db.Where("lesson_id = ? AND published = ?", lessonID, true).
		Order("id").Find(&lesson.Tests).Error; err != nil {
		return nil, fmt.Errorf("load lesson tests: %w", err)
	}
	return lesson, nil
}

func (s *ContentService) GetTests(ctx context.Context, f TestFilter) ([]models.Test, error) {
	q := s.DB.WithContext(ctx).Where("published = ?", true)
	switch {
	case f.LessonID != nil:
		q = q.Where("lesson_id = ?", *f.LessonID)
	case f.CourseID != nil:
		q = q.Where("course_id = ?", *f.CourseID)
	}

	tests := []models.Test{}
	if err := q.Order("id").Find(&tests).Error; err != nil {
		return nil, fmt.Errorf("load tests: %w", err)
	}
	return tests, nil
}

// GetTestData returns the test header and ordered question ids.
func (s *ContentService) GetTestData(ctx context.Context, testID uint) (*TestData, error) {
	db := s.DB.WithContext(ctx)
	test, err := publishedTest(db, testID)
	if err != nil {
		return nil, err
	}

	var questions []models.TestQuestion
	if err := db.Select("id", "sequence_order").
		Where("test_id = ?", testID).
		Order("sequence_order").Find(&questions).Error; err != nil {
		return nil, fmt.Errorf("load questions: %w", err)
	}

	data := &TestData{
		ID:           test.ID,
		Title:        test.Title,
		Type:         test.Type,
		AttemptLimit: test.AttemptLimit,
		TimeLimit:    test.TimeLimit,
		Questions:    make([]QuestionRef, len(questions)),
	}
	for i, q := range questions {
		data.Questions[i] = QuestionRef{ID: q.ID, Order: q.Order}
	}
	return data, nil
}

// GetTestQuestionData returns the full test with questions and choices,
// answer key included. Staff only.
func (s *ContentService) GetTestQuestionData(ctx context.Context, testID uint) (*models.Test, error) {
	var test models.Test
	err := s.DB.WithContext(ctx).
		Preload("Questions", func(db *gorm.DB) *gorm.DB { return db.Order("sequence_order") }).
		Preload("Questions.Choices", func(db *gorm.DB) *gorm.DB { return db.Order("sequence_order") }).
		First(&test, testID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTestNotFound
		}
		return nil, fmt.Errorf("load test: %w", err)
	}
	return &test, nil
}

// GetTestAttemptsSummary groups the attempts on a test by learner.
func (s *ContentService) GetTestAttemptsSummary(ctx context.Context, testID uint) ([]AttemptSummary, error) {
	db := s.DB.WithContext(ctx)
	if err := db.First(&models.Test{}, testID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTestNotFound
		}
		return nil, fmt.Errorf("load test: %w", err)
	}

	var attempts []models.TestAttempt
	if err := db.Where("test_id = ?", testID).Order("user_id").Order("attempt_count").
		Find(&attempts).Error; err != nil {
		return nil, fmt.Errorf("load attempts: %w", err)
	}

	byUser := map[uint]*AttemptSummary{}
	userIDs := []uint{}
	for _, a := range attempts {
		sum, ok := byUser[a.UserID]
		if !ok {
			sum = &AttemptSummary{UserID: a.UserID}
			byUser[a.UserID] = sum
			userIDs = append(userIDs, a.UserID)
		}
		sum.AttemptCount = max(sum.AttemptCount, a.AttemptCount)
		if a.Score != nil && (sum.MaxScore == nil || *a.Score > *sum.MaxScore) {
			score := *a.Score
			sum.MaxScore = &score
		}
		if a.Passed != nil && *a.Passed {
			sum.Passed = true
		}
		if a.StartTime.After(sum.LastAttemptAt) {
			sum.LastAttemptAt = a.StartTime
		}
	}

	if len(userIDs) > 0 {
		var users []models.User
		if err := db.Where("id IN ?", userIDs).Find(&users).Error; err != nil {
			return nil, fmt.Errorf("load users: %w", err)
		}
		for _, u := range users {
			sum := byUser[u.ID]
			sum.Name = u.FullName
			if sum.Name == "" {
				sum.Name = u.Username
			}
			sum.Email = u.Email
			sum.Role = u.Role
		}
	}

	out := make([]AttemptSummary, 0, len(userIDs))
	for _, id := range userIDs {
		out = append(out, *byUser[id])
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].LastAttemptAt.After(out[j].LastAttemptAt) })
	return out, nil
}
