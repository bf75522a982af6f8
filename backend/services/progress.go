package services

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"learnpath/backend/models"
)

// ProgressRecorder writes completion markers. Repeated calls are no-ops.
type ProgressRecorder struct {
	DB *gorm.DB
}

func NewProgressRecorder(db *gorm.DB) *ProgressRecorder {
	return &ProgressRecorder{DB: db}
}

// CourseProgressView lists what a learner completed in one course.
type CourseProgressView struct {
	CourseID         uint   `json:"course_id"`
	UserID           uint   `json:"user_id"`
	CompletedLessons []uint `json:"completed_lessons"`
	CompletedTests   []uint `json:"completed_tests"`
}

func (r *ProgressRecorder) MarkLessonCompleted(ctx context.Context, lessonID, courseID, userID uint) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var lesson models.Lesson
		if err := tx.Where("id = ? AND course_id = ?", lessonID, courseID).First(&lesson).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrLessonNotFound
			}
			return fmt.Errorf("load lesson: %w", err)
		}
		return markLessonCompleted(tx, lessonID, courseID, userID)
	})
}

func (r *ProgressRecorder) MarkTestCompleted(ctx context.Context, testID, courseID, userID uint) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return markTestCompleted(tx, testID, courseID, userID)
	})
}

func (r *ProgressRecorder) GetCourseProgress(ctx context.Context, userID, courseID uint) (*CourseProgressView, error) {
	view := &CourseProgressView{CourseID: courseID, UserID: userID, CompletedLessons: []uint{}, CompletedTests: []uint{}}

	var progress models.CourseProgress
	err := r.DB.WithContext(ctx).
		Preload("CompletedLessons").
		Preload("CompletedTests").
		Where("user_id = ? AND course_id = ?", userID, courseID).
		First(&progress).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return view, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load course progress: %w", err)
	}

	for _, l := range progress.CompletedLessons {
		view.CompletedLessons = append(view.CompletedLessons, l.LessonID)
	}
	for _, t := range progress.CompletedTests {
		view.CompletedTests = append(view.CompletedTests, t.TestID)
	}
	return view, nil
}

func markLessonCompleted(tx *gorm.DB, lessonID, courseID, userID uint) error {
	progress, err := courseProgress(tx, userID, courseID)
	if err != nil {
		return err
	}
	marker := models.CompletedLesson{CourseProgressID: progress.ID, LessonID: lessonID}
	if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&marker).Error; err != nil {
		return fmt.Errorf("mark lesson %d completed: %w", lessonID, err)
	}
	return nil
}

func markTestCompleted(tx *gorm.DB, testID, courseID, userID uint) error {
	progress, err := courseProgress(tx, userID, courseID)
	if err != nil {
		return err
	}
	marker := models.CompletedTest{CourseProgressID: progress.ID, TestID: testID}
	if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&marker).Error; err != nil {
		return fmt.Errorf("mark test %d completed: %w", testID, err)
	}
	return nil
}

// courseProgress returns the progress row, creating it on first use.
func courseProgress(tx *gorm.DB, userID, courseID uint) (*models.CourseProgress, error) {
	seed := models.CourseProgress{UserID: userID, CourseID: courseID}
	if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&seed).Error; err != nil {
		return nil, fmt.Errorf("create course progress: %w", err)
	}
	// The insert is skipped when the row exists, so read it back either way.
	var progress models.CourseProgress
	if err := tx.Where("user_id = ? AND course_id = ?", userID, courseID).First(&progress).Error; err != nil {
		return nil, fmt.Errorf("load course progress: %w", err)
	}
	return &progress, nil
}
