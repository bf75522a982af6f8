package services

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"learnpath/backend/models"
)

// AccessGate decides whether a learner may open a lesson or sit a test.
type AccessGate struct {
	DB *gorm.DB
}

func NewAccessGate(db *gorm.DB) *AccessGate {
	return &AccessGate{DB: db}
}

// gateTarget is what every access check reduces to: the course, the lesson
// whose grant is required (nil for course-level tests) and the lessons that
// must be finished first.
type gateTarget struct {
	courseID     uint
	grantLesson  *uint
	predecessors []models.Lesson
}

// CanAccessLesson returns nil when the learner may open the lesson.
func (g *AccessGate) CanAccessLesson(ctx context.Context, userID, lessonID uint) error {
	db := g.DB.WithContext(ctx)

	lesson, err := visibleLesson(db, lessonID)
	if err != nil {
		return err
	}
	target, err := lessonTarget(db, lesson)
	if err != nil {
		return err
	}
	return g.evaluate(db, userID, target)
}

// CanAccessTest returns nil when the learner may open or attempt the test.
// Lesson tests are gated like their lesson; course tests require every
// lesson of the course.
func (g *AccessGate) CanAccessTest(ctx context.Context, userID, testID uint) error {
	db := g.DB.WithContext(ctx)

	test, err := publishedTest(db, testID)
	if err != nil {
		return err
	}

	var target gateTarget
	switch {
	case test.LessonID != nil:
		lesson, err := visibleLesson(db, *test.LessonID)
		if err != nil {
			return err
		}
		target, err = lessonTarget(db, lesson)
		if err != nil {
			return err
		}
	case test.CourseID != nil:
		published, err := coursePublished(db, *test.CourseID)
		if err != nil {
			return err
		}
		if !published {
			return ErrTestNotFound
		}
		target = gateTarget{courseID: *test.CourseID}
		if err := db.Where("course_id = ?", *test.CourseID).
			Order("sequence_order").Find(&target.predecessors).Error; err != nil {
			return fmt.Errorf("load course lessons: %w", err)
		}
	default:
		return ErrTestNotFound
	}

	return g.evaluate(db, userID, target)
}

func (g *AccessGate) evaluate(db *gorm.DB, userID uint, t gateTarget) error {
	if t.grantLesson != nil {
		var grants int64
		if err := db.Model(&models.LessonAccess{}).
			Where("user_id = ? AND lesson_id = ?", userID, *t.grantLesson).
			Count(&grants).Error; err != nil {
			return fmt.Errorf("check lesson access: %w", err)
		}
		if grants == 0 {
			return ErrLessonAccessRevoked
		}
	}

	if len(t.predecessors) == 0 {
		return nil
	}

	ids := make([]uint, len(t.predecessors))
	for i, l := range t.predecessors {
		ids[i] = l.ID
	}

	var completed []uint
	if err := db.Model(&models.CompletedLesson{}).
		Joins("JOIN course_progresses ON course_progresses.id = completed_lessons.course_progress_id").
		Where("course_progresses.user_id = ? AND course_progresses.course_id = ?", userID, t.courseID).
		Where("completed_lessons.lesson_id IN ?", ids).
		Distinct().
		Pluck("completed_lessons.lesson_id", &completed).Error; err != nil {
		return fmt.Errorf("load completed lessons: %w", err)
	}
	if !containsAll(completed, ids) {
		return ErrPrerequisitesIncomplete
	}

	var required []uint
	if err := db.Model(&models.Test{}).
		Where("lesson_id IN ? AND published = ?", ids, true).
		Pluck("id", &required).Error; err != nil {
		return fmt.Errorf("load prerequisite tests: %w", err)
	}
	if len(required) == 0 {
		return nil
	}

	var passed []uint
	if err := db.Model(&models.TestAttempt{}).
		Where("user_id = ? AND test_id IN ? AND passed = ?", userID, required, true).
		Distinct().
		Pluck("test_id", &passed).Error; err != nil {
		return fmt.Errorf("load passed attempts: %w", err)
	}
	if !containsAll(passed, required) {
		return ErrPrerequisiteTestsFailed
	}
	return nil
}

// GrantLessonAccess adds the learner to the lesson allow-list.
func (g *AccessGate) GrantLessonAccess(ctx context.Context, userID, lessonID uint) error {
	db := g.DB.WithContext(ctx)
	if err := db.First(&models.Lesson{}, lessonID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrLessonNotFound
		}
		return fmt.Errorf("load lesson: %w", err)
	}
	grant := models.LessonAccess{UserID: userID, LessonID: lessonID}
	if err := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&grant).Error; err != nil {
		return fmt.Errorf("grant lesson access: %w", err)
	}
	return nil
}

// RevokeLessonAccess removes the learner from the lesson allow-list.
func (g *AccessGate) RevokeLessonAccess(ctx context.Context, userID, lessonID uint) error {
	err := g.DB.WithContext(ctx).Unscoped().
		Where("user_id = ? AND lesson_id = ?", userID, lessonID).
		Delete(&models.LessonAccess{}).Error
	if err != nil {
		return fmt.Errorf("revoke lesson access: %w", err)
	}
	return nil
}

func lessonTarget(db *gorm.DB, lesson *models.Lesson) (gateTarget, error) {
	id := lesson.ID
	t := gateTarget{courseID: lesson.CourseID, grantLesson: &id}
	if err := db.Where("course_id = ? AND sequence_order < ?", lesson.CourseID, lesson.Order).
		Order("sequence_order").Find(&t.predecessors).Error; err != nil {
		return gateTarget{}, fmt.Errorf("load previous lessons: %w", err)
	}
	return t, nil
}

func visibleLesson(db *gorm.DB, lessonID uint) (*models.Lesson, error) {
	var lesson models.Lesson
	if err := db.First(&lesson, lessonID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrLessonNotFound
		}
		return nil, fmt.Errorf("load lesson: %w", err)
	}
	if !lesson.IsPreviewable {
		return nil, ErrLessonNotFound
	}
	published, err := coursePublished(db, lesson.CourseID)
	if err != nil {
		return nil, err
	}
	if !published {
		return nil, ErrLessonNotFound
	}
	return &lesson, nil
}

func coursePublished(db *gorm.DB, courseID uint) (bool, error) {
	var n int64
	if err := db.Model(&models.Course{}).
		Where("id = ? AND published = ?", courseID, true).
		Count(&n).Error; err != nil {
		return false, fmt.Errorf("load course: %w", err)
	}
	return n > 0, nil
}

func publishedTest(db *gorm.DB, testID uint) (*models.Test, error) {
	var test models.Test
	if err := db.First(&test, testID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTestNotFound
		}
		return nil, fmt.Errorf("load test: %w", err)
	}
	if !test.Published {
		return nil, ErrTestNotFound
	}
	return &test, nil
}

func containsAll(have, want []uint) bool {
	set := make(map[uint]struct{}, len(have))
	for _, id := range have {
		set[id] = struct{}{}
	}
	for _, id := range want {
		if _, ok := set[id]; !ok {
			return false
		}
	}
	return true
}
