package models

import "gorm.io/gorm"

// CourseProgress is created lazily on the first completion event for a user and course.
type CourseProgress struct {
	gorm.Model
	UserID           uint `gorm:"uniqueIndex:idx_course_progress_user_course"`
	CourseID         uint `gorm:"uniqueIndex:idx_course_progress_user_course"`
	CompletedLessons []CompletedLesson
	CompletedTests   []CompletedTest
}

type CompletedLesson struct {
	gorm.Model
	CourseProgressID uint `gorm:"uniqueIndex:idx_completed_lesson"`
	LessonID         uint `gorm:"uniqueIndex:idx_completed_lesson"`
}

type CompletedTest struct {
	gorm.Model
	CourseProgressID uint `gorm:"uniqueIndex:idx_completed_test"`
	TestID           uint `gorm:"uniqueIndex:idx_completed_test"`
}
