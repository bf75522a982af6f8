package models

import "gorm.io/gorm"

type Course struct {
	gorm.Model
	Title       string
	Description string
	Published   bool `gorm:"default:false"`
	Lessons     []Lesson
	Tests       []Test // course-level tests
}

type Lesson struct {
	gorm.Model
	CourseID           uint `gorm:"uniqueIndex:idx_lesson_course_order"`
	Title              string
	Content            string
	Order              int    `gorm:"column:sequence_order;uniqueIndex:idx_lesson_course_order"`
	IsPreviewable      bool   `gorm:"default:false"`
	MustUploadHomework bool   `gorm:"default:false"`
	Tests              []Test // lesson-level tests
}

// LessonAccess is the per-user allow-list entry for a lesson.
type LessonAccess struct {
	gorm.Model
	UserID   uint `gorm:"uniqueIndex:idx_lesson_access_user_lesson"`
	LessonID uint `gorm:"uniqueIndex:idx_lesson_access_user_lesson"`
}
