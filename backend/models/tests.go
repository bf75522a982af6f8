package models

import (
	"time"

	"gorm.io/gorm"
)

type QuestionType string

const (
	SingleChoice   QuestionType = "SINGLE_CHOICE"
	MultipleChoice QuestionType = "MULTIPLE_CHOICE"
	TrueFalse      QuestionType = "TRUE_FALSE"
	Ordering       QuestionType = "ORDERING"
	Text           QuestionType = "TEXT"
)

// Test belongs to exactly one of a course or a lesson.
type Test struct {
	gorm.Model
	CourseID     *uint
	LessonID     *uint
	Title        string
	Type         string // presentation only
	AttemptLimit int    `gorm:"default:0"`
	TimeLimit    int    // minutes, advisory
	Published    bool   `gorm:"default:false"`
	Questions    []TestQuestion
}

type TestQuestion struct {
	gorm.Model
	TestID  uint `gorm:"index"`
	Title   string
	Type    QuestionType
	Order   int          `gorm:"column:sequence_order"`
	Choices []TestChoice `gorm:"foreignKey:QuestionID"`
}

type TestChoice struct {
	gorm.Model
	QuestionID uint `gorm:"index"`
	Text       string
	Value      string
	IsCorrect  bool
	Order      int `gorm:"column:sequence_order"`
}

type TestAttempt struct {
	gorm.Model
	TestID       uint `gorm:"uniqueIndex:idx_attempt_ordinal"`
	UserID       uint `gorm:"uniqueIndex:idx_attempt_ordinal"`
	AttemptCount int  `gorm:"uniqueIndex:idx_attempt_ordinal"`
	AttemptLimit int
	StartTime    time.Time
	EndTime      *time.Time
	Score        *float64
	Passed       *bool
	Answers      []UserAnswer `gorm:"foreignKey:AttemptID"`
}

// Open reports whether the attempt has not been closed yet.
func (a *TestAttempt) Open() bool {
	return a.EndTime == nil
}

// Exhausted reports whether this attempt used the last permitted ordinal.
func (a *TestAttempt) Exhausted() bool {
	return a.AttemptCount >= a.AttemptLimit
}

type UserAnswer struct {
	gorm.Model
	AttemptID       uint `gorm:"uniqueIndex:idx_answer_attempt_question"`
	QuestionID      uint `gorm:"uniqueIndex:idx_answer_attempt_question"`
	TextAnswer      *string
	IsApproved      *bool
	SelectedAnswers []SelectedAnswer `gorm:"foreignKey:UserAnswerID"`
}

type SelectedAnswer struct {
	gorm.Model
	UserAnswerID uint `gorm:"index"`
	Value        string
	Order        int `gorm:"column:sequence_order"`
}
