package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"learnpath/backend/models"
	"learnpath/backend/scoring"
)

// maxCreateRetries bounds retries after losing an attempt-ordinal race.
const maxCreateRetries = 3

type LimitChange int

const (
	IncreaseLimit LimitChange = 1
	DecreaseLimit LimitChange = -1
)

// AnswerInput is one submission for one question. SelectedAnswers keeps the
// learner's order.
type AnswerInput struct {
	TextAnswer      *string  `json:"text_answer"`
	SelectedAnswers []string `json:"selected_answers"`
}

// AttemptService owns the attempt lifecycle: NONE -> OPEN -> CLOSED.
type AttemptService struct {
	DB       *gorm.DB
	Notifier Notifier
	Engine   *scoring.Engine
	Now      func() time.Time
}

func NewAttemptService(db *gorm.DB, notifier Notifier) *AttemptService {
	if notifier == nil {
		notifier = nopNotifier{}
	}
	return &AttemptService{
		DB:       db,
		Notifier: notifier,
		Engine:   scoring.NewEngine(),
		Now:      time.Now,
	}
}

// CreateAttempt opens the next attempt for the learner. An attempt that is
// still open is returned as is. The (test, user, ordinal) unique index
// serializes concurrent callers; the loser retries against the new state.
func (s *AttemptService) CreateAttempt(ctx context.Context, testID, userID uint) (*models.TestAttempt, error) {
	for i := 0; i < maxCreateRetries; i++ {
		attempt, err := s.createAttempt(ctx, testID, userID)
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			continue
		}
		return attempt, err
	}
	return nil, ErrAttemptConflict
}

func (s *AttemptService) createAttempt(ctx context.Context, testID, userID uint) (*models.TestAttempt, error) {
	var created *models.TestAttempt
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		test, err := publishedTest(tx, testID)
		if err != nil {
			return err
		}

		prev, err := latestAttempt(tx, testID, userID)
		if err != nil && !errors.Is(err, ErrNoAttemptFound) {
			return err
		}

		attempt := models.TestAttempt{
			TestID:       testID,
			UserID:       userID,
			AttemptCount: 1,
			AttemptLimit: test.AttemptLimit,
			StartTime:    s.Now(),
		}
		if prev != nil {
			if prev.Exhausted() {
				return ErrAttemptLimitReached
			}
			if prev.Open() {
				created = prev
				return nil
			}
			attempt.AttemptCount = prev.AttemptCount + 1
			attempt.AttemptLimit = max(prev.AttemptLimit, test.AttemptLimit)
		}

		if err := tx.Create(&attempt).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return err
			}
			return fmt.Errorf("create attempt: %w", err)
		}
		created = &attempt
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// SubmitAnswer upserts the learner's answer for one question. Previous
// selections are replaced in the same transaction. The question type is not
// checked; mismatched payloads simply score zero.
func (s *AttemptService) SubmitAnswer(ctx context.Context, attemptID, questionID uint, in AnswerInput) (*models.UserAnswer, error) {
	var answer models.UserAnswer
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		attempt, err := findAttempt(tx, attemptID)
		if err != nil {
			return err
		}
		if !attempt.Open() {
			return ErrAttemptClosed
		}

		var questions int64
		if err := tx.Model(&models.TestQuestion{}).
			Where("id = ? AND test_id = ?", questionID, attempt.TestID).
			Count(&questions).Error; err != nil {
			return fmt.Errorf("load question: %w", err)
		}
		if questions == 0 {
			return ErrQuestionNotFound
		}

		err = tx.Where("attempt_id = ? AND question_id = ?", attemptID, questionID).First(&answer).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			answer = models.UserAnswer{AttemptID: attemptID, QuestionID: questionID, TextAnswer: in.TextAnswer}
			if err := tx.Create(&answer).Error; err != nil {
				return fmt.Errorf("create answer: %w", err)
			}
		case err != nil:
			return fmt.Errorf("load answer: %w", err)
		default:
			if err := tx.Unscoped().Where("user_answer_id = ?", answer.ID).
				Delete(&models.SelectedAnswer{}).Error; err != nil {
				return fmt.Errorf("clear selections: %w", err)
			}
			answer.TextAnswer = in.TextAnswer
			if err := tx.Model(&answer).Select("text_answer").Updates(&answer).Error; err != nil {
				return fmt.Errorf("update answer: %w", err)
			}
		}

		answer.SelectedAnswers = make([]models.SelectedAnswer, 0, len(in.SelectedAnswers))
		for i, v := range in.SelectedAnswers {
			answer.SelectedAnswers = append(answer.SelectedAnswers, models.SelectedAnswer{
				UserAnswerID: answer.ID,
				Value:        v,
				Order:        i + 1,
			})
		}
		if len(answer.SelectedAnswers) > 0 {
			if err := tx.Create(&answer.SelectedAnswers).Error; err != nil {
				return fmt.Errorf("create selections: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &answer, nil
}

// EndAttempt scores the attempt from a consistent snapshot and closes it.
// Calling it on a closed attempt re-scores (after staff approval of text
// answers) but keeps the original end time. The failure signal is sent once,
// when the last permitted attempt closes without passing.
func (s *AttemptService) EndAttempt(ctx context.Context, attemptID uint) (scoring.Result, error) {
	var (
		result  scoring.Result
		attempt *models.TestAttempt
		wasOpen bool
	)
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		attempt, err = findAttempt(tx, attemptID)
		if err != nil {
			return err
		}
		wasOpen = attempt.Open()

		var test models.Test
		err = tx.Preload("Questions", func(db *gorm.DB) *gorm.DB { return db.Order("sequence_order") }).
			Preload("Questions.Choices", func(db *gorm.DB) *gorm.DB { return db.Order("sequence_order") }).
			First(&test, attempt.TestID).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrTestNotFound
			}
			return fmt.Errorf("load test: %w", err)
		}

		var answers []models.UserAnswer
		if err := tx.Preload("SelectedAnswers", func(db *gorm.DB) *gorm.DB { return db.Order("sequence_order") }).
			Where("attempt_id = ?", attemptID).Find(&answers).Error; err != nil {
			return fmt.Errorf("load answers: %w", err)
		}

		result, err = s.Engine.Score(test, answers)
		switch {
		case errors.Is(err, scoring.ErrUnscorableTest):
			return ErrUnscorableTest
		case errors.Is(err, scoring.ErrMalformedQuestion):
			return ErrMalformedQuestion
		case err != nil:
			return fmt.Errorf("score attempt: %w", err)
		}

		attempt.Score = &result.Score
		attempt.Passed = &result.Passed
		if wasOpen {
			now := s.Now()
			attempt.EndTime = &now
		}
		if err := tx.Model(attempt).Select("score", "passed", "end_time").Updates(attempt).Error; err != nil {
			return fmt.Errorf("close attempt: %w", err)
		}

		if result.Passed {
			courseID, err := courseOfTest(tx, &test)
			if err != nil {
				return err
			}
			if err := markTestCompleted(tx, test.ID, courseID, attempt.UserID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return scoring.Result{}, err
	}

	if wasOpen && !result.Passed && attempt.Exhausted() {
		s.Notifier.AttemptFailedByUser(ctx, AttemptFailure{
			TestID:    attempt.TestID,
			UserID:    attempt.UserID,
			AttemptID: attempt.ID,
		})
	}
	return result, nil
}

// AdjustAttemptLimit moves the cap on the learner's most recent attempt by
// one. Older attempts keep their own snapshot.
func (s *AttemptService) AdjustAttemptLimit(ctx context.Context, testID, userID uint, change LimitChange) (*models.TestAttempt, error) {
	var attempt *models.TestAttempt
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		attempt, err = latestAttempt(tx, testID, userID)
		if err != nil {
			return err
		}

		q := tx.Model(&models.TestAttempt{}).Where("id = ?", attempt.ID)
		switch change {
		case IncreaseLimit:
			q = q.UpdateColumn("attempt_limit", gorm.Expr("attempt_limit + 1"))
		case DecreaseLimit:
			q = q.Where("attempt_limit > attempt_count").
				UpdateColumn("attempt_limit", gorm.Expr("attempt_limit - 1"))
		default:
			return fmt.Errorf("unknown limit change %d", change)
		}
		if q.Error != nil {
			return fmt.Errorf("adjust attempt limit: %w", q.Error)
		}
		if change == DecreaseLimit && q.RowsAffected == 0 {
			return ErrCannotDecreaseExhausted
		}
		return tx.First(attempt, attempt.ID).Error
	})
	if err != nil {
		return nil, err
	}
	return attempt, nil
}

func (s *AttemptService) IncreaseAttemptLimit(ctx context.Context, testID, userID uint) (*models.TestAttempt, error) {
	return s.AdjustAttemptLimit(ctx, testID, userID, IncreaseLimit)
}

func (s *AttemptService) DecreaseAttemptLimit(ctx context.Context, testID, userID uint) (*models.TestAttempt, error) {
	return s.AdjustAttemptLimit(ctx, testID, userID, DecreaseLimit)
}

// GetAttempt returns the attempt with its answers and selections.
func (s *AttemptService) GetAttempt(ctx context.Context, attemptID uint) (*models.TestAttempt, error) {
	var attempt models.TestAttempt
	err := s.DB.WithContext(ctx).
		Preload("Answers").
		Preload("Answers.SelectedAnswers", func(db *gorm.DB) *gorm.DB { return db.Order("sequence_order") }).
		First(&attempt, attemptID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAttemptNotFound
		}
		return nil, fmt.Errorf("load attempt: %w", err)
	}
	return &attempt, nil
}

// GetUserAttempts lists the learner's attempts for a test, oldest first.
func (s *AttemptService) GetUserAttempts(ctx context.Context, testID, userID uint) ([]models.TestAttempt, error) {
	attempts := []models.TestAttempt{}
	if err := s.DB.WithContext(ctx).
		Where("test_id = ? AND user_id = ?", testID, userID).
		Order("attempt_count").
		Find(&attempts).Error; err != nil {
		return nil, fmt.Errorf("load attempts: %w", err)
	}
	return attempts, nil
}

// SetAnswerApproval records the staff verdict on a TEXT answer. The attempt
// must be ended again for the verdict to reach its score.
func (s *AttemptService) SetAnswerApproval(ctx context.Context, answerID uint, approved bool) (*models.UserAnswer, error) {
	var answer models.UserAnswer
	db := s.DB.WithContext(ctx)
	if err := db.First(&answer, answerID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAnswerNotFound
		}
		return nil, fmt.Errorf("load answer: %w", err)
	}
	answer.IsApproved = &approved
	if err := db.Model(&answer).Select("is_approved").Updates(&answer).Error; err != nil {
		return nil, fmt.Errorf("update approval: %w", err)
	}
	return &answer, nil
}

func findAttempt(tx *gorm.DB, attemptID uint) (*models.TestAttempt, error) {
	var attempt models.TestAttempt
	if err := tx.First(&attempt, attemptID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAttemptNotFound
		}
		return nil, fmt.Errorf("load attempt: %w", err)
	}
	return &attempt, nil
}

func latestAttempt(tx *gorm.DB, testID, userID uint) (*models.TestAttempt, error) {
	var attempt models.TestAttempt
	err := tx.Where("test_id = ? AND user_id = ?", testID, userID).
		Order("start_time DESC").Order("attempt_count DESC").
		First(&attempt).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNoAttemptFound
		}
		return nil, fmt.Errorf("load latest attempt: %w", err)
	}
	return &attempt, nil
}

// courseOfTest resolves the course a test counts towards.
func courseOfTest(tx *gorm.DB, test *models.Test) (uint, error) {
	if test.CourseID != nil {
		return *test.CourseID, nil
	}
	if test.LessonID == nil {
		return 0, ErrTestNotFound
	}
	var lesson models.Lesson
	if err := tx.Select("id", "course_id").First(&lesson, *test.LessonID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, ErrLessonNotFound
		}
		return 0, fmt.Errorf("load lesson: %w", err)
	}
	return lesson.CourseID, nil
}
