package services

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"learnpath/backend/models"
	"learnpath/backend/utils"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, utils.Migrate(db))
	return db
}

type recordingNotifier struct {
	mu       sync.Mutex
	failures []AttemptFailure
}

func (n *recordingNotifier) AttemptFailedByUser(_ context.Context, f AttemptFailure) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.failures = append(n.failures, f)
}

func (n *recordingNotifier) calls() []AttemptFailure {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]AttemptFailure(nil), n.failures...)
}

type fixture struct {
	ctx      context.Context
	db       *gorm.DB
	gate     *AccessGate
	attempts *AttemptService
	recorder *ProgressRecorder
	content  *ContentService
	notifier *recordingNotifier
	clock    time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := newTestDB(t)
	f := &fixture{
		ctx:      context.Background(),
		db:       db,
		gate:     NewAccessGate(db),
		recorder: NewProgressRecorder(db),
		content:  NewContentService(db),
		notifier: &recordingNotifier{},
		clock:    time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC),
	}
	f.attempts = NewAttemptService(db, f.notifier)
	f.attempts.Now = func() time.Time {
		f.clock = f.clock.Add(time.Minute)
		return f.clock
	}
	return f
}

func (f *fixture) user(t *testing.T, name, role string) models.User {
	t.Helper()
	u := models.User{Username: name, Email: name + "@example.com", FullName: strings.ToUpper(name[:1]) + name[1:], PasswordHash: "x", Role: role}
	require.NoError(t, f.db.Create(&u).Error)
	return u
}

func (f *fixture) course(t *testing.T, published bool) models.Course {
	t.Helper()
	c := models.Course{Title: "Course", Published: published}
	require.NoError(t, f.db.Create(&c).Error)
	return c
}

func (f *fixture) lesson(t *testing.T, courseID uint, order int) models.Lesson {
	t.Helper()
	l := models.Lesson{CourseID: courseID, Title: fmt.Sprintf("Lesson %d", order), Order: order, IsPreviewable: true}
	require.NoError(t, f.db.Create(&l).Error)
	return l
}

func (f *fixture) grant(t *testing.T, userID, lessonID uint) {
	t.Helper()
	require.NoError(t, f.gate.GrantLessonAccess(f.ctx, userID, lessonID))
}

// testFor creates a published test owned by a lesson or a course.
func (f *fixture) testFor(t *testing.T, lessonID, courseID *uint, limit int, questions ...models.TestQuestion) models.Test {
	t.Helper()
	for i := range questions {
		questions[i].Order = i + 1
	}
	test := models.Test{LessonID: lessonID, CourseID: courseID, Title: "Test", AttemptLimit: limit, Published: true, Questions: questions}
	require.NoError(t, f.db.Create(&test).Error)
	return test
}

func (f *fixture) passedAttempt(t *testing.T, testID, userID uint) {
	t.Helper()
	score, passed := 100.0, true
	now := f.clock
	a := models.TestAttempt{TestID: testID, UserID: userID, AttemptCount: 1, AttemptLimit: 1, StartTime: now, EndTime: &now, Score: &score, Passed: &passed}
	require.NoError(t, f.db.Create(&a).Error)
}

func singleChoice(correct string, wrong ...string) models.TestQuestion {
	q := models.TestQuestion{Type: models.SingleChoice, Title: "pick one"}
	q.Choices = append(q.Choices, models.TestChoice{Text: correct, Value: correct, IsCorrect: true, Order: 1})
	for i, w := range wrong {
		q.Choices = append(q.Choices, models.TestChoice{Text: w, Value: w, Order: i + 2})
	}
	return q
}

func ordering(items ...string) models.TestQuestion {
	q := models.TestQuestion{Type: models.Ordering, Title: "put in order"}
	for i, it := range items {
		q.Choices = append(q.Choices, models.TestChoice{Text: it, Value: it, Order: i + 1})
	}
	return q
}

func ptr[T any](v T) *T { return &v }
