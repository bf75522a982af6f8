package services

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"learnpath/backend/models"
	"learnpath/backend/utils"
)

// newFileDB opens a file-backed sqlite database that allows several
// connections, so transactions really run side by side.
func newFileDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:" + filepath.Join(t.TempDir(), "attempts.db") +
		"?_busy_timeout=5000&_txlock=immediate&_journal_mode=WAL"

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(8)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, utils.Migrate(db))
	return db
}

// failAttemptInserts makes the first n attempt inserts report a duplicate
// ordinal. It returns a counter of intercepted inserts.
func failAttemptInserts(t *testing.T, db *gorm.DB, n int) *int {
	t.Helper()
	seen := 0
	err := db.Callback().Create().Before("gorm:create").Register("test:duplicate_ordinal", func(tx *gorm.DB) {
		if tx.Statement.Schema == nil || tx.Statement.Schema.Table != "test_attempts" {
			return
		}
		seen++
		if seen <= n {
			tx.AddError(gorm.ErrDuplicatedKey)
		}
	})
	require.NoError(t, err)
	return &seen
}

func TestCreateAttempt_ConcurrentCallersShareOneAttempt(t *testing.T) {
	db := newFileDB(t)
	user := models.User{Username: "ann", Email: "ann@example.com", PasswordHash: "x"}
	require.NoError(t, db.Create(&user).Error)
	course := models.Course{Title: "Course", Published: true}
	require.NoError(t, db.Create(&course).Error)
	quiz := models.Test{CourseID: &course.ID, Title: "Quiz", AttemptLimit: 3, Published: true}
	require.NoError(t, db.Create(&quiz).Error)

	svc := NewAttemptService(db, nil)

	const callers = 8
	var (
		wg   sync.WaitGroup
		ids  = make([]uint, callers)
		errs = make([]error, callers)
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			attempt, err := svc.CreateAttempt(context.Background(), quiz.ID, user.ID)
			errs[i] = err
			if attempt != nil {
				ids[i] = attempt.ID
			}
		}(i)
	}
	wg.Wait()

	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, ids[0], ids[i])
	}

	var rows int64
	require.NoError(t, db.Model(&models.TestAttempt{}).Count(&rows).Error)
	assert.EqualValues(t, 1, rows)
}

func TestCreateAttempt_RetriesAfterDuplicateOrdinal(t *testing.T) {
	f := newFixture(t)
	u := f.user(t, "ann", "student")
	c := f.course(t, true)
	quiz := f.testFor(t, nil, &c.ID, 3, singleChoice("a", "b"))
	seen := failAttemptInserts(t, f.db, 1)

	attempt, err := f.attempts.CreateAttempt(f.ctx, quiz.ID, u.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, attempt.AttemptCount)
	assert.Equal(t, 2, *seen)
}

func TestCreateAttempt_GivesUpAfterRepeatedConflicts(t *testing.T) {
	f := newFixture(t)
	u := f.user(t, "ann", "student")
	c := f.course(t, true)
	quiz := f.testFor(t, nil, &c.ID, 3, singleChoice("a", "b"))
	seen := failAttemptInserts(t, f.db, maxCreateRetries)

	_, err := f.attempts.CreateAttempt(f.ctx, quiz.ID, u.ID)
	assert.ErrorIs(t, err, ErrAttemptConflict)
	assert.Equal(t, KindLimit, KindOf(err))
	assert.Equal(t, maxCreateRetries, *seen)

	var rows int64
	require.NoError(t, f.db.Model(&models.TestAttempt{}).Count(&rows).Error)
	assert.Zero(t, rows)
}
