package controllers

import (
	"log"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"learnpath/backend/models"
	"learnpath/backend/services"
	"learnpath/backend/utils"
)

type TestsController struct {
	Content  *services.ContentService
	Gate     *services.AccessGate
	Attempts *services.AttemptService
	Logger   *log.Logger
}

func NewTestsController(db *gorm.DB, notifier services.Notifier, logger *log.Logger) *TestsController {
	return &TestsController{
		Content:  services.NewContentService(db),
		Gate:     services.NewAccessGate(db),
		Attempts: services.NewAttemptService(db, notifier),
		Logger:   logger,
	}
}

func attemptView(a *models.TestAttempt) fiber.Map {
	view := fiber.Map{
		"id":            a.ID,
		"test_id":       a.TestID,
		"user_id":       a.UserID,
		"attempt_count": a.AttemptCount,
		"attempt_limit": a.AttemptLimit,
		"start_time":    a.StartTime,
		"end_time":      a.EndTime,
		"score":         a.Score,
		"passed":        a.Passed,
	}
	if len(a.Answers) > 0 {
		answers := make([]fiber.Map, 0, len(a.Answers))
		for i := range a.Answers {
			answers = append(answers, answerView(&a.Answers[i]))
		}
		view["answers"] = answers
	}
	return view
}

func answerView(a *models.UserAnswer) fiber.Map {
	selected := make([]string, 0, len(a.SelectedAnswers))
	for _, s := range a.SelectedAnswers {
		selected = append(selected, s.Value)
	}
	return fiber.Map{
		"id":               a.ID,
		"question_id":      a.QuestionID,
		"text_answer":      a.TextAnswer,
		"is_approved":      a.IsApproved,
		"selected_answers": selected,
	}
}

// gate lets staff through and runs the access gate for everyone else.
func (tc *TestsController) gate(c *fiber.Ctx, claims utils.Claims, testID uint) error {
	if models.IsStaffRole(claims.Role) {
		return nil
	}
	return tc.Gate.CanAccessTest(c.UserContext(), claims.UserID, testID)
}

// ownAttempt loads an attempt the caller may see. Other learners' attempts
// are reported as missing.
func (tc *TestsController) ownAttempt(c *fiber.Ctx, claims utils.Claims) (*models.TestAttempt, error) {
	attemptID, err := paramID(c, "id")
	if err != nil {
		return nil, services.ErrAttemptNotFound
	}
	attempt, err := tc.Attempts.GetAttempt(c.UserContext(), attemptID)
	if err != nil {
		return nil, err
	}
	if attempt.UserID != claims.UserID && !models.IsStaffRole(claims.Role) {
		return nil, services.ErrAttemptNotFound
	}
	return attempt, nil
}

// GetTests godoc
// @Summary List the published tests of a course or a lesson
// @Tags tests
// @Produce json
// @Param course_id query int false "Course ID"
// @Param lesson_id query int false "Lesson ID"
// @Success 200 {object} utils.SuccessResponse
// @Failure 400 {object} utils.ErrorResponse
// @Security ApiKeyAuth
// @Router /tests [get]
func (tc *TestsController) GetTests(c *fiber.Ctx) error {
	var filter services.TestFilter
	if id := c.QueryInt("lesson_id"); id > 0 {
		lessonID := uint(id)
		filter.LessonID = &lessonID
	} else if id := c.QueryInt("course_id"); id > 0 {
		courseID := uint(id)
		filter.CourseID = &courseID
	} else {
		return utils.BadRequest(c, "course_id or lesson_id is required")
	}

	tests, err := tc.Content.GetTests(c.UserContext(), filter)
	if err != nil {
		return respondError(c, tc.Logger, err)
	}

	result := make([]fiber.Map, 0, len(tests))
	for _, t := range tests {
		result = append(result, fiber.Map{
			"id":            t.ID,
			"title":         t.Title,
			"type":          t.Type,
			"attempt_limit": t.AttemptLimit,
			"time_limit":    t.TimeLimit,
		})
	}
	return utils.Success(c, fiber.StatusOK, result)
}

// GetTestData godoc
// @Summary Get a test with its ordered question ids
// @Tags tests
// @Produce json
// @Param id path int true "Test ID"
// @Success 200 {object} utils.SuccessResponse
// @Failure 403 {object} utils.ErrorResponse
// @Failure 404 {object} utils.ErrorResponse
// @Security ApiKeyAuth
// @Router /tests/{id} [get]
func (tc *TestsController) GetTestData(c *fiber.Ctx) error {
	testID, err := paramID(c, "id")
	if err != nil {
		return utils.BadRequest(c, "Invalid test ID")
	}
	claims, _ := utils.CurrentClaims(c)

	if err := tc.gate(c, claims, testID); err != nil {
		return respondError(c, tc.Logger, err)
	}
	data, err := tc.Content.GetTestData(c.UserContext(), testID)
	if err != nil {
		return respondError(c, tc.Logger, err)
	}
	return utils.Success(c, fiber.StatusOK, data)
}

// GetTestQuestions returns the full test including the answer key. Staff only.
func (tc *TestsController) GetTestQuestions(c *fiber.Ctx) error {
	testID, err := paramID(c, "id")
	if err != nil {
		return utils.BadRequest(c, "Invalid test ID")
	}

	test, err := tc.Content.GetTestQuestionData(c.UserContext(), testID)
	if err != nil {
		return respondError(c, tc.Logger, err)
	}

	questions := make([]fiber.Map, 0, len(test.Questions))
	for _, q := range test.Questions {
		choices := make([]fiber.Map, 0, len(q.Choices))
		for _, ch := range q.Choices {
			choices = append(choices, fiber.Map{
				"id":         ch.ID,
				"text":       ch.Text,
				"value":      ch.Value,
				"is_correct": ch.IsCorrect,
				"order":      ch.Order,
			})
		}
		questions = append(questions, fiber.Map{
			"id":      q.ID,
			"title":   q.Title,
			"type":    q.Type,
			"order":   q.Order,
			"choices": choices,
		})
	}
	return utils.Success(c, fiber.StatusOK, fiber.Map{
		"id":            test.ID,
		"title":         test.Title,
		"attempt_limit": test.AttemptLimit,
		"published":     test.Published,
		"questions":     questions,
	})
}

// GetMyAttempts lists the caller's attempts on a test.
func (tc *TestsController) GetMyAttempts(c *fiber.Ctx) error {
	testID, err := paramID(c, "id")
	if err != nil {
		return utils.BadRequest(c, "Invalid test ID")
	}
	claims, _ := utils.CurrentClaims(c)

	attempts, err := tc.Attempts.GetUserAttempts(c.UserContext(), testID, claims.UserID)
	if err != nil {
		return respondError(c, tc.Logger, err)
	}
	result := make([]fiber.Map, 0, len(attempts))
	for i := range attempts {
		result = append(result, attemptView(&attempts[i]))
	}
	return utils.Success(c, fiber.StatusOK, result)
}

// CreateAttempt godoc
// @Summary Start or resume an attempt
// @Description Returns the open attempt if there is one, otherwise opens the next attempt
// @Tags attempts
// @Produce json
// @Param id path int true "Test ID"
// @Success 201 {object} utils.SuccessResponse
// @Failure 403 {object} utils.ErrorResponse
// @Failure 409 {object} utils.ErrorResponse
// @Security ApiKeyAuth
// @Router /tests/{id}/attempts [post]
func (tc *TestsController) CreateAttempt(c *fiber.Ctx) error {
	testID, err := paramID(c, "id")
	if err != nil {
		return utils.BadRequest(c, "Invalid test ID")
	}
	claims, _ := utils.CurrentClaims(c)

	if err := tc.gate(c, claims, testID); err != nil {
		return respondError(c, tc.Logger, err)
	}
	attempt, err := tc.Attempts.CreateAttempt(c.UserContext(), testID, claims.UserID)
	if err != nil {
		return respondError(c, tc.Logger, err)
	}
	return utils.Created(c, attemptView(attempt))
}

func (tc *TestsController) GetAttempt(c *fiber.Ctx) error {
	claims, _ := utils.CurrentClaims(c)
	attempt, err := tc.ownAttempt(c, claims)
	if err != nil {
		return respondError(c, tc.Logger, err)
	}
	return utils.Success(c, fiber.StatusOK, attemptView(attempt))
}

// SubmitAnswer godoc
// @Summary Save the answer to one question
// @Description Replaces any earlier answer to the same question
// @Tags attempts
// @Accept json
// @Produce json
// @Param id path int true "Attempt ID"
// @Param questionId path int true "Question ID"
// @Param answer body services.AnswerInput true "Answer"
// @Success 200 {object} utils.SuccessResponse
// @Failure 404 {object} utils.ErrorResponse
// @Failure 409 {object} utils.ErrorResponse
// @Security ApiKeyAuth
// @Router /attempts/{id}/answers/{questionId} [put]
func (tc *TestsController) SubmitAnswer(c *fiber.Ctx) error {
	questionID, err := paramID(c, "questionId")
	if err != nil {
		return utils.BadRequest(c, "Invalid question ID")
	}
	var input services.AnswerInput
	if ok, err := parseBody(c, &input); !ok {
		return err
	}

	claims, _ := utils.CurrentClaims(c)
	attempt, err := tc.ownAttempt(c, claims)
	if err != nil {
		return respondError(c, tc.Logger, err)
	}
	if attempt.UserID != claims.UserID {
		return utils.Forbidden(c, "Only the learner may answer")
	}

	answer, err := tc.Attempts.SubmitAnswer(c.UserContext(), attempt.ID, questionID, input)
	if err != nil {
		return respondError(c, tc.Logger, err)
	}
	return utils.Success(c, fiber.StatusOK, answerView(answer))
}

// EndAttempt godoc
// @Summary Score and close an attempt
// @Description Ending a closed attempt re-scores it
// @Tags attempts
// @Produce json
// @Param id path int true "Attempt ID"
// @Success 200 {object} utils.SuccessResponse
// @Failure 404 {object} utils.ErrorResponse
// @Failure 422 {object} utils.ErrorResponse
// @Security ApiKeyAuth
// @Router /attempts/{id}/end [post]
func (tc *TestsController) EndAttempt(c *fiber.Ctx) error {
	claims, _ := utils.CurrentClaims(c)
	attempt, err := tc.ownAttempt(c, claims)
	if err != nil {
		return respondError(c, tc.Logger, err)
	}

	result, err := tc.Attempts.EndAttempt(c.UserContext(), attempt.ID)
	if err != nil {
		return respondError(c, tc.Logger, err)
	}
	return utils.Success(c, fiber.StatusOK, fiber.Map{
		"attempt_id": attempt.ID,
		"score":      result.Score,
		"passed":     result.Passed,
	})
}
