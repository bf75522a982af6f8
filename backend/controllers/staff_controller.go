package controllers

import (
	"log"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"learnpath/backend/services"
	"learnpath/backend/utils"
)

// StaffController holds the staff overrides. Routes sit behind StaffMiddleware.
type StaffController struct {
	Content  *services.ContentService
	Gate     *services.AccessGate
	Attempts *services.AttemptService
	Logger   *log.Logger
}

func NewStaffController(db *gorm.DB, notifier services.Notifier, logger *log.Logger) *StaffController {
	return &StaffController{
		Content:  services.NewContentService(db),
		Gate:     services.NewAccessGate(db),
		Attempts: services.NewAttemptService(db, notifier),
		Logger:   logger,
	}
}

type ApprovalRequest struct {
	Approved *bool `json:"approved" validate:"required"`
}

// GetTestSummary godoc
// @Summary Per-learner attempt summary for a test
// @Tags staff
// @Produce json
// @Param id path int true "Test ID"
// @Success 200 {object} utils.SuccessResponse
// @Failure 404 {object} utils.ErrorResponse
// @Security ApiKeyAuth
// @Router /staff/tests/{id}/summary [get]
func (sc *StaffController) GetTestSummary(c *fiber.Ctx) error {
	testID, err := paramID(c, "id")
	if err != nil {
		return utils.BadRequest(c, "Invalid test ID")
	}
	summary, err := sc.Content.GetTestAttemptsSummary(c.UserContext(), testID)
	if err != nil {
		return respondError(c, sc.Logger, err)
	}
	return utils.Success(c, fiber.StatusOK, summary)
}

func (sc *StaffController) IncreaseAttemptLimit(c *fiber.Ctx) error {
	return sc.adjustLimit(c, services.IncreaseLimit)
}

func (sc *StaffController) DecreaseAttemptLimit(c *fiber.Ctx) error {
	return sc.adjustLimit(c, services.DecreaseLimit)
}

func (sc *StaffController) adjustLimit(c *fiber.Ctx, change services.LimitChange) error {
	testID, err := paramID(c, "id")
	if err != nil {
		return utils.BadRequest(c, "Invalid test ID")
	}
	userID, err := paramID(c, "userId")
	if err != nil {
		return utils.BadRequest(c, "Invalid user ID")
	}

	attempt, err := sc.Attempts.AdjustAttemptLimit(c.UserContext(), testID, userID, change)
	if err != nil {
		return respondError(c, sc.Logger, err)
	}
	return utils.Success(c, fiber.StatusOK, attemptView(attempt))
}

func (sc *StaffController) GrantLessonAccess(c *fiber.Ctx) error {
	lessonID, userID, ok, err := lessonAndUser(c)
	if !ok {
		return err
	}
	if err := sc.Gate.GrantLessonAccess(c.UserContext(), userID, lessonID); err != nil {
		return respondError(c, sc.Logger, err)
	}
	return utils.Success(c, fiber.StatusOK, fiber.Map{"lesson_id": lessonID, "user_id": userID, "granted": true})
}

func (sc *StaffController) RevokeLessonAccess(c *fiber.Ctx) error {
	lessonID, userID, ok, err := lessonAndUser(c)
	if !ok {
		return err
	}
	if err := sc.Gate.RevokeLessonAccess(c.UserContext(), userID, lessonID); err != nil {
		return respondError(c, sc.Logger, err)
	}
	return utils.Success(c, fiber.StatusOK, fiber.Map{"lesson_id": lessonID, "user_id": userID, "granted": false})
}

// SetAnswerApproval godoc
// @Summary Approve or reject a text answer
// @Description End the attempt again to apply the verdict to its score
// @Tags staff
// @Accept json
// @Produce json
// @Param id path int true "Answer ID"
// @Param request body ApprovalRequest true "Verdict"
// @Success 200 {object} utils.SuccessResponse
// @Failure 404 {object} utils.ErrorResponse
// @Security ApiKeyAuth
// @Router /staff/answers/{id}/approval [put]
func (sc *StaffController) SetAnswerApproval(c *fiber.Ctx) error {
	answerID, err := paramID(c, "id")
	if err != nil {
		return utils.BadRequest(c, "Invalid answer ID")
	}
	var req ApprovalRequest
	if ok, err := parseBody(c, &req); !ok {
		return err
	}

	answer, err := sc.Attempts.SetAnswerApproval(c.UserContext(), answerID, *req.Approved)
	if err != nil {
		return respondError(c, sc.Logger, err)
	}
	return utils.Success(c, fiber.StatusOK, answerView(answer))
}

func lessonAndUser(c *fiber.Ctx) (lessonID, userID uint, ok bool, err error) {
	if lessonID, err = paramID(c, "id"); err != nil {
		return 0, 0, false, utils.BadRequest(c, "Invalid lesson ID")
	}
	if userID, err = paramID(c, "userId"); err != nil {
		return 0, 0, false, utils.BadRequest(c, "Invalid user ID")
	}
	return lessonID, userID, true, nil
}
