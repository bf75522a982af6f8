package controllers

import (
	"log"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"learnpath/backend/services"
	"learnpath/backend/utils"
)

type ProgressController struct {
	Progress *services.ProgressRecorder
	Logger   *log.Logger
}

func NewProgressController(db *gorm.DB, logger *log.Logger) *ProgressController {
	return &ProgressController{Progress: services.NewProgressRecorder(db), Logger: logger}
}

type CompleteLessonRequest struct {
	UserID   uint `json:"user_id" validate:"required"`
	CourseID uint `json:"course_id" validate:"required"`
}

// GetCourseProgress godoc
// @Summary Get course progress
// @Description Returns the lessons and tests the user completed in a course
// @Tags progress
// @Produce json
// @Param id path int true "Course ID"
// @Success 200 {object} utils.SuccessResponse
// @Failure 401 {object} utils.ErrorResponse
// @Security ApiKeyAuth
// @Router /courses/{id}/progress [get]
func (pc *ProgressController) GetCourseProgress(c *fiber.Ctx) error {
	courseID, err := paramID(c, "id")
	if err != nil {
		return utils.BadRequest(c, "Invalid course ID")
	}
	claims, _ := utils.CurrentClaims(c)

	view, err := pc.Progress.GetCourseProgress(c.UserContext(), claims.UserID, courseID)
	if err != nil {
		return respondError(c, pc.Logger, err)
	}
	return utils.Success(c, fiber.StatusOK, view)
}

// CompleteLesson godoc
// @Summary Mark a lesson completed for a learner
// @Description Called once homework for the lesson is accepted. Idempotent.
// @Tags progress
// @Accept json
// @Produce json
// @Param id path int true "Lesson ID"
// @Param request body CompleteLessonRequest true "Learner and course"
// @Success 200 {object} utils.SuccessResponse
// @Failure 404 {object} utils.ErrorResponse
// @Failure 422 {object} utils.ErrorResponse
// @Security ApiKeyAuth
// @Router /lessons/{id}/complete [post]
func (pc *ProgressController) CompleteLesson(c *fiber.Ctx) error {
	lessonID, err := paramID(c, "id")
	if err != nil {
		return utils.BadRequest(c, "Invalid lesson ID")
	}
	var req CompleteLessonRequest
	if ok, err := parseBody(c, &req); !ok {
		return err
	}

	if err := pc.Progress.MarkLessonCompleted(c.UserContext(), lessonID, req.CourseID, req.UserID); err != nil {
		return respondError(c, pc.Logger, err)
	}
	view, err := pc.Progress.GetCourseProgress(c.UserContext(), req.UserID, req.CourseID)
	if err != nil {
		return respondError(c, pc.Logger, err)
	}
	return utils.Success(c, fiber.StatusOK, view)
}
