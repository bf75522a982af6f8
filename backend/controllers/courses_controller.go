package controllers

import (
	"log"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"learnpath/backend/services"
	"learnpath/backend/utils"
)

type CoursesController struct {
	Content *services.ContentService
	Gate    *services.AccessGate
	Logger  *log.Logger
}

func NewCoursesController(db *gorm.DB, logger *log.Logger) *CoursesController {
	return &CoursesController{
		Content: services.NewContentService(db),
		Gate:    services.NewAccessGate(db),
		Logger:  logger,
	}
}

// GetCourses godoc
// @Summary List published courses
// @Tags courses
// @Produce json
// @Success 200 {object} utils.SuccessResponse
// @Security ApiKeyAuth
// @Router /courses [get]
func (cc *CoursesController) GetCourses(c *fiber.Ctx) error {
	courses, err := cc.Content.GetCourses(c.UserContext())
	if err != nil {
		return respondError(c, cc.Logger, err)
	}

	result := make([]fiber.Map, 0, len(courses))
	for _, course := range courses {
		result = append(result, fiber.Map{
			"id":          course.ID,
			"title":       course.Title,
			"description": course.Description,
		})
	}
	return utils.Success(c, fiber.StatusOK, result)
}

// GetCourseLessons godoc
// @Summary List the lessons of a course in order
// @Tags courses
// @Produce json
// @Param id path int true "Course ID"
// @Success 200 {object} utils.SuccessResponse
// @Failure 404 {object} utils.ErrorResponse
// @Security ApiKeyAuth
// @Router /courses/{id}/lessons [get]
func (cc *CoursesController) GetCourseLessons(c *fiber.Ctx) error {
	courseID, err := paramID(c, "id")
	if err != nil {
		return utils.BadRequest(c, "Invalid course ID")
	}

	lessons, err := cc.Content.GetLessonsByCourseID(c.UserContext(), courseID)
	if err != nil {
		return respondError(c, cc.Logger, err)
	}

	result := make([]fiber.Map, 0, len(lessons))
	for _, lesson := range lessons {
		result = append(result, fiber.Map{
			"id":                   lesson.ID,
			"title":                lesson.Title,
			"order":                lesson.Order,
			"must_upload_homework": lesson.MustUploadHomework,
		})
	}
	return utils.Success(c, fiber.StatusOK, result)
}

// GetLesson godoc
// @Summary Open a lesson
// @Description Returns the lesson content once the learner passes the access gate
// @Tags courses
// @Produce json
// @Param id path int true "Lesson ID"
// @Success 200 {object} utils.SuccessResponse
// @Failure 403 {object} utils.ErrorResponse
// @Failure 404 {object} utils.ErrorResponse
// @Security ApiKeyAuth
// @Router /lessons/{id} [get]
func (cc *CoursesController) GetLesson(c *fiber.Ctx) error {
	lessonID, err := paramID(c, "id")
	if err != nil {
		return utils.BadRequest(c, "Invalid lesson ID")
	}
	claims, _ := utils.CurrentClaims(c)

	if err := cc.Gate.CanAccessLesson(c.UserContext(), claims.UserID, lessonID); err != nil {
		return respondError(c, cc.Logger, err)
	}
	lesson, err := cc.Content.GetLessonByID(c.UserContext(), lessonID)
	if err != nil {
		return respondError(c, cc.Logger, err)
	}

	tests := make([]fiber.Map, 0, len(lesson.Tests))
	for _, t := range lesson.Tests {
		tests = append(tests, fiber.Map{"id": t.ID, "title": t.Title})
	}
	return utils.Success(c, fiber.StatusOK, fiber.Map{
		"id":                   lesson.ID,
		"course_id":            lesson.CourseID,
		"title":                lesson.Title,
		"content":              lesson.Content,
		"order":                lesson.Order,
		"must_upload_homework": lesson.MustUploadHomework,
		"tests":                tests,
	})
}
