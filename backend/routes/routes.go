package routes

import (
	"log"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"learnpath/backend/config"
	"learnpath/backend/controllers"
	"learnpath/backend/middleware"
	"learnpath/backend/services"
)

func SetupRoutes(app *fiber.App, db *gorm.DB, cfg *config.Config, notifier services.Notifier, logger *log.Logger) {
	// Auth routes
	authController := controllers.NewAuthController(db, cfg, logger)
	app.Post("/api/auth/register", authController.Register)
	app.Post("/api/auth/login", authController.Login)

	// Middleware
	authMiddleware := middleware.AuthMiddleware(cfg)
	staffMiddleware := middleware.StaffMiddleware()

	app.Get("/api/user/profile", authMiddleware, authController.GetProfile)

	// Courses and lessons
	coursesController := controllers.NewCoursesController(db, logger)
	progressController := controllers.NewProgressController(db, logger)
	courses := app.Group("/api/courses", authMiddleware)
	courses.Get("/", coursesController.GetCourses)
	courses.Get("/:id/lessons", coursesController.GetCourseLessons)
	courses.Get("/:id/progress", progressController.GetCourseProgress)

	lessons := app.Group("/api/lessons", authMiddleware)
	lessons.Get("/:id", coursesController.GetLesson)
	lessons.Post("/:id/complete", staffMiddleware, progressController.CompleteLesson)

	// Tests and attempts
	testsController := controllers.NewTestsController(db, notifier, logger)
	tests := app.Group("/api/tests", authMiddleware)
	tests.Get("/", testsController.GetTests)
	tests.Get("/:id", testsController.GetTestData)
	tests.Get("/:id/questions", staffMiddleware, testsController.GetTestQuestions)
	tests.Get("/:id/attempts", testsController.GetMyAttempts)
	tests.Post("/:id/attempts", testsController.CreateAttempt)

	attempts := app.Group("/api/attempts", authMiddleware)
	attempts.Get("/:id", testsController.GetAttempt)
	attempts.Put("/:id/answers/:questionId", testsController.SubmitAnswer)
	attempts.Post("/:id/end", testsController.EndAttempt)

	// Staff overrides
	staffController := controllers.NewStaffController(db, notifier, logger)
	staff := app.Group("/api/staff", authMiddleware, staffMiddleware)
	staff.Get("/tests/:id/summary", staffController.GetTestSummary)
	staff.Post("/tests/:id/users/:userId/attempt-limit/increase", staffController.IncreaseAttemptLimit)
	staff.Post("/tests/:id/users/:userId/attempt-limit/decrease", staffController.DecreaseAttemptLimit)
	staff.Post("/lessons/:id/access/:userId", staffController.GrantLessonAccess)
	staff.Delete("/lessons/:id/access/:userId", staffController.RevokeLessonAccess)
	staff.Put("/answers/:id/approval", staffController.SetAnswerApproval)
}
