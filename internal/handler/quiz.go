package handler

import (
	"github.com/Osyna/QuestionAir/internal/dto"
	"github.com/Osyna/QuestionAir/internal/middleware"
	"github.com/Osyna/QuestionAir/internal/service"
	"github.com/Osyna/QuestionAir/internal/validation"
	"github.com/gofiber/fiber/v2"
)

// QuizHandler handles quiz-related HTTP requests
type QuizHandler struct {
	service   service.QuizService
	validator *validation.Validator
}

// NewQuizHandler creates a new QuizHandler instance
func NewQuizHandler(service service.QuizService) *QuizHandler {
	return &QuizHandler{
		service:   service,
		validator: validation.NewValidator(),
	}
}

// RegisterRoutes mounts the read API on router.
func RegisterRoutes(router fiber.Router, h *QuizHandler, vm *middleware.ValidationMiddleware) {
	router.Get("/subjects", h.GetSubjects)
	router.Get("/keywords", h.GetKeywords)
	router.Get("/stats", h.GetStats)
	router.Get("/questions/random", vm.ValidateFilter(), h.GetRandomQuestion)
	router.Get("/quiz/generate", vm.ValidateQuizParams(), h.GenerateQuiz)
	router.Post("/quiz/check", h.CheckAnswer)
}

// GetSubjects godoc
// @Summary List subjects
// @Description Returns every subject in the question bank
// @Tags catalog
// @Produce json
// @Success 200 {array} string
// @Failure 503 {object} middleware.ErrorResponse
// @Router /subjects [get]
func (h *QuizHandler) GetSubjects(c *fiber.Ctx) error {
	subjects, err := h.service.GetSubjects(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(subjects)
}

// GetKeywords godoc
// @Summary List keywords
// @Description Returns every canonical keyword in the question bank
// @Tags catalog
// @Produce json
// @Success 200 {array} string
// @Failure 503 {object} middleware.ErrorResponse
// @Router /keywords [get]
func (h *QuizHandler) GetKeywords(c *fiber.Ctx) error {
	keywords, err := h.service.GetKeywords(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(keywords)
}

// GetStats godoc
// @Summary Question bank statistics
// @Tags catalog
// @Produce json
// @Success 200 {object} dto.StatsResponse
// @Failure 503 {object} middleware.ErrorResponse
// @Router /stats [get]
func (h *QuizHandler) GetStats(c *fiber.Ctx) error {
	stats, err := h.service.GetStats(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(stats)
}

// GetRandomQuestion godoc
// @Summary Get a random question
// @Description Returns one question matching the optional subject and any of the keywords
// @Tags quiz
// @Produce json
// @Param subject query string false "Subject"
// @Param keywords query string false "Comma separated keywords"
// @Success 200 {object} dto.QuestionResponse
// @Failure 400 {object} middleware.ValidationErrorResponse
// @Failure 404 {object} middleware.ErrorResponse
// @Router /questions/random [get]
func (h *QuizHandler) GetRandomQuestion(c *fiber.Ctx) error {
	subject, _ := c.Locals(middleware.LocalSubject).(string)
	keywords, _ := c.Locals(middleware.LocalKeywords).([]string)

	question, err := h.service.GetRandomQuestion(c.UserContext(), subject, keywords)
	if err != nil {
		return err
	}
	return c.JSON(question)
}

// GenerateQuiz godoc
// @Summary Generate a quiz
// @Description Samples up to num_questions distinct questions; the list is empty when nothing matches
// @Tags quiz
// @Produce json
// @Param subject query string false "Subject"
// @Param keywords query string false "Comma separated keywords"
// @Param num_questions query int false "Number of questions (1-50)" default(10)
// @Success 200 {object} dto.QuizResponse
// @Failure 400 {object} middleware.ValidationErrorResponse
// @Router /quiz/generate [get]
func (h *QuizHandler) GenerateQuiz(c *fiber.Ctx) error {
	subject, _ := c.Locals(middleware.LocalSubject).(string)
	keywords, _ := c.Locals(middleware.LocalKeywords).([]string)
	count, ok := c.Locals(middleware.LocalNumQuestions).(int)
	if !ok {
		count = validation.DefaultQuizQuestions
	}

	quiz, err := h.service.GenerateQuiz(c.UserContext(), subject, keywords, count)
	if err != nil {
		return err
	}
	return c.JSON(quiz)
}

// CheckAnswer godoc
// @Summary Check quiz answer
// @Description Grades the selected letter against the question's first listed answer
// @Tags quiz
// @Accept json
// @Produce json
// @Param request body dto.CheckAnswerRequest true "Answer details"
// @Success 200 {object} dto.CheckAnswerResponse
// @Failure 400 {object} middleware.ValidationErrorResponse
// @Failure 404 {object} middleware.ErrorResponse
// @Router /quiz/check [post]
func (h *QuizHandler) CheckAnswer(c *fiber.Ctx) error {
	var req dto.CheckAnswerRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if errs := h.validator.ValidateCheckRequest(req.QuestionID, req.Selected); len(errs) > 0 {
		return errs
	}

	result, err := h.service.CheckAnswer(c.UserContext(), &req)
	if err != nil {
		return err
	}
	return c.JSON(result)
}
