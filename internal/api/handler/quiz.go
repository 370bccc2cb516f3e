package handler

import (
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"

	"github.com/qs3c/quiz_go_server/internal/api/middleware"
	"github.com/qs3c/quiz_go_server/internal/model/dto"
	"github.com/qs3c/quiz_go_server/internal/pkg/response"
	"github.com/qs3c/quiz_go_server/internal/service"
)

type QuizHandler struct {
	quizService *service.QuizService
}

func NewQuizHandler(quizService *service.QuizService) *QuizHandler {
	return &QuizHandler{
		quizService: quizService,
	}
}

// Create 生成测验
// POST /api/v1/quizzes
func (h *QuizHandler) Create(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.AuthError(c, "")
		return
	}

	// 配额中间件已读取过请求体
	var req dto.CreateQuizRequest
	if err := c.ShouldBindBodyWith(&req, binding.JSON); err != nil {
		response.ParamError(c, err.Error())
		return
	}

	detail, err := h.quizService.Create(c.Request.Context(), userID, &req)
	if err != nil {
		writeQuizError(c, err)
		return
	}

	response.SuccessWithMessage(c, "测验已生成", detail)
}

// List 当前用户的测验列表
// GET /api/v1/quizzes
func (h *QuizHandler) List(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.AuthError(c, "")
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	items, total, err := h.quizService.List(c.Request.Context(), userID, page, pageSize)
	if err != nil {
		response.ServerError(c, "")
		return
	}

	response.SuccessPage(c, total, page, pageSize, items)
}

// Get 测验详情
// GET /api/v1/quizzes/:id
func (h *QuizHandler) Get(c *gin.Context) {
	userID, quizID, ok := userAndQuizID(c)
	if !ok {
		return
	}

	detail, err := h.quizService.GetByID(c.Request.Context(), userID, quizID)
	if err != nil {
		writeQuizError(c, err)
		return
	}

	response.Success(c, detail)
}

// Delete 删除测验
// DELETE /api/v1/quizzes/:id
func (h *QuizHandler) Delete(c *gin.Context) {
	userID, quizID, ok := userAndQuizID(c)
	if !ok {
		return
	}

	if err := h.quizService.Delete(c.Request.Context(), userID, quizID); err != nil {
		writeQuizError(c, err)
		return
	}

	response.SuccessWithMessage(c, "删除成功", nil)
}

// Share 公开测验
// POST /api/v1/quizzes/:id/share
func (h *QuizHandler) Share(c *gin.Context) {
	userID, quizID, ok := userAndQuizID(c)
	if !ok {
		return
	}

	resp, err := h.quizService.Share(c.Request.Context(), userID, quizID)
	if err != nil {
		writeQuizError(c, err)
		return
	}

	response.Success(c, resp)
}

// Unshare 取消公开
// DELETE /api/v1/quizzes/:id/share
func (h *QuizHandler) Unshare(c *gin.Context) {
	userID, quizID, ok := userAndQuizID(c)
	if !ok {
		return
	}

	if err := h.quizService.Unshare(c.Request.Context(), userID, quizID); err != nil {
		writeQuizError(c, err)
		return
	}

	response.SuccessWithMessage(c, "已取消分享", nil)
}

// SubmitAttempt 提交答题
// POST /api/v1/quizzes/:id/attempts
func (h *QuizHandler) SubmitAttempt(c *gin.Context) {
	userID, quizID, ok := userAndQuizID(c)
	if !ok {
		return
	}

	var req dto.SubmitAttemptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, err.Error())
		return
	}

	result, err := h.quizService.SubmitAttempt(c.Request.Context(), userID, quizID, &req)
	if err != nil {
		writeQuizError(c, err)
		return
	}

	response.Success(c, result)
}

// ListResults 当前用户的答题记录
// GET /api/v1/quizzes/:id/results
func (h *QuizHandler) ListResults(c *gin.Context) {
	userID, quizID, ok := userAndQuizID(c)
	if !ok {
		return
	}

	results, err := h.quizService.ListResults(c.Request.Context(), userID, quizID)
	if err != nil {
		writeQuizError(c, err)
		return
	}

	response.Success(c, results)
}

// GetShared 通过分享令牌查看测验，不含答案
// GET /api/v1/shared/:token
func (h *QuizHandler) GetShared(c *gin.Context) {
	detail, err := h.quizService.GetShared(c.Request.Context(), c.Param("token"))
	if err != nil {
		writeQuizError(c, err)
		return
	}

	response.Success(c, detail)
}

func userAndQuizID(c *gin.Context) (int64, int64, bool) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.AuthError(c, "")
		return 0, 0, false
	}

	quizID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.ParamError(c, "无效的测验 ID")
		return 0, 0, false
	}

	return userID, quizID, true
}

func writeQuizError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrQuotaExceeded):
		response.QuotaError(c, err.Error())
	case errors.Is(err, service.ErrQuizNotFound), errors.Is(err, service.ErrDocumentNotFound):
		response.NotFoundError(c, err.Error())
	case errors.Is(err, service.ErrQuizPermission):
		response.PermissionError(c, err.Error())
	case errors.Is(err, service.ErrAnswerCount):
		response.ParamError(c, err.Error())
	case errors.Is(err, service.ErrGenerationFailed):
		response.UpstreamError(c, err.Error())
	default:
		response.ServerError(c, "")
	}
}
