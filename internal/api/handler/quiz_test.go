package handler

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qs3c/quiz_go_server/internal/api/middleware"
	"github.com/qs3c/quiz_go_server/internal/model"
	"github.com/qs3c/quiz_go_server/internal/model/dto"
	"github.com/qs3c/quiz_go_server/internal/pkg/response"
	"github.com/qs3c/quiz_go_server/internal/testutil"
)

func quizTestRouter(env *testEnv, userID int64) *gin.Engine {
	handler := NewQuizHandler(env.quizService)

	router := gin.New()
	router.GET("/shared/:token", handler.GetShared)

	authed := router.Group("")
	authed.Use(mockAuth(userID))
	authed.POST("/quizzes", middleware.QuotaCheck(env.quotaService), handler.Create)
	authed.GET("/quizzes", handler.List)
	authed.GET("/quizzes/:id", handler.Get)
	authed.DELETE("/quizzes/:id", handler.Delete)
	authed.POST("/quizzes/:id/share", handler.Share)
	authed.DELETE("/quizzes/:id/share", handler.Unshare)
	authed.POST("/quizzes/:id/attempts", handler.SubmitAttempt)
	authed.GET("/quizzes/:id/results", handler.ListResults)
	return router
}

func quizRequest() dto.CreateQuizRequest {
	return dto.CreateQuizRequest{
		Title:             "Photosynthesis",
		SubjectsAndTopics: "biology: photosynthesis",
		Difficulty:        "easy",
		QuestionCount:     4,
	}
}

func TestQuizHandler_Create(t *testing.T) {
	env := newTestEnv(t)
	user := testutil.TestUser(t, env.db)

	resp := parseResponse(t, performRequest(quizTestRouter(env, user.ID), http.MethodPost, "/quizzes", quizRequest()))
	require.Equal(t, response.CodeSuccess, resp.Code)

	var detail dto.QuizDetail
	decodeData(t, resp, &detail)
	assert.Equal(t, "Photosynthesis", detail.Title)
	assert.Len(t, detail.Questions, 4)
	assert.False(t, detail.HasFiles)
}

func TestQuizHandler_Create_WithDocument(t *testing.T) {
	env := newTestEnv(t)
	user := testutil.TestUser(t, env.db)
	doc := testutil.TestDocument(t, env.db, user.ID)

	req := quizRequest()
	req.DocumentID = &doc.ID

	resp := parseResponse(t, performRequest(quizTestRouter(env, user.ID), http.MethodPost, "/quizzes", req))
	require.Equal(t, response.CodeSuccess, resp.Code)

	var detail dto.QuizDetail
	decodeData(t, resp, &detail)
	assert.True(t, detail.HasFiles)
}

func TestQuizHandler_Create_QuotaExceeded(t *testing.T) {
	env := newTestEnv(t)
	user := testutil.TestUser(t, env.db)
	doc := testutil.TestDocument(t, env.db, user.ID)
	testutil.TestQuizzes(t, env.db, user.ID, 5, testutil.WithHasFiles(true))

	req := quizRequest()
	req.DocumentID = &doc.ID

	resp := parseResponse(t, performRequest(quizTestRouter(env, user.ID), http.MethodPost, "/quizzes", req))
	assert.Equal(t, response.CodeQuotaExceeded, resp.Code)
}

func TestQuizHandler_Create_InvalidParams(t *testing.T) {
	env := newTestEnv(t)
	user := testutil.TestUser(t, env.db)
	router := quizTestRouter(env, user.ID)

	req := quizRequest()
	req.Difficulty = "impossible"
	assert.Equal(t, response.CodeParamError, parseResponse(t, performRequest(router, http.MethodPost, "/quizzes", req)).Code)

	req = quizRequest()
	req.QuestionCount = 51
	assert.Equal(t, response.CodeParamError, parseResponse(t, performRequest(router, http.MethodPost, "/quizzes", req)).Code)
}

func TestQuizHandler_Create_GeneratorDown(t *testing.T) {
	env := newTestEnv(t)
	env.generator.err = errors.New("timeout")
	user := testutil.TestUser(t, env.db)

	resp := parseResponse(t, performRequest(quizTestRouter(env, user.ID), http.MethodPost, "/quizzes", quizRequest()))
	assert.Equal(t, response.CodeUpstreamError, resp.Code)
}

func TestQuizHandler_ListAndGet(t *testing.T) {
	env := newTestEnv(t)
	user := testutil.TestUser(t, env.db)
	other := testutil.TestUser(t, env.db)
	quiz := testutil.TestQuiz(t, env.db, user.ID)
	testutil.TestQuiz(t, env.db, user.ID)

	router := quizTestRouter(env, user.ID)

	resp := parseResponse(t, performRequest(router, http.MethodGet, "/quizzes?page=1&page_size=10", nil))
	require.Equal(t, response.CodeSuccess, resp.Code)
	var page response.PageData
	decodeData(t, resp, &page)
	assert.Equal(t, int64(2), page.Total)

	resp = parseResponse(t, performRequest(router, http.MethodGet, fmt.Sprintf("/quizzes/%d", quiz.ID), nil))
	assert.Equal(t, response.CodeSuccess, resp.Code)

	resp = parseResponse(t, performRequest(quizTestRouter(env, other.ID), http.MethodGet, fmt.Sprintf("/quizzes/%d", quiz.ID), nil))
	assert.Equal(t, response.CodePermissionDenied, resp.Code)

	resp = parseResponse(t, performRequest(router, http.MethodGet, "/quizzes/abc", nil))
	assert.Equal(t, response.CodeParamError, resp.Code)

	resp = parseResponse(t, performRequest(router, http.MethodGet, "/quizzes/999999", nil))
	assert.Equal(t, response.CodeResourceNotFound, resp.Code)
}

func TestQuizHandler_ShareFlow(t *testing.T) {
	env := newTestEnv(t)
	owner := testutil.TestUser(t, env.db)
	visitor := testutil.TestUser(t, env.db)
	quiz := testutil.TestQuiz(t, env.db, owner.ID)

	router := quizTestRouter(env, owner.ID)
	resp := parseResponse(t, performRequest(router, http.MethodPost, fmt.Sprintf("/quizzes/%d/share", quiz.ID), nil))
	require.Equal(t, response.CodeSuccess, resp.Code)

	var shared dto.ShareQuizResponse
	decodeData(t, resp, &shared)
	require.NotEmpty(t, shared.ShareToken)

	resp = parseResponse(t, performRequest(router, http.MethodGet, "/shared/"+shared.ShareToken, nil))
	require.Equal(t, response.CodeSuccess, resp.Code)
	var detail dto.QuizDetail
	decodeData(t, resp, &detail)
	for _, q := range detail.Questions {
		assert.Nil(t, q.CorrectOptionIndex)
	}

	visitorRouter := quizTestRouter(env, visitor.ID)
	resp = parseResponse(t, performRequest(visitorRouter, http.MethodPost, fmt.Sprintf("/quizzes/%d/attempts", quiz.ID), dto.SubmitAttemptRequest{Answers: []int{0, 1}}))
	require.Equal(t, response.CodeSuccess, resp.Code)
	var result dto.QuizResultInfo
	decodeData(t, resp, &result)
	assert.Equal(t, 2, result.Score)

	resp = parseResponse(t, performRequest(router, http.MethodDelete, fmt.Sprintf("/quizzes/%d/share", quiz.ID), nil))
	require.Equal(t, response.CodeSuccess, resp.Code)

	resp = parseResponse(t, performRequest(router, http.MethodGet, "/shared/"+shared.ShareToken, nil))
	assert.Equal(t, response.CodeResourceNotFound, resp.Code)

	resp = parseResponse(t, performRequest(visitorRouter, http.MethodPost, fmt.Sprintf("/quizzes/%d/attempts", quiz.ID), dto.SubmitAttemptRequest{Answers: []int{0, 1}}))
	assert.Equal(t, response.CodePermissionDenied, resp.Code)
}

func TestQuizHandler_SubmitAttempt_WrongAnswerCount(t *testing.T) {
	env := newTestEnv(t)
	user := testutil.TestUser(t, env.db)
	quiz := testutil.TestQuiz(t, env.db, user.ID)

	resp := parseResponse(t, performRequest(quizTestRouter(env, user.ID), http.MethodPost,
		fmt.Sprintf("/quizzes/%d/attempts", quiz.ID), dto.SubmitAttemptRequest{Answers: []int{0, 1, 2}}))
	assert.Equal(t, response.CodeParamError, resp.Code)
}

func TestQuizHandler_DeleteAndResults(t *testing.T) {
	env := newTestEnv(t)
	user := testutil.TestUser(t, env.db)
	quiz := testutil.TestQuiz(t, env.db, user.ID)
	router := quizTestRouter(env, user.ID)

	performRequest(router, http.MethodPost, fmt.Sprintf("/quizzes/%d/attempts", quiz.ID), dto.SubmitAttemptRequest{Answers: []int{1, 1}})

	resp := parseResponse(t, performRequest(router, http.MethodGet, fmt.Sprintf("/quizzes/%d/results", quiz.ID), nil))
	require.Equal(t, response.CodeSuccess, resp.Code)
	var results []dto.QuizResultInfo
	decodeData(t, resp, &results)
	require.Len(t, results, 1)
	assert.Equal(t, 1, results[0].Score)

	resp = parseResponse(t, performRequest(router, http.MethodDelete, fmt.Sprintf("/quizzes/%d", quiz.ID), nil))
	require.Equal(t, response.CodeSuccess, resp.Code)

	var remaining int64
	require.NoError(t, env.db.Model(&model.Quiz{}).Where("id = ?", quiz.ID).Count(&remaining).Error)
	assert.Zero(t, remaining)
}
