package http

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"idea-board/internal/domain"
	"idea-board/internal/middleware"
	"idea-board/internal/service"
)

// IdeaHandler 封装了 Idea 的 HTTP 处理逻辑
type IdeaHandler struct {
	ideaService *service.IdeaService
}

// NewIdeaHandler 创建 IdeaHandler 实例
func NewIdeaHandler(ideaService *service.IdeaService) *IdeaHandler {
	if ideaService == nil {
		panic("IdeaService cannot be nil for IdeaHandler")
	}
	return &IdeaHandler{ideaService: ideaService}
}

// CreateIdeaRequest 定义创建 Idea 的请求体，标题由 IdeaService 校验
type CreateIdeaRequest struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Tags        []string `json:"tags"`
}

// UpdateIdeaRequest 是部分更新，缺省的字段保持不变
type UpdateIdeaRequest struct {
	Title       *string   `json:"title"`
	Description *string   `json:"description"`
	Tags        *[]string `json:"tags"`
}

// CommentRequest 定义评论请求体
type CommentRequest struct {
	Text string `json:"text"`
}

// VoteResponse 是投票接口的响应
type VoteResponse struct {
	Message string       `json:"message"`
	Idea    *domain.Idea `json:"idea"`
}

// List 分页列出 Idea，支持 search 和 tags 过滤
func (h *IdeaHandler) List(c *gin.Context) {
	page, err := h.ideaService.List(c.Request.Context(), listQueryFrom(c))
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, page)
}

// ListMine 只列出当前用户创建的 Idea
func (h *IdeaHandler) ListMine(c *gin.Context) {
	identity, ok := requireIdentity(c)
	if !ok {
		return
	}
	q := listQueryFrom(c)
	q.CreatorID = identity.UserID
	page, err := h.ideaService.List(c.Request.Context(), q)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, page)
}

// Tags 返回所有出现过的标签
func (h *IdeaHandler) Tags(c *gin.Context) {
	tags, err := h.ideaService.Tags(c.Request.Context())
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, tags)
}

// Get 返回单个 Idea 的完整信息
func (h *IdeaHandler) Get(c *gin.Context) {
	idea, err := h.ideaService.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, idea)
}

// Activity 返回 Idea 的活动日志
func (h *IdeaHandler) Activity(c *gin.Context) {
	limit := queryInt(c, "limit", service.DefaultActivityLimit)
	events, err := h.ideaService.Activity(c.Request.Context(), c.Param("id"), limit)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, events)
}

// Create 创建新的 Idea
func (h *IdeaHandler) Create(c *gin.Context) {
	identity, ok := requireIdentity(c)
	if !ok {
		return
	}
	var req CreateIdeaRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logrus.WithError(err).WithField("user_id", identity.UserID).Warn("Handler.CreateIdea: Invalid input format")
		ErrorResponse(c, http.StatusBadRequest, "Invalid request body")
		return
	}

	idea, err := h.ideaService.Create(c.Request.Context(), identity, service.IdeaInput{
		Title:       req.Title,
		Description: req.Description,
		Tags:        req.Tags,
	})
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusCreated, idea)
}

// Update 部分更新 Idea，只有创建者可以修改
func (h *IdeaHandler) Update(c *gin.Context) {
	identity, ok := requireIdentity(c)
	if !ok {
		return
	}
	var req UpdateIdeaRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logrus.WithError(err).WithField("user_id", identity.UserID).Warn("Handler.UpdateIdea: Invalid input format")
		ErrorResponse(c, http.StatusBadRequest, "Invalid request body")
		return
	}

	patch := domain.IdeaPatch{Title: req.Title, Description: req.Description}
	if req.Tags != nil {
		patch.Tags = *req.Tags
		patch.SetTags = true
	}
	idea, err := h.ideaService.Update(c.Request.Context(), c.Param("id"), identity, patch)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, idea)
}

// Delete 删除 Idea，只有创建者可以删除
func (h *IdeaHandler) Delete(c *gin.Context) {
	identity, ok := requireIdentity(c)
	if !ok {
		return
	}
	id := c.Param("id")
	if err := h.ideaService.Delete(c.Request.Context(), id, identity); err != nil {
		HandleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Idea removed", "id": id})
}

// Upvote 切换当前用户的点赞
func (h *IdeaHandler) Upvote(c *gin.Context) { h.vote(c, domain.VoteUp) }

// Downvote 切换当前用户的点踩
func (h *IdeaHandler) Downvote(c *gin.Context) { h.vote(c, domain.VoteDown) }

func (h *IdeaHandler) vote(c *gin.Context, dir domain.VoteDirection) {
	identity, ok := requireIdentity(c)
	if !ok {
		return
	}
	idea, tr, err := h.ideaService.Vote(c.Request.Context(), c.Param("id"), identity, dir)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, VoteResponse{Message: tr.Message(), Idea: idea})
}

// AddComment 追加评论
func (h *IdeaHandler) AddComment(c *gin.Context) {
	identity, ok := requireIdentity(c)
	if !ok {
		return
	}
	var req CommentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, "Invalid request body")
		return
	}
	if _, err := h.ideaService.AddComment(c.Request.Context(), c.Param("id"), identity, req.Text); err != nil {
		HandleServiceError(c, err)
		return
	}
	MessageResponse(c, http.StatusCreated, "Comment added successfully")
}

// --- 辅助函数 ---

// requireIdentity 取出 Auth 中间件写入的身份，缺失时直接返回 401
func requireIdentity(c *gin.Context) (domain.Identity, bool) {
	identity, ok := middleware.IdentityFrom(c)
	if !ok {
		logrus.WithField("path", c.FullPath()).Warn("Handler: identity not found in context, auth middleware missing?")
		ErrorResponse(c, http.StatusUnauthorized, "Not authenticated")
	}
	return identity, ok
}

// listQueryFrom 解析 page、limit、search、tags，无法解析的数字使用默认值
func listQueryFrom(c *gin.Context) service.ListQuery {
	return service.ListQuery{
		Page:     queryInt(c, "page", service.DefaultPage),
		PageSize: queryInt(c, "limit", service.DefaultPageSize),
		Search:   strings.TrimSpace(c.Query("search")),
		Tags:     splitTags(c.QueryArray("tags")),
	}
}

func queryInt(c *gin.Context, key string, def int) int {
	raw := c.Query(key)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return n
}

// splitTags 同时支持 ?tags=a,b 和 ?tags=a&tags=b
func splitTags(values []string) []string {
	var out []string
	for _, v := range values {
		for _, t := range strings.Split(v, ",") {
			if t = strings.TrimSpace(t); t != "" {
				out = append(out, t)
			}
		}
	}
	return out
}
