package handler

import (
	"net/http"
	"strings"

	"github.com/civicsafe/api/internal/middleware"
	"github.com/civicsafe/api/internal/model"
	"github.com/civicsafe/api/internal/store"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type PostHandler struct {
	posts  store.PostStore
	logger *zap.Logger
}

func NewPostHandler(posts store.PostStore, logger *zap.Logger) *PostHandler {
	return &PostHandler{posts: posts, logger: logger}
}

// List returns published posts
func (h *PostHandler) List(c *gin.Context) {
	posts, err := h.posts.ListPublished(c.Request.Context())
	if err != nil {
		h.logger.Error("failed to fetch posts", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}
	c.JSON(http.StatusOK, posts)
}

type CreatePostRequest struct {
	Title     string  `json:"title" binding:"required"`
	Content   string  `json:"content" binding:"required"`
	Excerpt   string  `json:"excerpt"`
	Image     *string `json:"image"`
	Published bool    `json:"published"`
}

// Create publishes a post (admin only)
func (h *PostHandler) Create(c *gin.Context) {
	id := middleware.CurrentIdentity(c)
	if id == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var req CreatePostRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "title and content are required"})
		return
	}

	post := model.Post{
		Title:     strings.TrimSpace(req.Title),
		Content:   req.Content,
		Excerpt:   strings.TrimSpace(req.Excerpt),
		Image:     req.Image,
		Published: req.Published,
		AuthorID:  id.ID,
	}
	if post.Excerpt == "" {
		post.Excerpt = model.DefaultExcerpt(post.Content)
	}

	if err := h.posts.Create(c.Request.Context(), &post); err != nil {
		h.logger.Error("failed to create post", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}

	c.JSON(http.StatusCreated, store.PostView{Post: post, AuthorName: id.DisplayName})
}
