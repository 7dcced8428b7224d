package controllers

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/devlog/devblog/middleware"
	"github.com/devlog/devblog/models"
	"github.com/devlog/devblog/storage"
	"github.com/devlog/devblog/utils"
)

// PostController manages CRUD operations for posts. Saving or deleting a post
// reconciles the object-storage lifecycle of every image its content embeds.
type PostController struct {
	db     *gorm.DB
	images *storage.ImageManager
}

// NewPostController creates a new PostController instance.
func NewPostController(db *gorm.DB, images *storage.ImageManager) *PostController {
	return &PostController{db: db, images: images}
}

// ListPosts returns all posts with resolved author nickname and tag list.
// The collection is unpaginated; it supports filtering by tag name or author
// nickname, substring search over title/tag/nickname, and ordering by
// creation time or title.
func (p *PostController) ListPosts(ctx *gin.Context) {
	tag := strings.TrimSpace(ctx.Query("tag"))
	author := strings.TrimSpace(ctx.Query("author"))
	search := strings.TrimSpace(ctx.Query("search"))
	ordering := strings.TrimSpace(ctx.Query("ordering"))

	filtered := tag != "" || author != "" || search != "" || ordering != ""
	cacheKey := utils.PostListCacheKey()
	if !filtered {
		if b, ok := utils.CacheGetBytes(cacheKey); ok {
			ctx.Data(http.StatusOK, "application/json", b)
			return
		}
	}

	query := p.db.Model(&models.Post{}).Preload("Author").Preload("Tags")

	if tag != "" {
		query = query.
			Joins("JOIN post_tags ON post_tags.post_id = posts.id").
			Joins("JOIN tags ON tags.id = post_tags.tag_id").
			Where("tags.name = ?", tag).
			Distinct("posts.*")
	}
	if author != "" {
		query = query.
			Joins("JOIN users ON users.id = posts.author_id").
			Where("users.nickname = ?", author)
	}
	if search != "" {
		like := "%" + search + "%"
		query = query.
			Joins("LEFT JOIN users su ON su.id = posts.author_id").
			Joins("LEFT JOIN post_tags spt ON spt.post_id = posts.id").
			Joins("LEFT JOIN tags st ON st.id = spt.tag_id").
			Where("posts.title LIKE ? OR st.name LIKE ? OR su.nickname LIKE ?", like, like, like).
			Distinct("posts.*")
	}

	order, err := resolveOrdering(ordering)
	if err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40027, err.Error())
		return
	}
	query = query.Order(order)

	var posts []models.Post
	if err := query.Find(&posts).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50022, "failed to list posts")
		return
	}

	items := make([]gin.H, 0, len(posts))
	for i := range posts {
		items = append(items, postResponse(&posts[i]))
	}

	payload := gin.H{"items": items}
	if !filtered {
		wrapper := utils.JSONResponse{Code: 0, Message: "success", Data: payload}
		utils.CacheSetJSON(cacheKey, wrapper, time.Hour)
	}
	utils.Success(ctx, payload)
}

// GetPost returns a single post with author and tags resolved.
func (p *PostController) GetPost(ctx *gin.Context) {
	postID := ctx.Param("id")

	if b, ok := utils.CacheGetBytes(utils.PostDetailCacheKey(postID)); ok {
		ctx.Data(http.StatusOK, "application/json", b)
		return
	}

	var post models.Post
	if err := p.db.Preload("Author").Preload("Tags").First(&post, postID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			utils.Error(ctx, http.StatusNotFound, 40401, "post not found")
			return
		}
		utils.Error(ctx, http.StatusInternalServerError, 50023, "failed to load post")
		return
	}

	payload := gin.H{"post": postResponse(&post)}
	wrapper := utils.JSONResponse{Code: 0, Message: "success", Data: payload}
	utils.CacheSetJSON(utils.PostDetailCacheKey(postID), wrapper, time.Hour)
	utils.Success(ctx, payload)
}

// CreatePost creates a post. Referenced temporary images are promoted to
// permanent storage before the content is durably saved.
func (p *PostController) CreatePost(ctx *gin.Context) {
	var req struct {
		Title   string   `json:"title" binding:"required,min=1"`
		Content string   `json:"content" binding:"required"`
		Tags    []string `json:"tags"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40020, "invalid request payload")
		return
	}

	title := utils.Sanitize(strings.TrimSpace(req.Title))
	if title == "" {
		utils.Error(ctx, http.StatusBadRequest, 40021, "title cannot be empty")
		return
	}
	content := utils.Sanitize(req.Content)

	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
		return
	}

	tags, err := p.resolveTags(req.Tags)
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50029, "failed to resolve tags")
		return
	}

	p.images.PromoteTempImages(content)

	post := models.Post{
		AuthorID: userID,
		Title:    title,
		Content:  content,
		Tags:     tags,
	}
	if err := p.db.Create(&post).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50020, "failed to create post")
		return
	}

	if err := p.db.Preload("Author").Preload("Tags").First(&post, post.ID).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50023, "failed to load post")
		return
	}

	utils.InvalidateByPrefix(utils.PostListCacheKey())

	utils.Success(ctx, gin.H{"post": postResponse(&post)})
}

// UpdatePost updates a post the acting staff user authored. New image
// references are promoted; images referenced only by the old content are
// deleted after the save.
func (p *PostController) UpdatePost(ctx *gin.Context) {
	var req struct {
		Title   string   `json:"title" binding:"required,min=1"`
		Content string   `json:"content" binding:"required"`
		Tags    []string `json:"tags"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40024, "invalid request payload")
		return
	}

	title := utils.Sanitize(strings.TrimSpace(req.Title))
	if title == "" {
		utils.Error(ctx, http.StatusBadRequest, 40025, "title cannot be empty")
		return
	}

	postID := ctx.Param("id")
	var post models.Post
	if err := p.db.First(&post, postID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			utils.Error(ctx, http.StatusNotFound, 40403, "post not found")
			return
		}
		utils.Error(ctx, http.StatusInternalServerError, 50025, "failed to load post")
		return
	}

	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40111, "unauthorized")
		return
	}
	if post.AuthorID != userID {
		utils.Error(ctx, http.StatusForbidden, 40301, "you can only update your own posts")
		return
	}

	oldContent := post.Content
	content := utils.Sanitize(req.Content)

	tags, err := p.resolveTags(req.Tags)
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50029, "failed to resolve tags")
		return
	}

	p.images.PromoteTempImages(content)

	post.Title = title
	post.Content = content
	if err := p.db.Save(&post).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50026, "failed to update post")
		return
	}
	if err := p.db.Model(&post).Association("Tags").Replace(tags); err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50029, "failed to update tags")
		return
	}

	if oldContent != "" {
		p.images.DeleteUnusedImages(oldContent, content)
	}

	if err := p.db.Preload("Author").Preload("Tags").First(&post, post.ID).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50023, "failed to load post")
		return
	}

	utils.InvalidateByPrefix(utils.PostListCacheKey())
	utils.InvalidateByPrefix(utils.PostDetailCacheKey(postID))

	utils.Success(ctx, gin.H{"post": postResponse(&post)})
}

// DeletePost deletes a post the acting staff user authored, then removes
// every storage object its content referenced.
func (p *PostController) DeletePost(ctx *gin.Context) {
	postID := ctx.Param("id")
	var post models.Post
	if err := p.db.First(&post, postID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			utils.Error(ctx, http.StatusNotFound, 40404, "post not found")
			return
		}
		utils.Error(ctx, http.StatusInternalServerError, 50027, "failed to load post")
		return
	}

	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40112, "unauthorized")
		return
	}
	if post.AuthorID != userID {
		utils.Error(ctx, http.StatusForbidden, 40302, "you can only delete your own posts")
		return
	}

	content := post.Content
	if err := p.db.Select("Comments", "Tags").Delete(&post).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50028, "failed to delete post")
		return
	}

	if content != "" {
		p.images.DeleteUnusedImages(content, "")
	}

	utils.InvalidateByPrefix(utils.PostListCacheKey())
	utils.InvalidateByPrefix(utils.PostDetailCacheKey(postID))

	utils.SuccessMessage(ctx, "post deleted")
}

// ListPostComments returns all comments on a post, newest first.
func (p *PostController) ListPostComments(ctx *gin.Context) {
	postID := ctx.Param("id")
	var post models.Post
	if err := p.db.First(&post, postID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			utils.Error(ctx, http.StatusNotFound, 40402, "post not found")
			return
		}
		utils.Error(ctx, http.StatusInternalServerError, 50024, "failed to load post")
		return
	}

	var comments []models.Comment
	if err := p.db.Preload("Author").Where("post_id = ?", post.ID).Order("created_at DESC").Find(&comments).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50030, "failed to list comments")
		return
	}

	items := make([]gin.H, 0, len(comments))
	for i := range comments {
		items = append(items, commentResponse(&comments[i]))
	}
	utils.Success(ctx, gin.H{"items": items})
}

// resolveTags normalizes tag names and maps each onto an existing or freshly
// created Tag row.
func (p *PostController) resolveTags(names []string) ([]models.Tag, error) {
	names = utils.NormalizeNames(names)
	tags := make([]models.Tag, 0, len(names))
	for _, name := range names {
		var tag models.Tag
		if err := p.db.Where("name = ?", name).FirstOrCreate(&tag, models.Tag{Name: name}).Error; err != nil {
			return nil, err
		}
		tags = append(tags, tag)
	}
	return tags, nil
}

func resolveOrdering(ordering string) (string, error) {
	if ordering == "" {
		ordering = "-created_at"
	}
	desc := strings.HasPrefix(ordering, "-")
	field := strings.TrimPrefix(ordering, "-")
	switch field {
	case "created_at", "title":
	default:
		return "", fmt.Errorf("unsupported ordering field: %s", field)
	}
	if desc {
		return "posts." + field + " DESC", nil
	}
	return "posts." + field + " ASC", nil
}

func postResponse(post *models.Post) gin.H {
	return gin.H{
		"id":              post.ID,
		"title":           post.Title,
		"content":         post.Content,
		"author_nickname": post.AuthorNickname(),
		"tags":            post.TagNames(),
		"created_at":      post.CreatedAt,
		"updated_at":      post.UpdatedAt,
	}
}

func getUserID(ctx *gin.Context) (uint, bool) {
	value, exists := ctx.Get(middleware.ContextUserIDKey)
	if !exists {
		return 0, false
	}

	switch v := value.(type) {
	case uint:
		return v, true
	case int:
		return uint(v), true
	case int64:
		return uint(v), true
	case float64:
		return uint(v), true
	default:
		return 0, false
	}
}
