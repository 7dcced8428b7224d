package controllers

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/devlog/devblog/models"
	"github.com/devlog/devblog/utils"
)

// Anonymous comments created without a password fall back to this value;
// callers must then supply it for later edits and deletes.
const defaultAnonymousPassword = "1111"

// CommentController manages CRUD for comments. Authenticated callers own
// their comments; anonymous comments are protected by a bcrypt password hash.
type CommentController struct {
	db *gorm.DB
}

// NewCommentController creates a CommentController.
func NewCommentController(db *gorm.DB) *CommentController {
	return &CommentController{db: db}
}

// CreateComment attaches the authenticated caller as author, or creates an
// anonymous comment with a generated display name and a hashed password.
func (c *CommentController) CreateComment(ctx *gin.Context) {
	var req struct {
		PostID   uint   `json:"post_id" binding:"required"`
		Content  string `json:"content" binding:"required"`
		Password string `json:"password"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40022, "invalid request payload")
		return
	}

	content := utils.Sanitize(req.Content)
	if strings.TrimSpace(content) == "" {
		utils.Error(ctx, http.StatusBadRequest, 40023, "content cannot be empty")
		return
	}

	var post models.Post
	if err := c.db.First(&post, req.PostID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			utils.Error(ctx, http.StatusNotFound, 40402, "post not found")
			return
		}
		utils.Error(ctx, http.StatusInternalServerError, 50024, "failed to load post")
		return
	}

	comment := models.Comment{
		PostID:  post.ID,
		Content: content,
	}

	if userID, ok := getUserID(ctx); ok {
		comment.AuthorID = &userID
	} else {
		password := req.Password
		if password == "" {
			password = defaultAnonymousPassword
		}
		hash, err := utils.HashPassword(password)
		if err != nil {
			utils.Error(ctx, http.StatusInternalServerError, 50031, "failed to hash password")
			return
		}
		comment.AuthorName = fmt.Sprintf("user_%s", strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
		comment.PasswordHash = hash
	}

	if err := c.db.Create(&comment).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50025, "failed to create comment")
		return
	}

	if err := c.db.Preload("Author").First(&comment, comment.ID).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50026, "failed to load comment")
		return
	}

	utils.InvalidateByPrefix(utils.PostDetailCacheKey(strconv.Itoa(int(post.ID))))

	utils.Success(ctx, gin.H{"comment": commentResponse(&comment)})
}

// UpdateComment edits a comment. Anonymous comments require the matching
// plaintext password; authenticated callers must own the comment.
func (c *CommentController) UpdateComment(ctx *gin.Context) {
	var req struct {
		Content  string `json:"content" binding:"required"`
		Password string `json:"password"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40024, "invalid request payload")
		return
	}

	comment, ok := c.loadComment(ctx)
	if !ok {
		return
	}

	userID, authenticated := getUserID(ctx)
	switch {
	case !authenticated:
		if req.Password == "" {
			utils.Error(ctx, http.StatusForbidden, 40321, "password required to edit an anonymous comment")
			return
		}
		if !utils.CheckPassword(comment.PasswordHash, req.Password) {
			utils.Error(ctx, http.StatusForbidden, 40322, "password does not match")
			return
		}
	case comment.AuthorID == nil || *comment.AuthorID != userID:
		utils.Error(ctx, http.StatusForbidden, 40323, "you can only edit your own comment")
		return
	}

	content := utils.Sanitize(req.Content)
	if strings.TrimSpace(content) == "" {
		utils.Error(ctx, http.StatusBadRequest, 40023, "content cannot be empty")
		return
	}

	comment.Content = content
	if err := c.db.Save(comment).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50032, "failed to update comment")
		return
	}

	utils.InvalidateByPrefix(utils.PostDetailCacheKey(strconv.Itoa(int(comment.PostID))))

	utils.Success(ctx, gin.H{"comment": commentResponse(comment)})
}

// DeleteComment removes a comment. Anonymous comments require the matching
// password; authenticated callers must own the comment, except staff who may
// delete any comment.
func (c *CommentController) DeleteComment(ctx *gin.Context) {
	comment, ok := c.loadComment(ctx)
	if !ok {
		return
	}

	userID, authenticated := getUserID(ctx)
	if !authenticated {
		var req struct {
			Password string `json:"password"`
		}
		_ = ctx.ShouldBindJSON(&req)
		if req.Password == "" {
			utils.Error(ctx, http.StatusForbidden, 40324, "password required to delete an anonymous comment")
			return
		}
		if !utils.CheckPassword(comment.PasswordHash, req.Password) {
			utils.Error(ctx, http.StatusForbidden, 40322, "password does not match")
			return
		}
	} else if comment.AuthorID == nil || *comment.AuthorID != userID {
		if !c.isStaff(userID) {
			utils.Error(ctx, http.StatusForbidden, 40320, "you can only delete your own comment")
			return
		}
	}

	if err := c.db.Delete(comment).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50033, "failed to delete comment")
		return
	}

	utils.InvalidateByPrefix(utils.PostDetailCacheKey(strconv.Itoa(int(comment.PostID))))

	utils.SuccessMessage(ctx, "comment deleted")
}

func (c *CommentController) loadComment(ctx *gin.Context) (*models.Comment, bool) {
	cid := strings.TrimSpace(ctx.Param("id"))
	if cid == "" {
		utils.Error(ctx, http.StatusBadRequest, 40070, "missing comment id")
		return nil, false
	}
	var comment models.Comment
	if err := c.db.Preload("Author").First(&comment, cid).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			utils.Error(ctx, http.StatusNotFound, 40420, "comment not found")
			return nil, false
		}
		utils.Error(ctx, http.StatusInternalServerError, 50070, "failed to load comment")
		return nil, false
	}
	return &comment, true
}

func (c *CommentController) isStaff(userID uint) bool {
	var user models.User
	if err := c.db.First(&user, userID).Error; err != nil {
		return false
	}
	return user.IsStaff
}

func commentResponse(comment *models.Comment) gin.H {
	return gin.H{
		"id":              comment.ID,
		"post_id":         comment.PostID,
		"author_id":       comment.AuthorID,
		"author_nickname": comment.Nickname(),
		"content":         comment.Content,
		"created_at":      comment.CreatedAt,
		"updated_at":      comment.UpdatedAt,
	}
}
