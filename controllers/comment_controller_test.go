package controllers

import (
	"fmt"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devlog/devblog/models"
	"github.com/devlog/devblog/utils"
)

type commentPayload struct {
	ID             uint   `json:"id"`
	PostID         uint   `json:"post_id"`
	AuthorID       *uint  `json:"author_id"`
	AuthorNickname string `json:"author_nickname"`
	Content        string `json:"content"`
}

func createCommentViaAPI(t *testing.T, env *testEnv, token string, body map[string]interface{}) commentPayload {
	t.Helper()
	w := env.do(t, "POST", "/api/v1/comments", token, body)
	requireStatus(t, w, http.StatusOK)

	var data struct {
		Comment commentPayload `json:"comment"`
	}
	decodeData(t, w, &data)
	return data.Comment
}

func TestCreateCommentAuthenticated(t *testing.T) {
	env := newTestEnv(t)
	staff := env.createUser(t, "editor", true)
	reader := env.createUser(t, "reader", false)
	post := env.createPost(t, staff, "Post", "<p>x</p>")

	comment := createCommentViaAPI(t, env, env.tokenFor(t, reader), map[string]interface{}{
		"post_id": post.ID,
		"content": "great post",
	})

	require.NotNil(t, comment.AuthorID)
	assert.Equal(t, reader.ID, *comment.AuthorID)
	assert.Equal(t, "reader", comment.AuthorNickname)

	var stored models.Comment
	require.NoError(t, env.db.First(&stored, comment.ID).Error)
	assert.Empty(t, stored.PasswordHash, "authenticated comments carry no password")
	assert.Empty(t, stored.AuthorName)
}

func TestCreateCommentAnonymous(t *testing.T) {
	env := newTestEnv(t)
	staff := env.createUser(t, "editor", true)
	post := env.createPost(t, staff, "Post", "<p>x</p>")

	comment := createCommentViaAPI(t, env, "", map[string]interface{}{
		"post_id":  post.ID,
		"content":  "drive-by comment",
		"password": "hunter2",
	})

	assert.Nil(t, comment.AuthorID)
	assert.True(t, strings.HasPrefix(comment.AuthorNickname, "user_"), "nickname %q", comment.AuthorNickname)
	assert.Len(t, comment.AuthorNickname, len("user_")+8)

	var stored models.Comment
	require.NoError(t, env.db.First(&stored, comment.ID).Error)
	assert.True(t, utils.CheckPassword(stored.PasswordHash, "hunter2"))
	assert.False(t, utils.CheckPassword(stored.PasswordHash, "wrong"))
}

func TestCreateCommentAnonymousDefaultPassword(t *testing.T) {
	env := newTestEnv(t)
	staff := env.createUser(t, "editor", true)
	post := env.createPost(t, staff, "Post", "<p>x</p>")

	comment := createCommentViaAPI(t, env, "", map[string]interface{}{
		"post_id": post.ID,
		"content": "no password given",
	})

	// Deleting with the documented default password must succeed
	w := env.do(t, "DELETE", fmt.Sprintf("/api/v1/comments/%d", comment.ID), "", map[string]interface{}{
		"password": "1111",
	})
	requireStatus(t, w, http.StatusOK)
}

func TestCreateCommentPostNotFound(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, "POST", "/api/v1/comments", "", map[string]interface{}{
		"post_id": 999,
		"content": "into the void",
	})
	requireStatus(t, w, http.StatusNotFound)
	assert.Equal(t, 40402, decode(t, w).Code)
}

func TestUpdateAnonymousComment(t *testing.T) {
	env := newTestEnv(t)
	staff := env.createUser(t, "editor", true)
	post := env.createPost(t, staff, "Post", "<p>x</p>")

	comment := createCommentViaAPI(t, env, "", map[string]interface{}{
		"post_id":  post.ID,
		"content":  "original",
		"password": "hunter2",
	})
	path := fmt.Sprintf("/api/v1/comments/%d", comment.ID)

	// No password
	w := env.do(t, "PUT", path, "", map[string]interface{}{"content": "edited"})
	requireStatus(t, w, http.StatusForbidden)
	assert.Equal(t, 40321, decode(t, w).Code)

	// Wrong password
	w = env.do(t, "PUT", path, "", map[string]interface{}{"content": "edited", "password": "wrong"})
	requireStatus(t, w, http.StatusForbidden)
	assert.Equal(t, 40322, decode(t, w).Code)

	// Matching password
	w = env.do(t, "PUT", path, "", map[string]interface{}{"content": "edited", "password": "hunter2"})
	requireStatus(t, w, http.StatusOK)

	var stored models.Comment
	require.NoError(t, env.db.First(&stored, comment.ID).Error)
	assert.Equal(t, "edited", stored.Content)
}

func TestUpdateCommentOwnership(t *testing.T) {
	env := newTestEnv(t)
	staff := env.createUser(t, "editor", true)
	owner := env.createUser(t, "owner", false)
	other := env.createUser(t, "other", false)
	post := env.createPost(t, staff, "Post", "<p>x</p>")

	comment := createCommentViaAPI(t, env, env.tokenFor(t, owner), map[string]interface{}{
		"post_id": post.ID,
		"content": "mine",
	})
	path := fmt.Sprintf("/api/v1/comments/%d", comment.ID)

	w := env.do(t, "PUT", path, env.tokenFor(t, other), map[string]interface{}{"content": "stolen"})
	requireStatus(t, w, http.StatusForbidden)
	assert.Equal(t, 40323, decode(t, w).Code)

	w = env.do(t, "PUT", path, env.tokenFor(t, owner), map[string]interface{}{"content": "still mine"})
	requireStatus(t, w, http.StatusOK)
}

func TestAuthenticatedUserCannotEditAnonymousComment(t *testing.T) {
	env := newTestEnv(t)
	staff := env.createUser(t, "editor", true)
	reader := env.createUser(t, "reader", false)
	post := env.createPost(t, staff, "Post", "<p>x</p>")

	comment := createCommentViaAPI(t, env, "", map[string]interface{}{
		"post_id":  post.ID,
		"content":  "anonymous",
		"password": "hunter2",
	})

	w := env.do(t, "PUT", fmt.Sprintf("/api/v1/comments/%d", comment.ID), env.tokenFor(t, reader),
		map[string]interface{}{"content": "claimed"})
	requireStatus(t, w, http.StatusForbidden)
}

func TestDeleteCommentOwnership(t *testing.T) {
	env := newTestEnv(t)
	staff := env.createUser(t, "editor", true)
	owner := env.createUser(t, "owner", false)
	other := env.createUser(t, "other", false)
	post := env.createPost(t, staff, "Post", "<p>x</p>")

	comment := createCommentViaAPI(t, env, env.tokenFor(t, owner), map[string]interface{}{
		"post_id": post.ID,
		"content": "mine",
	})
	path := fmt.Sprintf("/api/v1/comments/%d", comment.ID)

	w := env.do(t, "DELETE", path, env.tokenFor(t, other), nil)
	requireStatus(t, w, http.StatusForbidden)
	assert.Equal(t, 40320, decode(t, w).Code)

	w = env.do(t, "DELETE", path, env.tokenFor(t, owner), nil)
	requireStatus(t, w, http.StatusOK)

	var count int64
	env.db.Model(&models.Comment{}).Count(&count)
	assert.Zero(t, count)
}

func TestDeleteCommentStaffOverride(t *testing.T) {
	env := newTestEnv(t)
	staff := env.createUser(t, "editor", true)
	owner := env.createUser(t, "owner", false)
	post := env.createPost(t, staff, "Post", "<p>x</p>")

	comment := createCommentViaAPI(t, env, env.tokenFor(t, owner), map[string]interface{}{
		"post_id": post.ID,
		"content": "offensive",
	})

	w := env.do(t, "DELETE", fmt.Sprintf("/api/v1/comments/%d", comment.ID), env.tokenFor(t, staff), nil)
	requireStatus(t, w, http.StatusOK)
}

func TestDeleteAnonymousCommentRequiresPassword(t *testing.T) {
	env := newTestEnv(t)
	staff := env.createUser(t, "editor", true)
	post := env.createPost(t, staff, "Post", "<p>x</p>")

	comment := createCommentViaAPI(t, env, "", map[string]interface{}{
		"post_id":  post.ID,
		"content":  "anonymous",
		"password": "hunter2",
	})
	path := fmt.Sprintf("/api/v1/comments/%d", comment.ID)

	w := env.do(t, "DELETE", path, "", nil)
	requireStatus(t, w, http.StatusForbidden)
	assert.Equal(t, 40324, decode(t, w).Code)

	w = env.do(t, "DELETE", path, "", map[string]interface{}{"password": "wrong"})
	requireStatus(t, w, http.StatusForbidden)

	w = env.do(t, "DELETE", path, "", map[string]interface{}{"password": "hunter2"})
	requireStatus(t, w, http.StatusOK)
}

func TestCommentNotFound(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, "PUT", "/api/v1/comments/999", "", map[string]interface{}{
		"content":  "x",
		"password": "1111",
	})
	requireStatus(t, w, http.StatusNotFound)
	assert.Equal(t, 40420, decode(t, w).Code)
}
