package controllers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/github"
	"gorm.io/gorm"

	"github.com/devlog/devblog/config"
	"github.com/devlog/devblog/middleware"
	"github.com/devlog/devblog/models"
	"github.com/devlog/devblog/utils"
)

// AuthController handles GitHub OAuth login and JWT session endpoints.
type AuthController struct {
	db *gorm.DB
}

// NewAuthController creates an AuthController.
func NewAuthController(db *gorm.DB) *AuthController {
	return &AuthController{db: db}
}

// githubProfile is the subset of the GitHub account we map onto a local user.
type githubProfile struct {
	ID    string
	Login string
	Email string
}

// GithubRedirect returns the GitHub authorization URL for the frontend,
// along with a single-use state token.
func (a *AuthController) GithubRedirect(ctx *gin.Context) {
	cfg, err := a.oauthConfig()
	if err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40004, err.Error())
		return
	}

	state := uuid.NewString()
	utils.SaveState(state, 10*time.Minute)

	url := cfg.AuthCodeURL(state)
	utils.Success(ctx, gin.H{"github_auth_url": url, "state": state})
}

// GithubLogin exchanges the authorization code for a GitHub identity, upserts
// the local user keyed by GitHub id, and issues an access/refresh token pair.
func (a *AuthController) GithubLogin(ctx *gin.Context) {
	var req struct {
		Code  string `json:"code" binding:"required"`
		State string `json:"state" binding:"required"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40005, "missing code or state")
		return
	}

	if !utils.ConsumeState(req.State) {
		utils.Error(ctx, http.StatusBadRequest, 40006, "invalid or expired state")
		return
	}

	cfg, err := a.oauthConfig()
	if err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40004, err.Error())
		return
	}

	token, err := cfg.Exchange(context.Background(), req.Code)
	if err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40007, "failed to exchange code")
		return
	}

	profile, err := fetchGitHubProfile(token)
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50005, err.Error())
		return
	}

	user, err := a.findOrCreateGithubUser(profile)
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50006, "failed to persist user")
		return
	}

	access, refresh, err := utils.GenerateTokenPair(user.ID, user.Username)
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50004, "failed to generate token")
		return
	}

	utils.Success(ctx, gin.H{
		"access_token":  access,
		"refresh_token": refresh,
		"user_info":     userInfoResponse(user),
	})
}

// TokenObtain verifies local credentials and issues a token pair.
func (a *AuthController) TokenObtain(ctx *gin.Context) {
	var req struct {
		Username string `json:"username" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40003, "invalid request payload")
		return
	}

	var user models.User
	if err := a.db.Where("username = ?", req.Username).First(&user).Error; err != nil {
		utils.Error(ctx, http.StatusUnauthorized, 40106, "invalid username or password")
		return
	}

	// Accounts created through GitHub login have no usable local password.
	if !user.HasUsablePassword() || !utils.CheckPassword(user.PasswordHash, req.Password) {
		utils.Error(ctx, http.StatusUnauthorized, 40106, "invalid username or password")
		return
	}

	access, refresh, err := utils.GenerateTokenPair(user.ID, user.Username)
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50004, "failed to generate token")
		return
	}

	utils.Success(ctx, gin.H{
		"access_token":  access,
		"refresh_token": refresh,
		"user_info":     userInfoResponse(&user),
	})
}

// TokenRefresh mints a new access token from a valid refresh token.
func (a *AuthController) TokenRefresh(ctx *gin.Context) {
	var req struct {
		Refresh string `json:"refresh" binding:"required"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40009, "missing refresh token")
		return
	}

	if utils.IsTokenBlacklisted(req.Refresh) {
		utils.Error(ctx, http.StatusUnauthorized, 40104, "token revoked")
		return
	}

	access, err := utils.RefreshAccessToken(req.Refresh)
	if err != nil {
		utils.Error(ctx, http.StatusUnauthorized, 40105, "invalid refresh token")
		return
	}

	utils.Success(ctx, gin.H{"access_token": access})
}

// Logout invalidates the token by blacklisting it until expiration.
func (a *AuthController) Logout(ctx *gin.Context) {
	authHeader := ctx.GetHeader("Authorization")
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 {
		utils.Error(ctx, http.StatusUnauthorized, 40107, "invalid authorization header")
		return
	}

	token := strings.TrimSpace(parts[1])
	claims, err := utils.ParseToken(token)
	if err != nil {
		utils.Error(ctx, http.StatusUnauthorized, 40105, "invalid token")
		return
	}

	expiresAt := time.Now().Add(24 * time.Hour)
	if claims.RegisteredClaims.ExpiresAt != nil {
		expiresAt = claims.RegisteredClaims.ExpiresAt.Time
	}

	utils.BlacklistToken(token, expiresAt)
	utils.SuccessMessage(ctx, "logged out")
}

// Me returns the current authenticated user's information.
func (a *AuthController) Me(ctx *gin.Context) {
	userID, exists := ctx.Get(middleware.ContextUserIDKey)
	if !exists {
		utils.Error(ctx, http.StatusUnauthorized, 40108, "unauthorized")
		return
	}

	var user models.User
	if err := a.db.First(&user, userID).Error; err != nil {
		utils.Error(ctx, http.StatusNotFound, 40401, "user not found")
		return
	}

	utils.Success(ctx, userInfoResponse(&user))
}

func (a *AuthController) oauthConfig() (*oauth2.Config, error) {
	cfg := config.Get()
	if cfg.GitHubClientID == "" || cfg.GitHubClientSecret == "" {
		return nil, fmt.Errorf("github oauth not configured")
	}
	return &oauth2.Config{
		ClientID:     cfg.GitHubClientID,
		ClientSecret: cfg.GitHubClientSecret,
		RedirectURL:  cfg.GitHubCallbackURL,
		Scopes:       []string{"read:user", "user:email"},
		Endpoint:     github.Endpoint,
	}, nil
}

// findOrCreateGithubUser upserts the local user record keyed by GitHub id.
// First sight creates an account with nickname = login and an unusable local
// password; later logins update display fields when the GitHub side changed.
func (a *AuthController) findOrCreateGithubUser(profile *githubProfile) (*models.User, error) {
	var user models.User
	err := a.db.Where("github_id = ?", profile.ID).First(&user).Error
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
		user = models.User{
			Username: profile.Login,
			Nickname: profile.Login,
			Email:    profile.Email,
			GithubID: &profile.ID,
		}
		if err := a.db.Create(&user).Error; err != nil {
			return nil, err
		}
		return &user, nil
	}

	changed := false
	if user.Username != profile.Login {
		user.Username = profile.Login
		user.Nickname = profile.Login
		changed = true
	}
	if user.Email != profile.Email {
		user.Email = profile.Email
		changed = true
	}
	if changed {
		if err := a.db.Save(&user).Error; err != nil {
			return nil, err
		}
	}
	return &user, nil
}

func fetchGitHubProfile(token *oauth2.Token) (*githubProfile, error) {
	req, _ := http.NewRequest("GET", "https://api.github.com/user", nil)
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", token.AccessToken))
	req.Header.Set("Accept", "application/vnd.github+json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("github user info request failed: %s", resp.Status)
	}

	var payload struct {
		ID    int64  `json:"id"`
		Login string `json:"login"`
		Email string `json:"email"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, err
	}

	email := strings.TrimSpace(payload.Email)
	if email == "" {
		email, _ = fetchGitHubEmail(token.AccessToken)
	}
	if email == "" {
		// GitHub may withhold every email; synthesize a placeholder
		email = fmt.Sprintf("%s@github.com", payload.Login)
	}

	return &githubProfile{
		ID:    fmt.Sprintf("%d", payload.ID),
		Login: payload.Login,
		Email: email,
	}, nil
}

func fetchGitHubEmail(accessToken string) (string, error) {
	req, _ := http.NewRequest("GET", "https://api.github.com/user/emails", nil)
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", accessToken))
	req.Header.Set("Accept", "application/vnd.github+json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("github emails request failed: %s", resp.Status)
	}

	var emails []struct {
		Email    string `json:"email"`
		Primary  bool   `json:"primary"`
		Verified bool   `json:"verified"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&emails); err != nil {
		return "", err
	}

	for _, email := range emails {
		if email.Primary && email.Verified {
			return email.Email, nil
		}
	}

	return "", nil
}

func userInfoResponse(user *models.User) gin.H {
	return gin.H{
		"username": user.Username,
		"nickname": user.Nickname,
		"email":    user.Email,
		"is_staff": user.IsStaff,
	}
}
