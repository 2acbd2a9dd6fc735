package http

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/darrellrafa/Nutribot/internal/auth"
	"github.com/darrellrafa/Nutribot/internal/chatstore"
	"github.com/darrellrafa/Nutribot/internal/domain"
	apperrors "github.com/darrellrafa/Nutribot/internal/errors"
)

// profileFields are the optional profile values accepted on registration
// and profile edits. Absent fields are left untouched.
type profileFields struct {
	Height        flexNumber `json:"height"`
	Weight        flexNumber `json:"weight"`
	Age           flexNumber `json:"age"`
	Gender        *string    `json:"gender"`
	Goal          *string    `json:"goal"`
	ActivityLevel *string    `json:"activity_level"`
}

// update converts the fields, normalizing gender and activity level when
// they are recognised.
func (p profileFields) update() (chatstore.ProfileUpdate, error) {
	var u chatstore.ProfileUpdate
	if p.Height.set {
		if p.Height.value < 0 {
			return u, apperrors.Validationf("height must not be negative")
		}
		v := p.Height.float()
		u.Height = &v
	}
	if p.Weight.set {
		if p.Weight.value < 0 {
			return u, apperrors.Validationf("weight must not be negative")
		}
		v := p.Weight.float()
		u.Weight = &v
	}
	if p.Age.set {
		if p.Age.value < 0 {
			return u, apperrors.Validationf("age must not be negative")
		}
		v := p.Age.int()
		u.Age = &v
	}
	if p.Gender != nil {
		v := strings.TrimSpace(*p.Gender)
		if g, ok := domain.ParseGender(v); ok {
			v = string(g)
		}
		u.Gender = &v
	}
	if p.Goal != nil {
		v := strings.TrimSpace(*p.Goal)
		u.Goal = &v
	}
	if p.ActivityLevel != nil {
		v := strings.TrimSpace(*p.ActivityLevel)
		if a, ok := domain.ParseActivityLevel(v); ok {
			v = string(a)
		}
		u.ActivityLevel = &v
	}
	return u, nil
}

type registerRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
	profileFields
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	AccessToken string         `json:"access_token"`
	ExpiresAt   time.Time      `json:"expires_at"`
	User        chatstore.User `json:"user"`
}

func (s *Server) handleRegister(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badRequest(c, "invalid request body")
		return
	}
	username := strings.TrimSpace(req.Username)
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if username == "" || email == "" || req.Password == "" {
		s.badRequest(c, "Missing required fields")
		return
	}
	if len(req.Password) < auth.MinPasswordLength {
		s.badRequest(c, "password must be at least %d characters", auth.MinPasswordLength)
		return
	}
	update, err := req.profileFields.update()
	if err != nil {
		s.abortWithError(c, err)
		return
	}
	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		s.abortWithError(c, err)
		return
	}

	user := chatstore.User{Username: username, Email: email, PasswordHash: hash}
	update.Apply(&user)
	created, err := s.chats.CreateUser(c.Request.Context(), user)
	if err != nil {
		s.abortWithError(c, err)
		return
	}
	s.logger.Info("registered user %d", created.ID)
	c.JSON(http.StatusCreated, gin.H{"message": "User created successfully", "user": created})
}

func (s *Server) handleLogin(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badRequest(c, "invalid request body")
		return
	}
	invalid := func() {
		c.AbortWithStatusJSON(http.StatusUnauthorized, errorResponse{
			Error: "Invalid username or password",
			Kind:  apperrors.KindUnauthorized,
		})
	}

	user, err := s.chats.UserByUsername(c.Request.Context(), strings.TrimSpace(req.Username))
	if err != nil {
		if apperrors.KindOf(err) == apperrors.KindNotFound {
			invalid()
			return
		}
		s.abortWithError(c, err)
		return
	}
	ok, err := auth.VerifyPassword(req.Password, user.PasswordHash)
	if err != nil {
		s.logger.Warn("stored password hash for user %d is unreadable: %v", user.ID, err)
	}
	if !ok {
		invalid()
		return
	}

	token, expiresAt, err := s.tokens.Issue(user.ID, user.Email)
	if err != nil {
		s.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, loginResponse{AccessToken: token, ExpiresAt: expiresAt, User: user})
}

func (s *Server) handleMe(c *gin.Context) {
	userID, _ := currentUserID(c)
	user, err := s.chats.UserByID(c.Request.Context(), userID)
	if err != nil {
		if apperrors.KindOf(err) == apperrors.KindNotFound {
			s.abortWithError(c, apperrors.NotFoundf("User not found"))
			return
		}
		s.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

func (s *Server) handleUpdateProfile(c *gin.Context) {
	var req profileFields
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badRequest(c, "invalid request body")
		return
	}
	update, err := req.update()
	if err != nil {
		s.abortWithError(c, err)
		return
	}
	userID, _ := currentUserID(c)
	user, err := s.chats.UpdateProfile(c.Request.Context(), userID, update)
	if err != nil {
		if apperrors.KindOf(err) == apperrors.KindNotFound {
			s.abortWithError(c, apperrors.NotFoundf("User not found"))
			return
		}
		s.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Profile updated successfully", "user": user})
}
