package controller

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/ikkim/storefront-sync/internal/app/model"
	"github.com/ikkim/storefront-sync/internal/app/service"
	"github.com/ikkim/storefront-sync/internal/errors"
	"github.com/ikkim/storefront-sync/internal/middleware"
)

type AuthController struct {
	sessionService service.SessionService
}

func NewAuthController(sessionService service.SessionService) *AuthController {
	return &AuthController{
		sessionService: sessionService,
	}
}

// SessionView never carries the token; it stays in the local cache.
type SessionView struct {
	User       *model.UserSnapshot `json:"user"`
	Local      bool                `json:"local"`
	SignedInAt time.Time           `json:"signed_in_at"`
}

func sessionView(session *model.Session) SessionView {
	return SessionView{
		User:       session.User,
		Local:      session.Local,
		SignedInAt: session.SignedInAt,
	}
}

// SignUp creates a remote account and signs in
// POST /api/v1/auth/signup
func (ctrl *AuthController) SignUp(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	var input service.SignUpInput
	if err := c.ShouldBindJSON(&input); err != nil {
		log.Warn("Invalid sign-up request", map[string]interface{}{
			"error": err.Error(),
		})
		errors.BadRequest(c, errors.ValidationInvalidInput, "Invalid request body")
		return
	}

	session, err := ctrl.sessionService.SignUp(c.Request.Context(), input)
	if err != nil {
		errors.Respond(c, err)
		return
	}
	c.JSON(http.StatusCreated, sessionView(session))
}

// SignIn signs in with email and password
// POST /api/v1/auth/signin
func (ctrl *AuthController) SignIn(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	var input service.SignInInput
	if err := c.ShouldBindJSON(&input); err != nil {
		log.Warn("Invalid sign-in request", map[string]interface{}{
			"error": err.Error(),
		})
		errors.BadRequest(c, errors.ValidationInvalidInput, "Invalid request body")
		return
	}

	session, err := ctrl.sessionService.SignIn(c.Request.Context(), input)
	if err != nil {
		errors.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, sessionView(session))
}

// SignOut clears the session; cart and wishlist are kept
// POST /api/v1/auth/signout
func (ctrl *AuthController) SignOut(c *gin.Context) {
	if err := ctrl.sessionService.SignOut(c.Request.Context()); err != nil {
		errors.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Signed out"})
}

// GetMe returns the stored session
// GET /api/v1/auth/me
func (ctrl *AuthController) GetMe(c *gin.Context) {
	session := ctrl.sessionService.Current()
	if !session.Present() {
		errors.Unauthorized(c, "")
		return
	}
	c.JSON(http.StatusOK, sessionView(session))
}
