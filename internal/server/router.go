package server

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Streetliferoleplay/web43/internal/auth"
	"github.com/Streetliferoleplay/web43/internal/fivem"
	"github.com/Streetliferoleplay/web43/internal/whitelist"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const webhookKeyHeader = "X-API-Key"

var (
	errMissingSubmissions = errors.New("submission service dependency required")
	errMissingSessions    = errors.New("session manager dependency required")
	errMissingFiveM       = errors.New("fivem service dependency required")
)

// Dependencies wires the request handlers to their collaborating services.
type Dependencies struct {
	Submissions *whitelist.Service
	Sessions    *auth.SessionManager
	FiveM       *fivem.Service
	WebhookKey  string
	Logger      *zap.Logger
}

// NewHTTPHandler builds the gin engine serving the whitelist API.
func NewHTTPHandler(deps Dependencies) (http.Handler, error) {
	if deps.Submissions == nil {
		return nil, errMissingSubmissions
	}
	if deps.Sessions == nil {
		return nil, errMissingSessions
	}
	if deps.FiveM == nil {
		return nil, errMissingFiveM
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestIDMiddleware())
	router.Use(corsMiddleware())

	handler := &httpHandler{
		submissions: deps.Submissions,
		sessions:    deps.Sessions,
		fivem:       deps.FiveM,
		webhookKey:  deps.WebhookKey,
		logger:      logger,
	}

	router.GET("/health", handler.handleHealth)

	router.POST("/api/whitelist/submit", handler.handleSubmit)
	router.GET("/api/whitelist/status/:id", handler.handleStatus)

	router.POST("/api/admin/login", handler.handleLogin)

	admin := router.Group("/api/admin")
	admin.Use(handler.authorizeAdmin)
	admin.GET("/submissions", handler.handleAdminList)
	admin.GET("/submissions/:id", handler.handleAdminGet)
	admin.POST("/submissions/:id/update", handler.handleAdminUpdate)
	admin.DELETE("/submissions/:id", handler.handleAdminDelete)
	// POST alias kept for clients that cannot issue DELETE.
	admin.POST("/submissions/:id/delete", handler.handleAdminDelete)

	router.POST("/api/fivem/players", handler.requireWebhookKey, handler.handleFiveMPush)
	router.GET("/api/fivem/players", handler.handleFiveMRead)

	return router, nil
}

func corsMiddleware() gin.HandlerFunc {
	return cors.New(cors.Config{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowHeaders: []string{"Authorization", "Content-Type", webhookKeyHeader},
		MaxAge:       12 * time.Hour,
	})
}

type httpHandler struct {
	submissions *whitelist.Service
	sessions    *auth.SessionManager
	fivem       *fivem.Service
	webhookKey  string
	logger      *zap.Logger
}

func (h *httpHandler) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// decodeBody reads the request body as a JSON object. Malformed or absent
// bodies come back as an empty map so required-field validation reports the
// failure instead of a parse-error kind.
func decodeBody(c *gin.Context) map[string]any {
	body := map[string]any{}
	if err := json.NewDecoder(c.Request.Body).Decode(&body); err != nil {
		return map[string]any{}
	}
	return body
}

func (h *httpHandler) handleSubmit(c *gin.Context) {
	request := whitelist.ParseCreateRequest(decodeBody(c))

	result, err := h.submissions.Create(c.Request.Context(), request)
	var validationErr *whitelist.ValidationError
	if errors.As(err, &validationErr) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing_fields", "fields": validationErr.Fields})
		return
	}
	if err != nil {
		h.logger.Error("submission create failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"id": result.ID, "secret": result.Secret})
}

func (h *httpHandler) handleStatus(c *gin.Context) {
	id, ok := parseSubmissionID(c)
	if !ok {
		return
	}
	secret := c.Query("secret")
	if secret == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing_secret"})
		return
	}

	view, err := h.submissions.Lookup(c.Request.Context(), id, secret)
	if errors.Is(err, whitelist.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found"})
		return
	}
	if err != nil {
		h.logger.Error("status lookup failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
		return
	}

	c.JSON(http.StatusOK, view)
}

type loginRequestPayload struct {
	User string `json:"user"`
	Pass string `json:"pass"`
}

func (h *httpHandler) handleLogin(c *gin.Context) {
	var request loginRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		request = loginRequestPayload{}
	}

	token, expiresIn, err := h.sessions.Login(request.User, request.Pass)
	if errors.Is(err, auth.ErrInvalidLogin) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid_login"})
		return
	}
	if err != nil {
		h.logger.Error("admin login failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"token": token, "expiresInSeconds": expiresIn})
}

func (h *httpHandler) authorizeAdmin(c *gin.Context) {
	header := c.GetHeader("Authorization")
	token := ""
	if strings.HasPrefix(header, "Bearer ") {
		token = strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	}

	switch err := h.sessions.Validate(token); {
	case err == nil:
		c.Next()
	case errors.Is(err, auth.ErrMissingToken):
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing_token"})
	case errors.Is(err, auth.ErrExpiredToken):
		h.logger.Info("admin token expired")
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "expired_token"})
	default:
		h.logger.Warn("admin token rejected", zap.Error(err))
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid_token"})
	}
}

func (h *httpHandler) handleAdminList(c *gin.Context) {
	rows, err := h.submissions.List(c.Request.Context(), c.Query("status"))
	if err != nil {
		h.logger.Error("submission list failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"rows": rows})
}

type submissionRowPayload struct {
	ID           int64             `json:"id"`
	Secret       string            `json:"secret"`
	Status       whitelist.Status  `json:"status"`
	Name         string            `json:"name"`
	Discord      string            `json:"discord"`
	Age          *int64            `json:"age"`
	Experience   *string           `json:"experience"`
	Availability *string           `json:"availability"`
	Motivation   *string           `json:"motivation"`
	UserMessage  *string           `json:"user_message"`
	Answers      map[string]string `json:"answers"`
	AdminNote    *string           `json:"admin_note"`
	CreatedAt    string            `json:"created_at"`
	UpdatedAt    string            `json:"updated_at"`
}

func (h *httpHandler) handleAdminGet(c *gin.Context) {
	id, ok := parseSubmissionID(c)
	if !ok {
		return
	}

	submission, err := h.submissions.Get(c.Request.Context(), id)
	if errors.Is(err, whitelist.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found"})
		return
	}
	if err != nil {
		h.logger.Error("submission get failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
		return
	}

	answers, err := submission.Answers()
	if err != nil {
		h.logger.Warn("stored answers unreadable", zap.Int64("submission_id", id), zap.Error(err))
	}

	row := submissionRowPayload{
		ID:           submission.ID,
		Secret:       submission.Secret,
		Status:       submission.Status,
		Name:         submission.Name,
		Discord:      submission.Discord,
		Age:          submission.Age,
		Experience:   submission.Experience,
		Availability: submission.Availability,
		Motivation:   submission.Motivation,
		UserMessage:  submission.UserMessage,
		Answers:      answers,
		AdminNote:    submission.AdminNote,
		CreatedAt:    submission.CreatedAt,
		UpdatedAt:    submission.UpdatedAt,
	}
	c.JSON(http.StatusOK, gin.H{"row": row})
}

type updateRequestPayload struct {
	Status    string  `json:"status"`
	AdminNote *string `json:"admin_note"`
}

func (h *httpHandler) handleAdminUpdate(c *gin.Context) {
	id, ok := parseSubmissionID(c)
	if !ok {
		return
	}

	var request updateRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		request = updateRequestPayload{}
	}

	status, err := whitelist.ParseStatus(request.Status)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_status"})
		return
	}

	err = h.submissions.UpdateStatus(c.Request.Context(), id, status, request.AdminNote)
	if errors.Is(err, whitelist.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found"})
		return
	}
	if err != nil {
		h.logger.Error("submission update failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (h *httpHandler) handleAdminDelete(c *gin.Context) {
	id, ok := parseSubmissionID(c)
	if !ok {
		return
	}

	err := h.submissions.Remove(c.Request.Context(), id)
	if errors.Is(err, whitelist.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found"})
		return
	}
	if err != nil {
		h.logger.Error("submission delete failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// requireWebhookKey gates game-server pushes behind the pre-shared key. A
// server without a configured key fails closed on every push.
func (h *httpHandler) requireWebhookKey(c *gin.Context) {
	if h.webhookKey == "" {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "missing_fivem_webhook_key"})
		return
	}
	key := c.GetHeader(webhookKeyHeader)
	if key == "" || subtle.ConstantTimeCompare([]byte(key), []byte(h.webhookKey)) != 1 {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	c.Next()
}

func (h *httpHandler) handleFiveMPush(c *gin.Context) {
	var request fivem.PushRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		request = fivem.PushRequest{}
	}

	if err := h.fivem.Push(c.Request.Context(), request); err != nil {
		h.logger.Error("fivem push failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (h *httpHandler) handleFiveMRead(c *gin.Context) {
	state, err := h.fivem.Read(c.Request.Context())
	if err != nil {
		h.logger.Error("fivem read failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
		return
	}

	c.JSON(http.StatusOK, state)
}

func parseSubmissionID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_id"})
		return 0, false
	}
	return id, true
}
