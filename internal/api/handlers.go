package api

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"nyayachat/internal/auth"
	"nyayachat/internal/llm"
	"nyayachat/internal/models"
	"nyayachat/internal/redis"
	"nyayachat/internal/sanitize"
	"nyayachat/internal/service/assistant"
	"nyayachat/internal/worker"
)

const (
	maxChatMessages = 50
	maxContentRunes = 8000
	maxTitleRunes   = 120
)

// Gateway is the upstream LLM client surface the handlers depend on.
type Gateway interface {
	Complete(ctx context.Context, turns []llm.Turn) (string, error)
	OpenStream(ctx context.Context, turns []llm.Turn) (io.ReadCloser, error)
	GenerateTitle(ctx context.Context, messages []*models.Message) (string, error)
}

// Handler wires HTTP routes to the assistant service and relays chat
// requests to the upstream gateway through the per-user worker pool.
type Handler struct {
	assistant *assistant.Service
	auth      *auth.Service
	gateway   Gateway
	workers   *worker.Manager
	fileBase  string
	fileTTL   time.Duration
}

// NewHandler constructs a Handler instance.
func NewHandler(service *assistant.Service, authService *auth.Service, gateway Gateway, cfg worker.DispatcherConfig, fileBase string, fileTTL time.Duration, cacheClient *redis.Client) *Handler {
	return &Handler{
		assistant: service,
		auth:      authService,
		gateway:   gateway,
		workers:   worker.NewManager(cfg, cacheClient),
		fileBase:  fileBase,
		fileTTL:   fileTTL,
	}
}

// check token userID matches the path userID
func (h *Handler) requirePathUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := auth.UserIDFromContext(c)
		if !ok || userID <= 0 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authorization required"})
			return
		}
		paramID, err := strconv.ParseInt(c.Param("id"), 10, 64)
		if err != nil || paramID <= 0 {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
			return
		}
		if paramID != userID {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "user mismatch"})
			return
		}
		c.Next()
	}
}

func (h *Handler) authorizedUserID(c *gin.Context) (int64, bool) {
	userID, ok := auth.UserIDFromContext(c)
	if !ok || userID <= 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authorization required"})
		return 0, false
	}
	return userID, true
}

// RegisterRoutes attaches all HTTP routes to the router.
func (h *Handler) RegisterRoutes(router *gin.Engine) {
	api := router.Group("/api")
	api.POST("/users/register", h.registerUser)
	api.POST("/users/login", h.loginUser)
	authMW := h.auth.Middleware()
	userRoutes := api.Group("/users/:id")
	userRoutes.Use(authMW, h.requirePathUser(), h.auth.CSRFMiddleware())
	userRoutes.POST("/chat", h.chat)
	userRoutes.POST("/conversations", h.createConversation)
	userRoutes.GET("/conversations", h.listConversations)
	userRoutes.GET("/conversations/:conversation_id/messages", h.getConversationMessages)
	userRoutes.POST("/conversations/:conversation_id/messages", h.appendMessage)
	userRoutes.DELETE("/conversations/:conversation_id", h.deleteConversation)
	userRoutes.POST("/evidence", h.evidenceUpload)
	userRoutes.GET("/conversations/:conversation_id/evidence", h.listEvidence)
	userRoutes.POST("/logout", h.logoutUser)
	userRoutes.DELETE("", h.deleteUser)
}

// User create&login interface
type credentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (h *Handler) registerUser(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	user, err := h.assistant.RegisterUser(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"id":         user.ID,
		"username":   user.Username,
		"created_at": user.CreatedAt,
	})
}

func (h *Handler) loginUser(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	user, err := h.assistant.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}
	authToken, err := h.auth.IssueToken(c.Request.Context(), user.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "issue token failed"})
		return
	}
	csrfToken, err := h.auth.NewCSRFToken()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "issue token failed"})
		return
	}
	h.setAuthCookies(c, authToken, csrfToken)
	c.JSON(http.StatusOK, gin.H{
		"id":         user.ID,
		"username":   user.Username,
		"created_at": user.CreatedAt,
		"auth_token": authToken,
	})
}

// Chat proxy interface
type chatTurn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Messages       []chatTurn `json:"messages"`
	ConversationID int64      `json:"conversationId"`
	Stream         bool       `json:"stream"`
}

// validateChatRequest sanitizes every turn and reports the first
// constraint violation. No partial processing: any bad turn rejects the
// whole request.
func validateChatRequest(req *chatRequest) ([]llm.Turn, error) {
	if len(req.Messages) == 0 {
		return nil, errors.New("messages must not be empty")
	}
	if len(req.Messages) > maxChatMessages {
		return nil, fmt.Errorf("too many messages, limit is %d", maxChatMessages)
	}
	turns := make([]llm.Turn, 0, len(req.Messages))
	for i, m := range req.Messages {
		role := models.Role(m.Role)
		if !models.ValidRole(role) {
			return nil, fmt.Errorf("message %d has invalid role %q", i, m.Role)
		}
		content := sanitize.Text(m.Content, maxContentRunes)
		if content == "" {
			return nil, fmt.Errorf("message %d has empty content", i)
		}
		turns = append(turns, llm.Turn{Role: role, Content: content})
	}
	return turns, nil
}

func (h *Handler) chat(c *gin.Context) {
	userID, ok := h.authorizedUserID(c)
	if !ok {
		return
	}
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	turns, err := validateChatRequest(&req)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.ConversationID > 0 {
		if !h.ownsConversation(c.Request.Context(), userID, req.ConversationID) {
			c.JSON(http.StatusNotFound, gin.H{"error": "conversation not found"})
			return
		}
	}

	if !req.Stream {
		var answer string
		err := h.workers.Relay(worker.RelayRequest{
			Context:        c.Request.Context(),
			UserID:         userID,
			ConversationID: req.ConversationID,
			Do: func(ctx context.Context) error {
				var doErr error
				answer, doErr = h.gateway.Complete(ctx, turns)
				return doErr
			},
		})
		if err != nil {
			h.writeUpstreamError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"response": answer})
		return
	}

	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "streaming not supported"})
		return
	}
	streamCtx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Minute)
	defer cancel()

	err = h.workers.Relay(worker.RelayRequest{
		Context:        streamCtx,
		UserID:         userID,
		ConversationID: req.ConversationID,
		Do: func(ctx context.Context) error {
			body, openErr := h.gateway.OpenStream(ctx, turns)
			if openErr != nil {
				return openErr
			}
			defer body.Close()

			// Relay the upstream bytes unmodified so the client sees the
			// exact wire format the gateway produced.
			c.Writer.Header().Set("Content-Type", "text/event-stream")
			c.Writer.Header().Set("Cache-Control", "no-cache")
			c.Writer.Header().Set("Connection", "keep-alive")
			c.Writer.Header().Set("X-Accel-Buffering", "no")
			c.Status(http.StatusOK)

			buf := make([]byte, 4096)
			for {
				n, readErr := body.Read(buf)
				if n > 0 {
					if _, writeErr := c.Writer.Write(buf[:n]); writeErr != nil {
						return nil // client went away
					}
					flusher.Flush()
				}
				if readErr != nil {
					if readErr == io.EOF {
						return nil
					}
					if ctx.Err() != nil {
						return nil
					}
					return nil // truncated upstream stream; transport closure ends it
				}
			}
		},
	})
	if err != nil {
		h.writeUpstreamError(c, err)
	}
}

func (h *Handler) writeUpstreamError(c *gin.Context, err error) {
	if errors.Is(err, worker.ErrDispatcherBusy) {
		c.JSON(http.StatusTooManyRequests, gin.H{"error": "server is busy, please retry", "retry": true})
		return
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		c.Status(499)
		return
	}
	var upErr *llm.UpstreamError
	if errors.As(err, &upErr) {
		c.JSON(upErr.Status, gin.H{"error": upErr.Message, "retry": upErr.Retry})
		return
	}
	c.JSON(http.StatusBadGateway, gin.H{"error": "assistant request failed, please retry", "retry": true})
}

func (h *Handler) ownsConversation(ctx context.Context, userID, conversationID int64) bool {
	if _, _, ok := h.workers.Cache().Load(userID, conversationID); ok {
		return true
	}
	conversation, history, err := h.assistant.GetConversationWithMessages(ctx, userID, conversationID)
	if err != nil {
		return false
	}
	h.workers.Cache().Store(conversation, history)
	return true
}

// Conversation persistence interface (the client's durable writes)

func (h *Handler) createConversation(c *gin.Context) {
	userID, ok := h.authorizedUserID(c)
	if !ok {
		return
	}
	var req struct {
		Title string `json:"title"`
	}
	if err := c.ShouldBindJSON(&req); err != nil && err != io.EOF {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	title := sanitize.Text(req.Title, maxTitleRunes)
	if title == "" {
		title = "New Conversation"
	}
	conversation, err := h.assistant.CreateConversation(c.Request.Context(), userID, title)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"id":         conversation.ID,
		"user_id":    conversation.UserID,
		"title":      conversation.Title,
		"created_at": conversation.CreatedAt,
		"updated_at": conversation.UpdatedAt,
	})
}

func (h *Handler) listConversations(c *gin.Context) {
	userID, ok := h.authorizedUserID(c)
	if !ok {
		return
	}
	conversations, err := h.assistant.ListConversations(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if len(conversations) == 0 {
		conversations = make([]models.Conversation, 0)
	}
	c.JSON(http.StatusOK, gin.H{"conversations": conversations})
}

func (h *Handler) getConversationMessages(c *gin.Context) {
	userID, ok := h.authorizedUserID(c)
	if !ok {
		return
	}
	conversationID, err := strconv.ParseInt(c.Param("conversation_id"), 10, 64)
	if err != nil || conversationID <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid conversation id"})
		return
	}
	if conversation, messages, ok := h.workers.Cache().Load(userID, conversationID); ok {
		c.JSON(http.StatusOK, gin.H{"conversation": conversation, "messages": messages})
		return
	}
	conversation, messages, err := h.assistant.GetConversationWithMessages(c.Request.Context(), userID, conversationID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			c.JSON(http.StatusNotFound, gin.H{"error": "conversation not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	h.workers.Cache().Store(conversation, messages)
	c.JSON(http.StatusOK, gin.H{
		"conversation": conversation,
		"messages":     messages,
	})
}

type appendMessageRequest struct {
	Role       string `json:"role"`
	Content    string `json:"content"`
	AgentName  string `json:"agent_name"`
	Confidence string `json:"confidence"`
}

func (h *Handler) appendMessage(c *gin.Context) {
	userID, ok := h.authorizedUserID(c)
	if !ok {
		return
	}
	conversationID, err := strconv.ParseInt(c.Param("conversation_id"), 10, 64)
	if err != nil || conversationID <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid conversation id"})
		return
	}
	var req appendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	role := models.Role(req.Role)
	if !models.ValidRole(role) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid role"})
		return
	}
	content := sanitize.Text(req.Content, maxContentRunes)
	agentName := sanitize.Text(req.AgentName, maxTitleRunes)
	confidence := models.Confidence(strings.ToUpper(strings.TrimSpace(req.Confidence)))
	switch confidence {
	case "", models.ConfidenceHigh, models.ConfidenceMedium, models.ConfidenceLow:
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid confidence"})
		return
	}
	message, err := h.assistant.AppendMessageToConversation(c.Request.Context(), userID, conversationID, role, content, agentName, confidence)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	h.workers.Cache().Invalidate(conversationID)

	payload := gin.H{"message": message}
	if title := h.maybeGenerateTitle(c.Request.Context(), userID, conversationID, role); title != "" {
		payload["title"] = title
	}
	c.JSON(http.StatusCreated, payload)
}

// maybeGenerateTitle asks the model for a conversation title once the
// opening exchange is complete. Failures are logged by the caller side
// effects only; a missing title never fails the append.
func (h *Handler) maybeGenerateTitle(ctx context.Context, userID, conversationID int64, role models.Role) string {
	if role != models.RoleAssistant {
		return ""
	}
	conversation, messages, err := h.assistant.GetConversationWithMessages(ctx, userID, conversationID)
	if err != nil || conversation == nil {
		return ""
	}
	if conversation.Title != "New Conversation" || len(messages) > 3 {
		return ""
	}
	title, err := h.gateway.GenerateTitle(ctx, messages)
	if err != nil || title == "" {
		return ""
	}
	title = sanitize.Text(title, maxTitleRunes)
	if err := h.assistant.UpdateConversationTitle(ctx, userID, conversationID, title); err != nil {
		return ""
	}
	h.workers.Cache().Invalidate(conversationID)
	return title
}

func (h *Handler) deleteConversation(c *gin.Context) {
	userID, ok := h.authorizedUserID(c)
	if !ok {
		return
	}
	conversationID, err := strconv.ParseInt(c.Param("conversation_id"), 10, 64)
	if err != nil || conversationID <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid conversation id"})
		return
	}
	if err := h.assistant.DeleteConversation(c.Request.Context(), userID, conversationID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			c.JSON(http.StatusNotFound, gin.H{"error": "conversation not found"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	h.workers.Purge(userID, conversationID)
	c.Status(http.StatusNoContent)
}

func (h *Handler) logoutUser(c *gin.Context) {
	userID, ok := h.authorizedUserID(c)
	if !ok {
		return
	}
	h.workers.ResetUser(userID)
	if authToken, ok := auth.AuthTokenFromContext(c); ok {
		_ = h.auth.RevokeToken(c.Request.Context(), authToken)
	}
	h.clearAuthCookies(c)
	c.Status(http.StatusNoContent)
}

func (h *Handler) deleteUser(c *gin.Context) {
	id, ok := h.authorizedUserID(c)
	if !ok {
		return
	}
	if err := h.auth.RevokeUserTokens(c.Request.Context(), id); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	h.workers.ResetUser(id)
	if err := h.assistant.DeleteUser(c.Request.Context(), id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	h.clearAuthCookies(c)
	c.Status(http.StatusNoContent)
}

func (h *Handler) setAuthCookies(c *gin.Context, authToken, csrfToken string) {
	ttl := int(h.auth.TokenTTL().Seconds())
	if ttl <= 0 {
		ttl = 3600
	}
	secure := gin.Mode() == gin.ReleaseMode
	setCookie(c, &http.Cookie{
		Name:     h.auth.AuthCookieName(),
		Value:    authToken,
		MaxAge:   ttl,
		Path:     "/",
		Secure:   secure,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	setCookie(c, &http.Cookie{
		Name:     h.auth.CSRFCookieName(),
		Value:    csrfToken,
		MaxAge:   ttl,
		Path:     "/",
		Secure:   secure,
		HttpOnly: false,
		SameSite: http.SameSiteStrictMode,
	})
}

func (h *Handler) clearAuthCookies(c *gin.Context) {
	for _, name := range []string{h.auth.AuthCookieName(), h.auth.CSRFCookieName()} {
		setCookie(c, &http.Cookie{
			Name:     name,
			Value:    "",
			MaxAge:   -1,
			Path:     "/",
			Secure:   gin.Mode() == gin.ReleaseMode,
			HttpOnly: name == h.auth.AuthCookieName(),
			SameSite: http.SameSiteStrictMode,
		})
	}
}

func setCookie(c *gin.Context, ck *http.Cookie) {
	if ck == nil {
		return
	}
	http.SetCookie(c.Writer, ck)
}

// Evidence upload interface

const (
	maxUploadBytes   = 10 << 20 // 10 MB
	userStorageLimit = 50 << 20 // 50 MB per user
)

var allowedContentTypes = []string{
	"text/plain",
	"text/markdown",
	"application/pdf",
	"application/json",
	"application/msword",
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	"image/",
}

func isAllowedContentType(ct string) bool {
	for _, allowed := range allowedContentTypes {
		if strings.HasPrefix(ct, allowed) {
			return true
		}
	}
	return false
}

func (h *Handler) evidenceUpload(c *gin.Context) {
	userID, ok := h.authorizedUserID(c)
	if !ok {
		return
	}
	if err := c.Request.ParseMultipartForm(maxUploadBytes); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid multipart form"})
		return
	}
	conversationVal := c.PostForm("conversation_id")
	conversationID, err := strconv.ParseInt(conversationVal, 10, 64)
	if err != nil || conversationID <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid conversation_id"})
		return
	}
	if !h.ownsConversation(c.Request.Context(), userID, conversationID) {
		c.JSON(http.StatusNotFound, gin.H{"error": "conversation not found"})
		return
	}
	description := sanitize.Description(c.PostForm("description"), maxContentRunes)
	file, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file is required"})
		return
	}
	if file.Size > maxUploadBytes {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "file too large"})
		return
	}
	usage, err := h.assistant.EvidenceStorageUsage(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "calculate usage failed"})
		return
	}
	if usage+file.Size > userStorageLimit {
		c.JSON(http.StatusTooManyRequests, gin.H{"error": "storage quota exceeded"})
		return
	}
	f, err := file.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "open file failed"})
		return
	}
	buf := make([]byte, 512)
	n, _ := f.Read(buf)
	_ = f.Close()
	contentType := http.DetectContentType(buf[:n])
	if !isAllowedContentType(contentType) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unsupported file type"})
		return
	}
	filename := sanitize.FileName(file.Filename)
	destDir, destPath, finalName := h.getUniqueFilePath(userID, conversationID, filename)
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "create directory failed"})
		return
	}
	if err := c.SaveUploadedFile(file, destPath); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "save file failed"})
		return
	}
	fileID, err := h.assistant.RecordEvidenceFile(c.Request.Context(), userID, conversationID, finalName, description, destPath, contentType, file.Size, h.fileTTL)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "record file failed"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"file_id":   fileID,
		"file_name": finalName,
		"size":      file.Size,
		"mime":      contentType,
		"used":      usage + file.Size,
		"limit":     userStorageLimit,
	})
}

func (h *Handler) listEvidence(c *gin.Context) {
	userID, ok := h.authorizedUserID(c)
	if !ok {
		return
	}
	conversationID, err := strconv.ParseInt(c.Param("conversation_id"), 10, 64)
	if err != nil || conversationID <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid conversation id"})
		return
	}
	files, err := h.assistant.ListEvidenceFiles(c.Request.Context(), userID, conversationID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if len(files) == 0 {
		files = make([]*models.EvidenceFile, 0)
	}
	c.JSON(http.StatusOK, gin.H{"evidence": files})
}

func (h *Handler) getFilePath(userID, conversationID int64, filename string) (string, string) {
	destDir := filepath.Join(h.fileBase, strconv.FormatInt(userID, 10), strconv.FormatInt(conversationID, 10))
	destPath := filepath.Join(destDir, filename)
	return destDir, destPath
}

func (h *Handler) getUniqueFilePath(userID, conversationID int64, filename string) (string, string, string) {
	destDir, destPath := h.getFilePath(userID, conversationID, filename)
	if _, err := os.Stat(destPath); os.IsNotExist(err) {
		return destDir, destPath, filename
	}
	ext := filepath.Ext(filename)
	base := strings.TrimSuffix(filename, ext)
	for idx := 1; idx <= 1000; idx++ {
		candidate := fmt.Sprintf("%s (%d)%s", base, idx, ext)
		dir, path := h.getFilePath(userID, conversationID, candidate)
		if _, err := os.Stat(path); os.IsNotExist(err) {
			return dir, path, candidate
		}
	}
	fallback := fmt.Sprintf("%s-%d%s", base, time.Now().UnixNano(), ext)
	return destDir, filepath.Join(destDir, fallback), fallback
}
