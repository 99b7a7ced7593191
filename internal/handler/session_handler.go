package handler

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"docshare/internal/attachments"
	"docshare/internal/domain"
	"docshare/internal/middleware"
	"docshare/internal/session"
	"docshare/internal/transport/httpdto"
	docshare_errors "docshare/pkg/errors"

	"github.com/gin-gonic/gin"
)

const defaultSearchLimit = 20

// SessionHandler exposes the conversation session operations to the
// presentation layer.
type SessionHandler struct {
	registry *session.Registry
}

func NewSessionHandler(registry *session.Registry) *SessionHandler {
	return &SessionHandler{registry: registry}
}

func (h *SessionHandler) Select(c *gin.Context) {
	var req httpdto.SelectConversationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid request", "INVALID_REQUEST"))
		return
	}

	conv := domain.Conversation{Kind: req.Kind, ID: req.ID}
	if !conv.Valid() {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid conversation", "INVALID_REQUEST"))
		return
	}

	sess, ok := h.session(c)
	if !ok {
		return
	}
	if err := sess.SelectConversation(c.Request.Context(), conv); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(sess.Snapshot()))
}

func (h *SessionHandler) Deselect(c *gin.Context) {
	sess, ok := h.session(c)
	if !ok {
		return
	}
	sess.Deselect()
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(gin.H{"deselected": true}))
}

func (h *SessionHandler) State(c *gin.Context) {
	sess, ok := h.session(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(sess.Snapshot()))
}

func (h *SessionHandler) SendText(c *gin.Context) {
	var req httpdto.SendTextRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid request", "INVALID_REQUEST"))
		return
	}

	sess, ok := h.session(c)
	if !ok {
		return
	}
	if err := sess.SendText(c.Request.Context(), req.Content); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(sess.Snapshot()))
}

func (h *SessionHandler) SendFile(c *gin.Context) {
	header, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("file is required", "INVALID_REQUEST"))
		return
	}
	// The size policy is enforced again by the pipeline; rejecting
	// oversized uploads here avoids buffering them first.
	if header.Size > attachments.MaxFileBytes {
		c.JSON(http.StatusRequestEntityTooLarge, httpdto.NewErrorResponse("file too large", "FILE_TOO_LARGE"))
		return
	}

	f, err := header.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("unreadable file", "INVALID_REQUEST"))
		return
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("unreadable file", "INVALID_REQUEST"))
		return
	}

	sess, ok := h.session(c)
	if !ok {
		return
	}
	file := attachments.File{
		Name:        header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Data:        data,
	}
	res, err := sess.SendFile(c.Request.Context(), file, c.PostForm("caption"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(gin.H{
		"file":  httpdto.SendFileResponse{Path: res.Path, URL: res.URL},
		"state": sess.Snapshot(),
	}))
}

func (h *SessionHandler) AcceptRequest(c *gin.Context) {
	requestID := c.Param("id")
	if requestID == "" {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("request id is required", "INVALID_REQUEST"))
		return
	}

	sess, ok := h.session(c)
	if !ok {
		return
	}
	if err := sess.AcceptRequest(c.Request.Context(), requestID); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(sess.Snapshot()))
}

func (h *SessionHandler) Search(c *gin.Context) {
	limit := defaultSearchLimit
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid limit", "INVALID_REQUEST"))
			return
		}
		limit = parsed
	}

	sess, ok := h.session(c)
	if !ok {
		return
	}
	profiles, err := sess.Search(c.Request.Context(), c.Query("q"), limit)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(gin.H{"profiles": profiles}))
}

func (h *SessionHandler) SignOut(c *gin.Context) {
	sess, ok := h.session(c)
	if !ok {
		return
	}
	err := sess.SignOut(c.Request.Context())
	if userID, hasUser := middleware.UserIDFromContext(c.Request.Context()); hasUser {
		h.registry.Remove(userID)
	}
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(gin.H{"signed_out": true}))
}

func (h *SessionHandler) session(c *gin.Context) (*session.Session, bool) {
	userID, ok := middleware.UserIDFromContext(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse("unauthorized", "UNAUTHORIZED"))
		return nil, false
	}
	token, _ := middleware.TokenFromContext(c.Request.Context())

	sess, err := h.registry.Get(c.Request.Context(), userID, token)
	if err != nil {
		writeError(c, err)
		return nil, false
	}
	return sess, true
}

func writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, docshare_errors.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse(err.Error(), "INVALID_REQUEST"))
	case errors.Is(err, docshare_errors.ErrFileTooLarge):
		c.JSON(http.StatusRequestEntityTooLarge, httpdto.NewErrorResponse(err.Error(), "FILE_TOO_LARGE"))
	case errors.Is(err, docshare_errors.ErrConflict):
		c.JSON(http.StatusConflict, httpdto.NewErrorResponse(err.Error(), "CONFLICT"))
	case errors.Is(err, docshare_errors.ErrNotFound):
		c.JSON(http.StatusNotFound, httpdto.NewErrorResponse(err.Error(), "NOT_FOUND"))
	case errors.Is(err, docshare_errors.ErrUnauthorized):
		c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse(err.Error(), "UNAUTHORIZED"))
	default:
		c.JSON(http.StatusBadGateway, httpdto.NewErrorResponse(err.Error(), "BACKEND_FAILURE"))
	}
}
