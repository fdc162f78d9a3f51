package app

import (
	"context"
	"errors"
	"fmt"
	"mime/multipart"
	"net/url"
	"strconv"
	"strings"
	"time"

	"social_chat_service/internal/chat/domain"
	"social_chat_service/internal/chat/presence"
	"social_chat_service/internal/chat/repository"
	"social_chat_service/pkg/logger"
	"social_chat_service/pkg/middlewares"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// ChatHTTPHandler 处理私訊相关的 HTTP 请求
type ChatHTTPHandler struct {
	dispatchUC    *DispatchUseCase
	readUC        *ReadStateUseCase
	summaryUC     *SummaryUseCase
	attachments   repository.AttachmentRepository
	presignExpiry time.Duration
	router        presence.Router
	directory     repository.PresenceRepository
	instanceID    string
}

// NewChatHTTPHandler create ChatHTTPHandler, attachments and directory may be nil
func NewChatHTTPHandler(
	dispatchUC *DispatchUseCase,
	readUC *ReadStateUseCase,
	summaryUC *SummaryUseCase,
	attachments repository.AttachmentRepository,
	presignExpiry time.Duration,
	router presence.Router,
	directory repository.PresenceRepository,
	instanceID string,
) *ChatHTTPHandler {
	return &ChatHTTPHandler{
		dispatchUC:    dispatchUC,
		readUC:        readUC,
		summaryUC:     summaryUC,
		attachments:   attachments,
		presignExpiry: presignExpiry,
		router:        router,
		directory:     directory,
		instanceID:    instanceID,
	}
}

// SendMessageReq send message body, json or multipart form
type SendMessageReq struct {
	SenderID   string `json:"senderId" form:"senderId"`
	ReceiverID string `json:"receiverId" form:"receiverId"`
	Content    string `json:"content" form:"content"`
	Image      string `json:"image" form:"-"`
	Video      string `json:"video" form:"-"`
}

// SendMessage 發送私訊
// @Summary Send a direct message
// @Description Persist the message then push it to the receiver if connected. Multipart requests may carry image / video files.
// @Tags Messages
// @Accept json,mpfd
// @Produce json
// @Param request body SendMessageReq true "message"
// @Success 201 {object} map[string]interface{} "{message, data}"
// @Failure 400 {object} map[string]interface{} "validation error"
// @Failure 403 {object} map[string]interface{} "sender is not the token member"
// @Failure 500 {object} map[string]interface{} "store unavailable"
// @Router /api/messages/sendmessage [post]
func (h *ChatHTTPHandler) SendMessage(c *fiber.Ctx) error {
	var req SendMessageReq
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": "invalid request"})
	}

	memberID := middlewares.MemberID(c)
	if req.SenderID != "" && req.SenderID != memberID {
		return errorJSON(c, domain.ErrForbidden)
	}

	msg := &domain.Message{
		SenderID:   memberID,
		ReceiverID: req.ReceiverID,
		Content:    req.Content,
		Image:      req.Image,
		Video:      req.Video,
	}

	// 先檢查收件者, 避免上傳後才被拒絕留下孤兒檔案
	if strings.TrimSpace(msg.ReceiverID) == "" {
		return errorJSON(c, errors.Join(domain.ErrValidation, errors.New("receiverId is required")))
	}

	var uploaded []string
	if form, err := c.MultipartForm(); err == nil {
		for _, kind := range []repository.AttachmentKind{repository.AttachmentImage, repository.AttachmentVideo} {
			key, err := h.uploadFirst(c.Context(), form, kind)
			if err != nil {
				h.discardUploads(uploaded)
				return errorJSON(c, err)
			}
			if key == "" {
				continue
			}
			uploaded = append(uploaded, key)
			if kind == repository.AttachmentImage {
				msg.Image = key
			} else {
				msg.Video = key
			}
		}
	}

	saved, err := h.dispatchUC.Dispatch(c.Context(), msg)
	if err != nil {
		h.discardUploads(uploaded)
		return errorJSON(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message": "Message sent successfully",
		"data":    saved,
	})
}

// discardUploads best effort cleanup of objects whose message was not stored
func (h *ChatHTTPHandler) discardUploads(keys []string) {
	if len(keys) == 0 || h.attachments == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for _, key := range keys {
		if err := h.attachments.Delete(ctx, key); err != nil {
			logger.Log.Warn("discard attachment", zap.String("key", key), zap.Error(err))
		}
	}
}

func (h *ChatHTTPHandler) uploadFirst(ctx context.Context, form *multipart.Form, kind repository.AttachmentKind) (string, error) {
	files := form.File[string(kind)]
	if len(files) == 0 {
		return "", nil
	}
	if h.attachments == nil {
		return "", errors.New("attachment storage not configured")
	}

	fh := files[0]
	f, err := fh.Open()
	if err != nil {
		return "", errors.Join(domain.ErrValidation, err)
	}
	defer f.Close()

	contentType := fh.Header.Get(fiber.HeaderContentType)
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	return h.attachments.Upload(ctx, kind, fh.Filename, f, fh.Size, contentType)
}

// GetConversation 取得兩人間的訊息
// @Summary Conversation history
// @Description All messages between the two users, oldest first
// @Tags Messages
// @Produce json
// @Param userId path string true "user id, must be the token member"
// @Param otherUserId path string true "counterpart id"
// @Success 200 {object} map[string]interface{} "{success, messages}"
// @Failure 403 {object} map[string]interface{} "forbidden"
// @Failure 500 {object} map[string]interface{} "store unavailable"
// @Router /api/messages/conversation/{userId}/{otherUserId} [get]
func (h *ChatHTTPHandler) GetConversation(c *fiber.Ctx) error {
	userID, err := ownerParam(c)
	if err != nil {
		return errorJSON(c, err)
	}
	msgs, err := h.summaryUC.History(c.Context(), userID, c.Params("otherUserId"))
	if err != nil {
		return errorJSON(c, err)
	}
	return c.JSON(fiber.Map{"success": true, "messages": msgs})
}

// MarkConversationRead 將對方傳來的訊息設為已讀
// @Summary Mark conversation read
// @Description Messages sent by otherUserId to userId become read. Idempotent.
// @Tags Messages
// @Produce json
// @Param userId path string true "viewer id, must be the token member"
// @Param otherUserId path string true "counterpart id"
// @Success 200 {object} map[string]interface{} "{success, modifiedCount}"
// @Failure 403 {object} map[string]interface{} "forbidden"
// @Failure 500 {object} map[string]interface{} "store unavailable"
// @Router /api/messages/conversation/{userId}/{otherUserId}/read [put]
func (h *ChatHTTPHandler) MarkConversationRead(c *fiber.Ctx) error {
	userID, err := ownerParam(c)
	if err != nil {
		return errorJSON(c, err)
	}
	n, err := h.readUC.Reconcile(c.Context(), userID, c.Params("otherUserId"))
	if err != nil {
		return errorJSON(c, err)
	}
	return c.JSON(fiber.Map{"success": true, "modifiedCount": n})
}

// GetUserChats 聊天列表
// @Summary Chat list
// @Description One row per counterpart, newest conversation first
// @Tags Messages
// @Produce json
// @Param userId path string true "user id, must be the token member"
// @Success 200 {object} map[string]interface{} "{success, chats}"
// @Failure 403 {object} map[string]interface{} "forbidden"
// @Failure 500 {object} map[string]interface{} "store unavailable"
// @Router /api/messages/chats/{userId} [get]
func (h *ChatHTTPHandler) GetUserChats(c *fiber.Ctx) error {
	userID, err := ownerParam(c)
	if err != nil {
		return errorJSON(c, err)
	}
	chats, err := h.summaryUC.BuildSummaries(c.Context(), userID)
	if err != nil {
		return errorJSON(c, err)
	}
	return c.JSON(fiber.Map{"success": true, "chats": chats})
}

// GetAttachment redirect to a presigned url
// @Summary Attachment download
// @Tags Messages
// @Param key path string true "object key under uploads/"
// @Success 307
// @Failure 404 {object} map[string]interface{} "not found"
// @Router /api/messages/attachments/{key} [get]
func (h *ChatHTTPHandler) GetAttachment(c *fiber.Ctx) error {
	key, err := url.PathUnescape(c.Params("*"))
	if err != nil || !strings.HasPrefix(key, "uploads/") || strings.Contains(key, "..") || h.attachments == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "attachment not found"})
	}

	u, err := h.attachments.PresignURL(c.Context(), key, h.presignExpiry)
	if err != nil {
		logger.Log.Error("presign attachment", zap.String("key", key), zap.Error(err))
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "attachment not found"})
	}
	return c.Redirect(u, fiber.StatusTemporaryRedirect)
}

// GetPresence 查詢使用者是否在線
// @Summary Presence probe
// @Tags Presence
// @Produce json
// @Param userId path string true "user id"
// @Success 200 {object} map[string]interface{} "{online, instance_id}"
// @Router /api/presence/{userId} [get]
func (h *ChatHTTPHandler) GetPresence(c *fiber.Ctx) error {
	userID := c.Params("userId")
	if _, ok := h.router.Resolve(userID); ok {
		return c.JSON(fiber.Map{"online": true, "instance_id": h.instanceID})
	}

	if h.directory != nil {
		entry, err := h.directory.Lookup(c.Context(), userID)
		if err != nil {
			logger.Log.Warn("presence lookup", zap.String("userID", userID), zap.Error(err))
		}
		if entry != nil {
			return c.JSON(fiber.Map{"online": true, "instance_id": entry.InstanceID})
		}
	}
	return c.JSON(fiber.Map{"online": false, "instance_id": ""})
}

// ConnectCheck check api connect start
// @Summary Check chat service status
// @Tags Shared
// @Success 200 {string} string "chat service start!"
// @Router / [get]
func ConnectCheck(c *fiber.Ctx) error {
	return c.SendString("chat service start!")
}

// DebugLogFlag toggle debug log flag
// @Summary Toggle Debug Log Flag
// @Tags Shared
// @Param status query bool true "Debug status"
// @Success 200 {string} string "debug mode updated"
// @Failure 400 {string} string "Invalid status value"
// @Router /debug [post]
func DebugLogFlag(c *fiber.Ctx) error {
	status, err := strconv.ParseBool(c.Query("status"))
	if err != nil {
		return c.SendStatus(fiber.StatusBadRequest)
	}
	logger.Log.SetDebugMode(status)
	logger.Log.Info("debug", zap.Bool("status", status))
	return c.SendString(fmt.Sprintf("debug mode is : %t", status))
}

// ownerParam path :userId must be the token member
func ownerParam(c *fiber.Ctx) (string, error) {
	userID := c.Params("userId")
	if userID != middlewares.MemberID(c) {
		return "", domain.ErrForbidden
	}
	return userID, nil
}

func errorJSON(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, domain.ErrForbidden):
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "forbidden"})
	default:
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"message": "Server error", "error": clientError(err)})
	}
}
