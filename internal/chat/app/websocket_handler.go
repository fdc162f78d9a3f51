package app

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"social_chat_service/internal/chat/domain"
	"social_chat_service/internal/chat/presence"
	"social_chat_service/internal/chat/repository"
	"social_chat_service/pkg/logger"
	"social_chat_service/pkg/metrics"
	"social_chat_service/pkg/middlewares"

	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"
)

// WebsocketConfig websocket channel tuning
type WebsocketConfig struct {
	SendBuffer   int
	PingInterval time.Duration
	PresenceTTL  time.Duration
	InstanceID   string
}

// ChatWebsocketHandler 可包含所有需要的 UseCase
type ChatWebsocketHandler struct {
	dispatchUC *DispatchUseCase
	readUC     *ReadStateUseCase
	summaryUC  *SummaryUseCase
	router     presence.Router
	directory  repository.PresenceRepository
	cfg        WebsocketConfig
}

// NewChatWebsocketHandler create ChatWebsocketHandler, directory may be nil on a single instance
func NewChatWebsocketHandler(
	dispatchUC *DispatchUseCase,
	readUC *ReadStateUseCase,
	summaryUC *SummaryUseCase,
	router presence.Router,
	directory repository.PresenceRepository,
	cfg WebsocketConfig,
) *ChatWebsocketHandler {
	return &ChatWebsocketHandler{
		dispatchUC: dispatchUC,
		readUC:     readUC,
		summaryUC:  summaryUC,
		router:     router,
		directory:  directory,
		cfg:        cfg,
	}
}

// HandleConnection 是 WebSocket 連線的進入點
func (h *ChatWebsocketHandler) HandleConnection(ctx context.Context, conn *websocket.Conn) {
	memberID, _ := conn.Locals(middlewares.TokenMemberID).(string)
	ch := newWSChannel(conn, h.cfg.SendBuffer)
	logger.Log.Info("websocket open", zap.String("userID", memberID), zap.String("channel", ch.ID()))

	go ch.writePump(h.cfg.PingInterval)

	defer func() {
		h.leave(ch)
		ch.close()
		conn.Close()
		// handler 返回後 conn 會被 fiber 回收, 需等 writePump 結束
		ch.wait()
		logger.Log.Info("websocket close", zap.String("userID", memberID), zap.String("channel", ch.ID()))
	}()

	//server發出ping之後client連線正常會回pong
	//fiber會自動處理回傳pong,故需要SetPongHandler另外接出
	conn.SetPongHandler(func(appData string) error {
		logger.Log.Debug("websocket pong", zap.String("channel", ch.ID()))
		return nil
	})

	for {
		mt, message, err := conn.ReadMessage()
		if err != nil {
			// 檢查是否為 Close 正常結束
			if websocket.IsCloseError(err,
				websocket.CloseNormalClosure,
				websocket.CloseGoingAway,
				websocket.CloseNoStatusReceived,
			) {
				logger.Log.Info("websocket closed by client", zap.String("channel", ch.ID()))
			} else {
				//直接斷線 1006
				logger.Log.Debug("websocket read error", zap.String("channel", ch.ID()), zap.Error(err))
			}
			return
		}

		// 已被新連線取代, 不再處理此連線的請求
		if ch.isClosed() {
			return
		}

		if mt != websocket.TextMessage {
			_ = ch.Push(errorResponse("", "unsupported message type"))
			continue
		}

		var req domain.WSRequest
		if err := json.Unmarshal(message, &req); err != nil {
			_ = ch.Push(errorResponse("", "invalid json"))
			continue
		}

		if err := ch.Push(h.HandleRequest(ctx, ch, memberID, req)); err != nil {
			logger.Log.Debug("websocket reply dropped", zap.String("channel", ch.ID()), zap.Error(err))
		}
	}
}

// HandleRequest execute one websocket action for the authenticated member
func (h *ChatWebsocketHandler) HandleRequest(ctx context.Context, ch presence.Channel, memberID string, req domain.WSRequest) domain.WSResponse {
	resp := domain.WSResponse{Action: req.Action, Success: false, Payload: map[string]interface{}{}}

	var err error
	switch domain.Action(req.Action) {
	// 宣告此連線的身份, 後來的 join 取代先前的連線
	case domain.Join:
		err = h.join(ctx, ch, memberID, req.UserID)
		resp.Payload["user_id"] = req.UserID

	// 寫入 db 後推送給對方
	case domain.SendMessage:
		var saved *domain.Message
		saved, err = h.dispatchUC.Dispatch(ctx, &domain.Message{
			SenderID:   memberID,
			ReceiverID: req.ReceiverID,
			Content:    req.Content,
			Image:      req.Image,
			Video:      req.Video,
		})
		if err == nil {
			resp.Payload["message"] = saved
		}

	// 舊版前端的直接轉送, 不寫入 db
	case domain.RelayMessage:
		err = h.dispatchUC.Relay(ctx, memberID, req.ReceiverID, req.Payload)

	case domain.ReadMessage:
		var n int64
		n, err = h.readUC.Reconcile(ctx, memberID, req.OtherUserID)
		resp.Payload["modified_count"] = n

	case domain.GetHistory:
		var msgs []domain.Message
		msgs, err = h.summaryUC.History(ctx, memberID, req.OtherUserID)
		if err == nil {
			resp.Payload["messages"] = msgs
		}

	case domain.GetChats:
		var chats []domain.ConversationSummary
		chats, err = h.summaryUC.BuildSummaries(ctx, memberID)
		if err == nil {
			resp.Payload["chats"] = chats
		}

	case domain.Ping:
		resp.Action = string(domain.Pong)
		h.refresh(ctx, memberID)

	default:
		return errorResponse(req.Action, "unknown action")
	}

	if err != nil {
		resp.Error = clientError(err)
		logger.Log.Error("websocket err", zap.String("MemberID", memberID), zap.String("Action", req.Action), zap.Error(err))
		return resp
	}
	resp.Success = true
	return resp
}

func (h *ChatWebsocketHandler) join(ctx context.Context, ch presence.Channel, memberID, userID string) error {
	if userID == "" {
		return errors.Join(domain.ErrValidation, errors.New("user_id is required"))
	}
	if memberID != "" && userID != memberID {
		return domain.ErrForbidden
	}

	if old := h.router.Join(userID, ch); old != nil {
		logger.Log.Info("session superseded", zap.String("userID", userID), zap.String("old", old.ID()), zap.String("new", ch.ID()))
		_ = old.Push(domain.NewSessionSuperseded(userID))
		old.Close()
	}
	metrics.ConnectedChannels.Set(float64(h.router.Count()))

	if h.directory != nil {
		ctx, cancel := context.WithTimeout(ctx, time.Second)
		defer cancel()
		entry := repository.PresenceEntry{
			UserID:     userID,
			InstanceID: h.cfg.InstanceID,
			ChannelID:  ch.ID(),
			JoinedAt:   time.Now().UTC(),
		}
		if err := h.directory.Register(ctx, entry, h.cfg.PresenceTTL); err != nil {
			// 本機推送仍可用, 只有跨節點路由受影響
			logger.Log.Warn("presence register", zap.String("userID", userID), zap.Error(err))
		}
	}
	return nil
}

func (h *ChatWebsocketHandler) refresh(ctx context.Context, memberID string) {
	if h.directory == nil || memberID == "" {
		return
	}
	if err := h.directory.Refresh(ctx, memberID, h.cfg.PresenceTTL); err != nil {
		logger.Log.Debug("presence refresh", zap.String("userID", memberID), zap.Error(err))
	}
}

func (h *ChatWebsocketHandler) leave(ch presence.Channel) {
	userID, ok := h.router.Leave(ch)
	metrics.ConnectedChannels.Set(float64(h.router.Count()))
	if !ok || h.directory == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := h.directory.Unregister(ctx, userID, ch.ID()); err != nil {
		logger.Log.Warn("presence unregister", zap.String("userID", userID), zap.Error(err))
	}
}

func errorResponse(action, msg string) domain.WSResponse {
	return domain.WSResponse{
		Action:  string(domain.ActionError),
		Success: false,
		Payload: map[string]interface{}{"action": action},
		Error:   msg,
	}
}

// clientError hide store internals from clients
func clientError(err error) string {
	switch {
	case errors.Is(err, domain.ErrStoreUnavailable):
		return domain.ErrStoreUnavailable.Error()
	case errors.Is(err, domain.ErrValidation):
		return domain.ErrValidation.Error()
	default:
		return err.Error()
	}
}
