package router

import (
	"context"

	"social_chat_service/internal/chat/app"
	"social_chat_service/pkg/metrics"
	"social_chat_service/pkg/middlewares"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/swagger"
	"github.com/gofiber/websocket/v2"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RegisterRoutes 註冊 chat service 路由
// @title Social Chat Service API
// @version 1.0
// @description Direct message delivery and read state
// @host localhost:8080
// @BasePath /
func RegisterRoutes(r *fiber.App, chatWebsocket *app.ChatWebsocketHandler, chatHTTP *app.ChatHTTPHandler) {
	r.Use(metrics.Middleware())

	r.Get("/swagger/*", swagger.HandlerDefault)
	r.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))
	r.Get("/", app.ConnectCheck)
	r.Post("/debug", app.DebugLogFlag)

	r.Use(middlewares.JWTMiddleware())

	r.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	r.Get("/ws", websocket.New(func(c *websocket.Conn) {
		chatWebsocket.HandleConnection(context.Background(), c)
	}))

	messages := r.Group("/api/messages")
	messages.Post("/sendmessage", chatHTTP.SendMessage)
	messages.Get("/conversation/:userId/:otherUserId", chatHTTP.GetConversation)
	messages.Put("/conversation/:userId/:otherUserId/read", chatHTTP.MarkConversationRead)
	messages.Get("/chats/:userId", chatHTTP.GetUserChats)
	messages.Get("/attachments/*", chatHTTP.GetAttachment)

	r.Get("/api/presence/:userId", chatHTTP.GetPresence)
}
