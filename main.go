package main

import (
	"social_chat_service/internal/chat/router"

	"github.com/gofiber/fiber/v2"
)

// 此程式只用於 swag init, 實際服務在 cmd/chat_service
// swag init -g main.go -o ./cmd/chat_service/docs
func main() {
	app := fiber.New()

	router.RegisterRoutes(app, nil, nil)
}
