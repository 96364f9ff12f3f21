package handlers

import (
	"github.com/gin-gonic/gin"
)

// Handlers groups the REST handlers mounted by Register.
type Handlers struct {
	Accounts *AccountHandler
	Chats    *ChatHandler
	Messages *MessageHandler
}

// Register mounts the public and authenticated routes on router.
func Register(router gin.IRouter, h Handlers, auth gin.HandlerFunc) {
	router.POST("/auth/register", h.Accounts.Register)
	router.POST("/auth/login", h.Accounts.Login)

	api := router.Group("/", auth)

	api.GET("/users/me", h.Accounts.Me)
	api.PATCH("/users/me", h.Accounts.UpdateMe)
	api.GET("/users/:user_id", h.Accounts.GetUser)
	api.POST("/media", h.Accounts.UploadMedia)

	api.POST("/chats", h.Chats.CreateChat)
	api.GET("/chats", h.Chats.ListChats)
	api.GET("/chats/:chat_id", h.Chats.GetChat)
	api.PATCH("/chats/:chat_id", h.Chats.UpdateChat)
	api.DELETE("/chats/:chat_id", h.Chats.DeleteChat)
	api.POST("/chats/:chat_id/leave", h.Chats.LeaveChat)
	api.PATCH("/chats/:chat_id/read", h.Messages.MarkRead)

	api.POST("/chats/:chat_id/participants", h.Chats.AddParticipant)
	api.DELETE("/chats/:chat_id/participants/:user_id", h.Chats.RemoveParticipant)
	api.POST("/chats/:chat_id/participants/admins", h.Chats.PromoteAdmin)
	api.DELETE("/chats/:chat_id/participants/admins/:user_id", h.Chats.DemoteAdmin)

	api.GET("/chats/:chat_id/messages", h.Messages.ListMessages)
	api.POST("/chats/:chat_id/messages", h.Messages.CreateMessage)
	api.GET("/chats/:chat_id/messages/:message_id", h.Messages.GetMessage)
	api.PATCH("/chats/:chat_id/messages/:message_id", h.Messages.EditMessage)
	api.DELETE("/chats/:chat_id/messages/:message_id", h.Messages.DeleteMessage)
}
