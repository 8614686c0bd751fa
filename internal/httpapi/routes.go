package httpapi

import (
	"crm-platform/internal/communications"
	"crm-platform/internal/rbac"

	"github.com/gin-gonic/gin"
)

// Register mounts the communications API on an authenticated group.
func (h Handlers) Register(v1 *gin.RouterGroup) {
	v1.Use(Actor())

	comms := v1.Group("/communications")
	read := rbac.RequireRead()
	write := rbac.RequireWrite()

	comms.GET("", read, h.ListCommunications)
	comms.GET("/summary", read, h.Summary)
	comms.GET("/export.xlsx", read, h.Export)

	comms.GET("/calls", read, h.ListCalls)
	comms.POST("/calls", write, h.CreateCall)
	comms.GET("/calls/:id", read, h.GetCall)
	comms.PATCH("/calls/:id", write, h.UpdateCall)

	comms.GET("/emails", read, h.ListEmails)
	comms.POST("/emails", write, h.CreateEmail)
	comms.GET("/emails/:id", read, h.GetEmail)
	comms.PATCH("/emails/:id", write, h.UpdateEmail)

	comms.GET("/chats", read, h.ListChats)
	comms.POST("/chats", write, h.CreateChat)
	comms.GET("/chats/:id", read, h.GetChat)
	comms.GET("/chats/:id/messages", read, h.ListChatMessages)
	comms.POST("/chats/:id/messages", write, h.AddChatMessage)

	if h.Audit != nil {
		oversight := rbac.RequireOversight()
		comms.GET("/calls/:id/audit", oversight, h.AuditTrail(communications.KindCall))
		comms.GET("/emails/:id/audit", oversight, h.AuditTrail(communications.KindEmail))
		comms.GET("/chats/:id/audit", oversight, h.AuditTrail(communications.KindChat))
	}
}
