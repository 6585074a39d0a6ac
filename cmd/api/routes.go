package main

import (
	"github.com/gin-gonic/gin"

	"github.com/rahul-singh01/warm-transfer/internal/httpapi"
	"github.com/rahul-singh01/warm-transfer/internal/transport"
)

// registerRoutes wires HTTP routes to handlers.
// Keep this file free of business logic. Handlers delegate to internal modules.
func registerRoutes(r *gin.Engine, h httpapi.Handlers, webhooks transport.WebhookHandler) {
	r.GET("/healthz", h.Health)

	// Provider webhooks (public).
	// NOTE: production deployments should validate the provider's webhook
	// signature in front of this route.
	r.POST("/webhooks/transport", webhooks.HandleEvent)

	api := r.Group("/api")
	{
		roomsGroup := api.Group("/rooms")
		{
			roomsGroup.POST("/create", h.CreateRoom)
			roomsGroup.GET("/", h.ListRooms)

			roomsGroup.POST("/transfer", h.InitiateTransfer)
			roomsGroup.POST("/transfer/:transferId/complete-consultation", h.CompleteConsultation)
			roomsGroup.POST("/transfer/:transferId/cancel", h.CancelTransfer)

			roomsGroup.GET("/transfers/history", h.ListTransferHistory)
			roomsGroup.GET("/transfers/:transfer_id", h.GetTransfer)
			roomsGroup.GET("/transfers/:transfer_id/steps", h.GetTransferSteps)

			roomsGroup.POST("/cleanup", h.CleanupRooms)
			roomsGroup.GET("/:room_id", h.GetRoom)
			roomsGroup.DELETE("/:room_id", h.DeleteRoom)
		}

		participants := api.Group("/participants")
		{
			participants.POST("/token", h.IssueToken)
			participants.DELETE("/:identity", h.RemoveParticipant)
		}

		calls := api.Group("/calls")
		{
			calls.POST("/:call_id/summary", h.GenerateSummary)
			calls.GET("/:call_id/transcript", h.GetTranscript)
			calls.POST("/:call_id/transcript", h.AppendTranscript)
			calls.POST("/:call_id/hold", h.SetHold)
		}
	}
}
