package routes

import (
	"log"
	"os"

	"github.com/gin-gonic/gin"

	"github.com/shreyasurfriend/scavenger-hunt/config"
	"github.com/shreyasurfriend/scavenger-hunt/controllers"
	"github.com/shreyasurfriend/scavenger-hunt/services"
	"github.com/shreyasurfriend/scavenger-hunt/utils"
)

func SetupRouter() *gin.Engine {
	r := gin.Default()

	db := config.DB
	groq := services.NewGroqService()
	ledger := services.NewLedgerService(db)
	childSvc := services.NewChildService(db)
	activitySvc := services.NewActivityService(db, groq)

	hub := services.NewRealtimeHub()
	push, err := services.NewPushService(db)
	if err != nil {
		log.Fatalf("push service init failed: %v", err)
	}
	notify := services.NewNotifyService(hub, push)

	var moderator services.PhotoModerator
	if os.Getenv("MODERATION_ENABLED") == "true" {
		mod, err := services.NewModerationService()
		if err != nil {
			log.Fatalf("moderation init failed: %v", err)
		}
		moderator = mod
	}

	submissionSvc := services.NewSubmissionService(
		db,
		ledger,
		groq,
		services.NewFreshnessChecker(),
		utils.NewS3PhotoStore(),
		moderator,
		notify,
	)

	childCtl := controllers.NewChildController(childSvc, ledger, push)
	activityCtl := controllers.NewActivityController(activitySvc)
	submissionCtl := controllers.NewSubmissionController(submissionSvc)
	realtimeCtl := controllers.NewRealtimeController(hub)

	children := r.Group("/children")
	{
		children.POST("/register", childCtl.Register)
		children.GET("/:id", childCtl.GetChild)
		children.GET("/:id/tokens", childCtl.GetTokens)
		children.GET("/:id/completions", childCtl.ListCompletions)
		children.POST("/:id/devices", childCtl.RegisterDevice)
		children.GET("/:id/events/ws", realtimeCtl.EventsWS)
	}

	activities := r.Group("/activities")
	{
		activities.GET("", activityCtl.List)
		activities.GET("/:id", activityCtl.Get)
		activities.POST("/generate", activityCtl.Generate)
		activities.POST("/:id/submissions", submissionCtl.SubmitPhoto)
	}

	return r
}
