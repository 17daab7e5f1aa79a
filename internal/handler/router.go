package handler

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"ledger-recon/internal/middleware"
)

// NewRouter registers every route on a fresh engine.
func NewRouter(recon *ReconciliationHandler, rules *RuleHandler, journals *JournalHandler) *gin.Engine {
	router := gin.New()

	router.Use(middleware.Recovery())
	router.Use(middleware.Logger())
	router.Use(middleware.ErrorHandler())

	router.GET("/health", middleware.HealthStatus)
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	v1 := router.Group("/api/v1", middleware.Tenant())
	{
		classify := v1.Group("/classify")
		{
			classify.POST("", recon.Classify)
			classify.POST("/import", recon.ImportStatement)
		}
		v1.POST("/escalations", recon.Escalate)

		ruleRoutes := v1.Group("/rules")
		{
			ruleRoutes.GET("", rules.ListRules)
			ruleRoutes.POST("", rules.CreateRule)
			ruleRoutes.POST("/learn", rules.LearnRule)
			ruleRoutes.DELETE("/:rule_id", rules.DeactivateRule)
		}

		journalRoutes := v1.Group("/journals")
		{
			journalRoutes.GET("", journals.FindEntry)
			journalRoutes.POST("", journals.PostMapping)
			journalRoutes.POST("/bills", journals.PostBill)
			journalRoutes.POST("/payments", journals.PostPayment)
			journalRoutes.GET("/:entry_id", journals.GetEntry)
			journalRoutes.POST("/:entry_id/void", journals.VoidEntry)
		}

		sessions := v1.Group("/sessions")
		{
			sessions.POST("", journals.CreateSession)
			sessions.GET("/:session_id", journals.GetSession)
			sessions.POST("/:session_id/entries", journals.StageEntry)
			sessions.POST("/:session_id/promote", journals.PromoteSession)
		}
	}

	return router
}
