package router

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/cloudtrack/certprep/internal/config"
	"github.com/cloudtrack/certprep/internal/handler"
	"github.com/cloudtrack/certprep/internal/middleware"
	"github.com/cloudtrack/certprep/internal/model"
	"github.com/cloudtrack/certprep/internal/response"
	"github.com/cloudtrack/certprep/internal/service"
)

// Handlers groups all handler instances for route setup.
type Handlers struct {
	Auth      *handler.AuthHandler
	Exam      *handler.ExamHandler
	Session   *handler.SessionHandler
	Question  *handler.QuestionHandler
	WS        *handler.WSHandler
	System    *handler.SystemHandler
	Dashboard *handler.DashboardHandler
	Monitor   *handler.MonitorHandler
}

// SetupRouter configures all Gin route groups with appropriate middlewares.
func SetupRouter(
	auth service.AuthProvider,
	authLimiter *middleware.RateLimiter,
	handlers *Handlers,
	cfg *config.Config,
) *gin.Engine {
	gin.SetMode(cfg.GinMode)
	router := gin.New()
	router.Use(gin.Recovery())

	// ─── CORS ──────────────────────────────────────────────────────────
	// If AllowedOrigins is set in config, restrict to that list;
	// otherwise allow all (*) so dev works without extra config.
	corsConfig := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"}
	corsConfig.ExposeHeaders = []string{"X-Request-ID"}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	router.Use(response.RequestIDMiddleware())
	router.Use(middleware.Brotli())

	router.GET("/health", handlers.System.Health)

	// ─── 1. Auth Group (Public, Rate Limited) ──────────────────────────
	authAPI := router.Group("/api/v1/auth")
	{
		authAPI.POST("/register", authLimiter.Middleware(), handlers.Auth.Register)
		authAPI.POST("/login", authLimiter.Middleware(), handlers.Auth.Login)

		authAPI.POST("/logout", middleware.RequireAuth(auth), handlers.Auth.Logout)
		authAPI.GET("/me", middleware.RequireAuth(auth), handlers.Auth.Me)
	}

	// ─── 2. Catalog + Session Group (JWT) ──────────────────────────────
	api := router.Group("/api/v1")
	api.Use(middleware.RequireAuth(auth))
	{
		exams := api.Group("/exams")
		{
			exams.GET("", middleware.CacheControl(300), handlers.Exam.ListExams)
			exams.GET("/:exam_id", middleware.CacheControl(300), handlers.Exam.GetExam)
			exams.POST("/:exam_id/sessions", handlers.Session.StartSession)
		}

		session := api.Group("/session")
		{
			session.GET("", handlers.Session.GetSession)
			session.DELETE("", handlers.Session.ResetSession)
			session.PUT("/answers/:question_id", handlers.Session.SelectAnswer)
			session.POST("/flags/:question_id", handlers.Session.ToggleFlag)
			session.POST("/navigate", handlers.Session.Navigate)
			session.POST("/finish", handlers.Session.FinishSession)
			session.GET("/score", handlers.Session.GetScore)
		}
	}

	// ─── 3. WebSocket Group (Query Token) ──────────────────────────────
	wsAPI := router.Group("/ws/v1")
	wsAPI.Use(middleware.RequireWSAuth(auth))
	{
		wsAPI.GET("/session/stream", handlers.WS.SessionStream)
	}

	// ─── 4. Admin Group (JWT + Role) ───────────────────────────────────
	adminAPI := router.Group("/api/v1/admin")
	adminAPI.Use(middleware.RequireAuth(auth), middleware.RequireRole(model.RoleAdmin))
	{
		adminAPI.GET("/dashboard", handlers.Dashboard.GetDashboardData)
		adminAPI.GET("/monitor", handlers.Monitor.MonitorSSE)
		adminAPI.GET("/questions", handlers.Question.ListQuestions)
		adminAPI.GET("/questions/stats", handlers.Question.GetStats)
		adminAPI.POST("/questions/import", handlers.Question.ImportQuestions)
	}

	return router
}
