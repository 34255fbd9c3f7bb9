package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"medibook-server/internal/agent"
	"medibook-server/internal/config"
	"medibook-server/internal/directory"
	"medibook-server/internal/external"
	"medibook-server/internal/handlers"
	"medibook-server/internal/middleware"
	"medibook-server/internal/models"
	"medibook-server/internal/notify"
	"medibook-server/internal/scheduling"
	"medibook-server/internal/utils"
)

// APIBase is where the versioned API is mounted.
const APIBase = "/api/v1"

// Services bundles what the handlers depend on.
type Services struct {
	Config    *config.Config
	Logger    zerolog.Logger
	DB        *gorm.DB
	Directory *directory.Directory
	Engine    *scheduling.Engine
	Tokens    *utils.TokenService
	Notifier  notify.Notifier
	Storage   external.Storage
	Agent     *agent.Agent
	Speech    external.Speech
}

// NewRouter builds the gin engine with the global middleware chain and all routes.
func NewRouter(s *Services) *gin.Engine {
	router := gin.New()
	router.Use(middleware.RequestID())
	router.Use(middleware.Recovery(s.Logger))
	router.Use(middleware.Logger(s.Logger))

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = []string{s.Config.Origin}
	corsConfig.AllowCredentials = true
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Admin-Secret", "X-Request-ID"}
	corsConfig.ExposeHeaders = []string{"X-Request-ID"}
	router.Use(cors.New(corsConfig))

	policy := middleware.DefaultPolicy(APIBase)
	router.Use(middleware.Authenticate(s.Tokens, s.Directory, policy, s.Logger))
	router.Use(middleware.Authorize(policy))

	SetupRoutes(router, s)
	return router
}

// SetupRoutes configures the application routes. Access to each prefix is
// decided by the policy applied in NewRouter; RequireRole narrows single routes.
func SetupRoutes(router *gin.Engine, s *Services) {
	authHandler := handlers.NewAuthHandler(s.Directory, s.Tokens, s.Config.AdminRegistrationSecret, s.Logger)
	userHandler := handlers.NewUserHandler(s.Directory, s.Logger)
	doctorHandler := handlers.NewDoctorHandler(s.Directory, s.Logger)
	appointmentHandler := handlers.NewAppointmentHandler(s.Engine, s.Notifier, s.Logger)
	visitHandler := handlers.NewVisitHandler(s.Directory, s.Engine, s.Logger)
	uploadHandler := handlers.NewUploadHandler(s.Storage, s.Config.UploadMaxBytes, s.Logger)
	assistantHandler := handlers.NewAssistantHandler(s.Agent, s.Speech, s.Logger)

	doctorOnly := middleware.RequireRole(models.RoleDoctor)

	api := router.Group(APIBase)
	{
		authRoutes := api.Group("/auth")
		{
			authRoutes.POST("/register", authHandler.Register)
			authRoutes.POST("/login", authHandler.Login)
			authRoutes.POST("/doctor/register", authHandler.RegisterDoctor)
			authRoutes.POST("/admin/register", authHandler.RegisterAdmin)
		}

		api.GET("/profile", authHandler.GetProfile)
		api.PUT("/profile", authHandler.UpdateProfile)

		// Doctor discovery is public and also served to signed-in callers under /doctors.
		discovery := func(g *gin.RouterGroup) {
			g.GET("/search", doctorHandler.SearchDoctors)
			g.GET("/specializations", doctorHandler.GetSpecializations)
			g.GET("/top-rated", doctorHandler.GetTopRatedDoctors)
			g.GET("/:id", doctorHandler.GetDoctorByID)
			g.GET("/:id/slots", appointmentHandler.GetAvailableSlots)
		}
		discovery(api.Group("/public/doctors"))

		doctorRoutes := api.Group("/doctors")
		{
			discovery(doctorRoutes)
			doctorRoutes.POST("/:id/rating", doctorHandler.RateDoctor)

			doctorRoutes.GET("/profile", doctorOnly, doctorHandler.GetOwnProfile)
			doctorRoutes.PUT("/profile", doctorOnly, doctorHandler.UpdateOwnProfile)
			doctorRoutes.GET("/patients", doctorOnly, appointmentHandler.GetDoctorPatients)
			doctorRoutes.GET("/schedules", doctorOnly, doctorHandler.GetSchedules)
			doctorRoutes.POST("/schedules", doctorOnly, doctorHandler.CreateSchedule)
			doctorRoutes.PUT("/schedules/:id", doctorOnly, doctorHandler.UpdateSchedule)
			doctorRoutes.DELETE("/schedules/:id", doctorOnly, doctorHandler.DeleteSchedule)
		}

		appointmentRoutes := api.Group("/appointments")
		{
			appointmentRoutes.POST("", appointmentHandler.CreateAppointment)
			appointmentRoutes.GET("/available", appointmentHandler.GetAvailableSlots)
			appointmentRoutes.GET("/patient", appointmentHandler.GetPatientAppointments)
			appointmentRoutes.GET("/doctor", doctorOnly, appointmentHandler.GetDoctorAppointments)

			// Participant checks happen inside the handlers.
			appointmentRoutes.GET("/:id", appointmentHandler.GetAppointmentByID)
			appointmentRoutes.PUT("/:id/status", appointmentHandler.UpdateAppointmentStatus)
			appointmentRoutes.PUT("/:id/cancel", appointmentHandler.CancelAppointment)
			appointmentRoutes.PUT("/:id/reschedule", appointmentHandler.RescheduleAppointment)
		}

		visitRoutes := api.Group("/visits")
		{
			visitRoutes.POST("", doctorOnly, visitHandler.CreateVisit)
			visitRoutes.GET("/patient", visitHandler.GetPatientVisits)
			visitRoutes.GET("/doctor", doctorOnly, visitHandler.GetDoctorVisits)
			visitRoutes.GET("/:id", visitHandler.GetVisitByID)
		}

		uploadRoutes := api.Group("/upload")
		{
			uploadRoutes.POST("/prescription", uploadHandler.UploadPrescription)
			uploadRoutes.POST("/image", uploadHandler.UploadImage)
		}

		chatbotRoutes := api.Group("/chatbot")
		{
			chatbotRoutes.GET("/greet", assistantHandler.Greet)
			chatbotRoutes.POST("/message", assistantHandler.Message)
		}

		agentRoutes := api.Group("/agent")
		{
			agentRoutes.POST("/chat", assistantHandler.AgentChat)
			agentRoutes.POST("/speech", assistantHandler.AgentSpeech)
		}

		adminRoutes := api.Group("/admin")
		{
			adminRoutes.GET("/users", userHandler.GetUsers)
			adminRoutes.GET("/users/:id", userHandler.GetUserByID)
			adminRoutes.PUT("/users/:id", userHandler.UpdateUser)
			adminRoutes.PUT("/users/:id/status", userHandler.UpdateUserStatus)
			adminRoutes.POST("/users/:id/roles", userHandler.AssignRole)
			adminRoutes.DELETE("/users/:id/roles/:role", userHandler.RevokeRole)
			adminRoutes.DELETE("/users/:id", userHandler.DeleteUser)
			adminRoutes.PUT("/doctors/:id/verify", userHandler.VerifyDoctor)
			adminRoutes.GET("/appointments", appointmentHandler.GetAllAppointments)
		}
	}

	// Simple health check endpoint
	router.GET("/health", func(c *gin.Context) {
		if err := pingDB(c.Request.Context(), s.DB); err != nil {
			s.Logger.Warn().Err(err).Msg("health check: database unreachable")
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "DOWN", "database": "DOWN"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "UP", "database": "UP"})
	})
}

func pingDB(ctx context.Context, db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return sqlDB.PingContext(ctx)
}
