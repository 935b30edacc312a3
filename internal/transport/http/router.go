package handlers

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"learnplatform/internal/middleware"
)

type Handlers struct {
	Auth        *AuthHandler
	Users       *UserHandler
	Courses     *CourseHandler
	Enrollments *EnrollmentHandler
	Payments    *PaymentHandler
	Schools     *SchoolHandler
	Uploads     *UploadHandler
}

type RouterOptions struct {
	// AllowedOrigins empty or containing "*" allows any origin.
	AllowedOrigins []string
	Tokens         middleware.TokenVerifier
	Limiter        *middleware.RateLimiter
	Log            *zap.Logger
}

func corsConfig(origins []string) cors.Config {
	config := cors.DefaultConfig()
	config.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization", "X-Device-Name"}
	config.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS", "PATCH"}
	config.MaxAge = 12 * time.Hour

	anyOrigin := len(origins) == 0
	for _, o := range origins {
		if o == "*" {
			anyOrigin = true
		}
	}
	if anyOrigin {
		config.AllowAllOrigins = true
	} else {
		config.AllowOrigins = origins
		config.AllowCredentials = true
	}
	return config
}

func NewRouter(h Handlers, opts RouterOptions) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestLogger(opts.Log), cors.New(corsConfig(opts.AllowedOrigins)))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	user := middleware.RequireUser(opts.Tokens)
	admin := middleware.RequireAdmin(opts.Tokens)
	superAdmin := middleware.RequireSuperAdmin(opts.Tokens)
	limiter := opts.Limiter
	if limiter == nil {
		limiter = middleware.NewRateLimiter(nil, opts.Log)
	}

	api := r.Group("/api/v1")
	{
		auth := api.Group("/auth")
		{
			auth.POST("/register", h.Auth.Register)
			auth.POST("/login", limiter.Limit("login", 5, 1*time.Minute), h.Auth.Login)
			auth.POST("/refresh", h.Auth.Refresh)
			auth.POST("/forgot-password", limiter.Limit("forgot_pass", 1, 5*time.Minute), h.Auth.ForgotPassword)
			auth.POST("/verify-reset-token", h.Auth.VerifyResetToken)
			auth.POST("/reset-password", h.Auth.ResetPassword)

			auth.POST("/logout", user, h.Auth.Logout)
			auth.POST("/logout-all", user, h.Auth.LogoutAll)
			auth.GET("/sessions", user, h.Auth.Sessions)
			auth.DELETE("/sessions/:sessionId", user, h.Auth.RevokeSession)
		}

		users := api.Group("/users", user)
		{
			users.GET("/me", h.Users.Me)
			users.PUT("/me", h.Users.UpdateMe)
			users.POST("/me/password", h.Users.ChangePassword)
			users.DELETE("/:id", h.Users.Delete)
		}

		adminGroup := api.Group("/admin", admin)
		{
			adminGroup.GET("/users", h.Users.List)
			adminGroup.GET("/users/:id", h.Users.Get)
			adminGroup.PUT("/users/:id/status", h.Users.SetStatus)
			adminGroup.PUT("/users/:id/roles", superAdmin, h.Users.SetRoles)
			adminGroup.GET("/courses", h.Courses.AdminList)
			adminGroup.GET("/courses/:id", h.Courses.AdminGet)
		}

		courses := api.Group("/courses")
		{
			courses.GET("", h.Courses.List)
			courses.GET("/:id", h.Courses.Get)
			courses.POST("/:id/enroll", user, h.Enrollments.Enroll)

			courses.POST("", admin, h.Courses.Create)
			courses.PUT("/:id", admin, h.Courses.Update)
			courses.DELETE("/:id", admin, h.Courses.Delete)
			courses.GET("/:id/students", admin, h.Enrollments.Students)

			courses.POST("/:id/sections", admin, h.Courses.CreateSection)
			courses.PUT("/:id/sections/reorder", admin, h.Courses.ReorderSections)
			courses.PUT("/:id/sections/:sectionId", admin, h.Courses.UpdateSection)
			courses.DELETE("/:id/sections/:sectionId", admin, h.Courses.DeleteSection)
			courses.POST("/:id/sections/:sectionId/lessons", admin, h.Courses.CreateLesson)

			courses.PUT("/:id/lessons/reorder", admin, h.Courses.ReorderLessons)
			courses.PUT("/:id/lessons/:lessonId", admin, h.Courses.UpdateLesson)
			courses.DELETE("/:id/lessons/:lessonId", admin, h.Courses.DeleteLesson)
		}

		enrollments := api.Group("/enrollments", user)
		{
			enrollments.GET("", h.Enrollments.ListMine)
			enrollments.GET("/:courseId", h.Enrollments.Get)
		}

		progress := api.Group("/progress", user)
		{
			progress.PUT("", h.Enrollments.UpdateProgress)
			progress.GET("/:courseId", h.Enrollments.GetProgress)
		}

		coupons := api.Group("/coupons")
		{
			coupons.POST("/validate", user, h.Payments.ValidateCoupon)
			coupons.POST("", admin, h.Payments.CreateCoupon)
			coupons.GET("", admin, h.Payments.ListCoupons)
			coupons.GET("/:code", admin, h.Payments.GetCoupon)
			coupons.PUT("/:code", admin, h.Payments.UpdateCoupon)
			coupons.DELETE("/:code", admin, h.Payments.DeactivateCoupon)
		}

		payments := api.Group("/payments", user)
		{
			payments.POST("/checkout", h.Payments.Checkout)
			payments.POST("/confirm", h.Payments.Confirm)
			payments.GET("", h.Payments.ListPayments)
			payments.GET("/:id", h.Payments.GetPayment)
		}

		schools := api.Group("/schools")
		{
			schools.GET("", h.Schools.List)
			schools.GET("/:id", h.Schools.Get)
			schools.POST("", superAdmin, h.Schools.Create)
			schools.PUT("/:id", admin, h.Schools.Update)
			schools.DELETE("/:id", superAdmin, h.Schools.Delete)
			schools.GET("/:id/instructors", admin, h.Schools.ListInstructors)
			schools.POST("/:id/instructors", admin, h.Schools.AddInstructor)
			schools.DELETE("/:id/instructors/:userId", admin, h.Schools.RemoveInstructor)
		}

		api.POST("/uploads/presign", admin, h.Uploads.Presign)
	}

	return r
}
