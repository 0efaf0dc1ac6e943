package router

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-timetable-api/internal/handler"
	"github.com/noah-isme/sma-timetable-api/internal/middleware"
	"github.com/noah-isme/sma-timetable-api/internal/models"
	"github.com/noah-isme/sma-timetable-api/internal/service"
	"github.com/noah-isme/sma-timetable-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/sma-timetable-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/sma-timetable-api/pkg/middleware/requestid"
)

// TokenValidator verifies bearer tokens.
type TokenValidator interface {
	ValidateToken(token string) (*models.JWTClaims, error)
}

// Options carries everything the route table needs.
type Options struct {
	APIPrefix      string
	AllowedOrigins []string
	EnableDocs     bool
	Logger         *zap.Logger
	Metrics        *service.MetricsService
	Tokens         TokenValidator

	Teachers *handler.TeacherHandler
	Subjects *handler.SubjectHandler
	Classes  *handler.ClassHandler
	Exams    *handler.ExamHandler
	Audit    *handler.AuditHandler
	Observe  *handler.MetricsHandler
}

// New builds the gin engine with global middleware and every route.
func New(opts Options) *gin.Engine {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(opts.Logger))
	r.Use(corsmiddleware.New(opts.AllowedOrigins))
	r.Use(middleware.Metrics(opts.Metrics))

	r.GET("/health", opts.Observe.Health)
	r.GET("/ready", opts.Observe.Ready)
	r.GET("/metrics", opts.Observe.Prometheus)
	if opts.EnableDocs {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(opts.APIPrefix)
	api.Use(middleware.JWT(opts.Tokens), middleware.WithResponseMeta())

	read := middleware.RequireRoles(middleware.ReaderRoles...)
	write := middleware.RequireRoles(middleware.WriterRoles...)

	teachers := api.Group("/teachers")
	teachers.GET("", read, opts.Teachers.List)
	teachers.GET("/:id", read, opts.Teachers.Get)
	teachers.GET("/:id/timetable", read, opts.Teachers.Timetable)
	teachers.POST("", write, opts.Teachers.Create)
	teachers.PUT("/:id", write, opts.Teachers.Update)
	teachers.DELETE("/:id", write, opts.Teachers.Delete)

	subjects := api.Group("/subjects")
	subjects.GET("", read, opts.Subjects.List)
	subjects.GET("/:id", read, opts.Subjects.Get)
	subjects.POST("", write, opts.Subjects.Create)
	subjects.PUT("/:id", write, opts.Subjects.Update)
	subjects.DELETE("/:id", write, opts.Subjects.Delete)

	classes := api.Group("/classes")
	classes.GET("", read, opts.Classes.List)
	classes.POST("/validate", write, opts.Classes.Validate)
	classes.GET("/:id", read, opts.Classes.Get)
	classes.GET("/:id/conflicts", read, opts.Classes.Conflicts)
	classes.GET("/:id/timetable/export", read, opts.Classes.Export)
	classes.POST("", write, opts.Classes.Create)
	classes.PUT("/:id", write, opts.Classes.Update)
	classes.DELETE("/:id", write, opts.Classes.Delete)

	exams := api.Group("/exams")
	exams.GET("", read, opts.Exams.List)
	exams.POST("/validate", write, opts.Exams.Validate)
	exams.GET("/:id", read, opts.Exams.Get)
	exams.GET("/:id/conflicts", read, opts.Exams.Conflicts)
	exams.POST("", write, opts.Exams.Create)
	exams.PUT("/:id", write, opts.Exams.Update)
	exams.DELETE("/:id", write, opts.Exams.Delete)

	api.GET("/metrics/summary", write, opts.Observe.Summary)
	if opts.Audit != nil {
		api.POST("/audit/references", write, opts.Audit.References)
	}

	return r
}
