package router

import (
	"time"

	"github.com/agenciabaepi/AgilizaOS-sub003/internal/config"
	"github.com/agenciabaepi/AgilizaOS-sub003/internal/handler"
	"github.com/agenciabaepi/AgilizaOS-sub003/internal/middleware"
	"github.com/agenciabaepi/AgilizaOS-sub003/internal/repository"
	"github.com/agenciabaepi/AgilizaOS-sub003/internal/service"
	"github.com/agenciabaepi/AgilizaOS-sub003/internal/worker"

	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// New monta todas as dependências e devolve o engine Gin configurado.
// Grafo: Handler ← Service ← Repository ← DB/Redis
func New(cfg *config.Config, db *gorm.DB, rdb *redis.Client) *gin.Engine {
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()

	// Cadeia global de middlewares (a ordem importa)
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger())
	r.Use(middleware.Recovery())
	r.Use(middleware.CORS())
	r.Use(middleware.ErrorHandler())
	r.Use(middleware.RateLimiter(1000, time.Minute)) // 1000 req/min por IP

	// ── Repositórios ─────────────────────────────────────────────────────────
	usuarioRepo := repository.NewUsuarioRepository(db)
	turnoRepo := repository.NewTurnoRepository(db)

	// ── Services ─────────────────────────────────────────────────────────────
	authSvc := service.NewAuthService(usuarioRepo, cfg)

	// Dispatcher — publica snapshots de fechamento para os dashboards
	dispatcher := worker.NewDispatcher(rdb)
	turnoSvc := service.NewTurnoService(turnoRepo, dispatcher)

	// ── Handlers ─────────────────────────────────────────────────────────────
	authH := handler.NewAuthHandler(authSvc)
	turnoH := handler.NewTurnoHandler(turnoSvc)

	// ── Rotas ────────────────────────────────────────────────────────────────

	// Públicas
	r.GET("/health", handler.Health(db, rdb))

	auth := r.Group("/v1/auth")
	{
		auth.POST("/login", middleware.LoginRateLimiter(), authH.Login)
		auth.POST("/refresh", authH.Refresh)
	}

	// Protegidas
	jwtMW := middleware.JWTAuth(cfg.JWTSecret)
	v1 := r.Group("/v1", jwtMW)
	{
		// Papéis: atendente, supervisor, administrador — declarados por rota
		operador := middleware.RequireRole("atendente", "supervisor", "administrador")
		gestor := middleware.RequireRole("supervisor", "administrador")

		turnos := v1.Group("/turnos")
		{
			turnos.POST("/abrir", operador, turnoH.Abrir)
			turnos.GET("/aberto", operador, turnoH.TurnoAberto)
			turnos.POST("/:id/movimentacoes", operador, turnoH.RegistrarMovimentacao)
			turnos.POST("/:id/fechar", operador, turnoH.Fechar)
			turnos.GET("/:id", operador, turnoH.Relatorio)
			turnos.GET("/:id/movimentacoes", operador, turnoH.Movimentacoes)
			turnos.GET("/:id/auditoria", gestor, turnoH.Auditoria)
			turnos.GET("", gestor, turnoH.Historico)
		}
	}

	// Swagger UI — habilitado fora de produção
	if cfg.Env != "production" {
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	return r
}
