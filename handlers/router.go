package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/kevinaaaquil/library/common"
	"github.com/kevinaaaquil/library/middleware"
	"github.com/kevinaaaquil/library/models"
	"github.com/kevinaaaquil/library/service"
)

type RouterConfig struct {
	Members *service.MemberService
	Books   *service.BookService
	Loans   *service.LoanService
	DB      Pinger

	JWTSecret      string
	TokenTTL       time.Duration
	MaxUploadBytes int64
	CORSOrigins    []string
	RequestTimeout time.Duration
}

func NewRouter(cfg RouterConfig) http.Handler {
	if cfg.RequestTimeout == 0 {
		cfg.RequestTimeout = 30 * time.Second
	}
	auth := &AuthHandler{Members: cfg.Members, JWTSecret: cfg.JWTSecret, TokenTTL: cfg.TokenTTL}
	members := &MembersHandler{Members: cfg.Members}
	books := &BooksHandler{Books: cfg.Books, MaxUploadBytes: cfg.MaxUploadBytes}
	loans := &LoansHandler{Loans: cfg.Loans}
	health := &HealthHandler{DB: cfg.DB, Started: time.Now()}

	requireAuth := middleware.Auth(cfg.JWTSecret)
	requireAdmin := middleware.RequireRole(models.RoleAdmin)

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Logger)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(cfg.RequestTimeout))
	r.Use(middleware.CORS(cfg.CORSOrigins))

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		common.RespondWithJSON(w, http.StatusOK, common.MessageResponse{Message: "library management API"})
	})
	r.Get("/health", health.Health)

	// Routes that can set any role, or remove a member, need an admin.
	r.Route("/members", func(r chi.Router) {
		r.Get("/", members.List)
		r.With(requireAuth, requireAdmin).Post("/", members.Create)
		r.Get("/stats/overview", members.Stats)
		r.Post("/register/student", members.RegisterStudent)
		r.Post("/register/patron", members.RegisterPatron)
		r.Post("/login", auth.Login)
		r.With(requireAuth).Get("/me", auth.Me)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", members.Get)
			r.With(requireAuth, requireAdmin).Put("/", members.Update)
			r.With(requireAuth, requireAdmin).Delete("/", members.Delete)
			r.Put("/student", members.UpdateStudent)
			r.Put("/patron", members.UpdatePatron)
		})
	})

	r.Route("/books", func(r chi.Router) {
		r.Get("/", books.List)
		r.Post("/", books.Create)
		r.Get("/stats/by-category", books.Stats)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", books.Get)
			r.Put("/", books.Update)
			r.Delete("/", books.Delete)
			r.Post("/metadata", books.RefreshMetadata)
			r.Put("/cover", books.UploadCover)
			r.Get("/cover", books.Cover)
		})
	})

	r.Route("/loans", func(r chi.Router) {
		r.Get("/", loans.List)
		r.Post("/", loans.Create)
		r.Get("/user/{userId}", loans.ByUser)
		r.Get("/reports/overdue", loans.Overdue)
		r.With(requireAuth, requireAdmin).Post("/reports/overdue/refresh", loans.RefreshOverdue)
		r.Get("/stats/summary", loans.Summary)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", loans.Get)
			r.Put("/", loans.Update)
			r.Delete("/", loans.Delete)
			r.Put("/return", loans.Return)
			r.With(requireAuth, requireAdmin).Post("/remind", loans.Remind)
		})
	})

	return r
}
