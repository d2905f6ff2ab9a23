package http

import (
	"net/http"
	"time"

	"github.com/credit-relay/internal/application/credit"
	"github.com/credit-relay/internal/application/mailrelay"
	"github.com/credit-relay/internal/application/member"
	"github.com/credit-relay/internal/config"
	"github.com/credit-relay/internal/transport/http/handler"
	appmiddleware "github.com/credit-relay/internal/transport/http/middleware"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"
)

// NewRouter builds and returns the application router.
func NewRouter(cfg *config.Config, deps *Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	memberDeps := member.ServiceDeps{MemberRepo: deps.MemberRepo}
	authMw := appmiddleware.Unavailable
	if deps.JWTProvider != nil {
		memberDeps.JWTProvider = deps.JWTProvider
		authMw = appmiddleware.Auth(deps.JWTProvider)
	}
	if deps.GoogleDecoder != nil {
		memberDeps.GoogleDecoder = deps.GoogleDecoder
	}
	memberSvc := member.NewService(memberDeps)
	relaySvc := mailrelay.NewService(deps.Verifier, deps.Mailer, memberSvc, cfg.AppBaseURL)
	creditSvc := credit.NewService(deps.Ledger, deps.Account, deps.Products, time.Now)

	// 5 requests/second, burst of 10, on endpoints that send mail or check passwords.
	sensitiveRL := appmiddleware.NewRateLimiter(rate.Limit(5), 10)

	emailH := handler.NewEmailHandler(relaySvc, deps.Previews)
	memberH := handler.NewMemberHandler(memberSvc)
	creditH := handler.NewCreditHandler(creditSvc)

	r.Get("/healthz", handler.Health)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		// ── Public routes (no auth) ──────────────────────────────────────────
		r.Route("/email", func(r chi.Router) {
			r.With(sensitiveRL.Limit).Post("/otp", emailH.SendOTP)
			r.With(sensitiveRL.Limit).Post("/verify-otp", emailH.VerifyOTP)
			r.With(sensitiveRL.Limit).Post("/verify-link", emailH.SendVerifyLink)
			r.Get("/verify-link/validate", emailH.ValidateLink)
			r.Get("/verify-smtp", emailH.VerifySMTP)
			r.Get("/preview/{id}", emailH.Preview)
		})
		r.With(sensitiveRL.Limit).Post("/members/register", memberH.Register)
		r.With(sensitiveRL.Limit).Post("/members/login", memberH.Login)
		r.With(sensitiveRL.Limit).Post("/members/google", memberH.Google)

		// ── Authenticated routes ─────────────────────────────────────────────
		r.Group(func(r chi.Router) {
			r.Use(authMw)

			r.Get("/members/me", memberH.Me)
			r.Get("/credit/balance", creditH.Balance)
			r.Get("/credit/history", creditH.History)
			r.Get("/credit/history/all", creditH.HistoryAll)
			r.Post("/credit/spend", creditH.Spend)
			r.Post("/generate/{kind}", creditH.Generate)
		})
	})

	return r
}
