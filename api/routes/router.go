package routes

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/keyward/keyward-backend/api/controllers"
	"github.com/keyward/keyward-backend/api/middleware"
	alertsvc "github.com/keyward/keyward-backend/internal/alerts"
	auditsvc "github.com/keyward/keyward-backend/internal/audit"
	authsvc "github.com/keyward/keyward-backend/internal/auth"
	facilitysvc "github.com/keyward/keyward-backend/internal/facilities"
	keysvc "github.com/keyward/keyward-backend/internal/keys"
	loansvc "github.com/keyward/keyward-backend/internal/loans"
	personsvc "github.com/keyward/keyward-backend/internal/people"
	reservationsvc "github.com/keyward/keyward-backend/internal/reservations"
	rolesvc "github.com/keyward/keyward-backend/internal/roles"
	usersvc "github.com/keyward/keyward-backend/internal/users"
	"github.com/keyward/keyward-backend/pkg/auth/session"
	"github.com/keyward/keyward-backend/pkg/config"
	"github.com/keyward/keyward-backend/pkg/logger"
	"github.com/keyward/keyward-backend/pkg/metrics"
	"github.com/keyward/keyward-backend/pkg/redis"
)

const (
	roleAdmin    = "admin"
	roleOperator = "operator"
)

type pinger interface {
	Ping(ctx context.Context) error
}

// Services groups the business services the router exposes.
type Services struct {
	Auth         authsvc.Service
	Keys         keysvc.Service
	Loans        loansvc.Service
	Reservations reservationsvc.Service
	Facilities   facilitysvc.Service
	People       personsvc.Service
	Roles        rolesvc.Service
	Users        usersvc.Service
	Alerts       alertsvc.Service
	Audit        auditsvc.Service
}

// NewRouter assembles the HTTP surface: public health and auth endpoints,
// prometheus scrape target, and the authenticated v1 API.
func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP pinger,
	redisClient *redis.Client,
	sessions session.AccessSessionChecker,
	registry *prometheus.Registry,
	httpMetrics *metrics.HTTPMetrics,
	svcs Services,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.Metrics(httpMetrics),
		middleware.CORS(),
	)

	loginPolicy := middleware.LoginPolicy(cfg.AuthRateLimit)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, dbP, redisClient, logg))
	})

	if registry != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1/auth", func(r chi.Router) {
		r.With(middleware.AuthRateLimit(loginPolicy, redisClient, logg)).Post("/login", controllers.AuthLogin(svcs.Auth, logg))
		r.Post("/refresh", controllers.AuthRefresh(svcs.Auth, logg))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, sessions, logg))

		r.Post("/auth/logout", controllers.AuthLogout(svcs.Auth, logg))

		manage := middleware.RequireRole(logg, roleAdmin, roleOperator)
		adminOnly := middleware.RequireRole(logg, roleAdmin)

		r.Route("/keys", func(r chi.Router) {
			r.Get("/", controllers.ListKeys(svcs.Keys, logg))
			r.Get("/{id}", controllers.GetKey(svcs.Keys, logg))
			r.With(manage).Post("/", controllers.CreateKey(svcs.Keys, logg))
			r.With(manage).Put("/{id}", controllers.UpdateKey(svcs.Keys, logg))
			r.With(manage).Patch("/{id}/status", controllers.ChangeKeyStatus(svcs.Keys, logg))
			r.With(adminOnly).Delete("/{id}", controllers.DeleteKey(svcs.Keys, logg))
			r.With(manage).Post("/{id}/authorized", controllers.AuthorizeKeyPerson(svcs.Keys, logg))
			r.With(manage).Delete("/{id}/authorized/{personID}", controllers.RevokeKeyPerson(svcs.Keys, logg))
		})

		r.Route("/loans", func(r chi.Router) {
			r.Get("/", controllers.ListLoans(svcs.Loans, logg))
			r.Get("/{id}", controllers.GetLoan(svcs.Loans, logg))
			r.With(manage).Post("/", controllers.OpenLoan(svcs.Loans, logg))
			r.With(manage).Post("/{id}/return", controllers.ReturnLoan(svcs.Loans, logg))
			r.With(manage).Post("/{id}/cancel", controllers.CancelLoan(svcs.Loans, logg))
		})

		r.Route("/reservations", func(r chi.Router) {
			r.Get("/", controllers.ListReservations(svcs.Reservations, logg))
			r.Get("/{id}", controllers.GetReservation(svcs.Reservations, logg))
			r.With(manage).Post("/", controllers.CreateReservation(svcs.Reservations, logg))
			r.With(manage).Post("/{id}/confirm", controllers.ConfirmReservation(svcs.Reservations, logg))
			r.With(manage).Post("/{id}/use", controllers.UseReservation(svcs.Reservations, logg))
			r.With(manage).Post("/{id}/cancel", controllers.CancelReservation(svcs.Reservations, logg))
		})

		r.Route("/facilities", func(r chi.Router) {
			r.Get("/", controllers.ListFacilities(svcs.Facilities, logg))
			r.Get("/types", controllers.ListFacilityTypes(svcs.Facilities, logg))
			r.With(adminOnly).Post("/types", controllers.CreateFacilityType(svcs.Facilities, logg))
			r.Get("/{id}", controllers.GetFacility(svcs.Facilities, logg))
			r.With(adminOnly).Post("/", controllers.CreateFacility(svcs.Facilities, logg))
			r.With(adminOnly).Put("/{id}", controllers.UpdateFacility(svcs.Facilities, logg))
			r.With(adminOnly).Delete("/{id}", controllers.DeleteFacility(svcs.Facilities, logg))
		})

		r.Route("/people", func(r chi.Router) {
			r.Get("/", controllers.ListPeople(svcs.People, logg))
			r.Get("/{id}", controllers.GetPerson(svcs.People, logg))
			r.With(manage).Post("/", controllers.CreatePerson(svcs.People, logg))
			r.With(manage).Put("/{id}", controllers.UpdatePerson(svcs.People, logg))
			r.With(adminOnly).Delete("/{id}", controllers.DeletePerson(svcs.People, logg))
		})

		r.Route("/alerts", func(r chi.Router) {
			r.Get("/", controllers.ListAlerts(svcs.Alerts, logg))
			r.With(manage).Post("/{id}/read", controllers.MarkAlertRead(svcs.Alerts, logg))
		})

		r.Route("/roles", func(r chi.Router) {
			r.Use(adminOnly)
			r.Get("/", controllers.ListRoles(svcs.Roles, logg))
			r.Get("/{id}", controllers.GetRole(svcs.Roles, logg))
			r.Post("/", controllers.CreateRole(svcs.Roles, logg))
			r.Put("/{id}", controllers.UpdateRole(svcs.Roles, logg))
			r.Delete("/{id}", controllers.DeleteRole(svcs.Roles, logg))
			r.Put("/{id}/permissions", controllers.SetRolePermissions(svcs.Roles, logg))
		})

		r.With(middleware.RequireRole(logg, roleAdmin)).Get("/permissions", controllers.ListPermissions(svcs.Roles, logg))

		r.Route("/users", func(r chi.Router) {
			r.Use(adminOnly)
			r.Get("/", controllers.ListUsers(svcs.Users, logg))
			r.Get("/{id}", controllers.GetUser(svcs.Users, logg))
			r.Post("/", controllers.CreateUser(svcs.Users, logg))
			r.Put("/{id}", controllers.UpdateUser(svcs.Users, logg))
			r.Put("/{id}/password", controllers.ChangeUserPassword(svcs.Users, logg))
			r.Delete("/{id}", controllers.DeleteUser(svcs.Users, logg))
		})

		r.With(adminOnly).Get("/audit-logs", controllers.ListAuditLogs(svcs.Audit, logg))
	})

	return r
}
