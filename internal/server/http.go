package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/Gift-Esethu/Ussd-Server/internal/audit"
	devotphandler "github.com/Gift-Esethu/Ussd-Server/internal/devotp/handler"
	healthhandler "github.com/Gift-Esethu/Ussd-Server/internal/health/handler"
	"github.com/Gift-Esethu/Ussd-Server/internal/security"
	"github.com/Gift-Esethu/Ussd-Server/internal/server/interceptors"
	statushandler "github.com/Gift-Esethu/Ussd-Server/internal/status/handler"
	ussdhandler "github.com/Gift-Esethu/Ussd-Server/internal/ussd/handler"
	voucherhandler "github.com/Gift-Esethu/Ussd-Server/internal/voucher/handler"
)

// Deps holds the HTTP handlers and middleware dependencies for NewRouter.
type Deps struct {
	USSD     *ussdhandler.Handler
	Vouchers *voucherhandler.Handler
	Status   *statushandler.Handler
	Health   *healthhandler.Checker
	// DevOTP is mounted at /dev/otp/{callerId} only when non-nil.
	DevOTP *devotphandler.Handler
	// Tokens verifies admin bearer tokens. If nil, admin routes are open.
	Tokens *security.TokenProvider
	// Audit records access to the admin and dev routes. If nil, access is not audited.
	Audit audit.AuditLogger
}

// NewRouter builds the HTTP handler for the USSD gateway callback, admin and status routes.
// Routes whose handler is nil are not mounted.
func NewRouter(deps Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RealIP)
	r.Use(interceptors.ClientIP)
	r.Use(chimiddleware.Recoverer)

	if deps.Health != nil {
		r.Get("/healthz", deps.Health.Live)
		r.Get("/readyz", deps.Health.Ready)
	}
	if deps.USSD != nil {
		r.Post("/ussd", deps.USSD.ServeUSSD)
	}
	if deps.Status != nil {
		r.Get("/status", deps.Status.GetStatus)
	}
	if deps.Vouchers != nil {
		r.Route("/admin", func(ar chi.Router) {
			ar.Use(interceptors.AdminAuth(deps.Tokens))
			ar.Use(interceptors.Audit(deps.Audit))
			ar.Post("/voucher", deps.Vouchers.IssueVoucher)
		})
	}
	if deps.DevOTP != nil {
		r.Route("/dev", func(dr chi.Router) {
			dr.Use(interceptors.Audit(deps.Audit))
			dr.Get("/otp/{callerId}", deps.DevOTP.GetOTP)
		})
	}

	return otelhttp.NewHandler(r, "ussd-wallet")
}
