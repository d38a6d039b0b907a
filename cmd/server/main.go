// Command server runs the Ubuntu Wallet USSD gateway: the HTTP callback and admin API plus the gRPC health endpoint.
package main

import (
	"context"
	"errors"
	"io"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"google.golang.org/grpc"
	"gopkg.in/natefinch/lumberjack.v2"

	accountrepo "github.com/Gift-Esethu/Ussd-Server/internal/account/repository"
	accountservice "github.com/Gift-Esethu/Ussd-Server/internal/account/service"
	"github.com/Gift-Esethu/Ussd-Server/internal/audit"
	auditrepo "github.com/Gift-Esethu/Ussd-Server/internal/audit/repository"
	"github.com/Gift-Esethu/Ussd-Server/internal/config"
	"github.com/Gift-Esethu/Ussd-Server/internal/devotp"
	devotphandler "github.com/Gift-Esethu/Ussd-Server/internal/devotp/handler"
	healthhandler "github.com/Gift-Esethu/Ussd-Server/internal/health/handler"
	"github.com/Gift-Esethu/Ussd-Server/internal/menu"
	"github.com/Gift-Esethu/Ussd-Server/internal/notify"
	"github.com/Gift-Esethu/Ussd-Server/internal/notify/sms"
	otprepo "github.com/Gift-Esethu/Ussd-Server/internal/otp/repository"
	otpservice "github.com/Gift-Esethu/Ussd-Server/internal/otp/service"
	"github.com/Gift-Esethu/Ussd-Server/internal/policy/engine"
	"github.com/Gift-Esethu/Ussd-Server/internal/ratelimit"
	"github.com/Gift-Esethu/Ussd-Server/internal/security"
	"github.com/Gift-Esethu/Ussd-Server/internal/server"
	sessionrepo "github.com/Gift-Esethu/Ussd-Server/internal/session/repository"
	sessionservice "github.com/Gift-Esethu/Ussd-Server/internal/session/service"
	statushandler "github.com/Gift-Esethu/Ussd-Server/internal/status/handler"
	"github.com/Gift-Esethu/Ussd-Server/internal/store/backend"
	"github.com/Gift-Esethu/Ussd-Server/internal/telemetry"
	telemetryotel "github.com/Gift-Esethu/Ussd-Server/internal/telemetry/otel"
	"github.com/Gift-Esethu/Ussd-Server/internal/telemetry/producer"
	ussdhandler "github.com/Gift-Esethu/Ussd-Server/internal/ussd/handler"
	voucherhandler "github.com/Gift-Esethu/Ussd-Server/internal/voucher/handler"
	voucherrepo "github.com/Gift-Esethu/Ussd-Server/internal/voucher/repository"
	voucherservice "github.com/Gift-Esethu/Ussd-Server/internal/voucher/service"
)

const (
	serviceName       = "ussd-wallet"
	probeInterval     = 10 * time.Second
	readHeaderTimeout = 5 * time.Second
	shutdownTimeout   = 15 * time.Second
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if closer := setupLogging(cfg.LogFile); closer != nil {
		defer closer.Close()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := backend.Open(cfg)
	if err != nil {
		log.Fatalf("store: %v", err)
	}
	defer st.Close()
	log.Printf("store: using %s backend", cfg.StoreDriver)
	if cfg.StoreDriver == config.StoreDriverMemory {
		log.Println("store: memory backend, state is lost on restart")
	}

	providers, err := telemetryotel.NewProviders(ctx, telemetryotel.Options{
		Endpoint:    cfg.OTLPEndpoint,
		ServiceName: serviceName,
		Environment: cfg.Env,
		Insecure:    cfg.OTLPInsecure,
	})
	if err != nil {
		log.Fatalf("otel: %v", err)
	}
	providers.SetGlobal()
	metrics, err := telemetryotel.NewMetrics(providers.MeterProvider)
	if err != nil {
		log.Fatalf("otel: metrics: %v", err)
	}

	emitters := telemetry.Multi{telemetryotel.NewEventEmitter(providers.LoggerProvider)}
	kafkaProducer, err := producer.NewKafkaProducer(cfg.TelemetryKafkaBrokersList(), cfg.TelemetryKafkaTopic)
	if err != nil {
		log.Fatalf("telemetry: kafka: %v", err)
	}
	if kafkaProducer != nil {
		emitters = append(emitters, kafkaProducer)
		log.Printf("telemetry: streaming events to kafka topic %s", cfg.TelemetryKafkaTopic)
	}

	policyText, err := engine.LoadPolicyFile(cfg.TransferPolicyFile)
	if err != nil {
		log.Fatalf("policy: %v", err)
	}
	policy, err := engine.NewOPAEvaluator(ctx, policyText)
	if err != nil {
		log.Fatalf("policy: %v", err)
	}

	auditLogger := audit.NewLogger(auditrepo.NewStoreRepository(st), audit.ContextIP)

	notifiers := notify.Multi{notify.LogNotifier{LogCodes: cfg.Env != "production" && cfg.SMSLocalAPIKey == ""}}
	if cfg.SMSLocalAPIKey != "" {
		notifiers = append(notifiers, sms.NewSMSLocalClient(cfg.SMSLocalAPIKey, cfg.SMSLocalBaseURL, cfg.SMSLocalSender))
	}
	var devOTPs *devotp.MemoryStore
	if cfg.DevOTPEnabled() {
		devOTPs = devotp.NewMemoryStore()
		notifiers = append(notifiers, &devotp.Notifier{Store: devOTPs, TTL: cfg.OTPLifetime()})
		log.Println("devotp: DEV MODE ONLY, codes are served at GET /dev/otp/{callerId}")
	}

	ledger := accountservice.NewLedger(accountrepo.NewStoreRepository(st), st, security.NewHasher(cfg.BcryptCost))
	registry := voucherservice.NewRegistry(voucherrepo.NewStoreRepository(st), st)
	otps := otpservice.NewService(otprepo.NewStoreRepository(st), st, notifiers, cfg.OTPLifetime())
	sessions := sessionservice.NewService(sessionrepo.NewStoreRepository(st), st, cfg.SessionLifetime())

	machine := menu.New(menu.Config{
		Accounts:          ledger,
		Vouchers:          registry,
		OTPs:              otps,
		Sessions:          sessions,
		Policy:            policy,
		MaxTransferAmount: cfg.MaxTransferAmount,
		Audit:             auditLogger,
		Events:            emitters,
		Metrics:           metrics,
	})

	limiter, closeLimiter := newRateLimiter(ctx, cfg)
	defer closeLimiter()

	tokens, err := adminTokens(cfg)
	if err != nil {
		log.Fatalf("admin auth: %v", err)
	}
	if tokens == nil {
		log.Println("admin auth: ADMIN_JWT_PUBLIC_KEY not set, /admin routes are open")
	}

	ussd := ussdhandler.NewHandler(machine, limiter)
	ussd.SetEvents(emitters)
	vouchers := voucherhandler.NewHandler(registry, auditLogger)
	vouchers.SetMaxAmount(cfg.MaxVoucherAmount)

	checker := healthhandler.NewChecker(st, policy)
	deps := server.Deps{
		USSD:     ussd,
		Vouchers: vouchers,
		Status:   statushandler.NewHandler(ledger, registry),
		Health:   checker,
		Tokens:   tokens,
		Audit:    auditLogger,
	}
	if devOTPs != nil {
		deps.DevOTP = devotphandler.NewHandler(devOTPs)
	}

	httpSrv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           server.NewRouter(deps),
		ReadHeaderTimeout: readHeaderTimeout,
	}
	go func() {
		log.Printf("HTTP server listening on %s", cfg.HTTPAddr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("http serve: %v", err)
		}
	}()

	var grpcSrv *grpc.Server
	if cfg.GRPCAddr != "" {
		lis, err := net.Listen("tcp", cfg.GRPCAddr)
		if err != nil {
			log.Fatalf("listen: %v", err)
		}
		healthSrv := healthhandler.NewGRPCServer()
		grpcSrv = server.NewGRPCServer(healthSrv)
		go checker.RunProbe(ctx, healthSrv, probeInterval)
		go func() {
			log.Printf("gRPC health server listening on %s", cfg.GRPCAddr)
			if err := grpcSrv.Serve(lis); err != nil {
				log.Fatalf("grpc serve: %v", err)
			}
		}()
	}

	go sessions.RunSweeper(ctx, cfg.SweepInterval())

	<-ctx.Done()
	log.Println("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Printf("http shutdown: %v", err)
	}
	if grpcSrv != nil {
		grpcSrv.GracefulStop()
	}
	drainCtx, drainCancel := context.WithTimeout(context.Background(), telemetry.ShutdownDrainDuration)
	if err := telemetry.Drain(drainCtx); err != nil {
		log.Printf("telemetry: drain: %v", err)
	}
	drainCancel()
	if kafkaProducer != nil {
		if err := kafkaProducer.Close(); err != nil {
			log.Printf("telemetry: kafka close: %v", err)
		}
	}
	if err := providers.Shutdown(shutdownCtx); err != nil {
		log.Printf("otel shutdown: %v", err)
	}
	log.Println("server stopped")
}

// setupLogging tees the standard logger into a rotating file when path is set.
func setupLogging(path string) io.Closer {
	if path == "" {
		return nil
	}
	rotator := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    50, // megabytes
		MaxBackups: 5,
		MaxAge:     14, // days
		Compress:   true,
	}
	log.SetOutput(io.MultiWriter(os.Stderr, rotator))
	return rotator
}

// newRateLimiter returns the per-caller limiter: Redis when REDIS_ADDR is set, in-process otherwise.
// RATE_LIMIT_PER_MINUTE=0 disables limiting.
func newRateLimiter(ctx context.Context, cfg *config.Config) (ratelimit.Limiter, func()) {
	if cfg.RateLimitPerMinute == 0 {
		log.Println("ratelimit: disabled")
		return ratelimit.Noop{}, func() {}
	}
	if cfg.RedisAddr == "" {
		return ratelimit.NewMemory(cfg.RateLimitPerMinute), func() {}
	}
	client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
	rl := ratelimit.NewRedis(client, cfg.RateLimitPerMinute, time.Minute, "")
	if err := rl.Ping(ctx); err != nil {
		log.Printf("ratelimit: redis %s unreachable, requests are allowed until it recovers: %v", cfg.RedisAddr, err)
	} else {
		log.Printf("ratelimit: using redis at %s", cfg.RedisAddr)
	}
	return rl, func() { _ = client.Close() }
}

// adminTokens returns a verifier for admin bearer tokens, or nil when no public key is configured.
func adminTokens(cfg *config.Config) (*security.TokenProvider, error) {
	if cfg.AdminJWTPublicKey == "" {
		return nil, nil
	}
	pub, err := security.ParsePublicKey(cfg.AdminJWTPublicKey)
	if err != nil {
		return nil, err
	}
	return security.NewTokenProvider(nil, pub, cfg.AdminJWTIssuer, cfg.AdminJWTAudience, 0), nil
}
