package main

import (
	"context"
	"database/sql"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health/grpc_health_v1"

	"tenauth.dev/internal/auth"
	"tenauth.dev/internal/httpapi"
	"tenauth.dev/internal/obs"
)

var (
	version = "0.3.1"
	commit  = "dev"
)

func main() {
	obs.Init()
	obs.InitBuildInfo(version, commit)

	secret := os.Getenv("TENAUTH_AUTH_SECRET")
	if secret == "" {
		log.Fatal("TENAUTH_AUTH_SECRET is required")
	}

	dsn := os.Getenv("TENAUTH_PG_DSN")
	if dsn == "" {
		log.Fatal("TENAUTH_PG_DSN is required")
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	issuer, err := auth.NewIssuer(secret,
		auth.WithAccessTTL(envDuration("TENAUTH_ACCESS_TTL", 15*time.Minute)),
		auth.WithRefreshTTL(envDuration("TENAUTH_REFRESH_TTL", 14*24*time.Hour)),
	)
	if err != nil {
		log.Fatalf("issuer: %v", err)
	}

	svc, err := auth.NewService(auth.NewPGStore(db), issuer,
		auth.WithBcryptCost(envInt("TENAUTH_BCRYPT_COST", auth.DefaultBcryptCost)),
	)
	if err != nil {
		log.Fatalf("auth service: %v", err)
	}

	// First-run seeding: without it an empty database has no tenant to
	// register against and no super_admin to create one.
	if email := os.Getenv("TENAUTH_BOOTSTRAP_EMAIL"); email != "" {
		created, err := svc.Bootstrap(context.Background(), auth.BootstrapInput{
			TenantID:   envString("TENAUTH_BOOTSTRAP_TENANT", "root"),
			TenantName: envString("TENAUTH_BOOTSTRAP_TENANT_NAME", "Root"),
			Email:      email,
			Password:   os.Getenv("TENAUTH_BOOTSTRAP_PASSWORD"),
		})
		if err != nil {
			log.Fatalf("bootstrap: %v", err)
		}
		if created {
			log.Printf("bootstrap: created initial super_admin %s", email)
		}
	}

	api := httpapi.New(httpapi.ReadyProbe{DB: db}, version, svc)

	httpAddr := envString("TENAUTH_HTTP_ADDR", ":8080")
	srv := &http.Server{
		Addr:              httpAddr,
		Handler:           api.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	grpcAddr := envString("TENAUTH_GRPC_ADDR", ":8081")
	grpcSrv := grpc.NewServer()
	grpc_health_v1.RegisterHealthServer(grpcSrv, httpapi.NewGRPCHealth(httpapi.ReadyProbe{DB: db}))

	log.Printf("Starting tenauth-api %s http=%s grpc=%s", version, httpAddr, grpcAddr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen http: %v", err)
		}
	}()
	go func() {
		lis, err := net.Listen("tcp", grpcAddr)
		if err != nil {
			log.Fatalf("listen grpc: %v", err)
		}
		if err := grpcSrv.Serve(lis); err != nil {
			log.Fatalf("serve grpc: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	log.Println("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = srv.Shutdown(ctx)
	grpcSrv.GracefulStop()
	_ = db.Close()
	log.Println("Stopped")
}

func envString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}

func envDuration(key string, fallback time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}
	return v
}
