package main

import (
	"context"
	"crypto/rsa"
	"crypto/x509"
	"database/sql"
	"encoding/pem"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"strainforge.org/internal/auth"
	"strainforge.org/internal/config"
	"strainforge.org/internal/consent"
	"strainforge.org/internal/firebase"
	"strainforge.org/internal/httpapi"
	"strainforge.org/internal/mail"
	"strainforge.org/internal/obs"
)

// commit is stamped at build time via -ldflags.
var commit = "none"

func main() {
	obs.Init()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	obs.InitBuildInfo(cfg.Version, commit)

	key, err := loadPrivateKey(cfg.PrivateKeyPath)
	if err != nil {
		log.Fatalf("load signing key: %v", err)
	}

	// Without a DSN the service runs on in-memory stores: state is lost on
	// restart, which is fine for development and tests only.
	var (
		db           *sql.DB
		authStore    auth.Store
		consentStore consent.Store
	)
	if cfg.DatabaseDSN != "" {
		db, err = sql.Open("pgx", cfg.DatabaseDSN)
		if err != nil {
			log.Fatalf("open db: %v", err)
		}
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(10)
		db.SetConnMaxLifetime(30 * time.Minute)
		authStore = auth.NewPGStore(db)
		consentStore = consent.NewPGStore(db)
	} else {
		log.Print("IAM_PG_DSN not set, using in-memory stores")
		authStore = auth.NewMemoryStore()
		consentStore = consent.NewMemoryStore()
	}

	tokens, err := auth.NewTokenService(authStore, key,
		auth.WithIssuer(cfg.Issuer),
		auth.WithKeyID("primary"),
		auth.WithJWTValidity(cfg.JWTValidity),
		auth.WithRefreshValidity(cfg.RefreshValidity),
	)
	if err != nil {
		log.Fatalf("token service: %v", err)
	}

	var verifier auth.IdentityVerifier
	if cfg.FirebaseAuthEnabled {
		if cfg.FirebaseProjectID == "" {
			log.Fatal("IAM_FEAT_FIREBASE_AUTH requires IAM_FIREBASE_PROJECT_ID")
		}
		verifier = firebase.NewVerifier(cfg.FirebaseProjectID)
	}
	gateway := auth.NewGateway(authStore, tokens, verifier, auth.GatewayConfig{
		LocalEnabled:     cfg.LocalAuthEnabled,
		FederatedEnabled: cfg.FirebaseAuthEnabled,
	})

	var mailer auth.Mailer
	if cfg.SMTPAddr != "" {
		mailer = &mail.SMTPSender{Addr: cfg.SMTPAddr, From: cfg.MailFrom, ResetURL: cfg.ResetURL}
	} else {
		mailer = mail.LogSender{}
	}
	reset, err := auth.NewPasswordResetService(authStore, key, mailer,
		auth.WithResetIssuer(cfg.Issuer),
		auth.WithResetValidity(cfg.ResetValidity),
	)
	if err != nil {
		log.Fatalf("reset service: %v", err)
	}

	consents := consent.NewService(consentStore)

	api := httpapi.New(httpapi.ReadyProbe{DB: db}, httpapi.Config{
		Version:            cfg.Version,
		AllowedOrigins:     cfg.AllowedOrigins,
		RateLimitPerSecond: cfg.RateLimitPerSecond,
		RateLimitBurst:     cfg.RateLimitBurst,
	}, gateway, tokens, reset, authStore, consents)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           api.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	log.Printf("Starting strainforge-iam %s on %s", cfg.Version, srv.Addr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	log.Println("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = srv.Shutdown(ctx)
	if db != nil {
		_ = db.Close()
	}
	log.Println("Stopped")
}

func loadPrivateKey(path string) (*rsa.PrivateKey, error) {
	pemBytes, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	block, _ := pem.Decode(pemBytes)
	if block == nil {
		return nil, fmt.Errorf("%s: no PEM block found", path)
	}
	switch block.Type {
	case "RSA PRIVATE KEY":
		return x509.ParsePKCS1PrivateKey(block.Bytes)
	case "PRIVATE KEY":
		parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
		if err != nil {
			return nil, err
		}
		key, ok := parsed.(*rsa.PrivateKey)
		if !ok {
			return nil, fmt.Errorf("%s: not an RSA key", path)
		}
		return key, nil
	default:
		return nil, fmt.Errorf("%s: unsupported PEM block %q", path, block.Type)
	}
}
