// Package app assembles the services from configuration. Both binaries
// build the same graph; only the HTTP server uses all of it.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/valid-names/internal/application/application"
	"github.com/valid-names/internal/application/auth"
	"github.com/valid-names/internal/application/category"
	"github.com/valid-names/internal/application/check"
	"github.com/valid-names/internal/application/domainname"
	"github.com/valid-names/internal/application/maintenance"
	"github.com/valid-names/internal/application/notification"
	"github.com/valid-names/internal/application/ratelimit"
	"github.com/valid-names/internal/application/report"
	"github.com/valid-names/internal/application/session"
	"github.com/valid-names/internal/application/tld"
	"github.com/valid-names/internal/application/token"
	"github.com/valid-names/internal/application/user"
	"github.com/valid-names/internal/config"
	"github.com/valid-names/internal/infrastructure/authstore"
	"github.com/valid-names/internal/infrastructure/dynamo"
	jwtinfra "github.com/valid-names/internal/infrastructure/jwt"
	"github.com/valid-names/internal/infrastructure/mail"
	"github.com/valid-names/internal/infrastructure/rdap"
	"github.com/valid-names/internal/infrastructure/resend"
	s3infra "github.com/valid-names/internal/infrastructure/s3"
	"github.com/valid-names/internal/infrastructure/smtp"
	transporthttp "github.com/valid-names/internal/transport/http"
)

// App is the wired service graph.
type App struct {
	Services *transporthttp.Services
	Runner   *maintenance.Runner
	stores   *authstore.Stores
}

// Close releases the auth store connections.
func (a *App) Close() {
	if a.stores != nil && a.stores.Close != nil {
		a.stores.Close()
	}
}

// New connects every backend named in cfg and builds the services.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	dynamoClient, err := dynamo.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("dynamo client: %w", err)
	}
	dynamo.Bootstrap(ctx, dynamoClient, cfg.DynamoTables)

	stores, err := authstore.Open(ctx, cfg, dynamoClient)
	if err != nil {
		return nil, fmt.Errorf("auth store: %w", err)
	}
	slog.Info("auth store opened", "driver", stores.Driver)

	dispatcher, err := mail.NewDispatcher(cfg.MailFrom, mailSender(cfg))
	if err != nil {
		stores.Close()
		return nil, fmt.Errorf("mail dispatcher: %w", err)
	}

	jwtProvider, err := jwtinfra.NewProvider(cfg)
	if err != nil {
		stores.Close()
		return nil, fmt.Errorf("jwt provider: %w", err)
	}

	s3Client, err := s3infra.NewClient(ctx, cfg)
	if err != nil {
		stores.Close()
		return nil, fmt.Errorf("s3 client: %w", err)
	}

	userRepo := dynamo.NewUserRepo(dynamoClient, cfg.DynamoTables.Users)
	sessionRepo := dynamo.NewSessionRepo(dynamoClient, cfg.DynamoTables.Sessions)
	appRepo := dynamo.NewApplicationRepo(dynamoClient, cfg.DynamoTables.Applications)
	categoryRepo := dynamo.NewCategoryRepo(dynamoClient, cfg.DynamoTables.Categories)
	domainRepo := dynamo.NewDomainRepo(dynamoClient, cfg.DynamoTables.Domains)
	checkRepo := dynamo.NewCheckRepo(dynamoClient, cfg.DynamoTables.Checks)
	tldRepo := dynamo.NewTLDRepo(dynamoClient, cfg.DynamoTables.TLDs)
	notificationRepo := dynamo.NewNotificationRepo(dynamoClient, cfg.DynamoTables.Notifications)

	limiter := ratelimit.NewService(ratelimit.ServiceDeps{
		Store:     stores.Attempts,
		Policies:  cfg.RateLimits,
		Retention: cfg.RateLimitRetention,
	})
	tokens := token.NewService(token.ServiceDeps{
		TokenRepo: stores.Tokens,
		UserRepo:  userRepo,
		TTL:       cfg.TokenTTL,
	})
	authSvc := auth.NewService(auth.ServiceDeps{
		Limiter:     limiter,
		Tokens:      tokens,
		UserRepo:    userRepo,
		SessionRepo: sessionRepo,
		Mailer:      dispatcher,
		BaseURL:     cfg.AppBaseURL,
		TokenTTL:    cfg.TokenTTL,
	})
	checkSvc := check.NewService(check.ServiceDeps{
		DomainRepo:       domainRepo,
		TLDRepo:          tldRepo,
		CheckRepo:        checkRepo,
		NotificationRepo: notificationRepo,
		UserRepo:         userRepo,
		Lookup:           rdap.NewClient(cfg.RDAPBaseURL, cfg.RDAPTimeout),
		Mailer:           dispatcher,
		Concurrency:      cfg.CheckConcurrency,
	})

	svcs := &transporthttp.Services{
		Auth: authSvc,
		Users: user.NewService(user.ServiceDeps{
			UserRepo:    userRepo,
			SessionRepo: sessionRepo,
			Verifier:    authSvc,
		}),
		Sessions: session.NewService(session.ServiceDeps{
			UserRepo:        userRepo,
			SessionRepo:     sessionRepo,
			JWTProvider:     jwtProvider,
			RefreshTokenDur: cfg.RefreshTokenExpiry,
		}),
		Applications: application.NewService(application.ServiceDeps{
			ApplicationRepo: appRepo,
			CategoryRepo:    categoryRepo,
			DomainRepo:      domainRepo,
			CheckRepo:       checkRepo,
		}),
		Categories: category.NewService(category.ServiceDeps{
			ApplicationRepo: appRepo,
			CategoryRepo:    categoryRepo,
			DomainRepo:      domainRepo,
			CheckRepo:       checkRepo,
		}),
		Domains: domainname.NewService(domainname.ServiceDeps{
			CategoryRepo: categoryRepo,
			DomainRepo:   domainRepo,
			CheckRepo:    checkRepo,
		}),
		Checks:        checkSvc,
		TLDs:          tld.NewService(tldRepo),
		Notifications: notification.NewService(notificationRepo),
		Reports: report.NewService(report.ServiceDeps{
			ApplicationRepo: appRepo,
			CheckRepo:       checkRepo,
			Objects:         s3infra.NewStore(s3Client, cfg.S3BucketName),
			URLExpiry:       cfg.ReportURLExpiry,
		}),
		Verifier: jwtProvider,
	}

	runner := maintenance.NewRunner(maintenance.RunnerDeps{
		RateLimits:   limiter,
		Tokens:       tokens,
		Checks:       checkSvc,
		RefreshAge:   cfg.CheckRefreshAge,
		RefreshBatch: cfg.CheckRefreshBatch,
	})

	return &App{Services: svcs, Runner: runner, stores: stores}, nil
}

// mailSender prefers the Resend API when a key is configured.
func mailSender(cfg *config.Config) mail.Sender {
	if cfg.ResendAPIKey != "" {
		return resend.NewSender(cfg.ResendAPIKey)
	}
	return smtp.NewSender(cfg)
}
