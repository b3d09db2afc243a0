package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/mkrupp/jobhunter/internal/infra/config"
	"github.com/mkrupp/jobhunter/internal/infra/logging"
	"github.com/mkrupp/jobhunter/internal/infra/transport/http"
	"github.com/mkrupp/jobhunter/internal/repo/session"
	"github.com/mkrupp/jobhunter/internal/repo/user"
	"github.com/mkrupp/jobhunter/internal/svc/authsvc"
)

const (
	appName = "jobhunter"
	svcName = "authsvc"
)

type Config struct {
	config.EnvConfig

	Log     logging.LoggerConfig            `envPrefix:"LOG_"`
	Auth    authsvc.AuthConfig              `envPrefix:"AUTH_"`
	HTTP    authsvc.HTTPTransportConfig     `envPrefix:"HTTP_"`
	Cookie  authsvc.CookieConfig            `envPrefix:"COOKIE_"`
	User    user.SQLiteUserRepositoryConfig `envPrefix:"USER_"`
	Session session.RepositoryConfig        `envPrefix:"SESSION_"`
}

func main() {
	var (
		cfg Config
		ctx = context.Background()

		configPrefix = strings.ToUpper(strings.Join([]string{appName, svcName}, "_"))
		loggerName   = strings.ToLower(strings.Join([]string{appName, svcName}, "."))
	)

	if err := config.LoadDotenv(".env", "."+svcName+".env"); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	if err := config.Parse(ctx, &cfg, configPrefix); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	logging.Configure(ctx, cfg.Log, loggerName)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg Config) (err error) {
	log := logging.GetLogger("cmd.authsvc")

	defer func() {
		if err != nil {
			log.ErrorContext(ctx, "error", "err", err)
		} else {
			log.InfoContext(ctx, "shutdown")
		}
	}()

	sessionRepoFactory, err := session.RepositoryFactoryFromConfig(cfg.Session)
	if err != nil {
		return fmt.Errorf("session repo: %w", err)
	}

	authSvc, err := authsvc.NewAuthService(
		user.SQLiteUserRepositoryFactory(cfg.User),
		sessionRepoFactory,
		cfg.Auth,
	)
	if err != nil {
		return fmt.Errorf("new auth service: %w", err)
	}

	defer func() {
		err = errors.Join(err, authSvc.Close())
	}()

	httpTransport := authsvc.NewHTTPTransport(authSvc, cfg.HTTP, cfg.Cookie)

	group, ctx := errgroup.WithContext(ctx)

	group.Go(func() error {
		if err := http.ListenAndServe(ctx, httpTransport, cfg.HTTP.HTTPTransportConfig); err != nil {
			return fmt.Errorf("listen and serve: %w", err)
		}

		return nil
	})

	group.Go(func() error {
		return authSvc.PurgeSessions(ctx)
	})

	return group.Wait() //nolint:wrapcheck
}
