package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mkrupp/jobhunter/internal/client/cookiestore"
	"github.com/mkrupp/jobhunter/internal/client/login"
	"github.com/mkrupp/jobhunter/internal/client/sessioncache"
	"github.com/mkrupp/jobhunter/internal/infra/config"
	"github.com/mkrupp/jobhunter/internal/infra/logging"
	"github.com/mkrupp/jobhunter/internal/svc/authsvc/authclient"
)

const (
	appName = "jobhunter"
	cliName = "jobctl"
)

// Config is read from JOBHUNTER_JOBCTL_* variables. Flags win over it.
type Config struct {
	config.EnvConfig

	Log    logging.LoggerConfig        `envPrefix:"LOG_"`
	Client authclient.HTTPClientConfig // SERVER_URL, TIMEOUT
	Login  login.Config                // ERROR_CLEAR_DELAY

	// CookieFile is where the session cookie is kept between runs
	CookieFile string `env:"COOKIE_FILE" default:""`
}

// app is what every subcommand works with once the root command has run.
type app struct {
	cfg     Config
	printer *printer
	client  *authclient.HTTPClient
	cookies *cookiestore.Store
	orch    *login.Orchestrator
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	var (
		a          = &app{printer: newPrinter(stdout, stderr)}
		serverURL  string
		cookieFile string
		noColor    bool
	)

	root := &cobra.Command{
		Use:   cliName,
		Short: "Log in to jobhunter from the terminal",
		Long: `jobctl talks to the jobhunter auth service.

Example usage:
  jobctl register --email jane@example.com --password ... --role jobSeeker
  jobctl login --email jane@example.com --password ...
  jobctl whoami
  jobctl onboard
  jobctl logout`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if noColor {
				a.printer.disableColor()
			}

			return a.init(cmd.Context(), serverURL, cookieFile)
		},
	}

	root.PersistentFlags().StringVar(&serverURL, "server", "", "auth service base URL (default from SERVER_URL)")
	root.PersistentFlags().StringVar(&cookieFile, "cookie-file", "", "cookie file (default in the user config dir)")
	root.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")

	root.AddCommand(
		newRegisterCmd(a),
		newLoginCmd(a),
		newWhoamiCmd(a),
		newOnboardCmd(a),
		newLogoutCmd(a),
	)

	root.SetOut(stdout)
	root.SetErr(stderr)

	return root
}

func (a *app) init(ctx context.Context, serverURL, cookieFile string) error {
	if err := config.LoadDotenv("." + cliName + ".env"); err != nil {
		return fmt.Errorf("load dotenv: %w", err)
	}

	configPrefix := strings.ToUpper(strings.Join([]string{appName, cliName}, "_"))
	if err := config.Parse(ctx, &a.cfg, configPrefix); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}

	logging.Configure(ctx, a.cfg.Log, strings.Join([]string{appName, cliName}, "."))

	if serverURL != "" {
		a.cfg.Client.ServerURL = serverURL
	}

	if cookieFile != "" {
		a.cfg.CookieFile = cookieFile
	}

	if a.cfg.CookieFile == "" {
		dir, err := os.UserConfigDir()
		if err != nil {
			return fmt.Errorf("user config dir: %w", err)
		}

		a.cfg.CookieFile = filepath.Join(dir, appName, "cookies.json")
	}

	cookies, err := cookiestore.Open(ctx, a.cfg.CookieFile)
	if err != nil {
		return fmt.Errorf("open cookie store: %w", err)
	}

	client, err := authclient.NewHTTPClient(a.cfg.Client, cookies)
	if err != nil {
		return fmt.Errorf("new auth client: %w", err)
	}

	a.cookies = cookies
	a.client = client
	a.orch = login.New(client, sessioncache.Default(), a.printer, a.cfg.Login)

	return nil
}

// report prints err for the user and returns it so cobra exits non-zero.
func (a *app) report(err error) error {
	var loginErr *login.Error
	if errors.As(err, &loginErr) {
		a.printer.failure(loginErr)

		return err
	}

	var respErr *authclient.ResponseError
	if errors.As(err, &respErr) {
		a.printer.errorf("%s", respErr.Error())

		return err
	}

	a.printer.errorf("%v", err)

	return err
}
