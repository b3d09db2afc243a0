package main

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/mkrupp/jobhunter/internal/client/login"
	"github.com/mkrupp/jobhunter/internal/client/onboarding"
	"github.com/mkrupp/jobhunter/internal/domain"
)

func newRegisterCmd(a *app) *cobra.Command {
	var reg domain.Registration

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			identity, err := a.client.Register(cmd.Context(), reg)
			if err != nil {
				return a.report(err)
			}

			a.printer.successf("registered %s as %s", identity.Email, identity.Role)

			return nil
		},
	}

	cmd.Flags().StringVar(&reg.Email, "email", "", "login email")
	cmd.Flags().StringVar(&reg.Password, "password", "", "password (8-72 characters)")
	cmd.Flags().StringVar((*string)(&reg.Role), "role", string(domain.RoleJobSeeker), "jobSeeker or employer")
	cmd.Flags().StringVar(&reg.FullName, "name", "", "full name")

	return cmd
}

func newLoginCmd(a *app) *cobra.Command {
	var creds domain.Credentials

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in and print the landing page",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if _, err := a.orch.Submit(cmd.Context(), creds); err != nil {
				return a.report(err)
			}

			return nil
		},
	}

	cmd.Flags().StringVar(&creds.Email, "email", "", "login email")
	cmd.Flags().StringVar(&creds.Password, "password", "", "password")

	return cmd
}

func newWhoamiCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the logged in user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			identity, err := a.orch.Bootstrap(cmd.Context())
			if err != nil {
				var loginErr *login.Error
				if errors.As(err, &loginErr) && loginErr.Kind == login.KindUnauthenticated {
					a.printer.errorf("not logged in")

					return err
				}

				return a.report(err)
			}

			a.printer.identity(identity)

			return nil
		},
	}
}

func newOnboardCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "onboard",
		Short: "Mark onboarding as complete",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if _, err := a.client.CompleteOnboarding(cmd.Context()); err != nil {
				return a.report(err)
			}

			a.printer.successf("onboarding complete")

			// re-resolve so the session cache carries the new onboarding state
			identity, err := a.orch.Bootstrap(cmd.Context())
			if err != nil {
				return a.report(err)
			}

			dest, err := onboarding.Route(identity)
			if err != nil {
				return a.report(err)
			}

			a.printer.Navigate(cmd.Context(), dest)

			return nil
		},
	}
}

func newLogoutCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "End the session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.orch.Logout(cmd.Context()); err != nil {
				return a.report(err)
			}

			a.printer.successf("logged out")

			return nil
		},
	}
}
