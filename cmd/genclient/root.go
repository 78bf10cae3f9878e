package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"genstudio/internal/client"
)

var (
	serverURL string
	token     string
	email     string
	password  string
	timeout   time.Duration
)

var rootCmd = &cobra.Command{
	Use:   "genclient",
	Short: "Command line client for the image generation API",
	Long: `genclient talks to the image generation API.

Credentials come from --token, or --email and --password, which fall back to
GENSTUDIO_TOKEN, GENSTUDIO_EMAIL and GENSTUDIO_PASSWORD.

Examples:
  genclient signup --email me@example.com --password secret1
  genclient generate --image cat.png --prompt "a cat in space" --style cartoon
  genclient list --limit 10
  genclient get 3f2c6a0e-4b8d-4f7a-9a53-2a9d1c5e7b10`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&serverURL, "server", "s", envOr("GENSTUDIO_SERVER", "http://localhost:5000"), "API base URL")
	rootCmd.PersistentFlags().StringVar(&token, "token", os.Getenv("GENSTUDIO_TOKEN"), "bearer token")
	rootCmd.PersistentFlags().StringVarP(&email, "email", "e", os.Getenv("GENSTUDIO_EMAIL"), "account email")
	rootCmd.PersistentFlags().StringVarP(&password, "password", "p", os.Getenv("GENSTUDIO_PASSWORD"), "account password")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 30*time.Second, "per request timeout")
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// newClient builds an API client whose requests are bounded by --timeout.
func newClient() *client.Client {
	return client.New(serverURL, &http.Client{Timeout: timeout})
}

// authedClient returns a client holding a token, logging in when only
// credentials were given.
func authedClient(ctx context.Context) (*client.Client, error) {
	c := newClient()
	if token != "" {
		c.SetToken(token)
		return c, nil
	}
	if email == "" || password == "" {
		return nil, errors.New("provide --token or --email and --password")
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if _, err := c.Login(ctx, email, password); err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}
	return c, nil
}

var signupCmd = &cobra.Command{
	Use:   "signup",
	Short: "Create an account and print its token",
	RunE: func(cmd *cobra.Command, args []string) error {
		if email == "" || password == "" {
			return errors.New("--email and --password are required")
		}
		ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
		defer cancel()
		c := newClient()
		user, err := c.Signup(ctx, email, password)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "created user %d (%s)\ntoken: %s\n", user.ID, user.Email, c.Token())
		return nil
	},
}

var meCmd = &cobra.Command{
	Use:   "me",
	Short: "Show the signed in user",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := authedClient(cmd.Context())
		if err != nil {
			return err
		}
		ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
		defer cancel()
		user, err := c.Me(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%d %s (since %s)\n", user.ID, user.Email, user.CreatedAt.Format(time.RFC3339))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(signupCmd, meCmd)
}
