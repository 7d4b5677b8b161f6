package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/redthread-tools/redthread/internal/browser"
	"github.com/redthread-tools/redthread/internal/session"
	"github.com/redthread-tools/redthread/internal/ui"
)

var loginFlags struct {
	name    string
	profile string
	cookie  string
}

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Store a login session for later runs",
	Long:  `Login acquires a session and saves it securely. With --cookie the given credential string is stored directly; otherwise a visible browser opens and the session is captured once you complete the login there.`,
	Example: `  # Interactive: log in through the opened browser window
  redthread login

  # Store a cookie string copied from devtools
  redthread login --cookie "web_session=...; a1=..."`,
	Args: cobra.NoArgs,
	RunE: runLogin,
}

func init() {
	loginCmd.Flags().StringVar(&loginFlags.name, "name", "default", "Name to store the session under")
	loginCmd.Flags().StringVar(&loginFlags.profile, "profile", "", "Persistent browser profile directory")
	loginCmd.Flags().StringVar(&loginFlags.cookie, "cookie", "", "Credential cookie string to store directly")

	rootCmd.AddCommand(loginCmd)
}

func runLogin(cmd *cobra.Command, args []string) error {
	cfg := loadConfig(cmd)

	store, err := session.NewStore()
	if err != nil {
		return err
	}

	if loginFlags.cookie != "" {
		s, err := storeCookieSession(store, loginFlags.name, loginFlags.cookie)
		if err != nil {
			return err
		}
		fmt.Println(ui.Success(fmt.Sprintf("Session %q stored (%d cookies)", s.Name, len(s.Cookies))))
		return nil
	}

	acq := &session.Acquirer{
		Store: store,
		Open: func(ctx context.Context, opts browser.Options) (browser.Driver, error) {
			return browser.NewChrome(ctx, opts)
		},
		Base: browser.Options{
			UserAgent: cfg.UserAgent,
			Proxy:     cfg.Proxy,
		},
		ProfileDir:  loginFlags.profile,
		Interactive: true,
	}

	s, err := acq.Acquire(cmd.Context(), loginFlags.name)
	if err != nil {
		fmt.Fprintln(cmd.ErrOrStderr(), ui.Error("Login failed: "+err.Error()))
		return err
	}
	fmt.Println(ui.Success(fmt.Sprintf("Session %q stored", s.Name)))
	return nil
}

func storeCookieSession(store *session.Store, name, cookie string) (*session.Session, error) {
	cookies := session.ParseCookieString(cookie)
	if !session.HasCredentials(cookies) {
		return nil, fmt.Errorf("cookie string carries no credential cookies (need one of web_session, a1, webId)")
	}
	s := session.NewFromCookies(name, cookies)
	if err := store.Save(s); err != nil {
		return nil, err
	}
	return s, nil
}
