package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/redthread-tools/redthread/internal/session"
	"github.com/redthread-tools/redthread/internal/ui"
)

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "List and manage stored login sessions",
	RunE:  runSessionsList,
}

var sessionsDeleteCmd = &cobra.Command{
	Use:   "delete <name>",
	Short: "Delete a stored session",
	Args:  cobra.ExactArgs(1),
	RunE:  runSessionsDelete,
}

func init() {
	sessionsCmd.AddCommand(sessionsDeleteCmd)
	rootCmd.AddCommand(sessionsCmd)
}

func runSessionsList(cmd *cobra.Command, args []string) error {
	store, err := session.NewStore()
	if err != nil {
		return err
	}
	names, err := store.List()
	if err != nil {
		return err
	}
	if len(names) == 0 {
		fmt.Println(ui.Info("No stored sessions. Run 'redthread login' to create one."))
		return nil
	}

	for _, name := range names {
		s, err := store.Load(name)
		switch {
		case errors.Is(err, session.ErrSessionExpired):
			fmt.Printf("%s  %s\n", ui.Bold(name), ui.Error("expired"))
		case err != nil:
			fmt.Printf("%s  %s\n", ui.Bold(name), ui.Error("unreadable"))
		default:
			fmt.Printf("%s  %d cookies, acquired %s\n",
				ui.Bold(name), len(s.Cookies), s.AcquiredAt.Format("2006-01-02 15:04"))
		}
	}
	return nil
}

func runSessionsDelete(cmd *cobra.Command, args []string) error {
	store, err := session.NewStore()
	if err != nil {
		return err
	}
	if err := store.Delete(args[0]); err != nil {
		return err
	}
	fmt.Println(ui.Success(fmt.Sprintf("Session %q deleted", args[0])))
	return nil
}
