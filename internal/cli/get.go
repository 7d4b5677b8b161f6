package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/redthread-tools/redthread/internal/app"
	"github.com/redthread-tools/redthread/internal/noteurl"
	"github.com/redthread-tools/redthread/internal/ui"
	"github.com/redthread-tools/redthread/pkg/models"
)

var getFlags struct {
	maxComments   int
	maxIterations int
	headless      bool
	profile       string
	cookie        string
	out           string
	noImages      bool
	settle        time.Duration
	deadline      time.Duration
}

var getCmd = &cobra.Command{
	Use:   "get <post-url>",
	Short: "Extract all comments of a post",
	Long:  `Get opens the post in an automated browser, pages through its comment thread until one of the stop conditions fires, and writes every comment (and optionally its images) under the output directory.`,
	Example: `  # Extract everything, reusing the stored session
  redthread get "https://www.xiaohongshu.com/explore/65f0a1..."

  # First 50 comments, no images, explicit cookie
  redthread get --max-comments 50 --no-images --cookie "web_session=...; a1=..." <url>

  # Watch it work in a visible browser with a persistent profile
  redthread get --headless=false --profile ~/.redthread/profile <url>`,
	Args: cobra.ExactArgs(1),
	RunE: runGet,
}

func init() {
	getCmd.Flags().IntVar(&getFlags.maxComments, "max-comments", 0, "Stop after this many comments (0 = all)")
	getCmd.Flags().IntVar(&getFlags.maxIterations, "max-iterations", 0, "Pagination iteration cap (0 = default 50)")
	getCmd.Flags().BoolVar(&getFlags.headless, "headless", true, "Run the browser headless")
	getCmd.Flags().StringVar(&getFlags.profile, "profile", "", "Persistent browser profile directory")
	getCmd.Flags().StringVar(&getFlags.cookie, "cookie", "", "Credential cookie string (name=value; ...)")
	getCmd.Flags().StringVarP(&getFlags.out, "out", "o", "", "Output directory (default \"comments/<note-id>\")")
	getCmd.Flags().BoolVar(&getFlags.noImages, "no-images", false, "Skip downloading comment images")
	getCmd.Flags().DurationVar(&getFlags.settle, "settle", 0, "Wait after each load-more trigger (0 = default 3s)")
	getCmd.Flags().DurationVar(&getFlags.deadline, "deadline", 0, "Wall-clock bound for the whole run (0 = none)")

	rootCmd.AddCommand(getCmd)
}

func runGet(cmd *cobra.Command, args []string) error {
	cfg := loadConfig(cmd)

	noteID, err := noteurl.NoteID(args[0])
	if err != nil {
		return err
	}
	outDir := getFlags.out
	if outDir == "" {
		outDir = filepath.Join(cfg.OutputDir, noteID)
	}

	a, err := app.New()
	if err != nil {
		return err
	}

	var bar *progressbar.ProgressBar
	if !quiet && !jsonOutput {
		bar = progressbar.NewOptions(-1,
			progressbar.OptionSetDescription("Collecting comments"),
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionSpinnerType(14),
			progressbar.OptionShowCount(),
		)
		a.Progress = func(added, total int) {
			_ = bar.Add(added)
		}
	}

	opts := models.RunOptions{
		URL:            args[0],
		Cookie:         getFlags.cookie,
		MaxComments:    getFlags.maxComments,
		MaxIterations:  getFlags.maxIterations,
		Headless:       getFlags.headless,
		ProfileDir:     getFlags.profile,
		SettleDelay:    getFlags.settle,
		OutputDir:      outDir,
		DownloadImages: !getFlags.noImages,
		Proxy:          cfg.Proxy,
		UserAgent:      cfg.UserAgent,
		Timeout:        cfg.Timeout,
	}
	if opts.MaxIterations == 0 {
		opts.MaxIterations = cfg.MaxIterations
	}
	if opts.SettleDelay == 0 {
		opts.SettleDelay = cfg.SettleDelay
	}
	if getFlags.deadline > 0 {
		opts.Deadline = time.Now().Add(getFlags.deadline)
	}

	res, err := a.Run(cmd.Context(), opts)
	if bar != nil {
		_ = bar.Finish()
		fmt.Fprintln(os.Stderr)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, ui.Error("Extraction failed: "+err.Error()))
		return err
	}

	summary := fmt.Sprintf("Extracted %d comments in %d iterations (%s)",
		len(res.Comments), res.Iterations, res.Reason)
	if quiet {
		return nil
	}
	fmt.Println(ui.Success(summary))
	if opts.OutputDir != "" {
		fmt.Println(ui.Info("Saved to " + opts.OutputDir))
	}
	return nil
}
