package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"ppesuite/internal/bootstrap"
	"ppesuite/internal/bootstrap/logging"
	"ppesuite/internal/errs"
	"ppesuite/internal/usecase/dropfolder"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Upload every image dropped into a folder",
	RunE: withApp(func(cmd *cobra.Command, app *bootstrap.App) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		dir, _ := cmd.Flags().GetString("dir")
		archiveDir, _ := cmd.Flags().GetString("archive-dir")
		settle, _ := cmd.Flags().GetDuration("settle")
		concurrency, _ := cmd.Flags().GetInt("concurrency")
		budget, _ := cmd.Flags().GetDuration("budget")
		pollInterval, _ := cmd.Flags().GetDuration("poll-interval")

		watcher := dropfolder.NewWatcher(app.Uploads, dropfolder.Options{
			Dir:          dir,
			ArchiveDir:   archiveDir,
			Budget:       budget,
			PollInterval: pollInterval,
			Settle:       settle,
			Concurrency:  concurrency,
		})

		var mu sync.Mutex
		out := cmd.OutOrStdout()
		report := func(r dropfolder.Report) {
			mu.Lock()
			defer mu.Unlock()
			if r.Err != nil {
				logging.Warn(ctx, "drop-folder image failed", slog.String("path", r.Path), slog.Any("err", errs.Loggable(r.Err)))
				_, _ = fmt.Fprintf(out, "%s\tfailed\t%v\n", r.Path, r.Err)
				return
			}
			result := r.Output.Result
			name := result.DisplayName
			if name == "" {
				name = "-"
			}
			_, _ = fmt.Fprintf(out, "%s\t%s\t%s\t%s\n", r.Path, r.Output.Upload.ImageKey, result.Status, name)
		}

		logging.Info(ctx, "watching drop folder", slog.String("dir", dir), slog.String("archive_dir", archiveDir))
		if err := watcher.Run(ctx, report); err != nil && !errs.IsContextDone(err) {
			return errs.Wrap(err, "watch drop folder")
		}
		return nil
	}),
}

func init() {
	rootCmd.AddCommand(watchCmd)
	watchCmd.Flags().String("dir", "", "Folder to watch")
	watchCmd.Flags().String("archive-dir", "", "Move processed images here; empty leaves them in place")
	watchCmd.Flags().Duration("settle", 0, "Quiet period before a new file is read")
	watchCmd.Flags().Int("concurrency", 0, "Images processed at once")
	watchCmd.Flags().Duration("budget", 0, "Correlation budget; 0 uses the configured default")
	watchCmd.Flags().Duration("poll-interval", 0, "Poll interval; 0 uses the configured default")
	_ = watchCmd.MarkFlagRequired("dir")
}
