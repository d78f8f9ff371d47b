// Command chunkvaultctl is the reference client driving the Upload Manager
// from the command line: upload a file, list persisted unfinished upload
// records, or resume one after a crash.
//
// Grounded on theanswer42-bt-go's cmd/bt/main.go: a single package-level
// rootCmd with subcommands registered in init(), each RunE constructing a
// fresh application object (here, an *uploadmanager.Manager) and tearing
// it down with defer.
package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/rowantree/go-chunkvault/internal/adapter/httpadapter"
	"github.com/rowantree/go-chunkvault/internal/chunksize"
	"github.com/rowantree/go-chunkvault/internal/config"
	"github.com/rowantree/go-chunkvault/internal/pkg/logger"
	"github.com/rowantree/go-chunkvault/internal/plugins/logevents"
	"github.com/rowantree/go-chunkvault/internal/plugins/stats"
	"github.com/rowantree/go-chunkvault/internal/progressstore"
	sqlitestore "github.com/rowantree/go-chunkvault/internal/progressstore/sqlite"
	"github.com/rowantree/go-chunkvault/internal/setup"
	"github.com/rowantree/go-chunkvault/internal/uploadmanager"
)

var (
	serverURL string
	statePath string
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// session bundles the constructed Manager with the statistics plugin so
// callers can print a snapshot after a command finishes.
type session struct {
	manager *uploadmanager.Manager
	stats   *stats.Plugin
}

func (s *session) close(ctx context.Context) {
	_ = s.manager.Close(ctx)
}

// newSession builds a Manager against serverURL, backed by a SQLite
// progress store at statePath, with the reference logger and statistics
// plugins installed. cfg's chunk/client defaults come from the same
// internal/config.LoadConfig the server uses, so a single config file can
// tune both sides of the protocol. When cfg.Elasticsearch.Enabled, the
// statistics plugin mirrors every terminal event into Elasticsearch via
// internal/setup.InitElasticsearchClient; a connection failure degrades to
// local-only aggregation rather than aborting the command.
func newSession(ctx context.Context) (*session, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	var store progressstore.Store
	if statePath != "" {
		s, err := sqlitestore.New(statePath)
		if err != nil {
			return nil, fmt.Errorf("opening progress store: %w", err)
		}
		store = s
	}

	m := uploadmanager.New(uploadmanager.Options{
		Adapter:     httpadapter.New(serverURL, nil),
		Store:       store,
		Chunk: chunksize.Config{
			InitialSize: cfg.Chunk.InitialSize,
			MinSize:     cfg.Chunk.MinSize,
			MaxSize:     cfg.Chunk.MaxSize,
			TargetTime:  cfg.Chunk.TargetTime,
		},
		Concurrency: cfg.Client.Concurrency,
		RetryCount:  cfg.Client.RetryCount,
		RetryDelay:  cfg.Client.RetryDelay,
	})
	if err := m.Init(ctx); err != nil {
		return nil, fmt.Errorf("initializing manager: %w", err)
	}
	if err := m.Use(logevents.New(logevents.Config{})); err != nil {
		logger.Warn("chunkvaultctl: installing logger plugin failed")
	}

	var sink stats.ESSink
	if cfg.Elasticsearch.Enabled {
		client, err := setup.InitElasticsearchClient(&cfg.Elasticsearch)
		if err != nil {
			logger.Warn("chunkvaultctl: elasticsearch unavailable, statistics stay local-only")
		} else {
			sink = stats.NewESSink(client, cfg.Elasticsearch.Index)
		}
	}
	statsPlugin := stats.New(sink, nil)
	if err := m.Use(statsPlugin); err != nil {
		logger.Warn("chunkvaultctl: installing statistics plugin failed")
	}

	return &session{manager: m, stats: statsPlugin}, nil
}

// printStats reports the statistics plugin's running snapshot, with
// averageSpeed/successRate derived metrics included.
func printStats(s *session) {
	snap := s.stats.Snapshot()
	fmt.Printf("stats: %d task(s), %d success, %d error, %d cancelled, avg speed %.0f B/s, success rate %.0f%%\n",
		snap.TotalTasks, snap.Success, snap.Errors, snap.Cancelled, snap.AverageSpeed(), snap.SuccessRate()*100)
}

var rootCmd = &cobra.Command{
	Use:   "chunkvaultctl",
	Short: "Drive the upload engine from the command line",
}

var uploadCmd = &cobra.Command{
	Use:   "upload PATH",
	Short: "Upload a file and wait for completion",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		sess, err := newSession(ctx)
		if err != nil {
			return err
		}
		defer sess.close(ctx)
		m := sess.manager

		absPath, err := filepath.Abs(args[0])
		if err != nil {
			return fmt.Errorf("resolving path: %w", err)
		}
		src, err := openFileSource(absPath)
		if err != nil {
			return fmt.Errorf("opening file: %w", err)
		}
		defer src.Close()

		handle, err := m.CreateTask(src, uploadmanager.CreateOptions{})
		if err != nil {
			return fmt.Errorf("creating task: %w", err)
		}

		done := make(chan struct{})
		var finalErr error
		handle.On("success", func(any) { close(done) })
		handle.On("error", func(payload any) {
			finalErr = fmt.Errorf("upload failed")
			close(done)
		})
		handle.On("cancel", func(any) { close(done) })

		fmt.Printf("task %s: uploading %s (%d bytes)\n", handle.ID, src.Name(), src.Size())
		if err := handle.Start(ctx); err != nil {
			return fmt.Errorf("starting task: %w", err)
		}
		<-done

		if finalErr != nil {
			return finalErr
		}
		progress := handle.Progress()
		fmt.Printf("task %s: done (%d/%d bytes, %.1f%%)\n", handle.ID, progress.UploadedBytes, progress.TotalBytes, progress.Percentage)
		printStats(sess)
		return nil
	},
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List persisted (unfinished) upload records",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		sess, err := newSession(ctx)
		if err != nil {
			return err
		}
		defer sess.close(ctx)
		m := sess.manager

		records, err := m.GetUnfinishedTasksInfo(ctx)
		if err != nil {
			return fmt.Errorf("listing records: %w", err)
		}
		if len(records) == 0 {
			fmt.Println("No unfinished uploads.")
			return nil
		}
		for _, r := range records {
			fmt.Printf("%s  %-30s  %8d bytes  %d/?? chunks  updated %s\n",
				r.TaskID, r.File.Name, r.File.Size, len(r.UploadedChunks), r.UpdatedAt.Format(time.RFC3339))
		}
		return nil
	},
}

var resumeCmd = &cobra.Command{
	Use:   "resume TASK_ID PATH",
	Short: "Resume an interrupted upload, re-selecting its source file",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		sess, err := newSession(ctx)
		if err != nil {
			return err
		}
		defer sess.close(ctx)
		m := sess.manager

		absPath, err := filepath.Abs(args[1])
		if err != nil {
			return fmt.Errorf("resolving path: %w", err)
		}
		src, err := openFileSource(absPath)
		if err != nil {
			return fmt.Errorf("opening file: %w", err)
		}
		defer src.Close()

		handle, err := m.ResumeTask(ctx, args[0], src, uploadmanager.CreateOptions{})
		if err != nil {
			return fmt.Errorf("resuming task: %w", err)
		}

		done := make(chan struct{})
		handle.On("success", func(any) { close(done) })
		handle.On("error", func(any) { close(done) })
		handle.On("cancel", func(any) { close(done) })

		if err := handle.Start(ctx); err != nil {
			return fmt.Errorf("starting task: %w", err)
		}
		<-done

		progress := handle.Progress()
		fmt.Printf("task %s: status=%s (%d/%d bytes)\n", handle.ID, handle.Status(), progress.UploadedBytes, progress.TotalBytes)
		printStats(sess)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "http://localhost:8080", "upload server base URL")
	rootCmd.PersistentFlags().StringVar(&statePath, "state", "chunkvault.db", "path to the local progress-store database")

	rootCmd.AddCommand(uploadCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(resumeCmd)
}
