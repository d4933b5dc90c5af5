package main

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strconv"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/spf13/cobra"

	"github.com/stratum-ui/stratum/internal/config"
	"github.com/stratum-ui/stratum/internal/errors"
	"github.com/stratum-ui/stratum/internal/scene"
	"github.com/stratum-ui/stratum/pkg/journal"
	"github.com/stratum-ui/stratum/pkg/mount"
	"github.com/stratum-ui/stratum/pkg/server"
	"github.com/stratum-ui/stratum/pkg/shadow"
)

func serveCmd() *cobra.Command {
	var (
		configPath string
		addr       string
		scenePath  string
		interval   time.Duration
		loop       bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the mount stream server over a scene",
		Long: `Serve publishes a shadow tree over the WebSocket mount stream.

The tree is driven by a scene file (or the built-in demo scene when no
--scene is given): one step is committed and published per interval.
Connected clients receive every transaction in revision order and can
resync after a disconnect.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			if addr != "" {
				host, port, err := splitAddress(addr)
				if err != nil {
					return err
				}
				cfg.Server.Host, cfg.Server.Port = host, port
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			logger := newLogger(cfg)
			slog.SetDefault(logger)

			sc, err := loadScene(scenePath)
			if err != nil {
				return err
			}
			tree, err := sc.Build()
			if err != nil {
				return err
			}

			jnl, err := openJournal(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer jnl.Close()

			mount.EnableMetrics(mount.WithMetricsNamespace(cfg.Mount.MetricsNamespace))

			srv := server.New(tree, &server.Config{
				Address:      cfg.Address(),
				HistoryLimit: cfg.Server.HistoryLimit,
				MaxStreams:   cfg.Server.MaxStreams,
				SendBuffer:   cfg.Server.SendBuffer,
				CheckOrigin:  originCheck(cfg),
				Reparenting:  cfg.Mount.Reparenting,
				Journal:      jnl,
				Logger:       logger,
			})

			success("serving scene %q on %s", sc.Name, cfg.Address())
			info("mount stream at ws://%s/mount", cfg.Address())
			info("metrics at http://%s/metrics", cfg.Address())

			driver := newSceneDriver(srv, sc, tree, interval, loop)
			go driver.run(cmd.Context())

			return srv.Run()
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to stratum.json")
	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (overrides config)")
	cmd.Flags().StringVar(&scenePath, "scene", "", "Scene file to drive (default: built-in demo)")
	cmd.Flags().DurationVar(&interval, "interval", 2*time.Second, "Time between scene steps")
	cmd.Flags().BoolVar(&loop, "loop", true, "Restart the scene from its initial tree after the last step")

	return cmd
}

// sceneDriver commits one scene step per tick and publishes the result.
type sceneDriver struct {
	srv      *server.Server
	sc       *scene.Scene
	tree     *shadow.Tree
	initial  *shadow.Node
	interval time.Duration
	loop     bool
}

func newSceneDriver(srv *server.Server, sc *scene.Scene, tree *shadow.Tree, interval time.Duration, loop bool) *sceneDriver {
	initial, _ := tree.Root()
	return &sceneDriver{
		srv:      srv,
		sc:       sc,
		tree:     tree,
		initial:  initial,
		interval: interval,
		loop:     loop,
	}
}

func (d *sceneDriver) run(ctx context.Context) {
	logger := d.srv.Logger().With("component", "scene")
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	step := 0
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		if step == len(d.sc.Steps) {
			if !d.loop {
				logger.Info("scene finished", "steps", step)
				return
			}
			// Reset to the initial generation; it shares the root family,
			// so this is an ordinary commit and diffs like any other.
			if _, err := d.tree.Commit(func(*shadow.Node) *shadow.Node { return d.initial }); err != nil {
				logger.Error("scene reset failed", "error", err)
				return
			}
			step = 0
		} else {
			st := &d.sc.Steps[step]
			if _, err := st.Apply(d.tree); err != nil {
				logger.Error("scene step failed", "step", st.Name, "error", err)
				return
			}
			logger.Debug("scene step applied", "step", st.Name, "kind", st.Kind())
			step++
		}

		if _, err := d.srv.Publish(ctx); err != nil {
			logger.Error("publish failed", "error", err)
			return
		}
	}
}

// loadConfig loads an explicit config path, the working directory's
// project config, or plain defaults when no stratum.json exists.
func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFile(path)
	}
	cfg, err := config.LoadFromWorkingDir()
	if err != nil {
		var coded *errors.Error
		if stderrors.As(err, &coded) && coded.Code == "E101" {
			return config.New(), nil
		}
		return nil, err
	}
	return cfg, nil
}

// splitAddress parses a "host:port" listen address.
func splitAddress(addr string) (string, int, error) {
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return "", 0, fmt.Errorf("invalid address %q: %w", addr, err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return "", 0, fmt.Errorf("invalid port in %q: %w", addr, err)
	}
	return host, port, nil
}

// loadScene loads the given scene file, or the built-in demo scene.
func loadScene(path string) (*scene.Scene, error) {
	if path == "" {
		return scene.Demo(), nil
	}
	return scene.Load(path)
}

// openJournal opens the configured journal backend.
func openJournal(ctx context.Context, cfg *config.Config) (journal.Journal, error) {
	switch cfg.Journal.Backend {
	case config.JournalNone:
		return journal.Nop{}, nil

	case config.JournalBolt:
		jnl, err := journal.OpenBolt(cfg.JournalPath())
		if err != nil {
			return nil, errors.New("E121").
				WithDetail("Could not open bolt journal at " + cfg.JournalPath()).
				Wrap(err)
		}
		return jnl, nil

	case config.JournalS3:
		opts := []func(*awsconfig.LoadOptions) error{}
		if cfg.Journal.Region != "" {
			opts = append(opts, awsconfig.WithRegion(cfg.Journal.Region))
		}
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
		if err != nil {
			return nil, errors.New("E121").
				WithDetail("Could not load AWS configuration").
				Wrap(err)
		}
		client := s3.NewFromConfig(awsCfg)
		return journal.NewS3(client, cfg.Journal.Bucket, cfg.Journal.Prefix), nil

	default:
		return nil, errors.New("E123").
			WithDetail("Unknown journal backend " + cfg.Journal.Backend)
	}
}

func newLogger(cfg *config.Config) *slog.Logger {
	var level slog.Level
	switch cfg.Log.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	if cfg.Log.Format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

// originCheck returns an allow-all check when configured, or nil to use
// the server's same-origin default.
func originCheck(cfg *config.Config) func(r *http.Request) bool {
	if cfg.Server.AllowAnyOrigin {
		return func(*http.Request) bool { return true }
	}
	return nil
}
