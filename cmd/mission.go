package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	coremetrics "github.com/aeroswarm/aeroswarm/core/metrics"
	"github.com/aeroswarm/aeroswarm/core/mission"
	"github.com/aeroswarm/aeroswarm/infra/logger"
	"github.com/aeroswarm/aeroswarm/infra/metrics"
	"github.com/aeroswarm/aeroswarm/infra/planner"
	"github.com/aeroswarm/aeroswarm/infra/ws"
	"github.com/aeroswarm/aeroswarm/internal/eventbus"
)

var (
	missionID string
	vehicles  string
	hubURL    string
)

var missionCmd = &cobra.Command{
	Use:   "mission",
	Short: "Run a choreographed mission against the relay",
	RunE:  runMission,
}

func init() {
	missionCmd.Flags().StringVar(&missionID, "id", "", "mission id to fetch from the planner")
	missionCmd.Flags().StringVar(&vehicles, "vehicles", "", "comma-separated target vehicle ids")
	missionCmd.Flags().StringVar(&hubURL, "hub", "ws://localhost:7010/ws/observer", "relay observer endpoint")
	_ = missionCmd.MarkFlagRequired("id")
	_ = missionCmd.MarkFlagRequired("vehicles")
	rootCmd.AddCommand(missionCmd)
}

func runMission(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logg := logger.NewWithEnv("mission", cfg.Logging.Env)

	ids := strings.Split(vehicles, ",")
	for i := range ids {
		ids[i] = strings.TrimSpace(ids[i])
	}

	pl := planner.New(cfg.Planner, logger.NewWithEnv("planner", cfg.Logging.Env))
	m, err := pl.FetchMission(ctx, missionID)
	if err != nil {
		return fmt.Errorf("fetch mission: %w", err)
	}

	client, err := ws.Dial(ctx, hubURL, logger.NewWithEnv("relay-client", cfg.Logging.Env))
	if err != nil {
		return fmt.Errorf("dial relay: %w", err)
	}
	defer func() { _ = client.Close() }()

	bus := eventbus.New()
	defer bus.Close()

	var sink coremetrics.Sink = coremetrics.NopSink{}
	if cfg.Metrics.PrometheusEnabled {
		s, err := metrics.NewPromSink()
		if err != nil {
			return fmt.Errorf("prom sink: %w", err)
		}
		sink = s
		go func() {
			if err := metrics.StartPromServer(ctx, cfg.Metrics.PrometheusPort); err != nil {
				logg.Errorf("prom server: %v", err)
			}
		}()
	}

	orch, err := mission.New(client, pl, client, cfg.Mission, nil, logg, bus, sink)
	if err != nil {
		return err
	}
	if err := orch.Run(ctx, *m, ids); err != nil {
		return fmt.Errorf("mission run: %w", err)
	}
	logg.Infof("mission %s finished in phase %s after %d commands", m.ID, orch.Phase(), orch.Dispatched())
	return nil
}
