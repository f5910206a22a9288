package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/danghamo/groupwatch/internal/api"
	"github.com/danghamo/groupwatch/internal/app/query"
	"github.com/danghamo/groupwatch/internal/cqrs"
	cqrshandlers "github.com/danghamo/groupwatch/internal/cqrs/handlers"
	"github.com/danghamo/groupwatch/internal/domain/shared"
	"github.com/danghamo/groupwatch/internal/geolocation"
	"github.com/danghamo/groupwatch/internal/notify"
	"github.com/danghamo/groupwatch/internal/tracker"
	"github.com/danghamo/groupwatch/pkg/config"
	"github.com/danghamo/groupwatch/pkg/logger"
	"github.com/danghamo/groupwatch/pkg/redisx"
	"github.com/danghamo/groupwatch/pkg/sse"
)

// watchOptions override tracker settings for one session; zero values keep
// the configured ones
type watchOptions struct {
	RefreshInterval int
	RangeRadius     int
	Paused          bool
	View            bool
	ViewPort        int
}

func watchCmd(a *app) *cobra.Command {
	var opts watchOptions

	cmd := &cobra.Command{
		Use:   "watch <group-id>",
		Short: "Share your position and watch a group",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(cmd, a, args[0], opts)
		},
	}

	cmd.Flags().IntVar(&opts.RefreshInterval, "interval", 0, "Refresh interval in seconds (10, 30, 60)")
	cmd.Flags().IntVar(&opts.RangeRadius, "radius", 0, "Tracking range in meters (100, 200, 300)")
	cmd.Flags().BoolVar(&opts.Paused, "paused", false, "Start with location sharing paused")
	cmd.Flags().BoolVar(&opts.View, "view", false, "Serve the live view")
	cmd.Flags().IntVar(&opts.ViewPort, "port", 0, "Live view port")
	return cmd
}

func runWatch(cmd *cobra.Command, a *app, groupID string, opts watchOptions) error {
	cfg := a.cfg
	log := a.log

	entry, err := a.sessions.Handle(cmd.Context(), query.NewGetSessionQuery(groupID))
	if err != nil {
		return userError(err)
	}
	if entry.Meta.Expired(time.Now()) {
		return fmt.Errorf("group %s has expired", entry.Meta.GroupID)
	}
	log = log.WithGroupID(entry.Meta.GroupID).WithMemberID(entry.Identity.MemberID)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	bus, err := newBus(a, cfg, entry.Identity.MemberID)
	if err != nil {
		return err
	}
	defer bus.Close()

	broadcaster := sse.NewSSEBroadcaster(log)
	defer broadcaster.Close()

	sseHandler := cqrshandlers.NewSSEEventHandler(broadcaster, log)
	if err := bus.AddHandlers(
		cqrs.NewEventHandler("view-updated", sseHandler.HandleViewUpdatedEvent),
		cqrs.NewEventHandler("geofence-alert", sseHandler.HandleGeofenceAlertEvent),
		cqrs.NewEventHandler("session-ended", sseHandler.HandleSessionEndedEvent),
	); err != nil {
		return fmt.Errorf("register event handlers: %w", err)
	}

	go func() {
		if err := bus.Run(ctx); err != nil {
			log.Error("Event bus stopped", zap.Error(err))
		}
	}()
	select {
	case <-bus.Running():
	case <-ctx.Done():
		return nil
	}

	source, closeSource, err := newSource(cfg, entry.Identity.MemberID, log)
	if err != nil {
		return err
	}
	defer closeSource()

	views := cqrs.NewViewPublisher(bus, entry.Meta.GroupID, log)
	go views.Run(ctx)

	nav := newNavigator(bus, entry.Meta.GroupID, log)

	// the loop outlives ctx so teardown can still run on it after a signal
	loopCtx, stopLoop := context.WithCancel(context.Background())
	defer stopLoop()
	loop := tracker.NewEventLoop(log)
	go loop.Run(loopCtx)

	session, err := tracker.NewSession(sessionConfig(cfg, entry, opts), tracker.Deps{
		Scheduler: loop,
		API:       a.api,
		Source:    source,
		Notifier: notify.Multi{
			notify.NewLogNotifier(log),
			notify.NewBusNotifier(bus, entry.Meta.GroupID),
		},
		Navigator: nav,
		Sink:      viewSink{views},
		Logger:    log,
	})
	if err != nil {
		return userError(err)
	}
	if err := loop.Do(ctx, session.Start); err != nil {
		return err
	}
	ctrl := tracker.NewController(loop, session)

	if opts.View || cfg.View.Enabled {
		port := cfg.View.Port
		if opts.ViewPort > 0 {
			port = opts.ViewPort
		}
		server := api.NewServer(api.ServerConfig{
			Host:              cfg.View.Host,
			Port:              port,
			AllowedOrigins:    cfg.View.AllowedOrigins,
			RequestsPerSecond: 5,
			Burst:             10,
		}, ctrl, broadcaster, log)
		go func() {
			if err := server.Start(ctx); err != nil {
				log.Error("View server failed", zap.Error(err))
			}
		}()
		fmt.Fprintf(cmd.OutOrStdout(), "Live view at http://%s\n", server.GetAddr())
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Watching group %s as %s. Press Ctrl+C to leave.\n",
		entry.Meta.GroupID, entry.Identity.DisplayName)

	var reason string
	select {
	case <-ctx.Done():
		reason = "interrupted"
	case reason = <-nav.ended:
	}
	log.Info("Leaving group", zap.String("reason", reason))

	teardownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := ctrl.Teardown(teardownCtx); err != nil {
		log.Warn("Teardown did not complete", zap.Error(err))
	}
	stopLoop()
	<-loop.Done()
	stop()

	if msg := exitMessage(reason); msg != "" {
		fmt.Fprintln(cmd.OutOrStdout(), msg)
	}
	return nil
}

func sessionConfig(cfg *config.Config, entry query.SessionEntry, opts watchOptions) tracker.Config {
	interval := cfg.Tracker.RefreshInterval
	if opts.RefreshInterval > 0 {
		interval = opts.RefreshInterval
	}
	radius := cfg.Tracker.RangeRadius
	if opts.RangeRadius > 0 {
		radius = opts.RangeRadius
	}

	return tracker.Config{
		GroupID:         entry.Meta.GroupID,
		GroupName:       entry.Meta.Name,
		Identity:        entry.Identity,
		RefreshInterval: time.Duration(interval) * time.Second,
		RangeRadius:     radius,
		AlertCooldown:   cfg.Tracker.AlertCooldown,
		AlertQueueSize:  cfg.Tracker.AlertQueueSize,
		ExitDelay:       cfg.Tracker.ExitDelay,
		PositionOptions: geolocation.Options{
			HighAccuracy: cfg.Tracker.HighAccuracy,
			Timeout:      cfg.Tracker.FixTimeout,
		},
		ExpiresAt:     entry.Meta.ExpiresAt,
		SharingPaused: opts.Paused,
	}
}

// newBus gives each member its own consumer group so every watcher on a
// host reads the full stream
func newBus(a *app, cfg *config.Config, memberID string) (*cqrs.Bus, error) {
	busCfg := cqrs.BusConfig{Driver: cfg.Events.Driver, ConsumerGroup: busConsumerGroup(memberID)}
	if cfg.Events.Driver == cqrs.DriverRedis {
		client, err := redisx.NewClient(cfg.Events.RedisURL, a.log)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, client.Close)
		busCfg.Redis = client.Client
	}
	return cqrs.NewBus(busCfg, a.log)
}

func busConsumerGroup(memberID string) string {
	return "groupwatch-" + memberID
}

// newSource returns a nil Source when acquisition is not configured
func newSource(cfg *config.Config, memberID string, log *logger.Logger) (geolocation.Source, func(), error) {
	switch cfg.Geolocation.Source {
	case "mqtt":
		src, err := geolocation.NewMQTT(geolocation.MQTTConfig{
			Broker:      cfg.Geolocation.MQTT.Broker,
			ClientID:    cfg.Geolocation.MQTT.ClientID + "-" + memberID,
			TopicPrefix: cfg.Geolocation.MQTT.TopicPrefix,
		}, memberID, log)
		if err != nil {
			return nil, nil, err
		}
		return src, src.Close, nil
	case "replay":
		track, err := geolocation.LoadTrack(cfg.Geolocation.Replay)
		if err != nil {
			return nil, nil, err
		}
		return geolocation.NewReplay(track), func() {}, nil
	default:
		return nil, func() {}, nil
	}
}

func exitMessage(reason string) string {
	switch reason {
	case tracker.ExitExpired:
		return "This group has expired."
	case tracker.ExitGroupGone:
		return shared.UserMessage(shared.NewDomainError(shared.ErrCodeGroupNotFound, reason))
	case tracker.ExitDeleted:
		return "The group was deleted."
	}
	return ""
}
