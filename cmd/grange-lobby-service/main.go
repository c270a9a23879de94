// Copyright 2026 The Grange Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/grange-collective/grange/bridge"
	"github.com/grange-collective/grange/lib/clock"
	"github.com/grange-collective/grange/lib/config"
	"github.com/grange-collective/grange/lib/ref"
	"github.com/grange-collective/grange/lib/socket"
	"github.com/grange-collective/grange/lobby"
	"github.com/grange-collective/grange/messaging"
	"github.com/grange-collective/grange/steam"
)

// syncFilter restricts /sync to the event types the bridge consumes.
const syncFilter = `{"room":{"timeline":{"types":["m.room.message","m.room.member","m.room.power_levels"],"limit":50}}}`

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configPath string
		socketPath string
		verbose    bool
	)

	pflag.StringVar(&configPath, "config", "", "config file path (default: $GRANGE_CONFIG)")
	pflag.StringVar(&socketPath, "socket", "", "admin socket path (overrides config)")
	pflag.BoolVar(&verbose, "verbose", false, "enable debug logging")
	pflag.Parse()

	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	var cfg *config.Config
	var err error
	if configPath != "" {
		cfg, err = config.LoadFile(configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return err
	}
	if socketPath == "" {
		socketPath = cfg.SocketPath
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	session, err := buildSession(ctx, cfg, logger)
	if err != nil {
		return err
	}

	steamKey, err := cfg.Steam.Key()
	if err != nil {
		return err
	}
	steamClient, err := steam.NewClient(steam.ClientConfig{
		APIKey:            steamKey,
		Logger:            logger,
		RequestsPerSecond: cfg.Steam.RequestsPerSecond,
	})
	if err != nil {
		return err
	}

	signupRoom, err := ref.ParseRoomID(cfg.Rooms.Signup)
	if err != nil {
		return fmt.Errorf("rooms.signup: %w", err)
	}
	membersRoom, err := ref.ParseRoomID(cfg.Rooms.Members)
	if err != nil {
		return fmt.Errorf("rooms.members: %w", err)
	}

	matrixBridge, err := bridge.New(bridge.Config{
		Session:        session,
		Steam:          steamClient,
		Logger:         logger,
		SignupRoom:     signupRoom,
		MembersRoom:    membersRoom,
		PowerThreshold: cfg.Privilege.PowerThreshold,
	})
	if err != nil {
		return err
	}

	staff, err := parseStaff(cfg.Reservation.Staff)
	if err != nil {
		return err
	}

	clk := clock.Real()
	coordinator, err := lobby.New(lobby.Config{
		Clock:            clk,
		Logger:           logger,
		Renderer:         matrixBridge,
		Notifier:         matrixBridge,
		Directory:        matrixBridge,
		Roster:           matrixBridge,
		Membership:       matrixBridge,
		SignupChannel:    signupRoom,
		ReservationStaff: staff,
		Policy: lobby.ActivationPolicy{
			Empty:      lobby.EmptyEventPolicy(cfg.Activation.EmptyEvent),
			AfterStart: lobby.AfterStartPolicy(cfg.Activation.AfterStart),
		},
	})
	if err != nil {
		return err
	}
	matrixBridge.SetCoordinator(coordinator)

	// The service must be in its rooms before it can read their state.
	for _, room := range []ref.RoomID{signupRoom, membersRoom} {
		if err := session.JoinRoom(ctx, room); err != nil {
			logger.Warn("joining room failed (already a member?)", "room", room, "error", err)
		}
	}
	if err := matrixBridge.Seed(ctx); err != nil {
		return err
	}

	// The initial sync backlog is not replayed: commands issued while
	// the service was down are stale, and Seed already built the
	// roster. Only the since token is kept.
	sinceToken, _, err := messaging.InitialSync(ctx, session, syncFilter)
	if err != nil {
		return err
	}

	admin := &adminSocket{
		coordinator: coordinator,
		self:        session.UserID(),
		clock:       clk,
		startedAt:   clk.Now(),
	}
	socketServer := socket.NewServer(socketPath, logger)
	admin.register(socketServer)

	socketDone := make(chan error, 1)
	go func() {
		socketDone <- socketServer.Serve(ctx)
	}()

	go messaging.RunSyncLoop(ctx, session, messaging.SyncConfig{
		Filter: syncFilter,
	}, sinceToken, matrixBridge.HandleSync, clk, logger)

	logger.Info("lobby service running",
		"user_id", session.UserID(),
		"signup_room", signupRoom,
		"members_room", membersRoom,
		"socket", socketPath,
	)

	<-ctx.Done()
	logger.Info("shutting down")

	if err := <-socketDone; err != nil {
		logger.Error("socket server error", "error", err)
	}
	return nil
}

// buildSession connects to the homeserver and validates the configured
// token against the configured user ID.
func buildSession(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*messaging.Session, error) {
	client, err := messaging.NewClient(messaging.ClientConfig{
		HomeserverURL: cfg.Homeserver.URL,
		Logger:        logger,
	})
	if err != nil {
		return nil, err
	}
	if _, err := client.ServerVersions(ctx); err != nil {
		return nil, fmt.Errorf("homeserver unreachable: %w", err)
	}

	userID, err := ref.ParseUserID(cfg.Homeserver.UserID)
	if err != nil {
		return nil, fmt.Errorf("homeserver.user_id: %w", err)
	}
	token, err := cfg.Homeserver.Token()
	if err != nil {
		return nil, err
	}
	session := client.SessionFromToken(userID, token)

	actual, err := session.WhoAmI(ctx)
	if err != nil {
		return nil, fmt.Errorf("validating access token: %w", err)
	}
	if actual != userID {
		return nil, fmt.Errorf("access token belongs to %s, config says %s", actual, userID)
	}
	logger.Info("matrix session valid", "user_id", userID)
	return session, nil
}

func parseStaff(raw []string) ([]ref.UserID, error) {
	staff := make([]ref.UserID, 0, len(raw))
	for _, entry := range raw {
		user, err := ref.ParseUserID(entry)
		if err != nil {
			return nil, fmt.Errorf("reservation.staff: %w", err)
		}
		staff = append(staff, user)
	}
	return staff, nil
}
