// Command sequencerd boots a single Sequencer Agent node. Configuration is
// read via viper (flags, env, then an optional file), the command line is
// built with cobra, mirroring the pack's etcd/liftbridge-derived examples'
// node-bootstrap CLIs.
package main

import (
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"google.golang.org/grpc"

	"github.com/kamma-cc/aeron/cluster"
	"github.com/kamma-cc/aeron/grpcmember"
	"github.com/kamma-cc/aeron/internal/config"
	"github.com/kamma-cc/aeron/internal/devcollab"
	"github.com/kamma-cc/aeron/internal/logging"
	"github.com/kamma-cc/aeron/sequencer"
)

// terminalSignalCh returns a channel notified on the signals that usually
// mean "stop the process".
func terminalSignalCh() <-chan os.Signal {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	return ch
}

func newRootCmd() *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix("sequencerd")
	v.AutomaticEnv()

	cmd := &cobra.Command{
		Use:   "sequencerd",
		Short: "Run a Sequencer Agent node",
		RunE: func(cmd *cobra.Command, args []string) error {
			if cfgFile, _ := cmd.Flags().GetString("config"); cfgFile != "" {
				v.SetConfigFile(cfgFile)
				if err := v.ReadInConfig(); err != nil {
					return fmt.Errorf("read config: %w", err)
				}
			}
			return runServe(v)
		},
	}

	flags := cmd.Flags()
	flags.String("config", "", "path to a config file (yaml/json/toml)")
	flags.Int32("member-id", 0, "this node's member id")
	flags.Int32("appointed-leader-id", 0, "the appointed leader's member id")
	flags.String("client-endpoint", "", "client-facing ingress endpoint")
	flags.String("member-endpoint", "", "member-status gRPC endpoint")
	flags.String("log-endpoint", "", "replicated-log endpoint")
	flags.String("log-level", "info", "log level (debug/info/warn/error)")
	_ = v.BindPFlag("member_id", flags.Lookup("member-id"))
	_ = v.BindPFlag("appointed_leader_id", flags.Lookup("appointed-leader-id"))
	_ = v.BindPFlag("client_endpoint", flags.Lookup("client-endpoint"))
	_ = v.BindPFlag("member_endpoint", flags.Lookup("member-endpoint"))
	_ = v.BindPFlag("log_endpoint", flags.Lookup("log-endpoint"))
	_ = v.BindPFlag("log_level", flags.Lookup("log-level"))

	return cmd
}

func runServe(v *viper.Viper) error {
	cfg, err := config.Load(v)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := logging.New(cfg.LogLevel)
	defer logger.Sync()

	members := []*cluster.Member{{ID: cfg.MemberID, ClientEndpoint: cfg.ClientEndpoint, MemberEndpoint: cfg.MemberEndpoint, LogEndpoint: cfg.LogEndpoint}}
	for _, p := range cfg.Peers {
		members = append(members, &cluster.Member{ID: p.ID, ClientEndpoint: p.ClientEndpoint, MemberEndpoint: p.MemberEndpoint, LogEndpoint: p.LogEndpoint})
	}

	memberPublisher := grpcmember.NewPublisher()
	defer memberPublisher.Close()

	inbox := grpcmember.NewAckInbox()
	ctl := grpcmember.NewControl(inbox, memberPublisher, nil)

	opts := sequencer.Options{
		MemberID:              cfg.MemberID,
		AppointedLeaderID:     cfg.AppointedLeaderID,
		ClusterSize:           len(members),
		SessionTimeoutMs:      cfg.SessionTimeout.Milliseconds(),
		HeartbeatIntervalMs:   cfg.HeartbeatInterval.Milliseconds(),
		HeartbeatTimeoutMs:    cfg.HeartbeatTimeout.Milliseconds(),
		MaxConcurrentSessions: cfg.MaxConcurrentSessions,
		MaxIngressFragments:   64,
		MaxLogFragments:       64,
	}

	transport := devcollab.NewTransport()
	col := sequencer.Collaborators{
		Transport:      transport,
		Archive:        devcollab.NewArchive(transport),
		RecordingLog:   devcollab.NewRecordingLog(),
		Authenticator:  devcollab.AllowAllAuthenticator{},
		ServiceControl: ctl,
		ControlFile:    &devcollab.ControlFile{},
		Clock:          devcollab.SystemClock{},
		Idle:           devcollab.BackoffIdle{MaxSleep: 2 * time.Millisecond},
		Termination:    devcollab.LogTermination{OnTerminateFunc: func(reason string) { logger.Infow("terminating", "reason", reason) }},

		ModuleStateCounter: &devcollab.Counter{},
		ClusterRoleCounter: &devcollab.Counter{},
		RecoveryCounter:    &devcollab.RecoveryStateCounter{},
		ControlToggle:      &devcollab.Counter{},

		MemberPublisher: memberPublisher,

		IngressChannel:      cfg.ClientEndpoint,
		IngressStreamID:      1,
		LogChannel:           cfg.LogEndpoint,
		LogStreamID:          2,
		MemberStatusChannel:  cfg.MemberEndpoint,

		ServiceCount: 0,
	}

	agent := sequencer.New(opts, col, members, cfg.MemberID)

	grpcServer := grpc.NewServer()
	grpcmember.RegisterMemberStatusServer(grpcServer, agent)
	grpcmember.RegisterServiceControlServer(grpcServer, inbox)

	listener, err := net.Listen("tcp", cfg.MemberEndpoint)
	if err != nil {
		return fmt.Errorf("listen on member endpoint %q: %w", cfg.MemberEndpoint, err)
	}
	go func() {
		if err := grpcServer.Serve(listener); err != nil {
			logger.Warnw("member-status server stopped", "error", err)
		}
	}()
	defer grpcServer.GracefulStop()

	if err := agent.Start(); err != nil {
		return fmt.Errorf("start agent: %w", err)
	}
	logger.Infow("sequencer agent started", "member_id", cfg.MemberID, "role", agent.Role().String())

	idle := devcollab.BackoffIdle{MaxSleep: 2 * time.Millisecond}
	stop := terminalSignalCh()
	for {
		select {
		case sig := <-stop:
			logger.Infow("terminal signal captured", "signal", sig)
			return nil
		default:
		}
		work, err := agent.DoWork()
		if err != nil {
			return fmt.Errorf("agent fault: %w", err)
		}
		if err := idle.Idle(work); err != nil {
			return err
		}
	}
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
