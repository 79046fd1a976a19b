// emcmot runs the real-time motion controller against the simulated
// machine. It creates the shared region named by the configuration,
// starts the servo task, pushes the configuration to the controller and
// serves metrics and the operator API until interrupted.
//
// Usage:
//
//	emcmot -config machine.ini [options]
//
// Options:
//
//	-config string    Machine configuration file (required)
//	-api string       JSON-RPC/websocket address (default ":7125", "" disables)
//	-metrics string   Prometheus address (default ":9100", "" disables)
//	-loglevel string  debug, info, warn or error (default "info")
//	-logfile string   Log file path, rotated at 10 MiB (default: stderr)
//
// Examples:
//
//	# Start with the default ports
//	emcmot -config machine.ini
//
//	# Controller only, no network endpoints
//	emcmot -config machine.ini -api "" -metrics ""
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"emcmot-go/pkg/config"
	"emcmot-go/pkg/kinematics"
	"emcmot-go/pkg/log"
	"emcmot-go/pkg/metrics"
	"emcmot-go/pkg/motion"
	"emcmot-go/pkg/rtapi"
	"emcmot-go/pkg/safety"
	"emcmot-go/pkg/shmem"
	"emcmot-go/pkg/sim"
	"emcmot-go/pkg/usrmot"
	"emcmot-go/pkg/wsapi"
)

func main() {
	configFile := flag.String("config", "", "Machine configuration file (required)")
	apiAddr := flag.String("api", ":7125", "JSON-RPC/websocket address")
	metricsAddr := flag.String("metrics", ":9100", "Prometheus metrics address")
	logLevel := flag.String("loglevel", "info", "Log level")
	logFile := flag.String("logfile", "", "Log file path (default: stderr)")
	flag.Parse()

	if *configFile == "" {
		fmt.Fprintf(os.Stderr, "Error: -config is required\n")
		flag.Usage()
		os.Exit(1)
	}

	root := log.New("emcmot")
	root.SetLevel(log.ParseLevel(*logLevel))
	if *logFile != "" {
		f, err := log.OpenRotatingFile(log.RotationConfig{Filename: *logFile, Compress: true})
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error opening log file: %v\n", err)
			os.Exit(1)
		}
		defer f.Close()
		root.SetWriter(f)
		root.SetColorize(false)
	}
	log.SetDefaultLogger(root)
	logger := log.GetLogger("main")

	if err := run(*configFile, *apiAddr, *metricsAddr, logger); err != nil {
		logger.WithError(err).Error("emcmot stopped")
		os.Exit(1)
	}
}

func run(configFile, apiAddr, metricsAddr string, logger *log.Logger) error {
	m, err := config.LoadMachineFile(configFile)
	if err != nil {
		return err
	}
	kins, err := kinematics.New(m.Kinematics)
	if err != nil {
		return err
	}
	logger.WithFields(log.Fields{
		"config":     configFile,
		"axes":       m.NumAxes,
		"servo":      m.ServoPeriod,
		"traj":       m.TrajCycleTime,
		"kinematics": m.Kinematics,
		"shmem":      m.ShmemPath,
	}).Info("starting motion controller")

	region, err := shmem.Create(m.ShmemPath)
	if err != nil {
		return err
	}
	defer region.Close()
	if m.LockMemory {
		if err := region.Lock(); err != nil {
			logger.WithError(err).Warn("could not lock shared region")
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// controller errors are logged off the servo thread
	mailbox := log.NewMailbox(log.GetLogger("motion"), 256)
	mailboxCtx, stopMailbox := context.WithCancel(context.Background())
	mailboxDone := make(chan struct{})
	go func() {
		mailbox.Run(mailboxCtx)
		close(mailboxDone)
	}()
	defer func() {
		stopMailbox()
		<-mailboxDone
	}()

	opts := m.ControllerOptions()
	opts.Clock = rtapi.Monotonic
	opts.Mailbox = mailbox
	ctrl, err := motion.NewController(opts, region.Shmem(), sim.New(m.NumAxes, m.ServoPeriod), kins)
	if err != nil {
		return err
	}

	task, err := rtapi.New(rtapi.Options{
		Name:       "servo",
		Period:     time.Duration(m.ServoPeriod * float64(time.Second)),
		LockMemory: m.LockMemory,
	}, ctrl.RunCycle)
	if err != nil {
		return err
	}
	task.Run()
	defer func() {
		task.End()
		task.Wait()
		logger.WithFields(log.Fields{"cycles": task.Cycles(), "skipped": task.Skipped()}).Info("servo task stopped")
	}()

	client, err := usrmot.Connect(m.ShmemPath, usrmot.Options{Timeout: m.CommTimeout, Wait: m.CommWait})
	if err != nil {
		return err
	}
	defer client.Close()
	if err := client.Configure(m); err != nil {
		return err
	}
	logger.WithField("instance", client.InstanceID()).Info("controller configured")

	guard := safety.New(client, safety.Config{
		HeartbeatTimeout: max(time.Second, 100*task.Period()),
		Poll:             100 * time.Millisecond,
	})
	guard.AddStopper(client)
	guard.Subscribe(func(ev safety.Event) {
		logger.WithFields(log.Fields{"cause": string(ev.Trip.Cause), "state": ev.To.String()}).Warn(ev.Trip.Message)
	})
	go guard.Run(ctx)

	if metricsAddr != "" {
		mm := metrics.NewMotionMetrics()
		go mm.Run(ctx, client, time.Second)
		cfg := metrics.DefaultServerConfig()
		cfg.Address = metricsAddr
		srv := metrics.NewServer(mm, cfg)
		go func() {
			if err := srv.Start(); err != nil {
				logger.WithError(err).Error("metrics server failed")
			}
		}()
		defer func() {
			shutCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutCtx)
		}()
	}

	if apiAddr != "" {
		api := wsapi.New(wsapi.Config{Addr: apiAddr, Controller: client, Safety: guard})
		go func() {
			if err := api.Start(ctx); err != nil {
				logger.WithError(err).Error("api server failed")
			}
		}()
		defer api.Stop()
	}

	logger.Info("ready, press Ctrl+C to stop")
	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case <-task.Done():
		if err := task.Err(); err != nil {
			return err
		}
	}

	if err := client.Disable(); err != nil {
		logger.WithError(err).Warn("disable on shutdown failed")
	}
	return nil
}
