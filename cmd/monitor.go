// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"os"
	"os/signal"
	"time"

	"github.com/ctr/ramses-rf/pkg/gatewayconfig"
	"github.com/ctr/ramses-rf/pkg/protocol"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/ctr/ramses-rf/pkg/gateway"
)

var monitorStatsInterval int

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Attach to the radio and log periodic frame statistics",
	Long: `Continuously decode RAMSES-II frames read from the adapter and log a
periodic statistics summary (frame/command counters, device and system counts).

This is the read-only counterpart of "send": it runs the gateway event loop
(codec -> FSM -> store -> entity graph) without issuing any commands of its
own. Individual frames are not printed; --stats-interval 0 turns the summary
off.`,
	RunE: runMonitor,
}

func init() {
	rootCmd.AddCommand(monitorCmd)
	monitorCmd.Flags().IntVar(&monitorStatsInterval, "stats-interval", 30, "Statistics summary interval (seconds); 0 disables")
}

func runMonitor(cmd *cobra.Command, args []string) error {
	conn, connInfo, err := OpenConnection()
	if err != nil {
		return err
	}
	defer conn.Close()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	gw, err := gateway.New(cfg, protocol.NewScannerLineSource(conn), protocol.NewWriterLineSink(conn))
	if err != nil {
		return err
	}

	log.Info().Str("transport", connInfo).Msg("monitor: attached")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt)
	go func() {
		<-sig
		log.Info().Msg("monitor: interrupted, shutting down")
		cancel()
	}()

	if monitorStatsInterval > 0 {
		go logStatsPeriodically(ctx, gw, time.Duration(monitorStatsInterval)*time.Second)
	}

	if err := gw.Run(ctx); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}

// logStatsPeriodically summarises what the gateway has observed so far,
// rather than printing every frame individually (a fully-loaded RAMSES-II
// bus carries dozens of frames per second). Grounded on error_detection.go's
// periodic statistics ticker.
func logStatsPeriodically(ctx context.Context, gw *gateway.Gateway, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			log.Info().
				Str("stats", gw.Stats().String()).
				Int("devices", len(gw.Graph().DeviceByID)).
				Int("systems", len(gw.Graph().SystemByCtlID)).
				Msg("monitor: stats")
		}
	}
}

func loadConfig() (*gatewayconfig.Config, error) {
	if configPath == "" {
		return gatewayconfig.Default(), nil
	}
	return gatewayconfig.Load(configPath)
}
