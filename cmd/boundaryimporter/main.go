package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/jgivc/boundaryimporter/internal/app"
	"github.com/jgivc/boundaryimporter/internal/common"
	"github.com/spf13/cobra"
)

var cfgFileName string

var rootCmd = &cobra.Command{
	Use:           "boundaryimporter",
	Short:         "Import ENTSO-E boundary sets into the CGMES boundary registry",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one acquisition and exit",
	RunE:  runOnce,
}

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Run acquisitions periodically",
	Long: `Run an acquisition at start and then every daemon.interval.
SIGUSR1 triggers an immediate run, SIGINT and SIGTERM stop the daemon.`,
	RunE: runDaemon,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFileName, "config", "c", "config.yml", "Path to config file")
	rootCmd.AddCommand(runCmd, daemonCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// runOnce fails only on setup errors. Interrupted and partially failed runs exit cleanly.
func runOnce(cmd *cobra.Command, args []string) error {
	a := app.New(cfgFileName)
	if err := a.Start(); err != nil {
		return err
	}
	defer a.Stop()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	_, err := a.RunOnce(ctx)
	if errors.Is(err, common.ErrSetup) {
		return err
	}

	return nil
}

func runDaemon(cmd *cobra.Command, args []string) error {
	a := app.New(cfgFileName)
	if err := a.Start(); err != nil {
		return err
	}
	defer a.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM, syscall.SIGUSR1)
	defer signal.Stop(c)

	trigger := make(chan struct{}, 1)
	done := make(chan struct{})

	go func() {
		defer close(done)
		a.Daemon(ctx, trigger)
	}()

	for {
		select {
		case sig := <-c:
			switch sig {
			case syscall.SIGUSR1:
				select {
				case trigger <- struct{}{}:
				default:
				}
			default:
				fmt.Fprintln(os.Stderr, "Received termination signal. Shutting down...")
				cancel()
				<-done

				return nil
			}
		case <-done:
			return nil
		}
	}
}
