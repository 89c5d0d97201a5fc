package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"
	"github.com/womat/debug"

	"dcf77clock/pkg/app"
	"dcf77clock/pkg/app/config"
)

const defaultConfigFile = "/opt/womat/config/" + app.MODULE + ".yaml"

func main() {
	os.Exit(run(os.Args))
}

// run parses the CLI, wires and starts the App, and blocks until a
// termination signal arrives.
func run(args []string) int {
	debug.SetDebug(os.Stderr, debug.Standard)
	cfg := config.NewConfig()
	exitCode := 1

	cliApp := &cli.App{
		Name:    app.MODULE,
		Usage:   "decode the DCF77 longwave time signal and publish it as an NTP SHM refclock",
		Version: app.VERSION,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name: "config", Aliases: []string{"c"}, Value: defaultConfigFile,
				Destination: &cfg.Flag.ConfigFile, Usage: "config file",
			},
			&cli.StringFlag{
				Name: "debug", Aliases: []string{"D"},
				Destination: &cfg.Flag.LogLevel, Usage: "log level (trace|debug|warning|standard|error|info|fatal)",
			},
			&cli.IntSliceFlag{
				Name: "gpio", Aliases: []string{"g"}, Usage: "BCM gpio pin (repeat once for a two-pin receiver)",
			},
			&cli.IntFlag{
				Name: "unit", Aliases: []string{"u"}, Usage: "NTP SHM refclock unit",
			},
			&cli.StringFlag{
				Name: "fifo", Aliases: []string{"f"}, Usage: "three-minute block export FIFO path",
			},
			&cli.IntFlag{
				Name: "tolerance", Aliases: []string{"t"}, Usage: "edge classification tolerance in milliseconds",
			},
		},
		Action: func(c *cli.Context) error {
			if err := cfg.LoadConfig(); err != nil {
				return err
			}

			if gpio := c.IntSlice("gpio"); len(gpio) > 0 {
				cfg.Receiver.Gpio = gpio
			}
			if c.IsSet("unit") {
				cfg.NTP.Unit = c.Int("unit")
			}
			if c.IsSet("fifo") {
				cfg.Export.Fifo = c.String("fifo")
			}
			if c.IsSet("tolerance") {
				cfg.Receiver.ToleranceMSInt = c.Int("tolerance")
				cfg.Receiver.Tolerance = time.Duration(c.Int("tolerance")) * time.Millisecond
			}

			debug.SetDebug(cfg.Log.File, cfg.Log.Flag)
			defer func() {
				debug.InfoLog.Printf("closing debug file %s", cfg.Log.FileString)
				_ = cfg.Log.File.Close()
			}()

			// DCF77's calendar fields only make sense interpreted as
			// Europe/Berlin local time.
			if err := os.Setenv("TZ", ":Europe/Berlin"); err != nil {
				debug.ErrorLog.Printf("can't set TZ: %v", err)
			}

			debug.InfoLog.Printf("starting app %s", app.Version())
			a, err := app.New(cfg)
			if err != nil {
				debug.FatalLog.Print(err)
				return err
			}
			defer func() {
				debug.InfoLog.Printf("closing app %s", app.Version())
				_ = a.Close()
			}()

			if err := a.Run(); err != nil {
				debug.FatalLog.Print(err)
				return err
			}

			quit := make(chan os.Signal, 1)
			signal.Notify(quit, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
			defer signal.Stop(quit)

			sig := <-quit
			debug.InfoLog.Printf("got %s signal, shutting down", sig)
			exitCode = 0
			return nil
		},
	}

	if err := cliApp.Run(args); err != nil {
		fmt.Println(err)
		return 1
	}
	return exitCode
}
