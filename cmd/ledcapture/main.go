// Copyright 2018 Dan Jacques. All rights reserved.
// Use of this source code is governed under the MIT License
// that can be found in the LICENSE file.

// Command ledcapture prints the frames recorded in an LED capture file.
package main

import (
	"fmt"
	"os"

	"github.com/danjacques/goledstrip/app"
	"github.com/danjacques/goledstrip/capture"
	"github.com/danjacques/goledstrip/pixel"
	"github.com/danjacques/goledstrip/timing"

	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
)

func main() {
	profile := timing.ProfileFlag(timing.WS2812B)
	var order pixel.OrderFlag

	pflag.Var(&profile, "profile",
		fmt.Sprintf("LED family the capture was recorded for. Options are: %s", timing.Names()))
	pflag.Var(&order, "order",
		fmt.Sprintf("Override the profile's color order. Options are: %s", pixel.OrderFlagValues()))
	hex := pflag.Bool("hex", false, "Print decoded frame bytes instead of pixels.")
	logLevel := pflag.String("log-level", "warning", "Logging level.")
	pflag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [flags] CAPTURE\n", os.Args[0])
		pflag.PrintDefaults()
	}
	pflag.Parse()

	if pflag.NArg() != 1 {
		pflag.Usage()
		os.Exit(2)
	}

	level, err := logrus.ParseLevel(*logLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid log level: %s\n", err)
		os.Exit(2)
	}
	logger := app.NewLogger(os.Stderr, level)

	opts := capture.DumpOptions{
		Profile: profile.Profile(),
		Hex:     *hex,
		Logger:  logger,
	}
	if pflag.CommandLine.Changed("order") {
		opts.Profile.Order = order.Value()
	}

	r, err := capture.Open(pflag.Arg(0))
	if err != nil {
		logger.Errorf("Could not open capture: %s", err)
		os.Exit(1)
	}
	defer r.Close()

	hdr := r.Header()
	logger.Infof("Reading capture (version %d, %s compression, %s tick rate).",
		hdr.Version, hdr.Compression, hdr.TickRate)

	stats, err := capture.Dump(os.Stdout, r, opts)
	if err != nil {
		logger.Errorf("Failed after %d frame(s): %s", stats.Frames, err)
		r.Close()
		os.Exit(1)
	}
	logger.Infof("Read %d frame(s), %d undecodable.", stats.Frames, stats.Undecodable)
}
