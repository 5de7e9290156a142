// Command flow runs the real-time signaling and chat relay server. One
// positional argument selects the bind address; no flags, no subcommands.
package main

import (
	"fmt"
	"os"

	"github.com/mxcop/flow/internal/config"
	"github.com/mxcop/flow/internal/logging"
	"github.com/mxcop/flow/internal/relay"
)

func main() {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "usage: %s <bind-address>\n", os.Args[0])
		os.Exit(1)
	}

	logging.Init(cfg.LogLevelEnv)

	srv := relay.NewServer(cfg.BindAddr)
	if err := srv.ListenAndServe(); err != nil {
		logging.Fatal("server error: %v", err)
	}
}
