package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/adamidy7424/GeneNFT-Z/cmd"
	"github.com/adamidy7424/GeneNFT-Z/cmd/cli"
	"github.com/adamidy7424/GeneNFT-Z/internal/buildinfo"
	"github.com/adamidy7424/GeneNFT-Z/internal/conf"
	"github.com/adamidy7424/GeneNFT-Z/internal/logger"
)

// Set at build time with -ldflags "-X main.version=..."
var (
	version   = "dev"
	commit    string
	buildDate string
)

func main() {
	os.Exit(run())
}

func run() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cli.Build = buildinfo.Info{Version: version, Commit: commit, BuildDate: buildDate}
	settings := &conf.Settings{}

	rootCmd := cmd.RootCommand(settings)
	rootCmd.Version = cli.Build.String()

	err := rootCmd.ExecuteContext(ctx)
	_ = logger.Global().Close()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}
	return 0
}
