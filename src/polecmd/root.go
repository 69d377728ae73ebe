package polecmd

import (
	"context"
	"fmt"
	"runtime/debug"

	"go.brendoncarroll.net/star"
	"go.brendoncarroll.net/stdctx/logctx"
	"go.uber.org/zap"
)

// Main is the main function for the pole CLI.
func Main() {
	logger := func() *zap.Logger {
		log, _ := zap.NewProduction()
		return log
	}()
	ctx := context.Background()
	ctx = logctx.NewContext(ctx, logger)
	star.Main(rootCmd, star.MainBackground(ctx))
}

// Root returns the root command for the pole CLI.
func Root() star.Command {
	return rootCmd
}

var rootCmd = star.NewDir(
	star.Metadata{
		Short: "pole explores the secret trees of a HashiCorp Vault KV store",
	}, map[string]star.Command{
		"ls":      lsCmd,
		"get":     getCmd,
		"version": versionCmd,
	},
)

var versionCmd = star.Command{
	Metadata: star.Metadata{Short: "prints version information"},
	F: func(c star.Context) error {
		binfo, ok := debug.ReadBuildInfo()
		if !ok {
			return fmt.Errorf("no build info")
		}
		c.Printf("GO VERSION:   %s\n", binfo.GoVersion)
		c.Printf("POLE VERSION: %s\n", binfo.Main.Version)
		for _, bs := range binfo.Settings {
			switch bs.Key {
			case "vcs.revision", "vcs.time", "vcs.modified":
				c.Printf("%s: %s\n", bs.Key, bs.Value)
			}
		}
		return nil
	},
}

var mountParam = star.Optional[string]{
	ID:       "mount",
	ShortDoc: "the KV mount point to operate on (\"secret\" is the default)",
	Parse:    star.ParseString,
}

func mountPoint(c star.Context) string {
	if m, ok := mountParam.LoadOpt(c); ok {
		return m
	}
	return "secret"
}
