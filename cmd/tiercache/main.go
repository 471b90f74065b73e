// Command tiercache inspects and exercises a tiered cache namespace from the
// shell: read and write keys, drop them, and run a synthetic workload.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		var ec cli.ExitCoder
		if errors.As(err, &ec) {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(ec.ExitCode())
		}
		logrus.WithError(err).Error("tiercache failed")
		os.Exit(1)
	}
}

// globals are the flags shared by every command.
type globals struct {
	configPath string
	namespace  string
	cacheDir   string
	maxEntries int
	policy     string
	logLevel   string

	remote     string
	sqlitePath string

	s3Bucket    string
	s3Prefix    string
	s3Region    string
	s3Endpoint  string
	s3PathStyle bool
	s3AccessKey string
	s3SecretKey string
}

func newApp() *cli.App {
	g := &globals{}
	return &cli.App{
		Name:  "tiercache",
		Usage: "three-tier (memory, disk, remote) cache for agent workloads",
		Description: `tiercache operates on one cache namespace. Values are JSON documents;
anything that does not parse as JSON is stored as a JSON string.

Settings come from a YAML file (--config), then TIERCACHE_* environment
variables, then command-line flags.`,
		Flags:  globalFlags(g),
		Before: func(*cli.Context) error { return setupLogging(g.logLevel) },
		// Exit codes are applied in main so tests can run the app in-process.
		ExitErrHandler: func(*cli.Context, error) {},
		Commands: []*cli.Command{
			getCommand(g),
			setCommand(g),
			invalidateCommand(g),
			clearCommand(g),
			statsCommand(g),
			benchCommand(g),
		},
	}
}

func globalFlags(g *globals) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "config",
			Usage:       "path to a YAML config file",
			EnvVars:     []string{"TIERCACHE_CONFIG"},
			Destination: &g.configPath,
			Aliases:     []string{"c"},
		},
		&cli.StringFlag{
			Name:        "namespace",
			Usage:       "cache namespace (overrides config)",
			Destination: &g.namespace,
			Aliases:     []string{"n"},
		},
		&cli.StringFlag{
			Name:        "dir",
			Usage:       "cache directory for the L2 files (overrides config)",
			Destination: &g.cacheDir,
		},
		&cli.IntFlag{
			Name:        "max-entries",
			Usage:       "L1 capacity (overrides config)",
			Destination: &g.maxEntries,
		},
		&cli.StringFlag{
			Name:        "policy",
			Usage:       "L1 recency policy: lru | 2q (overrides config)",
			Destination: &g.policy,
		},
		&cli.StringFlag{
			Name:        "log-level",
			Usage:       "log level: debug, info, warn, error",
			Value:       "warn",
			EnvVars:     []string{"TIERCACHE_LOG_LEVEL"},
			Destination: &g.logLevel,
		},
		&cli.StringFlag{
			Name:        "remote",
			Usage:       "L3 backend: none | sqlite | s3",
			Value:       "none",
			EnvVars:     []string{"TIERCACHE_REMOTE"},
			Destination: &g.remote,
		},
		&cli.StringFlag{
			Name:        "sqlite-path",
			Usage:       "database file for --remote=sqlite",
			EnvVars:     []string{"TIERCACHE_SQLITE_PATH"},
			Destination: &g.sqlitePath,
		},
		&cli.StringFlag{
			Name:        "s3-bucket",
			Usage:       "bucket for --remote=s3",
			EnvVars:     []string{"TIERCACHE_S3_BUCKET"},
			Destination: &g.s3Bucket,
		},
		&cli.StringFlag{
			Name:        "s3-prefix",
			Usage:       "object key prefix for --remote=s3",
			Value:       "tiercache",
			EnvVars:     []string{"TIERCACHE_S3_PREFIX"},
			Destination: &g.s3Prefix,
		},
		&cli.StringFlag{
			Name:        "s3-region",
			Usage:       "AWS region",
			EnvVars:     []string{"AWS_REGION"},
			Destination: &g.s3Region,
		},
		&cli.StringFlag{
			Name:        "s3-endpoint",
			Usage:       "custom S3 endpoint (MinIO, LocalStack, gateways)",
			EnvVars:     []string{"TIERCACHE_S3_ENDPOINT"},
			Destination: &g.s3Endpoint,
		},
		&cli.BoolFlag{
			Name:        "s3-path-style",
			Usage:       "use path-style bucket addressing",
			EnvVars:     []string{"TIERCACHE_S3_PATH_STYLE"},
			Destination: &g.s3PathStyle,
		},
		&cli.StringFlag{
			Name:        "s3-access-key",
			Usage:       "static access key (default: AWS credential chain)",
			EnvVars:     []string{"AWS_ACCESS_KEY_ID"},
			Destination: &g.s3AccessKey,
		},
		&cli.StringFlag{
			Name:        "s3-secret-key",
			Usage:       "static secret key",
			EnvVars:     []string{"AWS_SECRET_ACCESS_KEY"},
			Destination: &g.s3SecretKey,
		},
	}
}

func setupLogging(level string) error {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("invalid log level: %s (valid: debug, info, warn, error)", level)
	}
	logrus.SetLevel(lvl)
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	logrus.SetOutput(os.Stderr)
	return nil
}
