package main

import (
	"fmt"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/claimhub/search-service/pkg/construct"
	"github.com/claimhub/search-service/pkg/server"
	"github.com/claimhub/search-service/pkg/telemetry"
)

var elasticFlags = []cli.Flag{
	&cli.StringSliceFlag{
		Name:    "elastic-url",
		Aliases: []string{"es"},
		EnvVars: []string{"ELASTIC_URL"},
		Value:   cli.NewStringSlice("http://localhost:9200"),
		Usage:   "url(s) of the elasticsearch cluster",
	},
	&cli.StringFlag{
		Name:    "index-prefix",
		EnvVars: []string{"ELASTIC_INDEX_PREFIX"},
		Usage:   "prefix for the claims index name, to share a cluster between deployments",
	},
}

var serverCmd = &cli.Command{
	Name:  "server",
	Usage: "HTTP server interface to the search service",
	Subcommands: []*cli.Command{
		{
			Name:  "start",
			Usage: "start a search service HTTP server",
			Flags: append([]cli.Flag{
				&cli.IntFlag{
					Name:    "port",
					Aliases: []string{"p"},
					Value:   9000,
					Usage:   "port to bind the server to",
				},
				&cli.DurationFlag{
					Name:    "sync-timeout",
					EnvVars: []string{"SYNC_TIMEOUT"},
					Value:   600 * time.Second,
					Usage:   "maximum duration of one ingest queue sync",
				},
				&cli.IntFlag{
					Name:  "queue-capacity",
					Usage: "maximum number of pending ingest operations",
				},
			}, elasticFlags...),
			Action: func(cCtx *cli.Context) error {
				addr := fmt.Sprintf(":%d", cCtx.Int("port"))

				telemetryShutdown, err := telemetry.SetupTelemetry(cCtx.Context)
				if err != nil {
					return err
				}
				defer func() {
					if err := telemetryShutdown(cCtx.Context); err != nil {
						log.Warnf("shutting down telemetry: %s", err)
					}
				}()

				svc, err := construct.Construct(construct.ServiceConfig{
					ElasticURLs:   cCtx.StringSlice("elastic-url"),
					IndexPrefix:   cCtx.String("index-prefix"),
					SyncTimeout:   cCtx.Duration("sync-timeout"),
					QueueCapacity: cCtx.Int("queue-capacity"),
				})
				if err != nil {
					return err
				}
				if err := svc.Startup(cCtx.Context); err != nil {
					return err
				}
				defer func() {
					svc.Shutdown(cCtx.Context)
				}()
				return server.ListenAndServe(addr, svc)
			},
		},
	},
}
