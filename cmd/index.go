package main

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/claimhub/search-service/pkg/construct"
)

var indexCmd = &cli.Command{
	Name:  "index",
	Usage: "manage the claims index",
	Subcommands: []*cli.Command{
		{
			Name:  "create",
			Usage: "create the claims index with its settings and mappings",
			Flags: elasticFlags,
			Action: func(cCtx *cli.Context) error {
				svc, err := constructFromFlags(cCtx)
				if err != nil {
					return err
				}
				if err := svc.Startup(cCtx.Context); err != nil {
					return err
				}
				defer svc.Shutdown(cCtx.Context)
				fmt.Printf("created index %s\n", svc.Index().Name())
				return nil
			},
		},
		{
			Name:  "delete",
			Usage: "delete the claims index and everything in it",
			Flags: elasticFlags,
			Action: func(cCtx *cli.Context) error {
				svc, err := constructFromFlags(cCtx)
				if err != nil {
					return err
				}
				defer svc.Shutdown(cCtx.Context)
				if err := svc.Index().WaitReady(cCtx.Context); err != nil {
					return err
				}
				if err := svc.Index().DeleteIndex(cCtx.Context); err != nil {
					return err
				}
				fmt.Printf("deleted index %s\n", svc.Index().Name())
				return nil
			},
		},
	},
}

func constructFromFlags(cCtx *cli.Context) (construct.Service, error) {
	return construct.Construct(construct.ServiceConfig{
		ElasticURLs: cCtx.StringSlice("elastic-url"),
		IndexPrefix: cCtx.String("index-prefix"),
	})
}
