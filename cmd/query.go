package main

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/claimhub/search-service/pkg/client"
	"github.com/claimhub/search-service/pkg/search"
)

var queryFlags = []cli.Flag{
	&cli.StringFlag{
		Name:    "url",
		Aliases: []string{"u"},
		Value:   "http://localhost:9000",
		Usage:   "URL of the search service to query.",
	},
	&cli.BoolFlag{
		Name:  "json",
		Usage: "print the raw JSON output bundle",
	},
}

var queryCmd = &cli.Command{
	Name:  "query",
	Usage: "query a search service and print out the results",
	Subcommands: []*cli.Command{
		{
			Name:      "resolve",
			Usage:     "resolve one or more claim URLs",
			ArgsUsage: "<claim-url>...",
			Flags:     queryFlags,
			Action: func(cCtx *cli.Context) error {
				urls := cCtx.Args().Slice()
				if len(urls) == 0 {
					return fmt.Errorf("missing claim URLs to resolve")
				}
				c, err := newClient(cCtx.String("url"))
				if err != nil {
					return err
				}
				out, err := c.Resolve(cCtx.Context, urls)
				if err != nil {
					return fmt.Errorf("querying service: %w", err)
				}
				return printOutputs(out, cCtx.Bool("json"))
			},
		},
		{
			Name:      "search",
			Usage:     "search claims with a JSON option map",
			ArgsUsage: "<options-json>",
			Flags:     queryFlags,
			Action: func(cCtx *cli.Context) error {
				var params map[string]any
				if err := json.Unmarshal([]byte(cCtx.Args().First()), &params); err != nil {
					return fmt.Errorf("parsing search options JSON: %w", err)
				}
				c, err := newClient(cCtx.String("url"))
				if err != nil {
					return err
				}
				out, err := c.Search(cCtx.Context, params)
				if err != nil {
					return fmt.Errorf("querying service: %w", err)
				}
				return printOutputs(out, cCtx.Bool("json"))
			},
		},
	},
}

func newClient(serviceURL string) (*client.Client, error) {
	u, err := url.Parse(serviceURL)
	if err != nil {
		return nil, fmt.Errorf("parsing service URL: %w", err)
	}
	return client.New(*u), nil
}

func printOutputs(out *search.Outputs, raw bool) error {
	if raw {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}

	fmt.Println("")
	fmt.Printf("Results (%d of %d, offset %d):\n", len(out.Txos), out.Total, out.Offset)
	for _, txo := range out.Txos {
		switch {
		case txo.Claim != nil:
			fmt.Printf("  %s  %s\n", txo.Claim.ClaimID, txo.Claim.CanonicalURL)
		case txo.Error != nil:
			fmt.Printf("  [%s] %s\n", txo.Error.Code, txo.Error.Message)
		}
	}
	if len(out.Extra) > 0 {
		fmt.Printf("References (%d):\n", len(out.Extra))
		for _, doc := range out.Extra {
			fmt.Printf("  %s  %s\n", doc.ClaimID, doc.CanonicalURL)
		}
	}
	if out.Censored > 0 {
		fmt.Printf("Censored (%d):\n", out.Censored)
		for channelID, count := range out.CensoredBy {
			fmt.Printf("  %s masked %d\n", channelID, count)
		}
	}
	return nil
}
