// lzctl provisions hub-and-spoke landing zones.
//
// Usage:
//
//	lzctl validate -f env.yaml
//	lzctl hub apply -f env.yaml
//	lzctl spoke apply database -f env.yaml
//	lzctl apply -f env.yaml
//	lzctl outputs show dev
//	lzctl outputs serve --addr :8080
//	lzctl destroy spoke database --environment dev
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"

	"github.com/edvin/landingzone/internal/backend/azure"
	"github.com/edvin/landingzone/internal/config"
	"github.com/edvin/landingzone/internal/logging"
	"github.com/edvin/landingzone/internal/model"
	"github.com/edvin/landingzone/internal/outputs"
	"github.com/edvin/landingzone/internal/platform"
	"github.com/edvin/landingzone/internal/provision"
	"github.com/edvin/landingzone/internal/state"
)

var version = "dev"

func main() {
	app := &cli.App{
		Name:    "lzctl",
		Usage:   "Provision hub-and-spoke landing zones",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Value:   "info",
				Usage:   "Log level (debug, info, warn, error)",
				EnvVars: []string{"LZ_LOG_LEVEL"},
			},
			&cli.StringFlag{
				Name:    "log-format",
				Value:   "json",
				Usage:   "Log format (json, console)",
				EnvVars: []string{"LZ_LOG_FORMAT"},
			},
			&cli.StringFlag{
				Name:    "subscription-id",
				Usage:   "Azure subscription ID",
				EnvVars: []string{"AZURE_SUBSCRIPTION_ID"},
			},
			&cli.StringFlag{
				Name:    "tenant-id",
				Usage:   "Azure tenant ID",
				EnvVars: []string{"AZURE_TENANT_ID"},
			},
		},
		Commands: []*cli.Command{
			validateCommand(),
			hubCommand(),
			spokeCommand(),
			applyCommand(),
			outputsCommand(),
			destroyCommand(),
		},
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := app.RunContext(ctx, os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func manifestFlag() cli.Flag {
	return &cli.StringFlag{
		Name:     "manifest",
		Aliases:  []string{"f"},
		Usage:    "Path to the environment manifest",
		Required: true,
		EnvVars:  []string{"LZ_MANIFEST"},
	}
}

func environmentFlag() cli.Flag {
	return &cli.StringFlag{
		Name:     "environment",
		Aliases:  []string{"e"},
		Usage:    "Environment name",
		Required: true,
		EnvVars:  []string{"LZ_ENVIRONMENT"},
	}
}

func newLogger(c *cli.Context, environment string) zerolog.Logger {
	return logging.New(logging.Options{
		Level:       c.String("log-level"),
		Format:      c.String("log-format"),
		Environment: environment,
		RunID:       platform.NewRunID(),
	})
}

func openStore(ctx context.Context) (state.Store, error) {
	return state.Open(ctx, config.StateFromEnv())
}

func newProvisioner(c *cli.Context, environment string) (*provision.Provisioner, state.Store, error) {
	logger := newLogger(c, environment)
	b, err := azure.New(azure.Options{
		SubscriptionID: c.String("subscription-id"),
		TenantID:       c.String("tenant-id"),
		Logger:         logger,
	})
	if err != nil {
		return nil, nil, err
	}
	store, err := openStore(c.Context)
	if err != nil {
		return nil, nil, err
	}
	return provision.New(b, store, logger), store, nil
}

func validateCommand() *cli.Command {
	return &cli.Command{
		Name:  "validate",
		Usage: "Validate a manifest without touching any resources",
		Flags: []cli.Flag{manifestFlag()},
		Action: func(c *cli.Context) error {
			m, err := config.Load(c.String("manifest"))
			if err != nil {
				return err
			}
			fmt.Printf("manifest ok: environment %s, region %s\n", m.Environment, m.Region)
			return nil
		},
	}
}

func hubCommand() *cli.Command {
	return &cli.Command{
		Name:  "hub",
		Usage: "Manage the hub",
		Subcommands: []*cli.Command{
			{
				Name:  "apply",
				Usage: "Converge the hub onto the manifest",
				Flags: []cli.Flag{manifestFlag()},
				Action: func(c *cli.Context) error {
					m, err := config.Load(c.String("manifest"))
					if err != nil {
						return err
					}
					p, store, err := newProvisioner(c, m.Environment)
					if err != nil {
						return err
					}
					defer store.Close()
					out, err := p.ApplyHub(c.Context, m)
					if err != nil {
						return err
					}
					return printJSON(out)
				},
			},
		},
	}
}

func spokeCommand() *cli.Command {
	return &cli.Command{
		Name:  "spoke",
		Usage: "Manage individual spokes",
		Subcommands: []*cli.Command{
			{
				Name:      "apply",
				Usage:     "Converge one spoke onto the manifest",
				ArgsUsage: "<keyvault|database|storage>",
				Flags:     []cli.Flag{manifestFlag()},
				Action: func(c *cli.Context) error {
					if c.NArg() != 1 {
						return fmt.Errorf("expected exactly one spoke domain argument")
					}
					m, err := config.Load(c.String("manifest"))
					if err != nil {
						return err
					}
					p, store, err := newProvisioner(c, m.Environment)
					if err != nil {
						return err
					}
					defer store.Close()
					out, err := p.ApplySpoke(c.Context, m, c.Args().First())
					if err != nil {
						return err
					}
					return printJSON(out)
				},
			},
		},
	}
}

func applyCommand() *cli.Command {
	return &cli.Command{
		Name:  "apply",
		Usage: "Converge the whole environment: hub, then spokes",
		Flags: []cli.Flag{manifestFlag()},
		Action: func(c *cli.Context) error {
			m, err := config.Load(c.String("manifest"))
			if err != nil {
				return err
			}
			p, store, err := newProvisioner(c, m.Environment)
			if err != nil {
				return err
			}
			defer store.Close()
			out, err := p.ApplyEnvironment(c.Context, m)
			if err != nil {
				return err
			}
			return printJSON(out)
		},
	}
}

func outputsCommand() *cli.Command {
	return &cli.Command{
		Name:  "outputs",
		Usage: "Read recorded output bundles",
		Subcommands: []*cli.Command{
			{
				Name:      "show",
				Usage:     "Print the hub and spoke outputs of an environment",
				ArgsUsage: "<environment>",
				Action: func(c *cli.Context) error {
					if c.NArg() != 1 {
						return fmt.Errorf("expected exactly one environment argument")
					}
					env := c.Args().First()
					store, err := openStore(c.Context)
					if err != nil {
						return err
					}
					defer store.Close()

					hub, err := store.LoadHubOutputs(c.Context, env)
					if err != nil {
						return err
					}
					domains, err := store.ListSpokeDomains(c.Context, env)
					if err != nil {
						return err
					}
					spokes := map[string]*model.SpokeOutputs{}
					for _, domain := range domains {
						spoke, err := store.LoadSpokeOutputs(c.Context, env, domain)
						if err != nil {
							return err
						}
						spokes[domain] = spoke
					}
					return printJSON(map[string]any{"hub": hub, "spokes": spokes})
				},
			},
			{
				Name:  "serve",
				Usage: "Serve output bundles over HTTP",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "addr",
						Value:   ":8080",
						Usage:   "Listen address",
						EnvVars: []string{"LZ_OUTPUTS_ADDR"},
					},
				},
				Action: func(c *cli.Context) error {
					store, err := openStore(c.Context)
					if err != nil {
						return err
					}
					defer store.Close()
					srv := outputs.NewServer(store, newLogger(c, ""))
					return srv.ListenAndServe(c.Context, c.String("addr"))
				},
			},
		},
	}
}

func destroyCommand() *cli.Command {
	return &cli.Command{
		Name:  "destroy",
		Usage: "Tear down provisioned resources",
		Subcommands: []*cli.Command{
			{
				Name:      "spoke",
				Usage:     "Tear down one spoke",
				ArgsUsage: "<keyvault|database|storage>",
				Flags:     []cli.Flag{environmentFlag()},
				Action: func(c *cli.Context) error {
					if c.NArg() != 1 {
						return fmt.Errorf("expected exactly one spoke domain argument")
					}
					env := c.String("environment")
					p, store, err := newProvisioner(c, env)
					if err != nil {
						return err
					}
					defer store.Close()
					return p.DestroySpoke(c.Context, env, c.Args().First())
				},
			},
			{
				Name:  "hub",
				Usage: "Tear down the hub (refused while spokes exist)",
				Flags: []cli.Flag{environmentFlag()},
				Action: func(c *cli.Context) error {
					env := c.String("environment")
					p, store, err := newProvisioner(c, env)
					if err != nil {
						return err
					}
					defer store.Close()
					return p.DestroyHub(c.Context, env)
				},
			},
			{
				Name:  "environment",
				Usage: "Tear down every spoke, then the hub",
				Flags: []cli.Flag{environmentFlag()},
				Action: func(c *cli.Context) error {
					env := c.String("environment")
					p, store, err := newProvisioner(c, env)
					if err != nil {
						return err
					}
					defer store.Close()
					return p.DestroyEnvironment(c.Context, env)
				},
			},
		},
	}
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
