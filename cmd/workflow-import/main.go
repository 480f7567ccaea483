// Command workflow-import loads workflow definitions from YAML files into
// the case database and exports stored workflows back to YAML.
package main

import (
	"context"
	"fmt"
	"os"

	cli "github.com/urfave/cli/v3"
	"go.uber.org/zap"

	"github.com/garyjia/case-workflow/internal/application/service"
	"github.com/garyjia/case-workflow/internal/config"
	"github.com/garyjia/case-workflow/internal/container"
	"github.com/garyjia/case-workflow/internal/domain/entity"
	"github.com/garyjia/case-workflow/pkg/utils"
)

func main() {
	cmd := &cli.Command{
		Name:  "workflow-import",
		Usage: "Import and export case workflow definitions",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Usage:   "Path to the YAML configuration file",
				Value:   "",
				Sources: cli.EnvVars("CONFIG_PATH"),
			},
			&cli.StringFlag{
				Name:  "env-file",
				Usage: "Optional .env file loaded before the environment is read",
				Value: ".env",
			},
		},
		Commands: []*cli.Command{
			newValidateCommand(),
			newImportCommand(),
			newExportCommand(),
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "workflow-import: %v\n", err)
		os.Exit(1)
	}
}

func newValidateCommand() *cli.Command {
	return &cli.Command{
		Name:      "validate",
		Usage:     "Check a workflow file without touching the database",
		ArgsUsage: "<file.yaml>",
		Action: func(ctx context.Context, command *cli.Command) error {
			path := command.Args().First()
			if path == "" {
				return fmt.Errorf("a workflow file is required")
			}

			wf, err := readWorkflowFile(path)
			if err != nil {
				return err
			}
			fmt.Fprintf(os.Stdout, "%s: %d phases, valid\n", wf.Name, len(wf.Phases))
			return nil
		},
	}
}

func newImportCommand() *cli.Command {
	return &cli.Command{
		Name:      "import",
		Usage:     "Create or update the workflow of a client/product pair",
		ArgsUsage: "<file.yaml>",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "create-missing",
				Usage: "Create the client and product when they do not exist",
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			path := command.Args().First()
			if path == "" {
				return fmt.Errorf("a workflow file is required")
			}

			wf, err := readWorkflowFile(path)
			if err != nil {
				return err
			}

			return withContainer(ctx, command, func(c *container.Container) error {
				return importWorkflow(ctx, c, wf, command.Bool("create-missing"))
			})
		},
	}
}

func newExportCommand() *cli.Command {
	return &cli.Command{
		Name:  "export",
		Usage: "Print a stored workflow as YAML",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:     "id",
				Usage:    "Workflow id",
				Required: true,
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			return withContainer(ctx, command, func(c *container.Container) error {
				return exportWorkflow(ctx, c, int64(command.Int("id")))
			})
		},
	}
}

// withContainer starts the application container for the duration of fn
func withContainer(ctx context.Context, command *cli.Command, fn func(c *container.Container) error) error {
	cfg, err := config.Load(config.Options{
		ConfigPath: command.String("config"),
		EnvFile:    command.String("env-file"),
	})
	if err != nil {
		return err
	}

	logger, err := utils.NewLogger(utils.LoggerConfig{
		Level:      "warn",
		OutputPath: "stderr",
		Format:     "console",
		Service:    "workflow-import",
	})
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	ccfg := cfg.ToContainerConfig()
	// a one-shot command has no use for the background analyzer
	ccfg.Analyzer.Enabled = false

	c, err := container.NewContainer(ccfg, logger)
	if err != nil {
		return err
	}
	if err := c.Start(ctx); err != nil {
		return err
	}
	defer func() {
		if err := c.Close(); err != nil {
			logger.Error("Failed to close container", zap.Error(err))
		}
	}()

	return fn(c)
}

func importWorkflow(ctx context.Context, c *container.Container, wf *workflowFile, createMissing bool) error {
	services := c.Services()

	clients, err := services.Reference.ListClients(ctx)
	if err != nil {
		return err
	}
	clientID := lookupClient(clients, wf.Client)
	if clientID == 0 {
		if !createMissing {
			return fmt.Errorf("client %q not found", wf.Client)
		}
		client, err := services.Reference.CreateClient(ctx, service.CreateClientRequest{Name: wf.Client, Kind: entity.ClientKindCompany})
		if err != nil {
			return err
		}
		clientID = client.ID
	}

	products, err := services.Reference.ListProducts(ctx)
	if err != nil {
		return err
	}
	productID := lookupProduct(products, wf.Product)
	if productID == 0 {
		if !createMissing {
			return fmt.Errorf("product %q not found", wf.Product)
		}
		product, err := services.Reference.CreateProduct(ctx, wf.Product)
		if err != nil {
			return err
		}
		productID = product.ID
	}

	def := wf.toDefinition(clientID, productID)

	summaries, err := services.Workflows.ListWorkflows(ctx)
	if err != nil {
		return err
	}
	for _, s := range summaries {
		if s.ClientID == clientID && s.ProductID == productID {
			existing, err := services.Workflows.GetWorkflow(ctx, s.ID)
			if err != nil {
				return err
			}
			mergeExisting(&def, existing)
			break
		}
	}

	id, err := services.Workflows.SaveWorkflow(ctx, def)
	if err != nil {
		return err
	}

	fmt.Fprintf(os.Stdout, "workflow %q saved with id %d\n", def.Name, id)
	return nil
}

func exportWorkflow(ctx context.Context, c *container.Container, id int64) error {
	services := c.Services()

	def, err := services.Workflows.GetWorkflow(ctx, id)
	if err != nil {
		return err
	}

	var clientName, productName string
	clients, err := services.Reference.ListClients(ctx)
	if err != nil {
		return err
	}
	for _, cl := range clients {
		if cl.ID == def.ClientID {
			clientName = cl.Name
		}
	}
	products, err := services.Reference.ListProducts(ctx)
	if err != nil {
		return err
	}
	for _, p := range products {
		if p.ID == def.ProductID {
			productName = p.Name
		}
	}

	out, err := encodeWorkflow(fromDefinition(def, clientName, productName))
	if err != nil {
		return err
	}
	_, err = os.Stdout.Write(out)
	return err
}
