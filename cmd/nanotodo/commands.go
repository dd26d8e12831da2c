package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/arthur-debert/nanotodo/internal/validation"
	"github.com/arthur-debert/nanotodo/nanotodo"
	"github.com/arthur-debert/nanotodo/types"
)

func (cli *CLI) addListCommand() {
	cli.rootCmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List todos for the owner, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli.withService(cmd, "list", func(ctx context.Context, svc *nanotodo.Service, owner string) error {
				todos, err := svc.List(ctx, owner)
				if err != nil {
					return err
				}
				return cli.formatter(cmd).Todos(todos)
			})
		},
	})
}

func (cli *CLI) addGetCommand() {
	cli.rootCmd.AddCommand(&cobra.Command{
		Use:   "get <id>",
		Short: "Show one todo",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli.withService(cmd, "get", func(ctx context.Context, svc *nanotodo.Service, owner string) error {
				todo, err := svc.Get(ctx, args[0], owner)
				if err != nil {
					return err
				}
				return cli.formatter(cmd).Todo(todo)
			})
		},
	})
}

func (cli *CLI) addAddCommand() {
	cmd := &cobra.Command{
		Use:   "add [title]",
		Short: "Create a todo",
		Long: `Create a todo from flags or from a JSON object passed with --data.
Flags given explicitly override the same fields in --data.

Examples:
  nanotodo add "Buy milk" --due 2030-01-01
  nanotodo add --data '{"title": "Buy milk", "dueDate": "2030-01-01"}'`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			payload, err := payloadFromFlags(cmd.Flags(), "add")
			if err != nil {
				return err
			}
			if len(args) == 1 {
				payload[validation.FieldTitle] = args[0]
			}
			return cli.withService(cmd, "add", func(ctx context.Context, svc *nanotodo.Service, owner string) error {
				todo, err := svc.Create(ctx, payload, owner)
				if err != nil {
					return err
				}
				return cli.formatter(cmd).Todo(todo)
			})
		},
	}
	addPayloadFlags(cmd.Flags())
	cli.rootCmd.AddCommand(cmd)
}

func (cli *CLI) addUpdateCommand() {
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Change fields of a todo",
		Long: `Change fields of a todo. Only the flags given are sent, so
"nanotodo update <id> --done" leaves title, description and due date alone.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			payload, err := payloadFromFlags(cmd.Flags(), "update")
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("title") {
				title, _ := cmd.Flags().GetString("title")
				payload[validation.FieldTitle] = title
			}
			return cli.withService(cmd, "update", func(ctx context.Context, svc *nanotodo.Service, owner string) error {
				todo, err := svc.Update(ctx, args[0], owner, payload)
				if err != nil {
					return err
				}
				return cli.formatter(cmd).Todo(todo)
			})
		},
	}
	cmd.Flags().String("title", "", "New title")
	addPayloadFlags(cmd.Flags())
	cli.rootCmd.AddCommand(cmd)
}

func (cli *CLI) addToggleCommand() {
	cli.rootCmd.AddCommand(&cobra.Command{
		Use:   "toggle <id>",
		Short: "Flip the done flag of a todo",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli.withService(cmd, "toggle", func(ctx context.Context, svc *nanotodo.Service, owner string) error {
				todo, err := svc.Toggle(ctx, args[0], owner)
				if err != nil {
					return err
				}
				return cli.formatter(cmd).Todo(todo)
			})
		},
	})
}

func (cli *CLI) addDeleteCommand() {
	cli.rootCmd.AddCommand(&cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a todo",
		Long:  "Delete a todo. Deleting an unknown id is not an error; the output says whether anything was removed.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli.withService(cmd, "delete", func(ctx context.Context, svc *nanotodo.Service, owner string) error {
				removed, err := svc.Delete(ctx, args[0], owner)
				if err != nil {
					return err
				}
				return cli.formatter(cmd).Deleted(args[0], removed)
			})
		},
	})
}

func (cli *CLI) addConfigCommand() {
	cli.rootCmd.AddCommand(&cobra.Command{
		Use:   "config",
		Short: "Show the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			settings := make(map[string]interface{}, len(configKeys)+1)
			for _, key := range configKeys {
				settings[key] = cli.viperInst.Get(key)
			}
			settings[keyDB] = cli.storeConfig().Path
			settings["config-file"] = cli.viperInst.ConfigFileUsed()
			return cli.formatter(cmd).Settings(settings)
		},
	})
}

func addPayloadFlags(flags *pflag.FlagSet) {
	flags.String("data", "", "Todo fields as a JSON object")
	flags.String("description", "", "Description")
	flags.String("due", "", "Due date (ISO-8601)")
	flags.Bool("done", false, "Mark as done")
}

// payloadFromFlags builds a payload from --data and the explicitly set field
// flags. Unset flags are left out so updates stay partial.
func payloadFromFlags(flags *pflag.FlagSet, operation string) (types.Payload, error) {
	payload := types.Payload{}

	if data, _ := flags.GetString("data"); data != "" {
		if err := json.Unmarshal([]byte(data), &payload); err != nil {
			return nil, NewInputError(operation, fmt.Sprintf("--data is not a JSON object: %v", err), err)
		}
		if payload == nil {
			payload = types.Payload{}
		}
	}
	if flags.Changed("description") {
		v, _ := flags.GetString("description")
		payload[validation.FieldDescription] = v
	}
	if flags.Changed("due") {
		v, _ := flags.GetString("due")
		payload[validation.FieldDueDate] = v
	}
	if flags.Changed("done") {
		v, _ := flags.GetBool("done")
		payload[validation.FieldDone] = v
	}
	return payload, nil
}
