package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/crewdhq/crewd/internal/config"
	"github.com/crewdhq/crewd/internal/store"
	"github.com/crewdhq/crewd/internal/vault"
)

func runSecret(args []string) error {
	if len(args) == 0 {
		printSecretUsage()
		return nil
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cfg.Vault.Passphrase == "" {
		return fmt.Errorf("vault passphrase is required (config vault.passphrase or CREWD_VAULT_PASSPHRASE)")
	}

	db, err := store.New(cfg.Store)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer db.Close()

	keeper, err := vault.NewKeeper(cfg.Vault.Passphrase, db)
	if err != nil {
		return err
	}

	switch args[0] {
	case "list":
		return secretList(keeper)
	case "set":
		return secretSet(keeper, args[1:])
	case "get":
		return secretGet(keeper, args[1:])
	case "delete":
		return secretDelete(keeper, args[1:])
	default:
		printSecretUsage()
		return fmt.Errorf("unknown secret command: %s", args[0])
	}
}

func printSecretUsage() {
	fmt.Fprintf(os.Stderr, `Usage: crewd secret <command>

Commands:
  list                                              List secrets (metadata only)
  set <name> --value <str> [--description <text>]   Store a secret
  get <name>                                        Retrieve and decrypt a secret
  delete <name>                                     Delete a secret

Environment:
  CREWD_VAULT_PASSPHRASE    Encryption passphrase (or config vault.passphrase)
`)
}

func secretList(keeper *vault.Keeper) error {
	secrets, err := keeper.List()
	if err != nil {
		return err
	}
	if len(secrets) == 0 {
		fmt.Println("No secrets stored.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tDESCRIPTION\tUPDATED")
	for _, s := range secrets {
		fmt.Fprintf(w, "%s\t%s\t%s\n", s.Name, s.Description, s.UpdatedAt.Format("2006-01-02 15:04"))
	}
	return w.Flush()
}

func secretSet(keeper *vault.Keeper, args []string) error {
	if len(args) < 3 || args[1] != "--value" {
		return fmt.Errorf("usage: crewd secret set <name> --value <string> [--description <text>]")
	}

	name := args[0]
	value := args[2]
	description := ""
	for i := 3; i < len(args)-1; i++ {
		if args[i] == "--description" {
			description = args[i+1]
			break
		}
	}

	if err := keeper.Set(name, description, value); err != nil {
		return err
	}
	fmt.Printf("Secret %q saved\n", name)
	return nil
}

func secretGet(keeper *vault.Keeper, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: crewd secret get <name>")
	}

	value, err := keeper.Get(args[0])
	if err != nil {
		return err
	}
	fmt.Print(value)
	if len(value) > 0 && value[len(value)-1] != '\n' {
		fmt.Println()
	}
	return nil
}

func secretDelete(keeper *vault.Keeper, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: crewd secret delete <name>")
	}
	if err := keeper.Delete(args[0]); err != nil {
		return err
	}
	fmt.Printf("Secret %q deleted\n", args[0])
	return nil
}
