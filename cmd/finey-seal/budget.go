package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"finey/internal/config"
	"finey/internal/core"
	"finey/internal/storage"
)

type budgetCmd struct {
	dbPath  string
	account string
}

func newBudgetCmd() *cobra.Command {
	b := &budgetCmd{}

	cmd := &cobra.Command{
		Use:   "budget",
		Short: "Manage the budget ceilings read by the sqlite budget source",
	}
	cmd.PersistentFlags().StringVar(&b.dbPath, "db", "", "SQLite database path (defaults to SQLITE_DB_PATH)")

	set := &cobra.Command{
		Use:   "set CATEGORY CEILING",
		Short: "Store a ceiling for a category, globally or for one account",
		Args:  cobra.ExactArgs(2),
		RunE:  b.runSet,
	}
	set.Flags().StringVarP(&b.account, "account", "a", "", "Plaintext account id; empty makes the ceiling global")

	list := &cobra.Command{
		Use:   "list [ACCOUNT...]",
		Short: "Show the ceilings that apply to the given accounts",
		RunE:  b.runList,
	}

	cmd.AddCommand(set, list)
	return cmd
}

func (b *budgetCmd) open() (*storage.SQLiteRepository, error) {
	path := b.dbPath
	if path == "" {
		path = config.Load().SQLiteDBPath
	}
	return storage.NewSQLiteRepository(path)
}

func (b *budgetCmd) runSet(cmd *cobra.Command, args []string) error {
	ceiling, err := core.ParseAmount(args[1])
	if err != nil || !ceiling.IsPositive() {
		return fmt.Errorf("ceiling %q must be a positive amount", args[1])
	}

	repo, err := b.open()
	if err != nil {
		return err
	}
	defer repo.Close()

	if err := repo.SetBudget(cmd.Context(), b.account, args[0], ceiling); err != nil {
		return err
	}
	scope := "global"
	if b.account != "" {
		scope = b.account
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s %s %s (%s)\n", okColor("set"), strings.TrimSpace(args[0]), core.FormatAmount(ceiling), dimColor(scope))
	return nil
}

func (b *budgetCmd) runList(cmd *cobra.Command, args []string) error {
	repo, err := b.open()
	if err != nil {
		return err
	}
	defer repo.Close()

	ceilings, err := repo.GetBudgetCeilings(cmd.Context(), args)
	if err != nil {
		return err
	}
	categories := make([]string, 0, len(ceilings))
	for c := range ceilings {
		categories = append(categories, c)
	}
	sort.Strings(categories)
	for _, c := range categories {
		fmt.Fprintf(cmd.OutOrStdout(), "%-20s %s\n", c, core.FormatAmount(ceilings[c]))
	}
	return nil
}
