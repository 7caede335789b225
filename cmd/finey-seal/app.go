package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"finey/internal/cli"
	"finey/internal/config"
	"finey/internal/crypto"
)

var (
	okColor   = color.New(color.FgGreen, color.Bold).SprintFunc()
	warnColor = color.New(color.FgYellow, color.Bold).SprintFunc()
	dimColor  = color.New(color.FgCyan).SprintFunc()
)

type sealApp struct {
	secret   string
	material string
}

func newRootCmd() *cobra.Command {
	app := &sealApp{}

	root := &cobra.Command{
		Use:           "finey-seal",
		Short:         "Seal field values and manage budget ceilings for the finey API",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&app.secret, "secret", "s", crypto.SecretFinance, "Secret reference: bank-accounts, finance or goals")
	root.PersistentFlags().StringVarP(&app.material, "material", "m", "", "Use this literal secret material instead of the configured provider")

	root.AddCommand(
		&cobra.Command{
			Use:   "encrypt [VALUE...]",
			Short: "Seal values (read from stdin when none are given)",
			RunE:  app.runEncrypt,
		},
		&cobra.Command{
			Use:   "decrypt [TOKEN...]",
			Short: "Open sealed tokens",
			RunE:  app.runDecrypt,
		},
		&cobra.Command{
			Use:   "check [VALUE...]",
			Short: "Report which values are sealed under the secret",
			RunE:  app.runCheck,
		},
		newBudgetCmd(),
	)
	return root
}

// gate builds a Gate over either the literal material or the provider
// configured by SECRET_PROVIDER.
func (a *sealApp) gate(ctx context.Context) (*crypto.Gate, error) {
	if a.material != "" {
		return crypto.NewGate(crypto.StaticProvider{a.secret: []byte(a.material)}, 0), nil
	}
	cli.LoadEnvFile()
	cfg := config.Load()
	provider, err := cli.SecretProvider(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return crypto.NewGate(provider, cfg.SecretCacheTTL), nil
}

func (a *sealApp) runEncrypt(cmd *cobra.Command, args []string) error {
	return a.each(cmd, args, func(ctx context.Context, g *crypto.Gate, v string) error {
		tok, err := g.Encrypt(ctx, a.secret, v)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), tok)
		return nil
	})
}

func (a *sealApp) runDecrypt(cmd *cobra.Command, args []string) error {
	return a.each(cmd, args, func(ctx context.Context, g *crypto.Gate, v string) error {
		plain, err := g.Decrypt(ctx, a.secret, v)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), plain)
		return nil
	})
}

// runCheck fails when any value is not a token under the secret, so it can
// gate scripts.
func (a *sealApp) runCheck(cmd *cobra.Command, args []string) error {
	plain := 0
	err := a.each(cmd, args, func(ctx context.Context, g *crypto.Gate, v string) error {
		ok, err := g.IsEncrypted(ctx, a.secret, v)
		if err != nil {
			return err
		}
		if ok {
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", okColor("sealed   "), v)
		} else {
			plain++
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", warnColor("plaintext"), v)
		}
		return nil
	})
	if err != nil {
		return err
	}
	if plain > 0 {
		return fmt.Errorf("%d value(s) not sealed under %s", plain, a.secret)
	}
	return nil
}

func (a *sealApp) each(cmd *cobra.Command, args []string, fn func(context.Context, *crypto.Gate, string) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	g, err := a.gate(ctx)
	if err != nil {
		return err
	}

	values := args
	if len(values) == 0 {
		values, err = readLines(cmd.InOrStdin())
		if err != nil {
			return err
		}
	}
	for _, v := range values {
		if err := fn(ctx, g, v); err != nil {
			return fmt.Errorf("%s %q: %w", dimColor(cmd.Name()), v, err)
		}
	}
	return nil
}

func readLines(r io.Reader) ([]string, error) {
	var lines []string
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		if line := strings.TrimSpace(sc.Text()); line != "" {
			lines = append(lines, line)
		}
	}
	return lines, sc.Err()
}
