package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rafaeljc/heimdall-sdk/internal/model"
	"github.com/rafaeljc/heimdall-sdk/internal/user"
)

// userOptions build the User Object from flags.
type userOptions struct {
	identifier string
	email      string
	country    string
	attrs      []string
}

func (u *userOptions) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&u.identifier, "user-id", "", "User identifier")
	cmd.Flags().StringVar(&u.email, "email", "", "User email")
	cmd.Flags().StringVar(&u.country, "country", "", "User country")
	cmd.Flags().StringArrayVar(&u.attrs, "attr", nil, "Custom attribute as name=value (repeatable)")
}

// build returns nil when no user flag was given.
func (u *userOptions) build() (*user.User, error) {
	if u.identifier == "" && u.email == "" && u.country == "" && len(u.attrs) == 0 {
		return nil, nil
	}

	out := &user.User{Identifier: u.identifier, Email: u.email, Country: u.country}
	for _, attr := range u.attrs {
		name, value, ok := strings.Cut(attr, "=")
		if !ok || strings.TrimSpace(name) == "" {
			return nil, fmt.Errorf("invalid attribute %q, expected name=value", attr)
		}
		out = out.With(strings.TrimSpace(name), value)
	}
	return out, nil
}

func newEvalCmd(opts *globalOptions) *cobra.Command {
	var (
		u   userOptions
		def string
	)

	cmd := &cobra.Command{
		Use:   "eval <key>",
		Short: "Evaluate one flag",
		Long: `Evaluate one flag for a user and print the value, the variation ID and,
with --verbose, the evaluation log.

Examples:
  heimdall-eval eval darkMode --user-id 42 --country NL
  heimdall-eval eval plan --default free --format json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			usr, err := u.build()
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			c, err := opts.newClient(ctx, cmd)
			if err != nil {
				return err
			}
			defer c.Close()

			d := c.GetValueDetails(ctx, args[0], model.InvalidValue(), usr)
			res := newResult(d, opts.verbose)
			if d.Data.IsDefaultValue && cmd.Flags().Changed("default") {
				res.Value = def
			}
			return printResults(cmd.OutOrStdout(), OutputFormat(opts.format), []evalResult{res}, opts.verbose)
		},
	}

	u.register(cmd)
	cmd.Flags().StringVar(&def, "default", "", "Value printed when the flag cannot be evaluated")
	return cmd
}

func newAllCmd(opts *globalOptions) *cobra.Command {
	var u userOptions

	cmd := &cobra.Command{
		Use:   "all",
		Short: "Evaluate every flag",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			usr, err := u.build()
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			c, err := opts.newClient(ctx, cmd)
			if err != nil {
				return err
			}
			defer c.Close()

			details := c.GetAllValueDetails(ctx, usr)
			results := make([]evalResult, 0, len(details))
			for _, d := range details {
				results = append(results, newResult(d, opts.verbose))
			}
			return printResults(cmd.OutOrStdout(), OutputFormat(opts.format), results, opts.verbose)
		},
	}

	u.register(cmd)
	return cmd
}

func newKeysCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "keys",
		Short: "List flag keys",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			c, err := opts.newClient(ctx, cmd)
			if err != nil {
				return err
			}
			defer c.Close()

			return printKeys(cmd.OutOrStdout(), OutputFormat(opts.format), c.GetAllKeys(ctx))
		},
	}
}
