package main

import (
	"context"

	accesscommand "github.com/goliatone/go-access-proxy/command"
	"github.com/goliatone/go-access-proxy/core"
	accessquery "github.com/goliatone/go-access-proxy/query"
	gocmd "github.com/goliatone/go-command"
	"github.com/spf13/cobra"
)

func newTestConnectionCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "test-connection",
		Short: "Check that the tenant answers with the configured credentials",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.withRuntime(cmd, func(ctx context.Context, rt *runtime) error {
				if err := rt.facade.Commands().TestConnection.Execute(ctx, accesscommand.TestConnectionMessage{}); err != nil {
					return err
				}
				return opts.writeJSON(map[string]string{"status": "ok"})
			})
		},
	}
}

func newListEntitlementsCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list-entitlements",
		Short: "List entitlements matching the configured search",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.withRuntime(cmd, func(ctx context.Context, rt *runtime) error {
				views, err := rt.facade.Queries().ListEntitlements.Query(ctx, accessquery.ListEntitlementsMessage{})
				if err != nil {
					return err
				}
				return opts.writeJSON(views)
			})
		},
	}
}

func newCreateAccountCommand(opts *rootOptions) *cobra.Command {
	var (
		name         string
		entitlements []string
	)
	cmd := &cobra.Command{
		Use:   "create-account",
		Short: "Grant initial entitlements to a newly provisioned identity",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			msg := accesscommand.CreateAccountMessage{Request: core.CreateAccountRequest{Name: name}}
			switch len(entitlements) {
			case 0:
			case 1:
				msg.Request.Entitlements = core.SingleValue(entitlements[0])
			default:
				msg.Request.Entitlements = core.ListValue(entitlements)
			}
			if err := msg.Validate(); err != nil {
				return err
			}
			return opts.withRuntime(cmd, func(ctx context.Context, rt *runtime) error {
				collector := gocmd.NewResult[core.AccountView]()
				ctx = gocmd.ContextWithResult(ctx, collector)
				if err := rt.facade.Commands().CreateAccount.Execute(ctx, msg); err != nil {
					return err
				}
				view, _ := collector.Load()
				return opts.writeJSON(view)
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "identity name to resolve")
	cmd.Flags().StringSliceVarP(&entitlements, "entitlement", "e", nil, "entitlement id to grant (repeatable)")
	return cmd
}

func newUpdateAccountCommand(opts *rootOptions) *cobra.Command {
	var (
		identityID string
		add        []string
		remove     []string
	)
	cmd := &cobra.Command{
		Use:   "update-account",
		Short: "Grant and revoke entitlements for an existing account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			msg := accesscommand.UpdateAccountMessage{Request: core.UpdateAccountRequest{IdentityID: identityID}}
			if len(add) > 0 {
				msg.Request.Changes = append(msg.Request.Changes, core.ChangeOperation{
					Op:    core.ChangeOpAdd,
					Value: core.ListValue(add),
				})
			}
			if len(remove) > 0 {
				msg.Request.Changes = append(msg.Request.Changes, core.ChangeOperation{
					Op:    core.ChangeOpRemove,
					Value: core.ListValue(remove),
				})
			}
			if err := msg.Validate(); err != nil {
				return err
			}
			return opts.withRuntime(cmd, func(ctx context.Context, rt *runtime) error {
				collector := gocmd.NewResult[core.AccountView]()
				ctx = gocmd.ContextWithResult(ctx, collector)
				if err := rt.facade.Commands().UpdateAccount.Execute(ctx, msg); err != nil {
					return err
				}
				view, _ := collector.Load()
				return opts.writeJSON(view)
			})
		},
	}
	cmd.Flags().StringVar(&identityID, "id", "", "identity id of the account")
	cmd.Flags().StringSliceVar(&add, "add", nil, "entitlement id to grant (repeatable)")
	cmd.Flags().StringSliceVar(&remove, "remove", nil, "entitlement id to revoke (repeatable)")
	return cmd
}

func newLedgerCommand(opts *rootOptions) *cobra.Command {
	var (
		identityID string
		limit      int
	)
	cmd := &cobra.Command{
		Use:   "ledger",
		Short: "Show recorded access requests for an identity, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			msg := accessquery.ListAccessRequestsMessage{IdentityID: identityID, Limit: limit}
			if err := msg.Validate(); err != nil {
				return err
			}
			return opts.withRuntime(cmd, func(ctx context.Context, rt *runtime) error {
				records, err := rt.facade.Queries().ListAccessRequests.Query(ctx, msg)
				if err != nil {
					return err
				}
				return opts.writeJSON(records)
			})
		},
	}
	cmd.Flags().StringVar(&identityID, "identity", "", "identity id")
	cmd.Flags().IntVar(&limit, "limit", accessquery.DefaultAccessRequestLimit, "maximum records to show")
	return cmd
}
