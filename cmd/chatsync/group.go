package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var groupCmd = &cobra.Command{
	Use:   "group",
	Short: "Manage group conversations",
}

var groupCreateCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Create a group with the given members",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		api, err := restClient()
		if err != nil {
			return err
		}
		members, _ := cmd.Flags().GetInt64Slice("member")
		if len(members) == 0 {
			return fmt.Errorf("at least one --member is required")
		}
		conv, err := api.CreateGroup(context.Background(), args[0], members)
		if err != nil {
			return err
		}
		fmt.Printf("created group %d %q with %d participants\n", conv.ID, conv.Name, conv.ParticipantCount)
		return nil
	},
}

var groupAddCmd = &cobra.Command{
	Use:   "add <conversation-id>",
	Short: "Add members to a group",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		api, err := restClient()
		if err != nil {
			return err
		}
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		members, _ := cmd.Flags().GetInt64Slice("member")
		if len(members) == 0 {
			return fmt.Errorf("at least one --member is required")
		}
		conv, err := api.AddMembers(context.Background(), id, members)
		if err != nil {
			return err
		}
		fmt.Printf("group %d now has %d participants\n", conv.ID, conv.ParticipantCount)
		return nil
	},
}

var groupKickCmd = &cobra.Command{
	Use:   "kick <conversation-id> <user-id>",
	Short: "Remove a member from a group",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		api, err := restClient()
		if err != nil {
			return err
		}
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		member, err := parseID(args[1])
		if err != nil {
			return err
		}
		return api.KickMember(context.Background(), id, member)
	},
}

var groupTransferCmd = &cobra.Command{
	Use:   "transfer-admin <conversation-id> <user-id>",
	Short: "Hand group administration to another member",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		api, err := restClient()
		if err != nil {
			return err
		}
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		admin, err := parseID(args[1])
		if err != nil {
			return err
		}
		return api.TransferAdmin(context.Background(), id, admin)
	},
}

var groupLeaveCmd = &cobra.Command{
	Use:   "leave <conversation-id>",
	Short: "Leave a group; a leaving admin names a successor with --new-admin",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		api, err := restClient()
		if err != nil {
			return err
		}
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		newAdmin, _ := cmd.Flags().GetInt64("new-admin")
		return api.LeaveGroup(context.Background(), id, newAdmin)
	},
}

var groupDissolveCmd = &cobra.Command{
	Use:   "dissolve <conversation-id>",
	Short: "Delete a group conversation entirely",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		api, err := restClient()
		if err != nil {
			return err
		}
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		return api.DissolveGroup(context.Background(), id)
	},
}

func init() {
	groupCreateCmd.Flags().Int64Slice("member", nil, "user id to include (repeatable)")
	groupAddCmd.Flags().Int64Slice("member", nil, "user id to add (repeatable)")
	groupLeaveCmd.Flags().Int64("new-admin", 0, "successor admin when the admin leaves")
	groupCmd.AddCommand(groupCreateCmd, groupAddCmd, groupKickCmd, groupTransferCmd, groupLeaveCmd, groupDissolveCmd)
}
