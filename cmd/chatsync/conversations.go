package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/arklim/chatsync/internal/log"
	"github.com/arklim/chatsync/internal/rest"
)

// restClient builds the REST collaborator without the realtime stack, for
// one-shot commands.
func restClient() (*rest.Client, error) {
	logger := log.NewWithWriter("warn", os.Stderr)
	cfg, err := loadConfig(logger)
	if err != nil {
		return nil, err
	}
	if cfg.Token == "" {
		return nil, fmt.Errorf("no token configured")
	}
	return rest.New(cfg.APIBaseURL, cfg.Token, &http.Client{Timeout: cfg.RequestTimeout}, logger), nil
}

func parseID(arg string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("bad conversation id %q", arg)
	}
	return id, nil
}

var conversationsCmd = &cobra.Command{
	Use:     "conversations",
	Aliases: []string{"ls"},
	Short:   "List conversations",
	RunE: func(cmd *cobra.Command, args []string) error {
		api, err := restClient()
		if err != nil {
			return err
		}
		list, err := api.ListConversations(context.Background())
		if err != nil {
			return err
		}
		for _, conv := range list {
			kind := "direct"
			if conv.IsGroup {
				kind = fmt.Sprintf("group(%d)", conv.ParticipantCount)
			}
			unread := ""
			if conv.UnreadCount > 0 {
				unread = fmt.Sprintf(" [%d unread]", conv.UnreadCount)
			}
			fmt.Printf("%4d  %-10s %-24s %s%s\n", conv.ID, kind, conv.Name, conv.LastMessage, unread)
		}
		return nil
	},
}

var searchCmd = &cobra.Command{
	Use:   "search <conversation-id> <query>",
	Short: "Search messages in a conversation",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		api, err := restClient()
		if err != nil {
			return err
		}
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		limit, _ := cmd.Flags().GetInt("limit")
		msgs, err := api.SearchMessages(context.Background(), id, args[1], limit)
		if err != nil {
			return err
		}
		for _, m := range msgs {
			name := "?"
			if sender := m.SenderRef(); sender != nil && sender.Username != "" {
				name = sender.Username
			}
			fmt.Printf("[%s] %s: %s\n", m.CreatedAt.Format("2006-01-02 15:04"), name, m.Content)
		}
		return nil
	},
}

var muteCmd = &cobra.Command{
	Use:   "mute <conversation-id>",
	Short: "Mute or unmute a conversation",
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
		off, _ := cmd.Flags().GetBool("off")
		return api.UpdateMute(context.Background(), id, !off)
	},
}

func init() {
	searchCmd.Flags().Int("limit", 20, "maximum results")
	muteCmd.Flags().Bool("off", false, "unmute instead of mute")
}
