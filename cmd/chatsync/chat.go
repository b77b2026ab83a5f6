package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/arklim/chatsync/internal/app"
	"github.com/arklim/chatsync/internal/core"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Interactive chat session",
	Long: `Connects to the backend and synchronizes conversations in real time.

Type a message and press enter to send it into the open conversation.
Commands:
  /list            show the conversation list
  /open <id>       open a conversation by id
  /start <id> <username>  start a direct chat with a user
  /mute <id>       toggle notifications for a conversation
  /who             show who is typing
  /quit            exit`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, _, err := buildApp()
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		ctx, cancel := context.WithCancel(ctx)
		defer cancel()

		runErr := make(chan error, 1)
		go func() { runErr <- a.Run(ctx) }()

		go printEvents(ctx, a.Session())
		go readInput(ctx, cancel, a)

		select {
		case err := <-runErr:
			return err
		case <-ctx.Done():
			return nil
		}
	},
}

func printEvents(ctx context.Context, s *core.Session) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-s.Events():
			renderEvent(s, ev)
		}
	}
}

func renderEvent(s *core.Session, ev core.Event) {
	switch ev.Kind {
	case core.EventMessageAppended:
		if ev.Message != nil {
			name := "?"
			if ev.Message.Sender != nil {
				name = ev.Message.Sender.DisplayName()
			}
			fmt.Printf("[%s] %s: %s\n", ev.Message.CreatedAt.Format("15:04"), name, ev.Message.Content)
		}
	case core.EventHistoryLoaded:
		for _, m := range s.Messages() {
			name := "?"
			if m.Sender != nil {
				name = m.Sender.DisplayName()
			}
			fmt.Printf("[%s] %s: %s\n", m.CreatedAt.Format("15:04"), name, m.Content)
		}
	case core.EventConversationSelected:
		if cur := s.Current(); cur != nil {
			fmt.Printf("-- %s --\n", cur.Name)
		}
	case core.EventTypingChanged:
		if len(ev.TypingUsers) > 0 {
			names := make([]string, 0, len(ev.TypingUsers))
			for _, u := range ev.TypingUsers {
				names = append(names, u.DisplayName())
			}
			fmt.Printf("(%s typing...)\n", strings.Join(names, ", "))
		}
	case core.EventRead:
		if ev.Reader != nil {
			fmt.Printf("(read by %s)\n", ev.Reader.DisplayName())
		}
	case core.EventNotify:
		if ev.Message != nil {
			fmt.Printf("* new message in conversation %d\n", ev.ConversationID)
		}
	case core.EventConnection:
		if ev.Connected {
			fmt.Println("* connected")
		} else {
			fmt.Println("* connection lost, retrying...")
		}
	case core.EventError:
		if ev.Error != nil {
			fmt.Println("! " + ev.Error.Message)
		}
	}
}

func readInput(ctx context.Context, cancel context.CancelFunc, a *app.App) {
	s := a.Session()
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if !strings.HasPrefix(line, "/") {
			if err := s.SendMessage(line); err != nil {
				fmt.Println("! " + err.Error())
			}
			continue
		}
		if quit := runCommand(ctx, a, line); quit {
			cancel()
			return
		}
	}
	cancel()
}

func runCommand(ctx context.Context, a *app.App, line string) bool {
	s := a.Session()
	fields := strings.Fields(line)
	switch fields[0] {
	case "/quit", "/exit":
		return true

	case "/list":
		for _, conv := range s.Conversations() {
			marker := " "
			if conv.UnreadCount > 0 {
				marker = "*"
			}
			fmt.Printf("%s %4d  %-24s %s\n", marker, conv.ID, conv.Name, conv.LastMessage)
		}

	case "/open":
		if len(fields) < 2 {
			fmt.Println("usage: /open <id>")
			return false
		}
		id, err := strconv.ParseInt(fields[1], 10, 64)
		if err != nil {
			fmt.Println("! bad conversation id")
			return false
		}
		for _, conv := range s.Conversations() {
			if conv.ID == id {
				s.SelectConversation(conv)
				return false
			}
		}
		fmt.Println("! unknown conversation, try /list")

	case "/start":
		if len(fields) < 3 {
			fmt.Println("usage: /start <user-id> <username>")
			return false
		}
		id, err := strconv.ParseInt(fields[1], 10, 64)
		if err != nil {
			fmt.Println("! bad user id")
			return false
		}
		s.StartConversation(core.User{ID: id, Username: fields[2]})

	case "/mute":
		if len(fields) < 2 {
			fmt.Println("usage: /mute <id>")
			return false
		}
		id, err := strconv.ParseInt(fields[1], 10, 64)
		if err != nil {
			fmt.Println("! bad conversation id")
			return false
		}
		muted := true
		for _, conv := range s.Conversations() {
			if conv.ID == id {
				muted = !conv.Muted
			}
		}
		if err := a.API().UpdateMute(ctx, id, muted); err != nil {
			fmt.Println("! " + err.Error())
			return false
		}
		s.SetMuted(id, muted)

	case "/who":
		users := s.TypingUsers()
		if len(users) == 0 {
			fmt.Println("nobody is typing")
			return false
		}
		for _, u := range users {
			fmt.Println(u.DisplayName())
		}

	default:
		fmt.Println("! unknown command " + fields[0])
	}
	return false
}
