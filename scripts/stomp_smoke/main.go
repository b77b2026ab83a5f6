// Command stomp_smoke is a manual smoke test against a live backend: it
// connects the STOMP transport with a real token, watches the personal queue
// and optionally one conversation's topics, and lets you send from stdin.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	applog "github.com/arklim/chatsync/internal/log"
	"github.com/arklim/chatsync/internal/proto"
	"github.com/arklim/chatsync/internal/transport/stomp"
)

func main() {
	if err := run(); err != nil {
		log.Printf("stomp_smoke: %v", err)
		os.Exit(1)
	}
}

func run() error {
	addr := flag.String("addr", "ws://localhost:8080/ws", "STOMP WebSocket address")
	token := flag.String("token", os.Getenv("CHATSYNC_TOKEN"), "bearer token")
	conversation := flag.Int64("conversation", 0, "conversation id to watch and send into")
	flag.Parse()

	if *token == "" {
		return fmt.Errorf("a token is required (flag -token or CHATSYNC_TOKEN)")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger := applog.New("debug")
	client := stomp.New(stomp.Options{URL: *addr, Token: *token}, logger)
	client.OnConnectionChange(func(connected bool) {
		fmt.Printf("* connected=%v\n", connected)
	})

	if err := client.Connect(ctx); err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer client.Disconnect()

	watch := func(topic string) {
		_, err := client.Subscribe(topic, func(body []byte) {
			ev, err := proto.Normalize(topic, body)
			if err != nil {
				fmt.Printf("?? %s: %v\n", topic, err)
				return
			}
			fmt.Printf("<- %s kind=%d %s\n", topic, ev.Kind, string(body))
		})
		if err != nil {
			log.Printf("subscribe %s: %v", topic, err)
		}
	}

	watch(proto.PersonalMessagesQueue)
	watch(proto.PersonalReceiptsQueue)
	if *conversation != 0 {
		watch(proto.ConversationTopic(*conversation))
		watch(proto.TypingTopic(*conversation))
		watch(proto.ReadTopic(*conversation))
	}

	fmt.Println("Type messages and press Enter to send. Ctrl+C to exit.")
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			text := scanner.Text()
			if text == "" {
				continue
			}
			if *conversation == 0 {
				fmt.Println("no -conversation given, not sending")
				continue
			}
			err := client.Publish(proto.DestSendMessage, proto.SendMessageRequest{
				ConversationID: *conversation,
				Content:        text,
			})
			if err != nil {
				log.Printf("send: %v", err)
			}
		}
	}()

	<-ctx.Done()
	return nil
}
