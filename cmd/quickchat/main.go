// Command quickchat is a terminal chat client. It joins a room, relays typed
// lines as chat messages, and drives 1:1 calls with the slash commands
// /call <id>, /answer, /hangup.
package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/quickchat/quickchat/internal/adapter/driven/media/pion"
	"github.com/quickchat/quickchat/internal/client"
	"github.com/quickchat/quickchat/internal/config"
	"github.com/quickchat/quickchat/internal/core/domain"
)

func main() {
	root := &cobra.Command{
		Use:   "quickchat",
		Short: "Terminal client for QuickChat",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), config.ClientConfig())
		},
	}
	config.BindClientFlags(root.Flags())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Client) error {
	conn, err := client.Dial(ctx, cfg.ServerURL)
	if err != nil {
		return err
	}

	peers := pion.NewFactory(pion.Config{STUNServers: []string{cfg.STUNServer}})
	session := client.NewSession(conn, cfg.DisplayName, peers, client.NopMedia{})
	defer session.Close()

	session.OnMessage = func(m domain.Message) {
		fmt.Printf("[%s] %s: %s\n", m.Timestamp, m.Author, m.Content.Body)
	}
	session.OnIncomingCall = func(from, name string) {
		fmt.Printf("*** %s (%s) is calling. /answer to accept, /hangup to decline\n", name, from)
	}
	session.OnCallEnded = func(reason string) {
		fmt.Printf("*** call ended (%s)\n", reason)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		session.Run(ctx)
		cancel()
	}()

	if err := session.JoinRoom(cfg.Room); err != nil {
		return err
	}
	fmt.Printf("joined %q as %s; your call id appears once assigned\n", cfg.Room, cfg.DisplayName)

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "":
			continue
		case line == "/id":
			fmt.Println(session.Me())
		case strings.HasPrefix(line, "/call "):
			target := strings.TrimSpace(strings.TrimPrefix(line, "/call "))
			if err := session.Call(ctx, target); err != nil {
				fmt.Fprintln(os.Stderr, "call failed:", err)
			}
		case line == "/answer":
			if err := session.Answer(ctx); err != nil {
				fmt.Fprintln(os.Stderr, "answer failed:", err)
			}
		case line == "/hangup":
			if err := session.HangUp(); err != nil {
				fmt.Fprintln(os.Stderr, "hangup failed:", err)
			}
		case line == "/quit":
			return nil
		default:
			session.SetText(line)
			if err := session.SendMessage(); err != nil {
				fmt.Fprintln(os.Stderr, "send failed:", err)
			}
		}
	}
	return scanner.Err()
}
