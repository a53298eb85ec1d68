package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/lazypower/companion/internal/client"
)

var (
	serverURL string
	userID    string
	persist   bool
)

func newClient() *client.Client {
	return client.New(serverURL)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

var chatCmd = &cobra.Command{
	Use:   "chat <message>",
	Short: "Send a message and print the reply",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		resp, err := newClient().Chat(cmd.Context(), userID, strings.Join(args, " "), persist)
		if err != nil {
			return err
		}

		// Honor the typing indicator the way a chat UI would.
		if wait := time.Until(resp.TypingUntil); wait > 0 && wait < 10*time.Second {
			time.Sleep(wait)
		}
		fmt.Println(resp.Reply)
		fmt.Fprintf(os.Stderr, "  mood: %s  bond: %d  queued: %d\n", resp.Mood, resp.Bond, len(resp.Queued))
		if resp.Planned != nil {
			fmt.Fprintf(os.Stderr, "  follow-up at %s\n", resp.Planned.DueAt.Local().Format(time.Kitchen))
		}
		return nil
	},
}

var pollCmd = &cobra.Command{
	Use:   "poll",
	Short: "Drain and print queued proactive messages",
	RunE: func(cmd *cobra.Command, args []string) error {
		msgs, err := newClient().Poll(cmd.Context(), userID)
		if err != nil {
			return err
		}
		if len(msgs) == 0 {
			fmt.Fprintln(os.Stderr, "nothing queued")
			return nil
		}
		for _, m := range msgs {
			fmt.Printf("[%s] %s\n", m.Kind, m.Text)
		}
		return nil
	},
}

var memoriesCmd = &cobra.Command{
	Use:   "memories",
	Short: "List durable and ephemeral memories",
	RunE: func(cmd *cobra.Command, args []string) error {
		list, err := newClient().Memories(cmd.Context(), userID)
		if err != nil {
			return err
		}
		return printJSON(list)
	},
}

var rememberCmd = &cobra.Command{
	Use:   "remember <text>",
	Short: "Store a durable memory",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		mem, err := newClient().Remember(cmd.Context(), userID, strings.Join(args, " "))
		if err != nil {
			return err
		}
		fmt.Println(mem.ID)
		return nil
	},
}

var forgetCmd = &cobra.Command{
	Use:   "forget <memory-id>",
	Short: "Delete a memory",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		removed, err := newClient().Forget(cmd.Context(), userID, args[0])
		if err != nil {
			return err
		}
		if !removed {
			fmt.Fprintln(os.Stderr, "no such memory")
		}
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show mood, bond and fight state",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Second)
		defer cancel()

		c := newClient()
		if !c.Healthy(ctx) {
			return fmt.Errorf("server not reachable")
		}
		st, err := c.Status(ctx, userID)
		if err != nil {
			return err
		}
		return printJSON(st)
	},
}

func init() {
	for _, c := range []*cobra.Command{chatCmd, pollCmd, memoriesCmd, rememberCmd, forgetCmd, statusCmd} {
		c.Flags().StringVar(&serverURL, "url", "", "server URL (default $COMPANION_URL or http://127.0.0.1:3000)")
		c.Flags().StringVarP(&userID, "user", "u", defaultUser(), "user ID")
	}
	chatCmd.Flags().BoolVar(&persist, "remember", false, "also store the message as a durable memory")
}

func defaultUser() string {
	if u := os.Getenv("COMPANION_USER"); u != "" {
		return u
	}
	return "local"
}
