// Command convo-cli is an interactive client for the conversation service's
// WebSocket turn stream.
package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/xiaot623/gogo/convo/internal/domain"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "convo-cli",
		Short:         "Chat with the conversation service",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.AddCommand(newChatCmd())
	return root
}

type chatOptions struct {
	addr    string
	user    string
	session string
	plan    string
	timeout time.Duration
	verbose bool
}

func newChatCmd() *cobra.Command {
	opts := &chatOptions{}
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Open an interactive chat session",
		Long: "Reads lines from stdin and sends each as a turn. " +
			"Replies are printed as they complete; /quit exits.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.user == "" || opts.session == "" {
				return fmt.Errorf("--user and --session are required")
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Connecting to %s...\n", opts.addr)
			client, err := Dial(opts.addr, opts.user, opts.session, opts.plan, opts.timeout)
			if err != nil {
				return err
			}
			defer client.Close()
			fmt.Fprintln(cmd.OutOrStdout(), "Connected. Type a message and press Enter; /quit to exit.")
			return runChat(client, cmd.InOrStdin(), cmd.OutOrStdout(), opts.verbose)
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&opts.addr, "addr", "ws://localhost:8080/v1/ws", "WebSocket server address")
	flags.StringVar(&opts.user, "user", "", "user id")
	flags.StringVar(&opts.session, "session", "", "conversation id")
	flags.StringVar(&opts.plan, "plan", "free", "plan name")
	flags.DurationVar(&opts.timeout, "timeout", 2*time.Minute, "how long to wait for a reply")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "print each turn state")
	return cmd
}

// turnSender is the part of Client the chat loop uses.
type turnSender interface {
	Send(message string, onState func(domain.TurnState)) (*Outcome, error)
}

func runChat(client turnSender, in io.Reader, out io.Writer, verbose bool) error {
	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}
		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}
		if input == "/quit" {
			fmt.Fprintln(out, "Bye!")
			return nil
		}

		var onState func(domain.TurnState)
		if verbose {
			onState = func(st domain.TurnState) { fmt.Fprintf(out, "  · %s\n", st) }
		}
		res, err := client.Send(input, onState)
		if err != nil {
			return err
		}
		printOutcome(out, res)
	}
}

func printOutcome(out io.Writer, o *Outcome) {
	if o.Code != "" {
		fmt.Fprintf(out, "[%s] %s\n", o.Code, o.Error)
		return
	}
	if o.Result == nil {
		return
	}
	fmt.Fprintln(out, o.Result.Reply)
	var notes []string
	if o.Result.Cached {
		notes = append(notes, fmt.Sprintf("cached %.2f", o.Result.Similarity))
	}
	if o.Result.BranchID != "" {
		notes = append(notes, "branch "+o.Result.BranchID)
	}
	if len(o.Result.Sources) > 0 {
		notes = append(notes, "sources: "+strings.Join(o.Result.Sources, ", "))
	}
	if len(notes) > 0 {
		fmt.Fprintf(out, "(%s)\n", strings.Join(notes, "; "))
	}
}
