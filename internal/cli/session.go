package cli

import (
	"fmt"
	"net/url"

	"github.com/spf13/cobra"
)

func newSessionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "session",
		Short: "Session management commands",
	}

	cmd.AddCommand(newSessionCreateCmd())
	cmd.AddCommand(newSessionJoinCmd())
	cmd.AddCommand(newSessionGetCmd())
	cmd.AddCommand(newSessionStartCmd())
	cmd.AddCommand(newSessionAdvanceCmd())
	cmd.AddCommand(newSessionBroadcastCmd())
	cmd.AddCommand(newSessionCodesCmd())

	return cmd
}

func newSessionCreateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "create",
		Short: "Create a new session",
		RunE: func(cmd *cobra.Command, args []string) error {
			var result SessionRef

			if err := client.Post("/api/v1/sessions", nil, &result); err != nil {
				return err
			}

			out := NewOutput(cfg.Output)
			out.Print(result)
			return nil
		},
	}
}

func newSessionJoinCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "join <code>",
		Short: "Join a session by its join code",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var result SessionRef

			if err := client.Post(fmt.Sprintf("/api/v1/codes/%s/join", url.PathEscape(args[0])), nil, &result); err != nil {
				return err
			}

			out := NewOutput(cfg.Output)
			out.Print(result)
			return nil
		},
	}
}

func newSessionGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <session-id>",
		Short: "Show a session snapshot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var result SessionView

			if err := client.Get(sessionPath(args[0], ""), &result); err != nil {
				return err
			}

			out := NewOutput(cfg.Output)
			out.Print(result)
			return nil
		},
	}
}

func newSessionStartCmd() *cobra.Command {
	var delay int

	cmd := &cobra.Command{
		Use:   "start <session-id>",
		Short: "Start the lobby countdown",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := map[string]int{}
			if cmd.Flags().Changed("delay") {
				req["delay_seconds"] = delay
			}

			var result CountdownStarted

			if err := client.Post(sessionPath(args[0], "/start"), req, &result); err != nil {
				return err
			}

			out := NewOutput(cfg.Output)
			out.Print(result)
			return nil
		},
	}

	cmd.Flags().IntVar(&delay, "delay", 0, "Countdown in seconds (default: server default)")

	return cmd
}

func newSessionAdvanceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "advance <session-id>",
		Short: "Deal the next street",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var result PhaseAdvanced

			if err := client.Post(sessionPath(args[0], "/advance"), nil, &result); err != nil {
				return err
			}

			out := NewOutput(cfg.Output)
			out.Print(result)
			return nil
		},
	}
}

func newSessionBroadcastCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "broadcast <session-id>",
		Short: "Push a fresh snapshot to every connection",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var result FanoutResult

			if err := client.Post(sessionPath(args[0], "/broadcast"), nil, &result); err != nil {
				return err
			}

			out := NewOutput(cfg.Output)
			out.Print(result)
			return nil
		},
	}
}

func newSessionCodesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "codes",
		Short: "List active join codes",
		RunE: func(cmd *cobra.Command, args []string) error {
			var result ActiveCodes

			if err := client.Get("/api/v1/codes", &result); err != nil {
				return err
			}

			out := NewOutput(cfg.Output)
			out.Print(result)
			return nil
		},
	}
}

func sessionPath(id, suffix string) string {
	return "/api/v1/sessions/" + url.PathEscape(id) + suffix
}
