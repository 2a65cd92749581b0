package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/spf13/cobra"
)

// errStopWatching ends a watch once its exit condition is met
var errStopWatching = errors.New("stop watching")

func newWatchCmd() *cobra.Command {
	var (
		useWS bool
		count int
		until string
	)

	cmd := &cobra.Command{
		Use:   "watch <session-id>",
		Short: "Stream live snapshots of a session",
		Long: `Connect to a session's live stream and print every snapshot it sends.

The first snapshot arrives as soon as the connection is attached. After that
a snapshot follows every join, every countdown tick and every phase change.

By default the SSE endpoint is used; pass --ws to use the WebSocket gateway.
Press Ctrl+C to disconnect.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			w := &watcher{
				count: count,
				until: until,
			}

			var err error
			if useWS {
				err = watchWebSocket(ctx, args[0], w)
			} else {
				err = watchEvents(ctx, args[0], w)
			}

			if errors.Is(err, errStopWatching) {
				return nil
			}
			if err != nil && ctx.Err() != nil {
				if cfg.Output != "json" {
					fmt.Println("\nDisconnected")
				}
				return nil
			}
			return err
		},
	}

	cmd.Flags().BoolVar(&useWS, "ws", false, "Use the WebSocket gateway instead of SSE")
	cmd.Flags().IntVar(&count, "count", 0, "Exit after this many snapshots (0 = forever)")
	cmd.Flags().StringVar(&until, "until", "", "Exit once the session reaches this phase")

	return cmd
}

// watcher prints snapshots and decides when to stop
type watcher struct {
	count int
	until string
	seen  int
}

func (w *watcher) handle(view SessionView) error {
	w.seen++
	printSnapshot(view, cfg.Output == "json")

	if w.count > 0 && w.seen >= w.count {
		return errStopWatching
	}
	if w.until != "" && strings.EqualFold(view.Phase, w.until) {
		return errStopWatching
	}
	return nil
}

func watchEvents(ctx context.Context, sessionID string, w *watcher) error {
	url := strings.TrimSuffix(cfg.ServerURL, "/") + sessionPath(sessionID, "/events")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	// Set headers
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")
	if cfg.Token != "" {
		req.Header.Set("Authorization", "Bearer "+cfg.Token)
	}

	httpClient := &http.Client{
		Timeout: 0, // No timeout for SSE
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("connection failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		var errResp ErrorResponse
		if err := json.NewDecoder(resp.Body).Decode(&errResp); err == nil && errResp.Error.Code != "" {
			return fmt.Errorf("%s", errResp.Error.String())
		}
		return fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	// Parse SSE stream
	scanner := bufio.NewScanner(resp.Body)
	var currentEvent string
	var dataLines []string

	for scanner.Scan() {
		line := scanner.Text()

		switch {
		case strings.HasPrefix(line, "event: "):
			currentEvent = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			dataLines = append(dataLines, strings.TrimPrefix(line, "data: "))
		case line == "":
			// End of event
			if currentEvent == "snapshot" {
				var view SessionView
				if err := json.Unmarshal([]byte(strings.Join(dataLines, "\n")), &view); err != nil {
					return fmt.Errorf("bad snapshot: %w", err)
				}
				if err := w.handle(view); err != nil {
					return err
				}
			}
			currentEvent = ""
			dataLines = nil
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("stream error: %w", err)
	}
	return nil
}

func watchWebSocket(ctx context.Context, sessionID string, w *watcher) error {
	url := strings.TrimSuffix(cfg.ServerURL, "/") + sessionPath(sessionID, "/ws")
	url = "ws" + strings.TrimPrefix(url, "http")

	header := http.Header{}
	if cfg.Token != "" {
		header.Set("Authorization", "Bearer "+cfg.Token)
	}

	conn, resp, err := websocket.Dial(ctx, url, &websocket.DialOptions{HTTPHeader: header})
	if err != nil {
		if resp != nil {
			return fmt.Errorf("connection failed: HTTP %d", resp.StatusCode)
		}
		return fmt.Errorf("connection failed: %w", err)
	}
	defer func() { _ = conn.CloseNow() }()

	for {
		var view SessionView
		if err := wsjson.Read(ctx, conn, &view); err != nil {
			if websocket.CloseStatus(err) == websocket.StatusNormalClosure {
				return nil
			}
			return fmt.Errorf("stream error: %w", err)
		}
		if err := w.handle(view); err != nil {
			_ = conn.Close(websocket.StatusNormalClosure, "")
			return err
		}
	}
}

func printSnapshot(view SessionView, jsonOutput bool) {
	if jsonOutput {
		data, _ := json.Marshal(view)
		fmt.Println(string(data))
		return
	}

	timestamp := time.Now().Format("2006-01-02 15:04:05")
	line := fmt.Sprintf("[%s] %s %s members=%s", timestamp, view.JoinCode, view.Phase, strings.Join(view.MemberNames, ","))
	if view.SecondsRemaining != nil {
		line += fmt.Sprintf(" starts_in=%ds", *view.SecondsRemaining)
	}
	fmt.Fprintln(os.Stdout, line)
}
