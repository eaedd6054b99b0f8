package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"

	constants "hostmon/config"
	"hostmon/internal/server"
	"hostmon/internal/snapshot"
	"hostmon/internal/ui"
)

// NewWatchCmd creates the watch command
func NewWatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Live terminal view of the host",
		Long: `Render a snapshot every tick in the terminal. By default the host is
sampled in-process; with --url the view follows a running dashboard's stream.

Examples:
  hostmon watch                                 # Sample locally
  hostmon watch --url http://127.0.0.1:8003     # Follow a running dashboard`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			ctx, cancel := context.WithCancel(contextOf(cmd))
			defer cancel()

			var (
				next  ui.NextFunc
				title string
			)
			if raw, _ := cmd.Flags().GetString("url"); raw != "" {
				stream, err := dialStream(ctx, raw)
				if err != nil {
					return err
				}
				defer stream.Close()
				next, title = stream.Next, constants.TITLE_DEFAULT
			} else {
				rt, err := newRuntime(ctx, cfg)
				if err != nil {
					return err
				}
				defer rt.Close()
				next, title = rt.NewSampler(cfg.TickInterval).Next, server.PageTitle(rt.Platform)
			}

			final, err := tea.NewProgram(ui.NewWatch(ctx, title, next), tea.WithAltScreen()).Run()
			if err != nil {
				return fmt.Errorf("watch view failed: %w", err)
			}
			if m, ok := final.(ui.WatchModel); ok && m.Err() != nil {
				return m.Err()
			}
			return nil
		},
	}

	cmd.Flags().String("url", "", "Dashboard address to follow instead of sampling locally")
	return cmd
}

func contextOf(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

// streamURL turns a dashboard address into its websocket endpoint
func streamURL(raw string) (string, error) {
	if !strings.Contains(raw, "://") {
		raw = "http://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("invalid dashboard url %q: %w", raw, err)
	}
	switch u.Scheme {
	case "http", "ws":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	u.Path = constants.WS_PATH
	return u.String(), nil
}

// remoteStream reads snapshots pushed by a running dashboard
type remoteStream struct {
	conn *websocket.Conn
}

func dialStream(ctx context.Context, raw string) (*remoteStream, error) {
	target, err := streamURL(raw)
	if err != nil {
		return nil, err
	}
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, target, nil)
	if err != nil {
		if resp != nil && resp.StatusCode != http.StatusSwitchingProtocols {
			return nil, fmt.Errorf("failed to connect to %s: %s", target, resp.Status)
		}
		return nil, fmt.Errorf("failed to connect to %s: %w", target, err)
	}
	return &remoteStream{conn: conn}, nil
}

// Next blocks for the next pushed snapshot
func (r *remoteStream) Next(ctx context.Context) (*snapshot.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	_, data, err := r.conn.ReadMessage()
	if err != nil {
		return nil, fmt.Errorf("stream ended: %w", err)
	}
	var snap snapshot.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot: %w", err)
	}
	return &snap, nil
}

func (r *remoteStream) Close() error {
	_ = r.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	return r.conn.Close()
}
