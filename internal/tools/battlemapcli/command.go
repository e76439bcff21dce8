// Package battlemapcli 命令行客户端：校验邀请码、加入会话聊天、旁观事件流
package battlemapcli

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"battlemap_server/internal/service/realtime"
	"battlemap_server/pkg/client"
)

type options struct {
	server      string
	code        string
	userId      string
	displayName string
	verbose     bool
}

func NewRootCommand() *cobra.Command {
	opts := &options{}
	cmd := &cobra.Command{
		Use:          "battlemap",
		Short:        "Battle map realtime session client",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initLogger(opts.verbose)
		},
	}
	cmd.PersistentFlags().StringVar(&opts.server, "server", "http://127.0.0.1:8000", "server base URL")
	cmd.PersistentFlags().StringVar(&opts.code, "code", "", "session join code")
	cmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "debug logging")
	cmd.AddCommand(newPreviewCommand(opts), newJoinCommand(opts), newWatchCommand(opts))
	return cmd
}

func initLogger(verbose bool) error {
	cfg := zap.NewDevelopmentConfig()
	cfg.Level = zap.NewAtomicLevelAt(zapcore.WarnLevel)
	if verbose {
		cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	l, err := cfg.Build()
	if err != nil {
		return err
	}
	zap.ReplaceGlobals(l)
	return nil
}

func newPreviewCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "preview",
		Short: "Check a join code without joining",
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.code == "" {
				return fmt.Errorf("--code is required")
			}
			p, err := client.NewAPI(opts.server).Preview(cmd.Context(), opts.code)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s (%s) on map %q\n", p.Session.Name, p.Session.Id, p.Session.MapName)
			fmt.Fprintf(out, "participants: %d  active: %t\n", p.Session.ParticipantCount, p.Session.IsActive)
			if p.Session.ExpiresAt != nil {
				fmt.Fprintf(out, "expires: %s\n", p.Session.ExpiresAt.Local().Format("2006-01-02 15:04"))
			}
			return nil
		},
	}
}

func newJoinCommand(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "join",
		Short: "Join a session and chat; lines starting with / are commands",
		RunE: func(cmd *cobra.Command, args []string) error {
			return session(cmd, opts, true)
		},
	}
	addUserFlags(cmd, opts)
	return cmd
}

func newWatchCommand(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Join a session and print its events",
		RunE: func(cmd *cobra.Command, args []string) error {
			return session(cmd, opts, false)
		},
	}
	addUserFlags(cmd, opts)
	return cmd
}

func addUserFlags(cmd *cobra.Command, opts *options) {
	cmd.Flags().StringVar(&opts.userId, "user", "", "user id")
	cmd.Flags().StringVar(&opts.displayName, "name", "", "display name")
	_ = cmd.MarkFlagRequired("user")
}

// session 先走 HTTP 加入拿 token，再连 websocket
func session(cmd *cobra.Command, opts *options, interactive bool) error {
	if opts.code == "" {
		return fmt.Errorf("--code is required")
	}
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	api := client.NewAPI(opts.server)
	joined, err := api.JoinByCode(ctx, opts.code, opts.userId, opts.displayName)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s: %s as %s\n", joined.Message, joined.Session.Name, joined.Participant.Role)

	c := client.New(client.Options{URL: api.WsURL(), Token: joined.Token, UserId: opts.userId})
	if err := c.Connect(ctx); err != nil {
		return err
	}
	defer func() { _ = c.Close() }()
	if err := c.Join(joined.Session.Id, opts.displayName); err != nil {
		return err
	}

	if interactive {
		go readInput(ctx, cmd.InOrStdin(), out, c, stop)
	}
	for ev := range c.Events() {
		printEvent(out, ev)
		if ev.Event == client.EventDisconnected {
			return fmt.Errorf("disconnected from session")
		}
	}
	return nil
}

func readInput(ctx context.Context, in io.Reader, out io.Writer, c *client.Client, stop func()) {
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if err := dispatch(c, line); err != nil {
			if errors.Is(err, errQuit) {
				break
			}
			fmt.Fprintf(out, "! %v\n", err)
		}
	}
	_ = c.Leave()
	stop()
}

var errQuit = errors.New("quit")

// dispatch 解析一行输入
func dispatch(c *client.Client, line string) error {
	if !strings.HasPrefix(line, "/") {
		return c.Chat(line, "chat")
	}
	fields := strings.Fields(line)
	switch fields[0] {
	case "/quit", "/q":
		return errQuit
	case "/turn":
		return c.NextTurn()
	case "/roll":
		return c.Chat(strings.TrimSpace(strings.TrimPrefix(line, "/roll")), "roll")
	case "/me":
		return c.Chat(strings.TrimSpace(strings.TrimPrefix(line, "/me")), "action")
	case "/kick":
		if len(fields) != 2 {
			return fmt.Errorf("usage: /kick <userId>")
		}
		return c.Kick(fields[1])
	case "/role":
		if len(fields) != 3 {
			return fmt.Errorf("usage: /role <userId> <DM|PLAYER>")
		}
		return c.UpdateRole(fields[1], strings.ToUpper(fields[2]))
	case "/assign":
		if len(fields) < 2 || len(fields) > 3 {
			return fmt.Errorf("usage: /assign <userId> [characterId]")
		}
		characterId := ""
		if len(fields) == 3 {
			characterId = fields[2]
		}
		return c.AssignCharacter(fields[1], characterId)
	default:
		return fmt.Errorf("unknown command %s", fields[0])
	}
}

func printEvent(out io.Writer, ev client.Event) {
	switch ev.Event {
	case realtime.EventChatMessage:
		var m realtime.ChatMessage
		if json.Unmarshal(ev.Data, &m) == nil {
			if m.Type == "chat" || m.Type == "" {
				fmt.Fprintf(out, "[%s] %s: %s\n", m.Timestamp.Local().Format("15:04"), m.DisplayName, m.Message)
			} else {
				fmt.Fprintf(out, "[%s] * %s (%s) %s\n", m.Timestamp.Local().Format("15:04"), m.DisplayName, m.Type, m.Message)
			}
			return
		}
	case realtime.EventSessionError:
		var e realtime.SessionErrorPayload
		if json.Unmarshal(ev.Data, &e) == nil {
			fmt.Fprintf(out, "! %s: %s\n", e.Code, e.Message)
			return
		}
	case realtime.EventPermissionDenied:
		var e realtime.PermissionDeniedPayload
		if json.Unmarshal(ev.Data, &e) == nil {
			fmt.Fprintf(out, "! %s denied: %s\n", e.Action, e.Reason)
			return
		}
	case client.EventReconnected, client.EventDisconnected:
		fmt.Fprintf(out, "-- %s\n", ev.Event)
		return
	}
	fmt.Fprintf(out, "<%s> %s\n", ev.Event, ev.Data)
}
