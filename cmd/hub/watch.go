package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/spf13/cobra"

	"github.com/kuhandran/Content-Hub-sub001/internal/events"
	"github.com/kuhandran/Content-Hub-sub001/internal/ui"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Stream content hub events (writes, pumps, clears)",
	Long: `Stream content hub events.

Events come from NATS when a NATS URL is known (--nats, CONTENTHUB_NATS_URL
or the active remote), otherwise from the server's SSE stream. Topics accept
NATS wildcards, e.g. contenthub.pump.* or contenthub.>.`,
	GroupID: "sync",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		topics, _ := cmd.Flags().GetStringSlice("topic")
		natsURL, _ := cmd.Flags().GetString("nats")
		if natsURL == "" {
			natsURL = os.Getenv("CONTENTHUB_NATS_URL")
		}
		if natsURL == "" {
			natsURL = activeRemoteNATSURL()
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		if natsURL != "" {
			return watchNATS(ctx, cmd.OutOrStdout(), natsURL, topics)
		}
		return watchSSE(ctx, cmd.OutOrStdout(), topics)
	},
}

// watchNATS subscribes to each topic and prints events until ctx ends.
func watchNATS(ctx context.Context, out io.Writer, natsURL string, topics []string) error {
	sub, err := events.NewNATSSubscriber(natsURL,
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.Printf("nats: disconnected: %v", err)
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			log.Printf("nats: reconnected")
		}),
	)
	if err != nil {
		return fmt.Errorf("connecting to NATS: %w", err)
	}
	defer sub.Close()

	if len(topics) == 0 {
		topics = []string{events.TopicAll}
	}
	merged := make(chan events.Message)
	for _, topic := range topics {
		ch, cancel, err := sub.Subscribe(topic)
		if err != nil {
			return fmt.Errorf("subscribing to %s: %w", topic, err)
		}
		defer cancel()
		go func() {
			for msg := range ch {
				select {
				case merged <- msg:
				case <-ctx.Done():
					return
				}
			}
		}()
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case msg := <-merged:
			printEvent(out, msg, time.Now())
		}
	}
}

// watchSSE reads the server's event stream until ctx ends or the server
// closes it.
func watchSSE(ctx context.Context, out io.Writer, topics []string) error {
	ch, err := hubClient.Stream(ctx, topics)
	if err != nil {
		return fmt.Errorf("opening event stream: %w", err)
	}
	for msg := range ch {
		printEvent(out, msg, time.Now())
	}
	if ctx.Err() != nil {
		return nil
	}
	return fmt.Errorf("event stream closed by server")
}

// printEvent writes one line per event: time, topic and a compact payload.
func printEvent(out io.Writer, msg events.Message, at time.Time) {
	if jsonOutput {
		printJSON(out, struct {
			Topic string          `json:"topic"`
			At    time.Time       `json:"at"`
			Data  json.RawMessage `json:"data,omitempty"`
		}{msg.Topic, at.UTC(), compactJSON(msg.Data)})
		return
	}
	fmt.Fprintf(out, "%s %s %s\n",
		ui.RenderMuted(at.Format("15:04:05")),
		ui.RenderAccent(strings.TrimPrefix(msg.Topic, "contenthub.")),
		compactJSON(msg.Data),
	)
}

func compactJSON(data []byte) json.RawMessage {
	var buf bytes.Buffer
	if len(data) == 0 || json.Compact(&buf, data) != nil {
		return nil
	}
	return buf.Bytes()
}

func init() {
	watchCmd.Flags().StringSlice("topic", nil, "topic patterns to watch (default all)")
	watchCmd.Flags().String("nats", "", "NATS URL (default CONTENTHUB_NATS_URL or the active remote's)")
}
