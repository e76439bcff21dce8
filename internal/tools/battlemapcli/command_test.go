package battlemapcli

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"battlemap_server/internal/service/realtime"
	"battlemap_server/pkg/client"
)

func TestDispatch(t *testing.T) {
	c := client.New(client.Options{URL: "ws://127.0.0.1:1/wss"})

	if err := dispatch(c, "/quit"); !errors.Is(err, errQuit) {
		t.Fatalf("quit err=%v", err)
	}
	if err := dispatch(c, "/kick"); err == nil || !strings.Contains(err.Error(), "usage") {
		t.Fatalf("kick usage err=%v", err)
	}
	if err := dispatch(c, "/dance"); err == nil || !strings.Contains(err.Error(), "unknown") {
		t.Fatalf("unknown err=%v", err)
	}
	// 未连接时消息发不出去
	if err := dispatch(c, "hello"); !errors.Is(err, client.ErrNotConnected) {
		t.Fatalf("chat err=%v", err)
	}
}

func TestPrintEvent(t *testing.T) {
	var buf bytes.Buffer
	raw, _ := json.Marshal(realtime.ChatMessage{DisplayName: "Alice", Message: "hi", Type: "chat", Timestamp: time.Now()})
	printEvent(&buf, client.Event{Event: realtime.EventChatMessage, Data: raw})
	if !strings.Contains(buf.String(), "Alice: hi") {
		t.Fatalf("chat line=%q", buf.String())
	}

	buf.Reset()
	raw, _ = json.Marshal(realtime.PermissionDeniedPayload{Action: "kick-participant", Reason: "DM only"})
	printEvent(&buf, client.Event{Event: realtime.EventPermissionDenied, Data: raw})
	if buf.String() != "! kick-participant denied: DM only\n" {
		t.Fatalf("denied line=%q", buf.String())
	}

	buf.Reset()
	printEvent(&buf, client.Event{Event: realtime.EventTurnChanged, Data: json.RawMessage(`{"currentTurn":1}`)})
	if buf.String() != "<turn-changed> {\"currentTurn\":1}\n" {
		t.Fatalf("raw line=%q", buf.String())
	}
}
