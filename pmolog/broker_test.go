package pmolog_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	log "github.com/sirupsen/logrus"

	"gargoton.petite-maison-orange.fr/eric/pmocontrol/pmolog"
)

func TestPublishReachesSubscriber(t *testing.T) {
	b := pmolog.NewBroker()
	ch, unsubscribe := b.Subscribe()
	defer unsubscribe()

	b.Publish("status", map[string]string{"status": "PLAYING"})

	select {
	case ev := <-ch:
		if ev.Name != "status" {
			t.Fatalf("event name = %q", ev.Name)
		}
		if ev.Data != `{"status":"PLAYING"}` {
			t.Fatalf("event data = %q", ev.Data)
		}
	case <-time.After(time.Second):
		t.Fatal("no event received")
	}
}

func TestHistoryKeepsOrder(t *testing.T) {
	b := pmolog.NewBroker()
	b.Publish("a", "1")
	b.Publish("b", "2")

	h := b.History()
	if len(h) != 2 || h[0].Name != "a" || h[1].Data != "2" {
		t.Fatalf("unexpected history %+v", h)
	}
}

func TestUnsubscribeTwice(t *testing.T) {
	b := pmolog.NewBroker()
	_, unsubscribe := b.Subscribe()
	unsubscribe()
	unsubscribe()
	b.Publish("x", "y")
}

func TestServeHTTPReplaysHistory(t *testing.T) {
	b := pmolog.NewBroker()
	b.Publish("renderers", []string{"local"})

	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest(http.MethodGet, "/log-sse", nil).WithContext(ctx)
	rec := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		b.ServeHTTP(rec, req)
		close(done)
	}()
	time.Sleep(50 * time.Millisecond)
	cancel()
	<-done

	body := rec.Body.String()
	if !strings.Contains(body, "event: renderers\ndata: [\"local\"]\n\n") {
		t.Fatalf("history not replayed: %q", body)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("content type = %q", ct)
	}
}

func TestHookPublishesMessages(t *testing.T) {
	b := pmolog.NewBroker()
	hook := pmolog.SSELogHook{Broker: b}
	entry := log.NewEntry(log.StandardLogger())
	entry.Message = "hello"
	entry.Level = log.WarnLevel
	if err := hook.Fire(entry); err != nil {
		t.Fatal(err)
	}

	h := b.History()
	if len(h) != 1 || h[0].Name != "message" || !strings.Contains(h[0].Data, `"level":"warning"`) {
		t.Fatalf("unexpected history %+v", h)
	}
}

func TestPrettyPrintXML(t *testing.T) {
	out := pmolog.PrettyPrintXML(`<a><b>1</b></a>`)
	if out != "<a>\n  <b>1</b>\n</a>" {
		t.Fatalf("unexpected output %q", out)
	}
	if pmolog.PrettyPrintXML("not xml <") != "not xml <" {
		t.Fatal("raw text should be returned on parse error")
	}
}
