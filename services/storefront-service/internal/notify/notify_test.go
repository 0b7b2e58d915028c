package notify

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	amqp "github.com/rabbitmq/amqp091-go"
)

type fakeChannel struct {
	declared  []string
	published []amqp.Publishing
	keys      []string
	failWith  error
	closed    bool
}

func (f *fakeChannel) ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error {
	if kind != "topic" || !durable {
		return errors.New("unexpected exchange settings")
	}
	f.declared = append(f.declared, name)
	return nil
}

func (f *fakeChannel) PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error {
	if f.failWith != nil {
		return f.failWith
	}
	f.keys = append(f.keys, exchange+"/"+key)
	f.published = append(f.published, msg)
	return nil
}

func (f *fakeChannel) Close() error {
	f.closed = true
	return nil
}

type recorder struct {
	got []Handoff
	err error
}

func (r *recorder) Notify(_ context.Context, h Handoff) error {
	r.got = append(r.got, h)
	return r.err
}

func TestWhatsAppLink(t *testing.T) {
	cases := []struct {
		number string
		text   string
		want   string
	}{
		{"+55 (11) 99999-0000", "Hi there", "https://wa.me/5511999990000?text=Hi+there"},
		{"5511", "2x Burger — 24.00\nTotal: 24.00", "https://wa.me/5511?text=2x+Burger+%E2%80%94+24.00%0ATotal%3A+24.00"},
		{"n/a", "x", ""},
	}
	for _, tc := range cases {
		if got := WhatsAppLink(tc.number, tc.text); got != tc.want {
			t.Fatalf("WhatsAppLink(%q): expected %q, got %q", tc.number, tc.want, got)
		}
	}
}

func TestAMQPPublisher(t *testing.T) {
	ch := &fakeChannel{}
	p, err := NewAMQPPublisher(ch, "orders_topic")
	if err != nil {
		t.Fatalf("new publisher: %v", err)
	}
	if len(ch.declared) != 1 || ch.declared[0] != "orders_topic" {
		t.Fatalf("expected exchange declaration, got %v", ch.declared)
	}

	h := Handoff{
		OrderID:    "o1",
		TenantID:   "t1",
		WhatsApp:   "5511",
		Summary:    "Order for Ana",
		TenantSlug: "burger-house",
		Method:     "dine-in",
	}
	if err := p.Notify(context.Background(), h); err != nil {
		t.Fatalf("notify: %v", err)
	}

	if ch.keys[0] != "orders_topic/orders.burger-house.dine-in" {
		t.Fatalf("unexpected routing %s", ch.keys[0])
	}
	msg := ch.published[0]
	if msg.DeliveryMode != amqp.Persistent || msg.ContentType != "application/json" || msg.MessageId != "o1" {
		t.Fatalf("unexpected publishing %+v", msg)
	}
	var body map[string]interface{}
	if err := json.Unmarshal(msg.Body, &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["order_id"] != "o1" || body["summary"] != "Order for Ana" {
		t.Fatalf("unexpected body %s", msg.Body)
	}
	if _, leaked := body["TenantSlug"]; leaked {
		t.Fatalf("routing fields should not be in the body: %s", msg.Body)
	}

	if err := p.Close(); err != nil || !ch.closed {
		t.Fatalf("close: %v", err)
	}
}

func TestAMQPPublisherFailure(t *testing.T) {
	ch := &fakeChannel{failWith: errors.New("channel closed")}
	p, err := NewAMQPPublisher(ch, "orders_topic")
	if err != nil {
		t.Fatalf("new publisher: %v", err)
	}
	err = p.Notify(context.Background(), Handoff{OrderID: "o1"})
	if err == nil || !strings.Contains(err.Error(), "channel closed") {
		t.Fatalf("expected publish error, got %v", err)
	}
}

func TestMultiJoinsErrors(t *testing.T) {
	failing := &recorder{err: errors.New("broker down")}
	ok := &recorder{}
	m := Multi{failing, ok, NewLogNotifier(nil)}

	err := m.Notify(context.Background(), Handoff{OrderID: "o1"})
	if err == nil || !strings.Contains(err.Error(), "broker down") {
		t.Fatalf("expected joined error, got %v", err)
	}
	if len(ok.got) != 1 {
		t.Fatal("later notifiers must still run")
	}
}
