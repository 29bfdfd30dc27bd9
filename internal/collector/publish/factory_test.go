package publish

import (
	"testing"
	"time"
)

func TestBuildPublisher_DefaultsToMock(t *testing.T) {
	for _, sel := range []string{"", "mock"} {
		p, err := BuildPublisher(sel, DemoOptions{})
		if err != nil {
			t.Fatalf("selector %q: unexpected error: %v", sel, err)
		}
		if p == nil {
			t.Fatalf("selector %q: nil publisher", sel)
		}
	}
}

func TestBuildPublisher_Redis(t *testing.T) {
	p, err := BuildPublisher("redis", DemoOptions{RedisMarkerTTL: time.Hour})
	if err != nil {
		t.Fatalf("unexpected: %v", err)
	}
	shim, ok := p.(*IdemShim)
	if !ok {
		t.Fatalf("expected *IdemShim, got %T", p)
	}
	rp, ok := shim.impl.(*RedisPublisher)
	if !ok {
		t.Fatalf("expected redis impl, got %T", shim.impl)
	}
	if _, ok := rp.client.(LoggingRedisEvaler); !ok {
		t.Fatalf("expected logging evaler without an address, got %T", rp.client)
	}
}

func TestBuildPublisher_RedisWithAddr_UsesRealClient(t *testing.T) {
	p, err := BuildPublisher("redis", DemoOptions{RedisAddr: "127.0.0.1:0"})
	if err != nil {
		t.Fatalf("unexpected: %v", err)
	}
	shim := p.(*IdemShim)
	rp := shim.impl.(*RedisPublisher)
	if _, ok := rp.client.(*GoRedisEvaler); !ok {
		t.Fatalf("expected go-redis evaler, got %T", rp.client)
	}
	if rp.markerTTL != 24*time.Hour {
		t.Fatalf("expected default marker TTL, got %v", rp.markerTTL)
	}
}

func TestBuildPublisher_Kafka_DefaultTopic(t *testing.T) {
	p, err := BuildPublisher("kafka", DemoOptions{})
	if err != nil {
		t.Fatalf("unexpected: %v", err)
	}
	shim := p.(*IdemShim)
	kp, ok := shim.impl.(*KafkaPublisher)
	if !ok {
		t.Fatalf("expected kafka impl, got %T", shim.impl)
	}
	if kp.topic != "keybatch-batches" {
		t.Fatalf("unexpected default topic: %q", kp.topic)
	}
}

func TestBuildPublisher_PostgresDisabled(t *testing.T) {
	if _, err := BuildPublisher("postgres", DemoOptions{}); err == nil {
		t.Fatalf("expected error for postgres in demo build")
	}
}

func TestBuildPublisher_Unknown(t *testing.T) {
	if _, err := BuildPublisher("nats", DemoOptions{}); err == nil {
		t.Fatalf("expected error for unknown adapter")
	}
}
