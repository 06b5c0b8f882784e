package auditcontext

import (
	"context"
	"testing"
)

func TestActorRoundTrip(t *testing.T) {
	ctx := WithActor(context.Background(), Actor{Type: ActorTypeAdmin, ID: " ops ", Role: "ADMIN"})

	actor, ok := ActorFromContext(ctx)
	if !ok {
		t.Fatalf("expected actor on context")
	}
	if actor.ID != "ops" || actor.Type != ActorTypeAdmin {
		t.Fatalf("unexpected actor %+v", actor)
	}
}

func TestActorMissing(t *testing.T) {
	if _, ok := ActorFromContext(context.Background()); ok {
		t.Fatalf("expected no actor")
	}
	if _, ok := ActorFromContext(WithActor(context.Background(), Actor{Type: ActorTypeAdmin})); ok {
		t.Fatalf("actor without id must be ignored")
	}
}

func TestRequestMetadata(t *testing.T) {
	ctx := WithRequestID(context.Background(), "req-1")
	ctx = WithIPAddress(ctx, "10.0.0.1")
	ctx = WithUserAgent(ctx, "curl/8")

	if got := RequestIDFromContext(ctx); got != "req-1" {
		t.Fatalf("request id = %q", got)
	}
	if got := IPAddressFromContext(ctx); got != "10.0.0.1" {
		t.Fatalf("ip = %q", got)
	}
	if got := UserAgentFromContext(ctx); got != "curl/8" {
		t.Fatalf("user agent = %q", got)
	}
}
