package payment

import (
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestVerifySignature(t *testing.T) {
	payload := []byte(`{"id":"evt_1"}`)
	now := time.Unix(1_700_000_000, 0)
	good := Sign(payload, "whsec", now)

	if err := VerifySignature(payload, good, "whsec", 5*time.Minute, now.Add(time.Minute)); err != nil {
		t.Fatalf("valid signature rejected: %v", err)
	}
	// Rotated secrets: any matching v1 entry is enough.
	rotated := fmt.Sprintf("%s,v1=%s", good, "deadbeef")
	if err := VerifySignature(payload, rotated, "whsec", 0, now); err != nil {
		t.Fatalf("multi-v1 header rejected: %v", err)
	}

	cases := []struct {
		name   string
		header string
		secret string
		at     time.Time
		want   error
	}{
		{"empty header", "", "whsec", now, ErrMissingSignature},
		{"no secret configured", good, "", now, ErrMissingSignature},
		{"no v1", fmt.Sprintf("t=%d", now.Unix()), "whsec", now, ErrMissingSignature},
		{"wrong secret", good, "other", now, ErrBadSignature},
		{"bad timestamp", "t=abc,v1=00", "whsec", now, ErrBadSignature},
		{"too old", good, "whsec", now.Add(10 * time.Minute), ErrStaleSignature},
		{"from the future", good, "whsec", now.Add(-10 * time.Minute), ErrStaleSignature},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := VerifySignature(payload, tc.header, tc.secret, 5*time.Minute, tc.at)
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}

	if err := VerifySignature([]byte(`{"id":"evt_2"}`), good, "whsec", 0, now); !errors.Is(err, ErrBadSignature) {
		t.Fatalf("tampered payload: expected ErrBadSignature, got %v", err)
	}
}

func TestParseEventReadsCheckoutObject(t *testing.T) {
	body := []byte(`{"id":"evt_9","type":"checkout.session.completed","data":{"object":{
		"id":"cs_1","payment_status":"paid","metadata":{"user_id":"12","tokens":"10"}}}}`)
	ev, err := ParseEvent(body)
	if err != nil {
		t.Fatalf("ParseEvent: %v", err)
	}
	obj := ev.Data.Object
	if ev.Type != EventCheckoutCompleted || !obj.Paid() || obj.ID != "cs_1" {
		t.Fatalf("unexpected event %+v", ev)
	}
	uid, err := obj.UserID()
	if err != nil || uid != 12 {
		t.Fatalf("UserID = %d, %v", uid, err)
	}
	n, err := obj.Tokens()
	if err != nil || n != 10 {
		t.Fatalf("Tokens = %d, %v", n, err)
	}
	if _, err := (CheckoutObject{Metadata: map[string]string{"tokens": "0"}}).Tokens(); err == nil {
		t.Fatal("expected error for zero tokens")
	}
	if _, err := ParseEvent([]byte("{")); err == nil {
		t.Fatal("expected decode error")
	}
}
