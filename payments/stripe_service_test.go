package payments

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"testing"
	"time"
)

func signPayload(secret string, timestamp int64, payload []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d.", timestamp)
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

func TestVerifySignature_Valid(t *testing.T) {
	secret := "whsec_test_secret"
	payload := []byte(`{"type":"checkout.session.completed"}`)
	ts := time.Now().Unix()

	header := fmt.Sprintf("t=%d,v1=%s", ts, signPayload(secret, ts, payload))
	if err := verifySignature(payload, header, secret, 5*time.Minute); err != nil {
		t.Fatalf("expected valid signature to pass: %v", err)
	}
}

func TestVerifySignature_MultipleSignatures(t *testing.T) {
	secret := "whsec_test_secret"
	payload := []byte(`{}`)
	ts := time.Now().Unix()

	// Stripe sends extra v1 entries during secret rollover; one match suffices.
	header := fmt.Sprintf("t=%d,v1=%s,v1=%s", ts, "deadbeef", signPayload(secret, ts, payload))
	if err := verifySignature(payload, header, secret, 5*time.Minute); err != nil {
		t.Fatalf("expected one matching signature to pass: %v", err)
	}
}

func TestVerifySignature_WrongSecret(t *testing.T) {
	payload := []byte(`{}`)
	ts := time.Now().Unix()

	header := fmt.Sprintf("t=%d,v1=%s", ts, signPayload("whsec_other", ts, payload))
	if err := verifySignature(payload, header, "whsec_test_secret", 5*time.Minute); err == nil {
		t.Fatalf("expected signature from a different secret to fail")
	}
}

func TestVerifySignature_TamperedPayload(t *testing.T) {
	secret := "whsec_test_secret"
	ts := time.Now().Unix()

	header := fmt.Sprintf("t=%d,v1=%s", ts, signPayload(secret, ts, []byte(`{"amount":100}`)))
	if err := verifySignature([]byte(`{"amount":9999}`), header, secret, 5*time.Minute); err == nil {
		t.Fatalf("expected tampered payload to fail verification")
	}
}

func TestVerifySignature_StaleTimestamp(t *testing.T) {
	secret := "whsec_test_secret"
	payload := []byte(`{}`)
	ts := time.Now().Add(-10 * time.Minute).Unix()

	header := fmt.Sprintf("t=%d,v1=%s", ts, signPayload(secret, ts, payload))
	if err := verifySignature(payload, header, secret, 5*time.Minute); err == nil {
		t.Fatalf("expected a replayed timestamp to fail verification")
	}
}

func TestVerifySignature_MalformedHeader(t *testing.T) {
	for _, header := range []string{"", "v1=abc", "t=123", "nonsense"} {
		if err := verifySignature([]byte(`{}`), header, "whsec_test_secret", 5*time.Minute); err == nil {
			t.Fatalf("expected header %q to be rejected", header)
		}
	}
}
