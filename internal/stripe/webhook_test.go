package stripe

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/stripeshop/internal/domain/settlement"
)

const completedPayload = `{
	"id": "evt_123",
	"type": "checkout.session.completed",
	"data": {
		"object": {
			"id": "cs_test_abc",
			"object": "checkout.session",
			"amount_total": 5495,
			"currency": "eur"
		}
	}
}`

func signPayload(t *testing.T, secret string, ts time.Time, payload string) string {
	t.Helper()
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d.%s", ts.Unix(), payload)
	return fmt.Sprintf("t=%d,v1=%s", ts.Unix(), hex.EncodeToString(mac.Sum(nil)))
}

func newVerifierAt(secret string, now time.Time) *WebhookVerifier {
	v := NewWebhookVerifier(secret)
	v.now = func() time.Time { return now }
	return v
}

func TestVerifyAndParse_ValidSignature(t *testing.T) {
	now := time.Now()
	v := newVerifierAt("whsec_test", now)

	event, err := v.VerifyAndParse([]byte(completedPayload), signPayload(t, "whsec_test", now, completedPayload))
	require.NoError(t, err)

	assert.Equal(t, "evt_123", event.ID)
	assert.Equal(t, settlement.EventTypeCompleted, event.Type)
	assert.Equal(t, "cs_test_abc", event.SessionID)
}

func TestVerifyAndParse_WrongSecret(t *testing.T) {
	now := time.Now()
	v := newVerifierAt("whsec_test", now)

	_, err := v.VerifyAndParse([]byte(completedPayload), signPayload(t, "whsec_other", now, completedPayload))
	require.ErrorIs(t, err, settlement.ErrInvalidPayload)
}

func TestVerifyAndParse_TamperedPayload(t *testing.T) {
	now := time.Now()
	v := newVerifierAt("whsec_test", now)
	sig := signPayload(t, "whsec_test", now, completedPayload)

	tampered := completedPayload + " "
	_, err := v.VerifyAndParse([]byte(tampered), sig)
	require.ErrorIs(t, err, settlement.ErrInvalidPayload)
}

func TestVerifyAndParse_StaleTimestamp(t *testing.T) {
	now := time.Now()
	v := newVerifierAt("whsec_test", now)
	old := now.Add(-10 * time.Minute)

	_, err := v.VerifyAndParse([]byte(completedPayload), signPayload(t, "whsec_test", old, completedPayload))
	require.ErrorIs(t, err, settlement.ErrInvalidPayload)
}

func TestVerifyAndParse_MalformedHeader(t *testing.T) {
	v := NewWebhookVerifier("whsec_test")

	for _, header := range []string{"", "t=abc,v1=00", "v1=00", "t=123"} {
		_, err := v.VerifyAndParse([]byte(completedPayload), header)
		assert.ErrorIs(t, err, settlement.ErrInvalidPayload, "header %q", header)
	}
}

func TestVerifyAndParse_NoSecretSkipsVerification(t *testing.T) {
	v := NewWebhookVerifier("")

	event, err := v.VerifyAndParse([]byte(completedPayload), "")
	require.NoError(t, err)
	assert.Equal(t, "cs_test_abc", event.SessionID)
}

func TestVerifyAndParse_OtherEventType(t *testing.T) {
	v := NewWebhookVerifier("")
	payload := `{"id":"evt_9","type":"invoice.paid","data":{"object":{"id":"in_1"}}}`

	event, err := v.VerifyAndParse([]byte(payload), "")
	require.NoError(t, err)
	assert.Equal(t, "invoice.paid", event.Type)
	assert.Equal(t, "in_1", event.SessionID)
}

func TestVerifyAndParse_Garbage(t *testing.T) {
	v := NewWebhookVerifier("")

	_, err := v.VerifyAndParse([]byte("not json"), "")
	require.ErrorIs(t, err, settlement.ErrInvalidPayload)
}

func TestVerifyAndParse_MissingType(t *testing.T) {
	v := NewWebhookVerifier("")

	_, err := v.VerifyAndParse([]byte(`{"id":"evt_1"}`), "")
	require.ErrorIs(t, err, settlement.ErrInvalidPayload)
}
