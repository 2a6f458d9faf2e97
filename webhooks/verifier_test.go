package webhooks

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"net/http"
	"testing"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-initiatives/core"
)

func TestHeaderHMACVerifier_AcceptsProviderSignature(t *testing.T) {
	body := []byte(`{"type":"subscriber.created","data":{"email":"a@example.com"}}`)
	verifier := NewProviderVerifier("whsec_1")

	err := verifier.Verify(context.Background(), InboundRequest{
		Body:    body,
		Headers: map[string]string{"x-provider-signature": Sign("whsec_1", body)},
	})
	if err != nil {
		t.Fatalf("expected signature to verify, got %v", err)
	}
}

func TestHeaderHMACVerifier_Base64AndPrefix(t *testing.T) {
	body := []byte(`{"event":"updated"}`)
	mac := hmac.New(sha256.New, []byte("secret"))
	_, _ = mac.Write(body)
	signature := base64.StdEncoding.EncodeToString(mac.Sum(nil))

	verifier := HeaderHMACVerifier{Header: "X-Hub-Signature", Prefix: "sha256=", Secret: "secret", Encoding: "base64"}
	err := verifier.Verify(context.Background(), InboundRequest{
		Body:    body,
		Headers: map[string]string{"X-Hub-Signature": "sha256=" + signature},
	})
	if err != nil {
		t.Fatalf("expected base64 signature to verify, got %v", err)
	}
}

func TestHeaderHMACVerifier_Rejections(t *testing.T) {
	body := []byte(`{"type":"subscriber.created"}`)
	cases := []struct {
		name     string
		secret   string
		headers  map[string]string
		textCode string
		status   int
	}{
		{
			name:     "secret unset",
			headers:  map[string]string{SignatureHeader: Sign("whsec_1", body)},
			textCode: core.ErrorConfigMissing,
			status:   http.StatusInternalServerError,
		},
		{
			name:     "missing header",
			secret:   "whsec_1",
			textCode: core.ErrorSignatureInvalid,
			status:   http.StatusUnauthorized,
		},
		{
			name:     "wrong secret",
			secret:   "whsec_1",
			headers:  map[string]string{SignatureHeader: Sign("other", body)},
			textCode: core.ErrorSignatureInvalid,
			status:   http.StatusUnauthorized,
		},
		{
			name:     "not hex",
			secret:   "whsec_1",
			headers:  map[string]string{SignatureHeader: "zz-not-hex"},
			textCode: core.ErrorSignatureInvalid,
			status:   http.StatusUnauthorized,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := NewProviderVerifier(tc.secret).Verify(context.Background(), InboundRequest{Body: body, Headers: tc.headers})
			if err == nil {
				t.Fatalf("expected verification error")
			}
			var rich *goerrors.Error
			if !goerrors.As(err, &rich) {
				t.Fatalf("expected go-errors envelope, got %T", err)
			}
			if rich.TextCode != tc.textCode {
				t.Fatalf("expected %q, got %q", tc.textCode, rich.TextCode)
			}
			if rich.Code != tc.status {
				t.Fatalf("expected status %d, got %d", tc.status, rich.Code)
			}
		})
	}
}
