package webhooks

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"net/http"
	"strings"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-initiatives/core"
)

// SignatureHeader carries the hex HMAC-SHA256 of the raw request body.
const SignatureHeader = "X-Provider-Signature"

// InboundRequest is the transport-neutral view of a provider callback.
type InboundRequest struct {
	Headers map[string]string
	Body    []byte
}

type Verifier interface {
	Verify(ctx context.Context, req InboundRequest) error
}

type VerifierFunc func(ctx context.Context, req InboundRequest) error

func (f VerifierFunc) Verify(ctx context.Context, req InboundRequest) error {
	if f == nil {
		return nil
	}
	return f(ctx, req)
}

type HeaderHMACVerifier struct {
	Header   string
	Prefix   string
	Secret   string
	Encoding string // hex | base64
}

// NewProviderVerifier returns the verifier for the delivery provider's
// callbacks.
func NewProviderVerifier(secret string) HeaderHMACVerifier {
	return HeaderHMACVerifier{
		Header:   SignatureHeader,
		Secret:   strings.TrimSpace(secret),
		Encoding: "hex",
	}
}

func (v HeaderHMACVerifier) Verify(_ context.Context, req InboundRequest) error {
	secret := strings.TrimSpace(v.Secret)
	if secret == "" {
		return errSecretMissing()
	}
	header := strings.TrimSpace(headerValue(req.Headers, v.Header))
	if header == "" {
		return errSignatureInvalid("signature header is required")
	}
	signature := strings.TrimPrefix(header, strings.TrimSpace(v.Prefix))
	signature = strings.TrimSpace(signature)
	if signature == "" {
		return errSignatureInvalid("signature value is required")
	}

	expected := computeHMAC(secret, req.Body)

	var (
		decoded []byte
		err     error
	)
	switch strings.ToLower(strings.TrimSpace(v.Encoding)) {
	case "base64":
		decoded, err = base64.StdEncoding.DecodeString(signature)
	default:
		decoded, err = hex.DecodeString(signature)
	}
	if err != nil {
		return errSignatureInvalid("signature is not correctly encoded")
	}
	if subtle.ConstantTimeCompare(decoded, expected) != 1 {
		return errSignatureInvalid("signature verification failed")
	}
	return nil
}

// Sign returns the hex signature a provider would send for body.
func Sign(secret string, body []byte) string {
	return hex.EncodeToString(computeHMAC(strings.TrimSpace(secret), body))
}

func computeHMAC(secret string, body []byte) []byte {
	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write(body)
	return mac.Sum(nil)
}

func headerValue(headers map[string]string, key string) string {
	if len(headers) == 0 {
		return ""
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return ""
	}
	if value, ok := headers[key]; ok {
		return value
	}
	for headerKey, value := range headers {
		if strings.EqualFold(strings.TrimSpace(headerKey), key) {
			return value
		}
	}
	return ""
}

func errSecretMissing() error {
	return core.NewError("webhook secret is not configured", goerrors.CategoryOperation, core.ErrorConfigMissing).
		WithCode(http.StatusInternalServerError)
}

func errSignatureInvalid(message string) error {
	return core.NewError("webhooks: "+message, goerrors.CategoryAuth, core.ErrorSignatureInvalid).
		WithCode(http.StatusUnauthorized)
}

func errMalformedPayload(message string) error {
	return core.NewError("webhooks: "+message, goerrors.CategoryBadInput, core.ErrorMalformedPayload).
		WithCode(http.StatusBadRequest)
}

// ErrPayloadTooLarge reports a body over limit bytes.
func ErrPayloadTooLarge(limit int) error {
	return core.NewError(fmt.Sprintf("webhooks: payload exceeds %d bytes", limit), goerrors.CategoryBadInput, core.ErrorMalformedPayload).
		WithCode(http.StatusRequestEntityTooLarge)
}
