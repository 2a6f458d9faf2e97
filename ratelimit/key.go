package ratelimit

import (
	"fmt"
	"strings"
)

// Key identifies one provider throughput bucket, e.g. {"mailer", "batch_send"}.
type Key struct {
	Provider string
	Bucket   string
}

// NormalizeKey lowercases and trims both segments.
func NormalizeKey(key Key) Key {
	return Key{
		Provider: strings.ToLower(strings.TrimSpace(key.Provider)),
		Bucket:   strings.ToLower(strings.TrimSpace(key.Bucket)),
	}
}

func (k Key) Validate() error {
	switch {
	case strings.TrimSpace(k.Provider) == "":
		return fmt.Errorf("ratelimit: provider is required")
	case strings.TrimSpace(k.Bucket) == "":
		return fmt.Errorf("ratelimit: bucket is required")
	}
	return nil
}

func (k Key) String() string {
	return k.Provider + "|" + k.Bucket
}
