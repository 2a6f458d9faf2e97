// Package webhooks receives delivery provider callbacks.
//
// Ingestion and interpretation are split. Ingestor verifies the HMAC
// signature over the raw body and enqueues every event of the payload
// verbatim; it never calls the provider. SubscriberEventDispatcher is the
// worker-side handler that applies queued events to the local subscriber
// mirror. Replaying an event converges on the same subscriber row.
package webhooks
