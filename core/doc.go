// Package core holds the participation lifecycle, the notification queue
// producers and the batch delivery worker. Storage, transport and provider
// adapters depend on this package; core depends on none of them.
package core
