// Package server orchestrates the alert bridge: webhook ingestion into the
// registry, broadcast fan-out to subscribers, and the health and metrics
// surfaces.
//
// The bridge owns all shared state explicitly — there are no package-level
// collections. One mutex serialises webhook batches against session
// attachment so an init snapshot always reflects a fully applied batch.
// Webhook responses report counts only and never depend on broadcast
// success. Nothing in this package ends the process; the only legitimate
// shutdown path is the caller cancelling and calling Shutdown.
package server
