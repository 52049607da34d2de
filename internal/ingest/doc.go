// Package ingest normalises Alertmanager webhook payloads into canonical
// Alert records.
//
// Normalisation is per-entry: a malformed entry is logged and dropped, the
// rest of the batch proceeds. Only an unparseable payload body is an error.
// Identity comes from the upstream fingerprint, with a deterministic hash of
// alertname+instance+startsAt as the fallback.
package ingest
