// Package config loads and validates the bridge configuration.
//
// Precedence is defaults, then an optional YAML file, then environment
// variables (HOST, HTTP_PORT, WS_PORT, ENABLE_AUTH, AUTH_TOKEN, MAX_ALERTS,
// MAX_CONNECTIONS, WORKERS, SEND_TIMEOUT, LOG_LEVEL, LOG_FILE). The shared
// secret itself is never stored in the file — only the name of the
// environment variable that holds it.
//
// Watch re-loads the file on change so log verbosity and the auth token can
// be rotated without a restart.
package config
