// Package scrape reads the bridge's Prometheus exposition from the consumer
// side. The console subscriber uses it to display server-side alert and
// connection counts alongside its own live view.
package scrape
