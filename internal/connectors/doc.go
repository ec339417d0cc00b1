// Package connectors holds the document sources that feed the ingestion
// pipeline from outside the CLI: feed fetchers polled on a schedule and a
// directory watcher. Fetchers share request budgets through the ratelimit
// package.
package connectors
