// Package services holds the pipeline logic behind the driving ports:
// loading and chunking, ingestion, query parsing, retrieval and answer
// generation, conversation memory, feed polling and settings.
//
// Services only talk to infrastructure through driven ports.
package services
