// Package component manages the lifecycle of infrastructure the binary
// depends on: the run ledger database, the Redis cache, the Kafka producer
// and the job worker.
//
// Components start in registration order and stop in reverse order.
package component
