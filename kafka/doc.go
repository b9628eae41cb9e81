// Package kafka publishes pipeline events to Kafka with segmentio/kafka-go.
//
// A Producer wraps a kafka-go Writer with TLS/SASL transport, bounded
// retries and structured logging; a Publisher layers a JSON event envelope
// on top of it.
//
// # Configuration
//
// All settings are provided via Config with ApplyDefaults()/Validate():
//
//	kafka:
//	  enabled: true
//	  brokers: ["localhost:9092"]
//	  topic: "chunkscribe.transcripts"
package kafka
