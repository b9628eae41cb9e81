// Package config loads service configuration from a YAML file, an optional
// .env file and the process environment.
//
// Files are resolved from a handful of conventional locations relative to
// the working directory (cmd/<service>/config.yml, config/config.yml,
// ./config.yml) unless explicit paths are given. Environment variables
// override file values; PIPELINE_MAX_CHUNK_DURATION binds to
// pipeline.max_chunk_duration as well as the flat and partially nested
// spellings of the same key.
//
//	var cfg AppConfig
//	if err := config.LoadConfig("chunkscribe", &cfg); err != nil { ... }
//	cfg.ApplyDefaults()
package config
