// Package config defines configuration for the putio-sync CLI.
//
// Configuration can be provided via, highest precedence first:
//   - Command-line flags
//   - Environment variables (PUTIO_TOKEN, PUTIO_SYNC_ prefix for the rest)
//   - YAML configuration file (--config, or ~/.config/putio-sync/config.yaml)
//
// # Example file
//
//	token: ...
//	workers: 3
//	staging_dir: ~/.cache/putio-sync
//	buffer_size: 1MiB
//	requests_per_second: 5
//	log_format: json
//	metrics_file: /var/lib/node_exporter/putio_sync.prom
//	retry:
//	  attempts: 5
//	  backoff: 1s
//	  max_backoff: 30s
package config
