// Package config handles configuration loading for the gateway.
//
// # Overview
//
// Configuration is loaded from a YAML file with ${VAR_NAME} environment
// variable expansion. GATEWAY_MASTER_KEY and GATEWAY_DB_PATH, when set,
// take precedence over whatever the file specifies for crypto.master_key
// and database.path respectively.
//
// # Configuration sections
//
//	server:
//	  http_addr: "0.0.0.0:8080"
//	  request_timeout: "30s"
//	  shutdown_grace_period: "10s"
//
//	database:
//	  path: "/var/lib/gateway/metadata.db"
//
//	crypto:
//	  master_key: "${GATEWAY_MASTER_KEY}"
//
//	quota:
//	  usage_queue_buffer_size: 1024
//	  usage_queue_workers: 4
//
//	logging:
//	  level: "info"   # debug, info, warn, error
//	  format: "text"  # text, json
package config
