// Package config provides configuration parsing for the attribut CLI.
//
// The configuration is stored in attribut.yaml. Every field is optional;
// missing fields keep their defaults.
//
// # Configuration File Structure
//
//	log:
//	  level: debug
//	  format: json
//	bench:
//	  writers: 8
//	  iterations: 10000
//	  listeners: 4
//	  listSize: 16
//	  copyPolicy: snapshot
//	serve:
//	  addr: 127.0.0.1:9464
//	  tick: 1s
//	metrics:
//	  enabled: true
//	  namespace: attribut
//	tracing:
//	  enabled: false
//	  tracerName: attribut
//
// # Usage
//
//	cfg, err := config.LoadOrDefault(path)
//	if err != nil {
//	    return err
//	}
//	if err := cfg.Validate(); err != nil {
//	    return err
//	}
package config
