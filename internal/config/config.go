// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config holds the form engine's configuration options
// (spec.md §6 "Configuration options") and an optional YAML sidecar
// loader, grounded on graph/trace_config.go's loadTraceConfig idiom.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config is the host-supplied configuration for a mounted form engine.
//
// Description:
//
//	BasePath is normalized to a leading slash with no trailing slash.
//	CachePath configures the optional compiled-artefact snapshot cache
//	(internal/compile). Telemetry/Audit/Secure toggles
//	gate the optional ambient collaborators described in SPEC_FULL.md
//	§2.2; all default to disabled so a bare Config works with no extra
//	infrastructure.
//
// Thread Safety: Config is read-only after Load/Validate; safe for
// concurrent reads.
type Config struct {
	// BasePath prefixes every mounted journey's full path. Normalized
	// by Normalize, which turns an empty value into "/".
	BasePath string `yaml:"base_path" validate:"omitempty"`

	// CachePath, if set, enables the BadgerDB compiled-artefact
	// snapshot cache at this directory.
	CachePath string `yaml:"cache_path"`

	// WatchDefinition enables fsnotify hot-reload of the definition
	// file named by SourcePath.
	WatchDefinition bool `yaml:"watch_definition"`

	// SourcePath is the on-disk form definition file loaded by
	// internal/source, required when WatchDefinition is set.
	SourcePath string `yaml:"source_path" validate:"required_if=WatchDefinition true"`

	// GCSBucket/GCSObject, if both set, load the definition from Google
	// Cloud Storage instead of SourcePath.
	GCSBucket string `yaml:"gcs_bucket"`
	GCSObject string `yaml:"gcs_object" validate:"required_with=GCSBucket"`

	// OTLPEndpoint, if set, exports traces via OTLP gRPC instead of the
	// stdout trace exporter used for local development; metrics are
	// not sent over OTLP.
	OTLPEndpoint string `yaml:"otlp_endpoint"`

	// PrometheusEnabled uses the Prometheus exporter as the metric
	// reader in place of the stdout metric exporter. No /metrics HTTP
	// endpoint is mounted.
	PrometheusEnabled bool `yaml:"prometheus_enabled"`

	// InfluxURL/InfluxToken/InfluxBucket/InfluxOrg configure the
	// optional submission-outcome audit sink. All four must be set
	// together for the sink to activate.
	InfluxURL    string `yaml:"influx_url"`
	InfluxToken  string `yaml:"influx_token"`
	InfluxBucket string `yaml:"influx_bucket"`
	InfluxOrg    string `yaml:"influx_org"`

	// SecureFields enables locking POST values for field blocks marked
	// properties.sensitive into a memguard.LockedBuffer for the life of
	// the request.
	SecureFields bool `yaml:"secure_fields"`
}

// DefaultConfigFile is the optional YAML sidecar loaded by Load, mirroring
// trace.config.yaml's "missing file is not an error" contract.
const DefaultConfigFile = "formengine.config.yaml"

var validate = validator.New()

// Normalize rewrites BasePath to a leading slash, no trailing slash
// form (spec.md §6). An empty BasePath normalizes to "/".
func (c *Config) Normalize() {
	bp := strings.TrimSpace(c.BasePath)
	if bp == "" {
		c.BasePath = "/"
		return
	}
	if !strings.HasPrefix(bp, "/") {
		bp = "/" + bp
	}
	if len(bp) > 1 {
		bp = strings.TrimRight(bp, "/")
	}
	c.BasePath = bp
}

// Validate runs struct-tag validation via go-playground/validator,
// after Normalize has run, returning an aggregated error listing every
// failing field (spec.md §7.2 "Registration aggregates validation
// failures into a single error group").
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		verrs, ok := err.(validator.ValidationErrors)
		if !ok {
			return fmt.Errorf("config: %w", err)
		}
		msgs := make([]string, 0, len(verrs))
		for _, fe := range verrs {
			msgs = append(msgs, fmt.Sprintf("%s failed %q", fe.Field(), fe.Tag()))
		}
		return fmt.Errorf("config: invalid configuration: %s", strings.Join(msgs, "; "))
	}
	return nil
}

// Load reads an optional YAML sidecar at dir/DefaultConfigFile,
// normalizes, and validates the result. A missing sidecar is not an
// error: Load returns zero-value defaults (BasePath normalized to "/").
func Load(dir string) (*Config, error) {
	cfg := &Config{}
	if dir != "" {
		path := filepath.Join(dir, DefaultConfigFile)
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("config: reading %s: %w", path, err)
			}
		} else if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: parsing %s: %w", path, err)
		}
	}
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
