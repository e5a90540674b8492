// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/AleutianAI/formengine/internal/compile"
	"github.com/AleutianAI/formengine/internal/config"
	"github.com/AleutianAI/formengine/internal/eval"
	"github.com/AleutianAI/formengine/internal/ginadapter"
	"github.com/AleutianAI/formengine/internal/registry"
	"github.com/AleutianAI/formengine/internal/router"
	"github.com/AleutianAI/formengine/internal/source"
	"github.com/AleutianAI/formengine/internal/telemetry"
)

// serveAddr and serveBasePath hold flag values for the serve command.
var (
	serveAddr     string
	serveBasePath string
)

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Mount a compiled form definition and listen for HTTP requests",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			logger := slog.Default()

			cfg, err := config.Load(filepath.Dir(definitionPath))
			if err != nil {
				return err
			}
			if serveBasePath != "" {
				cfg.BasePath = serveBasePath
				cfg.Normalize()
			}

			functions := registry.NewFunctions()
			components := registry.NewComponents()

			var cache *compile.Cache
			if cfg.CachePath != "" {
				cache, err = compile.OpenCache(cfg.CachePath, logger)
				if err != nil {
					return err
				}
				defer cache.Close()
			}

			recompile := func(definition map[string]any) (any, error) {
				artefact, _, err := compile.CompileCached(cache, definition, functions, components, logger)
				return artefact, err
			}

			var src router.ArtefactSource
			if cfg.WatchDefinition {
				w, err := source.NewWatcher(cfg.SourcePath, recompile, logger)
				if err != nil {
					return err
				}
				defer w.Close()
				src = router.WatchedArtefact{Watcher: w}
			} else {
				def, err := loadDefinition(definitionPath)
				if err != nil {
					return err
				}
				compiled, err := recompile(def)
				if err != nil {
					return err
				}
				src = router.StaticArtefact(compiled.(*compile.Artefact))
			}

			var provider *telemetry.Provider
			if cfg.OTLPEndpoint != "" || cfg.PrometheusEnabled {
				var opts []telemetry.Option
				if cfg.OTLPEndpoint != "" {
					opts = append(opts, telemetry.WithOTLPEndpoint(cfg.OTLPEndpoint))
				}
				if cfg.PrometheusEnabled {
					opts = append(opts, telemetry.WithPrometheus())
				}
				provider, err = telemetry.New(ctx, opts...)
				if err != nil {
					return err
				}
			} else {
				provider = telemetry.NewNoop()
			}
			defer provider.Shutdown(ctx)

			var routerOpts []router.Option
			routerOpts = append(routerOpts, router.WithTelemetry(provider))

			if cfg.InfluxURL != "" && cfg.InfluxToken != "" && cfg.InfluxBucket != "" && cfg.InfluxOrg != "" {
				sink, err := telemetry.NewAuditSink(cfg.InfluxURL, cfg.InfluxToken, cfg.InfluxBucket, cfg.InfluxOrg)
				if err != nil {
					return err
				}
				defer sink.Close()
				routerOpts = append(routerOpts, router.WithAuditSink(sink))
			}

			if cfg.SecureFields {
				routerOpts = append(routerOpts, router.WithSecureFields(true))
			}

			evaluator := eval.New()
			adapter := ginadapter.New(nil)
			r := router.NewWithSource(adapter, src, evaluator, cfg.BasePath, logger, routerOpts...)
			nativeRouter, err := r.Mount()
			if err != nil {
				return err
			}

			engine := nativeRouter.(*gin.Engine)
			fmt.Printf("serving %s on %s (base path %s)\n", definitionPath, serveAddr, cfg.BasePath)
			return engine.Run(serveAddr)
		},
	}
	cmd.Flags().StringVar(&serveAddr, "addr", ":8080", "listen address")
	cmd.Flags().StringVar(&serveBasePath, "base", "", "base path every journey mounts under (overrides config)")
	return cmd
}
