// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package router

import (
	"log/slog"
	"strings"

	"github.com/AleutianAI/formengine/internal/compile"
	"github.com/AleutianAI/formengine/internal/errs"
	"github.com/AleutianAI/formengine/internal/eval"
	"github.com/AleutianAI/formengine/internal/source"
	"github.com/AleutianAI/formengine/internal/telemetry"
)

// ArtefactSource supplies the Compilation Artefact a Router's
// Controllers evaluate against. The common case is a single static
// Artefact; WatchedArtefact backs it with a source.Watcher so a
// definition edit on disk (SPEC_FULL.md §10 "Hot-reload watcher") takes
// effect without a process restart.
type ArtefactSource interface {
	Current() *compile.Artefact
}

// staticArtefact is the ArtefactSource for a form compiled once at
// startup and never reloaded.
type staticArtefact struct{ artefact *compile.Artefact }

func (s staticArtefact) Current() *compile.Artefact { return s.artefact }

// StaticArtefact wraps a single compiled Artefact as an ArtefactSource,
// for a host that never enables WatchDefinition.
func StaticArtefact(artefact *compile.Artefact) ArtefactSource {
	return staticArtefact{artefact: artefact}
}

// WatchedArtefact adapts a source.Watcher (whose Current() returns
// `any`, to keep internal/source independent of internal/compile) into
// an ArtefactSource.
type WatchedArtefact struct {
	Watcher *source.Watcher
}

// Current returns the watcher's most recently (re)compiled Artefact.
func (w WatchedArtefact) Current() *compile.Artefact {
	return w.Watcher.Current().(*compile.Artefact)
}

// Router mounts a compiled Artefact's journey tree onto a
// FrameworkAdapter's native router, registering a GET and POST per
// step at its full path (spec.md §4.8 "Router"). Compiled steps are
// resolved lazily: Mount never invokes the Evaluator, only the
// Controller does, on first request.
type Router struct {
	adapter   FrameworkAdapter
	source    ArtefactSource
	evaluator *eval.Evaluator
	basePath  string
	logger    *slog.Logger

	telemetry    *telemetry.Provider
	audit        AuditSink
	secureFields bool

	fullPaths map[string]bool
}

// AuditSink is the subset of internal/telemetry.AuditSink a Router
// needs, so tests can stub it without standing up InfluxDB.
type AuditSink interface {
	RecordSubmit(stepPath string, executed, validated, isValid bool, outcome string)
}

// Option configures optional Router collaborators at construction.
type Option func(*Router)

// WithTelemetry reports node invocations and validation failures
// through p for every request this Router handles.
func WithTelemetry(p *telemetry.Provider) Option {
	return func(r *Router) { r.telemetry = p }
}

// WithAuditSink emits one point per SUBMIT outcome to sink.
func WithAuditSink(sink AuditSink) Option {
	return func(r *Router) { r.audit = sink }
}

// WithSecureFields locks submitted values for fields marked
// properties.sensitive into a per-request internal/secure.Vault.
func WithSecureFields(enabled bool) Option {
	return func(r *Router) { r.secureFields = enabled }
}

// New returns a Router over a single static artefact, ready to Mount.
func New(adapter FrameworkAdapter, artefact *compile.Artefact, evaluator *eval.Evaluator, basePath string, logger *slog.Logger, opts ...Option) *Router {
	return NewWithSource(adapter, staticArtefact{artefact}, evaluator, basePath, logger, opts...)
}

// NewWithSource returns a Router whose Controllers re-resolve their
// step from src.Current() on every request, so a source.Watcher-backed
// ArtefactSource's swaps are picked up without re-mounting routes.
func NewWithSource(adapter FrameworkAdapter, src ArtefactSource, evaluator *eval.Evaluator, basePath string, logger *slog.Logger, opts ...Option) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Router{
		adapter:   adapter,
		source:    src,
		evaluator: evaluator,
		basePath:  basePath,
		logger:    logger,
		fullPaths: make(map[string]bool),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// currentArtefact returns the Artefact this Router's Controllers should
// evaluate the current request against.
func (r *Router) currentArtefact() *compile.Artefact {
	return r.source.Current()
}

func joinPath(parts ...string) string {
	var b strings.Builder
	for _, p := range parts {
		p = strings.Trim(p, "/")
		if p == "" {
			continue
		}
		b.WriteByte('/')
		b.WriteString(p)
	}
	if b.Len() == 0 {
		return "/"
	}
	return b.String()
}

// Mount mounts the artefact's root journey (and every nested
// sub-journey and step) onto a freshly created native router, returning
// it. A journey's path is relative to its parent; the step's full path
// is basePath + every ancestor journey path + the step's own path.
func (r *Router) Mount() (any, error) {
	main := r.adapter.CreateRouter()
	base := r.adapter.MountRouter(main, joinPath(r.basePath), nil)
	if err := r.mountJourney(base, r.currentArtefact().Root, r.basePath); err != nil {
		return nil, err
	}
	return main, nil
}

// findStep re-locates the step whose fully-mounted path is fullPath
// within the journey tree rooted at root, recomputing paths the same
// way mountJourney/mountStep did at Mount time. A source.Watcher-backed
// Router calls this on every request so a reload's content changes
// (new defaults, edited validation messages) take effect without
// re-registering routes — route topology itself is only ever built
// once, in Mount.
func findStep(root *compile.Journey, prefix, fullPath string) (*compile.Step, bool) {
	var found *compile.Step
	var walk func(j *compile.Journey, prefix string)
	walk = func(j *compile.Journey, prefix string) {
		if found != nil {
			return
		}
		journeyPath := joinPath(prefix, j.Node.Properties.String("path"))
		for _, step := range j.Steps {
			if joinPath(journeyPath, step.Node.Properties.String("path")) == fullPath {
				found = step
				return
			}
		}
		for _, child := range j.Children {
			walk(child, journeyPath)
			if found != nil {
				return
			}
		}
	}
	walk(root, prefix)
	return found, found != nil
}

func (r *Router) mountJourney(parentRouter any, j *compile.Journey, prefix string) error {
	journeyPath := j.Node.Properties.String("path")
	fullJourneyPath := joinPath(prefix, journeyPath)

	jr := r.adapter.MountRouter(parentRouter, joinPath(journeyPath), nil)

	if err := r.mountEntryRedirect(jr, j, fullJourneyPath); err != nil {
		return err
	}

	for _, step := range j.Steps {
		if err := r.mountStep(jr, step, fullJourneyPath); err != nil {
			return err
		}
	}
	for _, child := range j.Children {
		if err := r.mountJourney(jr, child, fullJourneyPath); err != nil {
			return err
		}
	}
	return nil
}

// mountEntryRedirect registers a root GET redirect for j, per spec.md
// §4.8: entryPath takes precedence over the first step marked
// isEntryPoint.
func (r *Router) mountEntryRedirect(jr any, j *compile.Journey, fullJourneyPath string) error {
	entryPath := j.Node.Properties.String("entryPath")
	var target string
	if entryPath != "" {
		target = joinPath(fullJourneyPath, entryPath)
	} else {
		for _, step := range j.Steps {
			if step.Node.Properties.Bool("isEntryPoint", false) {
				target = joinPath(fullJourneyPath, step.Node.Properties.String("path"))
				break
			}
		}
	}
	if target == "" {
		return nil
	}
	r.adapter.RegisterRedirect(jr, fullJourneyPath, target)
	return nil
}

func (r *Router) mountStep(jr any, step *compile.Step, fullJourneyPath string) error {
	stepPath := step.Node.Properties.String("path")
	fullPath := joinPath(fullJourneyPath, stepPath)

	if r.fullPaths[fullPath] {
		return errs.DuplicateRoute(fullPath)
	}
	r.fullPaths[fullPath] = true

	ctrl := &Controller{
		router:   r,
		step:     step,
		fullPath: fullPath,
	}

	r.adapter.Get(jr, stepPath, ctrl.handleGet)
	r.adapter.Post(jr, stepPath, ctrl.handlePost)
	return nil
}
