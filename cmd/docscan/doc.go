// Copyright (c) AgentFlow Authors.
// Licensed under the MIT License.

/*
Package main is docscan's server entry point.

# Overview

cmd/docscan is the executable entry point: it exposes the HTTP API,
database migrations, health checks and version reporting as
subcommands. It loads YAML configuration, wires structured logging
(zap), OpenTelemetry tracing, Prometheus metrics, and the Redis-backed
session revocation cache when configured.

# Core types

  - Server       — owns the HTTP and metrics listeners, every domain
    collaborator (store, OCR, LLM router, pipeline, letters), and
    graceful shutdown
  - Middleware   — HTTP middleware signature func(http.Handler) http.Handler
  - responseWriter — wraps http.ResponseWriter to capture the status code

# Key behaviors

  - Subcommands: serve, migrate (up/down/status/version/goto/force/reset), version, health
  - Middleware chain: Recovery, RequestID, RequestLogger, SecurityHeaders,
    CORS, OTelTracing, MetricsMiddleware, RateLimiter (per-IP), SessionAuth
  - Metrics server: a separate port exposing /metrics (Prometheus), never
    gated by the API's rate limiter or auth chain
  - Graceful shutdown: signal → stop HTTP → stop metrics → close session
    cache → wait for in-flight background work
  - Build metadata: Version, BuildTime, GitCommit injected via ldflags
*/
package main
