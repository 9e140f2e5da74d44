// Copyright 2026 AgentFlow Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license.

/*
Package config loads the service's process-wide configuration.

# Overview

Configuration is assembled once, at startup, by merging three sources
in ascending priority: built-in defaults, an optional YAML file, and
environment variables (DOCSCAN_ prefix). There is no reload path — the
resulting Config is treated as immutable for the life of the process;
picking up a changed value requires a restart.

# Core types

  - Config: top-level aggregate covering Server, Database, Auth,
    Session, OCR, LLM and Upload settings.
  - Loader: builder for assembling a Config from a file path, an env
    prefix, and optional validator hooks.

# Usage

	cfg, err := config.NewLoader().
		WithConfigPath("config.yaml").
		WithEnvPrefix("DOCSCAN").
		Load()
*/
package config
