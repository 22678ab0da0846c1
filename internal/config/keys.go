// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// =============================================================================
// GET/SET HELPERS (DOT NOTATION)
// =============================================================================

type field struct {
	get func(c *Config) string
	set func(c *Config, v string) error
}

func stringField(p func(c *Config) *string) field {
	return field{
		get: func(c *Config) string { return *p(c) },
		set: func(c *Config, v string) error { *p(c) = v; return nil },
	}
}

func intField(p func(c *Config) *int) field {
	return field{
		get: func(c *Config) string { return strconv.Itoa(*p(c)) },
		set: func(c *Config, v string) error {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("%q is not an integer", v)
			}
			*p(c) = n
			return nil
		},
	}
}

func boolField(p func(c *Config) *bool) field {
	return field{
		get: func(c *Config) string { return strconv.FormatBool(*p(c)) },
		set: func(c *Config, v string) error {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("%q is not a boolean", v)
			}
			*p(c) = b
			return nil
		},
	}
}

var fields = map[string]field{
	"ollama.url":        stringField(func(c *Config) *string { return &c.Ollama.URL }),
	"ollama.model":      stringField(func(c *Config) *string { return &c.Ollama.Model }),
	"ollama.max_tokens": intField(func(c *Config) *int { return &c.Ollama.MaxTokens }),
	"ollama.timeout": {
		get: func(c *Config) string { return c.Ollama.Timeout.String() },
		set: func(c *Config, v string) error {
			d, err := time.ParseDuration(v)
			if err != nil {
				return fmt.Errorf("%q is not a duration", v)
			}
			c.Ollama.Timeout = d
			return nil
		},
	},
	"panel.title":                  stringField(func(c *Config) *string { return &c.Panel.Title }),
	"panel.overlap":                stringField(func(c *Config) *string { return &c.Panel.Overlap }),
	"panel.strip_thinking":         boolField(func(c *Config) *bool { return &c.Panel.StripThinking }),
	"panel.thinking_across_chunks": boolField(func(c *Config) *bool { return &c.Panel.ThinkingAcrossChunks }),
	"server.addr":                  stringField(func(c *Config) *string { return &c.Server.Addr }),
	"server.messages_per_second": {
		get: func(c *Config) string { return strconv.FormatFloat(c.Server.MessagesPerSecond, 'g', -1, 64) },
		set: func(c *Config, v string) error {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return fmt.Errorf("%q is not a number", v)
			}
			c.Server.MessagesPerSecond = f
			return nil
		},
	},
	"server.burst": intField(func(c *Config) *int { return &c.Server.Burst }),
	"log.level":    stringField(func(c *Config) *string { return &c.Log.Level }),
	"log.format":   stringField(func(c *Config) *string { return &c.Log.Format }),
	"log.file":     stringField(func(c *Config) *string { return &c.Log.File }),
}

// Keys returns every settable key, sorted.
func Keys() []string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Get returns the value of a dotted key such as "ollama.model".
func (c *Config) Get(key string) (string, error) {
	f, ok := fields[strings.ToLower(key)]
	if !ok {
		return "", fmt.Errorf("unknown config key: %s", key)
	}
	return f.get(c), nil
}

// Set parses value into a dotted key. The result is not validated.
func (c *Config) Set(key, value string) error {
	f, ok := fields[strings.ToLower(key)]
	if !ok {
		return fmt.Errorf("unknown config key: %s", key)
	}
	if err := f.set(c, value); err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	return nil
}
