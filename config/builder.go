// SPDX-FileCopyrightText: 2025 The Wattmon Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"errors"
	"fmt"
	"reflect"

	"dario.cat/mergo"
	"gopkg.in/yaml.v3"
)

// Builder assembles a Config by layering YAML fragments over a base.
// Later fragments win over earlier ones; the base defaults to
// DefaultConfig.
type Builder struct {
	yamls []string
	base  *Config
}

// Use replaces the base configuration the fragments merge into.
func (b *Builder) Use(c *Config) *Builder {
	b.base = c
	return b
}

// Merge queues YAML fragments for the next Build call.
func (b *Builder) Merge(yamls ...string) *Builder {
	b.yamls = append(b.yamls, yamls...)
	return b
}

// Build parses and merges every queued fragment. Failures are collected
// across fragments; the config is returned only when all of them
// applied.
func (b *Builder) Build() (*Config, error) {
	cfg := b.base
	if cfg == nil {
		cfg = DefaultConfig()
	}

	var errs error
	for _, y := range b.yamls {
		layer := &Config{}
		if err := yaml.Unmarshal([]byte(y), layer); err != nil {
			errs = errors.Join(errs, fmt.Errorf("failed to parse YAML: %w, yaml: %s", err, y))
			continue
		}

		if err := mergo.Merge(cfg, layer, mergo.WithOverride, mergo.WithTransformers(boolPtrTransformer{})); err != nil {
			errs = errors.Join(errs, fmt.Errorf("failed to merge config: %w, yaml: %s", err, y))
			continue
		}
	}

	if errs != nil {
		return nil, errs
	}

	cfg.sanitize()
	return cfg, nil
}

// boolPtrTransformer lets an explicit false in a fragment override an
// enabled default; plain mergo treats *false like an unset field.
type boolPtrTransformer struct{}

func (t boolPtrTransformer) Transformer(typ reflect.Type) func(dst, src reflect.Value) error {
	if typ != reflect.TypeOf((*bool)(nil)) {
		return nil
	}

	return func(dst, src reflect.Value) error {
		if src.IsNil() {
			return nil
		}
		if dst.CanSet() {
			dst.Set(src)
		}
		return nil
	}
}
