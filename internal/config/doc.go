// Package config provides configuration structures and utilities for
// a11yscan. It defines crawl policy defaults, worker pool and cache
// sizing, report format selection, and per-site overrides loaded from
// the .a11yscan YAML file.
package config
