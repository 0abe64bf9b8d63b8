// Package config loads wedplan settings from wedplan.yaml, WEDPLAN_*
// environment variables and built-in defaults, then validates the result
// against an embedded CUE schema.
package config
