// Package config loads .trainwatch.yaml with viper, layering file values
// over defaults and TRAINWATCH_* environment overrides.
package config
