// Package config provides configuration structures and utilities for reposcan.
// It defines the run options collected from the command line and the rule
// document (categories, patterns, file filters) that drives content scanning.
package config
