// Package server implements the HTTP API for item intake, run
// inspection, human decisions, and per-item event streaming
package server
