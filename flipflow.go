// Package flipflow identifies the resale workflow orchestration service.
package flipflow

const (
	// Name is the service name reported in logs and health output
	Name = "flipflow"

	// Version is the service version reported in logs and health output
	Version = "0.3.0"
)
