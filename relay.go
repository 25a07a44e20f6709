// Package relay identifies the relay service build
package relay

const (
	// Name is the service name reported in logs and health checks
	Name = "relay"

	// Version is the service version
	Version = "1.0.0"
)
