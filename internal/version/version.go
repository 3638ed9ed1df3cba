// ABOUTME: Version and product identity
// ABOUTME: Reported in the hello message, metrics resource and TUI header
package version

import "github.com/Resonate-Protocol/voicebridge/pkg/protocol"

// Version is overridden at build time with -ldflags "-X .../internal/version.Version=..."
var Version = "0.1.0"

const (
	Product      = "Voicebridge"
	Manufacturer = "Resonate Protocol"
)

// DeviceInfo returns the identity sent in the hello message. It reads
// Version at call time so a linker override is reported.
func DeviceInfo() protocol.DeviceInfo {
	return protocol.DeviceInfo{
		ProductName:     Product,
		Manufacturer:    Manufacturer,
		SoftwareVersion: Version,
	}
}
