package mqtt

import "fmt"

// defaultPrefix is used when the config leaves the topic prefix empty.
const defaultPrefix = "netdash"

// Topics builds the hub's MQTT topic names. Using these helpers keeps
// topic naming consistent between the publisher and any subscriber
// configuration (Home Assistant, dashboards).
type Topics struct {
	// Prefix is the leading topic segment, "netdash" by default.
	Prefix string
}

func (t Topics) prefix() string {
	if t.Prefix == "" {
		return defaultPrefix
	}
	return t.Prefix
}

// SystemStatus returns the hub availability topic.
//
// Example: netdash/system/status
func (t Topics) SystemStatus() string {
	return fmt.Sprintf("%s/system/status", t.prefix())
}

// ExposureLevel returns the retained exposure level topic.
//
// Example: netdash/exposure/level
func (t Topics) ExposureLevel() string {
	return fmt.Sprintf("%s/exposure/level", t.prefix())
}

// DeviceStatus returns the retained status topic for one device.
//
// Example: netdash/device/aa:bb:cc:dd:ee:01/status
func (t Topics) DeviceStatus(mac string) string {
	return fmt.Sprintf("%s/device/%s/status", t.prefix(), mac)
}
