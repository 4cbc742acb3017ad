package mqtt

import (
	"strings"
	"testing"
)

func TestTopicBuilders(t *testing.T) {
	topics := Topics{}

	if got := topics.SystemStatus(); got != "netdash/system/status" {
		t.Errorf("SystemStatus = %q", got)
	}
	if got := topics.ExposureLevel(); got != "netdash/exposure/level" {
		t.Errorf("ExposureLevel = %q", got)
	}
	if got := topics.DeviceStatus("aa:bb:cc:dd:ee:01"); got != "netdash/device/aa:bb:cc:dd:ee:01/status" {
		t.Errorf("DeviceStatus = %q", got)
	}
}

func TestTopicPrefixOverride(t *testing.T) {
	topics := Topics{Prefix: "home/hub"}

	if got := topics.ExposureLevel(); got != "home/hub/exposure/level" {
		t.Errorf("ExposureLevel = %q", got)
	}
}

func TestStatusPayloadShapes(t *testing.T) {
	online := buildStatusPayload("netdash-core", "online", "")
	if want := `"status":"online"`; !strings.Contains(online, want) {
		t.Errorf("online payload missing %s: %s", want, online)
	}
	if strings.Contains(online, "reason") {
		t.Errorf("online payload should not carry a reason: %s", online)
	}

	offline := buildStatusPayload("netdash-core", "offline", "graceful_shutdown")
	if want := `"reason":"graceful_shutdown"`; !strings.Contains(offline, want) {
		t.Errorf("offline payload missing %s: %s", want, offline)
	}
}
