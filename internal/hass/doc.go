// Package hass mirrors hub state to Home Assistant over MQTT.
//
// The exposure level and per-device statuses are published retained, so
// Home Assistant sees current state immediately after a reconnect. The
// smart plug is driven the other way: a toggle request from the UI
// becomes a command publish on the plug's command topic, and whatever
// automation owns the plug acts on it.
package hass
