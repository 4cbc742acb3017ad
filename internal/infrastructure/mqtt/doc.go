// Package mqtt wraps paho.mqtt.golang for the hub's outbound
// publishing: retained exposure level and device status topics plus a
// system availability topic with a Last Will and Testament.
//
// The hub never subscribes; it is a pure publisher. Reconnection is
// automatic with exponential backoff, and the retained status topics
// mean a reconnecting subscriber (Home Assistant) always sees the
// current state without waiting for the next change.
package mqtt
