// Package gpio drives the physical panel: the five-LED exposure bar, the
// motorized dial (L298N H-bridge), and the rotary encoder watchers.
//
// All devices are built against github.com/stianeikeland/go-rpio/v4 and
// share one opened GPIO mapping (Open/Close). Hardware is optional:
// when rpio.Open fails (a development laptop, CI) every device degrades
// to a logged no-op with realistic timing, so the rest of the hub
// behaves identically on and off the Pi.
//
// Pin numbering is BCM throughout, matching the config file.
package gpio
