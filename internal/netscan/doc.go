// Package netscan enumerates the live clients of the Wi-Fi hotspot.
//
// Two OS-level sources are combined:
//
//   - `iw dev <iface> station dump`: stations associated right now,
//     with signal strength in dBm
//   - dnsmasq lease files: MAC to IP/hostname mapping
//
// When iw yields stations, the lease data enriches them. When it yields
// nothing (tool missing, interface down, no associations), the lease
// file alone is returned as a reservation-list view with nil signal so
// UIs still have something to show.
//
// All failures are soft: the scanner logs and returns whatever it could
// learn. This keeps the dashboard usable on development machines with no
// wireless hardware at all.
package netscan
