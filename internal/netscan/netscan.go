package netscan

import (
	"context"
	"os"
	"os/exec"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Client is one live network client as reported by the enumeration
// sources. Signal is nil when the client came from the lease fallback and
// has no current association data.
type Client struct {
	MAC      string `json:"mac"`
	IP       string `json:"ip,omitempty"`
	Hostname string `json:"hostname"`
	Signal   *int   `json:"signal"`
}

// Logger defines the logging interface used by the Scanner.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}

// iwCandidates are tried in order when resolving the iw binary. systemd
// units often run without /usr/sbin in PATH.
var iwCandidates = []string{"/usr/sbin/iw", "/sbin/iw", "/usr/bin/iw"}

// runner executes a command and returns its combined output. Extracted so
// tests can substitute canned tool output.
type runner func(ctx context.Context, name string, args ...string) ([]byte, error)

func execRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

// Scanner enumerates the clients of a Wi-Fi hotspot interface.
//
// It prefers `iw dev <iface> station dump` (clients associated right
// now, with signal strength) merged with dnsmasq lease files for IP and
// hostname. When iw reports nothing, it falls back to a leases-only view
// so the dashboard still shows something, with nil signal.
//
// Every failure path is soft: log, return what is known, never error out
// to the caller.
type Scanner struct {
	iface      string
	timeout    time.Duration
	leaseFiles []string
	iwPath     string
	run        runner
	logger     Logger
}

// Option configures a Scanner.
type Option func(*Scanner)

// WithLogger sets the scanner logger.
func WithLogger(logger Logger) Option {
	return func(s *Scanner) { s.logger = logger }
}

// WithLeaseFiles overrides the candidate dnsmasq lease file paths.
func WithLeaseFiles(paths []string) Option {
	return func(s *Scanner) {
		if len(paths) > 0 {
			s.leaseFiles = paths
		}
	}
}

// WithTimeout bounds each external command invocation.
func WithTimeout(d time.Duration) Option {
	return func(s *Scanner) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// New creates a Scanner for the given hotspot interface.
func New(iface string, opts ...Option) *Scanner {
	s := &Scanner{
		iface:   iface,
		timeout: 5 * time.Second,
		leaseFiles: []string{
			"/var/lib/NetworkManager/dnsmasq-" + iface + ".leases",
			"/var/lib/misc/dnsmasq.leases",
		},
		run:    execRunner,
		logger: noopLogger{},
	}
	for _, opt := range opts {
		opt(s)
	}
	s.iwPath = resolveIW()
	return s
}

// resolveIW returns the first existing iw binary, consulting PATH last.
func resolveIW() string {
	for _, p := range iwCandidates {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	if p, err := exec.LookPath("iw"); err == nil {
		return p
	}
	return ""
}

// List returns the current live client list, sorted by
// (hostname, ip, mac). It never fails; at worst the list is empty.
func (s *Scanner) List(ctx context.Context) []Client {
	signals := s.stationSignals(ctx)
	ipByMAC, hostByMAC := s.leaseMaps()

	var clients []Client
	if len(signals) > 0 {
		for mac, signal := range signals {
			sig := signal
			clients = append(clients, Client{
				MAC:      mac,
				IP:       ipByMAC[mac],
				Hostname: hostByMAC[mac],
				Signal:   &sig,
			})
		}
	} else {
		// Fallback: all leases, not strictly "connected now".
		for mac, ip := range ipByMAC {
			clients = append(clients, Client{
				MAC:      mac,
				IP:       ip,
				Hostname: hostByMAC[mac],
			})
		}
	}

	sort.Slice(clients, func(i, j int) bool {
		a, b := clients[i], clients[j]
		if a.Hostname != b.Hostname {
			return a.Hostname < b.Hostname
		}
		if a.IP != b.IP {
			return a.IP < b.IP
		}
		return a.MAC < b.MAC
	})

	s.logger.Debug("client enumeration",
		"iface", s.iface,
		"count", len(clients),
		"associated", len(signals) > 0,
	)
	return clients
}

// stationSignals returns {mac: signal dBm} for currently associated
// stations; empty on any error.
func (s *Scanner) stationSignals(ctx context.Context) map[string]int {
	if s.iwPath == "" {
		s.logger.Warn("iw not found", "candidates", strings.Join(iwCandidates, ","))
		return nil
	}

	runCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	out, err := s.run(runCtx, s.iwPath, "dev", s.iface, "station", "dump")
	if err != nil {
		s.logger.Warn("iw station dump failed",
			"iface", s.iface,
			"error", err,
			"output", strings.TrimSpace(string(out)),
		)
		return nil
	}

	return parseStationDump(string(out))
}

// parseStationDump extracts {mac: signal} pairs from `iw station dump`
// output. Station blocks without a parseable signal line are skipped.
func parseStationDump(out string) map[string]int {
	signals := make(map[string]int)
	var currentMAC string
	for _, raw := range strings.Split(out, "\n") {
		line := strings.TrimSpace(raw)
		switch {
		case strings.HasPrefix(line, "Station "):
			parts := strings.Fields(line)
			if len(parts) >= 2 {
				currentMAC = strings.ToLower(parts[1])
			}
		case currentMAC != "" && strings.HasPrefix(line, "signal:"):
			parts := strings.Fields(line)
			if len(parts) >= 2 {
				if dbm, err := strconv.Atoi(parts[1]); err == nil {
					signals[currentMAC] = dbm
				}
			}
			currentMAC = ""
		}
	}
	return signals
}

// leaseMaps returns (ip_by_mac, host_by_mac) from the first readable
// lease file; empty maps when none exists.
func (s *Scanner) leaseMaps() (map[string]string, map[string]string) {
	ipByMAC := make(map[string]string)
	hostByMAC := make(map[string]string)

	for _, path := range s.leaseFiles {
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		parseLeases(string(data), ipByMAC, hostByMAC)
		s.logger.Debug("leases loaded", "path", path, "macs", len(ipByMAC))
		return ipByMAC, hostByMAC
	}

	s.logger.Warn("no lease file found", "iface", s.iface)
	return ipByMAC, hostByMAC
}

// parseLeases fills the maps from dnsmasq lease file content. Lines are
// `expiry mac ip hostname clientid`; a hostname of "*" means unknown.
func parseLeases(data string, ipByMAC, hostByMAC map[string]string) {
	for _, raw := range strings.Split(data, "\n") {
		parts := strings.Fields(raw)
		if len(parts) < 3 {
			continue
		}
		mac := strings.ToLower(parts[1])
		ip := parts[2]
		host := ""
		if len(parts) > 3 && parts[3] != "*" {
			host = parts[3]
		}
		ipByMAC[mac] = ip
		hostByMAC[mac] = host
	}
}
