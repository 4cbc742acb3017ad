package netscan

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

const sampleStationDump = `Station aa:bb:cc:dd:ee:01 (on wlan0)
	inactive time:	770 ms
	rx bytes:	31797
	signal:  	-48 [-50, -55] dBm
	tx bitrate:	72.2 MBit/s
Station aa:bb:cc:dd:ee:02 (on wlan0)
	inactive time:	10 ms
	signal:  	-61 dBm
Station aa:bb:cc:dd:ee:03 (on wlan0)
	inactive time:	10 ms
	signal:  	garbled
`

func TestParseStationDump(t *testing.T) {
	signals := parseStationDump(sampleStationDump)

	if len(signals) != 2 {
		t.Fatalf("parsed %d stations, want 2: %v", len(signals), signals)
	}
	if got := signals["aa:bb:cc:dd:ee:01"]; got != -48 {
		t.Errorf("signal[01] = %d, want -48", got)
	}
	if got := signals["aa:bb:cc:dd:ee:02"]; got != -61 {
		t.Errorf("signal[02] = %d, want -61", got)
	}
	if _, ok := signals["aa:bb:cc:dd:ee:03"]; ok {
		t.Error("station with garbled signal should be skipped")
	}
}

func TestParseStationDumpEmpty(t *testing.T) {
	if got := parseStationDump(""); len(got) != 0 {
		t.Errorf("empty dump parsed to %v", got)
	}
}

const sampleLeases = `1756720000 AA:BB:CC:DD:EE:01 10.0.0.101 HomePod 01:aa:bb:cc:dd:ee:01
1756720001 aa:bb:cc:dd:ee:02 10.0.0.102 * *
short line
1756720002 aa:bb:cc:dd:ee:03 10.0.0.103 roomba *
`

func TestParseLeases(t *testing.T) {
	ipByMAC := make(map[string]string)
	hostByMAC := make(map[string]string)
	parseLeases(sampleLeases, ipByMAC, hostByMAC)

	if len(ipByMAC) != 3 {
		t.Fatalf("parsed %d leases, want 3: %v", len(ipByMAC), ipByMAC)
	}
	if ipByMAC["aa:bb:cc:dd:ee:01"] != "10.0.0.101" {
		t.Errorf("ip[01] = %q", ipByMAC["aa:bb:cc:dd:ee:01"])
	}
	if hostByMAC["aa:bb:cc:dd:ee:01"] != "HomePod" {
		t.Errorf("host[01] = %q", hostByMAC["aa:bb:cc:dd:ee:01"])
	}
	if hostByMAC["aa:bb:cc:dd:ee:02"] != "" {
		t.Errorf("wildcard hostname should be empty, got %q", hostByMAC["aa:bb:cc:dd:ee:02"])
	}
}

func writeLeaseFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "dnsmasq.leases")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing lease file: %v", err)
	}
	return path
}

func TestListMergesStationsAndLeases(t *testing.T) {
	leases := writeLeaseFile(t, sampleLeases)

	s := New("wlan0", WithLeaseFiles([]string{leases}))
	s.iwPath = "/usr/sbin/iw"
	s.run = func(_ context.Context, _ string, _ ...string) ([]byte, error) {
		return []byte(sampleStationDump), nil
	}

	clients := s.List(context.Background())

	// Only associated stations, enriched from leases.
	if len(clients) != 2 {
		t.Fatalf("got %d clients, want 2: %+v", len(clients), clients)
	}
	// Sorted by hostname: "" (02) before "HomePod" (01).
	if clients[0].MAC != "aa:bb:cc:dd:ee:02" {
		t.Errorf("clients[0] = %+v, want 02 first", clients[0])
	}
	if clients[1].Hostname != "HomePod" || clients[1].IP != "10.0.0.101" {
		t.Errorf("lease enrichment lost: %+v", clients[1])
	}
	if clients[1].Signal == nil || *clients[1].Signal != -48 {
		t.Errorf("signal lost: %+v", clients[1])
	}
}

func TestListFallsBackToLeases(t *testing.T) {
	leases := writeLeaseFile(t, sampleLeases)

	s := New("wlan0", WithLeaseFiles([]string{leases}))
	s.iwPath = "/usr/sbin/iw"
	s.run = func(_ context.Context, _ string, _ ...string) ([]byte, error) {
		return []byte("command failed"), os.ErrPermission
	}

	clients := s.List(context.Background())

	if len(clients) != 3 {
		t.Fatalf("got %d clients, want 3 from leases: %+v", len(clients), clients)
	}
	for _, c := range clients {
		if c.Signal != nil {
			t.Errorf("lease fallback should have nil signal: %+v", c)
		}
	}
}

func TestListSoftFailsToEmpty(t *testing.T) {
	s := New("wlan0", WithLeaseFiles([]string{filepath.Join(t.TempDir(), "missing.leases")}))
	s.iwPath = ""

	if clients := s.List(context.Background()); len(clients) != 0 {
		t.Errorf("expected empty list, got %+v", clients)
	}
}
