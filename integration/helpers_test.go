//go:build integration

package integration

import (
	"bytes"
	"context"
	"net"
	"os"
	"testing"
	"time"

	"github.com/bradmatt275/wake-from-mqtt/internal/models"
	"github.com/bradmatt275/wake-from-mqtt/internal/services/bridge"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() zerolog.Logger {
	return zerolog.New(os.Stdout).With().Timestamp().Logger()
}

// runBridge starts a bridge on sub that sends packets to a loopback UDP
// listener and returns the listener.
func runBridge(t *testing.T, sub bridge.Subscriber) *net.UDPConn {
	t.Helper()

	conn, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	cfg := models.BridgeConfig{
		WOL: models.WOLConfig{
			Port:        conn.LocalAddr().(*net.UDPAddr).Port,
			BroadcastIP: "127.0.0.1",
		},
		Devices: []models.DeviceConfig{
			{Name: "integration-pc", MACAddress: "AA:BB:CC:DD:EE:10"},
		},
	}

	b, err := bridge.New(testLogger(), cfg, sub)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- b.Run(ctx) }()

	t.Cleanup(func() {
		cancel()
		select {
		case err := <-errCh:
			assert.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Error("bridge did not stop")
		}
	})

	return conn
}

// expectPacket waits for a magic packet for mac, calling publish until one
// arrives so that a late subscription does not drop the first message.
func expectPacket(t *testing.T, conn *net.UDPConn, mac string, publish func()) {
	t.Helper()

	hw, err := net.ParseMAC(mac)
	require.NoError(t, err)
	want := append(bytes.Repeat([]byte{0xFF}, 6), bytes.Repeat(hw, 16)...)

	buf := make([]byte, 1024)
	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		publish()
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(500*time.Millisecond)))
		n, _, err := conn.ReadFromUDP(buf)
		if err != nil {
			continue
		}
		// Earlier retries may still be queued.
		if bytes.Equal(want, buf[:n]) {
			return
		}
	}
	t.Fatal("no magic packet received")
}
