package wol

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net"
	"testing"
	"time"

	"github.com/bradmatt275/wake-from-mqtt/internal/models"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockWOLClient struct {
	wakeFunc func(addr string, mac net.HardwareAddr) error
}

func (m *mockWOLClient) Wake(addr string, mac net.HardwareAddr) error {
	if m.wakeFunc != nil {
		return m.wakeFunc(addr, mac)
	}
	return nil
}

func testLogger() zerolog.Logger {
	return zerolog.New(io.Discard)
}

func TestWake_Broadcast(t *testing.T) {
	var capturedMAC net.HardwareAddr
	var capturedAddr string

	wolClient := &mockWOLClient{
		wakeFunc: func(addr string, mac net.HardwareAddr) error {
			capturedMAC = mac
			capturedAddr = addr
			return nil
		},
	}

	svc := NewWithClient(testLogger(), models.WOLConfig{}, wolClient)

	target := models.WakeTarget{MACAddress: "AA:BB:CC:DD:EE:FF", DisplayName: "pc"}
	result, err := svc.Wake(context.Background(), target)

	require.NoError(t, err)
	assert.True(t, result.PacketSent)
	assert.Nil(t, result.Error)
	assert.Equal(t, models.ModeBroadcast, result.Mode)
	assert.Equal(t, "255.255.255.255:9", result.Destination)
	assert.Equal(t, target, result.Target)

	expectedMAC, _ := net.ParseMAC("AA:BB:CC:DD:EE:FF")
	assert.Equal(t, expectedMAC, capturedMAC)
	assert.Equal(t, "255.255.255.255:9", capturedAddr)
}

func TestWake_BroadcastCustomAddress(t *testing.T) {
	var capturedAddr string

	wolClient := &mockWOLClient{
		wakeFunc: func(addr string, mac net.HardwareAddr) error {
			capturedAddr = addr
			return nil
		},
	}

	svc := NewWithClient(testLogger(), models.WOLConfig{Port: 7, BroadcastIP: "192.168.1.255"}, wolClient)

	result, err := svc.Wake(context.Background(), models.WakeTarget{MACAddress: "aa-bb-cc-dd-ee-ff"})

	require.NoError(t, err)
	assert.True(t, result.PacketSent)
	assert.Equal(t, "192.168.1.255:7", capturedAddr)
}

func TestWake_Unicast(t *testing.T) {
	var capturedAddr string

	wolClient := &mockWOLClient{
		wakeFunc: func(addr string, mac net.HardwareAddr) error {
			capturedAddr = addr
			return nil
		},
	}

	svc := NewWithClient(testLogger(), models.WOLConfig{BroadcastIP: "192.168.1.255"}, wolClient)

	target := models.WakeTarget{MACAddress: "AA:BB:CC:DD:EE:FF", IPAddress: "192.0.2.5"}
	result, err := svc.Wake(context.Background(), target)

	require.NoError(t, err)
	assert.True(t, result.PacketSent)
	assert.Equal(t, models.ModeUnicast, result.Mode)
	assert.Equal(t, "192.0.2.5:9", capturedAddr)
}

func TestWake_UnicastIPv6(t *testing.T) {
	var capturedAddr string

	wolClient := &mockWOLClient{
		wakeFunc: func(addr string, mac net.HardwareAddr) error {
			capturedAddr = addr
			return nil
		},
	}

	svc := NewWithClient(testLogger(), models.WOLConfig{}, wolClient)

	result, err := svc.Wake(context.Background(), models.WakeTarget{MACAddress: "AA:BB:CC:DD:EE:FF", IPAddress: "2001:db8::5"})

	require.NoError(t, err)
	assert.True(t, result.PacketSent)
	assert.Equal(t, "[2001:db8::5]:9", capturedAddr)
}

func TestWake_InvalidMAC(t *testing.T) {
	called := false
	wolClient := &mockWOLClient{
		wakeFunc: func(addr string, mac net.HardwareAddr) error {
			called = true
			return nil
		},
	}

	svc := NewWithClient(testLogger(), models.WOLConfig{}, wolClient)

	result, err := svc.Wake(context.Background(), models.WakeTarget{MACAddress: "invalid-mac"})

	require.NoError(t, err)
	assert.False(t, result.PacketSent)
	assert.ErrorIs(t, result.Error, ErrInvalidAddress)
	assert.False(t, called)
}

func TestWake_InvalidIP(t *testing.T) {
	svc := NewWithClient(testLogger(), models.WOLConfig{}, &mockWOLClient{})

	result, err := svc.Wake(context.Background(), models.WakeTarget{MACAddress: "AA:BB:CC:DD:EE:FF", IPAddress: "not-an-ip"})

	require.NoError(t, err)
	assert.False(t, result.PacketSent)
	assert.ErrorIs(t, result.Error, ErrInvalidAddress)
	assert.Contains(t, result.Error.Error(), "not-an-ip")
}

func TestWake_SendFailed(t *testing.T) {
	wolClient := &mockWOLClient{
		wakeFunc: func(addr string, mac net.HardwareAddr) error {
			return errors.New("network unreachable")
		},
	}

	svc := NewWithClient(testLogger(), models.WOLConfig{}, wolClient)

	result, err := svc.Wake(context.Background(), models.WakeTarget{MACAddress: "AA:BB:CC:DD:EE:FF"})

	require.NoError(t, err)
	assert.False(t, result.PacketSent)
	assert.NotNil(t, result.Error)
	assert.Contains(t, result.Error.Error(), "network unreachable")
}

func TestWake_ContextCancelled(t *testing.T) {
	called := false
	wolClient := &mockWOLClient{
		wakeFunc: func(addr string, mac net.HardwareAddr) error {
			called = true
			return nil
		},
	}

	svc := NewWithClient(testLogger(), models.WOLConfig{}, wolClient)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := svc.Wake(ctx, models.WakeTarget{MACAddress: "AA:BB:CC:DD:EE:FF"})

	require.NoError(t, err)
	assert.False(t, result.PacketSent)
	assert.Equal(t, context.Canceled, result.Error)
	assert.False(t, called)
}

// listenUDP opens a loopback listener and returns it with its port.
func listenUDP(t *testing.T) (*net.UDPConn, int) {
	t.Helper()

	conn, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	return conn, conn.LocalAddr().(*net.UDPAddr).Port
}

func readPacket(t *testing.T, conn *net.UDPConn) []byte {
	t.Helper()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	buf := make([]byte, 512)
	n, _, err := conn.ReadFromUDP(buf)
	require.NoError(t, err)

	return buf[:n]
}

func assertMagicPacket(t *testing.T, packet []byte, mac net.HardwareAddr) {
	t.Helper()

	require.Len(t, packet, 102)
	assert.Equal(t, bytes.Repeat([]byte{0xFF}, 6), packet[:6])
	for i := 0; i < 16; i++ {
		offset := 6 + i*6
		assert.Equal(t, []byte(mac), packet[offset:offset+6], "repetition %d", i)
	}
}

func TestDefaultClient_UnicastPacket(t *testing.T) {
	conn, port := listenUDP(t)

	svc := New(testLogger(), models.WOLConfig{Port: port})

	result, err := svc.Wake(context.Background(), models.WakeTarget{MACAddress: "AA:BB:CC:DD:EE:FF", IPAddress: "127.0.0.1"})

	require.NoError(t, err)
	require.Nil(t, result.Error)
	assert.True(t, result.PacketSent)
	assert.Equal(t, models.ModeUnicast, result.Mode)

	mac, _ := net.ParseMAC("AA:BB:CC:DD:EE:FF")
	assertMagicPacket(t, readPacket(t, conn), mac)
}

func TestDefaultClient_BroadcastPacket(t *testing.T) {
	conn, port := listenUDP(t)

	// The loopback address stands in for the subnet broadcast address.
	svc := New(testLogger(), models.WOLConfig{Port: port, BroadcastIP: "127.0.0.1"})

	result, err := svc.Wake(context.Background(), models.WakeTarget{MACAddress: "01-23-45-67-89-ab"})

	require.NoError(t, err)
	require.Nil(t, result.Error)
	assert.True(t, result.PacketSent)
	assert.Equal(t, models.ModeBroadcast, result.Mode)

	mac, _ := net.ParseMAC("01-23-45-67-89-ab")
	assertMagicPacket(t, readPacket(t, conn), mac)
}
