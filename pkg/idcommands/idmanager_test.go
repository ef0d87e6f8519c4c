package idcommands

import (
	"errors"
	"testing"

	psnet "github.com/shirou/gopsutil/v3/net"
	"github.com/stretchr/testify/assert"
)

func stubProbes(t *testing.T, id string, idErr error, ifaces psnet.InterfaceStatList) {
	t.Helper()
	origID, origIfaces := hostID, interfaces
	t.Cleanup(func() { hostID, interfaces = origID, origIfaces })
	hostID = func() (string, error) { return id, idErr }
	interfaces = func() (psnet.InterfaceStatList, error) { return ifaces, nil }
}

func TestGenerateAgentIDIsStable(t *testing.T) {
	stubProbes(t, "machine-1", nil, psnet.InterfaceStatList{
		{Name: "lo", HardwareAddr: "", Flags: []string{"up", "loopback"}},
		{Name: "eth1", HardwareAddr: "AA:BB:CC:00:00:02", Flags: []string{"up", "broadcast"}},
		{Name: "eth0", HardwareAddr: "aa:bb:cc:00:00:01", Flags: []string{"up", "broadcast"}},
		{Name: "wlan0", HardwareAddr: "00:00:00:00:00:00", Flags: []string{"broadcast"}},
	})

	first := GenerateAgentID()
	assert.Equal(t, first, GenerateAgentID())
	assert.Regexp(t, `^navlink-[0-9a-f]{12}$`, first)

	mac, err := getPrimaryMACAddress()
	assert.NoError(t, err)
	assert.Equal(t, "aa:bb:cc:00:00:01", mac)
}

func TestGenerateAgentIDDependsOnMachine(t *testing.T) {
	stubProbes(t, "machine-1", nil, nil)
	a := GenerateAgentID()
	stubProbes(t, "machine-2", nil, nil)
	assert.NotEqual(t, a, GenerateAgentID())
}

func TestGenerateAgentIDFallsBackToRandom(t *testing.T) {
	stubProbes(t, "", errors.New("no machine id"), nil)

	a, b := GenerateAgentID(), GenerateAgentID()
	assert.Regexp(t, `^navlink-[0-9a-f]{12}$`, a)
	assert.NotEqual(t, a, b)
}
