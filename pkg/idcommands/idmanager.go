// Package idcommands derives a stable installation identity from the host.
package idcommands

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/shirou/gopsutil/v3/host"
	psnet "github.com/shirou/gopsutil/v3/net"
)

const idLength = 12

// probes are replaced in tests.
var (
	hostID     = host.HostID
	interfaces = psnet.Interfaces
)

// GenerateAgentID returns an identity that stays the same across runs on one
// machine. It hashes the OS machine id with the primary MAC address and falls
// back to a random id when the machine id is unavailable.
func GenerateAgentID() string {
	machineID, err := getMachineID()
	if err != nil {
		return "navlink-" + strings.ReplaceAll(uuid.NewString(), "-", "")[:idLength]
	}
	macAddr, err := getPrimaryMACAddress()
	if err != nil {
		macAddr = "no-network"
	}
	hash := sha256.Sum256([]byte(machineID + ":" + macAddr))
	return fmt.Sprintf("navlink-%x", hash)[:len("navlink-")+idLength]
}

func getMachineID() (string, error) {
	id, err := hostID()
	if err != nil {
		return "", fmt.Errorf("failed to query machine id: %w", err)
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return "", errors.New("machine id is empty")
	}
	return id, nil
}

// getPrimaryMACAddress picks the lowest hardware address among interfaces that
// are up and not loopback, so the choice does not depend on enumeration order.
func getPrimaryMACAddress() (string, error) {
	ifaces, err := interfaces()
	if err != nil {
		return "", fmt.Errorf("failed to list interfaces: %w", err)
	}
	var candidates []string
	for _, iface := range ifaces {
		if iface.HardwareAddr == "" || !hasFlag(iface.Flags, "up") || hasFlag(iface.Flags, "loopback") {
			continue
		}
		candidates = append(candidates, strings.ToLower(iface.HardwareAddr))
	}
	if len(candidates) == 0 {
		return "", errors.New("no active network adapter found")
	}
	sort.Strings(candidates)
	return candidates[0], nil
}

func hasFlag(flags []string, want string) bool {
	for _, f := range flags {
		if strings.EqualFold(f, want) {
			return true
		}
	}
	return false
}
