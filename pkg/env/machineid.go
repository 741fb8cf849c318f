package env

import (
	"github.com/denisbrodbeck/machineid"
	"github.com/golang/glog"
)

const machineIDAppKey = "odrive.go"

// MachineID retrieves an ID of this machine, hashed so the raw ID isn't
// published. It falls back to "odrive" when the ID is unavailable.
func MachineID() string {
	id, err := machineid.ProtectedID(machineIDAppKey)
	if err != nil {
		glog.Warningf("machine ID unavailable: %v", err)
		return "odrive"
	}
	return id[:12]
}
