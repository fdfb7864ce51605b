package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"

	dm "github.com/andrej220/netexec/pkg/shared-models"
)

func validDevice() dm.DeviceDescriptor {
	return dm.DeviceDescriptor{
		DeviceType: "cisco_ios",
		Host:       "h",
		Username:   "u",
		Password:   "p",
	}
}

func TestValidateDevice(t *testing.T) {
	tests := []struct {
		name       string
		mutate     func(d *dm.DeviceDescriptor)
		wantValid  bool
		wantReason string
	}{
		{
			name:      "valid cisco_ios",
			mutate:    func(d *dm.DeviceDescriptor) {},
			wantValid: true,
		},
		{
			name:       "unsupported type",
			mutate:     func(d *dm.DeviceDescriptor) { d.DeviceType = "windows" },
			wantReason: "Unsupported device type: windows",
		},
		{
			name:       "missing device type",
			mutate:     func(d *dm.DeviceDescriptor) { d.DeviceType = "" },
			wantReason: "Missing required field: device_type",
		},
		{
			name:       "missing host",
			mutate:     func(d *dm.DeviceDescriptor) { d.Host = "" },
			wantReason: "Missing required field: host",
		},
		{
			name:       "missing username",
			mutate:     func(d *dm.DeviceDescriptor) { d.Username = "" },
			wantReason: "Missing required field: username",
		},
		{
			name:       "missing password",
			mutate:     func(d *dm.DeviceDescriptor) { d.Password = "" },
			wantReason: "Missing required field: password",
		},
		{
			name: "first missing field wins",
			mutate: func(d *dm.DeviceDescriptor) {
				d.Host = ""
				d.Password = ""
			},
			wantReason: "Missing required field: host",
		},
		{
			name:       "case sensitive type",
			mutate:     func(d *dm.DeviceDescriptor) { d.DeviceType = "Cisco_IOS" },
			wantReason: "Unsupported device type: Cisco_IOS",
		},
		{
			name:      "extras are ignored",
			mutate:    func(d *dm.DeviceDescriptor) { d.Extra = map[string]any{"port": 22} },
			wantValid: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dev := validDevice()
			tt.mutate(&dev)
			valid, reason := ValidateDevice(dev)
			assert.Equal(t, tt.wantValid, valid)
			assert.Equal(t, tt.wantReason, reason)
		})
	}
}

func TestEveryDeviceTypeAccepted(t *testing.T) {
	types := SupportedDeviceTypes()
	assert.Len(t, types, 11)
	for _, typ := range types {
		dev := validDevice()
		dev.DeviceType = typ
		valid, reason := ValidateDevice(dev)
		assert.True(t, valid, "%s: %s", typ, reason)
	}
}

func TestSupportedDeviceTypesIsACopy(t *testing.T) {
	types := SupportedDeviceTypes()
	types[0] = "windows"
	assert.True(t, IsSupported("cisco_ios"))
	assert.False(t, IsSupported("windows"))
}
