// Package validation gates device descriptors before any session is opened.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	dm "github.com/andrej220/netexec/pkg/shared-models"
)

var supportedDeviceTypes = []string{
	"cisco_ios",
	"cisco_xe",
	"cisco_nxos",
	"cisco_asa",
	"arista_eos",
	"juniper_junos",
	"hp_comware",
	"huawei",
	"fortinet",
	"paloalto_panos",
	"linux",
}

var validate *validator.Validate

func init() {
	validate = validator.New()

	// report fields by their JSON names
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	_ = validate.RegisterValidation("devicetype", validateDeviceType)
}

func validateDeviceType(fl validator.FieldLevel) bool {
	return IsSupported(fl.Field().String())
}

// SupportedDeviceTypes returns the device types a descriptor may name.
func SupportedDeviceTypes() []string {
	out := make([]string, len(supportedDeviceTypes))
	copy(out, supportedDeviceTypes)
	return out
}

func IsSupported(deviceType string) bool {
	for _, t := range supportedDeviceTypes {
		if t == deviceType {
			return true
		}
	}
	return false
}

// ValidateDevice reports whether dev may be handed to a session provider.
// On failure the reason names the first offending field.
func ValidateDevice(dev dm.DeviceDescriptor) (bool, string) {
	err := validate.Struct(dev)
	if err == nil {
		return true, ""
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return false, err.Error()
	}

	fe := verrs[0]
	switch fe.Tag() {
	case "required":
		return false, fmt.Sprintf("Missing required field: %s", fe.Field())
	case "devicetype":
		return false, fmt.Sprintf("Unsupported device type: %v", fe.Value())
	default:
		return false, fmt.Sprintf("Invalid field %s: failed %q check", fe.Field(), fe.Tag())
	}
}
