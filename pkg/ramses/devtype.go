// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package ramses

// DeviceTypeSlugs is the closed device-type registry of §6: a two-digit
// decimal device-type code mapped to its class slug. It is part of the wire
// ABI — bit-level identity tests (has_ctl, array source checks) depend on the
// exact codes present here, not just the slugs.
var DeviceTypeSlugs = map[string]string{
	"01": "CTL",
	"02": "UFC",
	"03": "STA",
	"04": "TRV",
	"07": "DHW",
	"10": "OTB",
	"12": "THM",
	"13": "BDR",
	"17": "OUT",
	"18": "HGI",
	"22": "THm",
	"23": "PRG",
	"30": "RFG",
	"32": "HUM",
	"34": "STA",
	"63": "NUL",
}

// DeviceTypeSlug returns the registry slug for a device type, or "" if the
// type is not part of the closed registry. Unknown types are tolerated at the
// frame layer (see §6): they simply produce no entity effect.
func DeviceTypeSlug(devType string) string {
	return DeviceTypeSlugs[devType]
}

// controllerTypes is the set of device types treated as a "controller"
// endpoint for has_ctl/entity-graph purposes (01 CTL, 02 UFC, 23 PRG).
var controllerTypes = map[string]bool{"01": true, "02": true, "23": true}

// IsControllerType reports whether devType is one of the controller classes.
func IsControllerType(devType string) bool {
	return controllerTypes[devType]
}
