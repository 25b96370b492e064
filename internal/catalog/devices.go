package catalog

import (
	"errors"
	"fmt"
	"strings"
)

// DeviceID names one entry of the device size catalog.
type DeviceID string

const (
	Device67           DeviceID = "6.7"
	Device61           DeviceID = "6.1"
	Device55           DeviceID = "5.5"
	DeviceIPad11       DeviceID = "11.0"
	DeviceIPad129      DeviceID = "12.9"
	DeviceAndroidPhone DeviceID = "android-phone"
	DeviceAndroid7     DeviceID = "android-7"
	DeviceAndroid10    DeviceID = "android-10"
)

// DeviceSize is a store listing canvas size in pixels.
type DeviceSize struct {
	ID     DeviceID `json:"id"`
	Name   string   `json:"name"`
	Width  int      `json:"width"`
	Height int      `json:"height"`
}

// ErrUnknownDevice is returned for ids outside the catalog.
var ErrUnknownDevice = errors.New("unknown device size")

var devices = map[DeviceID]DeviceSize{
	Device67:           {ID: Device67, Name: `iPhone 16 Pro Max (6.7")`, Width: 1290, Height: 2796},
	Device61:           {ID: Device61, Name: `iPhone 16 / 15 (6.1")`, Width: 1179, Height: 2556},
	Device55:           {ID: Device55, Name: `iPhone 8 Plus (5.5")`, Width: 1242, Height: 2208},
	DeviceIPad11:       {ID: DeviceIPad11, Name: `iPad Pro (11")`, Width: 1668, Height: 2388},
	DeviceIPad129:      {ID: DeviceIPad129, Name: `iPad Pro (12.9")`, Width: 2048, Height: 2732},
	DeviceAndroidPhone: {ID: DeviceAndroidPhone, Name: "Google Play Phone (1080×1920)", Width: 1080, Height: 1920},
	DeviceAndroid7:     {ID: DeviceAndroid7, Name: "Google Play 7-inch (1200×1920)", Width: 1200, Height: 1920},
	DeviceAndroid10:    {ID: DeviceAndroid10, Name: "Google Play 10-inch (1600×2560)", Width: 1600, Height: 2560},
}

var deviceOrder = []DeviceID{
	Device67, Device61, Device55, DeviceIPad11, DeviceIPad129,
	DeviceAndroidPhone, DeviceAndroid7, DeviceAndroid10,
}

// ParseDeviceID validates a raw id against the catalog.
func ParseDeviceID(raw string) (DeviceID, error) {
	id := DeviceID(strings.TrimSpace(raw))
	if _, ok := devices[id]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownDevice, raw)
	}
	return id, nil
}

// Device returns the catalog entry for id.
func Device(id DeviceID) (DeviceSize, bool) {
	d, ok := devices[id]
	return d, ok
}

// Devices lists the whole catalog in display order.
func Devices() []DeviceSize {
	out := make([]DeviceSize, 0, len(deviceOrder))
	for _, id := range deviceOrder {
		out = append(out, devices[id])
	}
	return out
}

// ResolveDevices maps raw ids to sizes, silently dropping unknown ids.
// An empty input selects the 6.7" iPhone size.
func ResolveDevices(raw []string) []DeviceSize {
	if len(raw) == 0 {
		raw = []string{string(Device67)}
	}
	out := make([]DeviceSize, 0, len(raw))
	seen := make(map[DeviceID]bool, len(raw))
	for _, r := range raw {
		id, err := ParseDeviceID(r)
		if err != nil || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, devices[id])
	}
	return out
}
