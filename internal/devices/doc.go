// Package devices discovers capture hardware nodes and watches for hot-plug
// events.
//
// Probe classifies a node as accessible, missing (services.ErrDeviceUnavailable)
// or refused (services.ErrPermissionDenied) using access(2). Watcher listens
// on the udev netlink socket for video4linux and sound add/remove events so
// callers can wait for a camera to appear instead of failing immediately.
package devices
