package devices

import (
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/sys/unix"

	"github.com/UtsahaJoshi/The-New-Hires/internal/services"
)

// Kind is the class of a capture node.
type Kind string

const (
	KindVideo Kind = "video"
	KindAudio Kind = "audio"
)

// Default globs for capture nodes.
var (
	VideoGlob = "/dev/video*"
	AudioGlob = "/dev/snd/pcmC*D*c"
)

// Node describes one capture device node.
type Node struct {
	Path string
	Kind Kind
	// Err is nil when the node can be opened for capture.
	Err error
}

// Accessible reports whether the node passed Probe.
func (n Node) Accessible() bool { return n.Err == nil }

// IsPath reports whether device names a filesystem node rather than a
// backend source name such as "default".
func IsPath(device string) bool {
	return strings.HasPrefix(strings.TrimSpace(device), "/")
}

// Probe checks that path exists and is readable and writable by this process.
func Probe(path string) error {
	path = strings.TrimSpace(path)
	if path == "" {
		return services.Wrap(services.ErrDeviceUnavailable, "devices", "probe", "no device configured", nil)
	}
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return services.Wrap(services.ErrDeviceUnavailable, "devices", "probe", path+" not present", nil)
		}
		if errors.Is(err, os.ErrPermission) {
			return services.Wrap(services.ErrPermissionDenied, "devices", "probe", path, err)
		}
		return services.Wrap(services.ErrDeviceUnavailable, "devices", "probe", path, err)
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK); err != nil {
		if errors.Is(err, unix.EACCES) || errors.Is(err, unix.EPERM) {
			return services.Wrap(services.ErrPermissionDenied, "devices", "probe", path+" not accessible (check video/audio group membership)", err)
		}
		return services.Wrap(services.ErrDeviceUnavailable, "devices", "probe", path, err)
	}
	return nil
}

// List returns every video and audio capture node found under the default
// globs, sorted by path, with probe results attached.
func List() ([]Node, error) {
	return ListMatching(map[Kind]string{KindVideo: VideoGlob, KindAudio: AudioGlob})
}

// ListMatching is List with explicit globs per kind.
func ListMatching(globs map[Kind]string) ([]Node, error) {
	var nodes []Node
	for kind, pattern := range globs {
		matches, err := filepath.Glob(pattern)
		if err != nil {
			return nil, services.Wrap(nil, "devices", "list", "bad pattern "+pattern, err)
		}
		for _, match := range matches {
			nodes = append(nodes, Node{Path: match, Kind: kind, Err: Probe(match)})
		}
	}
	sort.Slice(nodes, func(i, j int) bool {
		if nodes[i].Kind != nodes[j].Kind {
			return nodes[i].Kind > nodes[j].Kind
		}
		return nodes[i].Path < nodes[j].Path
	})
	return nodes, nil
}
