// Package schema holds the data model shared across every component of the
// provisioning pipeline: target resolution, storage layout, the mount
// stack, presets, and the persisted manifest. Grouping these in one
// dependency-light package (as the teacher does with its own pkg/schema)
// keeps pkg/probe, pkg/storage, pkg/mount, pkg/preset and pkg/bootstrap
// free of import cycles.
package schema

import "github.com/deniswernert/go-fstab"

// TargetKind tags the three ways a caller may point ALMA at storage. The
// zero value is not a valid kind.
type TargetKind int

const (
	TargetWholeDisk TargetKind = iota + 1
	TargetPartitions
	TargetImage
)

// Target is the tagged variant described in the design notes: resolved
// once by the CLI/probe layer and immutable afterward. Exactly one of the
// kind-specific field groups is meaningful, selected by Kind.
type Target struct {
	Kind TargetKind

	// TargetWholeDisk
	DiskPath  string
	Removable bool

	// TargetPartitions
	RootPartition string
	BootPartition string // empty means "no boot partition supplied"

	// TargetImage
	ImagePath  string
	ImageBytes int64
}

// HasBootPartition reports whether a Partitions target has a boot
// partition, per the StorageLayout invariant.
func (t Target) HasBootPartition() bool {
	switch t.Kind {
	case TargetPartitions:
		return t.BootPartition != ""
	default:
		return true
	}
}

// StorageLayout is what pkg/storage produces: the resolved devices and
// filesystem choices the rest of the pipeline mounts and bootstraps.
type StorageLayout struct {
	RootDevice string
	BootDevice string // empty iff the caller supplied --root-partition without --boot-partition
	RootFS     string // "ext4" or "btrfs"
	Encrypted  bool
	LuksName   string // set iff Encrypted
	LuksUUID   string // set iff Encrypted; the UUID blkid reports for the LUKS container
	LoopDevice string // set iff the target was an Image
}

// MountKind classifies an entry in the MountStack.
type MountKind int

const (
	MountFS MountKind = iota
	MountBind
	MountAPI
)

// MountEntry is one active mount. Entries are appended in nested dependency
// order and torn down in reverse.
type MountEntry struct {
	Source         string
	Target         string
	Kind           MountKind
	FilesystemType string
	Options        []string
	FstabEntry     *fstab.Mount // nil for API binds, which never appear in fstab
}

// Preset is parsed from a preset TOML document. Identity is the absolute
// path of the source file (or, for a directory-supplied preset, the
// sorted-relative path used for ordering).
type Preset struct {
	SourcePath           string
	Packages             []string `toml:"packages"`
	AURPackages          []string `toml:"aur_packages"`
	Script               string   `toml:"script"`
	EnvironmentVariables []string `toml:"environment_variables"`
	SharedDirectories    []string `toml:"shared_directories"`
}

// PresetSet is the aggregate of every preset resolved for a `create`
// invocation.
type PresetSet struct {
	Presets              []Preset
	BaseDirectory        string
	AggregatedPackages   []string
	AggregatedAUR        []string
	RequiredEnvironment  []string
}

// Manifest is the record persisted to /etc/alma/manifest.toml inside the
// installed system, letting `alma install` reproduce a `create` invocation
// against a new target.
type Manifest struct {
	Schema         int      `toml:"schema"`
	System         string   `toml:"system"`
	Filesystem     string   `toml:"filesystem"`
	Encrypted      bool     `toml:"encrypted"`
	ExtraPackages  []string `toml:"extra_packages"`
	AURPackages    []string `toml:"aur_packages"`
	AURHelper      string   `toml:"aur_helper"`
	Presets        []string `toml:"presets"`
	BootSizeMiB    int      `toml:"boot_size"`
}

// LsblkOutput models the JSON emitted by `lsblk -J -O`, used by the
// block-device probe to enumerate devices and their partition children
// without depending on a native partition-table library (the core
// orchestrates lsblk rather than reimplementing it).
type LsblkOutput struct {
	Blockdevices []LsblkDevice `json:"blockdevices,omitempty"`
}

type LsblkDevice struct {
	Name      string        `json:"name,omitempty"`
	Path      string        `json:"path,omitempty"`
	Size      int64         `json:"size,omitempty"`
	RM        bool          `json:"rm,omitempty"`
	Type      string        `json:"type,omitempty"`
	FSType    string        `json:"fstype,omitempty"`
	MountPoint string       `json:"mountpoint,omitempty"`
	Children  []LsblkDevice `json:"children,omitempty"`
}
