package profile

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Engine identifies the transcoder that executes a profile.
type Engine string

const (
	EngineFFmpeg Engine = "ffmpeg"
	EngineDrapto Engine = "drapto"
)

// DefaultCRF is used when no quality is configured.
const DefaultCRF = 20

// Placeholders substituted by Args.
const (
	placeholderCRF  = "{crf}"
	placeholderSize = "{size}"
)

// Profile is an output format: encoder arguments, container extension, and
// an optional fixed frame size that a probed resolution may replace.
type Profile struct {
	Name        string
	Aliases     []string
	Description string
	Engine      Engine
	// Template holds encoder arguments with {crf} and {size} placeholders.
	Template  []string
	Extension string
	// FixedResolution is the default frame size ("640x480"). Empty means the
	// profile keeps the source size and never takes a probed one.
	FixedResolution string
	// OwnMapping profiles select streams themselves; the executor does not add
	// its default video/audio maps.
	OwnMapping bool
	CRF        int
}

// Overridable reports whether a probed resolution may replace FixedResolution.
func (p Profile) Overridable() bool {
	return p.FixedResolution != ""
}

// Args renders the encoder arguments. size replaces the fixed resolution when
// non-empty and the profile is overridable. The template is never modified,
// so every call starts from the profile's own defaults.
func (p Profile) Args(size string) []string {
	if !p.Overridable() || strings.TrimSpace(size) == "" {
		size = p.FixedResolution
	}
	crf := p.CRF
	out := make([]string, len(p.Template))
	for i, arg := range p.Template {
		arg = strings.ReplaceAll(arg, placeholderCRF, strconv.Itoa(crf))
		arg = strings.ReplaceAll(arg, placeholderSize, size)
		out[i] = arg
	}
	return out
}

// OutputName returns base with the profile extension appended.
func (p Profile) OutputName(base string) string {
	return base + p.Extension
}

var builtins = []Profile{
	{
		Name:        "h264",
		Aliases:     []string{"H.264", "x264", "avc"},
		Description: "H.264 MP4, deinterlaced, 640x480 unless probed",
		Engine:      EngineFFmpeg,
		Template: []string{
			"-c:v", "libx264", "-pix_fmt", "yuv420p", "-movflags", "faststart",
			"-b:v", "3500000", "-b:a", "160000", "-ar", "48000",
			"-s", placeholderSize, "-vf", "yadif", "-crf", placeholderCRF,
		},
		Extension:       ".mp4",
		FixedResolution: "640x480",
	},
	{
		Name:        "h265",
		Aliases:     []string{"H.265", "x265", "hevc"},
		Description: "H.265 MP4, deinterlaced, 640x480 unless probed",
		Engine:      EngineFFmpeg,
		Template: []string{
			"-c:v", "libx265", "-pix_fmt", "yuv420p", "-movflags", "faststart",
			"-b:v", "3500000", "-b:a", "160000", "-ar", "48000",
			"-s", placeholderSize, "-vf", "yadif", "-crf", placeholderCRF,
		},
		Extension:       ".mp4",
		FixedResolution: "640x480",
	},
	{
		Name:        "prores",
		Aliases:     []string{"ProRes", "prores-hq"},
		Description: "ProRes 422 HQ with 24-bit PCM in QuickTime",
		Engine:      EngineFFmpeg,
		Template: []string{
			"-c:v", "prores", "-profile:v", "3",
			"-c:a", "pcm_s24le", "-ar", "48000",
		},
		Extension: ".mov",
	},
	{
		Name:        "v210",
		Aliases:     []string{"uncompressed"},
		Description: "10-bit uncompressed 4:2:2 in QuickTime, SMPTE 170M tagged",
		Engine:      EngineFFmpeg,
		Template: []string{
			"-movflags", "write_colr+faststart",
			"-color_primaries", "smpte170m", "-color_trc", "bt709", "-colorspace", "smpte170m", "-color_range", "mpeg",
			"-vf", "setfield=bff,setdar=4/3",
			"-c:v", "v210", "-c:a", "pcm_s24le", "-ar", "48000",
		},
		Extension: ".mov",
	},
	{
		Name:        "ffv1",
		Aliases:     []string{"FFv1", "lossless-archival", "lossless"},
		Description: "FFV1 level 3 lossless archival Matroska, all streams kept",
		Engine:      EngineFFmpeg,
		Template: []string{
			"-map", "0", "-dn",
			"-c:v", "ffv1", "-level", "3", "-coder", "1", "-context", "1", "-g", "1",
			"-slicecrc", "1", "-slices", "24", "-field_order", "bb",
			"-color_primaries", "smpte170m", "-color_trc", "bt709", "-colorspace", "smpte170m",
			"-c:a", "copy",
		},
		Extension:  ".mkv",
		OwnMapping: true,
	},
	{
		Name:        "av1",
		Aliases:     []string{"drapto", "svt-av1"},
		Description: "AV1 Matroska via the Drapto encoder (crop detection, grain-aware)",
		Engine:      EngineDrapto,
		Extension:   ".mkv",
	},
}

// All returns the built-in profiles sorted by name.
func All() []Profile {
	out := make([]Profile, len(builtins))
	copy(out, builtins)
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Lookup finds a profile by name or alias. Matching ignores case and the
// punctuation in names such as "H.264" or "lossless-archival".
func Lookup(name string) (Profile, error) {
	key := lookupKey(name)
	if key == "" {
		return Profile{}, fmt.Errorf("profile name is empty")
	}
	for _, p := range builtins {
		if lookupKey(p.Name) == key {
			return clone(p), nil
		}
		for _, alias := range p.Aliases {
			if lookupKey(alias) == key {
				return clone(p), nil
			}
		}
	}
	return Profile{}, fmt.Errorf("unknown profile %q (available: %s)", name, strings.Join(names(), ", "))
}

// Resolve looks up name and applies crf.
func Resolve(name string, crf int) (Profile, error) {
	p, err := Lookup(name)
	if err != nil {
		return Profile{}, err
	}
	if crf < 0 || crf > 51 {
		return Profile{}, fmt.Errorf("crf %d out of range 0-51", crf)
	}
	p.CRF = crf
	return p, nil
}

func clone(p Profile) Profile {
	p.CRF = DefaultCRF
	p.Aliases = append([]string(nil), p.Aliases...)
	p.Template = append([]string(nil), p.Template...)
	return p
}

func names() []string {
	out := make([]string, 0, len(builtins))
	for _, p := range builtins {
		out = append(out, p.Name)
	}
	sort.Strings(out)
	return out
}

func lookupKey(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(strings.TrimSpace(name)) {
		switch r {
		case '.', '-', '_', ' ':
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
