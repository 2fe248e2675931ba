// Package stealth generates browser fingerprints and the JavaScript
// overrides that make an automated browser present as a regular one.
// The single hard rule across the package is that navigator.webdriver
// must never surface as true.
package stealth

import (
	"fmt"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
)

// Profile identifies a browser/OS combination to impersonate.
type Profile int

const (
	WindowsChrome Profile = iota
	WindowsFirefox
	WindowsEdge
	MacChrome
	MacSafari
	MacFirefox
	LinuxChrome
	LinuxFirefox
	CustomProfile
)

// StandardProfiles returns every built-in profile, excluding CustomProfile.
func StandardProfiles() []Profile {
	return []Profile{
		WindowsChrome, WindowsFirefox, WindowsEdge,
		MacChrome, MacSafari, MacFirefox,
		LinuxChrome, LinuxFirefox,
	}
}

func (p Profile) String() string {
	switch p {
	case WindowsChrome:
		return "windows-chrome"
	case WindowsFirefox:
		return "windows-firefox"
	case WindowsEdge:
		return "windows-edge"
	case MacChrome:
		return "mac-chrome"
	case MacSafari:
		return "mac-safari"
	case MacFirefox:
		return "mac-firefox"
	case LinuxChrome:
		return "linux-chrome"
	case LinuxFirefox:
		return "linux-firefox"
	default:
		return "custom"
	}
}

// ParseProfile maps a config string to a Profile. Unknown names fall
// back to WindowsChrome, the most common real-world combination.
func ParseProfile(s string) Profile {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "windows-chrome":
		return WindowsChrome
	case "windows-firefox":
		return WindowsFirefox
	case "windows-edge":
		return WindowsEdge
	case "mac-chrome":
		return MacChrome
	case "mac-safari":
		return MacSafari
	case "mac-firefox":
		return MacFirefox
	case "linux-chrome":
		return LinuxChrome
	case "linux-firefox":
		return LinuxFirefox
	case "custom":
		return CustomProfile
	default:
		return WindowsChrome
	}
}

// Platform returns the navigator.platform value for the profile.
func (p Profile) Platform() string {
	switch p {
	case MacChrome, MacSafari, MacFirefox:
		return "MacIntel"
	case LinuxChrome, LinuxFirefox:
		return "Linux x86_64"
	default:
		return "Win32"
	}
}

// Vendor returns the navigator.vendor value for the profile. Firefox
// reports an empty vendor string.
func (p Profile) Vendor() string {
	switch p {
	case MacSafari:
		return "Apple Computer, Inc."
	case WindowsFirefox, MacFirefox, LinuxFirefox:
		return ""
	default:
		return "Google Inc."
	}
}

// ScreenResolution describes the spoofed screen geometry. Available
// height is reduced by a taskbar allowance.
type ScreenResolution struct {
	Width       int
	Height      int
	AvailWidth  int
	AvailHeight int
}

// NewScreenResolution builds a resolution with availHeight set below
// the full height to leave room for a taskbar.
func NewScreenResolution(width, height int) ScreenResolution {
	availHeight := height - 40
	if availHeight < 0 {
		availHeight = 0
	}
	return ScreenResolution{
		Width:       width,
		Height:      height,
		AvailWidth:  width,
		AvailHeight: availHeight,
	}
}

// CommonResolutions lists desktop resolutions in rough order of
// real-world prevalence.
func CommonResolutions() []ScreenResolution {
	return []ScreenResolution{
		NewScreenResolution(1920, 1080),
		NewScreenResolution(2560, 1440),
		NewScreenResolution(3840, 2160),
		NewScreenResolution(1366, 768),
		NewScreenResolution(1536, 864),
		NewScreenResolution(1440, 900),
		NewScreenResolution(1680, 1050),
		NewScreenResolution(2560, 1600),
		NewScreenResolution(2880, 1800),
	}
}

// PluginEntry is a navigator.plugins entry.
type PluginEntry struct {
	Name        string
	Description string
	Filename    string
}

// Fingerprint is the complete set of spoofed browser identity values.
type Fingerprint struct {
	UserAgent        string
	Platform         string
	Vendor           string
	Language         string
	Languages        []string
	ScreenResolution ScreenResolution
	ColorDepth       int
	PixelDepth       int
	TimezoneOffset   int
	Timezone         string
	Plugins          []PluginEntry
	Fonts            []string
	DoNotTrack       string // "1" or empty for unset
	CookieEnabled    bool
	Profile          Profile
}

// Generator produces fingerprints from seeds or profiles.
type Generator struct{}

// NewGenerator returns a fingerprint generator.
func NewGenerator() *Generator {
	return &Generator{}
}

// GenerateRandom builds a fingerprint from the current clock; each call
// can yield a different profile and tables.
func (g *Generator) GenerateRandom() Fingerprint {
	seed := uint64(time.Now().UnixNano())
	profiles := StandardProfiles()
	return g.generateWithSeed(seed, profiles[int(seed%uint64(len(profiles)))])
}

// GenerateConsistent hashes the seed string so the same seed always
// yields the same fingerprint, letting an identity persist across
// sessions.
func (g *Generator) GenerateConsistent(seed string) Fingerprint {
	hash := xxhash.Sum64String(seed)
	profiles := StandardProfiles()
	return g.generateWithSeed(hash, profiles[int(hash%uint64(len(profiles)))])
}

// GenerateFromProfile builds a fingerprint for a fixed profile with
// clock-derived table choices.
func (g *Generator) GenerateFromProfile(profile Profile) Fingerprint {
	return g.generateWithSeed(uint64(time.Now().UnixNano()), profile)
}

// GenerateSeeded builds a fingerprint for a fixed profile and numeric
// seed. Tests use it for full determinism.
func (g *Generator) GenerateSeeded(seed uint64, profile Profile) Fingerprint {
	return g.generateWithSeed(seed, profile)
}

func (g *Generator) generateWithSeed(seed uint64, profile Profile) Fingerprint {
	resolutions := CommonResolutions()
	resolution := resolutions[int(seed%uint64(len(resolutions)))]

	timezone, offset := timezoneForSeed(seed)
	languages := languagesFor(profile, seed)

	dnt := ""
	if seed%3 == 0 {
		dnt = "1"
	}

	return Fingerprint{
		UserAgent:        userAgentFor(profile, seed),
		Platform:         profile.Platform(),
		Vendor:           profile.Vendor(),
		Language:         languages[0],
		Languages:        languages,
		ScreenResolution: resolution,
		ColorDepth:       24,
		PixelDepth:       24,
		TimezoneOffset:   offset,
		Timezone:         timezone,
		Plugins:          pluginsFor(profile),
		Fonts:            fontsFor(profile),
		DoNotTrack:       dnt,
		CookieEnabled:    true,
		Profile:          profile,
	}
}

type timezoneEntry struct {
	name   string
	offset int
}

var timezones = []timezoneEntry{
	{"America/New_York", -300},
	{"America/Chicago", -360},
	{"America/Denver", -420},
	{"America/Los_Angeles", -480},
	{"Europe/London", 0},
	{"Europe/Paris", 60},
	{"Europe/Berlin", 60},
	{"Asia/Tokyo", 540},
	{"Asia/Shanghai", 480},
	{"Australia/Sydney", 600},
}

func timezoneForSeed(seed uint64) (string, int) {
	tz := timezones[int(seed%uint64(len(timezones)))]
	return tz.name, tz.offset
}

func languagesFor(profile Profile, seed uint64) []string {
	var sets [][]string
	switch profile {
	case WindowsChrome, WindowsFirefox, WindowsEdge:
		sets = [][]string{
			{"en-US", "en"},
			{"en-US", "en", "es"},
			{"en-GB", "en"},
		}
	case MacChrome, MacSafari, MacFirefox:
		sets = [][]string{
			{"en-US", "en"},
			{"en-US", "en", "fr"},
			{"en-GB", "en"},
		}
	case LinuxChrome, LinuxFirefox:
		sets = [][]string{
			{"en-US", "en"},
			{"en-US", "en", "de"},
			{"en-GB", "en"},
		}
	default:
		sets = [][]string{{"en-US", "en"}}
	}
	src := sets[int(seed%uint64(len(sets)))]
	out := make([]string, len(src))
	copy(out, src)
	return out
}

var chromiumPlugins = []PluginEntry{
	{Name: "PDF Viewer", Description: "Portable Document Format", Filename: "internal-pdf-viewer"},
	{Name: "Chrome PDF Viewer", Description: "Portable Document Format", Filename: "internal-pdf-viewer"},
	{Name: "Chromium PDF Viewer", Description: "Portable Document Format", Filename: "internal-pdf-viewer"},
	{Name: "Microsoft Edge PDF Viewer", Description: "Portable Document Format", Filename: "internal-pdf-viewer"},
	{Name: "WebKit built-in PDF", Description: "Portable Document Format", Filename: "internal-pdf-viewer"},
}

func pluginsFor(profile Profile) []PluginEntry {
	switch profile {
	case WindowsChrome, MacChrome, LinuxChrome, WindowsEdge:
		out := make([]PluginEntry, len(chromiumPlugins))
		copy(out, chromiumPlugins)
		return out
	case MacSafari:
		return []PluginEntry{
			{Name: "WebKit built-in PDF", Description: "Portable Document Format", Filename: "WebKitPDFPlugin"},
		}
	default:
		// Firefox exposes no plugins.
		return nil
	}
}

var baseFonts = []string{
	"Arial", "Arial Black", "Comic Sans MS", "Courier New", "Georgia",
	"Impact", "Times New Roman", "Trebuchet MS", "Verdana",
}

func fontsFor(profile Profile) []string {
	fonts := make([]string, 0, len(baseFonts)+6)
	fonts = append(fonts, baseFonts...)
	switch profile {
	case WindowsChrome, WindowsFirefox, WindowsEdge:
		fonts = append(fonts, "Calibri", "Cambria", "Consolas", "Segoe UI", "Tahoma", "Microsoft Sans Serif")
	case MacChrome, MacSafari, MacFirefox:
		fonts = append(fonts, "Helvetica", "Helvetica Neue", "Lucida Grande", "Monaco", "Menlo", "SF Pro")
	case LinuxChrome, LinuxFirefox:
		fonts = append(fonts, "DejaVu Sans", "DejaVu Serif", "Liberation Sans", "Liberation Serif", "Ubuntu", "Noto Sans")
	}
	return fonts
}

var userAgents = map[Profile][]string{
	WindowsChrome: {
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/119.0.0.0 Safari/537.36",
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/121.0.0.0 Safari/537.36",
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/122.0.0.0 Safari/537.36",
	},
	WindowsFirefox: {
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:121.0) Gecko/20100101 Firefox/121.0",
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:120.0) Gecko/20100101 Firefox/120.0",
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:122.0) Gecko/20100101 Firefox/122.0",
	},
	WindowsEdge: {
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36 Edg/120.0.0.0",
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/121.0.0.0 Safari/537.36 Edg/121.0.0.0",
	},
	MacChrome: {
		"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/121.0.0.0 Safari/537.36",
		"Mozilla/5.0 (Macintosh; Intel Mac OS X 14_0) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	},
	MacSafari: {
		"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.2 Safari/605.1.15",
		"Mozilla/5.0 (Macintosh; Intel Mac OS X 14_0) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.1 Safari/605.1.15",
	},
	MacFirefox: {
		"Mozilla/5.0 (Macintosh; Intel Mac OS X 10.15; rv:121.0) Gecko/20100101 Firefox/121.0",
		"Mozilla/5.0 (Macintosh; Intel Mac OS X 14.0; rv:120.0) Gecko/20100101 Firefox/120.0",
	},
	LinuxChrome: {
		"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/121.0.0.0 Safari/537.36",
	},
	LinuxFirefox: {
		"Mozilla/5.0 (X11; Linux x86_64; rv:121.0) Gecko/20100101 Firefox/121.0",
		"Mozilla/5.0 (X11; Ubuntu; Linux x86_64; rv:120.0) Gecko/20100101 Firefox/120.0",
	},
}

func userAgentFor(profile Profile, seed uint64) string {
	agents, ok := userAgents[profile]
	if !ok {
		agents = userAgents[WindowsChrome]
	}
	return agents[int(seed%uint64(len(agents)))]
}

// ScriptOverrides renders the JavaScript that pins screen, timezone,
// plugin and font properties to this fingerprint. Navigator identity
// fields are handled separately by NavigatorOverrides.
func (f Fingerprint) ScriptOverrides() string {
	var b strings.Builder

	fmt.Fprintf(&b, `
// Screen property overrides
Object.defineProperty(screen, 'width', {
    get: function() { return %d; },
    configurable: true
});
Object.defineProperty(screen, 'height', {
    get: function() { return %d; },
    configurable: true
});
Object.defineProperty(screen, 'availWidth', {
    get: function() { return %d; },
    configurable: true
});
Object.defineProperty(screen, 'availHeight', {
    get: function() { return %d; },
    configurable: true
});
Object.defineProperty(screen, 'colorDepth', {
    get: function() { return %d; },
    configurable: true
});
Object.defineProperty(screen, 'pixelDepth', {
    get: function() { return %d; },
    configurable: true
});
`, f.ScreenResolution.Width, f.ScreenResolution.Height,
		f.ScreenResolution.AvailWidth, f.ScreenResolution.AvailHeight,
		f.ColorDepth, f.PixelDepth)

	fmt.Fprintf(&b, `
// Timezone override
Date.prototype.getTimezoneOffset = function() {
    return %d;
};

const originalResolvedOptions = Intl.DateTimeFormat.prototype.resolvedOptions;
Intl.DateTimeFormat.prototype.resolvedOptions = function() {
    const options = originalResolvedOptions.call(this);
    options.timeZone = "%s";
    return options;
};

Object.defineProperty(navigator, 'cookieEnabled', {
    get: function() { return %t; },
    configurable: true
});

Object.defineProperty(navigator, 'doNotTrack', {
    get: function() { return %s; },
    configurable: true
});
`, f.TimezoneOffset, EscapeJSString(f.Timezone), f.CookieEnabled, jsStringOrNull(f.DoNotTrack))

	fmt.Fprintf(&b, `
// Font detection defense
(function() {
    const knownFonts = %s;
    const originalMeasureText = CanvasRenderingContext2D.prototype.measureText;
    CanvasRenderingContext2D.prototype.measureText = function(text) {
        const result = originalMeasureText.call(this, text);
        const noise = (Math.random() - 0.5) * 0.00001;
        const originalWidth = result.width;
        Object.defineProperty(result, 'width', {
            get: function() { return originalWidth + noise; },
            configurable: true
        });
        return result;
    };
})();
`, fontsToJSON(f.Fonts))

	return b.String()
}

func fontsToJSON(fonts []string) string {
	entries := make([]string, len(fonts))
	for i, f := range fonts {
		entries[i] = `"` + EscapeJSString(f) + `"`
	}
	return "[" + strings.Join(entries, ",") + "]"
}

func jsStringOrNull(s string) string {
	if s == "" {
		return "null"
	}
	return `"` + EscapeJSString(s) + `"`
}

// EscapeJSString escapes a value for embedding inside a double-quoted
// JavaScript string literal. Control characters and the JS line
// terminators U+2028/U+2029 escape to \uXXXX so arbitrary input cannot
// break out of the literal.
func EscapeJSString(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch r {
		case '\\':
			b.WriteString(`\\`)
		case '"':
			b.WriteString(`\"`)
		case '\'':
			b.WriteString(`\'`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\t':
			b.WriteString(`\t`)
		case ' ', ' ':
			fmt.Fprintf(&b, `\u%04x`, r)
		default:
			if r < 0x20 || r == 0x7f {
				fmt.Fprintf(&b, `\u%04x`, r)
			} else {
				b.WriteRune(r)
			}
		}
	}
	return b.String()
}

// Builder assembles a custom fingerprint starting from a generated one.
type Builder struct {
	fp Fingerprint
}

// NewBuilder starts from a default Windows Chrome fingerprint.
func NewBuilder() *Builder {
	return &Builder{fp: NewGenerator().GenerateFromProfile(WindowsChrome)}
}

// FromFingerprint starts from an existing fingerprint.
func FromFingerprint(fp Fingerprint) *Builder {
	return &Builder{fp: fp}
}

func (b *Builder) UserAgent(ua string) *Builder {
	b.fp.UserAgent = ua
	return b
}

func (b *Builder) Platform(platform string) *Builder {
	b.fp.Platform = platform
	return b
}

func (b *Builder) Vendor(vendor string) *Builder {
	b.fp.Vendor = vendor
	return b
}

func (b *Builder) Languages(languages []string) *Builder {
	if len(languages) > 0 {
		b.fp.Language = languages[0]
	}
	b.fp.Languages = languages
	return b
}

func (b *Builder) Resolution(width, height int) *Builder {
	b.fp.ScreenResolution = NewScreenResolution(width, height)
	return b
}

func (b *Builder) ColorDepth(depth int) *Builder {
	b.fp.ColorDepth = depth
	b.fp.PixelDepth = depth
	return b
}

func (b *Builder) Timezone(name string, offset int) *Builder {
	b.fp.Timezone = name
	b.fp.TimezoneOffset = offset
	return b
}

func (b *Builder) DoNotTrack(dnt string) *Builder {
	b.fp.DoNotTrack = dnt
	return b
}

func (b *Builder) Build() Fingerprint {
	return b.fp
}
