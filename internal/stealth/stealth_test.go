package stealth

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateConsistentIsDeterministic(t *testing.T) {
	g := NewGenerator()

	a := g.GenerateConsistent("session-abc")
	b := g.GenerateConsistent("session-abc")

	assert.Equal(t, a.UserAgent, b.UserAgent)
	assert.Equal(t, a.Platform, b.Platform)
	assert.Equal(t, a.Timezone, b.Timezone)
	assert.Equal(t, a.ScreenResolution, b.ScreenResolution)
	assert.Equal(t, a.Languages, b.Languages)
	assert.Equal(t, a.DoNotTrack, b.DoNotTrack)
}

func TestGenerateConsistentDiffersAcrossSeeds(t *testing.T) {
	g := NewGenerator()

	a := g.GenerateConsistent("session-one")
	b := g.GenerateConsistent("session-two")

	// Different seeds should not produce byte-identical identities.
	same := a.UserAgent == b.UserAgent &&
		a.Timezone == b.Timezone &&
		a.ScreenResolution == b.ScreenResolution
	assert.False(t, same)
}

func TestProfilePlatformAndVendor(t *testing.T) {
	cases := []struct {
		profile  Profile
		platform string
		vendor   string
	}{
		{WindowsChrome, "Win32", "Google Inc."},
		{WindowsEdge, "Win32", "Google Inc."},
		{WindowsFirefox, "Win32", ""},
		{MacChrome, "MacIntel", "Google Inc."},
		{MacSafari, "MacIntel", "Apple Computer, Inc."},
		{MacFirefox, "MacIntel", ""},
		{LinuxChrome, "Linux x86_64", "Google Inc."},
		{LinuxFirefox, "Linux x86_64", ""},
		{CustomProfile, "Win32", "Google Inc."},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.platform, tc.profile.Platform(), tc.profile.String())
		assert.Equal(t, tc.vendor, tc.profile.Vendor(), tc.profile.String())
	}
}

func TestParseProfileRoundTrip(t *testing.T) {
	for _, p := range StandardProfiles() {
		assert.Equal(t, p, ParseProfile(p.String()))
	}
	assert.Equal(t, WindowsChrome, ParseProfile("no-such-profile"))
	assert.Equal(t, CustomProfile, ParseProfile("custom"))
}

func TestDoNotTrackFollowsSeed(t *testing.T) {
	g := NewGenerator()

	withDNT := g.GenerateSeeded(9, WindowsChrome)
	assert.Equal(t, "1", withDNT.DoNotTrack)

	withoutDNT := g.GenerateSeeded(10, WindowsChrome)
	assert.Empty(t, withoutDNT.DoNotTrack)
}

func TestPluginCountsPerProfile(t *testing.T) {
	g := NewGenerator()

	assert.Len(t, g.GenerateSeeded(1, WindowsChrome).Plugins, 5)
	assert.Len(t, g.GenerateSeeded(1, WindowsEdge).Plugins, 5)
	assert.Len(t, g.GenerateSeeded(1, MacSafari).Plugins, 1)
	assert.Empty(t, g.GenerateSeeded(1, WindowsFirefox).Plugins)
	assert.Empty(t, g.GenerateSeeded(1, LinuxFirefox).Plugins)
}

func TestAvailHeightLeavesTaskbarRoom(t *testing.T) {
	r := NewScreenResolution(1920, 1080)
	assert.Equal(t, 1920, r.AvailWidth)
	assert.Equal(t, 1040, r.AvailHeight)
}

func TestFontsIncludePlatformSet(t *testing.T) {
	g := NewGenerator()

	win := g.GenerateSeeded(1, WindowsChrome)
	assert.Contains(t, win.Fonts, "Segoe UI")
	assert.Contains(t, win.Fonts, "Arial")

	mac := g.GenerateSeeded(1, MacSafari)
	assert.Contains(t, mac.Fonts, "Helvetica Neue")

	linux := g.GenerateSeeded(1, LinuxChrome)
	assert.Contains(t, linux.Fonts, "DejaVu Sans")
	assert.NotContains(t, linux.Fonts, "Segoe UI")
}

func TestNavigatorFromFingerprint(t *testing.T) {
	g := NewGenerator()
	fp := g.GenerateSeeded(42, MacSafari)

	nav := NavigatorFromFingerprint(fp)

	assert.False(t, nav.Webdriver)
	assert.Equal(t, fp.UserAgent, nav.UserAgent)
	assert.Equal(t, "MacIntel", nav.Platform)
	assert.Equal(t, "Netscape", nav.AppName)
	assert.Equal(t, "Gecko", nav.Product)
	assert.Equal(t, 8, nav.HardwareConcurrency)
	assert.Equal(t, 0, nav.MaxTouchPoints)
	assert.Equal(t, "Mozilla/"+nav.AppVersion, fp.UserAgent)
}

func TestEnsureNoWebdriverPanics(t *testing.T) {
	nav := DefaultNavigatorOverrides()
	nav.Webdriver = true

	assert.Panics(t, func() { nav.EnsureNoWebdriver() })
	assert.Panics(t, func() { nav.OverrideScript() })
}

func TestNavigatorScriptPinsWebdriverFalse(t *testing.T) {
	script := DefaultNavigatorOverrides().OverrideScript()

	assert.Contains(t, script, "'webdriver'")
	assert.Contains(t, script, "return false")
	assert.Contains(t, script, "Navigator.prototype")
	assert.Contains(t, script, "cdc_adoQpoasnfa76pfcZLmcfl_Array")
	assert.Contains(t, script, `"Win32"`)
	assert.NotContains(t, script, "return true; }, // webdriver")
}

func TestWebGLVendorRendererPairs(t *testing.T) {
	for _, gpu := range AllGPUProfiles() {
		assert.NotEmpty(t, gpu.Vendor())
		assert.NotEmpty(t, gpu.Renderer())
	}

	assert.Equal(t, "Apple Inc.", AppleM1.Vendor())
	assert.Equal(t, "Apple M1", AppleM1.Renderer())
	assert.Contains(t, NvidiaRTX3060.Renderer(), "RTX 3060")
}

func TestConsistentWebGLIsDeterministic(t *testing.T) {
	a := ConsistentWebGL("seed-x")
	b := ConsistentWebGL("seed-x")
	assert.Equal(t, a, b)
}

func TestWebGLForProfileByOS(t *testing.T) {
	mac := WebGLForProfile(MacChrome, 7)
	assert.Equal(t, "Apple M1", mac.Renderer)

	linux := WebGLForProfile(LinuxFirefox, 7)
	assert.Contains(t, linux.Renderer, "RTX 3060")

	win := WebGLForProfile(WindowsChrome, 7)
	assert.Contains(t, win.Renderer, "ANGLE")
}

func TestCanvasNoiseClamp(t *testing.T) {
	cfg := WebGLFromGPU(IntelUHD630).WithCanvasNoise(true, 5.0)
	assert.Equal(t, 0.01, cfg.CanvasNoiseIntensity)

	cfg = cfg.WithCanvasNoise(true, -1)
	assert.Equal(t, 0.0, cfg.CanvasNoiseIntensity)
}

func TestWebGLScriptContainsSpoofedValues(t *testing.T) {
	cfg := WebGLFromGPU(NvidiaGTX1660)
	script := cfg.OverrideScript()

	assert.Contains(t, script, "37445")
	assert.Contains(t, script, "37446")
	assert.Contains(t, script, "GTX 1660")
	assert.Contains(t, script, "WEBGL_debug_renderer_info")
	assert.Contains(t, script, "NOISE_INTENSITY")
}

func TestEscapeJSString(t *testing.T) {
	assert.Equal(t, `a\"b`, EscapeJSString(`a"b`))
	assert.Equal(t, `a\\b`, EscapeJSString(`a\b`))
	assert.Equal(t, `a\nb`, EscapeJSString("a\nb"))
	assert.Equal(t, `a\'b`, EscapeJSString("a'b"))

	// Control characters and the JS line terminators cannot pass
	// through into the literal.
	assert.Equal(t, "a\\u0000b", EscapeJSString("a\x00b"))
	assert.Equal(t, "a\\u001bb", EscapeJSString("a\x1bb"))
	assert.Equal(t, "a\\u007fb", EscapeJSString("a\x7fb"))
	assert.Equal(t, "a\\u2028b", EscapeJSString("a\u2028b"))
	assert.Equal(t, "a\\u2029b", EscapeJSString("a\u2029b"))
}

func TestConsistentBundle(t *testing.T) {
	a := ConsistentBundle("identity-1")
	b := ConsistentBundle("identity-1")

	require.NoError(t, a.Validate())
	assert.Equal(t, a.Fingerprint.UserAgent, b.Fingerprint.UserAgent)
	assert.Equal(t, a.WebGL.Renderer, b.WebGL.Renderer)
	assert.False(t, a.Navigator.Webdriver)
}

func TestBundleValidateRejectsBadDeviceMemory(t *testing.T) {
	bundle := ConsistentBundle("identity-2")
	bundle.Navigator.DeviceMemory = 3

	assert.Error(t, bundle.Validate())
}

func TestBundleValidateRejectsEmptyLanguages(t *testing.T) {
	bundle := ConsistentBundle("identity-2")
	bundle.Fingerprint = FromFingerprint(bundle.Fingerprint).Languages(nil).Build()

	err := bundle.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "language list is empty")
}

func TestBundleValidateRejectsLanguageMismatch(t *testing.T) {
	bundle := ConsistentBundle("identity-2")
	bundle.Fingerprint.Languages = []string{"de-DE", "de"}
	bundle.Fingerprint.Language = "en-US"

	err := bundle.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "primary language")
}

func TestBundleValidateRejectsVendorUserAgentMismatch(t *testing.T) {
	bundle := bundleWithSeed(7, WindowsChrome)
	require.Contains(t, bundle.Fingerprint.UserAgent, "Chrome/")
	bundle.Fingerprint.Vendor = "Apple Computer, Inc."

	err := bundle.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "vendor contradicts")
}

func TestVendorForUserAgent(t *testing.T) {
	v, ok := vendorForUserAgent("Mozilla/5.0 (X11; Linux x86_64; rv:122.0) Gecko/20100101 Firefox/122.0")
	require.True(t, ok)
	assert.Equal(t, "", v)

	v, ok = vendorForUserAgent("Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.1 Safari/605.1.15")
	require.True(t, ok)
	assert.Equal(t, "Apple Computer, Inc.", v)

	_, ok = vendorForUserAgent("curl/8.4.0")
	assert.False(t, ok)
}

func TestInjectionScriptOrdering(t *testing.T) {
	script := ConsistentBundle("identity-3").InjectionScript()

	navIdx := strings.Index(script, "'webdriver'")
	webglIdx := strings.Index(script, "37446")
	screenIdx := strings.Index(script, "availHeight")

	require.Positive(t, navIdx)
	require.Positive(t, webglIdx)
	require.Positive(t, screenIdx)
	assert.Less(t, navIdx, webglIdx)
	assert.Less(t, webglIdx, screenIdx)
}

func TestBuilderOverrides(t *testing.T) {
	fp := FromFingerprint(NewGenerator().GenerateSeeded(3, WindowsChrome)).
		UserAgent("TestAgent/1.0").
		Platform("MacIntel").
		Resolution(800, 600).
		Timezone("Europe/Berlin", 60).
		ColorDepth(32).
		Build()

	assert.Equal(t, "TestAgent/1.0", fp.UserAgent)
	assert.Equal(t, "MacIntel", fp.Platform)
	assert.Equal(t, 800, fp.ScreenResolution.Width)
	assert.Equal(t, 560, fp.ScreenResolution.AvailHeight)
	assert.Equal(t, "Europe/Berlin", fp.Timezone)
	assert.Equal(t, 32, fp.PixelDepth)
}
