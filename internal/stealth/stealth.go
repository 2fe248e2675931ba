package stealth

import (
	"errors"
	"strings"
	"time"
)

// Bundle ties a fingerprint, its WebGL configuration and the navigator
// overrides into one injectable unit.
type Bundle struct {
	Fingerprint Fingerprint
	WebGL       WebGLConfig
	Navigator   NavigatorOverrides
}

// BundleFromProfile builds a bundle for a fixed browser/OS profile with
// clock-derived table choices.
func BundleFromProfile(profile Profile) Bundle {
	seed := uint64(time.Now().UnixNano())
	return bundleWithSeed(seed, profile)
}

// RandomBundle builds a bundle with a random profile.
func RandomBundle() Bundle {
	seed := uint64(time.Now().UnixNano())
	profiles := StandardProfiles()
	return bundleWithSeed(seed, profiles[int(seed%uint64(len(profiles)))])
}

// ConsistentBundle derives the whole bundle from a seed string. The
// same seed always produces the same identity, which lets a session
// keep its fingerprint across restarts.
func ConsistentBundle(seed string) Bundle {
	fp := NewGenerator().GenerateConsistent(seed)
	return Bundle{
		Fingerprint: fp,
		WebGL:       ConsistentWebGL(seed),
		Navigator:   NavigatorFromFingerprint(fp),
	}
}

func bundleWithSeed(seed uint64, profile Profile) Bundle {
	fp := NewGenerator().GenerateSeeded(seed, profile)
	return Bundle{
		Fingerprint: fp,
		WebGL:       WebGLForProfile(profile, seed),
		Navigator:   NavigatorFromFingerprint(fp),
	}
}

// InjectionScript assembles the full override script. Navigator
// overrides come first since webdriver masking has to win any race with
// page scripts.
func (b Bundle) InjectionScript() string {
	var s strings.Builder
	s.WriteString("(function() {\n'use strict';\n\n")
	s.WriteString(b.Navigator.OverrideScript())
	s.WriteString("\n\n")
	s.WriteString(b.WebGL.OverrideScript())
	s.WriteString("\n\n")
	s.WriteString(b.Fingerprint.ScriptOverrides())
	s.WriteString("\n})();\n")
	return s.String()
}

// Validate rejects bundles that would leak automation markers or carry
// an incomplete identity.
func (b Bundle) Validate() error {
	if b.Navigator.Webdriver {
		return errors.New("navigator.webdriver is true, bundle would expose automation")
	}
	if b.Fingerprint.UserAgent == "" {
		return errors.New("user agent is empty")
	}
	if b.Fingerprint.Platform == "" {
		return errors.New("platform is empty")
	}
	if len(b.Fingerprint.Languages) == 0 {
		return errors.New("language list is empty")
	}
	if b.Fingerprint.Language != b.Fingerprint.Languages[0] {
		return errors.New("primary language does not match the first language entry")
	}
	if expected, ok := vendorForUserAgent(b.Fingerprint.UserAgent); ok && b.Fingerprint.Vendor != expected {
		return errors.New("vendor contradicts the user agent browser family")
	}
	if dm := b.Navigator.DeviceMemory; dm != 2 && dm != 4 && dm != 8 && dm != 16 && dm != 32 {
		return errors.New("device memory must be a power of two between 2 and 32")
	}
	return nil
}

// vendorForUserAgent derives the navigator.vendor a real browser with
// this user agent would report. Unrecognized agents return ok=false and
// skip the consistency check.
func vendorForUserAgent(ua string) (string, bool) {
	switch {
	case strings.Contains(ua, "Firefox/"):
		return "", true
	case strings.Contains(ua, "Chrome/") || strings.Contains(ua, "Chromium/"):
		return "Google Inc.", true
	case strings.Contains(ua, "Safari/"):
		return "Apple Computer, Inc.", true
	default:
		return "", false
	}
}
