package stealth

import (
	"fmt"
	"strings"
)

// MimeTypeInfo describes one entry of navigator.mimeTypes.
type MimeTypeInfo struct {
	Type        string
	Description string
	Suffixes    string
}

// PDFMimeType is the standard PDF MIME entry carried by Chromium
// plugins.
func PDFMimeType() MimeTypeInfo {
	return MimeTypeInfo{Type: "application/pdf", Description: "Portable Document Format", Suffixes: "pdf"}
}

// PluginInfo is a navigator.plugins entry together with its MIME types.
type PluginInfo struct {
	Name        string
	Description string
	Filename    string
	MimeTypes   []MimeTypeInfo
}

// DefaultChromePlugins returns the five PDF viewer entries a real
// Chromium build exposes.
func DefaultChromePlugins() []PluginInfo {
	names := []string{
		"PDF Viewer",
		"Chrome PDF Viewer",
		"Chromium PDF Viewer",
		"Microsoft Edge PDF Viewer",
		"WebKit built-in PDF",
	}
	out := make([]PluginInfo, 0, len(names))
	for _, n := range names {
		out = append(out, PluginInfo{
			Name:        n,
			Description: "Portable Document Format",
			Filename:    "internal-pdf-viewer",
			MimeTypes:   []MimeTypeInfo{PDFMimeType()},
		})
	}
	return out
}

// NavigatorOverrides holds every navigator property the stealth layer
// pins. Webdriver must stay false; EnsureNoWebdriver enforces it.
type NavigatorOverrides struct {
	Webdriver           bool
	Languages           []string
	Platform            string
	HardwareConcurrency int
	DeviceMemory        int
	MaxTouchPoints      int
	Vendor              string
	VendorSub           string
	Product             string
	ProductSub          string
	UserAgent           string
	AppVersion          string
	AppName             string
	AppCodeName         string
	CookieEnabled       bool
	OnLine              bool
	DoNotTrack          string
	PDFViewerEnabled    bool
	Plugins             []PluginInfo
	SpoofPermissions    bool
	RemoveAutomation    bool
}

// DefaultNavigatorOverrides returns overrides matching a stock Windows
// Chrome install.
func DefaultNavigatorOverrides() NavigatorOverrides {
	ua := "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	return NavigatorOverrides{
		Webdriver:           false,
		Languages:           []string{"en-US", "en"},
		Platform:            "Win32",
		HardwareConcurrency: 8,
		DeviceMemory:        8,
		MaxTouchPoints:      0,
		Vendor:              "Google Inc.",
		Product:             "Gecko",
		ProductSub:          "20030107",
		UserAgent:           ua,
		AppVersion:          extractAppVersion(ua),
		AppName:             "Netscape",
		AppCodeName:         "Mozilla",
		CookieEnabled:       true,
		OnLine:              true,
		PDFViewerEnabled:    true,
		Plugins:             DefaultChromePlugins(),
		SpoofPermissions:    true,
		RemoveAutomation:    true,
	}
}

// NavigatorFromFingerprint derives navigator overrides from a generated
// fingerprint.
func NavigatorFromFingerprint(fp Fingerprint) NavigatorOverrides {
	langs := make([]string, len(fp.Languages))
	copy(langs, fp.Languages)
	return NavigatorOverrides{
		Webdriver:           false,
		Languages:           langs,
		Platform:            fp.Platform,
		HardwareConcurrency: 8,
		DeviceMemory:        8,
		MaxTouchPoints:      0,
		Vendor:              fp.Vendor,
		Product:             "Gecko",
		ProductSub:          "20030107",
		UserAgent:           fp.UserAgent,
		AppVersion:          extractAppVersion(fp.UserAgent),
		AppName:             "Netscape",
		AppCodeName:         "Mozilla",
		CookieEnabled:       fp.CookieEnabled,
		OnLine:              true,
		DoNotTrack:          fp.DoNotTrack,
		PDFViewerEnabled:    true,
		Plugins:             DefaultChromePlugins(),
		SpoofPermissions:    true,
		RemoveAutomation:    true,
	}
}

// EnsureNoWebdriver panics if the overrides would expose
// navigator.webdriver as true. Shipping such a configuration defeats
// the whole package, so this fails hard rather than logging.
func (n NavigatorOverrides) EnsureNoWebdriver() {
	if n.Webdriver {
		panic("stealth: navigator.webdriver must be false, refusing to build an override script that exposes automation")
	}
}

// OverrideScript renders the navigator override JavaScript. It must be
// injected before any page script runs.
func (n NavigatorOverrides) OverrideScript() string {
	n.EnsureNoWebdriver()

	var b strings.Builder

	b.WriteString(`
(function() {
    'use strict';

    // WebDriver detection prevention, layered so that breaking one
    // override still leaves the others in place.
    Object.defineProperty(navigator, 'webdriver', {
        get: function() { return false; },
        configurable: true,
        enumerable: true
    });

    try {
        delete navigator.webdriver;
        Object.defineProperty(navigator, 'webdriver', {
            get: function() { return false; },
            configurable: true,
            enumerable: true
        });
    } catch (e) {}

    try {
        Object.defineProperty(Navigator.prototype, 'webdriver', {
            get: function() { return false; },
            configurable: true,
            enumerable: true
        });
    } catch (e) {}

    const originalGetOwnPropertyDescriptor = Object.getOwnPropertyDescriptor;
    Object.getOwnPropertyDescriptor = function(obj, prop) {
        if (prop === 'webdriver' && (obj === navigator || obj === Navigator.prototype)) {
            return {
                value: false,
                writable: false,
                enumerable: true,
                configurable: true
            };
        }
        return originalGetOwnPropertyDescriptor.call(this, obj, prop);
    };

    navigator.toString = function() {
        return '[object Navigator]';
    };
`)

	fmt.Fprintf(&b, `
    Object.defineProperty(navigator, 'userAgent', {
        get: function() { return "%s"; },
        configurable: true
    });
    Object.defineProperty(navigator, 'appVersion', {
        get: function() { return "%s"; },
        configurable: true
    });
    Object.defineProperty(navigator, 'appName', {
        get: function() { return "%s"; },
        configurable: true
    });
    Object.defineProperty(navigator, 'appCodeName', {
        get: function() { return "%s"; },
        configurable: true
    });
    Object.defineProperty(navigator, 'product', {
        get: function() { return "%s"; },
        configurable: true
    });
    Object.defineProperty(navigator, 'productSub', {
        get: function() { return "%s"; },
        configurable: true
    });
    Object.defineProperty(navigator, 'vendor', {
        get: function() { return "%s"; },
        configurable: true
    });
    Object.defineProperty(navigator, 'vendorSub', {
        get: function() { return "%s"; },
        configurable: true
    });
`, EscapeJSString(n.UserAgent), EscapeJSString(n.AppVersion),
		EscapeJSString(n.AppName), EscapeJSString(n.AppCodeName),
		EscapeJSString(n.Product), EscapeJSString(n.ProductSub),
		EscapeJSString(n.Vendor), EscapeJSString(n.VendorSub))

	fmt.Fprintf(&b, `
    Object.defineProperty(navigator, 'platform', {
        get: function() { return "%s"; },
        configurable: true
    });
    Object.defineProperty(navigator, 'hardwareConcurrency', {
        get: function() { return %d; },
        configurable: true
    });
    Object.defineProperty(navigator, 'deviceMemory', {
        get: function() { return %d; },
        configurable: true
    });
    Object.defineProperty(navigator, 'maxTouchPoints', {
        get: function() { return %d; },
        configurable: true
    });

    const LANGUAGES = %s;

    Object.defineProperty(navigator, 'languages', {
        get: function() { return Object.freeze(LANGUAGES.slice()); },
        configurable: true
    });
    Object.defineProperty(navigator, 'language', {
        get: function() { return LANGUAGES[0]; },
        configurable: true
    });

    Object.defineProperty(navigator, 'onLine', {
        get: function() { return %t; },
        configurable: true
    });
    Object.defineProperty(navigator, 'cookieEnabled', {
        get: function() { return %t; },
        configurable: true
    });
    Object.defineProperty(navigator, 'doNotTrack', {
        get: function() { return %s; },
        configurable: true
    });
    Object.defineProperty(navigator, 'pdfViewerEnabled', {
        get: function() { return %t; },
        configurable: true
    });
`, EscapeJSString(n.Platform), n.HardwareConcurrency, n.DeviceMemory,
		n.MaxTouchPoints, n.languagesJSON(), n.OnLine, n.CookieEnabled,
		jsStringOrNull(n.DoNotTrack), n.PDFViewerEnabled)

	fmt.Fprintf(&b, `
    (function() {
        const pluginData = %s;
        const plugins = [];
        const mimeTypes = [];

        pluginData.forEach(function(p) {
            const plugin = Object.create(Plugin.prototype);
            const pluginMimeTypes = [];

            (p.mimeTypes || []).forEach(function(mt) {
                const mimeType = Object.create(MimeType.prototype);
                Object.defineProperties(mimeType, {
                    'type': { value: mt.type, enumerable: true },
                    'description': { value: mt.description, enumerable: true },
                    'suffixes': { value: mt.suffixes, enumerable: true },
                    'enabledPlugin': { value: plugin, enumerable: true }
                });
                pluginMimeTypes.push(mimeType);
                mimeTypes.push(mimeType);
            });

            Object.defineProperties(plugin, {
                'name': { value: p.name, enumerable: true },
                'description': { value: p.description, enumerable: true },
                'filename': { value: p.filename, enumerable: true },
                'length': { value: pluginMimeTypes.length, enumerable: true }
            });

            pluginMimeTypes.forEach(function(mt, i) {
                Object.defineProperty(plugin, i, { value: mt, enumerable: true });
            });

            plugin.item = function(index) { return pluginMimeTypes[index] || null; };
            plugin.namedItem = function(name) {
                return pluginMimeTypes.find(mt => mt.type === name) || null;
            };

            plugins.push(plugin);
        });

        const pluginArray = Object.create(PluginArray.prototype);
        plugins.forEach(function(plugin, i) {
            Object.defineProperty(pluginArray, i, { value: plugin, enumerable: true });
            Object.defineProperty(pluginArray, plugin.name, { value: plugin, enumerable: false });
        });
        Object.defineProperty(pluginArray, 'length', { value: plugins.length, enumerable: true });
        pluginArray.item = function(index) { return plugins[index] || null; };
        pluginArray.namedItem = function(name) {
            return plugins.find(p => p.name === name) || null;
        };
        pluginArray.refresh = function() {};

        Object.defineProperty(navigator, 'plugins', {
            get: function() { return pluginArray; },
            configurable: true
        });

        const mimeTypeArray = Object.create(MimeTypeArray.prototype);
        mimeTypes.forEach(function(mt, i) {
            Object.defineProperty(mimeTypeArray, i, { value: mt, enumerable: true });
            Object.defineProperty(mimeTypeArray, mt.type, { value: mt, enumerable: false });
        });
        Object.defineProperty(mimeTypeArray, 'length', { value: mimeTypes.length, enumerable: true });
        mimeTypeArray.item = function(index) { return mimeTypes[index] || null; };
        mimeTypeArray.namedItem = function(name) {
            return mimeTypes.find(mt => mt.type === name) || null;
        };

        Object.defineProperty(navigator, 'mimeTypes', {
            get: function() { return mimeTypeArray; },
            configurable: true
        });
    })();
`, n.pluginsJSON())

	if n.SpoofPermissions {
		b.WriteString(permissionsSpoofScript)
	}
	if n.RemoveAutomation {
		b.WriteString(automationRemovalScript)
	}

	b.WriteString(`
    if (navigator.webdriver !== false) {
        Object.defineProperty(navigator, 'webdriver', {
            get: function() { return false; },
            configurable: false,
            enumerable: true
        });
    }

})();
`)

	return b.String()
}

func (n NavigatorOverrides) languagesJSON() string {
	entries := make([]string, len(n.Languages))
	for i, l := range n.Languages {
		entries[i] = `"` + EscapeJSString(l) + `"`
	}
	return "[" + strings.Join(entries, ", ") + "]"
}

func (n NavigatorOverrides) pluginsJSON() string {
	entries := make([]string, 0, len(n.Plugins))
	for _, p := range n.Plugins {
		mimes := make([]string, 0, len(p.MimeTypes))
		for _, mt := range p.MimeTypes {
			mimes = append(mimes, fmt.Sprintf(
				`{"type":"%s","description":"%s","suffixes":"%s"}`,
				EscapeJSString(mt.Type), EscapeJSString(mt.Description), EscapeJSString(mt.Suffixes)))
		}
		entries = append(entries, fmt.Sprintf(
			`{"name":"%s","description":"%s","filename":"%s","mimeTypes":[%s]}`,
			EscapeJSString(p.Name), EscapeJSString(p.Description),
			EscapeJSString(p.Filename), strings.Join(mimes, ",")))
	}
	return "[" + strings.Join(entries, ",") + "]"
}

// extractAppVersion returns the user agent trailing the "Mozilla/"
// prefix, which is what navigator.appVersion actually reports.
func extractAppVersion(userAgent string) string {
	if idx := strings.Index(userAgent, "Mozilla/"); idx >= 0 {
		return userAgent[idx+len("Mozilla/"):]
	}
	return userAgent
}

const permissionsSpoofScript = `
    if (typeof Permissions !== 'undefined' && Permissions.prototype.query) {
        const originalQuery = Permissions.prototype.query;
        Permissions.prototype.query = function(permissionDesc) {
            return new Promise((resolve, reject) => {
                originalQuery.call(this, permissionDesc)
                    .then(resolve)
                    .catch(reject);
            });
        };
    }
`

const automationRemovalScript = `
    try {
        delete window.cdc_adoQpoasnfa76pfcZLmcfl_Array;
        delete window.cdc_adoQpoasnfa76pfcZLmcfl_Promise;
        delete window.cdc_adoQpoasnfa76pfcZLmcfl_Symbol;
    } catch (e) {}

    try {
        delete window._selenium;
        delete window.callSelenium;
        delete window._Selenium_IDE_Recorder;
        delete window.__webdriver_script_fn;
        delete window.__driver_evaluate;
        delete window.__webdriver_evaluate;
        delete window.__selenium_evaluate;
        delete window.__fxdriver_evaluate;
        delete window.__driver_unwrapped;
        delete window.__webdriver_unwrapped;
        delete window.__selenium_unwrapped;
        delete window.__fxdriver_unwrapped;
        delete window.__webdriver_script_func;
        delete window.$chrome_asyncScriptInfo;
        delete window.$cdc_asdjflasutopfhvcZLmcfl_;
    } catch (e) {}
`
