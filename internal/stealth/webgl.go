package stealth

import (
	"fmt"
	"time"

	"github.com/cespare/xxhash/v2"
)

// GPUProfile identifies a spoofable GPU.
type GPUProfile int

const (
	NvidiaGTX1080 GPUProfile = iota
	NvidiaGTX1660
	NvidiaRTX3060
	NvidiaRTX3080
	NvidiaRTX4070
	NvidiaRTX4090
	AMDRX580
	AMDRX6700XT
	AMDRX7900XT
	IntelUHD620
	IntelUHD630
	IntelUHD770
	IntelIrisXe
	IntelArcA770
	AppleM1
	AppleM2
	AppleM3
	SwiftShader
	AngleD3D11
)

// AllGPUProfiles returns every spoofable GPU.
func AllGPUProfiles() []GPUProfile {
	return []GPUProfile{
		NvidiaGTX1080, NvidiaGTX1660, NvidiaRTX3060, NvidiaRTX3080,
		NvidiaRTX4070, NvidiaRTX4090,
		AMDRX580, AMDRX6700XT, AMDRX7900XT,
		IntelUHD620, IntelUHD630, IntelUHD770, IntelIrisXe, IntelArcA770,
		AppleM1, AppleM2, AppleM3,
		SwiftShader, AngleD3D11,
	}
}

// CommonDesktopGPUs returns the profiles most likely to be seen in the
// wild, used when picking a GPU for a Windows fingerprint.
func CommonDesktopGPUs() []GPUProfile {
	return []GPUProfile{
		NvidiaGTX1660, NvidiaRTX3060, NvidiaRTX3080,
		AMDRX6700XT, IntelUHD630, IntelIrisXe,
	}
}

// Vendor returns the UNMASKED_VENDOR_WEBGL string for the GPU.
func (g GPUProfile) Vendor() string {
	switch g {
	case NvidiaGTX1080, NvidiaGTX1660, NvidiaRTX3060, NvidiaRTX3080, NvidiaRTX4070, NvidiaRTX4090:
		return "NVIDIA Corporation"
	case AMDRX580, AMDRX6700XT, AMDRX7900XT:
		return "AMD"
	case IntelUHD620, IntelUHD630, IntelUHD770, IntelIrisXe, IntelArcA770:
		return "Intel Inc."
	case AppleM1, AppleM2, AppleM3:
		return "Apple Inc."
	case SwiftShader:
		return "Google Inc. (Google)"
	default:
		return "Google Inc. (NVIDIA)"
	}
}

// Renderer returns the UNMASKED_RENDERER_WEBGL string for the GPU.
func (g GPUProfile) Renderer() string {
	switch g {
	case NvidiaGTX1080:
		return "ANGLE (NVIDIA, NVIDIA GeForce GTX 1080 Direct3D11 vs_5_0 ps_5_0, D3D11)"
	case NvidiaGTX1660:
		return "ANGLE (NVIDIA, NVIDIA GeForce GTX 1660 SUPER Direct3D11 vs_5_0 ps_5_0, D3D11)"
	case NvidiaRTX3060:
		return "ANGLE (NVIDIA, NVIDIA GeForce RTX 3060 Direct3D11 vs_5_0 ps_5_0, D3D11)"
	case NvidiaRTX3080:
		return "ANGLE (NVIDIA, NVIDIA GeForce RTX 3080 Direct3D11 vs_5_0 ps_5_0, D3D11)"
	case NvidiaRTX4070:
		return "ANGLE (NVIDIA, NVIDIA GeForce RTX 4070 Direct3D11 vs_5_0 ps_5_0, D3D11)"
	case NvidiaRTX4090:
		return "ANGLE (NVIDIA, NVIDIA GeForce RTX 4090 Direct3D11 vs_5_0 ps_5_0, D3D11)"
	case AMDRX580:
		return "ANGLE (AMD, AMD Radeon RX 580 Series Direct3D11 vs_5_0 ps_5_0, D3D11)"
	case AMDRX6700XT:
		return "ANGLE (AMD, AMD Radeon RX 6700 XT Direct3D11 vs_5_0 ps_5_0, D3D11)"
	case AMDRX7900XT:
		return "ANGLE (AMD, AMD Radeon RX 7900 XT Direct3D11 vs_5_0 ps_5_0, D3D11)"
	case IntelUHD620:
		return "ANGLE (Intel, Intel(R) UHD Graphics 620 Direct3D11 vs_5_0 ps_5_0, D3D11)"
	case IntelUHD630:
		return "ANGLE (Intel, Intel(R) UHD Graphics 630 Direct3D11 vs_5_0 ps_5_0, D3D11)"
	case IntelUHD770:
		return "ANGLE (Intel, Intel(R) UHD Graphics 770 Direct3D11 vs_5_0 ps_5_0, D3D11)"
	case IntelIrisXe:
		return "ANGLE (Intel, Intel(R) Iris(R) Xe Graphics Direct3D11 vs_5_0 ps_5_0, D3D11)"
	case IntelArcA770:
		return "ANGLE (Intel, Intel(R) Arc(TM) A770 Graphics Direct3D11 vs_5_0 ps_5_0, D3D11)"
	case AppleM1:
		return "Apple M1"
	case AppleM2:
		return "Apple M2"
	case AppleM3:
		return "Apple M3"
	case SwiftShader:
		return "ANGLE (Google, Vulkan 1.1.0 (SwiftShader Device (Subzero) (0x0000C0DE)), SwiftShader driver)"
	default:
		return "ANGLE (NVIDIA, NVIDIA GeForce GTX 1060 6GB Direct3D11 vs_5_0 ps_5_0, D3D11)"
	}
}

// WebGLConfig holds the values a spoofed WebGL context reports.
type WebGLConfig struct {
	Vendor                    string
	Renderer                  string
	Version                   string
	ShadingLanguageVersion    string
	MaxTextureSize            int
	MaxViewportWidth          int
	MaxViewportHeight         int
	MaxVertexAttribs          int
	MaxVaryingVectors         int
	MaxVertexUniformVectors   int
	MaxFragmentUniformVectors int
	EnableCanvasNoise         bool
	CanvasNoiseIntensity      float64
}

// WebGLFromGPU builds a configuration for a specific GPU with limits
// typical of its tier.
func WebGLFromGPU(gpu GPUProfile) WebGLConfig {
	maxTexture := 16384
	viewportW, viewportH := 16384, 16384
	switch gpu {
	case NvidiaGTX1080, NvidiaGTX1660, NvidiaRTX3060, NvidiaRTX3080, NvidiaRTX4070, NvidiaRTX4090:
		viewportW, viewportH = 32767, 32767
	case SwiftShader, AngleD3D11:
		maxTexture = 8192
		viewportW, viewportH = 8192, 8192
	}

	return WebGLConfig{
		Vendor:                    gpu.Vendor(),
		Renderer:                  gpu.Renderer(),
		Version:                   "WebGL 1.0 (OpenGL ES 2.0 Chromium)",
		ShadingLanguageVersion:    "WebGL GLSL ES 1.0 (OpenGL ES GLSL ES 1.0 Chromium)",
		MaxTextureSize:            maxTexture,
		MaxViewportWidth:          viewportW,
		MaxViewportHeight:         viewportH,
		MaxVertexAttribs:          16,
		MaxVaryingVectors:         30,
		MaxVertexUniformVectors:   4096,
		MaxFragmentUniformVectors: 1024,
		EnableCanvasNoise:         true,
		CanvasNoiseIntensity:      0.0001,
	}
}

// RandomWebGL picks a common desktop GPU from the clock.
func RandomWebGL() WebGLConfig {
	profiles := CommonDesktopGPUs()
	seed := uint64(time.Now().UnixNano())
	return WebGLFromGPU(profiles[int(seed%uint64(len(profiles)))])
}

// ConsistentWebGL picks a common desktop GPU from a seed string; the
// same seed always yields the same GPU.
func ConsistentWebGL(seed string) WebGLConfig {
	hash := xxhash.Sum64String(seed)
	profiles := CommonDesktopGPUs()
	return WebGLFromGPU(profiles[int(hash%uint64(len(profiles)))])
}

// WebGLForProfile chooses a GPU plausible for the fingerprint's OS. The
// seed keeps the choice stable for a given identity.
func WebGLForProfile(profile Profile, seed uint64) WebGLConfig {
	switch profile {
	case MacChrome, MacSafari, MacFirefox:
		return WebGLFromGPU(AppleM1)
	case LinuxChrome, LinuxFirefox:
		return WebGLFromGPU(NvidiaRTX3060)
	default:
		profiles := CommonDesktopGPUs()
		return WebGLFromGPU(profiles[int(seed%uint64(len(profiles)))])
	}
}

// WithCanvasNoise sets canvas noise injection. Intensity is clamped to
// [0, 0.01]; anything past that becomes visible in rendered output.
func (c WebGLConfig) WithCanvasNoise(enabled bool, intensity float64) WebGLConfig {
	c.EnableCanvasNoise = enabled
	c.CanvasNoiseIntensity = clampNoise(intensity)
	return c
}

func clampNoise(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 0.01 {
		return 0.01
	}
	return v
}

// OverrideScript renders the WebGL getParameter and extension
// overrides, plus the canvas noise script when enabled. Inject before
// page scripts run.
func (c WebGLConfig) OverrideScript() string {
	noise := ""
	if c.EnableCanvasNoise {
		noise = CanvasNoiseScript(c.CanvasNoiseIntensity)
	}

	return fmt.Sprintf(`
// WebGL fingerprint overrides
(function() {
    'use strict';

    const VENDOR = "%s";
    const RENDERER = "%s";
    const VERSION = "%s";
    const SHADING_LANG_VERSION = "%s";
    const MAX_TEXTURE_SIZE = %d;
    const MAX_VIEWPORT_DIMS = [%d, %d];
    const MAX_VERTEX_ATTRIBS = %d;
    const MAX_VARYING_VECTORS = %d;
    const MAX_VERTEX_UNIFORM_VECTORS = %d;
    const MAX_FRAGMENT_UNIFORM_VECTORS = %d;

    const overrideGetParameter = function(target) {
        const originalGetParameter = target.prototype.getParameter;
        target.prototype.getParameter = function(parameter) {
            if (parameter === 37445) { return VENDOR; }
            if (parameter === 37446) { return RENDERER; }
            if (parameter === 7938) { return VERSION; }
            if (parameter === 35724) { return SHADING_LANG_VERSION; }
            if (parameter === 3379) { return MAX_TEXTURE_SIZE; }
            if (parameter === 3386) { return new Int32Array(MAX_VIEWPORT_DIMS); }
            if (parameter === 34921) { return MAX_VERTEX_ATTRIBS; }
            if (parameter === 36348) { return MAX_VARYING_VECTORS; }
            if (parameter === 36347) { return MAX_VERTEX_UNIFORM_VECTORS; }
            if (parameter === 36349) { return MAX_FRAGMENT_UNIFORM_VECTORS; }
            return originalGetParameter.call(this, parameter);
        };
    };

    const overrideGetExtension = function(target) {
        const originalGetExtension = target.prototype.getExtension;
        target.prototype.getExtension = function(name) {
            if (name === 'WEBGL_debug_renderer_info') {
                return {
                    UNMASKED_VENDOR_WEBGL: 37445,
                    UNMASKED_RENDERER_WEBGL: 37446
                };
            }
            return originalGetExtension.call(this, name);
        };
    };

    const overrideGetSupportedExtensions = function(target) {
        const originalGetSupportedExtensions = target.prototype.getSupportedExtensions;
        target.prototype.getSupportedExtensions = function() {
            const extensions = originalGetSupportedExtensions.call(this) || [];
            if (!extensions.includes('WEBGL_debug_renderer_info')) {
                extensions.push('WEBGL_debug_renderer_info');
            }
            return extensions;
        };
    };

    if (typeof WebGLRenderingContext !== 'undefined') {
        overrideGetParameter(WebGLRenderingContext);
        overrideGetExtension(WebGLRenderingContext);
        overrideGetSupportedExtensions(WebGLRenderingContext);
    }
    if (typeof WebGL2RenderingContext !== 'undefined') {
        overrideGetParameter(WebGL2RenderingContext);
        overrideGetExtension(WebGL2RenderingContext);
        overrideGetSupportedExtensions(WebGL2RenderingContext);
    }

})();

%s
`,
		EscapeJSString(c.Vendor), EscapeJSString(c.Renderer),
		EscapeJSString(c.Version), EscapeJSString(c.ShadingLanguageVersion),
		c.MaxTextureSize, c.MaxViewportWidth, c.MaxViewportHeight,
		c.MaxVertexAttribs, c.MaxVaryingVectors,
		c.MaxVertexUniformVectors, c.MaxFragmentUniformVectors,
		noise)
}

// CanvasNoiseScript renders the canvas readback noise injection. The
// noise is position-seeded so the same content always reads back the
// same values within a session.
func CanvasNoiseScript(intensity float64) string {
	return fmt.Sprintf(`
// Canvas fingerprint noise injection
(function() {
    'use strict';

    const NOISE_INTENSITY = %g;

    function seededRandom(seed) {
        const x = Math.sin(seed) * 10000;
        return x - Math.floor(x);
    }

    function addNoiseToImageData(imageData, seed) {
        const data = imageData.data;
        const len = data.length;

        for (let i = 0; i < len; i += 4) {
            if (data[i + 3] === 0) continue;

            const pixelSeed = seed + i;
            const noise = (seededRandom(pixelSeed) - 0.5) * 2 * NOISE_INTENSITY * 255;

            data[i] = Math.max(0, Math.min(255, data[i] + noise));
            data[i + 1] = Math.max(0, Math.min(255, data[i + 1] + noise));
            data[i + 2] = Math.max(0, Math.min(255, data[i + 2] + noise));
        }

        return imageData;
    }

    const SESSION_SEED = Math.random() * 1000000;

    const originalToDataURL = HTMLCanvasElement.prototype.toDataURL;
    HTMLCanvasElement.prototype.toDataURL = function(type, quality) {
        try {
            const ctx = this.getContext('2d');
            if (ctx && this.width > 0 && this.height > 0) {
                const imageData = ctx.getImageData(0, 0, this.width, this.height);
                ctx.putImageData(addNoiseToImageData(imageData, SESSION_SEED), 0, 0);
            }
        } catch (e) {}
        return originalToDataURL.call(this, type, quality);
    };

    const originalToBlob = HTMLCanvasElement.prototype.toBlob;
    HTMLCanvasElement.prototype.toBlob = function(callback, type, quality) {
        try {
            const ctx = this.getContext('2d');
            if (ctx && this.width > 0 && this.height > 0) {
                const imageData = ctx.getImageData(0, 0, this.width, this.height);
                ctx.putImageData(addNoiseToImageData(imageData, SESSION_SEED), 0, 0);
            }
        } catch (e) {}
        return originalToBlob.call(this, callback, type, quality);
    };

    const originalGetImageData = CanvasRenderingContext2D.prototype.getImageData;
    CanvasRenderingContext2D.prototype.getImageData = function(sx, sy, sw, sh) {
        const imageData = originalGetImageData.call(this, sx, sy, sw, sh);
        return addNoiseToImageData(imageData, SESSION_SEED + sx + sy);
    };

})();
`, clampNoise(intensity))
}
