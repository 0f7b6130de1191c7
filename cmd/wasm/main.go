//go:build js && wasm

package main

import (
	"context"
	"fmt"
	"syscall/js"

	"github.com/himanishpuri/Empreinte/internal/config"
	"github.com/himanishpuri/Empreinte/internal/fingerprint"
)

// Error codes returned to JavaScript
const (
	ErrorNone = iota
	ErrorInvalidArgs
	ErrorProcessing
	ErrorNoFingerprints
)

// pipelineFor adapts the default pipeline to the browser's capture rate.
// Only rates that decimate exactly to the analysis rate are accepted, so
// client fingerprints line up with the ones in the index.
func pipelineFor(sampleRate int) (config.Config, error) {
	cfg := config.Default()
	cfg.Workers = 1

	analysis := cfg.SampleRate / cfg.Decimation
	if sampleRate < analysis || sampleRate%analysis != 0 {
		return cfg, fmt.Errorf("sample rate %d is not a multiple of %d", sampleRate, analysis)
	}
	cfg.SampleRate = sampleRate
	cfg.Decimation = sampleRate / analysis
	return cfg, cfg.Validate()
}

// generateFingerprint(audioArray, sampleRate, channels) fingerprints PCM
// samples in [-1, 1].
// Returns: {error: number, data: [{key, anchorTime}] | string}
func generateFingerprint(this js.Value, args []js.Value) any {
	if len(args) < 3 {
		return makeErrorResponse(ErrorInvalidArgs, "Expected 3 arguments: audioArray, sampleRate, channels")
	}

	audioDataJS, sampleRateJS, channelsJS := args[0], args[1], args[2]
	if audioDataJS.Type() != js.TypeObject {
		return makeErrorResponse(ErrorInvalidArgs, "audioArray must be an Array or Float32Array")
	}
	if sampleRateJS.Type() != js.TypeNumber || channelsJS.Type() != js.TypeNumber {
		return makeErrorResponse(ErrorInvalidArgs, "sampleRate and channels must be numbers")
	}

	channels := channelsJS.Int()
	if channels < 1 || channels > 2 {
		return makeErrorResponse(ErrorInvalidArgs, fmt.Sprintf("Channels must be 1 (mono) or 2 (stereo), got: %d", channels))
	}
	cfg, err := pipelineFor(sampleRateJS.Int())
	if err != nil {
		return makeErrorResponse(ErrorInvalidArgs, err.Error())
	}

	length := audioDataJS.Length()
	if length == 0 {
		return makeErrorResponse(ErrorInvalidArgs, "audioArray is empty")
	}
	samples := make([]float64, length)
	for i := 0; i < length; i++ {
		val := audioDataJS.Index(i)
		if val.Type() != js.TypeNumber {
			return makeErrorResponse(ErrorInvalidArgs, fmt.Sprintf("audioArray element %d is not a number", i))
		}
		samples[i] = val.Float()
	}
	if channels == 2 {
		samples = stereoToMono(samples)
	}

	res, err := fingerprint.Extract(context.Background(), samples, cfg)
	if err != nil {
		return makeErrorResponse(ErrorProcessing, err.Error())
	}
	if len(res.Fingerprints) == 0 {
		return makeErrorResponse(ErrorNoFingerprints, "No fingerprints generated (audio may be silent)")
	}

	out := js.Global().Get("Array").New(len(res.Fingerprints))
	for i, fp := range res.Fingerprints {
		obj := js.Global().Get("Object").New()
		obj.Set("key", float64(fp.Key()))
		obj.Set("anchorTime", fp.AnchorTime)
		out.SetIndex(i, obj)
	}

	result := js.Global().Get("Object").New()
	result.Set("error", ErrorNone)
	result.Set("data", out)
	return result
}

func stereoToMono(stereo []float64) []float64 {
	mono := make([]float64, len(stereo)/2)
	for i := range mono {
		mono[i] = (stereo[2*i] + stereo[2*i+1]) / 2
	}
	return mono
}

func makeErrorResponse(errorCode int, message string) js.Value {
	result := js.Global().Get("Object").New()
	result.Set("error", errorCode)
	result.Set("data", message)
	return result
}

func main() {
	js.Global().Set("generateFingerprint", js.FuncOf(generateFingerprint))

	console := js.Global().Get("console")
	window := js.Global().Get("window")
	if !window.IsUndefined() {
		event := js.Global().Get("CustomEvent").New("wasmReady", js.Global().Get("Object").New())
		window.Call("dispatchEvent", event)
	} else if !console.IsUndefined() {
		console.Call("error", "Empreinte WASM: window object is undefined")
	}
	if !console.IsUndefined() {
		console.Call("log", "Empreinte WASM module ready")
	}

	select {}
}
