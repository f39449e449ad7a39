package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/book-expert/captcha-lab/internal/fsutil"
	"github.com/book-expert/captcha-lab/internal/tensor"
)

// Artifact file extensions.
const (
	ArchitectureExt = ".json"
	WeightsExt      = ".weights"
	artifactPerms   = 0o600
)

// Constants for error formats.
const (
	errFmtReadArtifact  = "failed to read %s: %w"
	errFmtWriteArtifact = "failed to write %s: %w"
	errFmtLayer         = "layer %d (%s): %w"
	errFmtHead          = "head %d: %w"
)

// Model is a built classifier. Predict is safe for concurrent use once the
// weights are loaded.
type Model struct {
	arch   *Architecture
	layers []layer
	heads  []layer
}

// New builds a model with zeroed parameters from its architecture.
func New(arch *Architecture) (*Model, error) {
	if arch.Input.Height <= 0 || arch.Input.Width <= 0 || arch.Input.Channels != 1 {
		return nil, fmt.Errorf("%w: input must be HxWx1 with positive sides, got %s",
			ErrInvalidArchitecture, arch.Input)
	}

	if len(arch.Heads) == 0 {
		return nil, fmt.Errorf("%w: at least one output head is required", ErrInvalidArchitecture)
	}

	m := &Model{arch: arch}
	shape := arch.Input

	for i, spec := range arch.Layers {
		built, err := buildLayer(spec, shape)
		if err != nil {
			return nil, fmt.Errorf(errFmtLayer, i, spec.Type, err)
		}

		m.layers = append(m.layers, built)
		shape = built.outputShape()
	}

	for i, spec := range arch.Heads {
		if spec.Type != LayerDense && spec.Type != "" {
			return nil, fmt.Errorf(errFmtHead, i, fmt.Errorf("%w: heads must be dense, got %q",
				ErrInvalidArchitecture, spec.Type))
		}

		head, err := newDense(spec, shape)
		if err != nil {
			return nil, fmt.Errorf(errFmtHead, i, err)
		}

		m.heads = append(m.heads, head)
	}

	return m, nil
}

// Architecture returns the model description.
func (m *Model) Architecture() *Architecture {
	return m.arch
}

// InputShape returns the height and width of the expected input tensor.
func (m *Model) InputShape() (int, int) {
	return m.arch.Input.Height, m.arch.Input.Width
}

func (m *Model) allLayers() []layer {
	return append(append([]layer{}, m.layers...), m.heads...)
}

// ParamCount returns the number of parameters the weights file must hold.
func (m *Model) ParamCount() int {
	n := 0
	for _, l := range m.allLayers() {
		n += paramCount(l)
	}

	return n
}

// Params returns a copy of every parameter in weights-file order.
func (m *Model) Params() []float64 {
	params := make([]float64, 0, m.ParamCount())

	for _, l := range m.allLayers() {
		for _, p := range l.parameters() {
			params = append(params, p...)
		}
	}

	return params
}

// SetParams replaces every parameter. The count must match exactly.
func (m *Model) SetParams(params []float64) error {
	if len(params) != m.ParamCount() {
		return fmt.Errorf("%w: architecture needs %d, got %d", ErrWeightCount, m.ParamCount(), len(params))
	}

	offset := 0

	for _, l := range m.allLayers() {
		for _, p := range l.parameters() {
			offset += copy(p, params[offset:offset+len(p)])
		}
	}

	return nil
}

// Predict runs the model and returns one probability vector per CAPTCHA position.
func (m *Model) Predict(input *tensor.Tensor) ([][]float64, error) {
	err := input.Expect(m.arch.Input.Height, m.arch.Input.Width)
	if err != nil {
		return nil, err
	}

	activations := &volume{shape: m.arch.Input, data: input.Data}
	for _, l := range m.layers {
		activations = l.forward(activations)
	}

	outputs := make([][]float64, len(m.heads))
	for i, head := range m.heads {
		outputs[i] = head.forward(activations).data
	}

	return outputs, nil
}

// Predictor is a loaded classifier in either supported format.
type Predictor interface {
	Predict(input *tensor.Tensor) ([][]float64, error)
	InputShape() (int, int)
	Close() error
}

// RuntimeLibraryEnv names the variable consulted when no onnxruntime library
// path is configured.
const RuntimeLibraryEnv = "ONNXRUNTIME_LIB"

// Open resolves a model by name. A <name>.onnx export is preferred and run
// with the onnxruntime library at runtimeLib; otherwise the native
// <name>.json and <name>.weights pair is loaded.
func Open(name, runtimeLib string) (Predictor, error) {
	base, err := fsutil.ResolveModelPath(name, ONNXExt)
	if err == nil {
		if runtimeLib == "" {
			runtimeLib = os.Getenv(RuntimeLibraryEnv)
		}

		return LoadONNX(base+ONNXExt, runtimeLib)
	}

	if !errors.Is(err, fsutil.ErrModelNotFound) {
		return nil, err
	}

	return Load(name)
}

// Close is a no-op; native models hold no external resources.
func (m *Model) Close() error {
	return nil
}

// Load resolves a model by name and loads its architecture and weights.
// The name may be a path, or a model in ./models or the user cache directory.
func Load(name string) (*Model, error) {
	base, err := fsutil.ResolveModelPath(name, ArchitectureExt)
	if err != nil {
		return nil, err
	}

	return LoadFiles(base+ArchitectureExt, base+WeightsExt)
}

// LoadFiles loads a model from explicit architecture and weights paths.
func LoadFiles(archPath, weightsPath string) (*Model, error) {
	archData, err := os.ReadFile(archPath)
	if err != nil {
		return nil, fmt.Errorf(errFmtReadArtifact, archPath, err)
	}

	arch, err := ParseArchitecture(archData)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", archPath, err)
	}

	m, err := New(arch)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", archPath, err)
	}

	file, err := os.Open(weightsPath)
	if err != nil {
		return nil, fmt.Errorf(errFmtReadArtifact, weightsPath, err)
	}
	defer file.Close()

	err = m.ReadWeights(file)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", weightsPath, err)
	}

	return m, nil
}

// Save writes base+".json" and base+".weights".
func (m *Model) Save(base string) error {
	archData, err := json.MarshalIndent(m.arch, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode architecture: %w", err)
	}

	archPath := base + ArchitectureExt

	err = os.WriteFile(archPath, archData, artifactPerms)
	if err != nil {
		return fmt.Errorf(errFmtWriteArtifact, archPath, err)
	}

	weightsPath := base + WeightsExt

	file, err := os.OpenFile(weightsPath, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, artifactPerms)
	if err != nil {
		return fmt.Errorf(errFmtWriteArtifact, weightsPath, err)
	}

	writeErr := m.WriteWeights(file)
	closeErr := file.Close()

	if writeErr != nil {
		return fmt.Errorf(errFmtWriteArtifact, weightsPath, writeErr)
	}

	if closeErr != nil {
		return fmt.Errorf(errFmtWriteArtifact, weightsPath, closeErr)
	}

	return nil
}
