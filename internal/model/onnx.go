package model

import (
	"errors"
	"fmt"
	"sync"

	"github.com/book-expert/captcha-lab/internal/tensor"
	ort "github.com/yalue/onnxruntime_go"
)

// ONNXExt is the extension of models exported from Keras with tf2onnx.
const ONNXExt = ".onnx"

const (
	onnxInputRank      = 4
	errFmtONNXSession  = "failed to open onnx model %s: %w"
	errFmtONNXRun      = "onnx inference failed: %w"
	errFmtONNXRuntime  = "failed to initialize onnxruntime from %s: %w"
	errFmtRuntimeInUse = "%w: already initialized from %s"
)

// Errors returned by the ONNX backend.
var (
	ErrNoRuntimeLibrary = errors.New("onnxruntime shared library path is not set")
	ErrRuntimeConflict  = errors.New("onnxruntime library conflict")
	ErrONNXInput        = errors.New("unsupported onnx model input")
	ErrONNXOutput       = errors.New("unsupported onnx model output")
)

var (
	runtimeMu      sync.Mutex
	runtimeLibrary string
)

// initRuntime loads the onnxruntime shared library once per process.
func initRuntime(libPath string) error {
	if libPath == "" {
		return ErrNoRuntimeLibrary
	}

	runtimeMu.Lock()
	defer runtimeMu.Unlock()

	if ort.IsInitialized() {
		if libPath != runtimeLibrary {
			return fmt.Errorf(errFmtRuntimeInUse, ErrRuntimeConflict, runtimeLibrary)
		}

		return nil
	}

	ort.SetSharedLibraryPath(libPath)

	err := ort.InitializeEnvironment()
	if err != nil {
		return fmt.Errorf(errFmtONNXRuntime, libPath, err)
	}

	runtimeLibrary = libPath

	return nil
}

// ONNXModel runs a Keras CAPTCHA model exported to ONNX. The model takes one
// float32 (1, H, W, 1) or (1, 1, H, W) input. Every output is either a
// (1, classes) head for one position or a (1, positions, classes) block.
type ONNXModel struct {
	session      *ort.DynamicAdvancedSession
	inputShape   ort.Shape
	outputShapes []ort.Shape
	height       int
	width        int
}

// LoadONNX opens path with the onnxruntime library at libPath.
func LoadONNX(path, libPath string) (*ONNXModel, error) {
	err := initRuntime(libPath)
	if err != nil {
		return nil, err
	}

	inputs, outputs, err := ort.GetInputOutputInfo(path)
	if err != nil {
		return nil, fmt.Errorf(errFmtONNXSession, path, err)
	}

	m := &ONNXModel{}

	err = m.bindInput(inputs)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	outputNames, err := m.bindOutputs(outputs)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	m.session, err = ort.NewDynamicAdvancedSession(path, []string{inputs[0].Name}, outputNames, nil)
	if err != nil {
		return nil, fmt.Errorf(errFmtONNXSession, path, err)
	}

	return m, nil
}

func (m *ONNXModel) bindInput(inputs []ort.InputOutputInfo) error {
	if len(inputs) != 1 {
		return fmt.Errorf("%w: want one input, got %d", ErrONNXInput, len(inputs))
	}

	info := inputs[0]
	if info.DataType != ort.TensorElementDataTypeFloat || len(info.Dimensions) != onnxInputRank {
		return fmt.Errorf("%w: %s must be a rank 4 float tensor, got %v", ErrONNXInput, info.Name, info.Dimensions)
	}

	m.inputShape = concreteShape(info.Dimensions)

	switch {
	case m.inputShape[3] == 1:
		m.height, m.width = int(m.inputShape[1]), int(m.inputShape[2])
	case m.inputShape[1] == 1:
		m.height, m.width = int(m.inputShape[2]), int(m.inputShape[3])
	default:
		return fmt.Errorf("%w: %s must have a single channel, got %v", ErrONNXInput, info.Name, info.Dimensions)
	}

	if m.inputShape[0] != 1 || m.height <= 1 || m.width <= 1 {
		return fmt.Errorf("%w: %s needs a fixed image size, got %v", ErrONNXInput, info.Name, info.Dimensions)
	}

	return nil
}

func (m *ONNXModel) bindOutputs(outputs []ort.InputOutputInfo) ([]string, error) {
	if len(outputs) == 0 {
		return nil, fmt.Errorf("%w: model has no outputs", ErrONNXOutput)
	}

	names := make([]string, 0, len(outputs))

	for _, info := range outputs {
		shape := concreteShape(info.Dimensions)
		if info.DataType != ort.TensorElementDataTypeFloat || len(shape) < 2 || len(shape) > 3 || shape[0] != 1 {
			return nil, fmt.Errorf("%w: %s must be (1, classes) or (1, positions, classes) float, got %v",
				ErrONNXOutput, info.Name, info.Dimensions)
		}

		names = append(names, info.Name)
		m.outputShapes = append(m.outputShapes, shape)
	}

	return names, nil
}

// concreteShape replaces dynamic dimensions with 1, the batch size used here.
func concreteShape(dims ort.Shape) ort.Shape {
	shape := append(ort.Shape{}, dims...)
	for i, d := range shape {
		if d < 1 {
			shape[i] = 1
		}
	}

	return shape
}

// InputShape returns the height and width of the expected input tensor.
func (m *ONNXModel) InputShape() (int, int) {
	return m.height, m.width
}

// Predict runs the session and returns one probability vector per CAPTCHA position.
func (m *ONNXModel) Predict(input *tensor.Tensor) ([][]float64, error) {
	err := input.Expect(m.height, m.width)
	if err != nil {
		return nil, err
	}

	data := make([]float32, len(input.Data))
	for i, v := range input.Data {
		data[i] = float32(v)
	}

	in, err := ort.NewTensor(m.inputShape, data)
	if err != nil {
		return nil, fmt.Errorf(errFmtONNXRun, err)
	}
	defer in.Destroy()

	outs := make([]*ort.Tensor[float32], 0, len(m.outputShapes))
	defer func() {
		for _, out := range outs {
			_ = out.Destroy()
		}
	}()

	values := make([]ort.Value, 0, len(m.outputShapes))

	for _, shape := range m.outputShapes {
		out, tensorErr := ort.NewEmptyTensor[float32](shape)
		if tensorErr != nil {
			return nil, fmt.Errorf(errFmtONNXRun, tensorErr)
		}

		outs = append(outs, out)
		values = append(values, out)
	}

	err = m.session.Run([]ort.Value{in}, values)
	if err != nil {
		return nil, fmt.Errorf(errFmtONNXRun, err)
	}

	var probabilities [][]float64

	for i, out := range outs {
		shape := m.outputShapes[i]
		classes := int(shape[len(shape)-1])
		flat := out.GetData()

		for start := 0; start+classes <= len(flat); start += classes {
			row := make([]float64, classes)
			for j, v := range flat[start : start+classes] {
				row[j] = float64(v)
			}

			probabilities = append(probabilities, row)
		}
	}

	return probabilities, nil
}

// Close releases the onnxruntime session.
func (m *ONNXModel) Close() error {
	if m.session == nil {
		return nil
	}

	err := m.session.Destroy()
	m.session = nil

	return err
}
