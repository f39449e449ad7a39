// Package model runs inference for pre-trained CAPTCHA classifiers.
//
// A model is two artifacts sharing a base name: <name>.json describes the input
// shape, a sequential trunk of layers and one dense output head per CAPTCHA
// position; <name>.weights holds the float32 parameters in layer order.
// Models trained in Keras are exported with tf2onnx to <name>.onnx and run
// through onnxruntime instead.
package model

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// Layer types.
const (
	LayerConv2D             = "conv2d"
	LayerMaxPooling2D       = "max_pooling2d"
	LayerBatchNormalization = "batch_normalization"
	LayerDropout            = "dropout"
	LayerFlatten            = "flatten"
	LayerDense              = "dense"
)

// Padding modes for conv2d.
const (
	PaddingSame  = "same"
	PaddingValid = "valid"
)

// Activation names.
const (
	ActivationLinear  = "linear"
	ActivationReLU    = "relu"
	ActivationSigmoid = "sigmoid"
	ActivationSoftmax = "softmax"
	ActivationTanh    = "tanh"
)

const defaultBatchNormEpsilon = 1e-3

// Errors returned while building or running a model.
var (
	ErrInvalidArchitecture = errors.New("invalid model architecture")
	ErrWeightCount         = errors.New("weight count does not match architecture")
	ErrInvalidWeightsFile  = errors.New("invalid weights file")
	ErrKerasModel          = errors.New("keras model json is not loadable, export the model to .onnx with tf2onnx")
)

// Shape is a (height, width, channels) activation shape.
type Shape struct {
	Height   int `json:"height"`
	Width    int `json:"width"`
	Channels int `json:"channels"`
}

// Size returns the number of values in the shape.
func (s Shape) Size() int {
	return s.Height * s.Width * s.Channels
}

func (s Shape) String() string {
	return fmt.Sprintf("%dx%dx%d", s.Height, s.Width, s.Channels)
}

// LayerSpec describes one layer. Only the fields relevant to Type are used.
type LayerSpec struct {
	Type       string  `json:"type"`
	Filters    int     `json:"filters,omitempty"`
	Kernel     []int   `json:"kernel,omitempty"`
	Padding    string  `json:"padding,omitempty"`
	Pool       []int   `json:"pool,omitempty"`
	Units      int     `json:"units,omitempty"`
	Activation string  `json:"activation,omitempty"`
	Epsilon    float64 `json:"epsilon,omitempty"`
}

// Architecture is the JSON model description.
type Architecture struct {
	Name   string      `json:"name"`
	Input  Shape       `json:"input"`
	Layers []LayerSpec `json:"layers"`
	Heads  []LayerSpec `json:"heads"`
}

// ParseArchitecture decodes a JSON architecture document. Unknown fields are
// rejected, and a Keras model.to_json document is reported as ErrKerasModel.
func ParseArchitecture(data []byte) (*Architecture, error) {
	if isKerasDocument(data) {
		return nil, ErrKerasModel
	}

	var arch Architecture

	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.DisallowUnknownFields()

	err := decoder.Decode(&arch)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidArchitecture, err)
	}

	return &arch, nil
}

func isKerasDocument(data []byte) bool {
	var fields map[string]json.RawMessage

	if json.Unmarshal(data, &fields) != nil {
		return false
	}

	_, hasClass := fields["class_name"]
	_, hasConfig := fields["config"]

	return hasClass && hasConfig
}

// Positions returns the number of CAPTCHA positions the model predicts.
func (a *Architecture) Positions() int {
	return len(a.Heads)
}
