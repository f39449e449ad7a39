package model

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

// activation transforms the channel values of one spatial position in place.
type activation func(values []float64)

func parseActivation(name string) (activation, error) {
	switch name {
	case ActivationLinear, "":
		return func([]float64) {}, nil
	case ActivationReLU:
		return relu, nil
	case ActivationSigmoid:
		return sigmoid, nil
	case ActivationTanh:
		return tanh, nil
	case ActivationSoftmax:
		return softmax, nil
	default:
		return nil, fmt.Errorf("%w: unknown activation %q", ErrInvalidArchitecture, name)
	}
}

func relu(values []float64) {
	for i, v := range values {
		values[i] = math.Max(0, v)
	}
}

func sigmoid(values []float64) {
	for i, v := range values {
		values[i] = 1 / (1 + math.Exp(-v))
	}
}

func tanh(values []float64) {
	for i, v := range values {
		values[i] = math.Tanh(v)
	}
}

func softmax(values []float64) {
	peak := floats.Max(values)

	for i, v := range values {
		values[i] = math.Exp(v - peak)
	}

	floats.Scale(1/floats.Sum(values), values)
}
