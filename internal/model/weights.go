package model

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// Weights file layout: magic, version, parameter count, then float32 values,
// all little-endian.
const weightsVersion uint32 = 1

var weightsMagic = [4]byte{'C', 'P', 'T', 'W'}

type weightsHeader struct {
	Magic   [4]byte
	Version uint32
	Count   uint64
}

// WriteWeights serializes the parameters.
func (m *Model) WriteWeights(w io.Writer) error {
	params := m.Params()
	buffered := bufio.NewWriter(w)

	header := weightsHeader{Magic: weightsMagic, Version: weightsVersion, Count: uint64(len(params))}

	err := binary.Write(buffered, binary.LittleEndian, header)
	if err != nil {
		return fmt.Errorf("failed to write weights header: %w", err)
	}

	values := make([]float32, len(params))
	for i, p := range params {
		values[i] = float32(p)
	}

	err = binary.Write(buffered, binary.LittleEndian, values)
	if err != nil {
		return fmt.Errorf("failed to write weights: %w", err)
	}

	return buffered.Flush()
}

// ReadWeights loads parameters written by WriteWeights. Short files and
// trailing data are both errors.
func (m *Model) ReadWeights(r io.Reader) error {
	buffered := bufio.NewReader(r)

	var header weightsHeader

	err := binary.Read(buffered, binary.LittleEndian, &header)
	if err != nil {
		return fmt.Errorf("%w: header: %w", ErrInvalidWeightsFile, err)
	}

	if header.Magic != weightsMagic {
		return fmt.Errorf("%w: bad magic %q", ErrInvalidWeightsFile, header.Magic[:])
	}

	if header.Version != weightsVersion {
		return fmt.Errorf("%w: unsupported version %d", ErrInvalidWeightsFile, header.Version)
	}

	want := m.ParamCount()
	if header.Count != uint64(want) {
		return fmt.Errorf("%w: architecture needs %d, file declares %d", ErrWeightCount, want, header.Count)
	}

	values := make([]float32, want)

	err = binary.Read(buffered, binary.LittleEndian, values)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrWeightCount, err)
	}

	_, err = buffered.ReadByte()
	if !errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: trailing data after %d parameters", ErrWeightCount, want)
	}

	params := make([]float64, want)
	for i, v := range values {
		params[i] = float64(v)
	}

	return m.SetParams(params)
}
