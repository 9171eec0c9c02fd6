package reactor

import (
	"errors"
	"fmt"
)

// Construction errors.
var (
	ErrNoReactions           = errors.New("reactor: no reactions")
	ErrDuplicateReaction     = errors.New("reactor: duplicate reaction name")
	ErrNonPositiveVolume     = errors.New("reactor: volume must be positive")
	ErrMissingSpecies        = errors.New("reactor: concentration missing for species")
	ErrNegativeConcentration = errors.New("reactor: negative concentration")
	ErrMissingParameter      = errors.New("reactor: required parameter not set")
	ErrNonPositiveFlowRate   = errors.New("reactor: flow rate must be positive")
	ErrInitialVolumeRange    = errors.New("reactor: initial volume outside [0, volume]")
	ErrUnknownRegime         = errors.New("reactor: unknown regime")
)

// Call-time errors.
var (
	ErrMissingSpan              = errors.New("reactor: span must be positive")
	ErrSpeciesNotFound          = errors.New("reactor: species not found")
	ErrZeroInitialConcentration = errors.New("reactor: conversion undefined for zero initial concentration")
	ErrInvalidConversion        = errors.New("reactor: conversion target outside [0, 1]")
	ErrSteadyStateNotReached    = errors.New("reactor: steady state not reached")
	ErrConversionExceedsMaximum = errors.New("reactor: conversion exceeds achievable maximum")
)

// ConversionError reports a conversion target beyond what the reactor
// reaches at steady state.
type ConversionError struct {
	Species string
	Target  float64
	Maximum float64
}

func (e *ConversionError) Error() string {
	return fmt.Sprintf("reactor: conversion %.4g of %s exceeds maximum %.4g", e.Target, e.Species, e.Maximum)
}

func (e *ConversionError) Is(target error) bool {
	return target == ErrConversionExceedsMaximum
}
