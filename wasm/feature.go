// Copyright 2017 The go-interpreter Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package wasm

import "github.com/willf/bitset"

// Feature is one bit in a Features set, gating a post-1.0 Wasm extension.
type Feature uint

const (
	FeatureMutableGlobals Feature = iota
	FeatureSignExtensionOps
	FeatureSaturatingFloatToInt
	FeatureMultiValue
	FeatureReferenceTypes
	FeatureBulkMemory
	FeatureTailCall
	FeatureSIMD
	FeatureThreads
	FeatureExceptions
	FeatureMultiMemory

	featureCount
)

var featureNames = [...]string{
	FeatureMutableGlobals:       "mutable-globals",
	FeatureSignExtensionOps:     "sign-extension-ops",
	FeatureSaturatingFloatToInt: "saturating-float-to-int",
	FeatureMultiValue:           "multi-value",
	FeatureReferenceTypes:       "reference-types",
	FeatureBulkMemory:           "bulk-memory",
	FeatureTailCall:             "tail-call",
	FeatureSIMD:                 "simd",
	FeatureThreads:              "threads",
	FeatureExceptions:           "exceptions",
	FeatureMultiMemory:          "multi-memory",
}

func (f Feature) String() string {
	if int(f) < len(featureNames) {
		return featureNames[f]
	}
	return "unknown-feature"
}

// Features is the set of post-1.0 extensions a decode/validate call accepts.
// It is backed by a bitset.BitSet, since the universe of flags is small and
// fixed and membership tests are on the hot path of every instruction
// decode.
type Features struct {
	bits bitset.BitSet
}

// NewFeatures builds a Features set with the given flags enabled.
func NewFeatures(enabled ...Feature) Features {
	var f Features
	for _, e := range enabled {
		f.Set(e)
	}
	return f
}

// AllFeatures returns a Features set with every known extension enabled.
func AllFeatures() Features {
	var f Features
	for i := Feature(0); i < featureCount; i++ {
		f.Set(i)
	}
	return f
}

// Set enables feature.
func (f *Features) Set(feature Feature) {
	f.bits.Set(uint(feature))
}

// Clear disables feature.
func (f *Features) Clear(feature Feature) {
	f.bits.Clear(uint(feature))
}

// Has reports whether feature is enabled.
func (f Features) Has(feature Feature) bool {
	return f.bits.Test(uint(feature))
}
