// Package svm evaluates the linear decision function used to classify one sample.
//
// The kernel is pure: no state, no allocation, no suspension points. Both
// pipelines call it with the same slices so their results are bit-identical.
package svm

import "coroinfer/fixed"

// Infer returns true iff sum(w[i]*x[i] for i < count) is strictly greater than bias.
// Products and the running sum saturate (see fixed.Q). count == 0 compares a
// zero sum against bias.
//
//go:nosplit
//go:inline
func Infer(w, x []fixed.Q, bias fixed.Q, count int) bool {
	w, x = w[:count], x[:count] // one bounds check up front
	var total fixed.Q
	for i := range x {
		total = total.AddSat(w[i].Mul(x[i]))
	}
	return total > bias
}

// InferRow classifies x against a weight row laid out as [bias, c0 .. cL-1].
func InferRow(row, x []fixed.Q) bool {
	return Infer(row[1:], x, row[0], len(x))
}
