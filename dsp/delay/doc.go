// Package delay provides the circular sample buffer every delay-based
// effect is built from.
//
// A Line separates writing from advancing: Process, WriteToOffset and the
// Tap readers all address positions relative to the current index, and
// UpdateIndex advances it exactly once per sample. This lets a feedback
// topology perform several reads and writes on one line per sample before
// committing. The sequential Write/Read pair is kept for simple use.
package delay
