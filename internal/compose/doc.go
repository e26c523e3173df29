// Package compose joins ordered part files into a single highlight. Hard
// cuts concatenate streams without re-encoding; transition styles overlap
// each boundary with an xfade video filter and an audio crossfade, checking
// audio/video alignment after every join so drift never compounds.
package compose
