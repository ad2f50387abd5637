// Package flaccore implements the core codec engine of a lossless
// audio compressor compatible with the FLAC bitstream format: bit
// I/O, frame encoding and decoding, metadata block framing, and
// verify-during-encode. Container parsing (WAV/AIFF), command-line
// tooling, and loudness/ReplayGain analysis are external collaborators
// layered on top — see cmd/flaccore for one such collaborator.
package flaccore

// Signature is the four-byte marker that opens every FLAC stream.
const Signature = "fLaC"
