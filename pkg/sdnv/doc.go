// Package sdnv implements the self-delimiting numeric value encoding used
// throughout the Bundle Protocol wire format: a variable-length, big-endian,
// 7-bit-per-byte unsigned integer with a continuation bit in the high bit of
// every byte except the last.
package sdnv
