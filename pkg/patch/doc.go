// Package patch parses and applies ed-style diff scripts.
//
// A script is the normal output of diff(1) restricted to append ("2a3,4") and
// change ("5c7") commands. Anchors always refer to the original, unmodified
// file, so Apply processes operations from the last one to the first. Parsing
// is permissive: lines that are not recognised are skipped. Application is
// strict: out-of-range anchors and overlapping operations are reported as
// *Error values instead of producing a corrupted file.
//
// Lines are handled as strings that keep their own "\n" terminator, the same
// shape produced by SplitLines. Patched output always ends every line with a
// terminator.
package patch
