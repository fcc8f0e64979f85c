// Package stringtest holds helpers for building expected multi-line output in
// tests.
package stringtest

import "strings"

// JoinLF joins lines with "\n". A trailing "" produces a final newline, and
// leading or repeated "" produce blank lines, so terminal output can be
// written one line per argument:
//
//	want := stringtest.JoinLF(
//		"",
//		"on ubuntu, you can run:",
//		"",
//	) // -> "\non ubuntu, you can run:\n"
func JoinLF(lines ...string) string {
	return strings.Join(lines, "\n")
}
