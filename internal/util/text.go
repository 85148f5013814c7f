package util

import "strings"

// Tokenize lowercases and splits on spaces and punctuation. Used for the
// corpus vocabulary.
func Tokenize(s string) []string {
	s = strings.ToLower(s)
	repl := strings.NewReplacer(
		",", " ", ".", " ", "!", " ", "?", " ", ":", " ", ";", " ",
		"\n", " ", "\t", " ", "\r", " ", "(", " ", ")", " ", "[", " ", "]", " ",
		"\"", " ", "'", " ",
	)
	s = repl.Replace(s)
	return strings.Fields(s)
}
