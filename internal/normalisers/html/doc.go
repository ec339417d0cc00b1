// Package html turns HTML fragments, such as feed item bodies, into plain
// text suitable for chunking. Scripts, styles and comments are dropped,
// block elements become line breaks and entities are decoded.
package html
