// Package buffer provides the fixed pool of reference-counted audio blocks
// that carries audio between effects. The pool is sized once; running out
// of blocks is not an error but a missing block, which every engine treats
// as silence.
package buffer
