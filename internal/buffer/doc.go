// Package buffer provides a reader that can replay a one-shot stream.
//
// A network body can only be read once. Rewindable mirrors every byte it
// hands out so that, after the source is exhausted, the same bytes can be
// read a second time without another request. The HTML retriever parses
// the body in the first pass and digests the original bytes in the second.
package buffer
