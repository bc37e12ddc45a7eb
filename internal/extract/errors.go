package extract

import "errors"

// ErrParse is returned when a document cannot be decoded or parsed.
var ErrParse = errors.New("document parse failed")
