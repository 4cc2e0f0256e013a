package core

import "io"

// Uploader is any service that can store user-submitted files
// and serve them back at a public URL.
type Uploader interface {
	// Upload stores the file content and returns its public URL.
	Upload(filename string, content io.Reader) (string, error)
}
