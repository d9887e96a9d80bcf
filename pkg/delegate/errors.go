package delegate

import "fmt"

// ConfigurationError reports a malformed or missing setting detected while
// building a session. It is never retried.
type ConfigurationError struct {
	Setting string
	Err     error
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error: %s: %v", e.Setting, e.Err)
}

func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

// ConnectionError reports that no filesystem handle could be obtained.
type ConnectionError struct {
	URI string
	Err error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("cannot connect to %s: %v", e.URI, e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// CopyError is returned by Session.Copy when the copy reports failure
// without an underlying error.
type CopyError struct {
	Src string
	Dst string
}

func (e *CopyError) Error() string {
	return fmt.Sprintf("can't copy source file from %s to %s", e.Src, e.Dst)
}
