package config

import "fmt"

// MissingKeyError reports a required key without a value.
type MissingKeyError struct {
	Key string // "section.key"
}

func (e *MissingKeyError) Error() string {
	return fmt.Sprintf("missing required configuration key %s", e.Key)
}

// FileError reports an unreadable or unparsable configuration file.
type FileError struct {
	Path string
	Err  error
}

func (e *FileError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("config: %v", e.Err)
	}
	return fmt.Sprintf("config %s: %v", e.Path, e.Err)
}

func (e *FileError) Unwrap() error {
	return e.Err
}
