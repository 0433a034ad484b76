package common

import "fmt"

var (
	ErrSetup                 = fmt.Errorf("setup error")
	ErrResourceLimitExceeded = fmt.Errorf("resource limit exceeded")
	ErrPathTraversal         = fmt.Errorf("entry is trying to leave the target dir")
	ErrMalformedHeader       = fmt.Errorf("malformed model header")
	ErrUploadRejected        = fmt.Errorf("upload rejected")
	ErrRegistryUnavailable   = fmt.Errorf("registry unavailable")
	ErrInterrupted           = fmt.Errorf("run interrupted")
	ErrRunAlreadyStarted     = fmt.Errorf("acquisition run has already started")
	ErrNotAFile              = fmt.Errorf("not a regular file")
)
