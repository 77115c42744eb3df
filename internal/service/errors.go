package service

import (
	"fmt"
)

type ErrResourceNotFound struct {
	error
}

func NewErrResourceNotFound(id string, resourceType string) *ErrResourceNotFound {
	return &ErrResourceNotFound{fmt.Errorf("%s %s not found", resourceType, id)}
}

func NewErrJobNotFound(id string) *ErrResourceNotFound {
	return NewErrResourceNotFound(id, "job")
}

func NewErrFileNotFound(name string) *ErrResourceNotFound {
	return NewErrResourceNotFound(name, "file")
}

type ErrInvalidTask struct {
	error
}

func NewErrInvalidTask(message string) *ErrInvalidTask {
	return &ErrInvalidTask{fmt.Errorf("bad request: %s", message)}
}
