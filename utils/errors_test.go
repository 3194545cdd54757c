package utils

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCodedErrors(t *testing.T) {
	cause := errors.New("disk on fire")
	err := WrapError(ErrCodeFileNotFound, cause, "cannot read %s", "words.txt")

	assert.True(t, IsCode(err, ErrCodeFileNotFound))
	assert.False(t, IsCode(err, ErrCodeInternal))
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, ErrCodeFileNotFound, GetCode(err))
	assert.Equal(t, "cannot read words.txt: disk on fire", UserMessage(err))
	assert.Equal(t, "FILE_NOT_FOUND: cannot read words.txt: disk on fire", err.Error())

	plain := errors.New("plain")
	assert.Equal(t, Code(""), GetCode(plain))
	assert.Equal(t, "plain", UserMessage(plain))
}
