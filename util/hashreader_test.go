package util

import (
	"encoding/hex"
	"io/ioutil"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const hashInput = "hello1 hello2 hello3 hello4 hello5abcdefghijklmnopqrstuvwxyz0123456789"

func TestHashReader(t *testing.T) {
	goalMD5, _ := hex.DecodeString("0101fc798d94a730b0f0bf1bd2cc1959")
	goalSHA256, _ := hex.DecodeString("fef15edd82b33633582c723562d192fec2d2003df12d4aeac89df17c279a1658")

	hr := NewHashReader(strings.NewReader(hashInput), nil)
	data, err := ioutil.ReadAll(hr)
	require.NoError(t, err)
	assert.Equal(t, hashInput, string(data))
	assert.Equal(t, goalMD5, hr.MD5())
	assert.Equal(t, goalSHA256, hr.SHA256())

	hr = NewHashReader(strings.NewReader(hashInput), goalMD5)
	_, err = ioutil.ReadAll(hr)
	assert.NoError(t, err)
}

func TestHashReaderMismatch(t *testing.T) {
	wrong, _ := hex.DecodeString("00000000000000000000000000000000")
	hr := NewHashReader(strings.NewReader(hashInput), wrong)
	_, err := ioutil.ReadAll(hr)
	require.Error(t, err)
	assert.Equal(t, ErrChecksumMismatch, errors.Cause(err))
}
