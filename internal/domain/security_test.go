package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSecurityInfo(t *testing.T) {
	info, err := NewSecurityInfo("Ayende", "user-1")
	require.NoError(t, err)
	assert.Equal(t, "Ayende", info.Name)
	assert.Equal(t, "user-1", info.Identifier)

	_, err = NewSecurityInfo("", "user-1")
	assert.Error(t, err)

	_, err = NewSecurityInfo("Ayende", "")
	assert.Error(t, err)
}
