package ledger

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func Test_Version(t *testing.T) {
	t.Run("Should render and parse versions", func(t *testing.T) {
		assert.Equal(t, "1.0.0", Version_Base.String())
		assert.Equal(t, "2.0.0", Version_FeeAware.String())

		v, err := ParseVersion("2.0.0")
		assert.Nil(t, err)
		assert.Equal(t, Version_FeeAware, v)

		v, err = ParseVersion("")
		assert.Nil(t, err)
		assert.Equal(t, Version_Uninitialized, v)

		_, err = ParseVersion("3.0.0")
		assert.NotNil(t, err)
		_, err = ParseVersion("banana")
		assert.NotNil(t, err)
	})
	t.Run("Should only move forward one step at a time", func(t *testing.T) {
		v, err := Version_Uninitialized.Transition(Version_Base)
		assert.Nil(t, err)
		assert.Equal(t, Version_Base, v)

		v, err = v.Transition(Version_FeeAware)
		assert.Nil(t, err)
		assert.Equal(t, Version_FeeAware, v)

		_, err = Version_FeeAware.Transition(Version_FeeAware)
		assert.ErrorIs(t, err, ErrAlreadyInitialized)
		_, err = Version_FeeAware.Transition(Version_Base)
		assert.ErrorIs(t, err, ErrAlreadyInitialized)
		_, err = Version_Base.Transition(Version_Base)
		assert.ErrorIs(t, err, ErrAlreadyInitialized)
		_, err = Version_Uninitialized.Transition(Version_FeeAware)
		assert.ErrorIs(t, err, ErrNotInitialized)
	})
}
