package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"tour-video-backend/internal/models"
)

func TestValidatePackage_StarterBounds(t *testing.T) {
	for _, n := range []int{5, 10} {
		tier, err := ValidatePackage("Starter", n)
		require.NoError(t, err, "count %d", n)
		assert.Equal(t, models.PackageStarter, tier)
	}
	for _, n := range []int{4, 11} {
		_, err := ValidatePackage("starter", n)
		assert.ErrorIs(t, err, ErrInvalidPackageSize, "count %d", n)
	}
}

func TestValidatePackage_OtherTiers(t *testing.T) {
	_, err := ValidatePackage("professional", 11)
	assert.NoError(t, err)
	_, err = ValidatePackage("premium", 30)
	assert.NoError(t, err)
	_, err = ValidatePackage("premium", 20)
	assert.ErrorIs(t, err, ErrInvalidPackageSize)
	_, err = ValidatePackage("platinum", 5)
	assert.ErrorIs(t, err, ErrUnknownPackage)
}
