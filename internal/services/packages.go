package services

import (
	"errors"
	"fmt"
	"strings"

	"tour-video-backend/internal/models"
)

var (
	ErrUnknownPackage     = errors.New("unknown package")
	ErrInvalidPackageSize = errors.New("image count outside package range")
)

// PackageLimits is the inclusive range of images a tier accepts.
type PackageLimits struct {
	Min int
	Max int
}

var packageLimits = map[models.PackageTier]PackageLimits{
	models.PackageStarter:      {Min: 5, Max: 10},
	models.PackageProfessional: {Min: 11, Max: 20},
	models.PackagePremium:      {Min: 21, Max: 30},
}

// LimitsFor returns the image range for a tier.
func LimitsFor(tier models.PackageTier) (PackageLimits, bool) {
	limits, ok := packageLimits[tier]
	return limits, ok
}

// ValidatePackage normalizes the tier name and checks count against its range.
func ValidatePackage(name string, count int) (models.PackageTier, error) {
	tier := models.PackageTier(strings.ToLower(strings.TrimSpace(name)))
	limits, ok := packageLimits[tier]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownPackage, name)
	}
	if count < limits.Min || count > limits.Max {
		return "", fmt.Errorf("%w: %s requires %d-%d images, got %d",
			ErrInvalidPackageSize, tier, limits.Min, limits.Max, count)
	}
	return tier, nil
}
