package handlers

import (
	"context"
	"strings"

	"github.com/biter777/countries"

	"github.com/bsaid97/go-boundary-prep/utils"
)

// CheckISOCode lower-cases iso and swaps codes the pipeline does not support
// for their replacements.
func CheckISOCode(iso string, overrides map[string]string) string {
	iso = strings.ToLower(strings.TrimSpace(iso))
	if replacement, ok := overrides[iso]; ok {
		return strings.ToLower(replacement)
	}
	return iso
}

// KnownISOCode reports whether iso is an ISO 3166 code.
func KnownISOCode(iso string) bool {
	return countries.ByName(strings.ToUpper(iso)) != countries.Unknown
}

// ResolveISO normalises the iso argument of the check command. With check
// set the override table is applied and unknown codes are reported; state
// or other alternate codes are still accepted.
func ResolveISO(ctx context.Context, iso string, check bool, overrides map[string]string) string {
	logger := utils.LoggerFromContext(ctx)
	if !check {
		return strings.ToLower(strings.TrimSpace(iso))
	}

	logger.Info("Checking ISO code...")
	resolved := CheckISOCode(iso, overrides)
	if resolved != strings.ToLower(strings.TrimSpace(iso)) {
		// Replacements are pipeline codes, not ISO 3166 ones.
		logger.Infof("ISO code %s replaced with %s.", iso, resolved)
		return resolved
	}
	if !KnownISOCode(resolved) {
		logger.Warnf("ISO code %s is not a known ISO 3166 code.", resolved)
	}
	return resolved
}
