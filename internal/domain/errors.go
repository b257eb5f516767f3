package domain

import "marketcore/internal/corekit"

func errValidation(format string, args ...any) error {
	return corekit.Validationf(format, args...)
}
