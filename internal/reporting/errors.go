package reporting

import (
	"fmt"

	"github.com/alanyoungcy/resolvd/internal/domain"
)

func wrongPhase(want, got domain.ReportingState) error {
	return fmt.Errorf("reporting: requires state %s, market is %s: %w", want, got, domain.ErrWrongPhase)
}
