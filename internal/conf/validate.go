// conf/validate.go

package conf

import (
	"fmt"
	"strconv"
	"strings"
)

// ValidationError represents a collection of validation errors
type ValidationError struct {
	Errors []string
}

// Error returns a string representation of the validation errors
func (ve ValidationError) Error() string {
	return fmt.Sprintf("Validation errors: %v", ve.Errors)
}

// ValidateSettings validates the entire Settings struct
func ValidateSettings(settings *Settings) error {
	ve := ValidationError{}

	if err := validateIngestSettings(&settings.Ingest); err != nil {
		ve.Errors = append(ve.Errors, err.Error())
	}

	if err := validateCorrelatorSettings(&settings.Correlator); err != nil {
		ve.Errors = append(ve.Errors, err.Error())
	}

	if err := validateDetectorSettings(&settings.Detector); err != nil {
		ve.Errors = append(ve.Errors, err.Error())
	}

	if err := validateWebServerSettings(&settings.WebServer); err != nil {
		ve.Errors = append(ve.Errors, err.Error())
	}

	if len(ve.Errors) > 0 {
		return ve
	}
	return nil
}

// validateIngestSettings validates the record adapter settings
func validateIngestSettings(settings *IngestSettings) error {
	var errs []string

	if settings.Port < 1 || settings.Port > 65535 {
		errs = append(errs, "ingest port must be between 1 and 65535")
	}

	if settings.QueueSize < 1 {
		errs = append(errs, "ingest queue size must be at least 1")
	}

	switch settings.OverflowPolicy {
	case OverflowBlock, OverflowDropOldest:
	default:
		errs = append(errs, fmt.Sprintf("invalid overflow policy %q, must be %q or %q",
			settings.OverflowPolicy, OverflowBlock, OverflowDropOldest))
	}

	if settings.ReconnectMin <= 0 || settings.ReconnectMax < settings.ReconnectMin {
		errs = append(errs, "reconnect backoff bounds must be positive and min <= max")
	}

	if len(errs) > 0 {
		return fmt.Errorf("ingest settings errors: %s", strings.Join(errs, "; "))
	}
	return nil
}

// validateCorrelatorSettings validates the window manager settings
func validateCorrelatorSettings(settings *CorrelatorSettings) error {
	var errs []string

	if settings.Window.Policy != WindowPolicyTumbling {
		errs = append(errs, fmt.Sprintf("unsupported window policy %q, only %q is supported",
			settings.Window.Policy, WindowPolicyTumbling))
	}

	if settings.Window.Duration <= 0 {
		errs = append(errs, "window duration must be positive")
	}

	if settings.Window.Grace < 0 {
		errs = append(errs, "window grace must not be negative")
	}

	if len(errs) > 0 {
		return fmt.Errorf("correlator settings errors: %s", strings.Join(errs, "; "))
	}
	return nil
}

// validateDetectorSettings validates the rule thresholds
func validateDetectorSettings(settings *DetectorSettings) error {
	var errs []string

	if settings.MinDwell < 0 {
		errs = append(errs, "minimum dwell must not be negative")
	}

	if settings.PriceRatio <= 0 || settings.PriceRatio >= 1 {
		errs = append(errs, "price ratio must be between 0 and 1 exclusive")
	}

	if settings.WeightToleranceGrams < 0 {
		errs = append(errs, "weight tolerance must not be negative")
	}

	if settings.QueueThreshold < 1 {
		errs = append(errs, "queue threshold must be at least 1")
	}

	if settings.DwellThresholdSeconds <= 0 {
		errs = append(errs, "dwell threshold must be positive")
	}

	if settings.InventoryVariancePct <= 0 {
		errs = append(errs, "inventory variance threshold must be positive")
	}

	if settings.StaffingRatio <= 0 || settings.StaffingRatio > 1 {
		errs = append(errs, "staffing ratio must be between 0 exclusive and 1 inclusive")
	}

	if len(errs) > 0 {
		return fmt.Errorf("detector settings errors: %s", strings.Join(errs, "; "))
	}
	return nil
}

// validateWebServerSettings validates the dashboard API settings
func validateWebServerSettings(settings *WebServerSettings) error {
	var errs []string

	if settings.Enabled {
		port, err := strconv.Atoi(settings.Port)
		if err != nil || port < 1 || port > 65535 {
			errs = append(errs, "webserver port must be a valid port number")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("webserver settings errors: %s", strings.Join(errs, "; "))
	}
	return nil
}
