package config

import "github.com/pkg/errors"

func newFieldRequiredError(field string) error {
	return errors.Errorf("error validating config: %q is required", field)
}

func newInvalidFieldError(field string, value interface{}, reason string) error {
	return errors.Errorf("error validating config: %q %v %s", field, value, reason)
}
