// Wardsight - Risk-Adaptive Video Stream Analytics
// Copyright 2026 Wardsight Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/wardsight/wardsight

package config

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks struct tags plus the cross-field constraints the tags
// cannot express. All violations are reported together.
func (c *Config) Validate() error {
	var errs []error

	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			for _, ve := range verrs {
				errs = append(errs, fmt.Errorf("%s: failed %q validation (value %v)",
					ve.Namespace(), ve.Tag(), ve.Value()))
			}
		} else {
			errs = append(errs, err)
		}
	}

	if c.Detector.Timeout <= 0 {
		errs = append(errs, errors.New("detector.timeout must be positive"))
	}
	if c.Engine.SessionTTL <= 0 {
		errs = append(errs, errors.New("engine.session_ttl must be positive"))
	}
	if c.Engine.SweepInterval <= 0 {
		errs = append(errs, errors.New("engine.sweep_interval must be positive"))
	}
	if c.Engine.SweepInterval > c.Engine.SessionTTL {
		errs = append(errs, errors.New("engine.sweep_interval must not exceed engine.session_ttl"))
	}
	if c.NATS.Enabled && c.NATS.URL == "" && !c.NATS.EmbeddedServer {
		errs = append(errs, errors.New("nats.url is required when nats is enabled without the embedded server"))
	}
	if c.MQTT.Enabled && c.MQTT.Broker == "" {
		errs = append(errs, errors.New("mqtt.broker is required when mqtt is enabled"))
	}
	if c.MQTT.QoS > 2 {
		errs = append(errs, errors.New("mqtt.qos must be 0, 1 or 2"))
	}
	if c.Webhook.Enabled && c.Webhook.URL == "" {
		errs = append(errs, errors.New("webhook.url is required when the webhook notifier is enabled"))
	}
	if c.Evidence.Enabled && c.Evidence.Endpoint == "" {
		errs = append(errs, errors.New("evidence.endpoint is required when evidence upload is enabled"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid configuration: %w", errors.Join(errs...))
	}
	return nil
}
