package config

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/hashicorp/go-multierror"
	"github.com/marmos91/dittodicom/pkg/admission"
	"github.com/marmos91/dittodicom/pkg/dicom"
)

var validate = validator.New()

// Validate checks struct tags, then the rules that span several sections:
// unique names and ports, resolvable references, parsable tags and
// percentages. All reference problems are reported together.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return formatValidationError(err)
	}
	return validateCustomRules(cfg)
}

func validateCustomRules(cfg *Config) error {
	var errs *multierror.Error

	strategies := make(map[string]bool, len(cfg.StorageStrategies))
	for i, s := range cfg.StorageStrategies {
		if strategies[s.Name] {
			errs = multierror.Append(errs, fmt.Errorf("storage_strategies[%d]: duplicate name %q", i, s.Name))
		}
		strategies[s.Name] = true

		for j, d := range s.Directories {
			if _, err := dicom.ParseTag(d.Tag); err != nil {
				errs = multierror.Append(errs, fmt.Errorf("storage_strategies[%d].directories[%d]: %w", i, j, err))
			}
		}
		if s.File.Tag != "" {
			if _, err := dicom.ParseTag(s.File.Tag); err != nil {
				errs = multierror.Append(errs, fmt.Errorf("storage_strategies[%d].file: %w", i, err))
			}
		}
	}

	ruleSets := make(map[string]bool, len(cfg.ModalityRuleSets))
	for i, rs := range cfg.ModalityRuleSets {
		if ruleSets[rs.Name] {
			errs = multierror.Append(errs, fmt.Errorf("modality_rule_sets[%d]: duplicate name %q", i, rs.Name))
		}
		ruleSets[rs.Name] = true

		if err := toRuleSet(rs).Validate(); err != nil {
			errs = multierror.Append(errs, fmt.Errorf("modality_rule_sets[%d]: %w", i, err))
		}
	}

	classSets := make(map[string]bool, len(cfg.SOPClassSets))
	for i, cs := range cfg.SOPClassSets {
		if classSets[cs.Name] {
			errs = multierror.Append(errs, fmt.Errorf("sop_class_sets[%d]: duplicate name %q", i, cs.Name))
		}
		classSets[cs.Name] = true
	}

	ports := make(map[int]bool, len(cfg.Listeners))
	for i, l := range cfg.Listeners {
		if ports[l.Port] {
			errs = multierror.Append(errs, fmt.Errorf("listeners[%d]: port %d already used", i, l.Port))
		}
		ports[l.Port] = true

		if !strategies[l.Storage.Strategy] {
			errs = multierror.Append(errs, fmt.Errorf("listeners[%d]: unknown storage strategy %q", i, l.Storage.Strategy))
		}
		if l.Storage.ModalityRuleSet != "" && !ruleSets[l.Storage.ModalityRuleSet] {
			errs = multierror.Append(errs, fmt.Errorf("listeners[%d]: unknown modality rule set %q", i, l.Storage.ModalityRuleSet))
		}
		if !classSets[l.SOPClassSet] {
			errs = multierror.Append(errs, fmt.Errorf("listeners[%d]: unknown SOP class set %q", i, l.SOPClassSet))
		}
		if _, err := admission.ParsePercent(l.Storage.MaxDiskUsage); err != nil {
			errs = multierror.Append(errs, fmt.Errorf("listeners[%d].storage.max_disk_usage: %w", i, err))
		}
		if l.Mirror.Type == "s3" {
			if _, err := decodeS3Mirror(l.Mirror.S3); err != nil {
				errs = multierror.Append(errs, fmt.Errorf("listeners[%d].mirror: %w", i, err))
			}
		}
	}

	if cfg.Index.Type == "badger" {
		if _, err := decodeBadgerIndex(cfg.Index.Badger); err != nil {
			errs = multierror.Append(errs, fmt.Errorf("index: %w", err))
		}
	}

	return errs.ErrorOrNil()
}

// formatValidationError reports the first failed struct tag with its path.
func formatValidationError(err error) error {
	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) && len(validationErrs) > 0 {
		e := validationErrs[0]
		return fmt.Errorf("%s: validation failed on '%s' tag (value: %v)",
			e.Namespace(), e.Tag(), e.Value())
	}
	return err
}
