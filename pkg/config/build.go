package config

import (
	"fmt"

	"github.com/marmos91/dittodicom/internal/logger"
	"github.com/marmos91/dittodicom/pkg/admission"
	"github.com/marmos91/dittodicom/pkg/dicom"
	"github.com/marmos91/dittodicom/pkg/layout"
	"github.com/marmos91/dittodicom/pkg/listener"
	"github.com/marmos91/dittodicom/pkg/registry"
	"github.com/marmos91/dittodicom/pkg/sopclass"
	"github.com/marmos91/dittodicom/pkg/transcode"
	"github.com/samber/lo"
)

// InitializeRegistry registers every named strategy, rule set and class set
// of cfg.
func InitializeRegistry(cfg *Config) (*registry.Registry, error) {
	if cfg == nil {
		return nil, fmt.Errorf("configuration is nil")
	}

	reg := registry.NewRegistry()

	for i, sc := range cfg.StorageStrategies {
		s, err := toStrategy(sc)
		if err != nil {
			return nil, fmt.Errorf("storage_strategies[%d]: %w", i, err)
		}
		if err := reg.RegisterStrategy(s); err != nil {
			return nil, err
		}
	}

	for _, rc := range cfg.ModalityRuleSets {
		if err := reg.RegisterRuleSet(toRuleSet(rc)); err != nil {
			return nil, err
		}
	}

	for _, cc := range cfg.SOPClassSets {
		if err := reg.RegisterClassSet(&sopclass.Set{Name: cc.Name, Patterns: cc.SOPClasses}); err != nil {
			return nil, err
		}
	}

	logger.Debug("Registered %d storage strategies, %d modality rule sets, %d SOP class sets",
		len(reg.StrategyNames()), len(reg.RuleSetNames()), len(reg.ClassSetNames()))

	return reg, nil
}

// Build resolves cfg into one immutable listener configuration per
// configured listener, in declaration order.
//
// Parameters:
//   - cfg: A configuration that passed Validate
//
// Returns the listener configurations, or an error naming the first listener
// with an unresolvable reference or an unparsable disk usage limit. Listeners
// share the resolved strategies and rule sets by pointer.
func Build(cfg *Config) ([]*listener.Config, error) {
	reg, err := InitializeRegistry(cfg)
	if err != nil {
		return nil, err
	}

	out := make([]*listener.Config, 0, len(cfg.Listeners))
	for i, lc := range cfg.Listeners {
		built, err := buildListener(reg, lc)
		if err != nil {
			return nil, fmt.Errorf("listeners[%d] (%s): %w", i, lc.AETitle, err)
		}
		out = append(out, built)
	}
	return out, nil
}

func buildListener(reg *registry.Registry, lc ListenerConfig) (*listener.Config, error) {
	strategy, err := reg.GetStrategy(lc.Storage.Strategy)
	if err != nil {
		return nil, err
	}

	var rules *transcode.RuleSet
	if lc.Storage.ModalityRuleSet != "" {
		if rules, err = reg.GetRuleSet(lc.Storage.ModalityRuleSet); err != nil {
			return nil, err
		}
	}

	classes, err := reg.GetClassSet(lc.SOPClassSet)
	if err != nil {
		return nil, err
	}

	maxUsage, err := admission.ParsePercent(lc.Storage.MaxDiskUsage)
	if err != nil {
		return nil, err
	}

	return &listener.Config{
		AETitle:             lc.AETitle,
		Port:                lc.Port,
		Root:                lc.Storage.Root,
		MaxDiskUsagePercent: maxUsage,
		Strategy:            strategy,
		Rules:               rules,
		Classes:             classes,
		RateLimit: listener.RateLimit{
			RequestsPerSecond: lc.RateLimit.RequestsPerSecond,
			Burst:             lc.RateLimit.Burst,
		},
		SerializeAdmission: lc.Storage.SerializeAdmission,
		StrictTranscode:    lc.Storage.StrictTranscode,
	}, nil
}

func toStrategy(sc StorageStrategyConfig) (*layout.Strategy, error) {
	dirs := make([]layout.Directory, 0, len(sc.Directories))
	for j, d := range sc.Directories {
		tag, err := dicom.ParseTag(d.Tag)
		if err != nil {
			return nil, fmt.Errorf("directories[%d]: %w", j, err)
		}
		dirs = append(dirs, layout.Directory{Name: d.Name, Tag: tag, Default: d.Default})
	}

	var fileTag dicom.Tag
	if sc.File.Tag != "" {
		tag, err := dicom.ParseTag(sc.File.Tag)
		if err != nil {
			return nil, fmt.Errorf("file: %w", err)
		}
		fileTag = tag
	}

	return &layout.Strategy{
		Name:                sc.Name,
		UseDateSubdirectory: sc.UseDateSubdirectories,
		Directories:         dirs,
		File: layout.FileSpec{
			Tag:       fileTag,
			Overwrite: sc.File.Overwrite,
			Extension: sc.File.Extension,
		},
	}, nil
}

func toRuleSet(rc ModalityRuleSetConfig) *transcode.RuleSet {
	return &transcode.RuleSet{
		Name: rc.Name,
		Rules: lo.Map(rc.Rules, func(r ModalityRuleConfig, _ int) transcode.Rule {
			return transcode.Rule{
				Modality:             r.Modality,
				Action:               r.Action,
				Ratio:                r.Ratio,
				OutputTransferSyntax: r.OutputTransferSyntax,
			}
		}),
	}
}
