package registry

import (
	"testing"

	"github.com/marmos91/dittodicom/pkg/layout"
	"github.com/marmos91/dittodicom/pkg/sopclass"
	"github.com/marmos91/dittodicom/pkg/transcode"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterAndGet(t *testing.T) {
	reg := NewRegistry()

	strategy := &layout.Strategy{Name: "by-patient"}
	rules := &transcode.RuleSet{Name: "default", Rules: []transcode.Rule{
		{Modality: "CT", Action: transcode.ActionDecompress},
	}}
	classes := &sopclass.Set{Name: "all", Patterns: []string{"*"}}

	require.NoError(t, reg.RegisterStrategy(strategy))
	require.NoError(t, reg.RegisterRuleSet(rules))
	require.NoError(t, reg.RegisterClassSet(classes))

	gotStrategy, err := reg.GetStrategy("by-patient")
	require.NoError(t, err)
	assert.Same(t, strategy, gotStrategy)

	gotRules, err := reg.GetRuleSet("default")
	require.NoError(t, err)
	assert.Same(t, rules, gotRules)

	gotClasses, err := reg.GetClassSet("all")
	require.NoError(t, err)
	assert.Same(t, classes, gotClasses)
}

func TestGetMissing(t *testing.T) {
	reg := NewRegistry()

	_, err := reg.GetStrategy("nope")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Contains(t, err.Error(), `storage strategy "nope"`)

	_, err = reg.GetRuleSet("nope")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = reg.GetClassSet("nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRegisterRejects(t *testing.T) {
	reg := NewRegistry()

	assert.Error(t, reg.RegisterStrategy(nil))
	assert.Error(t, reg.RegisterStrategy(&layout.Strategy{}))
	require.NoError(t, reg.RegisterStrategy(&layout.Strategy{Name: "a"}))
	assert.Error(t, reg.RegisterStrategy(&layout.Strategy{Name: "a"}))

	assert.Error(t, reg.RegisterRuleSet(nil))
	assert.Error(t, reg.RegisterRuleSet(&transcode.RuleSet{}))
	err := reg.RegisterRuleSet(&transcode.RuleSet{Name: "dup", Rules: []transcode.Rule{
		{Modality: "MR"}, {Modality: "MR"},
	}})
	assert.ErrorContains(t, err, "duplicate rule")
	require.NoError(t, reg.RegisterRuleSet(&transcode.RuleSet{Name: "r"}))
	assert.Error(t, reg.RegisterRuleSet(&transcode.RuleSet{Name: "r"}))

	assert.Error(t, reg.RegisterClassSet(nil))
	assert.Error(t, reg.RegisterClassSet(&sopclass.Set{}))
	require.NoError(t, reg.RegisterClassSet(&sopclass.Set{Name: "c"}))
	assert.Error(t, reg.RegisterClassSet(&sopclass.Set{Name: "c"}))
}

func TestNamesSorted(t *testing.T) {
	reg := NewRegistry()
	for _, name := range []string{"zeta", "alpha", "mid"} {
		require.NoError(t, reg.RegisterStrategy(&layout.Strategy{Name: name}))
		require.NoError(t, reg.RegisterRuleSet(&transcode.RuleSet{Name: name}))
		require.NoError(t, reg.RegisterClassSet(&sopclass.Set{Name: name}))
	}

	want := []string{"alpha", "mid", "zeta"}
	assert.Equal(t, want, reg.StrategyNames())
	assert.Equal(t, want, reg.RuleSetNames())
	assert.Equal(t, want, reg.ClassSetNames())
}
