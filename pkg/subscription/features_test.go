package subscription

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsActivePaid(t *testing.T) {
	cases := []struct {
		name   string
		plan   Plan
		status Status
		want   bool
	}{
		{"active solo", Solo, StatusActive, true},
		{"active seasonal", Seasonal, StatusActive, true},
		{"active free trial", FreeTrial, StatusActive, false},
		{"cancelled solo", Solo, StatusCancelled, false},
		{"past_due seasonal", Seasonal, StatusPastDue, false},
		{"unknown plan", Plan("enterprise"), StatusActive, false},
		{"unknown status", Solo, Status("trialing"), false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, IsActivePaid(tc.plan, tc.status))
		})
	}
}

func TestCanUseFeature(t *testing.T) {
	assert.True(t, CanUseFeature(FreeTrial, StatusActive, CSVImport))
	assert.False(t, CanUseFeature(FreeTrial, StatusActive, FormGeneration))
	assert.True(t, CanUseFeature(Solo, StatusActive, AutoCategorize))
	assert.False(t, CanUseFeature(Solo, StatusPastDue, AutoCategorize))
	assert.False(t, CanUseFeature(Plan("unknown"), StatusActive, CSVImport))
}

func TestValidPlan(t *testing.T) {
	assert.True(t, ValidPlan("free_trial"))
	assert.True(t, ValidPlan("solo"))
	assert.True(t, ValidPlan("seasonal"))
	assert.False(t, ValidPlan("enterprise"))
	assert.False(t, ValidPlan(""))
}
