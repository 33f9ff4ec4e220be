package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestPlanFullSequences(t *testing.T) {
	planner := NewPlanner(true, true, zap.NewNop())

	tests := []struct {
		provider string
		expected []Method
	}{
		{"outlook.com", []Method{MethodAPI, MethodBrowser, MethodSMTP}},
		{"hotmail.com", []Method{MethodAPI, MethodBrowser, MethodSMTP}},
		{"live.com", []Method{MethodAPI, MethodBrowser, MethodSMTP}},
		{"microsoft.com", []Method{MethodAPI, MethodBrowser, MethodSMTP}},
		{"office365.com", []Method{MethodAPI, MethodBrowser, MethodSMTP}},
		{"gmail.com", []Method{MethodSMTP, MethodBrowser}},
		{"customGoogle", []Method{MethodBrowser, MethodSMTP}},
		{"yahoo.com", []Method{MethodBrowser, MethodSMTP}},
		{"custom", []Method{MethodSMTP}},
		{"protonmail.com", []Method{MethodSMTP}},
	}

	for _, tt := range tests {
		t.Run(tt.provider, func(t *testing.T) {
			assert.Equal(t, tt.expected, planner.Plan(tt.provider))
		})
	}
}

func TestPlanAPIDisabled(t *testing.T) {
	planner := NewPlanner(false, true, zap.NewNop())

	assert.Equal(t, []Method{MethodBrowser, MethodSMTP}, planner.Plan("outlook.com"))
	assert.Equal(t, []Method{MethodBrowser, MethodSMTP}, planner.Plan("hotmail.com"))
	// Non-Microsoft sequences have no API step to strip.
	assert.Equal(t, []Method{MethodSMTP, MethodBrowser}, planner.Plan("gmail.com"))
}

func TestPlanBrowserDisabled(t *testing.T) {
	planner := NewPlanner(true, false, zap.NewNop())

	assert.Equal(t, []Method{MethodAPI, MethodSMTP}, planner.Plan("outlook.com"))
	assert.Equal(t, []Method{MethodSMTP}, planner.Plan("gmail.com"))
	assert.Equal(t, []Method{MethodSMTP}, planner.Plan("yahoo.com"))
	assert.Equal(t, []Method{MethodSMTP}, planner.Plan("customGoogle"))
}

func TestPlanEverythingDisabled(t *testing.T) {
	planner := NewPlanner(false, false, zap.NewNop())

	assert.Equal(t, []Method{MethodSMTP}, planner.Plan("outlook.com"))
	assert.Equal(t, []Method{MethodSMTP}, planner.Plan("gmail.com"))
}

func TestProviderFamilies(t *testing.T) {
	assert.True(t, IsMicrosoftProvider("outlook.com"))
	assert.True(t, IsMicrosoftProvider("office365.com"))
	assert.False(t, IsMicrosoftProvider("gmail.com"))

	assert.True(t, IsGoogleProvider("gmail.com"))
	assert.True(t, IsGoogleProvider("googlemail.com"))
	assert.False(t, IsGoogleProvider("customGoogle"))
}
