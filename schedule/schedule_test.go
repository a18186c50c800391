package schedule_test

import (
	"testing"
	"time"

	"github.com/lancef37/sunday-tan-website-sub000/schedule"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// PARSING + NORMALIZATION
// =============================================================================

func TestParse_WeeklyHours(t *testing.T) {
	cfg, err := schedule.Parse([]byte(`{
		"slot_interval_minutes": 60,
		"week": {
			"monday": [{"start": "09:00", "end": "12:00"}],
			"tuesday": []
		}
	}`))
	require.NoError(t, err)

	// 2025-09-01 is a Monday.
	slots, err := cfg.SlotsFor("2025-09-01")
	require.NoError(t, err)
	assert.Equal(t, []string{"09:00", "10:00", "11:00"}, slots)

	slots, err = cfg.SlotsFor("2025-09-02")
	require.NoError(t, err)
	assert.Empty(t, slots, "tuesday is closed")
}

func TestParse_LegacyOverride_Disabled(t *testing.T) {
	// The legacy {enabled: false} shape closes the whole day.
	cfg, err := schedule.Parse([]byte(`{
		"slot_interval_minutes": 60,
		"week": {"wednesday": [{"start": "09:00", "end": "17:00"}]},
		"overrides": [{"date": "2025-09-03", "enabled": false}]
	}`))
	require.NoError(t, err)

	slots, err := cfg.SlotsFor("2025-09-03")
	require.NoError(t, err)
	assert.Empty(t, slots)
}

func TestParse_LegacyOverride_CustomHours(t *testing.T) {
	// The legacy {enabled: true, startTime, endTime} shape becomes a single
	// custom block.
	cfg, err := schedule.Parse([]byte(`{
		"slot_interval_minutes": 60,
		"week": {"wednesday": [{"start": "09:00", "end": "17:00"}]},
		"overrides": [{"date": "2025-09-03", "enabled": true,
		               "startTime": "10:00", "endTime": "13:00"}]
	}`))
	require.NoError(t, err)

	slots, err := cfg.SlotsFor("2025-09-03")
	require.NoError(t, err)
	assert.Equal(t, []string{"10:00", "11:00", "12:00"}, slots)
}

func TestParse_CurrentOverride_TimeBlocks(t *testing.T) {
	cfg, err := schedule.Parse([]byte(`{
		"slot_interval_minutes": 60,
		"week": {"wednesday": [{"start": "09:00", "end": "17:00"}]},
		"overrides": [{"date": "2025-09-03", "type": "custom",
		               "timeBlocks": [{"start": "09:00", "end": "11:00"},
		                              {"start": "15:00", "end": "17:00"}]}]
	}`))
	require.NoError(t, err)

	slots, err := cfg.SlotsFor("2025-09-03")
	require.NoError(t, err)
	assert.Equal(t, []string{"09:00", "10:00", "15:00", "16:00"}, slots)
}

func TestParse_BothFormats_SameNormalizedForm(t *testing.T) {
	// Use sites never see the input format: the same closure expressed both
	// ways normalizes identically.
	legacy, err := schedule.Parse([]byte(`{
		"week": {},
		"overrides": [{"date": "2025-09-03", "enabled": false}]
	}`))
	require.NoError(t, err)

	current, err := schedule.Parse([]byte(`{
		"week": {},
		"overrides": [{"date": "2025-09-03", "type": "closed"}]
	}`))
	require.NoError(t, err)

	assert.Equal(t, legacy.Overrides["2025-09-03"], current.Overrides["2025-09-03"])
}

func TestParse_BlockedSlots_Excluded(t *testing.T) {
	cfg, err := schedule.Parse([]byte(`{
		"slot_interval_minutes": 60,
		"week": {"friday": [{"start": "09:00", "end": "12:00"}]},
		"blocked": [{"date": "2025-09-05", "time": "10:00"}]
	}`))
	require.NoError(t, err)

	slots, err := cfg.SlotsFor("2025-09-05")
	require.NoError(t, err)
	assert.Equal(t, []string{"09:00", "11:00"}, slots)

	// Other fridays are unaffected.
	slots, err = cfg.SlotsFor("2025-09-12")
	require.NoError(t, err)
	assert.Equal(t, []string{"09:00", "10:00", "11:00"}, slots)
}

func TestParse_SlotIntervalDefault(t *testing.T) {
	cfg, err := schedule.Parse([]byte(`{"week": {}}`))
	require.NoError(t, err)
	assert.Equal(t, time.Hour, cfg.SlotInterval)
}

func TestParse_Rejects(t *testing.T) {
	cases := []struct {
		name string
		json string
	}{
		{"bad json", `{`},
		{"unknown weekday", `{"week": {"moonday": []}}`},
		{"unknown override type", `{"week": {}, "overrides": [{"date": "2025-09-03", "type": "half"}]}`},
		{"custom without blocks", `{"week": {}, "overrides": [{"date": "2025-09-03", "type": "custom"}]}`},
		{"enabled without hours", `{"week": {}, "overrides": [{"date": "2025-09-03", "enabled": true}]}`},
		{"override missing date", `{"week": {}, "overrides": [{"enabled": false}]}`},
		{"override neither format", `{"week": {}, "overrides": [{"date": "2025-09-03"}]}`},
		{"blocked bad time", `{"week": {}, "blocked": [{"date": "2025-09-05", "time": "25:00"}]}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := schedule.Parse([]byte(tc.json))
			assert.Error(t, err)
		})
	}
}

// =============================================================================
// REGISTRY - Versioned replace
// =============================================================================

func TestRegistry_ReplaceBumpsVersion(t *testing.T) {
	first, err := schedule.Parse([]byte(`{"week": {}}`))
	require.NoError(t, err)

	reg := schedule.NewRegistry(first)
	assert.Equal(t, 1, reg.Current().Version)

	second, err := schedule.Parse([]byte(`{"week": {"monday": [{"start": "09:00", "end": "10:00"}]}}`))
	require.NoError(t, err)

	v := reg.Replace(second)
	assert.Equal(t, 2, v)
	assert.Equal(t, 2, reg.Current().Version)
}

func TestRegistry_SeededVersionSurvivesRestart(t *testing.T) {
	// A registry restored from a persisted config counts on from the stored
	// version rather than restarting at 1.
	cfg, err := schedule.Parse([]byte(`{"week": {}}`))
	require.NoError(t, err)
	cfg.Version = 7

	reg := schedule.NewRegistry(cfg)
	assert.Equal(t, 7, reg.Current().Version)

	next, err := schedule.Parse([]byte(`{"week": {"friday": [{"start": "09:00", "end": "10:00"}]}}`))
	require.NoError(t, err)
	assert.Equal(t, 8, reg.Replace(next))
}

func TestRegistry_ReadersKeepSnapshot(t *testing.T) {
	// A reader holding the old config keeps seeing it; Replace swaps the
	// pointer, never mutates.
	first, err := schedule.Parse([]byte(`{
		"slot_interval_minutes": 60,
		"week": {"monday": [{"start": "09:00", "end": "10:00"}]}
	}`))
	require.NoError(t, err)
	reg := schedule.NewRegistry(first)

	snapshot := reg.Current()

	second, err := schedule.Parse([]byte(`{"week": {}}`))
	require.NoError(t, err)
	reg.Replace(second)

	slots, err := snapshot.SlotsFor("2025-09-01")
	require.NoError(t, err)
	assert.Equal(t, []string{"09:00"}, slots, "old snapshot unaffected by replace")

	slots, err = reg.Current().SlotsFor("2025-09-01")
	require.NoError(t, err)
	assert.Empty(t, slots)
}
