package engine

import (
	"context"
	"testing"
	"time"

	"github.com/LENAX/grade-engine/pkg/core/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCronScheduler_Register(t *testing.T) {
	eng, _, _ := newTestEngine(t)
	cs := eng.GetCronScheduler()

	require.NoError(t, cs.RegisterSchedule(ScheduleEntry{Plan: "shout", Cron: "0 3 * * *", Subjects: []string{"a"}}))
	require.NoError(t, cs.RegisterSchedule(ScheduleEntry{Plan: "shout", Cron: "@daily", Subjects: []string{"b"}}))

	err := cs.RegisterSchedule(ScheduleEntry{Plan: "shout", Cron: "@daily", Subjects: []string{"b"}})
	assert.ErrorContains(t, err, "已注册")

	err = cs.RegisterSchedule(ScheduleEntry{Plan: "missing", Cron: "@daily", Subjects: []string{"b"}})
	assert.ErrorIs(t, err, ErrPlanNotFound)

	err = cs.RegisterSchedule(ScheduleEntry{Plan: "shout", Cron: "not a cron", Subjects: []string{"b"}})
	assert.ErrorContains(t, err, "Cron表达式无效")

	err = cs.RegisterSchedule(ScheduleEntry{Plan: "shout", Cron: "@hourly"})
	assert.Error(t, err)

	got := cs.GetSchedules()
	require.Len(t, got, 2)
	assert.Equal(t, "0 3 * * *", got[0].Cron)
	assert.Equal(t, "@daily", got[1].Cron)

	require.NoError(t, cs.UnregisterSchedule("shout", "@daily"))
	assert.Error(t, cs.UnregisterSchedule("shout", "@daily"))
	assert.Len(t, cs.GetSchedules(), 1)
}

func TestCronScheduler_Triggers(t *testing.T) {
	eng, _, bus := newTestEngine(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	finished, err := bus.Subscribe(ctx, events.EventBatchFinished)
	require.NoError(t, err)

	require.NoError(t, eng.GetCronScheduler().RegisterSchedule(ScheduleEntry{
		Plan:     "shout",
		Cron:     "@every 1s",
		Subjects: []string{"x", "y"},
	}))
	require.NoError(t, eng.Start(ctx))

	select {
	case e := <-finished:
		assert.Equal(t, "shout", e.Plan)
	case <-time.After(5 * time.Second):
		t.Fatal("定时评分未触发")
	}

	runs, err := eng.ListRuns(ctx, "shout", 0)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, len(runs), 2)
}
