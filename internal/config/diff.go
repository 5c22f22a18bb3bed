package config

// Diff describes what changed between two loaded configs. Only the
// sections that can be applied to a running instance are tracked;
// anything else requires a restart.
type Diff struct {
	ScheduleChanged bool
	NewSchedule     ScheduleConfig

	DeadlineChanged bool
	NewDeadline     DeadlineConfig

	// RestartRequired marks changes to sections bound at startup:
	// store path, NATS topology, web listener, instance id.
	RestartRequired bool
}

// DiffConfigs compares old and new configs.
func DiffConfigs(oldCfg, newCfg *Config) Diff {
	var d Diff

	if oldCfg.Schedule != newCfg.Schedule {
		d.ScheduleChanged = true
		d.NewSchedule = newCfg.Schedule
	}
	if oldCfg.Deadline != newCfg.Deadline {
		d.DeadlineChanged = true
		d.NewDeadline = newCfg.Deadline
	}

	if oldCfg.InstanceID != newCfg.InstanceID ||
		oldCfg.NATS != newCfg.NATS ||
		oldCfg.Store != newCfg.Store ||
		oldCfg.Web != newCfg.Web {
		d.RestartRequired = true
	}

	return d
}

// HasChanges reports whether anything differs at all.
func (d Diff) HasChanges() bool {
	return d.ScheduleChanged || d.DeadlineChanged || d.RestartRequired
}
