package world

// DayLength is the number of ticks in a full day.
const DayLength = 24000

// Tick advances world age and, while the day cycle runs, the time of day.
func (w *World) Tick() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.age++
	if w.dayCycle {
		w.dayTime = (w.dayTime + 1) % DayLength
	}
}

// Age returns the number of ticks since the world started.
func (w *World) Age() int64 {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.age
}

// TimeOfDay returns the current time in [0, DayLength).
func (w *World) TimeOfDay() int64 {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.dayTime
}

// SetTimeOfDay sets the time, wrapping it into [0, DayLength).
func (w *World) SetTimeOfDay(t int64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.dayTime = ((t % DayLength) + DayLength) % DayLength
}

// SetDayCycle starts or stops the advance of time of day.
func (w *World) SetDayCycle(on bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.dayCycle = on
}

// DayCycle reports whether time of day advances.
func (w *World) DayCycle() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.dayCycle
}
