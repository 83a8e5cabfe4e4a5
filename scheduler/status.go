package scheduler

// RoomStatus is the monitoring view of one room's buffer and timers.
// Seconds are -1 when the event has never happened.
type RoomStatus struct {
	RoomID                 string  `json:"roomId"`
	Pending                int     `json:"pending"`
	SecondsSinceResponse   float64 `json:"secondsSinceResponse"`
	SecondsSinceOracleCall float64 `json:"secondsSinceOracleCall"`
}

// Status is a point-in-time snapshot of the scheduler, for diagnostics
// only — nothing reads it back for control decisions.
type Status struct {
	AnalysisInFlight bool         `json:"analysisInFlight"`
	Rooms            []RoomStatus `json:"rooms"`
}

// Status reports buffer size and elapsed timers for every known room,
// sorted by room id.
func (s *Scheduler) Status() Status {
	now := s.now()
	st := Status{
		AnalysisInFlight: s.inFlight.Load(),
		Rooms:            []RoomStatus{},
	}
	for _, roomID := range s.registry.RoomIDs() {
		buf := s.registry.Get(roomID)
		lastResponse, lastOracleCall := buf.Timers()

		rs := RoomStatus{
			RoomID:                 roomID,
			Pending:                buf.Len(),
			SecondsSinceResponse:   -1,
			SecondsSinceOracleCall: -1,
		}
		if !lastResponse.IsZero() {
			rs.SecondsSinceResponse = now.Sub(lastResponse).Seconds()
		}
		if !lastOracleCall.IsZero() {
			rs.SecondsSinceOracleCall = now.Sub(lastOracleCall).Seconds()
		}
		st.Rooms = append(st.Rooms, rs)
	}
	return st
}
