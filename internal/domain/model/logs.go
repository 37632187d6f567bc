package model

// LogPage is one response of the offset protocol.
//
// Clients pass NextOffset back as `since` on their next call. When Reset is set the
// client's last-seen offset predates the oldest retained line: Logs holds the whole
// retained buffer and Dropped reports how many lines between `since` and the buffer
// start are gone for good.
type LogPage struct {
	Logs       []string `json:"logs"`
	NextOffset int      `json:"next_offset"`
	Reset      bool     `json:"reset"`
	Total      int      `json:"total"`
	Dropped    int      `json:"dropped"`
}

// LogFrame is pushed over the websocket tail. Done is set on the last frame, once the
// job is terminal and every line has been delivered.
type LogFrame struct {
	LogPage
	Status JobStatus `json:"status"`
	Done   bool      `json:"done"`
}

// Synthetic lines the runner writes around a job's own output.
const (
	LogLineJobStarted   = "Job started"
	LogLineJobCompleted = "Job completed"
	LogLineJobFailed    = "Job failed: "
)
