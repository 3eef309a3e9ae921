package types

import "time"

// WorkItem is one spreadsheet row flagged for execution. Values are already
// defaulted and normalized by the row source; the batch runner never mutates
// it.
type WorkItem struct {
	RowIndex       int    `json:"row_index"`
	ImageURL       string `json:"image_url,omitempty"`
	VideoURL       string `json:"video_url,omitempty"`
	AudioURL       string `json:"audio_url,omitempty"`
	Duration       int    `json:"duration"`
	OutputFileName string `json:"output_file_name"`
	VideoStartTime int    `json:"video_start_time"`
	AudioStartTime int    `json:"audio_start_time"`
	ImageScale     int    `json:"image_scale"`    // percent
	FilterColor    string `json:"filter_color"`   // #RRGGBB
	FilterOpacity  int    `json:"filter_opacity"` // percent
	OutputVideoURL string `json:"output_video_url,omitempty"`
}

// ScaleFraction returns ImageScale as a fraction (80 -> 0.8).
func (w WorkItem) ScaleFraction() float64 {
	return float64(w.ImageScale) / 100
}

// OpacityFraction returns FilterOpacity as a fraction (50 -> 0.5).
func (w WorkItem) OpacityFraction() float64 {
	return float64(w.FilterOpacity) / 100
}

// WriteBack reports the best-effort spreadsheet updates for one item.
type WriteBack struct {
	ResultRecorded bool   `json:"result_recorded"`
	MarkerCleared  bool   `json:"marker_cleared"`
	Message        string `json:"message,omitempty"`
}

// ItemResult is the outcome of a single work item.
type ItemResult struct {
	RowIndex  int           `json:"row_index"`
	FileName  string        `json:"file_name"`
	Success   bool          `json:"success"`
	VideoURL  string        `json:"video_url,omitempty"`
	Error     string        `json:"error,omitempty"`
	Strategy  string        `json:"strategy,omitempty"`
	Elapsed   time.Duration `json:"elapsed"`
	WriteBack WriteBack     `json:"write_back"`
}

// BatchResult aggregates the outcomes of one batch, in input order.
type BatchResult struct {
	RunID          string       `json:"run_id"`
	StartedAt      time.Time    `json:"started_at"`
	FinishedAt     time.Time    `json:"finished_at"`
	TotalProcessed int          `json:"total_processed"`
	Successful     int          `json:"successful"`
	Failed         int          `json:"failed"`
	Results        []ItemResult `json:"results"`
}

// Append records an item outcome and keeps the counters in step.
func (b *BatchResult) Append(r ItemResult) {
	b.Results = append(b.Results, r)
	b.TotalProcessed++
	if r.Success {
		b.Successful++
	} else {
		b.Failed++
	}
}
