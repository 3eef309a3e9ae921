package ffmpeg

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	ffmpeg "github.com/u2takey/ffmpeg-go"
)

// VideoMetadata contains metadata about a video file
type VideoMetadata struct {
	Duration float64
	Width    int
	Height   int
	Codec    string
	HasAudio bool
}

type probeStream struct {
	CodecType  string `json:"codec_type"`
	CodecName  string `json:"codec_name"`
	Width      int    `json:"width"`
	Height     int    `json:"height"`
	Duration   string `json:"duration"`
	NbFrames   string `json:"nb_frames"`
	RFrameRate string `json:"r_frame_rate"`
}

type probeOutput struct {
	Streams []probeStream `json:"streams"`
	Format  struct {
		Duration string `json:"duration"`
	} `json:"format"`
}

// GetVideoMetadata runs ffprobe on inputPath.
func GetVideoMetadata(inputPath string) (*VideoMetadata, error) {
	probe, err := ffmpeg.Probe(inputPath)
	if err != nil {
		return nil, errors.Wrap(err, "error probing video")
	}
	return parseProbe(probe)
}

func parseProbe(probe string) (*VideoMetadata, error) {
	var data probeOutput
	if err := json.Unmarshal([]byte(probe), &data); err != nil {
		return nil, errors.WithStack(err)
	}
	if len(data.Streams) == 0 {
		return nil, errors.New("no streams found in video")
	}

	var video *probeStream
	hasAudio := false
	for i := range data.Streams {
		switch data.Streams[i].CodecType {
		case "video":
			if video == nil {
				video = &data.Streams[i]
			}
		case "audio":
			hasAudio = true
		}
	}
	if video == nil {
		return nil, errors.New("no video stream found")
	}

	// Stream duration first, then container duration, then frames / rate.
	duration := parseSeconds(video.Duration)
	if duration == 0 {
		duration = parseSeconds(data.Format.Duration)
	}
	if duration == 0 {
		frames := parseSeconds(video.NbFrames)
		if rate := parseRate(video.RFrameRate); frames > 0 && rate > 0 {
			duration = frames / rate
		}
	}
	if duration == 0 {
		return nil, errors.New("could not determine video duration")
	}

	return &VideoMetadata{
		Duration: duration,
		Width:    video.Width,
		Height:   video.Height,
		Codec:    video.CodecName,
		HasAudio: hasAudio,
	}, nil
}

func parseSeconds(s string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0
	}
	return v
}

func parseRate(s string) float64 {
	nums := strings.Split(s, "/")
	if len(nums) != 2 {
		return 0
	}
	num, err1 := strconv.ParseFloat(nums[0], 64)
	den, err2 := strconv.ParseFloat(nums[1], 64)
	if err1 != nil || err2 != nil || den == 0 {
		return 0
	}
	return num / den
}
