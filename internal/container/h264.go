package container

// H264 covers the containers that carry H.264 video with AAC audio.
type H264 struct {
	name      string
	faststart bool
}

func init() {
	Register(&H264{name: "mp4", faststart: true})
	Register(&H264{name: "mov", faststart: true})
	Register(&H264{name: "mkv"})
}

func (p *H264) GetName() string {
	return p.name
}

func (p *H264) GetExtension() string {
	return "." + p.name
}

func (p *H264) GetVideoCodec() string {
	return "libx264"
}

func (p *H264) GetAudioCodec() string {
	return "aac"
}

func (p *H264) GetAudioBitrate() string {
	return "192k"
}

func (p *H264) GetEncoderOptions() map[string]interface{} {
	opts := map[string]interface{}{
		"preset":    "medium",
		"crf":       23,
		"profile:v": "high",
		"pix_fmt":   "yuv420p",
	}
	if p.faststart {
		opts["movflags"] = "+faststart"
	}
	return opts
}

func (p *H264) AcceptsAudioCopy() bool {
	return true
}
