package container

type AVI struct{}

func init() {
	Register(&AVI{})
}

func (p *AVI) GetName() string {
	return "avi"
}

func (p *AVI) GetExtension() string {
	return ".avi"
}

func (p *AVI) GetVideoCodec() string {
	return "mpeg4"
}

func (p *AVI) GetAudioCodec() string {
	return "libmp3lame"
}

func (p *AVI) GetAudioBitrate() string {
	return "192k"
}

func (p *AVI) GetEncoderOptions() map[string]interface{} {
	return map[string]interface{}{
		"q:v":     3,
		"pix_fmt": "yuv420p",
	}
}

func (p *AVI) AcceptsAudioCopy() bool {
	return true
}
