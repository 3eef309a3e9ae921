package container

type WebM struct{}

func init() {
	Register(&WebM{})
}

func (p *WebM) GetName() string {
	return "webm"
}

func (p *WebM) GetExtension() string {
	return ".webm"
}

func (p *WebM) GetVideoCodec() string {
	return "libvpx-vp9"
}

func (p *WebM) GetAudioCodec() string {
	return "libopus"
}

func (p *WebM) GetAudioBitrate() string {
	return "128k"
}

func (p *WebM) GetEncoderOptions() map[string]interface{} {
	return map[string]interface{}{
		"crf":          32,
		"b:v":          0,
		"deadline":     "good",
		"cpu-used":     2,
		"row-mt":       1,
		"tile-columns": 2,
		"pix_fmt":      "yuv420p",
	}
}

// WebM only carries Opus or Vorbis audio.
func (p *WebM) AcceptsAudioCopy() bool {
	return false
}
