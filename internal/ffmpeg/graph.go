package ffmpeg

import (
	"fmt"
	"strconv"

	"github.com/pkg/errors"
	ffmpeg "github.com/u2takey/ffmpeg-go"

	"github.com/ZacxDev/reelbatch/internal/composer"
	"github.com/ZacxDev/reelbatch/internal/container"
)

const solidFrameRate = 30

// Args returns the ffmpeg argument list (without the binary) for plan.
func (r *Renderer) Args(plan composer.Plan) ([]string, error) {
	profile, err := container.ForFile(plan.OutputPath)
	if err != nil {
		return nil, err
	}
	if plan.Duration <= 0 {
		return nil, errors.Errorf("duration must be positive, got %d", plan.Duration)
	}

	streams := []*ffmpeg.Stream{buildVideo(plan)}
	if plan.Audio != nil {
		streams = append(streams, ffmpeg.Input(plan.Audio.Path, ffmpeg.KwArgs{
			"ss": plan.Audio.Start,
			"t":  plan.Duration,
		}).Audio())
	}

	return ffmpeg.Output(streams, plan.OutputPath, outputKwargs(plan, profile, r.threads)).
		OverWriteOutput().
		GetArgs(), nil
}

func buildVideo(plan composer.Plan) *ffmpeg.Stream {
	var video *ffmpeg.Stream
	if bg := plan.Background; bg.Solid() {
		source := fmt.Sprintf("color=c=%s:s=%dx%d:r=%d", bg.Color, bg.Width, bg.Height, solidFrameRate)
		video = ffmpeg.Input(source, ffmpeg.KwArgs{"f": "lavfi", "t": plan.Duration}).Video()
	} else {
		video = ffmpeg.Input(bg.Path, ffmpeg.KwArgs{"ss": bg.Start, "t": plan.Duration}).Video()
	}

	if ov := plan.Overlay; ov != nil {
		inputKwargs := ffmpeg.KwArgs{"t": plan.Duration}
		if ov.Loop() {
			inputKwargs["loop"] = 1
		}
		scale := formatFloat(ov.Scale)
		overlay := ffmpeg.Input(ov.Path, inputKwargs).Video().
			Filter("scale", ffmpeg.Args{}, ffmpeg.KwArgs{
				"w":                           fmt.Sprintf("min(iw*%s,%d)", scale, ov.MaxWidth),
				"h":                           fmt.Sprintf("min(ih*%s,%d)", scale, ov.MaxHeight),
				"force_original_aspect_ratio": "decrease",
			})
		video = video.Overlay(overlay, "", ffmpeg.KwArgs{
			"x": "(W-w)/2",
			"y": "(H-h)/2",
		})
	}

	if tint := plan.Tint; tint != nil {
		video = video.Filter("colorchannelmixer", ffmpeg.Args{}, ffmpeg.KwArgs{
			"rr": formatFloat(tint.R),
			"gg": formatFloat(tint.G),
			"bb": formatFloat(tint.B),
		})
	}
	return video
}

func outputKwargs(plan composer.Plan, profile container.Profile, threads int) ffmpeg.KwArgs {
	kwargs := ffmpeg.KwArgs{
		"c:v":     profile.GetVideoCodec(),
		"threads": threads,
	}
	for k, v := range profile.GetEncoderOptions() {
		kwargs[k] = v
	}

	if plan.Audio != nil {
		if plan.Audio.Copy && profile.AcceptsAudioCopy() {
			kwargs["c:a"] = "copy"
		} else {
			kwargs["c:a"] = profile.GetAudioCodec()
			kwargs["b:a"] = profile.GetAudioBitrate()
		}
	}
	return kwargs
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
