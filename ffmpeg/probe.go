package ffmpeg

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"mediahub/storage"
	"mediahub/task"
)

type SubtitleTrack struct {
	Track    int    `json:"track"`
	Language string `json:"language"`
	Codec    string `json:"codec"`
}

// MediaInfo is the metadata record returned for a stored file.
type MediaInfo struct {
	Filename       string          `json:"filename"`
	Size           int64           `json:"size"`
	Format         string          `json:"format"`
	Duration       float64         `json:"duration"`
	BitRate        int64           `json:"bit_rate"`
	VideoCodec     string          `json:"video_codec,omitempty"`
	Resolution     string          `json:"resolution,omitempty"`
	AudioCodec     string          `json:"audio_codec,omitempty"`
	AudioChannels  int             `json:"audio_channels,omitempty"`
	SubtitleTracks int             `json:"subtitle_tracks"`
	Subtitles      []SubtitleTrack `json:"subtitles"`
}

type probeOutput struct {
	Streams []struct {
		CodecName string `json:"codec_name"`
		CodecType string `json:"codec_type"`

		// video
		Width  int `json:"width"`
		Height int `json:"height"`

		// audio
		Channels int `json:"channels"`

		Tags struct {
			Language string `json:"language"`
		} `json:"tags"`
	} `json:"streams"`
	Format struct {
		FormatName string `json:"format_name"`
		Duration   string `json:"duration"`
		BitRate    string `json:"bit_rate"`
	} `json:"format"`
}

// Prober reads container and stream metadata with ffprobe.
type Prober struct {
	runner *Runner
	store  *storage.Store
}

func NewProber(runner *Runner, store *storage.Store) *Prober {
	return &Prober{runner: runner, store: store}
}

func (p *Prober) probe(ctx context.Context, path string) (*probeOutput, error) {
	args := []string{
		"-v", "error",
		"-show_format",
		"-show_streams",
		"-of", "json",
		path,
	}

	out, err := p.runner.Output(ctx, args)
	if err != nil {
		return nil, &task.EngineError{Op: "probe", Err: err}
	}

	var data probeOutput
	if err := json.Unmarshal(out, &data); err != nil {
		return nil, &task.EngineError{Op: "probe", Err: fmt.Errorf("unable to decode ffprobe output: %w", err)}
	}
	return &data, nil
}

// Info returns the metadata record of a stored file. A missing file yields
// storage.ErrNotFound.
func (p *Prober) Info(ctx context.Context, name string) (*MediaInfo, error) {
	path, fi, err := p.store.Stat(name)
	if err != nil {
		return nil, err
	}

	data, err := p.probe(ctx, path)
	if err != nil {
		return nil, err
	}

	info := &MediaInfo{
		Filename:  name,
		Size:      fi.Size(),
		Format:    data.Format.FormatName,
		Subtitles: []SubtitleTrack{},
	}
	info.Duration, _ = strconv.ParseFloat(data.Format.Duration, 64)
	info.BitRate, _ = strconv.ParseInt(data.Format.BitRate, 10, 64)

	for _, s := range data.Streams {
		switch s.CodecType {
		case "video":
			if info.VideoCodec == "" {
				info.VideoCodec = s.CodecName
				info.Resolution = fmt.Sprintf("%dx%d", s.Width, s.Height)
			}
		case "audio":
			if info.AudioCodec == "" {
				info.AudioCodec = s.CodecName
				info.AudioChannels = s.Channels
			}
		case "subtitle":
			lang := s.Tags.Language
			if lang == "" {
				lang = "Unknown"
			}
			info.Subtitles = append(info.Subtitles, SubtitleTrack{
				Track:    len(info.Subtitles) + 1,
				Language: lang,
				Codec:    s.CodecName,
			})
		}
	}
	info.SubtitleTracks = len(info.Subtitles)

	return info, nil
}

// Duration returns the container duration of the file at path, zero when
// ffprobe does not know it.
func (p *Prober) Duration(ctx context.Context, path string) (time.Duration, error) {
	data, err := p.probe(ctx, path)
	if err != nil {
		return 0, err
	}
	if data.Format.Duration == "" {
		return 0, nil
	}

	seconds, err := strconv.ParseFloat(data.Format.Duration, 64)
	if err != nil {
		return 0, fmt.Errorf("unable to parse duration %q: %w", data.Format.Duration, err)
	}
	return time.Duration(seconds * float64(time.Second)), nil
}
